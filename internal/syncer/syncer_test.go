package syncer_test

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"dubsync/internal/dub"
	"dubsync/internal/services"
	"dubsync/internal/syncer"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 0.05 }

func TestDecideScenarios(t *testing.T) {
	policy := syncer.DefaultPolicy()
	cases := []struct {
		name      string
		slot      float64
		trimmed   float64
		strategy  dub.Strategy
		speed     float64
		padMS     float64
		freezeMS  float64
		effective float64
	}{
		{"pad", 2000, 1800, dub.StrategyPad, 1, 200, 0, 2000},
		{"exact fit", 2000, 2000, dub.StrategyPad, 1, 0, 0, 2000},
		{"speedup", 2000, 2200, dub.StrategySpeedup, 1.10, 0, 0, 2000},
		{"speedup at cap", 2000, 2300, dub.StrategySpeedup, 1.15, 0, 0, 2000},
		{"freeze", 2000, 3000, dub.StrategyFreezeExtend, 1.15, 0, 608.7, 2608.7},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := syncer.Decide(3, tc.slot, tc.trimmed, policy)
			if err != nil {
				t.Fatalf("Decide failed: %v", err)
			}
			if got.SegmentIndex != 3 {
				t.Fatalf("unexpected segment index %d", got.SegmentIndex)
			}
			if got.Strategy != tc.strategy {
				t.Fatalf("strategy = %s, want %s", got.Strategy, tc.strategy)
			}
			if !approx(got.SpeedFactor, tc.speed) || !approx(got.PadMS, tc.padMS) || !approx(got.FreezeMS, tc.freezeMS) {
				t.Fatalf("unexpected decision: %+v", got)
			}
			if !approx(got.AudioDurationMS(tc.slot), tc.effective) {
				t.Fatalf("effective duration %v, want %v", got.AudioDurationMS(tc.slot), tc.effective)
			}
		})
	}
}

func TestDecideFreezeSpedDurationMatchesSlotPlusFreeze(t *testing.T) {
	d, err := syncer.Decide(0, 2000, 3000, syncer.DefaultPolicy())
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	sped := syncer.SpedDurationMS(d, 3000)
	if !approx(sped, 2608.7) || !approx(sped, 2000+d.FreezeMS) {
		t.Fatalf("sped duration %v does not match slot plus freeze %v", sped, d.FreezeMS)
	}
}

func TestDecideRejectsMalformedTiming(t *testing.T) {
	policy := syncer.DefaultPolicy()
	bad := [][2]float64{
		{0, 1000},
		{-5, 1000},
		{math.NaN(), 1000},
		{math.Inf(1), 1000},
		{1000, 0},
		{1000, math.NaN()},
	}
	for _, pair := range bad {
		if _, err := syncer.Decide(0, pair[0], pair[1], policy); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("Decide(%v, %v) expected validation error, got %v", pair[0], pair[1], err)
		}
	}
	if _, err := syncer.Decide(0, 1000, 1000, syncer.Policy{SpeedCap: 0.5}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for bad cap, got %v", err)
	}
}

func TestDecidePropertiesHoldForRandomInputs(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	policy := syncer.DefaultPolicy()
	for i := 0; i < 5000; i++ {
		slot := 1 + rng.Float64()*20000
		trimmed := 1 + rng.Float64()*40000
		first, err := syncer.Decide(i, slot, trimmed, policy)
		if err != nil {
			t.Fatalf("Decide failed: %v", err)
		}
		second, _ := syncer.Decide(i, slot, trimmed, policy)
		if first != second {
			t.Fatalf("decision not idempotent: %+v vs %+v", first, second)
		}
		if first.SpeedFactor < 1 || first.SpeedFactor > policy.SpeedCap {
			t.Fatalf("speed factor %v outside [1, %v]", first.SpeedFactor, policy.SpeedCap)
		}
		if first.PadMS < 0 || first.FreezeMS < 0 {
			t.Fatalf("negative correction: %+v", first)
		}
		if first.AudioDurationMS(slot) < slot {
			t.Fatalf("effective duration shorter than slot: %+v", first)
		}
		sped := syncer.SpedDurationMS(first, trimmed)
		if sped > first.AudioDurationMS(slot)+1e-6 {
			t.Fatalf("audio %v outruns effective duration %v", sped, first.AudioDurationMS(slot))
		}
	}
}
