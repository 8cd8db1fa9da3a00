package syncer

import (
	"fmt"
	"math"

	"dubsync/internal/dub"
	"dubsync/internal/services"
)

// DefaultSpeedCap is the largest audio time-compression factor applied.
const DefaultSpeedCap = 1.15

// ratioEpsilon absorbs float noise so a ratio that is exactly 1 or exactly the
// cap is not pushed into the next strategy.
const ratioEpsilon = 1e-9

// Policy parameterizes the reconciler.
type Policy struct {
	SpeedCap float64
}

// DefaultPolicy returns the standard reconciliation policy.
func DefaultPolicy() Policy {
	return Policy{SpeedCap: DefaultSpeedCap}
}

func (p Policy) validate() error {
	if math.IsNaN(p.SpeedCap) || math.IsInf(p.SpeedCap, 0) || p.SpeedCap < 1 {
		return services.Wrap(services.ErrConfiguration, "sync", "policy", fmt.Sprintf("speed cap %v must be >= 1", p.SpeedCap), nil)
	}
	return nil
}

// Decide computes the sync decision for one segment.
func Decide(segmentIndex int, slotMS, trimmedMS float64, policy Policy) (dub.SyncDecision, error) {
	if err := policy.validate(); err != nil {
		return dub.SyncDecision{}, err
	}
	if !finite(slotMS) || slotMS <= 0 {
		return dub.SyncDecision{}, services.Wrap(services.ErrValidation, "sync", "decide",
			fmt.Sprintf("segment %d: original slot duration %vms must be positive", segmentIndex, slotMS), nil)
	}
	if !finite(trimmedMS) || trimmedMS <= 0 {
		return dub.SyncDecision{}, services.Wrap(services.ErrValidation, "sync", "decide",
			fmt.Sprintf("segment %d: trimmed audio duration %vms must be positive", segmentIndex, trimmedMS), nil)
	}

	ratio := trimmedMS / slotMS
	decision := dub.SyncDecision{SegmentIndex: segmentIndex, SpeedFactor: 1}
	switch {
	case ratio <= 1+ratioEpsilon:
		decision.Strategy = dub.StrategyPad
		decision.PadMS = math.Max(0, slotMS-trimmedMS)
	case ratio <= policy.SpeedCap+ratioEpsilon:
		decision.Strategy = dub.StrategySpeedup
		decision.SpeedFactor = math.Min(ratio, policy.SpeedCap)
	default:
		decision.Strategy = dub.StrategyFreezeExtend
		decision.SpeedFactor = policy.SpeedCap
		decision.FreezeMS = math.Max(0, trimmedMS/policy.SpeedCap-slotMS)
	}
	return decision, nil
}

// SpedDurationMS returns how long the trimmed audio plays after the decision's
// speed factor is applied.
func SpedDurationMS(d dub.SyncDecision, trimmedMS float64) float64 {
	if d.SpeedFactor <= 0 {
		return trimmedMS
	}
	return trimmedMS / d.SpeedFactor
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
