// Package voice maps diarized speakers onto the fixed voice pool.
package voice

import (
	"fmt"

	"golang.org/x/text/language"

	"dubsync/internal/config"
	"dubsync/internal/dub"
)

// SlotCount is the number of speaker slots in the pool.
const SlotCount = 2

// OverflowPolicy decides which pool slot serves a speaker slot outside the pool.
type OverflowPolicy int

const (
	OverflowRoundRobin OverflowPolicy = iota + 1
	OverflowClamp
)

// ParseOverflowPolicy converts the configured policy name.
func ParseOverflowPolicy(value string) (OverflowPolicy, error) {
	switch value {
	case config.OverflowRoundRobin:
		return OverflowRoundRobin, nil
	case config.OverflowClamp:
		return OverflowClamp, nil
	default:
		return 0, fmt.Errorf("unknown overflow policy %q", value)
	}
}

type poolKey struct {
	slot   int
	gender dub.Gender
}

// Mapper is a pure (speaker slot, gender) -> voice lookup.
type Mapper struct {
	pool     map[poolKey]dub.VoiceProfile
	overflow OverflowPolicy
}

// New builds a mapper over exactly SlotCount x 2 profiles.
func New(profiles []dub.VoiceProfile, overflow OverflowPolicy) (*Mapper, error) {
	if overflow != OverflowRoundRobin && overflow != OverflowClamp {
		return nil, fmt.Errorf("voice: invalid overflow policy %d", int(overflow))
	}
	m := &Mapper{pool: make(map[poolKey]dub.VoiceProfile, len(profiles)), overflow: overflow}
	for _, p := range profiles {
		if p.SpeakerSlot < 0 || p.SpeakerSlot >= SlotCount {
			return nil, fmt.Errorf("voice: speaker slot %d outside pool", p.SpeakerSlot)
		}
		if p.Gender != dub.GenderMale && p.Gender != dub.GenderFemale {
			return nil, fmt.Errorf("voice: profile %q has unknown gender %q", p.VoiceID, p.Gender)
		}
		if _, err := language.Parse(p.Locale); err != nil {
			return nil, fmt.Errorf("voice: profile %q locale %q: %w", p.VoiceID, p.Locale, err)
		}
		key := poolKey{slot: p.SpeakerSlot, gender: p.Gender}
		if _, dup := m.pool[key]; dup {
			return nil, fmt.Errorf("voice: slot %d gender %s defined twice", p.SpeakerSlot, p.Gender)
		}
		m.pool[key] = p
	}
	if len(m.pool) != SlotCount*2 {
		return nil, fmt.Errorf("voice: pool needs %d profiles, got %d", SlotCount*2, len(m.pool))
	}
	return m, nil
}

// FromConfig builds a mapper from the [voices] section.
func FromConfig(cfg config.Voices) (*Mapper, error) {
	overflow, err := ParseOverflowPolicy(cfg.OverflowPolicy)
	if err != nil {
		return nil, err
	}
	profiles := make([]dub.VoiceProfile, 0, len(cfg.Pool))
	for _, entry := range cfg.Pool {
		gender, err := dub.ParseGender(entry.Gender)
		if err != nil {
			return nil, fmt.Errorf("voice: %w", err)
		}
		locale := entry.Locale
		if locale == "" {
			locale = cfg.TargetLocale
		}
		profiles = append(profiles, dub.VoiceProfile{
			VoiceID:     entry.VoiceID,
			Locale:      locale,
			Gender:      gender,
			SpeakerSlot: entry.SpeakerSlot,
		})
	}
	return New(profiles, overflow)
}

// Resolve returns the profile for a speaker. Unknown genders fall back to male.
func (m *Mapper) Resolve(speakerSlot int, gender dub.Gender) dub.VoiceProfile {
	if gender != dub.GenderFemale {
		gender = dub.GenderMale
	}
	return m.pool[poolKey{slot: m.slotFor(speakerSlot), gender: gender}]
}

// ForSegment resolves the voice for a dubbing segment.
func (m *Mapper) ForSegment(seg dub.DubSegment) dub.VoiceProfile {
	return m.Resolve(seg.SpeakerSlot, seg.Gender)
}

func (m *Mapper) slotFor(speakerSlot int) int {
	if speakerSlot >= 0 && speakerSlot < SlotCount {
		return speakerSlot
	}
	switch m.overflow {
	case OverflowClamp:
		if speakerSlot < 0 {
			return 0
		}
		return SlotCount - 1
	case OverflowRoundRobin:
		slot := speakerSlot % SlotCount
		if slot < 0 {
			slot += SlotCount
		}
		return slot
	default:
		panic(fmt.Sprintf("voice: unhandled overflow policy %d", int(m.overflow)))
	}
}
