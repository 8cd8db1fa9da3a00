package dub

import (
	"fmt"
	"strings"
)

// Mode selects what a job produces.
type Mode int

const (
	ModeDubbing Mode = iota + 1
	ModeSubtitles
	ModeBoth
)

// ParseMode converts a user-supplied mode name.
func ParseMode(value string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "dubbing", "dub":
		return ModeDubbing, nil
	case "subtitles", "subtitle", "subs":
		return ModeSubtitles, nil
	case "both":
		return ModeBoth, nil
	default:
		return 0, fmt.Errorf("unknown mode %q (expected dubbing, subtitles, or both)", value)
	}
}

func (m Mode) String() string {
	switch m {
	case ModeDubbing:
		return "dubbing"
	case ModeSubtitles:
		return "subtitles"
	case ModeBoth:
		return "both"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Synthesizes reports whether the mode replaces the audio track.
func (m Mode) Synthesizes() bool {
	switch m {
	case ModeDubbing, ModeBoth:
		return true
	case ModeSubtitles:
		return false
	default:
		panic(fmt.Sprintf("dub: unhandled mode %d", int(m)))
	}
}

// EmitsSubtitles reports whether the mode writes a subtitle track.
func (m Mode) EmitsSubtitles() bool {
	switch m {
	case ModeSubtitles, ModeBoth:
		return true
	case ModeDubbing:
		return false
	default:
		panic(fmt.Sprintf("dub: unhandled mode %d", int(m)))
	}
}

// Gender is the diarized speaker gender.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// ParseGender normalizes gender tags from the enrichment collaborator.
func ParseGender(value string) (Gender, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "male", "m", "man":
		return GenderMale, nil
	case "female", "f", "woman":
		return GenderFemale, nil
	default:
		return "", fmt.Errorf("unknown gender %q", value)
	}
}

// Strategy is the correction applied by the reconciler.
type Strategy int

const (
	StrategyPad Strategy = iota + 1
	StrategySpeedup
	StrategyFreezeExtend
)

func (s Strategy) String() string {
	switch s {
	case StrategyPad:
		return "PAD"
	case StrategySpeedup:
		return "SPEEDUP"
	case StrategyFreezeExtend:
		return "FREEZE_EXTEND"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// ParseStrategy converts a stored strategy name.
func ParseStrategy(value string) (Strategy, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "PAD":
		return StrategyPad, nil
	case "SPEEDUP":
		return StrategySpeedup, nil
	case "FREEZE_EXTEND":
		return StrategyFreezeExtend, nil
	default:
		return 0, fmt.Errorf("unknown strategy %q", value)
	}
}
