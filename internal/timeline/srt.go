package timeline

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"
)

// maxCueLineRunes is the line length above which cue text is split in two.
const maxCueLineRunes = 42

// Cue is one subtitle entry on the output timeline.
type Cue struct {
	StartMS float64
	EndMS   float64
	Text    string
}

// CueFor builds the cue of a placed segment. Speech in the output begins
// SpeechOffsetMS into the clip; the cue ends with the clip.
func CueFor(outputStartMS, speechOffsetMS, clipDurationMS float64, text string) Cue {
	start := outputStartMS + math.Max(0, math.Min(speechOffsetMS, clipDurationMS))
	return Cue{StartMS: start, EndMS: outputStartMS + clipDurationMS, Text: text}
}

// WriteSRT writes cues in SubRip format, sorted by start time, skipping
// empty cues.
func WriteSRT(w io.Writer, cues []Cue) error {
	sorted := make([]Cue, 0, len(cues))
	for _, c := range cues {
		if strings.TrimSpace(c.Text) == "" || c.EndMS <= c.StartMS {
			continue
		}
		sorted = append(sorted, c)
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].StartMS < sorted[j].StartMS })

	bw := bufio.NewWriter(w)
	for i, c := range sorted {
		if _, err := fmt.Fprintf(bw, "%d\n%s --> %s\n%s\n\n",
			i+1, formatSRTTime(c.StartMS), formatSRTTime(c.EndMS), layoutCueText(c.Text)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteSRTFile writes cues to path atomically.
func WriteSRTFile(path string, cues []Cue) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".srt-*")
	if err != nil {
		return fmt.Errorf("create subtitle temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := WriteSRT(tmp, cues); err != nil {
		tmp.Close()
		return fmt.Errorf("write subtitles: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close subtitles: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename subtitles: %w", err)
	}
	return nil
}

// formatSRTTime renders milliseconds as HH:MM:SS,mmm.
func formatSRTTime(ms float64) string {
	total := int64(math.Round(math.Max(0, ms)))
	hours := total / 3_600_000
	minutes := (total / 60_000) % 60
	seconds := (total / 1000) % 60
	millis := total % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, millis)
}

// layoutCueText keeps short text on one line and splits long text at the
// space nearest its middle.
func layoutCueText(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= maxCueLineRunes {
		return text
	}
	runes := []rune(text)
	mid := len(runes) / 2
	best := -1
	for offset := 0; offset < mid; offset++ {
		if mid-offset > 0 && runes[mid-offset] == ' ' {
			best = mid - offset
			break
		}
		if mid+offset < len(runes) && runes[mid+offset] == ' ' {
			best = mid + offset
			break
		}
	}
	if best <= 0 {
		return text
	}
	return string(runes[:best]) + "\n" + string(runes[best+1:])
}
