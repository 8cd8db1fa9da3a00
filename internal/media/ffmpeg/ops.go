package ffmpeg

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ExtractAudio writes a mono 16 kHz MP3 of the source's first audio stream,
// sized for the transcription collaborator.
func (t *Tool) ExtractAudio(ctx context.Context, source, output string) error {
	_, err := t.run(ctx, "extract-audio", []string{
		"-y", "-i", source,
		"-map", "0:a:0", "-vn",
		"-ac", "1", "-ar", "16000",
		"-c:a", "libmp3lame", "-b:a", "64k",
		output,
	})
	return err
}

// ExtractRange re-encodes r of an extracted audio file into output with the
// same transcription settings as ExtractAudio.
func (t *Tool) ExtractRange(ctx context.Context, input, output string, r Interval) error {
	_, err := t.run(ctx, "extract-range", []string{
		"-y", "-ss", seconds(r.StartMS), "-i", input,
		"-t", seconds(r.DurationMS()),
		"-ac", "1", "-ar", "16000",
		"-c:a", "libmp3lame", "-b:a", "64k",
		output,
	})
	return err
}

// Normalize converts synthesizer output to 44.1 kHz mono PCM WAV.
func (t *Tool) Normalize(ctx context.Context, input, output string) error {
	_, err := t.run(ctx, "normalize", []string{
		"-y", "-i", input,
		"-ac", "1", "-ar", "44100", "-c:a", "pcm_s16le",
		output,
	})
	return err
}

// KeepIntervals writes a copy of input containing only the given intervals,
// concatenated in order.
func (t *Tool) KeepIntervals(ctx context.Context, input, output string, keep []Interval) error {
	if len(keep) == 0 {
		return fmt.Errorf("ffmpeg keep-intervals: no intervals to keep")
	}
	terms := make([]string, 0, len(keep))
	for _, iv := range keep {
		terms = append(terms, fmt.Sprintf("between(t,%s,%s)", seconds(iv.StartMS), seconds(iv.EndMS)))
	}
	filter := fmt.Sprintf("aselect='%s',asetpts=N/SR/TB", strings.Join(terms, "+"))
	_, err := t.run(ctx, "keep-intervals", []string{
		"-y", "-i", input,
		"-af", filter,
		"-ac", "1", "-ar", "44100", "-c:a", "pcm_s16le",
		output,
	})
	return err
}

// ShapeSpec describes how trimmed audio is fitted to its output duration.
type ShapeSpec struct {
	Speed      float64 // atempo factor; 1 leaves tempo unchanged
	DelayMS    float64 // leading silence inserted after the tempo change
	DurationMS float64 // exact output length; shorter audio is padded
}

// ShapeAudio applies tempo, delay, and padding so output lasts exactly
// spec.DurationMS.
func (t *Tool) ShapeAudio(ctx context.Context, input, output string, spec ShapeSpec) error {
	if spec.DurationMS <= 0 {
		return fmt.Errorf("ffmpeg shape-audio: duration must be positive")
	}
	filters := make([]string, 0, 3)
	if spec.Speed > 0 && math.Abs(spec.Speed-1) > 1e-6 {
		filters = append(filters, "atempo="+strconv.FormatFloat(spec.Speed, 'f', 6, 64))
	}
	if delay := int64(math.Round(spec.DelayMS)); delay > 0 {
		filters = append(filters, fmt.Sprintf("adelay=%d:all=1", delay))
	}
	filters = append(filters, "apad")
	_, err := t.run(ctx, "shape-audio", []string{
		"-y", "-i", input,
		"-af", strings.Join(filters, ","),
		"-t", seconds(spec.DurationMS),
		"-ac", "1", "-ar", "44100", "-c:a", "pcm_s16le",
		output,
	})
	return err
}

// ClipSpec describes one rendered segment clip.
type ClipSpec struct {
	SourceVideo   string
	SourceStartMS float64
	SlotMS        float64
	AudioPath     string // empty keeps the source audio
	FreezeMS      float64
	OutputPath    string
}

// DurationMS returns the rendered clip length.
func (c ClipSpec) DurationMS() float64 { return c.SlotMS + c.FreezeMS }

// RenderClip cuts [start, start+slot) from the source video, holds the last
// frame for FreezeMS, and muxes in the prepared audio.
func (t *Tool) RenderClip(ctx context.Context, spec ClipSpec) error {
	if spec.SlotMS <= 0 {
		return fmt.Errorf("ffmpeg render-clip: slot must be positive")
	}
	if err := os.MkdirAll(filepath.Dir(spec.OutputPath), 0o755); err != nil {
		return fmt.Errorf("ffmpeg render-clip: %w", err)
	}
	video := "[0:v]setpts=PTS-STARTPTS"
	if spec.FreezeMS > 0 {
		video += ",tpad=stop_mode=clone:stop_duration=" + seconds(spec.FreezeMS)
	}
	video += "[v]"

	args := []string{
		"-y",
		"-ss", seconds(spec.SourceStartMS),
		"-t", seconds(spec.SlotMS),
		"-i", spec.SourceVideo,
	}
	audioMap := "0:a:0?"
	filter := video
	if spec.AudioPath != "" {
		args = append(args, "-i", spec.AudioPath)
		audioMap = "1:a:0"
	} else {
		filter += ";[0:a:0]apad[a]"
		audioMap = "[a]"
	}
	args = append(args,
		"-filter_complex", filter,
		"-map", "[v]", "-map", audioMap,
		"-c:v", t.videoCodec, "-preset", "veryfast", "-pix_fmt", "yuv420p",
		"-c:a", t.audioCodec, "-ar", "44100",
		"-t", seconds(spec.DurationMS()),
		"-movflags", "+faststart",
		spec.OutputPath,
	)
	_, err := t.run(ctx, "render-clip", args)
	return err
}

// Concat joins rendered clips in order using the concat demuxer.
func (t *Tool) Concat(ctx context.Context, clips []string, output string) error {
	if len(clips) == 0 {
		return fmt.Errorf("ffmpeg concat: no clips")
	}
	var list strings.Builder
	for _, clip := range clips {
		abs, err := filepath.Abs(clip)
		if err != nil {
			return fmt.Errorf("ffmpeg concat: %w", err)
		}
		list.WriteString("file '")
		list.WriteString(strings.ReplaceAll(abs, "'", `'\''`))
		list.WriteString("'\n")
	}
	listPath := output + ".concat.txt"
	if err := os.WriteFile(listPath, []byte(list.String()), 0o644); err != nil {
		return fmt.Errorf("ffmpeg concat: write list: %w", err)
	}
	defer os.Remove(listPath)
	_, err := t.run(ctx, "concat", []string{
		"-y", "-f", "concat", "-safe", "0", "-i", listPath,
		"-c", "copy", "-movflags", "+faststart",
		output,
	})
	return err
}
