package ffmpeg_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dubsync/internal/media/ffmpeg"
	"dubsync/internal/services"
)

type recorder struct {
	calls  [][]string
	stderr string
	err    error
}

func (r *recorder) Run(_ context.Context, args []string) (string, error) {
	r.calls = append(r.calls, append([]string(nil), args...))
	return r.stderr, r.err
}

func (r *recorder) joined(i int) string { return strings.Join(r.calls[i], " ") }

func TestParseSilenceOutput(t *testing.T) {
	output := strings.Join([]string{
		"[silencedetect @ 0x1] silence_start: -0.002",
		"[silencedetect @ 0x1] silence_end: 0.4 | silence_duration: 0.402",
		"size=N/A time=00:00:01.00",
		"[silencedetect @ 0x1] silence_start: 1.25",
		"[silencedetect @ 0x1] silence_end: 1.75 | silence_duration: 0.5",
		"[silencedetect @ 0x1] silence_start: 2.8",
	}, "\n")
	runs := ffmpeg.ParseSilenceOutput(output, 3000)
	want := []ffmpeg.Interval{{0, 400}, {1250, 1750}, {2800, 3000}}
	if len(runs) != len(want) {
		t.Fatalf("expected %d runs, got %+v", len(want), runs)
	}
	for i := range want {
		if runs[i] != want[i] {
			t.Fatalf("run %d = %+v, want %+v", i, runs[i], want[i])
		}
	}
}

func TestDetectSilenceBuildsFilter(t *testing.T) {
	rec := &recorder{stderr: "silence_start: 0.5\nsilence_end: 0.9\n"}
	tool := ffmpeg.New(rec, "", "")
	runs, err := tool.DetectSilence(context.Background(), "in.wav", -35, 200, 2000)
	if err != nil {
		t.Fatalf("DetectSilence failed: %v", err)
	}
	if len(runs) != 1 || runs[0].StartMS != 500 || runs[0].EndMS != 900 {
		t.Fatalf("unexpected runs %+v", runs)
	}
	if !strings.Contains(rec.joined(0), "silencedetect=noise=-35.0dB:d=0.200") {
		t.Fatalf("unexpected args: %s", rec.joined(0))
	}
}

func TestExtractRangeSeeksAndBoundsDuration(t *testing.T) {
	rec := &recorder{}
	tool := ffmpeg.New(rec, "", "")
	if err := tool.ExtractRange(context.Background(), "source.mp3", "chunk_001.mp3", ffmpeg.Interval{StartMS: 300_000, EndMS: 541_250}); err != nil {
		t.Fatalf("ExtractRange failed: %v", err)
	}
	got := rec.joined(0)
	if !strings.Contains(got, "-ss 300.000 -i source.mp3 -t 241.250") || !strings.HasSuffix(got, "chunk_001.mp3") {
		t.Fatalf("unexpected args: %s", got)
	}
}

func TestRunFailureWrapsAssemblyError(t *testing.T) {
	rec := &recorder{stderr: "Invalid data found when processing input", err: errors.New("exit status 1")}
	tool := ffmpeg.New(rec, "", "")
	err := tool.Normalize(context.Background(), "in.mp3", "out.wav")
	if !errors.Is(err, services.ErrAssembly) {
		t.Fatalf("expected assembly error, got %v", err)
	}
	if !strings.Contains(err.Error(), "Invalid data") {
		t.Fatalf("expected stderr tail in error, got %v", err)
	}
}

func TestShapeAudioFilterChain(t *testing.T) {
	rec := &recorder{}
	tool := ffmpeg.New(rec, "", "")
	if err := tool.ShapeAudio(context.Background(), "in.wav", "out.wav", ffmpeg.ShapeSpec{Speed: 1.1, DelayMS: 120, DurationMS: 2000}); err != nil {
		t.Fatalf("ShapeAudio failed: %v", err)
	}
	args := rec.joined(0)
	for _, fragment := range []string{"atempo=1.100000,adelay=120:all=1,apad", "-t 2.000"} {
		if !strings.Contains(args, fragment) {
			t.Fatalf("expected %q in %s", fragment, args)
		}
	}
	rec.calls = nil
	if err := tool.ShapeAudio(context.Background(), "in.wav", "out.wav", ffmpeg.ShapeSpec{Speed: 1, DurationMS: 500}); err != nil {
		t.Fatalf("ShapeAudio failed: %v", err)
	}
	if strings.Contains(rec.joined(0), "atempo") || strings.Contains(rec.joined(0), "adelay") {
		t.Fatalf("expected plain padding, got %s", rec.joined(0))
	}
}

func TestRenderClipFreezeAndAudio(t *testing.T) {
	rec := &recorder{}
	tool := ffmpeg.New(rec, "libx264", "aac")
	out := filepath.Join(t.TempDir(), "clips", "segment_0001.mp4")
	err := tool.RenderClip(context.Background(), ffmpeg.ClipSpec{
		SourceVideo:   "src.mp4",
		SourceStartMS: 2000,
		SlotMS:        2000,
		AudioPath:     "seg.wav",
		FreezeMS:      608.7,
		OutputPath:    out,
	})
	if err != nil {
		t.Fatalf("RenderClip failed: %v", err)
	}
	args := rec.joined(0)
	for _, fragment := range []string{"-ss 2.000 -t 2.000 -i src.mp4", "-i seg.wav", "tpad=stop_mode=clone:stop_duration=0.609", "-map 1:a:0", "-t 2.609"} {
		if !strings.Contains(args, fragment) {
			t.Fatalf("expected %q in %s", fragment, args)
		}
	}
	if _, err := os.Stat(filepath.Dir(out)); err != nil {
		t.Fatalf("expected output dir to be created: %v", err)
	}
}

func TestRenderClipPassthroughKeepsSourceAudio(t *testing.T) {
	rec := &recorder{}
	tool := ffmpeg.New(rec, "", "")
	err := tool.RenderClip(context.Background(), ffmpeg.ClipSpec{
		SourceVideo: "src.mp4",
		SlotMS:      1500,
		OutputPath:  filepath.Join(t.TempDir(), "c.mp4"),
	})
	if err != nil {
		t.Fatalf("RenderClip failed: %v", err)
	}
	args := rec.joined(0)
	if strings.Contains(args, "tpad") {
		t.Fatalf("unexpected freeze in passthrough: %s", args)
	}
	if !strings.Contains(args, "[0:a:0]apad[a]") || !strings.Contains(args, "-map [a]") {
		t.Fatalf("expected source audio mapping, got %s", args)
	}
}

func TestConcatWritesListAndCleansUp(t *testing.T) {
	dir := t.TempDir()
	var listContent string
	runner := ffmpeg.RunnerFunc(func(_ context.Context, args []string) (string, error) {
		for i, a := range args {
			if a == "-i" {
				data, err := os.ReadFile(args[i+1])
				if err != nil {
					return "", err
				}
				listContent = string(data)
			}
		}
		return "", nil
	})
	tool := ffmpeg.New(runner, "", "")
	clips := []string{filepath.Join(dir, "a.mp4"), filepath.Join(dir, "b.mp4")}
	out := filepath.Join(dir, "final.mp4")
	if err := tool.Concat(context.Background(), clips, out); err != nil {
		t.Fatalf("Concat failed: %v", err)
	}
	if !strings.Contains(listContent, "a.mp4'\nfile '") || !strings.HasSuffix(listContent, "b.mp4'\n") {
		t.Fatalf("unexpected concat list %q", listContent)
	}
	if _, err := os.Stat(out + ".concat.txt"); !os.IsNotExist(err) {
		t.Fatalf("expected concat list removed, stat err=%v", err)
	}
}
