package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"dubsync/internal/services"
)

// Runner executes ffmpeg and returns its stderr, where ffmpeg writes
// diagnostics such as silencedetect output.
type Runner interface {
	Run(ctx context.Context, args []string) (string, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, args []string) (string, error)

// Run implements Runner.
func (f RunnerFunc) Run(ctx context.Context, args []string) (string, error) {
	return f(ctx, args)
}

// ExecRunner runs a real ffmpeg binary.
type ExecRunner struct {
	Binary string
}

// Run implements Runner.
func (r ExecRunner) Run(ctx context.Context, args []string) (string, error) {
	binary := strings.TrimSpace(r.Binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	full := append([]string{"-hide_banner", "-nostdin"}, args...)
	cmd := exec.CommandContext(ctx, binary, full...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stderr.String(), err
}

// Tool bundles a runner with the codec settings shared by every invocation.
type Tool struct {
	runner     Runner
	videoCodec string
	audioCodec string
}

// New returns a Tool. Empty codecs default to libx264/aac.
func New(runner Runner, videoCodec, audioCodec string) *Tool {
	if videoCodec == "" {
		videoCodec = "libx264"
	}
	if audioCodec == "" {
		audioCodec = "aac"
	}
	return &Tool{runner: runner, videoCodec: videoCodec, audioCodec: audioCodec}
}

func (t *Tool) run(ctx context.Context, operation string, args []string) (string, error) {
	stderr, err := t.runner.Run(ctx, args)
	if err != nil {
		if ctx.Err() != nil {
			return stderr, services.Wrap(services.ErrCancelled, "ffmpeg", operation, "", ctx.Err())
		}
		return stderr, services.Wrap(services.ErrAssembly, "ffmpeg", operation, tail(stderr, 400), err)
	}
	return stderr, nil
}

func tail(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	return "…" + s[len(s)-limit:]
}

func seconds(ms float64) string {
	if ms < 0 {
		ms = 0
	}
	return fmt.Sprintf("%.3f", ms/1000)
}
