package deps

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

const filterListing = `Filters:
  T.. = Timeline support
 ... adelay            A->A       Delay one or more audio channels.
 ... apad              A->A       Pad audio with silence.
 T.. atempo            A->A       Adjust audio tempo.
 ... silencedetect     A->A       Detect silence.
`

const encoderListing = `Encoders:
 ------
 A....D libmp3lame           libmp3lame MP3 (MPEG audio layer 3) (codec mp3)
 A..... aac                  AAC (Advanced Audio Coding)
`

func writeStub(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func listingRunner(t *testing.T) Runner {
	return func(_ context.Context, _ string, args ...string) (string, error) {
		switch args[len(args)-1] {
		case "-filters":
			return filterListing, nil
		case "-encoders":
			return encoderListing, nil
		}
		t.Fatalf("unexpected args %v", args)
		return "", nil
	}
}

func TestCheckFindsRequiredComponents(t *testing.T) {
	reqs := []Requirement{{
		Name:     "FFmpeg",
		Command:  writeStub(t, "ffmpeg"),
		Filters:  []string{"silencedetect", "atempo", "apad"},
		Encoders: []string{"libmp3lame", "aac", "copy"},
	}}
	results := Check(context.Background(), reqs, listingRunner(t))
	if len(results) != 1 || !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected ffmpeg available, got %#v", results)
	}
}

func TestCheckReportsMissingComponents(t *testing.T) {
	reqs := []Requirement{{
		Name:     "FFmpeg",
		Command:  writeStub(t, "ffmpeg"),
		Filters:  []string{"silencedetect", "tpad"},
		Encoders: []string{"libx264", "aac"},
	}}
	st := Check(context.Background(), reqs, listingRunner(t))[0]
	if st.Available {
		t.Fatal("expected ffmpeg without tpad and libx264 to be unavailable")
	}
	if !reflect.DeepEqual(st.Missing, []string{"tpad", "libx264"}) {
		t.Fatalf("unexpected missing list %v", st.Missing)
	}
	if !strings.Contains(st.Detail, "tpad, libx264") {
		t.Fatalf("unexpected detail %q", st.Detail)
	}
}

func TestCheckListingFailure(t *testing.T) {
	reqs := []Requirement{{Name: "FFmpeg", Command: writeStub(t, "ffmpeg"), Filters: []string{"apad"}}}
	run := func(context.Context, string, ...string) (string, error) { return "", errors.New("exit status 1") }
	st := Check(context.Background(), reqs, run)[0]
	if st.Available || !strings.Contains(st.Detail, "-filters failed") {
		t.Fatalf("unexpected status %#v", st)
	}
}

func TestCheckBinariesMissingAndUnconfigured(t *testing.T) {
	results := CheckBinaries([]Requirement{
		{Name: "FFmpeg", Command: "clearly-not-present-ffmpeg"},
		{Name: "FFprobe", Command: "  ", Optional: true},
		{Name: "Present", Command: writeStub(t, "ffprobe")},
	})
	if results[0].Available || results[0].Detail != `binary "clearly-not-present-ffmpeg" not found` {
		t.Fatalf("unexpected missing status %#v", results[0])
	}
	if results[1].Available || results[1].Detail != "command not configured" || !results[1].Optional {
		t.Fatalf("unexpected unconfigured status %#v", results[1])
	}
	if !results[2].Available {
		t.Fatalf("expected binary without component checks to be available, got %#v", results[2])
	}
}
