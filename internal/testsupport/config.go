package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"dubsync/internal/config"
	"dubsync/internal/preflight"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.OpenAI.APIKey = "test"
	cfgVal.Paths.StagingDir = filepath.Join(base, "staging")
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Workers.RetryBaseDelayMS = 1
	cfgVal.Workers.RetryMaxDelayMS = 2
	cfgVal.Workers.TTSRequestsPerMinute = 60000
	for i := range cfgVal.Voices.Pool {
		cfgVal.Voices.Pool[i].Locale = cfgVal.Voices.TargetLocale
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithFailurePolicy sets the job failure policy.
func WithFailurePolicy(policy string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Jobs.FailurePolicy = policy
	}
}

// WithAPIToken sets the bearer token required by the HTTP surface.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// WithDriftCeiling overrides sync.max_total_drift_ms.
func WithDriftCeiling(ms int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sync.MaxTotalDriftMS = ms
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg and ffprobe are stubbed.
// A stubbed ffmpeg lists every filter and encoder the pipeline checks for.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		for _, name := range names {
			var stdout string
			if name == "ffmpeg" {
				components := append([]string{"libmp3lame", "pcm_s16le", b.cfg.FFmpeg.VideoCodec, b.cfg.FFmpeg.AudioCodec}, preflight.FFmpegFilters...)
				stdout = componentListing(components...)
			}
			WriteStubBinary(b.t, binDir, name, stdout)
		}
		b.t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StagingDir)
}
