package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Overflow policies for speaker slots beyond the voice pool.
const (
	OverflowRoundRobin = "round_robin"
	OverflowClamp      = "clamp"
)

// Job failure policies.
const (
	FailurePolicyIsolate = "isolate"
	FailurePolicyFailJob = "fail_job"
)

// Paths contains directory and bind address configuration.
type Paths struct {
	StagingDir    string `toml:"staging_dir"`
	OutputDir     string `toml:"output_dir"`
	LogDir        string `toml:"log_dir"`
	APIBind       string `toml:"api_bind"`
	APIToken      string `toml:"api_token"`
	PublicBaseURL string `toml:"public_base_url"`
}

// Sync holds the elastic synchronization policy values.
type Sync struct {
	MergeGapMS      int     `toml:"merge_gap_ms"`
	MaxSegmentMS    int     `toml:"max_segment_ms"`
	MinConfidence   float64 `toml:"min_confidence"`
	SilenceMinMS    int     `toml:"silence_min_ms"`
	WordGuardMS     int     `toml:"word_guard_ms"`
	SilenceNoiseDB  float64 `toml:"silence_noise_db"`
	SpeedCap        float64 `toml:"speed_cap"`
	MaxTotalDriftMS int     `toml:"max_total_drift_ms"` // 0 disables the ceiling
	CondenseRatio   float64 `toml:"condense_ratio"`     // 0 disables condensing
	CharsPerSecond  float64 `toml:"chars_per_second"`
}

// VoiceEntry binds one (speaker slot, gender) pair to a synthesizer voice.
type VoiceEntry struct {
	SpeakerSlot int    `toml:"speaker_slot"`
	Gender      string `toml:"gender"`
	VoiceID     string `toml:"voice_id"`
	Locale      string `toml:"locale"`
}

// Voices configures the fixed voice pool.
type Voices struct {
	TargetLocale   string       `toml:"target_locale"`
	OverflowPolicy string       `toml:"overflow_policy"`
	Pool           []VoiceEntry `toml:"pool"`
}

// Workers configures the per-segment worker pool and retry policy.
type Workers struct {
	Concurrency          int `toml:"concurrency"`
	RetryAttempts        int `toml:"retry_attempts"`
	RetryBaseDelayMS     int `toml:"retry_base_delay_ms"`
	RetryMaxDelayMS      int `toml:"retry_max_delay_ms"`
	TTSRequestsPerMinute int `toml:"tts_requests_per_minute"`
}

// OpenAI contains connection settings for the speech and language collaborators.
type OpenAI struct {
	APIKey          string `toml:"api_key"`
	BaseURL         string `toml:"base_url"`
	TranscribeModel string `toml:"transcribe_model"`
	EnrichModel     string `toml:"enrich_model"`
	TTSModel        string `toml:"tts_model"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`

	// Long sources are transcribed in chunks cut at silences, and spans are
	// enriched in batches so each chat reply stays well under its token limit.
	TranscribeChunkSeconds int `toml:"transcribe_chunk_seconds"`
	EnrichBatchSize        int `toml:"enrich_batch_size"`
}

// FFmpeg contains media tool settings.
type FFmpeg struct {
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
	VideoCodec    string `toml:"video_codec"`
	AudioCodec    string `toml:"audio_codec"`
}

// Jobs contains job-level behaviour.
type Jobs struct {
	FailurePolicy     string `toml:"failure_policy"`
	DefaultMode       string `toml:"default_mode"`
	DefaultTargetLang string `toml:"default_target_lang"`
	ConcatOnComplete  bool   `toml:"concat_on_complete"`
	// StagingRetentionHours bounds how long intermediate audio of idle jobs
	// is kept; 0 keeps it forever.
	StagingRetentionHours int `toml:"staging_retention_hours"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	JobCompletion  bool   `toml:"job_completion"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for dubsync.
//
// Configuration sections by subsystem:
//   - Paths: working directories, API bind address, public media URL base
//   - Sync: batching, trimming, and reconciliation policy
//   - Voices: the 2x2 voice pool and overflow policy
//   - Workers: segment concurrency, retries, TTS rate limit
//   - OpenAI: transcription, enrichment, and speech synthesis collaborators
//   - FFmpeg: media binaries and codecs
//   - Jobs: failure policy and request defaults
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Sync          Sync          `toml:"sync"`
	Voices        Voices        `toml:"voices"`
	Workers       Workers       `toml:"workers"`
	OpenAI        OpenAI        `toml:"openai"`
	FFmpeg        FFmpeg        `toml:"ffmpeg"`
	Jobs          Jobs          `toml:"jobs"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/dubsync/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("dubsync.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the working directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.OutputDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// JobDir returns the output directory for a job's rendered media.
func (c *Config) JobDir(jobID string) string {
	return filepath.Join(c.Paths.OutputDir, jobID)
}

// JobStagingDir returns the scratch directory for a job's intermediate files.
func (c *Config) JobStagingDir(jobID string) string {
	return filepath.Join(c.Paths.StagingDir, jobID)
}

// DatabasePath returns the location of the job database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.LogDir, "jobs.db")
}

// StagingRetention returns the staging sweep age, or 0 when disabled.
func (c *Config) StagingRetention() time.Duration {
	return time.Duration(c.Jobs.StagingRetentionHours) * time.Hour
}

// LockPath returns the location of the daemon lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "dubsync.lock")
}

// TranscribeChunkMS returns the longest audio chunk sent for transcription.
func (c *Config) TranscribeChunkMS() float64 {
	return float64(c.OpenAI.TranscribeChunkSeconds) * 1000
}

// OpenAITimeout returns the collaborator request timeout.
func (c *Config) OpenAITimeout() time.Duration {
	return time.Duration(c.OpenAI.TimeoutSeconds) * time.Second
}

// RetryBaseDelay returns the first retry backoff.
func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.Workers.RetryBaseDelayMS) * time.Millisecond
}

// RetryMaxDelay returns the backoff ceiling.
func (c *Config) RetryMaxDelay() time.Duration {
	return time.Duration(c.Workers.RetryMaxDelayMS) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
