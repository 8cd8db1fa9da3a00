package config

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/language"

	"dubsync/internal/dub"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateVoices(); err != nil {
		return err
	}
	if err := c.validateWorkers(); err != nil {
		return err
	}
	if err := c.validateOpenAI(); err != nil {
		return err
	}
	if err := c.validateJobs(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateSync() error {
	if err := ensurePositiveMap(map[string]int{
		"sync.merge_gap_ms":   c.Sync.MergeGapMS,
		"sync.max_segment_ms": c.Sync.MaxSegmentMS,
		"sync.silence_min_ms": c.Sync.SilenceMinMS,
	}); err != nil {
		return err
	}
	if c.Sync.WordGuardMS < 0 {
		return errors.New("sync.word_guard_ms must be non-negative")
	}
	if 2*c.Sync.WordGuardMS >= c.Sync.SilenceMinMS {
		return errors.New("sync.silence_min_ms must exceed twice sync.word_guard_ms")
	}
	if c.Sync.MinConfidence < 0 || c.Sync.MinConfidence > 1 {
		return errors.New("sync.min_confidence must be between 0 and 1")
	}
	if c.Sync.SilenceNoiseDB >= 0 {
		return errors.New("sync.silence_noise_db must be negative")
	}
	if math.IsNaN(c.Sync.SpeedCap) || c.Sync.SpeedCap < 1 || c.Sync.SpeedCap > 2 {
		return errors.New("sync.speed_cap must be between 1.0 and 2.0")
	}
	if c.Sync.MaxTotalDriftMS < 0 {
		return errors.New("sync.max_total_drift_ms must be non-negative")
	}
	if c.Sync.CondenseRatio != 0 && c.Sync.CondenseRatio < 1 {
		return errors.New("sync.condense_ratio must be 0 (disabled) or at least 1.0")
	}
	if c.Sync.CondenseRatio > 0 && c.Sync.CharsPerSecond <= 0 {
		return errors.New("sync.chars_per_second must be positive when condensing is enabled")
	}
	return nil
}

func (c *Config) validateVoices() error {
	if _, err := language.Parse(c.Voices.TargetLocale); err != nil {
		return fmt.Errorf("voices.target_locale %q is not a valid language tag", c.Voices.TargetLocale)
	}
	switch c.Voices.OverflowPolicy {
	case OverflowRoundRobin, OverflowClamp:
	default:
		return fmt.Errorf("voices.overflow_policy must be %q or %q", OverflowRoundRobin, OverflowClamp)
	}
	if len(c.Voices.Pool) != 4 {
		return fmt.Errorf("voices.pool must define exactly 4 voices (2 speaker slots x 2 genders), got %d", len(c.Voices.Pool))
	}
	seen := make(map[string]struct{}, len(c.Voices.Pool))
	for i, entry := range c.Voices.Pool {
		if entry.SpeakerSlot < 0 || entry.SpeakerSlot > 1 {
			return fmt.Errorf("voices.pool[%d].speaker_slot must be 0 or 1", i)
		}
		if _, err := dub.ParseGender(entry.Gender); err != nil {
			return fmt.Errorf("voices.pool[%d].gender: %w", i, err)
		}
		if entry.VoiceID == "" {
			return fmt.Errorf("voices.pool[%d].voice_id must be set", i)
		}
		if _, err := language.Parse(entry.Locale); err != nil {
			return fmt.Errorf("voices.pool[%d].locale %q is not a valid language tag", i, entry.Locale)
		}
		key := fmt.Sprintf("%d/%s", entry.SpeakerSlot, entry.Gender)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("voices.pool defines slot %d gender %s more than once", entry.SpeakerSlot, entry.Gender)
		}
		seen[key] = struct{}{}
	}
	return nil
}

func (c *Config) validateWorkers() error {
	if err := ensurePositiveMap(map[string]int{
		"workers.concurrency":             c.Workers.Concurrency,
		"workers.retry_base_delay_ms":     c.Workers.RetryBaseDelayMS,
		"workers.retry_max_delay_ms":      c.Workers.RetryMaxDelayMS,
		"workers.tts_requests_per_minute": c.Workers.TTSRequestsPerMinute,
	}); err != nil {
		return err
	}
	if c.Workers.RetryAttempts < 0 {
		return errors.New("workers.retry_attempts must be non-negative")
	}
	if c.Workers.RetryMaxDelayMS < c.Workers.RetryBaseDelayMS {
		return errors.New("workers.retry_max_delay_ms must be at least workers.retry_base_delay_ms")
	}
	return nil
}

func (c *Config) validateOpenAI() error {
	if c.OpenAI.TimeoutSeconds <= 0 {
		return errors.New("openai.timeout_seconds must be positive")
	}
	// 64 kbps extraction puts 20 MB at about 2600 s; the upload cap is 25 MB.
	if c.OpenAI.TranscribeChunkSeconds <= 0 || c.OpenAI.TranscribeChunkSeconds > maxTranscribeChunkSecs {
		return fmt.Errorf("openai.transcribe_chunk_seconds must be between 1 and %d", maxTranscribeChunkSecs)
	}
	if c.OpenAI.EnrichBatchSize <= 0 {
		return errors.New("openai.enrich_batch_size must be positive")
	}
	if !strings.HasPrefix(c.OpenAI.BaseURL, "http://") && !strings.HasPrefix(c.OpenAI.BaseURL, "https://") {
		return fmt.Errorf("openai.base_url must be an http(s) URL, got %q", c.OpenAI.BaseURL)
	}
	return nil
}

// RequireOpenAI reports a configuration error when no collaborator key is set.
// Commands that only read job state do not need a key.
func (c *Config) RequireOpenAI() error {
	if c.OpenAI.APIKey != "" {
		return nil
	}
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = "~/.config/dubsync/config.toml"
	}
	return fmt.Errorf("openai.api_key is required. Set OPENAI_API_KEY env var or edit %s (create with 'dubsync config init')", defaultPath)
}

func (c *Config) validateJobs() error {
	switch c.Jobs.FailurePolicy {
	case FailurePolicyIsolate, FailurePolicyFailJob:
	default:
		return fmt.Errorf("jobs.failure_policy must be %q or %q", FailurePolicyIsolate, FailurePolicyFailJob)
	}
	if _, err := dub.ParseMode(c.Jobs.DefaultMode); err != nil {
		return fmt.Errorf("jobs.default_mode: %w", err)
	}
	if _, err := language.Parse(c.Jobs.DefaultTargetLang); err != nil {
		return fmt.Errorf("jobs.default_target_lang %q is not a valid language tag", c.Jobs.DefaultTargetLang)
	}
	if c.Jobs.StagingRetentionHours < 0 {
		return errors.New("jobs.staging_retention_hours must be non-negative")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not recognised", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be non-negative")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
