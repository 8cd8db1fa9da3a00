package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeVoices()
	c.normalizeOpenAI()
	c.normalizeFFmpeg()
	c.normalizeJobs()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("DUBSYNC_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	c.Paths.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.Paths.PublicBaseURL), "/")
	return nil
}

func (c *Config) normalizeVoices() {
	c.Voices.TargetLocale = strings.TrimSpace(c.Voices.TargetLocale)
	if c.Voices.TargetLocale == "" {
		c.Voices.TargetLocale = defaultTargetLocale
	}
	c.Voices.OverflowPolicy = strings.ToLower(strings.TrimSpace(c.Voices.OverflowPolicy))
	if c.Voices.OverflowPolicy == "" {
		c.Voices.OverflowPolicy = defaultOverflowPolicy
	}
	for i := range c.Voices.Pool {
		entry := &c.Voices.Pool[i]
		entry.Gender = strings.ToLower(strings.TrimSpace(entry.Gender))
		entry.VoiceID = strings.TrimSpace(entry.VoiceID)
		entry.Locale = strings.TrimSpace(entry.Locale)
		if entry.Locale == "" {
			entry.Locale = c.Voices.TargetLocale
		}
	}
}

func (c *Config) normalizeOpenAI() {
	c.OpenAI.APIKey = strings.TrimSpace(c.OpenAI.APIKey)
	if c.OpenAI.APIKey == "" {
		if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			c.OpenAI.APIKey = strings.TrimSpace(value)
		}
	}
	c.OpenAI.BaseURL = strings.TrimRight(strings.TrimSpace(c.OpenAI.BaseURL), "/")
	if c.OpenAI.BaseURL == "" {
		if value, ok := os.LookupEnv("OPENAI_BASE_URL"); ok && strings.TrimSpace(value) != "" {
			c.OpenAI.BaseURL = strings.TrimRight(strings.TrimSpace(value), "/")
		} else {
			c.OpenAI.BaseURL = defaultOpenAIBaseURL
		}
	}
	if strings.TrimSpace(c.OpenAI.TranscribeModel) == "" {
		c.OpenAI.TranscribeModel = defaultTranscribeModel
	}
	if strings.TrimSpace(c.OpenAI.EnrichModel) == "" {
		c.OpenAI.EnrichModel = defaultEnrichModel
	}
	if strings.TrimSpace(c.OpenAI.TTSModel) == "" {
		c.OpenAI.TTSModel = defaultTTSModel
	}
}

func (c *Config) normalizeFFmpeg() {
	if strings.TrimSpace(c.FFmpeg.FFmpegBinary) == "" {
		c.FFmpeg.FFmpegBinary = defaultFFmpegBinary
	}
	if strings.TrimSpace(c.FFmpeg.FFprobeBinary) == "" {
		c.FFmpeg.FFprobeBinary = defaultFFprobeBinary
	}
	if strings.TrimSpace(c.FFmpeg.VideoCodec) == "" {
		c.FFmpeg.VideoCodec = defaultVideoCodec
	}
	if strings.TrimSpace(c.FFmpeg.AudioCodec) == "" {
		c.FFmpeg.AudioCodec = defaultAudioCodec
	}
}

func (c *Config) normalizeJobs() {
	c.Jobs.FailurePolicy = strings.ToLower(strings.TrimSpace(c.Jobs.FailurePolicy))
	if c.Jobs.FailurePolicy == "" {
		c.Jobs.FailurePolicy = defaultFailurePolicy
	}
	c.Jobs.DefaultMode = strings.ToLower(strings.TrimSpace(c.Jobs.DefaultMode))
	if c.Jobs.DefaultMode == "" {
		c.Jobs.DefaultMode = defaultJobMode
	}
	c.Jobs.DefaultTargetLang = strings.TrimSpace(c.Jobs.DefaultTargetLang)
	if c.Jobs.DefaultTargetLang == "" {
		c.Jobs.DefaultTargetLang = defaultTargetLang
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
