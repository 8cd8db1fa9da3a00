package config

const (
	defaultStagingDir          = "~/.local/share/dubsync/staging"
	defaultOutputDir           = "~/.local/share/dubsync/output"
	defaultLogDir              = "~/.local/share/dubsync/logs"
	defaultAPIBind             = "127.0.0.1:7590"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultLogRetentionDays    = 30
	defaultMergeGapMS          = 750
	defaultMaxSegmentMS        = 15000
	defaultSilenceMinMS        = 200
	defaultWordGuardMS         = 50
	defaultSilenceNoiseDB      = -35.0
	defaultSpeedCap            = 1.15
	defaultMaxTotalDriftMS     = 120000
	defaultCondenseRatio       = 1.3
	defaultCharsPerSecond      = 13.0
	defaultTargetLocale        = "ar-EG"
	defaultOverflowPolicy      = OverflowRoundRobin
	defaultWorkerConcurrency   = 4
	defaultRetryAttempts       = 1
	defaultRetryBaseDelayMS    = 500
	defaultRetryMaxDelayMS     = 5000
	defaultTTSRequestsPerMin   = 120
	defaultOpenAIBaseURL       = "https://api.openai.com/v1"
	defaultTranscribeModel     = "whisper-1"
	defaultEnrichModel         = "gpt-4o-mini"
	defaultTTSModel            = "tts-1"
	defaultOpenAITimeout       = 120
	defaultTranscribeChunkSecs = 300
	defaultEnrichBatchSize     = 40
	maxTranscribeChunkSecs     = 2600
	defaultFFmpegBinary        = "ffmpeg"
	defaultFFprobeBinary       = "ffprobe"
	defaultVideoCodec          = "libx264"
	defaultAudioCodec          = "aac"
	defaultFailurePolicy       = FailurePolicyIsolate
	defaultJobMode             = "dubbing"
	defaultTargetLang          = "ar"
	defaultStagingRetentionHrs = 24
	defaultNotifyTimeout       = 10
	defaultNotifyJobCompletion = true
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			OutputDir:  defaultOutputDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		Sync: Sync{
			MergeGapMS:      defaultMergeGapMS,
			MaxSegmentMS:    defaultMaxSegmentMS,
			SilenceMinMS:    defaultSilenceMinMS,
			WordGuardMS:     defaultWordGuardMS,
			SilenceNoiseDB:  defaultSilenceNoiseDB,
			SpeedCap:        defaultSpeedCap,
			MaxTotalDriftMS: defaultMaxTotalDriftMS,
			CondenseRatio:   defaultCondenseRatio,
			CharsPerSecond:  defaultCharsPerSecond,
		},
		Voices: Voices{
			TargetLocale:   defaultTargetLocale,
			OverflowPolicy: defaultOverflowPolicy,
			Pool: []VoiceEntry{
				{SpeakerSlot: 0, Gender: "male", VoiceID: "onyx"},
				{SpeakerSlot: 0, Gender: "female", VoiceID: "nova"},
				{SpeakerSlot: 1, Gender: "male", VoiceID: "echo"},
				{SpeakerSlot: 1, Gender: "female", VoiceID: "shimmer"},
			},
		},
		Workers: Workers{
			Concurrency:          defaultWorkerConcurrency,
			RetryAttempts:        defaultRetryAttempts,
			RetryBaseDelayMS:     defaultRetryBaseDelayMS,
			RetryMaxDelayMS:      defaultRetryMaxDelayMS,
			TTSRequestsPerMinute: defaultTTSRequestsPerMin,
		},
		OpenAI: OpenAI{
			BaseURL:         defaultOpenAIBaseURL,
			TranscribeModel: defaultTranscribeModel,
			EnrichModel:     defaultEnrichModel,
			TTSModel:        defaultTTSModel,
			TimeoutSeconds:  defaultOpenAITimeout,

			TranscribeChunkSeconds: defaultTranscribeChunkSecs,
			EnrichBatchSize:        defaultEnrichBatchSize,
		},
		FFmpeg: FFmpeg{
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
			VideoCodec:    defaultVideoCodec,
			AudioCodec:    defaultAudioCodec,
		},
		Jobs: Jobs{
			FailurePolicy:     defaultFailurePolicy,
			DefaultMode:       defaultJobMode,
			DefaultTargetLang: defaultTargetLang,
			ConcatOnComplete:  true,

			StagingRetentionHours: defaultStagingRetentionHrs,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			JobCompletion:  defaultNotifyJobCompletion,
			Errors:         true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
