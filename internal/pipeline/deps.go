package pipeline

import (
	"context"
	"fmt"

	"dubsync/internal/collab"
	"dubsync/internal/config"
	"dubsync/internal/dub"
	"dubsync/internal/media/ffmpeg"
	"dubsync/internal/media/ffprobe"
	"dubsync/internal/notifications"
	"dubsync/internal/trimmer"
	"dubsync/internal/voice"
)

// Transcriber turns extracted source audio into timed spans.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) ([]dub.TranscriptSpan, error)
}

// Enricher translates spans and tags speaker, gender, and emotion.
type Enricher interface {
	Enrich(ctx context.Context, spans []dub.TranscriptSpan, targetLang string) ([]dub.EnrichedSpan, error)
}

// Condenser shortens a translation toward a target speaking time.
type Condenser interface {
	Condense(ctx context.Context, text, targetLang string, targetMS float64) (string, error)
}

// Synthesizer renders translated text with a pool voice.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voice dub.VoiceProfile, outPath string) error
}

// Media is the ffmpeg surface the pipeline drives.
type Media interface {
	ExtractAudio(ctx context.Context, source, output string) error
	ExtractRange(ctx context.Context, input, output string, r ffmpeg.Interval) error
	DetectSilence(ctx context.Context, input string, noiseDB, minSilenceMS, totalMS float64) ([]ffmpeg.Interval, error)
	Normalize(ctx context.Context, input, output string) error
	ShapeAudio(ctx context.Context, input, output string, spec ffmpeg.ShapeSpec) error
	RenderClip(ctx context.Context, spec ffmpeg.ClipSpec) error
	Concat(ctx context.Context, clips []string, output string) error
}

// Prober measures source media.
type Prober interface {
	DurationMS(ctx context.Context, path string) (float64, error)
}

// AudioTrimmer strips silence padding from synthesized audio.
type AudioTrimmer interface {
	Trim(ctx context.Context, input, output string) (trimmer.Result, error)
}

var (
	_ Media        = (*ffmpeg.Tool)(nil)
	_ Prober       = (*ffprobe.Prober)(nil)
	_ AudioTrimmer = (*trimmer.Trimmer)(nil)
	_ Transcriber  = (*collab.Transcriber)(nil)
	_ Enricher     = (*collab.Enricher)(nil)
	_ Condenser    = (*collab.Condenser)(nil)
	_ Synthesizer  = (*collab.Synthesizer)(nil)
)

// Deps bundles the collaborators an Engine drives. Condenser may be nil.
type Deps struct {
	Media       Media
	Prober      Prober
	Trimmer     AudioTrimmer
	Transcriber Transcriber
	Enricher    Enricher
	Condenser   Condenser
	Synthesizer Synthesizer
	Voices      *voice.Mapper
	Notifier    notifications.Service
}

func (d Deps) validate() error {
	switch {
	case d.Media == nil:
		return fmt.Errorf("pipeline: media tool is required")
	case d.Prober == nil:
		return fmt.Errorf("pipeline: prober is required")
	case d.Trimmer == nil:
		return fmt.Errorf("pipeline: trimmer is required")
	case d.Transcriber == nil, d.Enricher == nil, d.Synthesizer == nil:
		return fmt.Errorf("pipeline: transcriber, enricher, and synthesizer are required")
	case d.Voices == nil:
		return fmt.Errorf("pipeline: voice mapper is required")
	}
	return nil
}

// NewDeps wires the production collaborators from configuration.
func NewDeps(cfg *config.Config) (Deps, error) {
	client, err := collab.NewClient(cfg)
	if err != nil {
		return Deps{}, err
	}
	voices, err := voice.FromConfig(cfg.Voices)
	if err != nil {
		return Deps{}, err
	}
	tool := ffmpeg.New(ffmpeg.ExecRunner{Binary: cfg.FFmpeg.FFmpegBinary}, cfg.FFmpeg.VideoCodec, cfg.FFmpeg.AudioCodec)
	prober := ffprobe.NewProber(cfg.FFmpeg.FFprobeBinary, nil)
	trimPolicy := trimmer.Policy{
		MinSilenceMS: float64(cfg.Sync.SilenceMinMS),
		GuardMS:      float64(cfg.Sync.WordGuardMS),
		NoiseDB:      cfg.Sync.SilenceNoiseDB,
	}

	deps := Deps{
		Media:       tool,
		Prober:      prober,
		Trimmer:     trimmer.New(tool, prober, trimPolicy),
		Transcriber: collab.NewTranscriber(client, cfg.OpenAI.TranscribeModel),
		Enricher:    collab.NewEnricher(client, cfg.OpenAI.EnrichModel),
		Synthesizer: collab.NewSynthesizer(client, cfg.OpenAI.TTSModel),
		Voices:      voices,
		Notifier:    notifications.NewService(cfg),
	}
	if cfg.Sync.CondenseRatio > 0 {
		deps.Condenser = collab.NewCondenser(client, cfg.OpenAI.EnrichModel)
	}
	return deps, nil
}
