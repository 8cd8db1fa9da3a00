package jobs

import (
	"database/sql"
	"errors"
	"time"

	"dubsync/internal/dub"
)

const jobColumns = "id, source_path, mode, target_lang, lifecycle, total_segments, duration_ms, drift_ms, final_path, subtitle_path, error_message, created_at, updated_at"

const segmentColumns = "job_id, segment_index, start_ms, end_ms, speech_offset_ms, source_text, translated_text, speaker_slot, gender, emotion_tag, status, media_url, clip_path, attempts, strategy, speed_factor, pad_ms, freeze_ms, raw_audio_ms, trimmed_audio_ms, drift_before_ms, output_start_ms, clip_duration_ms, error_kind, error_message, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(scanner rowScanner) (*Job, error) {
	var (
		id, sourcePath, modeRaw, targetLang, lifecycle string
		totalSegments                                  int
		durationMS, driftMS                            float64
		finalPath, subtitlePath, errorMessage          sql.NullString
		createdRaw, updatedRaw                         string
	)
	if err := scanner.Scan(
		&id, &sourcePath, &modeRaw, &targetLang, &lifecycle,
		&totalSegments, &durationMS, &driftMS,
		&finalPath, &subtitlePath, &errorMessage,
		&createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}
	mode, err := dub.ParseMode(modeRaw)
	if err != nil {
		return nil, err
	}
	job := &Job{
		Job: dub.Job{
			ID:            id,
			SourcePath:    sourcePath,
			Mode:          mode,
			TargetLang:    targetLang,
			TotalSegments: totalSegments,
			DurationMS:    durationMS,
		},
		Lifecycle:    Lifecycle(lifecycle),
		DriftMS:      driftMS,
		FinalPath:    finalPath.String,
		SubtitlePath: subtitlePath.String,
		ErrorMessage: errorMessage.String,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}

func scanSegment(scanner rowScanner) (*Segment, error) {
	var (
		seg                                    Segment
		sourceText, translatedText             sql.NullString
		gender, emotion, statusRaw             sql.NullString
		mediaURL, clipPath, strategyRaw        sql.NullString
		speed, pad, freeze, rawAudio, trimmed  sql.NullFloat64
		driftBefore, outputStart, clipDuration sql.NullFloat64
		errorKind, errorMessage                sql.NullString
		updatedRaw                             string
	)
	if err := scanner.Scan(
		&seg.JobID, &seg.Index, &seg.StartMS, &seg.EndMS, &seg.SpeechOffsetMS,
		&sourceText, &translatedText, &seg.SpeakerSlot, &gender, &emotion,
		&statusRaw, &mediaURL, &clipPath, &seg.Attempts,
		&strategyRaw, &speed, &pad, &freeze, &rawAudio, &trimmed,
		&driftBefore, &outputStart, &clipDuration,
		&errorKind, &errorMessage, &updatedRaw,
	); err != nil {
		return nil, err
	}
	seg.SourceText = sourceText.String
	seg.TranslatedText = translatedText.String
	seg.Gender = dub.Gender(gender.String)
	seg.EmotionTag = emotion.String
	seg.Status = SegmentStatus(statusRaw.String)
	seg.MediaURL = mediaURL.String
	seg.ClipPath = clipPath.String
	if strategyRaw.Valid && strategyRaw.String != "" {
		strategy, err := dub.ParseStrategy(strategyRaw.String)
		if err != nil {
			return nil, err
		}
		seg.Strategy = strategy
	}
	seg.SpeedFactor = speed.Float64
	seg.PadMS = pad.Float64
	seg.FreezeMS = freeze.Float64
	seg.RawAudioMS = rawAudio.Float64
	seg.TrimmedAudioMS = trimmed.Float64
	seg.Placed = driftBefore.Valid
	seg.DriftBeforeMS = driftBefore.Float64
	seg.OutputStartMS = outputStart.Float64
	seg.ClipDurationMS = clipDuration.Float64
	seg.ErrorKind = errorKind.String
	seg.ErrorMessage = errorMessage.String
	if updated, err := parseTimeString(updatedRaw); err == nil {
		seg.UpdatedAt = updated
	}
	return &seg, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
