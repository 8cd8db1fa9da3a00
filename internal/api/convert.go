package api

import (
	"path/filepath"

	"dubsync/internal/deps"
	"dubsync/internal/jobs"
	"dubsync/internal/preflight"
)

// FromJob converts a stored job to its API representation. mediaURL maps a
// job-level artifact file name to its public URL.
func FromJob(job *jobs.Job, mediaURL func(file string) string) Job {
	if job == nil {
		return Job{}
	}
	dto := Job{
		ID:            job.ID,
		SourcePath:    job.SourcePath,
		Mode:          job.Mode.String(),
		TargetLang:    job.TargetLang,
		Status:        string(job.Status),
		TotalSegments: job.TotalSegments,
		DurationMS:    job.DurationMS,
		DriftMS:       job.DriftMS,
		ErrorMessage:  job.ErrorMessage,
	}
	if len(job.Counts) > 0 {
		dto.Counts = make(map[string]int, len(job.Counts))
		for status, n := range job.Counts {
			dto.Counts[string(status)] = n
		}
	}
	if mediaURL != nil {
		if job.FinalPath != "" {
			dto.FinalURL = mediaURL(filepath.Base(job.FinalPath))
		}
		if job.SubtitlePath != "" {
			dto.SubtitleURL = mediaURL(filepath.Base(job.SubtitlePath))
		}
	}
	if !job.CreatedAt.IsZero() {
		dto.CreatedAt = job.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !job.UpdatedAt.IsZero() {
		dto.UpdatedAt = job.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromSegment converts a stored segment. Only ready segments expose a media
// URL.
func FromSegment(seg *jobs.Segment) Segment {
	if seg == nil {
		return Segment{}
	}
	dto := Segment{
		Index:          seg.Index,
		Status:         string(seg.Status),
		StartMS:        seg.StartMS,
		EndMS:          seg.EndMS,
		SourceText:     seg.SourceText,
		TranslatedText: seg.TranslatedText,
		SpeakerSlot:    seg.SpeakerSlot,
		Gender:         string(seg.Gender),
		Emotion:        seg.EmotionTag,
		Attempts:       seg.Attempts,
		ErrorKind:      seg.ErrorKind,
		ErrorMessage:   seg.ErrorMessage,
	}
	if seg.Status == jobs.SegmentReady {
		dto.MediaURL = seg.MediaURL
		dto.DurationMS = seg.ClipDurationMS
	}
	if seg.Placed {
		dto.OutputStartMS = seg.OutputStartMS
		dto.DriftBeforeMS = seg.DriftBeforeMS
	}
	if decision, ok := seg.Decision(); ok {
		dto.Strategy = decision.Strategy.String()
		dto.SpeedFactor = decision.SpeedFactor
		dto.PadMS = decision.PadMS
		dto.FreezeMS = decision.FreezeMS
	}
	return dto
}

// FromSegments converts segments in order.
func FromSegments(segs []*jobs.Segment) []Segment {
	out := make([]Segment, 0, len(segs))
	for _, seg := range segs {
		out = append(out, FromSegment(seg))
	}
	return out
}

// FromDependencies converts dependency checks.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, len(statuses))
	for i, dep := range statuses {
		out[i] = DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
			Missing:     dep.Missing,
		}
	}
	return out
}

// FromChecks converts preflight results.
func FromChecks(results []preflight.Result) []CheckResult {
	out := make([]CheckResult, len(results))
	for i, r := range results {
		out[i] = CheckResult{Name: r.Name, Passed: r.Passed, Detail: r.Detail}
	}
	return out
}

// FromCounts converts a segment tally keyed by status.
func FromCounts(counts jobs.SegmentCounts) map[string]int {
	out := make(map[string]int, len(counts))
	for status, n := range counts {
		out[string(status)] = n
	}
	return out
}

// FromHealth converts database diagnostics.
func FromHealth(h jobs.DatabaseHealth) *DatabaseStatus {
	return &DatabaseStatus{
		Path:          h.DBPath,
		SizeBytes:     h.DatabaseSize,
		SchemaVersion: h.SchemaVersion,
		IntegrityOK:   h.IntegrityOK,
		JobCount:      h.JobCount,
	}
}
