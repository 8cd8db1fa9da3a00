package jobs

import (
	"fmt"
	"strings"
	"time"

	"dubsync/internal/dub"
	"dubsync/internal/services"
)

// SegmentStatus is the lifecycle of one segment record.
type SegmentStatus string

const (
	SegmentPending    SegmentStatus = "pending"
	SegmentProcessing SegmentStatus = "processing"
	SegmentReady      SegmentStatus = "ready"
	SegmentFailed     SegmentStatus = "failed"
	SegmentCancelled  SegmentStatus = "cancelled"
)

var allSegmentStatuses = []SegmentStatus{
	SegmentPending,
	SegmentProcessing,
	SegmentReady,
	SegmentFailed,
	SegmentCancelled,
}

// Terminal reports whether no further forward transition exists.
func (s SegmentStatus) Terminal() bool {
	return s == SegmentReady || s == SegmentFailed || s == SegmentCancelled
}

// ParseSegmentStatus validates a status name.
func ParseSegmentStatus(value string) (SegmentStatus, error) {
	status := SegmentStatus(strings.ToLower(strings.TrimSpace(value)))
	for _, known := range allSegmentStatuses {
		if status == known {
			return status, nil
		}
	}
	return "", fmt.Errorf("unknown segment status %q", value)
}

// FailureStatus maps a segment error to the terminal status it produces.
func FailureStatus(err error) SegmentStatus {
	if services.IsCancelled(err) {
		return SegmentCancelled
	}
	return SegmentFailed
}

// JobStatus is the derived, read-only status of a job.
type JobStatus string

const (
	JobIngesting             JobStatus = "ingesting"
	JobPending               JobStatus = "pending"
	JobInProgress            JobStatus = "in_progress"
	JobCompleted             JobStatus = "completed"
	JobCompletedWithFailures JobStatus = "completed_with_failures"
	JobFailed                JobStatus = "failed"
	JobCancelled             JobStatus = "cancelled"
)

// Lifecycle is the stored coarse state of a job. It captures the phases
// that segment counts cannot express.
type Lifecycle string

const (
	LifecycleIngesting Lifecycle = "ingesting"
	LifecycleActive    Lifecycle = "active"
	LifecycleCancelled Lifecycle = "cancelled"
	LifecycleError     Lifecycle = "error"
)

// FailurePolicy decides whether one failed segment fails the job.
type FailurePolicy string

const (
	FailurePolicyIsolate FailurePolicy = "isolate"
	FailurePolicyFailJob FailurePolicy = "fail_job"
)

// SegmentCounts tallies segments per status.
type SegmentCounts map[SegmentStatus]int

// Total returns the number of counted segments.
func (c SegmentCounts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// DeriveStatus computes a job's status.
func DeriveStatus(lifecycle Lifecycle, counts SegmentCounts, policy FailurePolicy) JobStatus {
	switch lifecycle {
	case LifecycleIngesting:
		return JobIngesting
	case LifecycleError:
		return JobFailed
	}

	total := counts.Total()
	ready := counts[SegmentReady]
	failed := counts[SegmentFailed]
	terminal := ready + failed + counts[SegmentCancelled]

	if ready == total {
		return JobCompleted
	}
	if failed > 0 && policy == FailurePolicyFailJob {
		return JobFailed
	}
	if lifecycle == LifecycleCancelled {
		return JobCancelled
	}
	if terminal == total {
		if failed > 0 {
			return JobCompletedWithFailures
		}
		return JobCancelled
	}
	if counts[SegmentPending] == total {
		return JobPending
	}
	return JobInProgress
}

// Job is a stored job with its derived status.
type Job struct {
	dub.Job
	Lifecycle    Lifecycle
	Status       JobStatus
	DriftMS      float64
	FinalPath    string
	SubtitlePath string
	ErrorMessage string
	UpdatedAt    time.Time
	Counts       SegmentCounts
}

// Segment is one stored segment record.
type Segment struct {
	JobID string
	dub.DubSegment

	Status   SegmentStatus
	MediaURL string
	ClipPath string
	Attempts int

	Strategy       dub.Strategy
	SpeedFactor    float64
	PadMS          float64
	FreezeMS       float64
	RawAudioMS     float64
	TrimmedAudioMS float64
	DriftBeforeMS  float64
	OutputStartMS  float64
	ClipDurationMS float64
	Placed         bool
	ErrorKind      string
	ErrorMessage   string
	UpdatedAt      time.Time
}

// Decision returns the stored sync decision, if one was recorded.
func (s Segment) Decision() (dub.SyncDecision, bool) {
	if s.Strategy == 0 {
		return dub.SyncDecision{}, false
	}
	return dub.SyncDecision{
		SegmentIndex: s.Index,
		Strategy:     s.Strategy,
		SpeedFactor:  s.SpeedFactor,
		PadMS:        s.PadMS,
		FreezeMS:     s.FreezeMS,
	}, true
}

// Rendered is what the assembler records when a segment becomes ready.
type Rendered struct {
	Decision       dub.SyncDecision
	RawAudioMS     float64
	TrimmedAudioMS float64
	Clip           dub.RenderedClip
	ClipPath       string
	MediaURL       string
}

// Failure is what is recorded when a segment fails or is cancelled.
type Failure struct {
	Err error
	// DriftBeforeMS places the failed segment on the output timeline when
	// the assembler reached it; ignored when Placed is false.
	DriftBeforeMS float64
	Placed        bool
}
