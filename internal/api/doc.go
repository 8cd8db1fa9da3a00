// Package api defines wire-format types, converters, and an HTTP client for
// the daemon's status surface. It translates internal job and segment models
// into transport-friendly DTOs that the CLI and progressive players can read
// without coupling to internal types.
//
// # Key Types
//
// Job: a job with its derived status, segment counts, and drift.
//
// Segment: one segment's status, media URL, and timing decision. Players poll
// a job and stream every ready segment in index order while later segments
// are still processing.
//
// DaemonStatus: running state, dependency availability, directory checks,
// and per-status segment counts.
//
// # Design Notes
//
// DTOs use snake_case JSON tags. Internal enums (jobs.SegmentStatus,
// jobs.JobStatus, dub.Strategy, dub.Mode) are exposed as strings.
// Timestamps use RFC3339 with milliseconds. Reads are eventually consistent:
// clients re-poll rather than subscribe.
package api
