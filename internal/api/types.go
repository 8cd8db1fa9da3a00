package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Job describes a job in a transport-friendly format.
type Job struct {
	ID            string         `json:"job_id"`
	SourcePath    string         `json:"source_path"`
	Mode          string         `json:"mode"`
	TargetLang    string         `json:"target_lang"`
	Status        string         `json:"status"`
	TotalSegments int            `json:"total_segments"`
	DurationMS    float64        `json:"duration_ms"`
	DriftMS       float64        `json:"drift_ms"`
	Counts        map[string]int `json:"counts,omitempty"`
	FinalURL      string         `json:"final_url,omitempty"`
	SubtitleURL   string         `json:"subtitle_url,omitempty"`
	ErrorMessage  string         `json:"error,omitempty"`
	Running       bool           `json:"running"`
	CreatedAt     string         `json:"created_at,omitempty"`
	UpdatedAt     string         `json:"updated_at,omitempty"`
	Segments      []Segment      `json:"segments,omitempty"`
}

// Segment describes one segment of a job.
type Segment struct {
	Index          int     `json:"segment_index"`
	Status         string  `json:"status"`
	MediaURL       string  `json:"media_url,omitempty"`
	StartMS        float64 `json:"start_ms"`
	EndMS          float64 `json:"end_ms"`
	OutputStartMS  float64 `json:"output_start_ms,omitempty"`
	DurationMS     float64 `json:"duration_ms,omitempty"`
	DriftBeforeMS  float64 `json:"drift_before_ms,omitempty"`
	Strategy       string  `json:"strategy,omitempty"`
	SpeedFactor    float64 `json:"speed_factor,omitempty"`
	PadMS          float64 `json:"pad_ms,omitempty"`
	FreezeMS       float64 `json:"freeze_ms,omitempty"`
	SourceText     string  `json:"source_text,omitempty"`
	TranslatedText string  `json:"translated_text,omitempty"`
	SpeakerSlot    int     `json:"speaker_slot"`
	Gender         string  `json:"gender,omitempty"`
	Emotion        string  `json:"emotion,omitempty"`
	Attempts       int     `json:"attempts"`
	ErrorKind      string  `json:"error_kind,omitempty"`
	ErrorMessage   string  `json:"error,omitempty"`
}

// JobListResponse wraps job list results.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// SubmitRequest creates a job.
type SubmitRequest struct {
	SourcePath string `json:"source_path"`
	Mode       string `json:"mode,omitempty"`
	TargetLang string `json:"target_lang,omitempty"`
}

// SubmitResponse reports the created job.
type SubmitResponse struct {
	JobID string `json:"job_id"`
	Job   Job    `json:"job"`
}

// CancelResponse reports a cancellation.
type CancelResponse struct {
	JobID     string `json:"job_id"`
	Cancelled int    `json:"cancelled_segments"`
}

// RetryResponse reports which segments were reset for retry.
type RetryResponse struct {
	JobID    string `json:"job_id"`
	Segments []int  `json:"segments"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string   `json:"name"`
	Command     string   `json:"command"`
	Description string   `json:"description"`
	Optional    bool     `json:"optional"`
	Available   bool     `json:"available"`
	Detail      string   `json:"detail,omitempty"`
	Missing     []string `json:"missing,omitempty"`
}

// CheckResult reports a readiness check.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// DatabaseStatus reports job database diagnostics.
type DatabaseStatus struct {
	Path          string `json:"path"`
	SizeBytes     int64  `json:"size_bytes"`
	SchemaVersion int    `json:"schema_version"`
	IntegrityOK   bool   `json:"integrity_ok"`
	JobCount      int    `json:"job_count"`
}

// DaemonStatus summarizes daemon health.
type DaemonStatus struct {
	Running       bool               `json:"running"`
	PID           int                `json:"pid"`
	StartedAt     string             `json:"started_at,omitempty"`
	LockFilePath  string             `json:"lock_file_path"`
	ActiveJobs    []string           `json:"active_jobs"`
	SegmentCounts map[string]int     `json:"segment_counts"`
	Dependencies  []DependencyStatus `json:"dependencies"`
	Checks        []CheckResult      `json:"checks"`
	Database      *DatabaseStatus    `json:"database,omitempty"`
}
