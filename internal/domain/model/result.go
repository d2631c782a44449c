package model

import "time"

// ApplyResult describes a successful application submission. Failures are
// reported through the error taxonomy, not through this struct.
type ApplyResult struct {
	RecordID      string    `json:"record_id"`
	ResumeVersion string    `json:"resume_version,omitempty"`
	Confirmation  string    `json:"confirmation,omitempty"`
	Message       string    `json:"message,omitempty"`
	CompletedAt   time.Time `json:"completed_at"`
}

// RunSummary aggregates the outcome of one orchestrated run.
type RunSummary struct {
	RunID       string        `json:"run_id"`
	Platform    string        `json:"platform"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  time.Time     `json:"finished_at"`
	Duration    time.Duration `json:"duration"`
	Discovered  int           `json:"discovered"`
	New         int           `json:"new"`
	Requeued    int           `json:"requeued"`
	Skipped     int           `json:"skipped"`
	Applied     int           `json:"applied"`
	Failed      int           `json:"failed"`
	Reconciled  int           `json:"reconciled"`
	SearchError string        `json:"search_error,omitempty"`
}
