package notify

import (
	"context"
	"time"
)

// Severity constants recognised by downstream sinks. Run-level failures
// default to critical; per-posting apply failures are usually warnings.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
)

// FailurePayload is the canonical event emitted when a run aborts or an
// application attempt fails for good. Record fields are empty for
// run-level failures.
type FailurePayload struct {
	RunID      string
	Platform   string
	Stage      string
	RecordID   string
	JobTitle   string
	Company    string
	PostingURL string
	Attempts   int
	DryRun     bool
	Error      string
	ErrorClass string
	Severity   string
	OccurredAt time.Time
	Metadata   map[string]string
}

// Sink describes a destination capable of consuming failure notifications.
type Sink interface {
	SendFailure(ctx context.Context, payload FailurePayload) error
}

// SinkFunc adapts a function to the Sink interface (useful for tests).
type SinkFunc func(ctx context.Context, payload FailurePayload) error

// SendFailure implements the Sink interface.
func (f SinkFunc) SendFailure(ctx context.Context, payload FailurePayload) error {
	if f == nil {
		return nil
	}
	return f(ctx, payload)
}
