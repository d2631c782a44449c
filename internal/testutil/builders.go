package testutil

import (
	"fmt"
	"time"

	"github.com/jobtrawl/jobtrawl/internal/domain/model"
)

// RecordBuilder provides a fluent interface for building JobRecord objects
// for testing.
type RecordBuilder struct {
	rec *model.JobRecord
}

// NewRecord creates a RecordBuilder with sensible defaults.
func NewRecord(platform, postingID string) *RecordBuilder {
	now := TestTime()
	return &RecordBuilder{
		rec: &model.JobRecord{
			ID:           model.RecordID(platform, postingID),
			Platform:     platform,
			PostingID:    postingID,
			Title:        "Software Engineer",
			Company:      "Acme",
			Location:     "Remote",
			ApplyMethod:  model.ApplyMethodEasy,
			State:        model.StateDiscovered,
			DiscoveredAt: now,
			LastSeenAt:   now,
		},
	}
}

// WithTitle sets the posting title.
func (b *RecordBuilder) WithTitle(title string) *RecordBuilder {
	b.rec.Title = title
	return b
}

// WithCompany sets the company name.
func (b *RecordBuilder) WithCompany(company string) *RecordBuilder {
	b.rec.Company = company
	return b
}

// WithLocation sets the posting location.
func (b *RecordBuilder) WithLocation(location string) *RecordBuilder {
	b.rec.Location = location
	return b
}

// WithApplyMethod sets the application method.
func (b *RecordBuilder) WithApplyMethod(m model.ApplyMethod) *RecordBuilder {
	b.rec.ApplyMethod = m
	return b
}

// WithState sets the lifecycle state directly, bypassing transition checks.
func (b *RecordBuilder) WithState(state model.LifecycleState) *RecordBuilder {
	b.rec.State = state
	return b
}

// WithAttempts sets the attempt counter.
func (b *RecordBuilder) WithAttempts(attempts int) *RecordBuilder {
	b.rec.Attempts = attempts
	return b
}

// WithLastError sets the last error message.
func (b *RecordBuilder) WithLastError(msg string) *RecordBuilder {
	b.rec.LastError = &msg
	return b
}

// WithSearchMeta sets the originating search context.
func (b *RecordBuilder) WithSearchMeta(meta *model.SearchMeta) *RecordBuilder {
	b.rec.SearchMeta = meta
	return b
}

// WithDiscoveredAt sets the discovery timestamp.
func (b *RecordBuilder) WithDiscoveredAt(t time.Time) *RecordBuilder {
	b.rec.DiscoveredAt = t
	return b
}

// WithLastSeenAt sets the last seen timestamp.
func (b *RecordBuilder) WithLastSeenAt(t time.Time) *RecordBuilder {
	b.rec.LastSeenAt = t
	return b
}

// WithLastActionAt sets the last action timestamp.
func (b *RecordBuilder) WithLastActionAt(t time.Time) *RecordBuilder {
	b.rec.LastActionAt = &t
	return b
}

// WithAppliedAt sets the applied timestamp.
func (b *RecordBuilder) WithAppliedAt(t time.Time) *RecordBuilder {
	b.rec.AppliedAt = &t
	return b
}

// WithResumeVersion sets the resume version tag.
func (b *RecordBuilder) WithResumeVersion(version string) *RecordBuilder {
	b.rec.ResumeVersion = version
	return b
}

// WithDescription sets the posting description.
func (b *RecordBuilder) WithDescription(desc string) *RecordBuilder {
	b.rec.Description = desc
	return b
}

// Build returns the constructed record.
func (b *RecordBuilder) Build() *model.JobRecord {
	return b.rec
}

// Common record presets

// DiscoveredRecord builds a freshly discovered record.
func DiscoveredRecord(platform, postingID string) *model.JobRecord {
	return NewRecord(platform, postingID).Build()
}

// QueuedRecord builds a record waiting for an application attempt.
func QueuedRecord(platform, postingID string) *model.JobRecord {
	return NewRecord(platform, postingID).
		WithState(model.StateQueued).
		WithLastActionAt(TestTime()).
		Build()
}

// ApplyingRecord builds a record with an application in flight.
func ApplyingRecord(platform, postingID string) *model.JobRecord {
	return NewRecord(platform, postingID).
		WithState(model.StateApplying).
		WithLastActionAt(TestTime()).
		Build()
}

// AppliedRecord builds a successfully applied record.
func AppliedRecord(platform, postingID string) *model.JobRecord {
	return NewRecord(platform, postingID).
		WithState(model.StateApplied).
		WithAttempts(1).
		WithLastActionAt(TestTime()).
		WithAppliedAt(TestTime()).
		WithResumeVersion("v1").
		Build()
}

// FailedRecord builds a record with the given number of failed attempts.
func FailedRecord(platform, postingID string, attempts int) *model.JobRecord {
	return NewRecord(platform, postingID).
		WithState(model.StateFailed).
		WithAttempts(attempts).
		WithLastError("submit failed").
		WithLastActionAt(TestTime()).
		Build()
}

// SkippedRecord builds a record excluded by filters.
func SkippedRecord(platform, postingID string) *model.JobRecord {
	return NewRecord(platform, postingID).
		WithState(model.StateSkipped).
		WithLastActionAt(TestTime()).
		Build()
}

// RecordBatch builds n discovered records with sequential posting IDs and
// discovery times one minute apart.
func RecordBatch(platform string, n int) []*model.JobRecord {
	out := make([]*model.JobRecord, 0, n)
	for i := 0; i < n; i++ {
		rec := NewRecord(platform, fmt.Sprintf("post-%03d", i)).
			WithDiscoveredAt(TestTime().Add(time.Duration(i) * time.Minute)).
			WithLastSeenAt(TestTime().Add(time.Duration(i) * time.Minute)).
			Build()
		out = append(out, rec)
	}
	return out
}
