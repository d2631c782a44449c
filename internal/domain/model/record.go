// Package model defines the core data types used throughout the jobtrawl
// application tracker.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ApplyMethod represents how a posting accepts applications.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type ApplyMethod string

const (
	// ApplyMethodEasy represents an in-platform one-click application flow.
	ApplyMethodEasy ApplyMethod = "easy"
	// ApplyMethodExternal represents a redirect to a company site.
	ApplyMethodExternal ApplyMethod = "external"
	// ApplyMethodUnknown represents a flow that has not been classified yet.
	ApplyMethodUnknown ApplyMethod = "unknown"
)

// UnmarshalText implements encoding.TextUnmarshaler for ApplyMethod to allow env parsing.
func (m *ApplyMethod) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	am := ApplyMethod(v)
	if am.Valid() {
		*m = am
		return nil
	}
	return fmt.Errorf("invalid ApplyMethod: %q", v)
}

// Valid returns true if the ApplyMethod is valid.
func (m ApplyMethod) Valid() bool {
	return m == ApplyMethodEasy || m == ApplyMethodExternal || m == ApplyMethodUnknown
}

// ErrNoRecordsQueued is returned when no queued records are available for dispatch.
var ErrNoRecordsQueued = errors.New("no records queued")

// RecordID builds the canonical record identifier from a platform tag and the
// platform-native posting identifier. The result is stable across rediscovery.
func RecordID(platform, postingID string) string {
	return platform + ":" + postingID
}

// SearchMeta captures the criteria under which a record was first discovered.
// It is refreshed on rediscovery only while the record is non-terminal.
type SearchMeta struct {
	Keywords         []string          `json:"keywords,omitempty"`
	Location         string            `json:"location,omitempty"`
	ExperienceLevels []ExperienceLevel `json:"experience_levels,omitempty"`
}

// JobRecord represents a job posting and its application lifecycle state.
type JobRecord struct {
	ID             string         `json:"id"                        db:"id"`
	Platform       string         `json:"platform"                  db:"platform"`
	PostingID      string         `json:"posting_id"                db:"posting_id"`
	Title          string         `json:"title"                     db:"title"`
	Company        string         `json:"company"                   db:"company"`
	Location       string         `json:"location,omitempty"        db:"location"`
	ApplyMethod    ApplyMethod    `json:"apply_method"              db:"apply_method"`
	ApplyURL       string         `json:"apply_url,omitempty"       db:"apply_url"`
	PostedAgo      string         `json:"posted_ago,omitempty"      db:"posted_ago"`
	ApplicantCount string         `json:"applicant_count,omitempty" db:"applicant_count"`
	Description    string         `json:"description,omitempty"     db:"description"`
	SearchMeta     *SearchMeta    `json:"search_meta,omitempty"     db:"search_meta"`
	State          LifecycleState `json:"state"                     db:"state"`
	Attempts       int            `json:"attempts"                  db:"attempts"`
	LastError      *string        `json:"last_error,omitempty"      db:"last_error"`
	ResumeVersion  string         `json:"resume_version,omitempty"  db:"resume_version"`
	DiscoveredAt   time.Time      `json:"discovered_at"             db:"discovered_at"`
	LastSeenAt     time.Time      `json:"last_seen_at"              db:"last_seen_at"`
	LastActionAt   *time.Time     `json:"last_action_at,omitempty"  db:"last_action_at"`
	AppliedAt      *time.Time     `json:"applied_at,omitempty"      db:"applied_at"`
}

// NewRecordParams groups the fields required to create a JobRecord.
type NewRecordParams struct {
	Platform       string
	PostingID      string
	Title          string
	Company        string
	Location       string
	ApplyMethod    ApplyMethod
	ApplyURL       string
	PostedAgo      string
	ApplicantCount string
	Description    string
	SearchMeta     *SearchMeta
}

// Validate validates the NewRecordParams fields.
func (p *NewRecordParams) Validate() error {
	if strings.TrimSpace(p.Platform) == "" {
		return errors.New("platform is required")
	}
	if strings.TrimSpace(p.PostingID) == "" {
		return errors.New("posting id is required")
	}
	if strings.TrimSpace(p.Title) == "" {
		return errors.New("title is required")
	}
	if strings.TrimSpace(p.Company) == "" {
		return errors.New("company is required")
	}
	if p.ApplyMethod != "" && !p.ApplyMethod.Valid() {
		return fmt.Errorf("invalid apply method %q", p.ApplyMethod)
	}
	return nil
}

// NewRecord creates a JobRecord in the discovered state with a deterministic
// identifier. The discovery and last-seen timestamps are both set to now.
func NewRecord(p NewRecordParams, now time.Time) (*JobRecord, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	method := p.ApplyMethod
	if method == "" {
		method = ApplyMethodUnknown
	}
	return &JobRecord{
		ID:             RecordID(p.Platform, p.PostingID),
		Platform:       p.Platform,
		PostingID:      p.PostingID,
		Title:          p.Title,
		Company:        p.Company,
		Location:       p.Location,
		ApplyMethod:    method,
		ApplyURL:       p.ApplyURL,
		PostedAgo:      p.PostedAgo,
		ApplicantCount: p.ApplicantCount,
		Description:    p.Description,
		SearchMeta:     p.SearchMeta,
		State:          StateDiscovered,
		DiscoveredAt:   now,
		LastSeenAt:     now,
	}, nil
}

// TransitionTo moves the record to a new lifecycle state, stamping
// LastActionAt. Invalid transitions are rejected.
func (r *JobRecord) TransitionTo(to LifecycleState, now time.Time) error {
	if !CanTransition(r.State, to) {
		return fmt.Errorf("invalid transition %s to %s for record %s", r.State, to, r.ID)
	}
	r.State = to
	t := now
	r.LastActionAt = &t
	return nil
}

// Seen stamps the record as rediscovered without touching its state.
func (r *JobRecord) Seen(now time.Time) {
	r.LastSeenAt = now
}

// RefreshObservation updates the volatile sighting fields from a fresh
// discovery of the same posting. Terminal records keep the metadata they
// were actioned under; empty incoming fields never clobber known values.
func (r *JobRecord) RefreshObservation(from *JobRecord) {
	if from == nil || r.State.Terminal() {
		return
	}
	if from.SearchMeta != nil {
		r.SearchMeta = from.SearchMeta
	}
	if from.PostedAgo != "" {
		r.PostedAgo = from.PostedAgo
	}
	if from.ApplicantCount != "" {
		r.ApplicantCount = from.ApplicantCount
	}
}

// MarkApplied records a successful application: state applied, AppliedAt set,
// the submitted resume version recorded, and the last error cleared.
func (r *JobRecord) MarkApplied(now time.Time, resumeVersion string) error {
	if err := r.TransitionTo(StateApplied, now); err != nil {
		return err
	}
	t := now
	r.AppliedAt = &t
	r.ResumeVersion = resumeVersion
	r.LastError = nil
	return nil
}

// MarkFailed records a failed application attempt: state failed, attempt count
// incremented, and the failure message recorded.
func (r *JobRecord) MarkFailed(now time.Time, message string) error {
	if err := r.TransitionTo(StateFailed, now); err != nil {
		return err
	}
	r.Attempts++
	r.LastError = &message
	return nil
}

// MarkSkipped records that the posting will never be attempted. The attempt
// count is left unchanged.
func (r *JobRecord) MarkSkipped(now time.Time, reason string) error {
	if err := r.TransitionTo(StateSkipped, now); err != nil {
		return err
	}
	if reason != "" {
		r.LastError = &reason
	}
	return nil
}

// RetryEligible returns true when a failed record may be queued again.
func (r *JobRecord) RetryEligible(limit int) bool {
	return r.State == StateFailed && r.Attempts < limit
}

// RecordQuery groups parameters for listing records with optional filters.
type RecordQuery struct {
	States          []LifecycleState // Optional filter by lifecycle states
	Platform        string           // Optional filter by platform tag
	DiscoveredSince *time.Time       // Optional lower bound on DiscoveredAt
	DiscoveredUntil *time.Time       // Optional upper bound on DiscoveredAt
	Limit           int              // Pagination limit (0 = no limit)
}

// Matches reports whether a record satisfies every filter set on the query.
func (q *RecordQuery) Matches(r *JobRecord) bool {
	if len(q.States) > 0 {
		found := false
		for _, s := range q.States {
			if r.State == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q.Platform != "" && r.Platform != q.Platform {
		return false
	}
	if q.DiscoveredSince != nil && r.DiscoveredAt.Before(*q.DiscoveredSince) {
		return false
	}
	if q.DiscoveredUntil != nil && r.DiscoveredAt.After(*q.DiscoveredUntil) {
		return false
	}
	return true
}

// RecordStats represents counts of records in each lifecycle state.
type RecordStats struct {
	Discovered int `json:"discovered"`
	Queued     int `json:"queued"`
	Applying   int `json:"applying"`
	Applied    int `json:"applied"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
}

// Add counts a record into the stats bucket for its state.
func (s *RecordStats) Add(r *JobRecord) {
	switch r.State {
	case StateDiscovered:
		s.Discovered++
	case StateQueued:
		s.Queued++
	case StateApplying:
		s.Applying++
	case StateApplied:
		s.Applied++
	case StateFailed:
		s.Failed++
	case StateSkipped:
		s.Skipped++
	}
}

// Total returns the total number of records counted.
func (s *RecordStats) Total() int {
	return s.Discovered + s.Queued + s.Applying + s.Applied + s.Failed + s.Skipped
}
