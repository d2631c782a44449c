// Package devseed populates the record store with sample postings for local
// development, so the run pipeline and the admin CLI have data to work
// against before a real search has ever run.
package devseed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jobtrawl/jobtrawl/internal/apperr"
	"github.com/jobtrawl/jobtrawl/internal/core"
	"github.com/jobtrawl/jobtrawl/internal/domain/model"
)

// sampleResumeVersion is stamped on the applied sample record.
const sampleResumeVersion = "v3-backend"

// Params groups the inputs for Run.
type Params struct {
	Store    core.RecordStore
	Platform string
	Clock    core.Clock // Optional: time source (defaults to system clock)
	Logger   *slog.Logger
}

// Result reports what a seeding pass did.
type Result struct {
	Seeded  int
	Skipped int
}

// SampleCount returns the number of sample postings a full seeding creates.
func SampleCount() int {
	return len(samples)
}

// Run upserts every sample posting not already present and flushes the
// store. Existing records are never touched, so reseeding is safe.
func Run(ctx context.Context, p Params) (Result, error) {
	if p.Store == nil {
		return Result{}, errors.New("record store is required")
	}
	if p.Platform == "" {
		return Result{}, errors.New("platform is required")
	}
	clock := p.Clock
	if clock == nil {
		clock = core.SystemClock{}
	}
	now := clock.Now()

	var res Result
	for _, spec := range samples {
		rec, err := buildSample(spec, p.Platform, now)
		if err != nil {
			return res, fmt.Errorf("build sample %s: %w", spec.postingID, err)
		}

		existing, err := p.Store.Get(ctx, rec.ID)
		if err != nil && !apperr.IsNotFound(err) {
			return res, fmt.Errorf("check sample %s: %w", rec.ID, err)
		}
		if existing != nil {
			res.Skipped++
			continue
		}

		if err := p.Store.Upsert(ctx, rec); err != nil {
			return res, fmt.Errorf("seed sample %s: %w", rec.ID, err)
		}
		res.Seeded++
		if p.Logger != nil {
			p.Logger.InfoContext(ctx, "sample record seeded", "id", rec.ID, "state", rec.State)
		}
	}

	if res.Seeded > 0 {
		if err := p.Store.Flush(ctx); err != nil {
			return res, fmt.Errorf("flush store: %w", err)
		}
	}
	return res, nil
}

type sampleSpec struct {
	postingID      string
	title          string
	company        string
	location       string
	applyMethod    model.ApplyMethod
	applyURL       string
	postedAgo      string
	applicantCount string
	description    string
	keywords       []string
	age            time.Duration
	state          model.LifecycleState
	detail         string // failure message or skip reason
}

// samples covers every lifecycle state so listings, stats, and the retention
// sweep all have something to show in a fresh dev environment.
var samples = []sampleSpec{
	{
		postingID:      "dev-1001",
		title:          "Senior Backend Engineer",
		company:        "Initech",
		location:       "Remote",
		applyMethod:    model.ApplyMethodEasy,
		postedAgo:      "2 days ago",
		applicantCount: "47 applicants",
		description:    "Own the ingestion pipeline for a data platform handling billions of events.",
		keywords:       []string{"go", "backend"},
		age:            48 * time.Hour,
		state:          model.StateDiscovered,
	},
	{
		postingID:      "dev-1002",
		title:          "Platform Engineer",
		company:        "Globex",
		location:       "Austin, TX",
		applyMethod:    model.ApplyMethodEasy,
		postedAgo:      "1 week ago",
		applicantCount: "112 applicants",
		keywords:       []string{"go", "kubernetes"},
		age:            120 * time.Hour,
		state:          model.StateQueued,
	},
	{
		postingID:   "dev-1003",
		title:       "Staff Software Engineer",
		company:     "Umbrella Logistics",
		location:    "Remote",
		applyMethod: model.ApplyMethodExternal,
		applyURL:    "https://careers.umbrella.example.com/jobs/1003",
		postedAgo:   "3 days ago",
		keywords:    []string{"distributed systems"},
		age:         72 * time.Hour,
		state:       model.StateQueued,
	},
	{
		postingID:      "dev-1004",
		title:          "Site Reliability Engineer",
		company:        "Hooli",
		location:       "Seattle, WA",
		applyMethod:    model.ApplyMethodEasy,
		postedAgo:      "1 day ago",
		applicantCount: "23 applicants",
		keywords:       []string{"sre", "go"},
		age:            90 * time.Minute,
		state:          model.StateApplying,
	},
	{
		postingID:      "dev-1005",
		title:          "Distributed Systems Engineer",
		company:        "Initrode",
		location:       "Remote",
		applyMethod:    model.ApplyMethodEasy,
		postedAgo:      "2 weeks ago",
		applicantCount: "201 applicants",
		description:    "Build consensus and replication layers for a managed database product.",
		keywords:       []string{"go", "raft"},
		age:            240 * time.Hour,
		state:          model.StateApplied,
	},
	{
		postingID:   "dev-1006",
		title:       "Backend Developer",
		company:     "Vandelay Industries",
		location:    "New York, NY",
		applyMethod: model.ApplyMethodEasy,
		postedAgo:   "1 week ago",
		keywords:    []string{"backend"},
		age:         168 * time.Hour,
		state:       model.StateFailed,
		detail:      "form submission timed out",
	},
	{
		postingID:   "dev-1007",
		title:       "Junior Web Developer",
		company:     "Acme Web Co",
		location:    "Remote",
		applyMethod: model.ApplyMethodEasy,
		postedAgo:   "4 days ago",
		keywords:    []string{"javascript"},
		age:         96 * time.Hour,
		state:       model.StateSkipped,
		detail:      "below minimum experience level",
	},
	{
		postingID:      "dev-1008",
		title:          "Go Engineer",
		company:        "Stark Industries",
		location:       "Boston, MA",
		applyMethod:    model.ApplyMethodExternal,
		applyURL:       "https://jobs.stark.example.com/go-engineer",
		postedAgo:      "6 hours ago",
		applicantCount: "8 applicants",
		keywords:       []string{"go"},
		age:            6 * time.Hour,
		state:          model.StateDiscovered,
	},
}

func buildSample(spec sampleSpec, platform string, now time.Time) (*model.JobRecord, error) {
	discovered := now.Add(-spec.age)
	rec, err := model.NewRecord(model.NewRecordParams{
		Platform:       platform,
		PostingID:      spec.postingID,
		Title:          spec.title,
		Company:        spec.company,
		Location:       spec.location,
		ApplyMethod:    spec.applyMethod,
		ApplyURL:       spec.applyURL,
		PostedAgo:      spec.postedAgo,
		ApplicantCount: spec.applicantCount,
		Description:    spec.description,
		SearchMeta:     &model.SearchMeta{Keywords: spec.keywords, Location: spec.location},
	}, discovered)
	if err != nil {
		return nil, err
	}
	if err := advanceSample(rec, spec, discovered); err != nil {
		return nil, err
	}
	if !rec.State.Terminal() {
		rec.Seen(now)
	}
	return rec, nil
}

// advanceSample walks the record through real transitions so seeded data
// obeys the same state graph as production records.
func advanceSample(rec *model.JobRecord, spec sampleSpec, discovered time.Time) error {
	switch spec.state {
	case model.StateDiscovered:
		return nil
	case model.StateQueued:
		return rec.TransitionTo(model.StateQueued, discovered.Add(30*time.Minute))
	case model.StateApplying:
		return advanceToApplying(rec, discovered)
	case model.StateApplied:
		if err := advanceToApplying(rec, discovered); err != nil {
			return err
		}
		return rec.MarkApplied(discovered.Add(2*time.Hour), sampleResumeVersion)
	case model.StateFailed:
		if err := advanceToApplying(rec, discovered); err != nil {
			return err
		}
		return rec.MarkFailed(discovered.Add(2*time.Hour), spec.detail)
	case model.StateSkipped:
		return rec.MarkSkipped(discovered.Add(30*time.Minute), spec.detail)
	}
	return fmt.Errorf("unhandled sample state %s", spec.state)
}

func advanceToApplying(rec *model.JobRecord, discovered time.Time) error {
	if err := rec.TransitionTo(model.StateQueued, discovered.Add(30*time.Minute)); err != nil {
		return err
	}
	return rec.TransitionTo(model.StateApplying, discovered.Add(time.Hour))
}
