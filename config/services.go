package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeRun performs one search-and-apply run, then exits.
	ServiceModeRun ServiceMode = "run"
	// ServiceModeScheduler runs recurring runs on a cron schedule.
	ServiceModeScheduler ServiceMode = "scheduler"
	// ServiceModeReaper runs the record retention daemon.
	ServiceModeReaper ServiceMode = "reaper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeRun,
		ServiceModeScheduler,
		ServiceModeReaper,
	}
}

// ParseServices parses a comma-delimited string of service names and returns
// the enabled services. It validates that all service names are valid and
// returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	parts := strings.Split(servicesStr, ",")
	for _, part := range parts {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeRun, ServiceModeScheduler, ServiceModeReaper:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: run, scheduler, reaper)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	if services[ServiceModeRun] && services[ServiceModeScheduler] {
		return nil, errors.New("run and scheduler are mutually exclusive")
	}

	return services, nil
}

// RunnerConfig contains run engine configuration.
type RunnerConfig struct {
	// RetryLimit is the maximum number of application attempts per record.
	RetryLimit int `env:"RUNNER_RETRY_LIMIT" envDefault:"3"`

	// BatchSize is the maximum number of applications dispatched per run.
	BatchSize int `env:"RUNNER_BATCH_SIZE" envDefault:"10"`

	// PaceMin is the minimum delay between processed records.
	PaceMin time.Duration `env:"RUNNER_PACE_MIN" envDefault:"2s"`

	// PaceMax is the maximum delay between processed records. The actual
	// delay is drawn uniformly from [PaceMin, PaceMax].
	PaceMax time.Duration `env:"RUNNER_PACE_MAX" envDefault:"6s"`

	// DryRun evaluates and queues records but never calls the driver.
	DryRun bool `env:"RUNNER_DRY_RUN" envDefault:"false"`
}

// Sanitize applies guardrails to runner configuration values.
func (r *RunnerConfig) Sanitize() {
	if r.RetryLimit < 1 {
		r.RetryLimit = 1
	}
	if r.BatchSize < 1 {
		r.BatchSize = 1
	}
	if r.PaceMin < 0 {
		r.PaceMin = 0
	}
	if r.PaceMax < r.PaceMin {
		r.PaceMax = r.PaceMin
	}
}

// SchedulerConfig contains scheduler service configuration.
type SchedulerConfig struct {
	// CronSpec is the cron expression for recurring runs.
	CronSpec string `env:"SCHEDULER_CRON" envDefault:"0 9 * * *"`

	// Timezone is the IANA timezone the cron expression is evaluated in.
	Timezone string `env:"SCHEDULER_TZ" envDefault:"Local"`
}

// Sanitize applies guardrails to scheduler configuration values.
func (s *SchedulerConfig) Sanitize() {
	s.CronSpec = strings.TrimSpace(s.CronSpec)
	if s.CronSpec == "" {
		s.CronSpec = "0 9 * * *"
	}
	s.Timezone = strings.TrimSpace(s.Timezone)
	if s.Timezone == "" {
		s.Timezone = "Local"
	}
}

// ReaperConfig contains record reaper service configuration.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"1h"`

	// ApplyingMaxAge is the maximum age for applying records before they are
	// marked as failed. Records stuck in applying longer than this lost
	// their process mid-apply.
	ApplyingMaxAge time.Duration `env:"REAPER_APPLYING_MAX_AGE" envDefault:"1h"`

	// SkippedMaxAge is the maximum age for skipped records before deletion.
	SkippedMaxAge time.Duration `env:"REAPER_SKIPPED_MAX_AGE" envDefault:"720h"` // 30 days

	// AppliedMaxAge is the maximum age for applied records before deletion.
	// Applied history is kept much longer so applied-elsewhere suppression
	// keeps working across platforms.
	AppliedMaxAge time.Duration `env:"REAPER_APPLIED_MAX_AGE" envDefault:"4320h"` // 180 days

	// BatchSize is the maximum number of rows to process per operation.
	// Batching prevents long locks and I/O spikes on large tables.
	BatchSize int `env:"REAPER_BATCH_SIZE" envDefault:"500"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	// Enforce minimum intervals to prevent excessive store load
	if r.Interval < 1*time.Minute {
		r.Interval = 1 * time.Minute
	}
	if r.ApplyingMaxAge < 5*time.Minute {
		r.ApplyingMaxAge = 5 * time.Minute
	}
	if r.SkippedMaxAge < 24*time.Hour {
		r.SkippedMaxAge = 24 * time.Hour
	}
	if r.AppliedMaxAge < 24*time.Hour {
		r.AppliedMaxAge = 24 * time.Hour
	}

	if r.BatchSize < 1 {
		r.BatchSize = 1
	}
	if r.BatchSize > 10000 {
		r.BatchSize = 10000
	}
}
