package metrics

import (
	"time"

	"github.com/jobtrawl/jobtrawl/internal/apperr"
	"github.com/jobtrawl/jobtrawl/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// RecordMetric captures one record state transition for metric emission.
type RecordMetric struct {
	Platform   string
	Transition string
	Result     string
	Duration   time.Duration
	Err        error
}

// EmitRecordLifecycle emits standardised record lifecycle metrics.
func EmitRecordLifecycle(sink statsd.Sink, in RecordMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"platform":   in.Platform,
		"transition": in.Transition,
		"result":     in.Result,
	}

	if in.Err != nil && in.Result == ResultError {
		if class := apperr.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("record.transition", 1, tags)

	if in.Duration > 0 {
		sink.Timing("record.duration", in.Duration, CloneTags(tags))
	}
}

// RunMetric aggregates the outcome of one orchestrated run. Records maps
// outcome names ("applied", "skipped", ...) to how many postings landed there.
type RunMetric struct {
	Platform string
	Result   string
	Duration time.Duration
	Err      error
	Records  map[string]int
}

// EmitRunOutcome emits one run.count event plus per-outcome record counts.
func EmitRunOutcome(sink statsd.Sink, in RunMetric) {
	if sink == nil {
		return
	}

	base := map[string]string{
		"platform": in.Platform,
		"result":   in.Result,
	}

	runTags := CloneTags(base)
	if in.Err != nil && in.Result == ResultError {
		if class := apperr.Classify(in.Err); class != "" {
			runTags["error_class"] = class
		}
	}

	sink.Count("run.count", 1, runTags)

	if in.Duration > 0 {
		sink.Timing("run.duration", in.Duration, CloneTags(runTags))
	}

	for outcome, n := range in.Records {
		if outcome == "" || n <= 0 {
			continue
		}
		tags := CloneTags(base)
		tags["outcome"] = outcome
		sink.Count("run.records", int64(n), tags)
	}
}

// CloneTags creates a shallow copy of a tag map, filtering out empty keys.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		if k == "" {
			continue
		}
		out[k] = v
	}
	return out
}
