package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/jobtrawl/jobtrawl/internal/core"
	"github.com/jobtrawl/jobtrawl/internal/domain/model"
)

// JMESPathEvaluator abstracts JMESPath operations for testability.
type JMESPathEvaluator interface {
	Validate(expr string) error
	Evaluate(expr string, data any) (any, error)
}

// jmespathLibEvaluator implements JMESPathEvaluator using go-jmespath.
type jmespathLibEvaluator struct{}

func (j jmespathLibEvaluator) Validate(expr string) error {
	if expr == "" {
		return nil
	}
	_, err := jmespath.Compile(expr)
	return err
}

func (j jmespathLibEvaluator) Evaluate(expr string, data any) (any, error) {
	return jmespath.Search(expr, data)
}

// AppliedIndex is a lookup of company and title pairs that already have a
// submitted application, across every platform in the store. The same job is
// routinely posted to multiple boards; applying twice looks careless.
type AppliedIndex map[string]struct{}

// BuildAppliedIndex loads every applied record, regardless of platform, into
// a suppression index.
func BuildAppliedIndex(ctx context.Context, store core.RecordStore) (AppliedIndex, error) {
	records, err := store.Query(ctx, model.RecordQuery{
		States: []model.LifecycleState{model.StateApplied},
	})
	if err != nil {
		return nil, fmt.Errorf("load applied records: %w", err)
	}
	index := make(AppliedIndex, len(records))
	for _, rec := range records {
		index[appliedKey(rec.Company, rec.Title)] = struct{}{}
	}
	return index, nil
}

// Contains reports whether an application for this company and title was
// already submitted somewhere.
func (ix AppliedIndex) Contains(company, title string) bool {
	if len(ix) == 0 {
		return false
	}
	_, ok := ix[appliedKey(company, title)]
	return ok
}

func appliedKey(company, title string) string {
	return strings.ToLower(strings.TrimSpace(company)) + "\x00" + strings.ToLower(strings.TrimSpace(title))
}

// FilterDecision reports whether a discovered record should be queued for
// application, and if not, why.
type FilterDecision struct {
	Queue  bool
	Reason string
}

// FilterOptions groups the inputs for NewFilter. Parameter count would
// exceed 3 otherwise.
type FilterOptions struct {
	// Required: the search the discovered records came from
	Criteria model.SearchCriteria

	// Optional: suppression index of jobs already applied to elsewhere
	Applied AppliedIndex

	// Optional: custom JMESPath evaluator (defaults to library-based)
	Evaluator JMESPathEvaluator
}

// Filter decides whether discovered postings are worth queueing. Platform
// search is coarse; the filter re-checks keywords, location, and remote
// status locally and applies the optional per-search match expression.
type Filter struct {
	criteria model.SearchCriteria
	applied  AppliedIndex
	jems     JMESPathEvaluator
}

// NewFilter creates a Filter, validating the criteria's match expression up
// front so a bad expression fails the search instead of every record.
func NewFilter(opts FilterOptions) (*Filter, error) {
	jems := opts.Evaluator
	if jems == nil {
		jems = jmespathLibEvaluator{}
	}
	if err := jems.Validate(opts.Criteria.MatchExpr); err != nil {
		return nil, fmt.Errorf("invalid match expression: %w", err)
	}
	return &Filter{
		criteria: opts.Criteria,
		applied:  opts.Applied,
		jems:     jems,
	}, nil
}

// Evaluate applies every check to one discovered record. Checks are
// AND-combined; the first miss decides the reason. A nil filter queues
// everything.
func (f *Filter) Evaluate(rec *model.JobRecord) FilterDecision {
	if f == nil {
		return FilterDecision{Queue: true}
	}
	if f.applied.Contains(rec.Company, rec.Title) {
		return FilterDecision{Reason: "already applied to this job on another platform"}
	}
	if !f.matchesKeywords(rec) {
		return FilterDecision{Reason: "no keyword match in title or description"}
	}
	if f.criteria.RemoteOnly && !isRemote(rec) {
		return FilterDecision{Reason: "not a remote position"}
	}
	if !f.matchesLocation(rec) {
		return FilterDecision{Reason: "location mismatch"}
	}
	ok, err := f.matchesExpr(rec)
	if err != nil {
		return FilterDecision{Reason: "match expression error: " + err.Error()}
	}
	if !ok {
		return FilterDecision{Reason: "match expression did not match"}
	}
	return FilterDecision{Queue: true}
}

func (f *Filter) matchesKeywords(rec *model.JobRecord) bool {
	if len(f.criteria.Keywords) == 0 {
		return true
	}
	title := strings.ToLower(rec.Title)
	description := strings.ToLower(rec.Description)
	for _, kw := range f.criteria.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if strings.Contains(title, kw) || strings.Contains(description, kw) {
			return true
		}
	}
	return false
}

// matchesLocation treats an empty record location as a pass. Scrapers miss
// the location field often enough that rejecting on absence would drop good
// postings.
func (f *Filter) matchesLocation(rec *model.JobRecord) bool {
	want := strings.TrimSpace(f.criteria.Location)
	if want == "" {
		return true
	}
	have := strings.TrimSpace(rec.Location)
	if have == "" {
		return true
	}
	if strings.Contains(strings.ToLower(have), strings.ToLower(want)) {
		return true
	}
	// A remote posting satisfies any location preference.
	return isRemote(rec)
}

func isRemote(rec *model.JobRecord) bool {
	return strings.Contains(strings.ToLower(rec.Location), "remote") ||
		strings.Contains(strings.ToLower(rec.Title), "remote")
}

func (f *Filter) matchesExpr(rec *model.JobRecord) (bool, error) {
	expr := strings.TrimSpace(f.criteria.MatchExpr)
	if expr == "" {
		return true, nil
	}
	doc, err := recordDocument(rec)
	if err != nil {
		return false, fmt.Errorf("build record document: %w", err)
	}
	result, err := f.jems.Evaluate(expr, doc)
	if err != nil {
		return false, fmt.Errorf("evaluate match expression: %w", err)
	}
	return truthy(result), nil
}

// recordDocument renders the record as a generic JSON document, the shape
// JMESPath expressions are written against.
func recordDocument(rec *model.JobRecord) (any, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// truthy applies JMESPath truthiness: null, false, empty strings, and empty
// collections are false. Numbers, including zero, are true.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}
