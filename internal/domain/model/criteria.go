package model

import (
	"errors"
	"fmt"
	"strings"
)

// ExperienceLevel represents a platform experience-level filter.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type ExperienceLevel string

const (
	// ExperienceInternship filters for internship roles.
	ExperienceInternship ExperienceLevel = "internship"
	// ExperienceEntry filters for entry-level roles.
	ExperienceEntry ExperienceLevel = "entry"
	// ExperienceAssociate filters for associate roles.
	ExperienceAssociate ExperienceLevel = "associate"
	// ExperienceMidSenior filters for mid-senior roles.
	ExperienceMidSenior ExperienceLevel = "mid-senior"
	// ExperienceDirector filters for director roles.
	ExperienceDirector ExperienceLevel = "director"
	// ExperienceExecutive filters for executive roles.
	ExperienceExecutive ExperienceLevel = "executive"
)

// experienceCodes maps levels to the numeric filter codes job boards use.
var experienceCodes = map[ExperienceLevel]int{
	ExperienceInternship: 1,
	ExperienceEntry:      2,
	ExperienceAssociate:  3,
	ExperienceMidSenior:  4,
	ExperienceDirector:   5,
	ExperienceExecutive:  6,
}

// UnmarshalText implements encoding.TextUnmarshaler for ExperienceLevel.
func (l *ExperienceLevel) UnmarshalText(text []byte) error {
	v := ExperienceLevel(strings.ToLower(strings.TrimSpace(string(text))))
	if v.Valid() {
		*l = v
		return nil
	}
	return fmt.Errorf("invalid ExperienceLevel: %q", string(text))
}

// Valid returns true if the ExperienceLevel is a known level.
func (l ExperienceLevel) Valid() bool {
	_, ok := experienceCodes[l]
	return ok
}

// Code returns the numeric filter code for the level, 0 when unknown.
func (l ExperienceLevel) Code() int {
	return experienceCodes[l]
}

// DatePosted represents a posting-age filter.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type DatePosted string

const (
	// DatePostedAny places no bound on posting age.
	DatePostedAny DatePosted = "any"
	// DatePostedDay filters for postings from the last 24 hours.
	DatePostedDay DatePosted = "day"
	// DatePostedWeek filters for postings from the last week.
	DatePostedWeek DatePosted = "week"
	// DatePostedMonth filters for postings from the last month.
	DatePostedMonth DatePosted = "month"
)

// UnmarshalText implements encoding.TextUnmarshaler for DatePosted.
func (d *DatePosted) UnmarshalText(text []byte) error {
	v := DatePosted(strings.ToLower(strings.TrimSpace(string(text))))
	if v.Valid() {
		*d = v
		return nil
	}
	return fmt.Errorf("invalid DatePosted: %q", string(text))
}

// Valid returns true if the DatePosted is a known filter.
func (d DatePosted) Valid() bool {
	switch d {
	case DatePostedAny, DatePostedDay, DatePostedWeek, DatePostedMonth:
		return true
	}
	return false
}

// SearchCriteria describes one search against a posting source. Filters are
// independently optional and AND-combined.
type SearchCriteria struct {
	Keywords         []string          `json:"keywords"                    yaml:"keywords"`
	Location         string            `json:"location,omitempty"          yaml:"location,omitempty"`
	ExperienceLevels []ExperienceLevel `json:"experience_levels,omitempty" yaml:"experience_levels,omitempty"`
	DatePosted       DatePosted        `json:"date_posted,omitempty"       yaml:"date_posted,omitempty"`
	RemoteOnly       bool              `json:"remote_only,omitempty"       yaml:"remote_only,omitempty"`
	// MatchExpr is an optional JMESPath expression evaluated against the
	// record document; records it does not match are skipped.
	MatchExpr string `json:"match_expr,omitempty" yaml:"match_expr,omitempty"`
	// Cursor is an opaque offset for resuming a search mid-stream.
	Cursor int `json:"-" yaml:"-"`
}

// Validate validates the SearchCriteria fields.
func (c *SearchCriteria) Validate() error {
	if len(c.Keywords) == 0 {
		return errors.New("at least one keyword is required")
	}
	for _, kw := range c.Keywords {
		if strings.TrimSpace(kw) == "" {
			return errors.New("keywords must be non-empty")
		}
	}
	for _, lvl := range c.ExperienceLevels {
		if !lvl.Valid() {
			return fmt.Errorf("invalid experience level %q", lvl)
		}
	}
	if c.DatePosted != "" && !c.DatePosted.Valid() {
		return fmt.Errorf("invalid date posted filter %q", c.DatePosted)
	}
	return nil
}

// Meta returns the criteria snapshot stored on records discovered under this
// search.
func (c *SearchCriteria) Meta() *SearchMeta {
	return &SearchMeta{
		Keywords:         append([]string(nil), c.Keywords...),
		Location:         c.Location,
		ExperienceLevels: append([]ExperienceLevel(nil), c.ExperienceLevels...),
	}
}
