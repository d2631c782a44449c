package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Resume identifies one resume version available for submission.
type Resume struct {
	Version   string    `json:"version"              yaml:"version"`
	FilePath  string    `json:"file_path"            yaml:"file_path"`
	CreatedAt time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// PersonalProfile holds the applicant details submitted with applications.
// The profile is read-only from the engine's perspective.
type PersonalProfile struct {
	Name          string            `json:"name"                     yaml:"name"`
	Email         string            `json:"email"                    yaml:"email"`
	Phone         string            `json:"phone,omitempty"          yaml:"phone,omitempty"`
	Location      string            `json:"location,omitempty"       yaml:"location,omitempty"`
	Resumes       []Resume          `json:"resumes,omitempty"        yaml:"resumes,omitempty"`
	DefaultResume string            `json:"default_resume,omitempty" yaml:"default_resume,omitempty"`
	Answers       map[string]string `json:"answers,omitempty"        yaml:"answers,omitempty"`
}

// Validate validates the PersonalProfile fields.
func (p *PersonalProfile) Validate() error {
	if strings.TrimSpace(p.Email) == "" {
		return errors.New("email is required")
	}
	if !strings.Contains(p.Email, "@") {
		return fmt.Errorf("email %q is not an address", p.Email)
	}
	seen := make(map[string]struct{}, len(p.Resumes))
	for _, r := range p.Resumes {
		if strings.TrimSpace(r.Version) == "" {
			return errors.New("resume version is required")
		}
		if strings.TrimSpace(r.FilePath) == "" {
			return fmt.Errorf("resume %q has no file path", r.Version)
		}
		if _, dup := seen[r.Version]; dup {
			return fmt.Errorf("duplicate resume version %q", r.Version)
		}
		seen[r.Version] = struct{}{}
	}
	if p.DefaultResume != "" {
		if _, ok := seen[p.DefaultResume]; !ok {
			return fmt.Errorf("default resume %q is not defined", p.DefaultResume)
		}
	}
	return nil
}

// ResumeByVersion returns the resume with the given version.
func (p *PersonalProfile) ResumeByVersion(version string) (*Resume, bool) {
	for i := range p.Resumes {
		if p.Resumes[i].Version == version {
			return &p.Resumes[i], true
		}
	}
	return nil, false
}

// ResumeVersion returns the version to submit: the configured default, or the
// most recently created resume when no default is set. Empty when the profile
// has no resumes.
func (p *PersonalProfile) ResumeVersion() string {
	if p.DefaultResume != "" {
		return p.DefaultResume
	}
	var newest *Resume
	for i := range p.Resumes {
		if newest == nil || p.Resumes[i].CreatedAt.After(newest.CreatedAt) {
			newest = &p.Resumes[i]
		}
	}
	if newest == nil {
		return ""
	}
	return newest.Version
}
