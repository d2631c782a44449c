package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jobtrawl/jobtrawl/internal/domain/model"
)

// criteriaDocument is the on-disk shape of the search criteria file.
type criteriaDocument struct {
	Searches []model.SearchCriteria `yaml:"searches"`
}

// LoadCriteria reads and validates the search criteria YAML document.
// The file holds a `searches` list; every entry must validate.
func LoadCriteria(path string) ([]model.SearchCriteria, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read criteria file %s: %w", path, err)
	}

	var doc criteriaDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse criteria file %s: %w", path, err)
	}
	if len(doc.Searches) == 0 {
		return nil, fmt.Errorf("criteria file %s: at least one search is required", path)
	}

	for i := range doc.Searches {
		if err := doc.Searches[i].Validate(); err != nil {
			return nil, fmt.Errorf("criteria file %s: search %d: %w", path, i+1, err)
		}
	}
	return doc.Searches, nil
}

// LoadProfile reads and validates the personal profile YAML document.
func LoadProfile(path string) (*model.PersonalProfile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile file %s: %w", path, err)
	}

	var profile model.PersonalProfile
	if err := yaml.Unmarshal(raw, &profile); err != nil {
		return nil, fmt.Errorf("parse profile file %s: %w", path, err)
	}
	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("profile file %s: %w", path, err)
	}
	return &profile, nil
}
