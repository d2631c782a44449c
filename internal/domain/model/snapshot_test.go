package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSnapshot(t *testing.T) {
	s := NewSnapshot("linkedin", "dev@example.com")
	assert.Equal(t, SchemaVersion, s.SchemaVersion)
	assert.Equal(t, "linkedin", s.Platform)
	assert.Equal(t, "dev@example.com", s.Account)
	assert.NotNil(t, s.Records)
	assert.Empty(t, s.Records)
}

func TestSnapshot_Sorted(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s := NewSnapshot("linkedin", "")

	add := func(id string, discovered time.Time) {
		s.Records[id] = &JobRecord{ID: id, State: StateDiscovered, DiscoveredAt: discovered}
	}
	add("linkedin:3", base.Add(2*time.Hour))
	add("linkedin:1", base)
	add("linkedin:2", base.Add(time.Hour))
	// Same timestamp as linkedin:1; ID breaks the tie.
	add("linkedin:0", base)

	got := s.Sorted()
	require.Len(t, got, 4)
	assert.Equal(t, "linkedin:0", got[0].ID)
	assert.Equal(t, "linkedin:1", got[1].ID)
	assert.Equal(t, "linkedin:2", got[2].ID)
	assert.Equal(t, "linkedin:3", got[3].ID)
}

func TestSnapshot_Stats(t *testing.T) {
	s := NewSnapshot("linkedin", "")
	s.Records["a"] = &JobRecord{ID: "a", State: StateQueued}
	s.Records["b"] = &JobRecord{ID: "b", State: StateQueued}
	s.Records["c"] = &JobRecord{ID: "c", State: StateApplied}

	stats := s.Stats()
	assert.Equal(t, 2, stats.Queued)
	assert.Equal(t, 1, stats.Applied)
	assert.Equal(t, 3, stats.Total())
}

func TestSnapshot_JSONRoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := NewSnapshot("linkedin", "dev@example.com")
	rec, err := NewRecord(NewRecordParams{
		Platform:  "linkedin",
		PostingID: "42",
		Title:     "Engineer",
		Company:   "Initech",
	}, now)
	require.NoError(t, err)
	s.Records[rec.ID] = rec
	s.UpdatedAt = now

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var got Snapshot
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, s.SchemaVersion, got.SchemaVersion)
	assert.Equal(t, s.Platform, got.Platform)
	require.Contains(t, got.Records, "linkedin:42")
	assert.Equal(t, StateDiscovered, got.Records["linkedin:42"].State)
}
