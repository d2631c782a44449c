package model

import (
	"sort"
	"time"
)

// SchemaVersion is the current store document schema version.
const SchemaVersion = 1

// Snapshot is the durable store document for one platform/account pair.
// Records are keyed by ID; JSON marshaling orders the mapping by identifier.
type Snapshot struct {
	SchemaVersion int                   `json:"schema_version"`
	Platform      string                `json:"platform"`
	Account       string                `json:"account,omitempty"`
	UpdatedAt     time.Time             `json:"updated_at"`
	LastBackupAt  *time.Time            `json:"last_backup_at,omitempty"`
	Records       map[string]*JobRecord `json:"records"`
}

// NewSnapshot creates an empty snapshot for a platform/account pair.
func NewSnapshot(platform, account string) *Snapshot {
	return &Snapshot{
		SchemaVersion: SchemaVersion,
		Platform:      platform,
		Account:       account,
		Records:       make(map[string]*JobRecord),
	}
}

// Sorted returns the records ordered by DiscoveredAt, then ID for equal
// timestamps. This is the processing order used throughout.
func (s *Snapshot) Sorted() []*JobRecord {
	out := make([]*JobRecord, 0, len(s.Records))
	for _, r := range s.Records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DiscoveredAt.Equal(out[j].DiscoveredAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].DiscoveredAt.Before(out[j].DiscoveredAt)
	})
	return out
}

// Stats counts records per lifecycle state.
func (s *Snapshot) Stats() RecordStats {
	var stats RecordStats
	for _, r := range s.Records {
		stats.Add(r)
	}
	return stats
}

// SnapshotRestore describes a completed restore-from-backup.
type SnapshotRestore struct {
	Backup  string `json:"backup"`
	Records int    `json:"records"`
}
