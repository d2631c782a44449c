package config

import (
	"fmt"
	"strings"
	"time"
)

// SearchConfig contains the platform session and document configuration for
// a run.
type SearchConfig struct {
	// Platform selects the search producer adapter.
	// Valid values: boardfeed, careers.
	Platform string `env:"PLATFORM" envDefault:"boardfeed"`

	// Account identifies the account the run operates as. Used in the
	// single-writer lock key and recorded on snapshots.
	Account string `env:"PLATFORM_ACCOUNT" envDefault:""`

	// Username and Password authenticate the platform session when the
	// platform uses credential login.
	Username string `env:"PLATFORM_USERNAME" envDefault:""`
	Password string `env:"PLATFORM_PASSWORD" envDefault:""`

	// OAuth client credentials for platforms fronted by a token endpoint.
	ClientID     string `env:"PLATFORM_CLIENT_ID"     envDefault:""`
	ClientSecret string `env:"PLATFORM_CLIENT_SECRET" envDefault:""`
	TokenURL     string `env:"PLATFORM_TOKEN_URL"     envDefault:""`

	// BaseURL overrides the platform endpoint (tests, self-hosted boards).
	BaseURL string `env:"PLATFORM_BASE_URL" envDefault:""`

	// CriteriaPath is the YAML file holding the search criteria list.
	CriteriaPath string `env:"CRITERIA_PATH" envDefault:"criteria.yaml"`

	// ProfilePath is the YAML file holding the personal profile.
	ProfilePath string `env:"PROFILE_PATH" envDefault:"profile.yaml"`
}

// Sanitize applies guardrails to search configuration values.
func (s *SearchConfig) Sanitize() {
	s.Platform = strings.ToLower(strings.TrimSpace(s.Platform))
	s.Account = strings.TrimSpace(s.Account)
	if s.Account == "" {
		s.Account = s.Username
	}
}

// StoreBackend selects the durable record store implementation.
type StoreBackend string

const (
	// StoreBackendFile persists records in a per-platform JSON document.
	StoreBackendFile StoreBackend = "file"
	// StoreBackendPostgres persists records in PostgreSQL.
	StoreBackendPostgres StoreBackend = "postgres"
)

// UnmarshalText implements encoding.TextUnmarshaler for StoreBackend.
func (b *StoreBackend) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "file", "postgres":
		*b = StoreBackend(v)
		return nil
	default:
		return fmt.Errorf("invalid StoreBackend: %q (valid options: file, postgres)", v)
	}
}

// StoreConfig contains durable store configuration.
type StoreConfig struct {
	// Backend selects the store implementation.
	Backend StoreBackend `env:"STORE_BACKEND" envDefault:"file"`

	// DataDir is the directory holding per-platform store documents and
	// their backups (file backend only).
	DataDir string `env:"STORE_DATA_DIR" envDefault:"./data"`

	// MaxBackups is the number of backups kept per platform.
	MaxBackups int `env:"STORE_MAX_BACKUPS" envDefault:"5"`
}

// Sanitize applies guardrails to store configuration values.
func (s *StoreConfig) Sanitize() {
	if s.Backend == "" {
		s.Backend = StoreBackendFile
	}
	s.DataDir = strings.TrimSpace(s.DataDir)
	if s.DataDir == "" {
		s.DataDir = "./data"
	}
	if s.MaxBackups < 1 {
		s.MaxBackups = 1
	}
}

// LockBackend selects the single-writer run lock implementation.
type LockBackend string

const (
	// LockBackendStore derives the lock from the store backend: a pid
	// lockfile for the file store, an advisory lock for Postgres.
	LockBackendStore LockBackend = "store"
	// LockBackendRedis uses a Redis SET NX lease, for fleets whose store
	// offers no cross-host exclusion.
	LockBackendRedis LockBackend = "redis"
)

// UnmarshalText implements encoding.TextUnmarshaler for LockBackend.
func (b *LockBackend) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "store", "redis":
		*b = LockBackend(v)
		return nil
	default:
		return fmt.Errorf("invalid LockBackend: %q (valid options: store, redis)", v)
	}
}

// LockConfig contains run lock configuration.
type LockConfig struct {
	// Backend selects the lock implementation.
	Backend LockBackend `env:"LOCK_BACKEND" envDefault:"store"`

	// TTL bounds how long a Redis lease outlives a dead holder.
	TTL time.Duration `env:"LOCK_TTL" envDefault:"30m"`
}

// Sanitize applies guardrails to lock configuration values.
func (l *LockConfig) Sanitize() {
	if l.Backend == "" {
		l.Backend = LockBackendStore
	}
	if l.TTL < time.Minute {
		l.TTL = time.Minute
	}
}

// AgentConfig contains application driver sidecar configuration.
type AgentConfig struct {
	// BaseURL is the browser-automation sidecar endpoint.
	BaseURL string `env:"AGENT_BASE_URL" envDefault:"http://localhost:8745"`

	// Timeout bounds one application submission end to end.
	Timeout time.Duration `env:"AGENT_TIMEOUT" envDefault:"3m"`

	// Token optionally authenticates requests to the sidecar.
	Token string `env:"AGENT_TOKEN" envDefault:""`
}

// Sanitize applies guardrails to agent configuration values.
func (a *AgentConfig) Sanitize() {
	a.BaseURL = strings.TrimRight(strings.TrimSpace(a.BaseURL), "/")
	if a.Timeout < 10*time.Second {
		a.Timeout = 10 * time.Second
	}
}
