package bootstrap

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobtrawl/jobtrawl/config"
	"github.com/jobtrawl/jobtrawl/internal/data/filestore"
)

const testCriteriaYAML = `searches:
  - keywords: [golang, backend]
    location: Berlin
`

const testProfileYAML = `name: Sam Reyes
email: sam@example.com
resumes:
  - version: backend-v2
    file_path: /srv/resumes/backend-v2.pdf
default_resume: backend-v2
`

// writeDocuments drops a valid criteria and profile document into dir.
func writeDocuments(t *testing.T, dir string) (criteriaPath, profilePath string) {
	t.Helper()
	criteriaPath = filepath.Join(dir, "criteria.yaml")
	profilePath = filepath.Join(dir, "profile.yaml")
	require.NoError(t, os.WriteFile(criteriaPath, []byte(testCriteriaYAML), 0o644))
	require.NoError(t, os.WriteFile(profilePath, []byte(testProfileYAML), 0o644))
	return criteriaPath, profilePath
}

// fileConfig builds a sanitized config on the file store backend with
// documents under dir.
func fileConfig(t *testing.T, dir, services string) *config.AppConfig {
	t.Helper()
	cfg := &config.AppConfig{
		Services: services,
		Search: config.SearchConfig{
			Platform: "boardfeed",
			Account:  "sam@example.com",
			BaseURL:  "http://localhost:9",
		},
		Store: config.StoreConfig{
			Backend: config.StoreBackendFile,
			DataDir: filepath.Join(dir, "data"),
		},
		Agent: config.AgentConfig{BaseURL: "http://localhost:8745"},
	}
	cfg.Search.CriteriaPath, cfg.Search.ProfilePath = writeDocuments(t, dir)
	cfg.Sanitize()
	return cfg
}

func TestGetEnabledServices(t *testing.T) {
	assert.Empty(t, GetEnabledServices(nil))

	cfg := &config.AppConfig{Services: "run"}
	assert.Equal(t, []string{"run"}, GetEnabledServices(cfg))

	cfg.Services = "scheduler,reaper"
	assert.ElementsMatch(t, []string{"scheduler", "reaper"}, GetEnabledServices(cfg))

	cfg.Services = "warp-drive"
	assert.Empty(t, GetEnabledServices(cfg), "invalid names surface at validation, not here")
}

func TestValidateServiceConfig(t *testing.T) {
	require.Error(t, ValidateServiceConfig(nil))

	cfg := &config.AppConfig{Services: "warp-drive"}
	err := ValidateServiceConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid service name")

	cfg.Services = "run"
	assert.NoError(t, ValidateServiceConfig(cfg))
}

func TestBuildStores_FileBackend(t *testing.T) {
	cfg := fileConfig(t, t.TempDir(), "run")

	stores, err := BuildStores(StoreDeps{Config: cfg})
	require.NoError(t, err)
	assert.NotNil(t, stores.Records)
	assert.NotNil(t, stores.Reaper)
	assert.IsType(t, &filestore.FileLock{}, stores.Locker, "file store derives a file lock")
}

func TestBuildStores_PostgresRequiresDB(t *testing.T) {
	cfg := fileConfig(t, t.TempDir(), "run")
	cfg.Store.Backend = config.StoreBackendPostgres

	_, err := BuildStores(StoreDeps{Config: cfg})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a database connection")
}

func TestBuildStores_RedisLockRequiresClient(t *testing.T) {
	cfg := fileConfig(t, t.TempDir(), "run")
	cfg.Lock.Backend = config.LockBackendRedis

	_, err := BuildStores(StoreDeps{Config: cfg})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a redis client")
}

func TestBuildProducer(t *testing.T) {
	producer, err := buildProducer(config.SearchConfig{
		Platform: "boardfeed",
		BaseURL:  "http://localhost:9",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "boardfeed", producer.Platform())

	producer, err = buildProducer(config.SearchConfig{
		Platform: "careers",
		BaseURL:  "http://localhost:9",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "careers", producer.Platform())

	_, err = buildProducer(config.SearchConfig{Platform: "warpboard"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown search platform "warpboard"`)
}

func TestBuildFailureNotifier(t *testing.T) {
	svc := buildFailureNotifier(nil, config.ObservabilityNotificationsConfig{})
	assert.False(t, svc.Enabled(), "no sinks, nothing to notify")

	svc = buildFailureNotifier(nil, config.ObservabilityNotificationsConfig{
		Enabled: true,
		Slack: config.SlackNotificationConfig{
			Enabled:    true,
			WebhookURL: "https://hooks.slack.example/T000/B000",
		},
	})
	assert.True(t, svc.Enabled())
}

func TestNewServices_RunMode(t *testing.T) {
	cfg := fileConfig(t, t.TempDir(), "run")

	container, err := NewServices(&ServiceDeps{Config: cfg})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	assert.NotNil(t, container.Runner)
	assert.Nil(t, container.Scheduler)
	assert.Nil(t, container.Reaper)
	assert.NotNil(t, container.Stores)
	assert.NotNil(t, container.Observability.FailureNotifier)
}

func TestNewServices_SchedulerAndReaper(t *testing.T) {
	cfg := fileConfig(t, t.TempDir(), "scheduler,reaper")

	container, err := NewServices(&ServiceDeps{Config: cfg})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	assert.NotNil(t, container.Runner, "the scheduler fires the run pipeline")
	assert.NotNil(t, container.Scheduler)
	assert.NotNil(t, container.Reaper)
}

func TestNewServices_ReaperOnlySkipsRunPipeline(t *testing.T) {
	cfg := fileConfig(t, t.TempDir(), "reaper")
	// A retention-only deployment carries no documents.
	cfg.Search.CriteriaPath = filepath.Join(t.TempDir(), "missing.yaml")
	cfg.Search.ProfilePath = filepath.Join(t.TempDir(), "missing.yaml")

	container, err := NewServices(&ServiceDeps{Config: cfg})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	assert.Nil(t, container.Runner)
	assert.NotNil(t, container.Reaper)
}

func TestNewServices_MissingCriteria(t *testing.T) {
	cfg := fileConfig(t, t.TempDir(), "run")
	cfg.Search.CriteriaPath = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := NewServices(&ServiceDeps{Config: cfg})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "criteria")
}

func TestNewServices_NilDeps(t *testing.T) {
	_, err := NewServices(nil)
	require.Error(t, err)
}

func TestRunServicesWithShutdown_Validation(t *testing.T) {
	require.Error(t, RunServicesWithShutdown(nil))

	err := RunServicesWithShutdown(&ServiceOrchestrationConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing AppConfig")

	// Run mode enabled, but the container never got a runner.
	err = RunServicesWithShutdown(&ServiceOrchestrationConfig{
		Config: &config.AppConfig{Services: "run"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no run service built")
}

func TestRunServicesWithShutdown_OneShotRun(t *testing.T) {
	// An empty board: login-free search yields no postings, the run flushes
	// and the process winds down on its own.
	board := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"postings":[],"total":0}`))
	}))
	defer board.Close()

	dir := t.TempDir()
	cfg := fileConfig(t, dir, "run")
	cfg.Search.BaseURL = board.URL

	container, err := NewServices(&ServiceDeps{Config: cfg})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- RunServicesWithShutdown(&ServiceOrchestrationConfig{
			Config:   cfg,
			Services: container,
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("one-shot run did not finish")
	}

	// The run flushed the store document on its way out.
	_, err = os.Stat(filepath.Join(cfg.Store.DataDir, "boardfeed.json"))
	assert.NoError(t, err)
}
