package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/jobtrawl/jobtrawl/config"
	"github.com/jobtrawl/jobtrawl/internal/adapters/agent"
	"github.com/jobtrawl/jobtrawl/internal/adapters/boardfeed"
	"github.com/jobtrawl/jobtrawl/internal/adapters/careers"
	"github.com/jobtrawl/jobtrawl/internal/core"
	"github.com/jobtrawl/jobtrawl/internal/observability/notify/pagerduty"
	"github.com/jobtrawl/jobtrawl/internal/observability/notify/slack"
	"github.com/jobtrawl/jobtrawl/internal/observability/statsd"
	"github.com/jobtrawl/jobtrawl/internal/service"
	"github.com/jobtrawl/jobtrawl/internal/service/failurenotifier"
)

// ServiceContainer holds the services for every enabled mode. Modes that are
// not enabled leave their service nil.
type ServiceContainer struct {
	Runner        *service.RunService       // run and scheduler modes
	Scheduler     *service.SchedulerService // scheduler mode
	Reaper        *service.ReaperService    // reaper mode
	Stores        *Stores
	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink     *statsd.Client
	MetricsConfig   config.ObservabilityMetricsConfig
	FailureNotifier *failurenotifier.Service
	NotifierConfig  config.ObservabilityNotificationsConfig
}

// ServiceDeps groups dependencies for service initialization. DB and
// RedisClient stay nil unless the configured backends need them.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// NewServices wires the services for every enabled mode: the run pipeline
// for run and scheduler, the reaper for retention. Construction validates
// configuration and documents up front so a bad deployment fails at startup,
// not on the first tick.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service deps with config are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	enabled, err := cfg.GetEnabledServices()
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("determine enabled services: %w", err)
	}

	observability := buildObservability(logger, cfg.Observability)

	stores, err := BuildStores(StoreDeps{
		Config:      cfg,
		DB:          deps.DB,
		RedisClient: deps.RedisClient,
		Logger:      logger,
	})
	if err != nil {
		return ServiceContainer{}, err
	}

	container := ServiceContainer{
		Stores:        stores,
		Observability: observability,
	}

	if enabled[config.ServiceModeRun] || enabled[config.ServiceModeScheduler] {
		runner, err := buildRunPipeline(deps, stores, observability, logger)
		if err != nil {
			return ServiceContainer{}, err
		}
		container.Runner = runner
	}

	if enabled[config.ServiceModeScheduler] {
		scheduler, err := service.NewSchedulerService(service.SchedulerServiceOptions{
			Runner: container.Runner,
			Config: cfg.Scheduler,
			Logger: logger,
		})
		if err != nil {
			return ServiceContainer{}, fmt.Errorf("create scheduler service: %w", err)
		}
		container.Scheduler = scheduler
	}

	if enabled[config.ServiceModeReaper] {
		reaper, err := service.NewReaperService(service.ReaperServiceOptions{
			Store:   stores.Reaper,
			Config:  cfg.Reaper,
			Logger:  logger,
			Metrics: observability.MetricsSink,
		})
		if err != nil {
			return ServiceContainer{}, fmt.Errorf("create reaper service: %w", err)
		}
		container.Reaper = reaper
	}

	return container, nil
}

// Close flushes and releases the long-lived resources the container owns.
// The database and redis handles belong to the caller.
func (c *ServiceContainer) Close() error {
	var errs []error
	if c.Stores != nil && c.Stores.Records != nil {
		if err := c.Stores.Records.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close record store: %w", err))
		}
	}
	if c.Observability.MetricsSink != nil {
		if err := c.Observability.MetricsSink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close metrics sink: %w", err))
		}
	}
	return errors.Join(errs...)
}

// buildRunPipeline assembles everything one run needs: documents, producer,
// driver, engine, run service.
func buildRunPipeline(
	deps *ServiceDeps,
	stores *Stores,
	observability ObservabilityContainer,
	logger *slog.Logger,
) (*service.RunService, error) {
	cfg := deps.Config

	criteria, err := config.LoadCriteria(cfg.Search.CriteriaPath)
	if err != nil {
		return nil, err
	}
	profile, err := config.LoadProfile(cfg.Search.ProfilePath)
	if err != nil {
		return nil, err
	}

	producer, err := buildProducer(cfg.Search, logger)
	if err != nil {
		return nil, err
	}

	driver, err := agent.NewDriver(agent.DriverOptions{
		BaseURL: cfg.Agent.BaseURL,
		Token:   cfg.Agent.Token,
		Timeout: cfg.Agent.Timeout,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create agent driver: %w", err)
	}

	engine, err := service.NewEngine(service.EngineOptions{
		Store:      stores.Records,
		Driver:     driver,
		Profile:    profile,
		Platform:   producer.Platform(),
		RetryLimit: cfg.Runner.RetryLimit,
		Logger:     logger,
		Metrics:    observability.MetricsSink,
	})
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}

	runner, err := service.NewRunService(service.RunOptions{
		Engine:          engine,
		Producer:        producer,
		Store:           stores.Records,
		Locker:          stores.Locker,
		Criteria:        criteria,
		BatchSize:       cfg.Runner.BatchSize,
		PaceMin:         cfg.Runner.PaceMin,
		PaceMax:         cfg.Runner.PaceMax,
		DryRun:          cfg.Runner.DryRun,
		Logger:          logger,
		Metrics:         observability.MetricsSink,
		FailureNotifier: observability.FailureNotifier,
	})
	if err != nil {
		return nil, fmt.Errorf("create run service: %w", err)
	}
	return runner, nil
}

// buildProducer selects the search producer adapter for the configured
// platform.
//
//nolint:ireturn // the pipeline programs against the SearchProducer port.
func buildProducer(cfg config.SearchConfig, logger *slog.Logger) (core.SearchProducer, error) {
	switch cfg.Platform {
	case boardfeed.PlatformName:
		return boardfeed.NewProducer(boardfeed.ProducerOptions{
			BaseURL:      cfg.BaseURL,
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Logger:       logger,
		})
	case careers.PlatformName:
		return careers.NewProducer(careers.ProducerOptions{
			BaseURL: cfg.BaseURL,
			Logger:  logger,
		})
	default:
		return nil, fmt.Errorf("unknown search platform %q (valid: %s, %s)",
			cfg.Platform, boardfeed.PlatformName, careers.PlatformName)
	}
}

// buildObservability configures metrics and notification adapters.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var metricsSink *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  "jobtrawl",
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			metricsSink = client
		}
	}

	return ObservabilityContainer{
		MetricsSink:     metricsSink,
		MetricsConfig:   cfg.Metrics,
		FailureNotifier: buildFailureNotifier(obsLogger, cfg.Notifications),
		NotifierConfig:  cfg.Notifications,
	}
}

func buildFailureNotifier(logger *slog.Logger, cfg config.ObservabilityNotificationsConfig) *failurenotifier.Service {
	baseLogger := logger
	if baseLogger == nil {
		baseLogger = slog.Default()
	}

	if !cfg.Enabled {
		return failurenotifier.NewService(failurenotifier.Options{
			Logger: baseLogger.With("component", "failure_notifier"),
		})
	}

	sinks := make([]failurenotifier.SinkRegistration, 0, 2)

	if cfg.Slack.Enabled {
		client, err := slack.NewClient(slack.Config{
			WebhookURL: cfg.Slack.WebhookURL,
			Channel:    cfg.Slack.Channel,
			Username:   cfg.Slack.Username,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			baseLogger.Error("failed to initialise slack notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{
				Name: "slack",
				Sink: client,
			})
		}
	}

	if cfg.PagerDuty.Enabled {
		client, err := pagerduty.NewClient(pagerduty.Config{
			RoutingKey: cfg.PagerDuty.RoutingKey,
			Source:     cfg.PagerDuty.Source,
			Component:  cfg.PagerDuty.Component,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			baseLogger.Error("failed to initialise pagerduty notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{
				Name: "pagerduty",
				Sink: client,
			})
		}
	}

	return failurenotifier.NewService(failurenotifier.Options{
		Logger: baseLogger.With("component", "failure_notifier"),
		Sinks:  sinks,
	})
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// RunServicesWithShutdown starts every enabled service under one errgroup and
// blocks until they finish, one fails, or a shutdown signal arrives. A
// completed one-shot run cancels the group so companion modes wind down with
// it.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enabled, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	g, gctx := errgroup.WithContext(ctx)

	go func() {
		select {
		case sig := <-quit:
			logger.Info("shutting down services", "signal", sig.String())
			cancel()
		case <-gctx.Done():
		}
	}()

	if enabled[config.ServiceModeRun] {
		runner := cfg.Services.Runner
		if runner == nil {
			return errors.New("run mode enabled but no run service built")
		}
		g.Go(func() error {
			// One-shot: completion ends the process, companions included.
			defer cancel()
			if _, err := runner.Execute(gctx); err != nil {
				return fmt.Errorf("run: %w", err)
			}
			return nil
		})
		logger.Info("service started", "service", "run")
	}

	if enabled[config.ServiceModeScheduler] {
		scheduler := cfg.Services.Scheduler
		if scheduler == nil {
			return errors.New("scheduler mode enabled but no scheduler service built")
		}
		g.Go(func() error { return scheduler.Run(gctx) })
		logger.Info("service started", "service", "scheduler")
	}

	if enabled[config.ServiceModeReaper] {
		reaper := cfg.Services.Reaper
		if reaper == nil {
			return errors.New("reaper mode enabled but no reaper service built")
		}
		g.Go(func() error { return reaper.Run(gctx) })
		logger.Info("service started", "service", "reaper")
	}

	err = g.Wait()

	if cerr := cfg.Services.Close(); cerr != nil {
		logger.Warn("close services", "error", cerr)
	}

	// A cancellation travelling out of a service is a shutdown, not a fault.
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("service error", "error", err)
		return err
	}
	logger.Info("services stopped")
	return nil
}
