package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // pprof is intentionally exposed when pprofAddr is configured
	"time"

	"github.com/ethpandaops/ephemeris/pkg/api"
	"github.com/ethpandaops/ephemeris/pkg/api/handlers"
	"github.com/ethpandaops/ephemeris/pkg/frontend"
	"github.com/ethpandaops/ephemeris/pkg/hydrator"
	"github.com/ethpandaops/ephemeris/pkg/observability"
	r "github.com/ethpandaops/ephemeris/pkg/redis"
	"github.com/ethpandaops/ephemeris/pkg/scheduler"
	"github.com/ethpandaops/ephemeris/pkg/segcache"
	"github.com/ethpandaops/ephemeris/pkg/swe"
	"github.com/ethpandaops/ephemeris/pkg/tasks"
	"github.com/ethpandaops/ephemeris/pkg/worker"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Service runs the ephemeris server
type Service struct {
	config *Config
	log    *logrus.Logger
	loader swe.Loader

	core      *Core
	queue     *tasks.QueueManager
	worker    worker.Service
	scheduler scheduler.Service
	api       api.Service

	healthServer *http.Server
	pprofServer  *http.Server

	redisOptions *redis.Options
	redisClient  *redis.Client
}

// NewService creates the server. loader may be nil, in which case the
// configured engine library is opened.
func NewService(log *logrus.Logger, cfg *Config, loader swe.Loader) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if loader == nil {
		loader = cfg.Engine.LibraryLoader()
	}

	s := &Service{
		config: cfg,
		log:    log,
		loader: loader,
	}

	var cache hydrator.PayloadCache

	if cfg.Redis.Enabled() {
		opts, err := cfg.Redis.Options()
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}

		s.redisOptions = opts
		s.redisClient = redis.NewClient(opts)

		if cfg.Cache.Enabled {
			cache = hydrator.NewRedisPayloadCache(log, segcache.New(s.redisClient, cfg.Redis.PrefixKey("segcache:"), &cfg.Cache))
		}

		s.queue = tasks.NewQueueManager(r.NewAsynqRedisOptions(opts), cfg.Redis.PrefixQueue(tasks.DefaultQueue))
	}

	core, err := NewCore(log, cfg, cache)
	if err != nil {
		return nil, err
	}

	s.core = core

	if cfg.Worker.Enabled {
		s.worker, err = worker.NewService(log, &cfg.Worker, s.redisOptions, s.queue.Queue(), core.Hydrator)
		if err != nil {
			return nil, fmt.Errorf("failed to create worker service: %w", err)
		}
	}

	if cfg.Scheduler.Enabled {
		s.scheduler, err = s.newScheduler()
		if err != nil {
			return nil, fmt.Errorf("failed to create scheduler service: %w", err)
		}
	}

	var frontendHandler http.Handler
	if cfg.Frontend.Enabled {
		frontendHandler, err = frontend.NewHandler()
		if err != nil {
			return nil, fmt.Errorf("failed to create frontend handler: %w", err)
		}
	}

	deps := handlers.Deps{
		Querier:  core.Orchestrator,
		Resolver: core.Resolver,
		Segments: core.Hydrator,
		Engine:   core.Bridge,
	}

	if s.queue != nil {
		deps.Enqueuer = s.queue
	}

	s.api, err = api.NewService(&cfg.API, deps, frontendHandler, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create API service: %w", err)
	}

	return s, nil
}

// newScheduler queues warmups through asynq when Redis is available and
// hydrates inline otherwise. Leader election needs Redis too.
func (s *Service) newScheduler() (scheduler.Service, error) {
	var (
		enqueuer scheduler.Enqueuer = scheduler.NewInlineEnqueuer(s.core.Hydrator)
		elector  scheduler.LeaderElector
	)

	if s.queue != nil {
		enqueuer = s.queue
		elector = scheduler.NewLeaderElector(s.log, s.redisClient, s.config.Redis.PrefixKey("scheduler:leader"),
			s.config.Scheduler.LeaseTTL, s.config.Scheduler.RenewInterval)
	}

	return scheduler.NewService(s.log, &s.config.Scheduler, s.core.Resolver, enqueuer, elector)
}

// Core returns the query stack
func (s *Service) Core() *Core {
	return s.core
}

// Start loads the engine in the background and starts every enabled component
func (s *Service) Start(ctx context.Context) error {
	s.log.Info("Starting ephemeris service...")

	observability.StartMetricsServer(s.log, s.config.MetricsAddr)

	if s.config.HealthCheckAddr != "" {
		s.startHealthCheck()
	}

	if s.config.PProfAddr != "" {
		s.startPProf()
	}

	s.core.Bridge.Load(ctx, s.loader)

	if s.worker != nil {
		if err := s.worker.Start(ctx); err != nil {
			return fmt.Errorf("failed to start worker: %w", err)
		}
	}

	if s.scheduler != nil {
		if err := s.scheduler.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	if err := s.api.Start(ctx); err != nil {
		return fmt.Errorf("failed to start API and frontend service: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"store":     s.core.Store.Root(),
		"redis":     s.config.Redis.Enabled(),
		"worker":    s.worker != nil,
		"scheduler": s.scheduler != nil,
	}).Info("Ephemeris service started")

	return nil
}

// Stop gracefully shuts down the service
func (s *Service) Stop() error {
	s.log.Info("Shutting down ephemeris service...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stopService := func(name string, stopFunc func() error) {
		if err := stopFunc(); err != nil {
			s.log.WithError(err).Errorf("Failed to stop %s", name)
		}
	}

	// Stop producing work before stopping the consumers of it.
	if s.scheduler != nil {
		stopService("scheduler service", s.scheduler.Stop)
	}

	if s.worker != nil {
		stopService("worker service", s.worker.Stop)
	}

	stopService("API and frontend service", s.api.Stop)

	if s.queue != nil {
		stopService("queue manager", s.queue.Close)
	}

	if s.redisClient != nil {
		stopService("Redis client", s.redisClient.Close)
	}

	stopService("engine", s.core.Close)

	if s.healthServer != nil {
		stopService("health check server", func() error { return s.healthServer.Shutdown(ctx) })
	}

	if s.pprofServer != nil {
		stopService("pprof server", func() error { return s.pprofServer.Shutdown(ctx) })
	}

	stopService("metrics server", func() error { return observability.StopMetricsServer(ctx) })

	return nil
}

// healthHandler reports liveness on /health and engine readiness on /ready
func (s *Service) healthHandler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	mux.HandleFunc("/ready", func(w http.ResponseWriter, _ *http.Request) {
		if err := s.core.Bridge.Check(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(err.Error()))

			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return mux
}

func (s *Service) startHealthCheck() {
	s.log.WithField("addr", s.config.HealthCheckAddr).Info("Starting health check server")

	s.healthServer = &http.Server{
		Addr:              s.config.HealthCheckAddr,
		Handler:           s.healthHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("Health check server error")
		}
	}()
}

func (s *Service) startPProf() {
	s.log.WithField("addr", s.config.PProfAddr).Info("Starting pprof server")

	s.pprofServer = &http.Server{
		Addr:              s.config.PProfAddr,
		Handler:           http.DefaultServeMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.pprofServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("pprof server error")
		}
	}()
}
