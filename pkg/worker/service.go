package worker

import (
	"context"
	"fmt"

	r "github.com/ethpandaops/ephemeris/pkg/redis"
	"github.com/ethpandaops/ephemeris/pkg/tasks"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Service defines the public interface for the worker service
type Service interface {
	// Start begins processing hydration tasks
	Start(ctx context.Context) error

	// Stop waits for in-flight tasks and shuts the server down
	Stop() error
}

type service struct {
	config *Config
	log    logrus.FieldLogger
	queue  string

	redisOpt *redis.Options
	hydrator tasks.Ensurer

	server *asynq.Server
}

// NewService creates a new worker service consuming queue
func NewService(log logrus.FieldLogger, cfg *Config, redisOpt *redis.Options, queue string, h tasks.Ensurer) (Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if queue == "" {
		queue = tasks.DefaultQueue
	}

	return &service{
		log:      log.WithField("service", "worker"),
		config:   cfg,
		queue:    queue,
		redisOpt: redisOpt,
		hydrator: h,
	}, nil
}

// Start starts the asynq server in the background
func (s *service) Start(_ context.Context) error {
	handler := tasks.NewTaskHandler(s.log, s.hydrator)

	srv := asynq.NewServer(*r.NewAsynqRedisOptions(s.redisOpt), asynq.Config{
		Concurrency:     s.config.Concurrency,
		Queues:          map[string]int{s.queue: 10},
		ShutdownTimeout: s.config.ShutdownTimeout,
		Logger:          &asynqLogger{log: s.log.WithField("component", "asynq")},
	})

	mux := asynq.NewServeMux()
	for taskType, handlerFunc := range handler.Routes() {
		mux.HandleFunc(taskType, handlerFunc)
	}

	if err := srv.Start(mux); err != nil {
		return fmt.Errorf("failed to start worker server: %w", err)
	}

	s.server = srv

	s.log.WithFields(logrus.Fields{
		"queue":       s.queue,
		"concurrency": s.config.Concurrency,
	}).Info("Worker service started")

	return nil
}

// Stop gracefully shuts down the worker
func (s *service) Stop() error {
	if s.server != nil {
		s.server.Shutdown()
	}

	s.log.Info("Worker service stopped")

	return nil
}

// asynqLogger routes asynq's internal logging through logrus
type asynqLogger struct {
	log logrus.FieldLogger
}

func (l *asynqLogger) Debug(args ...interface{}) { l.log.Debug(args...) }
func (l *asynqLogger) Info(args ...interface{})  { l.log.Info(args...) }
func (l *asynqLogger) Warn(args ...interface{})  { l.log.Warn(args...) }
func (l *asynqLogger) Error(args ...interface{}) { l.log.Error(args...) }
func (l *asynqLogger) Fatal(args ...interface{}) { l.log.Fatal(args...) }

var (
	_ Service      = (*service)(nil)
	_ asynq.Logger = (*asynqLogger)(nil)
)
