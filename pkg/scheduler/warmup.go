package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethpandaops/ephemeris/pkg/segment"
	"github.com/ethpandaops/ephemeris/pkg/tasks"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Enqueuer schedules hydration of one segment. It returns false when the
// segment was already scheduled.
type Enqueuer interface {
	Enqueue(ctx context.Context, ref segment.Ref, trigger string) (bool, error)
}

// Service runs the warmup on its schedule
type Service interface {
	Start(ctx context.Context) error
	Stop() error

	// Warmup schedules every configured segment once and returns how
	// many were newly scheduled
	Warmup(ctx context.Context) (int, error)
}

type service struct {
	log      logrus.FieldLogger
	cfg      *Config
	resolver *segment.Resolver
	enqueuer Enqueuer
	elector  LeaderElector

	cron   *cron.Cron
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService creates the warmup service. elector may be nil, in which case
// this instance always runs the warmup.
func NewService(log logrus.FieldLogger, cfg *Config, resolver *segment.Resolver, enqueuer Enqueuer, elector LeaderElector) (Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &service{
		log:      log.WithField("service", "scheduler"),
		cfg:      cfg,
		resolver: resolver,
		enqueuer: enqueuer,
		elector:  elector,
	}, nil
}

func (s *service) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	if s.elector != nil {
		if err := s.elector.Start(ctx); err != nil {
			return fmt.Errorf("failed to start leader election: %w", err)
		}
	}

	sched, err := parseSchedule(s.cfg.Schedule)
	if err != nil {
		return err
	}

	logger := &cronLogger{log: s.log.WithField("component", "cron")}

	s.cron = cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	s.cron.Schedule(sched, cron.FuncJob(func() { s.tick(ctx) }))
	s.cron.Start()

	if s.cfg.RunOnStart {
		s.wg.Add(1)

		go func() {
			defer s.wg.Done()

			if s.elector != nil {
				if err := s.elector.WaitForLeadership(ctx); err != nil {
					return
				}
			}

			s.tick(ctx)
		}()
	}

	s.log.WithFields(logrus.Fields{
		"schedule": s.cfg.Schedule,
		"segments": len(s.refs()),
	}).Info("Scheduler started")

	return nil
}

func (s *service) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}

	if s.cron != nil {
		<-s.cron.Stop().Done()
	}

	s.wg.Wait()

	if s.elector != nil {
		if err := s.elector.Stop(); err != nil {
			return err
		}
	}

	s.log.Info("Scheduler stopped")

	return nil
}

func (s *service) tick(ctx context.Context) {
	if s.elector != nil && !s.elector.IsLeader() {
		s.log.Debug("Not leader, skipping warmup")
		return
	}

	scheduled, err := s.Warmup(ctx)
	if err != nil {
		s.log.WithError(err).Warn("Warmup incomplete")
	}

	s.log.WithField("scheduled", scheduled).Info("Warmup run finished")
}

func (s *service) Warmup(ctx context.Context) (int, error) {
	var (
		scheduled int
		errs      []error
	)

	for _, ref := range s.refs() {
		if err := ctx.Err(); err != nil {
			return scheduled, err
		}

		ok, err := s.enqueuer.Enqueue(ctx, ref, tasks.TriggerSchedule)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ref.ID(), err))
			continue
		}

		if ok {
			scheduled++
		}
	}

	return scheduled, errors.Join(errs...)
}

// refs returns the distinct segments covering every configured span
func (s *service) refs() []segment.Ref {
	seen := make(map[string]struct{})

	var out []segment.Ref

	for _, span := range s.cfg.Spans {
		bodies, err := span.bodies()
		if err != nil {
			continue
		}

		for _, body := range bodies {
			for _, ref := range s.resolver.Span(span.From, span.To, body) {
				if _, ok := seen[ref.ID()]; ok {
					continue
				}

				seen[ref.ID()] = struct{}{}
				out = append(out, ref)
			}
		}
	}

	return out
}

// cronLogger adapts logrus to cron's logger
type cronLogger struct {
	log logrus.FieldLogger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(fields(keysAndValues)).Debug(msg)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithError(err).WithFields(fields(keysAndValues)).Error(msg)
}

func fields(keysAndValues []interface{}) logrus.Fields {
	out := make(logrus.Fields, len(keysAndValues)/2)

	for i := 0; i+1 < len(keysAndValues); i += 2 {
		out[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}

	return out
}

var (
	_ Service     = (*service)(nil)
	_ cron.Logger = (*cronLogger)(nil)
)
