package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var (
	// ErrElectorStopped is returned when the elector is stopped while waiting for leadership
	ErrElectorStopped = errors.New("elector stopped while waiting for leadership")
)

// renewScript extends the lease only while this instance still owns it.
//
//nolint:gochecknoglobals // compiled once
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// releaseScript deletes the lease only while this instance still owns it.
//
//nolint:gochecknoglobals // compiled once
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LeaderElector decides which instance runs the warmup when several share
// one Redis.
type LeaderElector interface {
	Start(ctx context.Context) error
	Stop() error
	IsLeader() bool
	WaitForLeadership(ctx context.Context) error
}

type elector struct {
	log        logrus.FieldLogger
	redis      *redis.Client
	instanceID string
	key        string
	lease      time.Duration
	renew      time.Duration

	mu       sync.RWMutex
	isLeader bool

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	promoted chan struct{}
}

// NewLeaderElector creates an elector competing for key. The client is not
// closed by the elector.
func NewLeaderElector(log logrus.FieldLogger, client *redis.Client, key string, lease, renew time.Duration) LeaderElector {
	instanceID := uuid.NewString()

	return &elector{
		log:        log.WithFields(logrus.Fields{"component": "election", "instance_id": instanceID}),
		redis:      client,
		instanceID: instanceID,
		key:        key,
		lease:      lease,
		renew:      renew,
		done:       make(chan struct{}),
		promoted:   make(chan struct{}, 1),
	}
}

func (e *elector) Start(ctx context.Context) error {
	e.log.WithField("key", e.key).Info("Starting leader election")

	e.wg.Add(1)

	go e.run(ctx)

	return nil
}

func (e *elector) Stop() error {
	e.stopOnce.Do(func() {
		close(e.done)
	})

	e.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), e.renew)
	defer cancel()

	e.release(ctx)

	e.log.Info("Leader election stopped")

	return nil
}

func (e *elector) run(ctx context.Context) {
	defer e.wg.Done()

	e.campaign(ctx)

	ticker := time.NewTicker(e.renew)
	defer ticker.Stop()

	for {
		select {
		case <-e.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.campaign(ctx)
		}
	}
}

// campaign acquires or renews the lease and publishes transitions
func (e *elector) campaign(ctx context.Context) {
	held := e.holdLease(ctx)

	switch wasLeader := e.IsLeader(); {
	case held && !wasLeader:
		e.setLeader(true)
		e.log.Info("Promoted to leader")

		select {
		case e.promoted <- struct{}{}:
		default:
		}
	case !held && wasLeader:
		e.setLeader(false)
		e.log.Info("Demoted from leader")
	}
}

func (e *elector) holdLease(ctx context.Context) bool {
	acquired, err := e.redis.SetNX(ctx, e.key, e.instanceID, e.lease).Result()
	if err != nil {
		e.log.WithError(err).Debug("Failed to acquire leader lease")
		return false
	}

	if acquired {
		return true
	}

	renewed, err := renewScript.Run(ctx, e.redis, []string{e.key}, e.instanceID, e.lease.Milliseconds()).Int()
	if err != nil {
		e.log.WithError(err).Warn("Failed to renew leader lease")
		return false
	}

	return renewed == 1
}

func (e *elector) release(ctx context.Context) {
	if !e.IsLeader() {
		return
	}

	if err := releaseScript.Run(ctx, e.redis, []string{e.key}, e.instanceID).Err(); err != nil {
		e.log.WithError(err).Warn("Failed to release leader lease")
	}

	e.setLeader(false)
}

func (e *elector) setLeader(isLeader bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.isLeader = isLeader
}

func (e *elector) IsLeader() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.isLeader
}

func (e *elector) WaitForLeadership(ctx context.Context) error {
	if e.IsLeader() {
		return nil
	}

	select {
	case <-e.promoted:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context canceled while waiting for leadership: %w", ctx.Err())
	case <-e.done:
		return ErrElectorStopped
	}
}

var _ LeaderElector = (*elector)(nil)
