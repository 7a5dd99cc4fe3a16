package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ethpandaops/ephemeris/pkg/observability"
	"github.com/ethpandaops/ephemeris/pkg/segment"
	"github.com/hibiken/asynq"
)

// DefaultQueue is the queue hydration tasks are placed on
const DefaultQueue = "segments"

// QueueManager manages task queuing
type QueueManager struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	queue     string
}

// NewQueueManager creates a new queue manager
func NewQueueManager(redisOpt *asynq.RedisClientOpt, queue string) *QueueManager {
	if queue == "" {
		queue = DefaultQueue
	}

	return &QueueManager{
		client:    asynq.NewClient(*redisOpt),
		inspector: asynq.NewInspector(*redisOpt),
		queue:     queue,
	}
}

// Queue returns the queue name tasks are enqueued on
func (q *QueueManager) Queue() string {
	return q.queue
}

// EnqueueHydrate enqueues a hydration task. A task already queued for the
// same segment is not an error.
func (q *QueueManager) EnqueueHydrate(ctx context.Context, payload HydratePayload, opts ...asynq.Option) (bool, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return false, err
	}

	task := asynq.NewTask(TypeSegmentHydrate, data)

	defaultOpts := []asynq.Option{
		asynq.TaskID(payload.UniqueID()),
		asynq.Queue(q.queue),
		asynq.MaxRetry(3),
		asynq.Timeout(10 * time.Minute),
		asynq.Retention(time.Hour),
	}

	allOpts := defaultOpts
	allOpts = append(allOpts, opts...)

	if _, err := q.client.EnqueueContext(ctx, task, allOpts...); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
			return false, nil
		}

		return false, err
	}

	observability.RecordTaskEnqueued(payload.Trigger)

	return true, nil
}

// Enqueue enqueues hydration of ref. It satisfies the scheduler's Enqueuer.
func (q *QueueManager) Enqueue(ctx context.Context, ref segment.Ref, trigger string) (bool, error) {
	return q.EnqueueHydrate(ctx, NewHydratePayload(ref, trigger))
}

// IsTaskPendingOrRunning checks if a hydration task for segment is queued or active
func (q *QueueManager) IsTaskPendingOrRunning(segmentID string) (bool, error) {
	info, err := q.inspector.GetTaskInfo(q.queue, HydratePayload{Segment: segmentID}.UniqueID())
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			return false, nil
		}

		return false, err
	}

	return info.State == asynq.TaskStatePending ||
		info.State == asynq.TaskStateActive ||
		info.State == asynq.TaskStateRetry, nil
}

// GetQueueStats returns queue statistics
func (q *QueueManager) GetQueueStats() (*asynq.QueueInfo, error) {
	return q.inspector.GetQueueInfo(q.queue)
}

// Close closes the queue manager
func (q *QueueManager) Close() error {
	if err := q.inspector.Close(); err != nil {
		_ = q.client.Close()
		return err
	}

	return q.client.Close()
}
