package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethpandaops/ephemeris/pkg/hydrator"
	"github.com/ethpandaops/ephemeris/pkg/observability"
	"github.com/ethpandaops/ephemeris/pkg/segment"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// Ensurer makes a segment resident
type Ensurer interface {
	Ensure(ctx context.Context, ref segment.Ref) (hydrator.Outcome, error)
}

// TaskHandler handles task execution
type TaskHandler struct {
	log      logrus.FieldLogger
	hydrator Ensurer
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(log logrus.FieldLogger, h Ensurer) *TaskHandler {
	return &TaskHandler{
		log:      log.WithField("component", "task-handler"),
		hydrator: h,
	}
}

// HandleHydrate handles hydration tasks. Payloads that cannot be parsed
// are not retried.
func (h *TaskHandler) HandleHydrate(ctx context.Context, t *asynq.Task) error {
	var payload HydratePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		observability.RecordError("task-handler", "unmarshal_error")
		observability.RecordTaskComplete("failed")

		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	ref, err := payload.Ref()
	if err != nil {
		observability.RecordError("task-handler", "invalid_segment")
		observability.RecordTaskComplete("failed")

		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	log := h.log.WithFields(logrus.Fields{
		"segment": ref.ID(),
		"trigger": payload.Trigger,
	})

	start := time.Now()

	outcome, err := h.hydrator.Ensure(ctx, ref)
	if err != nil {
		log.WithError(err).Warn("Hydration task failed")
		observability.RecordTaskComplete("failed")

		return fmt.Errorf("hydrate %s: %w", ref.ID(), err)
	}

	observability.RecordTaskComplete("success")

	log.WithFields(logrus.Fields{
		"source":   outcome.Source,
		"bytes":    outcome.Bytes,
		"duration": time.Since(start),
	}).Info("Hydration task completed")

	return nil
}

// Routes returns the task handler routes for Asynq
func (h *TaskHandler) Routes() map[string]asynq.HandlerFunc {
	return map[string]asynq.HandlerFunc{
		TypeSegmentHydrate: h.HandleHydrate,
	}
}
