// Package tasks provides background segment hydration using Asynq
package tasks

import (
	"time"

	"github.com/ethpandaops/ephemeris/pkg/segment"
)

const (
	// TypeSegmentHydrate is the task type for segment hydration
	TypeSegmentHydrate = "segment:hydrate"

	// TriggerSchedule marks tasks enqueued by the warmup schedule
	TriggerSchedule = "schedule"
	// TriggerManual marks tasks enqueued from the CLI or API
	TriggerManual = "manual"
)

// HydratePayload is the payload of a hydration task
type HydratePayload struct {
	Segment    string    `json:"segment"`
	Trigger    string    `json:"trigger"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewHydratePayload creates a payload for ref
func NewHydratePayload(ref segment.Ref, trigger string) HydratePayload {
	return HydratePayload{
		Segment:    ref.ID(),
		Trigger:    trigger,
		EnqueuedAt: time.Now().UTC(),
	}
}

// UniqueID returns a unique identifier for this task. One pending task per
// segment is enough.
func (p HydratePayload) UniqueID() string {
	return "hydrate:" + p.Segment
}

// Ref parses the segment identifier
func (p HydratePayload) Ref() (segment.Ref, error) {
	return segment.ParseID(p.Segment)
}
