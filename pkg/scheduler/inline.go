package scheduler

import (
	"context"

	"github.com/ethpandaops/ephemeris/pkg/hydrator"
	"github.com/ethpandaops/ephemeris/pkg/segment"
	"github.com/ethpandaops/ephemeris/pkg/tasks"
)

// InlineEnqueuer hydrates immediately instead of queueing. It is used when
// no Redis is configured.
type InlineEnqueuer struct {
	hydrator tasks.Ensurer
}

// NewInlineEnqueuer wraps h as an Enqueuer
func NewInlineEnqueuer(h tasks.Ensurer) *InlineEnqueuer {
	return &InlineEnqueuer{hydrator: h}
}

// Enqueue hydrates ref. It returns false when the segment was already resident.
func (e *InlineEnqueuer) Enqueue(ctx context.Context, ref segment.Ref, _ string) (bool, error) {
	outcome, err := e.hydrator.Ensure(ctx, ref)
	if err != nil {
		return false, err
	}

	return outcome.Source != hydrator.SourceResident, nil
}

var _ Enqueuer = (*InlineEnqueuer)(nil)
