package handlers

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ethpandaops/ephemeris/pkg/hydrator"
	"github.com/ethpandaops/ephemeris/pkg/query"
	"github.com/ethpandaops/ephemeris/pkg/segment"
	"github.com/ethpandaops/ephemeris/pkg/swe"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToHTTPError(t *testing.T) {
	ref := segment.Ref{Class: segment.ClassPlanetary, Start: -3000}

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "engine not loaded", err: swe.ErrEngineUninitialized, expected: fiber.StatusServiceUnavailable},
		{
			name:     "every location failed",
			err:      &hydrator.DataUnavailableError{Segment: ref, Attempts: []hydrator.Attempt{{Location: "https://a", Err: errors.New("404")}}},
			expected: fiber.StatusBadGateway,
		},
		{name: "no locations configured", err: &hydrator.DataUnavailableError{Segment: ref}, expected: fiber.StatusBadGateway},
		{name: "wrapped unavailable", err: fmt.Errorf("query: %w", &hydrator.DataUnavailableError{Segment: ref}), expected: fiber.StatusBadGateway},
		{name: "invalid request", err: fmt.Errorf("%w: steps", query.ErrInvalidRequest), expected: fiber.StatusBadRequest},
		{name: "unknown body", err: swe.ErrUnknownBody, expected: fiber.StatusBadRequest},
		{name: "deadline", err: context.DeadlineExceeded, expected: fiber.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fe *fiber.Error
			require.True(t, errors.As(toHTTPError(tt.err), &fe))
			assert.Equal(t, tt.expected, fe.Code)
		})
	}
}
