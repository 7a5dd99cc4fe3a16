package handlers

import (
	"context"
	"errors"

	"github.com/ethpandaops/ephemeris/pkg/hydrator"
	"github.com/ethpandaops/ephemeris/pkg/query"
	"github.com/ethpandaops/ephemeris/pkg/segment"
	"github.com/ethpandaops/ephemeris/pkg/swe"
	"github.com/gofiber/fiber/v3"
)

// ErrNoResults is returned when no query has completed yet
var ErrNoResults = fiber.NewError(fiber.StatusNotFound, "no query has completed yet")

// ErrInvalidBody is returned when a request body is not valid JSON
var ErrInvalidBody = fiber.NewError(fiber.StatusBadRequest, "request body must be a JSON object")

// ErrInvalidYear is returned when the year parameter is missing or not an integer
var ErrInvalidYear = fiber.NewError(fiber.StatusBadRequest, "year must be an integer")

// ErrInvalidAsync is returned when the async query parameter is not a boolean
var ErrInvalidAsync = fiber.NewError(fiber.StatusBadRequest, "async must be a boolean")

// ErrQueueUnavailable is returned for async hydration when no redis queue is configured
var ErrQueueUnavailable = fiber.NewError(fiber.StatusServiceUnavailable, "background hydration requires redis")

// toHTTPError maps domain errors onto status codes
func toHTTPError(err error) error {
	switch {
	case errors.Is(err, swe.ErrEngineUninitialized):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	case errors.Is(err, hydrator.ErrDataUnavailable):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	case errors.Is(err, query.ErrInvalidRequest),
		errors.Is(err, swe.ErrUnknownBody),
		errors.Is(err, segment.ErrInvalidID):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.NewError(fiber.StatusGatewayTimeout, err.Error())
	default:
		return err
	}
}
