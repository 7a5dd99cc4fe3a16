package handlers

import (
	"encoding/json"
	"strconv"

	"github.com/ethpandaops/ephemeris/pkg/swe"
	"github.com/ethpandaops/ephemeris/pkg/tasks"
	"github.com/gofiber/fiber/v3"
)

// Resolution is the answer to GET /segments/resolve
type Resolution struct {
	Year      int      `json:"year"`
	Body      string   `json:"body"`
	Required  bool     `json:"required"`
	Segment   string   `json:"segment,omitempty"`
	Aliases   []string `json:"aliases,omitempty"`
	Locations []string `json:"locations,omitempty"`
	Resident  bool     `json:"resident"`
}

type hydrateRequest struct {
	Year int    `json:"year"`
	Body string `json:"body"`
}

// ResolveSegment handles GET /api/v1/segments/resolve
func (s *Server) ResolveSegment(c fiber.Ctx) error {
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil {
		return ErrInvalidYear
	}

	body, err := swe.ParseBody(c.Query("body"))
	if err != nil {
		return toHTTPError(err)
	}

	res := Resolution{Year: year, Body: body.String(), Resident: true}

	ref, ok := s.deps.Resolver.Resolve(year, body)
	if !ok {
		return c.Status(fiber.StatusOK).JSON(res)
	}

	res.Required = true
	res.Segment = ref.ID()
	res.Aliases = ref.Aliases()

	if res.Locations, err = s.deps.Segments.Locations(ref); err != nil {
		return err
	}

	if res.Resident, err = s.deps.Segments.Resident(ref); err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(res)
}

// HydrateSegment handles POST /api/v1/segments/hydrate. With ?async=true the
// segment is queued instead of fetched inline.
func (s *Server) HydrateSegment(c fiber.Ctx) error {
	async := false

	if raw := c.Query("async"); raw != "" {
		var err error
		if async, err = strconv.ParseBool(raw); err != nil {
			return ErrInvalidAsync
		}
	}

	var req hydrateRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return ErrInvalidBody
	}

	body, err := swe.ParseBody(req.Body)
	if err != nil {
		return toHTTPError(err)
	}

	ref, ok := s.deps.Resolver.Resolve(req.Year, body)
	if !ok {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"year":     req.Year,
			"body":     body.String(),
			"required": false,
		})
	}

	if async {
		if s.deps.Enqueuer == nil {
			s.log.WithField("segment", ref.ID()).Warn("Async hydration requested without a redis queue")

			return ErrQueueUnavailable
		}

		queued, err := s.deps.Enqueuer.Enqueue(c.Context(), ref, tasks.TriggerManual)
		if err != nil {
			return err
		}

		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"segment": ref.ID(),
			"queued":  queued,
		})
	}

	outcome, err := s.deps.Segments.Ensure(c.Context(), ref)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(outcome)
}

// SegmentManifest handles GET /api/v1/segments/manifest
func (s *Server) SegmentManifest(c fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(s.deps.Segments.Manifest())
}
