package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ethpandaops/ephemeris/pkg/query"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

// RunQuery handles POST /api/v1/query
func (s *Server) RunQuery(c fiber.Ctx) error {
	if err := s.validateQuery(c.Body()); err != nil {
		return err
	}

	var req query.Request
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return ErrInvalidBody
	}

	rs, err := s.deps.Querier.Run(c.Context(), req)
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"body": req.Body,
			"year": req.Year,
		}).Warn("Query failed")

		return toHTTPError(err)
	}

	s.results.Store(rs)

	return c.Status(fiber.StatusOK).JSON(rs)
}

// validateQuery checks the raw body against the published request schema
func (s *Server) validateQuery(body []byte) error {
	if s.querySchema == nil {
		return nil
	}

	var raw interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return ErrInvalidBody
	}

	if err := s.querySchema.VisitJSON(raw); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	return nil
}

// LatestResult handles GET /api/v1/results/latest
func (s *Server) LatestResult(c fiber.Ctx) error {
	rs := s.results.Latest()
	if rs == nil {
		return ErrNoResults
	}

	return c.Status(fiber.StatusOK).JSON(rs)
}

// LatestResultCSV handles GET /api/v1/results/latest.csv
func (s *Server) LatestResultCSV(c fiber.Ctx) error {
	rs := s.results.Latest()
	if rs == nil {
		return ErrNoResults
	}

	var buf bytes.Buffer
	if err := query.WriteCSV(&buf, rs); err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", "ephemeris-"+rs.ID.String()+".csv"))

	return c.Status(fiber.StatusOK).Send(buf.Bytes())
}
