// Package handlers implements the ephemeris HTTP API
package handlers

import (
	"context"

	"github.com/ethpandaops/ephemeris/pkg/hydrator"
	"github.com/ethpandaops/ephemeris/pkg/query"
	"github.com/ethpandaops/ephemeris/pkg/segment"
	"github.com/ethpandaops/ephemeris/pkg/swe"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

// Querier runs position queries
type Querier interface {
	Run(ctx context.Context, req query.Request) (*query.ResultSet, error)
}

// Segments makes segments resident and reports on them
type Segments interface {
	Ensure(ctx context.Context, ref segment.Ref) (hydrator.Outcome, error)
	Locations(ref segment.Ref) ([]string, error)
	Resident(ref segment.Ref) (bool, error)
	Manifest() hydrator.Manifest
}

// EngineStatus reports the engine load state
type EngineStatus interface {
	State() swe.State
	Check() error
}

// Enqueuer schedules background hydration
type Enqueuer interface {
	Enqueue(ctx context.Context, ref segment.Ref, trigger string) (bool, error)
}

// Deps are the collaborators of the API server. Enqueuer and Document may
// be nil.
type Deps struct {
	Querier     Querier
	Resolver    *segment.Resolver
	Segments    Segments
	Engine      EngineStatus
	Enqueuer    Enqueuer
	Document    *openapi3.T
	RawDocument []byte
}

// Server serves the API
type Server struct {
	deps        Deps
	querySchema *openapi3.Schema
	results     *Results
	log         logrus.FieldLogger
}

// NewServer creates a new API server instance
func NewServer(deps Deps, log logrus.FieldLogger) *Server {
	return &Server{
		deps:        deps,
		querySchema: requestSchema(deps.Document, "/query"),
		results:     NewResults(),
		log:         log.WithField("component", "api.handlers"),
	}
}

// RegisterHandlers mounts every route on router
func RegisterHandlers(router fiber.Router, s *Server) {
	router.Post("/query", s.RunQuery)
	router.Get("/results/latest", s.LatestResult)
	router.Get("/results/latest.csv", s.LatestResultCSV)
	router.Get("/segments/resolve", s.ResolveSegment)
	router.Post("/segments/hydrate", s.HydrateSegment)
	router.Get("/segments/manifest", s.SegmentManifest)
	router.Get("/status", s.Status)
	router.Get("/openapi.yaml", s.OpenAPI)
}

// requestSchema returns the JSON request body schema of a POST operation
func requestSchema(doc *openapi3.T, path string) *openapi3.Schema {
	if doc == nil || doc.Paths == nil {
		return nil
	}

	item := doc.Paths.Value(path)
	if item == nil || item.Post == nil || item.Post.RequestBody == nil || item.Post.RequestBody.Value == nil {
		return nil
	}

	media := item.Post.RequestBody.Value.Content.Get(fiber.MIMEApplicationJSON)
	if media == nil || media.Schema == nil {
		return nil
	}

	return media.Schema.Value
}
