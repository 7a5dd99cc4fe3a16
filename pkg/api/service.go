package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ethpandaops/ephemeris/pkg/api/handlers"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/sirupsen/logrus"
)

// Service defines the API service interface
type Service interface {
	Start(ctx context.Context) error
	Stop() error
}

type service struct {
	app             *fiber.App
	server          *http.Server
	config          *Config
	deps            handlers.Deps
	frontendHandler http.Handler
	log             logrus.FieldLogger
}

// NewService creates a new API and frontend service. The embedded API
// document is loaded and validated here.
func NewService(cfg *Config, deps handlers.Deps, frontendHandler http.Handler, log logrus.FieldLogger) (Service, error) {
	doc, err := LoadOpenAPI(context.Background())
	if err != nil {
		return nil, err
	}

	deps.Document = doc
	deps.RawDocument = OpenAPIDocument()

	return &service{
		config:          cfg,
		deps:            deps,
		frontendHandler: frontendHandler,
		log:             log.WithField("service", "api"),
	}, nil
}

// newApp builds the fiber application with every route mounted
func newApp(deps handlers.Deps, frontendHandler http.Handler, log logrus.FieldLogger) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler,
		AppName:      "Ephemeris API",
	})

	setupMiddleware(app, log)

	apiV1 := app.Group("/api/v1")
	handlers.RegisterHandlers(apiV1, handlers.NewServer(deps, log))

	if frontendHandler != nil {
		app.Use(adaptor.HTTPHandler(frontendHandler))
	}

	return app
}

// Start initializes and starts the API server with frontend integration
func (s *service) Start(_ context.Context) error {
	if !s.config.Enabled {
		s.log.Info("API service is disabled")
		return nil
	}

	s.app = newApp(s.deps, s.frontendHandler, s.log)

	s.server = &http.Server{
		Addr:              s.config.Addr,
		Handler:           adaptor.FiberApp(s.app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		s.log.WithField("addr", s.config.Addr).Info("Starting API and frontend server")

		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("Server failed to start")
		}
	}()

	return nil
}

// Stop gracefully shuts down the API server
func (s *service) Stop() error {
	if s.server == nil {
		return nil
	}

	s.log.Info("Stopping API and frontend server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}
