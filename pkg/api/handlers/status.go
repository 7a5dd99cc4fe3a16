package handlers

import (
	"github.com/gofiber/fiber/v3"
)

// Status handles GET /api/v1/status
func (s *Server) Status(c fiber.Ctx) error {
	resp := fiber.Map{
		"engine": s.deps.Engine.State(),
		"ready":  true,
	}

	if err := s.deps.Engine.Check(); err != nil {
		resp["ready"] = false
		resp["error"] = err.Error()
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}

// OpenAPI handles GET /api/v1/openapi.yaml
func (s *Server) OpenAPI(c fiber.Ctx) error {
	if len(s.deps.RawDocument) == 0 {
		return fiber.ErrNotFound
	}

	c.Set(fiber.HeaderContentType, "application/yaml")

	return c.Status(fiber.StatusOK).Send(s.deps.RawDocument)
}
