package service

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"

	"github.com/boardsync/relay/src/types"
)

// httpApp builds the health/admin surface. CORS is permissive so an
// operations dashboard can poll cross-origin.
func (s *Service) httpApp() *fiber.App {
	app := fiber.New()
	app.Use(cors.New())

	app.Get("/health", s.handleHealth)
	app.Get("/rooms", s.handleRooms)
	app.Get("/metrics", adaptor.HTTPHandler(s.metrics.Handler()))

	return app
}

func (s *Service) handleHealth(c fiber.Ctx) error {
	return c.JSON(types.HealthStatus{
		Status:           "ok",
		UptimeSeconds:    s.hub.Uptime().Seconds(),
		ActiveRooms:      s.hub.RoomCount(),
		TotalConnections: s.hub.ConnectionCount(),
		Timestamp:        time.Now().UTC(),
		Version:          s.version,
	})
}

// handleRooms lists room details. Debug-only: forbidden in production.
func (s *Service) handleRooms(c fiber.Ctx) error {
	if s.cfg.Production() {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "room listing is not available in production",
		})
	}
	return c.JSON(s.hub.Rooms())
}
