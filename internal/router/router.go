package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lumenlms/pocketsync/internal/config"
	"github.com/lumenlms/pocketsync/internal/connectivity"
	"github.com/lumenlms/pocketsync/internal/database"
	"github.com/lumenlms/pocketsync/internal/handler"
	"github.com/lumenlms/pocketsync/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	Store          *database.Store
	Watcher        connectivity.Watcher
	SessionHandler *handler.SessionHandler
	CourseHandler  *handler.CourseHandler
	AttemptHandler *handler.AttemptHandler
	SyncHandler    *handler.SyncHandler
}

// Register wires the loopback routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.Store, deps.Watcher))

	if deps.SessionHandler != nil {
		session := api.Group("/session")
		deps.SessionHandler.Register(session)
	}

	if deps.CourseHandler != nil {
		deps.CourseHandler.Register(api)
	}

	if deps.AttemptHandler != nil {
		attempts := api.Group("/attempts")
		deps.AttemptHandler.Register(attempts)
	}

	if deps.SyncHandler != nil {
		sync := api.Group("/sync")
		deps.SyncHandler.Register(sync)
	}

	app.Get("/metrics", observability.MetricsHandler())
}
