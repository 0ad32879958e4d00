package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/lumenlms/pocketsync/internal/config"
	"github.com/lumenlms/pocketsync/internal/connectivity"
	"github.com/lumenlms/pocketsync/internal/database"
	"github.com/lumenlms/pocketsync/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Service     string    `json:"service"`
	Environment string    `json:"environment"`
	Store       string    `json:"store"`
	Online      bool      `json:"online"`
}

// HealthCheck returns a handler reporting agent health, the local store
// lifecycle state and the current reachability level.
func HealthCheck(cfg config.Config, store *database.Store, watcher connectivity.Watcher) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
			Store:       store.State().String(),
			Online:      watcher.Online(),
		}
		if store.State() != database.StateReady {
			payload.Status = "degraded"
		}

		return utils.SendSuccess(c, "agent healthy", payload)
	}
}
