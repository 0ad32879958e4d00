package middleware

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/lumenlms/pocketsync/internal/observability"
)

// Register attaches the common middlewares used across the loopback API.
func Register(app *fiber.App, logger zerolog.Logger) {
	app.Use(recover.New())
	app.Use(CorrelationID())
	app.Use(requestMetrics())
	app.Use(requestLog(logger))
}

func requestMetrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		observability.Requests().WithLabelValues(
			c.Method(),
			c.Route().Path,
			strconv.Itoa(c.Response().StatusCode()),
		).Inc()
		return err
	}
}

func requestLog(logger zerolog.Logger) fiber.Handler {
	requestLogger := logger.With().Str("component", "http").Logger()
	return func(c *fiber.Ctx) error {
		err := c.Next()
		requestLogger.Debug().
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", c.Response().StatusCode()).
			Msg("request served")
		return err
	}
}
