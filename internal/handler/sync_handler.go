package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/lumenlms/pocketsync/internal/dto"
	"github.com/lumenlms/pocketsync/internal/middleware"
	"github.com/lumenlms/pocketsync/internal/service"
	"github.com/lumenlms/pocketsync/internal/utils"
)

// SyncHandler exposes the manual reconciliation trigger and the last report.
type SyncHandler struct {
	service   service.SyncService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewSyncHandler constructs the handler.
func NewSyncHandler(service service.SyncService, validate *validator.Validate, logger zerolog.Logger) *SyncHandler {
	return &SyncHandler{
		service:   service,
		validator: validate,
		logger:    logger.With().Str("component", "sync_handler").Logger(),
	}
}

// Register attaches sync endpoints to the router group.
func (h *SyncHandler) Register(router fiber.Router) {
	router.Post("", h.run)
	router.Get("/last", h.lastReport)
}

func (h *SyncHandler) run(c *fiber.Ctx) error {
	var payload dto.SyncRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "bad_request", "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "validation", err.Error())
	}

	report, err := h.service.Run(c.Context(), payload.UserEmail)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSyncInFlight):
			return utils.SendError(c, fiber.StatusConflict, "sync_in_flight", err.Error())
		case errors.Is(err, service.ErrSyncCooldown):
			return utils.SendError(c, fiber.StatusTooManyRequests, "sync_cooldown", err.Error())
		case errors.Is(err, service.ErrSessionExpired):
			return utils.SendError(c, fiber.StatusUnauthorized, "session_expired", err.Error())
		default:
			h.logger.Error().Err(err).
				Str("correlation_id", middleware.CorrelationIDFromContext(c.UserContext())).
				Msg("internal error")
			return utils.SendError(c, fiber.StatusInternalServerError, "internal", "internal error")
		}
	}

	return utils.SendSuccess(c, "sync cycle finished", dto.NewSyncReportResponse(report))
}

func (h *SyncHandler) lastReport(c *fiber.Ctx) error {
	report, ok := h.service.LastReport()
	if !ok {
		return utils.SendError(c, fiber.StatusNotFound, "not_found", "no sync cycle recorded yet")
	}

	return utils.SendSuccess(c, "last sync report", dto.NewSyncReportResponse(report))
}
