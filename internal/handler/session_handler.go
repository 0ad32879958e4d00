package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/lumenlms/pocketsync/internal/dto"
	"github.com/lumenlms/pocketsync/internal/middleware"
	"github.com/lumenlms/pocketsync/internal/service"
	"github.com/lumenlms/pocketsync/internal/utils"
)

// SessionHandler exposes login, logout and session status to the UI shell.
type SessionHandler struct {
	service   service.SessionService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewSessionHandler constructs the handler.
func NewSessionHandler(service service.SessionService, validate *validator.Validate, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		service:   service,
		validator: validate,
		logger:    logger.With().Str("component", "session_handler").Logger(),
	}
}

// Register attaches session endpoints to the router group.
func (h *SessionHandler) Register(router fiber.Router) {
	router.Get("", h.status)
	router.Post("/login", h.login)
	router.Post("/logout", h.logout)
	router.Get("/verified", h.verified)
}

func (h *SessionHandler) status(c *fiber.Ctx) error {
	return utils.SendSuccess(c, "session status", dto.SessionStatusResponse{
		Expired: h.service.Expired(),
	})
}

func (h *SessionHandler) login(c *fiber.Ctx) error {
	var payload dto.LoginRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "bad_request", "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "validation", err.Error())
	}

	if err := h.service.Login(c.Context(), payload.Email, payload.Password); err != nil {
		h.logger.Warn().Err(err).Str("user", payload.Email).Msg("login failed")
		return utils.SendError(c, fiber.StatusUnauthorized, "login_failed", "login failed")
	}

	return utils.SendSuccess(c, "session established", nil)
}

func (h *SessionHandler) logout(c *fiber.Ctx) error {
	var payload dto.LogoutRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "bad_request", "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "validation", err.Error())
	}

	if err := h.service.Logout(c.Context(), payload.UserEmail); err != nil {
		h.logger.Error().Err(err).
			Str("user", payload.UserEmail).
			Str("correlation_id", middleware.CorrelationIDFromContext(c.UserContext())).
			Msg("logout failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal", "internal error")
	}

	return utils.SendSuccess(c, "session ended", nil)
}

func (h *SessionHandler) verified(c *fiber.Ctx) error {
	verified, err := h.service.Verified(c.Context())
	if err != nil {
		return utils.SendError(c, fiber.StatusBadGateway, "upstream_unreachable", "verification status unavailable")
	}

	return utils.SendSuccess(c, "verification status", dto.VerifiedResponse{IsVerified: verified})
}
