package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/lumenlms/pocketsync/internal/dto"
	"github.com/lumenlms/pocketsync/internal/middleware"
	"github.com/lumenlms/pocketsync/internal/models"
	"github.com/lumenlms/pocketsync/internal/service"
	"github.com/lumenlms/pocketsync/internal/utils"
)

// AttemptHandler wires attempt lifecycle routes for the UI shell.
type AttemptHandler struct {
	service   service.AttemptService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewAttemptHandler constructs the handler.
func NewAttemptHandler(service service.AttemptService, validate *validator.Validate, logger zerolog.Logger) *AttemptHandler {
	return &AttemptHandler{
		service:   service,
		validator: validate,
		logger:    logger.With().Str("component", "attempt_handler").Logger(),
	}
}

// Register attaches attempt endpoints to the router group.
func (h *AttemptHandler) Register(router fiber.Router) {
	router.Post("", h.start)
	router.Get("/:id", h.get)
	router.Get("/:id/remaining", h.remaining)
	router.Patch("/:id/answers/:question_id", h.saveAnswer)
	router.Post("/:id/finalize", h.finalize)
	router.Post("/submit-file", h.submitFile)
}

func (h *AttemptHandler) start(c *fiber.Ctx) error {
	var payload dto.AttemptStartRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "bad_request", "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "validation", err.Error())
	}

	record, err := h.service.Start(c.Context(), payload.UserEmail, payload.AssessmentID, payload.Online)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "attempt started", record)
}

func (h *AttemptHandler) get(c *fiber.Ctx) error {
	record, err := h.service.Get(c.Context(), c.Params("id"))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "attempt retrieved", record)
}

func (h *AttemptHandler) remaining(c *fiber.Ctx) error {
	countdown, err := h.service.Remaining(c.Context(), c.Params("id"))
	if err != nil && !errors.Is(err, service.ErrClockTampered) {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "remaining time computed", dto.NewCountdownResponse(countdown))
}

func (h *AttemptHandler) saveAnswer(c *fiber.Ctx) error {
	questionID, err := parseUintParam(c, "question_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "bad_request", err.Error())
	}

	var payload dto.AnswerSaveRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "bad_request", "invalid request body")
	}

	answer := models.Answer{
		SelectedOptionIDs: payload.SelectedOptionIDs,
		Text:              payload.Text,
	}
	if err := h.service.SaveAnswer(c.Context(), c.Params("id"), questionID, answer); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "answer saved", nil)
}

func (h *AttemptHandler) finalize(c *fiber.Ctx) error {
	result, err := h.service.Finalize(c.Context(), c.Params("id"))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "attempt finalized", dto.NewFinalizeResponse(result))
}

func (h *AttemptHandler) submitFile(c *fiber.Ctx) error {
	var payload dto.FileSubmitRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "bad_request", "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "validation", err.Error())
	}

	result, err := h.service.SubmitFile(c.Context(), payload.UserEmail, payload.AssessmentID,
		payload.FilePath, payload.OriginalFilename, payload.Online)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "file submission recorded", dto.NewFinalizeResponse(result))
}

func (h *AttemptHandler) handleError(c *fiber.Ctx, err error) error {
	var pending *service.PendingWorkError
	var unanswered *service.UnansweredError

	switch {
	case errors.As(err, &pending):
		return c.Status(fiber.StatusConflict).JSON(utils.APIResponse{
			Success: false,
			Code:    "pending_work",
			Message: pending.Error(),
			Data:    dto.NewPendingWorkResponse(pending),
		})
	case errors.As(err, &unanswered):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(utils.APIResponse{
			Success: false,
			Code:    "unanswered_questions",
			Message: unanswered.Error(),
			Data:    fiber.Map{"indices": unanswered.Indices},
		})
	case errors.Is(err, service.ErrClockTampered):
		return utils.SendError(c, fiber.StatusForbidden, "clock_integrity", err.Error())
	case errors.Is(err, service.ErrAttemptNotFound), errors.Is(err, service.ErrAssessmentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, service.ErrNotAvailableOffline):
		return utils.SendError(c, fiber.StatusPreconditionFailed, "not_available_offline", err.Error())
	case errors.Is(err, service.ErrNotQuizKind), errors.Is(err, service.ErrNotFileKind), errors.Is(err, service.ErrNoTimeLimit):
		return utils.SendError(c, fiber.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, service.ErrAttemptNotActive), errors.Is(err, service.ErrFinalizeInFlight):
		return utils.SendError(c, fiber.StatusConflict, "conflict", err.Error())
	default:
		return h.internalError(c, err)
	}
}

func (h *AttemptHandler) internalError(c *fiber.Ctx, err error) error {
	h.logger.Error().Err(err).
		Str("correlation_id", middleware.CorrelationIDFromContext(c.UserContext())).
		Msg("internal error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal", "internal error")
}
