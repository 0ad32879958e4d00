package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/lumenlms/pocketsync/internal/dto"
	"github.com/lumenlms/pocketsync/internal/middleware"
	"github.com/lumenlms/pocketsync/internal/service"
	"github.com/lumenlms/pocketsync/internal/utils"
)

// CourseHandler exposes the cached catalog to the UI shell.
type CourseHandler struct {
	service service.CourseService
	logger  zerolog.Logger
}

// NewCourseHandler constructs the handler.
func NewCourseHandler(service service.CourseService, logger zerolog.Logger) *CourseHandler {
	return &CourseHandler{
		service: service,
		logger:  logger.With().Str("component", "course_handler").Logger(),
	}
}

// Register attaches catalog endpoints to the router group.
func (h *CourseHandler) Register(router fiber.Router) {
	router.Get("/courses", h.list)
	router.Get("/courses/:id", h.detail)
	router.Get("/courses/:id/assessments", h.assessments)
	router.Get("/assessments/:id", h.assessment)
	router.Get("/assessments/:id/review", h.review)
}

func (h *CourseHandler) list(c *fiber.Ctx) error {
	userEmail := c.Query("user")
	if userEmail == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "bad_request", "user query parameter is required")
	}

	courses, err := h.service.List(c.Context(), userEmail)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "courses retrieved", dto.NewCourseResponseSlice(courses))
}

func (h *CourseHandler) detail(c *fiber.Ctx) error {
	userEmail := c.Query("user")
	if userEmail == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "bad_request", "user query parameter is required")
	}
	courseID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "bad_request", err.Error())
	}

	detail, materials, err := h.service.Detail(c.Context(), userEmail, courseID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "course detail retrieved", dto.NewCourseDetailResponse(detail, materials))
}

func (h *CourseHandler) assessments(c *fiber.Ctx) error {
	userEmail := c.Query("user")
	if userEmail == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "bad_request", "user query parameter is required")
	}
	courseID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "bad_request", err.Error())
	}

	assessments, err := h.service.Assessments(c.Context(), userEmail, courseID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "assessments retrieved", dto.NewAssessmentResponseSlice(assessments))
}

func (h *CourseHandler) review(c *fiber.Ctx) error {
	userEmail := c.Query("user")
	if userEmail == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "bad_request", "user query parameter is required")
	}
	assessmentID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "bad_request", err.Error())
	}

	info, err := h.service.Review(c.Context(), userEmail, assessmentID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "graded review retrieved", dto.NewReviewResponse(info))
}

func (h *CourseHandler) assessment(c *fiber.Ctx) error {
	userEmail := c.Query("user")
	if userEmail == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "bad_request", "user query parameter is required")
	}
	assessmentID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "bad_request", err.Error())
	}

	assessment, err := h.service.GetAssessment(c.Context(), userEmail, assessmentID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "assessment retrieved", dto.NewAssessmentResponse(assessment))
}

func (h *CourseHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrCourseNotFound), errors.Is(err, service.ErrAssessmentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, service.ErrReviewUnavailableOffline):
		return utils.SendError(c, fiber.StatusPreconditionFailed, "not_available_offline", err.Error())
	default:
		h.logger.Error().Err(err).
			Str("correlation_id", middleware.CorrelationIDFromContext(c.UserContext())).
			Msg("internal error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal", "internal error")
	}
}
