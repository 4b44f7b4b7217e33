package handler

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/classboard-go-api/internal/dto"
	"github.com/noah-isme/classboard-go-api/internal/service"
	"github.com/noah-isme/classboard-go-api/internal/utils"
)

// ReportHandler exposes the completion report ingest endpoint and the
// teacher-facing resolution queue.
type ReportHandler struct {
	service service.ReconcileService
	logger  zerolog.Logger
}

// NewReportHandler builds a report handler instance.
func NewReportHandler(service service.ReconcileService, logger zerolog.Logger) *ReportHandler {
	return &ReportHandler{
		service: service,
		logger:  logger.With().Str("component", "report_handler").Logger(),
	}
}

// RegisterIngest attaches the public ingest route used by the exercise surface.
func (h *ReportHandler) RegisterIngest(router fiber.Router) {
	router.Post("", h.ingest)
}

// RegisterResolution attaches the teacher-only resolution routes.
func (h *ReportHandler) RegisterResolution(router fiber.Router) {
	router.Get("/unresolved", h.listUnresolved)
	router.Post("/:id/confirm", h.confirm)
	router.Post("/:id/reject", h.reject)
}

func (h *ReportHandler) ingest(c *fiber.Ctx) error {
	var payload dto.CompletionReportRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.Ingest(c.Context(), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	// A replayed report is acknowledged without creating a second entry.
	if result.Duplicate {
		return utils.SendSuccess(c, "report already received", result)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "report received", result)
}

func (h *ReportHandler) listUnresolved(c *fiber.Ctx) error {
	reports, err := h.service.ListUnresolved(c.Context())
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "unresolved reports retrieved", reports)
}

func (h *ReportHandler) confirm(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "report id is required")
	}

	var payload dto.ConfirmMatchRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	report, err := h.service.ConfirmMatch(c.Context(), id, payload, activityActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "report confirmed", report)
}

func (h *ReportHandler) reject(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "report id is required")
	}

	report, err := h.service.Reject(c.Context(), id, activityActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "report rejected", report)
}

func (h *ReportHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrPendingReportNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "pending report not found")
	case errors.Is(err, service.ErrAssignmentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "assignment not found")
	case errors.Is(err, service.ErrStudentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "student not found")
	case errors.Is(err, service.ErrInconsistentMatch):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, "student is not enrolled in the assignment's class")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
