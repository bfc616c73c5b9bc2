package handler

import (
	"context"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/facemark-labs/facemark/internal/api/middleware"
	"github.com/facemark-labs/facemark/internal/domain"
)

// AttendanceService interface for the service
type AttendanceService interface {
	MarkByPhoto(ctx context.Context, sessionID uuid.UUID, img []byte, photoRef string) (*domain.VerificationResult, *domain.AttendanceRecord, error)
	MarkSelf(ctx context.Context, sessionID, studentID uuid.UUID, img []byte, photoRef string) (*domain.VerificationResult, *domain.AttendanceRecord, error)
	MarkManual(ctx context.Context, sessionID, studentID uuid.UUID, status domain.AttendanceStatus) (*domain.AttendanceRecord, error)
	SessionRecords(ctx context.Context, sessionID uuid.UUID) ([]domain.AttendanceRecord, error)
	StudentHistory(ctx context.Context, studentID uuid.UUID) ([]domain.AttendanceRecord, error)
}

// AttendanceHandler handles marking and reporting endpoints
type AttendanceHandler struct {
	service AttendanceService
	logger  *slog.Logger
}

// NewAttendanceHandler creates a new AttendanceHandler instance
func NewAttendanceHandler(service AttendanceService, logger *slog.Logger) *AttendanceHandler {
	return &AttendanceHandler{
		service: service,
		logger:  logger,
	}
}

// MarkResponse response for marking endpoints
type MarkResponse struct {
	Verification *domain.VerificationResult `json:"verification,omitempty"`
	Record       *domain.AttendanceRecord   `json:"record,omitempty"`
}

// ManualMarkRequest body for the lecturer marking endpoint
type ManualMarkRequest struct {
	StudentID string `json:"student_id"`
	Status    string `json:"status"`
}

// MarkByPhoto POST /v1/sessions/:session_id/attendance/photo
// Lecturer submits a probe photo; the recognized student is marked present.
func (h *AttendanceHandler) MarkByPhoto(c *fiber.Ctx) error {
	sessionID, err := parseSessionID(c)
	if err != nil {
		return err
	}

	imageBytes, err := extractAndValidateImage(c)
	if err != nil {
		return err
	}

	photoRef := strings.TrimSpace(c.FormValue("photo_ref"))

	result, record, err := h.service.MarkByPhoto(c.Context(), sessionID, imageBytes, photoRef)
	if err != nil {
		return err
	}

	status := fiber.StatusOK
	if record != nil {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(MarkResponse{
		Verification: result,
		Record:       record,
	})
}

// MarkSelf POST /v1/sessions/:session_id/attendance/self
// Student submits their own probe photo.
func (h *AttendanceHandler) MarkSelf(c *fiber.Ctx) error {
	sessionID, err := parseSessionID(c)
	if err != nil {
		return err
	}

	studentID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}

	imageBytes, err := extractAndValidateImage(c)
	if err != nil {
		return err
	}

	photoRef := strings.TrimSpace(c.FormValue("photo_ref"))

	result, record, err := h.service.MarkSelf(c.Context(), sessionID, studentID, imageBytes, photoRef)
	if err != nil {
		return err
	}

	status := fiber.StatusOK
	if record != nil {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(MarkResponse{
		Verification: result,
		Record:       record,
	})
}

// MarkManual POST /v1/sessions/:session_id/attendance
// Lecturer records an explicit status for a student.
func (h *AttendanceHandler) MarkManual(c *fiber.Ctx) error {
	sessionID, err := parseSessionID(c)
	if err != nil {
		return err
	}

	var req ManualMarkRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	studentID, err := uuid.Parse(req.StudentID)
	if err != nil {
		return domain.ErrValidationFailed.WithError(err)
	}

	record, err := h.service.MarkManual(c.Context(), sessionID, studentID, domain.AttendanceStatus(req.Status))
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(MarkResponse{Record: record})
}

// SessionRecords GET /v1/sessions/:session_id/attendance
func (h *AttendanceHandler) SessionRecords(c *fiber.Ctx) error {
	sessionID, err := parseSessionID(c)
	if err != nil {
		return err
	}

	records, err := h.service.SessionRecords(c.Context(), sessionID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"records": records})
}

// MyHistory GET /v1/attendance/history - the caller's own attendance history
func (h *AttendanceHandler) MyHistory(c *fiber.Ctx) error {
	studentID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}

	records, err := h.service.StudentHistory(c.Context(), studentID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"records": records})
}

func parseSessionID(c *fiber.Ctx) (uuid.UUID, error) {
	sessionID, err := uuid.Parse(c.Params("session_id"))
	if err != nil {
		return uuid.Nil, domain.ErrValidationFailed.WithError(err)
	}
	return sessionID, nil
}
