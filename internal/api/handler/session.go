package handler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/facemark-labs/facemark/internal/api/middleware"
	"github.com/facemark-labs/facemark/internal/domain"
)

// SessionService interface for the service
type SessionService interface {
	CreateSession(ctx context.Context, sectionID, lecturerID uuid.UUID, startsAt time.Time, endsAt *time.Time) (*domain.Session, error)
	CloseSession(ctx context.Context, sessionID, lecturerID uuid.UUID) error
}

// SessionHandler handles session lifecycle endpoints
type SessionHandler struct {
	service SessionService
	logger  *slog.Logger
}

// NewSessionHandler creates a new SessionHandler instance
func NewSessionHandler(service SessionService, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		service: service,
		logger:  logger,
	}
}

// CreateSessionRequest body for session creation
type CreateSessionRequest struct {
	SectionID string     `json:"section_id"`
	StartsAt  *time.Time `json:"starts_at,omitempty"`
	EndsAt    *time.Time `json:"ends_at,omitempty"`
}

// Create POST /v1/sessions - open an attendance session for a section
func (h *SessionHandler) Create(c *fiber.Ctx) error {
	lecturerID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}

	var req CreateSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	sectionID, err := uuid.Parse(req.SectionID)
	if err != nil {
		return domain.ErrValidationFailed.WithError(err)
	}

	startsAt := time.Now().UTC()
	if req.StartsAt != nil {
		startsAt = *req.StartsAt
	}
	if req.EndsAt != nil && !req.EndsAt.After(startsAt) {
		return domain.ErrValidationFailed.WithError(errors.New("ends_at must be after starts_at"))
	}

	session, err := h.service.CreateSession(c.Context(), sectionID, lecturerID, startsAt, req.EndsAt)
	if err != nil {
		return err
	}

	h.logger.Info("session created",
		"session_id", session.ID,
		"section_id", session.SectionID,
		"lecturer_id", lecturerID,
	)

	return c.Status(fiber.StatusCreated).JSON(session)
}

// Close POST /v1/sessions/:session_id/close - stop accepting marks
func (h *SessionHandler) Close(c *fiber.Ctx) error {
	lecturerID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}

	sessionID, err := parseSessionID(c)
	if err != nil {
		return err
	}

	if err := h.service.CloseSession(c.Context(), sessionID, lecturerID); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}
