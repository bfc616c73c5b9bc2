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

// EnrollmentService interface for the service
type EnrollmentService interface {
	RegisterFace(ctx context.Context, studentID uuid.UUID, img []byte, referencePhoto string) (*domain.FaceEncoding, error)
	ListEncodings(ctx context.Context, studentID uuid.UUID) ([]domain.FaceEncoding, error)
	RemoveEncoding(ctx context.Context, studentID, encodingID uuid.UUID) error
}

// FaceHandler handles reference face registration
type FaceHandler struct {
	service EnrollmentService
	logger  *slog.Logger
}

// NewFaceHandler creates a new FaceHandler instance
func NewFaceHandler(service EnrollmentService, logger *slog.Logger) *FaceHandler {
	return &FaceHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterResponse response for register endpoint
type RegisterResponse struct {
	EncodingID   string  `json:"encoding_id"`
	StudentID    string  `json:"student_id"`
	QualityScore float64 `json:"quality_score"`
	Primary      bool    `json:"is_primary"`
	CreatedAt    string  `json:"created_at"`
}

// EncodingResponse is one stored encoding in list responses
type EncodingResponse struct {
	EncodingID   string  `json:"encoding_id"`
	QualityScore float64 `json:"quality_score"`
	Primary      bool    `json:"is_primary"`
	CreatedAt    string  `json:"created_at"`
}

// Register POST /v1/faces - register a reference face for the caller
func (h *FaceHandler) Register(c *fiber.Ctx) error {
	studentID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}

	imageBytes, err := extractAndValidateImage(c)
	if err != nil {
		return err
	}

	referencePhoto := strings.TrimSpace(c.FormValue("reference_photo"))

	enc, err := h.service.RegisterFace(c.Context(), studentID, imageBytes, referencePhoto)
	if err != nil {
		return err
	}

	h.logger.Info("face registered",
		"student_id", studentID,
		"encoding_id", enc.ID,
		"quality_score", enc.QualityScore,
	)

	return c.Status(fiber.StatusCreated).JSON(RegisterResponse{
		EncodingID:   enc.ID.String(),
		StudentID:    enc.StudentID.String(),
		QualityScore: enc.QualityScore,
		Primary:      enc.Primary,
		CreatedAt:    enc.CreatedAt.Format("2006-01-02T15:04:05Z"),
	})
}

// List GET /v1/faces - list the caller's active encodings
func (h *FaceHandler) List(c *fiber.Ctx) error {
	studentID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}

	encodings, err := h.service.ListEncodings(c.Context(), studentID)
	if err != nil {
		return err
	}

	resp := make([]EncodingResponse, 0, len(encodings))
	for _, enc := range encodings {
		resp = append(resp, EncodingResponse{
			EncodingID:   enc.ID.String(),
			QualityScore: enc.QualityScore,
			Primary:      enc.Primary,
			CreatedAt:    enc.CreatedAt.Format("2006-01-02T15:04:05Z"),
		})
	}

	return c.JSON(fiber.Map{"encodings": resp})
}

// Delete DELETE /v1/faces/:encoding_id - deactivate one of the caller's encodings
func (h *FaceHandler) Delete(c *fiber.Ctx) error {
	studentID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}

	encodingID, err := uuid.Parse(c.Params("encoding_id"))
	if err != nil {
		return domain.ErrValidationFailed.WithError(err)
	}

	if err := h.service.RemoveEncoding(c.Context(), studentID, encodingID); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}
