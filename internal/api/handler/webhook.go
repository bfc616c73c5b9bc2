package handler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/facemark-labs/facemark/internal/domain"
	"github.com/facemark-labs/facemark/internal/notify"
)

// WebhookService interface for webhook administration
type WebhookService interface {
	ListWebhooks(ctx context.Context) ([]*notify.Webhook, error)
	CreateWebhook(ctx context.Context, webhook *notify.Webhook) error
	DeleteWebhook(ctx context.Context, webhookID uuid.UUID) error
}

// WebhookHandler handles webhook administration endpoints
type WebhookHandler struct {
	service WebhookService
	logger  *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler instance
func NewWebhookHandler(service WebhookService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		service: service,
		logger:  logger,
	}
}

// CreateWebhookRequest body for webhook registration
type CreateWebhookRequest struct {
	Name   string   `json:"name"`
	URL    string   `json:"url"`
	Secret string   `json:"secret"`
	Events []string `json:"events"`
}

// List GET /v1/webhooks
func (h *WebhookHandler) List(c *fiber.Ctx) error {
	webhooks, err := h.service.ListWebhooks(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"webhooks": webhooks})
}

// Create POST /v1/webhooks
func (h *WebhookHandler) Create(c *fiber.Ctx) error {
	var req CreateWebhookRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	if req.URL == "" || req.Secret == "" || len(req.Events) == 0 {
		return domain.ErrValidationFailed.WithError(errors.New("url, secret and events are required"))
	}

	webhook := &notify.Webhook{
		Name:    req.Name,
		URL:     req.URL,
		Secret:  req.Secret,
		Events:  req.Events,
		Enabled: true,
	}

	if err := h.service.CreateWebhook(c.Context(), webhook); err != nil {
		return err
	}

	h.logger.Info("webhook created", "webhook_id", webhook.ID, "events", webhook.Events)

	return c.Status(fiber.StatusCreated).JSON(webhook)
}

// Delete DELETE /v1/webhooks/:id
func (h *WebhookHandler) Delete(c *fiber.Ctx) error {
	webhookID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return domain.ErrValidationFailed.WithError(err)
	}

	if err := h.service.DeleteWebhook(c.Context(), webhookID); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}
