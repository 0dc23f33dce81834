package handler

import (
	"go-material-store/internal/service"
	apperrors "go-material-store/pkg/errors"
	"go-material-store/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// WebhookHandler receives gateway payment notifications. It is public; authenticity comes
// from the notification signature.
type WebhookHandler struct {
	reconciler service.ReconcilerService
	logg       *logger.Logger
}

func NewWebhookHandler(reconciler service.ReconcilerService, logg *logger.Logger) *WebhookHandler {
	return &WebhookHandler{reconciler: reconciler, logg: logg}
}

// POST /api/v1/webhooks/payment
// 200 tells the gateway to stop retrying, so only internal failures answer 5xx.
func (h *WebhookHandler) PaymentNotification(c *fiber.Ctx) error {
	result, err := h.reconciler.HandleNotification(c.UserContext(), c.Body())
	if err != nil {
		if apperrors.Is(err, apperrors.CodeValidation) {
			h.logg.Warn(c.UserContext(), "rejected payment notification: "+err.Error())
		}
		return respondError(c, h.logg, err)
	}
	return c.JSON(result)
}
