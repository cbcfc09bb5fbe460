package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/ManuelReschke/PromptForge/internal/pkg/billing"
)

// DeliveryIDHeader carries the id we assign to each webhook delivery.
const DeliveryIDHeader = "X-Delivery-ID"

type BillingController struct {
	service *billing.Service
	timeout time.Duration
}

func NewBillingController(service *billing.Service, timeout time.Duration) *BillingController {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &BillingController{service: service, timeout: timeout}
}

// HandleStripeWebhook answers 400 for deliveries that fail verification,
// 500 for anything the provider should retry and 200 otherwise.
func (h *BillingController) HandleStripeWebhook(c *fiber.Ctx) error {
	deliveryID := uuid.NewString()
	c.Set(DeliveryIDHeader, deliveryID)

	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := c.Get(billing.SignatureHeader)

	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	res, err := h.service.HandleWebhook(ctx, rawBody, signature)
	if err != nil {
		if billing.IsVerificationError(err) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
		}
		log.Errorw("[Billing] Webhook delivery failed", "delivery_id", deliveryID, "event_id", res.EventID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_processing_failed"})
	}

	log.Infow("[Billing] Webhook delivery handled",
		"delivery_id", deliveryID,
		"event_id", res.EventID,
		"event_type", res.EventType,
		"outcome", res.Outcome,
	)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"received": true,
		"event_id": res.EventID,
		"outcome":  res.Outcome,
	})
}
