package handlers

import (
	"context"
	"encoding/json"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/saeid-a/CoachConnectBack/internal/services"
)

type paymentMutations interface {
	MarkPaymentSucceeded(ctx context.Context, paymentID int64, checkoutID string, intentID string) error
	MarkPaymentFailed(ctx context.Context, paymentID int64) error
	MarkRefundSettled(ctx context.Context, paymentID int64) error
}

// PaymentHandler consumes gateway callbacks. The webhook signature is checked
// before any event is trusted; unhandled event types are acknowledged so the
// gateway stops redelivering them.
type PaymentHandler struct {
	payments      paymentMutations
	webhookSecret string
}

func NewPaymentHandler(payments paymentMutations, webhookSecret string) *PaymentHandler {
	return &PaymentHandler{payments: payments, webhookSecret: webhookSecret}
}

func (h *PaymentHandler) Webhook(c *fiber.Ctx) error {
	event, err := webhook.ConstructEvent(c.Body(), c.Get("Stripe-Signature"), h.webhookSecret)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid webhook signature"})
	}

	switch event.Type {
	case "checkout.session.completed":
		return h.handleCheckoutCompleted(c, event)
	case "checkout.session.expired":
		return h.handleCheckoutExpired(c, event)
	case "payment_intent.payment_failed":
		return h.handlePaymentFailed(c, event)
	case "charge.refund.updated":
		return h.handleRefundUpdated(c, event)
	default:
		return c.JSON(fiber.Map{"received": true})
	}
}

func (h *PaymentHandler) handleCheckoutCompleted(c *fiber.Ctx, event stripe.Event) error {
	var checkout stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &checkout); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Malformed event payload"})
	}

	meta, err := services.ParseGatewayMetadata(checkout.Metadata)
	if err != nil {
		log.Printf("checkout.session.completed without usable metadata: %v", err)
		return c.JSON(fiber.Map{"received": true})
	}

	intentID := ""
	if checkout.PaymentIntent != nil {
		intentID = checkout.PaymentIntent.ID
	}
	if err := h.payments.MarkPaymentSucceeded(c.Context(), meta.PaymentID, checkout.ID, intentID); err != nil {
		return mapDomainError(c, err)
	}
	return c.JSON(fiber.Map{"received": true})
}

// handleCheckoutExpired releases the pending membership of a checkout the
// player walked away from.
func (h *PaymentHandler) handleCheckoutExpired(c *fiber.Ctx, event stripe.Event) error {
	var checkout stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &checkout); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Malformed event payload"})
	}

	meta, err := services.ParseGatewayMetadata(checkout.Metadata)
	if err != nil {
		log.Printf("checkout.session.expired without usable metadata: %v", err)
		return c.JSON(fiber.Map{"received": true})
	}

	if err := h.payments.MarkPaymentFailed(c.Context(), meta.PaymentID); err != nil {
		return mapDomainError(c, err)
	}
	return c.JSON(fiber.Map{"received": true})
}

func (h *PaymentHandler) handlePaymentFailed(c *fiber.Ctx, event stripe.Event) error {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Malformed event payload"})
	}

	meta, err := services.ParseGatewayMetadata(intent.Metadata)
	if err != nil {
		log.Printf("payment_intent.payment_failed without usable metadata: %v", err)
		return c.JSON(fiber.Map{"received": true})
	}

	if err := h.payments.MarkPaymentFailed(c.Context(), meta.PaymentID); err != nil {
		return mapDomainError(c, err)
	}
	return c.JSON(fiber.Map{"received": true})
}

func (h *PaymentHandler) handleRefundUpdated(c *fiber.Ctx, event stripe.Event) error {
	var refund stripe.Refund
	if err := json.Unmarshal(event.Data.Raw, &refund); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Malformed event payload"})
	}
	if refund.Status != stripe.RefundStatusSucceeded {
		return c.JSON(fiber.Map{"received": true})
	}

	meta, err := services.ParseGatewayMetadata(refund.Metadata)
	if err != nil {
		log.Printf("charge.refund.updated without usable metadata: %v", err)
		return c.JSON(fiber.Map{"received": true})
	}

	if err := h.payments.MarkRefundSettled(c.Context(), meta.PaymentID); err != nil {
		return mapDomainError(c, err)
	}
	return c.JSON(fiber.Map{"received": true})
}
