package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stripe/stripe-go/v82"
)

const webhookTestSecret = "whsec_test_secret"

type stubPaymentService struct {
	succeededID int64
	failedID    int64
	refundID    int64
	err         error
}

func (s *stubPaymentService) MarkPaymentSucceeded(
	_ context.Context, paymentID int64, checkoutID string, intentID string,
) error {
	s.succeededID = paymentID
	return s.err
}

func (s *stubPaymentService) MarkPaymentFailed(_ context.Context, paymentID int64) error {
	s.failedID = paymentID
	return s.err
}

func (s *stubPaymentService) MarkRefundSettled(_ context.Context, paymentID int64) error {
	s.refundID = paymentID
	return s.err
}

func newWebhookTestApp(payments *stubPaymentService) *fiber.App {
	app := fiber.New()
	handler := NewPaymentHandler(payments, webhookTestSecret)
	app.Post("/api/webhooks/stripe", handler.Webhook)
	return app
}

func signedWebhookRequest(payload string) *http.Request {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(webhookTestSecret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	signature := hex.EncodeToString(mac.Sum(nil))

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", fmt.Sprintf("t=%d,v1=%s", ts, signature))
	return req
}

func checkoutEventPayload(eventType string, paymentID int64) string {
	return fmt.Sprintf(`{
		"api_version": %q,
		"type": %q,
		"data": {
			"object": {
				"id": "cs_test_1",
				"metadata": {
					"payment_id": "%d",
					"participant_id": "7",
					"session_id": "3"
				}
			}
		}
	}`, stripe.APIVersion, eventType, paymentID)
}

func TestWebhookCheckoutExpiredVoidsPayment(t *testing.T) {
	payments := &stubPaymentService{}
	app := newWebhookTestApp(payments)

	resp, err := app.Test(signedWebhookRequest(checkoutEventPayload("checkout.session.expired", 41)))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if payments.failedID != 41 {
		t.Fatalf("expected payment 41 marked failed, got %d", payments.failedID)
	}
	if payments.succeededID != 0 || payments.refundID != 0 {
		t.Fatal("expired checkout must not settle or refund anything")
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	payments := &stubPaymentService{}
	app := newWebhookTestApp(payments)

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe",
		strings.NewReader(checkoutEventPayload("checkout.session.expired", 41)))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if payments.failedID != 0 {
		t.Fatal("unsigned event must not reach the payment service")
	}
}
