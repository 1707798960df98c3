package services

import (
	"context"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v82"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/refund"
)

// GatewayMetadata correlates gateway objects and callbacks with our records.
type GatewayMetadata struct {
	PaymentID     int64
	ParticipantID int64
	SessionID     int64
}

// PaymentGateway is the slice of the payment provider the domain services
// need: initiating a checkout for an enrollment and reversing a settled
// payment. Callback handling lives in the webhook handler, which drives the
// Mark* mutation points on PaymentService.
type PaymentGateway interface {
	CreateCheckout(ctx context.Context, amount float64, title string, description string, meta GatewayMetadata) (string, error)
	Refund(ctx context.Context, amount float64, intentID string, idempotencyKey string, meta GatewayMetadata) error
}

// StripeGateway implements PaymentGateway against the Stripe API.
type StripeGateway struct {
	successURL string
}

func NewStripeGateway(secretKey string, successURL string) *StripeGateway {
	stripe.Key = secretKey
	return &StripeGateway{successURL: successURL}
}

func (g *StripeGateway) CreateCheckout(
	ctx context.Context,
	amount float64,
	title string,
	description string,
	meta GatewayMetadata,
) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(g.successURL),
		Metadata:   meta.toMap(),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(string(stripe.CurrencyUSD)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(title),
						Description: stripe.String(description),
					},
					UnitAmount: stripe.Int64(toCents(amount)),
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx

	session, err := checkoutsession.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return session.URL, nil
}

func (g *StripeGateway) Refund(
	ctx context.Context,
	amount float64,
	intentID string,
	idempotencyKey string,
	meta GatewayMetadata,
) error {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(intentID),
		Amount:        stripe.Int64(toCents(amount)),
		Metadata:      meta.toMap(),
	}
	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKey)

	if _, err := refund.New(params); err != nil {
		return fmt.Errorf("create refund: %w", err)
	}
	return nil
}

func (m GatewayMetadata) toMap() map[string]string {
	return map[string]string{
		"payment_id":     strconv.FormatInt(m.PaymentID, 10),
		"participant_id": strconv.FormatInt(m.ParticipantID, 10),
		"session_id":     strconv.FormatInt(m.SessionID, 10),
	}
}

// ParseGatewayMetadata reads the metadata map back off a gateway event.
func ParseGatewayMetadata(values map[string]string) (GatewayMetadata, error) {
	var meta GatewayMetadata
	var err error
	if meta.PaymentID, err = strconv.ParseInt(values["payment_id"], 10, 64); err != nil {
		return meta, fmt.Errorf("gateway metadata payment_id: %w", err)
	}
	if meta.ParticipantID, err = strconv.ParseInt(values["participant_id"], 10, 64); err != nil {
		return meta, fmt.Errorf("gateway metadata participant_id: %w", err)
	}
	if meta.SessionID, err = strconv.ParseInt(values["session_id"], 10, 64); err != nil {
		return meta, fmt.Errorf("gateway metadata session_id: %w", err)
	}
	return meta, nil
}

func toCents(amount float64) int64 {
	return int64(amount*100 + 0.5)
}
