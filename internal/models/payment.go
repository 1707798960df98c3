package models

import "time"

const (
	PaymentTypeEnrollment = "enrollment"
	PaymentTypeRefund     = "refund"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
)

// Payment records a single monetary movement. SessionFee plus PlatformFee
// always equals TotalAmount.
type Payment struct {
	ID             int64     `json:"id"`
	SessionID      int64     `json:"session_id"`
	ParticipantID  int64     `json:"participant_id"`
	Type           string    `json:"payment_type"`
	SessionFee     float64   `json:"session_fee"`
	PlatformFee    float64   `json:"platform_fee"`
	TotalAmount    float64   `json:"total_amount"`
	Status         string    `json:"status"`
	CheckoutID     *string   `json:"checkout_id"`
	IntentID       *string   `json:"intent_id"`
	IdempotencyKey *string   `json:"idempotency_key"`
	CreatedAt      time.Time `json:"created_at"`
}
