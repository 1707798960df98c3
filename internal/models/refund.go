package models

import "time"

const (
	RefundStatusPending  = "pending"
	RefundStatusAccepted = "accepted"
	// RefundStatusCancelled marks a request rejected by an admin.
	RefundStatusCancelled = "cancelled"
)

const (
	RefundTypeAutoAccepted  = "auto_accepted"
	RefundTypeAdminApproval = "admin_approval"
)

type RefundRequest struct {
	ID             int64     `json:"id"`
	SessionID      int64     `json:"session_id"`
	ParticipantID  int64     `json:"participant_id"`
	PaymentID      int64     `json:"payment_id"`
	Status         string    `json:"status"`
	Type           string    `json:"refund_request_type"`
	RefundedAmount float64   `json:"refunded_amount"`
	Reason         *string   `json:"reason"`
	RejectionNote  *string   `json:"rejection_note"`
	ResolvedBy     *int64    `json:"resolved_by"`
	IdempotencyKey string    `json:"idempotency_key"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
