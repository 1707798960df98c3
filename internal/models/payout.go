package models

import "time"

const (
	PayoutStatusPending = "pending"
	PayoutStatusHold    = "hold"
	PayoutStatusPaid    = "paid"
)

// DuePayout is the amount owed to a coach for one completed session.
// There is at most one row per session.
type DuePayout struct {
	ID          int64     `json:"id"`
	SessionID   int64     `json:"session_id"`
	CoachID     int64     `json:"coach_id"`
	TotalAmount float64   `json:"total_amount"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
