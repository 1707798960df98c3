package models

import "time"

const (
	SessionStatusCreated   = "created"
	SessionStatusOngoing   = "ongoing"
	SessionStatusCompleted = "completed"
	SessionStatusCancelled = "cancelled"
)

const (
	// PlayerStatusPending marks an online enrollment whose payment has not
	// settled yet. The seat is not occupied until the gateway callback
	// flips the participant to attending.
	PlayerStatusPending   = "pending"
	PlayerStatusAttending = "attending"
	PlayerStatusCancelled = "cancelled"
)

const (
	ParticipantPaymentPending  = "pending"
	ParticipantPaymentPaid     = "paid"
	ParticipantPaymentCash     = "cash"
	ParticipantPaymentFailed   = "failed"
	ParticipantPaymentRefunded = "refunded"
)

const (
	PaymentMethodOnline = "online"
	PaymentMethodCash   = "cash"
)

type Session struct {
	ID              int64      `json:"id"`
	CoachID         int64      `json:"coach_id"`
	Title           string     `json:"title"`
	Description     *string    `json:"description"`
	Address         *string    `json:"address"`
	AdditionalNotes *string    `json:"additional_notes"`
	Fee             float64    `json:"fee"`
	MaxParticipants int        `json:"max_participants"`
	MinAge          int        `json:"min_age"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     time.Time  `json:"completed_at"`
	Status          string     `json:"status"`
	ReportTill      *time.Time `json:"report_till"`
	ReportValid     bool       `json:"report_valid"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type SessionParticipant struct {
	ID            int64     `json:"id"`
	SessionID     int64     `json:"session_id"`
	PlayerID      int64     `json:"player_id"`
	PlayerStatus  string    `json:"player_status"`
	PaymentStatus string    `json:"payment_status"`
	PaymentMethod string    `json:"payment_method"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// SessionListing is a session plus how many paid seats remain.
type SessionListing struct {
	Session
	SeatsLeft int `json:"seats_left"`
}

type SessionReport struct {
	ID            int64     `json:"id"`
	SessionID     int64     `json:"session_id"`
	ParticipantID int64     `json:"participant_id"`
	Description   string    `json:"description"`
	NeedRefund    bool      `json:"need_refund"`
	CreatedAt     time.Time `json:"created_at"`
}
