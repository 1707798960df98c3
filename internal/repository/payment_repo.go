package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/CoachConnectBack/internal/models"
)

const paymentColumns = `id, session_id, participant_id, payment_type, session_fee, platform_fee,
	total_amount, status, checkout_id, intent_id, idempotency_key, created_at`

type CreatePaymentInput struct {
	SessionID      int64
	ParticipantID  int64
	Type           string
	SessionFee     float64
	PlatformFee    float64
	Status         string
	IdempotencyKey *string
}

type PaymentRepository struct {
	db DBTX
}

func NewPaymentRepository(db DBTX) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, input CreatePaymentInput) (*models.Payment, error) {
	query := `
		INSERT INTO payments (session_id, participant_id, payment_type, session_fee, platform_fee,
			total_amount, status, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $4 + $5, $6, $7)
		RETURNING ` + paymentColumns
	return scanPayment(r.db.QueryRow(
		ctx,
		query,
		input.SessionID,
		input.ParticipantID,
		input.Type,
		input.SessionFee,
		input.PlatformFee,
		input.Status,
		input.IdempotencyKey,
	))
}

// FailPendingEnrollment voids the participant's unsettled enrollment payment,
// if one exists.
func (r *PaymentRepository) FailPendingEnrollment(ctx context.Context, participantID int64) error {
	query := `
		UPDATE payments
		SET status = 'failed'
		WHERE participant_id = $1 AND payment_type = 'enrollment' AND status = 'pending'
	`
	_, err := r.db.Exec(ctx, query, participantID)
	return err
}

func (r *PaymentRepository) GetByID(ctx context.Context, paymentID int64) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	return scanPayment(r.db.QueryRow(ctx, query, paymentID))
}

// GetSucceededEnrollment returns the participant's settled enrollment payment
// for the session, if one exists.
func (r *PaymentRepository) GetSucceededEnrollment(
	ctx context.Context,
	sessionID int64,
	participantID int64,
) (*models.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE session_id = $1
		  AND participant_id = $2
		  AND payment_type = 'enrollment'
		  AND status = 'succeeded'
		ORDER BY id DESC
		LIMIT 1
	`
	return scanPayment(r.db.QueryRow(ctx, query, sessionID, participantID))
}

func (r *PaymentRepository) UpdateStatusIfCurrent(
	ctx context.Context,
	paymentID int64,
	currentStatus string,
	nextStatus string,
) (*models.Payment, error) {
	query := `
		UPDATE payments
		SET status = $3
		WHERE id = $1 AND status = $2
		RETURNING ` + paymentColumns
	return scanPayment(r.db.QueryRow(ctx, query, paymentID, currentStatus, nextStatus))
}

// MarkSucceeded settles a pending payment and records the gateway checkout and
// intent references for later refunds.
func (r *PaymentRepository) MarkSucceeded(
	ctx context.Context,
	paymentID int64,
	checkoutID string,
	intentID string,
) (*models.Payment, error) {
	query := `
		UPDATE payments
		SET status = 'succeeded', checkout_id = $2, intent_id = $3
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + paymentColumns
	return scanPayment(r.db.QueryRow(ctx, query, paymentID, checkoutID, intentID))
}

func (r *PaymentRepository) ListBySession(ctx context.Context, sessionID int64) ([]models.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE session_id = $1
		ORDER BY id ASC
	`
	rows, err := r.db.Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]models.Payment, 0)
	for rows.Next() {
		var payment models.Payment
		if err := rows.Scan(paymentScanTargets(&payment)...); err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	return payments, rows.Err()
}

func paymentScanTargets(payment *models.Payment) []any {
	return []any{
		&payment.ID,
		&payment.SessionID,
		&payment.ParticipantID,
		&payment.Type,
		&payment.SessionFee,
		&payment.PlatformFee,
		&payment.TotalAmount,
		&payment.Status,
		&payment.CheckoutID,
		&payment.IntentID,
		&payment.IdempotencyKey,
		&payment.CreatedAt,
	}
}

func scanPayment(row pgx.Row) (*models.Payment, error) {
	var payment models.Payment
	if err := row.Scan(paymentScanTargets(&payment)...); err != nil {
		return nil, err
	}
	return &payment, nil
}
