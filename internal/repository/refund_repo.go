package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/CoachConnectBack/internal/models"
)

const refundColumns = `id, session_id, participant_id, payment_id, status, refund_request_type,
	refunded_amount, reason, rejection_note, resolved_by, idempotency_key, created_at, updated_at`

type CreateRefundRequestInput struct {
	SessionID      int64
	ParticipantID  int64
	PaymentID      int64
	Status         string
	Type           string
	RefundedAmount float64
	Reason         *string
	IdempotencyKey string
}

type RefundRepository struct {
	db DBTX
}

func NewRefundRepository(db DBTX) *RefundRepository {
	return &RefundRepository{db: db}
}

func (r *RefundRepository) Create(
	ctx context.Context,
	input CreateRefundRequestInput,
) (*models.RefundRequest, error) {
	query := `
		INSERT INTO refund_requests (session_id, participant_id, payment_id, status,
			refund_request_type, refunded_amount, reason, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + refundColumns
	return scanRefundRequest(r.db.QueryRow(
		ctx,
		query,
		input.SessionID,
		input.ParticipantID,
		input.PaymentID,
		input.Status,
		input.Type,
		input.RefundedAmount,
		input.Reason,
		input.IdempotencyKey,
	))
}

func (r *RefundRepository) GetByID(ctx context.Context, requestID int64) (*models.RefundRequest, error) {
	query := `SELECT ` + refundColumns + ` FROM refund_requests WHERE id = $1`
	return scanRefundRequest(r.db.QueryRow(ctx, query, requestID))
}

func (r *RefundRepository) GetByIDForUpdate(ctx context.Context, requestID int64) (*models.RefundRequest, error) {
	query := `SELECT ` + refundColumns + ` FROM refund_requests WHERE id = $1 FOR UPDATE`
	return scanRefundRequest(r.db.QueryRow(ctx, query, requestID))
}

// HasOpen reports whether the participant already holds a non-cancelled refund
// request for the session. The partial unique index on (participant_id,
// session_id) backs the same invariant for concurrent writers.
func (r *RefundRepository) HasOpen(
	ctx context.Context,
	sessionID int64,
	participantID int64,
) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM refund_requests
			WHERE session_id = $1 AND participant_id = $2 AND status <> 'cancelled'
		)
	`
	var exists bool
	if err := r.db.QueryRow(ctx, query, sessionID, participantID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *RefundRepository) CountPendingBySession(ctx context.Context, sessionID int64) (int, error) {
	query := `SELECT COUNT(*) FROM refund_requests WHERE session_id = $1 AND status = 'pending'`
	var count int
	if err := r.db.QueryRow(ctx, query, sessionID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// Accept resolves a pending admin-approval request. The status guard makes a
// second accept fail with pgx.ErrNoRows instead of re-running the refund.
func (r *RefundRepository) Accept(
	ctx context.Context,
	requestID int64,
	adminID int64,
) (*models.RefundRequest, error) {
	query := `
		UPDATE refund_requests
		SET status = 'accepted', resolved_by = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending' AND refund_request_type = 'admin_approval'
		RETURNING ` + refundColumns
	return scanRefundRequest(r.db.QueryRow(ctx, query, requestID, adminID))
}

// Reject cancels a pending request with the admin's note. No money moves.
func (r *RefundRepository) Reject(
	ctx context.Context,
	requestID int64,
	adminID int64,
	note string,
) (*models.RefundRequest, error) {
	query := `
		UPDATE refund_requests
		SET status = 'cancelled', resolved_by = $2, rejection_note = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + refundColumns
	return scanRefundRequest(r.db.QueryRow(ctx, query, requestID, adminID, note))
}

func (r *RefundRepository) ListByCoach(
	ctx context.Context,
	coachID int64,
	limit int,
	offset int,
) ([]models.RefundRequest, error) {
	query := `
		SELECT ` + prefixedRefundColumns("rr") + `
		FROM refund_requests rr
		JOIN sessions s ON s.id = rr.session_id
		WHERE s.coach_id = $1
		ORDER BY rr.id DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, coachID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRefundRequests(rows)
}

func (r *RefundRepository) ListPending(ctx context.Context, limit int, offset int) ([]models.RefundRequest, error) {
	query := `
		SELECT ` + refundColumns + `
		FROM refund_requests
		WHERE status = 'pending'
		ORDER BY id ASC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRefundRequests(rows)
}

func prefixedRefundColumns(alias string) string {
	return alias + `.id, ` + alias + `.session_id, ` + alias + `.participant_id, ` +
		alias + `.payment_id, ` + alias + `.status, ` + alias + `.refund_request_type, ` +
		alias + `.refunded_amount, ` + alias + `.reason, ` + alias + `.rejection_note, ` +
		alias + `.resolved_by, ` + alias + `.idempotency_key, ` + alias + `.created_at, ` +
		alias + `.updated_at`
}

func refundScanTargets(request *models.RefundRequest) []any {
	return []any{
		&request.ID,
		&request.SessionID,
		&request.ParticipantID,
		&request.PaymentID,
		&request.Status,
		&request.Type,
		&request.RefundedAmount,
		&request.Reason,
		&request.RejectionNote,
		&request.ResolvedBy,
		&request.IdempotencyKey,
		&request.CreatedAt,
		&request.UpdatedAt,
	}
}

func scanRefundRequest(row pgx.Row) (*models.RefundRequest, error) {
	var request models.RefundRequest
	if err := row.Scan(refundScanTargets(&request)...); err != nil {
		return nil, err
	}
	return &request, nil
}

func collectRefundRequests(rows pgx.Rows) ([]models.RefundRequest, error) {
	requests := make([]models.RefundRequest, 0)
	for rows.Next() {
		var request models.RefundRequest
		if err := rows.Scan(refundScanTargets(&request)...); err != nil {
			return nil, err
		}
		requests = append(requests, request)
	}
	return requests, rows.Err()
}
