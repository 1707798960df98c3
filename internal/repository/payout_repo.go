package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/CoachConnectBack/internal/models"
)

const payoutColumns = `id, session_id, coach_id, total_amount, status, created_at, updated_at`

type PayoutRepository struct {
	db DBTX
}

func NewPayoutRepository(db DBTX) *PayoutRepository {
	return &PayoutRepository{db: db}
}

// CreateIfAbsent inserts a pending payout keyed by session id. The unique
// index on session_id plus ON CONFLICT DO NOTHING makes the insert idempotent
// across repeated or concurrent scans; it returns (nil, nil) when a payout for
// the session already exists.
func (r *PayoutRepository) CreateIfAbsent(
	ctx context.Context,
	sessionID int64,
	coachID int64,
	totalAmount float64,
) (*models.DuePayout, error) {
	query := `
		INSERT INTO due_payouts (session_id, coach_id, total_amount, status)
		VALUES ($1, $2, $3, 'pending')
		ON CONFLICT (session_id) DO NOTHING
		RETURNING ` + payoutColumns
	payout, err := scanPayout(r.db.QueryRow(ctx, query, sessionID, coachID, totalAmount))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return payout, nil
}

func (r *PayoutRepository) GetBySessionID(ctx context.Context, sessionID int64) (*models.DuePayout, error) {
	query := `SELECT ` + payoutColumns + ` FROM due_payouts WHERE session_id = $1`
	return scanPayout(r.db.QueryRow(ctx, query, sessionID))
}

func (r *PayoutRepository) ExistsForSession(ctx context.Context, sessionID int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM due_payouts WHERE session_id = $1)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, sessionID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *PayoutRepository) ListByStatus(ctx context.Context, status string) ([]models.DuePayout, error) {
	query := `SELECT ` + payoutColumns + ` FROM due_payouts WHERE status = $1 ORDER BY id ASC`
	rows, err := r.db.Query(ctx, query, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payouts := make([]models.DuePayout, 0)
	for rows.Next() {
		var payout models.DuePayout
		if err := rows.Scan(payoutScanTargets(&payout)...); err != nil {
			return nil, err
		}
		payouts = append(payouts, payout)
	}
	return payouts, rows.Err()
}

func (r *PayoutRepository) ListByCoach(ctx context.Context, coachID int64) ([]models.DuePayout, error) {
	query := `SELECT ` + payoutColumns + ` FROM due_payouts WHERE coach_id = $1 ORDER BY id DESC`
	rows, err := r.db.Query(ctx, query, coachID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payouts := make([]models.DuePayout, 0)
	for rows.Next() {
		var payout models.DuePayout
		if err := rows.Scan(payoutScanTargets(&payout)...); err != nil {
			return nil, err
		}
		payouts = append(payouts, payout)
	}
	return payouts, rows.Err()
}

// UpdateStatusIfCurrent flips a payout between pending and hold while refund
// decisions are outstanding. Released payouts are settled out of band.
func (r *PayoutRepository) UpdateStatusIfCurrent(
	ctx context.Context,
	payoutID int64,
	currentStatus string,
	nextStatus string,
) (*models.DuePayout, error) {
	query := `
		UPDATE due_payouts
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + payoutColumns
	return scanPayout(r.db.QueryRow(ctx, query, payoutID, currentStatus, nextStatus))
}

// UpdateAmount recomputes a held payout after a refund decision lands.
func (r *PayoutRepository) UpdateAmount(
	ctx context.Context,
	payoutID int64,
	totalAmount float64,
) (*models.DuePayout, error) {
	query := `
		UPDATE due_payouts
		SET total_amount = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + payoutColumns
	return scanPayout(r.db.QueryRow(ctx, query, payoutID, totalAmount))
}

func payoutScanTargets(payout *models.DuePayout) []any {
	return []any{
		&payout.ID,
		&payout.SessionID,
		&payout.CoachID,
		&payout.TotalAmount,
		&payout.Status,
		&payout.CreatedAt,
		&payout.UpdatedAt,
	}
}

func scanPayout(row pgx.Row) (*models.DuePayout, error) {
	var payout models.DuePayout
	if err := row.Scan(payoutScanTargets(&payout)...); err != nil {
		return nil, err
	}
	return &payout, nil
}
