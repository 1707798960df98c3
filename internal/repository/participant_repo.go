package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/CoachConnectBack/internal/models"
)

const participantColumns = `id, session_id, player_id, player_status, payment_status, payment_method,
	created_at, updated_at`

type CreateParticipantInput struct {
	SessionID     int64
	PlayerID      int64
	PlayerStatus  string
	PaymentStatus string
	PaymentMethod string
}

type ParticipantRepository struct {
	db DBTX
}

func NewParticipantRepository(db DBTX) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

func (r *ParticipantRepository) Create(
	ctx context.Context,
	input CreateParticipantInput,
) (*models.SessionParticipant, error) {
	query := `
		INSERT INTO session_participants (session_id, player_id, player_status, payment_status, payment_method)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + participantColumns
	return scanParticipant(r.db.QueryRow(
		ctx,
		query,
		input.SessionID,
		input.PlayerID,
		input.PlayerStatus,
		input.PaymentStatus,
		input.PaymentMethod,
	))
}

func (r *ParticipantRepository) GetByID(
	ctx context.Context,
	participantID int64,
) (*models.SessionParticipant, error) {
	query := `SELECT ` + participantColumns + ` FROM session_participants WHERE id = $1`
	return scanParticipant(r.db.QueryRow(ctx, query, participantID))
}

// GetAttending returns the player's attending membership in the session, if any.
func (r *ParticipantRepository) GetAttending(
	ctx context.Context,
	sessionID int64,
	playerID int64,
) (*models.SessionParticipant, error) {
	query := `
		SELECT ` + participantColumns + `
		FROM session_participants
		WHERE session_id = $1 AND player_id = $2 AND player_status = 'attending'
		ORDER BY id DESC
		LIMIT 1
	`
	return scanParticipant(r.db.QueryRow(ctx, query, sessionID, playerID))
}

func (r *ParticipantRepository) ListBySession(
	ctx context.Context,
	sessionID int64,
) ([]models.SessionParticipant, error) {
	query := `
		SELECT ` + participantColumns + `
		FROM session_participants
		WHERE session_id = $1
		ORDER BY id ASC
	`
	rows, err := r.db.Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectParticipants(rows)
}

func (r *ParticipantRepository) ListBySessionAndPlayerStatus(
	ctx context.Context,
	sessionID int64,
	playerStatus string,
) ([]models.SessionParticipant, error) {
	query := `
		SELECT ` + participantColumns + `
		FROM session_participants
		WHERE session_id = $1 AND player_status = $2
		ORDER BY id ASC
	`
	rows, err := r.db.Query(ctx, query, sessionID, playerStatus)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectParticipants(rows)
}

// CountSeated counts memberships that occupy a seat: attending with a settled
// paid or cash payment.
func (r *ParticipantRepository) CountSeated(ctx context.Context, sessionID int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM session_participants
		WHERE session_id = $1
		  AND player_status = 'attending'
		  AND payment_status IN ('paid', 'cash')
	`
	var count int
	if err := r.db.QueryRow(ctx, query, sessionID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// CountPayable counts attending participants whose online payment settled.
// Cash seats are collected in person and never flow through payouts.
func (r *ParticipantRepository) CountPayable(ctx context.Context, sessionID int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM session_participants
		WHERE session_id = $1 AND player_status = 'attending' AND payment_status = 'paid'
	`
	var count int
	if err := r.db.QueryRow(ctx, query, sessionID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// GetOpen returns the player's non-cancelled membership in the session, if
// any. A pending row here is a checkout that was started but never settled.
func (r *ParticipantRepository) GetOpen(
	ctx context.Context,
	sessionID int64,
	playerID int64,
) (*models.SessionParticipant, error) {
	query := `
		SELECT ` + participantColumns + `
		FROM session_participants
		WHERE session_id = $1 AND player_id = $2 AND player_status <> 'cancelled'
	`
	return scanParticipant(r.db.QueryRow(ctx, query, sessionID, playerID))
}

// VoidPending cancels a membership only while it still awaits its payment.
// Returns pgx.ErrNoRows when the row settled in the meantime.
func (r *ParticipantRepository) VoidPending(
	ctx context.Context,
	participantID int64,
) (*models.SessionParticipant, error) {
	query := `
		UPDATE session_participants
		SET player_status = 'cancelled', payment_status = 'failed', updated_at = NOW()
		WHERE id = $1 AND player_status = 'pending'
		RETURNING ` + participantColumns
	return scanParticipant(r.db.QueryRow(ctx, query, participantID))
}

// CancelAllBySession flips every non-cancelled membership of the session to
// cancelled and returns the rows that changed.
func (r *ParticipantRepository) CancelAllBySession(
	ctx context.Context,
	sessionID int64,
) ([]models.SessionParticipant, error) {
	query := `
		UPDATE session_participants
		SET player_status = 'cancelled', updated_at = NOW()
		WHERE session_id = $1 AND player_status <> 'cancelled'
		RETURNING ` + participantColumns
	rows, err := r.db.Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectParticipants(rows)
}

func (r *ParticipantRepository) UpdatePlayerStatus(
	ctx context.Context,
	participantID int64,
	playerStatus string,
) (*models.SessionParticipant, error) {
	query := `
		UPDATE session_participants
		SET player_status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + participantColumns
	return scanParticipant(r.db.QueryRow(ctx, query, participantID, playerStatus))
}

func (r *ParticipantRepository) UpdatePaymentStatus(
	ctx context.Context,
	participantID int64,
	paymentStatus string,
) (*models.SessionParticipant, error) {
	query := `
		UPDATE session_participants
		SET payment_status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + participantColumns
	return scanParticipant(r.db.QueryRow(ctx, query, participantID, paymentStatus))
}

func (r *ParticipantRepository) UpdateStatuses(
	ctx context.Context,
	participantID int64,
	playerStatus string,
	paymentStatus string,
) (*models.SessionParticipant, error) {
	query := `
		UPDATE session_participants
		SET player_status = $2, payment_status = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + participantColumns
	return scanParticipant(r.db.QueryRow(ctx, query, participantID, playerStatus, paymentStatus))
}

func scanParticipant(row pgx.Row) (*models.SessionParticipant, error) {
	var participant models.SessionParticipant
	err := row.Scan(
		&participant.ID,
		&participant.SessionID,
		&participant.PlayerID,
		&participant.PlayerStatus,
		&participant.PaymentStatus,
		&participant.PaymentMethod,
		&participant.CreatedAt,
		&participant.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &participant, nil
}

func collectParticipants(rows pgx.Rows) ([]models.SessionParticipant, error) {
	participants := make([]models.SessionParticipant, 0)
	for rows.Next() {
		var participant models.SessionParticipant
		if err := rows.Scan(
			&participant.ID,
			&participant.SessionID,
			&participant.PlayerID,
			&participant.PlayerStatus,
			&participant.PaymentStatus,
			&participant.PaymentMethod,
			&participant.CreatedAt,
			&participant.UpdatedAt,
		); err != nil {
			return nil, err
		}
		participants = append(participants, participant)
	}
	return participants, rows.Err()
}
