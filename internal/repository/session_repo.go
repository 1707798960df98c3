package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/CoachConnectBack/internal/models"
)

const sessionColumns = `id, coach_id, title, description, address, additional_notes, fee,
	max_participants, min_age, started_at, completed_at, status, report_till, report_valid,
	created_at, updated_at`

type CreateSessionInput struct {
	CoachID         int64
	Title           string
	Description     *string
	Address         *string
	AdditionalNotes *string
	Fee             float64
	MaxParticipants int
	MinAge          int
	StartedAt       time.Time
	CompletedAt     time.Time
}

type UpdateSessionInput struct {
	Title           *string
	Description     *string
	Address         *string
	AdditionalNotes *string
	Fee             *float64
	MaxParticipants *int
	MinAge          *int
}

type SessionRepository struct {
	db DBTX
}

func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(
	ctx context.Context,
	input CreateSessionInput,
) (*models.Session, error) {
	query := `
		INSERT INTO sessions (coach_id, title, description, address, additional_notes, fee,
			max_participants, min_age, started_at, completed_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 'created')
		RETURNING ` + sessionColumns
	return scanSession(r.db.QueryRow(
		ctx,
		query,
		input.CoachID,
		input.Title,
		input.Description,
		input.Address,
		input.AdditionalNotes,
		input.Fee,
		input.MaxParticipants,
		input.MinAge,
		input.StartedAt,
		input.CompletedAt,
	))
}

func (r *SessionRepository) GetByID(ctx context.Context, sessionID int64) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`
	return scanSession(r.db.QueryRow(ctx, query, sessionID))
}

func (r *SessionRepository) GetByIDForUpdate(
	ctx context.Context,
	sessionID int64,
) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1 FOR UPDATE`
	return scanSession(r.db.QueryRow(ctx, query, sessionID))
}

func (r *SessionRepository) Update(
	ctx context.Context,
	sessionID int64,
	input UpdateSessionInput,
) (*models.Session, error) {
	query := `
		UPDATE sessions
		SET title = COALESCE($2, title),
			description = COALESCE($3, description),
			address = COALESCE($4, address),
			additional_notes = COALESCE($5, additional_notes),
			fee = COALESCE($6, fee),
			max_participants = COALESCE($7, max_participants),
			min_age = COALESCE($8, min_age),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + sessionColumns
	return scanSession(r.db.QueryRow(
		ctx,
		query,
		sessionID,
		input.Title,
		input.Description,
		input.Address,
		input.AdditionalNotes,
		input.Fee,
		input.MaxParticipants,
		input.MinAge,
	))
}

func (r *SessionRepository) UpdateStatusIfCurrent(
	ctx context.Context,
	sessionID int64,
	currentStatus string,
	nextStatus string,
) (*models.Session, error) {
	query := `
		UPDATE sessions
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + sessionColumns
	return scanSession(r.db.QueryRow(ctx, query, sessionID, currentStatus, nextStatus))
}

// StartDueSessions moves every created session whose start time has passed to
// ongoing and opens its report window. The WHERE clause makes re-runs no-ops,
// so duplicate ticks cannot re-fire the transition.
func (r *SessionRepository) StartDueSessions(
	ctx context.Context,
	now time.Time,
	reportWindow time.Duration,
) (int64, error) {
	query := `
		UPDATE sessions
		SET status = 'ongoing', report_till = $2, report_valid = TRUE, updated_at = NOW()
		WHERE status = 'created' AND started_at <= $1
	`
	tag, err := r.db.Exec(ctx, query, now, now.Add(reportWindow))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CompleteDueSessions moves every ongoing session whose completion time has
// passed to completed, closes reporting, and returns the sessions that
// transitioned on this call only.
func (r *SessionRepository) CompleteDueSessions(
	ctx context.Context,
	now time.Time,
) ([]models.Session, error) {
	query := `
		UPDATE sessions
		SET status = 'completed', report_valid = FALSE, updated_at = NOW()
		WHERE status = 'ongoing' AND completed_at <= $1
		RETURNING ` + sessionColumns
	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSessions(rows)
}

func (r *SessionRepository) ListByStatus(ctx context.Context, status string) ([]models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE status = $1 ORDER BY id ASC`
	rows, err := r.db.Query(ctx, query, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSessions(rows)
}

// ListJoinable returns created sessions the player has no attending paid or
// cash membership in, with the number of unsold seats.
func (r *SessionRepository) ListJoinable(
	ctx context.Context,
	playerID int64,
	limit int,
	offset int,
) ([]models.SessionListing, error) {
	query := `
		SELECT ` + prefixedSessionColumns("s") + `,
			s.max_participants - (
				SELECT COUNT(*)
				FROM session_participants p
				WHERE p.session_id = s.id
				  AND p.player_status = 'attending'
				  AND p.payment_status IN ('paid', 'cash')
			) AS seats_left
		FROM sessions s
		WHERE s.status = 'created'
		  AND s.coach_id <> $1
		  AND NOT EXISTS (
			SELECT 1
			FROM session_participants p
			WHERE p.session_id = s.id
			  AND p.player_id = $1
			  AND p.player_status = 'attending'
			  AND p.payment_status IN ('paid', 'cash')
		  )
		ORDER BY s.started_at ASC, s.id ASC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, playerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	listings := make([]models.SessionListing, 0)
	for rows.Next() {
		var listing models.SessionListing
		if err := rows.Scan(
			sessionScanTargets(&listing.Session,
				&listing.SeatsLeft)...); err != nil {
			return nil, err
		}
		listings = append(listings, listing)
	}
	return listings, rows.Err()
}

// ListCoachUpcoming returns the coach's created sessions starting inside the
// given window, soonest first.
func (r *SessionRepository) ListCoachUpcoming(
	ctx context.Context,
	coachID int64,
	from time.Time,
	until time.Time,
) ([]models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE coach_id = $1 AND status = 'created' AND started_at BETWEEN $2 AND $3
		ORDER BY started_at ASC, id ASC
	`
	rows, err := r.db.Query(ctx, query, coachID, from, until)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSessions(rows)
}

// ListPlayerByStatuses returns sessions where the player holds a membership in
// the given player status, filtered to the given session statuses.
func (r *SessionRepository) ListPlayerByStatuses(
	ctx context.Context,
	playerID int64,
	playerStatus string,
	sessionStatuses []string,
) ([]models.Session, error) {
	query := `
		SELECT ` + prefixedSessionColumns("s") + `
		FROM sessions s
		WHERE s.status = ANY($3)
		  AND EXISTS (
			SELECT 1
			FROM session_participants p
			WHERE p.session_id = s.id AND p.player_id = $1 AND p.player_status = $2
		  )
		ORDER BY s.started_at DESC, s.id DESC
	`
	rows, err := r.db.Query(ctx, query, playerID, playerStatus, sessionStatuses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSessions(rows)
}

func (r *SessionRepository) CreateReport(
	ctx context.Context,
	sessionID int64,
	participantID int64,
	description string,
	needRefund bool,
) (*models.SessionReport, error) {
	query := `
		INSERT INTO session_reports (session_id, participant_id, description, need_refund)
		VALUES ($1, $2, $3, $4)
		RETURNING id, session_id, participant_id, description, need_refund, created_at
	`
	var report models.SessionReport
	err := r.db.QueryRow(ctx, query, sessionID, participantID, description, needRefund).Scan(
		&report.ID,
		&report.SessionID,
		&report.ParticipantID,
		&report.Description,
		&report.NeedRefund,
		&report.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func prefixedSessionColumns(alias string) string {
	return alias + `.id, ` + alias + `.coach_id, ` + alias + `.title, ` + alias + `.description, ` +
		alias + `.address, ` + alias + `.additional_notes, ` + alias + `.fee, ` +
		alias + `.max_participants, ` + alias + `.min_age, ` + alias + `.started_at, ` +
		alias + `.completed_at, ` + alias + `.status, ` + alias + `.report_till, ` +
		alias + `.report_valid, ` + alias + `.created_at, ` + alias + `.updated_at`
}

func sessionScanTargets(session *models.Session, extra ...any) []any {
	targets := []any{
		&session.ID,
		&session.CoachID,
		&session.Title,
		&session.Description,
		&session.Address,
		&session.AdditionalNotes,
		&session.Fee,
		&session.MaxParticipants,
		&session.MinAge,
		&session.StartedAt,
		&session.CompletedAt,
		&session.Status,
		&session.ReportTill,
		&session.ReportValid,
		&session.CreatedAt,
		&session.UpdatedAt,
	}
	return append(targets, extra...)
}

func scanSession(row pgx.Row) (*models.Session, error) {
	var session models.Session
	if err := row.Scan(sessionScanTargets(&session)...); err != nil {
		return nil, err
	}
	return &session, nil
}

func collectSessions(rows pgx.Rows) ([]models.Session, error) {
	sessions := make([]models.Session, 0)
	for rows.Next() {
		var session models.Session
		if err := rows.Scan(sessionScanTargets(&session)...); err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}
