package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/saeid-a/CoachConnectBack/internal/models"
	"github.com/saeid-a/CoachConnectBack/internal/repository"
)

// CancellationService routes a cancellation to the policy of the acting role.
// Every policy commits the session/participant changes first and runs refunds
// and notifications after the commit.
type CancellationService struct {
	db              *pgxpool.Pool
	sessionRepo     *repository.SessionRepository
	participantRepo *repository.ParticipantRepository
	refunds         refundResolver
	notifier        notifier
}

func NewCancellationService(
	db *pgxpool.Pool,
	sessionRepo *repository.SessionRepository,
	participantRepo *repository.ParticipantRepository,
	refunds refundResolver,
	notifier notifier,
) *CancellationService {
	return &CancellationService{
		db:              db,
		sessionRepo:     sessionRepo,
		participantRepo: participantRepo,
		refunds:         refunds,
		notifier:        notifier,
	}
}

func (s *CancellationService) CancelSession(
	ctx context.Context,
	actorID int64,
	actorRole string,
	sessionID int64,
	reason string,
) error {
	switch actorRole {
	case models.RoleCoach:
		return s.cancelByCoach(ctx, actorID, sessionID, reason)
	case models.RolePlayer:
		return s.cancelByPlayer(ctx, actorID, sessionID, reason)
	case models.RoleAdmin:
		return s.cancelByAdmin(ctx, actorID, sessionID, reason)
	}
	return fmt.Errorf("%w: unknown role %q", ErrInvalidInput, actorRole)
}

// cancelByCoach cancels the whole session before it starts. Every membership
// is cancelled and every settled online payment gets an immediate refund.
func (s *CancellationService) cancelByCoach(
	ctx context.Context,
	coachID int64,
	sessionID int64,
	reason string,
) error {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: session %d", ErrNotFound, sessionID)
		}
		return err
	}
	if session.CoachID != coachID {
		return fmt.Errorf("%w: session belongs to another coach", ErrForbidden)
	}
	if session.Status != models.SessionStatusCreated || !session.StartedAt.After(time.Now().UTC()) {
		return fmt.Errorf("%w: session already started", ErrInvalidStateTransition)
	}

	cancelled, affected, err := s.cancelSessionTx(ctx, sessionID, models.SessionStatusCreated)
	if err != nil {
		return err
	}

	s.settleAfterCancel(ctx, cancelled, affected, reason,
		fmt.Sprintf("The coach cancelled session %q", cancelled.Title))
	return nil
}

// cancelByPlayer withdraws the player's own membership. While the session is
// still open the seat frees immediately; a settled online payment always goes
// through the refund resolver, whose strategy follows the session state.
func (s *CancellationService) cancelByPlayer(
	ctx context.Context,
	playerID int64,
	sessionID int64,
	reason string,
) error {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: session %d", ErrNotFound, sessionID)
		}
		return err
	}

	participant, err := s.participantRepo.GetAttending(ctx, sessionID, playerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: you are not enrolled in this session", ErrNotFound)
		}
		return err
	}

	paidOnline := participant.PaymentMethod == models.PaymentMethodOnline &&
		participant.PaymentStatus == models.ParticipantPaymentPaid

	if session.Status != models.SessionStatusCreated && !paidOnline {
		// Once the session has started there is nothing to undo for a
		// free or cash membership.
		return fmt.Errorf("%w: session already started", ErrInvalidStateTransition)
	}

	// The refund resolves first: if it fails, the membership stays attending
	// and the player can retry the cancellation.
	if paidOnline {
		if err := s.refunds.Resolve(ctx, session, participant, reason); err != nil {
			return err
		}
	}

	if session.Status == models.SessionStatusCreated {
		if _, err := s.participantRepo.UpdatePlayerStatus(
			ctx, participant.ID, models.PlayerStatusCancelled,
		); err != nil {
			return err
		}
		sendNotification(ctx, s.notifier, playerID, models.NotificationLevelInfo,
			"Enrollment cancelled",
			fmt.Sprintf("You left session %q", session.Title))
	}
	return nil
}

// cancelByAdmin terminates a session that has already started. All memberships
// are cancelled and settled online payments go through the refund resolver.
func (s *CancellationService) cancelByAdmin(
	ctx context.Context,
	adminID int64,
	sessionID int64,
	reason string,
) error {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: session %d", ErrNotFound, sessionID)
		}
		return err
	}
	if session.Status != models.SessionStatusOngoing {
		return fmt.Errorf("%w: only ongoing sessions can be terminated", ErrInvalidStateTransition)
	}

	cancelled, affected, err := s.cancelSessionTx(ctx, sessionID, models.SessionStatusOngoing)
	if err != nil {
		return err
	}

	log.Printf("admin %d terminated session %d", adminID, sessionID)
	s.settleAfterCancel(ctx, cancelled, affected, reason,
		fmt.Sprintf("Session %q was cancelled by the platform", cancelled.Title))
	return nil
}

// cancelSessionTx flips the session and all of its memberships to cancelled in
// one transaction, holding the session's advisory lock so no enrollment can
// slip in between.
func (s *CancellationService) cancelSessionTx(
	ctx context.Context,
	sessionID int64,
	currentStatus string,
) (*models.Session, []models.SessionParticipant, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", sessionID); err != nil {
		return nil, nil, err
	}

	txSessionRepo := repository.NewSessionRepository(tx)
	txParticipantRepo := repository.NewParticipantRepository(tx)

	session, err := txSessionRepo.UpdateStatusIfCurrent(
		ctx, sessionID, currentStatus, models.SessionStatusCancelled,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, fmt.Errorf("%w: session moved out of %s state", ErrConflict, currentStatus)
		}
		return nil, nil, err
	}

	affected, err := txParticipantRepo.CancelAllBySession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return session, affected, nil
}

// settleAfterCancel runs the post-commit side effects of a full-session
// cancellation: refunds for settled online payments, then player notices.
// Refund failures are logged so the affected participant can be retried; they
// never undo the cancellation.
func (s *CancellationService) settleAfterCancel(
	ctx context.Context,
	session *models.Session,
	affected []models.SessionParticipant,
	reason string,
	notice string,
) {
	for i := range affected {
		participant := &affected[i]
		if participant.PaymentMethod == models.PaymentMethodOnline &&
			participant.PaymentStatus == models.ParticipantPaymentPaid {
			if err := s.refunds.Resolve(ctx, session, participant, reason); err != nil {
				log.Printf(
					"refund for participant %d of session %d failed: %v",
					participant.ID, session.ID, err,
				)
			}
		}
		sendNotification(ctx, s.notifier, participant.PlayerID,
			models.NotificationLevelWarning, "Session Cancelled", notice)
	}
}
