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

type EnrollmentService struct {
	db              *pgxpool.Pool
	sessionRepo     *repository.SessionRepository
	participantRepo *repository.ParticipantRepository
	paymentRepo     *repository.PaymentRepository
	userRepo        sessionUserReader
	gateway         PaymentGateway
	notifier        notifier
	platformFee     float64
}

func NewEnrollmentService(
	db *pgxpool.Pool,
	sessionRepo *repository.SessionRepository,
	participantRepo *repository.ParticipantRepository,
	paymentRepo *repository.PaymentRepository,
	userRepo sessionUserReader,
	gateway PaymentGateway,
	notifier notifier,
	platformFee float64,
) *EnrollmentService {
	return &EnrollmentService{
		db:              db,
		sessionRepo:     sessionRepo,
		participantRepo: participantRepo,
		paymentRepo:     paymentRepo,
		userRepo:        userRepo,
		gateway:         gateway,
		notifier:        notifier,
		platformFee:     platformFee,
	}
}

// EnrollmentResult is either a settled membership (free and cash paths) or a
// checkout redirect the player must complete (online path).
type EnrollmentResult struct {
	Participant *models.SessionParticipant `json:"participant"`
	RedirectURL string                     `json:"redirect_url,omitempty"`
}

// Enroll admits a player into a session. Capacity and duplicate checks run
// inside a transaction holding the session's advisory lock, so two racing
// enrollments for the last seat serialize and the loser is rejected.
func (s *EnrollmentService) Enroll(
	ctx context.Context,
	playerID int64,
	sessionID int64,
	paymentMethod string,
) (*EnrollmentResult, error) {
	if paymentMethod != models.PaymentMethodOnline && paymentMethod != models.PaymentMethodCash {
		return nil, fmt.Errorf("%w: unknown payment method %q", ErrInvalidInput, paymentMethod)
	}

	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: session %d", ErrNotFound, sessionID)
		}
		return nil, err
	}
	if session.Status != models.SessionStatusCreated {
		return nil, fmt.Errorf("%w: session is not open for enrollment", ErrInvalidStateTransition)
	}
	if session.CoachID == playerID {
		return nil, fmt.Errorf("%w: coaches cannot enroll their own sessions", ErrForbidden)
	}

	player, err := s.userRepo.GetByID(ctx, playerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: player %d", ErrNotFound, playerID)
		}
		return nil, err
	}
	if session.MinAge > 0 {
		age := player.Age(time.Now().UTC())
		if age < session.MinAge {
			return nil, fmt.Errorf("%w: your age does not match the session requirement", ErrInvalidInput)
		}
	}

	free := session.Fee <= 0 && s.platformFee <= 0

	if !free && paymentMethod == models.PaymentMethodOnline && s.gateway == nil {
		return nil, fmt.Errorf("%w: online payments are not configured", ErrGateway)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txSessionRepo := repository.NewSessionRepository(tx)
	txParticipantRepo := repository.NewParticipantRepository(tx)
	txPaymentRepo := repository.NewPaymentRepository(tx)

	// Serialize per session: capacity and duplicate checks must see the
	// same committed state the insert lands on.
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", sessionID); err != nil {
		return nil, err
	}

	current, err := txSessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if current.Status != models.SessionStatusCreated {
		return nil, fmt.Errorf("%w: session is not open for enrollment", ErrInvalidStateTransition)
	}

	seated, err := txParticipantRepo.CountSeated(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if seated >= current.MaxParticipants {
		return nil, fmt.Errorf("%w: session is full", ErrConflict)
	}

	existing, err := txParticipantRepo.GetOpen(ctx, sessionID, playerID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if existing != nil {
		if existing.PlayerStatus != models.PlayerStatusPending {
			return nil, fmt.Errorf("%w: you are already enrolled in this session", ErrConflict)
		}
		// A pending membership is a checkout the player started but never
		// finished. Void it and its payment so the retry starts clean.
		if _, err := txParticipantRepo.VoidPending(ctx, existing.ID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("%w: you are already enrolled in this session", ErrConflict)
			}
			return nil, err
		}
		if err := txPaymentRepo.FailPendingEnrollment(ctx, existing.ID); err != nil {
			return nil, err
		}
	}

	if free {
		participant, err := txParticipantRepo.Create(ctx, repository.CreateParticipantInput{
			SessionID:     sessionID,
			PlayerID:      playerID,
			PlayerStatus:  models.PlayerStatusAttending,
			PaymentStatus: models.ParticipantPaymentPaid,
			PaymentMethod: paymentMethod,
		})
		if err != nil {
			if isUniqueViolation(err) {
				return nil, fmt.Errorf("%w: you are already enrolled in this session", ErrConflict)
			}
			return nil, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}

		sendNotification(ctx, s.notifier, session.CoachID, models.NotificationLevelInfo,
			"New Enrollment",
			fmt.Sprintf("New player enrolled your session %q", session.Title))
		sendNotification(ctx, s.notifier, playerID, models.NotificationLevelInfo,
			"Enrollment successful",
			fmt.Sprintf("You enrolled session %q", session.Title))
		return &EnrollmentResult{Participant: participant}, nil
	}

	if paymentMethod == models.PaymentMethodCash {
		// Cash settles in person; the seat is taken immediately and no
		// online refund path ever applies.
		participant, err := txParticipantRepo.Create(ctx, repository.CreateParticipantInput{
			SessionID:     sessionID,
			PlayerID:      playerID,
			PlayerStatus:  models.PlayerStatusAttending,
			PaymentStatus: models.ParticipantPaymentCash,
			PaymentMethod: models.PaymentMethodCash,
		})
		if err != nil {
			if isUniqueViolation(err) {
				return nil, fmt.Errorf("%w: you are already enrolled in this session", ErrConflict)
			}
			return nil, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}
		return &EnrollmentResult{Participant: participant}, nil
	}

	// Online path: the membership and payment intent are committed first,
	// then the checkout is created outside the transaction. The participant
	// becomes attending only via the payment-succeeded callback.
	participant, err := txParticipantRepo.Create(ctx, repository.CreateParticipantInput{
		SessionID:     sessionID,
		PlayerID:      playerID,
		PlayerStatus:  models.PlayerStatusPending,
		PaymentStatus: models.ParticipantPaymentPending,
		PaymentMethod: models.PaymentMethodOnline,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: you are already enrolled in this session", ErrConflict)
		}
		return nil, err
	}

	payment, err := txPaymentRepo.Create(ctx, repository.CreatePaymentInput{
		SessionID:     sessionID,
		ParticipantID: participant.ID,
		Type:          models.PaymentTypeEnrollment,
		SessionFee:    current.Fee,
		PlatformFee:   s.platformFee,
		Status:        models.PaymentStatusPending,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	description := ""
	if session.Description != nil {
		description = *session.Description
	}
	redirectURL, err := s.gateway.CreateCheckout(ctx, payment.TotalAmount, session.Title, description, GatewayMetadata{
		PaymentID:     payment.ID,
		ParticipantID: participant.ID,
		SessionID:     sessionID,
	})
	if err != nil {
		s.voidAbandonedCheckout(ctx, participant.ID)
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	return &EnrollmentResult{Participant: participant, RedirectURL: redirectURL}, nil
}

// voidAbandonedCheckout releases a committed pending membership whose checkout
// could not be created. Best effort: a leftover pending row is also superseded
// on the player's next enrollment attempt.
func (s *EnrollmentService) voidAbandonedCheckout(ctx context.Context, participantID int64) {
	if _, err := s.participantRepo.VoidPending(ctx, participantID); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		log.Printf("void pending membership %d after checkout failure: %v", participantID, err)
		return
	}
	if err := s.paymentRepo.FailPendingEnrollment(ctx, participantID); err != nil {
		log.Printf("fail pending payment for membership %d after checkout failure: %v", participantID, err)
	}
}
