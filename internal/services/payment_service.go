package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/saeid-a/CoachConnectBack/internal/models"
	"github.com/saeid-a/CoachConnectBack/internal/repository"
)

// PaymentService exposes the mutation points gateway callbacks drive. The
// webhook handler parses the event and calls one of the Mark methods; each is
// idempotent against redelivered events through its status guard.
type PaymentService struct {
	db              *pgxpool.Pool
	paymentRepo     *repository.PaymentRepository
	participantRepo *repository.ParticipantRepository
	sessionRepo     *repository.SessionRepository
	notifier        notifier
}

func NewPaymentService(
	db *pgxpool.Pool,
	paymentRepo *repository.PaymentRepository,
	participantRepo *repository.ParticipantRepository,
	sessionRepo *repository.SessionRepository,
	notifier notifier,
) *PaymentService {
	return &PaymentService{
		db:              db,
		paymentRepo:     paymentRepo,
		participantRepo: participantRepo,
		sessionRepo:     sessionRepo,
		notifier:        notifier,
	}
}

// MarkPaymentSucceeded settles a pending enrollment payment and seats the
// participant. A redelivered event finds the payment already settled and
// returns without side effects.
func (s *PaymentService) MarkPaymentSucceeded(
	ctx context.Context,
	paymentID int64,
	checkoutID string,
	intentID string,
) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txPaymentRepo := repository.NewPaymentRepository(tx)
	txParticipantRepo := repository.NewParticipantRepository(tx)

	payment, err := txPaymentRepo.MarkSucceeded(ctx, paymentID, checkoutID, intentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s.skipSettledEvent(ctx, paymentID, models.PaymentStatusSucceeded)
		}
		return err
	}
	if payment.Type != models.PaymentTypeEnrollment {
		return fmt.Errorf("%w: payment %d is not an enrollment payment", ErrInvalidStateTransition, paymentID)
	}

	participant, err := txParticipantRepo.UpdateStatuses(
		ctx, payment.ParticipantID, models.PlayerStatusAttending, models.ParticipantPaymentPaid,
	)
	if err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	session, err := s.sessionRepo.GetByID(ctx, payment.SessionID)
	if err != nil {
		log.Printf("load session %d after payment %d settled: %v", payment.SessionID, paymentID, err)
		return nil
	}
	sendNotification(ctx, s.notifier, participant.PlayerID, models.NotificationLevelInfo,
		"Enrollment successful",
		fmt.Sprintf("Your payment settled and you are enrolled in session %q", session.Title))
	sendNotification(ctx, s.notifier, session.CoachID, models.NotificationLevelInfo,
		"New Enrollment",
		fmt.Sprintf("New player enrolled your session %q", session.Title))
	return nil
}

// MarkPaymentFailed voids a pending enrollment payment and releases the
// pending membership.
func (s *PaymentService) MarkPaymentFailed(ctx context.Context, paymentID int64) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txPaymentRepo := repository.NewPaymentRepository(tx)
	txParticipantRepo := repository.NewParticipantRepository(tx)

	payment, err := txPaymentRepo.UpdateStatusIfCurrent(
		ctx, paymentID, models.PaymentStatusPending, models.PaymentStatusFailed,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s.skipSettledEvent(ctx, paymentID, models.PaymentStatusFailed)
		}
		return err
	}

	participant, err := txParticipantRepo.UpdateStatuses(
		ctx, payment.ParticipantID, models.PlayerStatusCancelled, models.ParticipantPaymentFailed,
	)
	if err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	sendNotification(ctx, s.notifier, participant.PlayerID, models.NotificationLevelWarning,
		"Payment failed",
		"Your enrollment payment did not go through. You can try enrolling again.")
	return nil
}

// MarkRefundSettled records that the gateway finished paying a refund out. The
// mirror refund payment moves from pending to refunded.
func (s *PaymentService) MarkRefundSettled(ctx context.Context, paymentID int64) error {
	payment, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: payment %d", ErrNotFound, paymentID)
		}
		return err
	}
	if payment.Type != models.PaymentTypeRefund {
		return fmt.Errorf("%w: payment %d is not a refund payment", ErrInvalidStateTransition, paymentID)
	}

	payment, err = s.paymentRepo.UpdateStatusIfCurrent(
		ctx, paymentID, models.PaymentStatusPending, models.PaymentStatusRefunded,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s.skipSettledEvent(ctx, paymentID, models.PaymentStatusRefunded)
		}
		return err
	}

	participant, err := s.participantRepo.GetByID(ctx, payment.ParticipantID)
	if err != nil {
		log.Printf("load participant %d after refund %d settled: %v", payment.ParticipantID, paymentID, err)
		return nil
	}
	sendNotification(ctx, s.notifier, participant.PlayerID, models.NotificationLevelInfo,
		"Refund settled",
		fmt.Sprintf("Your refund of %.2f was paid out", payment.TotalAmount))
	return nil
}

// skipSettledEvent distinguishes a redelivered event for an already-settled
// payment from a reference to a payment that does not exist.
func (s *PaymentService) skipSettledEvent(ctx context.Context, paymentID int64, target string) error {
	payment, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: payment %d", ErrNotFound, paymentID)
		}
		return err
	}
	if payment.Status == target {
		log.Printf("payment %d already %s, skipping duplicate event", paymentID, target)
		return nil
	}
	return fmt.Errorf(
		"%w: payment %d is %s, cannot move to %s",
		ErrInvalidStateTransition, paymentID, payment.Status, target,
	)
}
