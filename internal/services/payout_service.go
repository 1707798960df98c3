package services

import (
	"context"
	"fmt"
	"log"

	"github.com/saeid-a/CoachConnectBack/internal/models"
	"github.com/saeid-a/CoachConnectBack/internal/repository"
)

// PayoutService aggregates what a coach is owed for completed sessions. It
// never moves money itself; releasing a due payout to the coach's account
// happens out of band.
type PayoutService struct {
	sessionRepo     *repository.SessionRepository
	participantRepo *repository.ParticipantRepository
	refundRepo      *repository.RefundRepository
	payoutRepo      *repository.PayoutRepository
	notifier        notifier
}

func NewPayoutService(
	sessionRepo *repository.SessionRepository,
	participantRepo *repository.ParticipantRepository,
	refundRepo *repository.RefundRepository,
	payoutRepo *repository.PayoutRepository,
	notifier notifier,
) *PayoutService {
	return &PayoutService{
		sessionRepo:     sessionRepo,
		participantRepo: participantRepo,
		refundRepo:      refundRepo,
		payoutRepo:      payoutRepo,
		notifier:        notifier,
	}
}

// Run is one settlement scan. It creates a payout for each completed session
// that has none and no pending refund, then reconciles existing payouts
// against refund decisions that landed since the last scan. Errors on a single
// session are logged and never stop the scan.
func (s *PayoutService) Run(ctx context.Context) error {
	sessions, err := s.sessionRepo.ListByStatus(ctx, models.SessionStatusCompleted)
	if err != nil {
		return fmt.Errorf("list completed sessions: %w", err)
	}
	for i := range sessions {
		if err := s.settleSession(ctx, &sessions[i]); err != nil {
			log.Printf("payout scan for session %d: %v", sessions[i].ID, err)
		}
	}
	return s.reconcileHeld(ctx)
}

func (s *PayoutService) settleSession(ctx context.Context, session *models.Session) error {
	exists, err := s.payoutRepo.ExistsForSession(ctx, session.ID)
	if err != nil {
		return err
	}
	if exists {
		return s.holdIfRefundsPending(ctx, session.ID)
	}

	pending, err := s.refundRepo.CountPendingBySession(ctx, session.ID)
	if err != nil {
		return err
	}
	if pending > 0 {
		// The payout is deferred until every refund request resolves, so
		// the amount is computed against final participant state.
		return nil
	}

	payable, err := s.payableAmount(ctx, session)
	if err != nil {
		return err
	}

	payout, err := s.payoutRepo.CreateIfAbsent(ctx, session.ID, session.CoachID, payable)
	if err != nil {
		return err
	}
	if payout == nil {
		// A concurrent scan created it first.
		return nil
	}

	sendNotification(ctx, s.notifier, session.CoachID, models.NotificationLevelInfo,
		"Payout scheduled",
		fmt.Sprintf("Your payout of %.2f for session %q is pending", payout.TotalAmount, session.Title))
	return nil
}

// holdIfRefundsPending parks an existing pending payout while a refund request
// is open against its session.
func (s *PayoutService) holdIfRefundsPending(ctx context.Context, sessionID int64) error {
	pending, err := s.refundRepo.CountPendingBySession(ctx, sessionID)
	if err != nil {
		return err
	}
	if pending == 0 {
		return nil
	}
	payout, err := s.payoutRepo.GetBySessionID(ctx, sessionID)
	if err != nil {
		return err
	}
	if payout.Status != models.PayoutStatusPending {
		return nil
	}
	if _, err := s.payoutRepo.UpdateStatusIfCurrent(
		ctx, payout.ID, models.PayoutStatusPending, models.PayoutStatusHold,
	); err != nil {
		return fmt.Errorf("hold payout %d: %w", payout.ID, err)
	}
	return nil
}

// reconcileHeld releases held payouts whose refund requests have all been
// adjudicated, recomputing the amount since accepted refunds shrank the
// payable participant set.
func (s *PayoutService) reconcileHeld(ctx context.Context) error {
	held, err := s.payoutRepo.ListByStatus(ctx, models.PayoutStatusHold)
	if err != nil {
		return fmt.Errorf("list held payouts: %w", err)
	}
	for i := range held {
		payout := &held[i]
		pending, err := s.refundRepo.CountPendingBySession(ctx, payout.SessionID)
		if err != nil {
			log.Printf("reconcile payout %d: %v", payout.ID, err)
			continue
		}
		if pending > 0 {
			continue
		}

		session, err := s.sessionRepo.GetByID(ctx, payout.SessionID)
		if err != nil {
			log.Printf("reconcile payout %d: %v", payout.ID, err)
			continue
		}
		payable, err := s.payableAmount(ctx, session)
		if err != nil {
			log.Printf("reconcile payout %d: %v", payout.ID, err)
			continue
		}
		if _, err := s.payoutRepo.UpdateAmount(ctx, payout.ID, payable); err != nil {
			log.Printf("reconcile payout %d: %v", payout.ID, err)
			continue
		}
		if _, err := s.payoutRepo.UpdateStatusIfCurrent(
			ctx, payout.ID, models.PayoutStatusHold, models.PayoutStatusPending,
		); err != nil {
			log.Printf("reconcile payout %d: %v", payout.ID, err)
		}
	}
	return nil
}

// payableAmount is the session fee times the attending participants whose
// online payment settled. Accepted refunds flip those participants to
// refunded, so the product nets them out without subtraction.
func (s *PayoutService) payableAmount(ctx context.Context, session *models.Session) (float64, error) {
	count, err := s.participantRepo.CountPayable(ctx, session.ID)
	if err != nil {
		return 0, err
	}
	return session.Fee * float64(count), nil
}

func (s *PayoutService) ListByCoach(ctx context.Context, coachID int64) ([]models.DuePayout, error) {
	return s.payoutRepo.ListByCoach(ctx, coachID)
}
