package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/saeid-a/CoachConnectBack/internal/models"
	"github.com/saeid-a/CoachConnectBack/internal/repository"
)

// LifecycleService advances the session state machine on clock ticks and hands
// newly completed sessions to payout settlement. Cancellation is the only
// transition it does not own.
type LifecycleService struct {
	sessionRepo  *repository.SessionRepository
	payouts      *PayoutService
	notifier     notifier
	reportWindow time.Duration
}

func NewLifecycleService(
	sessionRepo *repository.SessionRepository,
	payouts *PayoutService,
	notifier notifier,
	reportWindow time.Duration,
) *LifecycleService {
	return &LifecycleService{
		sessionRepo:  sessionRepo,
		payouts:      payouts,
		notifier:     notifier,
		reportWindow: reportWindow,
	}
}

// Tick runs one pass of the time-driven transitions: sessions whose start time
// passed become ongoing with an open report window, sessions whose completion
// time passed become completed, then the payout scan runs over the completed
// set.
func (s *LifecycleService) Tick(ctx context.Context, now time.Time) error {
	started, err := s.sessionRepo.StartDueSessions(ctx, now, s.reportWindow)
	if err != nil {
		return fmt.Errorf("start due sessions: %w", err)
	}
	if started > 0 {
		log.Printf("lifecycle: %d sessions started", started)
	}

	completed, err := s.sessionRepo.CompleteDueSessions(ctx, now)
	if err != nil {
		return fmt.Errorf("complete due sessions: %w", err)
	}
	for i := range completed {
		session := &completed[i]
		sendNotification(ctx, s.notifier, session.CoachID, models.NotificationLevelInfo,
			"Session completed",
			fmt.Sprintf("Your session %q has completed", session.Title))
	}

	return s.payouts.Run(ctx)
}
