package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/saeid-a/CoachConnectBack/internal/models"
	"github.com/saeid-a/CoachConnectBack/internal/repository"
)

const coachUpcomingWindow = 3 * 24 * time.Hour

type sessionUserReader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

type refundResolver interface {
	Resolve(ctx context.Context, session *models.Session, participant *models.SessionParticipant, reason string) error
}

type SessionService struct {
	db              *pgxpool.Pool
	sessionRepo     *repository.SessionRepository
	participantRepo *repository.ParticipantRepository
	userRepo        sessionUserReader
	refunds         refundResolver
	notifier        notifier
}

func NewSessionService(
	db *pgxpool.Pool,
	sessionRepo *repository.SessionRepository,
	participantRepo *repository.ParticipantRepository,
	userRepo sessionUserReader,
	refunds refundResolver,
	notifier notifier,
) *SessionService {
	return &SessionService{
		db:              db,
		sessionRepo:     sessionRepo,
		participantRepo: participantRepo,
		userRepo:        userRepo,
		refunds:         refunds,
		notifier:        notifier,
	}
}

type CreateSessionInput struct {
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

func (s *SessionService) CreateSession(
	ctx context.Context,
	coachID int64,
	input CreateSessionInput,
) (*models.Session, error) {
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if input.Fee < 0 {
		return nil, fmt.Errorf("%w: fee must not be negative", ErrInvalidInput)
	}
	if input.MaxParticipants <= 0 {
		return nil, fmt.Errorf("%w: max participants must be positive", ErrInvalidInput)
	}
	if input.MinAge < 0 {
		return nil, fmt.Errorf("%w: minimum age must not be negative", ErrInvalidInput)
	}
	if !input.CompletedAt.After(input.StartedAt) {
		return nil, fmt.Errorf("%w: completion must be after start", ErrInvalidInput)
	}
	if input.StartedAt.Before(time.Now().UTC()) {
		return nil, fmt.Errorf("%w: start must be in the future", ErrInvalidInput)
	}

	coach, err := s.userRepo.GetByID(ctx, coachID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: coach %d", ErrNotFound, coachID)
		}
		return nil, err
	}
	if coach.Role != models.RoleCoach {
		return nil, fmt.Errorf("%w: only coaches create sessions", ErrForbidden)
	}
	if coach.IsBlocked {
		return nil, fmt.Errorf("%w: account is blocked", ErrForbidden)
	}

	session, err := s.sessionRepo.Create(ctx, repository.CreateSessionInput{
		CoachID:         coachID,
		Title:           input.Title,
		Description:     input.Description,
		Address:         input.Address,
		AdditionalNotes: input.AdditionalNotes,
		Fee:             input.Fee,
		MaxParticipants: input.MaxParticipants,
		MinAge:          input.MinAge,
		StartedAt:       input.StartedAt.UTC(),
		CompletedAt:     input.CompletedAt.UTC(),
	})
	if err != nil {
		return nil, err
	}

	sendNotification(ctx, s.notifier, coachID, models.NotificationLevelInfo,
		"Your session is live now!",
		fmt.Sprintf("Session titled %q has been created", session.Title))
	return session, nil
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

func (s *SessionService) UpdateSession(
	ctx context.Context,
	coachID int64,
	sessionID int64,
	input UpdateSessionInput,
) (*models.Session, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: session %d", ErrNotFound, sessionID)
		}
		return nil, err
	}
	if session.CoachID != coachID {
		return nil, fmt.Errorf("%w: session belongs to another coach", ErrForbidden)
	}
	if session.Status != models.SessionStatusCreated {
		return nil, fmt.Errorf("%w: session already %s", ErrInvalidStateTransition, session.Status)
	}
	if input.Fee != nil && *input.Fee < 0 {
		return nil, fmt.Errorf("%w: fee must not be negative", ErrInvalidInput)
	}
	if input.MaxParticipants != nil && *input.MaxParticipants <= 0 {
		return nil, fmt.Errorf("%w: max participants must be positive", ErrInvalidInput)
	}

	return s.sessionRepo.Update(ctx, sessionID, repository.UpdateSessionInput{
		Title:           input.Title,
		Description:     input.Description,
		Address:         input.Address,
		AdditionalNotes: input.AdditionalNotes,
		Fee:             input.Fee,
		MaxParticipants: input.MaxParticipants,
		MinAge:          input.MinAge,
	})
}

func (s *SessionService) GetSession(ctx context.Context, sessionID int64) (*models.Session, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: session %d", ErrNotFound, sessionID)
		}
		return nil, err
	}
	return session, nil
}

// ListJoinable returns open sessions the player can still enroll in, with
// remaining seat counts.
func (s *SessionService) ListJoinable(
	ctx context.Context,
	playerID int64,
	limit int,
	offset int,
) ([]models.SessionListing, error) {
	return s.sessionRepo.ListJoinable(ctx, playerID, limit, offset)
}

func (s *SessionService) ListCoachUpcoming(ctx context.Context, coachID int64) ([]models.Session, error) {
	now := time.Now().UTC()
	return s.sessionRepo.ListCoachUpcoming(ctx, coachID, now, now.Add(coachUpcomingWindow))
}

// ListPlayerSessions buckets a player's memberships by session lifecycle.
func (s *SessionService) ListPlayerSessions(
	ctx context.Context,
	playerID int64,
	bucket string,
) ([]models.Session, error) {
	switch bucket {
	case models.SessionStatusCreated:
		return s.sessionRepo.ListPlayerByStatuses(ctx, playerID, models.PlayerStatusAttending,
			[]string{models.SessionStatusCreated})
	case models.SessionStatusOngoing:
		return s.sessionRepo.ListPlayerByStatuses(ctx, playerID, models.PlayerStatusAttending,
			[]string{models.SessionStatusOngoing})
	case models.SessionStatusCompleted:
		return s.sessionRepo.ListPlayerByStatuses(ctx, playerID, models.PlayerStatusAttending,
			[]string{models.SessionStatusOngoing, models.SessionStatusCompleted})
	case models.SessionStatusCancelled:
		return s.sessionRepo.ListPlayerByStatuses(ctx, playerID, models.PlayerStatusCancelled,
			[]string{models.SessionStatusCreated, models.SessionStatusOngoing,
				models.SessionStatusCompleted, models.SessionStatusCancelled})
	default:
		return nil, fmt.Errorf("%w: unknown session bucket %q", ErrInvalidInput, bucket)
	}
}

type ReportSessionInput struct {
	SessionID   int64
	Description string
	AskRefund   bool
}

// ReportSession lets an attending player report a running session, optionally
// asking for their money back. Report-path refunds always go through admin
// approval because the session has already started.
func (s *SessionService) ReportSession(ctx context.Context, playerID int64, input ReportSessionInput) error {
	input.Description = strings.TrimSpace(input.Description)
	if input.Description == "" {
		return fmt.Errorf("%w: description is required", ErrInvalidInput)
	}

	session, err := s.sessionRepo.GetByID(ctx, input.SessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: session %d", ErrNotFound, input.SessionID)
		}
		return err
	}
	if session.Status != models.SessionStatusOngoing && session.Status != models.SessionStatusCompleted {
		return fmt.Errorf("%w: session is not reportable in state %s", ErrInvalidStateTransition, session.Status)
	}
	if !session.ReportValid || session.ReportTill == nil || session.ReportTill.Before(time.Now().UTC()) {
		return fmt.Errorf("%w: report window is closed", ErrInvalidStateTransition)
	}

	participant, err := s.participantRepo.GetAttending(ctx, session.ID, playerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: you are not a participant of this session", ErrForbidden)
		}
		return err
	}

	if input.AskRefund && participant.PaymentStatus == models.ParticipantPaymentCash {
		return fmt.Errorf("%w: cash payments are not refundable", ErrInvalidInput)
	}

	if _, err := s.sessionRepo.CreateReport(ctx, session.ID, participant.ID, input.Description, input.AskRefund); err != nil {
		return err
	}

	if input.AskRefund && session.Fee > 0 && participant.PaymentStatus == models.ParticipantPaymentPaid {
		return s.refunds.Resolve(ctx, session, participant, input.Description)
	}
	return nil
}
