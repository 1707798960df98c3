package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/saeid-a/CoachConnectBack/internal/models"
	"github.com/saeid-a/CoachConnectBack/internal/repository"
)

// Refund strategies, selected from the session's lifecycle state at the
// moment the refund is triggered.
const (
	refundStrategyAutoAccept    = "auto_accept"
	refundStrategyAdminApproval = "admin_approval"
)

// refundStrategyFor picks the refund policy for a session state. Before the
// session starts (or once it is cancelled outright) the player gets the money
// back without questions; from the moment it is running, a human adjudicates.
func refundStrategyFor(sessionStatus string) string {
	switch sessionStatus {
	case models.SessionStatusCreated, models.SessionStatusCancelled:
		return refundStrategyAutoAccept
	case models.SessionStatusOngoing, models.SessionStatusCompleted:
		return refundStrategyAdminApproval
	default:
		return ""
	}
}

type RefundService struct {
	db              *pgxpool.Pool
	refundRepo      *repository.RefundRepository
	paymentRepo     *repository.PaymentRepository
	participantRepo *repository.ParticipantRepository
	gateway         PaymentGateway
	notifier        notifier
}

func NewRefundService(
	db *pgxpool.Pool,
	refundRepo *repository.RefundRepository,
	paymentRepo *repository.PaymentRepository,
	participantRepo *repository.ParticipantRepository,
	gateway PaymentGateway,
	notifier notifier,
) *RefundService {
	return &RefundService{
		db:              db,
		refundRepo:      refundRepo,
		paymentRepo:     paymentRepo,
		participantRepo: participantRepo,
		gateway:         gateway,
		notifier:        notifier,
	}
}

// Resolve creates a refund request for the participant using the strategy the
// session's current state selects. Only online, settled payments are ever
// refundable; cash is collected in person and returned the same way.
func (s *RefundService) Resolve(
	ctx context.Context,
	session *models.Session,
	participant *models.SessionParticipant,
	reason string,
) error {
	if participant.PaymentMethod != models.PaymentMethodOnline {
		return fmt.Errorf("%w: cash payments are not refundable", ErrInvalidInput)
	}

	switch refundStrategyFor(session.Status) {
	case refundStrategyAutoAccept:
		return s.resolveAutoAccepted(ctx, session, participant, reason)
	case refundStrategyAdminApproval:
		return s.resolveAdminApproval(ctx, session, participant, reason)
	default:
		return fmt.Errorf("%w: session %d has no refund policy in state %q",
			ErrInvalidStateTransition, session.ID, session.Status)
	}
}

// resolveAutoAccepted writes the accepted request, the mirrored refund
// payment, and the participant flip in one transaction, then executes the
// gateway refund outside it. The committed idempotency key makes the gateway
// call safe to repeat after a crash.
func (s *RefundService) resolveAutoAccepted(
	ctx context.Context,
	session *models.Session,
	participant *models.SessionParticipant,
	reason string,
) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txRefundRepo := repository.NewRefundRepository(tx)
	txPaymentRepo := repository.NewPaymentRepository(tx)
	txParticipantRepo := repository.NewParticipantRepository(tx)

	open, err := txRefundRepo.HasOpen(ctx, session.ID, participant.ID)
	if err != nil {
		return err
	}
	if open {
		return fmt.Errorf("%w: refund already requested for this session", ErrConflict)
	}

	payment, err := txPaymentRepo.GetSucceededEnrollment(ctx, session.ID, participant.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: no settled payment for participant %d", ErrNotFound, participant.ID)
		}
		return err
	}

	idempotencyKey := uuid.NewString()
	request, err := txRefundRepo.Create(ctx, repository.CreateRefundRequestInput{
		SessionID:      session.ID,
		ParticipantID:  participant.ID,
		PaymentID:      payment.ID,
		Status:         models.RefundStatusAccepted,
		Type:           models.RefundTypeAutoAccepted,
		RefundedAmount: payment.SessionFee,
		Reason:         &reason,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: refund already requested for this session", ErrConflict)
		}
		return err
	}

	refundPayment, err := txPaymentRepo.Create(ctx, repository.CreatePaymentInput{
		SessionID:      session.ID,
		ParticipantID:  participant.ID,
		Type:           models.PaymentTypeRefund,
		SessionFee:     payment.SessionFee,
		PlatformFee:    payment.PlatformFee,
		Status:         models.PaymentStatusPending,
		IdempotencyKey: &idempotencyKey,
	})
	if err != nil {
		return err
	}

	if _, err := txParticipantRepo.UpdatePaymentStatus(ctx, participant.ID, models.ParticipantPaymentRefunded); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	s.executeRefund(ctx, request, payment, refundPayment)

	sendNotification(ctx, s.notifier, participant.PlayerID, models.NotificationLevelInfo,
		"Refund Request Accepted",
		fmt.Sprintf("Your refund request for session %q has been accepted. You will receive the refunded payment within 2-7 working days.", session.Title))
	return nil
}

func (s *RefundService) resolveAdminApproval(
	ctx context.Context,
	session *models.Session,
	participant *models.SessionParticipant,
	reason string,
) error {
	open, err := s.refundRepo.HasOpen(ctx, session.ID, participant.ID)
	if err != nil {
		return err
	}
	if open {
		return fmt.Errorf("%w: refund already requested for this session", ErrConflict)
	}

	payment, err := s.paymentRepo.GetSucceededEnrollment(ctx, session.ID, participant.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: no settled payment for participant %d", ErrNotFound, participant.ID)
		}
		return err
	}

	if _, err := s.refundRepo.Create(ctx, repository.CreateRefundRequestInput{
		SessionID:      session.ID,
		ParticipantID:  participant.ID,
		PaymentID:      payment.ID,
		Status:         models.RefundStatusPending,
		Type:           models.RefundTypeAdminApproval,
		RefundedAmount: payment.SessionFee,
		Reason:         &reason,
		IdempotencyKey: uuid.NewString(),
	}); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: refund already requested for this session", ErrConflict)
		}
		return err
	}

	sendNotification(ctx, s.notifier, participant.PlayerID, models.NotificationLevelInfo,
		"Refund Request Submitted",
		fmt.Sprintf("Your refund request for session %q awaits admin approval. Admin will contact you shortly.", session.Title))
	return nil
}

// Accept resolves a pending admin-approval request, executes the refund, and
// notifies the player. A request that is already accepted is not re-executed.
func (s *RefundService) Accept(ctx context.Context, adminID int64, requestID int64) (*models.RefundRequest, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txRefundRepo := repository.NewRefundRepository(tx)
	txPaymentRepo := repository.NewPaymentRepository(tx)
	txParticipantRepo := repository.NewParticipantRepository(tx)

	current, err := txRefundRepo.GetByIDForUpdate(ctx, requestID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: refund request %d", ErrNotFound, requestID)
		}
		return nil, err
	}
	if current.Type != models.RefundTypeAdminApproval {
		return nil, fmt.Errorf("%w: request %d is not adjudicated by admins", ErrInvalidStateTransition, requestID)
	}
	if current.Status != models.RefundStatusPending {
		return nil, fmt.Errorf("%w: request %d is already %s", ErrConflict, requestID, current.Status)
	}

	request, err := txRefundRepo.Accept(ctx, requestID, adminID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: request %d is no longer pending", ErrConflict, requestID)
		}
		return nil, err
	}

	payment, err := txPaymentRepo.GetByID(ctx, request.PaymentID)
	if err != nil {
		return nil, err
	}

	refundPayment, err := txPaymentRepo.Create(ctx, repository.CreatePaymentInput{
		SessionID:      request.SessionID,
		ParticipantID:  request.ParticipantID,
		Type:           models.PaymentTypeRefund,
		SessionFee:     payment.SessionFee,
		PlatformFee:    payment.PlatformFee,
		Status:         models.PaymentStatusPending,
		IdempotencyKey: &request.IdempotencyKey,
	})
	if err != nil {
		return nil, err
	}

	if _, err := txParticipantRepo.UpdatePaymentStatus(ctx, request.ParticipantID, models.ParticipantPaymentRefunded); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.executeRefund(ctx, request, payment, refundPayment)

	if participant, err := s.participantRepo.GetByID(ctx, request.ParticipantID); err == nil {
		sendNotification(ctx, s.notifier, participant.PlayerID, models.NotificationLevelInfo,
			"Refund Request Accepted",
			"Your refund request has been accepted. You will receive the refunded payment within 2-7 working days.")
	}
	return request, nil
}

// Reject cancels a pending request with the admin's note. No money moves.
func (s *RefundService) Reject(
	ctx context.Context,
	adminID int64,
	requestID int64,
	note string,
) (*models.RefundRequest, error) {
	request, err := s.refundRepo.Reject(ctx, requestID, adminID, note)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		if _, getErr := s.refundRepo.GetByID(ctx, requestID); getErr != nil {
			return nil, fmt.Errorf("%w: refund request %d", ErrNotFound, requestID)
		}
		return nil, fmt.Errorf("%w: request %d is no longer pending", ErrConflict, requestID)
	}

	if participant, err := s.participantRepo.GetByID(ctx, request.ParticipantID); err == nil {
		sendNotification(ctx, s.notifier, participant.PlayerID, models.NotificationLevelInfo,
			"Refund Request Rejected",
			fmt.Sprintf("Your refund request was rejected: %s", note))
	}
	return request, nil
}

func (s *RefundService) ListByCoach(
	ctx context.Context,
	coachID int64,
	limit int,
	offset int,
) ([]models.RefundRequest, error) {
	return s.refundRepo.ListByCoach(ctx, coachID, limit, offset)
}

func (s *RefundService) ListPending(ctx context.Context, limit int, offset int) ([]models.RefundRequest, error) {
	return s.refundRepo.ListPending(ctx, limit, offset)
}

// executeRefund performs the gateway call after the refund records are
// committed. A failure here leaves the mirrored refund payment pending; the
// committed idempotency key makes a later retry safe.
func (s *RefundService) executeRefund(
	ctx context.Context,
	request *models.RefundRequest,
	enrollmentPayment *models.Payment,
	refundPayment *models.Payment,
) {
	if s.gateway == nil {
		return
	}
	if enrollmentPayment.IntentID == nil {
		log.Printf("refund request %d: enrollment payment %d has no gateway intent", request.ID, enrollmentPayment.ID)
		return
	}
	err := s.gateway.Refund(ctx, request.RefundedAmount, *enrollmentPayment.IntentID, request.IdempotencyKey, GatewayMetadata{
		PaymentID:     refundPayment.ID,
		ParticipantID: request.ParticipantID,
		SessionID:     request.SessionID,
	})
	if err != nil {
		log.Printf("refund request %d: gateway refund failed, payment %d stays pending: %v",
			request.ID, refundPayment.ID, err)
	}
}
