package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/saeid-a/CoachConnectBack/internal/models"
	"github.com/saeid-a/CoachConnectBack/internal/repository"
)

var (
	testDBOnce sync.Once
	testDBPool *pgxpool.Pool
	testDBErr  error
)

type stubFlowGateway struct {
	mu           sync.Mutex
	checkouts    int
	refunds      []float64
	failCheckout bool
}

func (g *stubFlowGateway) CreateCheckout(
	_ context.Context,
	amount float64,
	title string,
	description string,
	meta GatewayMetadata,
) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checkouts++
	if g.failCheckout {
		return "", errors.New("gateway unavailable")
	}
	return "https://checkout.test/session", nil
}

func (g *stubFlowGateway) setFailCheckout(fail bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failCheckout = fail
}

func (g *stubFlowGateway) Refund(
	_ context.Context,
	amount float64,
	intentID string,
	idempotencyKey string,
	meta GatewayMetadata,
) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunds = append(g.refunds, amount)
	return nil
}

func (g *stubFlowGateway) refundCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.refunds)
}

type flowServices struct {
	gateway     *stubFlowGateway
	sessions    *SessionService
	enrollments *EnrollmentService
	cancels     *CancellationService
	refunds     *RefundService
	payments    *PaymentService
	payouts     *PayoutService

	sessionRepo     *repository.SessionRepository
	participantRepo *repository.ParticipantRepository
	paymentRepo     *repository.PaymentRepository
	refundRepo      *repository.RefundRepository
	payoutRepo      *repository.PayoutRepository
}

func newFlowServices(pool *pgxpool.Pool) *flowServices {
	gateway := &stubFlowGateway{}
	userRepo := repository.NewUserRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)
	participantRepo := repository.NewParticipantRepository(pool)
	paymentRepo := repository.NewPaymentRepository(pool)
	refundRepo := repository.NewRefundRepository(pool)
	payoutRepo := repository.NewPayoutRepository(pool)

	refunds := NewRefundService(pool, refundRepo, paymentRepo, participantRepo, gateway, nil)
	payouts := NewPayoutService(sessionRepo, participantRepo, refundRepo, payoutRepo, nil)
	return &flowServices{
		gateway:         gateway,
		sessions:        NewSessionService(pool, sessionRepo, participantRepo, userRepo, refunds, nil),
		enrollments:     NewEnrollmentService(pool, sessionRepo, participantRepo, paymentRepo, userRepo, gateway, nil, 0),
		cancels:         NewCancellationService(pool, sessionRepo, participantRepo, refunds, nil),
		refunds:         refunds,
		payments:        NewPaymentService(pool, paymentRepo, participantRepo, sessionRepo, nil),
		payouts:         payouts,
		sessionRepo:     sessionRepo,
		participantRepo: participantRepo,
		paymentRepo:     paymentRepo,
		refundRepo:      refundRepo,
		payoutRepo:      payoutRepo,
	}
}

func TestEnrollLastSeatAdmitsExactlyOne(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	svc := newFlowServices(pool)

	coachID := createFlowAccount(t, ctx, pool, models.RoleCoach, 1985)
	firstPlayer := createFlowAccount(t, ctx, pool, models.RolePlayer, 2000)
	secondPlayer := createFlowAccount(t, ctx, pool, models.RolePlayer, 2001)
	t.Cleanup(func() { cleanupFlowUsers(t, ctx, pool, coachID, firstPlayer, secondPlayer) })

	session := createFlowSession(t, ctx, svc, coachID, 0, 1)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i, playerID := range []int64{firstPlayer, secondPlayer} {
		wg.Add(1)
		go func(i int, playerID int64) {
			defer wg.Done()
			_, results[i] = svc.enrollments.Enroll(ctx, playerID, session.ID, models.PaymentMethodCash)
		}(i, playerID)
	}
	wg.Wait()

	succeeded, conflicts := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected enroll error: %v", err)
		}
	}
	if succeeded != 1 || conflicts != 1 {
		t.Fatalf("expected exactly one admission, got %d successes and %d conflicts", succeeded, conflicts)
	}

	seated, err := svc.participantRepo.CountSeated(ctx, session.ID)
	if err != nil {
		t.Fatalf("CountSeated: %v", err)
	}
	if seated != 1 {
		t.Fatalf("expected 1 seated participant, got %d", seated)
	}
}

func TestCoachCancelAutoRefundsOnlinePayments(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	svc := newFlowServices(pool)

	coachID := createFlowAccount(t, ctx, pool, models.RoleCoach, 1985)
	playerID := createFlowAccount(t, ctx, pool, models.RolePlayer, 2000)
	t.Cleanup(func() { cleanupFlowUsers(t, ctx, pool, coachID, playerID) })

	session := createFlowSession(t, ctx, svc, coachID, 40, 5)
	participantID, _ := enrollAndPay(t, ctx, svc, pool, playerID, session.ID)

	if err := svc.cancels.CancelSession(ctx, coachID, models.RoleCoach, session.ID, "injury"); err != nil {
		t.Fatalf("CancelSession: %v", err)
	}

	updated, err := svc.sessionRepo.GetByID(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if updated.Status != models.SessionStatusCancelled {
		t.Fatalf("expected cancelled session, got %q", updated.Status)
	}

	participant, err := svc.participantRepo.GetByID(ctx, participantID)
	if err != nil {
		t.Fatalf("participant GetByID: %v", err)
	}
	if participant.PlayerStatus != models.PlayerStatusCancelled {
		t.Fatalf("expected cancelled participant, got %q", participant.PlayerStatus)
	}
	if participant.PaymentStatus != models.ParticipantPaymentRefunded {
		t.Fatalf("expected refunded payment status, got %q", participant.PaymentStatus)
	}

	var requestType, requestStatus string
	if err := pool.QueryRow(ctx,
		"SELECT refund_request_type, status FROM refund_requests WHERE session_id = $1 AND participant_id = $2",
		session.ID, participantID,
	).Scan(&requestType, &requestStatus); err != nil {
		t.Fatalf("load refund request: %v", err)
	}
	if requestType != models.RefundTypeAutoAccepted || requestStatus != models.RefundStatusAccepted {
		t.Fatalf("expected accepted auto refund, got type=%q status=%q", requestType, requestStatus)
	}

	if svc.gateway.refundCount() != 1 {
		t.Fatalf("expected 1 gateway refund, got %d", svc.gateway.refundCount())
	}
}

func TestReportRefundRequiresAdminApproval(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	svc := newFlowServices(pool)

	coachID := createFlowAccount(t, ctx, pool, models.RoleCoach, 1985)
	playerID := createFlowAccount(t, ctx, pool, models.RolePlayer, 2000)
	adminID := createFlowAccount(t, ctx, pool, models.RoleAdmin, 1970)
	t.Cleanup(func() { cleanupFlowUsers(t, ctx, pool, coachID, playerID, adminID) })

	session := createFlowSession(t, ctx, svc, coachID, 30, 5)
	participantID, _ := enrollAndPay(t, ctx, svc, pool, playerID, session.ID)
	forceSessionOngoing(t, ctx, pool, session.ID)

	if err := svc.sessions.ReportSession(ctx, playerID, ReportSessionInput{
		SessionID:   session.ID,
		Description: "coach never showed up",
		AskRefund:   true,
	}); err != nil {
		t.Fatalf("ReportSession: %v", err)
	}

	var requestID int64
	var requestType, requestStatus string
	if err := pool.QueryRow(ctx,
		"SELECT id, refund_request_type, status FROM refund_requests WHERE session_id = $1 AND participant_id = $2",
		session.ID, participantID,
	).Scan(&requestID, &requestType, &requestStatus); err != nil {
		t.Fatalf("load refund request: %v", err)
	}
	if requestType != models.RefundTypeAdminApproval || requestStatus != models.RefundStatusPending {
		t.Fatalf("expected pending admin approval, got type=%q status=%q", requestType, requestStatus)
	}
	if svc.gateway.refundCount() != 0 {
		t.Fatalf("no money should move before adjudication, got %d refunds", svc.gateway.refundCount())
	}

	var refundPayments int
	if err := pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM payments WHERE session_id = $1 AND payment_type = 'refund'",
		session.ID,
	).Scan(&refundPayments); err != nil {
		t.Fatalf("count refund payments: %v", err)
	}
	if refundPayments != 0 {
		t.Fatalf("expected no refund payment before accept, got %d", refundPayments)
	}

	rejected, err := svc.refunds.Reject(ctx, adminID, requestID, "not eligible")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if rejected.Status != models.RefundStatusCancelled {
		t.Fatalf("expected cancelled request, got %q", rejected.Status)
	}
	if rejected.RejectionNote == nil || *rejected.RejectionNote != "not eligible" {
		t.Fatalf("expected rejection note to be stored, got %+v", rejected.RejectionNote)
	}
}

func TestPayoutIsIdempotentAndHoldsForPendingRefunds(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	svc := newFlowServices(pool)

	coachID := createFlowAccount(t, ctx, pool, models.RoleCoach, 1985)
	firstPlayer := createFlowAccount(t, ctx, pool, models.RolePlayer, 2000)
	secondPlayer := createFlowAccount(t, ctx, pool, models.RolePlayer, 2001)
	adminID := createFlowAccount(t, ctx, pool, models.RoleAdmin, 1970)
	t.Cleanup(func() { cleanupFlowUsers(t, ctx, pool, coachID, firstPlayer, secondPlayer, adminID) })

	session := createFlowSession(t, ctx, svc, coachID, 50, 5)
	firstParticipant, _ := enrollAndPay(t, ctx, svc, pool, firstPlayer, session.ID)
	_, _ = enrollAndPay(t, ctx, svc, pool, secondPlayer, session.ID)
	forceSessionOngoing(t, ctx, pool, session.ID)

	// One player asks for a refund before the session completes; the payout
	// for this session must wait for the decision.
	if err := svc.sessions.ReportSession(ctx, firstPlayer, ReportSessionInput{
		SessionID:   session.ID,
		Description: "unsafe venue",
		AskRefund:   true,
	}); err != nil {
		t.Fatalf("ReportSession: %v", err)
	}
	forceSessionCompleted(t, ctx, pool, session.ID)

	if err := svc.payouts.Run(ctx); err != nil {
		t.Fatalf("payout run: %v", err)
	}
	if _, err := svc.payoutRepo.GetBySessionID(ctx, session.ID); err == nil {
		t.Fatal("expected no payout while a refund request is pending")
	}

	var requestID int64
	if err := pool.QueryRow(ctx,
		"SELECT id FROM refund_requests WHERE session_id = $1 AND participant_id = $2",
		session.ID, firstParticipant,
	).Scan(&requestID); err != nil {
		t.Fatalf("load refund request: %v", err)
	}
	if _, err := svc.refunds.Accept(ctx, adminID, requestID); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	if err := svc.payouts.Run(ctx); err != nil {
		t.Fatalf("payout run after accept: %v", err)
	}
	if err := svc.payouts.Run(ctx); err != nil {
		t.Fatalf("repeated payout run: %v", err)
	}

	var payoutCount int
	if err := pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM due_payouts WHERE session_id = $1", session.ID,
	).Scan(&payoutCount); err != nil {
		t.Fatalf("count payouts: %v", err)
	}
	if payoutCount != 1 {
		t.Fatalf("expected exactly one payout, got %d", payoutCount)
	}

	payout, err := svc.payoutRepo.GetBySessionID(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetBySessionID: %v", err)
	}
	if payout.Status != models.PayoutStatusPending {
		t.Fatalf("expected pending payout, got %q", payout.Status)
	}
	// One of the two paid seats was refunded.
	if payout.TotalAmount != 50 {
		t.Fatalf("expected payable 50, got %.2f", payout.TotalAmount)
	}
}

func TestEnrollSupersedesAbandonedCheckout(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	svc := newFlowServices(pool)

	coachID := createFlowAccount(t, ctx, pool, models.RoleCoach, 1985)
	playerID := createFlowAccount(t, ctx, pool, models.RolePlayer, 2000)
	t.Cleanup(func() { cleanupFlowUsers(t, ctx, pool, coachID, playerID) })

	session := createFlowSession(t, ctx, svc, coachID, 40, 5)

	first, err := svc.enrollments.Enroll(ctx, playerID, session.ID, models.PaymentMethodOnline)
	if err != nil {
		t.Fatalf("first Enroll: %v", err)
	}

	// The player never finishes the checkout and enrolls again.
	second, err := svc.enrollments.Enroll(ctx, playerID, session.ID, models.PaymentMethodOnline)
	if err != nil {
		t.Fatalf("second Enroll: %v", err)
	}
	if second.Participant.ID == first.Participant.ID {
		t.Fatal("expected a fresh membership for the retry")
	}

	stale, err := svc.participantRepo.GetByID(ctx, first.Participant.ID)
	if err != nil {
		t.Fatalf("load stale membership: %v", err)
	}
	if stale.PlayerStatus != models.PlayerStatusCancelled || stale.PaymentStatus != models.ParticipantPaymentFailed {
		t.Fatalf("expected stale membership voided, got %s/%s", stale.PlayerStatus, stale.PaymentStatus)
	}

	var stalePaymentStatus string
	if err := pool.QueryRow(ctx,
		"SELECT status FROM payments WHERE participant_id = $1 AND payment_type = 'enrollment'",
		first.Participant.ID,
	).Scan(&stalePaymentStatus); err != nil {
		t.Fatalf("load stale payment: %v", err)
	}
	if stalePaymentStatus != models.PaymentStatusFailed {
		t.Fatalf("expected stale payment failed, got %q", stalePaymentStatus)
	}

	var paymentID int64
	if err := pool.QueryRow(ctx,
		"SELECT id FROM payments WHERE participant_id = $1 AND payment_type = 'enrollment'",
		second.Participant.ID,
	).Scan(&paymentID); err != nil {
		t.Fatalf("load retry payment: %v", err)
	}
	if err := svc.payments.MarkPaymentSucceeded(ctx, paymentID, "cs_retry", "pi_retry"); err != nil {
		t.Fatalf("MarkPaymentSucceeded: %v", err)
	}

	seated, err := svc.participantRepo.CountSeated(ctx, session.ID)
	if err != nil {
		t.Fatalf("CountSeated: %v", err)
	}
	if seated != 1 {
		t.Fatalf("expected 1 seated participant after retry, got %d", seated)
	}
}

func TestEnrollFailedCheckoutReleasesMembership(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	svc := newFlowServices(pool)

	coachID := createFlowAccount(t, ctx, pool, models.RoleCoach, 1985)
	playerID := createFlowAccount(t, ctx, pool, models.RolePlayer, 2000)
	t.Cleanup(func() { cleanupFlowUsers(t, ctx, pool, coachID, playerID) })

	session := createFlowSession(t, ctx, svc, coachID, 40, 5)

	svc.gateway.setFailCheckout(true)
	if _, err := svc.enrollments.Enroll(ctx, playerID, session.ID, models.PaymentMethodOnline); !errors.Is(err, ErrGateway) {
		t.Fatalf("expected ErrGateway, got %v", err)
	}

	var playerStatus, paymentStatus string
	if err := pool.QueryRow(ctx,
		"SELECT player_status, payment_status FROM session_participants WHERE session_id = $1 AND player_id = $2",
		session.ID, playerID,
	).Scan(&playerStatus, &paymentStatus); err != nil {
		t.Fatalf("load membership: %v", err)
	}
	if playerStatus != models.PlayerStatusCancelled || paymentStatus != models.ParticipantPaymentFailed {
		t.Fatalf("expected voided membership, got %s/%s", playerStatus, paymentStatus)
	}

	svc.gateway.setFailCheckout(false)
	result, err := svc.enrollments.Enroll(ctx, playerID, session.ID, models.PaymentMethodOnline)
	if err != nil {
		t.Fatalf("Enroll after gateway recovery: %v", err)
	}
	if result.RedirectURL == "" {
		t.Fatal("expected a checkout redirect after recovery")
	}
}

func TestEnrollOnlineRequiresConfiguredGateway(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	svc := newFlowServices(pool)

	coachID := createFlowAccount(t, ctx, pool, models.RoleCoach, 1985)
	playerID := createFlowAccount(t, ctx, pool, models.RolePlayer, 2000)
	t.Cleanup(func() { cleanupFlowUsers(t, ctx, pool, coachID, playerID) })

	session := createFlowSession(t, ctx, svc, coachID, 40, 5)

	enrollments := NewEnrollmentService(
		pool,
		repository.NewSessionRepository(pool),
		repository.NewParticipantRepository(pool),
		repository.NewPaymentRepository(pool),
		repository.NewUserRepository(pool),
		nil, nil, 0,
	)
	if _, err := enrollments.Enroll(ctx, playerID, session.ID, models.PaymentMethodOnline); !errors.Is(err, ErrGateway) {
		t.Fatalf("expected ErrGateway without a configured gateway, got %v", err)
	}

	var memberships int
	if err := pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM session_participants WHERE session_id = $1", session.ID,
	).Scan(&memberships); err != nil {
		t.Fatalf("count memberships: %v", err)
	}
	if memberships != 0 {
		t.Fatalf("expected no membership rows, got %d", memberships)
	}
}

func TestRefundSettledRejectsEnrollmentPayment(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	svc := newFlowServices(pool)

	coachID := createFlowAccount(t, ctx, pool, models.RoleCoach, 1985)
	playerID := createFlowAccount(t, ctx, pool, models.RolePlayer, 2000)
	t.Cleanup(func() { cleanupFlowUsers(t, ctx, pool, coachID, playerID) })

	session := createFlowSession(t, ctx, svc, coachID, 40, 5)
	result, err := svc.enrollments.Enroll(ctx, playerID, session.ID, models.PaymentMethodOnline)
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}

	var paymentID int64
	if err := pool.QueryRow(ctx,
		"SELECT id FROM payments WHERE participant_id = $1 AND payment_type = 'enrollment'",
		result.Participant.ID,
	).Scan(&paymentID); err != nil {
		t.Fatalf("load payment: %v", err)
	}

	if err := svc.payments.MarkRefundSettled(ctx, paymentID); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition for an enrollment payment, got %v", err)
	}

	var status string
	if err := pool.QueryRow(ctx, "SELECT status FROM payments WHERE id = $1", paymentID).Scan(&status); err != nil {
		t.Fatalf("reload payment: %v", err)
	}
	if status != models.PaymentStatusPending {
		t.Fatalf("enrollment payment must stay pending, got %q", status)
	}
}

func TestPlayerCancelRetriesAfterRefundFailure(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	svc := newFlowServices(pool)

	coachID := createFlowAccount(t, ctx, pool, models.RoleCoach, 1985)
	playerID := createFlowAccount(t, ctx, pool, models.RolePlayer, 2000)
	t.Cleanup(func() { cleanupFlowUsers(t, ctx, pool, coachID, playerID) })

	session := createFlowSession(t, ctx, svc, coachID, 40, 5)
	participantID, paymentID := enrollAndPay(t, ctx, svc, pool, playerID, session.ID)

	// Knock the settled payment out from under the resolver so the refund
	// cannot be created.
	if _, err := pool.Exec(ctx, "UPDATE payments SET status = 'failed' WHERE id = $1", paymentID); err != nil {
		t.Fatalf("sabotage payment: %v", err)
	}
	if err := svc.cancels.CancelSession(ctx, playerID, models.RolePlayer, session.ID, "change of plans"); err == nil {
		t.Fatal("expected cancellation to fail while the refund cannot resolve")
	}

	participant, err := svc.participantRepo.GetByID(ctx, participantID)
	if err != nil {
		t.Fatalf("load membership: %v", err)
	}
	if participant.PlayerStatus != models.PlayerStatusAttending {
		t.Fatalf("membership must stay attending for a retry, got %q", participant.PlayerStatus)
	}

	if _, err := pool.Exec(ctx, "UPDATE payments SET status = 'succeeded' WHERE id = $1", paymentID); err != nil {
		t.Fatalf("restore payment: %v", err)
	}
	if err := svc.cancels.CancelSession(ctx, playerID, models.RolePlayer, session.ID, "change of plans"); err != nil {
		t.Fatalf("retry cancellation: %v", err)
	}

	participant, err = svc.participantRepo.GetByID(ctx, participantID)
	if err != nil {
		t.Fatalf("reload membership: %v", err)
	}
	if participant.PlayerStatus != models.PlayerStatusCancelled {
		t.Fatalf("expected cancelled membership, got %q", participant.PlayerStatus)
	}
	if participant.PaymentStatus != models.ParticipantPaymentRefunded {
		t.Fatalf("expected refunded membership, got %q", participant.PaymentStatus)
	}
	if svc.gateway.refundCount() != 1 {
		t.Fatalf("expected 1 gateway refund, got %d", svc.gateway.refundCount())
	}
}

func integrationTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	testDBOnce.Do(func() {
		_ = godotenv.Load(".env")
		_ = godotenv.Load(filepath.Join("..", "..", ".env"))

		dbURL := os.Getenv("DB_URL")
		if dbURL == "" {
			testDBErr = fmt.Errorf("DB_URL is not set")
			return
		}

		cfg, err := pgxpool.ParseConfig(dbURL)
		if err != nil {
			testDBErr = err
			return
		}

		testDBPool, testDBErr = pgxpool.NewWithConfig(context.Background(), cfg)
		if testDBErr != nil {
			return
		}
		testDBErr = testDBPool.Ping(context.Background())
	})

	if testDBErr != nil {
		t.Skipf("skipping integration test: %v", testDBErr)
	}
	return testDBPool
}

func createFlowAccount(t *testing.T, ctx context.Context, pool *pgxpool.Pool, role string, birthYear int) int64 {
	t.Helper()

	dob := time.Date(birthYear, 1, 1, 0, 0, 0, 0, time.UTC)
	userRepo := repository.NewUserRepository(pool)
	user := &models.User{
		Email:        fmt.Sprintf("flow-test-%s-%d@example.com", role, time.Now().UnixNano()),
		PasswordHash: "test-hash",
		Role:         role,
		DateOfBirth:  &dob,
	}
	if err := userRepo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser(%s): %v", role, err)
	}
	return user.ID
}

func createFlowSession(
	t *testing.T,
	ctx context.Context,
	svc *flowServices,
	coachID int64,
	fee float64,
	capacity int,
) *models.Session {
	t.Helper()

	start := time.Now().UTC().Add(48 * time.Hour)
	session, err := svc.sessions.CreateSession(ctx, coachID, CreateSessionInput{
		Title:           "Flow test session",
		Fee:             fee,
		MaxParticipants: capacity,
		StartedAt:       start,
		CompletedAt:     start.Add(2 * time.Hour),
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return session
}

// enrollAndPay enrolls the player online and settles the payment the way the
// gateway callback would.
func enrollAndPay(
	t *testing.T,
	ctx context.Context,
	svc *flowServices,
	pool *pgxpool.Pool,
	playerID int64,
	sessionID int64,
) (participantID int64, paymentID int64) {
	t.Helper()

	result, err := svc.enrollments.Enroll(ctx, playerID, sessionID, models.PaymentMethodOnline)
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if result.RedirectURL == "" {
		t.Fatal("expected a checkout redirect for an online enrollment")
	}
	participantID = result.Participant.ID

	if err := pool.QueryRow(ctx,
		"SELECT id FROM payments WHERE participant_id = $1 AND payment_type = 'enrollment'",
		participantID,
	).Scan(&paymentID); err != nil {
		t.Fatalf("load enrollment payment: %v", err)
	}

	if err := svc.payments.MarkPaymentSucceeded(ctx, paymentID,
		fmt.Sprintf("cs_test_%d", paymentID), fmt.Sprintf("pi_test_%d", paymentID)); err != nil {
		t.Fatalf("MarkPaymentSucceeded: %v", err)
	}
	return participantID, paymentID
}

func forceSessionOngoing(t *testing.T, ctx context.Context, pool *pgxpool.Pool, sessionID int64) {
	t.Helper()
	if _, err := pool.Exec(ctx, `
		UPDATE sessions
		SET status = 'ongoing', started_at = NOW() - INTERVAL '1 hour',
			report_till = NOW() + INTERVAL '24 hours', report_valid = TRUE
		WHERE id = $1
	`, sessionID); err != nil {
		t.Fatalf("force ongoing: %v", err)
	}
}

func forceSessionCompleted(t *testing.T, ctx context.Context, pool *pgxpool.Pool, sessionID int64) {
	t.Helper()
	if _, err := pool.Exec(ctx, `
		UPDATE sessions
		SET status = 'completed', completed_at = NOW() - INTERVAL '1 minute', report_valid = FALSE
		WHERE id = $1
	`, sessionID); err != nil {
		t.Fatalf("force completed: %v", err)
	}
}

func cleanupFlowUsers(t *testing.T, ctx context.Context, pool *pgxpool.Pool, userIDs ...int64) {
	t.Helper()

	if len(userIDs) == 0 {
		return
	}

	if _, err := pool.Exec(ctx, `
		DELETE FROM session_reports WHERE session_id IN (SELECT id FROM sessions WHERE coach_id = ANY($1))
	`, userIDs); err != nil {
		t.Fatalf("cleanup reports: %v", err)
	}
	if _, err := pool.Exec(ctx, `
		DELETE FROM refund_requests WHERE session_id IN (SELECT id FROM sessions WHERE coach_id = ANY($1))
	`, userIDs); err != nil {
		t.Fatalf("cleanup refund requests: %v", err)
	}
	if _, err := pool.Exec(ctx, `
		DELETE FROM due_payouts WHERE session_id IN (SELECT id FROM sessions WHERE coach_id = ANY($1))
	`, userIDs); err != nil {
		t.Fatalf("cleanup payouts: %v", err)
	}
	if _, err := pool.Exec(ctx, `
		DELETE FROM payments WHERE session_id IN (SELECT id FROM sessions WHERE coach_id = ANY($1))
	`, userIDs); err != nil {
		t.Fatalf("cleanup payments: %v", err)
	}
	if _, err := pool.Exec(ctx, `
		DELETE FROM session_participants
		WHERE player_id = ANY($1)
		   OR session_id IN (SELECT id FROM sessions WHERE coach_id = ANY($1))
	`, userIDs); err != nil {
		t.Fatalf("cleanup participants: %v", err)
	}
	if _, err := pool.Exec(ctx, "DELETE FROM sessions WHERE coach_id = ANY($1)", userIDs); err != nil {
		t.Fatalf("cleanup sessions: %v", err)
	}
	if _, err := pool.Exec(ctx, "DELETE FROM notifications WHERE user_id = ANY($1)", userIDs); err != nil {
		t.Fatalf("cleanup notifications: %v", err)
	}
	if _, err := pool.Exec(ctx, "DELETE FROM users WHERE id = ANY($1)", userIDs); err != nil {
		t.Fatalf("cleanup users: %v", err)
	}
}
