package routes

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/saeid-a/CoachConnectBack/internal/config"
	"github.com/saeid-a/CoachConnectBack/internal/handlers"
	"github.com/saeid-a/CoachConnectBack/internal/middleware"
	"github.com/saeid-a/CoachConnectBack/internal/repository"
	"github.com/saeid-a/CoachConnectBack/internal/services"
)

// Services bundles the wired domain services so the scheduler entrypoint can
// share them with the HTTP layer.
type Services struct {
	Sessions      *services.SessionService
	Enrollments   *services.EnrollmentService
	Cancellations *services.CancellationService
	Refunds       *services.RefundService
	Payments      *services.PaymentService
	Payouts       *services.PayoutService
	Lifecycle     *services.LifecycleService
	Notifications *services.NotificationService
}

func BuildServices(cfg *config.Config, db *pgxpool.Pool) *Services {
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	participantRepo := repository.NewParticipantRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	refundRepo := repository.NewRefundRepository(db)
	payoutRepo := repository.NewPayoutRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	var push services.PushSender
	if cfg.FirebaseCredentialsFile != "" {
		sender, err := services.NewFCMPushSender(context.Background(), cfg.FirebaseCredentialsFile)
		if err != nil {
			log.Printf("push sender disabled: %v", err)
		} else {
			push = sender
		}
	}
	notificationService := services.NewNotificationService(notificationRepo, userRepo, push)

	var gateway services.PaymentGateway
	if cfg.StripeSecretKey != "" {
		gateway = services.NewStripeGateway(cfg.StripeSecretKey, cfg.CheckoutSuccessURL)
	}

	refundService := services.NewRefundService(
		db, refundRepo, paymentRepo, participantRepo, gateway, notificationService,
	)
	sessionService := services.NewSessionService(
		db, sessionRepo, participantRepo, userRepo, refundService, notificationService,
	)
	enrollmentService := services.NewEnrollmentService(
		db, sessionRepo, participantRepo, paymentRepo, userRepo,
		gateway, notificationService, cfg.PlatformFee,
	)
	cancellationService := services.NewCancellationService(
		db, sessionRepo, participantRepo, refundService, notificationService,
	)
	paymentService := services.NewPaymentService(
		db, paymentRepo, participantRepo, sessionRepo, notificationService,
	)
	payoutService := services.NewPayoutService(
		sessionRepo, participantRepo, refundRepo, payoutRepo, notificationService,
	)
	lifecycleService := services.NewLifecycleService(
		sessionRepo, payoutService, notificationService, cfg.ReportWindow,
	)

	return &Services{
		Sessions:      sessionService,
		Enrollments:   enrollmentService,
		Cancellations: cancellationService,
		Refunds:       refundService,
		Payments:      paymentService,
		Payouts:       payoutService,
		Lifecycle:     lifecycleService,
		Notifications: notificationService,
	}
}

func RegisterRoutes(app *fiber.App, cfg *config.Config, db *pgxpool.Pool, svc *Services) {
	userRepo := repository.NewUserRepository(db)

	authHandler := handlers.NewAuthHandler(userRepo, cfg.JWTSecret)
	sessionHandler := handlers.NewSessionHandler(svc.Sessions, svc.Enrollments, svc.Cancellations)
	refundHandler := handlers.NewRefundHandler(svc.Refunds)
	payoutHandler := handlers.NewPayoutHandler(svc.Payouts)
	notificationHandler := handlers.NewNotificationHandler(svc.Notifications, userRepo)
	paymentHandler := handlers.NewPaymentHandler(svc.Payments, cfg.StripeWebhookSecret)

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", middleware.AuthRequired(cfg.JWTSecret), authHandler.Me)

	// Gateway callbacks authenticate by webhook signature, not bearer token.
	api.Post("/webhooks/stripe", paymentHandler.Webhook)

	authProtected := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	sessions := authProtected.Group("/sessions")
	sessions.Post("", sessionHandler.CreateSession)
	sessions.Get("", sessionHandler.ListSessions)
	sessions.Get("/:id", sessionHandler.GetSession)
	sessions.Put("/:id", sessionHandler.UpdateSession)
	sessions.Post("/:id/enroll", sessionHandler.Enroll)
	sessions.Post("/:id/cancel", sessionHandler.CancelSession)
	sessions.Post("/:id/report", sessionHandler.ReportSession)

	refunds := authProtected.Group("/refunds")
	refunds.Get("", refundHandler.ListRefunds)
	refunds.Post("/:id/accept", refundHandler.AcceptRefund)
	refunds.Post("/:id/reject", refundHandler.RejectRefund)

	payouts := authProtected.Group("/payouts")
	payouts.Get("", payoutHandler.ListMyPayouts)

	notifications := authProtected.Group("/notifications")
	notifications.Get("", notificationHandler.ListNotifications)
	notifications.Post("/device", notificationHandler.RegisterDevice)
}
