package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/CoachConnectBack/internal/models"
	"github.com/saeid-a/CoachConnectBack/internal/services"
)

type sessionOperations interface {
	CreateSession(ctx context.Context, coachID int64, input services.CreateSessionInput) (*models.Session, error)
	UpdateSession(ctx context.Context, coachID int64, sessionID int64, input services.UpdateSessionInput) (*models.Session, error)
	GetSession(ctx context.Context, sessionID int64) (*models.Session, error)
	ListJoinable(ctx context.Context, playerID int64, limit int, offset int) ([]models.SessionListing, error)
	ListCoachUpcoming(ctx context.Context, coachID int64) ([]models.Session, error)
	ListPlayerSessions(ctx context.Context, playerID int64, bucket string) ([]models.Session, error)
	ReportSession(ctx context.Context, playerID int64, input services.ReportSessionInput) error
}

type enrollmentOperations interface {
	Enroll(ctx context.Context, playerID int64, sessionID int64, paymentMethod string) (*services.EnrollmentResult, error)
}

type cancelOperations interface {
	CancelSession(ctx context.Context, actorID int64, actorRole string, sessionID int64, reason string) error
}

type SessionHandler struct {
	sessions    sessionOperations
	enrollments enrollmentOperations
	cancels     cancelOperations
}

func NewSessionHandler(
	sessions sessionOperations,
	enrollments enrollmentOperations,
	cancels cancelOperations,
) *SessionHandler {
	return &SessionHandler{
		sessions:    sessions,
		enrollments: enrollments,
		cancels:     cancels,
	}
}

type createSessionRequest struct {
	Title           string  `json:"title"`
	Description     *string `json:"description"`
	Address         *string `json:"address"`
	AdditionalNotes *string `json:"additional_notes"`
	Fee             float64 `json:"fee"`
	MaxParticipants int     `json:"max_participants"`
	MinAge          int     `json:"min_age"`
	StartedAt       string  `json:"started_at"`
	CompletedAt     string  `json:"completed_at"`
}

type updateSessionRequest struct {
	Title           *string  `json:"title"`
	Description     *string  `json:"description"`
	Address         *string  `json:"address"`
	AdditionalNotes *string  `json:"additional_notes"`
	Fee             *float64 `json:"fee"`
	MaxParticipants *int     `json:"max_participants"`
	MinAge          *int     `json:"min_age"`
}

type enrollRequest struct {
	PaymentMethod string `json:"payment_method"`
}

type cancelSessionRequest struct {
	Reason string `json:"reason"`
}

type reportSessionRequest struct {
	Description string `json:"description"`
	AskRefund   bool   `json:"ask_refund"`
}

func (h *SessionHandler) CreateSession(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || role != models.RoleCoach {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	coachID, err := parseAuthUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req createSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	startedAt, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartedAt))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"error": "started_at must be a valid RFC3339 timestamp"})
	}
	completedAt, err := time.Parse(time.RFC3339, strings.TrimSpace(req.CompletedAt))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"error": "completed_at must be a valid RFC3339 timestamp"})
	}

	session, err := h.sessions.CreateSession(c.Context(), coachID, services.CreateSessionInput{
		Title:           req.Title,
		Description:     req.Description,
		Address:         req.Address,
		AdditionalNotes: req.AdditionalNotes,
		Fee:             req.Fee,
		MaxParticipants: req.MaxParticipants,
		MinAge:          req.MinAge,
		StartedAt:       startedAt,
		CompletedAt:     completedAt,
	})
	if err != nil {
		return mapDomainError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) UpdateSession(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || role != models.RoleCoach {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	coachID, err := parseAuthUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	sessionID, err := parseSessionID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	var req updateSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	session, err := h.sessions.UpdateSession(c.Context(), coachID, sessionID, services.UpdateSessionInput{
		Title:           req.Title,
		Description:     req.Description,
		Address:         req.Address,
		AdditionalNotes: req.AdditionalNotes,
		Fee:             req.Fee,
		MaxParticipants: req.MaxParticipants,
		MinAge:          req.MinAge,
	})
	if err != nil {
		return mapDomainError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) GetSession(c *fiber.Ctx) error {
	sessionID, err := parseSessionID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	session, err := h.sessions.GetSession(c.Context(), sessionID)
	if err != nil {
		return mapDomainError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

// ListSessions serves role-dependent listings: players see joinable sessions
// or their own memberships bucketed by lifecycle, coaches see their upcoming
// schedule.
func (h *SessionHandler) ListSessions(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	userID, err := parseAuthUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	if role == models.RoleCoach {
		sessions, err := h.sessions.ListCoachUpcoming(c.Context(), userID)
		if err != nil {
			return mapDomainError(c, err)
		}
		return c.JSON(fiber.Map{"sessions": sessions})
	}

	bucket := strings.TrimSpace(c.Query("bucket"))
	if bucket != "" {
		sessions, err := h.sessions.ListPlayerSessions(c.Context(), userID, bucket)
		if err != nil {
			return mapDomainError(c, err)
		}
		return c.JSON(fiber.Map{"sessions": sessions})
	}

	page := parsePositiveInt(c.Query("page"), 1)
	limit := parsePositiveInt(c.Query("limit"), defaultPageLimit)
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	listings, err := h.sessions.ListJoinable(c.Context(), userID, limit, (page-1)*limit)
	if err != nil {
		return mapDomainError(c, err)
	}
	return c.JSON(fiber.Map{"sessions": listings})
}

func (h *SessionHandler) Enroll(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || role != models.RolePlayer {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	playerID, err := parseAuthUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	sessionID, err := parseSessionID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	var req enrollRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	result, err := h.enrollments.Enroll(c.Context(), playerID, sessionID, strings.TrimSpace(req.PaymentMethod))
	if err != nil {
		return mapDomainError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"enrollment": result})
}

func (h *SessionHandler) CancelSession(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	actorID, err := parseAuthUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	sessionID, err := parseSessionID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	var req cancelSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if err := h.cancels.CancelSession(c.Context(), actorID, role, sessionID, strings.TrimSpace(req.Reason)); err != nil {
		return mapDomainError(c, err)
	}

	return c.JSON(fiber.Map{"cancelled": true})
}

func (h *SessionHandler) ReportSession(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || role != models.RolePlayer {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	playerID, err := parseAuthUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	sessionID, err := parseSessionID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	var req reportSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if err := h.sessions.ReportSession(c.Context(), playerID, services.ReportSessionInput{
		SessionID:   sessionID,
		Description: req.Description,
		AskRefund:   req.AskRefund,
	}); err != nil {
		return mapDomainError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"reported": true})
}

func parseSessionID(c *fiber.Ctx) (int64, error) {
	sessionID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || sessionID <= 0 {
		return 0, strconv.ErrSyntax
	}
	return sessionID, nil
}

func parsePositiveInt(value string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func mapDomainError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidStateTransition):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrGateway):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Payment provider unavailable"})
	case errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process request"})
	}
}
