package handlers

import (
	"context"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/CoachConnectBack/internal/models"
)

type refundOperations interface {
	Accept(ctx context.Context, adminID int64, requestID int64) (*models.RefundRequest, error)
	Reject(ctx context.Context, adminID int64, requestID int64, note string) (*models.RefundRequest, error)
	ListByCoach(ctx context.Context, coachID int64, limit int, offset int) ([]models.RefundRequest, error)
	ListPending(ctx context.Context, limit int, offset int) ([]models.RefundRequest, error)
}

type RefundHandler struct {
	refunds refundOperations
}

func NewRefundHandler(refunds refundOperations) *RefundHandler {
	return &RefundHandler{refunds: refunds}
}

type rejectRefundRequest struct {
	Note string `json:"note"`
}

// ListRefunds shows refund activity: coaches see requests against their own
// sessions, admins see the pending queue awaiting adjudication.
func (h *RefundHandler) ListRefunds(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || (role != models.RoleCoach && role != models.RoleAdmin) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	userID, err := parseAuthUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	page := parsePositiveInt(c.Query("page"), 1)
	limit := parsePositiveInt(c.Query("limit"), defaultPageLimit)
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	offset := (page - 1) * limit

	var requests []models.RefundRequest
	if role == models.RoleAdmin {
		requests, err = h.refunds.ListPending(c.Context(), limit, offset)
	} else {
		requests, err = h.refunds.ListByCoach(c.Context(), userID, limit, offset)
	}
	if err != nil {
		return mapDomainError(c, err)
	}

	return c.JSON(fiber.Map{"refund_requests": requests})
}

func (h *RefundHandler) AcceptRefund(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || role != models.RoleAdmin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	adminID, err := parseAuthUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	requestID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || requestID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid refund request id"})
	}

	request, err := h.refunds.Accept(c.Context(), adminID, requestID)
	if err != nil {
		return mapDomainError(c, err)
	}

	return c.JSON(fiber.Map{"refund_request": request})
}

func (h *RefundHandler) RejectRefund(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || role != models.RoleAdmin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	adminID, err := parseAuthUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	requestID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || requestID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid refund request id"})
	}

	var req rejectRefundRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	req.Note = strings.TrimSpace(req.Note)
	if req.Note == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "A rejection note is required"})
	}

	request, err := h.refunds.Reject(c.Context(), adminID, requestID, req.Note)
	if err != nil {
		return mapDomainError(c, err)
	}

	return c.JSON(fiber.Map{"refund_request": request})
}
