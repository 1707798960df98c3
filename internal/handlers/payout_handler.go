package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/CoachConnectBack/internal/models"
)

type payoutOperations interface {
	ListByCoach(ctx context.Context, coachID int64) ([]models.DuePayout, error)
}

type PayoutHandler struct {
	payouts payoutOperations
}

func NewPayoutHandler(payouts payoutOperations) *PayoutHandler {
	return &PayoutHandler{payouts: payouts}
}

func (h *PayoutHandler) ListMyPayouts(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || role != models.RoleCoach {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	coachID, err := parseAuthUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	payouts, err := h.payouts.ListByCoach(c.Context(), coachID)
	if err != nil {
		return mapDomainError(c, err)
	}

	return c.JSON(fiber.Map{"payouts": payouts})
}
