package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/CoachConnectBack/internal/models"
	"github.com/saeid-a/CoachConnectBack/internal/repository"
)

type notificationOperations interface {
	ListForUser(ctx context.Context, userID int64, limit int, offset int) ([]models.Notification, error)
}

type NotificationHandler struct {
	notifications notificationOperations
	userRepo      *repository.UserRepository
}

func NewNotificationHandler(
	notifications notificationOperations,
	userRepo *repository.UserRepository,
) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, userRepo: userRepo}
}

type registerDeviceRequest struct {
	FCMToken string `json:"fcm_token"`
}

// ListNotifications returns the user's notifications and marks them read.
func (h *NotificationHandler) ListNotifications(c *fiber.Ctx) error {
	userID, err := parseAuthUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	page := parsePositiveInt(c.Query("page"), 1)
	limit := parsePositiveInt(c.Query("limit"), defaultPageLimit)
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	notifications, err := h.notifications.ListForUser(c.Context(), userID, limit, (page-1)*limit)
	if err != nil {
		return mapDomainError(c, err)
	}

	return c.JSON(fiber.Map{"notifications": notifications})
}

// RegisterDevice stores the device token push notifications are sent to.
func (h *NotificationHandler) RegisterDevice(c *fiber.Ctx) error {
	userID, err := parseAuthUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req registerDeviceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	req.FCMToken = strings.TrimSpace(req.FCMToken)
	if req.FCMToken == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "fcm_token is required"})
	}

	if err := h.userRepo.UpdateFCMToken(c.Context(), userID, req.FCMToken); err != nil {
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to register device"})
	}

	return c.JSON(fiber.Map{"registered": true})
}
