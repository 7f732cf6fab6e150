package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/auction-service/internal/api/dto"
	"github.com/spec-kit/auction-service/internal/auth"
	"github.com/spec-kit/auction-service/internal/service"
)

// NotificationsHandler exposes the caller's auction outcomes.
type NotificationsHandler struct {
	notifications *service.NotificationService
	statistics    *service.StatisticsService
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(notifications *service.NotificationService, statistics *service.StatisticsService) *NotificationsHandler {
	return &NotificationsHandler{notifications: notifications, statistics: statistics}
}

// ListNotifications GET /notifications.
func (h *NotificationsHandler) ListNotifications(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return err
	}
	notifications, err := h.notifications.FindUserNotifications(c.UserContext(), userID)
	if err != nil {
		return err
	}
	items := make([]dto.NotificationResponse, 0, len(notifications))
	for i := range notifications {
		items = append(items, dto.NewNotificationResponse(&notifications[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// ClearNotifications DELETE /notifications.
func (h *NotificationsHandler) ClearNotifications(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return err
	}
	deleted, err := h.notifications.ClearNotifications(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ClearNotificationsResponse{Deleted: deleted}})
}

// Statistics GET /statistics.
func (h *NotificationsHandler) Statistics(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return err
	}
	stats, err := h.statistics.UserStatistics(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewStatisticsResponse(stats)})
}
