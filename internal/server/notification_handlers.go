package server

import (
	"stackit/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetNotifications handles GET /api/notifications
// @Summary List notifications
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Max items (default 50, max 100)"
// @Success 200 {array} models.Notification
// @Router /notifications [get]
func (s *Server) GetNotifications(c *fiber.Ctx) error {
	items, err := s.notificationService.List(c.UserContext(), currentUserID(c),
		c.QueryInt("limit", service.DefaultNotificationLimit))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(items)
}

// MarkNotificationsRead handles POST /api/notifications/mark-read
// @Summary Mark all notifications read
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{updated=int}
// @Router /notifications/mark-read [post]
func (s *Server) MarkNotificationsRead(c *fiber.Ctx) error {
	n, err := s.notificationService.MarkAllRead(c.UserContext(), currentUserID(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"updated": n})
}
