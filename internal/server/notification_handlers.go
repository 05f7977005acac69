package server

import (
	"github.com/gofiber/fiber/v2"
)

// GetNotifications handles GET /api/notifications?limit=...
func (s *Server) GetNotifications(c *fiber.Ctx) error {
	notifs, err := s.notificationRepo.ListForUser(c.Context(), s.currentUserID(c), c.QueryInt("limit"))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"notifications": notifs})
}

// MarkNotificationRead handles POST /api/notifications/:id/read
func (s *Server) MarkNotificationRead(c *fiber.Ctx) error {
	id, ok := s.parseUUID(c, "id")
	if !ok {
		return nil
	}

	if err := s.notificationRepo.MarkRead(c.Context(), s.currentUserID(c), id); err != nil {
		return s.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// MarkAllNotificationsRead handles POST /api/notifications/read-all
func (s *Server) MarkAllNotificationsRead(c *fiber.Ctx) error {
	if err := s.notificationRepo.MarkAllRead(c.Context(), s.currentUserID(c)); err != nil {
		return s.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
