package server

import (
	"errors"

	"tapcard/internal/connections"
	"tapcard/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// currentUserID returns the authenticated user id set by AuthRequired.
func (s *Server) currentUserID(c *fiber.Ctx) string {
	return c.Locals("userID").(string)
}

// session returns the caller's connection-state session, creating it on
// first use.
func (s *Server) session(c *fiber.Ctx) (*connections.Session, error) {
	return s.sessions.Session(c.Context(), s.currentUserID(c))
}

// parseUUID validates a route parameter as a UUID; on failure it writes the
// error response and returns false.
func (s *Server) parseUUID(c *fiber.Ctx, param string) (string, bool) {
	raw := c.Params(param)
	if _, err := uuid.Parse(raw); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+param))
		return "", false
	}
	return raw, true
}

// errorStatus maps an application error to its HTTP status.
func errorStatus(err error) int {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case "NOT_FOUND":
			return fiber.StatusNotFound
		case "VALIDATION_ERROR":
			return fiber.StatusBadRequest
		case "UNAUTHORIZED":
			return fiber.StatusForbidden
		case "UNAVAILABLE":
			return fiber.StatusServiceUnavailable
		}
	}
	return fiber.StatusInternalServerError
}

// isGuardError reports whether err comes from a precondition check rather
// than a partially-applied mutation.
func isGuardError(err error) bool {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		return false
	}
	switch appErr.Code {
	case "NOT_FOUND", "VALIDATION_ERROR", "UNAUTHORIZED":
		return true
	}
	return false
}

// respondError writes the standardized error response for err.
func (s *Server) respondError(c *fiber.Ctx, err error) error {
	return models.RespondWithError(c, errorStatus(err), err)
}
