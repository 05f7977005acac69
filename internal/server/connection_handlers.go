package server

import (
	"tapcard/internal/connections"
	"tapcard/internal/models"

	"github.com/gofiber/fiber/v2"
)

// SendConnectionRequest handles POST /api/connections/requests/:userId
func (s *Server) SendConnectionRequest(c *fiber.Ctx) error {
	targetID, ok := s.parseUUID(c, "userId")
	if !ok {
		return nil
	}

	session, err := s.session(c)
	if err != nil {
		return s.respondError(c, err)
	}

	outcome, err := session.SendRequest(c.Context(), targetID)
	if err != nil {
		return s.respondError(c, err)
	}

	status := fiber.StatusOK
	if outcome == connections.OutcomePending {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{
		"outcome": outcome,
		"status":  session.GetRequestStatus(targetID),
	})
}

// AcceptConnectionRequest handles POST /api/connections/requests/:requestId/accept
func (s *Server) AcceptConnectionRequest(c *fiber.Ctx) error {
	requestID, ok := s.parseUUID(c, "requestId")
	if !ok {
		return nil
	}

	session, err := s.session(c)
	if err != nil {
		return s.respondError(c, err)
	}

	if err := session.AcceptRequest(c.Context(), requestID); err != nil {
		if isGuardError(err) {
			return s.respondError(c, err)
		}
		// The request was accepted but a connection insert failed. The
		// mutation stands; the reconciler resolves the asymmetry, so report
		// success with a warning instead of pretending nothing happened.
		return c.JSON(fiber.Map{
			"status":  models.RequestStatusAccepted,
			"warning": err.Error(),
		})
	}

	return c.JSON(fiber.Map{"status": models.RequestStatusAccepted})
}

// DeclineConnectionRequest handles POST /api/connections/requests/:requestId/decline
func (s *Server) DeclineConnectionRequest(c *fiber.Ctx) error {
	requestID, ok := s.parseUUID(c, "requestId")
	if !ok {
		return nil
	}

	session, err := s.session(c)
	if err != nil {
		return s.respondError(c, err)
	}

	if err := session.DeclineRequest(c.Context(), requestID); err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"status": models.RequestStatusDeclined})
}

// GetIncomingRequests handles GET /api/connections/requests
func (s *Server) GetIncomingRequests(c *fiber.Ctx) error {
	session, err := s.session(c)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"requests": session.IncomingRequests(),
		"loading":  session.Loading(),
	})
}

// GetOutgoingRequests handles GET /api/connections/requests/sent
func (s *Server) GetOutgoingRequests(c *fiber.Ctx) error {
	session, err := s.session(c)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"requests": session.OutgoingRequests(),
		"loading":  session.Loading(),
	})
}

// GetConnectionStatus handles GET /api/connections/status/:userId
func (s *Server) GetConnectionStatus(c *fiber.Ctx) error {
	targetID, ok := s.parseUUID(c, "userId")
	if !ok {
		return nil
	}

	if _, err := s.profileRepo.GetByID(c.Context(), targetID); err != nil {
		return s.respondError(c, err)
	}

	session, err := s.session(c)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"status":  session.GetRequestStatus(targetID),
		"loading": session.Loading(),
	})
}

// CheckConnectedEmail handles GET /api/connections/connected?email=...
func (s *Server) CheckConnectedEmail(c *fiber.Ctx) error {
	email := c.Query("email")
	if models.NormalizeEmail(email) == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("email query parameter is required"))
	}

	session, err := s.session(c)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"connected": session.IsConnectedWithEmail(email),
	})
}

// GetConnections handles GET /api/connections
func (s *Server) GetConnections(c *fiber.Ctx) error {
	conns, err := s.connectionRepo.ListByOwner(c.Context(), s.currentUserID(c))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"connections": conns})
}

// UpdateConnectionNotes handles PUT /api/connections/:id/notes
func (s *Server) UpdateConnectionNotes(c *fiber.Ctx) error {
	id, ok := s.parseUUID(c, "id")
	if !ok {
		return nil
	}

	var body struct {
		Notes string `json:"notes"`
	}
	if err := c.BodyParser(&body); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	if err := s.connectionRepo.UpdateNotes(c.Context(), s.currentUserID(c), id, body.Notes); err != nil {
		return s.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// DeleteConnection handles DELETE /api/connections/:id. The delete is
// unilateral: the counterpart's row and the accepted request row stay behind,
// and both sides converge to "not connected" on their next reconciliation
// pass.
func (s *Server) DeleteConnection(c *fiber.Ctx) error {
	id, ok := s.parseUUID(c, "id")
	if !ok {
		return nil
	}

	if err := s.connectionRepo.Delete(c.Context(), s.currentUserID(c), id); err != nil {
		return s.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
