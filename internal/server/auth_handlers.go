package server

import (
	"strings"
	"time"

	"tapcard/internal/middleware"
	"tapcard/internal/models"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

const tokenTTL = 24 * time.Hour

type registerRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	JobTitle string `json:"job_title"`
	Company  string `json:"company"`
	Phone    string `json:"phone"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles POST /api/auth/register
func (s *Server) Register(c *fiber.Ctx) error {
	ctx := c.Context()

	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = models.NormalizeEmail(req.Email)
	if req.FullName == "" || req.Email == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("full_name and email are required"))
	}
	if len(req.Password) < 8 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Password must be at least 8 characters"))
	}

	if existing, err := s.profileRepo.GetByEmail(ctx, req.Email); err == nil && existing != nil {
		return models.RespondWithError(c, fiber.StatusConflict,
			models.NewValidationError("Email is already registered"))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return s.respondError(c, models.NewInternalError(err))
	}

	profile := &models.Profile{
		FullName:     req.FullName,
		Email:        req.Email,
		PasswordHash: string(hash),
		JobTitle:     req.JobTitle,
		Company:      req.Company,
		Phone:        req.Phone,
	}
	if err := s.profileRepo.Create(ctx, profile); err != nil {
		return s.respondError(c, err)
	}

	token, err := middleware.IssueToken(profile.ID, tokenTTL)
	if err != nil {
		return s.respondError(c, models.NewInternalError(err))
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"token":   token,
		"profile": profile,
	})
}

// Login handles POST /api/auth/login
func (s *Server) Login(c *fiber.Ctx) error {
	ctx := c.Context()

	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	profile, err := s.profileRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		// Do not reveal whether the email exists.
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid email or password"))
	}
	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(req.Password)); err != nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid email or password"))
	}

	token, err := middleware.IssueToken(profile.ID, tokenTTL)
	if err != nil {
		return s.respondError(c, models.NewInternalError(err))
	}

	// Warm the connection-state session so the first render after login has
	// data. A transient failure still yields a usable empty session.
	if _, err := s.sessions.Session(ctx, profile.ID); err != nil {
		return s.respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"token":   token,
		"profile": profile,
	})
}

// Logout handles POST /api/auth/logout. Dropping the session discards the
// per-user caches so nothing leaks into the next login.
func (s *Server) Logout(c *fiber.Ctx) error {
	s.sessions.Drop(s.currentUserID(c))
	return c.SendStatus(fiber.StatusNoContent)
}
