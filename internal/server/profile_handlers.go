package server

import (
	"strings"

	"tapcard/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile handles GET /api/profiles/me
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	profile, err := s.profileRepo.GetByID(c.Context(), s.currentUserID(c))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(profile)
}

type updateProfileRequest struct {
	FullName  *string `json:"full_name"`
	AvatarURL *string `json:"avatar_url"`
	JobTitle  *string `json:"job_title"`
	Company   *string `json:"company"`
	Phone     *string `json:"phone"`
}

// UpdateMyProfile handles PUT /api/profiles/me. Email is identity and cannot
// be changed here: connection rows reference counterparts by email.
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	ctx := c.Context()

	var req updateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	profile, err := s.profileRepo.GetByID(ctx, s.currentUserID(c))
	if err != nil {
		return s.respondError(c, err)
	}

	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		if name == "" {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("full_name cannot be empty"))
		}
		profile.FullName = name
	}
	if req.AvatarURL != nil {
		profile.AvatarURL = *req.AvatarURL
	}
	if req.JobTitle != nil {
		profile.JobTitle = *req.JobTitle
	}
	if req.Company != nil {
		profile.Company = *req.Company
	}
	if req.Phone != nil {
		profile.Phone = *req.Phone
	}

	if err := s.profileRepo.Update(ctx, profile); err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(profile)
}

// GetProfile handles GET /api/profiles/:id. Other users see the card summary
// plus the caller's relationship to them.
func (s *Server) GetProfile(c *fiber.Ctx) error {
	id, ok := s.parseUUID(c, "id")
	if !ok {
		return nil
	}

	profile, err := s.profileRepo.GetByID(c.Context(), id)
	if err != nil {
		return s.respondError(c, err)
	}

	if id == s.currentUserID(c) {
		return c.JSON(fiber.Map{"profile": profile.Summary()})
	}

	session, err := s.session(c)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"profile": profile.Summary(),
		"status":  session.GetRequestStatus(id),
	})
}

// SearchProfiles handles GET /api/profiles/search?q=...&limit=...
func (s *Server) SearchProfiles(c *fiber.Ctx) error {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("q query parameter is required"))
	}

	profiles, err := s.profileRepo.Search(c.Context(), query, c.QueryInt("limit"))
	if err != nil {
		return s.respondError(c, err)
	}

	summaries := make([]models.ProfileSummary, 0, len(profiles))
	for i := range profiles {
		summaries = append(summaries, profiles[i].Summary())
	}
	return c.JSON(fiber.Map{"profiles": summaries})
}
