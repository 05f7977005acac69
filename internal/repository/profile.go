package repository

import (
	"context"
	"errors"
	"strings"

	"tapcard/internal/models"

	"gorm.io/gorm"
)

// ProfileRepository defines the interface for profile data operations
type ProfileRepository interface {
	Create(ctx context.Context, profile *models.Profile) error
	GetByID(ctx context.Context, id string) (*models.Profile, error)
	GetByEmail(ctx context.Context, email string) (*models.Profile, error)
	// GetByIDs batch-fetches profile summaries for the given ids. Missing
	// ids are simply absent from the result map.
	GetByIDs(ctx context.Context, ids []string) (map[string]models.Profile, error)
	Update(ctx context.Context, profile *models.Profile) error
	Search(ctx context.Context, query string, limit int) ([]models.Profile, error)
}

// profileRepository implements ProfileRepository
type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) Create(ctx context.Context, profile *models.Profile) error {
	if err := r.db.WithContext(ctx).Create(profile).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *profileRepository) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).First(&profile, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Profile", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &profile, nil
}

func (r *profileRepository) GetByEmail(ctx context.Context, email string) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).
		First(&profile, "LOWER(email) = ?", models.NormalizeEmail(email)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Profile", email)
		}
		return nil, models.NewInternalError(err)
	}
	return &profile, nil
}

func (r *profileRepository) GetByIDs(ctx context.Context, ids []string) (map[string]models.Profile, error) {
	result := make(map[string]models.Profile, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var profiles []models.Profile
	if err := r.db.WithContext(ctx).Find(&profiles, "id IN ?", ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, p := range profiles {
		result[p.ID] = p
	}
	return result, nil
}

func (r *profileRepository) Update(ctx context.Context, profile *models.Profile) error {
	if err := r.db.WithContext(ctx).Save(profile).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *profileRepository) Search(ctx context.Context, query string, limit int) ([]models.Profile, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	var profiles []models.Profile
	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	if err := r.db.WithContext(ctx).
		Where("LOWER(full_name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(company) LIKE ?", pattern, pattern, pattern).
		Limit(limit).
		Find(&profiles).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return profiles, nil
}
