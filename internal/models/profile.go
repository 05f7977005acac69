// Package models contains data structures for the application's domain models.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Profile represents a user's digital business card.
type Profile struct {
	ID           string    `gorm:"type:uuid;primaryKey" json:"id"`
	FullName     string    `gorm:"not null" json:"full_name"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	AvatarURL    string    `json:"avatar_url"`
	JobTitle     string    `json:"job_title"`
	Company      string    `json:"company"`
	Phone        string    `json:"phone"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Profile) TableName() string {
	return "profiles"
}

// BeforeCreate assigns a UUID primary key when none was provided.
func (p *Profile) BeforeCreate(_ *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// NormalizedEmail returns the profile email lowercased and trimmed,
// the form used for peer-set membership.
func (p *Profile) NormalizedEmail() string {
	return NormalizeEmail(p.Email)
}

// NormalizeEmail canonicalizes an email address for identity comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ProfileSummary is the denormalized subset of a profile carried in
// notifications and realtime payloads.
type ProfileSummary struct {
	ID        string `json:"id"`
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
	JobTitle  string `json:"job_title"`
	Company   string `json:"company"`
}

// Summary returns the summary view of the profile.
func (p *Profile) Summary() ProfileSummary {
	return ProfileSummary{
		ID:        p.ID,
		FullName:  p.FullName,
		Email:     p.Email,
		AvatarURL: p.AvatarURL,
		JobTitle:  p.JobTitle,
		Company:   p.Company,
	}
}
