package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Connection is a directed connection row owned by one user, carrying a
// denormalized snapshot of the counterpart's card taken at acceptance time.
// Accepting a request produces two rows, one per party; either party may
// delete its own row at any time, so the two sides can disagree. The
// reconciler resolves that asymmetry via the live peer check instead of
// trusting the request's stored status.
type Connection struct {
	ID                 string    `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerUserID        string    `gorm:"type:uuid;not null;index:idx_connections_owner" json:"owner_user_id"`
	CounterpartName    string    `gorm:"not null" json:"counterpart_name"`
	CounterpartEmail   *string   `json:"counterpart_email"`
	CounterpartTitle   string    `json:"counterpart_title"`
	CounterpartCompany string    `json:"counterpart_company"`
	CounterpartPhone   string    `json:"counterpart_phone"`
	Notes              string    `gorm:"type:text" json:"notes"`
	CreatedAt          time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (Connection) TableName() string {
	return "connections"
}

// BeforeCreate assigns a UUID primary key when none was provided.
func (c *Connection) BeforeCreate(_ *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// NewConnectionFromProfile builds the owner's connection row from the
// counterpart's profile as it stands at acceptance time.
func NewConnectionFromProfile(ownerUserID string, counterpart *Profile) *Connection {
	email := counterpart.NormalizedEmail()
	conn := &Connection{
		OwnerUserID:        ownerUserID,
		CounterpartName:    counterpart.FullName,
		CounterpartTitle:   counterpart.JobTitle,
		CounterpartCompany: counterpart.Company,
		CounterpartPhone:   counterpart.Phone,
	}
	if email != "" {
		conn.CounterpartEmail = &email
	}
	return conn
}
