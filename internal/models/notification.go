package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Notification kinds.
const (
	// NotificationKindNewConnection is sent to the target of a fresh request.
	NotificationKindNewConnection = "new_connection"
	// NotificationKindRequestAccepted is sent to the requester on acceptance.
	NotificationKindRequestAccepted = "request_accepted"
	// NotificationKindConnectionAdded is the accepter's own confirmation entry.
	NotificationKindConnectionAdded = "connection_added"
)

// Notification is a stored in-app notification. Creation is fire-and-forget:
// a failed insert is logged and never fails the operation that produced it.
type Notification struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    string    `gorm:"type:uuid;not null;index:idx_notifications_user" json:"user_id"`
	Kind      string    `gorm:"type:varchar(40);not null" json:"kind"`
	Title     string    `gorm:"not null" json:"title"`
	Message   string    `gorm:"type:text" json:"message"`
	Data      string    `gorm:"type:text" json:"data,omitempty"`
	Read      bool      `gorm:"default:false;index:idx_notifications_read" json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (Notification) TableName() string {
	return "notifications"
}

// BeforeCreate assigns a UUID primary key when none was provided.
func (n *Notification) BeforeCreate(_ *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}
