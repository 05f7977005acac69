package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RequestStatus is the stored status of a connection request.
type RequestStatus string

const (
	// RequestStatusPending indicates an unanswered connection request.
	RequestStatusPending RequestStatus = "pending"
	// RequestStatusAccepted indicates an accepted connection request.
	RequestStatusAccepted RequestStatus = "accepted"
	// RequestStatusDeclined indicates a declined connection request.
	RequestStatusDeclined RequestStatus = "declined"
)

// ConnectionRequest is one user's request to connect with another.
// At most one non-superseded request exists per unordered user pair;
// re-requesting after a decline (or after a stale acceptance) deletes the
// prior row before inserting a fresh one.
type ConnectionRequest struct {
	ID          string        `gorm:"type:uuid;primaryKey" json:"id"`
	RequesterID string        `gorm:"type:uuid;not null;index:idx_requests_requester" json:"requester_id"`
	TargetID    string        `gorm:"type:uuid;not null;index:idx_requests_target" json:"target_id"`
	Status      RequestStatus `gorm:"type:varchar(20);default:'pending';index:idx_requests_status" json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`

	// Relationships
	Requester Profile `gorm:"foreignKey:RequesterID" json:"requester,omitempty"`
	Target    Profile `gorm:"foreignKey:TargetID" json:"target,omitempty"`
}

// TableName specifies the table name for GORM
func (ConnectionRequest) TableName() string {
	return "connection_requests"
}

// BeforeCreate assigns a UUID primary key when none was provided.
func (r *ConnectionRequest) BeforeCreate(_ *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// CounterpartID returns the participant that is not userID.
func (r *ConnectionRequest) CounterpartID(userID string) string {
	if r.RequesterID == userID {
		return r.TargetID
	}
	return r.RequesterID
}

// Involves reports whether userID is a participant of the request.
func (r *ConnectionRequest) Involves(userID string) bool {
	return r.RequesterID == userID || r.TargetID == userID
}
