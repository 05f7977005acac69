// Package notifications persists in-app notifications and fans them out
// through the change feed.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"tapcard/internal/models"
	"tapcard/internal/repository"
)

// Sink writes notifications. Creation is fire-and-forget from the caller's
// point of view: command handlers log failures and continue.
type Sink struct {
	repo repository.NotificationRepository
}

// NewSink creates a notification sink backed by the given repository.
func NewSink(repo repository.NotificationRepository) *Sink {
	return &Sink{repo: repo}
}

// Create stores a notification for the user. The data map is serialized as
// JSON for the client to interpret.
func (s *Sink) Create(ctx context.Context, userID, kind, title, message string, data map[string]interface{}) error {
	var payload string
	if len(data) > 0 {
		raw, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal notification data: %w", err)
		}
		payload = string(raw)
	}

	return s.repo.Create(ctx, &models.Notification{
		UserID:  userID,
		Kind:    kind,
		Title:   title,
		Message: message,
		Data:    payload,
	})
}
