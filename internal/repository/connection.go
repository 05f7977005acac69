package repository

import (
	"context"
	"errors"

	"tapcard/internal/feed"
	"tapcard/internal/models"

	"gorm.io/gorm"
)

// ConnectionRepository defines the interface for connection data operations
type ConnectionRepository interface {
	Create(ctx context.Context, connection *models.Connection) error
	GetByID(ctx context.Context, ownerUserID, id string) (*models.Connection, error)
	ListByOwner(ctx context.Context, ownerUserID string) ([]models.Connection, error)
	// ListByCounterpartEmail returns rows held by OTHER users that point at
	// the given email. The reconciler uses it to detect a counterpart that
	// silently dropped its side of a connection.
	ListByCounterpartEmail(ctx context.Context, email string) ([]models.Connection, error)
	ExistsByOwnerAndEmail(ctx context.Context, ownerUserID, email string) (bool, error)
	UpdateNotes(ctx context.Context, ownerUserID, id, notes string) error
	Delete(ctx context.Context, ownerUserID, id string) error
}

// connectionRepository implements ConnectionRepository
type connectionRepository struct {
	db  *gorm.DB
	pub feed.Publisher
}

// NewConnectionRepository creates a new connection repository that publishes
// a change event after every write.
func NewConnectionRepository(db *gorm.DB, pub feed.Publisher) ConnectionRepository {
	return &connectionRepository{db: db, pub: pub}
}

func (r *connectionRepository) publish(eventType string, conn *models.Connection) {
	if r.pub == nil {
		return
	}
	// Only the owner id is known from the row itself; the counterpart learns
	// about the change through its own subscription when the sibling row (or
	// the request row) changes, and through the reverse-lookup on its next
	// reconciliation pass.
	r.pub.Publish(feed.Event{
		Table:   feed.TableConnections,
		Type:    eventType,
		RowID:   conn.ID,
		UserIDs: []string{conn.OwnerUserID},
	})
}

func (r *connectionRepository) Create(ctx context.Context, connection *models.Connection) error {
	if err := r.db.WithContext(ctx).Create(connection).Error; err != nil {
		return models.NewInternalError(err)
	}
	r.publish(feed.EventInsert, connection)
	return nil
}

func (r *connectionRepository) GetByID(ctx context.Context, ownerUserID, id string) (*models.Connection, error) {
	var connection models.Connection
	if err := r.db.WithContext(ctx).
		Where("owner_user_id = ?", ownerUserID).
		First(&connection, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Connection", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &connection, nil
}

func (r *connectionRepository) ListByOwner(ctx context.Context, ownerUserID string) ([]models.Connection, error) {
	var connections []models.Connection
	if err := r.db.WithContext(ctx).
		Where("owner_user_id = ?", ownerUserID).
		Order("created_at DESC").
		Find(&connections).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return connections, nil
}

func (r *connectionRepository) ListByCounterpartEmail(ctx context.Context, email string) ([]models.Connection, error) {
	var connections []models.Connection
	if err := r.db.WithContext(ctx).
		Where("LOWER(counterpart_email) = ?", models.NormalizeEmail(email)).
		Find(&connections).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return connections, nil
}

func (r *connectionRepository) ExistsByOwnerAndEmail(ctx context.Context, ownerUserID, email string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Connection{}).
		Where("owner_user_id = ? AND LOWER(counterpart_email) = ?", ownerUserID, models.NormalizeEmail(email)).
		Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *connectionRepository) UpdateNotes(ctx context.Context, ownerUserID, id, notes string) error {
	result := r.db.WithContext(ctx).
		Model(&models.Connection{}).
		Where("id = ? AND owner_user_id = ?", id, ownerUserID).
		Update("notes", notes)
	if result.Error != nil {
		return models.NewInternalError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Connection", id)
	}
	return nil
}

func (r *connectionRepository) Delete(ctx context.Context, ownerUserID, id string) error {
	var connection models.Connection
	if err := r.db.WithContext(ctx).
		Where("owner_user_id = ?", ownerUserID).
		First(&connection, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("Connection", id)
		}
		return models.NewInternalError(err)
	}

	if err := r.db.WithContext(ctx).
		Where("owner_user_id = ?", ownerUserID).
		Delete(&models.Connection{}, "id = ?", id).Error; err != nil {
		return models.NewInternalError(err)
	}

	r.publish(feed.EventDelete, &connection)
	return nil
}
