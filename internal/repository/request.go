// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"

	"tapcard/internal/feed"
	"tapcard/internal/models"

	"gorm.io/gorm"
)

// RequestRepository defines the interface for connection-request data operations
type RequestRepository interface {
	Create(ctx context.Context, request *models.ConnectionRequest) error
	GetByID(ctx context.Context, id string) (*models.ConnectionRequest, error)
	GetBetween(ctx context.Context, userID1, userID2 string) (*models.ConnectionRequest, error)
	ListForUser(ctx context.Context, userID string) ([]models.ConnectionRequest, error)
	UpdateStatus(ctx context.Context, requestID string, status models.RequestStatus) error
	Delete(ctx context.Context, requestID string) error
}

// requestRepository implements RequestRepository
type requestRepository struct {
	db  *gorm.DB
	pub feed.Publisher
}

// NewRequestRepository creates a new connection-request repository that
// publishes a change event after every write.
func NewRequestRepository(db *gorm.DB, pub feed.Publisher) RequestRepository {
	return &requestRepository{db: db, pub: pub}
}

func (r *requestRepository) publish(eventType string, req *models.ConnectionRequest) {
	if r.pub == nil {
		return
	}
	r.pub.Publish(feed.Event{
		Table:   feed.TableConnectionRequests,
		Type:    eventType,
		RowID:   req.ID,
		UserIDs: []string{req.RequesterID, req.TargetID},
	})
}

func (r *requestRepository) Create(ctx context.Context, request *models.ConnectionRequest) error {
	if err := r.db.WithContext(ctx).Create(request).Error; err != nil {
		return models.NewInternalError(err)
	}
	r.publish(feed.EventInsert, request)
	return nil
}

func (r *requestRepository) GetByID(ctx context.Context, id string) (*models.ConnectionRequest, error) {
	var request models.ConnectionRequest
	if err := r.db.WithContext(ctx).
		Preload("Requester").
		Preload("Target").
		First(&request, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("ConnectionRequest", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &request, nil
}

func (r *requestRepository) GetBetween(ctx context.Context, userID1, userID2 string) (*models.ConnectionRequest, error) {
	var request models.ConnectionRequest

	// Find the request between the pair regardless of direction.
	if err := r.db.WithContext(ctx).
		Where("(requester_id = ? AND target_id = ?) OR (requester_id = ? AND target_id = ?)",
			userID1, userID2, userID2, userID1).
		Order("created_at DESC").
		Preload("Requester").
		Preload("Target").
		First(&request).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // No request exists
		}
		return nil, models.NewInternalError(err)
	}
	return &request, nil
}

func (r *requestRepository) ListForUser(ctx context.Context, userID string) ([]models.ConnectionRequest, error) {
	var requests []models.ConnectionRequest

	if err := r.db.WithContext(ctx).
		Where("requester_id = ? OR target_id = ?", userID, userID).
		Order("created_at DESC").
		Preload("Requester").
		Preload("Target").
		Find(&requests).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	return requests, nil
}

func (r *requestRepository) UpdateStatus(ctx context.Context, requestID string, status models.RequestStatus) error {
	var request models.ConnectionRequest
	if err := r.db.WithContext(ctx).First(&request, "id = ?", requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("ConnectionRequest", requestID)
		}
		return models.NewInternalError(err)
	}

	if err := r.db.WithContext(ctx).
		Model(&models.ConnectionRequest{}).
		Where("id = ?", requestID).
		Update("status", status).Error; err != nil {
		return models.NewInternalError(err)
	}

	request.Status = status
	r.publish(feed.EventUpdate, &request)
	return nil
}

func (r *requestRepository) Delete(ctx context.Context, requestID string) error {
	var request models.ConnectionRequest
	if err := r.db.WithContext(ctx).First(&request, "id = ?", requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil // already gone
		}
		return models.NewInternalError(err)
	}

	if err := r.db.WithContext(ctx).Delete(&models.ConnectionRequest{}, "id = ?", requestID).Error; err != nil {
		return models.NewInternalError(err)
	}

	r.publish(feed.EventDelete, &request)
	return nil
}
