package connections

import (
	"context"
	"errors"
	"fmt"

	"tapcard/internal/models"
)

// SendOutcome is the user-visible result of SendRequest, distinct from hard
// errors so the UI can render specific feedback.
type SendOutcome string

const (
	// OutcomePending means a fresh pending request was created.
	OutcomePending SendOutcome = "pending"
	// OutcomeAlreadyPending means a pending request already exists between
	// the pair; the call was a no-op.
	OutcomeAlreadyPending SendOutcome = "already_pending"
	// OutcomeAlreadyConnected means the pair is connected and the live peer
	// check still passes; the call was a no-op.
	OutcomeAlreadyConnected SendOutcome = "already_connected"
)

// SendRequest sends a connection request to targetID.
//
// Precedence for an existing request between the pair: pending wins
// (no-op), accepted wins only while the live peer check passes, and a
// declined or stale-accepted row is deleted so a fresh request can be
// inserted. The status cache is updated optimistically before the final
// reconciliation pass confirms it.
func (s *Session) SendRequest(ctx context.Context, targetID string) (SendOutcome, error) {
	if targetID == s.userID {
		return "", models.NewValidationError("Cannot send a connection request to yourself")
	}

	self, err := s.profiles.GetByID(ctx, s.userID)
	if err != nil {
		return "", err
	}
	target, err := s.profiles.GetByID(ctx, targetID)
	if err != nil {
		return "", err
	}

	existing, err := s.requests.GetBetween(ctx, s.userID, targetID)
	if err != nil {
		return "", err
	}
	if existing != nil {
		switch existing.Status {
		case models.RequestStatusPending:
			return OutcomeAlreadyPending, nil
		case models.RequestStatusAccepted:
			// Same liveness rule as the reconciler: the pair is connected
			// only while both parties still hold their connection row.
			ownLive, err := s.connections.ExistsByOwnerAndEmail(ctx, s.userID, target.Email)
			if err != nil {
				return "", err
			}
			counterpartLive, err := s.connections.ExistsByOwnerAndEmail(ctx, targetID, self.Email)
			if err != nil {
				return "", err
			}
			if ownLive && counterpartLive {
				return OutcomeAlreadyConnected, nil
			}
			// The connection was removed after acceptance; the request row
			// is stale and must make way for a fresh one.
			if err := s.requests.Delete(ctx, existing.ID); err != nil {
				return "", err
			}
		case models.RequestStatusDeclined:
			// Re-requesting after a decline is allowed.
			if err := s.requests.Delete(ctx, existing.ID); err != nil {
				return "", err
			}
		}
	}

	request := &models.ConnectionRequest{
		RequesterID: s.userID,
		TargetID:    targetID,
		Status:      models.RequestStatusPending,
	}
	if err := s.requests.Create(ctx, request); err != nil {
		return "", err
	}

	s.log.LogCommand(ctx, "send_request", map[string]interface{}{
		"target_id":  targetID,
		"request_id": request.ID,
	})

	s.notifyBestEffort(ctx, "send_request notification", func() error {
		return s.notifier.Create(ctx, targetID,
			models.NotificationKindNewConnection,
			"New connection request",
			fmt.Sprintf("%s wants to connect with you", self.FullName),
			map[string]interface{}{
				"request_id":      request.ID,
				"requester_id":    self.ID,
				"requester_name":  self.FullName,
				"requester_image": self.AvatarURL,
			})
	})

	s.setStatus(targetID, models.RelationshipPendingOutgoing)
	s.reconcileAfterCommand(ctx)

	return OutcomePending, nil
}

// AcceptRequest accepts a pending request addressed to the user. The two
// connection inserts are independent best-effort writes: a partial failure
// is surfaced but never rolled back, and the reconciler's live peer check
// resolves the resulting asymmetry on the next pass.
func (s *Session) AcceptRequest(ctx context.Context, requestID string) error {
	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	if request.TargetID != s.userID {
		return models.NewUnauthorizedError("You can only accept connection requests sent to you")
	}
	if request.Status != models.RequestStatusPending {
		return models.NewValidationError("Connection request is not pending")
	}

	requester, err := s.profiles.GetByID(ctx, request.RequesterID)
	if err != nil {
		return err
	}
	self, err := s.profiles.GetByID(ctx, s.userID)
	if err != nil {
		return err
	}

	if err := s.requests.UpdateStatus(ctx, requestID, models.RequestStatusAccepted); err != nil {
		return err
	}

	// Two independent inserts, one row per party. Not atomic: either may
	// fail alone and already-applied steps stay applied.
	insertErr := errors.Join(
		s.connections.Create(ctx, models.NewConnectionFromProfile(s.userID, requester)),
		s.connections.Create(ctx, models.NewConnectionFromProfile(request.RequesterID, self)),
	)

	s.setStatus(request.RequesterID, models.RelationshipAccepted)
	s.addPeer(requester.Email)

	s.log.LogCommand(ctx, "accept_request", map[string]interface{}{
		"request_id":   requestID,
		"requester_id": request.RequesterID,
	})

	s.notifyBestEffort(ctx, "accept notification (requester)", func() error {
		return s.notifier.Create(ctx, request.RequesterID,
			models.NotificationKindRequestAccepted,
			"Connection accepted",
			fmt.Sprintf("%s accepted your connection request", self.FullName),
			map[string]interface{}{
				"request_id":       requestID,
				"counterpart_id":   self.ID,
				"counterpart_name": self.FullName,
			})
	})
	s.notifyBestEffort(ctx, "accept notification (self)", func() error {
		return s.notifier.Create(ctx, s.userID,
			models.NotificationKindConnectionAdded,
			"Connection added",
			fmt.Sprintf("You are now connected with %s", requester.FullName),
			map[string]interface{}{
				"request_id":       requestID,
				"counterpart_id":   requester.ID,
				"counterpart_name": requester.FullName,
			})
	})

	s.reconcileAfterCommand(ctx)

	return insertErr
}

// DeclineRequest declines a pending request addressed to the user. The row
// stays declined until a re-request replaces it.
func (s *Session) DeclineRequest(ctx context.Context, requestID string) error {
	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	if request.TargetID != s.userID {
		return models.NewUnauthorizedError("You can only decline connection requests sent to you")
	}
	if request.Status != models.RequestStatusPending {
		return models.NewValidationError("Connection request is not pending")
	}

	if err := s.requests.UpdateStatus(ctx, requestID, models.RequestStatusDeclined); err != nil {
		return err
	}

	s.setStatus(request.RequesterID, models.RelationshipDeclined)

	s.log.LogCommand(ctx, "decline_request", map[string]interface{}{
		"request_id":   requestID,
		"requester_id": request.RequesterID,
	})

	s.reconcileAfterCommand(ctx)

	return nil
}

// reconcileAfterCommand runs a confirming pass after a mutation. A transient
// failure keeps the optimistic cache writes in place; the realtime
// dispatcher retries on the change events the mutation itself produced.
func (s *Session) reconcileAfterCommand(ctx context.Context) {
	// Pass failures are logged by the reconciler itself.
	_ = s.Reconcile(ctx)
}

// notifyBestEffort runs a fire-and-forget side effect; failures are logged
// and never propagate.
func (s *Session) notifyBestEffort(ctx context.Context, operation string, fn func() error) {
	if s.notifier == nil {
		return
	}
	if err := fn(); err != nil {
		s.log.LogBestEffortFailure(ctx, operation, err)
	}
}
