package models

// RelationshipStatus is the derived, never-persisted view of "my relationship
// to user X". It combines the latest connection request between the pair with
// a live membership check against the current user's connection rows:
// an accepted request only counts while the counterpart's email is still in
// the peer set, otherwise it collapses to none.
type RelationshipStatus string

const (
	// RelationshipNone means no active relationship exists.
	RelationshipNone RelationshipStatus = "none"
	// RelationshipPendingOutgoing means the current user sent a request
	// that is still unanswered.
	RelationshipPendingOutgoing RelationshipStatus = "pending_outgoing"
	// RelationshipPendingIncoming means the counterpart sent a request
	// the current user has not answered.
	RelationshipPendingIncoming RelationshipStatus = "pending_incoming"
	// RelationshipAccepted means the pair is connected and the live peer
	// check passes.
	RelationshipAccepted RelationshipStatus = "accepted"
	// RelationshipDeclined means the latest request was declined.
	RelationshipDeclined RelationshipStatus = "declined"
)

// Pending reports whether the status is a pending state in either direction.
func (s RelationshipStatus) Pending() bool {
	return s == RelationshipPendingOutgoing || s == RelationshipPendingIncoming
}
