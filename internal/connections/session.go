// Package connections implements the connection-state reconciliation and
// realtime cache-coherency core: per-user caches of relationship status, a
// full-recompute reconciler, guarded command handlers, and a debounced
// realtime dispatcher. The caches are a UI-responsiveness optimization only;
// the tables remain the source of truth and every pass re-derives state from
// a fresh read.
package connections

import (
	"context"
	"sync"
	"time"

	"tapcard/internal/models"
	"tapcard/internal/observability"
	"tapcard/internal/repository"
)

// NotificationSink creates in-app notifications. Implementations are
// fire-and-forget collaborators: callers log failures and move on.
type NotificationSink interface {
	Create(ctx context.Context, userID, kind, title, message string, data map[string]interface{}) error
}

// Session owns one authenticated user's connection-state view: the status
// cache, the connected-peers set, and the incoming/outgoing request lists.
// Only the reconciler (bulk swap) and the command handlers (narrow optimistic
// writes) mutate the state. A session lives as long as the user's
// authenticated session and is dropped on logout, so state never leaks
// across users.
type Session struct {
	userID string

	requests    repository.RequestRepository
	connections repository.ConnectionRepository
	profiles    repository.ProfileRepository
	notifier    NotificationSink
	log         *observability.SessionLogger
	timeout     time.Duration

	mu       sync.RWMutex
	statuses map[string]models.RelationshipStatus
	peers    map[string]struct{}
	incoming []models.ConnectionRequest
	outgoing []models.ConnectionRequest
	loading  bool

	// Single-flight guard: overlapping reconciliation triggers collapse
	// into the running pass plus at most one follow-up pass.
	flightMu sync.Mutex
	inFlight bool
	rerun    bool
}

// SessionConfig bundles the collaborators a session needs.
type SessionConfig struct {
	UserID        string
	Requests      repository.RequestRepository
	Connections   repository.ConnectionRepository
	Profiles      repository.ProfileRepository
	Notifications NotificationSink
	// Timeout bounds a single reconciliation pass. Zero means 10s.
	Timeout time.Duration
}

// NewSession creates an empty session for the given user. State is populated
// by the first reconciliation pass.
func NewSession(cfg SessionConfig) *Session {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Session{
		userID:      cfg.UserID,
		requests:    cfg.Requests,
		connections: cfg.Connections,
		profiles:    cfg.Profiles,
		notifier:    cfg.Notifications,
		log:         observability.NewSessionLogger(cfg.UserID),
		timeout:     timeout,
		statuses:    make(map[string]models.RelationshipStatus),
		peers:       make(map[string]struct{}),
	}
}

// UserID returns the session owner's user id.
func (s *Session) UserID() string {
	return s.userID
}

// GetRequestStatus returns the cached relationship status for the given
// counterpart. It is the synchronous read path for rendering and never
// performs I/O: cache first, then a scan of the in-memory request lists,
// defaulting to none.
func (s *Session) GetRequestStatus(counterpartID string) models.RelationshipStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if status, ok := s.statuses[counterpartID]; ok {
		return status
	}
	for i := range s.outgoing {
		if s.outgoing[i].TargetID == counterpartID && s.outgoing[i].Status == models.RequestStatusPending {
			return models.RelationshipPendingOutgoing
		}
	}
	for i := range s.incoming {
		if s.incoming[i].RequesterID == counterpartID {
			return models.RelationshipPendingIncoming
		}
	}
	return models.RelationshipNone
}

// IsConnectedWithEmail reports whether the normalized email belongs to a
// live peer. Email identity is more durable than a profile id reference, so
// this is the check used to detect silent disconnection.
func (s *Session) IsConnectedWithEmail(email string) bool {
	normalized := models.NormalizeEmail(email)
	if normalized == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.peers[normalized]
	return ok
}

// IncomingRequests returns the pending requests addressed to the user.
func (s *Session) IncomingRequests() []models.ConnectionRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ConnectionRequest, len(s.incoming))
	copy(out, s.incoming)
	return out
}

// OutgoingRequests returns the requests the user sent, any status.
func (s *Session) OutgoingRequests() []models.ConnectionRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ConnectionRequest, len(s.outgoing))
	copy(out, s.outgoing)
	return out
}

// Loading reports whether a reconciliation pass is currently in flight.
func (s *Session) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// setStatus applies a narrow optimistic cache write ahead of backend
// confirmation; the next reconciliation pass corrects it if needed.
func (s *Session) setStatus(counterpartID string, status models.RelationshipStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[counterpartID] = status
}

// addPeer optimistically marks an email as a live peer.
func (s *Session) addPeer(email string) {
	normalized := models.NormalizeEmail(email)
	if normalized == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers[normalized] = struct{}{}
}

// swap atomically replaces the session state with a fresh snapshot. Replace,
// never merge: stale entries must not survive a pass.
func (s *Session) swap(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = snap.Statuses
	s.peers = snap.Peers
	s.incoming = snap.Incoming
	s.outgoing = snap.Outgoing
}

func (s *Session) setLoading(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = v
}
