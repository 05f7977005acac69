package connections

import (
	"context"
	"sync"
	"time"

	"tapcard/internal/feed"
	"tapcard/internal/models"
	"tapcard/internal/repository"
)

// Manager owns the per-user sessions and their dispatchers. Sessions are
// created lazily on first use and dropped on logout, so cache state is tied
// to the authenticated session and never leaks across users.
type Manager struct {
	deps ManagerDeps

	mu       sync.Mutex
	sessions map[string]*managedSession
}

type managedSession struct {
	session    *Session
	dispatcher *Dispatcher
}

// ManagerDeps bundles the collaborators sessions need.
type ManagerDeps struct {
	Requests      repository.RequestRepository
	Connections   repository.ConnectionRepository
	Profiles      repository.ProfileRepository
	Notifications NotificationSink
	Bus           *feed.Bus
	// Debounce is the dispatcher coalescing window. Zero means 250ms.
	Debounce time.Duration
	// Timeout bounds a reconciliation pass. Zero means 10s.
	Timeout time.Duration
}

// NewManager creates an empty session manager.
func NewManager(deps ManagerDeps) *Manager {
	return &Manager{
		deps:     deps,
		sessions: make(map[string]*managedSession),
	}
}

// Session returns the user's session, creating it and running the initial
// reconciliation pass on first use. A transient failure of the initial pass
// still yields a usable (empty) session; the dispatcher catches up on the
// next change event.
func (m *Manager) Session(ctx context.Context, userID string) (*Session, error) {
	m.mu.Lock()
	if ms, ok := m.sessions[userID]; ok {
		m.mu.Unlock()
		return ms.session, nil
	}

	session := NewSession(SessionConfig{
		UserID:        userID,
		Requests:      m.deps.Requests,
		Connections:   m.deps.Connections,
		Profiles:      m.deps.Profiles,
		Notifications: m.deps.Notifications,
		Timeout:       m.deps.Timeout,
	})
	ms := &managedSession{session: session}
	if m.deps.Bus != nil {
		ms.dispatcher = NewDispatcher(session, m.deps.Bus, m.deps.Debounce)
		ms.dispatcher.Start()
	}
	m.sessions[userID] = ms
	m.mu.Unlock()

	if err := session.Reconcile(ctx); err != nil && !models.IsUnavailable(err) {
		return session, err
	}
	return session, nil
}

// Drop discards the user's session, typically on logout.
func (m *Manager) Drop(userID string) {
	m.mu.Lock()
	ms, ok := m.sessions[userID]
	if ok {
		delete(m.sessions, userID)
	}
	m.mu.Unlock()

	if ok && ms.dispatcher != nil {
		ms.dispatcher.Close()
	}
}

// Close drops every session.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*managedSession)
	m.mu.Unlock()

	for _, ms := range sessions {
		if ms.dispatcher != nil {
			ms.dispatcher.Close()
		}
	}
}
