package connections

import (
	"context"
	"sort"
	"sync"
	"time"

	"tapcard/internal/feed"
	"tapcard/internal/models"

	"github.com/google/uuid"
)

// fakeStore is an in-memory backend shared by the fake repositories. Tests
// that exercise two users hand both sessions the same store, so each session
// observes the rows the other one writes.
type fakeStore struct {
	mu          sync.Mutex
	now         time.Time
	profiles    map[string]models.Profile
	requests    map[string]models.ConnectionRequest
	connections map[string]models.Connection
	pub         feed.Publisher

	failures map[string]error

	// requestListHook runs at the start of every ListForUser call, outside
	// the store lock, so tests can block a reconciliation pass mid-fetch.
	requestListHook  func()
	requestListCalls int

	connCreateCalls    int
	failConnCreateCall int
	connCreateErr      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		now:         time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		profiles:    make(map[string]models.Profile),
		requests:    make(map[string]models.ConnectionRequest),
		connections: make(map[string]models.Connection),
		failures:    make(map[string]error),
	}
}

// tick advances the store clock so every row gets a distinct timestamp.
// Callers hold s.mu.
func (s *fakeStore) tick() time.Time {
	s.now = s.now.Add(time.Second)
	return s.now
}

// fail makes the named operation return err until cleared with a nil err.
func (s *fakeStore) fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

func (s *fakeStore) failure(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures[op]
}

func (s *fakeStore) addProfile(name, email string) models.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := models.Profile{
		ID:        uuid.NewString(),
		FullName:  name,
		Email:     email,
		CreatedAt: s.tick(),
	}
	s.profiles[p.ID] = p
	return p
}

func (s *fakeStore) publish(event feed.Event) {
	if s.pub != nil {
		s.pub.Publish(event)
	}
}

func (s *fakeStore) listRequestCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requestListCalls
}

func (s *fakeStore) requestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *fakeStore) connectionsOwnedBy(ownerID string) []models.Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Connection
	for _, c := range s.connections {
		if c.OwnerUserID == ownerID {
			out = append(out, c)
		}
	}
	return out
}

type fakeRequests struct{ store *fakeStore }

func (f *fakeRequests) Create(ctx context.Context, request *models.ConnectionRequest) error {
	if err := f.store.failure("requests.Create"); err != nil {
		return err
	}
	f.store.mu.Lock()
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	request.CreatedAt = f.store.tick()
	request.UpdatedAt = request.CreatedAt
	f.store.requests[request.ID] = *request
	f.store.mu.Unlock()
	f.store.publish(feed.Event{
		Table:   feed.TableConnectionRequests,
		Type:    feed.EventInsert,
		RowID:   request.ID,
		UserIDs: []string{request.RequesterID, request.TargetID},
	})
	return nil
}

func (f *fakeRequests) GetByID(ctx context.Context, id string) (*models.ConnectionRequest, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	req, ok := f.store.requests[id]
	if !ok {
		return nil, models.NewNotFoundError("ConnectionRequest", id)
	}
	return &req, nil
}

func (f *fakeRequests) GetBetween(ctx context.Context, userID1, userID2 string) (*models.ConnectionRequest, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var newest *models.ConnectionRequest
	for id := range f.store.requests {
		req := f.store.requests[id]
		between := (req.RequesterID == userID1 && req.TargetID == userID2) ||
			(req.RequesterID == userID2 && req.TargetID == userID1)
		if !between {
			continue
		}
		if newest == nil || req.CreatedAt.After(newest.CreatedAt) {
			copied := req
			newest = &copied
		}
	}
	return newest, nil
}

func (f *fakeRequests) ListForUser(ctx context.Context, userID string) ([]models.ConnectionRequest, error) {
	f.store.mu.Lock()
	hook := f.store.requestListHook
	f.store.requestListCalls++
	f.store.mu.Unlock()
	if hook != nil {
		hook()
	}
	if err := f.store.failure("requests.ListForUser"); err != nil {
		return nil, err
	}

	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var out []models.ConnectionRequest
	for id := range f.store.requests {
		req := f.store.requests[id]
		if req.Involves(userID) {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (f *fakeRequests) UpdateStatus(ctx context.Context, requestID string, status models.RequestStatus) error {
	f.store.mu.Lock()
	req, ok := f.store.requests[requestID]
	if !ok {
		f.store.mu.Unlock()
		return models.NewNotFoundError("ConnectionRequest", requestID)
	}
	req.Status = status
	req.UpdatedAt = f.store.tick()
	f.store.requests[requestID] = req
	f.store.mu.Unlock()
	f.store.publish(feed.Event{
		Table:   feed.TableConnectionRequests,
		Type:    feed.EventUpdate,
		RowID:   requestID,
		UserIDs: []string{req.RequesterID, req.TargetID},
	})
	return nil
}

func (f *fakeRequests) Delete(ctx context.Context, requestID string) error {
	f.store.mu.Lock()
	req, ok := f.store.requests[requestID]
	if !ok {
		f.store.mu.Unlock()
		return nil
	}
	delete(f.store.requests, requestID)
	f.store.mu.Unlock()
	f.store.publish(feed.Event{
		Table:   feed.TableConnectionRequests,
		Type:    feed.EventDelete,
		RowID:   requestID,
		UserIDs: []string{req.RequesterID, req.TargetID},
	})
	return nil
}

type fakeConnections struct{ store *fakeStore }

func (f *fakeConnections) Create(ctx context.Context, connection *models.Connection) error {
	f.store.mu.Lock()
	f.store.connCreateCalls++
	if f.store.failConnCreateCall > 0 && f.store.connCreateCalls == f.store.failConnCreateCall {
		err := f.store.connCreateErr
		f.store.mu.Unlock()
		return err
	}
	if connection.ID == "" {
		connection.ID = uuid.NewString()
	}
	connection.CreatedAt = f.store.tick()
	f.store.connections[connection.ID] = *connection
	f.store.mu.Unlock()
	f.store.publish(feed.Event{
		Table:   feed.TableConnections,
		Type:    feed.EventInsert,
		RowID:   connection.ID,
		UserIDs: []string{connection.OwnerUserID},
	})
	return nil
}

func (f *fakeConnections) GetByID(ctx context.Context, ownerUserID, id string) (*models.Connection, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	conn, ok := f.store.connections[id]
	if !ok || conn.OwnerUserID != ownerUserID {
		return nil, models.NewNotFoundError("Connection", id)
	}
	return &conn, nil
}

func (f *fakeConnections) ListByOwner(ctx context.Context, ownerUserID string) ([]models.Connection, error) {
	if err := f.store.failure("connections.ListByOwner"); err != nil {
		return nil, err
	}
	return f.store.connectionsOwnedBy(ownerUserID), nil
}

func (f *fakeConnections) ListByCounterpartEmail(ctx context.Context, email string) ([]models.Connection, error) {
	if err := f.store.failure("connections.ListByCounterpartEmail"); err != nil {
		return nil, err
	}
	normalized := models.NormalizeEmail(email)
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var out []models.Connection
	for _, c := range f.store.connections {
		if c.CounterpartEmail != nil && models.NormalizeEmail(*c.CounterpartEmail) == normalized {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeConnections) ExistsByOwnerAndEmail(ctx context.Context, ownerUserID, email string) (bool, error) {
	normalized := models.NormalizeEmail(email)
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	for _, c := range f.store.connections {
		if c.OwnerUserID == ownerUserID && c.CounterpartEmail != nil &&
			models.NormalizeEmail(*c.CounterpartEmail) == normalized {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeConnections) UpdateNotes(ctx context.Context, ownerUserID, id, notes string) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	conn, ok := f.store.connections[id]
	if !ok || conn.OwnerUserID != ownerUserID {
		return models.NewNotFoundError("Connection", id)
	}
	conn.Notes = notes
	f.store.connections[id] = conn
	return nil
}

func (f *fakeConnections) Delete(ctx context.Context, ownerUserID, id string) error {
	f.store.mu.Lock()
	conn, ok := f.store.connections[id]
	if !ok || conn.OwnerUserID != ownerUserID {
		f.store.mu.Unlock()
		return models.NewNotFoundError("Connection", id)
	}
	delete(f.store.connections, id)
	f.store.mu.Unlock()
	f.store.publish(feed.Event{
		Table:   feed.TableConnections,
		Type:    feed.EventDelete,
		RowID:   id,
		UserIDs: []string{ownerUserID},
	})
	return nil
}

type fakeProfiles struct{ store *fakeStore }

func (f *fakeProfiles) Create(ctx context.Context, profile *models.Profile) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	f.store.profiles[profile.ID] = *profile
	return nil
}

func (f *fakeProfiles) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	if err := f.store.failure("profiles.GetByID"); err != nil {
		return nil, err
	}
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	p, ok := f.store.profiles[id]
	if !ok {
		return nil, models.NewNotFoundError("Profile", id)
	}
	return &p, nil
}

func (f *fakeProfiles) GetByEmail(ctx context.Context, email string) (*models.Profile, error) {
	normalized := models.NormalizeEmail(email)
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	for _, p := range f.store.profiles {
		if p.NormalizedEmail() == normalized {
			copied := p
			return &copied, nil
		}
	}
	return nil, models.NewNotFoundError("Profile", email)
}

func (f *fakeProfiles) GetByIDs(ctx context.Context, ids []string) (map[string]models.Profile, error) {
	if err := f.store.failure("profiles.GetByIDs"); err != nil {
		return nil, err
	}
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	out := make(map[string]models.Profile, len(ids))
	for _, id := range ids {
		if p, ok := f.store.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (f *fakeProfiles) Update(ctx context.Context, profile *models.Profile) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	f.store.profiles[profile.ID] = *profile
	return nil
}

func (f *fakeProfiles) Search(ctx context.Context, query string, limit int) ([]models.Profile, error) {
	return nil, nil
}

// fakeSink records notifications instead of persisting them.
type fakeSink struct {
	mu    sync.Mutex
	err   error
	notes []fakeNote
}

type fakeNote struct {
	userID  string
	kind    string
	title   string
	message string
	data    map[string]interface{}
}

func (f *fakeSink) Create(ctx context.Context, userID, kind, title, message string, data map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.notes = append(f.notes, fakeNote{userID: userID, kind: kind, title: title, message: message, data: data})
	return nil
}

func (f *fakeSink) byUser(userID string) []fakeNote {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []fakeNote
	for _, n := range f.notes {
		if n.userID == userID {
			out = append(out, n)
		}
	}
	return out
}

func newTestSession(store *fakeStore, userID string, sink NotificationSink) *Session {
	return NewSession(SessionConfig{
		UserID:        userID,
		Requests:      &fakeRequests{store: store},
		Connections:   &fakeConnections{store: store},
		Profiles:      &fakeProfiles{store: store},
		Notifications: sink,
		Timeout:       2 * time.Second,
	})
}
