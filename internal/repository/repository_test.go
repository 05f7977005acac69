package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"tapcard/internal/feed"
	"tapcard/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// capturePub records published feed events for assertions.
type capturePub struct {
	mu     sync.Mutex
	events []feed.Event
}

func (p *capturePub) Publish(event feed.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *capturePub) all() []feed.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]feed.Event, len(p.events))
	copy(out, p.events)
	return out
}

func (p *capturePub) last(t *testing.T) feed.Event {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotEmpty(t, p.events)
	return p.events[len(p.events)-1]
}

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Profile{},
		&models.ConnectionRequest{},
		&models.Connection{},
		&models.Notification{},
	))
	return db
}

func mkProfile(t *testing.T, db *gorm.DB, name, email string) models.Profile {
	t.Helper()
	p := models.Profile{FullName: name, Email: email, PasswordHash: "x"}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func TestRequestRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	pub := &capturePub{}
	repo := NewRequestRepository(db, pub)

	alice := mkProfile(t, db, "Alice", "alice@example.com")
	bob := mkProfile(t, db, "Bob", "bob@example.com")

	request := &models.ConnectionRequest{
		RequesterID: alice.ID,
		TargetID:    bob.ID,
		Status:      models.RequestStatusPending,
	}
	require.NoError(t, repo.Create(ctx, request))
	require.NotEmpty(t, request.ID)

	event := pub.last(t)
	assert.Equal(t, feed.TableConnectionRequests, event.Table)
	assert.Equal(t, feed.EventInsert, event.Type)
	assert.ElementsMatch(t, []string{alice.ID, bob.ID}, event.UserIDs)

	loaded, err := repo.GetByID(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", loaded.Requester.FullName)
	assert.Equal(t, "Bob", loaded.Target.FullName)

	// GetBetween is direction-agnostic.
	between, err := repo.GetBetween(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, between)
	assert.Equal(t, request.ID, between.ID)

	none, err := repo.GetBetween(ctx, alice.ID, uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, none)

	require.NoError(t, repo.UpdateStatus(ctx, request.ID, models.RequestStatusAccepted))
	event = pub.last(t)
	assert.Equal(t, feed.EventUpdate, event.Type)
	loaded, err = repo.GetByID(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusAccepted, loaded.Status)

	require.NoError(t, repo.Delete(ctx, request.ID))
	event = pub.last(t)
	assert.Equal(t, feed.EventDelete, event.Type)

	// Deleting again is a silent no-op and publishes nothing.
	seen := len(pub.all())
	require.NoError(t, repo.Delete(ctx, request.ID))
	assert.Len(t, pub.all(), seen)
}

func TestRequestRepositoryListNewestFirst(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	repo := NewRequestRepository(db, nil)

	alice := mkProfile(t, db, "Alice", "alice@example.com")
	bob := mkProfile(t, db, "Bob", "bob@example.com")
	carol := mkProfile(t, db, "Carol", "carol@example.com")

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	old := &models.ConnectionRequest{
		RequesterID: alice.ID, TargetID: bob.ID,
		Status: models.RequestStatusDeclined, CreatedAt: base,
	}
	fresh := &models.ConnectionRequest{
		RequesterID: carol.ID, TargetID: alice.ID,
		Status: models.RequestStatusPending, CreatedAt: base.Add(time.Hour),
	}
	require.NoError(t, repo.Create(ctx, old))
	require.NoError(t, repo.Create(ctx, fresh))

	listed, err := repo.ListForUser(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, fresh.ID, listed[0].ID)
	assert.Equal(t, old.ID, listed[1].ID)

	// Bob only sees the request that involves him.
	listed, err = repo.ListForUser(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, old.ID, listed[0].ID)
}

func TestRequestRepositoryUpdateStatusMissing(t *testing.T) {
	db := setupDB(t)
	repo := NewRequestRepository(db, nil)

	err := repo.UpdateStatus(context.Background(), uuid.NewString(), models.RequestStatusAccepted)
	assert.True(t, models.IsNotFound(err))
}

func TestConnectionRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	pub := &capturePub{}
	repo := NewConnectionRepository(db, pub)

	alice := mkProfile(t, db, "Alice", "alice@example.com")
	bob := mkProfile(t, db, "Bob", "Bob@Example.com")

	conn := models.NewConnectionFromProfile(alice.ID, &bob)
	require.NoError(t, repo.Create(ctx, conn))
	require.NotEmpty(t, conn.ID)

	event := pub.last(t)
	assert.Equal(t, feed.TableConnections, event.Table)
	assert.Equal(t, []string{alice.ID}, event.UserIDs)

	// Email comparison is case-insensitive; the stored snapshot is already
	// normalized.
	exists, err := repo.ExistsByOwnerAndEmail(ctx, alice.ID, "BOB@example.com")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = repo.ExistsByOwnerAndEmail(ctx, bob.ID, "bob@example.com")
	require.NoError(t, err)
	assert.False(t, exists)

	reverse, err := repo.ListByCounterpartEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	require.Len(t, reverse, 1)
	assert.Equal(t, alice.ID, reverse[0].OwnerUserID)

	require.NoError(t, repo.UpdateNotes(ctx, alice.ID, conn.ID, "met at gophercon"))
	loaded, err := repo.GetByID(ctx, alice.ID, conn.ID)
	require.NoError(t, err)
	assert.Equal(t, "met at gophercon", loaded.Notes)

	// Ownership is enforced on every per-row operation.
	err = repo.UpdateNotes(ctx, bob.ID, conn.ID, "nope")
	assert.True(t, models.IsNotFound(err))
	_, err = repo.GetByID(ctx, bob.ID, conn.ID)
	assert.True(t, models.IsNotFound(err))
	err = repo.Delete(ctx, bob.ID, conn.ID)
	assert.True(t, models.IsNotFound(err))

	require.NoError(t, repo.Delete(ctx, alice.ID, conn.ID))
	event = pub.last(t)
	assert.Equal(t, feed.EventDelete, event.Type)

	owned, err := repo.ListByOwner(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, owned)
}

func TestProfileRepository(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	repo := NewProfileRepository(db)

	alice := mkProfile(t, db, "Alice Smith", "alice@example.com")
	bob := mkProfile(t, db, "Bob Jones", "bob@example.com")
	require.NoError(t, db.Model(&models.Profile{}).
		Where("id = ?", bob.ID).Update("company", "Acme Corp").Error)

	byEmail, err := repo.GetByEmail(ctx, "  ALICE@example.com ")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byEmail.ID)

	_, err = repo.GetByEmail(ctx, "nobody@example.com")
	assert.True(t, models.IsNotFound(err))

	// Missing ids are simply absent, never an error.
	byIDs, err := repo.GetByIDs(ctx, []string{alice.ID, uuid.NewString()})
	require.NoError(t, err)
	require.Len(t, byIDs, 1)
	assert.Equal(t, "Alice Smith", byIDs[alice.ID].FullName)

	empty, err := repo.GetByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	found, err := repo.Search(ctx, "ACME", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, bob.ID, found[0].ID)

	found, err = repo.Search(ctx, "smith", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, alice.ID, found[0].ID)
}

func TestNotificationRepository(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	pub := &capturePub{}
	repo := NewNotificationRepository(db, pub)

	alice := mkProfile(t, db, "Alice", "alice@example.com")
	bob := mkProfile(t, db, "Bob", "bob@example.com")

	first := &models.Notification{
		UserID: alice.ID, Kind: models.NotificationKindNewConnection,
		Title: "New connection request", CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	second := &models.Notification{
		UserID: alice.ID, Kind: models.NotificationKindRequestAccepted,
		Title: "Connection accepted", CreatedAt: time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	event := pub.last(t)
	assert.Equal(t, feed.TableNotifications, event.Table)
	assert.Equal(t, []string{alice.ID}, event.UserIDs)

	listed, err := repo.ListForUser(ctx, alice.ID, 10)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, second.ID, listed[0].ID)

	listed, err = repo.ListForUser(ctx, alice.ID, 1)
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	// Only the owner can mark a notification read.
	err = repo.MarkRead(ctx, bob.ID, first.ID)
	assert.True(t, models.IsNotFound(err))
	require.NoError(t, repo.MarkRead(ctx, alice.ID, first.ID))

	require.NoError(t, repo.MarkAllRead(ctx, alice.ID))
	listed, err = repo.ListForUser(ctx, alice.ID, 10)
	require.NoError(t, err)
	for _, n := range listed {
		assert.True(t, n.Read)
	}
}
