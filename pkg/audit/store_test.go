package audit

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestTrail(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	store := NewStore(db)
	require.NoError(t, store.AutoMigrate())
	return store
}

func appendEvent(t *testing.T, store *Store, actor, action string, age time.Duration) {
	t.Helper()
	require.NoError(t, store.Append(&Event{
		ID:         uuid.New().String(),
		Actor:      actor,
		Action:     action,
		Outcome:    "success",
		StatusCode: 200,
		CreatedAt:  time.Now().Add(-age),
	}))
}

func TestStore_ListByActor(t *testing.T) {
	store := newTestTrail(t)
	appendEvent(t, store, "alice", "publish", 0)
	appendEvent(t, store, "alice", "delete", 0)
	appendEvent(t, store, "bob", "publish", 0)

	events, err := store.List(Filter{Actor: "alice"}, 0)
	require.NoError(t, err)
	assert.Len(t, events, 2)
	for _, e := range events {
		assert.Equal(t, "alice", e.Actor)
	}
}

func TestStore_ListByAction(t *testing.T) {
	store := newTestTrail(t)
	appendEvent(t, store, "alice", "publish", 0)
	appendEvent(t, store, "alice", "key.create", 0)

	events, err := store.List(Filter{Actor: "alice", Action: "key.create"}, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "key.create", events[0].Action)
}

func TestStore_ListNewestFirst(t *testing.T) {
	store := newTestTrail(t)
	appendEvent(t, store, "alice", "publish", time.Hour)
	appendEvent(t, store, "alice", "delete", 0)

	events, err := store.List(Filter{}, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "delete", events[0].Action)
}

func TestStore_ListLimit(t *testing.T) {
	store := newTestTrail(t)
	for i := 0; i < 5; i++ {
		appendEvent(t, store, "alice", "publish", 0)
	}

	events, err := store.List(Filter{}, 3)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestStore_ListLimitClampedToMax(t *testing.T) {
	store := newTestTrail(t)
	for i := 0; i < 505; i++ {
		appendEvent(t, store, "alice", "publish", 0)
	}

	events, err := store.List(Filter{}, 10000)
	require.NoError(t, err)
	assert.Len(t, events, 500)
}

func TestStore_DeleteOlderThan(t *testing.T) {
	store := newTestTrail(t)
	appendEvent(t, store, "alice", "publish", 48*time.Hour)
	appendEvent(t, store, "alice", "publish", 0)

	removed, err := store.DeleteOlderThan(time.Now().Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	events, err := store.List(Filter{}, 0)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
