package session

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/stretchr/testify/require"

	"github.com/Laisky/topic-news/internal/news"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setupTestStore(t *testing.T, table string) (*Store, *fakeClock) {
	db, err := sql.Open("sqlite3", "file::memory:?cache=shared")
	require.NoError(t, err, "failed to connect to in-memory db")
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})

	clock := &fakeClock{now: time.Date(2024, 5, 8, 0, 0, 0, 0, time.UTC)}
	store, err := New(db, WithTableName(table), WithTTL(time.Hour), WithClock(clock.Now))
	require.NoError(t, err, "failed to create session store")
	return store, clock
}

func TestSaveAndLoad(t *testing.T) {
	store, _ := setupTestStore(t, "test_sessions_save")
	ctx := context.Background()

	id := NewID()
	creds := news.Credentials{LLMAPIKey: "sk-1", SearchAPIKey: "serper-1"}
	require.NoError(t, store.Save(ctx, id, creds))

	got, err := store.Load(ctx, id)
	require.NoError(t, err)
	require.Equal(t, creds, got)

	creds.SearchAPIKey = "serper-2"
	require.NoError(t, store.Save(ctx, id, creds))
	got, err = store.Load(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "serper-2", got.SearchAPIKey)
}

func TestSessionExpiration(t *testing.T) {
	store, clock := setupTestStore(t, "test_sessions_ttl")
	ctx := context.Background()

	id := NewID()
	require.NoError(t, store.Save(ctx, id, news.Credentials{LLMAPIKey: "a", SearchAPIKey: "b"}))

	clock.Advance(30 * time.Minute)
	_, err := store.Load(ctx, id)
	require.NoError(t, err)

	clock.Advance(31 * time.Minute)
	_, err = store.Load(ctx, id)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestPurgeExpiredAndDelete(t *testing.T) {
	store, clock := setupTestStore(t, "test_sessions_purge")
	ctx := context.Background()

	oldID, newID := NewID(), NewID()
	require.NoError(t, store.Save(ctx, oldID, news.Credentials{LLMAPIKey: "old"}))
	clock.Advance(50 * time.Minute)
	require.NoError(t, store.Save(ctx, newID, news.Credentials{LLMAPIKey: "new"}))
	clock.Advance(20 * time.Minute)

	n, err := store.PurgeExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	_, err = store.Load(ctx, newID)
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, newID))
	_, err = store.Load(ctx, newID)
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestStoreRejectsBadInput(t *testing.T) {
	store, _ := setupTestStore(t, "test_sessions_bad")

	require.Error(t, store.Save(context.Background(), "not-a-uuid", news.Credentials{}))

	_, err := New(nil)
	require.Error(t, err)

	db, err := sql.Open("sqlite3", "file::memory:?cache=shared")
	require.NoError(t, err)
	defer db.Close()
	_, err = New(db, WithTableName("bad; DROP TABLE x"))
	require.Error(t, err)
	_, err = New(db, WithTTL(0))
	require.Error(t, err)
}
