package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(id, userID string, expired bool) *Session {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &Session{
		ID:        id,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
		History: []Message{
			{Role: RoleUser, Content: "hello", Timestamp: now},
			{Role: RoleAssistant, Content: "hi", Timestamp: now, AgentUsed: "hr", Metadata: map[string]interface{}{"agent_used": "hr"}},
		},
		Metadata:  map[string]interface{}{"channel": "web"},
		IsExpired: expired,
	}
}

// runStoreContract exercises the behavior every Store must share.
func runStoreContract(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("load missing", func(t *testing.T) {
		_, err := store.Load(ctx, "missing")
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("save and load", func(t *testing.T) {
		s := newTestSession("s1", "alice", false)
		require.NoError(t, store.Save(ctx, s))

		loaded, err := store.Load(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, "s1", loaded.ID)
		assert.Equal(t, "alice", loaded.UserID)
		assert.True(t, s.CreatedAt.Equal(loaded.CreatedAt))
		require.Len(t, loaded.History, 2)
		assert.Equal(t, RoleAssistant, loaded.History[1].Role)
		assert.Equal(t, "hr", loaded.History[1].AgentUsed)
		assert.Equal(t, "web", loaded.Metadata["channel"])
	})

	t.Run("save overwrites", func(t *testing.T) {
		s := newTestSession("s2", "bob", false)
		require.NoError(t, store.Save(ctx, s))

		s.History = append(s.History, Message{Role: RoleUser, Content: "again", Timestamp: time.Now()})
		require.NoError(t, store.Save(ctx, s))

		loaded, err := store.Load(ctx, "s2")
		require.NoError(t, err)
		assert.Len(t, loaded.History, 3)
	})

	t.Run("list filters", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, newTestSession("s3", "alice", true)))

		all, err := store.List(ctx, Filter{})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"s1", "s2", "s3"}, all)

		alice, err := store.List(ctx, ByUser("alice"))
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"s1", "s3"}, alice)

		active, err := store.List(ctx, ByExpired(false))
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"s1", "s2"}, active)

		expired := true
		both, err := store.List(ctx, Filter{UserID: strPtr("alice"), IsExpired: &expired})
		require.NoError(t, err)
		assert.Equal(t, []string{"s3"}, both)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "s3"))
		_, err := store.Load(ctx, "s3")
		assert.ErrorIs(t, err, ErrSessionNotFound)

		// absent ids are not an error
		assert.NoError(t, store.Delete(ctx, "s3"))
	})
}

func strPtr(s string) *string { return &s }

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	runStoreContract(t, store)
}

func TestMemoryStore_Isolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	s := newTestSession("iso", "", false)
	require.NoError(t, store.Save(ctx, s))

	s.History[0].Content = "mutated"
	s.Metadata["channel"] = "mutated"

	loaded, err := store.Load(ctx, "iso")
	require.NoError(t, err)
	assert.Equal(t, "hello", loaded.History[0].Content)
	assert.Equal(t, "web", loaded.Metadata["channel"])

	loaded.History = append(loaded.History, Message{Role: RoleUser, Content: "x"})
	again, err := store.Load(ctx, "iso")
	require.NoError(t, err)
	assert.Len(t, again.History, 2)
}

func TestFileStore(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()
	runStoreContract(t, store)
}

func TestFileStore_RejectsUnsafeIDs(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	for _, id := range []string{"", "../etc/passwd", "a/b", "a\\b", "a\x00b"} {
		err := store.Save(context.Background(), newTestSession(id, "", false))
		assert.ErrorIs(t, err, ErrInvalidSessionID, "id %q", id)
	}
}

func TestSQLiteStore(t *testing.T) {
	store, err := NewSQLiteStore(t.TempDir() + "/sessions.db")
	require.NoError(t, err)
	defer store.Close()
	runStoreContract(t, store)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := newRedisStore(client, time.Hour)
	defer store.Close()

	runStoreContract(t, store)
}

func TestRedisStore_TTL(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(context.Background(), RedisOptions{Addr: mr.Addr(), TTL: time.Hour})
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save(context.Background(), newTestSession("ttl", "", false)))
	assert.Equal(t, time.Hour, mr.TTL("session:ttl"))

	mr.FastForward(2 * time.Hour)
	_, err = store.Load(context.Background(), "ttl")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("EAP_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("EAP_TEST_POSTGRES_DSN not set")
	}
	require.NoError(t, Migrate(dsn))

	store, err := NewPostgresStore(context.Background(), dsn)
	require.NoError(t, err)
	defer store.Close()

	_, err = store.db.Exec(`DELETE FROM sessions`)
	require.NoError(t, err)
	runStoreContract(t, store)
}

func TestNewStore(t *testing.T) {
	ctx := context.Background()

	store, err := NewStore(ctx, StoreOptions{Backend: "memory"})
	require.NoError(t, err)
	assert.NotNil(t, store)

	store, err = NewStore(ctx, StoreOptions{Backend: "sqlite", Dir: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = NewStore(ctx, StoreOptions{Backend: "cassandra"})
	assert.Error(t, err)
}

func TestValidateID(t *testing.T) {
	assert.NoError(t, ValidateID("3f2b1c9e-0d7a-4a55-9d6e-1f0b2c3d4e5f"))
	assert.ErrorIs(t, ValidateID(""), ErrInvalidSessionID)
	assert.ErrorIs(t, ValidateID("sess*"), ErrInvalidSessionID)
}
