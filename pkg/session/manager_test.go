package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	opts = append([]Option{WithLogger(zerolog.Nop())}, opts...)
	return NewManager(NewMemoryStore(), opts...)
}

// fakeClock is advanced manually by tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func TestManager_CreateUniqueIDs(t *testing.T) {
	m := setupTestManager(t)
	ctx := context.Background()

	seen := make(map[string]bool, 1000)
	for i := 0; i < 1000; i++ {
		s, err := m.Create(ctx, "")
		require.NoError(t, err)
		require.False(t, seen[s.ID], "duplicate id %s", s.ID)
		seen[s.ID] = true
	}
	assert.Len(t, seen, 1000)
}

func TestManager_CreatePersists(t *testing.T) {
	m := setupTestManager(t)
	ctx := context.Background()

	s, err := m.Create(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, s.History)
	assert.False(t, s.IsExpired)
	assert.Equal(t, s.CreatedAt, s.UpdatedAt)

	loaded, err := m.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", loaded.UserID)
}

func TestManager_GetMissing(t *testing.T) {
	m := setupTestManager(t)
	_, err := m.Get(context.Background(), "does-not-exist")
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}

func TestManager_Append(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	m := setupTestManager(t, WithClock(clock.Now))
	ctx := context.Background()

	s, err := m.Create(ctx, "")
	require.NoError(t, err)

	clock.Set(clock.Now().Add(time.Minute))
	_, err = m.Append(ctx, s, RoleUser, "Calculate the average salary", nil)
	require.NoError(t, err)
	assert.Len(t, s.History, 1)
	first := s.UpdatedAt

	clock.Set(clock.Now().Add(time.Minute))
	msg, err := m.Append(ctx, s, RoleAssistant, "The average is 85000", map[string]interface{}{"agent_used": "analytics"})
	require.NoError(t, err)
	assert.Equal(t, "analytics", msg.AgentUsed)
	assert.Len(t, s.History, 2)
	assert.True(t, s.UpdatedAt.After(first))

	loaded, err := m.Get(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, loaded.History, 2)
	assert.Equal(t, "analytics", loaded.History[1].AgentUsed)
}

func TestManager_AppendUpdatedAtNeverDecreases(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	m := setupTestManager(t, WithClock(clock.Now))
	ctx := context.Background()

	s, err := m.Create(ctx, "")
	require.NoError(t, err)
	before := s.UpdatedAt

	// clock steps backwards
	clock.Set(before.Add(-time.Hour))
	_, err = m.Append(ctx, s, RoleUser, "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, before, s.UpdatedAt)
}

func TestManager_AppendRejectsUnknownRole(t *testing.T) {
	m := setupTestManager(t)
	s, err := m.Create(context.Background(), "")
	require.NoError(t, err)

	_, err = m.Append(context.Background(), s, Role("tool"), "x", nil)
	assert.Error(t, err)
	assert.Empty(t, s.History)
}

type failingStore struct {
	*MemoryStore
	failSave bool
}

func (f *failingStore) Save(ctx context.Context, s *Session) error {
	if f.failSave {
		return errors.New("disk full")
	}
	return f.MemoryStore.Save(ctx, s)
}

func TestManager_AppendRollsBackOnSaveFailure(t *testing.T) {
	store := &failingStore{MemoryStore: NewMemoryStore()}
	m := NewManager(store, WithLogger(zerolog.Nop()))
	ctx := context.Background()

	s, err := m.Create(ctx, "")
	require.NoError(t, err)
	updated := s.UpdatedAt

	store.failSave = true
	_, err = m.Append(ctx, s, RoleUser, "hello", nil)
	assert.Error(t, err)
	assert.Empty(t, s.History)
	assert.Equal(t, updated, s.UpdatedAt)
}

func sessionWith(contents ...string) *Session {
	s := &Session{ID: "window"}
	for i, c := range contents {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		s.History = append(s.History, Message{Role: role, Content: c})
	}
	return s
}

func TestManager_BuildContext(t *testing.T) {
	m := setupTestManager(t)

	t.Run("empty history", func(t *testing.T) {
		assert.Equal(t, "", m.BuildContext(&Session{}, 1000))
	})

	t.Run("everything fits", func(t *testing.T) {
		s := sessionWith("hello", "hi there")
		assert.Equal(t, "USER: hello\nASSISTANT: hi there", m.BuildContext(s, 1000))
	})

	t.Run("drops oldest", func(t *testing.T) {
		// costs: 30, 30, 30 with overhead 20
		s := sessionWith(strings.Repeat("a", 10), strings.Repeat("b", 10), strings.Repeat("c", 10))
		got := m.BuildContext(s, 60)
		assert.Equal(t, "ASSISTANT: "+strings.Repeat("b", 10)+"\nUSER: "+strings.Repeat("c", 10), got)
	})

	t.Run("stops at first overflow", func(t *testing.T) {
		// an older small message is not picked up after a larger one overflows
		s := sessionWith("x", strings.Repeat("b", 100), "y")
		assert.Equal(t, "USER: y", m.BuildContext(s, 100))
	})

	t.Run("newest always kept", func(t *testing.T) {
		s := sessionWith("short", strings.Repeat("z", 500))
		assert.Equal(t, "ASSISTANT: "+strings.Repeat("z", 500), m.BuildContext(s, 10))
	})
}

func TestManager_BuildContextIsSuffix(t *testing.T) {
	m := setupTestManager(t)
	var contents []string
	for i := 0; i < 50; i++ {
		contents = append(contents, strings.Repeat("m", i*7%40+1))
	}
	s := sessionWith(contents...)

	for _, budget := range []int{0, 10, 50, 200, 700, 5000} {
		kept := slidingWindow(s.History, float64(budget), charCost(DefaultMessageOverhead))
		require.NotEmpty(t, kept)
		assert.Equal(t, s.History[len(s.History)-len(kept):], kept, "budget %d", budget)

		lines := strings.Split(m.BuildContext(s, budget), "\n")
		assert.Len(t, lines, len(kept))
	}
}

func TestManager_BuildContextTokens(t *testing.T) {
	m := setupTestManager(t)
	s := sessionWith(strings.Repeat("a", 40), strings.Repeat("b", 40), strings.Repeat("c", 40))

	// 40 chars + 20 overhead = 15 tokens each at 4 chars/token
	assert.Equal(t, m.BuildContext(s, 120), m.BuildContextTokens(s, 30))
	assert.Equal(t, 2, strings.Count(m.BuildContextTokens(s, 30), "\n")+1)
}

func TestManager_BuildContextTokensOverheadUsesEstimatorRatio(t *testing.T) {
	m := setupTestManager(t, WithEstimator(CharEstimator{CharsPerToken: 2}))
	s := sessionWith(strings.Repeat("a", 40), strings.Repeat("b", 40), strings.Repeat("c", 40))

	// (40 + 20) chars at 2 chars/token = 30 tokens each
	assert.Equal(t, "ASSISTANT: "+strings.Repeat("b", 40)+"\nUSER: "+strings.Repeat("c", 40), m.BuildContextTokens(s, 60))
	assert.Equal(t, "USER: "+strings.Repeat("c", 40), m.BuildContextTokens(s, 55))
}

func TestManager_WindowTokens(t *testing.T) {
	m := setupTestManager(t)
	s := sessionWith(strings.Repeat("a", 40), strings.Repeat("b", 40), strings.Repeat("c", 40))

	window := m.WindowTokens(s, 30)
	require.Len(t, window, 2)
	assert.Equal(t, strings.Repeat("b", 40), window[0].Content)
	assert.Equal(t, strings.Repeat("c", 40), window[1].Content)

	window[0].Content = "changed"
	assert.Equal(t, strings.Repeat("b", 40), s.History[1].Content)

	// the newest message survives any budget
	assert.Len(t, m.WindowTokens(s, 1), 1)
	assert.Empty(t, m.WindowTokens(&Session{}, 100))
}

type fixedEstimator struct{ perMessage float64 }

func (f fixedEstimator) EstimateTokens(string) float64 { return f.perMessage }

func TestManager_WithEstimator(t *testing.T) {
	m := setupTestManager(t, WithEstimator(fixedEstimator{perMessage: 10}), WithMessageOverhead(0))
	s := sessionWith("a", "b", "c", "d")
	assert.Equal(t, "ASSISTANT: b\nUSER: c\nASSISTANT: d", m.BuildContextTokens(s, 30))
}

func TestManager_HistoryAndLastAgent(t *testing.T) {
	m := setupTestManager(t)
	ctx := context.Background()

	s, err := m.Create(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "", m.LastAgentUsed(s))

	_, _ = m.Append(ctx, s, RoleUser, "q1", nil)
	_, _ = m.Append(ctx, s, RoleAssistant, "a1", map[string]interface{}{"agent_used": "hr"})
	_, _ = m.Append(ctx, s, RoleUser, "q2", nil)
	assert.Equal(t, "hr", m.LastAgentUsed(s))

	_, _ = m.Append(ctx, s, RoleAssistant, "a2", map[string]interface{}{"agent_used": "document"})
	assert.Equal(t, "document", m.LastAgentUsed(s))

	last := m.History(s, 2)
	require.Len(t, last, 2)
	assert.Equal(t, "q2", last[0].Content)
	assert.Len(t, m.History(s, 0), 4)

	last[0].Content = "changed"
	assert.Equal(t, "q2", s.History[2].Content)
}

func TestManager_ExpireStale(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := setupTestManager(t, WithClock(clock.Now))
	ctx := context.Background()

	old, err := m.Create(ctx, "")
	require.NoError(t, err)

	clock.Set(clock.Now().Add(47 * time.Hour))
	fresh, err := m.Create(ctx, "")
	require.NoError(t, err)

	clock.Set(clock.Now().Add(2 * time.Hour))
	n, err := m.ExpireStale(ctx, 24)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	loaded, err := m.Get(ctx, old.ID)
	require.NoError(t, err)
	assert.True(t, loaded.IsExpired)

	loaded, err = m.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.False(t, loaded.IsExpired)

	// already expired sessions are not counted twice and nothing is deleted
	n, err = m.ExpireStale(ctx, 24)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	ids, err := m.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}

func TestManager_Delete(t *testing.T) {
	m := setupTestManager(t)
	ctx := context.Background()

	s, err := m.Create(ctx, "")
	require.NoError(t, err)
	require.NoError(t, m.Delete(ctx, s.ID))

	_, err = m.Get(ctx, s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManager_LockSerializes(t *testing.T) {
	m := setupTestManager(t, WithSessionLocking(true))
	ctx := context.Background()

	s, err := m.Create(ctx, "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := m.Lock(s.ID)
			defer unlock()

			current, err := m.Get(ctx, s.ID)
			if !assert.NoError(t, err) {
				return
			}
			_, err = m.Append(ctx, current, RoleUser, "hi", nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	loaded, err := m.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.History, 20)
	assert.Equal(t, 0, m.locks.len())
}

func TestManager_LockDisabled(t *testing.T) {
	m := setupTestManager(t)
	unlock := m.Lock("any")
	unlock()
	unlock()
}
