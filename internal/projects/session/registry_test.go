package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wizdm/studio-backend/internal/auth"
	"github.com/wizdm/studio-backend/internal/database"
	"github.com/wizdm/studio-backend/internal/database/memory"
	"github.com/wizdm/studio-backend/internal/projects/service"
)

func newFactory() Factory {
	store := database.New(memory.New())
	return func(identity auth.Identity) *service.ProjectService {
		return service.NewProjectService(store, identity)
	}
}

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
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestRegistry_OneServicePerSession(t *testing.T) {
	r := NewRegistry(newFactory())

	a1, err := r.Acquire("u1", "tab-a")
	require.NoError(t, err)
	a2, err := r.Acquire("u1", "tab-a")
	require.NoError(t, err)
	b, err := r.Acquire("u1", "tab-b")
	require.NoError(t, err)
	other, err := r.Acquire("u2", "tab-a")
	require.NoError(t, err)

	assert.Same(t, a1, a2)
	assert.NotSame(t, a1, b)
	assert.NotSame(t, a1, other)
	assert.Equal(t, "u2", other.UserID())
	assert.Equal(t, 3, r.Len())

	def, err := r.Acquire("u1", "")
	require.NoError(t, err)
	again, err := r.Acquire("u1", DefaultSessionID)
	require.NoError(t, err)
	assert.Same(t, def, again)
}

func TestRegistry_RateLimit(t *testing.T) {
	r := NewRegistry(newFactory(), WithRate(0.001, 2))

	_, err := r.Acquire("u1", "s")
	require.NoError(t, err)
	_, err = r.Acquire("u1", "s")
	require.NoError(t, err)
	_, err = r.Acquire("u1", "s")
	assert.ErrorIs(t, err, ErrRateLimited)

	_, err = r.Acquire("u1", "other")
	assert.NoError(t, err, "limits are per session")
}

func TestRegistry_Sweep(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	r := NewRegistry(newFactory(), withClock(clock.Now))

	_, err := r.Acquire("u1", "old")
	require.NoError(t, err)
	clock.Advance(20 * time.Minute)
	_, err = r.Acquire("u1", "fresh")
	require.NoError(t, err)
	clock.Advance(15 * time.Minute)

	assert.Equal(t, 1, r.Sweep(30*time.Minute))
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, 0, r.Sweep(30*time.Minute))
}

func TestStartSweeper(t *testing.T) {
	r := NewRegistry(newFactory())

	_, err := StartSweeper(r, "not a spec", time.Minute)
	assert.Error(t, err)

	s, err := StartSweeper(r, "@every 1h", time.Minute)
	require.NoError(t, err)
	s.Stop()
}
