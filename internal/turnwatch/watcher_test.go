// internal/turnwatch/watcher_test.go
package turnwatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jason-s-yu/uno/internal/game"
	"github.com/jason-s-yu/uno/internal/room"
	"github.com/jason-s-yu/uno/internal/store"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func startedRoom(t *testing.T, svc *room.Service, code string) {
	t.Helper()
	ctx := context.Background()
	_, err := svc.Create(ctx, code, "a", "A")
	require.NoError(t, err)
	_, err = svc.Join(ctx, code, "b", "B")
	require.NoError(t, err)
	_, err = svc.Start(ctx, code, "a")
	require.NoError(t, err)
}

func newTestWatcher(t *testing.T) (*Watcher, *room.Service, *clock) {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	clk := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := room.NewService(store.NewMemory(), logger, room.WithClock(clk.Now))
	w := New(svc, logger, 30*time.Second, time.Second)
	w.now = clk.Now
	return w, svc, clk
}

// TestSweepActsOnExpiredTurns tests that only a turn past its clock is taken.
func TestSweepActsOnExpiredTurns(t *testing.T) {
	ctx := context.Background()
	w, svc, clk := newTestWatcher(t)
	startedRoom(t, svc, "ROOM")
	w.Track("ROOM")
	w.Track("ROOM")

	clk.Advance(10 * time.Second)
	assert.Zero(t, w.Sweep(ctx))

	clk.Advance(25 * time.Second)
	assert.Positive(t, w.Sweep(ctx))

	r, _, err := svc.Get(ctx, "ROOM")
	require.NoError(t, err)
	s, ok := r.State()
	require.True(t, ok)
	assert.Equal(t, "b", s.CurrentPlayer())
	require.NotNil(t, s.LastAction)
	assert.Equal(t, "a", s.LastAction.Player)
	assert.Contains(t, []game.EventType{game.EventDraw, game.EventPass}, s.LastAction.Type)
	assert.Equal(t, clk.Now().UnixMilli(), r.GameState.TurnStartedAt)

	// b's clock started just now
	assert.Zero(t, w.Sweep(ctx))
	assert.True(t, w.Tracking("ROOM"))
}

// TestSweepUntracksGoneAndIdleRooms tests that missing and waiting rooms drop out.
func TestSweepUntracksGoneAndIdleRooms(t *testing.T) {
	ctx := context.Background()
	w, svc, _ := newTestWatcher(t)

	w.Track("GONE")
	_, err := svc.Create(ctx, "LOBBY", "a", "A")
	require.NoError(t, err)
	w.Track("LOBBY")

	assert.Zero(t, w.Sweep(ctx))
	assert.False(t, w.Tracking("GONE"))
	assert.False(t, w.Tracking("LOBBY"))
}

// TestFreshWatcherFindsStartedRooms tests that a watcher that never saw Start,
// as after a restart, still takes a timed-out turn once seeded.
func TestFreshWatcherFindsStartedRooms(t *testing.T) {
	ctx := context.Background()
	_, svc, clk := newTestWatcher(t)
	startedRoom(t, svc, "ROOM")
	_, err := svc.Create(ctx, "LOBBY", "c", "C")
	require.NoError(t, err)

	logger, _ := logtest.NewNullLogger()
	w := New(svc, logger, 30*time.Second, time.Second)
	w.now = clk.Now
	assert.False(t, w.Tracking("ROOM"))

	n, err := w.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, w.Tracking("ROOM"))

	clk.Advance(10 * time.Minute)
	assert.Positive(t, w.Sweep(ctx))
	assert.True(t, w.Tracking("ROOM"))
	assert.False(t, w.Tracking("LOBBY"))

	r, _, err := svc.Get(ctx, "ROOM")
	require.NoError(t, err)
	s, ok := r.State()
	require.True(t, ok)
	assert.Equal(t, "b", s.CurrentPlayer())
}

// TestRunStopsWithContext tests the sweep loop lifecycle; the room is found by
// the initial seed.
func TestRunStopsWithContext(t *testing.T) {
	w, svc, clk := newTestWatcher(t)
	w.interval = 5 * time.Millisecond
	startedRoom(t, svc, "ROOM")
	clk.Advance(time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		r, _, err := svc.Get(context.Background(), "ROOM")
		if err != nil {
			return false
		}
		s, _ := r.State()
		return s.CurrentPlayer() == "b"
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}
