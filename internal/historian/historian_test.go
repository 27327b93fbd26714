// internal/historian/historian_test.go
package historian

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/cache"
	"github.com/redis/go-redis/v9"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	mu        sync.Mutex
	batches   [][]cache.ActionRecord
	abandoned []uuid.UUID
	failNext  int
}

func (f *fakeSink) Flush(_ context.Context, records []cache.ActionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext > 0 {
		f.failNext--
		return errors.New("db unavailable")
	}
	f.batches = append(f.batches, append([]cache.ActionRecord(nil), records...))
	return nil
}

func (f *fakeSink) MarkAbandoned(_ context.Context, gameID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.abandoned = append(f.abandoned, gameID)
	return nil
}

func (f *fakeSink) flushed() []cache.ActionRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []cache.ActionRecord
	for _, b := range f.batches {
		out = append(out, b...)
	}
	return out
}

func newTestHistorian(t *testing.T, cfg Config) (*Service, *fakeSink, *cache.Publisher) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	logger, _ := logtest.NewNullLogger()
	sink := &fakeSink{}
	return New(rdb, sink, logger, cfg), sink, cache.NewPublisher(rdb, cfg.Queue)
}

func record(gameID uuid.UUID, idx int64, typ string) cache.ActionRecord {
	return cache.ActionRecord{
		ID:          uuid.New(),
		GameID:      gameID,
		RoomCode:    "ROOM",
		ActionIndex: idx,
		ActorID:     "p1",
		ActionType:  typ,
		Timestamp:   time.Now().UnixMilli(),
	}
}

// TestDrainsQueue tests that published records reach the sink in order and
// that a full batch is written without waiting for the flush tick.
func TestDrainsQueue(t *testing.T) {
	svc, sink, pub := newTestHistorian(t, Config{BatchSize: 2, FlushDelay: time.Hour, PopTimeout: time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()

	gameID := uuid.New()
	want := []cache.ActionRecord{record(gameID, 2, "play"), record(gameID, 3, "draw")}
	for _, rec := range want {
		require.NoError(t, pub.PublishAction(ctx, rec))
	}

	require.Eventually(t, func() bool { return len(sink.flushed()) == 2 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, want, sink.flushed())

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("historian did not stop")
	}
}

// TestRunFlushesOnStop tests that a partial batch is written at shutdown.
func TestRunFlushesOnStop(t *testing.T) {
	svc, sink, pub := newTestHistorian(t, Config{BatchSize: 50, FlushDelay: time.Hour, PopTimeout: time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()

	rec := record(uuid.New(), 2, "play")
	require.NoError(t, pub.PublishAction(ctx, rec))
	require.Eventually(t, func() bool {
		svc.batchMu.Lock()
		defer svc.batchMu.Unlock()
		return len(svc.batch) == 1
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	<-done
	assert.Equal(t, []cache.ActionRecord{rec}, sink.flushed())
}

// TestFlushDoesNotWaitForPop tests that a partial batch is written on the
// flush tick while the reader is blocked on an empty queue.
func TestFlushDoesNotWaitForPop(t *testing.T) {
	svc, sink, pub := newTestHistorian(t, Config{BatchSize: 50, FlushDelay: 20 * time.Millisecond, PopTimeout: 5 * time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx)

	rec := record(uuid.New(), 2, "play")
	require.NoError(t, pub.PublishAction(ctx, rec))

	// the reader is back in a 5s pop long before this deadline
	require.Eventually(t, func() bool { return len(sink.flushed()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []cache.ActionRecord{rec}, sink.flushed())
}

// TestFailedFlushIsRetried tests that a batch the sink refused is kept.
func TestFailedFlushIsRetried(t *testing.T) {
	svc, sink, _ := newTestHistorian(t, Config{BatchSize: 10})
	sink.failNext = 1
	ctx := context.Background()

	rec := record(uuid.New(), 2, "play")
	svc.appendToBatch(ctx, rec)
	svc.flush(ctx)
	assert.Empty(t, sink.flushed())

	svc.flush(ctx)
	assert.Equal(t, []cache.ActionRecord{rec}, sink.flushed())

	svc.flush(ctx)
	assert.Len(t, sink.batches, 1)
}

// TestSweepInactive tests that idle games are abandoned once and finished
// games are not.
func TestSweepInactive(t *testing.T) {
	svc, sink, _ := newTestHistorian(t, Config{Inactivity: time.Minute})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	ctx := context.Background()

	idle, active, won := uuid.New(), uuid.New(), uuid.New()
	svc.track(record(idle, 2, "play"))
	svc.track(record(won, 2, "play"))
	svc.track(record(won, 3, "win"))

	now = now.Add(50 * time.Second)
	svc.track(record(active, 2, "draw"))
	assert.Zero(t, svc.sweepInactive(ctx))

	now = now.Add(30 * time.Second)
	assert.Equal(t, 1, svc.sweepInactive(ctx))
	assert.Equal(t, []uuid.UUID{idle}, sink.abandoned)

	assert.Zero(t, svc.sweepInactive(ctx))
}
