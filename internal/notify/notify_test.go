// internal/notify/notify_test.go
package notify

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jason-s-yu/uno/internal/game"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHubDelivers tests fan-out to every subscriber of a room, and only that room.
func TestHubDelivers(t *testing.T) {
	h := NewHub()
	ctx := context.Background()

	a, cancelA := h.Subscribe(ctx, "ROOM")
	defer cancelA()
	b, cancelB := h.Subscribe(ctx, "ROOM")
	defer cancelB()
	other, cancelOther := h.Subscribe(ctx, "ELSE")
	defer cancelOther()
	assert.Equal(t, 2, h.Subscribers("ROOM"))

	u := Update{Code: "ROOM", Version: 2, Event: &game.Event{Type: game.EventPlay, Player: "p1"}}
	require.NoError(t, h.Publish(ctx, "ROOM", u))

	assert.Equal(t, u, <-a)
	assert.Equal(t, u, <-b)
	select {
	case got := <-other:
		t.Fatalf("unexpected update for other room: %+v", got)
	default:
	}
}

// TestHubCancel tests that cancel and context end both close the channel.
func TestHubCancel(t *testing.T) {
	h := NewHub()

	ch, cancel := h.Subscribe(context.Background(), "ROOM")
	cancel()
	cancel()
	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, h.Subscribers("ROOM"))

	ctx, stop := context.WithCancel(context.Background())
	ch, _ = h.Subscribe(ctx, "ROOM")
	stop()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

// TestHubSlowSubscriberDoesNotBlock tests that a full buffer drops updates.
func TestHubSlowSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub()
	_, cancel := h.Subscribe(context.Background(), "ROOM")
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*4; i++ {
			_ = h.Publish(context.Background(), "ROOM", Update{Version: int64(i)})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

// TestRedisBus tests delivery through Redis pub/sub.
func TestRedisBus(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	bus := NewRedisBus(rdb, logrus.New())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, stop := bus.Subscribe(ctx, "ROOM")
	defer stop()

	want := Update{Code: "ROOM", Version: 7, Status: "playing", TurnNumber: 3, CurrentPlayer: "p2"}
	var got Update
	require.Eventually(t, func() bool {
		if err := bus.Publish(ctx, "ROOM", want); err != nil {
			return false
		}
		select {
		case got = <-ch:
			return true
		case <-time.After(20 * time.Millisecond):
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, want, got)

	stop()
	require.Eventually(t, func() bool {
		for {
			select {
			case _, ok := <-ch:
				if !ok {
					return true
				}
			default:
				return false
			}
		}
	}, time.Second, 10*time.Millisecond)
}
