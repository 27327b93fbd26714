// internal/notify/notify.go
package notify

import (
	"context"
	"sync"

	"github.com/jason-s-yu/uno/internal/game"
)

// Update tells subscribers that a room document changed.
type Update struct {
	Code          string      `json:"code"`
	Version       int64       `json:"version"`
	Status        string      `json:"status"`
	TurnNumber    int         `json:"turnNumber"`
	CurrentPlayer string      `json:"currentPlayer,omitempty"`
	Event         *game.Event `json:"event,omitempty"`
}

// Bus publishes room updates and lets readers follow a room.
type Bus interface {
	Publish(ctx context.Context, code string, u Update) error
	// Subscribe returns a channel of updates for code. The channel is closed
	// once cancel is called or ctx ends.
	Subscribe(ctx context.Context, code string) (<-chan Update, func())
}

const subscriberBuffer = 16

// Hub is an in-process Bus. Delivery never blocks the publisher: a
// subscriber whose buffer is full misses the update and should re-read the
// room.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

type subscriber struct {
	ch   chan Update
	once sync.Once
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*subscriber]struct{})}
}

func (h *Hub) Publish(_ context.Context, code string, u Update) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[code] {
		select {
		case sub.ch <- u:
		default:
		}
	}
	return nil
}

func (h *Hub) Subscribe(ctx context.Context, code string) (<-chan Update, func()) {
	sub := &subscriber{ch: make(chan Update, subscriberBuffer)}

	h.mu.Lock()
	if h.subs[code] == nil {
		h.subs[code] = make(map[*subscriber]struct{})
	}
	h.subs[code][sub] = struct{}{}
	h.mu.Unlock()

	done := make(chan struct{})
	cancel := func() {
		sub.once.Do(func() {
			h.mu.Lock()
			delete(h.subs[code], sub)
			if len(h.subs[code]) == 0 {
				delete(h.subs, code)
			}
			close(sub.ch)
			h.mu.Unlock()
			close(done)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return sub.ch, cancel
}

// Subscribers returns how many readers follow code.
func (h *Hub) Subscribers(code string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[code])
}
