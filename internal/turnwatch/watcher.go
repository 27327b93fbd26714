// internal/turnwatch/watcher.go
package turnwatch

import (
	"context"
	"errors"
	"time"

	"github.com/awesome-cap/hashmap"
	"github.com/jason-s-yu/uno/internal/room"
	"github.com/sirupsen/logrus"
)

// Rooms is the part of room.Service the watcher drives.
type Rooms interface {
	Get(ctx context.Context, code string) (*room.Room, int64, error)
	AutoPlay(ctx context.Context, code string, expected room.TurnMark) (int, error)
	Codes(ctx context.Context) ([]string, error)
}

// reseedEvery is how many sweeps pass between rescans of the store for rooms
// started by another instance.
const reseedEvery = 30

// Watcher takes the turn for players who let their turn clock run out. It
// keeps no timers of its own: each sweep re-reads the tracked rooms and acts
// on the turn the stored document says is current, so it is safe to run one
// per server instance.
type Watcher struct {
	rooms    Rooms
	logger   *logrus.Logger
	turn     time.Duration
	interval time.Duration
	now      func() time.Time

	tracked *hashmap.HashMap
}

func New(rooms Rooms, logger *logrus.Logger, turn, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = time.Second
	}
	return &Watcher{
		rooms:    rooms,
		logger:   logger,
		turn:     turn,
		interval: interval,
		now:      time.Now,
		tracked:  hashmap.New(),
	}
}

// Track starts watching code. Tracking a watched room is a no-op.
func (w *Watcher) Track(code string) {
	if _, ok := w.tracked.Get(code); ok {
		return
	}
	w.tracked.Set(code, code)
}

func (w *Watcher) Untrack(code string) {
	w.tracked.Del(code)
}

// Tracking reports whether code is watched.
func (w *Watcher) Tracking(code string) bool {
	_, ok := w.tracked.Get(code)
	return ok
}

// Seed tracks every stored room. Rooms that are not in play drop out again on
// the next sweep.
func (w *Watcher) Seed(ctx context.Context) (int, error) {
	codes, err := w.rooms.Codes(ctx)
	if err != nil {
		return 0, err
	}
	for _, code := range codes {
		w.Track(code)
	}
	return len(codes), nil
}

func (w *Watcher) reseed(ctx context.Context) {
	n, err := w.Seed(ctx)
	if err != nil {
		w.logger.Warnf("could not list rooms for the turn clock: %v", err)
		return
	}
	w.logger.WithField("rooms", n).Debug("turn clock seeded")
}

// Run seeds the tracked set, then sweeps every interval until ctx ends.
func (w *Watcher) Run(ctx context.Context) {
	if w.turn <= 0 {
		w.logger.Info("turn clock disabled")
		return
	}
	w.reseed(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for sweeps := 1; ; sweeps++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if sweeps%reseedEvery == 0 {
				w.reseed(ctx)
			}
			w.Sweep(ctx)
		}
	}
}

// Sweep checks every tracked room once and returns how many actions it took.
func (w *Watcher) Sweep(ctx context.Context) int {
	var codes []string
	w.tracked.Foreach(func(e *hashmap.Entry) {
		if code, ok := e.Value().(string); ok {
			codes = append(codes, code)
		}
	})

	total := 0
	for _, code := range codes {
		if ctx.Err() != nil {
			break
		}
		total += w.check(ctx, code)
	}
	return total
}

func (w *Watcher) check(ctx context.Context, code string) int {
	log := w.logger.WithField("room", code)

	r, _, err := w.rooms.Get(ctx, code)
	if errors.Is(err, room.ErrRoomNotFound) {
		w.Untrack(code)
		return 0
	}
	if err != nil {
		log.Warnf("turn check failed: %v", err)
		return 0
	}

	mark, ok := r.CurrentTurn()
	if !ok {
		// finished or back in the lobby; Track is called again on the next start
		w.Untrack(code)
		return 0
	}
	deadline := time.UnixMilli(mark.StartedAt).Add(w.turn)
	if w.now().Before(deadline) {
		return 0
	}

	steps, err := w.rooms.AutoPlay(ctx, code, mark)
	if err != nil {
		log.WithField("player", mark.Player).Warnf("auto play failed: %v", err)
	}
	return steps
}
