// internal/room/service.go
package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/cache"
	"github.com/jason-s-yu/uno/internal/game"
	"github.com/jason-s-yu/uno/internal/notify"
	"github.com/jason-s-yu/uno/internal/store"
	"github.com/sirupsen/logrus"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomExists   = errors.New("room already exists")
	// ErrUnavailable means the store could not be reached or kept conflicting;
	// the room's last committed state is intact and the caller may resubmit.
	ErrUnavailable = errors.New("could not complete action, try again")
)

// DefaultMaxAttempts bounds the read-transition-write cycles of one call.
const DefaultMaxAttempts = 25

// ActionPublisher receives a record of every committed action.
type ActionPublisher interface {
	PublishAction(ctx context.Context, record cache.ActionRecord) error
}

// ResultRecorder persists the outcome of a finished game.
type ResultRecorder interface {
	RecordGameResults(ctx context.Context, gameID uuid.UUID, code string, scores map[string]int, winner string) error
}

// Service is the only writer of room documents. Every mutation is a pure
// function of the freshly read document, committed with a compare-and-swap
// on the version it was read at and recomputed from scratch on conflict.
type Service struct {
	store       store.Store
	engine      *game.Engine
	logger      *logrus.Logger
	maxAttempts int
	maxPlayers  int
	now         func() time.Time
	pickColor   func() game.Color

	publisher ActionPublisher
	bus       notify.Bus
	results   ResultRecorder
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

func WithEngine(e *game.Engine) ServiceOption {
	return func(s *Service) { s.engine = e }
}

func WithMaxAttempts(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func WithMaxPlayers(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.maxPlayers = n
		}
	}
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithColorPicker sets how timed-out color choices are made.
func WithColorPicker(pick func() game.Color) ServiceOption {
	return func(s *Service) { s.pickColor = pick }
}

func WithPublisher(p ActionPublisher) ServiceOption {
	return func(s *Service) { s.publisher = p }
}

func WithBus(b notify.Bus) ServiceOption {
	return func(s *Service) { s.bus = b }
}

func WithResultRecorder(r ResultRecorder) ServiceOption {
	return func(s *Service) { s.results = r }
}

// NewService builds a Service over st.
func NewService(st store.Store, logger *logrus.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		store:       st,
		engine:      game.NewEngine(),
		logger:      logger,
		maxAttempts: DefaultMaxAttempts,
		maxPlayers:  DefaultMaxPlayers,
		now:         time.Now,
		pickColor: func() game.Color {
			return game.PlayableColors[rand.IntN(len(game.PlayableColors))]
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Engine returns the rules engine the service applies.
func (s *Service) Engine() *game.Engine {
	return s.engine
}

// mutation computes the replacement for a freshly read room. It must not
// modify r and must not have side effects; it may run several times.
// Returning a nil room deletes the room instead.
type mutation func(r *Room) (*Room, *game.Event, error)

type commit struct {
	previous *Room
	room     *Room
	event    *game.Event
	version  int64
	deleted  bool
}

func (s *Service) mutate(ctx context.Context, code, op string, fn mutation) (commit, error) {
	log := s.logger.WithFields(logrus.Fields{"room": code, "action": op})

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		rec, err := s.store.Load(ctx, code)
		if err != nil {
			return commit{}, s.storeError(log, err)
		}
		current, err := Decode(rec.Data)
		if err != nil {
			log.WithField("version", rec.Version).Errorf("unreadable room document: %v", err)
			return commit{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}

		next, ev, err := fn(current)
		if err != nil {
			return commit{}, err
		}
		if next == current {
			return commit{previous: current, room: current, event: ev, version: rec.Version}, nil
		}

		var version int64
		if next == nil {
			err = s.store.Delete(ctx, code, rec.Version)
		} else {
			var data []byte
			if data, err = Encode(next); err != nil {
				return commit{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
			}
			version, err = s.store.CompareAndSwap(ctx, code, rec.Version, data)
		}
		if errors.Is(err, store.ErrConflict) {
			log.WithFields(logrus.Fields{"attempt": attempt, "version": rec.Version}).Debug("room changed underneath us, retrying")
			if err := s.backoff(ctx, attempt); err != nil {
				return commit{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
			}
			continue
		}
		if err != nil {
			return commit{}, s.storeError(log, err)
		}

		if next == nil {
			log.WithFields(logrus.Fields{"attempt": attempt, "version": rec.Version}).Debug("room deleted")
			return commit{previous: current, version: rec.Version, deleted: true}, nil
		}
		log.WithFields(logrus.Fields{"attempt": attempt, "version": version}).Debug("room committed")
		return commit{previous: current, room: next, event: ev, version: version}, nil
	}

	log.Warnf("giving up after %d conflicting writes", s.maxAttempts)
	return commit{}, fmt.Errorf("%w: too many concurrent writes", ErrUnavailable)
}

func (s *Service) storeError(log *logrus.Entry, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ErrRoomNotFound
	case errors.Is(err, store.ErrExists):
		return ErrRoomExists
	}
	log.Errorf("room store failure: %v", err)
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

// backoff sleeps a short, jittered, attempt-scaled interval.
func (s *Service) backoff(ctx context.Context, attempt int) error {
	ceiling := time.Duration(attempt) * 2 * time.Millisecond
	if ceiling > 50*time.Millisecond {
		ceiling = 50 * time.Millisecond
	}
	d := time.Duration(rand.Int64N(int64(ceiling) + 1))
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Apply submits a for actor in room code. A rejection comes back as both a
// non-accepted Outcome and the rejection error; it never writes.
func (s *Service) Apply(ctx context.Context, code, actor string, a game.Action) (Outcome, error) {
	c, err := s.mutate(ctx, code, string(a.Type), func(r *Room) (*Room, *game.Event, error) {
		out := ApplyAction(s.engine, r, actor, a, s.now())
		if !out.Accepted {
			return nil, nil, out.Err
		}
		return out.Room, out.Event, nil
	})
	if err != nil {
		if game.IsRejection(err) {
			s.logger.WithFields(logrus.Fields{"room": code, "actor": actor, "action": a.Type}).Infof("action rejected: %v", err)
			return rejected(err), err
		}
		return Outcome{}, err
	}

	s.afterCommit(ctx, code, actor, a, c)
	return Outcome{Accepted: true, Room: c.room, Event: c.event, Version: c.version}, nil
}

// Get returns the current document of room code and its version.
func (s *Service) Get(ctx context.Context, code string) (*Room, int64, error) {
	rec, err := s.store.Load(ctx, code)
	if err != nil {
		return nil, 0, s.storeError(s.logger.WithField("room", code), err)
	}
	r, err := Decode(rec.Data)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return r, rec.Version, nil
}

// Codes lists every stored room code.
func (s *Service) Codes(ctx context.Context) ([]string, error) {
	codes, err := s.store.Codes(ctx)
	if err != nil {
		return nil, s.storeError(s.logger.WithField("action", "list"), err)
	}
	return codes, nil
}

// afterCommit runs the best-effort side effects of a committed change. Their
// failures are logged; the commit itself already stands.
func (s *Service) afterCommit(ctx context.Context, code, actor string, a game.Action, c commit) {
	log := s.logger.WithFields(logrus.Fields{"room": code, "actor": actor})

	if s.publisher != nil && c.room.GameState != nil && c.event != nil {
		rec := cache.ActionRecord{
			ID:            uuid.New(),
			GameID:        c.room.GameState.GameID,
			RoomCode:      code,
			ActionIndex:   c.version,
			ActorID:       actor,
			ActionType:    recordType(a, c.event),
			ActionPayload: actionPayload(a, c.event),
			Timestamp:     s.now().UnixMilli(),
		}
		if err := s.publisher.PublishAction(ctx, rec); err != nil {
			log.Warnf("failed to publish action record: %v", err)
		}
	}

	if s.bus != nil {
		u := notify.Update{
			Code:    code,
			Version: c.version,
			Status:  string(c.room.Status),
			Event:   c.event,
		}
		if st, ok := c.room.State(); ok {
			u.TurnNumber = st.TurnNumber
			u.CurrentPlayer = st.CurrentPlayer()
		}
		if err := s.bus.Publish(ctx, code, u); err != nil {
			log.Warnf("failed to publish room update: %v", err)
		}
	}

	if s.results != nil && c.room.Status == StatusFinished && c.previous.Status != StatusFinished && c.room.GameState != nil {
		ts := c.room.GameState
		if err := s.results.RecordGameResults(ctx, ts.GameID, code, c.room.Scores, ts.Winner); err != nil {
			log.WithField("game_id", ts.GameID).Errorf("failed to record game results: %v", err)
		}
	}
}

// recordType names a committed action for the action log. A color choice
// repeats the wild's event, so it is logged under its own action type.
func recordType(a game.Action, ev *game.Event) string {
	if a.Type == game.ActionChooseColor {
		return string(game.ActionChooseColor)
	}
	return string(ev.Type)
}

func actionPayload(a game.Action, ev *game.Event) map[string]interface{} {
	payload := map[string]interface{}{"action": a}
	if ev != nil {
		// round-trip through JSON so the historian stores the wire shape
		var m map[string]interface{}
		if data, err := json.Marshal(ev); err == nil && json.Unmarshal(data, &m) == nil {
			payload["event"] = m
		}
	}
	return payload
}
