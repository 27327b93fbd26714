// internal/room/lifecycle.go
package room

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/game"
	"github.com/jason-s-yu/uno/internal/notify"
	"github.com/jason-s-yu/uno/internal/store"
	"github.com/sirupsen/logrus"
)

// maxAutoSteps bounds how many actions one timed-out turn may take: choose a
// color, or draw and then pass.
const maxAutoSteps = 3

var errStaleTurn = errors.New("turn already moved on")

// Create stores a new waiting room with host seated.
func (s *Service) Create(ctx context.Context, code, host, hostName string) (*Room, error) {
	if host == "" {
		return nil, ErrMissingPlayer
	}
	r := New(code, host, hostName, s.maxPlayers, s.now())
	data, err := Encode(r)
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, code, data); err != nil {
		return nil, s.storeError(s.logger.WithField("room", code), err)
	}
	s.logger.WithFields(logrus.Fields{"room": code, "host": host}).Info("room created")
	return r, nil
}

// Join seats player in a waiting room. Joining again only updates the name.
func (s *Service) Join(ctx context.Context, code, player, name string) (*Room, error) {
	if player == "" {
		return nil, ErrMissingPlayer
	}
	c, err := s.mutate(ctx, code, "join", func(r *Room) (*Room, *game.Event, error) {
		p, seated := r.Players[player]
		if !seated {
			if r.Status != StatusWaiting {
				return nil, nil, ErrAlreadyStarted
			}
			if len(r.Players) >= r.MaxPlayers {
				return nil, nil, ErrRoomFull
			}
			p = PlayerInfo{JoinedAt: s.now().UnixMilli()}
		}
		if seated && p.Name == name {
			return r, nil, nil
		}
		p.Name = name
		out := *r
		out.Players = make(map[string]PlayerInfo, len(r.Players)+1)
		for pid, info := range r.Players {
			out.Players[pid] = info
		}
		out.Players[player] = p
		return &out, nil, nil
	})
	if err != nil {
		return nil, err
	}
	s.afterLifecycle(ctx, code, c)
	return c.room, nil
}

// Start deals a new game over the seated players in join order.
func (s *Service) Start(ctx context.Context, code, actor string) (*Room, error) {
	c, err := s.mutate(ctx, code, "start", func(r *Room) (*Room, *game.Event, error) {
		if r.Host != actor {
			return nil, nil, ErrNotHost
		}
		if r.Status != StatusWaiting {
			return nil, nil, ErrAlreadyStarted
		}
		order := SeatOrder(r.Players)
		st, err := s.engine.InitializeGame(order)
		if err != nil {
			return nil, nil, err
		}

		now := s.now()
		out := r.WithState(st, now)
		out.Status = StatusPlaying
		out.Scores = nil
		out.GameState.GameID = uuid.New()
		out.GameState.TurnStartedAt = now.UnixMilli()
		out.GameState.PlayerNames = make(map[string]string, len(order))
		for _, pid := range order {
			out.GameState.PlayerNames[pid] = r.Players[pid].Name
		}
		return out, nil, nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"room":    code,
		"game_id": c.room.GameState.GameID,
		"players": len(c.room.GameState.PlayerOrder),
	}).Info("game started")
	s.afterLifecycle(ctx, code, c)
	return c.room, nil
}

// Rematch clears the last game so the host can start another.
func (s *Service) Rematch(ctx context.Context, code, actor string) (*Room, error) {
	c, err := s.mutate(ctx, code, "rematch", func(r *Room) (*Room, *game.Event, error) {
		if r.Host != actor {
			return nil, nil, ErrNotHost
		}
		if r.Status == StatusWaiting {
			return nil, nil, ErrNoGame
		}
		return r.Reset(), nil, nil
	})
	if err != nil {
		return nil, err
	}
	s.afterLifecycle(ctx, code, c)
	return c.room, nil
}

// Leave takes player out of a room that is not mid-game. The host's seat
// passes to the longest-seated player; the last player out deletes the room,
// in which case the returned room is nil.
func (s *Service) Leave(ctx context.Context, code, player string) (*Room, error) {
	if player == "" {
		return nil, ErrMissingPlayer
	}
	c, err := s.mutate(ctx, code, "leave", func(r *Room) (*Room, *game.Event, error) {
		if _, seated := r.Players[player]; !seated {
			return nil, nil, game.ErrNotSeated
		}
		if r.Status == StatusPlaying {
			return nil, nil, ErrAlreadyStarted
		}
		if len(r.Players) == 1 {
			return nil, nil, nil
		}
		out := *r
		out.Players = make(map[string]PlayerInfo, len(r.Players)-1)
		for pid, info := range r.Players {
			if pid != player {
				out.Players[pid] = info
			}
		}
		if out.Host == player {
			out.Host = SeatOrder(out.Players)[0]
		}
		return &out, nil, nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"room": code, "player": player, "closed": c.deleted}).Info("player left room")
	s.afterLifecycle(ctx, code, c)
	return c.room, nil
}

// CleanupStale deletes rooms that have seen no game activity for maxAge:
// neither created nor had a turn start since. It returns how many it removed.
// A room that changes while being checked is left for the next pass.
func (s *Service) CleanupStale(ctx context.Context, maxAge time.Duration) (int, error) {
	codes, err := s.Codes(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := s.now().Add(-maxAge).UnixMilli()
	removed := 0
	for _, code := range codes {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		r, version, err := s.Get(ctx, code)
		if errors.Is(err, ErrRoomNotFound) {
			continue
		}
		if err != nil {
			s.logger.WithField("room", code).Warnf("stale room check failed: %v", err)
			continue
		}
		last := r.CreatedAt
		if r.GameState != nil && r.GameState.TurnStartedAt > last {
			last = r.GameState.TurnStartedAt
		}
		if last > cutoff {
			continue
		}
		if err := s.store.Delete(ctx, code, version); err != nil {
			if !errors.Is(err, store.ErrConflict) {
				s.logger.WithField("room", code).Warnf("failed to delete stale room: %v", err)
			}
			continue
		}
		removed++
		s.afterLifecycle(ctx, code, commit{previous: r, version: version, deleted: true})
	}
	if removed > 0 {
		s.logger.WithField("rooms", removed).Info("removed stale rooms")
	}
	return removed, nil
}

// AutoPlay takes the timed-out turn described by expected, one step at a time,
// until the turn passes on. It does nothing once the room has moved past
// expected, so a late or duplicated timer is harmless.
func (s *Service) AutoPlay(ctx context.Context, code string, expected TurnMark) (int, error) {
	log := s.logger.WithFields(logrus.Fields{"room": code, "player": expected.Player})
	steps := 0
	for steps < maxAutoSteps {
		var action game.Action
		c, err := s.mutate(ctx, code, "auto", func(r *Room) (*Room, *game.Event, error) {
			mark, ok := r.CurrentTurn()
			if !ok || mark.Player != expected.Player || mark.TurnNumber != expected.TurnNumber {
				return nil, nil, errStaleTurn
			}
			st, _ := r.State()
			action = AutoAction(st, s.pickColor)
			out := ApplyAction(s.engine, r, expected.Player, action, s.now())
			if !out.Accepted {
				return nil, nil, out.Err
			}
			return out.Room, out.Event, nil
		})
		if errors.Is(err, errStaleTurn) {
			return steps, nil
		}
		if err != nil {
			return steps, err
		}
		steps++
		log.WithFields(logrus.Fields{"step": steps, "event": c.event.Type}).Info("turn timed out, acting for player")
		s.afterCommit(ctx, code, expected.Player, action, c)

		// a playable draw keeps the turn; follow it to the pass
		mark, ok := c.room.CurrentTurn()
		if !ok || mark.Player != expected.Player {
			break
		}
		expected = mark
	}
	return steps, nil
}

// afterLifecycle announces a roster or stage change that has no game event.
func (s *Service) afterLifecycle(ctx context.Context, code string, c commit) {
	if c.deleted {
		if s.bus != nil {
			u := notify.Update{Code: code, Version: c.version, Status: string(StatusClosed)}
			if err := s.bus.Publish(ctx, code, u); err != nil {
				s.logger.WithField("room", code).Warnf("failed to publish room update: %v", err)
			}
		}
		return
	}
	if c.room == c.previous {
		return
	}
	s.afterCommit(ctx, code, "", game.Action{}, c)
}
