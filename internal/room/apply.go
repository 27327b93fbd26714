// internal/room/apply.go
package room

import (
	"time"

	"github.com/jason-s-yu/uno/internal/game"
)

var (
	ErrNotPlaying     = game.Reject("game is not in progress")
	ErrNotHost        = game.Reject("only the host can do that")
	ErrRoomFull       = game.Reject("room is full")
	ErrAlreadyStarted = game.Reject("game already started")
	ErrNoGame         = game.Reject("there is no game to restart")
	ErrMissingPlayer  = game.Reject("player id is required")
)

// Outcome is the result of applying one action to a room snapshot.
type Outcome struct {
	Accepted bool        `json:"accepted"`
	Room     *Room       `json:"room,omitempty"`
	Event    *game.Event `json:"event,omitempty"`
	Reason   string      `json:"rejectionReason,omitempty"`
	Version  int64       `json:"version,omitempty"`

	Err error `json:"-"`
}

func rejected(err error) Outcome {
	return Outcome{Reason: err.Error(), Err: err}
}

// ApplyAction runs a for actor against the snapshot r and returns the
// replacement snapshot. It has no side effects: r is left untouched and the
// same call may be repeated against a fresher snapshot as often as needed.
// A finished game moves the room to StatusFinished with final scores.
func ApplyAction(e *game.Engine, r *Room, actor string, a game.Action, now time.Time) Outcome {
	if r.Status != StatusPlaying {
		return rejected(ErrNotPlaying)
	}
	s, ok := r.State()
	if !ok {
		return rejected(ErrNotPlaying)
	}

	next, ev, err := e.Apply(s, actor, a)
	if err != nil {
		return rejected(err)
	}

	out := r.WithState(next, now)
	if next.Finished() {
		out.Status = StatusFinished
		out.Scores = game.ComputeScores(next.Hands)
	}
	return Outcome{Accepted: true, Room: out, Event: &ev}
}

// AutoAction picks the single step taken for a player whose turn timed out:
// a random color if a wild is waiting on them, otherwise a draw, or a pass
// once they have drawn.
func AutoAction(s game.State, pickColor func() game.Color) game.Action {
	switch {
	case s.MustChooseColor:
		return game.ChooseColorAction(pickColor())
	case !s.PlayerHasDrawn:
		return game.DrawAction()
	}
	return game.PassAction()
}
