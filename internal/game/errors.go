// internal/game/errors.go
package game

import "errors"

// RejectionError reports an action that is illegal against the current state.
// Rejections never change state and are never retried.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	return e.Reason
}

// Reject builds a RejectionError for packages that add their own rejections.
func Reject(reason string) *RejectionError {
	return &RejectionError{Reason: reason}
}

var (
	ErrNotYourTurn      = Reject("not your turn")
	ErrCardNotInHand    = Reject("card not in hand")
	ErrCannotPlay       = Reject("cannot play this card")
	ErrMustChooseColor  = Reject("must choose a color first")
	ErrNotChoosingColor = Reject("not waiting for your color choice")
	ErrInvalidColor     = Reject("invalid color")
	ErrAlreadyDrew      = Reject("already drew a card this turn")
	ErrMustDrawFirst    = Reject("you must draw before passing")
	ErrTooManyCards     = Reject("you have more than 2 cards")
	ErrInvalidChallenge = Reject("cannot challenge: target does not have exactly 1 card")
	ErrNotSeated        = Reject("player is not seated in this game")
	ErrGameOver         = Reject("game is over")
	ErrUnknownAction    = Reject("unknown action")
	ErrMalformedAction  = Reject("malformed action")
	ErrTooFewPlayers    = Reject("need at least 2 players")
	ErrTooManyPlayers   = Reject("too many players for the deck")
	ErrBadPlayerOrder   = Reject("player ids must be unique and non-empty")
)

// IsRejection reports whether err is an input rejection.
func IsRejection(err error) bool {
	var rej *RejectionError
	return errors.As(err, &rej)
}
