// internal/game/actions.go
package game

// ActionType names a player action.
type ActionType string

const (
	ActionPlay         ActionType = "play"
	ActionChooseColor  ActionType = "choose-color"
	ActionDraw         ActionType = "draw"
	ActionPass         ActionType = "pass"
	ActionCallLastCard ActionType = "call-last-card"
	ActionChallenge    ActionType = "challenge"
)

// Action is a tagged player action as submitted over the wire.
// CardID is required for play, Color for choose-color, Target for challenge.
type Action struct {
	Type   ActionType `json:"type"`
	CardID *int       `json:"cardId,omitempty"`
	Color  Color      `json:"color,omitempty"`
	Target string     `json:"target,omitempty"`
}

func PlayAction(cardID int) Action {
	return Action{Type: ActionPlay, CardID: &cardID}
}

func ChooseColorAction(c Color) Action {
	return Action{Type: ActionChooseColor, Color: c}
}

func DrawAction() Action {
	return Action{Type: ActionDraw}
}

func PassAction() Action {
	return Action{Type: ActionPass}
}

func CallLastCardAction() Action {
	return Action{Type: ActionCallLastCard}
}

func ChallengeAction(target string) Action {
	return Action{Type: ActionChallenge, Target: target}
}

// Apply dispatches a to the matching transition.
func (e *Engine) Apply(s State, actor string, a Action) (State, Event, error) {
	switch a.Type {
	case ActionPlay:
		if a.CardID == nil {
			return s, Event{}, ErrMalformedAction
		}
		return e.Play(s, actor, *a.CardID)
	case ActionChooseColor:
		return e.ChooseColor(s, actor, a.Color)
	case ActionDraw:
		return e.Draw(s, actor)
	case ActionPass:
		return e.Pass(s, actor)
	case ActionCallLastCard:
		return e.CallLastCard(s, actor)
	case ActionChallenge:
		if a.Target == "" {
			return s, Event{}, ErrMalformedAction
		}
		return e.Challenge(s, actor, a.Target)
	}
	return s, Event{}, ErrUnknownAction
}
