// internal/game/events.go
package game

// EventType names the transition that produced a state.
type EventType string

const (
	EventPlay             EventType = "play"
	EventSkip             EventType = "skip"
	EventReverse          EventType = "reverse"
	EventDraw2            EventType = "draw2"
	EventWild             EventType = "wild"
	EventWild4            EventType = "wild4"
	EventWin              EventType = "win"
	EventDraw             EventType = "draw"
	EventDrawStack        EventType = "draw-stack"
	EventPass             EventType = "pass"
	EventUno              EventType = "uno"
	EventChallengeFail    EventType = "challenge-fail"
	EventChallengeSuccess EventType = "challenge-success"
)

// Event describes the most recently applied transition. It is stored on the
// state as lastAction so collaborators can audit or replay it.
type Event struct {
	Type   EventType `json:"type"`
	Player string    `json:"player,omitempty"`
	Card   *Card     `json:"card,omitempty"`

	// skip
	Skipped string `json:"skipped,omitempty"`

	// draw2, wild4 and the color choice that follows a wild4
	Victim  string `json:"victim,omitempty"`
	Stacked int    `json:"stacked,omitempty"`

	// wild, wild4
	ChosenColor Color `json:"chosenColor,omitempty"`

	// draw
	DrawnCard *Card `json:"drawnCard,omitempty"`
	CanPlay   bool  `json:"canPlay,omitempty"`

	// draw-stack
	Count int `json:"count,omitempty"`

	// challenge
	Challenger string `json:"challenger,omitempty"`
	Target     string `json:"target,omitempty"`
}

func cardRef(c Card) *Card {
	return &c
}
