// internal/game/state.go
package game

import "slices"

// Direction of play around the table.
const (
	Clockwise        = 1
	CounterClockwise = -1
)

// State is the full game aggregate. Transitions never modify a State they are
// given; they return a new value that shares unchanged slices and maps with
// the old one. Callers must treat every slice and map reachable from a State
// as read-only.
type State struct {
	Hands       map[string][]Card `json:"hands"`
	DrawPile    []Card            `json:"drawPile"`
	DiscardPile []Card            `json:"discardPile"`

	PlayerOrder        []string `json:"playerOrder"`
	CurrentPlayerIndex int      `json:"currentPlayerIndex"`
	Direction          int      `json:"direction"`
	CurrentColor       Color    `json:"currentColor"`

	PendingDrawAmount int  `json:"pendingDrawAmount"`
	PendingDrawType   Rank `json:"pendingDrawType,omitempty"`

	MustChooseColor    bool   `json:"mustChooseColor"`
	PendingColorPlayer string `json:"pendingColorPlayer,omitempty"`
	PendingWild4       bool   `json:"pendingWild4"`

	PlayerHasDrawn bool            `json:"playerHasDrawn"`
	UnoCalledBy    map[string]bool `json:"unoCalledBy"`

	TurnNumber int    `json:"turnNumber"`
	Winner     string `json:"winner,omitempty"`
	LastAction *Event `json:"lastAction,omitempty"`
}

// Phase is the turn phase implied by the state's flags.
type Phase string

const (
	PhaseAwaitingAction       Phase = "awaiting_action"
	PhaseAwaitingColorChoice  Phase = "awaiting_color_choice"
	PhaseAwaitingDrawDecision Phase = "awaiting_draw_decision"
	PhaseFinished             Phase = "finished"
)

// Phase derives the current turn phase.
func (s State) Phase() Phase {
	switch {
	case s.Winner != "":
		return PhaseFinished
	case s.MustChooseColor:
		return PhaseAwaitingColorChoice
	case s.PlayerHasDrawn:
		return PhaseAwaitingDrawDecision
	}
	return PhaseAwaitingAction
}

// Finished reports whether the game has a winner.
func (s State) Finished() bool {
	return s.Winner != ""
}

// CurrentPlayer returns the id of the player whose turn it is.
func (s State) CurrentPlayer() string {
	if s.CurrentPlayerIndex < 0 || s.CurrentPlayerIndex >= len(s.PlayerOrder) {
		return ""
	}
	return s.PlayerOrder[s.CurrentPlayerIndex]
}

// SeatOf returns the index of playerID in the player order, or -1.
func (s State) SeatOf(playerID string) int {
	return slices.Index(s.PlayerOrder, playerID)
}

// TopDiscard returns the top of the discard pile.
func (s State) TopDiscard() (Card, bool) {
	if len(s.DiscardPile) == 0 {
		return Card{}, false
	}
	return s.DiscardPile[len(s.DiscardPile)-1], true
}

// Hand returns the hand of playerID.
func (s State) Hand(playerID string) []Card {
	return s.Hands[playerID]
}

// CardCount is the total number of cards across hands and both piles.
func (s State) CardCount() int {
	n := len(s.DrawPile) + len(s.DiscardPile)
	for _, h := range s.Hands {
		n += len(h)
	}
	return n
}

// NextIndex returns the seat after current when moving in direction around
// playerCount seats. direction may be negative.
func NextIndex(current, direction, playerCount int) int {
	if playerCount <= 0 {
		return 0
	}
	return ((current+direction)%playerCount + playerCount) % playerCount
}

func (s *State) advance(steps int) {
	for i := 0; i < steps; i++ {
		s.CurrentPlayerIndex = NextIndex(s.CurrentPlayerIndex, s.Direction, len(s.PlayerOrder))
	}
}

// setHand replaces one hand, copying the hands map first so the previous
// state is left intact. Call it only on a State returned by fork.
func (s *State) setHand(playerID string, hand []Card) {
	hands := make(map[string][]Card, len(s.Hands))
	for k, v := range s.Hands {
		hands[k] = v
	}
	hands[playerID] = hand
	s.Hands = hands
}

func (s *State) setUnoCalled(playerID string, called bool) {
	if v, ok := s.UnoCalledBy[playerID]; ok && v == called {
		return
	}
	m := make(map[string]bool, len(s.UnoCalledBy)+1)
	for k, v := range s.UnoCalledBy {
		m[k] = v
	}
	m[playerID] = called
	s.UnoCalledBy = m
}

func (s *State) pushDiscard(c Card) {
	pile := make([]Card, len(s.DiscardPile), len(s.DiscardPile)+1)
	copy(pile, s.DiscardPile)
	s.DiscardPile = append(pile, c)
}

// fork returns a shallow copy of s. Slices and maps are still shared and must
// be replaced, not written through, by the caller.
func (s State) fork() State {
	return s
}

func removeCard(hand []Card, idx int) []Card {
	out := make([]Card, 0, len(hand)-1)
	out = append(out, hand[:idx]...)
	return append(out, hand[idx+1:]...)
}

func indexOfCard(hand []Card, cardID int) int {
	for i, c := range hand {
		if c.ID == cardID {
			return i
		}
	}
	return -1
}
