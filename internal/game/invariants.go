// internal/game/invariants.go
package game

import (
	"errors"
	"fmt"
)

// ExpectedDeckSize is the number of cards in play for a game of playerCount players.
func ExpectedDeckSize(playerCount int) int {
	if playerCount >= TwoDeckThreshold {
		return 2 * DeckSize
	}
	return DeckSize
}

// Check verifies the structural invariants of a started game: every card is
// present exactly once, the discard pile is non-empty, the turn pointer is in
// range and a pending stack always carries its type.
func (s State) Check() error {
	var errs []error
	if len(s.PlayerOrder) < 2 {
		errs = append(errs, fmt.Errorf("player order has %d players", len(s.PlayerOrder)))
	}
	if s.CurrentPlayerIndex < 0 || s.CurrentPlayerIndex >= len(s.PlayerOrder) {
		errs = append(errs, fmt.Errorf("current player index %d out of range", s.CurrentPlayerIndex))
	}
	if s.Direction != Clockwise && s.Direction != CounterClockwise {
		errs = append(errs, fmt.Errorf("direction %d", s.Direction))
	}
	if len(s.DiscardPile) == 0 {
		errs = append(errs, errors.New("discard pile is empty"))
	}
	if s.PendingDrawAmount > 0 && !s.PendingDrawType.IsPenalty() {
		errs = append(errs, fmt.Errorf("pending draw of %d without a penalty type", s.PendingDrawAmount))
	}
	if s.MustChooseColor && s.PendingColorPlayer == "" {
		errs = append(errs, errors.New("color choice pending without a chooser"))
	}
	for _, pid := range s.PlayerOrder {
		if _, ok := s.Hands[pid]; !ok {
			errs = append(errs, fmt.Errorf("player %s has no hand", pid))
		}
	}

	seen := make(map[int]bool, s.CardCount())
	visit := func(where string, cards []Card) {
		for _, c := range cards {
			if seen[c.ID] {
				errs = append(errs, fmt.Errorf("card %d duplicated (%s)", c.ID, where))
			}
			seen[c.ID] = true
		}
	}
	visit("draw pile", s.DrawPile)
	visit("discard pile", s.DiscardPile)
	for pid, h := range s.Hands {
		visit("hand "+pid, h)
	}
	if want := ExpectedDeckSize(len(s.PlayerOrder)); s.CardCount() != want {
		errs = append(errs, fmt.Errorf("card count %d, want %d", s.CardCount(), want))
	}
	return errors.Join(errs...)
}
