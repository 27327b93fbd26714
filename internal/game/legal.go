// internal/game/legal.go
package game

// IsPlayable reports whether card may be played on top given the current
// color and any pending draw stack. While a stack is pending only a card of
// the stack's exact penalty rank is playable.
func IsPlayable(card, top Card, currentColor Color, pendingDrawAmount int, pendingDrawType Rank) bool {
	if pendingDrawAmount > 0 {
		return pendingDrawType != "" && card.Rank == pendingDrawType
	}
	if card.Rank.IsWild() {
		return true
	}
	if card.Color == currentColor {
		return true
	}
	if card.IsNumber() && top.IsNumber() {
		return card.NumericValue() == top.NumericValue()
	}
	if !card.IsNumber() && !top.IsNumber() {
		return card.Rank == top.Rank
	}
	return false
}

// PlayableCards filters hand down to the cards IsPlayable accepts.
func PlayableCards(hand []Card, top Card, currentColor Color, pendingDrawAmount int, pendingDrawType Rank) []Card {
	var out []Card
	for _, c := range hand {
		if IsPlayable(c, top, currentColor, pendingDrawAmount, pendingDrawType) {
			out = append(out, c)
		}
	}
	return out
}

// Playable reports whether card may be played in s.
func (s State) Playable(card Card) bool {
	top, ok := s.TopDiscard()
	if !ok {
		return false
	}
	return IsPlayable(card, top, s.CurrentColor, s.PendingDrawAmount, s.PendingDrawType)
}

// PlayableFor returns the cards in playerID's hand that could be played in s.
// It returns nothing for a player who could not act right now.
func (s State) PlayableFor(playerID string) []Card {
	if s.Finished() || s.MustChooseColor || s.CurrentPlayer() != playerID {
		return nil
	}
	top, ok := s.TopDiscard()
	if !ok {
		return nil
	}
	return PlayableCards(s.Hands[playerID], top, s.CurrentColor, s.PendingDrawAmount, s.PendingDrawType)
}
