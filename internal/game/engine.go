// internal/game/engine.go
package game

import (
	"fmt"
	"math/rand/v2"
	"sync"
)

// Engine applies transitions to game states. Its only dependency is a random
// source used for shuffling; everything else is a pure function of the input
// state, so any transition can be recomputed against a fresher state as often
// as needed.
type Engine struct {
	intN func(n int) int
}

// Option configures an Engine.
type Option func(*Engine)

// WithRand makes the engine shuffle with r. Calls into r are serialized.
func WithRand(r *rand.Rand) Option {
	var mu sync.Mutex
	return func(e *Engine) {
		e.intN = func(n int) int {
			mu.Lock()
			defer mu.Unlock()
			return r.IntN(n)
		}
	}
}

// NewEngine builds an Engine. By default it shuffles with the global math/rand/v2 source.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{intN: rand.IntN}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Shuffle returns a uniformly shuffled copy of cards.
func (e *Engine) Shuffle(cards []Card) []Card {
	return shuffleCards(cards, e.intN)
}

// InitializeGame deals a new game for playerOrder: builds and shuffles the
// deck (two decks from five players), deals seven cards each, seeds the
// discard pile with the first number card, and hands the turn to the first
// player.
func (e *Engine) InitializeGame(playerOrder []string) (State, error) {
	if len(playerOrder) < 2 {
		return State{}, ErrTooFewPlayers
	}
	seen := make(map[string]bool, len(playerOrder))
	for _, pid := range playerOrder {
		if pid == "" || seen[pid] {
			return State{}, fmt.Errorf("%w: %q", ErrBadPlayerOrder, pid)
		}
		seen[pid] = true
	}

	deck := e.Shuffle(BuildDecks(len(playerOrder)))
	if len(playerOrder)*HandSize >= len(deck) {
		return State{}, fmt.Errorf("%w: %d players for %d cards", ErrTooManyPlayers, len(playerOrder), len(deck))
	}
	hands, rest := DealStartingHands(deck, playerOrder, HandSize)
	start, drawPile, _ := PickStartingCard(rest)

	uno := make(map[string]bool, len(playerOrder))
	for _, pid := range playerOrder {
		uno[pid] = false
	}
	order := make([]string, len(playerOrder))
	copy(order, playerOrder)

	return State{
		Hands:              hands,
		DrawPile:           drawPile,
		DiscardPile:        []Card{start},
		PlayerOrder:        order,
		CurrentPlayerIndex: 0,
		Direction:          Clockwise,
		CurrentColor:       start.Color,
		UnoCalledBy:        uno,
	}, nil
}

// Play plays cardID from actor's hand.
func (e *Engine) Play(s State, actor string, cardID int) (State, Event, error) {
	if s.Finished() {
		return s, Event{}, ErrGameOver
	}
	if s.SeatOf(actor) != s.CurrentPlayerIndex || s.SeatOf(actor) < 0 {
		return s, Event{}, ErrNotYourTurn
	}
	if s.MustChooseColor {
		return s, Event{}, ErrMustChooseColor
	}
	hand := s.Hands[actor]
	idx := indexOfCard(hand, cardID)
	if idx < 0 {
		return s, Event{}, ErrCardNotInHand
	}
	card := hand[idx]
	if !s.Playable(card) {
		return s, Event{}, ErrCannotPlay
	}

	next := s.fork()
	remaining := removeCard(hand, idx)
	next.setHand(actor, remaining)
	next.pushDiscard(card)
	next.TurnNumber++
	next.PlayerHasDrawn = false

	if len(remaining) == 0 {
		next.Winner = actor
		ev := Event{Type: EventWin, Player: actor, Card: cardRef(card)}
		next.LastAction = &ev
		return next, ev, nil
	}
	if len(remaining) != 1 {
		next.setUnoCalled(actor, false)
	}

	ev := Event{Player: actor, Card: cardRef(card)}
	switch {
	case card.Rank == RankSkip:
		next.CurrentColor = card.Color
		skipped := NextIndex(next.CurrentPlayerIndex, next.Direction, len(next.PlayerOrder))
		next.advance(2)
		ev.Type = EventSkip
		ev.Skipped = next.PlayerOrder[skipped]
	case card.Rank == RankReverse:
		next.CurrentColor = card.Color
		next.Direction = -next.Direction
		if len(next.PlayerOrder) == 2 {
			next.advance(2)
		} else {
			next.advance(1)
		}
		ev.Type = EventReverse
	case card.Rank == RankDraw2:
		next.CurrentColor = card.Color
		next.PendingDrawAmount += 2
		next.PendingDrawType = RankDraw2
		next.advance(1)
		ev.Type = EventDraw2
		ev.Victim = next.CurrentPlayer()
		ev.Stacked = next.PendingDrawAmount
	case card.Rank == RankWild:
		next.MustChooseColor = true
		next.PendingColorPlayer = actor
		ev.Type = EventWild
	case card.Rank == RankWild4:
		next.MustChooseColor = true
		next.PendingColorPlayer = actor
		next.PendingWild4 = true
		next.PendingDrawAmount += 4
		next.PendingDrawType = RankWild4
		ev.Type = EventWild4
		ev.Stacked = next.PendingDrawAmount
	default:
		next.CurrentColor = card.Color
		next.advance(1)
		ev.Type = EventPlay
	}
	next.LastAction = &ev
	return next, ev, nil
}

// ChooseColor resolves the color of the wild actor just played and passes the
// turn on. After a wild4 the next player inherits the pending stack.
func (e *Engine) ChooseColor(s State, actor string, color Color) (State, Event, error) {
	if s.Finished() {
		return s, Event{}, ErrGameOver
	}
	if !s.MustChooseColor || s.PendingColorPlayer != actor {
		return s, Event{}, ErrNotChoosingColor
	}
	if !color.Valid() {
		return s, Event{}, ErrInvalidColor
	}

	next := s.fork()
	next.CurrentColor = color
	next.MustChooseColor = false
	next.PendingColorPlayer = ""
	next.PlayerHasDrawn = false

	var ev Event
	if s.LastAction != nil {
		ev = *s.LastAction
	} else {
		ev = Event{Type: EventWild, Player: actor}
	}
	ev.ChosenColor = color

	next.advance(1)
	if s.PendingWild4 {
		next.PendingWild4 = false
		ev.Victim = next.CurrentPlayer()
		ev.Stacked = next.PendingDrawAmount
		if ev.Stacked == 0 {
			ev.Stacked = 4
		}
	}
	next.LastAction = &ev
	return next, ev, nil
}

// Draw draws for actor. With a pending stack the actor takes the whole stack
// and loses the turn. Otherwise one card is drawn; if it is playable the actor
// keeps the turn to play it or pass, else the turn moves on. When neither pile
// has a card to give, the turn is skipped.
func (e *Engine) Draw(s State, actor string) (State, Event, error) {
	if s.Finished() {
		return s, Event{}, ErrGameOver
	}
	if s.SeatOf(actor) != s.CurrentPlayerIndex || s.SeatOf(actor) < 0 {
		return s, Event{}, ErrNotYourTurn
	}
	if s.MustChooseColor {
		return s, Event{}, ErrMustChooseColor
	}
	if s.PlayerHasDrawn {
		return s, Event{}, ErrAlreadyDrew
	}

	next := s.fork()
	if pending := s.PendingDrawAmount; pending > 0 {
		drawn := e.drawInto(&next, actor, pending)
		next.PendingDrawAmount = 0
		next.PendingDrawType = ""
		next.PlayerHasDrawn = false
		next.advance(1)
		next.TurnNumber++
		ev := Event{Type: EventDrawStack, Player: actor, Count: len(drawn), Stacked: pending}
		next.LastAction = &ev
		return next, ev, nil
	}

	drawn := e.drawInto(&next, actor, 1)
	next.TurnNumber++
	if len(drawn) == 0 {
		next.PlayerHasDrawn = false
		next.advance(1)
		ev := Event{Type: EventPass, Player: actor}
		next.LastAction = &ev
		return next, ev, nil
	}

	card := drawn[0]
	top, _ := next.TopDiscard()
	canPlay := IsPlayable(card, top, next.CurrentColor, 0, "")
	next.PlayerHasDrawn = canPlay
	if !canPlay {
		next.advance(1)
	}
	ev := Event{Type: EventDraw, Player: actor, DrawnCard: cardRef(card), CanPlay: canPlay}
	next.LastAction = &ev
	return next, ev, nil
}

// Pass ends actor's turn after a voluntary draw.
func (e *Engine) Pass(s State, actor string) (State, Event, error) {
	if s.Finished() {
		return s, Event{}, ErrGameOver
	}
	if s.SeatOf(actor) != s.CurrentPlayerIndex || s.SeatOf(actor) < 0 {
		return s, Event{}, ErrNotYourTurn
	}
	if s.MustChooseColor {
		return s, Event{}, ErrMustChooseColor
	}
	if !s.PlayerHasDrawn {
		return s, Event{}, ErrMustDrawFirst
	}

	next := s.fork()
	next.PlayerHasDrawn = false
	next.advance(1)
	ev := Event{Type: EventPass, Player: actor}
	next.LastAction = &ev
	return next, ev, nil
}

// CallLastCard records actor's last-card declaration. It is accepted with one
// card in hand, or with two in anticipation of the play that leaves one.
func (e *Engine) CallLastCard(s State, actor string) (State, Event, error) {
	if s.Finished() {
		return s, Event{}, ErrGameOver
	}
	hand, ok := s.Hands[actor]
	if !ok || s.SeatOf(actor) < 0 {
		return s, Event{}, ErrNotSeated
	}
	if len(hand) > 2 {
		return s, Event{}, ErrTooManyCards
	}

	next := s.fork()
	next.setUnoCalled(actor, true)
	ev := Event{Type: EventUno, Player: actor}
	next.LastAction = &ev
	return next, ev, nil
}

// Challenge checks whether target, holding exactly one card, declared it. If
// they did the challenger draws two; otherwise the target does. A player may
// challenge themselves, which is how a forgotten call is self-penalized.
func (e *Engine) Challenge(s State, actor, target string) (State, Event, error) {
	if s.Finished() {
		return s, Event{}, ErrGameOver
	}
	if s.SeatOf(actor) < 0 {
		return s, Event{}, ErrNotSeated
	}
	if s.SeatOf(target) < 0 || len(s.Hands[target]) != 1 {
		return s, Event{}, ErrInvalidChallenge
	}

	next := s.fork()
	ev := Event{Challenger: actor, Target: target}
	if s.UnoCalledBy[target] {
		e.drawInto(&next, actor, 2)
		ev.Type = EventChallengeFail
	} else {
		e.drawInto(&next, target, 2)
		ev.Type = EventChallengeSuccess
	}
	next.LastAction = &ev
	return next, ev, nil
}

// drawInto moves up to n cards from the end of the draw pile into playerID's
// hand, recycling the discard pile whenever the draw pile runs dry. It stops
// early when there is nothing left to recycle and returns what was drawn.
func (e *Engine) drawInto(s *State, playerID string, n int) []Card {
	drawn := make([]Card, 0, n)
	for i := 0; i < n; i++ {
		if len(s.DrawPile) == 0 {
			e.recycle(s)
		}
		if len(s.DrawPile) == 0 {
			break
		}
		last := len(s.DrawPile) - 1
		drawn = append(drawn, s.DrawPile[last])
		s.DrawPile = s.DrawPile[:last:last]
	}
	if len(drawn) == 0 {
		return drawn
	}

	old := s.Hands[playerID]
	hand := make([]Card, 0, len(old)+len(drawn))
	hand = append(hand, old...)
	hand = append(hand, drawn...)
	s.setHand(playerID, hand)
	if len(hand) != 1 {
		s.setUnoCalled(playerID, false)
	}
	return drawn
}

// recycle shuffles everything under the top discard into a new draw pile.
func (e *Engine) recycle(s *State) {
	if len(s.DiscardPile) <= 1 {
		return
	}
	last := len(s.DiscardPile) - 1
	top := s.DiscardPile[last]
	s.DrawPile = e.Shuffle(s.DiscardPile[:last])
	s.DiscardPile = []Card{top}
}

// ComputeScores totals the cards left in each hand: face value for number
// cards, 20 for skip, reverse and draw2, 50 for wild and wild4.
func ComputeScores(hands map[string][]Card) map[string]int {
	scores := make(map[string]int, len(hands))
	for pid, hand := range hands {
		total := 0
		for _, c := range hand {
			total += c.Score()
		}
		scores[pid] = total
	}
	return scores
}
