// internal/game/deck.go
package game

// DeckSize is the number of cards in one standard deck.
const DeckSize = 108

// HandSize is the number of cards dealt to each player at the start.
const HandSize = 7

// TwoDeckThreshold is the seated-player count from which two decks are used.
const TwoDeckThreshold = 5

var actionRanks = []Rank{RankSkip, RankReverse, RankDraw2}

// BuildDeck returns the canonical 108-card deck with ascending ids starting at 0:
// number cards per color, then action cards per color, then four wilds and four wild4s.
func BuildDeck() []Card {
	return buildDeckFrom(0)
}

// BuildDecks returns the deck used for a game of playerCount players. From
// TwoDeckThreshold players on, two decks are concatenated and the second deck's
// ids are offset past the first's so ids stay unique.
func BuildDecks(playerCount int) []Card {
	if playerCount < TwoDeckThreshold {
		return BuildDeck()
	}
	deck := make([]Card, 0, 2*DeckSize)
	deck = append(deck, buildDeckFrom(0)...)
	return append(deck, buildDeckFrom(DeckSize)...)
}

func buildDeckFrom(offset int) []Card {
	deck := make([]Card, 0, DeckSize)
	id := offset
	next := func() int {
		id++
		return id - 1
	}

	for _, c := range PlayableColors {
		deck = append(deck, NewNumberCard(next(), c, 0))
		for n := 1; n <= 9; n++ {
			deck = append(deck, NewNumberCard(next(), c, n))
			deck = append(deck, NewNumberCard(next(), c, n))
		}
	}
	for _, c := range PlayableColors {
		for _, r := range actionRanks {
			deck = append(deck, NewActionCard(next(), c, r))
			deck = append(deck, NewActionCard(next(), c, r))
		}
	}
	for i := 0; i < 4; i++ {
		deck = append(deck, NewWildCard(next(), RankWild))
	}
	for i := 0; i < 4; i++ {
		deck = append(deck, NewWildCard(next(), RankWild4))
	}
	return deck
}

// shuffleCards returns a Fisher-Yates permutation of cards. The input is not modified.
func shuffleCards(cards []Card, intN func(n int) int) []Card {
	out := make([]Card, len(cards))
	copy(out, cards)
	for i := len(out) - 1; i > 0; i-- {
		j := intN(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// DealStartingHands deals handSize cards to each player in order, taking from
// the front of deck. It returns the hands and the undealt remainder.
func DealStartingHands(deck []Card, playerOrder []string, handSize int) (map[string][]Card, []Card) {
	hands := make(map[string][]Card, len(playerOrder))
	pos := 0
	for _, pid := range playerOrder {
		end := pos + handSize
		if end > len(deck) {
			end = len(deck)
		}
		hand := make([]Card, end-pos)
		copy(hand, deck[pos:end])
		hands[pid] = hand
		pos = end
	}
	rest := make([]Card, len(deck)-pos)
	copy(rest, deck[pos:])
	return hands, rest
}

// PickStartingCard removes the first number card from drawPile to seed the
// discard pile. If there is none it takes the first card of any kind. ok is
// false only when drawPile is empty.
func PickStartingCard(drawPile []Card) (card Card, rest []Card, ok bool) {
	if len(drawPile) == 0 {
		return Card{}, nil, false
	}
	idx := 0
	for i, c := range drawPile {
		if c.IsNumber() {
			idx = i
			break
		}
	}
	rest = make([]Card, 0, len(drawPile)-1)
	rest = append(rest, drawPile[:idx]...)
	rest = append(rest, drawPile[idx+1:]...)
	return drawPile[idx], rest, true
}
