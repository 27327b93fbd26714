// internal/game/card.go
package game

import (
	"fmt"
	"strconv"
)

// Color is a card color. ColorWild is only ever a card's own color; the
// current color of a game is always one of the four playable colors.
type Color string

const (
	ColorRed    Color = "red"
	ColorBlue   Color = "blue"
	ColorGreen  Color = "green"
	ColorYellow Color = "yellow"
	ColorWild   Color = "wild"
)

// PlayableColors lists the colors a wild may be declared as, in deck order.
var PlayableColors = []Color{ColorRed, ColorBlue, ColorGreen, ColorYellow}

// Valid reports whether c can be chosen as the current color.
func (c Color) Valid() bool {
	switch c {
	case ColorRed, ColorBlue, ColorGreen, ColorYellow:
		return true
	}
	return false
}

// Rank is the face of a card: a digit "0".."9" or one of the action ranks.
type Rank string

const (
	RankSkip    Rank = "skip"
	RankReverse Rank = "reverse"
	RankDraw2   Rank = "draw2"
	RankWild    Rank = "wild"
	RankWild4   Rank = "wild4"
)

// NumberRank returns the rank for face value n (0-9).
func NumberRank(n int) Rank {
	return Rank(strconv.Itoa(n))
}

// IsNumber reports whether r is one of the ten number ranks.
func (r Rank) IsNumber() bool {
	return len(r) == 1 && r[0] >= '0' && r[0] <= '9'
}

// IsWild reports whether r is wild or wild-draw-four.
func (r Rank) IsWild() bool {
	return r == RankWild || r == RankWild4
}

// IsPenalty reports whether r starts or extends a pending draw stack.
func (r Rank) IsPenalty() bool {
	return r == RankDraw2 || r == RankWild4
}

// Card is an immutable card value. Value is set only for number cards.
type Card struct {
	ID    int   `json:"id"`
	Color Color `json:"color"`
	Rank  Rank  `json:"rank"`
	Value *int  `json:"value,omitempty"`
}

// NewNumberCard builds a number card.
func NewNumberCard(id int, color Color, n int) Card {
	v := n
	return Card{ID: id, Color: color, Rank: NumberRank(n), Value: &v}
}

// NewActionCard builds a skip, reverse or draw2 card.
func NewActionCard(id int, color Color, rank Rank) Card {
	return Card{ID: id, Color: color, Rank: rank}
}

// NewWildCard builds a wild or wild4 card.
func NewWildCard(id int, rank Rank) Card {
	return Card{ID: id, Color: ColorWild, Rank: rank}
}

// IsNumber reports whether the card is a number card.
func (c Card) IsNumber() bool {
	return c.Value != nil && c.Rank.IsNumber()
}

// NumericValue returns the face value of a number card, or -1.
func (c Card) NumericValue() int {
	if c.Value == nil {
		return -1
	}
	return *c.Value
}

func (c Card) String() string {
	if c.Rank.IsWild() {
		return fmt.Sprintf("%s#%d", c.Rank, c.ID)
	}
	return fmt.Sprintf("%s-%s#%d", c.Color, c.Rank, c.ID)
}

// Score is the end-of-game penalty value of a card held in hand.
func (c Card) Score() int {
	switch {
	case c.IsNumber():
		return c.NumericValue()
	case c.Rank == RankSkip, c.Rank == RankReverse, c.Rank == RankDraw2:
		return 20
	case c.Rank.IsWild():
		return 50
	}
	return 0
}
