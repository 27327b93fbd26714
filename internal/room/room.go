// internal/room/room.go
package room

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/game"
)

// Status is the lifecycle stage of a room.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
	// StatusClosed is only announced, never stored: the room was deleted.
	StatusClosed Status = "closed"
)

// DefaultMaxPlayers caps a room's roster unless configured otherwise.
const DefaultMaxPlayers = 8

// PlayerInfo is the public, per-player part of a room.
type PlayerInfo struct {
	Name         string `json:"name"`
	CardCount    int    `json:"cardCount"`
	HasCalledUno bool   `json:"hasCalledUno"`
	JoinedAt     int64  `json:"joinedAt"`
}

// TurnState carries every game field except hands and piles, plus the
// bookkeeping a room keeps around a game.
type TurnState struct {
	GameID      uuid.UUID         `json:"gameId"`
	PlayerOrder Seq[string]       `json:"playerOrder"`
	PlayerNames map[string]string `json:"playerNames,omitempty"`

	CurrentPlayerIndex int        `json:"currentPlayerIndex"`
	Direction          int        `json:"direction"`
	CurrentColor       game.Color `json:"currentColor"`

	PendingDrawAmount int       `json:"pendingDrawAmount"`
	PendingDrawType   game.Rank `json:"pendingDrawType,omitempty"`

	MustChooseColor    bool   `json:"mustChooseColor"`
	PendingColorPlayer string `json:"pendingColorPlayer,omitempty"`
	PendingWild4       bool   `json:"pendingWild4"`

	PlayerHasDrawn bool            `json:"playerHasDrawn"`
	UnoCalledBy    map[string]bool `json:"unoCalledBy"`

	TurnNumber int         `json:"turnNumber"`
	Winner     string      `json:"winner,omitempty"`
	LastAction *game.Event `json:"lastAction,omitempty"`

	TurnStartedAt int64 `json:"turnStartedAt"`
}

// Room is the persisted room document: the snapshot read and replaced as a
// whole by every mutation.
type Room struct {
	Code       string                `json:"code"`
	Host       string                `json:"host"`
	Status     Status                `json:"status"`
	MaxPlayers int                   `json:"maxPlayers"`
	CreatedAt  int64                 `json:"createdAt"`
	Players    map[string]PlayerInfo `json:"players"`

	Hands       map[string]Seq[game.Card] `json:"hands,omitempty"`
	DrawPile    Seq[game.Card]            `json:"drawPile,omitempty"`
	DiscardPile Seq[game.Card]            `json:"discardPile,omitempty"`
	GameState   *TurnState                `json:"gameState,omitempty"`

	Scores map[string]int `json:"scores,omitempty"`
}

// New returns a waiting room with host seated.
func New(code, host, hostName string, maxPlayers int, now time.Time) *Room {
	if maxPlayers <= 0 {
		maxPlayers = DefaultMaxPlayers
	}
	return &Room{
		Code:       code,
		Host:       host,
		Status:     StatusWaiting,
		MaxPlayers: maxPlayers,
		CreatedAt:  now.UnixMilli(),
		Players: map[string]PlayerInfo{
			host: {Name: hostName, JoinedAt: now.UnixMilli()},
		},
	}
}

// Decode parses a stored room document, normalizing sequence encodings.
func Decode(data []byte) (*Room, error) {
	var r Room
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode room: %w", err)
	}
	if r.Players == nil {
		r.Players = make(map[string]PlayerInfo)
	}
	return &r, nil
}

// Encode serializes r in its canonical form.
func Encode(r *Room) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode room: %w", err)
	}
	return data, nil
}

// SeatOrder returns the roster in join order, ties broken by id.
func SeatOrder(players map[string]PlayerInfo) []string {
	order := make([]string, 0, len(players))
	for pid := range players {
		order = append(order, pid)
	}
	sort.Slice(order, func(i, j int) bool {
		a, b := players[order[i]], players[order[j]]
		if a.JoinedAt != b.JoinedAt {
			return a.JoinedAt < b.JoinedAt
		}
		return order[i] < order[j]
	})
	return order
}

// State reconstructs the game held by r. ok is false when no game is dealt.
func (r *Room) State() (s game.State, ok bool) {
	ts := r.GameState
	if ts == nil {
		return game.State{}, false
	}

	order := append([]string(nil), ts.PlayerOrder...)
	hands := make(map[string][]game.Card, len(order))
	for pid, h := range r.Hands {
		hands[pid] = h
	}
	// stores drop empty sequences, so a player with no cards may have no entry
	for _, pid := range order {
		if _, ok := hands[pid]; !ok {
			hands[pid] = []game.Card{}
		}
	}
	uno := make(map[string]bool, len(order))
	for pid, v := range ts.UnoCalledBy {
		uno[pid] = v
	}
	dir := ts.Direction
	if dir == 0 {
		dir = game.Clockwise
	}

	return game.State{
		Hands:              hands,
		DrawPile:           r.DrawPile,
		DiscardPile:        r.DiscardPile,
		PlayerOrder:        order,
		CurrentPlayerIndex: ts.CurrentPlayerIndex,
		Direction:          dir,
		CurrentColor:       ts.CurrentColor,
		PendingDrawAmount:  ts.PendingDrawAmount,
		PendingDrawType:    ts.PendingDrawType,
		MustChooseColor:    ts.MustChooseColor,
		PendingColorPlayer: ts.PendingColorPlayer,
		PendingWild4:       ts.PendingWild4,
		PlayerHasDrawn:     ts.PlayerHasDrawn,
		UnoCalledBy:        uno,
		TurnNumber:         ts.TurnNumber,
		Winner:             ts.Winner,
		LastAction:         ts.LastAction,
	}, true
}

// WithState returns a copy of r holding s. The turn timestamp moves to now
// only when the current player index changed; card counts and call flags
// are recomputed from s. r itself is not modified.
func (r *Room) WithState(s game.State, now time.Time) *Room {
	out := *r

	prev := r.GameState
	ts := TurnState{}
	if prev != nil {
		ts.GameID = prev.GameID
		ts.PlayerNames = prev.PlayerNames
		ts.TurnStartedAt = prev.TurnStartedAt
	}
	if prev == nil || prev.CurrentPlayerIndex != s.CurrentPlayerIndex {
		ts.TurnStartedAt = now.UnixMilli()
	}
	ts.PlayerOrder = Seq[string](s.PlayerOrder)
	ts.CurrentPlayerIndex = s.CurrentPlayerIndex
	ts.Direction = s.Direction
	ts.CurrentColor = s.CurrentColor
	ts.PendingDrawAmount = s.PendingDrawAmount
	ts.PendingDrawType = s.PendingDrawType
	ts.MustChooseColor = s.MustChooseColor
	ts.PendingColorPlayer = s.PendingColorPlayer
	ts.PendingWild4 = s.PendingWild4
	ts.PlayerHasDrawn = s.PlayerHasDrawn
	ts.UnoCalledBy = s.UnoCalledBy
	ts.TurnNumber = s.TurnNumber
	ts.Winner = s.Winner
	ts.LastAction = s.LastAction
	out.GameState = &ts

	out.Hands = make(map[string]Seq[game.Card], len(s.Hands))
	for pid, h := range s.Hands {
		out.Hands[pid] = Seq[game.Card](h)
	}
	out.DrawPile = Seq[game.Card](s.DrawPile)
	out.DiscardPile = Seq[game.Card](s.DiscardPile)

	out.Players = make(map[string]PlayerInfo, len(r.Players))
	for pid, p := range r.Players {
		if h, ok := s.Hands[pid]; ok {
			p.CardCount = len(h)
			p.HasCalledUno = s.UnoCalledBy[pid]
		}
		out.Players[pid] = p
	}
	return &out
}

// Reset returns a copy of r back in the waiting stage with no game.
func (r *Room) Reset() *Room {
	out := *r
	out.Status = StatusWaiting
	out.GameState = nil
	out.Hands = nil
	out.DrawPile = nil
	out.DiscardPile = nil
	out.Scores = nil
	out.Players = make(map[string]PlayerInfo, len(r.Players))
	for pid, p := range r.Players {
		p.CardCount = 0
		p.HasCalledUno = false
		out.Players[pid] = p
	}
	return &out
}

// CurrentTurn identifies the turn r is on.
func (r *Room) CurrentTurn() (TurnMark, bool) {
	s, ok := r.State()
	if !ok || r.Status != StatusPlaying {
		return TurnMark{}, false
	}
	return MarkOf(s, r.GameState.TurnStartedAt), true
}

// TurnMark pins down one turn of one player so late timers can tell whether
// the turn they were set for is still the current one.
type TurnMark struct {
	Player     string `json:"player"`
	Index      int    `json:"index"`
	TurnNumber int    `json:"turnNumber"`
	StartedAt  int64  `json:"startedAt"`
}

// MarkOf returns the mark of the turn s is on.
func MarkOf(s game.State, startedAt int64) TurnMark {
	return TurnMark{
		Player:     s.CurrentPlayer(),
		Index:      s.CurrentPlayerIndex,
		TurnNumber: s.TurnNumber,
		StartedAt:  startedAt,
	}
}
