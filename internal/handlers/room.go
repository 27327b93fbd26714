// internal/handlers/room.go
package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/game"
	"github.com/jason-s-yu/uno/internal/room"
	"github.com/sirupsen/logrus"
)

type createRoomRequest struct {
	Code   string `json:"code"`
	Player string `json:"player"`
	Name   string `json:"name"`
}

type joinRoomRequest struct {
	Player string `json:"player"`
	Name   string `json:"name"`
}

// RoomResponse is a room document with the version it was read at.
type RoomResponse struct {
	Room    *room.Room `json:"room"`
	Version int64      `json:"version,omitempty"`
}

// ActionResponse reports an applied action.
type ActionResponse struct {
	Accepted bool        `json:"accepted"`
	Event    *game.Event `json:"event,omitempty"`
	Room     *room.Room  `json:"room,omitempty"`
	Version  int64       `json:"version,omitempty"`
	Reason   string      `json:"rejectionReason,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// PlayableResponse lists the cards a player could play right now.
type PlayableResponse struct {
	Player string      `json:"player"`
	Cards  []game.Card `json:"cards"`
}

// newRoomCode returns a short, upper-case room code.
func newRoomCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
}

// CreateRoomHandler creates a waiting room with the caller as host.
func CreateRoomHandler(logger *logrus.Logger, rs *RoomServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRoomRequest
		if err := decodeBody(r, &req); err != nil {
			badRequest(logger, w, "bad room request payload")
			return
		}
		if req.Player == "" {
			req.Player = playerID(r)
		}
		if req.Player == "" {
			badRequest(logger, w, "missing player id")
			return
		}
		if req.Code == "" {
			req.Code = newRoomCode()
		}

		rm, err := rs.Rooms.Create(r.Context(), req.Code, req.Player, req.Name)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusCreated, RoomResponse{Room: rm, Version: 1})
	}
}

// GetRoomHandler returns the current room document.
func GetRoomHandler(logger *logrus.Logger, rs *RoomServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.PathValue("code")
		rm, version, err := rs.Rooms.Get(r.Context(), code)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		if rm.Status == room.StatusPlaying {
			rs.Turns.Track(code)
		}
		writeJSON(logger, w, http.StatusOK, RoomResponse{Room: rm, Version: version})
	}
}

// JoinRoomHandler seats the caller in a waiting room.
func JoinRoomHandler(logger *logrus.Logger, rs *RoomServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req joinRoomRequest
		if err := decodeBody(r, &req); err != nil {
			badRequest(logger, w, "bad join request payload")
			return
		}
		if req.Player == "" {
			req.Player = playerID(r)
		}
		if req.Player == "" {
			badRequest(logger, w, "missing player id")
			return
		}

		rm, err := rs.Rooms.Join(r.Context(), r.PathValue("code"), req.Player, req.Name)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusOK, RoomResponse{Room: rm})
	}
}

// LeaveRoomHandler takes the caller out of a room between games. The last
// player out closes the room, answered with 204.
func LeaveRoomHandler(logger *logrus.Logger, rs *RoomServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := playerID(r)
		if actor == "" {
			badRequest(logger, w, "missing player id")
			return
		}
		code := r.PathValue("code")
		rm, err := rs.Rooms.Leave(r.Context(), code, actor)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		rs.Turns.Untrack(code)
		if rm == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(logger, w, http.StatusOK, RoomResponse{Room: rm})
	}
}

// StartRoomHandler deals a game. Only the host may start.
func StartRoomHandler(logger *logrus.Logger, rs *RoomServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := playerID(r)
		if actor == "" {
			badRequest(logger, w, "missing player id")
			return
		}
		code := r.PathValue("code")
		rm, err := rs.Rooms.Start(r.Context(), code, actor)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		rs.Turns.Track(code)
		writeJSON(logger, w, http.StatusOK, RoomResponse{Room: rm})
	}
}

// RematchRoomHandler returns a played room to the lobby.
func RematchRoomHandler(logger *logrus.Logger, rs *RoomServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := playerID(r)
		if actor == "" {
			badRequest(logger, w, "missing player id")
			return
		}
		code := r.PathValue("code")
		rm, err := rs.Rooms.Rematch(r.Context(), code, actor)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		rs.Turns.Untrack(code)
		writeJSON(logger, w, http.StatusOK, RoomResponse{Room: rm})
	}
}

// ActionHandler applies one game action for the caller.
func ActionHandler(logger *logrus.Logger, rs *RoomServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := playerID(r)
		if actor == "" {
			badRequest(logger, w, "missing player id")
			return
		}
		var a game.Action
		if err := decodeBody(r, &a); err != nil || a.Type == "" {
			badRequest(logger, w, "bad action payload")
			return
		}

		code := r.PathValue("code")
		out, err := rs.Rooms.Apply(r.Context(), code, actor, a)
		if err != nil {
			if game.IsRejection(err) {
				// someone is waiting on this room; make sure its clock runs
				rs.Turns.Track(code)
				writeJSON(logger, w, http.StatusConflict, ActionResponse{Reason: out.Reason, Error: err.Error()})
				return
			}
			writeError(logger, w, err)
			return
		}
		if out.Room.Status == room.StatusPlaying {
			rs.Turns.Track(code)
		}
		writeJSON(logger, w, http.StatusOK, ActionResponse{
			Accepted: true,
			Event:    out.Event,
			Room:     out.Room,
			Version:  out.Version,
		})
	}
}

// PlayableHandler lists the player's currently playable cards.
func PlayableHandler(logger *logrus.Logger, rs *RoomServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		player := playerID(r)
		if player == "" {
			badRequest(logger, w, "missing player id")
			return
		}
		rm, _, err := rs.Rooms.Get(r.Context(), r.PathValue("code"))
		if err != nil {
			writeError(logger, w, err)
			return
		}
		s, ok := rm.State()
		if !ok || rm.Status != room.StatusPlaying {
			writeError(logger, w, room.ErrNotPlaying)
			return
		}
		if s.SeatOf(player) < 0 {
			writeError(logger, w, game.ErrNotSeated)
			return
		}
		cards := s.PlayableFor(player)
		if cards == nil {
			cards = []game.Card{}
		}
		writeJSON(logger, w, http.StatusOK, PlayableResponse{Player: player, Cards: cards})
	}
}
