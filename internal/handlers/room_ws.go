// internal/handlers/room_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/jason-s-yu/uno/internal/game"
	"github.com/jason-s-yu/uno/internal/middleware"
	"github.com/jason-s-yu/uno/internal/notify"
	"github.com/jason-s-yu/uno/internal/room"
	"github.com/sirupsen/logrus"
)

// Subprotocol is the WebSocket subprotocol clients must request.
const Subprotocol = "uno"

const wsWriteTimeout = 3 * time.Second

// ClientMessage is what a client sends over the room socket.
type ClientMessage struct {
	Type   string       `json:"type"` // "action" or "ping"
	Action *game.Action `json:"action,omitempty"`
}

// ServerMessage is what the room socket sends back.
type ServerMessage struct {
	Type string `json:"type"` // "result", "error", "pong" or "room_update"

	Accepted bool        `json:"accepted,omitempty"`
	Event    *game.Event `json:"event,omitempty"`
	Version  int64       `json:"version,omitempty"`
	Error    string      `json:"error,omitempty"`

	Update *notify.Update `json:"update,omitempty"`
	Room   *room.Room     `json:"room,omitempty"`
}

// RoomWSHandler upgrades the connection for one seated player. The client
// submits actions and pings; every committed change to the room is pushed
// back as a room_update carrying the fresh document.
func RoomWSHandler(logger *logrus.Logger, rs *RoomServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.PathValue("code")
		player := playerID(r)
		if player == "" {
			badRequest(logger, w, "missing player id")
			return
		}

		current, version, err := rs.Rooms.Get(r.Context(), code)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		if _, seated := current.Players[player]; !seated {
			writeJSON(logger, w, http.StatusForbidden, errorResponse{Error: "You are not a player in this room."})
			return
		}
		if current.Status == room.StatusPlaying {
			rs.Turns.Track(code)
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{Subprotocol},
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			logger.Warnf("WebSocket accept error for room %s: %v", code, err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "Internal server error during handler exit.")

		if c.Subprotocol() != Subprotocol {
			logger.Warnf("Client for room %s connected with invalid subprotocol: %s", code, c.Subprotocol())
			c.Close(BadSubprotocolError, "Client must use the 'uno' subprotocol.")
			return
		}
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path, code, player)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		sess := &wsSession{
			conn:   c,
			rs:     rs,
			code:   code,
			player: player,
			log:    logger.WithFields(logrus.Fields{"room": code, "player": player}),
		}
		var updates <-chan notify.Update
		if rs.Bus != nil {
			var stop func()
			updates, stop = rs.Bus.Subscribe(ctx, code)
			defer stop()
		}
		sess.send(ctx, ServerMessage{Type: "room_update", Room: current, Version: version})
		if updates != nil {
			go sess.forwardUpdates(ctx, updates)
		}

		err = sess.readLoop(ctx)
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, err)
		c.Close(websocket.StatusNormalClosure, "")
	}
}

type wsSession struct {
	conn   *websocket.Conn
	rs     *RoomServer
	code   string
	player string
	log    *logrus.Entry
}

func (s *wsSession) send(ctx context.Context, msg ServerMessage) {
	wctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	if err := wsjson.Write(wctx, s.conn, msg); err != nil && ctx.Err() == nil {
		s.log.Warnf("failed to write %s message: %v", msg.Type, err)
	}
}

// forwardUpdates pushes the room document after each announced commit.
func (s *wsSession) forwardUpdates(ctx context.Context, updates <-chan notify.Update) {
	for u := range updates {
		u := u
		msg := ServerMessage{Type: "room_update", Update: &u, Version: u.Version}
		if rm, version, err := s.rs.Rooms.Get(ctx, s.code); err == nil && version >= u.Version {
			msg.Room = rm
			msg.Version = version
		}
		s.send(ctx, msg)
	}
}

// readLoop handles client messages until the socket closes.
func (s *wsSession) readLoop(ctx context.Context) error {
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure || websocket.CloseStatus(err) == websocket.StatusGoingAway {
				return nil
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.send(ctx, ServerMessage{Type: "error", Error: "invalid message"})
			continue
		}

		switch msg.Type {
		case "ping":
			s.send(ctx, ServerMessage{Type: "pong"})
		case "action":
			s.handleAction(ctx, msg.Action)
		default:
			s.send(ctx, ServerMessage{Type: "error", Error: "unknown message type: " + msg.Type})
		}
	}
}

func (s *wsSession) handleAction(ctx context.Context, a *game.Action) {
	if a == nil {
		s.send(ctx, ServerMessage{Type: "error", Error: game.ErrMalformedAction.Error()})
		return
	}
	out, err := s.rs.Rooms.Apply(ctx, s.code, s.player, *a)
	if err != nil {
		msg := err.Error()
		if game.IsRejection(err) {
			s.rs.Turns.Track(s.code)
		} else {
			msg = room.ErrUnavailable.Error()
			if errors.Is(err, room.ErrRoomNotFound) {
				msg = err.Error()
			}
		}
		s.send(ctx, ServerMessage{Type: "error", Error: msg})
		return
	}
	if out.Room.Status == room.StatusPlaying {
		s.rs.Turns.Track(s.code)
	}
	s.send(ctx, ServerMessage{Type: "result", Accepted: true, Event: out.Event, Version: out.Version})
}
