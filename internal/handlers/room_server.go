// internal/handlers/room_server.go
package handlers

import (
	"net/http"

	"github.com/jason-s-yu/uno/internal/middleware"
	"github.com/jason-s-yu/uno/internal/notify"
	"github.com/jason-s-yu/uno/internal/room"
	"github.com/sirupsen/logrus"
)

// Tracker follows rooms whose turn clock should be enforced.
type Tracker interface {
	Track(code string)
	Untrack(code string)
}

type noTracker struct{}

func (noTracker) Track(string)   {}
func (noTracker) Untrack(string) {}

// RoomServer bundles what the room handlers share.
type RoomServer struct {
	Rooms *room.Service
	Bus   notify.Bus
	Turns Tracker
}

// NewRoomServer builds a RoomServer. turns may be nil when no turn clock runs.
func NewRoomServer(rooms *room.Service, bus notify.Bus, turns Tracker) *RoomServer {
	if turns == nil {
		turns = noTracker{}
	}
	return &RoomServer{Rooms: rooms, Bus: bus, Turns: turns}
}

// Routes registers every room endpoint behind the logging middleware.
func (rs *RoomServer) Routes(logger *logrus.Logger) http.Handler {
	mux := http.NewServeMux()
	logged := middleware.LogMiddleware(logger)

	mux.Handle("POST /rooms", logged(CreateRoomHandler(logger, rs)))
	mux.Handle("GET /rooms/{code}", logged(GetRoomHandler(logger, rs)))
	mux.Handle("POST /rooms/{code}/join", logged(JoinRoomHandler(logger, rs)))
	mux.Handle("POST /rooms/{code}/leave", logged(LeaveRoomHandler(logger, rs)))
	mux.Handle("POST /rooms/{code}/start", logged(StartRoomHandler(logger, rs)))
	mux.Handle("POST /rooms/{code}/rematch", logged(RematchRoomHandler(logger, rs)))
	mux.Handle("POST /rooms/{code}/actions", logged(ActionHandler(logger, rs)))
	mux.Handle("GET /rooms/{code}/playable", logged(PlayableHandler(logger, rs)))
	mux.Handle("GET /rooms/{code}/ws", logged(RoomWSHandler(logger, rs)))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}
