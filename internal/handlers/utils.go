// internal/handlers/utils.go
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/jason-s-yu/uno/internal/game"
	"github.com/jason-s-yu/uno/internal/room"
	"github.com/sirupsen/logrus"
)

// PlayerIDHeader names the caller. Identity is trusted as given.
const PlayerIDHeader = "X-Player-ID"

// playerID extracts the caller from the X-Player-ID header, falling back to
// the player query parameter.
func playerID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(PlayerIDHeader)); id != "" {
		return id
	}
	return strings.TrimSpace(r.URL.Query().Get("player"))
}

// statusFor maps service errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, room.ErrRoomExists), game.IsRejection(err):
		return http.StatusConflict
	case errors.Is(err, room.ErrUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(logger *logrus.Logger, w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warnf("failed to encode response: %v", err)
	}
}

func writeError(logger *logrus.Logger, w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusServiceUnavailable {
		msg = room.ErrUnavailable.Error()
	}
	writeJSON(logger, w, status, errorResponse{Error: msg})
}

func badRequest(logger *logrus.Logger, w http.ResponseWriter, msg string) {
	writeJSON(logger, w, http.StatusBadRequest, errorResponse{Error: msg})
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
