// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the room socket. Problems found before
// the upgrade (unknown room, missing or unseated player) are plain HTTP errors.
const (
	BadSubprotocolError = 3000 // Client connected with an unsupported subprotocol.
)
