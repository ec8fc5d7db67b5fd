// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the room gateway. These give clients
// more specific reasons for closure than the standard codes.
const (
	BadSubprotocolError = 3000 // client connected with an unsupported subprotocol
	UnknownRoomError    = 3001 // slug in the WS URL matches no live or persisted room
	JoinTimeoutError    = 3002 // no successful join arrived within the connect window
)
