// internal/handlers/ws.go
//
// WebSocket gateway for rooms. The gateway owns transport and admission:
// every inbound message re-presents its token, which is verified, matched
// against the URL slug, and checked against the room's revocable set before
// the action is forwarded into the room loop. The room itself never sees an
// unauthorized message.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/speedbingo/bingo-service/internal/auth"
	"github.com/speedbingo/bingo-service/internal/middleware"
	"github.com/speedbingo/bingo-service/internal/room"
)

const (
	roomSubprotocol = "bingo"
	joinWindow      = 30 * time.Second
	writeTimeout    = 5 * time.Second
	pingInterval    = 30 * time.Second
)

// clientMessage is the inbound envelope. The token rides on every message,
// not just the first: revocation takes effect mid-connection.
type clientMessage struct {
	Action    string `json:"action"`
	AuthToken string `json:"authToken"`
	room.Payload
}

// RoomWSHandler upgrades /rooms/{slug}/ws connections and runs the
// read/write pumps against the room's inbox.
func RoomWSHandler(logger *logrus.Logger, reg *room.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := wsSlug(r.URL.Path)
		if slug == "" {
			http.Error(w, "missing room slug", http.StatusBadRequest)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{roomSubprotocol},
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != roomSubprotocol {
			c.Close(BadSubprotocolError, "client must speak the bingo subprotocol")
			return
		}

		rm, err := reg.GetOrLoad(r.Context(), slug)
		if err != nil {
			logger.WithError(err).WithField("room", slug).Warn("room lookup failed")
			c.Close(UnknownRoomError, "room does not exist")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		conn := &room.Connection{
			ID:     uuid.New(),
			Out:    make(chan room.ServerMessage, 64),
			Cancel: cancel,
		}

		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)
		go writePump(ctx, c, conn, logger)

		// A socket that never joins is dropped after the connect window.
		joinTimer := time.AfterFunc(joinWindow, func() {
			c.Close(JoinTimeoutError, "no join within connect window")
			cancel()
		})
		defer joinTimer.Stop()

		joined := readPump(ctx, c, rm, conn, joinTimer, logger)

		if joined {
			rm.Submit(room.Action{Name: room.ActionLeave, Conn: conn})
		}
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, nil)
	}
}

// wsSlug extracts the slug from /rooms/{slug}/ws.
func wsSlug(path string) string {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(path, "/rooms/"), "/ws")
	if trimmed == path || strings.Contains(trimmed, "/") {
		return ""
	}
	return trimmed
}

// readPump drains inbound frames until the socket dies. Returns whether the
// connection ever joined, so the caller can submit the matching leave.
func readPump(ctx context.Context, c *websocket.Conn, rm *room.Room, conn *room.Connection, joinTimer *time.Timer, logger *logrus.Logger) bool {
	joined := false
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway &&
				!strings.Contains(err.Error(), "context canceled") {
				logger.WithError(err).WithField("room", rm.Slug()).Debug("websocket read ended")
			}
			return joined
		}
		if typ != websocket.MessageText {
			continue
		}

		// Literal keepalive frames bypass the JSON envelope entirely.
		if string(data) == "ping" {
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			_ = c.Write(writeCtx, websocket.MessageText, []byte("pong"))
			cancel()
			continue
		}

		var env clientMessage
		if err := json.Unmarshal(data, &env); err != nil {
			// Malformed frames are dropped, not fatal.
			continue
		}

		claims, ok := authorize(rm, conn, env.AuthToken)
		if !ok {
			continue
		}
		if !admitted(env.Action, claims) {
			conn.Send(room.ServerMessage{Type: room.MsgForbidden, Reason: "action not permitted"})
			continue
		}
		if env.Action == room.ActionJoin {
			joined = true
			joinTimer.Stop()
		} else if !joined {
			conn.Send(room.ServerMessage{Type: room.MsgForbidden, Reason: "join the room first"})
			continue
		}

		if !rm.Submit(room.Action{
			Name:    env.Action,
			Conn:    conn,
			Claims:  claims,
			Payload: env.Payload,
		}) {
			return joined // room closed underneath us
		}
		if env.Action == room.ActionLeave {
			return false // leave already submitted
		}
	}
}

// authorize verifies the per-message token: valid signature, slug matching
// the connection's room, and presence in the room's live token set. A token
// signed for another room is revoked on the spot.
func authorize(rm *room.Room, conn *room.Connection, token string) (*auth.Claims, bool) {
	claims, err := auth.ParseToken(token)
	if err != nil {
		conn.Send(room.ServerMessage{Type: room.MsgUnauthorized, Reason: "invalid token"})
		return nil, false
	}
	if claims.RoomSlug != rm.Slug() {
		rm.Tokens().Invalidate(claims.CID)
		conn.Send(room.ServerMessage{Type: room.MsgUnauthorized, Reason: "token not issued for this room"})
		return nil, false
	}
	if !rm.Tokens().Valid(claims.CID) {
		conn.Send(room.ServerMessage{Type: room.MsgUnauthorized, Reason: "token revoked"})
		return nil, false
	}
	return claims, true
}

// admitted is the per-action authorization table.
func admitted(action string, claims *auth.Claims) bool {
	switch action {
	case room.ActionMark, room.ActionUnmark, room.ActionChangeColor,
		room.ActionReadyUp, room.ActionUnready, room.ActionFinish, room.ActionUnfinish:
		return !claims.Spectator
	case room.ActionNewCard, room.ActionStartTimer, room.ActionResetTimer,
		room.ActionChangeRaceHandler:
		return claims.Monitor
	default:
		return true
	}
}

// writePump serializes outbound messages and keeps the connection alive with
// periodic pings.
func writePump(ctx context.Context, c *websocket.Conn, conn *room.Connection, logger *logrus.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-conn.Out:
			data, err := json.Marshal(msg)
			if err != nil {
				logger.WithError(err).Warn("failed to marshal outbound message")
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return
			}
			if msg.Type == room.MsgDisconnected {
				c.Close(websocket.StatusNormalClosure, msg.Reason)
				if conn.Cancel != nil {
					conn.Cancel()
				}
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
