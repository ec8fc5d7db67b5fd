// internal/room/handlers.go
package room

import (
	"context"
	"strings"
	"time"

	"github.com/speedbingo/bingo-service/internal/models"
	"github.com/speedbingo/bingo-service/internal/race"
)

// Inbound action names. The gateway's admission table is keyed on these.
const (
	ActionJoin              = "join"
	ActionLeave             = "leave"
	ActionChat              = "chat"
	ActionMark              = "mark"
	ActionUnmark            = "unmark"
	ActionChangeColor       = "changeColor"
	ActionNewCard           = "newCard"
	ActionRevealCard        = "revealCard"
	ActionStartTimer        = "startTimer"
	ActionResetTimer        = "resetTimer"
	ActionChangeRaceHandler = "changeRaceHandler"
	ActionReadyUp           = "readyUp"
	ActionUnready           = "unready"
	ActionFinish            = "finish"
	ActionUnfinish          = "unfinish"
)

const maxChatLen = 4096

func (r *Room) handle(a Action) {
	switch a.Name {
	case actionIdleWarn:
		r.systemChat("This room will close in " + r.closeAfterWarn.String() + " due to inactivity.")
		r.armCloseTimer()
		return
	case actionIdleClose:
		r.Close()
		return
	case actionRaceSync:
		r.refreshRaceStatuses()
		r.broadcast(ServerMessage{Type: MsgSyncRaceData, Race: r.raceSnapshot()})
		return
	}

	// Every accepted external action counts as room activity.
	r.resetIdleTimer()

	switch a.Name {
	case ActionJoin:
		r.handleJoin(a)
	case ActionLeave:
		r.handleLeave(a)
	case ActionChat:
		r.handleChat(a)
	case ActionMark:
		r.handleMark(a, true)
	case ActionUnmark:
		r.handleMark(a, false)
	case ActionChangeColor:
		r.handleChangeColor(a)
	case ActionNewCard:
		r.handleNewCard(a)
	case ActionRevealCard:
		r.handleRevealCard(a)
	case ActionStartTimer:
		r.handleStartTimer(a)
	case ActionResetTimer:
		r.handleResetTimer(a)
	case ActionChangeRaceHandler:
		r.handleChangeRaceHandler(a)
	case ActionReadyUp:
		r.handleRaceTransition(a, func(ad race.Adapter) raceOp { return ad.ReadyPlayer })
	case ActionUnready:
		r.handleRaceTransition(a, func(ad race.Adapter) raceOp { return ad.UnreadyPlayer })
	case ActionFinish:
		r.handleRaceTransition(a, func(ad race.Adapter) raceOp { return ad.PlayerFinished })
	case ActionUnfinish:
		r.handleRaceTransition(a, func(ad race.Adapter) raceOp { return ad.PlayerUnfinished })
	default:
		// Unknown actions are ignored, not errors: older clients may lag
		// behind the protocol.
	}
}

// player returns the roster entry for an action's claims, nil when the sender
// never joined. Handlers other than join bail out on nil.
func (r *Room) player(a Action) *models.Player {
	if a.Claims == nil {
		return nil
	}
	return r.players[a.Claims.PlayerKey]
}

func (r *Room) handleJoin(a Action) {
	if a.Conn == nil || a.Claims == nil {
		return
	}
	key := a.Claims.PlayerKey

	p, known := r.players[key]
	if !known {
		nickname := strings.TrimSpace(a.Payload.Nickname)
		if nickname == "" {
			// A first join must introduce itself; without a nickname there
			// is no roster entry to attach to.
			a.Conn.Send(ServerMessage{Type: MsgUnauthorized, Reason: "nickname required on first join"})
			return
		}
		p = &models.Player{
			Key:       key,
			Nickname:  nickname,
			Color:     models.DefaultColor,
			Spectator: a.Claims.Spectator,
			Monitor:   a.Claims.Monitor,
			AccountID: a.Claims.AccountID,
		}
		r.players[key] = p
	}

	a.Conn.PlayerKey = key
	a.Conn.CID = a.Claims.CID
	a.Conn.Joined = true
	r.connMu.Lock()
	r.conns[a.Conn.ID] = a.Conn
	r.connMu.Unlock()

	cells, hidden := r.boardView(key)
	r.sendTo(a.Conn, ServerMessage{
		Type:        MsgConnected,
		ChatHistory: r.chat,
		Board:       cells,
		Hidden:      hidden,
		Seed:        r.lastCfg.Seed,
		Room:        r.roomInfo(),
		Race:        r.raceSnapshot(),
		LineCounts:  lineCounts(r.board),
	})

	r.recordAction(ActionJoin, key, map[string]interface{}{
		"nickname":  p.Nickname,
		"spectator": p.Spectator,
		"monitor":   p.Monitor,
	})
	if !known {
		// Announce and enter the race only on the first connection; extra
		// sockets attach quietly.
		r.systemChat(p.Nickname + " joined the room")
		if r.race != nil && !p.Spectator {
			r.raceCall(key, r.race.JoinPlayer)
		}
	}
}

func (r *Room) handleLeave(a Action) {
	if a.Conn == nil {
		return
	}
	r.connMu.Lock()
	c, ok := r.conns[a.Conn.ID]
	remaining := 0
	if ok {
		delete(r.conns, a.Conn.ID)
		for _, other := range r.conns {
			if other.Joined && other.PlayerKey == c.PlayerKey {
				remaining++
			}
		}
	}
	r.connMu.Unlock()
	if !ok {
		return
	}
	if c.Cancel != nil {
		c.Cancel()
	}

	p := r.players[c.PlayerKey]
	if p == nil {
		return
	}
	if remaining > 0 {
		// Another socket still speaks for this player; nothing to announce.
		return
	}

	// Last connection gone: the roster entry leaves with it and the token
	// that joined it is revoked for good. Board marks keep their color.
	delete(r.players, c.PlayerKey)
	r.tokens.Invalidate(c.CID)
	if r.race != nil && !p.Spectator {
		r.raceCall(p.Key, r.race.LeavePlayer)
	}
	r.recordAction(ActionLeave, c.PlayerKey, nil)
	r.systemChat(p.Nickname + " left the room")
}

func (r *Room) handleChat(a Action) {
	p := r.player(a)
	if p == nil {
		return
	}
	text := strings.TrimSpace(a.Payload.Text)
	if text == "" {
		return
	}
	if len(text) > maxChatLen {
		text = text[:maxChatLen]
	}
	m := models.ChatMessage{
		Nickname:  p.Nickname,
		Color:     p.Color,
		Text:      text,
		Timestamp: time.Now().Unix(),
	}
	r.chat = append(r.chat, m)
	r.recordAction(ActionChat, p.Key, map[string]interface{}{"text": text})
	r.broadcast(ServerMessage{Type: MsgChat, Chat: &m})
}

// handleMark covers mark and unmark. Both are idempotent: re-marking an
// already marked cell (or unmarking a clean one) changes nothing and emits
// nothing.
func (r *Room) handleMark(a Action, mark bool) {
	p := r.player(a)
	if p == nil || p.Spectator || r.board == nil {
		return
	}
	if a.Payload.Row == nil || a.Payload.Col == nil {
		return
	}
	row, col := *a.Payload.Row, *a.Payload.Col
	if row < 0 || row >= models.BoardSize || col < 0 || col >= models.BoardSize {
		return
	}
	cell := r.board.At(row, col)

	idx := row*models.BoardSize + col
	var changed bool
	if mark {
		if r.settings.WinMode == models.WinModeLockout && len(cell.Colors) > 0 {
			// Lockout cells are exclusive; first color keeps it.
			return
		}
		changed = cell.AddColor(p.Color)
		if changed {
			p.MarkCell(idx)
		}
	} else {
		changed = cell.RemoveColor(p.Color)
		if changed {
			p.UnmarkCell(idx)
		}
	}
	if !changed {
		return
	}

	action := ActionMark
	notice := p.Nickname + " marked " + cell.Goal.Text
	if !mark {
		action = ActionUnmark
		notice = p.Nickname + " cleared " + cell.Goal.Text
	}
	r.recordAction(action, p.Key, map[string]interface{}{
		"row":   row,
		"col":   col,
		"color": p.Color,
	})
	r.systemChat(notice)

	counts := lineCounts(r.board)
	won := winners(r.board, r.settings.WinMode, r.settings.LineThreshold)
	r.broadcast(ServerMessage{
		Type: MsgCellUpdate,
		Cell: &CellUpdate{
			Row:    row,
			Col:    col,
			Colors: append([]string(nil), cell.Colors...),
		},
		LineCounts: counts,
		Winners:    won,
	})
}

func (r *Room) handleChangeColor(a Action) {
	p := r.player(a)
	if p == nil {
		return
	}
	color := a.Payload.Color
	if !models.ValidColor(color) || color == p.Color {
		return
	}
	old := p.Color
	p.Color = color
	r.recordAction(ActionChangeColor, p.Key, map[string]interface{}{"color": color})
	r.systemChat(p.Nickname + " changed color from " + old + " to " + color)
}

// handleNewCard regenerates the board. A generation failure leaves the old
// board untouched and reports the failure to the requester alone.
func (r *Room) handleNewCard(a Action) {
	p := r.player(a)
	if p == nil {
		return
	}

	cfg := r.lastCfg
	if a.Payload.Options != nil {
		cfg = *a.Payload.Options
		// Modes the caller leaves out default to the room's last ones.
		if cfg.Layout.Mode == "" {
			cfg.Layout.Mode = r.lastCfg.Layout.Mode
		}
		if cfg.Grouping.Mode == "" {
			cfg.Grouping.Mode = r.lastCfg.Grouping.Mode
		}
	} else {
		cfg.Seed = 0 // reuse the last config with a fresh seed
	}

	res, err := r.generate(cfg)
	if err != nil {
		if a.Conn != nil {
			m := models.ChatMessage{
				Text:      "Card generation failed: " + err.Error(),
				System:    true,
				Timestamp: time.Now().Unix(),
			}
			r.sendTo(a.Conn, ServerMessage{Type: MsgChat, Chat: &m})
		}
		return
	}

	cfg.Seed = res.Seed
	r.lastCfg = cfg
	r.board = models.NewBoardFromGoals(res.Goals[:])
	r.revealed = make(map[string]bool)
	for _, pl := range r.players {
		pl.Mask = 0
	}
	r.enqueueBoardPersist()
	r.enqueueConfigPersist()
	r.recordAction(ActionNewCard, p.Key, map[string]interface{}{"seed": res.Seed})
	r.systemChat(p.Nickname + " generated a new card")
	r.broadcastBoard(res.Seed)
}

func (r *Room) handleRevealCard(a Action) {
	p := r.player(a)
	if p == nil || a.Conn == nil {
		return
	}
	if !r.settings.HideCard || r.revealed[p.Key] {
		return
	}
	r.revealed[p.Key] = true
	r.recordAction(ActionRevealCard, p.Key, nil)
	r.systemChat(p.Nickname + " revealed the card")

	cells, hidden := r.boardView(p.Key)
	r.sendTo(a.Conn, ServerMessage{
		Type:   MsgSyncBoard,
		Board:  cells,
		Hidden: hidden,
		Seed:   r.lastCfg.Seed,
	})
}

func (r *Room) handleStartTimer(a Action) {
	p := r.player(a)
	if p == nil || r.race == nil {
		return
	}
	adapter := r.race
	logger := r.logger
	r.recordAction(ActionStartTimer, p.Key, nil)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := adapter.StartTimer(ctx); err != nil {
			logger.WithError(err).Warn("race timer start failed")
		}
		r.submitInternal(actionRaceSync)
	}()
}

// handleResetTimer discards the current race state by rebuilding the adapter
// from scratch.
func (r *Room) handleResetTimer(a Action) {
	p := r.player(a)
	if p == nil || r.race == nil {
		return
	}
	r.rebuildRaceAdapter()
	r.recordAction(ActionResetTimer, p.Key, nil)
	r.systemChat(p.Nickname + " reset the race timer")
	r.broadcast(ServerMessage{Type: MsgSyncRaceData, Race: r.raceSnapshot()})
}

func (r *Room) handleChangeRaceHandler(a Action) {
	p := r.player(a)
	if p == nil || !r.settings.RaceEligible {
		return
	}
	kind := a.Payload.RaceKind
	if kind != race.KindLocal && kind != race.KindRemote {
		return
	}
	r.raceKind = kind
	r.raceURL = a.Payload.RaceURL
	r.rebuildRaceAdapter()
	r.recordAction(ActionChangeRaceHandler, p.Key, map[string]interface{}{
		"raceKind": kind,
	})
	r.systemChat(p.Nickname + " switched race handling to " + kind)
	r.broadcast(ServerMessage{Type: MsgSyncRaceData, Race: r.raceSnapshot()})
}

func (r *Room) rebuildRaceAdapter() {
	r.race = race.New(r.raceKind)
	for _, pl := range r.players {
		pl.RaceStatus = ""
	}
	if r.raceKind == race.KindRemote && r.raceURL != "" {
		adapter := r.race
		url := r.raceURL
		logger := r.logger
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := adapter.Connect(ctx, url); err != nil {
				logger.WithError(err).WithField("url", url).Warn("race service connect failed")
			}
			r.submitInternal(actionRaceSync)
		}()
	}
}

type raceOp func(context.Context, string) (bool, error)

// handleRaceTransition runs one player-state transition against the adapter
// off the room loop, then schedules a race resync.
func (r *Room) handleRaceTransition(a Action, pick func(race.Adapter) raceOp) {
	p := r.player(a)
	if p == nil || p.Spectator || r.race == nil {
		return
	}
	r.recordAction(a.Name, p.Key, nil)
	r.raceCall(p.Key, pick(r.race))
}

func (r *Room) raceCall(key string, op raceOp) {
	logger := r.logger
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := op(ctx, key); err != nil {
			logger.WithError(err).WithField("player", key).Warn("race transition failed")
		}
		r.submitInternal(actionRaceSync)
	}()
}

// ReplayAction reapplies one persisted action during rehydration, before the
// room loop starts. It mutates state directly with no broadcasts, no audit
// records, and no race calls.
func (r *Room) ReplayAction(actionType, playerKey string, payload map[string]interface{}) {
	switch actionType {
	case ActionJoin:
		if _, ok := r.players[playerKey]; ok {
			return
		}
		p := &models.Player{
			Key:      playerKey,
			Nickname: payloadString(payload, "nickname"),
			Color:    models.DefaultColor,
		}
		if p.Nickname == "" {
			p.Nickname = "anonymous"
		}
		p.Spectator = payloadBool(payload, "spectator")
		p.Monitor = payloadBool(payload, "monitor")
		r.players[playerKey] = p
	case ActionLeave:
		delete(r.players, playerKey)
	case ActionChat:
		p := r.players[playerKey]
		if p == nil {
			return
		}
		r.chat = append(r.chat, models.ChatMessage{
			Nickname: p.Nickname,
			Color:    p.Color,
			Text:     payloadString(payload, "text"),
		})
	case ActionMark, ActionUnmark:
		if r.board == nil {
			return
		}
		row, rok := payloadInt(payload, "row")
		col, cok := payloadInt(payload, "col")
		if !rok || !cok || row < 0 || row >= models.BoardSize || col < 0 || col >= models.BoardSize {
			return
		}
		color := payloadString(payload, "color")
		cell := r.board.At(row, col)
		p := r.players[playerKey]
		idx := row*models.BoardSize + col
		if actionType == ActionMark {
			if cell.AddColor(color) && p != nil {
				p.MarkCell(idx)
			}
		} else {
			if cell.RemoveColor(color) && p != nil {
				p.UnmarkCell(idx)
			}
		}
	case ActionChangeColor:
		if p := r.players[playerKey]; p != nil {
			if color := payloadString(payload, "color"); models.ValidColor(color) {
				p.Color = color
			}
		}
	case ActionRevealCard:
		r.revealed[playerKey] = true
	case ActionNewCard:
		// The regenerated board is loaded from its own table; replay only
		// needs to wipe state the regeneration reset.
		r.revealed = make(map[string]bool)
		for _, p := range r.players {
			p.Mask = 0
		}
		if seed, ok := payloadInt(payload, "seed"); ok {
			r.lastCfg.Seed = int64(seed)
		}
	}
}

// Audit payloads round-trip through JSON, so numbers come back as float64.
func payloadInt(m map[string]interface{}, key string) (int, bool) {
	switch v := m[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

func payloadString(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func payloadBool(m map[string]interface{}, key string) bool {
	b, _ := m[key].(bool)
	return b
}
