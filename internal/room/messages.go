// internal/room/messages.go
package room

import (
	"sort"

	"github.com/google/uuid"

	"github.com/speedbingo/bingo-service/internal/models"
)

// Outbound message kinds.
const (
	MsgConnected      = "connected"
	MsgDisconnected   = "disconnected"
	MsgUnauthorized   = "unauthorized"
	MsgForbidden      = "forbidden"
	MsgChat           = "chat"
	MsgCellUpdate     = "cellUpdate"
	MsgSyncBoard      = "syncBoard"
	MsgSyncRaceData   = "syncRaceData"
	MsgUpdateRoomData = "updateRoomData"
)

// PlayerSnapshot is the roster view carried on every outbound message.
type PlayerSnapshot struct {
	Nickname   string `json:"nickname"`
	Color      string `json:"color"`
	Spectator  bool   `json:"spectator"`
	Monitor    bool   `json:"monitor"`
	Connected  int    `json:"connected"` // open connection count
	RaceStatus string `json:"raceStatus,omitempty"`
}

// CellUpdate is the delta broadcast after a real mark/unmark change.
type CellUpdate struct {
	Row    int      `json:"row"`
	Col    int      `json:"col"`
	Colors []string `json:"colors"`
}

// RoomInfo is the room metadata slice of a snapshot.
type RoomInfo struct {
	Slug          string `json:"slug"`
	Name          string `json:"name"`
	GameSlug      string `json:"gameSlug"`
	HideCard      bool   `json:"hideCard"`
	WinMode       string `json:"winMode"`
	LineThreshold int    `json:"lineThreshold"`
	RaceEligible  bool   `json:"raceEligible"`
}

// RaceSnapshot is the race slice of a snapshot.
type RaceSnapshot struct {
	Kind      string `json:"kind"`
	StartTime int64  `json:"startTime,omitempty"`
	EndTime   int64  `json:"endTime,omitempty"`
}

// ServerMessage is the outbound envelope. Every message carries a freshly
// computed roster; the remaining fields depend on Type.
type ServerMessage struct {
	Type    string           `json:"type"`
	Players []PlayerSnapshot `json:"players"`

	Chat        *models.ChatMessage  `json:"chat,omitempty"`
	ChatHistory []models.ChatMessage `json:"chatHistory,omitempty"`

	Cell   *CellUpdate   `json:"cell,omitempty"`
	Board  []models.Cell `json:"board,omitempty"`
	Hidden bool          `json:"hidden,omitempty"`
	Seed   int64         `json:"seed,omitempty"`

	Room *RoomInfo     `json:"room,omitempty"`
	Race *RaceSnapshot `json:"race,omitempty"`

	// LineCounts maps color to completed line count after win evaluation.
	LineCounts map[string]int `json:"lineCounts,omitempty"`
	Winners    []string       `json:"winners,omitempty"`

	Reason string `json:"reason,omitempty"`
}

// Connection is one open duplex client channel. CID is the correlation id of
// the token that joined it, recorded so the token can be invalidated when the
// player fully leaves. Cancel tears down the underlying socket's context.
type Connection struct {
	ID        uuid.UUID
	CID       uuid.UUID
	PlayerKey string
	Out       chan ServerMessage
	Cancel    func()
	Joined    bool
}

// Send pushes a message without ever blocking the sender; a client too slow
// to drain its buffer loses messages rather than stalling the room.
func (c *Connection) Send(msg ServerMessage) {
	select {
	case c.Out <- msg:
	default:
	}
}

// rosterSnapshot builds the deterministic roster view. Sorted by nickname,
// then key, so repeated snapshots are stable.
func (r *Room) rosterSnapshot() []PlayerSnapshot {
	counts := make(map[string]int)
	r.connMu.Lock()
	for _, c := range r.conns {
		if c.Joined {
			counts[c.PlayerKey]++
		}
	}
	r.connMu.Unlock()

	out := make([]PlayerSnapshot, 0, len(r.players))
	keys := make([]string, 0, len(r.players))
	for k := range r.players {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		pi, pj := r.players[keys[i]], r.players[keys[j]]
		if pi.Nickname != pj.Nickname {
			return pi.Nickname < pj.Nickname
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		p := r.players[k]
		out = append(out, PlayerSnapshot{
			Nickname:   p.Nickname,
			Color:      p.Color,
			Spectator:  p.Spectator,
			Monitor:    p.Monitor,
			Connected:  counts[k],
			RaceStatus: p.RaceStatus,
		})
	}
	return out
}

func (r *Room) roomInfo() *RoomInfo {
	return &RoomInfo{
		Slug:          r.settings.Slug,
		Name:          r.settings.Name,
		GameSlug:      r.settings.GameSlug,
		HideCard:      r.settings.HideCard,
		WinMode:       r.settings.WinMode,
		LineThreshold: r.settings.LineThreshold,
		RaceEligible:  r.settings.RaceEligible,
	}
}

func (r *Room) raceSnapshot() *RaceSnapshot {
	snap := &RaceSnapshot{Kind: r.raceKind}
	if r.race == nil {
		return snap
	}
	if t, ok := r.race.GetStartTime(); ok {
		snap.StartTime = t.Unix()
	}
	if t, ok := r.race.GetEndTime(); ok {
		snap.EndTime = t.Unix()
	}
	return snap
}

// boardView renders the board for one viewer: hidden rooms send an empty
// placeholder until that viewer reveals the card.
func (r *Room) boardView(playerKey string) ([]models.Cell, bool) {
	if r.board == nil {
		return nil, r.settings.HideCard
	}
	if r.settings.HideCard && !r.revealed[playerKey] {
		return nil, true
	}
	return r.board.Cells[:], false
}

// refreshRaceStatuses copies adapter statuses onto roster players.
func (r *Room) refreshRaceStatuses() {
	if r.race == nil {
		return
	}
	for _, p := range r.players {
		if st, ok := r.race.GetPlayer(p.Key); ok {
			p.RaceStatus = st.Status
		} else {
			p.RaceStatus = ""
		}
	}
}
