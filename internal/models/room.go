// internal/models/room.go
package models

import "github.com/google/uuid"

// Win modes supported by a room.
const (
	WinModeLines    = "lines"    // first color to complete LineThreshold lines
	WinModeBlackout = "blackout" // first color to mark every cell
	WinModeLockout  = "lockout"  // majority of cells, marks are exclusive
)

// RoomSettings is the persisted, slow-changing part of a room: everything a
// room needs to be rehydrated after a restart, minus the live board/roster.
type RoomSettings struct {
	ID       uuid.UUID `json:"id"`
	Slug     string    `json:"slug"`
	Name     string    `json:"name"`
	GameSlug string    `json:"gameSlug"`

	// Password is compared in plain form at authorize time.
	Password string `json:"-"`

	HideCard      bool   `json:"hideCard"`
	WinMode       string `json:"winMode"`
	LineThreshold int    `json:"lineThreshold"`
	RaceEligible  bool   `json:"raceEligible"`
}

// ChatMessage is one line of the append-only room transcript. System lines
// (joins, marks, color changes) carry System=true and no player color.
type ChatMessage struct {
	Nickname  string `json:"nickname,omitempty"`
	Color     string `json:"color,omitempty"`
	Text      string `json:"text"`
	System    bool   `json:"system,omitempty"`
	Timestamp int64  `json:"timestamp"`
}
