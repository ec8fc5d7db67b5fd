// internal/models/player.go
package models

import "github.com/google/uuid"

// Colors a player may claim. DefaultColor is assigned on first join.
var Colors = []string{
	"orange", "red", "blue", "green", "purple",
	"navy", "teal", "brown", "pink", "yellow",
}

// DefaultColor is the color assigned to newly joined players.
const DefaultColor = "red"

// ValidColor reports whether name is in the color palette.
func ValidColor(name string) bool {
	for _, c := range Colors {
		if c == name {
			return true
		}
	}
	return false
}

// Player is one identity in a room. The key is session- or device-derived and
// stable across connections: a second connection with the same key attaches to
// the existing Player instead of duplicating it.
type Player struct {
	Key       string     `json:"key"`
	Nickname  string     `json:"nickname"`
	Color     string     `json:"color"`
	Spectator bool       `json:"spectator"`
	Monitor   bool       `json:"monitor"`
	AccountID *uuid.UUID `json:"accountID,omitempty"`

	// Mask holds the player's marked cells as a 25-bit mask,
	// bit i = row-major cell i.
	Mask uint32 `json:"mask"`

	// RaceStatus mirrors the race adapter's view of this player; empty when
	// the room has no race binding or the player never joined the race.
	RaceStatus string `json:"raceStatus,omitempty"`
}

// MarkCell sets bit idx in the player's mask. Returns false if already set.
func (p *Player) MarkCell(idx int) bool {
	bit := uint32(1) << uint(idx)
	if p.Mask&bit != 0 {
		return false
	}
	p.Mask |= bit
	return true
}

// UnmarkCell clears bit idx in the player's mask. Returns false if not set.
func (p *Player) UnmarkCell(idx int) bool {
	bit := uint32(1) << uint(idx)
	if p.Mask&bit == 0 {
		return false
	}
	p.Mask &^= bit
	return true
}
