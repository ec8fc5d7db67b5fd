// internal/models/goal.go
package models

import "github.com/google/uuid"

// Goal is a completable objective pulled from a game's goal pool. Difficulty 0
// means unranked. Categories are free-form names; the first listed category is
// treated as the goal's primary type by the generator.
type Goal struct {
	ID          uuid.UUID `json:"id"`
	Text        string    `json:"text"`
	Description string    `json:"description,omitempty"`
	Difficulty  int       `json:"difficulty,omitempty"`
	Categories  []string  `json:"categories,omitempty"`
}

// HasCategory reports whether the goal carries the named category.
func (g *Goal) HasCategory(name string) bool {
	for _, c := range g.Categories {
		if c == name {
			return true
		}
	}
	return false
}

// Category is read-only generation input. MaxPerBoard 0 means unlimited.
type Category struct {
	Name        string `json:"name"`
	MaxPerBoard int    `json:"maxPerBoard,omitempty"`
}

// Variant is a named difficulty-variant definition: how many goals each
// difficulty group is expected to contribute to a board.
type Variant struct {
	Name        string      `json:"name"`
	GroupCounts map[int]int `json:"groupCounts"`
}

// TotalCount sums the per-group goal counts.
func (v *Variant) TotalCount() int {
	total := 0
	for _, n := range v.GroupCounts {
		total += n
	}
	return total
}
