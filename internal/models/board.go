// internal/models/board.go
package models

// BoardSize is the side length of a bingo board.
const BoardSize = 5

// BoardCells is the total number of cells on a board.
const BoardCells = BoardSize * BoardSize

// Cell is one board position: its assigned goal plus the color tokens that
// have marked it, in marking order.
type Cell struct {
	Goal   Goal     `json:"goal"`
	Colors []string `json:"colors"`
}

// Marked reports whether the given color has marked this cell.
func (c *Cell) Marked(color string) bool {
	for _, col := range c.Colors {
		if col == color {
			return true
		}
	}
	return false
}

// AddColor inserts color into the cell's mark set. Returns false if the color
// was already present.
func (c *Cell) AddColor(color string) bool {
	if c.Marked(color) {
		return false
	}
	c.Colors = append(c.Colors, color)
	return true
}

// RemoveColor removes color from the cell's mark set. Returns false if the
// color was not present.
func (c *Cell) RemoveColor(color string) bool {
	for i, col := range c.Colors {
		if col == color {
			c.Colors = append(c.Colors[:i], c.Colors[i+1:]...)
			return true
		}
	}
	return false
}

// Board is the 5x5 grid for a room, stored in row-major cell order.
type Board struct {
	Cells [BoardCells]Cell `json:"cells"`
}

// At returns the cell at (row, col).
func (b *Board) At(row, col int) *Cell {
	return &b.Cells[row*BoardSize+col]
}

// ColorMask builds the 25-bit mask of cells marked by the given color, bit i
// corresponding to row-major cell index i.
func (b *Board) ColorMask(color string) uint32 {
	var mask uint32
	for i := range b.Cells {
		if b.Cells[i].Marked(color) {
			mask |= 1 << uint(i)
		}
	}
	return mask
}

// NewBoardFromGoals lays a row-major goal list onto a fresh board with no
// marks. The slice must hold exactly BoardCells goals.
func NewBoardFromGoals(goals []Goal) *Board {
	b := &Board{}
	for i := range b.Cells {
		b.Cells[i].Goal = goals[i]
		b.Cells[i].Colors = []string{}
	}
	return b
}
