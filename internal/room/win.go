// internal/room/win.go
package room

import "github.com/speedbingo/bingo-service/internal/models"

// lineMasks holds the 12 winning lines (5 rows, 5 columns, 2 diagonals) as
// 25-bit masks, bit i = row-major cell i.
var lineMasks = buildLineMasks()

func buildLineMasks() [12]uint32 {
	var masks [12]uint32
	for r := 0; r < 5; r++ {
		var m uint32
		for c := 0; c < 5; c++ {
			m |= 1 << uint(r*5+c)
		}
		masks[r] = m
	}
	for c := 0; c < 5; c++ {
		var m uint32
		for r := 0; r < 5; r++ {
			m |= 1 << uint(r*5+c)
		}
		masks[5+c] = m
	}
	var d1, d2 uint32
	for i := 0; i < 5; i++ {
		d1 |= 1 << uint(i*5+i)
		d2 |= 1 << uint(i*5+(4-i))
	}
	masks[10], masks[11] = d1, d2
	return masks
}

const fullBoardMask = uint32(1)<<models.BoardCells - 1

// lineCounts reports, per color present on the board, how many complete lines
// that color holds. Colors with zero complete lines are omitted, so an empty
// board yields an empty map.
func lineCounts(board *models.Board) map[string]int {
	counts := make(map[string]int)
	if board == nil {
		return counts
	}

	seen := make(map[string]bool)
	for i := range board.Cells {
		for _, color := range board.Cells[i].Colors {
			seen[color] = true
		}
	}
	for color := range seen {
		mask := board.ColorMask(color)
		n := 0
		for _, lm := range lineMasks {
			if mask&lm == lm {
				n++
			}
		}
		if n > 0 {
			counts[color] = n
		}
	}
	return counts
}

// popCount counts set bits in a player's or color's cell mask.
func popCount(mask uint32) int {
	n := 0
	for mask != 0 {
		mask &= mask - 1
		n++
	}
	return n
}

// winners applies the room's win mode to the current board. Lines mode needs
// lineThreshold complete lines; blackout needs the full board; lockout needs
// a strict majority of cells (marks are expected to be exclusive there).
func winners(board *models.Board, mode string, lineThreshold int) []string {
	if board == nil {
		return nil
	}
	var out []string
	switch mode {
	case models.WinModeBlackout:
		for color := range lineCounts(board) {
			if board.ColorMask(color) == fullBoardMask {
				out = append(out, color)
			}
		}
	case models.WinModeLockout:
		seen := make(map[string]bool)
		for i := range board.Cells {
			for _, color := range board.Cells[i].Colors {
				seen[color] = true
			}
		}
		for color := range seen {
			if popCount(board.ColorMask(color)) > models.BoardCells/2 {
				out = append(out, color)
			}
		}
	default: // lines
		if lineThreshold < 1 {
			lineThreshold = 1
		}
		for color, n := range lineCounts(board) {
			if n >= lineThreshold {
				out = append(out, color)
			}
		}
	}
	return out
}
