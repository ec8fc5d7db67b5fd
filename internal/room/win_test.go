// internal/room/win_test.go
package room

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/speedbingo/bingo-service/internal/models"
)

func markCells(b *models.Board, color string, idxs ...int) {
	for _, i := range idxs {
		b.Cells[i].AddColor(color)
	}
}

func emptyBoard() *models.Board {
	goals := make([]models.Goal, models.BoardCells)
	return models.NewBoardFromGoals(goals)
}

func TestLineCountsEmptyBoard(t *testing.T) {
	counts := lineCounts(emptyBoard())
	assert.Empty(t, counts)

	assert.Empty(t, lineCounts(nil))
}

func TestLineCountsSingleRow(t *testing.T) {
	b := emptyBoard()
	markCells(b, "red", 0, 1, 2, 3, 4)

	assert.Equal(t, map[string]int{"red": 1}, lineCounts(b))
}

func TestLineCountsIntersectingLines(t *testing.T) {
	b := emptyBoard()
	// Row 0 and column 0 share cell 0.
	markCells(b, "blue", 0, 1, 2, 3, 4, 5, 10, 15, 20)

	assert.Equal(t, map[string]int{"blue": 2}, lineCounts(b))
}

func TestLineCountsDiagonals(t *testing.T) {
	b := emptyBoard()
	markCells(b, "green", 0, 6, 12, 18, 24)
	markCells(b, "teal", 4, 8, 12, 16, 20)

	assert.Equal(t, map[string]int{"green": 1, "teal": 1}, lineCounts(b))
}

func TestLineCountsPartialLineOmitted(t *testing.T) {
	b := emptyBoard()
	markCells(b, "red", 0, 1, 2, 3) // four of five

	assert.Empty(t, lineCounts(b))
}

func TestWinnersLinesThreshold(t *testing.T) {
	b := emptyBoard()
	markCells(b, "red", 0, 1, 2, 3, 4)
	markCells(b, "blue", 5, 6, 7, 8, 9, 10, 11, 12, 13, 14)

	assert.ElementsMatch(t, []string{"red", "blue"}, winners(b, models.WinModeLines, 1))
	assert.ElementsMatch(t, []string{"blue"}, winners(b, models.WinModeLines, 2))
	assert.Empty(t, winners(b, models.WinModeLines, 3))
}

func TestWinnersLinesThresholdFloor(t *testing.T) {
	b := emptyBoard()
	markCells(b, "red", 0, 1, 2, 3, 4)

	// A zero threshold still requires at least one line.
	assert.ElementsMatch(t, []string{"red"}, winners(b, models.WinModeLines, 0))
	assert.Empty(t, winners(emptyBoard(), models.WinModeLines, 0))
}

func TestWinnersBlackout(t *testing.T) {
	b := emptyBoard()
	for i := 0; i < models.BoardCells-1; i++ {
		b.Cells[i].AddColor("purple")
	}
	assert.Empty(t, winners(b, models.WinModeBlackout, 0))

	b.Cells[models.BoardCells-1].AddColor("purple")
	assert.Equal(t, []string{"purple"}, winners(b, models.WinModeBlackout, 0))
}

func TestWinnersLockoutMajority(t *testing.T) {
	b := emptyBoard()
	for i := 0; i < 12; i++ {
		b.Cells[i].AddColor("red")
	}
	for i := 12; i < 24; i++ {
		b.Cells[i].AddColor("blue")
	}
	assert.Empty(t, winners(b, models.WinModeLockout, 0))

	b.Cells[24].AddColor("red")
	assert.Equal(t, []string{"red"}, winners(b, models.WinModeLockout, 0))
}

func TestWinnersNilBoard(t *testing.T) {
	assert.Nil(t, winners(nil, models.WinModeLines, 1))
}
