// internal/generator/restriction.go
package generator

import (
	"fmt"

	"github.com/speedbingo/bingo-service/internal/models"
)

// lineNeighbors[i] lists the other cells sharing a row, column, or diagonal
// with cell i. Diagonal membership only applies when cell i itself lies on
// that diagonal.
var lineNeighbors = buildNeighborTable()

func buildNeighborTable() [25][]int {
	var table [25][]int
	for i := 0; i < 25; i++ {
		row, col := i/5, i%5
		seen := map[int]bool{i: true}
		add := func(j int) {
			if !seen[j] {
				seen[j] = true
				table[i] = append(table[i], j)
			}
		}
		for c := 0; c < 5; c++ {
			add(row*5 + c)
		}
		for r := 0; r < 5; r++ {
			add(r*5 + col)
		}
		if row == col {
			for d := 0; d < 5; d++ {
				add(d*5 + d)
			}
		}
		if row+col == 4 {
			for d := 0; d < 5; d++ {
				add(d*5 + (4 - d))
			}
		}
	}
	return table
}

// restriction narrows a cell's candidate list using the board placed so far.
type restriction interface {
	filter(cands []*poolEntry, cell int, placed *[25]*models.Goal) []*poolEntry
}

func buildRestrictions(cfgs []RestrictionConfig) ([]restriction, error) {
	var out []restriction
	for _, c := range cfgs {
		switch c.Mode {
		case RestrictLineTypeExclusion:
			out = append(out, lineTypeExclusion{})
		default:
			return nil, fmt.Errorf("unknown restriction mode %q", c.Mode)
		}
	}
	return out, nil
}

// lineTypeExclusion keeps only the candidates with minimal category overlap
// against goals already placed on the same row, column, or diagonal. An
// overlap counts 1, plus 1 more for each side on which the shared category is
// the goal's first-listed (primary) type.
type lineTypeExclusion struct{}

func (lineTypeExclusion) filter(cands []*poolEntry, cell int, placed *[25]*models.Goal) []*poolEntry {
	if len(cands) == 0 {
		return cands
	}
	best := -1
	scores := make([]int, len(cands))
	for i, e := range cands {
		s := lineOverlap(&e.goal, cell, placed)
		scores[i] = s
		if best == -1 || s < best {
			best = s
		}
	}
	out := cands[:0:0]
	for i, e := range cands {
		if scores[i] == best {
			out = append(out, e)
		}
	}
	return out
}

func lineOverlap(g *models.Goal, cell int, placed *[25]*models.Goal) int {
	score := 0
	for _, n := range lineNeighbors[cell] {
		other := placed[n]
		if other == nil {
			continue
		}
		for ci, c := range g.Categories {
			for oi, oc := range other.Categories {
				if c != oc {
					continue
				}
				score++
				if ci == 0 {
					score++
				}
				if oi == 0 {
					score++
				}
			}
		}
	}
	return score
}
