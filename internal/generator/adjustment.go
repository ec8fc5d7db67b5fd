// internal/generator/adjustment.go
package generator

import (
	"fmt"

	"github.com/speedbingo/bingo-service/internal/models"
)

// adjustment mutates global selection state after each placement.
type adjustment interface {
	apply(placed *models.Goal, st *runState)
}

func buildAdjustments(cfgs []AdjustmentConfig) ([]adjustment, error) {
	var out []adjustment
	for _, c := range cfgs {
		switch c.Mode {
		case AdjustSynergize:
			out = append(out, synergize{})
		case AdjustCategoryMax:
			out = append(out, categoryMax{})
		default:
			return nil, fmt.Errorf("unknown adjustment mode %q", c.Mode)
		}
	}
	return out, nil
}

// synergize raises the selection weight of every remaining goal sharing a
// category with the goal just placed, one per shared category. The placed goal
// itself is never re-added, and frozen entries stay at zero.
type synergize struct{}

func (synergize) apply(placed *models.Goal, st *runState) {
	for _, e := range st.entries {
		if e.placed || e.frozen || e.goal.ID == placed.ID {
			continue
		}
		for _, c := range e.goal.Categories {
			if placed.HasCategory(c) {
				e.weight++
			}
		}
	}
}

// categoryMax decrements the remaining budget of each category the placed
// goal carries; a budget reaching zero permanently zeroes the weight of every
// goal with that category for the rest of the run.
type categoryMax struct{}

func (categoryMax) apply(placed *models.Goal, st *runState) {
	for _, c := range placed.Categories {
		budget, tracked := st.budgets[c]
		if !tracked {
			continue
		}
		budget--
		st.budgets[c] = budget
		if budget > 0 {
			continue
		}
		for _, e := range st.entries {
			if !e.placed && e.goal.HasCategory(c) {
				e.weight = 0
				e.frozen = true
			}
		}
	}
}
