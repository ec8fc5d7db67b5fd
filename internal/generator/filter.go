// internal/generator/filter.go
package generator

import (
	"fmt"

	"github.com/speedbingo/bingo-service/internal/models"
)

// applyFilters composes the configured pruning predicates in order. A goal
// survives a category filter if it carries any of the listed categories, and a
// difficulty filter if its difficulty lies in the inclusive range; goals with
// no difficulty fail every difficulty filter.
func applyFilters(pool []models.Goal, filters []FilterConfig) ([]models.Goal, error) {
	out := pool
	for _, f := range filters {
		var keep func(models.Goal) bool
		switch f.Mode {
		case FilterCategory:
			cats := f.Categories
			keep = func(g models.Goal) bool {
				for _, c := range cats {
					if g.HasCategory(c) {
						return true
					}
				}
				return false
			}
		case FilterDifficulty:
			min, max := f.MinDifficulty, f.MaxDifficulty
			keep = func(g models.Goal) bool {
				if g.Difficulty == 0 {
					return false
				}
				return g.Difficulty >= min && g.Difficulty <= max
			}
		default:
			return nil, fmt.Errorf("unknown filter mode %q", f.Mode)
		}

		filtered := make([]models.Goal, 0, len(out))
		for _, g := range out {
			if keep(g) {
				filtered = append(filtered, g)
			}
		}
		out = filtered
	}
	return out, nil
}

// applyTransforms rewrites goals stage by stage. Identity is the only mode;
// the hook exists so variant-specific rewrites slot in without touching the
// placement loop.
func applyTransforms(pool []models.Goal, transforms []TransformConfig) ([]models.Goal, error) {
	for _, t := range transforms {
		switch t.Mode {
		case TransformIdentity, "":
		default:
			return nil, fmt.Errorf("unknown transform mode %q", t.Mode)
		}
	}
	return pool, nil
}
