// internal/generator/generator.go
//
// Pure board-generation pipeline: goal pool + category metadata + config in,
// reproducible 5x5 goal arrangement out. Every stage is synchronous and all
// randomness flows through generators seeded from the run seed, so a fixed
// (pool, categories, config, seed) tuple always yields the same board.
package generator

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/speedbingo/bingo-service/internal/models"
)

// Result carries the generated arrangement plus the seed actually used, so a
// caller that passed seed 0 can reproduce the board later.
type Result struct {
	Goals [models.BoardCells]models.Goal
	Seed  int64
}

// Error is a generation failure: the placement loop found no valid candidate
// for a cell. It carries the offending coordinates and the remaining bucket
// state so the diagnostic reaching the room is actionable.
type Error struct {
	Row, Col    int
	Criterion   int
	BucketSizes map[int]int
}

func (e *Error) Error() string {
	return fmt.Sprintf("no valid goal for cell (%d,%d) criterion %d; remaining bucket sizes %v",
		e.Row, e.Col, e.Criterion, e.BucketSizes)
}

// Generate runs the full pipeline. Variants, when supplied, are validated
// before placement: their group counts must cover a full board and satisfy
// the layout's demand per criterion.
func Generate(pool []models.Goal, categories []models.Category, variant *models.Variant, cfg Config) (*Result, error) {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.New(rand.NewSource(time.Now().UnixNano())).Int63n(1_000_000)
		if seed == 0 {
			seed = 1
		}
	}

	pruned, err := applyFilters(pool, cfg.Filters)
	if err != nil {
		return nil, err
	}
	pruned, err = applyTransforms(pruned, cfg.Transforms)
	if err != nil {
		return nil, err
	}

	layout, err := buildLayout(cfg.Layout, seed)
	if err != nil {
		return nil, err
	}

	groupMode := cfg.Grouping.Mode
	if groupMode == "" {
		groupMode = GroupRandom
	}
	if cfg.Layout.Mode == LayoutRandom || cfg.Layout.Mode == "" {
		// Random layouts address a single bucket regardless of grouping.
		groupMode = GroupRandom
	}

	if variant != nil && groupMode == GroupDifficulty {
		if err := validateVariant(variant, layout); err != nil {
			return nil, err
		}
	}

	restrictions, err := buildRestrictions(cfg.Restrictions)
	if err != nil {
		return nil, err
	}
	adjustments, err := buildAdjustments(cfg.Adjustments)
	if err != nil {
		return nil, err
	}

	st := newRunState(pruned, categories)
	st.group(groupMode, seed)

	var placed [models.BoardCells]*models.Goal
	res := &Result{Seed: seed}
	for i := 0; i < models.BoardCells; i++ {
		bucket := 0
		if groupMode == GroupDifficulty {
			bucket = layout[i]
		}
		cands := st.candidates(bucket)
		for _, r := range restrictions {
			cands = r.filter(cands, i, &placed)
		}
		pick := pop(cands)
		if pick == nil {
			return nil, &Error{
				Row:         i / models.BoardSize,
				Col:         i % models.BoardSize,
				Criterion:   layout[i],
				BucketSizes: st.bucketSizes(),
			}
		}
		pick.placed = true
		placed[i] = &pick.goal
		res.Goals[i] = pick.goal
		for _, a := range adjustments {
			a.apply(&pick.goal, st)
		}
	}
	return res, nil
}

// pop selects the candidate with the highest selection weight; ties fall to
// the earliest entry in the bucket's shuffled order.
func pop(cands []*poolEntry) *poolEntry {
	var best *poolEntry
	for _, e := range cands {
		if best == nil || e.weight > best.weight {
			best = e
		}
	}
	return best
}

func validateVariant(v *models.Variant, layout [25]int) error {
	if v.TotalCount() != models.BoardCells {
		return fmt.Errorf("variant %q group counts sum to %d, want %d", v.Name, v.TotalCount(), models.BoardCells)
	}
	demand := make(map[int]int)
	for _, c := range layout {
		demand[c]++
	}
	for crit, n := range demand {
		if v.GroupCounts[crit] < n {
			return fmt.Errorf("variant %q supplies %d goals for group %d, layout needs %d",
				v.Name, v.GroupCounts[crit], crit, n)
		}
	}
	return nil
}
