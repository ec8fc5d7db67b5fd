// internal/generator/state.go
package generator

import (
	"math/rand"
	"sort"

	"github.com/google/uuid"
	"github.com/speedbingo/bingo-service/internal/models"
)

// poolEntry tracks one goal's selection state during a run. Weight starts at
// 1; adjustments raise it to prefer a goal or force it to 0. Frozen entries
// stay at 0 no matter what later adjustments do.
type poolEntry struct {
	goal   models.Goal
	weight int
	placed bool
	frozen bool
}

// runState is the mutable state threaded through one generation run.
type runState struct {
	entries []*poolEntry
	byID    map[uuid.UUID]*poolEntry
	buckets map[int][]*poolEntry

	// budgets holds remaining per-category placement budgets for the
	// category-maximum adjustment. Absent key = unlimited.
	budgets map[string]int
}

func newRunState(pool []models.Goal, categories []models.Category) *runState {
	st := &runState{
		byID:    make(map[uuid.UUID]*poolEntry, len(pool)),
		budgets: make(map[string]int),
	}
	for _, g := range pool {
		e := &poolEntry{goal: g, weight: 1}
		st.entries = append(st.entries, e)
		st.byID[g.ID] = e
	}
	for _, c := range categories {
		if c.MaxPerBoard > 0 {
			st.budgets[c.Name] = c.MaxPerBoard
		}
	}
	return st
}

// group partitions entries into buckets addressed by layout criteria and
// shuffles each bucket with a generator derived from the run seed. Difficulty
// grouping buckets by the goal's integer difficulty (unranked goals at 0);
// random grouping uses a single bucket 0.
func (st *runState) group(mode string, seed int64) {
	st.buckets = make(map[int][]*poolEntry)
	for _, e := range st.entries {
		key := 0
		if mode == GroupDifficulty {
			key = e.goal.Difficulty
		}
		st.buckets[key] = append(st.buckets[key], e)
	}

	keys := make([]int, 0, len(st.buckets))
	for k := range st.buckets {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	for _, k := range keys {
		r := rand.New(rand.NewSource(seed + int64(k)))
		b := st.buckets[k]
		r.Shuffle(len(b), func(i, j int) { b[i], b[j] = b[j], b[i] })
	}
}

// candidates returns the bucket's selectable entries in shuffled order.
func (st *runState) candidates(bucket int) []*poolEntry {
	var out []*poolEntry
	for _, e := range st.buckets[bucket] {
		if !e.placed && !e.frozen && e.weight > 0 {
			out = append(out, e)
		}
	}
	return out
}

// bucketSizes reports remaining selectable entries per bucket, for the
// diagnostic carried by a generation failure.
func (st *runState) bucketSizes() map[int]int {
	sizes := make(map[int]int, len(st.buckets))
	for k := range st.buckets {
		sizes[k] = len(st.candidates(k))
	}
	return sizes
}
