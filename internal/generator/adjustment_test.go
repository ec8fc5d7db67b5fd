// internal/generator/adjustment_test.go
package generator

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedbingo/bingo-service/internal/models"
)

func TestSynergizeRaisesSharedCategoryWeights(t *testing.T) {
	placed := models.Goal{ID: uuid.New(), Categories: []string{"A", "B"}}
	sharesA := models.Goal{ID: uuid.New(), Categories: []string{"A"}}
	sharesBoth := models.Goal{ID: uuid.New(), Categories: []string{"A", "B"}}
	unrelated := models.Goal{ID: uuid.New(), Categories: []string{"C"}}

	st := newRunState([]models.Goal{placed, sharesA, sharesBoth, unrelated}, nil)
	st.byID[placed.ID].placed = true

	synergize{}.apply(&placed, st)

	assert.Equal(t, 2, st.byID[sharesA.ID].weight, "one shared category adds one")
	assert.Equal(t, 3, st.byID[sharesBoth.ID].weight, "one per shared category")
	assert.Equal(t, 1, st.byID[unrelated.ID].weight)
	assert.True(t, st.byID[placed.ID].placed, "placed goal is never re-added")
	assert.Equal(t, 1, st.byID[placed.ID].weight)
}

func TestSynergizeSkipsFrozenEntries(t *testing.T) {
	placed := models.Goal{ID: uuid.New(), Categories: []string{"A"}}
	frozen := models.Goal{ID: uuid.New(), Categories: []string{"A"}}

	st := newRunState([]models.Goal{placed, frozen}, nil)
	st.byID[frozen.ID].weight = 0
	st.byID[frozen.ID].frozen = true

	synergize{}.apply(&placed, st)
	assert.Equal(t, 0, st.byID[frozen.ID].weight, "zeroed weights stay zero")
}

func TestCategoryMaxZeroesWeightsPermanently(t *testing.T) {
	catA := models.Category{Name: "A", MaxPerBoard: 2}
	g1 := models.Goal{ID: uuid.New(), Categories: []string{"A"}}
	g2 := models.Goal{ID: uuid.New(), Categories: []string{"A"}}
	g3 := models.Goal{ID: uuid.New(), Categories: []string{"A"}}
	other := models.Goal{ID: uuid.New(), Categories: []string{"B"}}

	st := newRunState([]models.Goal{g1, g2, g3, other}, []models.Category{catA})

	st.byID[g1.ID].placed = true
	categoryMax{}.apply(&g1, st)
	assert.Equal(t, 1, st.budgets["A"])
	assert.Equal(t, 1, st.byID[g2.ID].weight, "budget not exhausted yet")

	st.byID[g2.ID].placed = true
	categoryMax{}.apply(&g2, st)
	assert.Equal(t, 0, st.budgets["A"])
	assert.Equal(t, 0, st.byID[g3.ID].weight, "budget exhausted zeroes remaining goals")
	assert.True(t, st.byID[g3.ID].frozen)
	assert.Equal(t, 1, st.byID[other.ID].weight)

	// A later synergize must not resurrect the frozen goal.
	synergize{}.apply(&g2, st)
	assert.Equal(t, 0, st.byID[g3.ID].weight)
}

func TestCategoryMaxInsideGeneration(t *testing.T) {
	// 30 goals in category "cap" limited to 3 per board, plus enough
	// uncapped filler for the remaining 22 cells.
	var pool []models.Goal
	for i := 0; i < 30; i++ {
		pool = append(pool, models.Goal{ID: uuid.New(), Text: "capped", Categories: []string{"cap"}})
	}
	for i := 0; i < 40; i++ {
		pool = append(pool, models.Goal{ID: uuid.New(), Text: "filler", Categories: []string{"free"}})
	}
	cats := []models.Category{{Name: "cap", MaxPerBoard: 3}}

	cfg := Config{
		Layout:      LayoutConfig{Mode: LayoutRandom},
		Grouping:    GroupingConfig{Mode: GroupRandom},
		Adjustments: []AdjustmentConfig{{Mode: AdjustCategoryMax}},
		Seed:        777,
	}
	res, err := Generate(pool, cats, nil, cfg)
	require.NoError(t, err)

	capped := 0
	for _, g := range res.Goals {
		if g.HasCategory("cap") {
			capped++
		}
	}
	assert.LessOrEqual(t, capped, 3)
}
