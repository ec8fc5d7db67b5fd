// internal/generator/generator_test.go
package generator

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedbingo/bingo-service/internal/models"
)

// testPool builds n goals cycling through 25 difficulty tiers and the given
// category names, so magic-square layouts are always satisfiable.
func testPool(n int, categories []string) []models.Goal {
	pool := make([]models.Goal, n)
	for i := 0; i < n; i++ {
		cats := []string{categories[i%len(categories)]}
		if i%3 == 0 {
			cats = append(cats, categories[(i+1)%len(categories)])
		}
		pool[i] = models.Goal{
			ID:         uuid.New(),
			Text:       fmt.Sprintf("goal %d", i),
			Difficulty: i%25 + 1,
			Categories: cats,
		}
	}
	return pool
}

var sevenCategories = []string{"dungeon", "boss", "item", "skip", "quest", "trade", "misc"}

func magicConfig(seed int64) Config {
	return Config{
		Layout:       LayoutConfig{Mode: LayoutMagic},
		Grouping:     GroupingConfig{Mode: GroupDifficulty},
		Restrictions: []RestrictionConfig{{Mode: RestrictLineTypeExclusion}},
		Seed:         seed,
	}
}

func TestGenerateDeterministic(t *testing.T) {
	pool := testPool(100, sevenCategories)
	cats := []models.Category{}
	cfg := magicConfig(12345)

	first, err := Generate(pool, cats, nil, cfg)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Generate(pool, cats, nil, cfg)
		require.NoError(t, err)
		assert.Equal(t, first.Goals, again.Goals)
		assert.Equal(t, first.Seed, again.Seed)
	}
}

func TestGenerateMagicFixtureLayout(t *testing.T) {
	pool := testPool(100, sevenCategories)
	res, err := Generate(pool, nil, nil, magicConfig(12345))
	require.NoError(t, err)
	require.Equal(t, int64(12345), res.Seed)

	// Each placed goal must come from the bucket its layout criterion names.
	for i, g := range res.Goals {
		assert.Equal(t, seed12345Layout[i], g.Difficulty, "cell %d", i)
	}

	// No goal placed twice.
	seen := make(map[uuid.UUID]bool)
	for _, g := range res.Goals {
		require.False(t, seen[g.ID])
		seen[g.ID] = true
	}
}

func TestGenerateFreshSeedReturned(t *testing.T) {
	pool := testPool(100, sevenCategories)
	cfg := magicConfig(0)
	res, err := Generate(pool, nil, nil, cfg)
	require.NoError(t, err)
	require.NotZero(t, res.Seed)

	// Replaying with the returned seed reproduces the board.
	cfg.Seed = res.Seed
	again, err := Generate(pool, nil, nil, cfg)
	require.NoError(t, err)
	assert.Equal(t, res.Goals, again.Goals)
}

func TestGenerateFailureReportsCell(t *testing.T) {
	// Only difficulty-1 goals: the magic layout needs all 25 tiers, so the
	// first cell with a different criterion has an empty candidate list.
	var pool []models.Goal
	for i := 0; i < 10; i++ {
		pool = append(pool, models.Goal{ID: uuid.New(), Text: fmt.Sprintf("g%d", i), Difficulty: 1})
	}
	_, err := Generate(pool, nil, nil, magicConfig(12345))
	require.Error(t, err)

	var genErr *Error
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, seed12345Layout[genErr.Row*5+genErr.Col], genErr.Criterion)
	assert.NotNil(t, genErr.BucketSizes)
}

func TestGenerateDifficultyFilter(t *testing.T) {
	pool := testPool(100, sevenCategories)
	// Add an unranked goal; it must fail the difficulty filter.
	unranked := models.Goal{ID: uuid.New(), Text: "unranked", Categories: []string{"misc"}}
	pool = append(pool, unranked)

	pruned, err := applyFilters(pool, []FilterConfig{{Mode: FilterDifficulty, MinDifficulty: 1, MaxDifficulty: 25}})
	require.NoError(t, err)
	assert.Len(t, pruned, 100)
	for _, g := range pruned {
		assert.NotEqual(t, unranked.ID, g.ID)
	}

	pruned, err = applyFilters(pool, []FilterConfig{{Mode: FilterDifficulty, MinDifficulty: 5, MaxDifficulty: 10}})
	require.NoError(t, err)
	for _, g := range pruned {
		assert.GreaterOrEqual(t, g.Difficulty, 5)
		assert.LessOrEqual(t, g.Difficulty, 10)
	}
}

func TestGenerateCategoryFilter(t *testing.T) {
	pool := testPool(100, sevenCategories)
	pruned, err := applyFilters(pool, []FilterConfig{{Mode: FilterCategory, Categories: []string{"boss"}}})
	require.NoError(t, err)
	require.NotEmpty(t, pruned)
	for _, g := range pruned {
		assert.True(t, g.HasCategory("boss"))
	}
}

func TestVariantValidation(t *testing.T) {
	pool := testPool(100, sevenCategories)

	bad := &models.Variant{Name: "short", GroupCounts: map[int]int{1: 10}}
	_, err := Generate(pool, nil, bad, magicConfig(12345))
	assert.Error(t, err, "variant counts not covering a full board must fail")

	good := &models.Variant{Name: "full", GroupCounts: func() map[int]int {
		m := make(map[int]int)
		for d := 1; d <= 25; d++ {
			m[d] = 1
		}
		return m
	}()}
	_, err = Generate(pool, nil, good, magicConfig(12345))
	assert.NoError(t, err)
}

func TestLineTypeExclusionPrefersMinimalOverlap(t *testing.T) {
	// Two placed "boss" goals on row 0; among candidates for cell (0,2), the
	// category-free goal must be the only survivor.
	shared := models.Goal{ID: uuid.New(), Text: "placed", Categories: []string{"boss"}}
	var placed [25]*models.Goal
	placed[0] = &shared
	placed[1] = &shared

	bossy := &poolEntry{goal: models.Goal{ID: uuid.New(), Categories: []string{"boss"}}, weight: 1}
	clean := &poolEntry{goal: models.Goal{ID: uuid.New(), Categories: []string{"misc"}}, weight: 1}

	out := lineTypeExclusion{}.filter([]*poolEntry{bossy, clean}, 2, &placed)
	require.Len(t, out, 1)
	assert.Equal(t, clean.goal.ID, out[0].goal.ID)
}

func TestLineOverlapFirstPositionCountsDouble(t *testing.T) {
	placedGoal := models.Goal{ID: uuid.New(), Categories: []string{"boss", "item"}}
	var placed [25]*models.Goal
	placed[0] = &placedGoal

	// Shared category first on both sides: 1 + 1 + 1.
	primary := models.Goal{ID: uuid.New(), Categories: []string{"boss"}}
	assert.Equal(t, 3, lineOverlap(&primary, 1, &placed))

	// Shared category second on the candidate, first on the placed goal: 1 + 1.
	secondary := models.Goal{ID: uuid.New(), Categories: []string{"misc", "boss"}}
	assert.Equal(t, 2, lineOverlap(&secondary, 1, &placed))

	// Shared category second on both sides: 1.
	both := models.Goal{ID: uuid.New(), Categories: []string{"misc", "item"}}
	assert.Equal(t, 1, lineOverlap(&both, 1, &placed))
}
