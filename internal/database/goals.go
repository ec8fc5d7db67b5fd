// internal/database/goals.go
package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/speedbingo/bingo-service/internal/models"
)

// FetchGoalPool loads the goal pool for a game slug. Category names are
// stored denormalized as a text array on each goal row.
func FetchGoalPool(ctx context.Context, gameSlug string) ([]models.Goal, error) {
	q := `
		SELECT g.id, g.text, COALESCE(g.description, ''), COALESCE(g.difficulty, 0), g.categories
		FROM goals g
		JOIN games gm ON g.game_id = gm.id
		WHERE gm.slug = $1
		ORDER BY g.id
	`
	rows, err := DB.Query(ctx, q, gameSlug)
	if err != nil {
		return nil, fmt.Errorf("fetch goal pool for %q: %w", gameSlug, err)
	}
	defer rows.Close()

	var pool []models.Goal
	for rows.Next() {
		var g models.Goal
		if err := rows.Scan(&g.ID, &g.Text, &g.Description, &g.Difficulty, &g.Categories); err != nil {
			return nil, err
		}
		pool = append(pool, g)
	}
	return pool, rows.Err()
}

// FetchCategories loads the category metadata for a game slug.
func FetchCategories(ctx context.Context, gameSlug string) ([]models.Category, error) {
	q := `
		SELECT c.name, COALESCE(c.max_per_board, 0)
		FROM categories c
		JOIN games gm ON c.game_id = gm.id
		WHERE gm.slug = $1
		ORDER BY c.name
	`
	rows, err := DB.Query(ctx, q, gameSlug)
	if err != nil {
		return nil, fmt.Errorf("fetch categories for %q: %w", gameSlug, err)
	}
	defer rows.Close()

	var cats []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.Name, &c.MaxPerBoard); err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// GetGameID resolves a game slug to its id, for writes keyed by game.
func GetGameID(ctx context.Context, gameSlug string) (uuid.UUID, error) {
	var id uuid.UUID
	err := DB.QueryRow(ctx, `SELECT id FROM games WHERE slug = $1`, gameSlug).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("resolve game %q: %w", gameSlug, err)
	}
	return id, nil
}
