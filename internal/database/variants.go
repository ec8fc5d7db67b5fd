// internal/database/variants.go
package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/speedbingo/bingo-service/internal/models"
)

// FetchVariant loads one difficulty-variant definition by game slug and name.
// Group counts live as a JSONB column keyed by difficulty group.
func FetchVariant(ctx context.Context, gameSlug, name string) (*models.Variant, error) {
	q := `
		SELECT v.name, v.group_counts
		FROM variants v
		JOIN games gm ON v.game_id = gm.id
		WHERE gm.slug = $1 AND v.name = $2
	`
	var v models.Variant
	var raw []byte
	if err := DB.QueryRow(ctx, q, gameSlug, name).Scan(&v.Name, &raw); err != nil {
		return nil, fmt.Errorf("fetch variant %q/%q: %w", gameSlug, name, err)
	}
	if err := json.Unmarshal(raw, &v.GroupCounts); err != nil {
		return nil, fmt.Errorf("decode variant %q group counts: %w", name, err)
	}
	return &v, nil
}

// ListVariants returns all variant definitions for a game slug.
func ListVariants(ctx context.Context, gameSlug string) ([]models.Variant, error) {
	q := `
		SELECT v.name, v.group_counts
		FROM variants v
		JOIN games gm ON v.game_id = gm.id
		WHERE gm.slug = $1
		ORDER BY v.name
	`
	rows, err := DB.Query(ctx, q, gameSlug)
	if err != nil {
		return nil, fmt.Errorf("list variants for %q: %w", gameSlug, err)
	}
	defer rows.Close()

	var out []models.Variant
	for rows.Next() {
		var v models.Variant
		var raw []byte
		if err := rows.Scan(&v.Name, &raw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &v.GroupCounts); err != nil {
			return nil, fmt.Errorf("decode variant %q group counts: %w", v.Name, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// UpsertVariant creates or replaces a variant definition.
func UpsertVariant(ctx context.Context, gameSlug string, v models.Variant) error {
	gameID, err := GetGameID(ctx, gameSlug)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(v.GroupCounts)
	if err != nil {
		return err
	}
	q := `
		INSERT INTO variants (game_id, name, group_counts)
		VALUES ($1, $2, $3)
		ON CONFLICT (game_id, name) DO UPDATE SET group_counts = $3
	`
	if _, err := DB.Exec(ctx, q, gameID, v.Name, raw); err != nil {
		return fmt.Errorf("upsert variant %q: %w", v.Name, err)
	}
	return nil
}
