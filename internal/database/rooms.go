// internal/database/rooms.go
package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/google/uuid"

	"github.com/speedbingo/bingo-service/internal/generator"
	"github.com/speedbingo/bingo-service/internal/models"
)

// InsertRoom persists a freshly created room row along with its last-used
// generation options.
func InsertRoom(ctx context.Context, settings models.RoomSettings, cfg generator.Config) error {
	rawCfg, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	q := `
		INSERT INTO rooms (id, slug, name, game_slug, password, hide_card, win_mode, line_threshold, race_eligible, last_config)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = DB.Exec(ctx, q,
		settings.ID, settings.Slug, settings.Name, settings.GameSlug, settings.Password,
		settings.HideCard, settings.WinMode, settings.LineThreshold, settings.RaceEligible, rawCfg)
	if err != nil {
		return fmt.Errorf("insert room %q: %w", settings.Slug, err)
	}
	return nil
}

// UpdateRoomConfig replaces the room's last-used generation options.
func UpdateRoomConfig(ctx context.Context, roomID uuid.UUID, cfg generator.Config) error {
	rawCfg, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = DB.Exec(ctx, `UPDATE rooms SET last_config = $2 WHERE id = $1`, roomID, rawCfg)
	if err != nil {
		return fmt.Errorf("update room config: %w", err)
	}
	return nil
}

// LoadRoom fetches a room row by slug for rehydration. Returns pgx.ErrNoRows
// wrapped when the slug is unknown.
func LoadRoom(ctx context.Context, slug string) (*models.RoomSettings, *generator.Config, error) {
	q := `
		SELECT id, slug, name, game_slug, password, hide_card, win_mode, line_threshold, race_eligible, last_config
		FROM rooms
		WHERE slug = $1
	`
	var settings models.RoomSettings
	var rawCfg []byte
	err := DB.QueryRow(ctx, q, slug).Scan(
		&settings.ID, &settings.Slug, &settings.Name, &settings.GameSlug, &settings.Password,
		&settings.HideCard, &settings.WinMode, &settings.LineThreshold, &settings.RaceEligible, &rawCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("load room %q: %w", slug, err)
	}
	var cfg generator.Config
	if len(rawCfg) > 0 {
		if err := json.Unmarshal(rawCfg, &cfg); err != nil {
			return nil, nil, fmt.Errorf("decode room %q config: %w", slug, err)
		}
	}
	return &settings, &cfg, nil
}

// MarkRoomClosed flags a room row closed; the historian uses this for rooms
// idle past the inactivity threshold.
func MarkRoomClosed(ctx context.Context, roomID uuid.UUID) error {
	_, err := DB.Exec(ctx, `UPDATE rooms SET closed = TRUE WHERE id = $1`, roomID)
	return err
}

// SaveBoard replaces the room's persisted board with the current one, stored
// as a flat cell-ordered list.
func SaveBoard(ctx context.Context, roomID uuid.UUID, board *models.Board) error {
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM board_cells WHERE room_id = $1`, roomID); err != nil {
			return err
		}
		q := `
			INSERT INTO board_cells (room_id, cell_index, goal_id, goal_text, goal_description, goal_difficulty, goal_categories, colors)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`
		for i := range board.Cells {
			c := &board.Cells[i]
			if _, err := tx.Exec(ctx, q, roomID, i,
				c.Goal.ID, c.Goal.Text, c.Goal.Description, c.Goal.Difficulty, c.Goal.Categories, c.Colors); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadBoard reads the persisted flat cell list back into a Board. Returns nil
// with no error when the room has no persisted board yet.
func LoadBoard(ctx context.Context, roomID uuid.UUID) (*models.Board, error) {
	q := `
		SELECT cell_index, goal_id, goal_text, goal_description, goal_difficulty, goal_categories, colors
		FROM board_cells
		WHERE room_id = $1
		ORDER BY cell_index
	`
	rows, err := DB.Query(ctx, q, roomID)
	if err != nil {
		return nil, fmt.Errorf("load board for room %s: %w", roomID, err)
	}
	defer rows.Close()

	board := &models.Board{}
	count := 0
	for rows.Next() {
		var idx int
		var cell models.Cell
		if err := rows.Scan(&idx, &cell.Goal.ID, &cell.Goal.Text, &cell.Goal.Description,
			&cell.Goal.Difficulty, &cell.Goal.Categories, &cell.Colors); err != nil {
			return nil, err
		}
		if idx < 0 || idx >= models.BoardCells {
			return nil, fmt.Errorf("board cell index %d out of range for room %s", idx, roomID)
		}
		if cell.Colors == nil {
			cell.Colors = []string{}
		}
		board.Cells[idx] = cell
		count++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	if count != models.BoardCells {
		return nil, fmt.Errorf("room %s has %d persisted cells, want %d", roomID, count, models.BoardCells)
	}
	return board, nil
}
