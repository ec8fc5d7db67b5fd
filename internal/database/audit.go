// internal/database/audit.go
package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AuditEntry is one persisted room action. Replaying a room's entries in
// index order reconstructs its board marks, chat transcript, and roster.
type AuditEntry struct {
	RoomID      uuid.UUID
	ActionIndex int
	PlayerKey   string
	ActionType  string
	Payload     map[string]interface{}
	Timestamp   int64
}

// InsertAuditEntries writes a batch of entries in one transaction. Used by
// the historian draining the Redis queue.
func InsertAuditEntries(ctx context.Context, entries []AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
			INSERT INTO room_actions (room_id, action_index, player_key, action_type, payload, ts)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (room_id, action_index) DO NOTHING
		`
		for _, e := range entries {
			raw, err := json.Marshal(e.Payload)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, q, e.RoomID, e.ActionIndex, e.PlayerKey, e.ActionType, raw, e.Timestamp); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplayAuditEntries streams a room's actions in index order.
func ReplayAuditEntries(ctx context.Context, roomID uuid.UUID) ([]AuditEntry, error) {
	q := `
		SELECT room_id, action_index, player_key, action_type, payload, ts
		FROM room_actions
		WHERE room_id = $1
		ORDER BY action_index
	`
	rows, err := DB.Query(ctx, q, roomID)
	if err != nil {
		return nil, fmt.Errorf("replay audit for room %s: %w", roomID, err)
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var raw []byte
		if err := rows.Scan(&e.RoomID, &e.ActionIndex, &e.PlayerKey, &e.ActionType, &raw, &e.Timestamp); err != nil {
			return nil, err
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &e.Payload); err != nil {
				return nil, fmt.Errorf("decode audit payload at index %d: %w", e.ActionIndex, err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// LastAuditIndex returns the highest persisted action index for a room, or -1
// when no entries exist, so a rehydrated room can keep appending.
func LastAuditIndex(ctx context.Context, roomID uuid.UUID) (int, error) {
	var idx int
	err := DB.QueryRow(ctx,
		`SELECT COALESCE(MAX(action_index), -1) FROM room_actions WHERE room_id = $1`, roomID).Scan(&idx)
	if err != nil {
		return -1, fmt.Errorf("last audit index for room %s: %w", roomID, err)
	}
	return idx, nil
}
