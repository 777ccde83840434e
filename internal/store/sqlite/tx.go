package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/store"
)

type txn struct {
	tx *sql.Tx
}

var _ store.Tx = (*txn)(nil)

func (t *txn) Character(ctx context.Context, id int64) (*store.Character, error) {
	return getCharacter(ctx, t.tx, id)
}

func (t *txn) AxisScores(ctx context.Context, characterID int64, axes []string) (map[string]float64, error) {
	stored, err := loadScores(ctx, t.tx, characterID)
	if err != nil {
		return nil, store.NewReadError("reading axis scores", err)
	}

	scores := make(map[string]float64, len(axes))
	for _, axis := range axes {
		if score, ok := stored[axis]; ok {
			scores[axis] = score
			continue
		}
		scores[axis] = store.DefaultScore
	}
	return scores, nil
}

func (t *txn) WriteEvent(ctx context.Context, in store.EventInput) (int64, error) {
	id, err := writeEvent(ctx, t.tx, in)
	if err != nil {
		return 0, store.NewWriteError("writing axis event", err)
	}
	return id, nil
}

func loadScores(ctx context.Context, q queryer, characterID int64) (map[string]float64, error) {
	rows, err := q.QueryContext(ctx, `SELECT axis, score FROM axis_scores WHERE character_id = ?`, characterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	scores := make(map[string]float64)
	for rows.Next() {
		var axis string
		var score float64
		if err := rows.Scan(&axis, &score); err != nil {
			return nil, fmt.Errorf("scanning axis score: %w", err)
		}
		scores[axis] = score
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating axis scores: %w", err)
	}
	return scores, nil
}

func writeEvent(ctx context.Context, tx *sql.Tx, in store.EventInput) (int64, error) {
	occurredAt := in.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	snapshot := in.Snapshot
	if snapshot == nil {
		snapshot = store.Snapshot{}
	}
	snapshotJSON, err := json.Marshal(snapshot)
	if err != nil {
		return 0, fmt.Errorf("marshaling snapshot: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
	INSERT INTO axis_events (world_id, event_type, fingerprint, snapshot, occurred_at)
	VALUES (?, ?, ?, ?, ?)
	`, in.WorldID, in.EventType, in.Fingerprint, string(snapshotJSON), formatTime(occurredAt))
	if err != nil {
		return 0, fmt.Errorf("inserting event: %w", err)
	}
	eventID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading event id: %w", err)
	}

	touched := make(map[int64]struct{})
	for _, participant := range in.Participants {
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO axis_event_participants (event_id, character_id, role) VALUES (?, ?, ?)
		`, eventID, participant.CharacterID, participant.Role); err != nil {
			return 0, fmt.Errorf("inserting participant: %w", err)
		}
		touched[participant.CharacterID] = struct{}{}
	}

	updatedAt := formatTime(occurredAt)
	for _, delta := range in.Deltas {
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO axis_event_deltas (event_id, character_id, axis, old_score, new_score, delta)
		VALUES (?, ?, ?, ?, ?, ?)
		`, eventID, delta.CharacterID, delta.Axis, delta.OldScore, delta.NewScore, delta.Delta); err != nil {
			return 0, fmt.Errorf("inserting delta: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO axis_scores (character_id, axis, score, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (character_id, axis) DO UPDATE SET
			score = excluded.score,
			updated_at = excluded.updated_at
		`, delta.CharacterID, delta.Axis, delta.NewScore, updatedAt); err != nil {
			return 0, fmt.Errorf("updating axis score: %w", err)
		}
		touched[delta.CharacterID] = struct{}{}
	}

	keys := make([]string, 0, len(in.Metadata))
	for key := range in.Metadata {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO axis_event_metadata (event_id, key, value) VALUES (?, ?, ?)
		`, eventID, key, in.Metadata[key]); err != nil {
			return 0, fmt.Errorf("inserting metadata: %w", err)
		}
	}

	for characterID := range touched {
		if err := refreshSnapshot(ctx, tx, characterID); err != nil {
			return 0, err
		}
	}

	return eventID, nil
}

func refreshSnapshot(ctx context.Context, tx *sql.Tx, characterID int64) error {
	scores, err := loadScores(ctx, tx, characterID)
	if err != nil {
		return fmt.Errorf("loading scores for snapshot: %w", err)
	}
	payload, err := json.Marshal(scores)
	if err != nil {
		return fmt.Errorf("marshaling character snapshot: %w", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE characters SET axis_snapshot = ? WHERE id = ?`, string(payload), characterID)
	if err != nil {
		return fmt.Errorf("updating character snapshot: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %d", store.ErrCharacterNotFound, characterID)
	}
	return nil
}
