package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/store"
)

// GetCharacterAxisEvents returns the events the character took part in,
// newest first, each with all of its deltas and metadata.
func (c *Client) GetCharacterAxisEvents(ctx context.Context, characterID int64, limit int) ([]store.Event, error) {
	if limit <= 0 {
		limit = store.DefaultEventLimit
	}

	query := `
	SELECT ev.id, ev.world_id, ev.event_type, ev.fingerprint, ev.snapshot, ev.occurred_at
	FROM axis_events ev
	JOIN axis_event_participants p ON p.event_id = ev.id
	WHERE p.character_id = ?
	ORDER BY ev.id DESC
	LIMIT ?
	`

	rows, err := c.db.QueryContext(ctx, query, characterID, limit)
	if err != nil {
		return nil, store.NewReadError("listing character events", err)
	}

	events := []store.Event{}
	for rows.Next() {
		var event store.Event
		var snapshot []byte
		var occurredAt string
		if err := rows.Scan(&event.ID, &event.WorldID, &event.EventType, &event.Fingerprint, &snapshot, &occurredAt); err != nil {
			rows.Close()
			return nil, store.NewReadError("scanning event", err)
		}
		if len(snapshot) > 0 {
			if err := json.Unmarshal(snapshot, &event.Snapshot); err != nil {
				rows.Close()
				return nil, store.NewReadError("unmarshaling event snapshot", err)
			}
		}
		event.OccurredAt = parseTime(occurredAt)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, store.NewReadError("iterating events", err)
	}
	rows.Close()

	// Details are loaded after the event cursor is closed; an in-memory
	// database has a single connection.
	for i := range events {
		if err := c.loadEventDetails(ctx, &events[i]); err != nil {
			return nil, store.NewReadError("loading event details", err)
		}
	}

	return events, nil
}

func (c *Client) loadEventDetails(ctx context.Context, event *store.Event) error {
	participants, err := c.db.QueryContext(ctx, `
	SELECT character_id, role FROM axis_event_participants WHERE event_id = ? ORDER BY rowid
	`, event.ID)
	if err != nil {
		return fmt.Errorf("fetching participants: %w", err)
	}
	event.Participants = []store.Participant{}
	for participants.Next() {
		var p store.Participant
		if err := participants.Scan(&p.CharacterID, &p.Role); err != nil {
			participants.Close()
			return fmt.Errorf("scanning participant: %w", err)
		}
		event.Participants = append(event.Participants, p)
	}
	participants.Close()
	if err := participants.Err(); err != nil {
		return fmt.Errorf("iterating participants: %w", err)
	}

	deltas, err := c.db.QueryContext(ctx, `
	SELECT character_id, axis, old_score, new_score, delta
	FROM axis_event_deltas WHERE event_id = ? ORDER BY id
	`, event.ID)
	if err != nil {
		return fmt.Errorf("fetching deltas: %w", err)
	}
	event.Deltas = []store.AxisDelta{}
	for deltas.Next() {
		var d store.AxisDelta
		if err := deltas.Scan(&d.CharacterID, &d.Axis, &d.OldScore, &d.NewScore, &d.Delta); err != nil {
			deltas.Close()
			return fmt.Errorf("scanning delta: %w", err)
		}
		event.Deltas = append(event.Deltas, d)
	}
	deltas.Close()
	if err := deltas.Err(); err != nil {
		return fmt.Errorf("iterating deltas: %w", err)
	}

	metadata, err := c.db.QueryContext(ctx, `
	SELECT key, value FROM axis_event_metadata WHERE event_id = ? ORDER BY key
	`, event.ID)
	if err != nil {
		return fmt.Errorf("fetching metadata: %w", err)
	}
	event.Metadata = map[string]string{}
	for metadata.Next() {
		var key, value string
		if err := metadata.Scan(&key, &value); err != nil {
			metadata.Close()
			return fmt.Errorf("scanning metadata: %w", err)
		}
		event.Metadata[key] = value
	}
	metadata.Close()
	if err := metadata.Err(); err != nil {
		return fmt.Errorf("iterating metadata: %w", err)
	}

	return nil
}
