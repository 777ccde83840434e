package postgres

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
WHERE p.character_id = $1
ORDER BY ev.id DESC
LIMIT $2
`

	rows, err := c.pool.Query(ctx, query, characterID, limit)
	if err != nil {
		return nil, store.NewReadError("listing character events", err)
	}
	defer rows.Close()

	events := []store.Event{}
	index := make(map[int64]int)
	ids := []int64{}
	for rows.Next() {
		var event store.Event
		var snapshot []byte
		if err := rows.Scan(&event.ID, &event.WorldID, &event.EventType, &event.Fingerprint, &snapshot, &event.OccurredAt); err != nil {
			return nil, store.NewReadError("scanning event", err)
		}
		if len(snapshot) > 0 {
			if err := json.Unmarshal(snapshot, &event.Snapshot); err != nil {
				return nil, store.NewReadError("unmarshaling event snapshot", err)
			}
		}
		event.OccurredAt = event.OccurredAt.UTC()
		event.Participants = []store.Participant{}
		event.Deltas = []store.AxisDelta{}
		event.Metadata = map[string]string{}
		index[event.ID] = len(events)
		ids = append(ids, event.ID)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewReadError("iterating events", err)
	}
	rows.Close()

	if len(ids) == 0 {
		return events, nil
	}
	if err := c.loadEventDetails(ctx, ids, index, events); err != nil {
		return nil, store.NewReadError("loading event details", err)
	}
	return events, nil
}

func (c *Client) loadEventDetails(ctx context.Context, ids []int64, index map[int64]int, events []store.Event) error {
	participants, err := c.pool.Query(ctx, `
SELECT event_id, character_id, role FROM axis_event_participants
WHERE event_id = ANY($1) ORDER BY event_id, position
`, ids)
	if err != nil {
		return fmt.Errorf("fetching participants: %w", err)
	}
	for participants.Next() {
		var eventID int64
		var p store.Participant
		if err := participants.Scan(&eventID, &p.CharacterID, &p.Role); err != nil {
			participants.Close()
			return fmt.Errorf("scanning participant: %w", err)
		}
		event := &events[index[eventID]]
		event.Participants = append(event.Participants, p)
	}
	participants.Close()
	if err := participants.Err(); err != nil {
		return fmt.Errorf("iterating participants: %w", err)
	}

	deltas, err := c.pool.Query(ctx, `
SELECT event_id, character_id, axis, old_score, new_score, delta
FROM axis_event_deltas WHERE event_id = ANY($1) ORDER BY id
`, ids)
	if err != nil {
		return fmt.Errorf("fetching deltas: %w", err)
	}
	for deltas.Next() {
		var eventID int64
		var d store.AxisDelta
		if err := deltas.Scan(&eventID, &d.CharacterID, &d.Axis, &d.OldScore, &d.NewScore, &d.Delta); err != nil {
			deltas.Close()
			return fmt.Errorf("scanning delta: %w", err)
		}
		event := &events[index[eventID]]
		event.Deltas = append(event.Deltas, d)
	}
	deltas.Close()
	if err := deltas.Err(); err != nil {
		return fmt.Errorf("iterating deltas: %w", err)
	}

	metadata, err := c.pool.Query(ctx, `
SELECT event_id, key, value FROM axis_event_metadata WHERE event_id = ANY($1)
`, ids)
	if err != nil {
		return fmt.Errorf("fetching metadata: %w", err)
	}
	for metadata.Next() {
		var eventID int64
		var key, value string
		if err := metadata.Scan(&eventID, &key, &value); err != nil {
			metadata.Close()
			return fmt.Errorf("scanning metadata: %w", err)
		}
		events[index[eventID]].Metadata[key] = value
	}
	metadata.Close()
	if err := metadata.Err(); err != nil {
		return fmt.Errorf("iterating metadata: %w", err)
	}

	return nil
}
