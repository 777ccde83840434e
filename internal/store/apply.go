package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"
)

// ApplyEventTx implements ApplyEvent on top of a transaction: it reads the
// character's current scores, clamps each raw delta into [0, 1], and writes
// one event. Axes whose clamped delta is zero are not recorded.
func ApplyEventTx(ctx context.Context, tx Tx, in ApplyEventInput) (int64, error) {
	character, err := tx.Character(ctx, in.CharacterID)
	if err != nil {
		return 0, err
	}
	if character == nil {
		return 0, fmt.Errorf("%w: %d", ErrCharacterNotFound, in.CharacterID)
	}
	if in.WorldID != "" && character.WorldID != in.WorldID {
		return 0, fmt.Errorf("%w: %d in world %s", ErrCharacterNotFound, in.CharacterID, in.WorldID)
	}

	axes := make([]string, 0, len(in.Deltas))
	for axis := range in.Deltas {
		axes = append(axes, axis)
	}
	sort.Strings(axes)

	scores, err := tx.AxisScores(ctx, in.CharacterID, axes)
	if err != nil {
		return 0, err
	}

	deltas := make([]AxisDelta, 0, len(axes))
	for _, axis := range axes {
		old := scores[axis]
		updated := math.Min(1.0, math.Max(0.0, old+in.Deltas[axis]))
		if updated-old == 0 {
			continue
		}
		deltas = append(deltas, AxisDelta{
			CharacterID: in.CharacterID,
			Axis:        axis,
			OldScore:    old,
			NewScore:    updated,
			Delta:       updated - old,
		})
	}

	return tx.WriteEvent(ctx, EventInput{
		WorldID:      character.WorldID,
		EventType:    in.EventType,
		OccurredAt:   time.Now().UTC(),
		Participants: []Participant{{CharacterID: in.CharacterID, Role: "subject"}},
		Snapshot:     Snapshot{in.CharacterID: scores},
		Deltas:       deltas,
		Metadata:     in.Metadata,
	})
}
