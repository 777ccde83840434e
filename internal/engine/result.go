package engine

import "github.com/pipe-works/pipeworks-mud-server-sub001/internal/store"

// AxisDelta is one axis's applied change for one character. Delta is the
// clamped change, which may be smaller than the resolver's raw output.
type AxisDelta struct {
	Axis     string  `json:"axis"`
	OldScore float64 `json:"old_score"`
	NewScore float64 `json:"new_score"`
	Delta    float64 `json:"delta"`
}

// EntityResolution is one character's part in an interaction. Deltas holds
// only non-zero changes, in grammar axis order.
type EntityResolution struct {
	CharacterID int64       `json:"character_id"`
	Name        string      `json:"name"`
	Deltas      []AxisDelta `json:"deltas"`
}

type AxisResolutionResult struct {
	EventID         int64            `json:"event_id"`
	FingerprintHash string           `json:"fingerprint_hash"`
	WorldID         string           `json:"world_id"`
	Channel         string           `json:"channel"`
	GrammarVersion  string           `json:"grammar_version"`
	Speaker         EntityResolution `json:"speaker"`
	Listener        EntityResolution `json:"listener"`
	// Snapshot holds every grammar axis for both participants as read
	// before the interaction.
	Snapshot store.Snapshot `json:"snapshot"`
}
