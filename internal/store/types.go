package store

import "time"

type Character struct {
	ID           int64
	WorldID      string
	Name         string
	AxisSnapshot map[string]float64
	CreatedAt    time.Time
}

// AxisDelta is one applied change to one character's axis.
type AxisDelta struct {
	CharacterID int64   `json:"character_id"`
	Axis        string  `json:"axis"`
	OldScore    float64 `json:"old_score"`
	NewScore    float64 `json:"new_score"`
	Delta       float64 `json:"delta"`
}

type Participant struct {
	CharacterID int64  `json:"character_id"`
	Role        string `json:"role"`
}

// Snapshot maps character id to axis name to score.
type Snapshot map[int64]map[string]float64

type EventInput struct {
	WorldID      string
	EventType    string
	Fingerprint  string
	OccurredAt   time.Time
	Participants []Participant
	Snapshot     Snapshot
	Deltas       []AxisDelta
	Metadata     map[string]string
}

// ApplyEventInput describes a single-character mutation given as raw
// per-axis deltas.
type ApplyEventInput struct {
	WorldID     string
	CharacterID int64
	EventType   string
	Deltas      map[string]float64
	Metadata    map[string]string
}

type Event struct {
	ID           int64
	WorldID      string
	EventType    string
	Fingerprint  string
	OccurredAt   time.Time
	Participants []Participant
	Snapshot     Snapshot
	Deltas       []AxisDelta
	Metadata     map[string]string
}
