package store

import (
	"context"
)

// DefaultScore is the value an axis reads as before its first mutation.
const DefaultScore = 0.5

// DefaultEventLimit caps GetCharacterAxisEvents when no positive limit is given.
const DefaultEventLimit = 50

type Store interface {
	Close(ctx context.Context) error
	EnsureSchema(ctx context.Context) error

	CreateCharacter(ctx context.Context, worldID, name string) (*Character, error)
	GetCharacter(ctx context.Context, id int64) (*Character, error)
	GetCharacterByName(ctx context.Context, worldID, name string) (*Character, error)
	ListCharacters(ctx context.Context, worldID string) ([]Character, error)

	GetAxisScore(ctx context.Context, characterID int64, axis string) (float64, error)
	ApplyEvent(ctx context.Context, in ApplyEventInput) (int64, error)
	GetCharacterAxisEvents(ctx context.Context, characterID int64, limit int) ([]Event, error)

	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the read-modify-write surface used inside a single transaction.
// Rows read through a Tx stay locked against concurrent writers until the
// transaction ends.
type Tx interface {
	// Character returns nil when no character has the given id.
	Character(ctx context.Context, id int64) (*Character, error)
	// AxisScores returns the current score of every requested axis, reading
	// missing rows as DefaultScore without writing them.
	AxisScores(ctx context.Context, characterID int64, axes []string) (map[string]float64, error)
	// WriteEvent appends the event with its participants, deltas and
	// metadata, stores each delta's NewScore, and refreshes the touched
	// characters' snapshots.
	WriteEvent(ctx context.Context, in EventInput) (int64, error)
}
