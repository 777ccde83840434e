package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/store"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const characterColumns = `id, world_id, name, axis_snapshot, created_at`

func (c *Client) CreateCharacter(ctx context.Context, worldID, name string) (*store.Character, error) {
	worldID = strings.TrimSpace(worldID)
	name = strings.TrimSpace(name)
	if worldID == "" {
		return nil, fmt.Errorf("world id is required")
	}
	if name == "" {
		return nil, fmt.Errorf("character name is required")
	}

	now := time.Now().UTC()
	query := `
	INSERT INTO characters (world_id, name, name_normalized, axis_snapshot, created_at)
	VALUES (?, ?, ?, '{}', ?)
	`

	res, err := c.db.ExecContext(ctx, query, worldID, name, strings.ToLower(name), formatTime(now))
	if err != nil {
		if isConstraintError(err) {
			return nil, fmt.Errorf("%w: %s in world %s", store.ErrDuplicateCharacter, name, worldID)
		}
		return nil, store.NewWriteError("creating character", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, store.NewWriteError("reading character id", err)
	}

	return &store.Character{
		ID:           id,
		WorldID:      worldID,
		Name:         name,
		AxisSnapshot: map[string]float64{},
		CreatedAt:    now,
	}, nil
}

func (c *Client) GetCharacter(ctx context.Context, id int64) (*store.Character, error) {
	return getCharacter(ctx, c.db, id)
}

func (c *Client) GetCharacterByName(ctx context.Context, worldID, name string) (*store.Character, error) {
	query := `SELECT ` + characterColumns + ` FROM characters WHERE world_id = ? AND name_normalized = ?`

	character, err := scanCharacter(c.db.QueryRowContext(ctx, query, worldID, strings.ToLower(strings.TrimSpace(name))))
	if err != nil {
		return nil, store.NewReadError("getting character by name", err)
	}
	return character, nil
}

func (c *Client) ListCharacters(ctx context.Context, worldID string) ([]store.Character, error) {
	query := `SELECT ` + characterColumns + ` FROM characters WHERE (? = '' OR world_id = ?) ORDER BY world_id, name_normalized`

	rows, err := c.db.QueryContext(ctx, query, worldID, worldID)
	if err != nil {
		return nil, store.NewReadError("listing characters", err)
	}
	defer rows.Close()

	characters := []store.Character{}
	for rows.Next() {
		character, err := scanCharacter(rows)
		if err != nil {
			return nil, store.NewReadError("scanning character", err)
		}
		characters = append(characters, *character)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewReadError("iterating characters", err)
	}
	return characters, nil
}

func getCharacter(ctx context.Context, q queryer, id int64) (*store.Character, error) {
	query := `SELECT ` + characterColumns + ` FROM characters WHERE id = ?`

	character, err := scanCharacter(q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, store.NewReadError("getting character", err)
	}
	return character, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanCharacter returns nil, nil when the row does not exist.
func scanCharacter(row rowScanner) (*store.Character, error) {
	var character store.Character
	var snapshot []byte
	var createdAt string

	err := row.Scan(&character.ID, &character.WorldID, &character.Name, &snapshot, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &character.AxisSnapshot); err != nil {
			return nil, fmt.Errorf("unmarshaling axis snapshot: %w", err)
		}
	}
	if character.AxisSnapshot == nil {
		character.AxisSnapshot = map[string]float64{}
	}
	character.CreatedAt = parseTime(createdAt)
	return &character, nil
}
