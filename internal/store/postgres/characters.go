package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/store"
)

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

	query := `
INSERT INTO characters (world_id, name, name_normalized)
VALUES ($1, $2, $3)
RETURNING ` + characterColumns

	character, err := scanCharacter(c.pool.QueryRow(ctx, query, worldID, name, strings.ToLower(name)))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s in world %s", store.ErrDuplicateCharacter, name, worldID)
		}
		return nil, store.NewWriteError("creating character", err)
	}
	return character, nil
}

func (c *Client) GetCharacter(ctx context.Context, id int64) (*store.Character, error) {
	query := `SELECT ` + characterColumns + ` FROM characters WHERE id = $1`

	character, err := scanCharacter(c.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, store.NewReadError("getting character", err)
	}
	return character, nil
}

func (c *Client) GetCharacterByName(ctx context.Context, worldID, name string) (*store.Character, error) {
	query := `SELECT ` + characterColumns + ` FROM characters WHERE world_id = $1 AND name_normalized = $2`

	character, err := scanCharacter(c.pool.QueryRow(ctx, query, worldID, strings.ToLower(strings.TrimSpace(name))))
	if err != nil {
		return nil, store.NewReadError("getting character by name", err)
	}
	return character, nil
}

func (c *Client) ListCharacters(ctx context.Context, worldID string) ([]store.Character, error) {
	query := `SELECT ` + characterColumns + ` FROM characters WHERE ($1 = '' OR world_id = $1) ORDER BY world_id, name_normalized`

	rows, err := c.pool.Query(ctx, query, worldID)
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

// scanCharacter returns nil, nil when the row does not exist.
func scanCharacter(row pgx.Row) (*store.Character, error) {
	var character store.Character
	var snapshot []byte

	err := row.Scan(&character.ID, &character.WorldID, &character.Name, &snapshot, &character.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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
	character.CreatedAt = character.CreatedAt.UTC()
	return &character, nil
}
