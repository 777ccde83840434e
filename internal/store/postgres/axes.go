package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/store"
)

// GetAxisScore returns the stored score, or store.DefaultScore when the axis
// has never been mutated. It never writes.
func (c *Client) GetAxisScore(ctx context.Context, characterID int64, axis string) (float64, error) {
	var score float64
	err := c.pool.QueryRow(ctx, `SELECT score FROM axis_scores WHERE character_id = $1 AND axis = $2`, characterID, axis).Scan(&score)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.DefaultScore, nil
		}
		return 0, store.NewReadError("getting axis score", err)
	}
	return score, nil
}

func (c *Client) ApplyEvent(ctx context.Context, in store.ApplyEventInput) (int64, error) {
	var eventID int64
	err := c.InTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		id, err := store.ApplyEventTx(ctx, tx, in)
		if err != nil {
			return err
		}
		eventID = id
		return nil
	})
	if err != nil {
		return 0, err
	}
	return eventID, nil
}
