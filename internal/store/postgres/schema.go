package postgres

import (
	"context"
	"fmt"
)

func (c *Client) EnsureSchema(ctx context.Context) error {
	// All statements run in one implicit transaction.
	ddl := `
CREATE TABLE IF NOT EXISTS characters (
    id              BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    world_id        TEXT NOT NULL,
    name            TEXT NOT NULL,
    name_normalized TEXT NOT NULL,
    axis_snapshot   JSONB NOT NULL DEFAULT '{}',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    CONSTRAINT uq_character_world_name UNIQUE (world_id, name_normalized)
);

CREATE TABLE IF NOT EXISTS axis_scores (
    character_id BIGINT NOT NULL REFERENCES characters(id) ON DELETE CASCADE,
    axis         TEXT NOT NULL,
    score        DOUBLE PRECISION NOT NULL CHECK (score >= 0.0 AND score <= 1.0),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (character_id, axis)
);

CREATE TABLE IF NOT EXISTS axis_events (
    id          BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    world_id    TEXT NOT NULL,
    event_type  TEXT NOT NULL,
    fingerprint TEXT NOT NULL DEFAULT '',
    snapshot    JSONB NOT NULL DEFAULT '{}',
    occurred_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS axis_event_participants (
    event_id     BIGINT NOT NULL REFERENCES axis_events(id),
    character_id BIGINT NOT NULL REFERENCES characters(id),
    role         TEXT NOT NULL,
    position     INTEGER NOT NULL,
    PRIMARY KEY (event_id, character_id)
);

CREATE TABLE IF NOT EXISTS axis_event_deltas (
    id           BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    event_id     BIGINT NOT NULL REFERENCES axis_events(id),
    character_id BIGINT NOT NULL REFERENCES characters(id),
    axis         TEXT NOT NULL,
    old_score    DOUBLE PRECISION NOT NULL,
    new_score    DOUBLE PRECISION NOT NULL,
    delta        DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS axis_event_metadata (
    event_id BIGINT NOT NULL REFERENCES axis_events(id),
    key      TEXT NOT NULL,
    value    TEXT NOT NULL,
    PRIMARY KEY (event_id, key)
);

CREATE INDEX IF NOT EXISTS idx_characters_world ON characters (world_id);
CREATE INDEX IF NOT EXISTS idx_axis_events_world ON axis_events (world_id);
CREATE INDEX IF NOT EXISTS idx_axis_events_fingerprint ON axis_events (fingerprint);
CREATE INDEX IF NOT EXISTS idx_participants_character ON axis_event_participants (character_id, event_id);
CREATE INDEX IF NOT EXISTS idx_deltas_event ON axis_event_deltas (event_id);
CREATE INDEX IF NOT EXISTS idx_deltas_character ON axis_event_deltas (character_id);

CREATE OR REPLACE FUNCTION reject_axis_event_mutation() RETURNS trigger AS $$
BEGIN
    RAISE EXCEPTION '% is append-only', TG_TABLE_NAME;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS axis_events_append_only ON axis_events;
CREATE TRIGGER axis_events_append_only
    BEFORE UPDATE OR DELETE ON axis_events
    FOR EACH ROW EXECUTE FUNCTION reject_axis_event_mutation();

DROP TRIGGER IF EXISTS axis_event_deltas_append_only ON axis_event_deltas;
CREATE TRIGGER axis_event_deltas_append_only
    BEFORE UPDATE OR DELETE ON axis_event_deltas
    FOR EACH ROW EXECUTE FUNCTION reject_axis_event_mutation();
`
	_, err := c.pool.Exec(ctx, ddl)
	if err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}
	return nil
}
