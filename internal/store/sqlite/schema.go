package sqlite

import (
	"context"
	"fmt"
	"strings"
)

func (c *Client) EnsureSchema(ctx context.Context) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS characters (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		world_id        TEXT NOT NULL,
		name            TEXT NOT NULL,
		name_normalized TEXT NOT NULL,
		axis_snapshot   TEXT NOT NULL DEFAULT '{}',
		created_at      TEXT NOT NULL,
		CONSTRAINT uq_character_world_name UNIQUE (world_id, name_normalized)
	);

	CREATE TABLE IF NOT EXISTS axis_scores (
		character_id INTEGER NOT NULL REFERENCES characters(id) ON DELETE CASCADE,
		axis         TEXT NOT NULL,
		score        REAL NOT NULL CHECK (score >= 0.0 AND score <= 1.0),
		updated_at   TEXT NOT NULL,
		PRIMARY KEY (character_id, axis)
	);

	CREATE TABLE IF NOT EXISTS axis_events (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		world_id    TEXT NOT NULL,
		event_type  TEXT NOT NULL,
		fingerprint TEXT NOT NULL DEFAULT '',
		snapshot    TEXT NOT NULL DEFAULT '{}',
		occurred_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS axis_event_participants (
		event_id     INTEGER NOT NULL REFERENCES axis_events(id),
		character_id INTEGER NOT NULL REFERENCES characters(id),
		role         TEXT NOT NULL,
		PRIMARY KEY (event_id, character_id)
	);

	CREATE TABLE IF NOT EXISTS axis_event_deltas (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		event_id     INTEGER NOT NULL REFERENCES axis_events(id),
		character_id INTEGER NOT NULL REFERENCES characters(id),
		axis         TEXT NOT NULL,
		old_score    REAL NOT NULL,
		new_score    REAL NOT NULL,
		delta        REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS axis_event_metadata (
		event_id INTEGER NOT NULL REFERENCES axis_events(id),
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

	CREATE TRIGGER IF NOT EXISTS axis_events_no_update BEFORE UPDATE ON axis_events BEGIN
		SELECT RAISE(ABORT, 'axis_events is append-only');
	END;

	CREATE TRIGGER IF NOT EXISTS axis_events_no_delete BEFORE DELETE ON axis_events BEGIN
		SELECT RAISE(ABORT, 'axis_events is append-only');
	END;

	CREATE TRIGGER IF NOT EXISTS axis_event_deltas_no_update BEFORE UPDATE ON axis_event_deltas BEGIN
		SELECT RAISE(ABORT, 'axis_event_deltas is append-only');
	END;

	CREATE TRIGGER IF NOT EXISTS axis_event_deltas_no_delete BEFORE DELETE ON axis_event_deltas BEGIN
		SELECT RAISE(ABORT, 'axis_event_deltas is append-only');
	END;
	`

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	statements := splitStatements(ddl)
	for _, stmt := range statements {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing DDL: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing schema transaction: %w", err)
	}

	return nil
}

// splitStatements splits DDL on lines ending in ';', keeping trigger bodies
// whole.
func splitStatements(ddl string) []string {
	var statements []string
	var current strings.Builder
	inTrigger := false

	for _, line := range strings.Split(ddl, "\n") {
		stripped := strings.TrimSpace(line)
		if strings.HasPrefix(stripped, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")

		if strings.HasPrefix(strings.ToUpper(stripped), "CREATE TRIGGER") {
			inTrigger = true
		}
		if inTrigger {
			if strings.EqualFold(stripped, "END;") {
				statements = append(statements, current.String())
				current.Reset()
				inTrigger = false
			}
			continue
		}

		if strings.HasSuffix(stripped, ";") {
			statements = append(statements, current.String())
			current.Reset()
		}
	}

	if current.Len() > 0 {
		statements = append(statements, current.String())
	}

	return statements
}
