package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upStoryOverlays, downStoryOverlays)
}

func upStoryOverlays(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
	CREATE TABLE story_overlays (
		story_id TEXT NOT NULL REFERENCES stories (id) ON DELETE CASCADE,
		id       TEXT NOT NULL,
		position INTEGER NOT NULL,
		kind     TEXT NOT NULL,
		payload  JSONB NOT NULL,
		x        DOUBLE PRECISION NOT NULL CHECK (x BETWEEN 0 AND 1),
		y        DOUBLE PRECISION NOT NULL CHECK (y BETWEEN 0 AND 1),
		scale    DOUBLE PRECISION NOT NULL CHECK (scale BETWEEN 0.5 AND 3),
		rotation DOUBLE PRECISION NOT NULL DEFAULT 0,
		PRIMARY KEY (story_id, id)
	);
	`)
	return err
}

func downStoryOverlays(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE story_overlays;`)
	return err
}
