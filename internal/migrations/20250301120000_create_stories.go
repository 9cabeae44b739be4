package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateStories, downCreateStories)
}

func upCreateStories(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
	CREATE TABLE stories (
		id         TEXT PRIMARY KEY,
		creator_id TEXT NOT NULL,
		caption    TEXT NOT NULL DEFAULT '',
		audience   TEXT NOT NULL,
		music      JSONB,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL,
		expires_at TIMESTAMP WITH TIME ZONE NOT NULL
	);
	CREATE INDEX stories_creator_expires_idx ON stories (creator_id, expires_at);

	CREATE TABLE story_segments (
		story_id         TEXT NOT NULL REFERENCES stories (id) ON DELETE CASCADE,
		position         INTEGER NOT NULL,
		url              TEXT NOT NULL,
		kind             TEXT NOT NULL,
		duration_ms      BIGINT NOT NULL CHECK (duration_ms > 0),
		caption          TEXT NOT NULL DEFAULT '',
		background_color TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (story_id, position)
	);
	`)
	return err
}

func downCreateStories(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
	DROP TABLE story_segments;
	DROP TABLE stories;
	`)
	return err
}
