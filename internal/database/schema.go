// internal/database/schema.go
package database

import (
	"context"
	"fmt"
)

// Schema creates every table the server and historian use. It is safe to run
// on every start.
const Schema = `
CREATE TABLE IF NOT EXISTS rooms (
	code       TEXT PRIMARY KEY,
	doc        JSONB NOT NULL,
	version    BIGINT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS games (
	id             UUID PRIMARY KEY,
	room_code      TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'in_progress',
	winner         TEXT,
	start_time     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	end_time       TIMESTAMPTZ,
	last_action_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS game_actions (
	id             UUID PRIMARY KEY,
	game_id        UUID NOT NULL REFERENCES games (id) ON DELETE CASCADE,
	action_index   BIGINT NOT NULL,
	actor_id       TEXT NOT NULL,
	action_type    TEXT NOT NULL,
	action_payload JSONB,
	created_at     TIMESTAMPTZ NOT NULL,
	UNIQUE (game_id, action_index)
);

CREATE TABLE IF NOT EXISTS game_results (
	game_id   UUID NOT NULL REFERENCES games (id) ON DELETE CASCADE,
	player_id TEXT NOT NULL,
	score     INT NOT NULL,
	did_win   BOOLEAN NOT NULL,
	PRIMARY KEY (game_id, player_id)
);
`

// Migrate applies Schema.
func Migrate(ctx context.Context, db Execer) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
