// internal/database/actions.go
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/uno/internal/cache"
	"github.com/jason-s-yu/uno/internal/game"
)

const (
	touchGameSQL = `
		INSERT INTO games (id, room_code, status, start_time, last_action_at)
		VALUES ($1, $2, 'in_progress', NOW(), NOW())
		ON CONFLICT (id)
		DO UPDATE SET last_action_at = NOW()
	`
	insertActionSQL = `
		INSERT INTO game_actions (
			id, game_id, action_index, actor_id, action_type, action_payload, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (game_id, action_index) DO NOTHING
	`
	finalizeGameSQL = `
		UPDATE games
		SET status = 'completed', winner = $2, end_time = NOW()
		WHERE id = $1 AND status = 'in_progress'
	`
	abandonGameSQL = `
		UPDATE games
		SET status = 'abandoned', end_time = NOW()
		WHERE id = $1 AND status = 'in_progress'
	`
)

// ActionLog persists the action stream drained by the historian.
type ActionLog struct {
	db TxStarter
}

func NewActionLog(db TxStarter) *ActionLog {
	return &ActionLog{db: db}
}

// Flush writes a batch of records in a single transaction. Records already
// stored are skipped, so a redelivered batch is harmless.
func (l *ActionLog) Flush(ctx context.Context, records []cache.ActionRecord) error {
	if len(records) == 0 {
		return nil
	}
	return pgx.BeginTxFunc(ctx, l.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range records {
			if err := insertGameActionTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("insert action %d of game %s: %w", rec.ActionIndex, rec.GameID, err)
			}
		}
		return nil
	})
}

// MarkAbandoned closes a game that is still in progress.
func (l *ActionLog) MarkAbandoned(ctx context.Context, gameID uuid.UUID) error {
	return pgx.BeginTxFunc(ctx, l.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, abandonGameSQL, gameID)
		return err
	})
}

// insertGameActionTx upserts the game row, inserts the action, and completes
// the game when the action was the winning play.
func insertGameActionTx(ctx context.Context, tx pgx.Tx, rec cache.ActionRecord) error {
	if _, err := tx.Exec(ctx, touchGameSQL, rec.GameID, rec.RoomCode); err != nil {
		return err
	}

	payload, err := json.Marshal(rec.ActionPayload)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, insertActionSQL,
		rec.ID, rec.GameID, rec.ActionIndex, rec.ActorID, rec.ActionType, payload, time.UnixMilli(rec.Timestamp),
	)
	if err != nil {
		return err
	}

	if rec.ActionType == string(game.EventWin) {
		if _, err := tx.Exec(ctx, finalizeGameSQL, rec.GameID, rec.ActorID); err != nil {
			return err
		}
	}
	return nil
}
