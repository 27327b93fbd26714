// internal/database/results.go
package database

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	completeGameSQL = `
		INSERT INTO games (id, room_code, status, winner, end_time)
		VALUES ($1, $2, 'completed', $3, NOW())
		ON CONFLICT (id) DO UPDATE SET status = 'completed', winner = $3, end_time = NOW()
	`
	upsertResultSQL = `
		INSERT INTO game_results (game_id, player_id, score, did_win)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (game_id, player_id)
		DO UPDATE SET score = $3, did_win = $4
	`
)

// Recorder writes final game outcomes.
type Recorder struct {
	db TxStarter
}

func NewRecorder(db TxStarter) *Recorder {
	return &Recorder{db: db}
}

// RecordGameResults marks the game completed and stores every player's score
// in one transaction. Repeating it for the same game overwrites the rows.
func (r *Recorder) RecordGameResults(ctx context.Context, gameID uuid.UUID, code string, scores map[string]int, winner string) error {
	players := make([]string, 0, len(scores))
	for pid := range scores {
		players = append(players, pid)
	}
	sort.Strings(players)

	err := pgx.BeginTxFunc(ctx, r.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, e := tx.Exec(ctx, completeGameSQL, gameID, code, winner); e != nil {
			return e
		}
		for _, pid := range players {
			if _, e := tx.Exec(ctx, upsertResultSQL, gameID, pid, scores[pid], pid == winner); e != nil {
				return e
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tx upsert game or results: %w", err)
	}
	return nil
}
