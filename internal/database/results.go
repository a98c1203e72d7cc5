package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thitainfo/typer-service/internal/models"
)

// ArchiveRaceResults writes a batch of finished races to the archive tables
// in one transaction: a races row per result and a race_players row per
// participant. Partial batches never land; on any failure the whole batch
// rolls back and stays on the queue side.
func ArchiveRaceResults(ctx context.Context, pool *pgxpool.Pool, results []*models.RaceResult) error {
	if len(results) == 0 {
		return nil
	}
	return beginTxFunc(ctx, pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, res := range results {
			if err := insertRaceResultTx(ctx, tx, res); err != nil {
				return fmt.Errorf("insertRaceResultTx: %w", err)
			}
		}
		return nil
	})
}

// insertRaceResultTx inserts one race and its per-player rows. A replayed
// queue entry hits the races conflict and is skipped whole.
func insertRaceResultTx(ctx context.Context, tx pgx.Tx, res *models.RaceResult) error {
	raceInsertQ := `
		INSERT INTO races (room_id, winner_id, winner_name, finished_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (room_id, finished_at) DO NOTHING
	`
	tag, err := tx.Exec(ctx, raceInsertQ, res.RoomID, res.WinnerID, res.WinnerName, res.FinishedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return nil
	}

	playerInsertQ := `
		INSERT INTO race_players (
			room_id, finished_at, socket_id, username, wpm, accuracy, errors, finished, duration_sec
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	for _, p := range res.Players {
		_, err = tx.Exec(ctx, playerInsertQ,
			res.RoomID, res.FinishedAt, p.SocketID, p.Username, p.WPM, p.Accuracy, p.Errors, p.Finished, p.Time,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// RecentRaces reads the newest archived races for reporting.
func RecentRaces(ctx context.Context, pool *pgxpool.Pool, limit int) ([]models.RaceResult, error) {
	q := `
		SELECT room_id, winner_id, winner_name, finished_at
		FROM races
		ORDER BY finished_at DESC
		LIMIT $1
	`
	rows, err := pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.RaceResult
	for rows.Next() {
		var res models.RaceResult
		if err := rows.Scan(&res.RoomID, &res.WinnerID, &res.WinnerName, &res.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// beginTxFunc starts a transaction, calls f, and commits or rolls back.
func beginTxFunc(ctx context.Context, pool *pgxpool.Pool, txOptions pgx.TxOptions, f func(tx pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, txOptions)
	if err != nil {
		return err
	}
	if err := f(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("tx rollback error: %v; original error: %w", rbErr, err)
		}
		return err
	}
	return tx.Commit(ctx)
}
