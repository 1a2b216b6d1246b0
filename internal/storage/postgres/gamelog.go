package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/subjugate/internal/storage"
)

// GameLogRepository appends to and reads the game log.
type GameLogRepository struct {
	db *pgxpool.Pool
}

// NewGameLogRepository creates a GameLogRepository backed by the given pool.
func NewGameLogRepository(db *pgxpool.Pool) *GameLogRepository {
	return &GameLogRepository{db: db}
}

// Record appends e to the game log.
func (r *GameLogRepository) Record(ctx context.Context, e storage.LogEntry) error {
	detail, err := storage.EncodeDetail(e.Detail)
	if err != nil {
		return fmt.Errorf("encoding %s detail: %w", e.Kind, err)
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO game_logs (kind, character_id, detail, created_at) VALUES ($1, $2, $3::jsonb, $4)`,
		e.Kind, e.CharacterID, string(detail), e.At,
	)
	if err != nil {
		return fmt.Errorf("recording %s: %w", e.Kind, err)
	}
	return nil
}

// Recent returns up to limit entries of kind, newest first.
func (r *GameLogRepository) Recent(ctx context.Context, kind string, limit int) ([]storage.LogEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT kind, character_id, detail::text, created_at FROM game_logs
		WHERE kind = $1 ORDER BY created_at DESC, id DESC LIMIT $2`,
		kind, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing %s log: %w", kind, err)
	}
	defer rows.Close()

	var out []storage.LogEntry
	for rows.Next() {
		var e storage.LogEntry
		var raw string
		if err := rows.Scan(&e.Kind, &e.CharacterID, &raw, &e.At); err != nil {
			return nil, fmt.Errorf("scanning log row: %w", err)
		}
		if e.Detail, err = storage.DecodeDetail([]byte(raw)); err != nil {
			return nil, fmt.Errorf("decoding log detail: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
