package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cory-johannsen/subjugate/internal/game/character"
	"github.com/cory-johannsen/subjugate/internal/game/progression"
	"github.com/cory-johannsen/subjugate/internal/game/territory"
	"github.com/cory-johannsen/subjugate/internal/storage"
)

// TerritoryRepository persists territory control.
type TerritoryRepository struct {
	db *sql.DB
}

// NewTerritoryRepository creates a TerritoryRepository over d.
func NewTerritoryRepository(d *DB) *TerritoryRepository {
	return &TerritoryRepository{db: d.db}
}

// LoadControl returns every persisted control record ordered by territory id.
func (r *TerritoryRepository) LoadControl(ctx context.Context) ([]territory.Control, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT territory_id, controller_id, controller_name, capture_points, captured_at
		FROM territory_control ORDER BY territory_id`)
	if err != nil {
		return nil, fmt.Errorf("listing territory control: %w", err)
	}
	defer rows.Close()

	var out []territory.Control
	for rows.Next() {
		var c territory.Control
		if err := rows.Scan(&c.TerritoryID, &c.ControllerID, &c.ControllerName, &c.CapturePoints, &c.CapturedAt); err != nil {
			return nil, fmt.Errorf("scanning territory control: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SaveControl upserts the control record of one territory.
func (r *TerritoryRepository) SaveControl(ctx context.Context, c territory.Control) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO territory_control (territory_id, controller_id, controller_name, capture_points, captured_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (territory_id) DO UPDATE SET
			controller_id = excluded.controller_id,
			controller_name = excluded.controller_name,
			capture_points = excluded.capture_points,
			captured_at = excluded.captured_at`,
		c.TerritoryID, c.ControllerID, c.ControllerName, c.CapturePoints, c.CapturedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving territory %d control: %w", c.TerritoryID, err)
	}
	return nil
}

// ReincarnationRepository persists reincarnations.
type ReincarnationRepository struct {
	db *sql.DB
}

// NewReincarnationRepository creates a ReincarnationRepository over d.
func NewReincarnationRepository(d *DB) *ReincarnationRepository {
	return &ReincarnationRepository{db: d.db}
}

// SaveReincarnation writes the reset character and its history row in one transaction.
func (r *ReincarnationRepository) SaveReincarnation(ctx context.Context, c *character.Character, h progression.History) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning reincarnation: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = saveCharacter(ctx, tx, c); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO reincarnation_history
			(character_id, reincarnation_number, previous_level, previous_kills, previous_boss_kills,
			 previous_territory_seconds, previous_playtime_seconds, success_score,
			 perk_hp, perk_mp, perk_attack, perk_defense, perk_speed, perk_xp, reincarnated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		h.CharacterID, h.Number, h.PreviousLevel, h.Previous.Kills, h.Previous.BossKills,
		h.Previous.TerritorySeconds, h.Previous.PlaytimeSeconds, h.Score,
		h.Perks.HP, h.Perks.MP, h.Perks.Attack, h.Perks.Defense, h.Perks.Speed, h.Perks.ExperienceMultiple, h.At.UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting reincarnation history: %w", err)
	}
	return tx.Commit()
}

// History returns the reincarnations of characterID, oldest first.
func (r *ReincarnationRepository) History(ctx context.Context, characterID int64) ([]progression.History, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT character_id, reincarnation_number, previous_level, previous_kills, previous_boss_kills,
		       previous_territory_seconds, previous_playtime_seconds, success_score,
		       perk_hp, perk_mp, perk_attack, perk_defense, perk_speed, perk_xp, reincarnated_at
		FROM reincarnation_history WHERE character_id = ? ORDER BY reincarnation_number`,
		characterID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing reincarnation history: %w", err)
	}
	defer rows.Close()

	var out []progression.History
	for rows.Next() {
		var h progression.History
		if err := rows.Scan(
			&h.CharacterID, &h.Number, &h.PreviousLevel, &h.Previous.Kills, &h.Previous.BossKills,
			&h.Previous.TerritorySeconds, &h.Previous.PlaytimeSeconds, &h.Score,
			&h.Perks.HP, &h.Perks.MP, &h.Perks.Attack, &h.Perks.Defense, &h.Perks.Speed,
			&h.Perks.ExperienceMultiple, &h.At,
		); err != nil {
			return nil, fmt.Errorf("scanning reincarnation history: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// GameLogRepository appends to and reads the game log.
type GameLogRepository struct {
	db *sql.DB
}

// NewGameLogRepository creates a GameLogRepository over d.
func NewGameLogRepository(d *DB) *GameLogRepository {
	return &GameLogRepository{db: d.db}
}

// Record appends e to the game log.
func (r *GameLogRepository) Record(ctx context.Context, e storage.LogEntry) error {
	detail, err := storage.EncodeDetail(e.Detail)
	if err != nil {
		return fmt.Errorf("encoding %s detail: %w", e.Kind, err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO game_logs (kind, character_id, detail, created_at) VALUES (?, ?, ?, ?)`,
		e.Kind, e.CharacterID, string(detail), e.At.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording %s: %w", e.Kind, err)
	}
	return nil
}

// Recent returns up to limit entries of kind, newest first.
func (r *GameLogRepository) Recent(ctx context.Context, kind string, limit int) ([]storage.LogEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT kind, character_id, detail, created_at FROM game_logs
		WHERE kind = ? ORDER BY id DESC LIMIT ?`, kind, limit)
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
