package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/subjugate/internal/game/character"
	"github.com/cory-johannsen/subjugate/internal/game/progression"
)

// ReincarnationRepository persists reincarnations.
type ReincarnationRepository struct {
	db *pgxpool.Pool
}

// NewReincarnationRepository creates a ReincarnationRepository backed by the given pool.
func NewReincarnationRepository(db *pgxpool.Pool) *ReincarnationRepository {
	return &ReincarnationRepository{db: db}
}

// SaveReincarnation writes the reset character and its history row in one transaction.
//
// Postcondition: Either both rows are written or neither is.
func (r *ReincarnationRepository) SaveReincarnation(ctx context.Context, c *character.Character, h progression.History) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if err := saveCharacter(ctx, tx, c); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO reincarnation_history
				(character_id, reincarnation_number, previous_level, previous_kills, previous_boss_kills,
				 previous_territory_seconds, previous_playtime_seconds, success_score,
				 perk_hp, perk_mp, perk_attack, perk_defense, perk_speed, perk_xp, reincarnated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
			h.CharacterID, h.Number, h.PreviousLevel, h.Previous.Kills, h.Previous.BossKills,
			h.Previous.TerritorySeconds, h.Previous.PlaytimeSeconds, h.Score,
			h.Perks.HP, h.Perks.MP, h.Perks.Attack, h.Perks.Defense, h.Perks.Speed, h.Perks.ExperienceMultiple, h.At,
		)
		if err != nil {
			return fmt.Errorf("inserting reincarnation history: %w", err)
		}
		return nil
	})
}

// History returns the reincarnations of characterID, oldest first.
func (r *ReincarnationRepository) History(ctx context.Context, characterID int64) ([]progression.History, error) {
	rows, err := r.db.Query(ctx, `
		SELECT character_id, reincarnation_number, previous_level, previous_kills, previous_boss_kills,
		       previous_territory_seconds, previous_playtime_seconds, success_score,
		       perk_hp, perk_mp, perk_attack, perk_defense, perk_speed, perk_xp, reincarnated_at
		FROM reincarnation_history WHERE character_id = $1 ORDER BY reincarnation_number`,
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
