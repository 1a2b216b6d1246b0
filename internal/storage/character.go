package storage

import (
	"time"

	"github.com/cory-johannsen/subjugate/internal/game/character"
)

// CharacterColumns is the select list matched by ScanCharacter.
const CharacterColumns = `id, account_id, name, game_mode, guild_id, level, experience,
	hp, max_hp, mp, max_mp, attack, defense, speed, x, y, z, rotation,
	reincarnation_count, perk_hp, perk_mp, perk_attack, perk_defense, perk_speed, perk_xp,
	kills, player_kills, boss_kills, deaths, territory_seconds, playtime_seconds,
	is_online, is_dead, created_at, updated_at`

// Scanner is satisfied by pgx.Row and *sql.Row.
type Scanner interface {
	Scan(dest ...any) error
}

// ScanCharacter reads one row selected with CharacterColumns.
func ScanCharacter(row Scanner) (*character.Character, error) {
	var c character.Character
	var created, updated time.Time
	err := row.Scan(
		&c.ID, &c.AccountID, &c.Name, &c.GameMode, &c.GuildID, &c.Level, &c.Experience,
		&c.HP, &c.MaxHP, &c.MP, &c.MaxMP, &c.Attack, &c.Defense, &c.Speed,
		&c.X, &c.Y, &c.Z, &c.Rotation,
		&c.ReincarnationCount, &c.Perks.HP, &c.Perks.MP, &c.Perks.Attack, &c.Perks.Defense,
		&c.Perks.Speed, &c.Perks.ExperienceMultiple,
		&c.Lifetime.Kills, &c.Lifetime.PlayerKills, &c.Lifetime.BossKills, &c.Lifetime.Deaths,
		&c.Lifetime.TerritorySeconds, &c.Lifetime.PlaytimeSeconds,
		&c.Online, &c.Dead, &created, &updated,
	)
	if err != nil {
		return nil, err
	}
	c.CreatedAt, c.UpdatedAt = created, updated
	return &c, nil
}

// CharacterState returns the mutable columns of c in the order
// level, experience, hp, max_hp, mp, max_mp, attack, defense, speed,
// x, y, z, rotation, reincarnation_count, perk_hp, perk_mp, perk_attack,
// perk_defense, perk_speed, perk_xp, kills, player_kills, boss_kills,
// deaths, territory_seconds, playtime_seconds, is_dead.
func CharacterState(c *character.Character) []any {
	return []any{
		c.Level, c.Experience, c.HP, c.MaxHP, c.MP, c.MaxMP, c.Attack, c.Defense, c.Speed,
		c.X, c.Y, c.Z, c.Rotation,
		c.ReincarnationCount, c.Perks.HP, c.Perks.MP, c.Perks.Attack, c.Perks.Defense,
		c.Perks.Speed, c.Perks.ExperienceMultiple,
		c.Lifetime.Kills, c.Lifetime.PlayerKills, c.Lifetime.BossKills, c.Lifetime.Deaths,
		c.Lifetime.TerritorySeconds, c.Lifetime.PlaytimeSeconds, c.Dead,
	}
}
