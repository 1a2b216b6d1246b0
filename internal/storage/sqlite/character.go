package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cory-johannsen/subjugate/internal/game/character"
	"github.com/cory-johannsen/subjugate/internal/storage"
)

// CharacterRepository provides character persistence operations.
type CharacterRepository struct {
	db *sql.DB
}

// NewCharacterRepository creates a CharacterRepository over d.
func NewCharacterRepository(d *DB) *CharacterRepository {
	return &CharacterRepository{db: d.db}
}

const updateState = `level = ?, experience = ?, hp = ?, max_hp = ?, mp = ?, max_mp = ?,
	attack = ?, defense = ?, speed = ?, x = ?, y = ?, z = ?, rotation = ?,
	reincarnation_count = ?, perk_hp = ?, perk_mp = ?, perk_attack = ?, perk_defense = ?,
	perk_speed = ?, perk_xp = ?, kills = ?, player_kills = ?, boss_kills = ?, deaths = ?,
	territory_seconds = ?, playtime_seconds = ?, is_dead = ?, updated_at = CURRENT_TIMESTAMP`

// Create inserts a new character and returns it with ID and timestamps set.
//
// Postcondition: Returns the created character, or storage.ErrCharacterNameTaken on duplicate.
func (r *CharacterRepository) Create(ctx context.Context, c *character.Character) (*character.Character, error) {
	args := append([]any{c.AccountID, c.Name, c.GameMode}, storage.CharacterState(c)...)
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO characters
			(account_id, name, game_mode, level, experience, hp, max_hp, mp, max_mp,
			 attack, defense, speed, x, y, z, rotation, reincarnation_count,
			 perk_hp, perk_mp, perk_attack, perk_defense, perk_speed, perk_xp,
			 kills, player_kills, boss_kills, deaths, territory_seconds, playtime_seconds, is_dead)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		args...,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, storage.ErrCharacterNameTaken
		}
		return nil, fmt.Errorf("inserting character: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading character id: %w", err)
	}
	return r.Load(ctx, id)
}

// ListByAccount returns all characters for the given account ID in creation order.
func (r *CharacterRepository) ListByAccount(ctx context.Context, accountID int64) ([]*character.Character, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+storage.CharacterColumns+` FROM characters WHERE account_id = ? ORDER BY id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("listing characters: %w", err)
	}
	defer rows.Close()

	chars := make([]*character.Character, 0)
	for rows.Next() {
		c, err := storage.ScanCharacter(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning character row: %w", err)
		}
		chars = append(chars, c)
	}
	return chars, rows.Err()
}

// Load retrieves a character by its primary key.
//
// Postcondition: Returns the Character or storage.ErrCharacterNotFound.
func (r *CharacterRepository) Load(ctx context.Context, id int64) (*character.Character, error) {
	c, err := storage.ScanCharacter(r.db.QueryRowContext(ctx,
		`SELECT `+storage.CharacterColumns+` FROM characters WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrCharacterNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying character: %w", err)
	}
	return c, nil
}

// Save persists the mutable state of c.
func (r *CharacterRepository) Save(ctx context.Context, c *character.Character) error {
	return saveCharacter(ctx, r.db, c)
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func saveCharacter(ctx context.Context, db execer, c *character.Character) error {
	args := append(storage.CharacterState(c), c.ID)
	res, err := db.ExecContext(ctx, `UPDATE characters SET `+updateState+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("saving character %d: %w", c.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrCharacterNotFound
	}
	return nil
}

// SetOnline records whether character id is in the world.
func (r *CharacterRepository) SetOnline(ctx context.Context, id int64, online bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE characters SET is_online = ? WHERE id = ?`, online, id)
	if err != nil {
		return fmt.Errorf("updating online flag: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrCharacterNotFound
	}
	return nil
}

// ResetOnline clears the online flag of every character, for use at startup.
func (r *CharacterRepository) ResetOnline(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE characters SET is_online = 0 WHERE is_online = 1`); err != nil {
		return fmt.Errorf("resetting online flags: %w", err)
	}
	return nil
}

// Delete removes a character owned by accountID.
func (r *CharacterRepository) Delete(ctx context.Context, accountID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM characters WHERE id = ? AND account_id = ?`, id, accountID)
	if err != nil {
		return fmt.Errorf("deleting character: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrCharacterNotFound
	}
	return nil
}
