package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/subjugate/internal/game/character"
	"github.com/cory-johannsen/subjugate/internal/storage"
)

// CharacterRepository provides character persistence operations.
type CharacterRepository struct {
	db *pgxpool.Pool
}

// NewCharacterRepository creates a CharacterRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewCharacterRepository(db *pgxpool.Pool) *CharacterRepository {
	return &CharacterRepository{db: db}
}

const updateState = `level = $2, experience = $3, hp = $4, max_hp = $5, mp = $6, max_mp = $7,
	attack = $8, defense = $9, speed = $10, x = $11, y = $12, z = $13, rotation = $14,
	reincarnation_count = $15, perk_hp = $16, perk_mp = $17, perk_attack = $18,
	perk_defense = $19, perk_speed = $20, perk_xp = $21, kills = $22, player_kills = $23,
	boss_kills = $24, deaths = $25, territory_seconds = $26, playtime_seconds = $27,
	is_dead = $28, updated_at = NOW()`

// Create inserts a new character and returns it with ID and timestamps set.
//
// Precondition: c.AccountID must reference an existing account; c.Name must be non-empty.
// Postcondition: Returns the created character, or storage.ErrCharacterNameTaken on duplicate.
func (r *CharacterRepository) Create(ctx context.Context, c *character.Character) (*character.Character, error) {
	args := append([]any{c.AccountID, c.Name, c.GameMode}, storage.CharacterState(c)...)
	out, err := storage.ScanCharacter(r.db.QueryRow(ctx, `
		INSERT INTO characters
			(account_id, name, game_mode, level, experience, hp, max_hp, mp, max_mp,
			 attack, defense, speed, x, y, z, rotation, reincarnation_count,
			 perk_hp, perk_mp, perk_attack, perk_defense, perk_speed, perk_xp,
			 kills, player_kills, boss_kills, deaths, territory_seconds, playtime_seconds, is_dead)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,
		        $21,$22,$23,$24,$25,$26,$27,$28,$29,$30)
		RETURNING `+storage.CharacterColumns,
		args...,
	))
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, storage.ErrCharacterNameTaken
		}
		return nil, fmt.Errorf("inserting character: %w", err)
	}
	return out, nil
}

// ListByAccount returns all characters for the given account ID, ordered by created_at.
//
// Postcondition: Returns a slice (may be empty) or a non-nil error.
func (r *CharacterRepository) ListByAccount(ctx context.Context, accountID int64) ([]*character.Character, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+storage.CharacterColumns+` FROM characters WHERE account_id = $1 ORDER BY created_at, id`,
		accountID,
	)
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
	c, err := storage.ScanCharacter(r.db.QueryRow(ctx,
		`SELECT `+storage.CharacterColumns+` FROM characters WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrCharacterNotFound
		}
		return nil, fmt.Errorf("querying character: %w", err)
	}
	return c, nil
}

// Save persists the mutable state of c.
//
// Postcondition: Returns nil on success, storage.ErrCharacterNotFound if no row updated.
func (r *CharacterRepository) Save(ctx context.Context, c *character.Character) error {
	return saveCharacter(ctx, r.db, c)
}

// execer is satisfied by *pgxpool.Pool and pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func saveCharacter(ctx context.Context, db execer, c *character.Character) error {
	args := append([]any{c.ID}, storage.CharacterState(c)...)
	tag, err := db.Exec(ctx, `UPDATE characters SET `+updateState+` WHERE id = $1`, args...)
	if err != nil {
		return fmt.Errorf("saving character %d: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrCharacterNotFound
	}
	return nil
}

// SetOnline records whether character id is in the world.
func (r *CharacterRepository) SetOnline(ctx context.Context, id int64, online bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE characters SET is_online = $2 WHERE id = $1`, id, online)
	if err != nil {
		return fmt.Errorf("updating online flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrCharacterNotFound
	}
	return nil
}

// ResetOnline clears the online flag of every character, for use at startup.
func (r *CharacterRepository) ResetOnline(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, `UPDATE characters SET is_online = FALSE WHERE is_online`); err != nil {
		return fmt.Errorf("resetting online flags: %w", err)
	}
	return nil
}

// Delete removes a character owned by accountID.
//
// Postcondition: Returns nil or storage.ErrCharacterNotFound when no such owned character exists.
func (r *CharacterRepository) Delete(ctx context.Context, accountID, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM characters WHERE id = $1 AND account_id = $2`, id, accountID)
	if err != nil {
		return fmt.Errorf("deleting character: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrCharacterNotFound
	}
	return nil
}
