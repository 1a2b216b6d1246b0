// Package sqlite provides an embedded SQLite persistence backend for the
// single-binary development server and for tests that cannot start Docker.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    is_admin INTEGER NOT NULL DEFAULT 0,
    is_banned INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    last_login DATETIME
);
CREATE TABLE IF NOT EXISTS sessions (
    token TEXT PRIMARY KEY,
    account_id INTEGER NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
    expires_unix INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS characters (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    account_id INTEGER NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
    name TEXT NOT NULL UNIQUE,
    game_mode TEXT NOT NULL DEFAULT 'pvp',
    guild_id INTEGER NOT NULL DEFAULT 0,
    level INTEGER NOT NULL DEFAULT 1,
    experience INTEGER NOT NULL DEFAULT 0,
    hp INTEGER NOT NULL,
    max_hp INTEGER NOT NULL,
    mp INTEGER NOT NULL,
    max_mp INTEGER NOT NULL,
    attack INTEGER NOT NULL,
    defense INTEGER NOT NULL,
    speed REAL NOT NULL,
    x REAL NOT NULL DEFAULT 0,
    y REAL NOT NULL DEFAULT 0,
    z REAL NOT NULL DEFAULT 0,
    rotation REAL NOT NULL DEFAULT 0,
    reincarnation_count INTEGER NOT NULL DEFAULT 0,
    perk_hp INTEGER NOT NULL DEFAULT 0,
    perk_mp INTEGER NOT NULL DEFAULT 0,
    perk_attack INTEGER NOT NULL DEFAULT 0,
    perk_defense INTEGER NOT NULL DEFAULT 0,
    perk_speed REAL NOT NULL DEFAULT 0,
    perk_xp REAL NOT NULL DEFAULT 0,
    kills INTEGER NOT NULL DEFAULT 0,
    player_kills INTEGER NOT NULL DEFAULT 0,
    boss_kills INTEGER NOT NULL DEFAULT 0,
    deaths INTEGER NOT NULL DEFAULT 0,
    territory_seconds INTEGER NOT NULL DEFAULT 0,
    playtime_seconds INTEGER NOT NULL DEFAULT 0,
    is_online INTEGER NOT NULL DEFAULT 0,
    is_dead INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS territory_control (
    territory_id INTEGER PRIMARY KEY,
    controller_id INTEGER NOT NULL DEFAULT 0,
    controller_name TEXT NOT NULL DEFAULT '',
    capture_points INTEGER NOT NULL DEFAULT 0,
    captured_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS reincarnation_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    character_id INTEGER NOT NULL REFERENCES characters(id) ON DELETE CASCADE,
    reincarnation_number INTEGER NOT NULL,
    previous_level INTEGER NOT NULL,
    previous_kills INTEGER NOT NULL DEFAULT 0,
    previous_boss_kills INTEGER NOT NULL DEFAULT 0,
    previous_territory_seconds INTEGER NOT NULL DEFAULT 0,
    previous_playtime_seconds INTEGER NOT NULL DEFAULT 0,
    success_score REAL NOT NULL,
    perk_hp INTEGER NOT NULL DEFAULT 0,
    perk_mp INTEGER NOT NULL DEFAULT 0,
    perk_attack INTEGER NOT NULL DEFAULT 0,
    perk_defense INTEGER NOT NULL DEFAULT 0,
    perk_speed REAL NOT NULL DEFAULT 0,
    perk_xp REAL NOT NULL DEFAULT 0,
    reincarnated_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS game_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    kind TEXT NOT NULL,
    character_id INTEGER NOT NULL DEFAULT 0,
    detail TEXT NOT NULL DEFAULT '{}',
    created_at DATETIME NOT NULL
);`

// DB is an open SQLite database with the schema applied.
type DB struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the schema.
// ":memory:" yields a private in-process database.
//
// Postcondition: Returns a ready DB or a non-nil error.
func Open(ctx context.Context, path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %q: %w", path, err)
	}
	// SQLite serialises writers; one connection also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &DB{db: db}, nil
}

// SQL returns the underlying *sql.DB for use by repositories.
func (d *DB) SQL() *sql.DB { return d.db }

// Health pings the database.
func (d *DB) Health(ctx context.Context) error { return d.db.PingContext(ctx) }

// Close releases the database.
func (d *DB) Close() error { return d.db.Close() }

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY constraint failure.
func isUniqueViolation(err error) bool {
	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		switch coded.Code() {
		case 2067, 1555: // SQLITE_CONSTRAINT_UNIQUE, SQLITE_CONSTRAINT_PRIMARYKEY
			return true
		}
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Stores bundles every repository backed by one database.
type Stores struct {
	Accounts       *AccountRepository
	Sessions       *SessionRepository
	Characters     *CharacterRepository
	Territories    *TerritoryRepository
	Reincarnations *ReincarnationRepository
	Log            *GameLogRepository
}

// NewStores creates every repository over d.
func NewStores(d *DB) *Stores {
	return &Stores{
		Accounts:       NewAccountRepository(d),
		Sessions:       NewSessionRepository(d),
		Characters:     NewCharacterRepository(d),
		Territories:    NewTerritoryRepository(d),
		Reincarnations: NewReincarnationRepository(d),
		Log:            NewGameLogRepository(d),
	}
}
