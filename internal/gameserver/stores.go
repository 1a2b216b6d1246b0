package gameserver

import (
	"context"
	"errors"
	"time"

	"github.com/cory-johannsen/subjugate/internal/game/character"
	"github.com/cory-johannsen/subjugate/internal/game/progression"
	"github.com/cory-johannsen/subjugate/internal/game/territory"
	"github.com/cory-johannsen/subjugate/internal/storage"
)

var (
	// ErrInvalidToken is returned when an enter-world token is unknown or expired.
	ErrInvalidToken = errors.New("invalid or expired session token")
	// ErrCharacterMismatch is returned when a character does not belong to the
	// token's account.
	ErrCharacterMismatch = errors.New("character does not belong to account")
)

// AccountStore persists login identities.
type AccountStore interface {
	Create(ctx context.Context, username, password string) (storage.Account, error)
	Authenticate(ctx context.Context, username, password string) (storage.Account, error)
	GetByID(ctx context.Context, id int64) (storage.Account, error)
	SetFlags(ctx context.Context, accountID int64, admin, banned bool) error
}

// SessionStore issues and validates login tokens.
type SessionStore interface {
	Issue(ctx context.Context, accountID int64, ttl time.Duration) (string, error)
	// Validate returns the token's account, or an error for unknown or expired tokens.
	Validate(ctx context.Context, token string) (int64, error)
	Revoke(ctx context.Context, token string) error
}

// CharacterStore persists characters.
type CharacterStore interface {
	Create(ctx context.Context, c *character.Character) (*character.Character, error)
	ListByAccount(ctx context.Context, accountID int64) ([]*character.Character, error)
	Load(ctx context.Context, id int64) (*character.Character, error)
	Save(ctx context.Context, c *character.Character) error
	SetOnline(ctx context.Context, id int64, online bool) error
	Delete(ctx context.Context, accountID, id int64) error
}

// GameLog records notable world events.
type GameLog interface {
	Record(ctx context.Context, e storage.LogEntry) error
}

// Stores bundles the persistence collaborators of the world server.
type Stores struct {
	Accounts       AccountStore
	Sessions       SessionStore
	Characters     CharacterStore
	Territories    territory.Store
	Reincarnations progression.Store
	Log            GameLog
}
