package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/subjugate/internal/storage"
)

// SessionRepository persists login tokens.
type SessionRepository struct {
	db  *pgxpool.Pool
	now func() time.Time
}

// NewSessionRepository creates a SessionRepository backed by the given pool.
func NewSessionRepository(db *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{db: db, now: time.Now}
}

// Issue creates a random token for accountID valid for ttl.
//
// Postcondition: Returns the token string or a non-nil error.
func (r *SessionRepository) Issue(ctx context.Context, accountID int64, ttl time.Duration) (string, error) {
	token := uuid.New()
	_, err := r.db.Exec(ctx,
		`INSERT INTO sessions (token, account_id, expires_at) VALUES ($1, $2, $3)`,
		token, accountID, r.now().Add(ttl),
	)
	if err != nil {
		return "", fmt.Errorf("inserting session: %w", err)
	}
	return token.String(), nil
}

// Validate resolves token to its account.
//
// Postcondition: Returns the account id, storage.ErrTokenNotFound, or storage.ErrTokenExpired.
func (r *SessionRepository) Validate(ctx context.Context, token string) (int64, error) {
	id, err := uuid.Parse(token)
	if err != nil {
		return 0, storage.ErrTokenNotFound
	}
	var accountID int64
	var expires time.Time
	err = r.db.QueryRow(ctx,
		`SELECT account_id, expires_at FROM sessions WHERE token = $1`, id,
	).Scan(&accountID, &expires)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, storage.ErrTokenNotFound
		}
		return 0, fmt.Errorf("querying session: %w", err)
	}
	if !r.now().Before(expires) {
		return 0, storage.ErrTokenExpired
	}
	return accountID, nil
}

// Revoke deletes token. Unknown tokens are ignored.
func (r *SessionRepository) Revoke(ctx context.Context, token string) error {
	id, err := uuid.Parse(token)
	if err != nil {
		return nil
	}
	if _, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// PurgeExpired removes every expired token and returns how many were removed.
func (r *SessionRepository) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, r.now())
	if err != nil {
		return 0, fmt.Errorf("purging sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
