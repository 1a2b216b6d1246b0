package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cory-johannsen/subjugate/internal/storage"
)

// AccountRepository provides account persistence operations.
type AccountRepository struct {
	db *sql.DB
}

// NewAccountRepository creates an AccountRepository over d.
func NewAccountRepository(d *DB) *AccountRepository {
	return &AccountRepository{db: d.db}
}

const accountColumns = `id, username, password_hash, is_admin, is_banned, created_at`

func scanAccount(row *sql.Row) (storage.Account, error) {
	var a storage.Account
	err := row.Scan(&a.ID, &a.Username, &a.PasswordHash, &a.Admin, &a.Banned, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Account{}, storage.ErrAccountNotFound
	}
	if err != nil {
		return storage.Account{}, fmt.Errorf("querying account: %w", err)
	}
	return a, nil
}

// Create inserts a new account with a bcrypt-hashed password.
//
// Postcondition: Returns the created Account, or storage.ErrAccountExists if the username is taken.
func (r *AccountRepository) Create(ctx context.Context, username, password string) (storage.Account, error) {
	hash, err := storage.HashPassword(password)
	if err != nil {
		return storage.Account{}, fmt.Errorf("hashing password: %w", err)
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (username, password_hash) VALUES (?, ?)`, username, hash)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.Account{}, storage.ErrAccountExists
		}
		return storage.Account{}, fmt.Errorf("inserting account: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return storage.Account{}, fmt.Errorf("reading account id: %w", err)
	}
	return r.GetByID(ctx, id)
}

// Authenticate verifies credentials and returns the matching account.
//
// Postcondition: Returns the Account, storage.ErrAccountNotFound,
// storage.ErrInvalidCredentials, or storage.ErrAccountBanned.
func (r *AccountRepository) Authenticate(ctx context.Context, username, password string) (storage.Account, error) {
	acct, err := r.GetByUsername(ctx, username)
	if err != nil {
		return storage.Account{}, err
	}
	if !storage.CheckPassword(password, acct.PasswordHash) {
		return storage.Account{}, storage.ErrInvalidCredentials
	}
	if acct.Banned {
		return storage.Account{}, storage.ErrAccountBanned
	}
	if _, err := r.db.ExecContext(ctx, `UPDATE accounts SET last_login = CURRENT_TIMESTAMP WHERE id = ?`, acct.ID); err != nil {
		return storage.Account{}, fmt.Errorf("stamping last login: %w", err)
	}
	return acct, nil
}

// GetByID retrieves an account by primary key.
func (r *AccountRepository) GetByID(ctx context.Context, id int64) (storage.Account, error) {
	return scanAccount(r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id))
}

// GetByUsername retrieves an account by username.
func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (storage.Account, error) {
	return scanAccount(r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE username = ?`, username))
}

// SetFlags updates the admin and banned flags of an account.
func (r *AccountRepository) SetFlags(ctx context.Context, accountID int64, admin, banned bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET is_admin = ?, is_banned = ? WHERE id = ?`, admin, banned, accountID)
	if err != nil {
		return fmt.Errorf("updating account flags: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrAccountNotFound
	}
	return nil
}

// SessionRepository persists login tokens.
type SessionRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSessionRepository creates a SessionRepository over d.
func NewSessionRepository(d *DB) *SessionRepository {
	return &SessionRepository{db: d.db, now: time.Now}
}

// Issue creates a random token for accountID valid for ttl.
func (r *SessionRepository) Issue(ctx context.Context, accountID int64, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (token, account_id, expires_unix) VALUES (?, ?, ?)`,
		token, accountID, r.now().Add(ttl).Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("inserting session: %w", err)
	}
	return token, nil
}

// Validate resolves token to its account.
//
// Postcondition: Returns the account id, storage.ErrTokenNotFound, or storage.ErrTokenExpired.
func (r *SessionRepository) Validate(ctx context.Context, token string) (int64, error) {
	var accountID, expires int64
	err := r.db.QueryRowContext(ctx,
		`SELECT account_id, expires_unix FROM sessions WHERE token = ?`, token,
	).Scan(&accountID, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, storage.ErrTokenNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("querying session: %w", err)
	}
	if r.now().Unix() >= expires {
		return 0, storage.ErrTokenExpired
	}
	return accountID, nil
}

// Revoke deletes token. Unknown tokens are ignored.
func (r *SessionRepository) Revoke(ctx context.Context, token string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// PurgeExpired removes every expired token and returns how many were removed.
func (r *SessionRepository) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_unix <= ?`, r.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("purging sessions: %w", err)
	}
	return res.RowsAffected()
}
