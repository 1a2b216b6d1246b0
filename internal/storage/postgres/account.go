package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/subjugate/internal/storage"
)

// AccountRepository provides account persistence operations.
type AccountRepository struct {
	db *pgxpool.Pool
}

// NewAccountRepository creates an AccountRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewAccountRepository(db *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `id, username, password_hash, is_admin, is_banned, created_at`

func scanAccount(row pgx.Row) (storage.Account, error) {
	var a storage.Account
	err := row.Scan(&a.ID, &a.Username, &a.PasswordHash, &a.Admin, &a.Banned, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.Account{}, storage.ErrAccountNotFound
	}
	return a, err
}

// Create inserts a new account with a bcrypt-hashed password.
//
// Precondition: username must be non-empty; password must be non-empty.
// Postcondition: Returns the created Account with ID and CreatedAt set,
// or storage.ErrAccountExists if the username is taken.
func (r *AccountRepository) Create(ctx context.Context, username, password string) (storage.Account, error) {
	hash, err := storage.HashPassword(password)
	if err != nil {
		return storage.Account{}, fmt.Errorf("hashing password: %w", err)
	}
	acct, err := scanAccount(r.db.QueryRow(ctx,
		`INSERT INTO accounts (username, password_hash) VALUES ($1, $2)
		 RETURNING `+accountColumns,
		username, hash,
	))
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.Account{}, storage.ErrAccountExists
		}
		return storage.Account{}, fmt.Errorf("inserting account: %w", err)
	}
	return acct, nil
}

// Authenticate verifies credentials and returns the matching account,
// stamping its last login.
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
	if _, err := r.db.Exec(ctx, `UPDATE accounts SET last_login = NOW() WHERE id = $1`, acct.ID); err != nil {
		return storage.Account{}, fmt.Errorf("stamping last login: %w", err)
	}
	return acct, nil
}

// GetByID retrieves an account by primary key.
func (r *AccountRepository) GetByID(ctx context.Context, id int64) (storage.Account, error) {
	acct, err := scanAccount(r.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if err != nil && !errors.Is(err, storage.ErrAccountNotFound) {
		return storage.Account{}, fmt.Errorf("querying account: %w", err)
	}
	return acct, err
}

// GetByUsername retrieves an account by username.
//
// Postcondition: Returns the Account or storage.ErrAccountNotFound.
func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (storage.Account, error) {
	acct, err := scanAccount(r.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE username = $1`, username))
	if err != nil && !errors.Is(err, storage.ErrAccountNotFound) {
		return storage.Account{}, fmt.Errorf("querying account: %w", err)
	}
	return acct, err
}

// SetFlags updates the admin and banned flags of an account.
//
// Postcondition: Returns nil or storage.ErrAccountNotFound.
func (r *AccountRepository) SetFlags(ctx context.Context, accountID int64, admin, banned bool) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE accounts SET is_admin = $2, is_banned = $3 WHERE id = $1`,
		accountID, admin, banned,
	)
	if err != nil {
		return fmt.Errorf("updating account flags: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrAccountNotFound
	}
	return nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
