// Package storage holds the persistence model shared by the PostgreSQL and
// SQLite backends: account records, sentinel errors, password hashing, and
// the character column mapping.
package storage

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

var (
	// ErrAccountNotFound is returned when an account lookup yields no results.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountExists is returned when attempting to create a duplicate username.
	ErrAccountExists = errors.New("account already exists")
	// ErrInvalidCredentials is returned when authentication fails.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountBanned is returned when a banned account authenticates.
	ErrAccountBanned = errors.New("account banned")
	// ErrCharacterNotFound is returned when a character lookup yields no results.
	ErrCharacterNotFound = errors.New("character not found")
	// ErrCharacterNameTaken is returned when creating a character with a name already in use.
	ErrCharacterNameTaken = errors.New("character name already taken")
	// ErrTokenNotFound is returned for an unknown session token.
	ErrTokenNotFound = errors.New("session token not found")
	// ErrTokenExpired is returned for a session token past its expiry.
	ErrTokenExpired = errors.New("session token expired")
)

// Account is a login identity.
type Account struct {
	ID           int64
	Username     string
	PasswordHash string
	Admin        bool
	Banned       bool
	CreatedAt    time.Time
}

// Game log kinds.
const (
	LogCapture       = "territory_capture"
	LogDeath         = "death"
	LogLevelUp       = "level_up"
	LogReincarnation = "reincarnation"
	LogAdmin         = "admin"
)

// LogEntry is one row of the game log.
type LogEntry struct {
	Kind        string
	CharacterID int64
	Detail      map[string]any
	At          time.Time
}

// EncodeDetail renders a log detail map as JSON.
func EncodeDetail(detail map[string]any) ([]byte, error) {
	s, err := structpb.NewStruct(detail)
	if err != nil {
		return nil, err
	}
	return protojson.Marshal(s)
}

// DecodeDetail parses JSON produced by EncodeDetail.
func DecodeDetail(b []byte) (map[string]any, error) {
	var s structpb.Struct
	if err := protojson.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	return s.AsMap(), nil
}

// HashPassword creates a bcrypt hash of the given password.
//
// Precondition: password must be non-empty.
// Postcondition: Returns a bcrypt hash string.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
