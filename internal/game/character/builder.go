package character

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var (
	// ErrInvalidName is returned for names outside 3-16 letters, digits, and spaces.
	ErrInvalidName = errors.New("character name must be 3-16 letters, digits, or spaces")
)

// ValidateName checks a character name.
//
// Postcondition: Returns nil or an error wrapping ErrInvalidName.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if n := len([]rune(trimmed)); n < 3 || n > 16 || trimmed != name {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	for _, r := range name {
		if r != ' ' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
	}
	return nil
}

// New constructs a first-life character at the given spawn point.
//
// Precondition: accountID must be > 0.
// Postcondition: Returns a Character ready for persistence, or a non-nil error.
func New(accountID int64, name string, spawnX, spawnY, spawnZ float64) (*Character, error) {
	if accountID <= 0 {
		return nil, fmt.Errorf("account id must be positive, got %d", accountID)
	}
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	c := &Character{
		AccountID: accountID,
		Name:      name,
		GameMode:  DefaultGameMode,
		X:         spawnX,
		Y:         spawnY,
		Z:         spawnZ,
	}
	c.ResetLife()
	return c, nil
}

// ResetLife returns c to starting level and stats, applying its accumulated
// perks on top of the base values and clearing its lifetime counters.
// ReincarnationCount and Perks are preserved.
//
// Postcondition: c.Level == StartingLevel; c.HP == c.MaxHP; c.MP == c.MaxMP.
func (c *Character) ResetLife() {
	c.Level = StartingLevel
	c.Experience = 0
	c.MaxHP = BaseHP + c.Perks.HP
	c.MaxMP = BaseMP + c.Perks.MP
	c.HP = c.MaxHP
	c.MP = c.MaxMP
	c.Attack = BaseAttack + c.Perks.Attack
	c.Defense = BaseDefense + c.Perks.Defense
	c.Speed = BaseSpeed + c.Perks.Speed
	c.Lifetime = Lifetime{}
	c.Dead = false
}
