package progression

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/subjugate/internal/game/character"
	"github.com/cory-johannsen/subjugate/internal/game/world"
)

var (
	// ErrNotInWorld is returned when the reincarnating player is not present.
	ErrNotInWorld = errors.New("player not in world")
	// ErrNotEligible is returned when CanReincarnate refuses.
	ErrNotEligible = errors.New("not eligible to reincarnate")
)

// History records one completed reincarnation.
type History struct {
	CharacterID   int64
	Number        int
	PreviousLevel int
	Previous      character.Lifetime
	Score         float64
	Perks         character.Perks
	At            time.Time
}

// Store persists a reincarnated character and its history row atomically.
type Store interface {
	SaveReincarnation(ctx context.Context, c *character.Character, h History) error
}

// Players resolves a live player by entity id.
type Players interface {
	Player(id uint64) (*world.Player, bool)
}

// Result is the outcome of a successful reincarnation.
type Result struct {
	Count      int
	Score      float64
	NewPerks   character.Perks
	TotalPerks character.Perks
	History    History
}

// Engine performs reincarnations against the live world and the store.
type Engine struct {
	players Players
	store   Store
	now     func() time.Time
	logger  *zap.Logger
}

// NewEngine creates an Engine.
func NewEngine(players Players, store Store, now func() time.Time, logger *zap.Logger) *Engine {
	return &Engine{players: players, store: store, now: now, logger: logger}
}

// Preview returns the score and perks playerID would receive without
// changing any state.
func (e *Engine) Preview(playerID uint64) (float64, character.Perks, error) {
	p, ok := e.players.Player(playerID)
	if !ok {
		return 0, character.Perks{}, ErrNotInWorld
	}
	if ok, reason := CanReincarnate(p); !ok {
		return 0, character.Perks{}, fmt.Errorf("%w: %s", ErrNotEligible, reason)
	}
	p.AccruePlaytime(e.now())
	score := SuccessScore(StatsOf(p))
	return score, PerksFor(p.ReincarnationCount+1, score), nil
}

// Perform reincarnates the player: it scores the ending life, merges the new
// perks, resets the character to level 1 with perks applied to base stats,
// and persists the snapshot and history row.
//
// Postcondition: On error the player is unchanged; on success p.Level == 1
// and p.ReincarnationCount has grown by one.
func (e *Engine) Perform(ctx context.Context, playerID uint64) (*Result, error) {
	p, ok := e.players.Player(playerID)
	if !ok {
		return nil, ErrNotInWorld
	}
	if ok, reason := CanReincarnate(p); !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotEligible, reason)
	}
	now := e.now()
	p.AccruePlaytime(now)

	score := SuccessScore(StatsOf(p))
	count := p.ReincarnationCount + 1
	gained := PerksFor(count, score)

	next := p.Snapshot()
	hist := History{
		CharacterID:   p.CharacterID,
		Number:        count,
		PreviousLevel: p.Level,
		Previous:      p.Lifetime,
		Score:         score,
		Perks:         gained,
		At:            now,
	}
	next.ReincarnationCount = count
	next.Perks = next.Perks.Add(gained)
	next.ResetLife()

	if err := e.store.SaveReincarnation(ctx, next, hist); err != nil {
		return nil, fmt.Errorf("saving reincarnation of character %d: %w", p.CharacterID, err)
	}
	p.ApplyLife(next)
	p.SkillCooldowns = make(map[int]time.Time)
	p.SetTerritoryBuff(p.TerritoryBuff)

	e.logger.Info("character reincarnated",
		zap.String("name", p.Name),
		zap.Int("count", count),
		zap.Float64("score", score),
	)
	return &Result{Count: count, Score: score, NewPerks: gained, TotalPerks: next.Perks, History: hist}, nil
}
