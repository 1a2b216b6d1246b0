package dice

import "go.uber.org/zap"

// Roller wraps a Source with the game's common random decisions.
// Every decision is logged at debug level.
type Roller struct {
	src    Source
	logger *zap.Logger
}

// NewRoller creates a Roller that draws from src and logs to logger.
//
// Precondition: src and logger must be non-nil.
func NewRoller(src Source, logger *zap.Logger) *Roller {
	return &Roller{src: src, logger: logger}
}

// Source returns the underlying Source.
func (r *Roller) Source() Source { return r.src }

// Chance reports true with probability p.
//
// Postcondition: Always false for p <= 0; always true for p >= 1.
func (r *Roller) Chance(reason string, p float64) bool {
	roll := r.src.Float64()
	hit := roll < p
	r.logger.Debug("chance roll",
		zap.String("reason", reason),
		zap.Float64("p", p),
		zap.Float64("roll", roll),
		zap.Bool("hit", hit),
	)
	return hit
}

// Between returns a value uniformly distributed in [lo, hi).
//
// Precondition: lo <= hi.
func (r *Roller) Between(lo, hi float64) float64 {
	return lo + r.src.Float64()*(hi-lo)
}

// Intn returns a value in [0, n).
//
// Precondition: n > 0.
func (r *Roller) Intn(n int) int { return r.src.Intn(n) }
