// Package dice provides the randomness abstraction used by combat, loot, NPC
// behaviour, and spawning.
package dice

// Source is the randomness provider for the simulation.
//
// Implementations MUST be safe for concurrent use.
type Source interface {
	// Intn returns a non-negative random int in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int
	// Float64 returns a random float in [0, 1).
	Float64() float64
}

// Constant is a Source that always yields the same fraction of its range.
// It is intended for tests and tooling that need reproducible outcomes.
//
// Precondition: 0 <= Constant < 1.
type Constant float64

// Intn returns floor(c*n).
func (c Constant) Intn(n int) int {
	if n <= 0 {
		panic("dice: Intn called with n <= 0")
	}
	return int(float64(c) * float64(n))
}

// Float64 returns c.
func (c Constant) Float64() float64 { return float64(c) }
