// Package scripting runs sandboxed GopherLua world-event scripts. It has no
// dependency on world state; every game interaction is injected through
// Manager callback fields.
package scripting

import (
	"context"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"
)

// DefaultInstructionLimit is the number of Lua opcodes one hook call or
// script load may execute.
const DefaultInstructionLimit = 100_000

// countingContext cancels itself after Done() has been called limit times.
// GopherLua checks Done() once per opcode, which makes this an exact
// instruction budget.
type countingContext struct {
	context.Context
	cancel    context.CancelFunc
	remaining *atomic.Int64
}

func (c *countingContext) Done() <-chan struct{} {
	if c.remaining.Add(-1) <= 0 {
		c.cancel()
	}
	return c.Context.Done()
}

func newCountingContext(limit int) (context.Context, context.CancelFunc) {
	base, cancel := context.WithCancel(context.Background())
	rem := &atomic.Int64{}
	rem.Store(int64(limit))
	return &countingContext{Context: base, cancel: cancel, remaining: rem}, cancel
}

// NewSandboxedState creates an LState with only the base, table, string and
// math libraries, and with dofile, loadfile, load, collectgarbage and require
// removed.
//
// Postcondition: The caller owns the LState and must Close it.
func NewSandboxedState() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	for _, name := range []string{"dofile", "loadfile", "load", "collectgarbage", "require"} {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}

// Budget installs a fresh instruction budget on L. The returned func removes
// it and must be called once the guarded call returns.
//
// Precondition: limit <= 0 selects DefaultInstructionLimit.
func Budget(L *lua.LState, limit int) func() {
	if limit <= 0 {
		limit = DefaultInstructionLimit
	}
	ctx, cancel := newCountingContext(limit)
	L.SetContext(ctx)
	return func() {
		L.RemoveContext()
		cancel()
	}
}
