package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/subjugate/internal/game/dice"
)

// Hook names scripts may define.
const (
	HookStart = "on_start"
	HookTick  = "on_tick"
)

// Manager owns one sandboxed LState per world-event script.
//
// Each *.lua file in the script directory is one event, named after the file
// without its extension. Events do not share globals.
type Manager struct {
	mu        sync.Mutex
	states    map[string]*lua.LState
	instLimit int
	roller    *dice.Roller
	logger    *zap.Logger

	// Injected after construction. nil = no-op in engine.* functions.
	Spawn       func(templateID int, x, z float64) (uint64, bool)
	Announce    func(event, msg string)
	PlayerCount func() int
	NPCCount    func(templateID int) int
}

// NewManager creates a Manager.
//
// Precondition: roller and logger must be non-nil; instLimit <= 0 selects
// DefaultInstructionLimit.
func NewManager(roller *dice.Roller, instLimit int, logger *zap.Logger) *Manager {
	return &Manager{
		states:    make(map[string]*lua.LState),
		instLimit: instLimit,
		roller:    roller,
		logger:    logger,
	}
}

// LoadDir loads every *.lua file in dir as its own event, in lexicographic
// order. Loading replaces an event with the same name.
//
// Postcondition: On error no event from dir has been registered.
func (m *Manager) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("scripting: reading script dir %q: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	loaded := make(map[string]*lua.LState, len(files))
	for _, path := range files {
		name := strings.TrimSuffix(filepath.Base(path), ".lua")
		L, err := m.load(name, path)
		if err != nil {
			for _, l := range loaded {
				l.Close()
			}
			return err
		}
		loaded[name] = L
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for name, L := range loaded {
		if old, ok := m.states[name]; ok {
			old.Close()
		}
		m.states[name] = L
	}
	m.logger.Info("world event scripts loaded", zap.String("dir", dir), zap.Int("events", len(loaded)))
	return nil
}

func (m *Manager) load(name, path string) (*lua.LState, error) {
	L := NewSandboxedState()
	m.registerModules(L, name)
	release := Budget(L, m.instLimit)
	err := L.DoFile(path)
	release()
	if err != nil {
		L.Close()
		return nil, fmt.Errorf("scripting: loading %q: %w", path, err)
	}
	return L, nil
}

// Events returns the loaded event names in sorted order.
func (m *Manager) Events() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.states))
	for name := range m.states {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CallHook calls the named global function in event's VM. Returns (LNil, nil)
// when the event or hook does not exist. Lua runtime errors, including an
// exhausted instruction budget, are logged at Warn and returned.
//
// Postcondition: Returns the first return value of the hook, or LNil.
func (m *Manager) CallHook(event, hook string, args ...lua.LValue) (lua.LValue, error) {
	m.mu.Lock()
	L, ok := m.states[event]
	m.mu.Unlock()
	if !ok {
		return lua.LNil, nil
	}

	fn := L.GetGlobal(hook)
	if fn.Type() != lua.LTFunction {
		return lua.LNil, nil
	}

	release := Budget(L, m.instLimit)
	defer release()
	if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, args...); err != nil {
		m.logger.Warn("world event hook failed",
			zap.String("event", event),
			zap.String("hook", hook),
			zap.Error(err),
		)
		return lua.LNil, fmt.Errorf("scripting: %s.%s: %w", event, hook, err)
	}
	ret := L.Get(-1)
	L.Pop(1)
	return ret, nil
}

// Start calls on_start in every event.
func (m *Manager) Start() {
	for _, name := range m.Events() {
		_, _ = m.CallHook(name, HookStart)
	}
}

// Tick calls on_tick(elapsedSeconds) in every event.
func (m *Manager) Tick(elapsedSeconds float64) {
	for _, name := range m.Events() {
		_, _ = m.CallHook(name, HookTick, lua.LNumber(elapsedSeconds))
	}
}

// Close releases every VM.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, L := range m.states {
		L.Close()
		delete(m.states, name)
	}
}
