package scripting_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/subjugate/internal/game/dice"
	"github.com/cory-johannsen/subjugate/internal/scripting"
)

func newTestManager(t testing.TB) (*scripting.Manager, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)
	roller := dice.NewRoller(dice.Constant(0.5), logger)
	m := scripting.NewManager(roller, 0, logger)
	t.Cleanup(m.Close)
	return m, logs
}

func writeScripts(t testing.TB, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, src := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644))
	}
	return dir
}

func TestManager_LoadDir_OneEventPerFile(t *testing.T) {
	m, _ := newTestManager(t)
	dir := writeScripts(t, map[string]string{
		"invasion.lua":   `function add(a, b) return a + b end`,
		"world_boss.lua": `-- nothing`,
		"README.md":      `not a script`,
	})
	require.NoError(t, m.LoadDir(dir))
	assert.Equal(t, []string{"invasion", "world_boss"}, m.Events())

	ret, err := m.CallHook("invasion", "add", lua.LNumber(3), lua.LNumber(4))
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(7), ret)
}

func TestManager_LoadDir_SyntaxErrorRegistersNothing(t *testing.T) {
	m, _ := newTestManager(t)
	dir := writeScripts(t, map[string]string{
		"a.lua": `x = 1`,
		"b.lua": `function (`,
	})
	assert.Error(t, m.LoadDir(dir))
	assert.Empty(t, m.Events())
}

func TestManager_LoadDir_MissingDir(t *testing.T) {
	m, _ := newTestManager(t)
	assert.Error(t, m.LoadDir(filepath.Join(t.TempDir(), "missing")))
}

func TestManager_CallHook_MissingEventOrHook(t *testing.T) {
	m, _ := newTestManager(t)
	dir := writeScripts(t, map[string]string{"quiet.lua": `answer = 42`})
	require.NoError(t, m.LoadDir(dir))

	ret, err := m.CallHook("nope", scripting.HookTick)
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)

	// a non-function global is not a hook
	ret, err = m.CallHook("quiet", "answer")
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)
}

func TestManager_CallHook_RuntimeErrorLogged(t *testing.T) {
	m, logs := newTestManager(t)
	dir := writeScripts(t, map[string]string{"bad.lua": `function on_tick() error("boom") end`})
	require.NoError(t, m.LoadDir(dir))

	_, err := m.CallHook("bad", scripting.HookTick)
	require.Error(t, err)
	assert.Equal(t, 1, logs.FilterMessage("world event hook failed").Len())
}

func TestManager_RunawayHookDoesNotKillEvent(t *testing.T) {
	m, _ := newTestManager(t)
	dir := writeScripts(t, map[string]string{"loop.lua": `
		calls = 0
		function on_tick(elapsed)
			calls = calls + 1
			if calls == 1 then
				while true do end
			end
			return calls
		end
	`})
	require.NoError(t, m.LoadDir(dir))

	_, err := m.CallHook("loop", scripting.HookTick, lua.LNumber(1))
	require.Error(t, err)
	ret, err := m.CallHook("loop", scripting.HookTick, lua.LNumber(2))
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(2), ret)
}

func TestManager_EngineBindings(t *testing.T) {
	m, logs := newTestManager(t)
	type spawned struct {
		template int
		x, z     float64
	}
	var spawns []spawned
	var announcements []string
	m.Spawn = func(tmpl int, x, z float64) (uint64, bool) {
		spawns = append(spawns, spawned{tmpl, x, z})
		return uint64(100 + len(spawns)), true
	}
	m.Announce = func(event, msg string) { announcements = append(announcements, event+": "+msg) }
	m.PlayerCount = func() int { return 3 }
	m.NPCCount = func(tmpl int) int {
		if tmpl == 6002 {
			return 0
		}
		return 7
	}

	dir := writeScripts(t, map[string]string{"boss.lua": `
		function on_start()
			engine.log("armed")
		end
		function on_tick(elapsed)
			if engine.player_count() == 0 or engine.npc_count(6002) > 0 then
				return 0
			end
			local id = engine.spawn(6002, 500, engine.random(400, 600))
			engine.announce("the phoenix rises")
			return id
		end
	`})
	require.NoError(t, m.LoadDir(dir))

	m.Start()
	assert.Equal(t, 1, logs.FilterMessage("world event").Len())

	ret, err := m.CallHook("boss", scripting.HookTick, lua.LNumber(60))
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(101), ret)
	require.Len(t, spawns, 1)
	assert.Equal(t, spawned{6002, 500, 500}, spawns[0])
	assert.Equal(t, []string{"boss: the phoenix rises"}, announcements)
}

func TestManager_UnboundCallbacksAreNoOps(t *testing.T) {
	m, _ := newTestManager(t)
	dir := writeScripts(t, map[string]string{"e.lua": `
		function on_tick()
			engine.announce("hello")
			assert(engine.spawn(1, 0, 0) == nil)
			return engine.player_count() + engine.npc_count(1)
		end
	`})
	require.NoError(t, m.LoadDir(dir))
	ret, err := m.CallHook("e", scripting.HookTick)
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(0), ret)
}
