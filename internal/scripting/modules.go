package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// registerModules installs the engine table into L for the event name.
//
//	engine.spawn(template, x, z)  -> entity id, or nil when spawning failed
//	engine.announce(message)
//	engine.player_count()         -> number of players in the world
//	engine.npc_count(template)    -> live NPCs of that template
//	engine.random(lo, hi)         -> float in [lo, hi)
//	engine.log(message)
func (m *Manager) registerModules(L *lua.LState, event string) {
	engine := L.NewTable()
	L.SetFuncs(engine, map[string]lua.LGFunction{
		"spawn": func(L *lua.LState) int {
			tmpl := L.CheckInt(1)
			x := float64(L.CheckNumber(2))
			z := float64(L.CheckNumber(3))
			if m.Spawn == nil {
				L.Push(lua.LNil)
				return 1
			}
			id, ok := m.Spawn(tmpl, x, z)
			if !ok {
				L.Push(lua.LNil)
				return 1
			}
			L.Push(lua.LNumber(id))
			return 1
		},
		"announce": func(L *lua.LState) int {
			msg := L.CheckString(1)
			if m.Announce != nil {
				m.Announce(event, msg)
			}
			return 0
		},
		"player_count": func(L *lua.LState) int {
			n := 0
			if m.PlayerCount != nil {
				n = m.PlayerCount()
			}
			L.Push(lua.LNumber(n))
			return 1
		},
		"npc_count": func(L *lua.LState) int {
			tmpl := L.CheckInt(1)
			n := 0
			if m.NPCCount != nil {
				n = m.NPCCount(tmpl)
			}
			L.Push(lua.LNumber(n))
			return 1
		},
		"random": func(L *lua.LState) int {
			lo := float64(L.CheckNumber(1))
			hi := float64(L.CheckNumber(2))
			L.Push(lua.LNumber(m.roller.Between(lo, hi)))
			return 1
		},
		"log": func(L *lua.LState) int {
			m.logger.Info("world event", zap.String("event", event), zap.String("message", L.CheckString(1)))
			return 0
		},
	})
	L.SetGlobal("engine", engine)
}
