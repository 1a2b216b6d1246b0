package npc

import (
	"sync"
	"time"

	"github.com/cory-johannsen/subjugate/internal/game/world"
)

// respawnEntry represents a single pending respawn.
type respawnEntry struct {
	spec    world.NPCSpec
	pos     world.Vector3
	readyAt time.Time
}

// RespawnManager schedules NPC respawns at their original spawn point.
// It is safe for concurrent use.
//
// Invariant: entries with zero delay are never queued.
type RespawnManager struct {
	mu      sync.Mutex
	pending []respawnEntry
}

// NewRespawnManager returns an empty RespawnManager.
func NewRespawnManager() *RespawnManager {
	return &RespawnManager{}
}

// Schedule queues n to respawn at its spawn position after its respawn delay.
// No-op when the delay is zero.
//
// Postcondition: Returns true iff an entry was queued.
func (r *RespawnManager) Schedule(n *world.NPC, now time.Time) bool {
	if n.RespawnDelay <= 0 {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, respawnEntry{
		spec:    n.Spec(),
		pos:     n.SpawnPosition,
		readyAt: now.Add(n.RespawnDelay),
	})
	return true
}

// Tick spawns every entry whose ready time has passed.
//
// Postcondition: Returns the NPCs spawned; consumed entries are removed.
func (r *RespawnManager) Tick(now time.Time, reg *world.Registry) []*world.NPC {
	r.mu.Lock()
	var ready, future []respawnEntry
	for _, e := range r.pending {
		if !e.readyAt.After(now) {
			ready = append(ready, e)
		} else {
			future = append(future, e)
		}
	}
	r.pending = future
	r.mu.Unlock()

	spawned := make([]*world.NPC, 0, len(ready))
	for _, e := range ready {
		spawned = append(spawned, reg.SpawnNPC(e.spec, e.pos))
	}
	return spawned
}

// Pending returns the number of queued respawns.
func (r *RespawnManager) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
