package world

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/cory-johannsen/subjugate/internal/game/character"
)

var (
	// ErrCharacterActive is returned when a character is already in the world.
	ErrCharacterActive = errors.New("character already in world")
	// ErrEntityNotFound is returned when an entity id is unknown.
	ErrEntityNotFound = errors.New("entity not found")
)

// Stats summarises registry occupancy.
type Stats struct {
	Players      int
	NPCs         int
	PlayerChunks int
	NPCChunks    int
}

// Registry owns every player and NPC in the world and their index membership.
//
// The tick goroutine is the only writer; the lock lets admin readers observe
// a consistent view.
type Registry struct {
	mu        sync.RWMutex
	chunkSize float64
	nextID    uint64

	players     map[uint64]*Player
	byCharacter map[int64]uint64
	npcs        map[uint64]*NPC

	playerIndex *SpatialIndex
	npcIndex    *SpatialIndex
}

// NewRegistry creates an empty Registry.
//
// Precondition: chunkSize must be > 0.
func NewRegistry(chunkSize float64) *Registry {
	if chunkSize <= 0 {
		panic(fmt.Sprintf("world.NewRegistry: chunk size must be positive, got %v", chunkSize))
	}
	return &Registry{
		chunkSize:   chunkSize,
		players:     make(map[uint64]*Player),
		byCharacter: make(map[int64]uint64),
		npcs:        make(map[uint64]*NPC),
		playerIndex: NewSpatialIndex(),
		npcIndex:    NewSpatialIndex(),
	}
}

// ChunkSize returns the edge length of one chunk.
func (r *Registry) ChunkSize() float64 { return r.chunkSize }

func (r *Registry) allocID() uint64 {
	r.nextID++
	return r.nextID
}

func (r *Registry) place(p *placement, pos Vector3, rot float64) {
	p.pos = pos
	p.rotation = rot
	p.chunk = ChunkOf(pos, r.chunkSize)
}

// AddPlayer places a loaded character in the world at its saved position.
//
// Precondition: c must be non-nil with a non-zero ID.
// Postcondition: Returns the new Player, or ErrCharacterActive if c.ID is already in the world.
func (r *Registry) AddPlayer(c *character.Character, now time.Time) (*Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byCharacter[c.ID]; ok {
		return nil, fmt.Errorf("character %d: %w", c.ID, ErrCharacterActive)
	}
	p := &Player{
		CharacterID:        c.ID,
		AccountID:          c.AccountID,
		Name:               c.Name,
		GameMode:           c.GameMode,
		GuildID:            c.GuildID,
		Level:              c.Level,
		Experience:         c.Experience,
		HP:                 c.HP,
		MaxHP:              c.MaxHP,
		MP:                 c.MP,
		MaxMP:              c.MaxMP,
		Attack:             c.Attack,
		Defense:            c.Defense,
		Speed:              c.Speed,
		Dead:               c.Dead,
		ReincarnationCount: c.ReincarnationCount,
		Perks:              c.Perks,
		Lifetime:           c.Lifetime,
		SkillCooldowns:     make(map[int]time.Time),
		EnteredAt:          now,
	}
	p.id = r.allocID()
	r.place(&p.placement, Vector3{X: c.X, Y: c.Y, Z: c.Z}, c.Rotation)

	r.players[p.id] = p
	r.byCharacter[c.ID] = p.id
	r.playerIndex.Insert(p.id, p.chunk)
	return p, nil
}

// RemovePlayer takes a player out of the world.
//
// Postcondition: Returns (player, true) if it was present, or (nil, false) otherwise.
func (r *Registry) RemovePlayer(id uint64) (*Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[id]
	if !ok {
		return nil, false
	}
	delete(r.players, id)
	delete(r.byCharacter, p.CharacterID)
	r.playerIndex.Remove(id, p.chunk)
	return p, true
}

// SpawnNPC creates an NPC from spec at pos with full health.
//
// Postcondition: The returned NPC is indexed, Idle, and has SpawnPosition == pos.
func (r *Registry) SpawnNPC(spec NPCSpec, pos Vector3) *NPC {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := &NPC{
		TemplateID:    spec.TemplateID,
		Name:          spec.Name,
		Kind:          spec.Kind,
		Level:         spec.Level,
		HP:            spec.MaxHP,
		MaxHP:         spec.MaxHP,
		Attack:        spec.Attack,
		Defense:       spec.Defense,
		XPReward:      spec.XPReward,
		LootTable:     spec.LootTable,
		AggroRange:    spec.AggroRange,
		RespawnDelay:  spec.RespawnDelay,
		Behavior:      spec.Behavior,
		State:         StateIdle,
		SpawnPosition: pos,
	}
	n.id = r.allocID()
	r.place(&n.placement, pos, 0)
	r.npcs[n.id] = n
	r.npcIndex.Insert(n.id, n.chunk)
	return n
}

// RemoveNPC takes an NPC out of the world.
func (r *Registry) RemoveNPC(id uint64) (*NPC, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.npcs[id]
	if !ok {
		return nil, false
	}
	delete(r.npcs, id)
	r.npcIndex.Remove(id, n.chunk)
	return n, true
}

// UpdatePosition moves an entity of either category, migrating its index
// bucket only when the chunk changed.
//
// Postcondition: Returns ErrEntityNotFound if id is unknown.
func (r *Registry) UpdatePosition(id uint64, x, y, z, rot float64) error {
	return r.Relocate(id, Vector3{X: x, Y: y, Z: z}, rot)
}

// Relocate is UpdatePosition taking a Vector3.
func (r *Registry) Relocate(id uint64, pos Vector3, rot float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.players[id]; ok {
		from := p.chunk
		r.place(&p.placement, pos, rot)
		r.playerIndex.Move(id, from, p.chunk)
		return nil
	}
	if n, ok := r.npcs[id]; ok {
		from := n.chunk
		r.place(&n.placement, pos, rot)
		r.npcIndex.Move(id, from, n.chunk)
		return nil
	}
	return fmt.Errorf("entity %d: %w", id, ErrEntityNotFound)
}

func (r *Registry) ring(radius float64) int {
	return int(math.Ceil(radius/r.chunkSize)) + 1
}

// Nearby returns every entity of category within radius of pos.
//
// Postcondition: Every returned entity satisfies Position().DistanceTo(pos) <= radius,
// and every such entity in the registry is returned.
func (r *Registry) Nearby(pos Vector3, radius float64, category Category) []Entity {
	var out []Entity
	switch category {
	case CategoryPlayer:
		for _, p := range r.NearbyPlayers(pos, radius) {
			out = append(out, p)
		}
	case CategoryNPC:
		for _, n := range r.NearbyNPCs(pos, radius) {
			out = append(out, n)
		}
	}
	return out
}

// NearbyPlayers returns the players within radius of pos.
func (r *Registry) NearbyPlayers(pos Vector3, radius float64) []*Player {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Player
	r.playerIndex.Ring(ChunkOf(pos, r.chunkSize), r.ring(radius), func(id uint64) {
		if p := r.players[id]; p != nil && p.pos.DistanceTo(pos) <= radius {
			out = append(out, p)
		}
	})
	return out
}

// NearbyNPCs returns the NPCs within radius of pos.
func (r *Registry) NearbyNPCs(pos Vector3, radius float64) []*NPC {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*NPC
	r.npcIndex.Ring(ChunkOf(pos, r.chunkSize), r.ring(radius), func(id uint64) {
		if n := r.npcs[id]; n != nil && n.pos.DistanceTo(pos) <= radius {
			out = append(out, n)
		}
	})
	return out
}

// Player returns the player with the given entity id.
func (r *Registry) Player(id uint64) (*Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.players[id]
	return p, ok
}

// PlayerByCharacter returns the in-world player for a character id.
func (r *Registry) PlayerByCharacter(characterID int64) (*Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byCharacter[characterID]
	if !ok {
		return nil, false
	}
	return r.players[id], true
}

// PlayerByName returns the in-world player with the given name.
func (r *Registry) PlayerByName(name string) (*Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.players {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// NPC returns the NPC with the given entity id.
func (r *Registry) NPC(id uint64) (*NPC, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.npcs[id]
	return n, ok
}

// Players returns all players in the world ordered by entity id.
func (r *Registry) Players() []*Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b *Player) int { return cmp.Compare(a.id, b.id) })
	return out
}

// NPCs returns all NPCs in the world ordered by entity id.
func (r *Registry) NPCs() []*NPC {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*NPC, 0, len(r.npcs))
	for _, n := range r.npcs {
		out = append(out, n)
	}
	slices.SortFunc(out, func(a, b *NPC) int { return cmp.Compare(a.id, b.id) })
	return out
}

// Stats reports current occupancy.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{
		Players:      len(r.players),
		NPCs:         len(r.npcs),
		PlayerChunks: r.playerIndex.Chunks(),
		NPCChunks:    r.npcIndex.Chunks(),
	}
}
