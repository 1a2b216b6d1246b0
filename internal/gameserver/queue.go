package gameserver

import (
	"sync"
	"time"

	"github.com/cory-johannsen/subjugate/internal/game/character"
	"github.com/cory-johannsen/subjugate/internal/network"
)

const (
	// RejectQueueLimit means the session already has its limit of commands queued.
	RejectQueueLimit = "queue_limit"
	// RejectQueueFull means the shared command ring is saturated.
	RejectQueueFull = "queue_full"
)

// CommandKind identifies what a Command asks the scheduler to do.
type CommandKind uint8

const (
	CmdEnterWorld CommandKind = iota + 1
	CmdLeaveWorld
	CmdMove
	CmdAttack
	CmdSkill
	CmdChat
	CmdReincarnate
	CmdTerritoryInfo
	CmdAdmin
	CmdDisconnect
)

var commandNames = map[CommandKind]string{
	CmdEnterWorld:    "enter_world",
	CmdLeaveWorld:    "leave_world",
	CmdMove:          "move",
	CmdAttack:        "attack",
	CmdSkill:         "skill",
	CmdChat:          "chat",
	CmdReincarnate:   "reincarnate",
	CmdTerritoryInfo: "territory_info",
	CmdAdmin:         "admin",
	CmdDisconnect:    "disconnect",
}

func (k CommandKind) String() string {
	if n, ok := commandNames[k]; ok {
		return n
	}
	return "unknown"
}

// Command is one decoded client request waiting for the next tick.
type Command struct {
	Kind    CommandKind
	Session *network.Session
	// Payload is the decoded message; its type depends on Kind.
	Payload any
	// Character is the snapshot loaded for CmdEnterWorld.
	Character *character.Character
	At        time.Time
}

// CommandQueue is a bounded FIFO ring shared by every session reader and
// drained by the scheduler once per tick. Disconnects are kept apart and are
// never rejected.
type CommandQueue struct {
	mu          sync.Mutex
	ring        []Command
	head, size  int
	limit       int
	perSession  map[uint64]int
	disconnects []Command
	dropped     map[string]uint64
}

// NewCommandQueue creates a queue holding at most capacity commands, of which
// at most perSession may belong to one session. perSession <= 0 disables the
// per-session limit.
//
// Precondition: capacity > 0.
func NewCommandQueue(capacity, perSession int) *CommandQueue {
	return &CommandQueue{
		ring:       make([]Command, capacity),
		limit:      perSession,
		perSession: make(map[uint64]int),
		dropped:    make(map[string]uint64),
	}
}

// Enqueue stages cmd for the next drain.
//
// Postcondition: Returns (true, "") when staged, or (false, reason) with
// reason RejectQueueLimit or RejectQueueFull.
func (q *CommandQueue) Enqueue(cmd Command) (bool, string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var sid uint64
	if cmd.Session != nil {
		sid = cmd.Session.ID()
	}
	if q.limit > 0 && sid != 0 && q.perSession[sid] >= q.limit {
		q.dropped[RejectQueueLimit]++
		return false, RejectQueueLimit
	}
	if q.size == len(q.ring) {
		q.dropped[RejectQueueFull]++
		return false, RejectQueueFull
	}
	q.ring[(q.head+q.size)%len(q.ring)] = cmd
	q.size++
	if sid != 0 {
		q.perSession[sid]++
	}
	return true, ""
}

// Disconnect stages a disconnect. It is never rejected.
func (q *CommandQueue) Disconnect(cmd Command) {
	cmd.Kind = CmdDisconnect
	q.mu.Lock()
	q.disconnects = append(q.disconnects, cmd)
	q.mu.Unlock()
}

// Drain removes and returns every staged command in arrival order, followed
// by the staged disconnects.
func (q *CommandQueue) Drain() []Command {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Command, 0, q.size+len(q.disconnects))
	for i := 0; i < q.size; i++ {
		idx := (q.head + i) % len(q.ring)
		out = append(out, q.ring[idx])
		q.ring[idx] = Command{}
	}
	q.head, q.size = 0, 0
	clear(q.perSession)
	out = append(out, q.disconnects...)
	q.disconnects = nil
	return out
}

// Len returns the number of staged commands, disconnects included.
func (q *CommandQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size + len(q.disconnects)
}

// Dropped returns how many commands were rejected for reason.
func (q *CommandQueue) Dropped(reason string) uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped[reason]
}
