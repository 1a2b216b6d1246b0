package territory

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/subjugate/internal/game/character"
	"github.com/cory-johannsen/subjugate/internal/game/world"
)

// Control is the persisted ownership of one territory.
type Control struct {
	TerritoryID    int
	ControllerID   int64
	ControllerName string
	CapturePoints  int
	CapturedAt     time.Time
}

// Store persists territory control.
type Store interface {
	LoadControl(ctx context.Context) ([]Control, error)
	SaveControl(ctx context.Context, c Control) error
}

// Occupant is a live character standing inside a territory.
type Occupant struct {
	CharacterID int64
	Name        string
}

// PresenceFunc returns the live characters within radius of center.
type PresenceFunc func(center world.Vector3, radius float64) []Occupant

// EventKind identifies a capture state change.
type EventKind uint8

const (
	CaptureStarted EventKind = iota + 1
	CaptureAborted
	Captured
)

func (k EventKind) String() string {
	switch k {
	case CaptureStarted:
		return "capture_started"
	case CaptureAborted:
		return "capture_aborted"
	case Captured:
		return "captured"
	default:
		return "unknown"
	}
}

// Event reports a capture state change on one territory.
type Event struct {
	Kind          EventKind
	TerritoryID   int
	TerritoryName string
	CharacterID   int64
	Name          string
	// PreviousControllerID is set on Captured; 0 when the territory was unowned.
	PreviousControllerID int64
	PreviousController   string
}

// Manager runs the capture state machine for every territory.
//
// It is not safe for concurrent use; the tick goroutine owns it.
type Manager struct {
	territories     []*Territory
	byID            map[int]*Territory
	captureDuration time.Duration
	minPlayers      int
	logger          *zap.Logger
}

// NewManager creates a Manager over defs with no controllers.
//
// Precondition: minPlayers >= 1; captureDuration >= 0.
func NewManager(defs []Definition, captureDuration time.Duration, minPlayers int, logger *zap.Logger) *Manager {
	m := &Manager{
		byID:            make(map[int]*Territory, len(defs)),
		captureDuration: captureDuration,
		minPlayers:      max(1, minPlayers),
		logger:          logger,
	}
	for _, d := range defs {
		t := &Territory{Definition: d}
		m.territories = append(m.territories, t)
		m.byID[d.ID] = t
	}
	return m
}

// Restore applies persisted control records. Unknown territory ids are ignored.
func (m *Manager) Restore(controls []Control) {
	for _, c := range controls {
		t, ok := m.byID[c.TerritoryID]
		if !ok || c.ControllerID == 0 {
			continue
		}
		t.ControllerID = c.ControllerID
		t.ControllerName = c.ControllerName
		t.CapturePoints = c.CapturePoints
		t.LastCapture = c.CapturedAt
	}
}

// CaptureDuration returns the uninterrupted presence required to capture.
func (m *Manager) CaptureDuration() time.Duration { return m.captureDuration }

// Territories returns every territory in definition order.
func (m *Manager) Territories() []*Territory { return m.territories }

// Territory returns the territory with the given id.
func (m *Manager) Territory(id int) (*Territory, bool) {
	t, ok := m.byID[id]
	return t, ok
}

// Update advances every territory's capture state.
//
// A territory with fewer than the minimum occupants aborts any attempt. An
// attempt whose capturer has left is aborted. With no attempt running, the
// first occupant who is not the controller starts one; later arrivals never
// replace it. The attempt commits once its capturer has been present for the
// capture duration.
//
// Postcondition: Returns the events in territory order.
func (m *Manager) Update(now time.Time, presence PresenceFunc) []Event {
	var events []Event
	for _, t := range m.territories {
		occupants := presence(t.CenterVector(), t.Radius)

		if len(occupants) < m.minPlayers {
			if t.Capturing() {
				events = append(events, m.abort(t))
			}
			continue
		}

		if t.Capturing() && !contains(occupants, t.CapturingID) {
			events = append(events, m.abort(t))
		}

		if !t.Capturing() {
			for _, o := range occupants {
				if o.CharacterID == t.ControllerID {
					continue
				}
				t.CapturingID, t.CapturingName, t.CaptureStart = o.CharacterID, o.Name, now
				m.logger.Info("capture started",
					zap.String("territory", t.Name),
					zap.String("character", o.Name),
				)
				events = append(events, Event{
					Kind:          CaptureStarted,
					TerritoryID:   t.ID,
					TerritoryName: t.Name,
					CharacterID:   o.CharacterID,
					Name:          o.Name,
				})
				break
			}
			continue
		}

		if now.Sub(t.CaptureStart) >= m.captureDuration {
			events = append(events, m.commit(t, now))
		}
	}
	return events
}

func (m *Manager) abort(t *Territory) Event {
	ev := Event{
		Kind:          CaptureAborted,
		TerritoryID:   t.ID,
		TerritoryName: t.Name,
		CharacterID:   t.CapturingID,
		Name:          t.CapturingName,
	}
	m.logger.Info("capture interrupted",
		zap.String("territory", t.Name),
		zap.String("character", t.CapturingName),
	)
	t.CapturingID, t.CapturingName, t.CaptureStart = 0, "", time.Time{}
	return ev
}

func (m *Manager) commit(t *Territory, now time.Time) Event {
	ev := Event{
		Kind:                 Captured,
		TerritoryID:          t.ID,
		TerritoryName:        t.Name,
		CharacterID:          t.CapturingID,
		Name:                 t.CapturingName,
		PreviousControllerID: t.ControllerID,
		PreviousController:   t.ControllerName,
	}
	t.ControllerID, t.ControllerName = t.CapturingID, t.CapturingName
	t.CapturePoints = t.RequiredPoints
	t.LastCapture = now
	t.CapturingID, t.CapturingName, t.CaptureStart = 0, "", time.Time{}
	m.logger.Info("territory captured",
		zap.String("territory", t.Name),
		zap.String("controller", t.ControllerName),
		zap.String("previous", ev.PreviousController),
	)
	return ev
}

// BuffFor sums the buffs of every territory controlled by characterID.
func (m *Manager) BuffFor(characterID int64) character.Buff {
	var b character.Buff
	if characterID == 0 {
		return b
	}
	for _, t := range m.territories {
		if t.ControllerID == characterID {
			b = b.Add(t.Buff)
		}
	}
	return b
}

// ControlledBy returns the ids of territories controlled by characterID.
func (m *Manager) ControlledBy(characterID int64) []int {
	var ids []int
	for _, t := range m.territories {
		if characterID != 0 && t.ControllerID == characterID {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

func contains(occupants []Occupant, id int64) bool {
	for _, o := range occupants {
		if o.CharacterID == id {
			return true
		}
	}
	return false
}
