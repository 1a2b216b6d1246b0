package protocol

// EntityKind tags an entity id on the wire with its registry category.
type EntityKind uint8

const (
	KindPlayer EntityKind = 1
	KindNPC    EntityKind = 2
)

// Reason explains why a request was rejected without closing the connection.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonAttackerDead
	ReasonCooldown
	ReasonNoTarget
	ReasonTargetDead
	ReasonOutOfRange
	ReasonUnknownSkill
	ReasonLevelTooLow
	ReasonInsufficientMP
	ReasonNotInWorld
)

var reasonText = [...]string{
	ReasonNone:           "",
	ReasonAttackerDead:   "you are dead",
	ReasonCooldown:       "on cooldown",
	ReasonNoTarget:       "target not found",
	ReasonTargetDead:     "target is dead",
	ReasonOutOfRange:     "target out of range",
	ReasonUnknownSkill:   "unknown skill",
	ReasonLevelTooLow:    "level too low",
	ReasonInsufficientMP: "not enough mana",
	ReasonNotInWorld:     "not in world",
}

func (r Reason) String() string {
	if int(r) < len(reasonText) {
		return reasonText[r]
	}
	return "rejected"
}

// Move is a client movement request (MoveRequest).
type Move struct {
	X, Y, Z  float64
	Rotation float64
}

func (m Move) MarshalBinary() ([]byte, error) {
	w := newWriter(32)
	w.f64(m.X)
	w.f64(m.Y)
	w.f64(m.Z)
	w.f64(m.Rotation)
	return w.bytes(), nil
}

func (m *Move) UnmarshalBinary(b []byte) error {
	r := newReader(b)
	m.X, m.Y, m.Z, m.Rotation = r.f64(), r.f64(), r.f64(), r.f64()
	return r.done()
}

// Position is an authoritative entity location (MoveUpdate, PositionSync, Teleport).
type Position struct {
	EntityID uint64
	Kind     EntityKind
	X, Y, Z  float64
	Rotation float64
}

func (p Position) MarshalBinary() ([]byte, error) {
	w := newWriter(41)
	w.u64(p.EntityID)
	w.u8(uint8(p.Kind))
	w.f64(p.X)
	w.f64(p.Y)
	w.f64(p.Z)
	w.f64(p.Rotation)
	return w.bytes(), nil
}

func (p *Position) UnmarshalBinary(b []byte) error {
	r := newReader(b)
	p.EntityID = r.u64()
	p.Kind = EntityKind(r.u8())
	p.X, p.Y, p.Z, p.Rotation = r.f64(), r.f64(), r.f64(), r.f64()
	return r.done()
}

// Attack is a basic attack request (AttackRequest).
type Attack struct {
	TargetID uint64
	Kind     EntityKind
}

func (a Attack) MarshalBinary() ([]byte, error) {
	w := newWriter(9)
	w.u64(a.TargetID)
	w.u8(uint8(a.Kind))
	return w.bytes(), nil
}

func (a *Attack) UnmarshalBinary(b []byte) error {
	r := newReader(b)
	a.TargetID = r.u64()
	a.Kind = EntityKind(r.u8())
	return r.done()
}

// AttackResult answers an attack or skill request (AttackResponse).
type AttackResult struct {
	TargetID   uint64
	Kind       EntityKind
	SkillID    int16
	Accepted   bool
	Reason     Reason
	Damage     uint32
	TargetHP   int32
	TargetDied bool
}

func (a AttackResult) MarshalBinary() ([]byte, error) {
	w := newWriter(22)
	w.u64(a.TargetID)
	w.u8(uint8(a.Kind))
	w.u16(uint16(a.SkillID))
	w.boolean(a.Accepted)
	w.u8(uint8(a.Reason))
	w.u32(a.Damage)
	w.i32(a.TargetHP)
	w.boolean(a.TargetDied)
	return w.bytes(), nil
}

func (a *AttackResult) UnmarshalBinary(b []byte) error {
	r := newReader(b)
	a.TargetID = r.u64()
	a.Kind = EntityKind(r.u8())
	a.SkillID = int16(r.u16())
	a.Accepted = r.boolean()
	a.Reason = Reason(r.u8())
	a.Damage = r.u32()
	a.TargetHP = r.i32()
	a.TargetDied = r.boolean()
	return r.done()
}

// Damage is broadcast to observers when an entity takes damage or is healed (DamageDealt).
// SkillID is -1 for a basic attack or NPC swing.
type Damage struct {
	AttackerID   uint64
	AttackerKind EntityKind
	TargetID     uint64
	TargetKind   EntityKind
	SkillID      int16
	Amount       uint32
	TargetHP     int32
	TargetMaxHP  int32
	Died         bool
	AreaEffect   bool
	Heal         bool
}

func (d Damage) MarshalBinary() ([]byte, error) {
	w := newWriter(35)
	w.u64(d.AttackerID)
	w.u8(uint8(d.AttackerKind))
	w.u64(d.TargetID)
	w.u8(uint8(d.TargetKind))
	w.u16(uint16(d.SkillID))
	w.u32(d.Amount)
	w.i32(d.TargetHP)
	w.i32(d.TargetMaxHP)
	w.boolean(d.Died)
	w.boolean(d.AreaEffect)
	w.boolean(d.Heal)
	return w.bytes(), nil
}

func (d *Damage) UnmarshalBinary(b []byte) error {
	r := newReader(b)
	d.AttackerID = r.u64()
	d.AttackerKind = EntityKind(r.u8())
	d.TargetID = r.u64()
	d.TargetKind = EntityKind(r.u8())
	d.SkillID = int16(r.u16())
	d.Amount = r.u32()
	d.TargetHP = r.i32()
	d.TargetMaxHP = r.i32()
	d.Died = r.boolean()
	d.AreaEffect = r.boolean()
	d.Heal = r.boolean()
	return r.done()
}

// Skill is a skill activation request (SkillUse). TargetID 0 targets the caster.
type Skill struct {
	SkillID  uint16
	TargetID uint64
	Kind     EntityKind
}

func (s Skill) MarshalBinary() ([]byte, error) {
	w := newWriter(11)
	w.u16(s.SkillID)
	w.u64(s.TargetID)
	w.u8(uint8(s.Kind))
	return w.bytes(), nil
}

func (s *Skill) UnmarshalBinary(b []byte) error {
	r := newReader(b)
	s.SkillID = r.u16()
	s.TargetID = r.u64()
	s.Kind = EntityKind(r.u8())
	return r.done()
}

// Spawn introduces an entity to a client (PlayerSpawn, NPCSpawn).
type Spawn struct {
	EntityID   uint64
	Kind       EntityKind
	TemplateID uint32
	Name       string
	Level      uint16
	HP         int32
	MaxHP      int32
	X, Y, Z    float64
	Rotation   float64
	State      uint8
}

func (s Spawn) MarshalBinary() ([]byte, error) {
	w := newWriter(64 + len(s.Name))
	w.u64(s.EntityID)
	w.u8(uint8(s.Kind))
	w.u32(s.TemplateID)
	w.str(s.Name)
	w.u16(s.Level)
	w.i32(s.HP)
	w.i32(s.MaxHP)
	w.f64(s.X)
	w.f64(s.Y)
	w.f64(s.Z)
	w.f64(s.Rotation)
	w.u8(s.State)
	return w.bytes(), nil
}

func (s *Spawn) UnmarshalBinary(b []byte) error {
	r := newReader(b)
	s.EntityID = r.u64()
	s.Kind = EntityKind(r.u8())
	s.TemplateID = r.u32()
	s.Name = r.str()
	s.Level = r.u16()
	s.HP = r.i32()
	s.MaxHP = r.i32()
	s.X, s.Y, s.Z, s.Rotation = r.f64(), r.f64(), r.f64(), r.f64()
	s.State = r.u8()
	return r.done()
}

// Despawn removes an entity from a client's view (PlayerDespawn, NPCDespawn).
type Despawn struct {
	EntityID uint64
	Kind     EntityKind
}

func (d Despawn) MarshalBinary() ([]byte, error) {
	w := newWriter(9)
	w.u64(d.EntityID)
	w.u8(uint8(d.Kind))
	return w.bytes(), nil
}

func (d *Despawn) UnmarshalBinary(b []byte) error {
	r := newReader(b)
	d.EntityID = r.u64()
	d.Kind = EntityKind(r.u8())
	return r.done()
}

// NPCState is the periodic NPC delta sent to nearby players (NPCUpdate).
type NPCState struct {
	EntityID uint64
	State    uint8
	HP       int32
	MaxHP    int32
	TargetID uint64
	X, Y, Z  float64
	Rotation float64
}

func (n NPCState) MarshalBinary() ([]byte, error) {
	w := newWriter(57)
	w.u64(n.EntityID)
	w.u8(n.State)
	w.i32(n.HP)
	w.i32(n.MaxHP)
	w.u64(n.TargetID)
	w.f64(n.X)
	w.f64(n.Y)
	w.f64(n.Z)
	w.f64(n.Rotation)
	return w.bytes(), nil
}

func (n *NPCState) UnmarshalBinary(b []byte) error {
	r := newReader(b)
	n.EntityID = r.u64()
	n.State = r.u8()
	n.HP = r.i32()
	n.MaxHP = r.i32()
	n.TargetID = r.u64()
	n.X, n.Y, n.Z, n.Rotation = r.f64(), r.f64(), r.f64(), r.f64()
	return r.done()
}

// Heartbeat carries a millisecond timestamp (Ping, Pong).
type Heartbeat struct {
	UnixMillis int64
}

func (h Heartbeat) MarshalBinary() ([]byte, error) {
	w := newWriter(8)
	w.i64(h.UnixMillis)
	return w.bytes(), nil
}

func (h *Heartbeat) UnmarshalBinary(b []byte) error {
	r := newReader(b)
	h.UnixMillis = r.i64()
	return r.done()
}

// Stats is a player's full stat block (StatUpdate, LevelUp).
type Stats struct {
	EntityID   uint64
	Level      uint16
	Experience uint64
	HP, MaxHP  int32
	MP, MaxMP  int32
	Attack     int32
	Defense    int32
	Speed      float64
}

func (s Stats) MarshalBinary() ([]byte, error) {
	w := newWriter(50)
	w.u64(s.EntityID)
	w.u16(s.Level)
	w.u64(s.Experience)
	w.i32(s.HP)
	w.i32(s.MaxHP)
	w.i32(s.MP)
	w.i32(s.MaxMP)
	w.i32(s.Attack)
	w.i32(s.Defense)
	w.f64(s.Speed)
	return w.bytes(), nil
}

func (s *Stats) UnmarshalBinary(b []byte) error {
	r := newReader(b)
	s.EntityID = r.u64()
	s.Level = r.u16()
	s.Experience = r.u64()
	s.HP, s.MaxHP = r.i32(), r.i32()
	s.MP, s.MaxMP = r.i32(), r.i32()
	s.Attack, s.Defense = r.i32(), r.i32()
	s.Speed = r.f64()
	return r.done()
}

// Death announces a player death (PlayerDied).
type Death struct {
	VictimID      uint64
	KillerID      uint64
	KillerKind    EntityKind
	RespawnMillis uint32
}

func (d Death) MarshalBinary() ([]byte, error) {
	w := newWriter(21)
	w.u64(d.VictimID)
	w.u64(d.KillerID)
	w.u8(uint8(d.KillerKind))
	w.u32(d.RespawnMillis)
	return w.bytes(), nil
}

func (d *Death) UnmarshalBinary(b []byte) error {
	r := newReader(b)
	d.VictimID = r.u64()
	d.KillerID = r.u64()
	d.KillerKind = EntityKind(r.u8())
	d.RespawnMillis = r.u32()
	return r.done()
}

// Respawn announces a player returning to life (Respawned).
type Respawn struct {
	EntityID uint64
	X, Y, Z  float64
	HP, MP   int32
}

func (p Respawn) MarshalBinary() ([]byte, error) {
	w := newWriter(40)
	w.u64(p.EntityID)
	w.f64(p.X)
	w.f64(p.Y)
	w.f64(p.Z)
	w.i32(p.HP)
	w.i32(p.MP)
	return w.bytes(), nil
}

func (p *Respawn) UnmarshalBinary(b []byte) error {
	r := newReader(b)
	p.EntityID = r.u64()
	p.X, p.Y, p.Z = r.f64(), r.f64(), r.f64()
	p.HP, p.MP = r.i32(), r.i32()
	return r.done()
}
