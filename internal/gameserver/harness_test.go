package gameserver_test

import (
	"context"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/subjugate/internal/config"
	"github.com/cory-johannsen/subjugate/internal/game/character"
	"github.com/cory-johannsen/subjugate/internal/game/combat"
	"github.com/cory-johannsen/subjugate/internal/game/dice"
	"github.com/cory-johannsen/subjugate/internal/game/npc"
	"github.com/cory-johannsen/subjugate/internal/game/progression"
	"github.com/cory-johannsen/subjugate/internal/game/territory"
	"github.com/cory-johannsen/subjugate/internal/game/world"
	"github.com/cory-johannsen/subjugate/internal/gameserver"
	"github.com/cory-johannsen/subjugate/internal/network"
	"github.com/cory-johannsen/subjugate/internal/protocol"
	"github.com/cory-johannsen/subjugate/internal/scripting"
	"github.com/cory-johannsen/subjugate/internal/storage"
	"github.com/cory-johannsen/subjugate/internal/testutil"
)

const wait = 2 * time.Second

// fakeDB is an in-memory implementation of every store the world server uses.
type fakeDB struct {
	mu        sync.Mutex
	nextID    int64
	accounts  map[int64]*storage.Account
	passwords map[int64]string
	tokens    map[string]int64
	chars     map[int64]*character.Character
	controls  map[int]territory.Control
	history   []progression.History
	entries   []storage.LogEntry
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		accounts:  make(map[int64]*storage.Account),
		passwords: make(map[int64]string),
		tokens:    make(map[string]int64),
		chars:     make(map[int64]*character.Character),
		controls:  make(map[int]territory.Control),
	}
}

func (db *fakeDB) stores() gameserver.Stores {
	return gameserver.Stores{
		Accounts:       fakeAccounts{db},
		Sessions:       fakeTokens{db},
		Characters:     fakeCharacters{db},
		Territories:    db,
		Reincarnations: db,
		Log:            db,
	}
}

func (db *fakeDB) id() int64 {
	db.nextID++
	return db.nextID
}

func (db *fakeDB) LoadControl(context.Context) ([]territory.Control, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]territory.Control, 0, len(db.controls))
	for _, c := range db.controls {
		out = append(out, c)
	}
	return out, nil
}

func (db *fakeDB) SaveControl(_ context.Context, c territory.Control) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.controls[c.TerritoryID] = c
	return nil
}

func (db *fakeDB) SaveReincarnation(_ context.Context, c *character.Character, h progression.History) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	cp := *c
	db.chars[c.ID] = &cp
	db.history = append(db.history, h)
	return nil
}

func (db *fakeDB) Record(_ context.Context, e storage.LogEntry) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.entries = append(db.entries, e)
	return nil
}

// account creates an account directly in the store.
func (db *fakeDB) account(username, password string, admin bool) storage.Account {
	db.mu.Lock()
	defer db.mu.Unlock()
	a := &storage.Account{ID: db.id(), Username: username, Admin: admin}
	db.accounts[a.ID] = a
	db.passwords[a.ID] = password
	return *a
}

// character creates a fresh character for accountID standing at (x, 0, z).
func (db *fakeDB) character(t *testing.T, accountID int64, name string, x, z float64) *character.Character {
	t.Helper()
	c, err := character.New(accountID, name, x, 0, z)
	require.NoError(t, err)
	created, err := fakeCharacters{db}.Create(context.Background(), c)
	require.NoError(t, err)
	return created
}

func (db *fakeDB) token(accountID int64) string {
	tok, _ := fakeTokens{db}.Issue(context.Background(), accountID, time.Hour)
	return tok
}

// stored returns a copy of the persisted character.
func (db *fakeDB) stored(id int64) *character.Character {
	db.mu.Lock()
	defer db.mu.Unlock()
	c, ok := db.chars[id]
	if !ok {
		return nil
	}
	cp := *c
	return &cp
}

func (db *fakeDB) logged(kind string) []storage.LogEntry {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []storage.LogEntry
	for _, e := range db.entries {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func (db *fakeDB) control(territoryID int) (territory.Control, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	c, ok := db.controls[territoryID]
	return c, ok
}

type fakeAccounts struct{ db *fakeDB }

func (f fakeAccounts) Create(_ context.Context, username, password string) (storage.Account, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, a := range f.db.accounts {
		if strings.EqualFold(a.Username, username) {
			return storage.Account{}, storage.ErrAccountExists
		}
	}
	a := &storage.Account{ID: f.db.id(), Username: username}
	f.db.accounts[a.ID] = a
	f.db.passwords[a.ID] = password
	return *a, nil
}

func (f fakeAccounts) Authenticate(_ context.Context, username, password string) (storage.Account, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, a := range f.db.accounts {
		if a.Username != username {
			continue
		}
		if f.db.passwords[a.ID] != password {
			return storage.Account{}, storage.ErrInvalidCredentials
		}
		if a.Banned {
			return storage.Account{}, storage.ErrAccountBanned
		}
		return *a, nil
	}
	return storage.Account{}, storage.ErrInvalidCredentials
}

func (f fakeAccounts) GetByID(_ context.Context, id int64) (storage.Account, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	a, ok := f.db.accounts[id]
	if !ok {
		return storage.Account{}, storage.ErrAccountNotFound
	}
	return *a, nil
}

func (f fakeAccounts) SetFlags(_ context.Context, id int64, admin, banned bool) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	a, ok := f.db.accounts[id]
	if !ok {
		return storage.ErrAccountNotFound
	}
	a.Admin, a.Banned = admin, banned
	return nil
}

type fakeTokens struct{ db *fakeDB }

func (f fakeTokens) Issue(_ context.Context, accountID int64, _ time.Duration) (string, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	tok := uuid.NewString()
	f.db.tokens[tok] = accountID
	return tok, nil
}

func (f fakeTokens) Validate(_ context.Context, token string) (int64, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	id, ok := f.db.tokens[token]
	if !ok {
		return 0, storage.ErrTokenNotFound
	}
	return id, nil
}

func (f fakeTokens) Revoke(_ context.Context, token string) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	delete(f.db.tokens, token)
	return nil
}

type fakeCharacters struct{ db *fakeDB }

func (f fakeCharacters) Create(_ context.Context, c *character.Character) (*character.Character, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, other := range f.db.chars {
		if strings.EqualFold(other.Name, c.Name) {
			return nil, storage.ErrCharacterNameTaken
		}
	}
	cp := *c
	cp.ID = f.db.id()
	f.db.chars[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f fakeCharacters) ListByAccount(_ context.Context, accountID int64) ([]*character.Character, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []*character.Character
	for _, c := range f.db.chars {
		if c.AccountID == accountID {
			cp := *c
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *character.Character) int { return int(a.ID - b.ID) })
	return out, nil
}

func (f fakeCharacters) Load(_ context.Context, id int64) (*character.Character, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	c, ok := f.db.chars[id]
	if !ok {
		return nil, storage.ErrCharacterNotFound
	}
	cp := *c
	return &cp, nil
}

func (f fakeCharacters) Save(_ context.Context, c *character.Character) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.chars[c.ID]; !ok {
		return storage.ErrCharacterNotFound
	}
	cp := *c
	f.db.chars[c.ID] = &cp
	return nil
}

func (f fakeCharacters) SetOnline(_ context.Context, id int64, online bool) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	c, ok := f.db.chars[id]
	if !ok {
		return storage.ErrCharacterNotFound
	}
	c.Online = online
	return nil
}

func (f fakeCharacters) Delete(_ context.Context, accountID, id int64) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	c, ok := f.db.chars[id]
	if !ok || c.AccountID != accountID {
		return storage.ErrCharacterNotFound
	}
	delete(f.db.chars, id)
	return nil
}

// NPC templates used by the scenarios.
const (
	dummyTemplate    = 101
	wolfTemplate     = 102
	guardianTemplate = 103
)

func testTemplates() map[int]*npc.Template {
	return map[int]*npc.Template{
		dummyTemplate: {
			ID: dummyTemplate, Name: "Training Dummy", Type: world.KindMonster,
			Level: 1, MaxHP: 1, XPReward: 150, LootTable: []int{7001},
		},
		wolfTemplate: {
			ID: wolfTemplate, Name: "Dire Wolf", Type: world.KindMonster,
			Level: 5, MaxHP: 500, Attack: 1000, XPReward: 10, AggroRange: 20,
		},
		guardianTemplate: {
			ID: guardianTemplate, Name: "Phoenix Guardian", Type: world.KindBoss,
			Level: 1, MaxHP: 1, XPReward: 10, RespawnDelay: "1h",
		},
	}
}

func testConfig() config.Config {
	return config.Config{
		Server: config.ServerConfig{Mode: "development", Shard: "test"},
		GameServer: config.GameServerConfig{
			Host:                "127.0.0.1",
			Port:                8889,
			SendQueue:           512,
			CommandQueue:        64,
			SessionCommandLimit: 8,
			LivenessTimeout:     5 * time.Minute,
			WriteTimeout:        time.Second,
			TokenTTL:            time.Hour,
		},
		World: config.WorldConfig{
			ChunkSize:    50,
			ViewDistance: 100,
			Size:         1000,
			SpawnX:       100,
			SpawnZ:       100,
		},
		Tick: config.TickConfig{
			Rate:              20,
			NetworkRate:       10,
			CaptureDuration:   time.Minute,
			MinCapturePlayers: 1,
			RespawnDelay:      5 * time.Second,
			SaveTimeout:       time.Second,
		},
	}
}

type harnessOptions struct {
	territories []territory.Definition
	events      *scripting.Manager
}

type harnessOption func(*harnessOptions)

func withTerritories(defs ...territory.Definition) harnessOption {
	return func(o *harnessOptions) { o.territories = defs }
}

func withEvents(m *scripting.Manager) harnessOption {
	return func(o *harnessOptions) { o.events = m }
}

// harness drives a Scheduler and Handler synchronously against fake stores.
type harness struct {
	t        *testing.T
	clk      *fakeClock
	cfg      config.Config
	db       *fakeDB
	world    *gameserver.World
	sessions *network.Manager
	queue    *gameserver.CommandQueue
	chat     *gameserver.ChatService
	sched    *gameserver.Scheduler
	handler  *gameserver.Handler
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	var o harnessOptions
	for _, opt := range opts {
		opt(&o)
	}

	logger := zap.NewNop()
	clk := &fakeClock{t: epoch}
	cfg := testConfig()
	db := newFakeDB()
	roller := dice.NewRoller(dice.Constant(0.1), logger)
	reg := world.NewRegistry(cfg.World.ChunkSize)

	w := &gameserver.World{
		Registry:    reg,
		Resolver:    combat.NewResolver(reg, combat.DefaultCatalog(), roller, clk.Now, logger),
		AI:          npc.NewAI(roller, logger),
		Respawns:    npc.NewRespawnManager(),
		Templates:   testTemplates(),
		Territories: territory.NewManager(o.territories, cfg.Tick.CaptureDuration, cfg.Tick.MinCapturePlayers, logger),
		Progression: progression.NewEngine(reg, db, clk.Now, logger),
		Roller:      roller,
	}
	sessions := network.NewManager()
	queue := gameserver.NewCommandQueue(cfg.GameServer.CommandQueue, cfg.GameServer.SessionCommandLimit)
	chat := gameserver.NewChatService(clk.Now, logger)
	clock := gameserver.NewGameClock(epoch, 12, gameserver.DefaultDayLength, gameserver.DefaultWeatherInterval, roller)

	h := &harness{
		t:        t,
		clk:      clk,
		cfg:      cfg,
		db:       db,
		world:    w,
		sessions: sessions,
		queue:    queue,
		chat:     chat,
	}
	h.sched = gameserver.NewScheduler(cfg, w, sessions, queue, chat, clock, o.events, db.stores(), clk.Now, logger)
	h.handler = gameserver.NewHandler(cfg, sessions, queue, db.stores(), clk.Now, logger)
	return h
}

// tick advances the clock by one interval and runs one tick.
func (h *harness) tick() {
	h.clk.Advance(h.cfg.Tick.Interval())
	h.sched.Tick(h.clk.Now())
}

// ticks runs n ticks.
func (h *harness) ticks(n int) {
	for range n {
		h.tick()
	}
}

// spawnNPC places an NPC from a test template.
func (h *harness) spawnNPC(templateID int, x, z float64) *world.NPC {
	return h.world.Registry.SpawnNPC(h.world.Templates[templateID].Spec(), world.Vector3{X: x, Z: z})
}

// client is one connected session and the frames its peer received.
type client struct {
	h    *harness
	sess *network.Session
	rec  *testutil.Recorder
}

func (h *harness) connect() *client {
	h.t.Helper()
	sess, rec := testutil.NewPipeSession(h.t, network.Options{
		SendQueue:    h.cfg.GameServer.SendQueue,
		WriteTimeout: h.cfg.GameServer.WriteTimeout,
		Now:          h.clk.Now,
	})
	h.handler.Opened(sess)
	rec.Wait(protocol.Handshake, 1, wait)
	return &client{h: h, sess: sess, rec: rec}
}

func (c *client) send(pt protocol.PacketType, m interface{ MarshalBinary() ([]byte, error) }) {
	c.h.t.Helper()
	var payload []byte
	if m != nil {
		var err error
		payload, err = m.MarshalBinary()
		require.NoError(c.h.t, err)
	}
	c.h.handler.HandleFrame(c.sess, protocol.Frame{Type: pt, Payload: payload})
}

// enter creates an account and character at (x, z) and puts it in the world.
func (c *client) enter(name string, x, z float64, admin bool) *world.Player {
	c.h.t.Helper()
	acct := c.h.db.account(strings.ReplaceAll(strings.ToLower(name), " ", "_"), "secret", admin)
	ch := c.h.db.character(c.h.t, acct.ID, name, x, z)
	c.send(protocol.EnterWorld, protocol.EnterWorldRequest{Token: c.h.db.token(acct.ID), CharacterID: ch.ID})
	c.h.tick()
	p, ok := c.h.world.Registry.PlayerByCharacter(ch.ID)
	require.True(c.h.t, ok, "%s should be in the world", name)
	c.rec.Wait(protocol.CharacterInfo, 1, wait)
	return p
}

func (c *client) expectError(code string) {
	c.h.t.Helper()
	deadline := time.Now().Add(wait)
	for {
		for _, f := range c.rec.Of(protocol.ErrorMessage) {
			var e protocol.ErrorNotice
			if e.UnmarshalBinary(f.Payload) == nil && e.Code == code {
				return
			}
		}
		if time.Now().After(deadline) {
			c.h.t.Fatalf("no %q error within %s", code, wait)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// closed waits for the session to close and for its disconnect to reach
// the command queue.
func (c *client) closed() bool {
	select {
	case <-c.sess.Done():
	case <-time.After(wait):
		return false
	}
	deadline := time.Now().Add(wait)
	for c.h.queue.Len() == 0 {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
	return true
}
