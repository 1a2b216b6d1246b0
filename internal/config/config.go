// Package config provides Viper-based configuration loading for the world server.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds top-level server settings.
type ServerConfig struct {
	// Mode is the server operation mode: "production" or "development".
	Mode string `mapstructure:"mode"`
	// Shard names the world shard this process is authoritative for.
	Shard string `mapstructure:"shard"`
}

// DatabaseConfig holds persistence connection settings.
type DatabaseConfig struct {
	// Driver selects the backing store: "postgres" or "sqlite".
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// Path is the sqlite database file; ":memory:" keeps it in process.
	Path string `mapstructure:"path"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// GameServerConfig holds the network surface of the world server.
type GameServerConfig struct {
	// Host is the bind address for all listeners.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the binary protocol listener.
	Port int `mapstructure:"port"`
	// WebSocketPort is the HTTP port serving the WebSocket upgrade; 0 disables it.
	WebSocketPort int `mapstructure:"websocket_port"`
	// AdminPort is the gRPC health endpoint port; 0 disables it.
	AdminPort int `mapstructure:"admin_port"`
	// SendQueue is the per-session outbound frame buffer.
	SendQueue int `mapstructure:"send_queue"`
	// CommandQueue is the capacity of the scheduler's inbound command ring.
	CommandQueue int `mapstructure:"command_queue"`
	// SessionCommandLimit caps queued commands per session within one tick.
	SessionCommandLimit int `mapstructure:"session_command_limit"`
	// LivenessTimeout closes sessions with no inbound traffic for this long.
	LivenessTimeout time.Duration `mapstructure:"liveness_timeout"`
	// WriteTimeout is the per-write deadline on session transports.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// TokenTTL is the lifetime of session tokens issued on login.
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

// Addr returns the "host:port" binary protocol address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (g GameServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", g.Host, g.Port)
}

// WebSocketAddr returns the "host:port" WebSocket address.
func (g GameServerConfig) WebSocketAddr() string {
	return fmt.Sprintf("%s:%d", g.Host, g.WebSocketPort)
}

// AdminAddr returns the "host:port" admin gRPC address.
func (g GameServerConfig) AdminAddr() string {
	return fmt.Sprintf("%s:%d", g.Host, g.AdminPort)
}

// WorldConfig holds spatial settings.
type WorldConfig struct {
	// ChunkSize is the edge length of a spatial-index bucket.
	ChunkSize float64 `mapstructure:"chunk_size"`
	// ViewDistance is the radius within which entities are replicated to a player.
	ViewDistance float64 `mapstructure:"view_distance"`
	// Size is the edge length of the square playable area.
	Size   float64 `mapstructure:"size"`
	SpawnX float64 `mapstructure:"spawn_x"`
	SpawnY float64 `mapstructure:"spawn_y"`
	SpawnZ float64 `mapstructure:"spawn_z"`
}

// TickConfig holds simulation timing settings.
type TickConfig struct {
	// Rate is the simulation frequency in Hz.
	Rate int `mapstructure:"rate"`
	// NetworkRate is the broadcast frequency in Hz; must divide Rate.
	NetworkRate int `mapstructure:"network_rate"`
	// CaptureDuration is how long a capturer must hold a territory.
	CaptureDuration time.Duration `mapstructure:"capture_duration"`
	// MinCapturePlayers is the presence threshold for a capture attempt.
	MinCapturePlayers int `mapstructure:"min_capture_players"`
	// RespawnDelay is the delay between a player's death and respawn.
	RespawnDelay time.Duration `mapstructure:"respawn_delay"`
	// SaveTimeout bounds persistence calls made from the tick loop.
	SaveTimeout time.Duration `mapstructure:"save_timeout"`
}

// Interval returns the duration of one simulation tick.
//
// Precondition: Rate > 0.
func (t TickConfig) Interval() time.Duration {
	return time.Second / time.Duration(t.Rate)
}

// BroadcastEvery returns how many ticks elapse between broadcast passes.
//
// Precondition: Rate and NetworkRate > 0.
func (t TickConfig) BroadcastEvery() int {
	n := t.Rate / t.NetworkRate
	if n < 1 {
		return 1
	}
	return n
}

// ContentConfig holds paths to static game content.
type ContentConfig struct {
	NPCDir         string `mapstructure:"npc_dir"`
	SpawnsFile     string `mapstructure:"spawns_file"`
	SkillsFile     string `mapstructure:"skills_file"`
	TerritoriesDir string `mapstructure:"territories_dir"`
	// ScriptDir holds world-event Lua scripts; empty disables scripting.
	ScriptDir string `mapstructure:"script_dir"`
}

// Config is the top-level application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	GameServer GameServerConfig `mapstructure:"gameserver"`
	World      WorldConfig      `mapstructure:"world"`
	Tick       TickConfig       `mapstructure:"tick"`
	Content    ContentConfig    `mapstructure:"content"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	for _, err := range []error{
		validateServer(c.Server),
		validateDatabase(c.Database),
		validateLogging(c.Logging),
		validateGameServer(c.GameServer),
		validateWorld(c.World),
		validateTick(c.Tick),
	} {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	validModes := map[string]bool{"production": true, "development": true}
	if !validModes[s.Mode] {
		return fmt.Errorf("server.mode must be one of [production, development], got %q", s.Mode)
	}
	if s.Shard == "" {
		return errors.New("server.shard must not be empty")
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	switch d.Driver {
	case "sqlite":
		if d.Path == "" {
			return errors.New("database.path must not be empty for the sqlite driver")
		}
		return nil
	case "postgres":
	default:
		return fmt.Errorf("database.driver must be one of [postgres, sqlite], got %q", d.Driver)
	}

	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validPort(p int) bool { return p >= 1 && p <= 65535 }

func validateGameServer(g GameServerConfig) error {
	var errs []string
	if g.Host == "" {
		errs = append(errs, "gameserver.host must not be empty")
	}
	if !validPort(g.Port) {
		errs = append(errs, fmt.Sprintf("gameserver.port must be 1-65535, got %d", g.Port))
	}
	if g.WebSocketPort != 0 && !validPort(g.WebSocketPort) {
		errs = append(errs, fmt.Sprintf("gameserver.websocket_port must be 0 or 1-65535, got %d", g.WebSocketPort))
	}
	if g.AdminPort != 0 && !validPort(g.AdminPort) {
		errs = append(errs, fmt.Sprintf("gameserver.admin_port must be 0 or 1-65535, got %d", g.AdminPort))
	}
	if g.SendQueue < 1 {
		errs = append(errs, fmt.Sprintf("gameserver.send_queue must be >= 1, got %d", g.SendQueue))
	}
	if g.CommandQueue < 1 {
		errs = append(errs, fmt.Sprintf("gameserver.command_queue must be >= 1, got %d", g.CommandQueue))
	}
	if g.SessionCommandLimit < 1 {
		errs = append(errs, fmt.Sprintf("gameserver.session_command_limit must be >= 1, got %d", g.SessionCommandLimit))
	}
	if g.LivenessTimeout <= 0 {
		errs = append(errs, "gameserver.liveness_timeout must be positive")
	}
	if g.WriteTimeout < 0 {
		errs = append(errs, "gameserver.write_timeout must not be negative")
	}
	if g.TokenTTL <= 0 {
		errs = append(errs, "gameserver.token_ttl must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateWorld(w WorldConfig) error {
	var errs []string
	if w.ChunkSize <= 0 {
		errs = append(errs, fmt.Sprintf("world.chunk_size must be positive, got %g", w.ChunkSize))
	}
	if w.ViewDistance <= 0 {
		errs = append(errs, fmt.Sprintf("world.view_distance must be positive, got %g", w.ViewDistance))
	}
	if w.Size <= 0 {
		errs = append(errs, fmt.Sprintf("world.size must be positive, got %g", w.Size))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateTick(t TickConfig) error {
	var errs []string
	if t.Rate < 1 {
		errs = append(errs, fmt.Sprintf("tick.rate must be >= 1, got %d", t.Rate))
	}
	if t.NetworkRate < 1 {
		errs = append(errs, fmt.Sprintf("tick.network_rate must be >= 1, got %d", t.NetworkRate))
	}
	if t.Rate >= 1 && t.NetworkRate > t.Rate {
		errs = append(errs, "tick.network_rate must not exceed tick.rate")
	}
	if t.CaptureDuration <= 0 {
		errs = append(errs, "tick.capture_duration must be positive")
	}
	if t.MinCapturePlayers < 1 {
		errs = append(errs, fmt.Sprintf("tick.min_capture_players must be >= 1, got %d", t.MinCapturePlayers))
	}
	if t.RespawnDelay < 0 {
		errs = append(errs, "tick.respawn_delay must not be negative")
	}
	if t.SaveTimeout <= 0 {
		errs = append(errs, "tick.save_timeout must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with SUBJUGATE_ prefix
	v.SetEnvPrefix("SUBJUGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SetDefaults registers the default value of every configuration key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.mode", "production")
	v.SetDefault("server.shard", "phoenix")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "subjugate")
	v.SetDefault("database.password", "subjugate")
	v.SetDefault("database.name", "subjugate")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.path", "subjugate.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("gameserver.host", "0.0.0.0")
	v.SetDefault("gameserver.port", 8889)
	v.SetDefault("gameserver.websocket_port", 8890)
	v.SetDefault("gameserver.admin_port", 50051)
	v.SetDefault("gameserver.send_queue", 256)
	v.SetDefault("gameserver.command_queue", 4096)
	v.SetDefault("gameserver.session_command_limit", 32)
	v.SetDefault("gameserver.liveness_timeout", "120s")
	v.SetDefault("gameserver.write_timeout", "10s")
	v.SetDefault("gameserver.token_ttl", "1h")

	v.SetDefault("world.chunk_size", 50.0)
	v.SetDefault("world.view_distance", 100.0)
	v.SetDefault("world.size", 1000.0)
	v.SetDefault("world.spawn_x", 100.0)
	v.SetDefault("world.spawn_y", 0.0)
	v.SetDefault("world.spawn_z", 100.0)

	v.SetDefault("tick.rate", 20)
	v.SetDefault("tick.network_rate", 10)
	v.SetDefault("tick.capture_duration", "60s")
	v.SetDefault("tick.min_capture_players", 1)
	v.SetDefault("tick.respawn_delay", "5s")
	v.SetDefault("tick.save_timeout", "2s")

	v.SetDefault("content.npc_dir", "content/npcs")
	v.SetDefault("content.spawns_file", "content/spawns.yaml")
	v.SetDefault("content.skills_file", "content/skills.yaml")
	v.SetDefault("content.territories_dir", "content/territories")
	v.SetDefault("content.script_dir", "content/scripts/events")
}
