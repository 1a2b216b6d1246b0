package protocol

import "fmt"

// PacketType is the stable numeric identifier carried in every frame header.
// Ranges group related packets: 0-99 connection/auth, 100-199 characters,
// 200-299 world entry and movement, 300-399 combat and reincarnation,
// 400-499 territory, 500-599 inventory, 600-699 chat, 700-799 progression,
// 800-899 world and NPC, 900-999 system and errors.
type PacketType uint16

// Connection and authentication.
const (
	Handshake        PacketType = 0
	LoginRequest     PacketType = 1
	LoginResponse    PacketType = 2
	Logout           PacketType = 3
	RegisterRequest  PacketType = 4
	RegisterResponse PacketType = 5
	Ping             PacketType = 6
	Pong             PacketType = 7
)

// Character management.
const (
	CharacterListRequest  PacketType = 100
	CharacterListResponse PacketType = 101
	CharacterCreate       PacketType = 102
	CharacterDelete       PacketType = 103
	CharacterSelect       PacketType = 104
	CharacterInfo         PacketType = 105
)

// World entry and movement.
const (
	EnterWorld    PacketType = 200
	LeaveWorld    PacketType = 201
	MoveRequest   PacketType = 202
	MoveUpdate    PacketType = 203
	PositionSync  PacketType = 204
	Teleport      PacketType = 205
	ZoneChange    PacketType = 206
	PlayerSpawn   PacketType = 207
	PlayerDespawn PacketType = 208
)

// Combat and reincarnation.
const (
	AttackRequest  PacketType = 300
	AttackResponse PacketType = 301
	DamageDealt    PacketType = 302
	PlayerDied     PacketType = 303
	PlayerKilled   PacketType = 304
	Reincarnate    PacketType = 305
	CombatState    PacketType = 306
	SkillUse       PacketType = 307
	BuffApply      PacketType = 308
	BuffRemove     PacketType = 309
	Respawned      PacketType = 310
)

// Territory.
const (
	TerritoryInfo   PacketType = 400
	TerritoryClaim  PacketType = 401
	TerritoryDefend PacketType = 402
	TerritoryBuff   PacketType = 403
	TerritoryUpdate PacketType = 404
	GuildTerritory  PacketType = 405
)

// Inventory.
const (
	InventoryUpdate PacketType = 500
	ItemPickup      PacketType = 501
	ItemDrop        PacketType = 502
	ItemUse         PacketType = 503
	EquipmentUpdate PacketType = 504
	TradeRequest    PacketType = 505
	TradeUpdate     PacketType = 506
)

// Chat.
const (
	ChatMessage       PacketType = 600
	Whisper           PacketType = 601
	GuildChat         PacketType = 602
	WorldAnnouncement PacketType = 603
	PlayerList        PacketType = 604
)

// Progression.
const (
	LevelUp            PacketType = 700
	StatUpdate         PacketType = 701
	SkillLearn         PacketType = 702
	ReincarnationPerks PacketType = 703
	AchievementUnlock  PacketType = 704
)

// World and NPC.
const (
	NPCSpawn       PacketType = 800
	NPCDespawn     PacketType = 801
	ObjectSpawn    PacketType = 802
	ObjectInteract PacketType = 803
	WeatherUpdate  PacketType = 804
	TimeUpdate     PacketType = 805
	NPCUpdate      PacketType = 806
	LootDrop       PacketType = 807
	WorldEvent     PacketType = 808
)

// System.
const (
	AdminCommand   PacketType = 900
	ServerShutdown PacketType = 901
	KickPlayer     PacketType = 902
	BanPlayer      PacketType = 903
	ErrorMessage   PacketType = 999
)

var packetNames = map[PacketType]string{
	Handshake: "handshake", LoginRequest: "login_request", LoginResponse: "login_response",
	Logout: "logout", RegisterRequest: "register_request", RegisterResponse: "register_response",
	Ping: "ping", Pong: "pong",

	CharacterListRequest: "character_list_request", CharacterListResponse: "character_list_response",
	CharacterCreate: "character_create", CharacterDelete: "character_delete",
	CharacterSelect: "character_select", CharacterInfo: "character_info",

	EnterWorld: "enter_world", LeaveWorld: "leave_world", MoveRequest: "move_request",
	MoveUpdate: "move_update", PositionSync: "position_sync", Teleport: "teleport",
	ZoneChange: "zone_change", PlayerSpawn: "player_spawn", PlayerDespawn: "player_despawn",

	AttackRequest: "attack_request", AttackResponse: "attack_response", DamageDealt: "damage_dealt",
	PlayerDied: "player_died", PlayerKilled: "player_killed", Reincarnate: "reincarnate",
	CombatState: "combat_state", SkillUse: "skill_use", BuffApply: "buff_apply",
	BuffRemove: "buff_remove", Respawned: "respawned",

	TerritoryInfo: "territory_info", TerritoryClaim: "territory_claim", TerritoryDefend: "territory_defend",
	TerritoryBuff: "territory_buff", TerritoryUpdate: "territory_update", GuildTerritory: "guild_territory",

	InventoryUpdate: "inventory_update", ItemPickup: "item_pickup", ItemDrop: "item_drop",
	ItemUse: "item_use", EquipmentUpdate: "equipment_update", TradeRequest: "trade_request",
	TradeUpdate: "trade_update",

	ChatMessage: "chat_message", Whisper: "whisper", GuildChat: "guild_chat",
	WorldAnnouncement: "world_announcement", PlayerList: "player_list",

	LevelUp: "level_up", StatUpdate: "stat_update", SkillLearn: "skill_learn",
	ReincarnationPerks: "reincarnation_perks", AchievementUnlock: "achievement_unlock",

	NPCSpawn: "npc_spawn", NPCDespawn: "npc_despawn", ObjectSpawn: "object_spawn",
	ObjectInteract: "object_interact", WeatherUpdate: "weather_update", TimeUpdate: "time_update",
	NPCUpdate: "npc_update", LootDrop: "loot_drop", WorldEvent: "world_event",

	AdminCommand: "admin_command", ServerShutdown: "server_shutdown", KickPlayer: "kick_player",
	BanPlayer: "ban_player", ErrorMessage: "error_message",
}

// String returns the snake_case packet name, or "unknown(N)".
func (t PacketType) String() string {
	if name, ok := packetNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint16(t))
}

// Known reports whether t is a defined packet type.
func (t PacketType) Known() bool {
	_, ok := packetNames[t]
	return ok
}

// Range returns the hundred-block a packet belongs to (0 for auth, 1 for
// characters, ... 9 for system).
func (t PacketType) Range() int {
	return int(t) / 100
}
