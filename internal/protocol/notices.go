package protocol

// Credentials carries a username and password (LoginRequest, RegisterRequest).
type Credentials struct {
	Username string
	Password string
}

func (c Credentials) MarshalBinary() ([]byte, error) {
	return KV{"username": c.Username, "password": c.Password}.MarshalBinary()
}

func (c *Credentials) UnmarshalBinary(b []byte) error {
	kv, err := decodeKV(b)
	if err != nil {
		return err
	}
	c.Username, c.Password = kv.String("username"), kv.String("password")
	return nil
}

// AuthResult answers a login or registration (LoginResponse, RegisterResponse).
type AuthResult struct {
	Success   bool
	Message   string
	Token     string
	AccountID int64
}

func (a AuthResult) MarshalBinary() ([]byte, error) {
	return KV{
		"success":    a.Success,
		"message":    a.Message,
		"token":      a.Token,
		"account_id": a.AccountID,
	}.MarshalBinary()
}

func (a *AuthResult) UnmarshalBinary(b []byte) error {
	kv, err := decodeKV(b)
	if err != nil {
		return err
	}
	a.Success = kv.Bool("success")
	a.Message = kv.String("message")
	a.Token = kv.String("token")
	a.AccountID = kv.Int("account_id")
	return nil
}

// CharacterSummary is one row of a character list.
type CharacterSummary struct {
	ID                 int64
	Name               string
	Level              int
	ReincarnationCount int
}

// CharacterList answers a CharacterListRequest (CharacterListResponse).
type CharacterList struct {
	Characters []CharacterSummary
}

func (c CharacterList) MarshalBinary() ([]byte, error) {
	rows := make([]any, len(c.Characters))
	for i, ch := range c.Characters {
		rows[i] = map[string]any{
			"id":                  ch.ID,
			"name":                ch.Name,
			"level":               ch.Level,
			"reincarnation_count": ch.ReincarnationCount,
		}
	}
	return KV{"characters": rows}.MarshalBinary()
}

func (c *CharacterList) UnmarshalBinary(b []byte) error {
	kv, err := decodeKV(b)
	if err != nil {
		return err
	}
	c.Characters = c.Characters[:0]
	for _, row := range kv.Maps("characters") {
		c.Characters = append(c.Characters, CharacterSummary{
			ID:                 row.Int("id"),
			Name:               row.String("name"),
			Level:              int(row.Int("level")),
			ReincarnationCount: int(row.Int("reincarnation_count")),
		})
	}
	return nil
}

// CharacterRequest names a character to create, delete, or select.
type CharacterRequest struct {
	CharacterID int64
	Name        string
}

func (c CharacterRequest) MarshalBinary() ([]byte, error) {
	return KV{"character_id": c.CharacterID, "name": c.Name}.MarshalBinary()
}

func (c *CharacterRequest) UnmarshalBinary(b []byte) error {
	kv, err := decodeKV(b)
	if err != nil {
		return err
	}
	c.CharacterID, c.Name = kv.Int("character_id"), kv.String("name")
	return nil
}

// EnterWorldRequest presents a session token and the character to puppet (EnterWorld).
type EnterWorldRequest struct {
	Token       string
	CharacterID int64
}

func (e EnterWorldRequest) MarshalBinary() ([]byte, error) {
	return KV{"token": e.Token, "character_id": e.CharacterID}.MarshalBinary()
}

func (e *EnterWorldRequest) UnmarshalBinary(b []byte) error {
	kv, err := decodeKV(b)
	if err != nil {
		return err
	}
	e.Token, e.CharacterID = kv.String("token"), kv.Int("character_id")
	return nil
}

// ErrorNotice reports a failure the client should surface (ErrorMessage).
type ErrorNotice struct {
	Code    string
	Message string
}

func (e ErrorNotice) MarshalBinary() ([]byte, error) {
	return KV{"code": e.Code, "message": e.Message}.MarshalBinary()
}

func (e *ErrorNotice) UnmarshalBinary(b []byte) error {
	kv, err := decodeKV(b)
	if err != nil {
		return err
	}
	e.Code, e.Message = kv.String("code"), kv.String("message")
	return nil
}

// Chat is a chat line (ChatMessage, Whisper, WorldAnnouncement).
// Clients fill Text and, for whispers, Target; the server fills the rest.
type Chat struct {
	Channel    string
	SenderID   int64
	Sender     string
	Target     string
	Text       string
	UnixMillis int64
}

func (c Chat) MarshalBinary() ([]byte, error) {
	return KV{
		"channel":   c.Channel,
		"sender_id": c.SenderID,
		"sender":    c.Sender,
		"target":    c.Target,
		"text":      c.Text,
		"ts":        c.UnixMillis,
	}.MarshalBinary()
}

func (c *Chat) UnmarshalBinary(b []byte) error {
	kv, err := decodeKV(b)
	if err != nil {
		return err
	}
	c.Channel = kv.String("channel")
	c.SenderID = kv.Int("sender_id")
	c.Sender = kv.String("sender")
	c.Target = kv.String("target")
	c.Text = kv.String("text")
	c.UnixMillis = kv.Int("ts")
	return nil
}

// TerritorySummary is the public state of one territory.
type TerritorySummary struct {
	ID             int
	Name           string
	ControllerID   int64
	ControllerName string
	Capturing      bool
	Progress       float64
}

// TerritoryStatus lists territory state (TerritoryInfo, TerritoryUpdate).
type TerritoryStatus struct {
	Territories []TerritorySummary
}

func (t TerritoryStatus) MarshalBinary() ([]byte, error) {
	rows := make([]any, len(t.Territories))
	for i, tr := range t.Territories {
		rows[i] = map[string]any{
			"id":              tr.ID,
			"name":            tr.Name,
			"controller_id":   tr.ControllerID,
			"controller_name": tr.ControllerName,
			"capturing":       tr.Capturing,
			"progress":        tr.Progress,
		}
	}
	return KV{"territories": rows}.MarshalBinary()
}

func (t *TerritoryStatus) UnmarshalBinary(b []byte) error {
	kv, err := decodeKV(b)
	if err != nil {
		return err
	}
	t.Territories = t.Territories[:0]
	for _, row := range kv.Maps("territories") {
		t.Territories = append(t.Territories, TerritorySummary{
			ID:             int(row.Int("id")),
			Name:           row.String("name"),
			ControllerID:   row.Int("controller_id"),
			ControllerName: row.String("controller_name"),
			Capturing:      row.Bool("capturing"),
			Progress:       row.Float("progress"),
		})
	}
	return nil
}

// ReincarnationResult answers a Reincarnate request (Reincarnate, ReincarnationPerks).
type ReincarnationResult struct {
	Success bool
	Reason  string
	Count   int
	Score   float64
	Perks   map[string]float64
}

func (r ReincarnationResult) MarshalBinary() ([]byte, error) {
	perks := make(map[string]any, len(r.Perks))
	for k, v := range r.Perks {
		perks[k] = v
	}
	return KV{
		"success": r.Success,
		"reason":  r.Reason,
		"count":   r.Count,
		"score":   r.Score,
		"perks":   perks,
	}.MarshalBinary()
}

func (r *ReincarnationResult) UnmarshalBinary(b []byte) error {
	kv, err := decodeKV(b)
	if err != nil {
		return err
	}
	r.Success = kv.Bool("success")
	r.Reason = kv.String("reason")
	r.Count = int(kv.Int("count"))
	r.Score = kv.Float("score")
	r.Perks = make(map[string]float64)
	for k := range kv.Map("perks") {
		r.Perks[k] = kv.Map("perks").Float(k)
	}
	return nil
}

// LootNotice announces items dropped by a slain NPC (LootDrop).
type LootNotice struct {
	DropID  string
	NPCID   uint64
	OwnerID uint64
	ItemIDs []int
	X, Z    float64
}

func (l LootNotice) MarshalBinary() ([]byte, error) {
	return KV{
		"drop_id":  l.DropID,
		"npc_id":   l.NPCID,
		"owner_id": l.OwnerID,
		"items":    intsToList(l.ItemIDs),
		"x":        l.X,
		"z":        l.Z,
	}.MarshalBinary()
}

func (l *LootNotice) UnmarshalBinary(b []byte) error {
	kv, err := decodeKV(b)
	if err != nil {
		return err
	}
	l.DropID = kv.String("drop_id")
	l.NPCID = uint64(kv.Int("npc_id"))
	l.OwnerID = uint64(kv.Int("owner_id"))
	l.ItemIDs = listToInts(kv.List("items"))
	l.X, l.Z = kv.Float("x"), kv.Float("z")
	return nil
}

// EventNotice announces a world event phase change (WorldEvent).
type EventNotice struct {
	Name    string
	Phase   string
	Message string
}

func (e EventNotice) MarshalBinary() ([]byte, error) {
	return KV{"name": e.Name, "phase": e.Phase, "message": e.Message}.MarshalBinary()
}

func (e *EventNotice) UnmarshalBinary(b []byte) error {
	kv, err := decodeKV(b)
	if err != nil {
		return err
	}
	e.Name, e.Phase, e.Message = kv.String("name"), kv.String("phase"), kv.String("message")
	return nil
}

// AdminRequest is a privileged command (AdminCommand, KickPlayer, BanPlayer).
type AdminRequest struct {
	Command string
	Target  string
	Reason  string
}

func (a AdminRequest) MarshalBinary() ([]byte, error) {
	return KV{"command": a.Command, "target": a.Target, "reason": a.Reason}.MarshalBinary()
}

func (a *AdminRequest) UnmarshalBinary(b []byte) error {
	kv, err := decodeKV(b)
	if err != nil {
		return err
	}
	a.Command, a.Target, a.Reason = kv.String("command"), kv.String("target"), kv.String("reason")
	return nil
}

// ClockNotice carries the in-game time of day and weather (TimeUpdate, WeatherUpdate).
type ClockNotice struct {
	Day     int
	Hour    int
	Night   bool
	Light   float64
	Weather string
}

func (c ClockNotice) MarshalBinary() ([]byte, error) {
	return KV{
		"day":     c.Day,
		"hour":    c.Hour,
		"night":   c.Night,
		"light":   c.Light,
		"weather": c.Weather,
	}.MarshalBinary()
}

func (c *ClockNotice) UnmarshalBinary(b []byte) error {
	kv, err := decodeKV(b)
	if err != nil {
		return err
	}
	c.Day = int(kv.Int("day"))
	c.Hour = int(kv.Int("hour"))
	c.Night = kv.Bool("night")
	c.Light = kv.Float("light")
	c.Weather = kv.String("weather")
	return nil
}
