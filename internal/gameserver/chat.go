package gameserver

import (
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/cory-johannsen/subjugate/internal/protocol"
)

// Chat channels.
const (
	ChannelGlobal   = "global"
	ChannelWhisper  = "whisper"
	ChannelAnnounce = "announce"
)

const (
	// ChatCooldown is the minimum gap between two messages from one character.
	ChatCooldown = time.Second
	// MaxChatRunes is the length at which messages are truncated.
	MaxChatRunes = 256
	// ChatHistorySize is how many messages each public channel remembers.
	ChatHistorySize = 50
)

var (
	ErrChatEmpty    = errors.New("message is empty")
	ErrChatCooldown = errors.New("you are sending messages too quickly")
	ErrChatMuted    = errors.New("you are muted")
)

// ChatService validates chat messages and keeps per-channel history.
// Whispers are delivered but never recorded.
type ChatService struct {
	mu       sync.Mutex
	lastSent map[int64]time.Time
	muted    map[int64]time.Time
	history  map[string][]protocol.Chat
	now      func() time.Time
	logger   *zap.Logger
}

// NewChatService creates an empty ChatService.
//
// Precondition: now and logger must be non-nil.
func NewChatService(now func() time.Time, logger *zap.Logger) *ChatService {
	return &ChatService{
		lastSent: make(map[int64]time.Time),
		muted:    make(map[int64]time.Time),
		history:  make(map[string][]protocol.Chat),
		now:      now,
		logger:   logger,
	}
}

// Submit validates a message from senderID and returns it ready to deliver.
// Text is trimmed and truncated to MaxChatRunes.
//
// Postcondition: On error nothing is recorded and the cooldown is untouched.
func (c *ChatService) Submit(channel string, senderID int64, sender, target, text string) (protocol.Chat, error) {
	text = truncateRunes(strings.TrimSpace(text), MaxChatRunes)
	if text == "" {
		return protocol.Chat{}, ErrChatEmpty
	}

	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if until, ok := c.muted[senderID]; ok {
		if now.Before(until) {
			return protocol.Chat{}, ErrChatMuted
		}
		delete(c.muted, senderID)
	}
	if last, ok := c.lastSent[senderID]; ok && now.Sub(last) < ChatCooldown {
		return protocol.Chat{}, ErrChatCooldown
	}
	c.lastSent[senderID] = now

	msg := protocol.Chat{
		Channel:    channel,
		SenderID:   senderID,
		Sender:     sender,
		Target:     target,
		Text:       text,
		UnixMillis: now.UnixMilli(),
	}
	if channel != ChannelWhisper {
		c.record(msg)
	}
	return msg, nil
}

// Announce builds a server announcement and records it.
func (c *ChatService) Announce(text string) protocol.Chat {
	msg := protocol.Chat{
		Channel:    ChannelAnnounce,
		Sender:     "server",
		Text:       truncateRunes(strings.TrimSpace(text), MaxChatRunes),
		UnixMillis: c.now().UnixMilli(),
	}
	c.mu.Lock()
	c.record(msg)
	c.mu.Unlock()
	c.logger.Info("announcement", zap.String("text", msg.Text))
	return msg
}

func (c *ChatService) record(msg protocol.Chat) {
	h := append(c.history[msg.Channel], msg)
	if len(h) > ChatHistorySize {
		h = h[len(h)-ChatHistorySize:]
	}
	c.history[msg.Channel] = h
}

// History returns the recent messages of channel, oldest first.
func (c *ChatService) History(channel string) []protocol.Chat {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.Chat(nil), c.history[channel]...)
}

// Mute silences characterID for d.
func (c *ChatService) Mute(characterID int64, d time.Duration) {
	c.mu.Lock()
	c.muted[characterID] = c.now().Add(d)
	c.mu.Unlock()
}

// Unmute lifts a mute.
func (c *ChatService) Unmute(characterID int64) {
	c.mu.Lock()
	delete(c.muted, characterID)
	c.mu.Unlock()
}

// Forget drops per-character state when a character leaves the world.
// Mutes outlive the session.
func (c *ChatService) Forget(characterID int64) {
	c.mu.Lock()
	delete(c.lastSent, characterID)
	c.mu.Unlock()
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
