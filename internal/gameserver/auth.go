package gameserver

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/cory-johannsen/subjugate/internal/game/character"
	"github.com/cory-johannsen/subjugate/internal/network"
	"github.com/cory-johannsen/subjugate/internal/protocol"
	"github.com/cory-johannsen/subjugate/internal/storage"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,20}$`)

// ValidateCredentials checks a registration request.
func ValidateCredentials(username, password string) error {
	if !usernamePattern.MatchString(username) {
		return errors.New("username must be 3-20 letters, digits, or underscores")
	}
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

func (h *Handler) login(s *network.Session, payload []byte) {
	var creds protocol.Credentials
	if err := creds.UnmarshalBinary(payload); err != nil {
		h.reply(s, protocol.LoginResponse, protocol.AuthResult{Message: "malformed request"})
		return
	}
	ctx, cancel := h.ctx()
	defer cancel()

	acct, err := h.stores.Accounts.Authenticate(ctx, creds.Username, creds.Password)
	if err != nil {
		msg := "invalid username or password"
		switch {
		case errors.Is(err, storage.ErrAccountBanned):
			msg = "account is banned"
		case !errors.Is(err, storage.ErrInvalidCredentials) && !errors.Is(err, storage.ErrAccountNotFound):
			s.Logger().Error("authenticating", zap.String("username", creds.Username), zap.Error(err))
			msg = "login failed"
		}
		s.Logger().Info("login rejected", zap.String("username", creds.Username), zap.String("reason", msg))
		h.reply(s, protocol.LoginResponse, protocol.AuthResult{Message: msg})
		return
	}

	token, err := h.stores.Sessions.Issue(ctx, acct.ID, h.cfg.GameServer.TokenTTL)
	if err != nil {
		s.Logger().Error("issuing session token", zap.Int64("account_id", acct.ID), zap.Error(err))
		h.reply(s, protocol.LoginResponse, protocol.AuthResult{Message: "login failed"})
		return
	}
	s.Bind(acct.ID, acct.Admin)
	h.mu.Lock()
	h.tokens[s.ID()] = token
	h.mu.Unlock()

	s.Logger().Info("login", zap.String("username", acct.Username), zap.Int64("account_id", acct.ID))
	h.reply(s, protocol.LoginResponse, protocol.AuthResult{
		Success:   true,
		Message:   "welcome, " + acct.Username,
		Token:     token,
		AccountID: acct.ID,
	})
}

func (h *Handler) register(s *network.Session, payload []byte) {
	var creds protocol.Credentials
	if err := creds.UnmarshalBinary(payload); err != nil {
		h.reply(s, protocol.RegisterResponse, protocol.AuthResult{Message: "malformed request"})
		return
	}
	if err := ValidateCredentials(creds.Username, creds.Password); err != nil {
		h.reply(s, protocol.RegisterResponse, protocol.AuthResult{Message: err.Error()})
		return
	}
	ctx, cancel := h.ctx()
	defer cancel()

	acct, err := h.stores.Accounts.Create(ctx, creds.Username, creds.Password)
	if err != nil {
		msg := "registration failed"
		if errors.Is(err, storage.ErrAccountExists) {
			msg = "username already taken"
		} else {
			s.Logger().Error("creating account", zap.String("username", creds.Username), zap.Error(err))
		}
		h.reply(s, protocol.RegisterResponse, protocol.AuthResult{Message: msg})
		return
	}
	s.Logger().Info("account registered", zap.String("username", acct.Username), zap.Int64("account_id", acct.ID))
	h.reply(s, protocol.RegisterResponse, protocol.AuthResult{
		Success:   true,
		Message:   "account created",
		AccountID: acct.ID,
	})
}

// logout revokes the session token and leaves the world. The connection
// stays open for another login.
func (h *Handler) logout(s *network.Session) {
	h.mu.Lock()
	token, ok := h.tokens[s.ID()]
	delete(h.tokens, s.ID())
	h.mu.Unlock()
	if ok {
		ctx, cancel := h.ctx()
		if err := h.stores.Sessions.Revoke(ctx, token); err != nil {
			s.Logger().Warn("revoking session token", zap.Error(err))
		}
		cancel()
	}
	if s.PlayerID() != 0 {
		h.enqueue(s, CmdLeaveWorld, nil)
	}
	s.Bind(0, false)
	h.reply(s, protocol.Logout, protocol.KV{"ok": true})
}

func (h *Handler) account(s *network.Session) (int64, bool) {
	id := s.AccountID()
	if id == 0 {
		h.fail(s, "not_authenticated", "log in first")
		return 0, false
	}
	return id, true
}

func (h *Handler) listCharacters(s *network.Session) {
	accountID, ok := h.account(s)
	if !ok {
		return
	}
	ctx, cancel := h.ctx()
	defer cancel()
	h.sendCharacterList(ctx, s, accountID)
}

func (h *Handler) sendCharacterList(ctx context.Context, s *network.Session, accountID int64) {
	chars, err := h.stores.Characters.ListByAccount(ctx, accountID)
	if err != nil {
		s.Logger().Error("listing characters", zap.Int64("account_id", accountID), zap.Error(err))
		h.fail(s, "storage", "could not list characters")
		return
	}
	list := protocol.CharacterList{Characters: make([]protocol.CharacterSummary, 0, len(chars))}
	for _, c := range chars {
		list.Characters = append(list.Characters, protocol.CharacterSummary{
			ID:                 c.ID,
			Name:               c.Name,
			Level:              c.Level,
			ReincarnationCount: c.ReincarnationCount,
		})
	}
	h.reply(s, protocol.CharacterListResponse, list)
}

func (h *Handler) createCharacter(s *network.Session, payload []byte) {
	accountID, ok := h.account(s)
	if !ok {
		return
	}
	var req protocol.CharacterRequest
	if err := req.UnmarshalBinary(payload); err != nil {
		h.fail(s, "bad_request", "malformed character request")
		return
	}
	w := h.cfg.World
	c, err := character.New(accountID, req.Name, w.SpawnX, w.SpawnY, w.SpawnZ)
	if err != nil {
		h.fail(s, "invalid_name", err.Error())
		return
	}

	ctx, cancel := h.ctx()
	defer cancel()
	existing, err := h.stores.Characters.ListByAccount(ctx, accountID)
	if err != nil {
		s.Logger().Error("listing characters", zap.Int64("account_id", accountID), zap.Error(err))
		h.fail(s, "storage", "could not create character")
		return
	}
	if len(existing) >= character.MaxCharacters {
		h.fail(s, "character_limit", fmt.Sprintf("at most %d characters per account", character.MaxCharacters))
		return
	}
	created, err := h.stores.Characters.Create(ctx, c)
	if err != nil {
		if errors.Is(err, storage.ErrCharacterNameTaken) {
			h.fail(s, "name_taken", "character name already taken")
			return
		}
		s.Logger().Error("creating character", zap.String("name", req.Name), zap.Error(err))
		h.fail(s, "storage", "could not create character")
		return
	}
	s.Logger().Info("character created", zap.String("name", created.Name), zap.Int64("character_id", created.ID))
	h.sendCharacterList(ctx, s, accountID)
}

func (h *Handler) deleteCharacter(s *network.Session, payload []byte) {
	accountID, ok := h.account(s)
	if !ok {
		return
	}
	var req protocol.CharacterRequest
	if err := req.UnmarshalBinary(payload); err != nil {
		h.fail(s, "bad_request", "malformed character request")
		return
	}
	ctx, cancel := h.ctx()
	defer cancel()

	c, err := h.owned(ctx, s, accountID, req.CharacterID)
	if err != nil {
		return
	}
	if c.Online {
		h.fail(s, "character_online", "cannot delete a character that is in the world")
		return
	}
	if err := h.stores.Characters.Delete(ctx, accountID, c.ID); err != nil {
		s.Logger().Error("deleting character", zap.Int64("character_id", c.ID), zap.Error(err))
		h.fail(s, "storage", "could not delete character")
		return
	}
	s.Logger().Info("character deleted", zap.String("name", c.Name), zap.Int64("character_id", c.ID))
	h.sendCharacterList(ctx, s, accountID)
}

func (h *Handler) selectCharacter(s *network.Session, payload []byte) {
	accountID, ok := h.account(s)
	if !ok {
		return
	}
	var req protocol.CharacterRequest
	if err := req.UnmarshalBinary(payload); err != nil {
		h.fail(s, "bad_request", "malformed character request")
		return
	}
	ctx, cancel := h.ctx()
	defer cancel()
	c, err := h.owned(ctx, s, accountID, req.CharacterID)
	if err != nil {
		return
	}
	h.reply(s, protocol.CharacterInfo, protocol.KV{
		"character_id":   float64(c.ID),
		"name":           c.Name,
		"game_mode":      c.GameMode,
		"level":          float64(c.Level),
		"experience":     float64(c.Experience),
		"hp":             float64(c.HP),
		"max_hp":         float64(c.MaxHP),
		"mp":             float64(c.MP),
		"max_mp":         float64(c.MaxMP),
		"reincarnations": float64(c.ReincarnationCount),
		"perks":          perkMap(c.Perks),
	})
}

// owned loads a character and checks it belongs to accountID, replying with
// an error when it does not.
func (h *Handler) owned(ctx context.Context, s *network.Session, accountID, characterID int64) (*character.Character, error) {
	c, err := h.stores.Characters.Load(ctx, characterID)
	if err == nil && c.AccountID != accountID {
		err = ErrCharacterMismatch
	}
	if err != nil {
		if !errors.Is(err, storage.ErrCharacterNotFound) && !errors.Is(err, ErrCharacterMismatch) {
			s.Logger().Error("loading character", zap.Int64("character_id", characterID), zap.Error(err))
		}
		h.fail(s, "no_character", "character not found")
		return nil, err
	}
	return c, nil
}

// enterWorld validates the token and character, binds the account, and
// queues the character for the scheduler.
//
// Postcondition: An invalid token or a character owned by another account
// sends ErrorMessage and closes the session.
func (h *Handler) enterWorld(s *network.Session, payload []byte) {
	var req protocol.EnterWorldRequest
	if err := req.UnmarshalBinary(payload); err != nil {
		h.fail(s, "bad_request", "malformed enter world request")
		return
	}
	ctx, cancel := h.ctx()
	defer cancel()

	accountID, err := h.stores.Sessions.Validate(ctx, req.Token)
	if err != nil {
		s.Logger().Info("enter world rejected", zap.Error(err))
		h.reject(s, ErrInvalidToken)
		return
	}
	c, err := h.stores.Characters.Load(ctx, req.CharacterID)
	if err != nil || c.AccountID != accountID {
		s.Logger().Info("enter world rejected",
			zap.Int64("character_id", req.CharacterID),
			zap.Int64("account_id", accountID),
			zap.NamedError("load_error", err),
		)
		h.reject(s, ErrCharacterMismatch)
		return
	}
	if s.AccountID() != accountID {
		acct, err := h.stores.Accounts.GetByID(ctx, accountID)
		if err != nil {
			s.Logger().Error("loading account", zap.Int64("account_id", accountID), zap.Error(err))
			h.fail(s, "storage", "could not enter world")
			return
		}
		if acct.Banned {
			h.reject(s, storage.ErrAccountBanned)
			return
		}
		s.Bind(acct.ID, acct.Admin)
		h.mu.Lock()
		h.tokens[s.ID()] = req.Token
		h.mu.Unlock()
	}

	ok, reason := h.queue.Enqueue(Command{Kind: CmdEnterWorld, Session: s, Character: c, At: h.now()})
	if !ok {
		s.Logger().Warn("command rejected", zap.Stringer("command", CmdEnterWorld), zap.String("reason", reason))
		h.fail(s, reason, "server busy, try again")
	}
}

// reject reports a session-level error and closes the connection.
func (h *Handler) reject(s *network.Session, err error) {
	code := "invalid_token"
	switch {
	case errors.Is(err, ErrCharacterMismatch):
		code = "character_mismatch"
	case errors.Is(err, storage.ErrAccountBanned):
		code = "banned"
	}
	h.fail(s, code, err.Error())
	s.CloseAfterFlush()
}
