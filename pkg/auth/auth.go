// Package auth keeps the bearer and refresh tokens and signs the user in and out.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/deepai/deepai-client/pkg/storage"
	"github.com/deepai/deepai-client/pkg/user"
)

// Token is the body of the login and refresh endpoints.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// Tokens persists the bearer token under storage.KeyToken and the refresh
// token under storage.KeyRefreshToken.
type Tokens struct {
	mu      sync.RWMutex
	kv      storage.Store
	token   string
	refresh string
}

func NewTokens(kv storage.Store) *Tokens {
	t := &Tokens{kv: kv}
	if _, err := kv.Get(storage.KeyToken, &t.token); err != nil {
		slog.Error("failed to load token", "error", err)
	}
	if _, err := kv.Get(storage.KeyRefreshToken, &t.refresh); err != nil {
		slog.Error("failed to load refresh token", "error", err)
	}
	return t
}

func (t *Tokens) Token() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.token
}

func (t *Tokens) RefreshToken() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.refresh
}

// SetTokens stores both tokens. An empty refresh token keeps the current one.
func (t *Tokens) SetTokens(access, refresh string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.token = access
	if err := t.kv.Set(storage.KeyToken, access); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	if refresh == "" {
		return nil
	}
	t.refresh = refresh
	if err := t.kv.Set(storage.KeyRefreshToken, refresh); err != nil {
		return fmt.Errorf("failed to save refresh token: %w", err)
	}
	return nil
}

func (t *Tokens) RemoveToken() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.token = ""
	return t.kv.Remove(storage.KeyToken)
}

func (t *Tokens) RemoveRefreshToken() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.refresh = ""
	return t.kv.Remove(storage.KeyRefreshToken)
}

// API is the backend used by Service.
type API interface {
	Login(ctx context.Context, username, password string) (Token, error)
	Session(ctx context.Context) (user.Info, error)
	Register(ctx context.Context, email, password string, code int) error
	SendVerificationCode(ctx context.Context, recipient string) error
}

// Session describes the result of the last session check.
type Session struct {
	NeedsAuth bool
	User      user.Info
}

// Service signs users in and tracks the session.
type Service struct {
	tokens *Tokens
	api    API
	users  *user.Store

	mu      sync.RWMutex
	session *Session
}

func NewService(tokens *Tokens, api API, users *user.Store) *Service {
	return &Service{tokens: tokens, api: api, users: users}
}

func (s *Service) Tokens() *Tokens { return s.tokens }

// SignedIn reports whether a bearer token is stored.
func (s *Service) SignedIn() bool {
	return s.tokens.Token() != ""
}

// Login exchanges credentials for tokens, then loads the session.
func (s *Service) Login(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return errors.New("username and password are required")
	}
	tok, err := s.api.Login(ctx, username, password)
	if err != nil {
		return fmt.Errorf("failed to login: %w", err)
	}
	if tok.AccessToken == "" {
		return errors.New("login response carried no access token")
	}
	if err := s.tokens.SetTokens(tok.AccessToken, tok.RefreshToken); err != nil {
		return err
	}
	_, err = s.Session(ctx)
	return err
}

// Session fetches the current user into the profile store. On failure the
// session is marked as needing authentication.
func (s *Service) Session(ctx context.Context) (Session, error) {
	info, err := s.api.Session(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.session = &Session{NeedsAuth: true}
		return *s.session, fmt.Errorf("failed to load session: %w", err)
	}
	s.users.Update(info)
	s.session = &Session{User: info}
	return *s.session, nil
}

// Current returns the last session, if one was loaded.
func (s *Service) Current() (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return Session{}, false
	}
	return *s.session, true
}

// Logout forgets both tokens and restores the default profile.
func (s *Service) Logout() error {
	err := errors.Join(s.tokens.RemoveToken(), s.tokens.RemoveRefreshToken())
	s.users.Reset()

	s.mu.Lock()
	s.session = nil
	s.mu.Unlock()
	return err
}

func (s *Service) Register(ctx context.Context, email, password string, code int) error {
	if err := s.api.Register(ctx, email, password, code); err != nil {
		return fmt.Errorf("failed to register: %w", err)
	}
	return nil
}

func (s *Service) SendVerificationCode(ctx context.Context, recipient string) error {
	if err := s.api.SendVerificationCode(ctx, recipient); err != nil {
		return fmt.Errorf("failed to send verification code: %w", err)
	}
	return nil
}
