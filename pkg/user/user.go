// Package user keeps the signed-in user's profile and wraps the admin user endpoints.
package user

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/deepai/deepai-client/pkg/storage"
)

// API is the backend used by Store.
type API interface {
	UpdatePersonalInfo(ctx context.Context, id string, fields map[string]any) error
	CreateAccount(ctx context.Context, email string) (Account, error)
	ListUsers(ctx context.Context, q Query) ([]Info, int, error)
	DeleteUser(ctx context.Context, id string) error
	UpdateUser(ctx context.Context, id string, fields map[string]any) error
}

// DefaultInfo is the profile shown before anyone signs in.
func DefaultInfo() Info {
	return Info{
		Avatar: "https://cdn-icons-png.flaticon.com/512/1698/1698535.png",
		Email:  "admin@admin.com",
		Model:  "gpt-3.5-turbo",
	}
}

type persisted struct {
	Info Info `json:"userInfo"`
}

// Store holds the profile, persisted under storage.KeyUser, and the last
// page of the admin user list.
type Store struct {
	mu   sync.RWMutex
	kv   storage.Store
	api  API
	info Info
	list []Info
}

func New(kv storage.Store, api API) *Store {
	p := persisted{Info: DefaultInfo()}
	if _, err := kv.Get(storage.KeyUser, &p); err != nil {
		slog.Error("failed to load user profile", "error", err)
		p.Info = DefaultInfo()
	}
	return &Store{kv: kv, api: api, info: p.Info}
}

func (s *Store) recordLocked() {
	if err := s.kv.Set(storage.KeyUser, persisted{Info: s.info}); err != nil {
		slog.Error("failed to persist user profile", "error", err)
	}
}

func (s *Store) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info
}

// Update merges the non-zero fields of info into the profile.
func (s *Store) Update(info Info) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.info = merge(s.info, info)
	s.recordLocked()
}

// Clear empties the profile.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.info = Info{}
	s.recordLocked()
}

// Reset restores DefaultInfo.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.info = DefaultInfo()
	s.recordLocked()
}

func (s *Store) Type() Type {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info.Type
}

func (s *Store) IsNormal() bool          { return s.Type() == Normal }
func (s *Store) IsPremium() bool         { return s.Type() == Premium }
func (s *Store) IsAdmin() bool           { return s.Type() == Admin }
func (s *Store) IsSuperAdmin() bool      { return s.Type() == SuperAdmin }
func (s *Store) IsPremiumAndAbove() bool { return s.Type().AtLeast(Premium) }
func (s *Store) IsAdminAndAbove() bool   { return s.Type().AtLeast(Admin) }

// setField updates the profile locally, then on the backend.
func (s *Store) setField(ctx context.Context, field string, value any, apply func(*Info)) error {
	s.mu.Lock()
	apply(&s.info)
	id := s.info.ID
	s.recordLocked()
	s.mu.Unlock()

	if err := s.api.UpdatePersonalInfo(ctx, id, map[string]any{field: value}); err != nil {
		return fmt.Errorf("failed to update %s: %w", field, err)
	}
	return nil
}

// UpdateModel sets the preferred chat model.
func (s *Store) UpdateModel(ctx context.Context, model string) error {
	return s.setField(ctx, "model", model, func(i *Info) { i.Model = model })
}

func (s *Store) UpdateAvatar(ctx context.Context, avatar string) error {
	return s.setField(ctx, "avatar", avatar, func(i *Info) { i.Avatar = avatar })
}

func (s *Store) UpdateDescription(ctx context.Context, description string) error {
	return s.setField(ctx, "description", description, func(i *Info) { i.Description = description })
}

func (s *Store) UpdateNickname(ctx context.Context, nickname string) error {
	return s.setField(ctx, "nickname", nickname, func(i *Info) { i.Nickname = nickname })
}

// ---- admin ----

// CreateAccount creates a user with a generated password.
func (s *Store) CreateAccount(ctx context.Context, email string) (Account, error) {
	acc, err := s.api.CreateAccount(ctx, email)
	if err != nil {
		return Account{}, fmt.Errorf("failed to create account: %w", err)
	}
	return acc, nil
}

// FetchUsers loads a page of users and returns the total count.
func (s *Store) FetchUsers(ctx context.Context, q Query) (int, error) {
	users, total, err := s.api.ListUsers(ctx, q)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.list = nil
		return 0, fmt.Errorf("failed to list users: %w", err)
	}
	s.list = users
	return total, nil
}

// Users returns the page loaded by the last FetchUsers.
func (s *Store) Users() []Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.list)
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	if err := s.api.DeleteUser(ctx, id); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// UpgradeToPremium promotes a user and grants image requests.
func (s *Store) UpgradeToPremium(ctx context.Context, id string, imageRequests int) error {
	err := s.api.UpdateUser(ctx, id, map[string]any{
		"type":                 Premium,
		"total_image_requests": imageRequests,
	})
	if err != nil {
		return fmt.Errorf("failed to upgrade user: %w", err)
	}
	return nil
}

// SetImageRequests sets the image request allowance of the signed-in user.
func (s *Store) SetImageRequests(ctx context.Context, total int) error {
	s.mu.Lock()
	s.info.TotalImageRequests = total
	id := s.info.ID
	s.recordLocked()
	s.mu.Unlock()

	if err := s.api.UpdateUser(ctx, id, map[string]any{"total_image_requests": total}); err != nil {
		return fmt.Errorf("failed to update image requests: %w", err)
	}
	return nil
}

func merge(dst, src Info) Info {
	set := func(d *string, v string) {
		if v != "" {
			*d = v
		}
	}
	set(&dst.ID, src.ID)
	set(&dst.Email, src.Email)
	set(&dst.Nickname, src.Nickname)
	set(&dst.Avatar, src.Avatar)
	set(&dst.Description, src.Description)
	set(&dst.Model, src.Model)
	if src.Type != "" {
		dst.Type = src.Type
	}
	if src.ChargedAmount != 0 {
		dst.ChargedAmount = src.ChargedAmount
	}
	if src.TotalRequests != 0 {
		dst.TotalRequests = src.TotalRequests
	}
	if src.UsedRequests != 0 {
		dst.UsedRequests = src.UsedRequests
	}
	if src.TotalImageRequests != 0 {
		dst.TotalImageRequests = src.TotalImageRequests
	}
	if src.UsedImageRequests != 0 {
		dst.UsedImageRequests = src.UsedImageRequests
	}
	if src.MerchantOrderID != 0 {
		dst.MerchantOrderID = src.MerchantOrderID
	}
	dst.IsFeishuUser = dst.IsFeishuUser || src.IsFeishuUser
	dst.IsGithubUser = dst.IsGithubUser || src.IsGithubUser
	return dst
}
