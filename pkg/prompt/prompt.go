// Package prompt manages the role-play prompt library.
package prompt

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
	ListPrompts(ctx context.Context, term string) ([]Prompt, error)
	PromptsByPage(ctx context.Context, q Query) ([]Prompt, int, error)
	CreatePrompt(ctx context.Context, p Prompt) (Prompt, error)
	UpdatePrompt(ctx context.Context, id string, fields map[string]any) (Prompt, error)
	LikePrompt(ctx context.Context, id string, like bool) (Prompt, error)
	DeletePrompt(ctx context.Context, id string) error
	TogglePrompt(ctx context.Context, id string, enabled bool) error
	BulkInsertPrompts(ctx context.Context, prompts []Prompt) error
}

type persisted struct {
	List []Prompt `json:"promptList"`
}

// Store caches the last fetched list. SetList also persists it under storage.KeyPrompt.
type Store struct {
	mu   sync.RWMutex
	kv   storage.Store
	api  API
	list []Prompt
}

func New(kv storage.Store, api API) *Store {
	var p persisted
	if _, err := kv.Get(storage.KeyPrompt, &p); err != nil {
		slog.Error("failed to load prompt list", "error", err)
	}
	return &Store{kv: kv, api: api, list: p.List}
}

func (s *Store) List() []Prompt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.list)
}

// SetList replaces the cached list and persists it.
func (s *Store) SetList(list []Prompt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.list = slices.Clone(list)
	if err := s.kv.Set(storage.KeyPrompt, persisted{List: s.list}); err != nil {
		slog.Error("failed to persist prompt list", "error", err)
	}
}

// Find returns the cached prompt with the given title.
func (s *Store) Find(title string) (Prompt, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := slices.IndexFunc(s.list, func(p Prompt) bool { return p.Title == title })
	if i == -1 {
		return Prompt{}, false
	}
	return s.list[i], true
}

// Fetch loads the whole library.
func (s *Store) Fetch(ctx context.Context) error {
	list, err := s.api.ListPrompts(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to fetch prompts: %w", err)
	}
	s.mu.Lock()
	s.list = list
	s.mu.Unlock()
	return nil
}

// FetchPage loads one page and returns the total count.
func (s *Store) FetchPage(ctx context.Context, q Query) (int, error) {
	list, total, err := s.api.PromptsByPage(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch prompts: %w", err)
	}
	if list == nil {
		list = []Prompt{}
	}
	s.mu.Lock()
	s.list = list
	s.mu.Unlock()
	return total, nil
}

func (s *Store) Create(ctx context.Context, p Prompt) (Prompt, error) {
	created, err := s.api.CreatePrompt(ctx, p)
	if err != nil {
		return Prompt{}, fmt.Errorf("failed to create prompt: %w", err)
	}
	return created, nil
}

func (s *Store) Update(ctx context.Context, id string, fields map[string]any) (Prompt, error) {
	updated, err := s.api.UpdatePrompt(ctx, id, fields)
	if err != nil {
		return Prompt{}, fmt.Errorf("failed to update prompt: %w", err)
	}
	return updated, nil
}

// Like adds (or, with like false, removes) a like.
func (s *Store) Like(ctx context.Context, id string, like bool) (Prompt, error) {
	p, err := s.api.LikePrompt(ctx, id, like)
	if err != nil {
		return Prompt{}, fmt.Errorf("failed to like prompt: %w", err)
	}
	return p, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.api.DeletePrompt(ctx, id); err != nil {
		return fmt.Errorf("failed to delete prompt: %w", err)
	}
	return nil
}

func (s *Store) Toggle(ctx context.Context, id string, enabled bool) error {
	if err := s.api.TogglePrompt(ctx, id, enabled); err != nil {
		return fmt.Errorf("failed to toggle prompt: %w", err)
	}
	return nil
}

func (s *Store) BulkInsert(ctx context.Context, prompts []Prompt) error {
	if err := s.api.BulkInsertPrompts(ctx, prompts); err != nil {
		return fmt.Errorf("failed to insert prompts: %w", err)
	}
	return nil
}
