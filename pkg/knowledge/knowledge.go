// Package knowledge manages knowledge bases, their ingested documents and
// the plugin registry that backs retrieval.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/deepai/deepai-client/pkg/store"
)

// API is the backend used by Store.
type API interface {
	ListKnowledgeBases(ctx context.Context, q BaseQuery) ([]Base, int, error)
	CreateKnowledgeBase(ctx context.Context, b Base) (Base, error)
	UpdateKnowledgeBase(ctx context.Context, id string, fields map[string]any) (Base, error)
	DeleteKnowledgeBase(ctx context.Context, id string, mode store.AiMode) error
	UsePlugins(ctx context.Context, id string) ([]Plugin, error)

	ListDocRecords(ctx context.Context, q DocQuery) ([]DocRecord, int, error)
	DeleteDocRecordByFilename(ctx context.Context, filename, knowledgeBaseID string, mode store.AiMode) error
	IngestText(ctx context.Context, text string) error

	AllPlugins(ctx context.Context) (installed, registry []Plugin, err error)
	ActivePlugins(ctx context.Context) ([]Plugin, error)
	DeletePlugin(ctx context.Context, id string) error
	TogglePlugin(ctx context.Context, id string) error
	UploadRegistry(ctx context.Context, repoURL string) error
}

// Store caches the last fetched pages. Nothing here is persisted.
type Store struct {
	api API

	mu      sync.RWMutex
	current *Base
	bases   []Base
	docs    []DocRecord
	plugins []Plugin
	active  []Plugin
}

func New(api API) *Store {
	return &Store{api: api}
}

// ---- knowledge bases ----

// FetchBases loads a page of knowledge bases and returns the total count.
// Only LocalAI pages replace the cached list.
func (s *Store) FetchBases(ctx context.Context, q BaseQuery) (int, error) {
	if q.Kind == "" {
		q.Kind = KindLocalAI
	}
	bases, total, err := s.api.ListKnowledgeBases(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("failed to list knowledge bases: %w", err)
	}
	if q.Kind == KindLocalAI {
		s.mu.Lock()
		s.bases = bases
		s.mu.Unlock()
	}
	return total, nil
}

func (s *Store) Bases() []Base {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.bases)
}

func (s *Store) SetCurrent(b Base) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = &b
}

func (s *Store) Current() (Base, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return Base{}, false
	}
	return *s.current, true
}

// Create registers a knowledge base. Server-owned fields are cleared first.
func (s *Store) Create(ctx context.Context, b Base) (Base, error) {
	b.ID = ""
	b.UserID = ""
	created, err := s.api.CreateKnowledgeBase(ctx, b)
	if err != nil {
		return Base{}, fmt.Errorf("failed to create knowledge base: %w", err)
	}
	return created, nil
}

// Update sends every field of b except its id. Global bases drop user_id.
func (s *Store) Update(ctx context.Context, b Base) (Base, error) {
	if b.ID == "" {
		return Base{}, errors.New("knowledge base id is required")
	}
	fields := map[string]any{
		"name":                 b.Name,
		"icon":                 b.Icon,
		"description":          b.Description,
		"is_global":            b.IsGlobal,
		"use_plugins":          b.UsePlugins,
		"assistant_id":         b.AssistantID,
		"file_ids":             b.FileIDs,
		"use_code_interpreter": b.UseCodeInterpreter,
		"use_retrieval":        b.UseRetrieval,
		"type":                 b.Type,
		"parent_node_token":    b.ParentNodeToken,
		"space_id":             b.SpaceID,
	}
	if !b.IsGlobal {
		fields["user_id"] = b.UserID
	}
	updated, err := s.api.UpdateKnowledgeBase(ctx, b.ID, fields)
	if err != nil {
		return Base{}, fmt.Errorf("failed to update knowledge base: %w", err)
	}
	return updated, nil
}

func (s *Store) Delete(ctx context.Context, id string, mode store.AiMode) error {
	if err := s.api.DeleteKnowledgeBase(ctx, id, mode); err != nil {
		return fmt.Errorf("failed to delete knowledge base: %w", err)
	}
	return nil
}

// UsePlugins returns the plugins enabled for a knowledge base.
func (s *Store) UsePlugins(ctx context.Context, id string) ([]Plugin, error) {
	plugins, err := s.api.UsePlugins(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get plugins of knowledge base: %w", err)
	}
	return plugins, nil
}

// ---- documents ----

func (s *Store) FetchDocs(ctx context.Context, q DocQuery) (int, error) {
	docs, total, err := s.api.ListDocRecords(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("failed to list documents: %w", err)
	}
	if docs == nil {
		docs = []DocRecord{}
	}
	s.mu.Lock()
	s.docs = docs
	s.mu.Unlock()
	return total, nil
}

func (s *Store) Docs() []DocRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.docs)
}

func (s *Store) DeleteDoc(ctx context.Context, filename, knowledgeBaseID string, mode store.AiMode) error {
	if err := s.api.DeleteDocRecordByFilename(ctx, filename, knowledgeBaseID, mode); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// IngestText adds raw text to the local vector store.
func (s *Store) IngestText(ctx context.Context, text string) error {
	if text == "" {
		return errors.New("text is required")
	}
	if err := s.api.IngestText(ctx, text); err != nil {
		return fmt.Errorf("failed to ingest text: %w", err)
	}
	return nil
}

// ---- plugins ----

// FetchPlugins loads installed plugins followed by registry plugins.
func (s *Store) FetchPlugins(ctx context.Context) ([]Plugin, error) {
	installed, registry, err := s.api.AllPlugins(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list plugins: %w", err)
	}
	all := append(slices.Clone(installed), registry...)

	s.mu.Lock()
	s.plugins = all
	s.mu.Unlock()
	return slices.Clone(all), nil
}

// FetchActivePlugins loads the active plugins, hiding CorePlugin.
func (s *Store) FetchActivePlugins(ctx context.Context) ([]Plugin, error) {
	plugins, err := s.api.ActivePlugins(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active plugins: %w", err)
	}
	active := slices.DeleteFunc(plugins, func(p Plugin) bool { return p.ID == CorePlugin })

	s.mu.Lock()
	s.active = active
	s.mu.Unlock()
	return slices.Clone(active), nil
}

func (s *Store) Plugins() []Plugin {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.plugins)
}

func (s *Store) ActivePlugins() []Plugin {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.active)
}

func (s *Store) DeletePlugin(ctx context.Context, id string) error {
	if err := s.api.DeletePlugin(ctx, id); err != nil {
		return fmt.Errorf("failed to delete plugin: %w", err)
	}
	return nil
}

func (s *Store) TogglePlugin(ctx context.Context, id string) error {
	if err := s.api.TogglePlugin(ctx, id); err != nil {
		return fmt.Errorf("failed to toggle plugin: %w", err)
	}
	return nil
}

// InstallFromRegistry installs the plugins listed by a repository registry.
func (s *Store) InstallFromRegistry(ctx context.Context, repoURL string) error {
	if err := s.api.UploadRegistry(ctx, repoURL); err != nil {
		return fmt.Errorf("failed to upload registry: %w", err)
	}
	return nil
}
