// Package image drives text-to-image generation.
package image

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// API is the backend used by Store.
type API interface {
	GenerateImage(ctx context.Context, req Request) (string, error)
	ListImages(ctx context.Context, q Query) ([]Image, int, error)
}

// Store remembers the last generated URL and the last fetched page.
type Store struct {
	api API

	mu      sync.RWMutex
	url     string
	records []Image
}

func New(api API) *Store {
	return &Store{api: api}
}

// Generate renders an image and returns its URL.
func (s *Store) Generate(ctx context.Context, req Request) (string, error) {
	if req.Query == "" {
		return "", errors.New("query is required")
	}
	url, err := s.api.GenerateImage(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.url = ""
		return "", fmt.Errorf("failed to generate image: %w", err)
	}
	s.url = url
	return url, nil
}

func (s *Store) URL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.url
}

// FetchPage loads a page of images and returns the total count.
func (s *Store) FetchPage(ctx context.Context, q Query) (int, error) {
	records, total, err := s.api.ListImages(ctx, q)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.records = nil
		return 0, fmt.Errorf("failed to list images: %w", err)
	}
	if records == nil {
		records = []Image{}
	}
	s.records = records
	return total, nil
}

func (s *Store) Records() []Image {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.records)
}
