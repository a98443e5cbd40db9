package storage

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Keys under which the client persists its state.
const (
	KeyChat         = "chatStorage"
	KeyPrompt       = "promptStore"
	KeyUser         = "userStorage"
	KeyToken        = "SECRET_TOKEN"
	KeyRefreshToken = "SECRET_REFRESH_TOKEN"
)

// Store persists JSON-encodable values under string keys.
type Store interface {
	// Get decodes the value stored under key into v.
	// It reports false, with a nil error, when nothing is stored under key.
	Get(key string, v any) (bool, error)

	// Set encodes v and stores it under key, replacing any previous value.
	Set(key string, v any) error

	// Remove deletes the value stored under key. Removing a missing key is not an error.
	Remove(key string) error

	// Clear deletes every stored value.
	Clear() error

	// Close releases any resources held by the store.
	Close() error
}

// Memory is an in-process Store. Values are kept encoded so that callers
// observe the same copy semantics as the persistent implementations.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(key string, v any) (bool, error) {
	m.mu.RLock()
	raw, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

func (m *Memory) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = raw
	return nil
}

func (m *Memory) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string][]byte)
	return nil
}

func (m *Memory) Close() error { return nil }
