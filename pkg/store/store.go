// Package store provides the session-scoped key/value storage that holds
// auth tokens, the cached user profile and saved chat transcripts.
package store

import (
	"errors"
	"sync"
)

var (
	// ErrUnavailable is returned when the backing storage cannot be used at all.
	ErrUnavailable = errors.New("store: storage unavailable")
	// ErrNotFound is returned by Get when the key has no value.
	ErrNotFound = errors.New("store: key not found")
)

// Store is a string key/value store scoped to one session.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
	// Clear removes every key belonging to the current session.
	Clear() error
}

// MemoryStore keeps values in process memory only.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	delete(m.values, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	m.values = make(map[string]string)
	m.mu.Unlock()
	return nil
}

// UnavailableStore fails every operation, the way browser session storage
// does in some private-browsing modes.
type UnavailableStore struct{}

func (UnavailableStore) Get(string) (string, error) { return "", ErrUnavailable }
func (UnavailableStore) Set(string, string) error   { return ErrUnavailable }
func (UnavailableStore) Delete(string) error        { return ErrUnavailable }
func (UnavailableStore) Clear() error               { return ErrUnavailable }
