// Package memory is an ephemeral backend for tests and demo runs. Values
// still pass through JSON so serialization behaviour matches the durable
// backends, including the time-field round-trip.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

type Store struct {
	mu   sync.RWMutex
	data map[string]json.RawMessage
}

func New() *Store {
	return &Store{data: make(map[string]json.RawMessage)}
}

func (s *Store) Get(_ context.Context, key string, dest any) (bool, error) {
	s.mu.RLock()
	raw, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("memory store: decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) Set(_ context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("memory store: encode %s: %w", key, err)
	}
	s.mu.Lock()
	s.data[key] = raw
	s.mu.Unlock()
	return nil
}

func (s *Store) Close() error {
	return nil
}
