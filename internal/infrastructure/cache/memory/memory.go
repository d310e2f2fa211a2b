// Package memory provides an in-process ports.CacheStore, used by tests and
// single-process deployments. Expiry is lazy: expired entries are dropped on
// read, there is no background sweeper.
package memory

import (
	"context"
	"sync"
	"time"
)

type item struct {
	value      []byte
	expiration int64 // unix nanos; 0 means no expiry
}

// Store is a mutex-guarded map with per-entry TTLs.
type Store struct {
	mu    sync.RWMutex
	items map[string]item
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{items: make(map[string]item)}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	it, found := s.items[key]
	s.mu.RUnlock()

	if !found {
		return nil, false, nil
	}
	if it.expiration > 0 && time.Now().UnixNano() > it.expiration {
		s.mu.Lock()
		delete(s.items, key)
		s.mu.Unlock()
		return nil, false, nil
	}
	return it.value, true, nil
}

// Set stores the value. A non-positive ttl stores it without expiry,
// matching Redis's treatment of zero.
func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var expiration int64
	if ttl > 0 {
		expiration = time.Now().Add(ttl).UnixNano()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = item{value: value, expiration: expiration}
	return nil
}

func (s *Store) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.items, k)
	}
	return nil
}

// Len reports the number of live entries, expired ones included until read.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
