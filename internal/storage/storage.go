package storage

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultMemoryEntries = 256
	defaultTTL           = time.Hour
)

var (
	// ErrNotFound is returned when a key is absent or expired.
	ErrNotFound = errors.New("cache entry not found")
	// ErrInvalidKey is returned for empty keys.
	ErrInvalidKey = errors.New("cache key must not be empty")
)

// Store keeps serialized feedback responses keyed by request fingerprint.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// Stats reports cache effectiveness.
type Stats struct {
	Hits   int64
	Misses int64
	Items  int
}

// MemoryStore is an expiring LRU kept in process memory.
type MemoryStore struct {
	entries *expirable.LRU[string, []byte]
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewMemoryStore creates a store holding at most size entries for ttl each.
// Non-positive arguments fall back to defaults.
func NewMemoryStore(size int, ttl time.Duration) *MemoryStore {
	if size <= 0 {
		size = defaultMemoryEntries
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &MemoryStore{
		entries: expirable.NewLRU[string, []byte](size, nil, ttl),
	}
}

// Get returns a copy of the stored value.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}
	value, ok := s.entries.Get(key)
	if !ok {
		s.misses.Add(1)
		return nil, ErrNotFound
	}
	s.hits.Add(1)
	return clone(value), nil
}

// Set stores a copy of value.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	if key == "" {
		return ErrInvalidKey
	}
	s.entries.Add(key, clone(value))
	return nil
}

// Stats returns hit and miss counters.
func (s *MemoryStore) Stats() Stats {
	return Stats{
		Hits:   s.hits.Load(),
		Misses: s.misses.Load(),
		Items:  s.entries.Len(),
	}
}

// Close drops all entries.
func (s *MemoryStore) Close() error {
	s.entries.Purge()
	return nil
}

func clone(src []byte) []byte {
	out := make([]byte, len(src))
	copy(out, src)
	return out
}
