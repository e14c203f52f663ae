package webhook

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ProcessedEventStore remembers webhook event ids that were already dispatched
type ProcessedEventStore interface {
	// MarkIfAbsent records id and reports whether it was seen for the first time.
	// Two concurrent calls with the same id never both return true.
	MarkIfAbsent(ctx context.Context, id string) (bool, error)
}

// Defaults for MemoryStore
const (
	DefaultDedupCapacity = 10000
	DefaultDedupTTL      = 24 * time.Hour
)

// MemoryStore is an in-process ProcessedEventStore bounded by entry count and age
type MemoryStore struct {
	cache *expirable.LRU[string, int64]
	mu    sync.Mutex
}

// NewMemoryStore creates a store holding at most capacity ids, each for ttl
func NewMemoryStore(capacity int, ttl time.Duration) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultDedupCapacity
	}
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &MemoryStore{
		cache: expirable.NewLRU[string, int64](capacity, nil, ttl),
	}
}

// MarkIfAbsent implements ProcessedEventStore
func (s *MemoryStore) MarkIfAbsent(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Get rather than Contains: Get ignores entries past their ttl that the
	// background sweep has not removed yet
	if _, ok := s.cache.Get(id); ok {
		return false, nil
	}
	s.cache.Add(id, time.Now().UnixMilli())
	return true, nil
}

// Len returns the number of remembered ids
func (s *MemoryStore) Len() int {
	return s.cache.Len()
}
