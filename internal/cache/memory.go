package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local Store backed by a mutex-guarded map.
// Expired entries are dropped lazily on read and swept by a janitor started
// with Start. Suitable for single-instance deployments and tests; use
// RedisStore when the cache must be shared across processes.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry

	sweepInterval time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryStore creates an in-memory cache store.
func NewMemoryStore(sweepInterval time.Duration) *MemoryStore {
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	return &MemoryStore{
		entries:       make(map[string]memoryEntry),
		sweepInterval: sweepInterval,
		stopCh:        make(chan struct{}),
	}
}

// Get retrieves a value; expired entries are treated as absent and removed.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		// Re-check under write lock: the entry may have been refreshed
		if current, still := s.entries[key]; still && time.Now().After(current.expiresAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, false, nil
	}
	return entry.value, true, nil
}

// Set stores a value with a TTL. Last write wins on concurrent writes to the
// same key.
func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	s.mu.Lock()
	s.entries[key] = memoryEntry{value: stored, expiresAt: time.Now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

// Delete removes a key.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Start runs the janitor until the context is cancelled or Stop is called.
func (s *MemoryStore) Start(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop signals the janitor to exit.
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Len returns the number of live entries. Used by tests and health reporting.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) sweep() {
	now := time.Now()
	s.mu.Lock()
	for key, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, key)
		}
	}
	s.mu.Unlock()
}
