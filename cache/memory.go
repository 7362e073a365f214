package cache

import (
	"context"
	"sync"
	"time"
)

const cleanupInterval = time.Minute

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is an in-process Store, used in tests and when Redis is not
// configured at all.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewMemoryStore creates an in-memory store with periodic cleanup of expired
// entries.
func NewMemoryStore() *MemoryStore {
	ms := &MemoryStore{
		entries: make(map[string]memoryEntry),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	go ms.cleanup()
	return ms
}

// Get retrieves a value. A missing or expired key is (nil, nil).
func (ms *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	ms.mu.RLock()
	entry, exists := ms.entries[key]
	ms.mu.RUnlock()

	if !exists {
		return nil, nil
	}
	if time.Now().After(entry.expiresAt) {
		ms.mu.Lock()
		delete(ms.entries, key)
		ms.mu.Unlock()
		return nil, nil
	}
	return entry.value, nil
}

// Set stores a value with the given TTL.
func (ms *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	ms.mu.Lock()
	ms.entries[key] = memoryEntry{value: valueCopy, expiresAt: time.Now().Add(ttl)}
	ms.mu.Unlock()
	return nil
}

// Delete removes a key, reporting whether it existed.
func (ms *MemoryStore) Delete(ctx context.Context, key string) (bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	_, exists := ms.entries[key]
	delete(ms.entries, key)
	return exists, nil
}

// Ping always succeeds.
func (ms *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close stops the cleanup goroutine.
func (ms *MemoryStore) Close() error {
	close(ms.stopCh)
	<-ms.doneCh
	return nil
}

// cleanup periodically removes expired entries.
func (ms *MemoryStore) cleanup() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	defer close(ms.doneCh)

	for {
		select {
		case <-ticker.C:
			ms.removeExpired()
		case <-ms.stopCh:
			return
		}
	}
}

func (ms *MemoryStore) removeExpired() {
	now := time.Now()

	ms.mu.Lock()
	defer ms.mu.Unlock()

	for key, entry := range ms.entries {
		if now.After(entry.expiresAt) {
			delete(ms.entries, key)
		}
	}
}
