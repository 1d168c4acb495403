package state

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps auth flow state in process memory. Suitable for a single
// bridge instance; use the redis backend when running more than one replica,
// since a callback may land on a different instance than the login.
type MemoryStore struct {
	mu     sync.RWMutex
	items  map[string]memoryItem
	stopCh chan struct{}
}

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	ms := &MemoryStore{
		items:  make(map[string]memoryItem),
		stopCh: make(chan struct{}),
	}

	go ms.reap()

	return ms
}

func (ms *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	item, ok := ms.items[key]
	if !ok || time.Now().After(item.expiresAt) {
		return nil, ErrNotFound
	}

	value := make([]byte, len(item.value))
	copy(value, item.value)
	return value, nil
}

func (ms *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)

	ms.items[key] = memoryItem{
		value:     stored,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

func (ms *MemoryStore) Delete(ctx context.Context, key string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	delete(ms.items, key)
	return nil
}

func (ms *MemoryStore) Close() error {
	close(ms.stopCh)
	return nil
}

// reap drops expired entries so abandoned login flows do not accumulate.
func (ms *MemoryStore) reap() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ms.mu.Lock()
			now := time.Now()
			for key, item := range ms.items {
				if now.After(item.expiresAt) {
					delete(ms.items, key)
				}
			}
			ms.mu.Unlock()
		case <-ms.stopCh:
			return
		}
	}
}
