package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"prism.app/licensing/models"
)

type counterWindow struct {
	count     int
	expiresAt time.Time
}

// MemoryStore is the in-memory Store adapter used by tests and local runs.
type MemoryStore struct {
	mu       sync.RWMutex
	licenses map[string]models.License
	index    map[string][]string
	counters map[string]counterWindow
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		licenses: make(map[string]models.License),
		index:    make(map[string][]string),
		counters: make(map[string]counterWindow),
	}
}

func (m *MemoryStore) Get(ctx context.Context, key string) (*models.License, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	license, exists := m.licenses[key]
	if !exists {
		return nil, ErrNotFound
	}
	return &license, nil
}

func (m *MemoryStore) Put(ctx context.Context, key string, license *models.License) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.licenses[key] = *license
	return nil
}

func (m *MemoryStore) AppendEmailIndex(ctx context.Context, email, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	indexKey := emailIndexKey(email)
	m.index[indexKey] = append(m.index[indexKey], key)
	return nil
}

func (m *MemoryStore) GetEmailIndex(ctx context.Context, email string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := m.index[emailIndexKey(email)]
	out := make([]string, len(keys))
	copy(out, keys)
	return out, nil
}

func (m *MemoryStore) ListByPrefix(ctx context.Context, prefix, cursor string, limit int) ([]*models.License, string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.licenses))
	for key := range m.licenses {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix && key > cursor {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	complete := true
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
		complete = false
	}

	items := make([]*models.License, 0, len(keys))
	for _, key := range keys {
		license := m.licenses[key]
		items = append(items, &license)
	}

	nextCursor := ""
	if !complete && len(keys) > 0 {
		nextCursor = keys[len(keys)-1]
	}

	return items, nextCursor, complete, nil
}

func (m *MemoryStore) IncrCounter(ctx context.Context, key string, window time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	wd, exists := m.counters[key]
	if !exists || now.After(wd.expiresAt) {
		m.counters[key] = counterWindow{count: 1, expiresAt: now.Add(window)}
		return 1, nil
	}

	wd.count++
	m.counters[key] = wd
	return wd.count, nil
}

func (m *MemoryStore) Close() error {
	return nil
}
