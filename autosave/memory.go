package autosave

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/meridianpress/draftsync/internal/common"
)

// MemoryStore implements Store in process memory. It is the degraded-mode
// fallback when the durable store is unavailable (snapshots then do not
// survive a restart) and the default store in tests.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]string)}
}

func (s *MemoryStore) Save(ctx context.Context, key string, snap Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return &common.LocalStorageError{Key: key, Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = string(payload)
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, key string) (Snapshot, error) {
	s.mu.RLock()
	payload, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return nil, &common.LocalStorageError{Key: key, Err: common.ErrNotFound}
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return nil, &common.LocalStorageError{Key: key, Err: err}
	}
	delete(snap, timestampField)
	return snap, nil
}

func (s *MemoryStore) Clear(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}
