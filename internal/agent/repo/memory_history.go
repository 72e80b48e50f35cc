package repo

import (
	"context"
	"sync"

	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/model"
)

// MemoryHistoryRepository keeps history in process. It is used when no
// Redis URL is configured and in tests.
type MemoryHistoryRepository struct {
	mu      sync.RWMutex
	limit   int
	entries map[string][]model.HistoryEntry
}

func NewMemoryHistoryRepository(limit int) *MemoryHistoryRepository {
	return &MemoryHistoryRepository{limit: limit, entries: map[string][]model.HistoryEntry{}}
}

func (r *MemoryHistoryRepository) Append(_ context.Context, key string, entry model.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := append(r.entries[key], entry)
	if r.limit > 0 && len(list) > r.limit {
		list = append([]model.HistoryEntry(nil), list[len(list)-r.limit:]...)
	}
	r.entries[key] = list
	return nil
}

func (r *MemoryHistoryRepository) Recent(_ context.Context, key string, n int) ([]model.HistoryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.entries[key]
	if n <= 0 {
		return []model.HistoryEntry{}, nil
	}
	if len(list) > n {
		list = list[len(list)-n:]
	}
	return append([]model.HistoryEntry{}, list...), nil
}

func (r *MemoryHistoryRepository) Count(_ context.Context, key string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries[key]), nil
}

func (r *MemoryHistoryRepository) Clear(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key)
	return nil
}

var _ model.HistoryRepository = (*MemoryHistoryRepository)(nil)
