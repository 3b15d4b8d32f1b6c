package store

import (
	"context"
	"sync"
)

// MemoryBackend keeps collections in process memory.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string][][]string
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][][]string)}
}

func (b *MemoryBackend) Load(ctx context.Context, collection string) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return cloneRows(b.data[collection]), nil
}

func (b *MemoryBackend) Save(ctx context.Context, collection string, _ []string, rows [][]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[collection] = cloneRows(rows)
	return nil
}
