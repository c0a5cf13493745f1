package storage

import (
	"context"
	"sync"
)

// MemoryStorage is a process-local store. Slices are copied on the way in
// and out so callers never share backing arrays with it.
type MemoryStorage struct {
	mu   sync.RWMutex
	pkgs []Package
}

func NewMemoryStorage(seed ...Package) *MemoryStorage {
	return &MemoryStorage{pkgs: clonePackages(seed)}
}

func (m *MemoryStorage) LoadAll(ctx context.Context) ([]Package, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return clonePackages(m.pkgs), nil
}

func (m *MemoryStorage) SaveAll(ctx context.Context, pkgs []Package) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pkgs = clonePackages(pkgs)
	return nil
}
