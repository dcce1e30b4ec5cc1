package storage

import (
	"context"
	"slices"
	"sync"
)

// MemStore is an in-process KV. Nothing survives the process; it backs tests
// and throwaway runs. Failure hooks let tests simulate a broken disk.
type MemStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	sets   map[string]int
	getErr error
	setErr error
	onSet  func(key string, value []byte) error
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		data: make(map[string][]byte),
		sets: make(map[string]int),
	}
}

func (m *MemStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(v), nil
}

func (m *MemStore) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	hook := m.onSet
	err := m.setErr
	m.mu.Unlock()

	// The hook runs unlocked so it can block without stalling readers.
	if hook != nil {
		if herr := hook(key, value); herr != nil {
			return herr
		}
	}
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = slices.Clone(value)
	m.sets[key]++
	return nil
}

func (m *MemStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemStore) Close() error { return nil }

// FailGets makes every Get return err. nil restores normal behavior.
func (m *MemStore) FailGets(err error) {
	m.mu.Lock()
	m.getErr = err
	m.mu.Unlock()
}

// FailSets makes every Set return err without storing. nil restores normal
// behavior.
func (m *MemStore) FailSets(err error) {
	m.mu.Lock()
	m.setErr = err
	m.mu.Unlock()
}

// OnSet installs a hook called before each Set is applied. A non-nil return
// fails that Set.
func (m *MemStore) OnSet(fn func(key string, value []byte) error) {
	m.mu.Lock()
	m.onSet = fn
	m.mu.Unlock()
}

// Writes returns how many Sets of key have succeeded.
func (m *MemStore) Writes(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets[key]
}
