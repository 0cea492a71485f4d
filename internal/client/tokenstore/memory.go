package tokenstore

import (
	"context"
	"sync"
)

// Memory keeps the pair in process memory
type Memory struct {
	mu   sync.RWMutex
	pair Pair
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Set(_ context.Context, pair Pair) error {
	m.mu.Lock()
	m.pair = pair
	m.mu.Unlock()
	return nil
}

func (m *Memory) Get(context.Context) Pair {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pair.Normalize()
}

func (m *Memory) Remove(context.Context) error {
	m.mu.Lock()
	m.pair = Pair{}
	m.mu.Unlock()
	return nil
}
