package livelist

import (
	"context"
	"sync"
)

type keyed interface {
	Key() string
}

// Memory is a Collection held in process memory, in insertion order.
type Memory[T keyed] struct {
	mu    sync.RWMutex
	items []T
}

func NewMemory[T keyed](seed ...T) *Memory[T] {
	return &Memory[T]{items: append([]T(nil), seed...)}
}

func (m *Memory[T]) List(_ context.Context) ([]T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]T(nil), m.items...), nil
}

func (m *Memory[T]) Create(_ context.Context, item T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, item)
	return nil
}

func (m *Memory[T]) Update(_ context.Context, id string, mutate func(T) (T, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, item := range m.items {
		if item.Key() != id {
			continue
		}
		next, err := mutate(item)
		if err != nil {
			return err
		}
		m.items[i] = next
		return nil
	}
	return ErrNotFound
}

func (m *Memory[T]) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, item := range m.items {
		if item.Key() == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}
