package shortcode

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. It backs the "memory" store backend
// and tests; records live as long as the value.
type MemoryStore struct {
	mu      sync.RWMutex
	next    Code
	max     Code
	records map[Code]Record
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore allocates from initial up to max. A zero max is unbounded.
func NewMemoryStore(initial, max Code) *MemoryStore {
	if !initial.Valid() {
		initial = 1
	}
	return &MemoryStore{next: initial, max: max, records: map[Code]Record{}}
}

func (m *MemoryStore) Allocate(ctx context.Context) (Code, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for {
		if m.max > 0 && m.next > m.max {
			return 0, ErrExhausted
		}
		c := m.next
		m.next++
		if _, taken := m.records[c]; !taken {
			return c, nil
		}
	}
}

func (m *MemoryStore) Put(ctx context.Context, code Code, anchorID string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !code.Valid() {
		return fmt.Errorf("put %d: %w", code, ErrInvalidCode)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.records[code]; taken {
		return fmt.Errorf("put %d: %w", code, ErrAlreadyExists)
	}
	m.records[code] = Record{Code: code, AnchorID: anchorID, CreatedAt: time.Now().UTC()}
	return nil
}

func (m *MemoryStore) Lookup(ctx context.Context, code Code) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !code.Valid() {
		return "", fmt.Errorf("lookup %d: %w", code, ErrInvalidCode)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[code]
	if !ok {
		return "", fmt.Errorf("lookup %d: %w", code, ErrNotFound)
	}
	return rec.AnchorID, nil
}
