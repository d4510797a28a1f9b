package contribution

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps contributions in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	valid   []Contribution
	invalid []InvalidContribution
	closed  bool
	now     func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (m *MemoryStore) SaveValid(ctx context.Context, c Contribution) (Contribution, error) {
	if err := ctx.Err(); err != nil {
		return Contribution{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Contribution{}, ErrClosed
	}
	stamp(&c.ID, &c.ReceivedAt, m.now)
	c.StationID = strings.ToUpper(c.StationID)
	m.valid = append(m.valid, c)
	return c, nil
}

func (m *MemoryStore) SaveInvalid(ctx context.Context, c InvalidContribution) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	stamp(&c.ID, &c.ReceivedAt, m.now)
	m.invalid = append(m.invalid, c)
	return nil
}

func (m *MemoryStore) ListByStation(ctx context.Context, stationID string, limit int) ([]Contribution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	var out []Contribution
	for i := len(m.valid) - 1; i >= 0; i-- {
		if strings.EqualFold(m.valid[i].StationID, stationID) {
			out = append(out, m.valid[i])
		}
	}
	slices.SortStableFunc(out, func(a, b Contribution) int {
		return b.ReceivedAt.Compare(a.ReceivedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Valid returns a snapshot of every accepted contribution in save order.
func (m *MemoryStore) Valid() []Contribution {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.valid)
}

// Invalid returns a snapshot of every audit record in save order.
func (m *MemoryStore) Invalid() []InvalidContribution {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.invalid)
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
