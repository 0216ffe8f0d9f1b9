package convstate

import (
	"context"
	"sync"
	"time"

	"finbot/internal/domain"
)

type entry struct {
	pc        domain.PendingContext
	expiresAt time.Time
}

// Memory is an in-process Store. It is safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// Option configures a Memory store.
type Option func(*Memory)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// WithTTL overrides the default TTL.
func WithTTL(ttl time.Duration) Option {
	return func(m *Memory) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// NewMemory creates an empty in-process store.
func NewMemory(opts ...Option) *Memory {
	m := &Memory{
		entries: make(map[string]entry),
		ttl:     TTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Put(_ context.Context, conversant string, pc domain.PendingContext) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[conversant] = entry{pc: pc, expiresAt: ExpiresAt(pc, m.ttl, m.now())}
	return nil
}

func (m *Memory) Get(_ context.Context, conversant string) (domain.PendingContext, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(conversant)
	if !ok {
		return nil, false, nil
	}
	return e.pc, true, nil
}

func (m *Memory) TakeAndClear(_ context.Context, conversant string) (domain.PendingContext, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(conversant)
	if !ok {
		return nil, false, nil
	}
	delete(m.entries, conversant)
	return e.pc, true, nil
}

func (m *Memory) Clear(_ context.Context, conversant string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, conversant)
	return nil
}

func (m *Memory) Has(ctx context.Context, conversant string) (bool, error) {
	_, ok, err := m.Get(ctx, conversant)
	return ok, err
}

// live returns the entry if it has not expired, dropping it otherwise.
// Callers hold m.mu.
func (m *Memory) live(conversant string) (entry, bool) {
	e, ok := m.entries[conversant]
	if !ok {
		return entry{}, false
	}
	if Expired(e.expiresAt, m.now()) {
		delete(m.entries, conversant)
		return entry{}, false
	}
	return e, true
}
