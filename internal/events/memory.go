package events

import (
	"context"
	"sync"

	"docketline/internal/domain"
	"docketline/internal/repo"
)

const defaultMemoryCapacity = 1000

// Memory keeps the most recent events in a ring. It backs the event listing
// when the ephemeral store is in use, and doubles as an Emitter in tests.
type Memory struct {
	mu       sync.Mutex
	capacity int
	nextID   int64
	items    []domain.Event
}

func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = defaultMemoryCapacity
	}
	return &Memory{capacity: capacity}
}

func (*Memory) Name() string { return "memory" }

func (m *Memory) Deliver(_ context.Context, evt domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	evt.ID = m.nextID
	m.items = append(m.items, evt)
	if len(m.items) > m.capacity {
		m.items = m.items[len(m.items)-m.capacity:]
	}
	return nil
}

// Emit delivers synchronously.
func (m *Memory) Emit(ctx context.Context, evt domain.Event) {
	_ = m.Deliver(ctx, evt)
}

// Events returns a copy of the retained events, oldest first.
func (m *Memory) Events() []domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Event, len(m.items))
	copy(out, m.items)
	return out
}

// Types returns the retained event types in order.
func (m *Memory) Types() []string {
	evts := m.Events()
	out := make([]string, len(evts))
	for i, e := range evts {
		out[i] = e.Type
	}
	return out
}

// ListEvents mirrors repo.Repo.ListEvents over the retained ring.
func (m *Memory) ListEvents(_ context.Context, f repo.EventFilter) ([]domain.Event, error) {
	evts := m.Events()
	var out []domain.Event
	for i := len(evts) - 1; i >= 0; i-- {
		if !f.Match(evts[i]) {
			continue
		}
		out = append(out, evts[i])
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}
