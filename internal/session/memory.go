package session

import (
	"context"
	"sync"

	"github.com/tm-acme-shop/acme-shop-cart-service/internal/cart"
)

var _ Store = (*MemoryStore)(nil)

type memorySession struct {
	lines  []cart.Line
	values map[string]string
}

// MemoryStore keeps sessions in process memory. It is meant for local
// development and tests; nothing survives a restart.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*memorySession
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*memorySession)}
}

func (m *MemoryStore) session(id string) *memorySession {
	s, ok := m.sessions[id]
	if !ok {
		s = &memorySession{values: make(map[string]string)}
		m.sessions[id] = s
	}
	return s
}

func (m *MemoryStore) CartLines(ctx context.Context, sessionID string) ([]cart.Line, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	out := make([]cart.Line, len(s.lines))
	copy(out, s.lines)
	return out, nil
}

func (m *MemoryStore) PutCartLine(ctx context.Context, sessionID, productID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.session(sessionID)
	for i := range s.lines {
		if s.lines[i].ProductID == productID {
			s.lines[i].Quantity = quantity
			return nil
		}
	}
	s.lines = append(s.lines, cart.Line{ProductID: productID, Quantity: quantity})
	return nil
}

func (m *MemoryStore) DeleteCartLines(ctx context.Context, sessionID string, productIDs ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil
	}
	drop := make(map[string]struct{}, len(productIDs))
	for _, id := range productIDs {
		drop[id] = struct{}{}
	}
	kept := s.lines[:0]
	for _, l := range s.lines {
		if _, gone := drop[l.ProductID]; !gone {
			kept = append(kept, l)
		}
	}
	s.lines = kept
	return nil
}

func (m *MemoryStore) ClearCart(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[sessionID]; ok {
		s.lines = nil
	}
	return nil
}

func (m *MemoryStore) Value(ctx context.Context, sessionID, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return "", false, nil
	}
	v, ok := s.values[key]
	return v, ok, nil
}

func (m *MemoryStore) SetValue(ctx context.Context, sessionID, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.session(sessionID).values[key] = value
	return nil
}

func (m *MemoryStore) DeleteValue(ctx context.Context, sessionID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[sessionID]; ok {
		delete(s.values, key)
	}
	return nil
}

func (m *MemoryStore) Destroy(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, sessionID)
	return nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}
