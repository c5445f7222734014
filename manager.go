// manager.go

// Registry operations. Structural changes take the write lock, snapshots take the read lock.
package main

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
)

func NewClientManager() *ClientManager {
	return &ClientManager{
		clients: make(map[uuid.UUID]*clientRecord),
	}
}

// Insert adds a client with an empty name.
func (m *ClientManager) Insert(id uuid.UUID, outbox chan<- ChatMessage, done <-chan struct{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.clients[id]; ok {
		return fmt.Errorf("insert %s: %w", id, ErrDuplicateClient)
	}
	m.clients[id] = &clientRecord{outbox: outbox, done: done}
	m.order = append(m.order, id)
	return nil
}

// UpdateName replaces the display name of an existing client.
func (m *ClientManager) UpdateName(id uuid.UUID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.clients[id]
	if !ok {
		return fmt.Errorf("update name %s: %w", id, ErrUnknownClient)
	}
	rec.name = name
	return nil
}

// Remove deletes a client. Removing an absent client is a no-op.
func (m *ClientManager) Remove(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.clients[id]; !ok {
		return
	}
	delete(m.clients, id)
	if i := slices.Index(m.order, id); i >= 0 {
		m.order = slices.Delete(m.order, i, i+1)
	}
}

// Names returns every registered name, unset ones included, in connection order.
func (m *ClientManager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.order))
	for _, id := range m.order {
		names = append(names, m.clients[id].name)
	}
	return names
}

// Recipients returns the inbox handles of every registered client.
func (m *ClientManager) Recipients() []Recipient {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Recipient, 0, len(m.order))
	for _, id := range m.order {
		rec := m.clients[id]
		out = append(out, Recipient{ID: id, Outbox: rec.outbox, Done: rec.done})
	}
	return out
}

func (m *ClientManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}
