package store

import (
	"sort"
	"sync"

	"techrepair-server/internal/model"
)

// messageStore is the append-only chat log, keyed by connection ID.
type messageStore struct {
	mu   sync.RWMutex
	data map[string][]model.Message
}

func newMessageStore() *messageStore {
	return &messageStore{data: make(map[string][]model.Message)}
}

func (m *messageStore) append(connectionID string, msg model.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[connectionID] = append(m.data[connectionID], msg)
}

func (m *messageStore) list(connectionID string) []model.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msgs := m.data[connectionID]
	result := make([]model.Message, len(msgs))
	copy(result, msgs)
	// Appends arrive in order, but ties on CreatedAt keep insertion order.
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt < result[j].CreatedAt
	})
	return result
}

func (m *messageStore) deleteConnection(connectionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, connectionID)
}
