package storage

import (
	"context"
	"sort"
	"sync"
)

// memoryStore keeps everything in process memory. It honors the same replace
// semantics as the sqlite driver and exists for tests and token-less dev runs.
type memoryStore struct {
	mu     sync.RWMutex
	users  map[int64]User
	topics map[int64]map[string]struct{}
}

func NewMemory() Store {
	return &memoryStore{
		users:  map[int64]User{},
		topics: map[int64]map[string]struct{}{},
	}
}

func (m *memoryStore) UpsertUser(_ context.Context, u User) error {
	m.mu.Lock()
	m.users[u.ID] = u
	m.mu.Unlock()
	return nil
}

func (m *memoryStore) GetTopics(_ context.Context, userID int64) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := m.topics[userID]
	if len(set) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}

func (m *memoryStore) ReplaceTopics(_ context.Context, userID int64, topicIDs []string) error {
	next := make(map[string]struct{}, len(topicIDs))
	for _, t := range topicIDs {
		next[t] = struct{}{}
	}
	m.mu.Lock()
	if len(next) == 0 {
		delete(m.topics, userID)
	} else {
		m.topics[userID] = next
	}
	m.mu.Unlock()
	return nil
}

func (m *memoryStore) ListSubscribedUserIDs(_ context.Context) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]int64, 0, len(m.topics))
	for id, set := range m.topics {
		if len(set) > 0 {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (m *memoryStore) Close() error { return nil }
