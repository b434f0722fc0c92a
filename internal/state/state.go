package state

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Entry is the stored value of one key together with its write sequence.
type Entry struct {
	Value json.RawMessage `json:"value"`
	Seq   int64           `json:"seq"`
}

// Store abstracts the persistence backend. Every key holds one JSON document
// (a whole collection) and a sequence number that only moves forward.
type Store interface {
	// Apply writes value when seq is newer than the stored sequence.
	Apply(key string, value []byte, seq int64) (applied bool, cur Entry, err error)
	Get(key string) (Entry, bool)
	Range(fn func(key string, e Entry) error) error
	LoadAll(all map[string]Entry)
}

// InMemoryStore is a simple thread-safe map store.
type InMemoryStore struct {
	mu   sync.RWMutex
	data map[string]Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{data: make(map[string]Entry)}
}

// LoadAll replaces the store contents with the provided snapshot.
func (s *InMemoryStore) LoadAll(all map[string]Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]Entry, len(all))
	for k, v := range all {
		s.data[k] = cloneEntry(v)
	}
}

func (s *InMemoryStore) Apply(key string, value []byte, seq int64) (bool, Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.data[key]
	if seq <= cur.Seq {
		return false, cloneEntry(cur), nil
	}
	cur = Entry{Value: append(json.RawMessage(nil), value...), Seq: seq}
	s.data[key] = cur
	return true, cloneEntry(cur), nil
}

func (s *InMemoryStore) Get(key string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[key]
	return cloneEntry(e), ok
}

func (s *InMemoryStore) Range(fn func(key string, e Entry) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k, v := range s.data {
		if err := fn(k, cloneEntry(v)); err != nil {
			return fmt.Errorf("range callback failed: %w", err)
		}
	}
	return nil
}

func cloneEntry(e Entry) Entry {
	if e.Value != nil {
		e.Value = append(json.RawMessage(nil), e.Value...)
	}
	return e
}

func encodeEntry(e Entry) ([]byte, error) { return json.Marshal(e) }
func decodeEntry(val []byte) (Entry, error) {
	var e Entry
	if err := json.Unmarshal(val, &e); err != nil {
		return Entry{}, err
	}
	return e, nil
}
