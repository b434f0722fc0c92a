package state

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/pebble"
)

// PebbleStore implements Store using PebbleDB.
type PebbleStore struct {
	db *pebble.DB
	// serializes read-compare-write in Apply
	mu sync.Mutex
}

func NewPebbleStore(dir string) (*PebbleStore, error) {
	opts := &pebble.Options{
		// Collections are small; keep the memtable modest for a phone-sized dataset.
		MemTableSize:          8 << 20,
		L0CompactionThreshold: 4,
		L0StopWritesThreshold: 8,
	}
	d, err := pebble.Open(filepath.Clean(dir), opts)
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &PebbleStore{db: d}, nil
}

func (p *PebbleStore) Close() error { return p.db.Close() }

func (p *PebbleStore) get(k []byte) (Entry, bool, error) {
	v, closer, err := p.db.Get(k)
	if errors.Is(err, pebble.ErrNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	defer closer.Close()
	e, err := decodeEntry(v)
	if err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

func (p *PebbleStore) Apply(key string, value []byte, seq int64) (bool, Entry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	k := []byte(key)
	cur, _, err := p.get(k)
	if err != nil {
		return false, Entry{}, err
	}
	if seq <= cur.Seq {
		return false, cur, nil
	}
	next := Entry{Value: append([]byte(nil), value...), Seq: seq}
	bytes, err := encodeEntry(next)
	if err != nil {
		return false, Entry{}, err
	}
	// Sync: a shopping list write is a user action, not a hot path.
	if err := p.db.Set(k, bytes, pebble.Sync); err != nil {
		return false, Entry{}, err
	}
	return true, next, nil
}

func (p *PebbleStore) Get(key string) (Entry, bool) {
	e, ok, err := p.get([]byte(key))
	if err != nil {
		return Entry{}, false
	}
	return e, ok
}

func (p *PebbleStore) Range(fn func(key string, e Entry) error) error {
	it, err := p.db.NewIter(nil)
	if err != nil {
		return fmt.Errorf("pebble iter: %w", err)
	}
	defer it.Close()
	for it.First(); it.Valid(); it.Next() {
		k := append([]byte(nil), it.Key()...)
		v := append([]byte(nil), it.Value()...)
		e, err := decodeEntry(v)
		if err != nil {
			return err
		}
		if err := fn(string(k), e); err != nil {
			return err
		}
	}
	return nil
}

// LoadAll loads a full snapshot into Pebble by replacing all keys.
func (p *PebbleStore) LoadAll(all map[string]Entry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	// Collect existing keys first, then delete, then write snapshot.
	var toDelete [][]byte
	if it, err := p.db.NewIter(nil); err == nil {
		for it.First(); it.Valid(); it.Next() {
			toDelete = append(toDelete, append([]byte(nil), it.Key()...))
		}
		it.Close()
	}
	wb := p.db.NewBatch()
	defer wb.Close()
	for _, k := range toDelete {
		_ = wb.Delete(k, nil)
	}
	for k, e := range all {
		bytes, err := encodeEntry(e)
		if err != nil {
			continue
		}
		_ = wb.Set([]byte(k), bytes, nil)
	}
	_ = wb.Commit(pebble.Sync)
}
