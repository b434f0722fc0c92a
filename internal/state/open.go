package state

import (
	"fmt"
	"os"
	"path/filepath"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendPebble = "pebble"
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
)

// Open builds the named backend rooted at dir. The returned close func is
// never nil.
func Open(backend string, dir string) (Store, func() error, error) {
	noop := func() error { return nil }
	switch backend {
	case BackendMemory, "":
		return NewInMemoryStore(), noop, nil
	case BackendPebble:
		ps, err := NewPebbleStore(filepath.Join(dir, "pebble"))
		if err != nil {
			return nil, noop, err
		}
		return ps, ps.Close, nil
	case BackendBadger:
		bs, err := NewBadgerStore(filepath.Join(dir, "badger"))
		if err != nil {
			return nil, noop, err
		}
		return bs, bs.Close, nil
	case BackendSQLite:
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, noop, fmt.Errorf("mkdir: %w", err)
		}
		ss, err := NewSQLiteStore(filepath.Join(dir, "shoplist.db"))
		if err != nil {
			return nil, noop, err
		}
		return ss, ss.Close, nil
	}
	return nil, noop, fmt.Errorf("unknown state backend %q (want memory|pebble|badger|sqlite)", backend)
}
