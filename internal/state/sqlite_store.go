package state

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	seq   INTEGER NOT NULL
)`

// SQLiteStore implements Store on a single kv table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path. ":memory:" works
// for tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	// One connection keeps ":memory:" databases shared and writes serialized.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Apply(key string, value []byte, seq int64) (bool, Entry, error) {
	// Only overwrite when the incoming seq is newer.
	res, err := s.db.Exec(`INSERT INTO kv (key, value, seq) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, seq = excluded.seq
		WHERE excluded.seq > kv.seq`, key, string(value), seq)
	if err != nil {
		return false, Entry{}, fmt.Errorf("upsert %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, Entry{}, err
	}
	cur, _, err := s.get(key)
	if err != nil {
		return false, Entry{}, err
	}
	return n > 0, cur, nil
}

func (s *SQLiteStore) get(key string) (Entry, bool, error) {
	var v string
	var e Entry
	err := s.db.QueryRow(`SELECT value, seq FROM kv WHERE key = ?`, key).Scan(&v, &e.Seq)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	e.Value = []byte(v)
	return e, true, nil
}

func (s *SQLiteStore) Get(key string) (Entry, bool) {
	e, ok, err := s.get(key)
	if err != nil {
		return Entry{}, false
	}
	return e, ok
}

func (s *SQLiteStore) Range(fn func(key string, e Entry) error) error {
	rows, err := s.db.Query(`SELECT key, value, seq FROM kv ORDER BY key`)
	if err != nil {
		return err
	}
	// Buffer rows so fn may call back into the store on the single connection.
	type row struct {
		key string
		e   Entry
	}
	var all []row
	for rows.Next() {
		var r row
		var v string
		if err := rows.Scan(&r.key, &v, &r.e.Seq); err != nil {
			rows.Close()
			return err
		}
		r.e.Value = []byte(v)
		all = append(all, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()
	for _, r := range all {
		if err := fn(r.key, r.e); err != nil {
			return err
		}
	}
	return nil
}

// LoadAll replaces the table contents inside one transaction.
func (s *SQLiteStore) LoadAll(all map[string]Entry) {
	tx, err := s.db.Begin()
	if err != nil {
		return
	}
	defer func() {
		_ = tx.Rollback() // ignored if committed
	}()
	if _, err := tx.Exec(`DELETE FROM kv`); err != nil {
		return
	}
	for k, e := range all {
		if _, err := tx.Exec(`INSERT INTO kv (key, value, seq) VALUES (?, ?, ?)`, k, string(e.Value), e.Seq); err != nil {
			return
		}
	}
	_ = tx.Commit()
}
