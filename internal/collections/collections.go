// Package collections stores each logical collection (recipes, ingredients,
// recipe-ingredient links, the shopping list) as one JSON array under a fixed
// key, and journals every write to the changelog.
package collections

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"shoplist/internal/changelog"
	"shoplist/internal/metrics"
	"shoplist/internal/state"
)

// Collection keys.
const (
	KeyRecipes           = "recipes"
	KeyIngredients       = "ingredients"
	KeyRecipeIngredients = "recipe_ingredients"
	KeyShoppingList      = "shoppingList"
)

const idKeyPrefix = "ids/"

// ErrConflict is returned when another writer moved a key between our read
// and our write.
var ErrConflict = errors.New("concurrent write")

// Repo reads and writes collections on a state.Store.
type Repo struct {
	st  state.Store
	log changelog.Writer
	m   *metrics.Registry
	now func() time.Time
}

// New returns a Repo. A nil log discards records.
func New(st state.Store, log changelog.Writer) *Repo {
	if log == nil {
		log = changelog.Discard{}
	}
	return &Repo{st: st, log: log, now: time.Now}
}

// WithMetrics counts every journaled write on m.
func (r *Repo) WithMetrics(m *metrics.Registry) *Repo {
	r.m = m
	return r
}

// Store exposes the underlying store for snapshots.
func (r *Repo) Store() state.Store { return r.st }

// Load decodes the collection at key. A missing key is an empty collection.
func Load[T any](r *Repo, key string) ([]T, error) {
	e, ok := r.st.Get(key)
	if !ok || len(e.Value) == 0 {
		return []T{}, nil
	}
	var out []T
	if err := json.Unmarshal(e.Value, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// Save replaces the collection at key.
func Save[T any](r *Repo, key string, items []T) error {
	if items == nil {
		items = []T{}
	}
	_, err := r.put(key, items)
	return err
}

// put writes v at the next sequence of key and journals it.
func (r *Repo) put(key string, v any) (int64, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("encode %s: %w", key, err)
	}
	prev, _ := r.st.Get(key)
	seq := prev.Seq + 1
	applied, _, err := r.st.Apply(key, b, seq)
	if err != nil {
		return 0, fmt.Errorf("write %s: %w", key, err)
	}
	if !applied {
		return 0, fmt.Errorf("write %s seq %d: %w", key, seq, ErrConflict)
	}
	rec := changelog.Record{Key: key, Seq: seq, Value: b, TS: r.now().UTC().Unix()}
	if err := r.log.Append(rec); err != nil {
		return seq, fmt.Errorf("append changelog: %w", err)
	}
	if r.m != nil {
		r.m.ChangelogAppended.Inc()
	}
	return seq, nil
}

// NextID allocates the next id of kind. Ids start at 1 and never repeat.
func (r *Repo) NextID(kind string) (int64, error) {
	key := idKeyPrefix + kind
	const maxRetries = 3
	for attempt := 0; attempt < maxRetries; attempt++ {
		var last int64
		if e, ok := r.st.Get(key); ok {
			if err := json.Unmarshal(e.Value, &last); err != nil {
				return 0, fmt.Errorf("decode %s: %w", key, err)
			}
		}
		_, err := r.put(key, last+1)
		if errors.Is(err, ErrConflict) {
			continue
		}
		if err != nil {
			return 0, err
		}
		return last + 1, nil
	}
	return 0, fmt.Errorf("could not allocate %s id after %d retries", kind, maxRetries)
}
