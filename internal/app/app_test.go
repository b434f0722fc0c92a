package app

import (
	"path/filepath"
	"testing"

	"shoplist/internal/config"
	"shoplist/internal/recipes"
	"shoplist/internal/state"
)

func testConfig(t *testing.T, backend string) config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.StateBackend = backend
	cfg.DataDir = filepath.Join(base, "data")
	cfg.SnapshotDir = filepath.Join(base, "snapshots")
	cfg.ChangelogDir = filepath.Join(base, "changelog")
	return cfg
}

// A memory-backed app loses everything on exit; restoring from snapshot and
// changelog must give the list back.
func TestOpen_RestoreAfterRestart(t *testing.T) {
	cfg := testConfig(t, state.BackendMemory)
	a, err := Open(cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	r, err := a.Recipes.Create(recipes.Draft{Name: "Pâtes", Ingredients: []recipes.Line{{Name: "Pâtes", Quantity: 500, Unit: "g"}}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := a.Shopping.AddRecipe(r.ID); err != nil {
		t.Fatalf("add recipe: %v", err)
	}
	if _, err := a.Backup.Run(); err != nil {
		t.Fatalf("backup: %v", err)
	}
	if _, err := a.Shopping.AddItem("Parmesan"); err != nil {
		t.Fatalf("add item: %v", err)
	}
	_ = a.Close()

	b, err := Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer b.Close()
	if items, _ := b.Shopping.List(); len(items) != 0 {
		t.Fatalf("fresh memory store should be empty: %+v", items)
	}
	res, err := b.Restore()
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if res.Applied == 0 {
		t.Fatalf("expected replayed records: %+v", res)
	}
	items, err := b.Shopping.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 || items[0].Quantity != 500 || items[1].Name != "Parmesan" {
		t.Fatalf("restored list: %+v", items)
	}
	// New ids continue after the restored ones.
	r2, err := b.Recipes.Create(recipes.Draft{Name: "Pesto"})
	if err != nil || r2.ID != 2 {
		t.Fatalf("next recipe id: %+v %v", r2, err)
	}
}

func TestOpen_PersistentBackend(t *testing.T) {
	cfg := testConfig(t, state.BackendSQLite)
	a, err := Open(cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := a.Shopping.AddItem("Lait"); err != nil {
		t.Fatalf("add: %v", err)
	}
	_ = a.Close()

	b, err := Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer b.Close()
	items, _ := b.Shopping.List()
	if len(items) != 1 || items[0].Name != "Lait" {
		t.Fatalf("items: %+v", items)
	}
}

func TestOpen_InvalidConfig(t *testing.T) {
	cfg := testConfig(t, "cassandra")
	if _, err := Open(cfg); err == nil {
		t.Fatalf("expected error")
	}
}
