package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shoplist/internal/app"
	"shoplist/internal/config"
	"shoplist/internal/state"
)

// run executes one CLI invocation against a, which outlives it.
func run(t *testing.T, a *app.App, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(func(config.Config) (*app.App, error) { return a, nil })
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func newApp(t *testing.T) *app.App {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.StateBackend = state.BackendMemory
	cfg.DataDir = filepath.Join(base, "data")
	cfg.SnapshotDir = filepath.Join(base, "snapshots")
	cfg.ChangelogDir = filepath.Join(base, "changelog")
	a, err := app.Open(cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return a
}

func TestCLI_RecipeAndList(t *testing.T) {
	a := newApp(t)
	out, err := run(t, a, "recipe", "add", "Crêpes", "--ing", "Farine:250:g", "--ing", "Oeufs:3", "--step", "Mélanger")
	if err != nil {
		t.Fatalf("recipe add: %v", err)
	}
	if !strings.Contains(out, "added recipe 1 Crêpes") {
		t.Fatalf("out=%q", out)
	}
	if out, err = run(t, a, "recipe", "show", "1"); err != nil || !strings.Contains(out, "Farine 250g") {
		t.Fatalf("show: %q %v", out, err)
	}
	if _, err = run(t, a, "list", "add", "oeuf"); err != nil {
		t.Fatalf("list add: %v", err)
	}
	out, err = run(t, a, "list", "add-recipe", "1")
	if err != nil || !strings.Contains(out, "1 new, 1 merged") {
		t.Fatalf("add-recipe: %q %v", out, err)
	}
	if out, err = run(t, a, "list", "inc", "2"); err != nil || !strings.Contains(out, "350g") {
		t.Fatalf("inc: %q %v", out, err)
	}
	if out, err = run(t, a, "list", "toggle", "1"); err != nil || !strings.Contains(out, "[x]") {
		t.Fatalf("toggle: %q %v", out, err)
	}
	if out, err = run(t, a, "list", "who", "farines"); err != nil || !strings.Contains(out, "Crêpes") {
		t.Fatalf("who: %q %v", out, err)
	}
	if out, err = run(t, a, "list", "clear"); err != nil || !strings.Contains(out, "removed 1") {
		t.Fatalf("clear: %q %v", out, err)
	}
	out, err = run(t, a, "list", "show")
	if err != nil || !strings.Contains(out, "Farine") || strings.Contains(out, "oeuf") {
		t.Fatalf("show list: %q %v", out, err)
	}
}

func TestCLI_AddRecipeWithoutIngredients(t *testing.T) {
	a := newApp(t)
	if _, err := run(t, a, "recipe", "add", "Eau"); err != nil {
		t.Fatalf("add: %v", err)
	}
	_, err := run(t, a, "list", "add-recipe", "1")
	if err == nil || !strings.Contains(err.Error(), "no ingredients") || !strings.Contains(err.Error(), "recipe edit 1") {
		t.Fatalf("want no-ingredients error pointing at recipe edit, got %v", err)
	}
}

func TestCLI_EditRecipe(t *testing.T) {
	a := newApp(t)
	if _, err := run(t, a, "recipe", "add", "Soupe", "--desc", "hiver", "--step", "Couper"); err != nil {
		t.Fatalf("add: %v", err)
	}
	out, err := run(t, a, "recipe", "edit", "1", "--ing", "Poireaux:2", "--ing", "Beurre:50:g")
	if err != nil || !strings.Contains(out, "updated recipe 1 Soupe (2 ingredients)") {
		t.Fatalf("edit: %q %v", out, err)
	}
	out, err = run(t, a, "recipe", "show", "1")
	if err != nil || !strings.Contains(out, "hiver") || !strings.Contains(out, "Beurre 50g") || !strings.Contains(out, "1. Couper") {
		t.Fatalf("show after edit: %q %v", out, err)
	}
	if out, err = run(t, a, "recipe", "edit", "1", "--name", "Velouté"); err != nil || !strings.Contains(out, "Velouté (2 ingredients)") {
		t.Fatalf("rename: %q %v", out, err)
	}
	if out, err = run(t, a, "list", "add-recipe", "1"); err != nil || !strings.Contains(out, "2 new") {
		t.Fatalf("add-recipe after edit: %q %v", out, err)
	}
	if _, err = run(t, a, "recipe", "edit", "1", "--ing", "Sel:1:kg"); err == nil {
		t.Fatalf("expected unknown unit error")
	}
}

func TestCLI_RecipesFromYAML(t *testing.T) {
	a := newApp(t)
	p := filepath.Join(t.TempDir(), "recipes.yaml")
	yml := `- name: Salade
  ingredients:
    - {name: Laitue, quantity: 1, unit: u}
- name: Soupe
  steps: [Couper, Cuire]
`
	if err := os.WriteFile(p, []byte(yml), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err := run(t, a, "recipe", "add", "-f", p)
	if err != nil || strings.Count(out, "added recipe") != 2 {
		t.Fatalf("add -f: %q %v", out, err)
	}
	if out, _ = run(t, a, "recipe", "list"); !strings.Contains(out, "2\tSoupe") {
		t.Fatalf("list: %q", out)
	}
}

func TestCLI_BackupSnapshotRestore(t *testing.T) {
	a := newApp(t)
	if _, err := run(t, a, "list", "add", "Pain"); err != nil {
		t.Fatalf("add: %v", err)
	}
	out, err := run(t, a, "backup", "snapshot")
	if err != nil || !strings.HasPrefix(out, "snapshot ") {
		t.Fatalf("snapshot: %q %v", out, err)
	}
	if out, err = run(t, a, "backup", "restore"); err != nil || !strings.Contains(out, "applied=0") {
		t.Fatalf("restore: %q %v", out, err)
	}
}

func TestCLI_PushNeedsKafka(t *testing.T) {
	a := newApp(t)
	t.Setenv("SHOPLIST_KAFKA_BOOTSTRAP", "")
	if _, err := run(t, a, "push", "add-item", "Pain"); err == nil {
		t.Fatalf("expected error without bootstrap")
	}
}

func TestParseLine(t *testing.T) {
	l, err := parseLine("Lait:50:cl")
	if err != nil || l.Name != "Lait" || l.Quantity != 50 || l.Unit != "cl" {
		t.Fatalf("%+v %v", l, err)
	}
	if l, err = parseLine("Oeufs:3"); err != nil || l.Unit != "" {
		t.Fatalf("%+v %v", l, err)
	}
	for _, bad := range []string{"Sel", "Sel:beaucoup", "a:1:g:x"} {
		if _, err := parseLine(bad); err == nil {
			t.Fatalf("%q should fail", bad)
		}
	}
}
