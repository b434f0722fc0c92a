package restore

import (
	"path/filepath"
	"testing"

	"shoplist/internal/changelog"
	"shoplist/internal/collections"
	"shoplist/internal/manifest"
	"shoplist/internal/model"
	"shoplist/internal/snapshot"
	"shoplist/internal/state"
)

// Writes through collections, snapshots mid-way, then rebuilds a fresh store
// and checks it matches the live one.
func TestSnapshotManifestReplay_RebuildsLiveState(t *testing.T) {
	base := t.TempDir()
	clPath := filepath.Join(base, "changelog", "shoplist.jsonl")
	fw, err := changelog.NewFileWriter(filepath.Dir(clPath), filepath.Base(clPath))
	if err != nil {
		t.Fatalf("changelog: %v", err)
	}

	live := state.NewInMemoryStore()
	repo := collections.New(live, fw)
	snaps := snapshot.NewFilesystemSnapshotter(filepath.Join(base, "snapshots"))
	man := manifest.NewFilesystemManifest(filepath.Join(base, "manifest"))

	list := []model.ShoppingListItem{{ID: 1, Name: "Pain", Quantity: 1, Unit: model.Count, RecipeIDs: model.NewIDSet()}}
	if err := collections.Save(repo, collections.KeyShoppingList, list); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := collections.Save(repo, collections.KeyIngredients, []model.Ingredient{{ID: 1, Name: "Pain"}}); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := snaps.WriteSnapshot("snap-1", live); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	off, err := changelog.CountRecords(clPath)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if err := man.PublishLatest("snap-1", off); err != nil {
		t.Fatalf("manifest: %v", err)
	}

	list[0].Checked = true
	list = append(list, model.ShoppingListItem{ID: 2, Name: "Lait", Quantity: 10, Unit: model.Centiliters, RecipeIDs: model.NewIDSet()})
	if err := collections.Save(repo, collections.KeyShoppingList, list); err != nil {
		t.Fatalf("save: %v", err)
	}

	fresh := state.NewInMemoryStore()
	r := NewRestorer(fresh, snaps, man, clPath)
	res, err := r.RestoreAndReplay()
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if res.Applied != 1 || res.LastAppliedOffset != 3 {
		t.Fatalf("unexpected result: %+v", res)
	}

	got, err := collections.Load[model.ShoppingListItem](collections.New(fresh, nil), collections.KeyShoppingList)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 || !got[0].Checked || got[1].Unit != model.Centiliters {
		t.Fatalf("unexpected list: %+v", got)
	}
	want, _ := live.Get(collections.KeyShoppingList)
	have, _ := fresh.Get(collections.KeyShoppingList)
	if want.Seq != have.Seq || string(want.Value) != string(have.Value) {
		t.Fatalf("state diverged:\nlive  %d %s\nfresh %d %s", want.Seq, want.Value, have.Seq, have.Value)
	}
}
