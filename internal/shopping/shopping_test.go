package shopping

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"shoplist/internal/catalog"
	"shoplist/internal/collections"
	"shoplist/internal/logger"
	"shoplist/internal/metrics"
	"shoplist/internal/model"
	"shoplist/internal/recipes"
	"shoplist/internal/state"
)

type fixture struct {
	svc  *Service
	rm   *recipes.Manager
	repo *collections.Repo
	m    *metrics.Registry
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	repo := collections.New(state.NewInMemoryStore(), nil)
	cat := catalog.New(repo)
	rm := recipes.NewManager(repo, cat)
	m := metrics.NewRegistry()
	return fixture{svc: NewService(repo, rm, cat, m), rm: rm, repo: repo, m: m}
}

func (f fixture) recipe(t *testing.T, name string, lines ...recipes.Line) int64 {
	t.Helper()
	r, err := f.rm.Create(recipes.Draft{Name: name, Ingredients: lines})
	if err != nil {
		t.Fatalf("create recipe: %v", err)
	}
	return r.ID
}

func TestAddRecipe_MergesAcrossRecipes(t *testing.T) {
	f := newFixture(t)
	a := f.recipe(t, "Salade", recipes.Line{Name: "Tomate", Quantity: 2, Unit: "u"})
	b := f.recipe(t, "Sauce", recipes.Line{Name: "Tomates", Quantity: 3, Unit: "u"}, recipes.Line{Name: "Sel", Quantity: 10, Unit: "g"})

	if _, err := f.svc.AddRecipe(a); err != nil {
		t.Fatalf("add a: %v", err)
	}
	res, err := f.svc.AddRecipe(b)
	if err != nil {
		t.Fatalf("add b: %v", err)
	}
	if res.Merged != 1 || res.Created != 1 {
		t.Fatalf("counters: %+v", res)
	}
	items, _ := f.svc.List()
	if len(items) != 2 {
		t.Fatalf("items: %+v", items)
	}
	if items[0].Name != "Tomate" || items[0].Quantity != 5 || items[0].RecipeIDs.Len() != 2 {
		t.Fatalf("tomato line: %+v", items[0])
	}
}

func TestAddRecipe_Errors(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.AddRecipe(42); !errors.Is(err, ErrRecipeNotFound) {
		t.Fatalf("want ErrRecipeNotFound, got %v", err)
	}
	empty := f.recipe(t, "Vide")
	if _, err := f.svc.AddRecipe(empty); !errors.Is(err, ErrRecipeHasNoIngredients) {
		t.Fatalf("want ErrRecipeHasNoIngredients, got %v", err)
	}
	if items, _ := f.svc.List(); len(items) != 0 {
		t.Fatalf("list must be untouched: %+v", items)
	}
}

func TestAddRecipe_SkippedRowsAreLogged(t *testing.T) {
	f := newFixture(t)
	id := f.recipe(t, "Pizza", recipes.Line{Name: "Farine", Quantity: 300, Unit: "g"})
	// A link to an ingredient that is not in the catalog.
	links, _ := collections.Load[model.RecipeIngredient](f.repo, collections.KeyRecipeIngredients)
	links = append(links, model.RecipeIngredient{RecipeID: id, IngredientID: 77, Quantity: 1, Unit: model.Count})
	if err := collections.Save(f.repo, collections.KeyRecipeIngredients, links); err != nil {
		t.Fatalf("save links: %v", err)
	}

	core, logs := observer.New(zapcore.WarnLevel)
	logger.Set(zap.New(core))
	t.Cleanup(func() { logger.Set(zap.NewNop()) })

	res, err := f.svc.AddRecipe(id)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(res.Skipped) != 1 || len(res.Items) != 1 {
		t.Fatalf("result: %+v", res)
	}
	if logs.Len() != 1 || logs.All()[0].ContextMap()["ingredient_id"] != int64(77) {
		t.Fatalf("expected one warning, got %+v", logs.All())
	}
}

func TestAddItem_NewAndMerged(t *testing.T) {
	f := newFixture(t)
	it, err := f.svc.AddItem("  Pain ")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if it.ID != 1 || it.Name != "Pain" || it.Quantity != 1 || it.Unit != model.Count || it.Checked {
		t.Fatalf("item: %+v", it)
	}
	again, err := f.svc.AddItem("pains")
	if err != nil {
		t.Fatalf("add 2: %v", err)
	}
	if again.ID != 1 || again.Quantity != 2 {
		t.Fatalf("expected merge into existing line: %+v", again)
	}
	if _, err := f.svc.AddItem(" "); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("want ErrEmptyName, got %v", err)
	}
}

func TestToggle_UncheckedFirst(t *testing.T) {
	f := newFixture(t)
	a, _ := f.svc.AddItem("A")
	b, _ := f.svc.AddItem("B")
	c, _ := f.svc.AddItem("C")

	got, err := f.svc.Toggle(a.ID)
	if err != nil || !got.Checked {
		t.Fatalf("toggle: %+v %v", got, err)
	}
	items, _ := f.svc.List()
	order := []int64{items[0].ID, items[1].ID, items[2].ID}
	if order[0] != b.ID || order[1] != c.ID || order[2] != a.ID {
		t.Fatalf("order: %v", order)
	}
	if _, err := f.svc.Toggle(a.ID); err != nil {
		t.Fatalf("toggle back: %v", err)
	}
	if _, err := f.svc.Toggle(99); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("want ErrItemNotFound, got %v", err)
	}
}

func TestIncrementDecrement_Steps(t *testing.T) {
	f := newFixture(t)
	id := f.recipe(t, "Crêpes", recipes.Line{Name: "Farine", Quantity: 250, Unit: "g"}, recipes.Line{Name: "Lait", Quantity: 50, Unit: "cl"})
	if _, err := f.svc.AddRecipe(id); err != nil {
		t.Fatalf("add: %v", err)
	}
	items, _ := f.svc.List()
	flour, milk := items[0], items[1]

	if got, _ := f.svc.Increment(flour.ID); got.Quantity != 350 {
		t.Fatalf("flour +: %v", got.Quantity)
	}
	if got, _ := f.svc.Decrement(milk.ID); got.Quantity != 40 {
		t.Fatalf("milk -: %v", got.Quantity)
	}
	for i := 0; i < 5; i++ {
		_, _ = f.svc.Decrement(milk.ID)
	}
	if got, _ := f.svc.Decrement(milk.ID); got.Quantity != 10 {
		t.Fatalf("milk floor: %v", got.Quantity)
	}

	pain, _ := f.svc.AddItem("Pain")
	if got, _ := f.svc.Decrement(pain.ID); got.Quantity != 1 {
		t.Fatalf("count floor: %v", got.Quantity)
	}
	if got, _ := f.svc.Increment(pain.ID); got.Quantity != 2 {
		t.Fatalf("count +: %v", got.Quantity)
	}
}

func TestRemoveAndClearChecked(t *testing.T) {
	f := newFixture(t)
	a, _ := f.svc.AddItem("A")
	b, _ := f.svc.AddItem("B")
	c, _ := f.svc.AddItem("C")
	if err := f.svc.Remove(b.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := f.svc.Remove(b.ID); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("second remove: %v", err)
	}
	_, _ = f.svc.Toggle(a.ID)
	n, err := f.svc.ClearChecked()
	if err != nil || n != 1 {
		t.Fatalf("clear: %d %v", n, err)
	}
	items, _ := f.svc.List()
	if len(items) != 1 || items[0].ID != c.ID {
		t.Fatalf("items: %+v", items)
	}
	if n, _ := f.svc.ClearChecked(); n != 0 {
		t.Fatalf("nothing left to clear: %d", n)
	}
}

func TestRecipesWithItem_SubstringBothWays(t *testing.T) {
	f := newFixture(t)
	a := f.recipe(t, "Tarte", recipes.Line{Name: "Pomme", Quantity: 4})
	b := f.recipe(t, "Gratin", recipes.Line{Name: "Pomme de terre", Quantity: 6})
	f.recipe(t, "Soupe", recipes.Line{Name: "Poireau", Quantity: 2})

	got, err := f.svc.RecipesWithItem("pommes")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(got) != 1 || got[0].ID != a {
		t.Fatalf("item containing ingredient: %+v", got)
	}
	got, _ = f.svc.RecipesWithItem("POMME")
	if len(got) != 2 || got[0].ID != a || got[1].ID != b {
		t.Fatalf("ingredient containing item: %+v", got)
	}
	if got, _ := f.svc.RecipesWithItem(""); len(got) != 0 {
		t.Fatalf("empty name: %+v", got)
	}
}

func TestRecipesWithItem_FollowsRecipeOrder(t *testing.T) {
	f := newFixture(t)
	tarte := f.recipe(t, "Tarte")
	soupe := f.recipe(t, "Soupe", recipes.Line{Name: "Oignon blanc", Quantity: 2})
	// The tarte's ingredient enters the catalog after the soup's.
	if _, err := f.rm.Update(tarte, recipes.Draft{Name: "Tarte", Ingredients: []recipes.Line{{Name: "Oignon rouge", Quantity: 3}}}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := f.svc.RecipesWithItem("oignon")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(got) != 2 || got[0].ID != tarte || got[1].ID != soupe {
		t.Fatalf("want tarte then soupe, got %+v", got)
	}
}
