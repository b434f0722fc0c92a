package merge

import (
	"reflect"
	"testing"

	"shoplist/internal/model"
)

var catalog = []model.Ingredient{
	{ID: 1, Name: "Tomate"},
	{ID: 2, Name: "Farine"},
	{ID: 3, Name: "Choux"},
	{ID: 4, Name: "Oeufs"},
}

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"Tomates":              "tomate",
		"tomate":               "tomate",
		"Choux":                "chou",
		"  Pomme   de  terre ": "pomme de terre",
		"":                     "",
		"Gas":                  "ga",
		"noix":                 "noi",
		"Oeufs":                "oeuf",
	}
	for in, want := range cases {
		if got := NormalizeName(in); got != want {
			t.Fatalf("NormalizeName(%q)=%q want %q", in, got, want)
		}
	}
}

func TestNormalizeName_StripsSThenX(t *testing.T) {
	// "xs" loses both suffixes, "sx" only the x.
	if got := NormalizeName("abxs"); got != "ab" {
		t.Fatalf("abxs -> %q", got)
	}
	if got := NormalizeName("absx"); got != "abs" {
		t.Fatalf("absx -> %q", got)
	}
}

func TestNormalizeName_Deterministic(t *testing.T) {
	for _, in := range []string{"Tomates", "Choux", "  a  b ", "x"} {
		if NormalizeName(in) != NormalizeName(in) {
			t.Fatalf("not deterministic for %q", in)
		}
	}
}

func TestMerge_IntoEmptyList(t *testing.T) {
	rows := []model.RecipeIngredient{{RecipeID: 10, IngredientID: 1, Quantity: 2, Unit: model.Count}}
	res := MergeRecipeIntoList(10, rows, nil, catalog)
	if len(res.Items) != 1 {
		t.Fatalf("want 1 item, got %d", len(res.Items))
	}
	it := res.Items[0]
	if it.Name != "Tomate" || it.Quantity != 2 || it.Unit != model.Count || it.Checked {
		t.Fatalf("unexpected item: %+v", it)
	}
	if !reflect.DeepEqual(it.RecipeIDs.Slice(), []int64{10}) {
		t.Fatalf("unexpected recipe ids: %v", it.RecipeIDs.Slice())
	}
	if res.Created != 1 || res.Merged != 0 {
		t.Fatalf("unexpected counters: %+v", res)
	}
}

func TestMerge_SecondRecipeSumsQuantity(t *testing.T) {
	first := MergeRecipeIntoList(10, []model.RecipeIngredient{{RecipeID: 10, IngredientID: 1, Quantity: 2, Unit: "u"}}, nil, catalog)
	second := MergeRecipeIntoList(11, []model.RecipeIngredient{{RecipeID: 11, IngredientID: 1, Quantity: 3, Unit: "u"}}, first.Items, catalog)
	if len(second.Items) != 1 {
		t.Fatalf("want a single line, got %+v", second.Items)
	}
	it := second.Items[0]
	if it.Quantity != 5 {
		t.Fatalf("quantity=%v want 5", it.Quantity)
	}
	if !it.RecipeIDs.Contains(10) || !it.RecipeIDs.Contains(11) || it.RecipeIDs.Len() != 2 {
		t.Fatalf("recipe ids: %v", it.RecipeIDs.Slice())
	}
}

func TestMerge_PluralNamesShareLine(t *testing.T) {
	current := []model.ShoppingListItem{{ID: 5, Name: "tomates", Quantity: 1, Unit: "u"}}
	res := MergeRecipeIntoList(3, []model.RecipeIngredient{{IngredientID: 1, Quantity: 4, Unit: "u"}}, current, catalog)
	if len(res.Items) != 1 || res.Items[0].Quantity != 5 {
		t.Fatalf("plural should merge: %+v", res.Items)
	}
	if res.Items[0].Name != "tomates" {
		t.Fatalf("existing display name must be kept, got %q", res.Items[0].Name)
	}
}

func TestMerge_DifferentUnitsStaySeparate(t *testing.T) {
	current := []model.ShoppingListItem{{ID: 1, Name: "Tomate", Quantity: 2, Unit: "u"}}
	res := MergeRecipeIntoList(4, []model.RecipeIngredient{{IngredientID: 1, Quantity: 500, Unit: "g"}}, current, catalog)
	if len(res.Items) != 2 {
		t.Fatalf("want two lines, got %+v", res.Items)
	}
	if res.Items[0].Quantity != 2 || res.Items[1].Unit != model.Grams || res.Items[1].Quantity != 500 {
		t.Fatalf("unexpected lines: %+v", res.Items)
	}
}

func TestMerge_MissingUnitMatchesCount(t *testing.T) {
	current := []model.ShoppingListItem{{ID: 1, Name: "Oeuf", Quantity: 1}}
	res := MergeRecipeIntoList(4, []model.RecipeIngredient{{IngredientID: 4, Quantity: 6, Unit: "u"}}, current, catalog)
	if len(res.Items) != 1 || res.Items[0].Quantity != 7 {
		t.Fatalf("unit-less line should take u rows: %+v", res.Items)
	}
}

func TestMerge_EmptyRowsIsNoop(t *testing.T) {
	current := []model.ShoppingListItem{{ID: 1, Name: "Pain", Quantity: 1, Unit: "u"}}
	res := MergeRecipeIntoList(9, nil, current, catalog)
	if !reflect.DeepEqual(res.Items, current) {
		t.Fatalf("list changed: %+v", res.Items)
	}
	if res.Created != 0 || res.Merged != 0 || len(res.Skipped) != 0 {
		t.Fatalf("unexpected counters: %+v", res)
	}
}

func TestMerge_TwiceIsAdditiveWithoutDuplicateRecipeIDs(t *testing.T) {
	rows := []model.RecipeIngredient{
		{IngredientID: 1, Quantity: 2, Unit: "u"},
		{IngredientID: 2, Quantity: 250, Unit: "g"},
	}
	start := []model.ShoppingListItem{{ID: 1, Name: "Farine", Quantity: 100, Unit: "g", Checked: true}}
	once := MergeRecipeIntoList(7, rows, start, catalog)
	twice := MergeRecipeIntoList(7, rows, once.Items, catalog)

	if len(twice.Items) != 2 {
		t.Fatalf("want 2 lines, got %+v", twice.Items)
	}
	flour, tomato := twice.Items[0], twice.Items[1]
	if flour.Quantity != 100+2*250 {
		t.Fatalf("flour=%v", flour.Quantity)
	}
	if tomato.Quantity != 4 {
		t.Fatalf("tomato=%v", tomato.Quantity)
	}
	if !flour.Checked {
		t.Fatalf("merge must not touch checked")
	}
	for _, it := range twice.Items {
		if it.RecipeIDs.Len() != 1 || !it.RecipeIDs.Contains(7) {
			t.Fatalf("recipe ids for %s: %v", it.Name, it.RecipeIDs.Slice())
		}
	}
}

func TestMerge_SameIngredientTwiceInOneRecipe(t *testing.T) {
	rows := []model.RecipeIngredient{
		{IngredientID: 3, Quantity: 1, Unit: "u"},
		{IngredientID: 3, Quantity: 2, Unit: "u"},
	}
	res := MergeRecipeIntoList(2, rows, nil, catalog)
	if len(res.Items) != 1 || res.Items[0].Quantity != 3 || res.Items[0].RecipeIDs.Len() != 1 {
		t.Fatalf("rows of one call should merge with each other: %+v", res.Items)
	}
	if res.Created != 1 || res.Merged != 1 {
		t.Fatalf("counters: %+v", res)
	}
}

func TestMerge_DanglingIngredientSkipped(t *testing.T) {
	rows := []model.RecipeIngredient{
		{IngredientID: 99, Quantity: 1, Unit: "u"},
		{IngredientID: 1, Quantity: 1, Unit: "u"},
	}
	res := MergeRecipeIntoList(1, rows, nil, catalog)
	if len(res.Items) != 1 || res.Items[0].Name != "Tomate" {
		t.Fatalf("unexpected items: %+v", res.Items)
	}
	if len(res.Skipped) != 1 || res.Skipped[0].IngredientID != 99 {
		t.Fatalf("skipped: %+v", res.Skipped)
	}
}

func TestMerge_DoesNotMutateInput(t *testing.T) {
	current := []model.ShoppingListItem{{ID: 1, Name: "Tomate", Quantity: 1, Unit: "u", RecipeIDs: model.NewIDSet(5)}}
	_ = MergeRecipeIntoList(6, []model.RecipeIngredient{{IngredientID: 1, Quantity: 1, Unit: "u"}}, current, catalog)
	if current[0].Quantity != 1 || current[0].RecipeIDs.Len() != 1 {
		t.Fatalf("input mutated: %+v", current[0])
	}
}

func TestMerge_NewItemsAppendedWithFreshIDs(t *testing.T) {
	current := []model.ShoppingListItem{
		{ID: 40, Name: "Sel", Quantity: 1, Unit: "u"},
		{ID: 12, Name: "Poivre", Quantity: 1, Unit: "u"},
	}
	rows := []model.RecipeIngredient{
		{IngredientID: 2, Quantity: 200, Unit: "g"},
		{IngredientID: 4, Quantity: 3, Unit: "u"},
	}
	res := MergeRecipeIntoList(8, rows, current, catalog)
	names := []string{}
	seen := map[int64]bool{}
	for _, it := range res.Items {
		names = append(names, it.Name)
		if seen[it.ID] {
			t.Fatalf("duplicate id %d", it.ID)
		}
		seen[it.ID] = true
	}
	if !reflect.DeepEqual(names, []string{"Sel", "Poivre", "Farine", "Oeufs"}) {
		t.Fatalf("order: %v", names)
	}
	if res.Items[2].ID != 41 || res.Items[3].ID != 42 {
		t.Fatalf("ids: %d %d", res.Items[2].ID, res.Items[3].ID)
	}
}

func TestSameLine(t *testing.T) {
	if !SameLine("Tomates", "", "tomate", "u") {
		t.Fatalf("expected match")
	}
	if SameLine("Tomates", "g", "tomate", "u") {
		t.Fatalf("units differ")
	}
}
