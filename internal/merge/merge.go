package merge

import (
	"shoplist/internal/model"
)

// Result is the outcome of merging one recipe into a list.
type Result struct {
	// Items is the full updated list.
	Items []model.ShoppingListItem
	// Skipped holds rows whose ingredient id was not in the catalog. They do
	// not change Items.
	Skipped []model.RecipeIngredient
	// Created and Merged count rows that opened a new line or grew an
	// existing one.
	Created int
	Merged  int
}

// MergeRecipeIntoList folds the ingredient rows of recipeID into current.
//
// Rows are processed in order. Each row resolves its ingredient in catalog,
// then adds its quantity to the first line whose normalized name and unit
// match, or appends a new unchecked line named after the catalog entry.
// Existing lines keep their order; new lines follow in row order. current is
// never modified. With no rows the result holds current unchanged.
func MergeRecipeIntoList(recipeID int64, rows []model.RecipeIngredient, current []model.ShoppingListItem, catalog []model.Ingredient) Result {
	if len(rows) == 0 {
		return Result{Items: current}
	}

	byID := make(map[int64]model.Ingredient, len(catalog))
	for _, ing := range catalog {
		if _, dup := byID[ing.ID]; !dup {
			byID[ing.ID] = ing
		}
	}

	out := make([]model.ShoppingListItem, len(current), len(current)+len(rows))
	for i, it := range current {
		out[i] = it.Clone()
	}
	nextID := NextItemID(current) - 1

	res := Result{}
	for _, row := range rows {
		ing, ok := byID[row.IngredientID]
		if !ok {
			res.Skipped = append(res.Skipped, row)
			continue
		}
		if idx := findLine(out, ing.Name, row.Unit); idx >= 0 {
			out[idx].Quantity += row.Quantity
			out[idx].RecipeIDs.Add(recipeID)
			res.Merged++
			continue
		}
		nextID++
		out = append(out, model.ShoppingListItem{
			ID:        nextID,
			Name:      ing.Name,
			Quantity:  row.Quantity,
			Unit:      row.Unit.OrDefault(),
			Checked:   false,
			RecipeIDs: model.NewIDSet(recipeID),
		})
		res.Created++
	}
	res.Items = out
	return res
}

// findLine returns the index of the first line matching name and unit, or -1.
func findLine(items []model.ShoppingListItem, name string, unit model.Unit) int {
	key := NormalizeName(name)
	for i, it := range items {
		if sameUnit(string(it.Unit), string(unit)) && NormalizeName(it.Name) == key {
			return i
		}
	}
	return -1
}

// NextItemID returns an id unused by items: one past the largest.
func NextItemID(items []model.ShoppingListItem) int64 {
	var max int64
	for _, it := range items {
		if it.ID > max {
			max = it.ID
		}
	}
	return max + 1
}
