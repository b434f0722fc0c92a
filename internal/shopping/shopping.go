// Package shopping runs every mutation of the shopping list. All writes go
// through one mutex so HTTP and Kafka callers cannot interleave a
// read-merge-save cycle.
package shopping

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"shoplist/internal/catalog"
	"shoplist/internal/collections"
	"shoplist/internal/logger"
	"shoplist/internal/merge"
	"shoplist/internal/metrics"
	"shoplist/internal/model"
	"shoplist/internal/recipes"
)

var (
	ErrRecipeNotFound         = errors.New("recipe not found")
	ErrRecipeHasNoIngredients = errors.New("recipe has no ingredients")
	ErrItemNotFound           = errors.New("item not found")
	ErrEmptyName              = errors.New("item name is empty")
)

type Service struct {
	mu      sync.Mutex
	repo    *collections.Repo
	recipes *recipes.Manager
	catalog *catalog.Catalog
	m       *metrics.Registry
}

// NewService wires the list to its collaborators. m may be nil.
func NewService(repo *collections.Repo, rm *recipes.Manager, cat *catalog.Catalog, m *metrics.Registry) *Service {
	return &Service{repo: repo, recipes: rm, catalog: cat, m: m}
}

func (s *Service) load() ([]model.ShoppingListItem, error) {
	return collections.Load[model.ShoppingListItem](s.repo, collections.KeyShoppingList)
}

func (s *Service) save(items []model.ShoppingListItem) error {
	if err := collections.Save(s.repo, collections.KeyShoppingList, items); err != nil {
		return fmt.Errorf("save shopping list: %w", err)
	}
	if s.m != nil {
		s.m.ListItems.Set(float64(len(items)))
	}
	return nil
}

func (s *Service) reject(reason string) {
	if s.m != nil {
		s.m.AddsRejected.WithLabelValues(reason).Inc()
	}
}

// List returns the current items.
func (s *Service) List() ([]model.ShoppingListItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// AddRecipe merges every ingredient of recipeID into the list.
func (s *Service) AddRecipe(recipeID int64) (merge.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.recipes.Get(recipeID)
	if errors.Is(err, recipes.ErrNotFound) {
		s.reject("not_found")
		return merge.Result{}, fmt.Errorf("recipe %d: %w", recipeID, ErrRecipeNotFound)
	}
	if err != nil {
		return merge.Result{}, err
	}
	rows, err := s.recipes.Ingredients(recipeID)
	if err != nil {
		return merge.Result{}, err
	}
	if len(rows) == 0 {
		s.reject("no_ingredients")
		return merge.Result{}, fmt.Errorf("%q: %w", r.Name, ErrRecipeHasNoIngredients)
	}
	current, err := s.load()
	if err != nil {
		return merge.Result{}, err
	}
	all, err := s.catalog.All()
	if err != nil {
		return merge.Result{}, err
	}

	start := time.Now()
	res := merge.MergeRecipeIntoList(recipeID, rows, current, all)
	if s.m != nil {
		s.m.MergeLatencySec.Observe(time.Since(start).Seconds())
	}
	if err := s.save(res.Items); err != nil {
		return merge.Result{}, err
	}

	for _, row := range res.Skipped {
		logger.Warn("shopping: ingredient missing from catalog, row skipped",
			zap.Int64("recipe_id", recipeID), zap.Int64("ingredient_id", row.IngredientID))
	}
	if s.m != nil {
		s.m.RecipesMerged.Inc()
		s.m.ItemsCreated.Add(float64(res.Created))
		s.m.ItemsMerged.Add(float64(res.Merged))
		s.m.RowsSkipped.Add(float64(len(res.Skipped)))
	}
	logger.Info("shopping: recipe added", zap.Int64("recipe_id", recipeID), zap.String("recipe", r.Name),
		zap.Int("created", res.Created), zap.Int("merged", res.Merged))
	return res, nil
}

// AddItem adds a manual line of one unit. A line with the same normalized
// name in unit u grows by one instead.
func (s *Service) AddItem(name string) (model.ShoppingListItem, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.ShoppingListItem{}, ErrEmptyName
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load()
	if err != nil {
		return model.ShoppingListItem{}, err
	}
	idx := -1
	for i, it := range items {
		if merge.SameLine(it.Name, string(it.Unit), name, string(model.Count)) {
			idx = i
			break
		}
	}
	if idx >= 0 {
		items[idx].Quantity++
	} else {
		items = append(items, model.ShoppingListItem{
			ID:        merge.NextItemID(items),
			Name:      name,
			Quantity:  1,
			Unit:      model.Count,
			RecipeIDs: model.NewIDSet(),
		})
		idx = len(items) - 1
	}
	added := items[idx]
	if err := s.save(items); err != nil {
		return model.ShoppingListItem{}, err
	}
	return added, nil
}

// update applies fn to item id and saves the list.
func (s *Service) update(id int64, fn func(items []model.ShoppingListItem, i int) []model.ShoppingListItem) ([]model.ShoppingListItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := s.load()
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].ID == id {
			items = fn(items, i)
			if err := s.save(items); err != nil {
				return nil, err
			}
			return items, nil
		}
	}
	return nil, fmt.Errorf("item %d: %w", id, ErrItemNotFound)
}

func find(items []model.ShoppingListItem, id int64) model.ShoppingListItem {
	for _, it := range items {
		if it.ID == id {
			return it
		}
	}
	return model.ShoppingListItem{}
}

// Toggle flips the checked flag of item id. Unchecked items are kept ahead
// of checked ones.
func (s *Service) Toggle(id int64) (model.ShoppingListItem, error) {
	items, err := s.update(id, func(items []model.ShoppingListItem, i int) []model.ShoppingListItem {
		items[i].Checked = !items[i].Checked
		sort.SliceStable(items, func(a, b int) bool { return !items[a].Checked && items[b].Checked })
		return items
	})
	if err != nil {
		return model.ShoppingListItem{}, err
	}
	return find(items, id), nil
}

// Increment adds one step of the item's unit.
func (s *Service) Increment(id int64) (model.ShoppingListItem, error) {
	items, err := s.update(id, func(items []model.ShoppingListItem, i int) []model.ShoppingListItem {
		items[i].Quantity += items[i].Unit.Step()
		return items
	})
	if err != nil {
		return model.ShoppingListItem{}, err
	}
	return find(items, id), nil
}

// Decrement removes one step, never going below one step.
func (s *Service) Decrement(id int64) (model.ShoppingListItem, error) {
	items, err := s.update(id, func(items []model.ShoppingListItem, i int) []model.ShoppingListItem {
		step := items[i].Unit.Step()
		items[i].Quantity = max(step, items[i].Quantity-step)
		return items
	})
	if err != nil {
		return model.ShoppingListItem{}, err
	}
	return find(items, id), nil
}

// Remove deletes item id.
func (s *Service) Remove(id int64) error {
	_, err := s.update(id, func(items []model.ShoppingListItem, i int) []model.ShoppingListItem {
		return append(items[:i], items[i+1:]...)
	})
	return err
}

// ClearChecked deletes every checked item and returns how many went.
func (s *Service) ClearChecked() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := s.load()
	if err != nil {
		return 0, err
	}
	kept := make([]model.ShoppingListItem, 0, len(items))
	for _, it := range items {
		if !it.Checked {
			kept = append(kept, it)
		}
	}
	removed := len(items) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	if err := s.save(kept); err != nil {
		return 0, err
	}
	return removed, nil
}

// RecipesWithItem lists, in recipe order, the recipes using an ingredient
// whose name contains or is contained in name (ignoring case).
func (s *Service) RecipesWithItem(name string) ([]model.Recipe, error) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return []model.Recipe{}, nil
	}
	all, err := s.catalog.All()
	if err != nil {
		return nil, err
	}
	matching := model.NewIDSet()
	for _, ing := range all {
		n := strings.ToLower(ing.Name)
		if strings.Contains(n, needle) || strings.Contains(needle, n) {
			matching.Add(ing.ID)
		}
	}
	out := []model.Recipe{}
	if matching.Len() == 0 {
		return out, nil
	}
	rs, err := s.recipes.List()
	if err != nil {
		return nil, err
	}
	for _, r := range rs {
		rows, err := s.recipes.Ingredients(r.ID)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			if matching.Contains(row.IngredientID) {
				out = append(out, r)
				break
			}
		}
	}
	return out, nil
}
