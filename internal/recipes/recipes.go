// Package recipes manages recipes and their ingredient rows.
package recipes

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"shoplist/internal/catalog"
	"shoplist/internal/collections"
	"shoplist/internal/model"
)

var (
	ErrNameRequired    = errors.New("recipe name is required")
	ErrNotFound        = errors.New("recipe not found")
	ErrInvalidQuantity = errors.New("quantity must not be negative")
)

// Line is one ingredient line as typed by the user.
type Line struct {
	Name     string  `json:"name" yaml:"name"`
	Quantity float64 `json:"quantity" yaml:"quantity"`
	Unit     string  `json:"unit" yaml:"unit"`
}

// Draft is a recipe before it has an id.
type Draft struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	ImageURI    string   `json:"imageUri" yaml:"imageUri"`
	Steps       []string `json:"steps" yaml:"steps"`
	Ingredients []Line   `json:"ingredients" yaml:"ingredients"`
}

type Manager struct {
	mu   sync.Mutex
	repo *collections.Repo
	cat  *catalog.Catalog
	now  func() time.Time
}

func NewManager(repo *collections.Repo, cat *catalog.Catalog) *Manager {
	return &Manager{repo: repo, cat: cat, now: time.Now}
}

type line struct {
	name string
	qty  float64
	unit model.Unit
}

// validate checks d and returns its non-blank ingredient lines.
func validate(d Draft) (string, []line, error) {
	name := strings.TrimSpace(d.Name)
	if name == "" {
		return "", nil, ErrNameRequired
	}
	var lines []line
	for i, l := range d.Ingredients {
		ln := strings.TrimSpace(l.Name)
		if ln == "" {
			continue
		}
		u, err := model.ParseUnit(strings.TrimSpace(l.Unit))
		if err != nil {
			return "", nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		if l.Quantity < 0 {
			return "", nil, fmt.Errorf("line %d: %w", i+1, ErrInvalidQuantity)
		}
		lines = append(lines, line{name: ln, qty: l.Quantity, unit: u})
	}
	return name, lines, nil
}

// resolve maps lines to catalog ingredients, creating missing ones. The
// returned rows carry no recipe id yet.
func (m *Manager) resolve(lines []line) ([]model.RecipeIngredient, error) {
	rows := make([]model.RecipeIngredient, 0, len(lines))
	for _, l := range lines {
		ing, err := m.cat.FindOrCreate(l.name)
		if err != nil {
			return nil, fmt.Errorf("ingredient %q: %w", l.name, err)
		}
		rows = append(rows, model.RecipeIngredient{IngredientID: ing.ID, Quantity: l.qty, Unit: l.unit})
	}
	return rows, nil
}

// replaceLinks swaps the rows of recipe id for rows.
func (m *Manager) replaceLinks(id int64, rows []model.RecipeIngredient) error {
	links, err := collections.Load[model.RecipeIngredient](m.repo, collections.KeyRecipeIngredients)
	if err != nil {
		return err
	}
	out := make([]model.RecipeIngredient, 0, len(links)+len(rows))
	for _, l := range links {
		if l.RecipeID != id {
			out = append(out, l)
		}
	}
	if len(out) == len(links) && len(rows) == 0 {
		return nil
	}
	for _, r := range rows {
		r.RecipeID = id
		out = append(out, r)
	}
	return collections.Save(m.repo, collections.KeyRecipeIngredients, out)
}

// Create stores d and links its ingredient lines. Lines with a blank name are
// ignored. Ingredients are resolved before the recipe is written, and the
// recipe is removed again when its links cannot be saved.
func (m *Manager) Create(d Draft) (model.Recipe, error) {
	name, lines, err := validate(d)
	if err != nil {
		return model.Recipe{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rows, err := m.resolve(lines)
	if err != nil {
		return model.Recipe{}, err
	}
	all, err := collections.Load[model.Recipe](m.repo, collections.KeyRecipes)
	if err != nil {
		return model.Recipe{}, err
	}
	id, err := m.repo.NextID("recipe")
	if err != nil {
		return model.Recipe{}, fmt.Errorf("allocate recipe id: %w", err)
	}
	now := m.now().UTC()
	r := model.Recipe{
		ID:          id,
		Name:        name,
		Description: strings.TrimSpace(d.Description),
		ImageURI:    strings.TrimSpace(d.ImageURI),
		Steps:       cleanSteps(d.Steps),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := collections.Save(m.repo, collections.KeyRecipes, append(all, r)); err != nil {
		return model.Recipe{}, err
	}
	if err := m.replaceLinks(id, rows); err != nil {
		if rerr := collections.Save(m.repo, collections.KeyRecipes, all); rerr != nil {
			return model.Recipe{}, errors.Join(err, fmt.Errorf("undo recipe %d: %w", id, rerr))
		}
		return model.Recipe{}, err
	}
	return r, nil
}

// Update replaces the fields and ingredient lines of recipe id. The id and
// creation time are kept.
func (m *Manager) Update(id int64, d Draft) (model.Recipe, error) {
	name, lines, err := validate(d)
	if err != nil {
		return model.Recipe{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	all, err := collections.Load[model.Recipe](m.repo, collections.KeyRecipes)
	if err != nil {
		return model.Recipe{}, err
	}
	idx := -1
	for i, r := range all {
		if r.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return model.Recipe{}, fmt.Errorf("recipe %d: %w", id, ErrNotFound)
	}
	rows, err := m.resolve(lines)
	if err != nil {
		return model.Recipe{}, err
	}

	prev := all[idx]
	next := prev
	next.Name = name
	next.Description = strings.TrimSpace(d.Description)
	next.ImageURI = strings.TrimSpace(d.ImageURI)
	next.Steps = cleanSteps(d.Steps)
	next.UpdatedAt = m.now().UTC()

	updated := append([]model.Recipe(nil), all...)
	updated[idx] = next
	if err := collections.Save(m.repo, collections.KeyRecipes, updated); err != nil {
		return model.Recipe{}, err
	}
	if err := m.replaceLinks(id, rows); err != nil {
		if rerr := collections.Save(m.repo, collections.KeyRecipes, all); rerr != nil {
			return model.Recipe{}, errors.Join(err, fmt.Errorf("undo recipe %d: %w", id, rerr))
		}
		return model.Recipe{}, err
	}
	return next, nil
}

func cleanSteps(steps []string) []string {
	out := []string{}
	for _, s := range steps {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (m *Manager) List() ([]model.Recipe, error) {
	return collections.Load[model.Recipe](m.repo, collections.KeyRecipes)
}

func (m *Manager) Get(id int64) (model.Recipe, error) {
	all, err := m.List()
	if err != nil {
		return model.Recipe{}, err
	}
	for _, r := range all {
		if r.ID == id {
			return r, nil
		}
	}
	return model.Recipe{}, fmt.Errorf("recipe %d: %w", id, ErrNotFound)
}

// Delete removes the recipe and its ingredient rows. Shopping list items
// already merged from it are left alone.
func (m *Manager) Delete(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	all, err := m.List()
	if err != nil {
		return err
	}
	kept := all[:0]
	found := false
	for _, r := range all {
		if r.ID == id {
			found = true
			continue
		}
		kept = append(kept, r)
	}
	if !found {
		return fmt.Errorf("recipe %d: %w", id, ErrNotFound)
	}
	if err := collections.Save(m.repo, collections.KeyRecipes, kept); err != nil {
		return err
	}
	return m.replaceLinks(id, nil)
}

// Ingredients returns the rows of recipe id, in the order they were entered.
func (m *Manager) Ingredients(id int64) ([]model.RecipeIngredient, error) {
	links, err := collections.Load[model.RecipeIngredient](m.repo, collections.KeyRecipeIngredients)
	if err != nil {
		return nil, err
	}
	out := []model.RecipeIngredient{}
	for _, l := range links {
		if l.RecipeID == id {
			out = append(out, l)
		}
	}
	return out, nil
}

// RecipesForIngredient returns recipes using ingredientID, each once.
func (m *Manager) RecipesForIngredient(ingredientID int64) ([]model.Recipe, error) {
	links, err := collections.Load[model.RecipeIngredient](m.repo, collections.KeyRecipeIngredients)
	if err != nil {
		return nil, err
	}
	ids := model.NewIDSet()
	for _, l := range links {
		if l.IngredientID == ingredientID {
			ids.Add(l.RecipeID)
		}
	}
	all, err := m.List()
	if err != nil {
		return nil, err
	}
	out := []model.Recipe{}
	for _, r := range all {
		if ids.Contains(r.ID) {
			out = append(out, r)
		}
	}
	return out, nil
}
