// Package catalog owns the ingredient catalog. Ingredient names are unique
// ignoring case.
package catalog

import (
	"errors"
	"fmt"
	"strings"

	"shoplist/internal/collections"
	"shoplist/internal/model"
)

var (
	ErrEmptyName = errors.New("ingredient name is empty")
	ErrExists    = errors.New("ingredient already exists")
)

type Catalog struct {
	repo *collections.Repo
}

func New(repo *collections.Repo) *Catalog {
	return &Catalog{repo: repo}
}

// All returns every ingredient in insertion order.
func (c *Catalog) All() ([]model.Ingredient, error) {
	return collections.Load[model.Ingredient](c.repo, collections.KeyIngredients)
}

// Get returns the ingredient with id.
func (c *Catalog) Get(id int64) (model.Ingredient, bool, error) {
	all, err := c.All()
	if err != nil {
		return model.Ingredient{}, false, err
	}
	for _, ing := range all {
		if ing.ID == id {
			return ing, true, nil
		}
	}
	return model.Ingredient{}, false, nil
}

// Create adds a new ingredient. Names already present (ignoring case) are
// rejected with ErrExists.
func (c *Catalog) Create(name string) (model.Ingredient, error) {
	ing, created, err := c.findOrCreate(name)
	if err != nil {
		return model.Ingredient{}, err
	}
	if !created {
		return ing, fmt.Errorf("%q: %w", ing.Name, ErrExists)
	}
	return ing, nil
}

// FindOrCreate returns the ingredient named name (case-insensitive exact
// match), creating it when absent.
func (c *Catalog) FindOrCreate(name string) (model.Ingredient, error) {
	ing, _, err := c.findOrCreate(name)
	return ing, err
}

func (c *Catalog) findOrCreate(name string) (model.Ingredient, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Ingredient{}, false, ErrEmptyName
	}
	all, err := c.All()
	if err != nil {
		return model.Ingredient{}, false, err
	}
	for _, ing := range all {
		if strings.EqualFold(ing.Name, name) {
			return ing, false, nil
		}
	}
	id, err := c.repo.NextID("ingredient")
	if err != nil {
		return model.Ingredient{}, false, fmt.Errorf("allocate ingredient id: %w", err)
	}
	ing := model.Ingredient{ID: id, Name: name}
	if err := collections.Save(c.repo, collections.KeyIngredients, append(all, ing)); err != nil {
		return model.Ingredient{}, false, err
	}
	return ing, true, nil
}
