package model

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Unit is the measure a quantity is expressed in. The set is closed and flat:
// no conversion between units exists.
type Unit string

const (
	Grams       Unit = "g"
	Centiliters Unit = "cl"
	Count       Unit = "u"
)

// ErrUnknownUnit is returned by ParseUnit for anything but g, cl and u.
var ErrUnknownUnit = errors.New("unknown unit")

// ParseUnit validates s. An empty string yields Count.
func ParseUnit(s string) (Unit, error) {
	switch Unit(s) {
	case "":
		return Count, nil
	case Grams, Centiliters, Count:
		return Unit(s), nil
	}
	return "", fmt.Errorf("%w %q (want g, cl or u)", ErrUnknownUnit, s)
}

// OrDefault returns Count for the zero Unit.
func (u Unit) OrDefault() Unit {
	if u == "" {
		return Count
	}
	return u
}

// Step is the amount a manual +/- moves a quantity expressed in u.
func (u Unit) Step() float64 {
	switch u.OrDefault() {
	case Grams:
		return 100
	case Centiliters:
		return 10
	}
	return 1
}

// Ingredient is a canonical catalog entry.
type Ingredient struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// RecipeIngredient links a recipe to an ingredient with the amount it needs.
type RecipeIngredient struct {
	RecipeID     int64   `json:"recipeId"`
	IngredientID int64   `json:"ingredientId"`
	Quantity     float64 `json:"quantity"`
	Unit         Unit    `json:"unit"`
}

// ShoppingListItem is one line of the shopping list. Name is a copy of the
// ingredient's display name, not a reference.
type ShoppingListItem struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Quantity  float64 `json:"quantity"`
	Unit      Unit    `json:"unit,omitempty"`
	Checked   bool    `json:"checked"`
	RecipeIDs IDSet   `json:"recipeIds"`
}

// Clone returns a copy that shares no memory with it.
func (it ShoppingListItem) Clone() ShoppingListItem {
	it.RecipeIDs = it.RecipeIDs.Clone()
	return it
}

// Recipe is a named dish with its preparation steps. Ingredients live in
// separate RecipeIngredient rows.
type Recipe struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ImageURI    string    `json:"imageUri"`
	Steps       []string  `json:"steps"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// FormatQuantity renders q for display: 1000 g and up as kg, 100 cl and up
// as L, one decimal.
func FormatQuantity(q float64, u Unit) string {
	u = u.OrDefault()
	switch {
	case u == Grams && q >= 1000:
		return fmt.Sprintf("%.1fkg", q/1000)
	case u == Centiliters && q >= 100:
		return fmt.Sprintf("%.1fL", q/100)
	}
	return strconv.FormatFloat(q, 'f', -1, 64) + string(u)
}
