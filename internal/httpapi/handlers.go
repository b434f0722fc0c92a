package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"shoplist/internal/model"
	"shoplist/internal/recipes"
)

func (s *Server) listRecipes(w http.ResponseWriter, r *http.Request) {
	all, err := s.Recipes.List()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func (s *Server) createRecipe(w http.ResponseWriter, r *http.Request) {
	var d recipes.Draft
	if err := decode(r, &d); err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := s.Recipes.Create(d)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) updateRecipe(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var d recipes.Draft
	if err := decode(r, &d); err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := s.Recipes.Update(id, d)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type importRequest struct {
	URL string `json:"url"`
}

func (s *Server) importRecipe(w http.ResponseWriter, r *http.Request) {
	if s.Importer == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "import disabled"})
		return
	}
	var req importRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := s.Importer.FromURL(r.Context(), strings.TrimSpace(req.URL))
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	rec, err := s.Recipes.Create(d)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

type ingredientLine struct {
	IngredientID int64      `json:"ingredientId"`
	Name         string     `json:"name"`
	Quantity     float64    `json:"quantity"`
	Unit         model.Unit `json:"unit"`
}

type recipeDetail struct {
	model.Recipe
	Ingredients []ingredientLine `json:"ingredients"`
}

func (s *Server) getRecipe(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := s.Recipes.Get(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := s.Recipes.Ingredients(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	all, err := s.Catalog.All()
	if err != nil {
		writeError(w, r, err)
		return
	}
	names := make(map[int64]string, len(all))
	for _, ing := range all {
		names[ing.ID] = ing.Name
	}
	out := recipeDetail{Recipe: rec, Ingredients: make([]ingredientLine, 0, len(rows))}
	for _, row := range rows {
		out.Ingredients = append(out.Ingredients, ingredientLine{
			IngredientID: row.IngredientID,
			Name:         names[row.IngredientID],
			Quantity:     row.Quantity,
			Unit:         row.Unit,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) deleteRecipe(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.Recipes.Delete(id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listIngredients(w http.ResponseWriter, r *http.Request) {
	all, err := s.Catalog.All()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

type createIngredientRequest struct {
	Name string `json:"name"`
}

func (s *Server) createIngredient(w http.ResponseWriter, r *http.Request) {
	var req createIngredientRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ing, err := s.Catalog.Create(req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ing)
}

func (s *Server) getList(w http.ResponseWriter, r *http.Request) {
	items, err := s.Shopping.List()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewItems(items))
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if strings.TrimSpace(name) == "" {
		writeError(w, r, errors.Join(errBadRequest, errors.New("name is required")))
		return
	}
	rs, err := s.Shopping.RecipesWithItem(name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rs)
}

type addItemRequest struct {
	Name string `json:"name"`
}

func (s *Server) addItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	it, err := s.Shopping.AddItem(req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewItem(it))
}

type addRecipeResponse struct {
	Items   []itemView               `json:"items"`
	Created int                      `json:"created"`
	Merged  int                      `json:"merged"`
	Skipped []model.RecipeIngredient `json:"skipped"`
}

func (s *Server) addRecipe(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.Shopping.AddRecipe(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	skipped := res.Skipped
	if skipped == nil {
		skipped = []model.RecipeIngredient{}
	}
	writeJSON(w, http.StatusOK, addRecipeResponse{
		Items:   viewItems(res.Items),
		Created: res.Created,
		Merged:  res.Merged,
		Skipped: skipped,
	})
}

func (s *Server) clearChecked(w http.ResponseWriter, r *http.Request) {
	n, err := s.Shopping.ClearChecked()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

func (s *Server) removeItem(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.Shopping.Remove(id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// itemAction adapts a per-item service call to a handler.
func (s *Server) itemAction(fn func(int64) (model.ShoppingListItem, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		it, err := fn(id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, viewItem(it))
	}
}

func (s *Server) toggle(w http.ResponseWriter, r *http.Request) {
	s.itemAction(s.Shopping.Toggle)(w, r)
}

func (s *Server) increment(w http.ResponseWriter, r *http.Request) {
	s.itemAction(s.Shopping.Increment)(w, r)
}

func (s *Server) decrement(w http.ResponseWriter, r *http.Request) {
	s.itemAction(s.Shopping.Decrement)(w, r)
}
