// Package httpapi exposes recipes and the shopping list over HTTP.
package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"shoplist/internal/catalog"
	"shoplist/internal/recipes"
	"shoplist/internal/shopping"
)

// Importer builds a recipe draft from a web page.
type Importer interface {
	FromURL(ctx context.Context, rawURL string) (recipes.Draft, error)
}

type Server struct {
	Recipes  *recipes.Manager
	Catalog  *catalog.Catalog
	Shopping *shopping.Service
	Importer Importer     // optional
	Metrics  http.Handler // optional
	// Origins allowed by CORS; empty means any.
	Origins []string
}

func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	origins := s.Origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Link"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics)
	}

	r.Route("/recipes", func(r chi.Router) {
		r.Get("/", s.listRecipes)
		r.Post("/", s.createRecipe)
		r.Post("/import", s.importRecipe)
		r.Get("/{id}", s.getRecipe)
		r.Put("/{id}", s.updateRecipe)
		r.Delete("/{id}", s.deleteRecipe)
	})
	r.Get("/ingredients", s.listIngredients)
	r.Post("/ingredients", s.createIngredient)

	r.Route("/list", func(r chi.Router) {
		r.Get("/", s.getList)
		r.Get("/lookup", s.lookup)
		r.Post("/items", s.addItem)
		r.Post("/recipes/{id}", s.addRecipe)
		r.Post("/clear-checked", s.clearChecked)
		r.Route("/items/{id}", func(r chi.Router) {
			r.Delete("/", s.removeItem)
			r.Post("/toggle", s.toggle)
			r.Post("/increment", s.increment)
			r.Post("/decrement", s.decrement)
		})
	})
	return r
}
