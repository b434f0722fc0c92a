package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"shoplist/internal/catalog"
	"shoplist/internal/logger"
	"shoplist/internal/model"
	"shoplist/internal/recipes"
	"shoplist/internal/shopping"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, shopping.ErrRecipeHasNoIngredients):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, catalog.ErrExists):
		status = http.StatusConflict
	case errors.Is(err, shopping.ErrRecipeNotFound),
		errors.Is(err, shopping.ErrItemNotFound),
		errors.Is(err, recipes.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, recipes.ErrNameRequired),
		errors.Is(err, recipes.ErrInvalidQuantity),
		errors.Is(err, model.ErrUnknownUnit),
		errors.Is(err, shopping.ErrEmptyName),
		errors.Is(err, catalog.ErrEmptyName),
		errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		logger.Error("http: request failed", zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())), zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

var errBadRequest = errors.New("bad request")

func idParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Join(errBadRequest, errors.New("invalid id"))
	}
	return id, nil
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Join(errBadRequest, errors.New("invalid request body"))
	}
	return nil
}

// itemView adds a display quantity to a list item.
type itemView struct {
	model.ShoppingListItem
	Display string `json:"display"`
}

func viewItem(it model.ShoppingListItem) itemView {
	return itemView{ShoppingListItem: it, Display: model.FormatQuantity(it.Quantity, it.Unit)}
}

func viewItems(items []model.ShoppingListItem) []itemView {
	out := make([]itemView, 0, len(items))
	for _, it := range items {
		out = append(out, viewItem(it))
	}
	return out
}

// requestLogger logs one zap line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}
