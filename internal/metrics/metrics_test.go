package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRegistry_CountersExposed(t *testing.T) {
	m := NewRegistry()
	m.RecipesMerged.Inc()
	m.ItemsCreated.Add(3)
	m.AddsRejected.WithLabelValues("no_ingredients").Inc()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{
		"shoplist_recipes_merged_total 1",
		"shoplist_items_created_total 3",
		`shoplist_adds_rejected_total{reason="no_ingredients"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("missing %q in:\n%s", want, body)
		}
	}
}
