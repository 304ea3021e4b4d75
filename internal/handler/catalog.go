package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/stockhome/internal/catalog"
	"github.com/dukerupert/stockhome/internal/model"
	"github.com/dukerupert/stockhome/internal/store"
)

type CatalogHandler struct {
	base
	catalogStore *store.CatalogStore
}

func NewCatalogHandler(cs *store.CatalogStore, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{base: base{logger: logger}, catalogStore: cs}
}

func (h *CatalogHandler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalogStore.ListCategories()
	if err != nil {
		h.fail(w, err, "failed to list categories")
		return
	}
	if categories == nil {
		categories = []model.Category{}
	}
	writeJSON(w, http.StatusOK, categories)
}

// Search backs name autocomplete. The response also carries the category a
// new item with exactly q as its name would default to.
func (h *CatalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		h.fail(w, err, "")
		return
	}

	entries, err := h.catalogStore.Search(q, limit)
	if err != nil {
		h.fail(w, err, "failed to search catalog")
		return
	}
	if entries == nil {
		entries = []model.CatalogEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries":            entries,
		"suggested_category": catalog.Categorize(q),
	})
}
