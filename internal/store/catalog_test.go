package store

import (
	"errors"
	"testing"

	"github.com/dukerupert/stockhome/internal/apperr"
	"github.com/dukerupert/stockhome/internal/catalog"
)

func TestCategorySeedData(t *testing.T) {
	cs := NewCatalogStore(setupTestDB(t))

	categories, err := cs.ListCategories()
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	if len(categories) != len(catalog.Categories) {
		t.Fatalf("expected %d seed categories, got %d", len(catalog.Categories), len(categories))
	}
	for i, name := range catalog.Categories {
		if categories[i].Name != name {
			t.Errorf("category[%d].Name = %q, want %q", i, categories[i].Name, name)
		}
	}
}

func TestCatalogResolve(t *testing.T) {
	cs := NewCatalogStore(setupTestDB(t))

	e, err := cs.Resolve("Pasta Gigi", "", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if e.Category != catalog.PerawatanDiri {
		t.Errorf("category = %q, want %q", e.Category, catalog.PerawatanDiri)
	}
	if e.Unit != defaultUnit {
		t.Errorf("unit = %q, want %q", e.Unit, defaultUnit)
	}

	again, err := cs.Resolve("PASTA GIGI", "tube", catalog.Lainnya)
	if err != nil {
		t.Fatalf("resolve again: %v", err)
	}
	if again.ID != e.ID {
		t.Errorf("resolve created a second entry: %d vs %d", again.ID, e.ID)
	}

	explicit, err := cs.Resolve("Payung", "buah", catalog.Lainnya)
	if err != nil {
		t.Fatalf("resolve explicit: %v", err)
	}
	if explicit.Category != catalog.Lainnya || explicit.Unit != "buah" {
		t.Errorf("explicit = %+v", explicit)
	}

	if _, err := cs.Resolve("Sesuatu", "", "Tidak Ada"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("unknown category error = %v, want validation", err)
	}
}

func TestCatalogSearch(t *testing.T) {
	cs := NewCatalogStore(setupTestDB(t))
	for _, name := range []string{"Kopi", "Kopi Susu", "Teh Celup"} {
		if _, err := cs.Resolve(name, "", ""); err != nil {
			t.Fatalf("resolve %s: %v", name, err)
		}
	}

	entries, err := cs.Search("kopi", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("search returned %d entries, want 2", len(entries))
	}
	if entries[0].Name != "Kopi" {
		t.Errorf("first result = %q, want shortest match Kopi", entries[0].Name)
	}
}
