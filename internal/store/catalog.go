package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/stockhome/internal/apperr"
	"github.com/dukerupert/stockhome/internal/catalog"
	"github.com/dukerupert/stockhome/internal/model"
)

const defaultUnit = "pcs"

type CatalogStore struct {
	db *sql.DB
}

func NewCatalogStore(db *sql.DB) *CatalogStore {
	return &CatalogStore{db: db}
}

func scanCategory(scanner interface{ Scan(...any) error }) (*model.Category, error) {
	var c model.Category
	err := scanner.Scan(&c.ID, &c.Name, &c.SortOrder, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanCatalogEntry(scanner interface{ Scan(...any) error }) (*model.CatalogEntry, error) {
	var e model.CatalogEntry
	err := scanner.Scan(&e.ID, &e.Name, &e.CategoryID, &e.Category, &e.Unit, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

const categoryCols = `id, name, sort_order, created_at`
const catalogSelect = `SELECT e.id, e.name, e.category_id, c.name, e.unit, e.created_at, e.updated_at
	FROM catalog_entries e JOIN categories c ON c.id = e.category_id`

func (s *CatalogStore) ListCategories() ([]model.Category, error) {
	rows, err := s.db.Query(`SELECT ` + categoryCols + ` FROM categories ORDER BY sort_order ASC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []model.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, *c)
	}
	return categories, rows.Err()
}

// Search returns catalog entries whose name contains q, most specific first.
func (s *CatalogStore) Search(q string, limit int) ([]model.CatalogEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.db.Query(
		catalogSelect+` WHERE e.deleted_at IS NULL AND e.name LIKE ? ORDER BY length(e.name) ASC, e.name ASC LIMIT ?`,
		"%"+strings.TrimSpace(q)+"%", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search catalog: %w", err)
	}
	defer rows.Close()

	var entries []model.CatalogEntry
	for rows.Next() {
		e, err := scanCatalogEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan catalog entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func (s *CatalogStore) GetByName(name string) (*model.CatalogEntry, error) {
	return getCatalogByName(s.db, name)
}

// Resolve returns the catalog entry for name, creating it when missing.
func (s *CatalogStore) Resolve(name, unit, category string) (*model.CatalogEntry, error) {
	return resolveCatalog(s.db, name, unit, category)
}

func getCatalogByName(db dbtx, name string) (*model.CatalogEntry, error) {
	row := db.QueryRow(catalogSelect+` WHERE e.deleted_at IS NULL AND e.name = ?`, strings.TrimSpace(name))
	e, err := scanCatalogEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get catalog entry: %w", err)
	}
	return e, nil
}

// resolveCatalog finds or creates the shared catalog entry for an item name.
// An empty category is derived from the name.
func resolveCatalog(db dbtx, name, unit, category string) (*model.CatalogEntry, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("item name is required")
	}
	existing, err := getCatalogByName(db, name)
	if err != nil || existing != nil {
		return existing, err
	}

	if category == "" {
		category = catalog.Categorize(name)
	}
	if unit = strings.TrimSpace(unit); unit == "" {
		unit = defaultUnit
	}

	var categoryID int64
	err = db.QueryRow(`SELECT id FROM categories WHERE name = ?`, category).Scan(&categoryID)
	if err == sql.ErrNoRows {
		return nil, apperr.Validation("unknown category %q", category)
	}
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}

	_, err = db.Exec(
		`INSERT INTO catalog_entries (name, category_id, unit) VALUES (?, ?, ?)`,
		name, categoryID, unit,
	)
	if err != nil {
		return nil, fmt.Errorf("insert catalog entry: %w", apperr.Classify(err))
	}
	return getCatalogByName(db, name)
}
