package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/stockhome/internal/apperr"
	"github.com/dukerupert/stockhome/internal/model"
	"github.com/dukerupert/stockhome/internal/stock"
)

// ItemInput carries the editable fields of an item.
type ItemInput struct {
	Name        string
	Unit        string
	Category    string
	Quantity    int
	Threshold   int
	PurchasedAt *time.Time
	ExpiresAt   *time.Time
	UnitPrice   *decimal.Decimal
}

func (in ItemInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return apperr.Validation("item name is required")
	}
	if in.Quantity < 0 {
		return apperr.Validation("quantity must not be negative")
	}
	if in.Threshold < 0 {
		return apperr.Validation("threshold must not be negative")
	}
	if in.PurchasedAt != nil && in.ExpiresAt != nil && in.ExpiresAt.Before(*in.PurchasedAt) {
		return apperr.Validation("expiry date is before purchase date")
	}
	if in.UnitPrice != nil && in.UnitPrice.IsNegative() {
		return apperr.Validation("unit price must not be negative")
	}
	return nil
}

// Adjustment is a signed change to an item's quantity. ExpectedVersion, when
// set, must match the stored version.
type Adjustment struct {
	Delta           int
	Cause           string
	UnitPrice       *decimal.Decimal
	Note            string
	ExpectedVersion *int64
}

func (a Adjustment) validate() error {
	if a.Delta == 0 {
		return apperr.Validation("delta must not be zero")
	}
	if !model.ValidCause(a.Cause) {
		return apperr.Validation("invalid cause %q", a.Cause)
	}
	switch a.Cause {
	case model.CausePurchase, model.CausePromo:
		if a.Delta < 0 {
			return apperr.Validation("%s must add stock", a.Cause)
		}
	case model.CauseConsumption, model.CauseExpiry:
		if a.Delta > 0 {
			return apperr.Validation("%s must remove stock", a.Cause)
		}
	}
	if a.UnitPrice != nil {
		if a.Cause != model.CausePurchase {
			return apperr.Validation("unit price is only recorded for purchases")
		}
		if a.UnitPrice.IsNegative() {
			return apperr.Validation("unit price must not be negative")
		}
	}
	return nil
}

// ItemStore is the only writer of items; it recomputes status on every write.
type ItemStore struct {
	db *sql.DB
}

func NewItemStore(db *sql.DB) *ItemStore {
	return &ItemStore{db: db}
}

func scanItem(scanner interface{ Scan(...any) error }) (*model.Item, error) {
	var item model.Item
	var status string
	var purchasedAt, expiresAt sql.NullTime
	err := scanner.Scan(
		&item.ID, &item.HouseID, &item.CatalogID, &item.Category, &item.CreatedBy,
		&item.Name, &item.Unit, &item.Quantity, &item.Threshold, &status,
		&purchasedAt, &expiresAt, &item.Version, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	item.Status = stock.Status(status)
	item.PurchasedAt = nullTime(purchasedAt)
	item.ExpiresAt = nullTime(expiresAt)
	return &item, nil
}

const itemSelect = `SELECT i.id, i.house_id, i.catalog_id, c.name, i.created_by,
	i.name, i.unit, i.quantity, i.threshold, i.status,
	i.purchased_at, i.expires_at, i.version, i.created_at, i.updated_at
	FROM items i
	JOIN catalog_entries e ON e.id = i.catalog_id
	JOIN categories c ON c.id = e.category_id`

func getItem(db dbtx, houseID, id int64) (*model.Item, error) {
	row := db.QueryRow(itemSelect+` WHERE i.id = ? AND i.house_id = ? AND i.deleted_at IS NULL`, id, houseID)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

func queryItems(db dbtx, where string, args ...any) ([]model.Item, error) {
	rows, err := db.Query(itemSelect+` WHERE i.deleted_at IS NULL AND `+where+` ORDER BY i.name ASC, i.id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// Create inserts an item, resolving its catalog entry by name. Opening stock
// is recorded as a purchase.
func (s *ItemStore) Create(houseID, userID int64, in ItemInput) (*model.Item, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var id int64
	err := withTx(s.db, func(tx *sql.Tx) error {
		entry, err := resolveCatalog(tx, in.Name, in.Unit, in.Category)
		if err != nil {
			return err
		}
		unit := strings.TrimSpace(in.Unit)
		if unit == "" {
			unit = entry.Unit
		}
		status := stock.Evaluate(in.Quantity, in.Threshold)
		result, err := tx.Exec(
			`INSERT INTO items (house_id, catalog_id, created_by, name, unit, quantity, threshold, status, purchased_at, expires_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			houseID, entry.ID, userID, strings.TrimSpace(in.Name), unit, in.Quantity, in.Threshold,
			string(status), sqlDate(in.PurchasedAt), sqlDate(in.ExpiresAt),
		)
		if err != nil {
			return fmt.Errorf("insert item: %w", apperr.Classify(err))
		}
		id, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		if in.Quantity > 0 {
			_, err = appendHistory(tx, id, houseID, userID, in.Quantity, model.CausePurchase, in.UnitPrice, "")
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(houseID, id)
}

// GetByID returns the item when it belongs to houseID and is not deleted.
func (s *ItemStore) GetByID(houseID, id int64) (*model.Item, error) {
	return getItem(s.db, houseID, id)
}

func (s *ItemStore) List(houseID int64, f model.ItemFilter) ([]model.Item, error) {
	where := `i.house_id = ?`
	args := []any{houseID}
	if f.Status != "" {
		if !f.Status.Valid() {
			return nil, apperr.Validation("invalid status %q", f.Status)
		}
		where += ` AND i.status = ?`
		args = append(args, string(f.Status))
	}
	if f.Category != "" {
		where += ` AND c.name = ?`
		args = append(args, f.Category)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		where += ` AND i.name LIKE ?`
		args = append(args, "%"+q+"%")
	}
	return queryItems(s.db, where, args...)
}

// NeedingRestock lists the house's low and empty items.
func (s *ItemStore) NeedingRestock(houseID int64) ([]model.Item, error) {
	return queryItems(s.db, `i.house_id = ? AND i.status IN (?, ?)`,
		houseID, string(stock.StatusLow), string(stock.StatusEmpty))
}

// ExpiringBy lists in-stock items whose expiry date is on or before day.
func (s *ItemStore) ExpiringBy(houseID int64, day time.Time) ([]model.Item, error) {
	return queryItems(s.db, `i.house_id = ? AND i.quantity > 0 AND i.expires_at IS NOT NULL AND i.expires_at <= ?`,
		houseID, day.Format(dateLayout))
}

// CountByStatus counts live items per status across all houses.
func (s *ItemStore) CountByStatus() (map[stock.Status]int, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM items WHERE ` + notDeleted + ` GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count items: %w", err)
	}
	defer rows.Close()

	counts := map[stock.Status]int{
		stock.StatusSufficient: 0,
		stock.StatusLow:        0,
		stock.StatusEmpty:      0,
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan item count: %w", err)
		}
		counts[stock.Status(status)] = n
	}
	return counts, rows.Err()
}

// Update replaces an item's editable fields if its version still equals
// expectedVersion. A quantity change is recorded as an adjustment.
func (s *ItemStore) Update(houseID, id, userID int64, in ItemInput, expectedVersion int64) (*model.Item, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	err := withTx(s.db, func(tx *sql.Tx) error {
		item, err := getItem(tx, houseID, id)
		if err != nil {
			return err
		}
		if item == nil {
			return apperr.NotFound("item")
		}
		if item.Version != expectedVersion {
			return staleItem(item)
		}

		catalogID := item.CatalogID
		name := strings.TrimSpace(in.Name)
		if !strings.EqualFold(name, item.Name) || (in.Category != "" && in.Category != item.Category) {
			entry, err := resolveCatalog(tx, name, in.Unit, in.Category)
			if err != nil {
				return err
			}
			catalogID = entry.ID
		}
		unit := strings.TrimSpace(in.Unit)
		if unit == "" {
			unit = item.Unit
		}

		status := stock.Evaluate(in.Quantity, in.Threshold)
		result, err := tx.Exec(
			`UPDATE items SET catalog_id = ?, name = ?, unit = ?, quantity = ?, threshold = ?, status = ?,
			 purchased_at = ?, expires_at = ?, version = version + 1, updated_at = ?
			 WHERE id = ? AND version = ? AND deleted_at IS NULL`,
			catalogID, name, unit, in.Quantity, in.Threshold, string(status),
			sqlDate(in.PurchasedAt), sqlDate(in.ExpiresAt), now(), id, expectedVersion,
		)
		if err != nil {
			return fmt.Errorf("update item: %w", apperr.Classify(err))
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return staleItem(item)
		}

		if delta := in.Quantity - item.Quantity; delta != 0 {
			_, err := appendHistory(tx, id, houseID, userID, delta, model.CauseAdjustment, nil, "edited")
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(houseID, id)
}

// Adjust applies a signed quantity change and records it in the stock history.
// A result below zero is rejected.
func (s *ItemStore) Adjust(houseID, id, userID int64, adj Adjustment) (*model.Item, *model.StockEntry, error) {
	if err := adj.validate(); err != nil {
		return nil, nil, err
	}

	var entryID int64
	err := withTx(s.db, func(tx *sql.Tx) error {
		item, err := getItem(tx, houseID, id)
		if err != nil {
			return err
		}
		if item == nil {
			return apperr.NotFound("item")
		}
		if adj.ExpectedVersion != nil && *adj.ExpectedVersion != item.Version {
			return staleItem(item)
		}
		entryID, err = adjustTx(tx, item, userID, adj)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	item, err := s.GetByID(houseID, id)
	if err != nil {
		return nil, nil, err
	}
	entry, err := getStockEntry(s.db, entryID)
	if err != nil {
		return nil, nil, err
	}
	return item, entry, nil
}

// adjustTx applies adj to a loaded item with compare-and-set on its version.
func adjustTx(tx dbtx, item *model.Item, userID int64, adj Adjustment) (int64, error) {
	quantity := item.Quantity + adj.Delta
	if quantity < 0 {
		return 0, apperr.Validation("only %d %s of %s in stock", item.Quantity, item.Unit, item.Name)
	}
	status := stock.Evaluate(quantity, item.Threshold)

	query := `UPDATE items SET quantity = ?, status = ?, version = version + 1, updated_at = ?`
	args := []any{quantity, string(status), now()}
	if adj.Cause == model.CausePurchase {
		query += `, purchased_at = ?`
		args = append(args, time.Now().UTC().Format(dateLayout))
	}
	query += ` WHERE id = ? AND version = ? AND deleted_at IS NULL`
	args = append(args, item.ID, item.Version)

	result, err := tx.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("adjust item: %w", apperr.Classify(err))
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return 0, staleItem(item)
	}
	return appendHistory(tx, item.ID, item.HouseID, userID, adj.Delta, adj.Cause, adj.UnitPrice, adj.Note)
}

// Delete soft-deletes an item and withdraws its pending recommendations.
func (s *ItemStore) Delete(houseID, id int64) error {
	return withTx(s.db, func(tx *sql.Tx) error {
		if err := softDelete(tx, "items", "item", id, "house_id = ?", houseID); err != nil {
			return err
		}
		_, err := tx.Exec(
			`UPDATE shopping_recommendations SET deleted_at = ?, updated_at = ?
			 WHERE item_id = ? AND status = ? AND `+notDeleted,
			now(), now(), id, model.RecommendationPending,
		)
		if err != nil {
			return fmt.Errorf("withdraw recommendations: %w", err)
		}
		return nil
	})
}

func staleItem(item *model.Item) error {
	return apperr.Conflict("%s was changed by someone else; reload and try again", item.Name)
}
