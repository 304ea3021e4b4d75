package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/stockhome/internal/apperr"
	"github.com/dukerupert/stockhome/internal/model"
)

// HistoryStore reads the append-only stock history. Entries are written only
// by item and shopping operations in the same transaction as the quantity
// change they describe.
type HistoryStore struct {
	db *sql.DB
}

func NewHistoryStore(db *sql.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

func scanStockEntry(scanner interface{ Scan(...any) error }) (*model.StockEntry, error) {
	var e model.StockEntry
	var price sql.NullString
	err := scanner.Scan(&e.ID, &e.ItemID, &e.HouseID, &e.UserID, &e.Delta, &e.Cause, &price, &e.Note, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	if price.Valid {
		d, err := decimal.NewFromString(price.String)
		if err != nil {
			return nil, fmt.Errorf("parse unit price: %w", err)
		}
		e.UnitPrice = &d
	}
	return &e, nil
}

const stockEntryCols = `id, item_id, house_id, user_id, delta, cause, unit_price, note, created_at`

func appendHistory(tx dbtx, itemID, houseID, userID int64, delta int, cause string, price *decimal.Decimal, note string) (int64, error) {
	var p any
	if price != nil {
		p = price.String()
	}
	result, err := tx.Exec(
		`INSERT INTO stock_history (item_id, house_id, user_id, delta, cause, unit_price, note) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		itemID, houseID, userID, delta, cause, p, note,
	)
	if err != nil {
		return 0, fmt.Errorf("insert stock history: %w", apperr.Classify(err))
	}
	return result.LastInsertId()
}

func getStockEntry(db dbtx, id int64) (*model.StockEntry, error) {
	row := db.QueryRow(`SELECT `+stockEntryCols+` FROM stock_history WHERE id = ?`, id)
	e, err := scanStockEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get stock entry: %w", err)
	}
	return e, nil
}

// queryEntries lists matching entries newest first; limit 0 means no limit.
func (s *HistoryStore) queryEntries(where string, limit int, args ...any) ([]model.StockEntry, error) {
	query := `SELECT ` + stockEntryCols + ` FROM stock_history WHERE ` + where + ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list stock history: %w", err)
	}
	defer rows.Close()

	var entries []model.StockEntry
	for rows.Next() {
		e, err := scanStockEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stock entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// ListForItem returns an item's movements, newest first.
func (s *HistoryStore) ListForItem(houseID, itemID int64, limit int) ([]model.StockEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.queryEntries(`house_id = ? AND item_id = ?`, limit, houseID, itemID)
}

// ListSince returns the house's movements recorded at or after since.
func (s *HistoryStore) ListSince(houseID int64, since time.Time) ([]model.StockEntry, error) {
	return s.queryEntries(`house_id = ? AND created_at >= ?`, 0, houseID, sqlTime(since))
}
