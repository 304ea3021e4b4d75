package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/stockhome/internal/apperr"
	"github.com/dukerupert/stockhome/internal/locale"
	"github.com/dukerupert/stockhome/internal/model"
	"github.com/dukerupert/stockhome/internal/stock"
)

type ShoppingStore struct {
	db *sql.DB
}

func NewShoppingStore(db *sql.DB) *ShoppingStore {
	return &ShoppingStore{db: db}
}

// --- List methods ---

func scanShoppingList(scanner interface{ Scan(...any) error }) (*model.ShoppingList, error) {
	var l model.ShoppingList
	var plannedFor, completedAt sql.NullTime
	err := scanner.Scan(&l.ID, &l.HouseID, &l.Name, &l.Status, &plannedFor, &completedAt,
		&l.CreatedBy, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	l.PlannedFor = nullTime(plannedFor)
	l.CompletedAt = nullTime(completedAt)
	return &l, nil
}

const shoppingListCols = `id, house_id, name, status, planned_for, completed_at, created_by, created_at, updated_at`

func getShoppingList(db dbtx, houseID, id int64) (*model.ShoppingList, error) {
	row := db.QueryRow(
		`SELECT `+shoppingListCols+` FROM shopping_lists WHERE id = ? AND house_id = ? AND `+notDeleted,
		id, houseID,
	)
	l, err := scanShoppingList(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get shopping list: %w", err)
	}
	return l, nil
}

// openList loads a list that still accepts recommendations.
func openList(db dbtx, houseID, id int64) (*model.ShoppingList, error) {
	l, err := getShoppingList(db, houseID, id)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, apperr.NotFound("shopping list")
	}
	if l.Status == model.ListDone {
		return nil, apperr.Conflict("shopping list %q is already done", l.Name)
	}
	return l, nil
}

func (s *ShoppingStore) CreateList(houseID, userID int64, name string, plannedFor *time.Time) (*model.ShoppingList, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Belanja " + locale.ShortDate(time.Now())
	}
	result, err := s.db.Exec(
		`INSERT INTO shopping_lists (house_id, name, planned_for, created_by) VALUES (?, ?, ?, ?)`,
		houseID, name, sqlDate(plannedFor), userID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert shopping list: %w", apperr.Classify(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetList(houseID, id)
}

func (s *ShoppingStore) GetList(houseID, id int64) (*model.ShoppingList, error) {
	return getShoppingList(s.db, houseID, id)
}

func (s *ShoppingStore) ListLists(houseID int64) ([]model.ShoppingList, error) {
	rows, err := s.db.Query(
		`SELECT `+shoppingListCols+` FROM shopping_lists WHERE house_id = ? AND `+notDeleted+`
		 ORDER BY CASE status WHEN 'done' THEN 1 ELSE 0 END, created_at DESC, id DESC`,
		houseID,
	)
	if err != nil {
		return nil, fmt.Errorf("list shopping lists: %w", err)
	}
	defer rows.Close()

	var lists []model.ShoppingList
	for rows.Next() {
		l, err := scanShoppingList(rows)
		if err != nil {
			return nil, fmt.Errorf("scan shopping list: %w", err)
		}
		lists = append(lists, *l)
	}
	return lists, rows.Err()
}

// SetListStatus moves a list forward through draft, in_progress and done.
// Setting the current status again is a no-op.
func (s *ShoppingStore) SetListStatus(houseID, id int64, status string) (*model.ShoppingList, error) {
	next := model.ListStatusRank(status)
	if next == 0 {
		return nil, apperr.Validation("invalid shopping list status %q", status)
	}
	l, err := s.GetList(houseID, id)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, apperr.NotFound("shopping list")
	}
	cur := model.ListStatusRank(l.Status)
	if next == cur {
		return l, nil
	}
	if next < cur {
		return nil, apperr.Conflict("shopping list cannot move from %s back to %s", l.Status, status)
	}

	var completedAt any
	if status == model.ListDone {
		completedAt = now()
	}
	result, err := s.db.Exec(
		`UPDATE shopping_lists SET status = ?, completed_at = ?, updated_at = ?
		 WHERE id = ? AND house_id = ? AND status = ? AND `+notDeleted,
		status, completedAt, now(), id, houseID, l.Status,
	)
	if err != nil {
		return nil, fmt.Errorf("update shopping list status: %w", apperr.Classify(err))
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, apperr.Conflict("shopping list was changed by someone else")
	}
	return s.GetList(houseID, id)
}

// DeleteList soft-deletes a list and its recommendations.
func (s *ShoppingStore) DeleteList(houseID, id int64) error {
	return withTx(s.db, func(tx *sql.Tx) error {
		if err := softDelete(tx, "shopping_lists", "shopping list", id, "house_id = ?", houseID); err != nil {
			return err
		}
		_, err := tx.Exec(
			`UPDATE shopping_recommendations SET deleted_at = ?, updated_at = ? WHERE list_id = ? AND `+notDeleted,
			now(), now(), id,
		)
		if err != nil {
			return fmt.Errorf("delete recommendations: %w", err)
		}
		return nil
	})
}

// --- Recommendation methods ---

func scanRecommendation(scanner interface{ Scan(...any) error }) (*model.Recommendation, error) {
	var r model.Recommendation
	var boughtBy sql.NullInt64
	var boughtAt sql.NullTime
	err := scanner.Scan(&r.ID, &r.ListID, &r.ItemID, &r.ItemName, &r.Unit, &r.Suggested, &r.Method,
		&r.Status, &r.Link, &boughtBy, &boughtAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.BoughtBy = nullInt64(boughtBy)
	r.BoughtAt = nullTime(boughtAt)
	return &r, nil
}

const recommendationSelect = `SELECT r.id, r.list_id, r.item_id, i.name, i.unit, r.suggested, r.method,
	r.status, r.link, r.bought_by, r.bought_at, r.created_at, r.updated_at
	FROM shopping_recommendations r
	JOIN items i ON i.id = r.item_id
	JOIN shopping_lists l ON l.id = r.list_id`

func getRecommendation(db dbtx, houseID, id int64) (*model.Recommendation, error) {
	row := db.QueryRow(
		recommendationSelect+` WHERE r.id = ? AND l.house_id = ? AND r.deleted_at IS NULL AND l.deleted_at IS NULL AND i.deleted_at IS NULL`,
		id, houseID,
	)
	r, err := scanRecommendation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get recommendation: %w", err)
	}
	return r, nil
}

func (s *ShoppingStore) GetRecommendation(houseID, id int64) (*model.Recommendation, error) {
	return getRecommendation(s.db, houseID, id)
}

// Recommendations lists a list's live recommendations, pending first.
func (s *ShoppingStore) Recommendations(houseID, listID int64) ([]model.Recommendation, error) {
	rows, err := s.db.Query(
		recommendationSelect+` WHERE r.list_id = ? AND l.house_id = ? AND r.deleted_at IS NULL AND l.deleted_at IS NULL AND i.deleted_at IS NULL
		 ORDER BY CASE r.status WHEN 'pending' THEN 0 ELSE 1 END, i.name ASC`,
		listID, houseID,
	)
	if err != nil {
		return nil, fmt.Errorf("list recommendations: %w", err)
	}
	defer rows.Close()

	var recs []model.Recommendation
	for rows.Next() {
		r, err := scanRecommendation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recommendation: %w", err)
		}
		recs = append(recs, *r)
	}
	return recs, rows.Err()
}

// AddRecommendation puts an item on a list by hand. A zero suggested
// quantity is sized from the item's current stock.
func (s *ShoppingStore) AddRecommendation(houseID, listID, itemID int64, suggested int, link string) (*model.Recommendation, error) {
	if suggested < 0 {
		return nil, apperr.Validation("suggested quantity must be positive")
	}
	var id int64
	err := withTx(s.db, func(tx *sql.Tx) error {
		if _, err := openList(tx, houseID, listID); err != nil {
			return err
		}
		item, err := getItem(tx, houseID, itemID)
		if err != nil {
			return err
		}
		if item == nil {
			return apperr.NotFound("item")
		}
		if suggested == 0 {
			suggested = stock.RestockQuantity(item.Quantity, item.Threshold)
		}
		if suggested == 0 {
			suggested = 1
		}
		id, err = insertRecommendation(tx, listID, itemID, suggested, model.MethodManual, strings.TrimSpace(link))
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.GetRecommendation(houseID, id)
}

func insertRecommendation(tx dbtx, listID, itemID int64, suggested int, method, link string) (int64, error) {
	result, err := tx.Exec(
		`INSERT INTO shopping_recommendations (list_id, item_id, suggested, method, link) VALUES (?, ?, ?, ?, ?)`,
		listID, itemID, suggested, method, link,
	)
	if err != nil {
		if errors.Is(apperr.Classify(err), apperr.ErrConflict) {
			return 0, apperr.Conflict("item is already pending on this list")
		}
		return 0, fmt.Errorf("insert recommendation: %w", apperr.Classify(err))
	}
	return result.LastInsertId()
}

// Generate adds an automatic recommendation for every low or empty item of
// the house that is not already pending on the list, and returns the new rows.
func (s *ShoppingStore) Generate(houseID, listID int64) ([]model.Recommendation, error) {
	var ids []int64
	err := withTx(s.db, func(tx *sql.Tx) error {
		if _, err := openList(tx, houseID, listID); err != nil {
			return err
		}

		type candidate struct {
			id                  int64
			quantity, threshold int
		}
		rows, err := tx.Query(
			`SELECT i.id, i.quantity, i.threshold FROM items i
			 WHERE i.house_id = ? AND i.deleted_at IS NULL AND i.status IN (?, ?)
			 AND NOT EXISTS (
			     SELECT 1 FROM shopping_recommendations r
			     WHERE r.list_id = ? AND r.item_id = i.id AND r.status = ? AND r.deleted_at IS NULL
			 )
			 ORDER BY i.name ASC`,
			houseID, string(stock.StatusLow), string(stock.StatusEmpty), listID, model.RecommendationPending,
		)
		if err != nil {
			return fmt.Errorf("select restock candidates: %w", err)
		}
		var candidates []candidate
		for rows.Next() {
			var c candidate
			if err := rows.Scan(&c.id, &c.quantity, &c.threshold); err != nil {
				rows.Close()
				return fmt.Errorf("scan restock candidate: %w", err)
			}
			candidates = append(candidates, c)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate restock candidates: %w", err)
		}

		for _, c := range candidates {
			n := stock.RestockQuantity(c.quantity, c.threshold)
			if n == 0 {
				continue
			}
			id, err := insertRecommendation(tx, listID, c.id, n, model.MethodAutomatic, "")
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	recs := make([]model.Recommendation, 0, len(ids))
	for _, id := range ids {
		r, err := s.GetRecommendation(houseID, id)
		if err != nil {
			return nil, err
		}
		if r != nil {
			recs = append(recs, *r)
		}
	}
	return recs, nil
}

// MarkBought completes a pending recommendation: the suggested quantity is
// added to the item as a purchase in the same transaction.
func (s *ShoppingStore) MarkBought(houseID, id, userID int64, unitPrice *decimal.Decimal) (*model.Recommendation, *model.Item, error) {
	if unitPrice != nil && unitPrice.IsNegative() {
		return nil, nil, apperr.Validation("unit price must not be negative")
	}
	var itemID int64
	err := withTx(s.db, func(tx *sql.Tx) error {
		rec, err := getRecommendation(tx, houseID, id)
		if err != nil {
			return err
		}
		if rec == nil {
			return apperr.NotFound("recommendation")
		}
		if rec.Status != model.RecommendationPending {
			return apperr.Conflict("%s is already bought", rec.ItemName)
		}
		if _, err := openList(tx, houseID, rec.ListID); err != nil {
			return err
		}
		item, err := getItem(tx, houseID, rec.ItemID)
		if err != nil {
			return err
		}
		if item == nil {
			return apperr.NotFound("item")
		}
		itemID = item.ID

		_, err = adjustTx(tx, item, userID, Adjustment{
			Delta:     rec.Suggested,
			Cause:     model.CausePurchase,
			UnitPrice: unitPrice,
			Note:      "shopping list",
		})
		if err != nil {
			return err
		}

		ts := now()
		result, err := tx.Exec(
			`UPDATE shopping_recommendations SET status = ?, bought_by = ?, bought_at = ?, updated_at = ?
			 WHERE id = ? AND status = ?`,
			model.RecommendationBought, userID, ts, ts, id, model.RecommendationPending,
		)
		if err != nil {
			return fmt.Errorf("mark bought: %w", apperr.Classify(err))
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return apperr.Conflict("%s is already bought", rec.ItemName)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	rec, err := s.GetRecommendation(houseID, id)
	if err != nil {
		return nil, nil, err
	}
	item, err := getItem(s.db, houseID, itemID)
	if err != nil {
		return nil, nil, err
	}
	return rec, item, nil
}

func (s *ShoppingStore) DeleteRecommendation(houseID, id int64) error {
	return softDelete(s.db, "shopping_recommendations", "recommendation", id,
		`list_id IN (SELECT id FROM shopping_lists WHERE house_id = ?)`, houseID)
}
