package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/stockhome/internal/model"
)

// ActivityStore keeps the append-only timeline of what members did.
type ActivityStore struct {
	db *sql.DB
}

func NewActivityStore(db *sql.DB) *ActivityStore {
	return &ActivityStore{db: db}
}

func (s *ActivityStore) Record(houseID, userID int64, kind, subject, detail string) error {
	var uid any
	if userID != 0 {
		uid = userID
	}
	_, err := s.db.Exec(
		`INSERT INTO activities (house_id, user_id, kind, subject, detail) VALUES (?, ?, ?, ?, ?)`,
		houseID, uid, kind, subject, detail,
	)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

// List returns the newest activities first. A non-zero before pages backwards.
func (s *ActivityStore) List(houseID int64, kind string, before time.Time, limit int) ([]model.Activity, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `SELECT a.id, a.house_id, a.user_id, COALESCE(u.name, ''), a.kind, a.subject, a.detail, a.created_at
		FROM activities a LEFT JOIN users u ON u.id = a.user_id
		WHERE a.house_id = ?`
	args := []any{houseID}
	if kind != "" {
		query += ` AND a.kind = ?`
		args = append(args, kind)
	}
	if !before.IsZero() {
		query += ` AND a.created_at < ?`
		args = append(args, sqlTime(before))
	}
	query += ` ORDER BY a.created_at DESC, a.id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	var activities []model.Activity
	for rows.Next() {
		var a model.Activity
		var userID sql.NullInt64
		err := rows.Scan(&a.ID, &a.HouseID, &userID, &a.UserName, &a.Kind, &a.Subject, &a.Detail, &a.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		a.UserID = nullInt64(userID)
		activities = append(activities, a)
	}
	return activities, rows.Err()
}
