package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/stockhome/internal/apperr"
	"github.com/dukerupert/stockhome/internal/model"
)

type NotificationStore struct {
	db *sql.DB
}

func NewNotificationStore(db *sql.DB) *NotificationStore {
	return &NotificationStore{db: db}
}

func scanNotification(scanner interface{ Scan(...any) error }) (*model.Notification, error) {
	var n model.Notification
	var itemID sql.NullInt64
	err := scanner.Scan(&n.ID, &n.HouseID, &itemID, &n.Kind, &n.Message, &n.Day, &n.Read, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	n.ItemID = nullInt64(itemID)
	return &n, nil
}

const notificationCols = `id, house_id, item_id, kind, message, day, is_read, created_at`

// Create records a notification unless one of the same kind already exists
// for the item on that day. It returns nil when the notification was a
// duplicate.
func (s *NotificationStore) Create(houseID, itemID int64, kind, message string, day time.Time) (*model.Notification, error) {
	result, err := s.db.Exec(
		`INSERT OR IGNORE INTO notifications (house_id, item_id, kind, message, day) VALUES (?, ?, ?, ?, ?)`,
		houseID, itemID, kind, message, day.Format(dateLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", apperr.Classify(err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(houseID, id)
}

func (s *NotificationStore) GetByID(houseID, id int64) (*model.Notification, error) {
	row := s.db.QueryRow(`SELECT `+notificationCols+` FROM notifications WHERE id = ? AND house_id = ?`, id, houseID)
	n, err := scanNotification(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return n, nil
}

func (s *NotificationStore) List(houseID int64, unreadOnly bool, limit int) ([]model.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `SELECT ` + notificationCols + ` FROM notifications WHERE house_id = ?`
	if unreadOnly {
		query += ` AND is_read = 0`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`

	rows, err := s.db.Query(query, houseID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, *n)
	}
	return notifications, rows.Err()
}

func (s *NotificationStore) UnreadCount(houseID int64) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM notifications WHERE house_id = ? AND is_read = 0`, houseID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return n, nil
}

func (s *NotificationStore) MarkRead(houseID, id int64) error {
	result, err := s.db.Exec(`UPDATE notifications SET is_read = 1 WHERE id = ? AND house_id = ?`, id, houseID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperr.NotFound("notification")
	}
	return nil
}

func (s *NotificationStore) MarkAllRead(houseID int64) (int64, error) {
	result, err := s.db.Exec(`UPDATE notifications SET is_read = 1 WHERE house_id = ? AND is_read = 0`, houseID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return result.RowsAffected()
}
