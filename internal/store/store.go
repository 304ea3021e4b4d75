package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/stockhome/internal/apperr"
)

// notDeleted filters soft-deleted rows. Every read of a soft-deletable table
// goes through it.
const notDeleted = `deleted_at IS NULL`

const (
	timeLayout = "2006-01-02 15:04:05"
	dateLayout = "2006-01-02"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// sqlTime formats t the way SQLite's datetime('now') does so stored values
// compare correctly as text.
func sqlTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func now() string {
	return sqlTime(time.Now())
}

func sqlDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(dateLayout)
}

func nullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func nullInt64(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

// softDelete marks a row deleted. where narrows the match beyond the id, for
// example to a house.
func softDelete(db dbtx, table, entity string, id int64, where string, args ...any) error {
	query := `UPDATE ` + table + ` SET deleted_at = ?, updated_at = ? WHERE id = ? AND ` + notDeleted
	if where != "" {
		query += ` AND ` + where
	}
	ts := now()
	result, err := db.Exec(query, append([]any{ts, ts, id}, args...)...)
	if err != nil {
		return fmt.Errorf("delete %s: %w", entity, apperr.Classify(err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return apperr.NotFound(entity)
	}
	return nil
}

// withTx runs fn in a transaction, committing on success.
func withTx(db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", apperr.Classify(err))
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", apperr.Classify(err))
	}
	return nil
}
