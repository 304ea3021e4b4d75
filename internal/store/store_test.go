package store

import (
	"database/sql"
	"testing"

	"github.com/dukerupert/stockhome/internal/database"
	"github.com/dukerupert/stockhome/internal/model"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// seedHouse creates a user and a house they administer.
func seedHouse(t *testing.T, db *sql.DB) (*model.User, *model.House) {
	t.Helper()
	u, err := NewUserStore(db).Create("owner@example.com", "Owner", "rahasia123")
	if err != nil {
		t.Fatalf("create owner: %v", err)
	}
	h, err := NewHouseStore(db).Create("Kos Melati", "Jl. Melati 1", u.ID)
	if err != nil {
		t.Fatalf("create house: %v", err)
	}
	return u, h
}

func TestSoftDeleteMissingRow(t *testing.T) {
	db := setupTestDB(t)
	u, _ := seedHouse(t, db)
	us := NewUserStore(db)

	if err := us.Delete(u.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	err := us.Delete(u.ID)
	if err == nil {
		t.Fatal("expected not found deleting twice")
	}
}
