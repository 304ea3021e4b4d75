package model

import (
	"time"

	"github.com/dukerupert/stockhome/internal/stock"
)

type Item struct {
	ID          int64        `json:"id"`
	HouseID     int64        `json:"house_id"`
	CatalogID   int64        `json:"catalog_id"`
	Category    string       `json:"category"`
	CreatedBy   int64        `json:"created_by"`
	Name        string       `json:"name"`
	Unit        string       `json:"unit"`
	Quantity    int          `json:"quantity"`
	Threshold   int          `json:"threshold"`
	Status      stock.Status `json:"status"`
	PurchasedAt *time.Time   `json:"purchased_at"`
	ExpiresAt   *time.Time   `json:"expires_at"`
	Version     int64        `json:"version"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// ItemFilter narrows an item listing. Zero values match everything.
type ItemFilter struct {
	Status   stock.Status
	Category string
	Query    string
}
