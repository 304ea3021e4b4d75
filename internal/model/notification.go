package model

import "time"

const (
	NotifyLowStock   = "low_stock"
	NotifyOutOfStock = "out_of_stock"
	NotifyExpiring   = "expiring"
)

type Notification struct {
	ID        int64     `json:"id"`
	HouseID   int64     `json:"house_id"`
	ItemID    *int64    `json:"item_id"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	Day       string    `json:"day"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}
