package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	CausePurchase    = "purchase"
	CauseConsumption = "consumption"
	CauseExpiry      = "expiry"
	CausePromo       = "promo"
	CauseAdjustment  = "adjustment"
)

func ValidCause(cause string) bool {
	switch cause {
	case CausePurchase, CauseConsumption, CauseExpiry, CausePromo, CauseAdjustment:
		return true
	}
	return false
}

// StockEntry is one append-only movement in an item's quantity.
type StockEntry struct {
	ID        int64            `json:"id"`
	ItemID    int64            `json:"item_id"`
	HouseID   int64            `json:"house_id"`
	UserID    int64            `json:"user_id"`
	Delta     int              `json:"delta"`
	Cause     string           `json:"cause"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
	Note      string           `json:"note"`
	CreatedAt time.Time        `json:"created_at"`
}
