package model

import "time"

const (
	ListDraft      = "draft"
	ListInProgress = "in_progress"
	ListDone       = "done"

	MethodManual    = "manual"
	MethodAutomatic = "automatic"

	RecommendationPending = "pending"
	RecommendationBought  = "bought"
)

type ShoppingList struct {
	ID          int64      `json:"id"`
	HouseID     int64      `json:"house_id"`
	Name        string     `json:"name"`
	Status      string     `json:"status"`
	PlannedFor  *time.Time `json:"planned_for"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedBy   int64      `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type Recommendation struct {
	ID        int64      `json:"id"`
	ListID    int64      `json:"list_id"`
	ItemID    int64      `json:"item_id"`
	ItemName  string     `json:"item_name"`
	Unit      string     `json:"unit"`
	Suggested int        `json:"suggested"`
	Method    string     `json:"method"`
	Status    string     `json:"status"`
	Link      string     `json:"link"`
	BoughtBy  *int64     `json:"bought_by"`
	BoughtAt  *time.Time `json:"bought_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ListStatusRank orders shopping list statuses; transitions may only move
// to a higher rank.
func ListStatusRank(status string) int {
	switch status {
	case ListDraft:
		return 1
	case ListInProgress:
		return 2
	case ListDone:
		return 3
	}
	return 0
}
