package model

import "time"

const (
	ActivityStockAdd         = "stock_add"
	ActivityStockEdit        = "stock_edit"
	ActivityStockDelete      = "stock_delete"
	ActivityStockAdjust      = "stock_adjust"
	ActivityShoppingAdd      = "shopping_add"
	ActivityShoppingBought   = "shopping_bought"
	ActivityShoppingComplete = "shopping_complete"
	ActivityMemberInvite     = "member_invite"
	ActivityMemberJoin       = "member_join"
	ActivityMemberRemove     = "member_remove"
	ActivityMemberRole       = "member_role"
)

type Activity struct {
	ID        int64     `json:"id"`
	HouseID   int64     `json:"house_id"`
	UserID    *int64    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Kind      string    `json:"kind"`
	Subject   string    `json:"subject"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}
