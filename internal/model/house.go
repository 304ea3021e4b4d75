package model

import "time"

type House struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	OwnerID   int64     `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	RoleAdmin  = "admin"
	RoleMember = "member"

	MemberActive   = "active"
	MemberInactive = "inactive"
	MemberPending  = "pending"
)

// Membership links a user to a house. UserName, UserEmail and HouseName are
// filled by list queries that join users or houses.
type Membership struct {
	ID        int64     `json:"id"`
	HouseID   int64     `json:"house_id"`
	UserID    int64     `json:"user_id"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	InvitedBy *int64    `json:"invited_by"`
	UserName  string    `json:"user_name,omitempty"`
	UserEmail string    `json:"user_email,omitempty"`
	HouseName string    `json:"house_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleMember
}

func ValidMemberStatus(status string) bool {
	switch status {
	case MemberActive, MemberInactive, MemberPending:
		return true
	}
	return false
}
