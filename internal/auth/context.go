package auth

import "context"

type contextKey struct{}

// AuthContext identifies the caller. HouseID and Role are set only on
// house-scoped routes, after membership has been checked.
type AuthContext struct {
	UserID    int64
	SessionID int64
	HouseID   int64
	Role      string
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

// WithHouse scopes an existing AuthContext to a house membership.
func WithHouse(ctx context.Context, houseID int64, role string) context.Context {
	ac, _ := FromContext(ctx)
	ac.HouseID = houseID
	ac.Role = role
	return WithAuth(ctx, ac)
}

func HouseID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.HouseID
}

func UserID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.UserID
}

func IsAdmin(ctx context.Context) bool {
	ac, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return ac.Role == "admin"
}
