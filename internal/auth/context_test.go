package auth

import (
	"context"
	"testing"
)

func TestWithAuthAndFromContext(t *testing.T) {
	ac := AuthContext{
		UserID:    1,
		SessionID: 3,
		HouseID:   2,
		Role:      "admin",
	}

	ctx := WithAuth(context.Background(), ac)
	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected AuthContext in context")
	}
	if got.UserID != 1 {
		t.Errorf("UserID = %d, want 1", got.UserID)
	}
	if got.HouseID != 2 {
		t.Errorf("HouseID = %d, want 2", got.HouseID)
	}
	if got.Role != "admin" {
		t.Errorf("Role = %q, want %q", got.Role, "admin")
	}
	if got.SessionID != 3 {
		t.Errorf("SessionID = %d, want 3", got.SessionID)
	}
}

func TestFromContextMissing(t *testing.T) {
	_, ok := FromContext(context.Background())
	if ok {
		t.Error("expected false for missing AuthContext")
	}
}

func TestWithHouseKeepsUser(t *testing.T) {
	ctx := WithAuth(context.Background(), AuthContext{UserID: 7, SessionID: 9})
	ctx = WithHouse(ctx, 42, "member")

	got, _ := FromContext(ctx)
	if got.UserID != 7 || got.SessionID != 9 {
		t.Errorf("user fields lost: %+v", got)
	}
	if got.HouseID != 42 || got.Role != "member" {
		t.Errorf("house fields = %d %q, want 42 member", got.HouseID, got.Role)
	}
}

func TestHouseID(t *testing.T) {
	ctx := WithAuth(context.Background(), AuthContext{HouseID: 42})
	if HouseID(ctx) != 42 {
		t.Errorf("HouseID = %d, want 42", HouseID(ctx))
	}
}

func TestHouseIDMissing(t *testing.T) {
	if HouseID(context.Background()) != 0 {
		t.Error("expected 0 for missing context")
	}
}

func TestUserID(t *testing.T) {
	ctx := WithAuth(context.Background(), AuthContext{UserID: 7})
	if UserID(ctx) != 7 {
		t.Errorf("UserID = %d, want 7", UserID(ctx))
	}
}

func TestUserIDMissing(t *testing.T) {
	if UserID(context.Background()) != 0 {
		t.Error("expected 0 for missing context")
	}
}

func TestIsAdmin(t *testing.T) {
	ctx := WithAuth(context.Background(), AuthContext{Role: "admin"})
	if !IsAdmin(ctx) {
		t.Error("expected IsAdmin = true for admin role")
	}
}

func TestIsAdminFalse(t *testing.T) {
	ctx := WithAuth(context.Background(), AuthContext{Role: "member"})
	if IsAdmin(ctx) {
		t.Error("expected IsAdmin = false for member role")
	}
	if IsAdmin(context.Background()) {
		t.Error("expected IsAdmin = false for missing context")
	}
}
