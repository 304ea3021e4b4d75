package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestClassifySQLiteErrors(t *testing.T) {
	tests := []struct {
		msg  string
		want error
	}{
		{"constraint failed: UNIQUE constraint failed: users.email (2067)", ErrConflict},
		{"constraint failed: CHECK constraint failed: quantity >= 0 (275)", ErrValidation},
		{"constraint failed: FOREIGN KEY constraint failed (787)", ErrValidation},
		{"database is locked (5) (SQLITE_BUSY)", ErrTransient},
	}
	for _, tt := range tests {
		got := Classify(errors.New(tt.msg))
		if !errors.Is(got, tt.want) {
			t.Errorf("Classify(%q) = %v, want class %v", tt.msg, got, tt.want)
		}
	}
}

func TestClassifyKeepsExistingClass(t *testing.T) {
	err := fmt.Errorf("update item: %w", ErrConflict)
	if got := Classify(err); got != err {
		t.Errorf("Classify rewrapped an already classified error: %v", got)
	}
}

func TestClassifyUnknown(t *testing.T) {
	err := errors.New("boom")
	if got := Classify(err); got != err {
		t.Errorf("Classify(boom) = %v, want unchanged", got)
	}
	if Classify(nil) != nil {
		t.Error("Classify(nil) should be nil")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Validation("name is required"), http.StatusBadRequest},
		{NotFound("item"), http.StatusNotFound},
		{Conflict("stale version"), http.StatusConflict},
		{Forbidden("admin only"), http.StatusForbidden},
		{fmt.Errorf("send: %w", ErrTransient), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestMessageHidesInternalErrors(t *testing.T) {
	if got := Message(errors.New("sql: connection reset"), "failed to list items"); got != "failed to list items" {
		t.Errorf("Message = %q, want fallback", got)
	}
	if got := Message(NotFound("item"), "x"); got != "item not found" {
		t.Errorf("Message = %q, want %q", got, "item not found")
	}
}

func TestMessageHidesDriverText(t *testing.T) {
	tests := []struct {
		driver string
		want   string
	}{
		{"constraint failed: UNIQUE constraint failed: catalog_entries.name (2067)", "conflict: value already exists"},
		{"constraint failed: CHECK constraint failed: threshold >= 0 (275)", "validation failed: invalid or missing value"},
		{"database is locked (5) (SQLITE_BUSY)", "temporarily unavailable: database busy, try again"},
	}
	for _, tt := range tests {
		driverErr := errors.New(tt.driver)
		err := fmt.Errorf("create item: %w", Classify(driverErr))

		got := Message(err, "fallback")
		if strings.Contains(got, "constraint") || strings.Contains(got, "SQLITE") {
			t.Errorf("Message leaks driver text: %q", got)
		}
		if want := "create item: " + tt.want; got != want {
			t.Errorf("Message = %q, want %q", got, want)
		}
		if !errors.Is(err, driverErr) || Detail(err) != driverErr {
			t.Errorf("driver error not reachable from %v", err)
		}
	}
	if Detail(NotFound("item")) != nil {
		t.Error("Detail of an error without a driver cause should be nil")
	}
}
