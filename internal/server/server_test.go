package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dukerupert/stockhome/internal/changefeed"
	"github.com/dukerupert/stockhome/internal/database"
	"github.com/dukerupert/stockhome/internal/metrics"
)

func setupServer(t *testing.T) http.Handler {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	feed := changefeed.New(logger)
	srv := New(db, feed, metrics.New(), nil, Options{BaseURL: "http://localhost:8080"}, logger)
	return srv.Router()
}

func call(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "10.0.0.1:5555"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func register(t *testing.T, h http.Handler, email string) string {
	t.Helper()
	rr := call(t, h, http.MethodPost, "/api/auth/register", "",
		map[string]string{"email": email, "name": "Warga", "password": "rahasia123"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("register status = %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	json.NewDecoder(rr.Body).Decode(&resp)
	return resp.Token
}

func TestHealth(t *testing.T) {
	h := setupServer(t)
	rr := call(t, h, http.MethodGet, "/health", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("health = %d", rr.Code)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected request id header")
	}
}

func TestProtectedRoutesNeedSession(t *testing.T) {
	h := setupServer(t)
	for _, path := range []string{"/api/auth/me", "/api/houses", "/api/houses/1/items"} {
		rr := call(t, h, http.MethodGet, path, "", nil)
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%s without session = %d, want 401", path, rr.Code)
		}
	}
}

func TestHouseScopedFlow(t *testing.T) {
	h := setupServer(t)
	owner := register(t, h, "owner@example.com")
	outsider := register(t, h, "outsider@example.com")

	rr := call(t, h, http.MethodPost, "/api/houses", owner, map[string]string{"name": "Rumah"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create house = %d: %s", rr.Code, rr.Body.String())
	}
	var house struct {
		ID int64 `json:"id"`
	}
	json.NewDecoder(rr.Body).Decode(&house)
	items := fmt.Sprintf("/api/houses/%d/items", house.ID)

	rr = call(t, h, http.MethodPost, items, owner, map[string]any{"name": "Beras", "unit": "kg", "quantity": 0, "threshold": 2})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create item = %d: %s", rr.Code, rr.Body.String())
	}

	rr = call(t, h, http.MethodGet, items, outsider, nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("outsider list = %d, want 404", rr.Code)
	}

	rr = call(t, h, http.MethodGet, items+"?status=empty", owner, nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Beras") {
		t.Errorf("owner list = %d: %s", rr.Code, rr.Body.String())
	}

	rr = call(t, h, http.MethodGet, "/metrics", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `route="GET /api/houses/{house_id}/items"`) {
		t.Error("expected request counter labelled with the route pattern")
	}
}

func TestLoginRateLimited(t *testing.T) {
	h := setupServer(t)
	var last int
	for i := 0; i <= authRateLimit; i++ {
		rr := call(t, h, http.MethodPost, "/api/auth/login", "",
			map[string]string{"email": "nobody@example.com", "password": "x"})
		last = rr.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("request %d status = %d, want 429", authRateLimit+1, last)
	}
}

func TestWebSocketOriginChecked(t *testing.T) {
	h := setupServer(t)
	owner := register(t, h, "owner@example.com")
	rr := call(t, h, http.MethodPost, "/api/houses", owner, map[string]string{"name": "Rumah"})
	var house struct {
		ID int64 `json:"id"`
	}
	json.NewDecoder(rr.Body).Decode(&house)

	upgrade := func(origin string) int {
		req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/houses/%d/ws", house.ID), nil)
		req.RemoteAddr = "10.0.0.1:5555"
		req.Header.Set("Authorization", "Bearer "+owner)
		req.Header.Set("Connection", "Upgrade")
		req.Header.Set("Upgrade", "websocket")
		req.Header.Set("Sec-WebSocket-Version", "13")
		req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
		req.Header.Set("Origin", origin)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := upgrade("https://evil.example"); code != http.StatusForbidden {
		t.Errorf("foreign origin = %d, want 403", code)
	}
	if code := upgrade("http://localhost:8080"); code == http.StatusForbidden {
		t.Error("configured base url origin was rejected")
	}
}

func TestOriginPatterns(t *testing.T) {
	if got := originPatterns("https://stok.example.com/app"); len(got) != 1 || got[0] != "stok.example.com" {
		t.Errorf("originPatterns = %v", got)
	}
	if got := originPatterns(""); got != nil {
		t.Errorf("empty base url = %v, want nil", got)
	}
}

func TestChangePasswordRoute(t *testing.T) {
	h := setupServer(t)
	token := register(t, h, "warga@example.com")

	rr := call(t, h, http.MethodPut, "/api/auth/me/password", token,
		map[string]string{"current_password": "rahasia123", "new_password": "rahasia456"})
	if rr.Code != http.StatusOK {
		t.Fatalf("change password = %d: %s", rr.Code, rr.Body.String())
	}
	if rr := call(t, h, http.MethodGet, "/api/auth/me", token, nil); rr.Code != http.StatusUnauthorized {
		t.Errorf("old session after password change = %d, want 401", rr.Code)
	}
}
