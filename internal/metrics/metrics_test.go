package metrics

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/dukerupert/stockhome/internal/changefeed"
	"github.com/dukerupert/stockhome/internal/stock"
)

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/houses/{house_id}/items", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := m.Middleware(mux)

	for _, path := range []string{"/api/houses/1/items", "/api/houses/2/items"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/nope", nil))

	got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "GET /api/houses/{house_id}/items", "200"))
	if got != 2 {
		t.Errorf("matched requests = %v, want 2", got)
	}
	got = testutil.ToFloat64(m.requests.WithLabelValues("GET", "unmatched", "404"))
	if got != 1 {
		t.Errorf("unmatched requests = %v, want 1", got)
	}
}

func TestSetItemCounts(t *testing.T) {
	m := New()
	m.SetItemCounts(map[stock.Status]int{stock.StatusLow: 3, stock.StatusEmpty: 1})

	if got := testutil.ToFloat64(m.items.WithLabelValues("low")); got != 3 {
		t.Errorf("low gauge = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.items.WithLabelValues("sufficient")); got != 0 {
		t.Errorf("sufficient gauge = %v, want 0", got)
	}

	m.SetItemCounts(map[stock.Status]int{stock.StatusLow: 1})
	if got := testutil.ToFloat64(m.items.WithLabelValues("low")); got != 1 {
		t.Errorf("low gauge after reset = %v, want 1", got)
	}
}

func TestObserveCountsChanges(t *testing.T) {
	m := New()
	feed := changefeed.New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	cancel := m.Observe(feed)

	feed.Publish(changefeed.NewChange("items", changefeed.ActionCreated, 1, 10, nil))
	feed.Publish(changefeed.NewChange("items", changefeed.ActionCreated, 2, 11, nil))
	cancel()
	feed.Publish(changefeed.NewChange("items", changefeed.ActionCreated, 1, 12, nil))

	if got := testutil.ToFloat64(m.changes.WithLabelValues("items", "created")); got != 2 {
		t.Errorf("changes = %v, want 2", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.AlertCreated("low_stock")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `stockhome_alerts_total{kind="low_stock"} 1`) {
		t.Errorf("alert counter missing from output")
	}
}
