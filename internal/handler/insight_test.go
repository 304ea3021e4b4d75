package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/dukerupert/stockhome/internal/report"
	"github.com/dukerupert/stockhome/internal/store"
)

func newInsightHandler(f *fixture, now time.Time) *InsightHandler {
	h := NewInsightHandler(report.New(f.db), store.NewActivityStore(f.db), f.logger)
	h.now = func() time.Time { return now }
	return h
}

func TestInsightPredictions(t *testing.T) {
	f := setupFixture(t)
	items := newItemHandler(f)
	createItem(t, f, items, map[string]any{"name": "Beras", "unit": "kg", "quantity": 0, "threshold": 2})
	createItem(t, f, items, map[string]any{"name": "Gula", "unit": "kg", "quantity": 4, "threshold": 1})
	h := newInsightHandler(f, time.Now().UTC())

	rr := f.serve(t, "GET /predictions", h.Predictions, http.MethodGet, "/predictions", nil)
	expectStatus(t, rr, http.StatusOK)
	var preds []report.Prediction
	decodeBody(t, rr, &preds)
	if len(preds) != 2 {
		t.Fatalf("predictions = %d, want 2", len(preds))
	}
	if preds[0].Name != "Beras" {
		t.Errorf("first prediction = %q, want the empty item first", preds[0].Name)
	}

	rr = f.serve(t, "GET /predictions", h.Predictions, http.MethodGet, "/predictions?window=0", nil)
	expectStatus(t, rr, http.StatusBadRequest)
}

func TestInsightReports(t *testing.T) {
	f := setupFixture(t)
	h := newInsightHandler(f, time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))

	rr := f.serve(t, "GET /reports", h.Reports, http.MethodGet, "/reports?period=weekly", nil)
	expectStatus(t, rr, http.StatusOK)
	var rep report.Report
	decodeBody(t, rr, &rep)
	if rep.Granularity != "day" || len(rep.Buckets) != 7 {
		t.Errorf("weekly report granularity = %q buckets = %d", rep.Granularity, len(rep.Buckets))
	}

	rr = f.serve(t, "GET /reports", h.Reports, http.MethodGet, "/reports?period=custom&start=2026-03-05&end=2026-03-01", nil)
	expectStatus(t, rr, http.StatusBadRequest)

	rr = f.serve(t, "GET /reports", h.Reports, http.MethodGet, "/reports?period=fortnightly", nil)
	expectStatus(t, rr, http.StatusBadRequest)
}

func TestInsightTimeline(t *testing.T) {
	f := setupFixture(t)
	items := newItemHandler(f)
	createItem(t, f, items, map[string]any{"name": "Teh", "quantity": 2})
	createItem(t, f, items, map[string]any{"name": "Kopi", "quantity": 2})
	h := newInsightHandler(f, time.Now())

	rr := f.serve(t, "GET /timeline", h.Timeline, http.MethodGet, "/timeline?kind=stock_add&limit=1", nil)
	expectStatus(t, rr, http.StatusOK)
	var acts []struct {
		Subject  string `json:"subject"`
		UserName string `json:"user_name"`
	}
	decodeBody(t, rr, &acts)
	if len(acts) != 1 || acts[0].UserName != "Owner" {
		t.Errorf("timeline = %+v", acts)
	}

	rr = f.serve(t, "GET /timeline", h.Timeline, http.MethodGet, "/timeline?before=yesterday", nil)
	expectStatus(t, rr, http.StatusBadRequest)
}
