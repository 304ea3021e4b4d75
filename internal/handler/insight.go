package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/stockhome/internal/apperr"
	"github.com/dukerupert/stockhome/internal/auth"
	"github.com/dukerupert/stockhome/internal/model"
	"github.com/dukerupert/stockhome/internal/report"
	"github.com/dukerupert/stockhome/internal/stock"
	"github.com/dukerupert/stockhome/internal/store"
)

// InsightHandler serves the read-only views derived from stock history:
// forecasts, period reports and the activity timeline.
type InsightHandler struct {
	base
	reporter      *report.Reporter
	activityStore *store.ActivityStore
	now           func() time.Time
}

func NewInsightHandler(rp *report.Reporter, as *store.ActivityStore, logger *slog.Logger) *InsightHandler {
	return &InsightHandler{
		base:          base{logger: logger},
		reporter:      rp,
		activityStore: as,
		now:           time.Now,
	}
}

func (h *InsightHandler) Predictions(w http.ResponseWriter, r *http.Request) {
	window, err := queryInt(r, "window", stock.DefaultWindowDays)
	if err != nil {
		h.fail(w, err, "")
		return
	}
	if window < 1 || window > 365 {
		h.fail(w, apperr.Validation("window must be between 1 and 365 days"), "")
		return
	}

	preds, err := h.reporter.Predictions(auth.HouseID(r.Context()), window, h.now().UTC())
	if err != nil {
		h.fail(w, err, "failed to build predictions")
		return
	}
	if preds == nil {
		preds = []report.Prediction{}
	}
	writeJSON(w, http.StatusOK, preds)
}

func (h *InsightHandler) Reports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	period := report.Period(q.Get("period"))
	rng, err := report.Resolve(period, q.Get("start"), q.Get("end"), h.now().UTC())
	if err != nil {
		h.fail(w, err, "")
		return
	}

	rep, err := h.reporter.Build(auth.HouseID(r.Context()), period, rng)
	if err != nil {
		h.fail(w, err, "failed to build report")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// Timeline pages backwards through the house activity log. Pass the
// created_at of the last row seen as before to fetch the next page.
func (h *InsightHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		h.fail(w, err, "")
		return
	}
	var before time.Time
	if v := q.Get("before"); v != "" {
		before, err = time.Parse(time.RFC3339, v)
		if err != nil {
			h.fail(w, apperr.Validation("before must be an RFC 3339 timestamp"), "")
			return
		}
	}

	activities, err := h.activityStore.List(auth.HouseID(r.Context()), q.Get("kind"), before, limit)
	if err != nil {
		h.fail(w, err, "failed to list activity")
		return
	}
	if activities == nil {
		activities = []model.Activity{}
	}
	writeJSON(w, http.StatusOK, activities)
}
