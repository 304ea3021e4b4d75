// Package handler implements the JSON HTTP API.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/stockhome/internal/apperr"
	"github.com/dukerupert/stockhome/internal/auth"
	"github.com/dukerupert/stockhome/internal/changefeed"
	"github.com/dukerupert/stockhome/internal/store"
)

const dateLayout = "2006-01-02"

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// base carries what every handler uses besides its own stores. feed and
// activities may be nil.
type base struct {
	feed       *changefeed.Feed
	activities *store.ActivityStore
	logger     *slog.Logger
}

func (b base) publish(table string, action changefeed.Action, houseID, rowID int64, data any) {
	b.feed.Publish(changefeed.NewChange(table, action, houseID, rowID, data))
}

// record appends to the house timeline. Failures are logged, not returned:
// the write the activity describes has already succeeded.
func (b base) record(r *http.Request, kind, subject, detail string) {
	if b.activities == nil {
		return
	}
	houseID := auth.HouseID(r.Context())
	if err := b.activities.Record(houseID, auth.UserID(r.Context()), kind, subject, detail); err != nil {
		b.logger.Error("record activity", "kind", kind, "house_id", houseID, "error", err)
	}
}

// fail writes err with the status of its class. Unclassified errors are
// logged and answered with fallback.
func (b base) fail(w http.ResponseWriter, err error, fallback string) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		b.logger.Error(fallback, "error", err)
	} else if detail := apperr.Detail(err); detail != nil {
		b.logger.Warn("database error", "status", status, "error", detail)
	}
	writeError(w, status, apperr.Message(err, fallback))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads a single JSON object from the body. An empty body leaves
// v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return apperr.Validation("invalid JSON")
	}
	return nil
}

func parseIDParam(r *http.Request) (int64, error) {
	return parsePathInt(r, "id")
}

func parsePathInt(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(r.PathValue(name), 10, 64)
}

// parseDate reads an optional YYYY-MM-DD value.
func parseDate(field, s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, apperr.Validation("%s must be a date in YYYY-MM-DD form", field)
	}
	return &t, nil
}

// queryInt reads an optional integer query parameter, returning def when
// absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, apperr.Validation("%s must be a number", name)
	}
	return n, nil
}
