package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/stockhome/internal/auth"
	"github.com/dukerupert/stockhome/internal/changefeed"
	"github.com/dukerupert/stockhome/internal/locale"
	"github.com/dukerupert/stockhome/internal/model"
	"github.com/dukerupert/stockhome/internal/stock"
	"github.com/dukerupert/stockhome/internal/store"
)

type ItemHandler struct {
	base
	itemStore    *store.ItemStore
	historyStore *store.HistoryStore
}

func NewItemHandler(is *store.ItemStore, hs *store.HistoryStore, as *store.ActivityStore, feed *changefeed.Feed, logger *slog.Logger) *ItemHandler {
	return &ItemHandler{
		base:         base{feed: feed, activities: as, logger: logger},
		itemStore:    is,
		historyStore: hs,
	}
}

type itemRequest struct {
	Name        string           `json:"name"`
	Unit        string           `json:"unit"`
	Category    string           `json:"category"`
	Quantity    int              `json:"quantity"`
	Threshold   int              `json:"threshold"`
	PurchasedAt string           `json:"purchased_at"`
	ExpiresAt   string           `json:"expires_at"`
	UnitPrice   *decimal.Decimal `json:"unit_price"`
	Version     *int64           `json:"version"`
}

func (req itemRequest) input() (store.ItemInput, error) {
	purchased, err := parseDate("purchased_at", req.PurchasedAt)
	if err != nil {
		return store.ItemInput{}, err
	}
	expires, err := parseDate("expires_at", req.ExpiresAt)
	if err != nil {
		return store.ItemInput{}, err
	}
	return store.ItemInput{
		Name:        req.Name,
		Unit:        req.Unit,
		Category:    req.Category,
		Quantity:    req.Quantity,
		Threshold:   req.Threshold,
		PurchasedAt: purchased,
		ExpiresAt:   expires,
		UnitPrice:   req.UnitPrice,
	}, nil
}

func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.ItemFilter{
		Status:   stock.Status(q.Get("status")),
		Category: q.Get("category"),
		Query:    q.Get("q"),
	}

	items, err := h.itemStore.List(auth.HouseID(r.Context()), filter)
	if err != nil {
		h.fail(w, err, "failed to list items")
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, err, "")
		return
	}
	in, err := req.input()
	if err != nil {
		h.fail(w, err, "")
		return
	}

	ctx := r.Context()
	houseID := auth.HouseID(ctx)
	item, err := h.itemStore.Create(houseID, auth.UserID(ctx), in)
	if err != nil {
		h.fail(w, err, "failed to create item")
		return
	}

	h.publish("items", changefeed.ActionCreated, houseID, item.ID, item)
	h.record(r, model.ActivityStockAdd, item.Name, locale.Quantity(item.Quantity, item.Unit))
	writeJSON(w, http.StatusCreated, item)
}

func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	item, err := h.itemStore.GetByID(auth.HouseID(r.Context()), id)
	if err != nil {
		h.fail(w, err, "failed to get item")
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// Update requires the version the client last saw; a stale version is a
// conflict.
func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req itemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, err, "")
		return
	}
	if req.Version == nil {
		writeError(w, http.StatusBadRequest, "version is required")
		return
	}
	in, err := req.input()
	if err != nil {
		h.fail(w, err, "")
		return
	}

	ctx := r.Context()
	houseID := auth.HouseID(ctx)
	item, err := h.itemStore.Update(houseID, id, auth.UserID(ctx), in, *req.Version)
	if err != nil {
		h.fail(w, err, "failed to update item")
		return
	}

	h.publish("items", changefeed.ActionUpdated, houseID, item.ID, item)
	h.record(r, model.ActivityStockEdit, item.Name, item.Status.Label())
	writeJSON(w, http.StatusOK, item)
}

func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	houseID := auth.HouseID(r.Context())
	existing, err := h.itemStore.GetByID(houseID, id)
	if err != nil {
		h.fail(w, err, "failed to get item")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}

	if err := h.itemStore.Delete(houseID, id); err != nil {
		h.fail(w, err, "failed to delete item")
		return
	}

	h.publish("items", changefeed.ActionDeleted, houseID, id, nil)
	h.record(r, model.ActivityStockDelete, existing.Name, "")
	w.WriteHeader(http.StatusNoContent)
}

type adjustRequest struct {
	Delta     int              `json:"delta"`
	Cause     string           `json:"cause"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
	Note      string           `json:"note"`
	Version   *int64           `json:"version"`
}

func (h *ItemHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req adjustRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, err, "")
		return
	}

	ctx := r.Context()
	houseID := auth.HouseID(ctx)
	item, entry, err := h.itemStore.Adjust(houseID, id, auth.UserID(ctx), store.Adjustment{
		Delta:           req.Delta,
		Cause:           req.Cause,
		UnitPrice:       req.UnitPrice,
		Note:            req.Note,
		ExpectedVersion: req.Version,
	})
	if err != nil {
		h.fail(w, err, "failed to adjust item")
		return
	}

	h.publish("items", changefeed.ActionUpdated, houseID, item.ID, item)
	h.publish("stock_history", changefeed.ActionCreated, houseID, entry.ID, entry)
	h.record(r, model.ActivityStockAdjust, item.Name, fmt.Sprintf("%s %+d %s", entry.Cause, entry.Delta, item.Unit))
	writeJSON(w, http.StatusOK, map[string]any{"item": item, "entry": entry})
}

func (h *ItemHandler) History(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		h.fail(w, err, "")
		return
	}

	houseID := auth.HouseID(r.Context())
	item, err := h.itemStore.GetByID(houseID, id)
	if err != nil {
		h.fail(w, err, "failed to get item")
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}

	entries, err := h.historyStore.ListForItem(houseID, id, limit)
	if err != nil {
		h.fail(w, err, "failed to list history")
		return
	}
	if entries == nil {
		entries = []model.StockEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
