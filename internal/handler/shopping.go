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
	"github.com/dukerupert/stockhome/internal/store"
)

type ShoppingHandler struct {
	base
	shoppingStore *store.ShoppingStore
}

func NewShoppingHandler(ss *store.ShoppingStore, as *store.ActivityStore, feed *changefeed.Feed, logger *slog.Logger) *ShoppingHandler {
	return &ShoppingHandler{
		base:          base{feed: feed, activities: as, logger: logger},
		shoppingStore: ss,
	}
}

func (h *ShoppingHandler) Lists(w http.ResponseWriter, r *http.Request) {
	lists, err := h.shoppingStore.ListLists(auth.HouseID(r.Context()))
	if err != nil {
		h.fail(w, err, "failed to list shopping lists")
		return
	}
	if lists == nil {
		lists = []model.ShoppingList{}
	}
	writeJSON(w, http.StatusOK, lists)
}

type createListRequest struct {
	Name       string `json:"name"`
	PlannedFor string `json:"planned_for"`
}

func (h *ShoppingHandler) CreateList(w http.ResponseWriter, r *http.Request) {
	var req createListRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, err, "")
		return
	}
	planned, err := parseDate("planned_for", req.PlannedFor)
	if err != nil {
		h.fail(w, err, "")
		return
	}

	ctx := r.Context()
	houseID := auth.HouseID(ctx)
	list, err := h.shoppingStore.CreateList(houseID, auth.UserID(ctx), req.Name, planned)
	if err != nil {
		h.fail(w, err, "failed to create shopping list")
		return
	}

	h.publish("shopping_lists", changefeed.ActionCreated, houseID, list.ID, list)
	writeJSON(w, http.StatusCreated, list)
}

func (h *ShoppingHandler) GetList(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	houseID := auth.HouseID(r.Context())
	list, err := h.shoppingStore.GetList(houseID, id)
	if err != nil {
		h.fail(w, err, "failed to get shopping list")
		return
	}
	if list == nil {
		writeError(w, http.StatusNotFound, "shopping list not found")
		return
	}

	recs, err := h.shoppingStore.Recommendations(houseID, id)
	if err != nil {
		h.fail(w, err, "failed to list recommendations")
		return
	}
	if recs == nil {
		recs = []model.Recommendation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"list": list, "recommendations": recs})
}

type listStatusRequest struct {
	Status string `json:"status"`
}

func (h *ShoppingHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req listStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, err, "")
		return
	}

	houseID := auth.HouseID(r.Context())
	list, err := h.shoppingStore.SetListStatus(houseID, id, req.Status)
	if err != nil {
		h.fail(w, err, "failed to update shopping list")
		return
	}

	h.publish("shopping_lists", changefeed.ActionUpdated, houseID, list.ID, list)
	if list.Status == model.ListDone {
		h.record(r, model.ActivityShoppingComplete, list.Name, "")
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *ShoppingHandler) DeleteList(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	houseID := auth.HouseID(r.Context())
	if err := h.shoppingStore.DeleteList(houseID, id); err != nil {
		h.fail(w, err, "failed to delete shopping list")
		return
	}

	h.publish("shopping_lists", changefeed.ActionDeleted, houseID, id, nil)
	w.WriteHeader(http.StatusNoContent)
}

// Generate fills the list with every item at or below its threshold that
// is not already on it.
func (h *ShoppingHandler) Generate(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	houseID := auth.HouseID(r.Context())
	added, err := h.shoppingStore.Generate(houseID, id)
	if err != nil {
		h.fail(w, err, "failed to generate recommendations")
		return
	}
	if added == nil {
		added = []model.Recommendation{}
	}

	for i := range added {
		h.publish("recommendations", changefeed.ActionCreated, houseID, added[i].ID, added[i])
	}
	if len(added) > 0 {
		h.record(r, model.ActivityShoppingAdd, fmt.Sprintf("%d barang", len(added)), model.MethodAutomatic)
	}
	writeJSON(w, http.StatusOK, added)
}

type recommendationRequest struct {
	ItemID    int64  `json:"item_id"`
	Suggested int    `json:"suggested"`
	Link      string `json:"link"`
}

func (h *ShoppingHandler) AddRecommendation(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req recommendationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, err, "")
		return
	}

	houseID := auth.HouseID(r.Context())
	rec, err := h.shoppingStore.AddRecommendation(houseID, id, req.ItemID, req.Suggested, req.Link)
	if err != nil {
		h.fail(w, err, "failed to add recommendation")
		return
	}

	h.publish("recommendations", changefeed.ActionCreated, houseID, rec.ID, rec)
	h.record(r, model.ActivityShoppingAdd, rec.ItemName, locale.Quantity(rec.Suggested, rec.Unit))
	writeJSON(w, http.StatusCreated, rec)
}

type boughtRequest struct {
	UnitPrice *decimal.Decimal `json:"unit_price"`
}

// MarkBought records the purchase against the item's stock in the same
// transaction that flips the recommendation.
func (h *ShoppingHandler) MarkBought(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req boughtRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, err, "")
		return
	}

	ctx := r.Context()
	houseID := auth.HouseID(ctx)
	rec, item, err := h.shoppingStore.MarkBought(houseID, id, auth.UserID(ctx), req.UnitPrice)
	if err != nil {
		h.fail(w, err, "failed to mark recommendation bought")
		return
	}

	h.publish("recommendations", changefeed.ActionUpdated, houseID, rec.ID, rec)
	h.publish("items", changefeed.ActionUpdated, houseID, item.ID, item)
	detail := locale.Quantity(rec.Suggested, rec.Unit)
	if req.UnitPrice != nil {
		detail += " @ " + locale.Rupiah(*req.UnitPrice)
	}
	h.record(r, model.ActivityShoppingBought, rec.ItemName, detail)
	writeJSON(w, http.StatusOK, map[string]any{"recommendation": rec, "item": item})
}

func (h *ShoppingHandler) DeleteRecommendation(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	houseID := auth.HouseID(r.Context())
	if err := h.shoppingStore.DeleteRecommendation(houseID, id); err != nil {
		h.fail(w, err, "failed to delete recommendation")
		return
	}

	h.publish("recommendations", changefeed.ActionDeleted, houseID, id, nil)
	w.WriteHeader(http.StatusNoContent)
}
