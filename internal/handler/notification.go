package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/stockhome/internal/auth"
	"github.com/dukerupert/stockhome/internal/changefeed"
	"github.com/dukerupert/stockhome/internal/model"
	"github.com/dukerupert/stockhome/internal/store"
)

type NotificationHandler struct {
	base
	notificationStore *store.NotificationStore
}

func NewNotificationHandler(ns *store.NotificationStore, feed *changefeed.Feed, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		base:              base{feed: feed, logger: logger},
		notificationStore: ns,
	}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		h.fail(w, err, "")
		return
	}
	unreadOnly := r.URL.Query().Get("unread") == "true"

	houseID := auth.HouseID(r.Context())
	notifications, err := h.notificationStore.List(houseID, unreadOnly, limit)
	if err != nil {
		h.fail(w, err, "failed to list notifications")
		return
	}
	if notifications == nil {
		notifications = []model.Notification{}
	}
	unread, err := h.notificationStore.UnreadCount(houseID)
	if err != nil {
		h.fail(w, err, "failed to count notifications")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": notifications, "unread": unread})
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	houseID := auth.HouseID(r.Context())
	if err := h.notificationStore.MarkRead(houseID, id); err != nil {
		h.fail(w, err, "failed to mark notification read")
		return
	}

	h.publish("notifications", changefeed.ActionUpdated, houseID, id, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	houseID := auth.HouseID(r.Context())
	n, err := h.notificationStore.MarkAllRead(houseID)
	if err != nil {
		h.fail(w, err, "failed to mark notifications read")
		return
	}

	if n > 0 {
		h.publish("notifications", changefeed.ActionUpdated, houseID, 0, nil)
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}
