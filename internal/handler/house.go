package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/stockhome/internal/apperr"
	"github.com/dukerupert/stockhome/internal/auth"
	"github.com/dukerupert/stockhome/internal/changefeed"
	"github.com/dukerupert/stockhome/internal/email"
	"github.com/dukerupert/stockhome/internal/model"
	"github.com/dukerupert/stockhome/internal/store"
)

// InvitationSender delivers invitation e-mail. *email.Client satisfies it.
type InvitationSender interface {
	Configured() bool
	SendInvitation(ctx context.Context, inv email.Invitation) error
}

const inviteEmailTimeout = 15 * time.Second

type HouseHandler struct {
	base
	houseStore *store.HouseStore
	userStore  *store.UserStore
	mailer     InvitationSender
}

// NewHouseHandler builds the house and membership handlers. mailer may be nil.
func NewHouseHandler(hs *store.HouseStore, us *store.UserStore, as *store.ActivityStore, mailer InvitationSender, feed *changefeed.Feed, logger *slog.Logger) *HouseHandler {
	return &HouseHandler{
		base:       base{feed: feed, activities: as, logger: logger},
		houseStore: hs,
		userStore:  us,
		mailer:     mailer,
	}
}

type houseRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

func (h *HouseHandler) List(w http.ResponseWriter, r *http.Request) {
	houses, err := h.houseStore.ListForUser(auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, err, "failed to list houses")
		return
	}
	if houses == nil {
		houses = []model.House{}
	}
	writeJSON(w, http.StatusOK, houses)
}

func (h *HouseHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req houseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, err, "")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	house, err := h.houseStore.Create(req.Name, strings.TrimSpace(req.Address), auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, err, "failed to create house")
		return
	}

	h.publish("houses", changefeed.ActionCreated, house.ID, house.ID, house)
	writeJSON(w, http.StatusCreated, house)
}

func (h *HouseHandler) Get(w http.ResponseWriter, r *http.Request) {
	house, err := h.houseStore.GetByID(auth.HouseID(r.Context()))
	if err != nil {
		h.fail(w, err, "failed to get house")
		return
	}
	if house == nil {
		writeError(w, http.StatusNotFound, "house not found")
		return
	}
	writeJSON(w, http.StatusOK, house)
}

func (h *HouseHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req houseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, err, "")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	houseID := auth.HouseID(r.Context())
	house, err := h.houseStore.Update(houseID, req.Name, strings.TrimSpace(req.Address))
	if err != nil {
		h.fail(w, err, "failed to update house")
		return
	}
	if house == nil {
		writeError(w, http.StatusNotFound, "house not found")
		return
	}

	h.publish("houses", changefeed.ActionUpdated, houseID, houseID, house)
	writeJSON(w, http.StatusOK, house)
}

func (h *HouseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	houseID := auth.HouseID(r.Context())
	if err := h.houseStore.Delete(houseID); err != nil {
		h.fail(w, err, "failed to delete house")
		return
	}

	h.publish("houses", changefeed.ActionDeleted, houseID, houseID, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (h *HouseHandler) Members(w http.ResponseWriter, r *http.Request) {
	members, err := h.houseStore.ListMembers(auth.HouseID(r.Context()))
	if err != nil {
		h.fail(w, err, "failed to list members")
		return
	}
	if members == nil {
		members = []model.Membership{}
	}
	writeJSON(w, http.StatusOK, members)
}

type inviteRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Invite adds a pending membership for an existing user and, when e-mail is
// configured, tells them about it. Delivery failures are logged only.
func (h *HouseHandler) Invite(w http.ResponseWriter, r *http.Request) {
	var req inviteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, err, "")
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}
	if req.Role == "" {
		req.Role = model.RoleMember
	}

	invitee, err := h.userStore.GetByEmail(req.Email)
	if err != nil {
		h.fail(w, err, "failed to look up user")
		return
	}
	if invitee == nil {
		writeError(w, http.StatusNotFound, "no user registered with that email")
		return
	}

	ctx := r.Context()
	houseID := auth.HouseID(ctx)
	m, err := h.houseStore.Invite(houseID, invitee.ID, req.Role, auth.UserID(ctx))
	if err != nil {
		h.fail(w, err, "failed to invite member")
		return
	}

	h.publish("house_members", changefeed.ActionCreated, houseID, m.ID, m)
	h.record(r, model.ActivityMemberInvite, invitee.Name, m.Role)
	h.sendInvitation(ctx, houseID, invitee, m.Role)

	writeJSON(w, http.StatusCreated, m)
}

func (h *HouseHandler) sendInvitation(ctx context.Context, houseID int64, invitee *model.User, role string) {
	if h.mailer == nil || !h.mailer.Configured() {
		return
	}
	house, err := h.houseStore.GetByID(houseID)
	if err != nil || house == nil {
		h.logger.Error("load house for invitation", "house_id", houseID, "error", err)
		return
	}
	inviter, err := h.userStore.GetByID(auth.UserID(ctx))
	if err != nil || inviter == nil {
		h.logger.Error("load inviter", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), inviteEmailTimeout)
	defer cancel()
	err = h.mailer.SendInvitation(ctx, email.Invitation{
		To:          invitee.Email,
		InviterName: inviter.Name,
		HouseName:   house.Name,
		Role:        role,
	})
	if err != nil {
		h.logger.Warn("send invitation email", "house_id", houseID, "user_id", invitee.ID, "error", err)
	}
}

type roleRequest struct {
	Role string `json:"role"`
}

func (h *HouseHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	userID, err := parsePathInt(r, "user_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	var req roleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, err, "")
		return
	}

	houseID := auth.HouseID(r.Context())
	m, err := h.houseStore.SetRole(houseID, userID, req.Role)
	if err != nil {
		h.fail(w, err, "failed to change role")
		return
	}

	h.publish("house_members", changefeed.ActionUpdated, houseID, m.ID, m)
	h.record(r, model.ActivityMemberRole, h.userName(userID), m.Role)
	writeJSON(w, http.StatusOK, m)
}

type memberStatusRequest struct {
	Status string `json:"status"`
}

func (h *HouseHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := parsePathInt(r, "user_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	var req memberStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, err, "")
		return
	}

	houseID := auth.HouseID(r.Context())
	m, err := h.houseStore.SetStatus(houseID, userID, req.Status)
	if err != nil {
		h.fail(w, err, "failed to change member status")
		return
	}

	h.publish("house_members", changefeed.ActionUpdated, houseID, m.ID, m)
	writeJSON(w, http.StatusOK, m)
}

// RemoveMember lets an admin remove anyone and any member leave.
func (h *HouseHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	userID, err := parsePathInt(r, "user_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	ctx := r.Context()
	if userID != auth.UserID(ctx) && !auth.IsAdmin(ctx) {
		h.fail(w, apperr.Forbidden("only admins can remove other members"), "")
		return
	}

	houseID := auth.HouseID(ctx)
	m, err := h.houseStore.GetMember(houseID, userID)
	if err != nil {
		h.fail(w, err, "failed to get member")
		return
	}
	if m == nil {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}
	if err := h.houseStore.RemoveMember(houseID, userID); err != nil {
		h.fail(w, err, "failed to remove member")
		return
	}

	h.publish("house_members", changefeed.ActionDeleted, houseID, m.ID, nil)
	h.record(r, model.ActivityMemberRemove, h.userName(userID), "")
	w.WriteHeader(http.StatusNoContent)
}

func (h *HouseHandler) Invitations(w http.ResponseWriter, r *http.Request) {
	invites, err := h.houseStore.ListInvitations(auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, err, "failed to list invitations")
		return
	}
	if invites == nil {
		invites = []model.Membership{}
	}
	writeJSON(w, http.StatusOK, invites)
}

func (h *HouseHandler) Accept(w http.ResponseWriter, r *http.Request) {
	houseID, err := parsePathInt(r, "house_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid house id")
		return
	}

	ctx := r.Context()
	m, err := h.houseStore.Accept(houseID, auth.UserID(ctx))
	if err != nil {
		h.fail(w, err, "failed to accept invitation")
		return
	}

	h.publish("house_members", changefeed.ActionUpdated, houseID, m.ID, m)
	h.record(r.WithContext(auth.WithHouse(ctx, houseID, m.Role)), model.ActivityMemberJoin, h.userName(m.UserID), m.Role)
	writeJSON(w, http.StatusOK, m)
}

func (h *HouseHandler) Decline(w http.ResponseWriter, r *http.Request) {
	houseID, err := parsePathInt(r, "house_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid house id")
		return
	}

	if err := h.houseStore.Decline(houseID, auth.UserID(r.Context())); err != nil {
		h.fail(w, err, "failed to decline invitation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// userName is the timeline subject for a member; lookup failures yield "".
func (h *HouseHandler) userName(id int64) string {
	u, err := h.userStore.GetByID(id)
	if err != nil || u == nil {
		return ""
	}
	return u.Name
}
