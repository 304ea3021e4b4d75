package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/stockhome/internal/apperr"
	"github.com/dukerupert/stockhome/internal/auth"
	"github.com/dukerupert/stockhome/internal/changefeed"
	"github.com/dukerupert/stockhome/internal/middleware"
	"github.com/dukerupert/stockhome/internal/model"
	"github.com/dukerupert/stockhome/internal/store"
)

type AuthHandler struct {
	base
	userStore    *store.UserStore
	sessionStore *store.SessionStore
	houseStore   *store.HouseStore
	secureCookie bool
}

// NewAuthHandler builds the account handlers. Cookies are marked Secure when
// baseURL is https.
func NewAuthHandler(us *store.UserStore, ss *store.SessionStore, hs *store.HouseStore, feed *changefeed.Feed, baseURL string, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		base:         base{feed: feed, logger: logger},
		userStore:    us,
		sessionStore: ss,
		houseStore:   hs,
		secureCookie: strings.HasPrefix(baseURL, "https://"),
	}
}

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	User      *model.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, err, "")
		return
	}

	user, err := h.userStore.Create(req.Email, req.Name, req.Password)
	if err != nil {
		h.fail(w, err, "failed to register")
		return
	}

	h.startSession(w, http.StatusCreated, user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, err, "")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.userStore.Authenticate(req.Email, req.Password)
	if err != nil {
		h.fail(w, err, "failed to log in")
		return
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	h.startSession(w, http.StatusOK, user)
}

func (h *AuthHandler) startSession(w http.ResponseWriter, status int, user *model.User) {
	sess, err := h.sessionStore.Create(user.ID)
	if err != nil {
		h.fail(w, err, "failed to create session")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, status, sessionResponse{User: user, Token: sess.Token, ExpiresAt: sess.ExpiresAt})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := middleware.SessionToken(r); token != "" {
		if err := h.sessionStore.Delete(token); err != nil {
			h.fail(w, err, "failed to log out")
			return
		}
	}

	h.clearCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// Me returns the caller and the houses they are an active member of.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.userStore.GetByID(auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, err, "failed to load user")
		return
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, "session expired")
		return
	}

	houses, err := h.houseStore.ListForUser(user.ID)
	if err != nil {
		h.fail(w, err, "failed to list houses")
		return
	}
	if houses == nil {
		houses = []model.House{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user, "houses": houses})
}

type profileRequest struct {
	Name string `json:"name"`
}

func (h *AuthHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, err, "")
		return
	}

	user, err := h.userStore.UpdateName(auth.UserID(r.Context()), req.Name)
	if err != nil {
		h.fail(w, err, "failed to update profile")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type passwordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword replaces the caller's password, signs out every session and
// starts a fresh one for the caller.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, err, "")
		return
	}

	userID := auth.UserID(r.Context())
	if err := h.userStore.ChangePassword(userID, req.CurrentPassword, req.NewPassword); err != nil {
		h.fail(w, err, "failed to change password")
		return
	}
	if err := h.sessionStore.DeleteByUserID(userID); err != nil {
		h.fail(w, err, "failed to revoke sessions")
		return
	}

	user, err := h.userStore.GetByID(userID)
	if err != nil {
		h.fail(w, err, "failed to load user")
		return
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, "session expired")
		return
	}
	h.startSession(w, http.StatusOK, user)
}

type deleteAccountRequest struct {
	Password string `json:"password"`
}

// DeleteMe closes the caller's account after confirming the password.
func (h *AuthHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	var req deleteAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, err, "")
		return
	}

	user, err := h.userStore.GetByID(auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, err, "failed to load user")
		return
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, "session expired")
		return
	}
	confirmed, err := h.userStore.Authenticate(user.Email, req.Password)
	if err != nil {
		h.fail(w, err, "failed to delete account")
		return
	}
	if confirmed == nil {
		h.fail(w, apperr.Forbidden("password is incorrect"), "")
		return
	}

	houses, err := h.houseStore.ListForUser(user.ID)
	if err != nil {
		h.fail(w, err, "failed to list houses")
		return
	}
	var memberships []*model.Membership
	for _, house := range houses {
		m, err := h.houseStore.GetMember(house.ID, user.ID)
		if err != nil {
			h.fail(w, err, "failed to get member")
			return
		}
		if m != nil {
			memberships = append(memberships, m)
		}
	}

	if err := h.userStore.Delete(user.ID); err != nil {
		h.fail(w, err, "failed to delete account")
		return
	}
	if err := h.sessionStore.DeleteByUserID(user.ID); err != nil {
		h.fail(w, err, "failed to revoke sessions")
		return
	}
	for _, m := range memberships {
		h.publish("house_members", changefeed.ActionDeleted, m.HouseID, m.ID, nil)
	}

	h.clearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}
