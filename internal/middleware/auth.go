package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/dukerupert/stockhome/internal/auth"
	"github.com/dukerupert/stockhome/internal/model"
	"github.com/dukerupert/stockhome/internal/store"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "stockhome_session"

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// SessionToken returns the session token from the cookie or, for non-browser
// clients, an "Authorization: Bearer" header.
func SessionToken(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	const prefix = "Bearer "
	if h := r.Header.Get("Authorization"); len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}

// RequireAuth validates the session and populates AuthContext with the user.
func RequireAuth(sessionStore *store.SessionStore, userStore *store.UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := SessionToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "login required")
				return
			}

			sess, err := sessionStore.GetByToken(token)
			if err != nil || sess == nil {
				writeError(w, http.StatusUnauthorized, "session expired")
				return
			}

			user, err := userStore.GetByID(sess.UserID)
			if err != nil || user == nil {
				writeError(w, http.StatusUnauthorized, "session expired")
				return
			}

			ac := auth.AuthContext{
				UserID:    user.ID,
				SessionID: sess.ID,
			}
			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireMember resolves the {house_id} path value and admits only active
// members of that house. Houses the caller cannot see are reported as not
// found.
func RequireMember(houseStore *store.HouseStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			houseID, err := strconv.ParseInt(r.PathValue("house_id"), 10, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid house id")
				return
			}

			member, err := houseStore.GetMember(houseID, auth.UserID(r.Context()))
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to check membership")
				return
			}
			if member == nil || member.Status == model.MemberPending {
				writeError(w, http.StatusNotFound, "house not found")
				return
			}
			if member.Status != model.MemberActive {
				writeError(w, http.StatusForbidden, "membership is inactive")
				return
			}

			ctx := auth.WithHouse(r.Context(), houseID, member.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin checks that the caller is an admin of the current house.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsAdmin(r.Context()) {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
