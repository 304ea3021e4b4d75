package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/dukerupert/stockhome/internal/changefeed"
	"github.com/dukerupert/stockhome/internal/handler"
	"github.com/dukerupert/stockhome/internal/metrics"
	"github.com/dukerupert/stockhome/internal/middleware"
	"github.com/dukerupert/stockhome/internal/report"
	"github.com/dukerupert/stockhome/internal/store"
	ws "github.com/dukerupert/stockhome/internal/websocket"
)

const (
	authRateLimit  = 10
	authRateWindow = time.Minute
)

type Options struct {
	BaseURL    string
	SessionTTL time.Duration
}

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	wsOrigins     []string
	metrics       *metrics.Metrics
	authH         *handler.AuthHandler
	houseH        *handler.HouseHandler
	catalogH      *handler.CatalogHandler
	itemH         *handler.ItemHandler
	shoppingH     *handler.ShoppingHandler
	insightH      *handler.InsightHandler
	notificationH *handler.NotificationHandler
	sessionStore  *store.SessionStore
	userStore     *store.UserStore
	houseStore    *store.HouseStore
	rateLimiter   *middleware.RateLimiter
	logger        *slog.Logger
}

// New wires stores and handlers over db. m may be nil, in which case
// /metrics is not served.
func New(db *sql.DB, feed *changefeed.Feed, m *metrics.Metrics, mailer handler.InvitationSender, opts Options, logger *slog.Logger) *Server {
	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db, opts.SessionTTL)
	houseStore := store.NewHouseStore(db)
	activityStore := store.NewActivityStore(db)
	itemStore := store.NewItemStore(db)

	return &Server{
		db:            db,
		hub:           ws.NewHub(feed, houseStore, logger.With("component", "websocket")),
		wsOrigins:     originPatterns(opts.BaseURL),
		metrics:       m,
		authH:         handler.NewAuthHandler(userStore, sessionStore, houseStore, feed, opts.BaseURL, logger.With("component", "auth")),
		houseH:        handler.NewHouseHandler(houseStore, userStore, activityStore, mailer, feed, logger.With("component", "house")),
		catalogH:      handler.NewCatalogHandler(store.NewCatalogStore(db), logger.With("component", "catalog")),
		itemH:         handler.NewItemHandler(itemStore, store.NewHistoryStore(db), activityStore, feed, logger.With("component", "item")),
		shoppingH:     handler.NewShoppingHandler(store.NewShoppingStore(db), activityStore, feed, logger.With("component", "shopping")),
		insightH:      handler.NewInsightHandler(report.New(db), activityStore, logger.With("component", "insight")),
		notificationH: handler.NewNotificationHandler(store.NewNotificationStore(db), feed, logger.With("component", "notification")),
		sessionStore:  sessionStore,
		userStore:     userStore,
		houseStore:    houseStore,
		rateLimiter:   middleware.NewRateLimiter(),
		logger:        logger,
	}
}

// originPatterns allows WebSocket upgrades from the public host in baseURL.
func originPatterns(baseURL string) []string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return nil
	}
	return []string{u.Host}
}

// RateLimiter returns the limiter for periodic cleanup.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Router builds the HTTP handler. Every route is registered on one mux so
// path values and the matched pattern are visible to the wrappers.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	mux.Handle("POST /api/auth/register", s.rateLimited(s.authH.Register))
	mux.Handle("POST /api/auth/login", s.rateLimited(s.authH.Login))
	mux.HandleFunc("POST /api/auth/logout", s.authH.Logout)
	mux.Handle("GET /api/auth/me", s.user(s.authH.Me))
	mux.Handle("PUT /api/auth/me", s.user(s.authH.UpdateMe))
	mux.Handle("DELETE /api/auth/me", s.user(s.authH.DeleteMe))
	mux.Handle("PUT /api/auth/me/password", s.rateLimited(s.user(s.authH.ChangePassword).ServeHTTP))

	mux.Handle("GET /api/categories", s.user(s.catalogH.Categories))
	mux.Handle("GET /api/catalog", s.user(s.catalogH.Search))

	mux.Handle("GET /api/houses", s.user(s.houseH.List))
	mux.Handle("POST /api/houses", s.user(s.houseH.Create))
	mux.Handle("GET /api/houses/{house_id}", s.member(s.houseH.Get))
	mux.Handle("PUT /api/houses/{house_id}", s.admin(s.houseH.Update))
	mux.Handle("DELETE /api/houses/{house_id}", s.admin(s.houseH.Delete))

	mux.Handle("GET /api/houses/{house_id}/members", s.member(s.houseH.Members))
	mux.Handle("POST /api/houses/{house_id}/members/invite", s.admin(s.houseH.Invite))
	mux.Handle("PUT /api/houses/{house_id}/members/{user_id}/role", s.admin(s.houseH.SetRole))
	mux.Handle("PUT /api/houses/{house_id}/members/{user_id}/status", s.admin(s.houseH.SetStatus))
	mux.Handle("DELETE /api/houses/{house_id}/members/{user_id}", s.member(s.houseH.RemoveMember))

	mux.Handle("GET /api/invitations", s.user(s.houseH.Invitations))
	mux.Handle("POST /api/invitations/{house_id}/accept", s.user(s.houseH.Accept))
	mux.Handle("POST /api/invitations/{house_id}/decline", s.user(s.houseH.Decline))

	mux.Handle("GET /api/houses/{house_id}/items", s.member(s.itemH.List))
	mux.Handle("POST /api/houses/{house_id}/items", s.member(s.itemH.Create))
	mux.Handle("GET /api/houses/{house_id}/items/{id}", s.member(s.itemH.Get))
	mux.Handle("PUT /api/houses/{house_id}/items/{id}", s.member(s.itemH.Update))
	mux.Handle("DELETE /api/houses/{house_id}/items/{id}", s.member(s.itemH.Delete))
	mux.Handle("POST /api/houses/{house_id}/items/{id}/adjust", s.member(s.itemH.Adjust))
	mux.Handle("GET /api/houses/{house_id}/items/{id}/history", s.member(s.itemH.History))

	mux.Handle("GET /api/houses/{house_id}/shopping-lists", s.member(s.shoppingH.Lists))
	mux.Handle("POST /api/houses/{house_id}/shopping-lists", s.member(s.shoppingH.CreateList))
	mux.Handle("GET /api/houses/{house_id}/shopping-lists/{id}", s.member(s.shoppingH.GetList))
	mux.Handle("PUT /api/houses/{house_id}/shopping-lists/{id}/status", s.member(s.shoppingH.SetStatus))
	mux.Handle("DELETE /api/houses/{house_id}/shopping-lists/{id}", s.member(s.shoppingH.DeleteList))
	mux.Handle("POST /api/houses/{house_id}/shopping-lists/{id}/generate", s.member(s.shoppingH.Generate))
	mux.Handle("POST /api/houses/{house_id}/shopping-lists/{id}/recommendations", s.member(s.shoppingH.AddRecommendation))
	mux.Handle("POST /api/houses/{house_id}/recommendations/{id}/bought", s.member(s.shoppingH.MarkBought))
	mux.Handle("DELETE /api/houses/{house_id}/recommendations/{id}", s.member(s.shoppingH.DeleteRecommendation))

	mux.Handle("GET /api/houses/{house_id}/predictions", s.member(s.insightH.Predictions))
	mux.Handle("GET /api/houses/{house_id}/reports", s.member(s.insightH.Reports))
	mux.Handle("GET /api/houses/{house_id}/timeline", s.member(s.insightH.Timeline))

	mux.Handle("GET /api/houses/{house_id}/notifications", s.member(s.notificationH.List))
	mux.Handle("POST /api/houses/{house_id}/notifications/{id}/read", s.member(s.notificationH.MarkRead))
	mux.Handle("POST /api/houses/{house_id}/notifications/read-all", s.member(s.notificationH.MarkAllRead))

	mux.Handle("GET /api/houses/{house_id}/ws", s.member(ws.HandleWebSocket(s.hub, s.wsOrigins, s.logger.With("component", "websocket"))))

	var h http.Handler = mux
	if s.metrics != nil {
		h = s.metrics.Middleware(h)
	}
	return middleware.RequestLogger(s.logger.With("component", "http"))(h)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func (s *Server) rateLimited(h http.HandlerFunc) http.Handler {
	return middleware.RateLimit(s.rateLimiter, middleware.RealIP, authRateLimit, authRateWindow)(h)
}

// user requires a session.
func (s *Server) user(h http.HandlerFunc) http.Handler {
	return middleware.RequireAuth(s.sessionStore, s.userStore)(h)
}

// member requires a session and an active membership of {house_id}.
func (s *Server) member(h http.HandlerFunc) http.Handler {
	return s.user(middleware.RequireMember(s.houseStore)(h).ServeHTTP)
}

// admin additionally requires the admin role in {house_id}.
func (s *Server) admin(h http.HandlerFunc) http.Handler {
	return s.member(middleware.RequireAdmin(h).ServeHTTP)
}
