package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/stockhome/internal/auth"
	"github.com/dukerupert/stockhome/internal/changefeed"
)

// HandleWebSocket upgrades the request and streams the authenticated house's
// changes until the connection closes. An optional ?table= narrows the stream.
// Cross-origin upgrades are accepted only from hosts matching originPatterns.
func HandleWebSocket(hub *Hub, originPatterns []string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		houseID := auth.HouseID(r.Context())
		if houseID == 0 {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{OriginPatterns: originPatterns})
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}

		filter := changefeed.Filter{HouseID: houseID, Table: r.URL.Query().Get("table")}
		client := NewClient(hub, conn, auth.UserID(r.Context()), filter)
		client.Run(r.Context())
	}
}
