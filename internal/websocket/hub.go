package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukerupert/stockhome/internal/changefeed"
	"github.com/dukerupert/stockhome/internal/model"
)

// Message is the JSON frame sent to clients for each change.
type Message struct {
	Type string `json:"type"`
	changefeed.Change
}

// NewMessage wraps a change with a Type derived from its table and action.
func NewMessage(c changefeed.Change) Message {
	return Message{
		Type:   fmt.Sprintf("%s_%s", c.Table, c.Action),
		Change: c,
	}
}

// MemberLookup finds a user's membership of a house, or nil.
type MemberLookup interface {
	GetMember(houseID, userID int64) (*model.Membership, error)
}

// Hub tracks connected clients and feeds each one the changes of its house.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]func()
	feed    *changefeed.Feed
	members MemberLookup
	logger  *slog.Logger
}

// NewHub creates a Hub that streams changes from feed. When members is set,
// clients are disconnected once their membership stops being active.
func NewHub(feed *changefeed.Feed, members MemberLookup, logger *slog.Logger) *Hub {
	h := &Hub{
		clients: make(map[*Client]func()),
		feed:    feed,
		members: members,
		logger:  logger,
	}
	if members != nil {
		feed.Subscribe(changefeed.Filter{}, h.recheck)
	}
	return h
}

// recheck drops the clients of a house whose membership changed and is no
// longer active.
func (h *Hub) recheck(ch changefeed.Change) {
	if ch.Table != "house_members" && ch.Table != "houses" {
		return
	}

	h.mu.RLock()
	var watching []*Client
	for c := range h.clients {
		if c.filter.HouseID == ch.HouseID {
			watching = append(watching, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range watching {
		m, err := h.members.GetMember(c.filter.HouseID, c.userID)
		if err != nil {
			h.logger.Error("recheck websocket member", "house_id", c.filter.HouseID, "user_id", c.userID, "error", err)
			continue
		}
		if m == nil || m.Status != model.MemberActive {
			h.logger.Info("closing websocket of former member", "house_id", c.filter.HouseID, "user_id", c.userID)
			h.Unregister(c)
		}
	}
}

// Register adds a client and subscribes it to its house's changes.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		return
	}
	h.clients[c] = h.feed.Subscribe(c.filter, func(ch changefeed.Change) {
		h.deliver(c, NewMessage(ch))
	})
}

// Unregister cancels the client's subscription and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	cancel, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	if ok {
		cancel()
	}
}

// deliver queues msg for c, dropping it when the client is gone or its
// buffer is full.
func (h *Hub) deliver(c *Client, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal change message", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
		h.logger.Debug("websocket client buffer full, dropping message", "house_id", c.filter.HouseID)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
