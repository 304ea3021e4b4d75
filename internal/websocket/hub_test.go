package websocket

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/stockhome/internal/changefeed"
	"github.com/dukerupert/stockhome/internal/model"
)

func testHub() (*Hub, *changefeed.Feed) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	feed := changefeed.New(logger)
	return NewHub(feed, nil, logger), feed
}

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub, houseID int64) *Client {
	return &Client{
		hub:    hub,
		conn:   nil,
		userID: 1,
		filter: changefeed.Filter{HouseID: houseID},
		send:   make(chan []byte, sendBufferSize),
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub, feed := testHub()

	c1 := mockClient(hub, 1)
	c2 := mockClient(hub, 1)

	hub.Register(c1)
	hub.Register(c2)

	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}
	if got := feed.SubscriberCount(); got != 2 {
		t.Fatalf("expected 2 feed subscriptions, got %d", got)
	}

	hub.Unregister(c1)

	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client after unregister, got %d", got)
	}

	hub.Unregister(c2)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
	if got := feed.SubscriberCount(); got != 0 {
		t.Fatalf("expected subscriptions cancelled, got %d", got)
	}
}

func TestDoubleUnregister(t *testing.T) {
	hub, _ := testHub()
	c := mockClient(hub, 1)
	hub.Register(c)
	hub.Unregister(c)
	// Should not panic
	hub.Unregister(c)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestChangesReachOnlyTheirHouse(t *testing.T) {
	hub, feed := testHub()

	c1 := mockClient(hub, 1)
	c2 := mockClient(hub, 2)
	hub.Register(c1)
	hub.Register(c2)

	feed.Publish(changefeed.NewChange("items", changefeed.ActionCreated, 1, 42, nil))

	select {
	case data := <-c1.send:
		var got Message
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Type != "items_created" {
			t.Errorf("expected type items_created, got %s", got.Type)
		}
		if got.Table != "items" {
			t.Errorf("expected table items, got %s", got.Table)
		}
		if got.RowID != 42 {
			t.Errorf("expected row id 42, got %d", got.RowID)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for message")
	}

	select {
	case <-c2.send:
		t.Fatal("house 2 client received a house 1 change")
	default:
	}

	hub.Unregister(c1)
	hub.Unregister(c2)
}

func TestTableFilter(t *testing.T) {
	hub, feed := testHub()

	c := mockClient(hub, 1)
	c.filter.Table = "notifications"
	hub.Register(c)

	feed.Publish(changefeed.NewChange("items", changefeed.ActionUpdated, 1, 1, nil))
	feed.Publish(changefeed.NewChange("notifications", changefeed.ActionCreated, 1, 2, nil))

	if got := len(c.send); got != 1 {
		t.Errorf("queued = %d, want 1", got)
	}
	hub.Unregister(c)
}

func TestPublishAfterUnregister(t *testing.T) {
	hub, feed := testHub()
	c := mockClient(hub, 1)
	hub.Register(c)
	hub.Unregister(c)

	// Should not panic on the closed send channel
	feed.Publish(changefeed.NewChange("items", changefeed.ActionDeleted, 1, 1, nil))
}

func TestFullBufferDrops(t *testing.T) {
	hub, feed := testHub()

	c := mockClient(hub, 1)
	hub.Register(c)

	// Fill the send buffer
	for i := 0; i < sendBufferSize; i++ {
		feed.Publish(changefeed.NewChange("items", changefeed.ActionUpdated, 1, int64(i), nil))
	}

	// This should drop the message, not panic or block
	feed.Publish(changefeed.NewChange("items", changefeed.ActionUpdated, 1, 999, nil))

	count := 0
	for {
		select {
		case <-c.send:
			count++
		default:
			goto done
		}
	}
done:
	if count != sendBufferSize {
		t.Errorf("expected %d messages, got %d", sendBufferSize, count)
	}

	hub.Unregister(c)
}

func TestNewMessage(t *testing.T) {
	msg := NewMessage(changefeed.Change{Table: "shopping_lists", Action: changefeed.ActionUpdated, RowID: 5})
	if msg.Type != "shopping_lists_updated" {
		t.Errorf("expected type shopping_lists_updated, got %s", msg.Type)
	}
	if msg.RowID != 5 {
		t.Errorf("expected row id 5, got %d", msg.RowID)
	}
}

func TestConcurrentAccess(t *testing.T) {
	hub, feed := testHub()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(houseID int64) {
			defer wg.Done()
			c := mockClient(hub, houseID)
			hub.Register(c)
			feed.Publish(changefeed.NewChange("items", changefeed.ActionUpdated, houseID, 1, nil))
			// Drain any messages
			for {
				select {
				case <-c.send:
				default:
					hub.Unregister(c)
					return
				}
			}
		}(int64(i%3 + 1))
	}

	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients after concurrent test, got %d", got)
	}
}

// memberTable answers GetMember from a map keyed by user id.
type memberTable struct {
	mu      sync.Mutex
	members map[int64]*model.Membership
}

func (m *memberTable) GetMember(houseID, userID int64) (*model.Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.members[userID], nil
}

func (m *memberTable) set(userID int64, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if status == "" {
		delete(m.members, userID)
		return
	}
	m.members[userID] = &model.Membership{HouseID: 1, UserID: userID, Status: status}
}

func TestMembershipChangeClosesFormerMembers(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	feed := changefeed.New(logger)
	members := &memberTable{members: map[int64]*model.Membership{}}
	members.set(1, model.MemberActive)
	members.set(2, model.MemberActive)
	members.set(3, model.MemberActive)
	hub := NewHub(feed, members, logger)

	owner := mockClient(hub, 1)
	removed := mockClient(hub, 1)
	removed.userID = 2
	deactivated := mockClient(hub, 1)
	deactivated.userID = 3
	deactivated.filter.Table = "notifications"
	hub.Register(owner)
	hub.Register(removed)
	hub.Register(deactivated)

	members.set(2, "")
	feed.Publish(changefeed.NewChange("house_members", changefeed.ActionDeleted, 1, 20, nil))
	members.set(3, model.MemberInactive)
	feed.Publish(changefeed.NewChange("house_members", changefeed.ActionUpdated, 1, 30, nil))

	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("clients = %d, want only the active member left", got)
	}
	for _, c := range []*Client{removed, deactivated} {
		for range c.send {
		}
	}

	feed.Publish(changefeed.NewChange("items", changefeed.ActionUpdated, 1, 7, nil))
	var last Message
	for len(owner.send) > 0 {
		json.Unmarshal(<-owner.send, &last)
	}
	if last.Table != "items" {
		t.Errorf("active member last change = %q, want items", last.Table)
	}
	hub.Unregister(owner)
}

func TestMembershipChangeInOtherHouseIgnored(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	feed := changefeed.New(logger)
	members := &memberTable{members: map[int64]*model.Membership{}}
	hub := NewHub(feed, members, logger)

	c := mockClient(hub, 2)
	hub.Register(c)

	feed.Publish(changefeed.NewChange("house_members", changefeed.ActionDeleted, 1, 5, nil))
	if got := hub.ClientCount(); got != 1 {
		t.Errorf("clients = %d, want 1", got)
	}
	hub.Unregister(c)
}
