package alert

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/dukerupert/stockhome/internal/changefeed"
	"github.com/dukerupert/stockhome/internal/database"
	"github.com/dukerupert/stockhome/internal/metrics"
	"github.com/dukerupert/stockhome/internal/model"
	"github.com/dukerupert/stockhome/internal/store"
)

type fixture struct {
	db            *sql.DB
	user          *model.User
	house         *model.House
	items         *store.ItemStore
	notifications *store.NotificationStore
	feed          *changefeed.Feed
	metrics       *metrics.Metrics
	scheduler     *Scheduler
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	u, err := store.NewUserStore(db).Create("owner@example.com", "Owner", "rahasia123")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	houses := store.NewHouseStore(db)
	h, err := houses.Create("Kos Melati", "", u.ID)
	if err != nil {
		t.Fatalf("create house: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		db:            db,
		user:          u,
		house:         h,
		items:         store.NewItemStore(db),
		notifications: store.NewNotificationStore(db),
		feed:          changefeed.New(logger),
		metrics:       metrics.New(),
	}
	f.scheduler = NewScheduler(houses, f.items, f.notifications, store.NewSessionStore(db, time.Hour),
		f.feed, f.metrics, logger, Options{Interval: time.Hour, ExpiryWindowDays: 3})
	return f
}

func (f *fixture) item(t *testing.T, in store.ItemInput) *model.Item {
	t.Helper()
	item, err := f.items.Create(f.house.ID, f.user.ID, in)
	if err != nil {
		t.Fatalf("create item %q: %v", in.Name, err)
	}
	return item
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestCheckHouseStockAlerts(t *testing.T) {
	f := setup(t)
	f.item(t, store.ItemInput{Name: "Beras", Unit: "kg", Quantity: 2, Threshold: 5})
	f.item(t, store.ItemInput{Name: "Gula", Quantity: 0, Threshold: 2})
	f.item(t, store.ItemInput{Name: "Kopi", Quantity: 10, Threshold: 2})

	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	n, err := f.scheduler.CheckHouse(f.house.ID, now)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if n != 2 {
		t.Fatalf("created = %d, want 2", n)
	}

	list, err := f.notifications.List(f.house.ID, false, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	kinds := map[string]string{}
	for _, n := range list {
		kinds[n.Kind] = n.Message
	}
	if msg := kinds[model.NotifyLowStock]; !strings.Contains(msg, "Beras") || !strings.Contains(msg, "2 kg") {
		t.Errorf("low stock message = %q", msg)
	}
	if msg := kinds[model.NotifyOutOfStock]; !strings.Contains(msg, "Gula") {
		t.Errorf("out of stock message = %q", msg)
	}
}

func TestCheckHouseOncePerDay(t *testing.T) {
	f := setup(t)
	f.item(t, store.ItemInput{Name: "Gula", Quantity: 0, Threshold: 2})

	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	if _, err := f.scheduler.CheckHouse(f.house.ID, now); err != nil {
		t.Fatalf("first check: %v", err)
	}
	n, err := f.scheduler.CheckHouse(f.house.ID, now.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("second check: %v", err)
	}
	if n != 0 {
		t.Errorf("same-day recheck created %d, want 0", n)
	}

	n, err = f.scheduler.CheckHouse(f.house.ID, now.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("next day check: %v", err)
	}
	if n != 1 {
		t.Errorf("next day created %d, want 1", n)
	}
}

func TestCheckHouseExpiring(t *testing.T) {
	f := setup(t)
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	f.item(t, store.ItemInput{Name: "Susu", Quantity: 4, Threshold: 1, ExpiresAt: date(2026, 3, 12)})
	f.item(t, store.ItemInput{Name: "Roti", Quantity: 2, Threshold: 1, ExpiresAt: date(2026, 3, 8)})
	f.item(t, store.ItemInput{Name: "Keju", Quantity: 2, Threshold: 1, ExpiresAt: date(2026, 3, 20)})
	f.item(t, store.ItemInput{Name: "Yogurt", Quantity: 0, Threshold: 0, ExpiresAt: date(2026, 3, 11)})

	if _, err := f.scheduler.CheckHouse(f.house.ID, now); err != nil {
		t.Fatalf("check: %v", err)
	}
	list, err := f.notifications.List(f.house.ID, false, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	var expiring []string
	for _, n := range list {
		if n.Kind == model.NotifyExpiring {
			expiring = append(expiring, n.Message)
		}
	}
	if len(expiring) != 2 {
		t.Fatalf("expiring notifications = %v, want Susu and Roti", expiring)
	}
	joined := strings.Join(expiring, "\n")
	if !strings.Contains(joined, "Susu akan kedaluwarsa pada 12 Maret 2026") {
		t.Errorf("missing upcoming expiry in %q", joined)
	}
	if !strings.Contains(joined, "Roti sudah kedaluwarsa sejak 8 Maret 2026") {
		t.Errorf("missing past expiry in %q", joined)
	}
}

func TestCheckHousePublishesChanges(t *testing.T) {
	f := setup(t)
	f.item(t, store.ItemInput{Name: "Gula", Quantity: 0, Threshold: 2})

	var mu sync.Mutex
	var got []changefeed.Change
	cancel := f.feed.Subscribe(changefeed.Filter{Table: "notifications", HouseID: f.house.ID}, func(c changefeed.Change) {
		mu.Lock()
		got = append(got, c)
		mu.Unlock()
	})
	defer cancel()

	if _, err := f.scheduler.CheckHouse(f.house.ID, time.Now().UTC()); err != nil {
		t.Fatalf("check: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0].Action != changefeed.ActionCreated {
		t.Fatalf("changes = %+v, want one created notification", got)
	}
}

func TestTickUpdatesGauges(t *testing.T) {
	f := setup(t)
	f.item(t, store.ItemInput{Name: "Beras", Quantity: 2, Threshold: 5})
	f.item(t, store.ItemInput{Name: "Kopi", Quantity: 10, Threshold: 2})

	f.scheduler.tick(time.Now().UTC())

	reg := f.metrics.Registry()
	if n, err := testutil.GatherAndCount(reg, "stockhome_items"); err != nil || n != 3 {
		t.Errorf("item gauges = %d (%v), want 3 series", n, err)
	}
	if n, err := testutil.GatherAndCount(reg, "stockhome_alerts_total"); err != nil || n != 1 {
		t.Errorf("alert counters = %d (%v), want 1 series", n, err)
	}
}

func TestStartStop(t *testing.T) {
	f := setup(t)
	f.item(t, store.ItemInput{Name: "Gula", Quantity: 0, Threshold: 2})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.scheduler.Start(ctx)
	f.scheduler.Stop()

	count, err := f.notifications.UnreadCount(f.house.ID)
	if err != nil {
		t.Fatalf("unread count: %v", err)
	}
	if count != 1 {
		t.Errorf("unread after start = %d, want 1 from the initial check", count)
	}
}
