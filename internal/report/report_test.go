package report

import (
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/stockhome/internal/database"
	"github.com/dukerupert/stockhome/internal/model"
	"github.com/dukerupert/stockhome/internal/stock"
	"github.com/dukerupert/stockhome/internal/store"
)

type fixture struct {
	db    *sql.DB
	user  *model.User
	house *model.House
	items *store.ItemStore
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
	h, err := store.NewHouseStore(db).Create("Rumah A", "", u.ID)
	if err != nil {
		t.Fatalf("create house: %v", err)
	}
	return &fixture{db: db, user: u, house: h, items: store.NewItemStore(db)}
}

func (f *fixture) item(t *testing.T, name string, quantity, threshold int) *model.Item {
	t.Helper()
	item, err := f.items.Create(f.house.ID, f.user.ID, store.ItemInput{Name: name, Quantity: quantity, Threshold: threshold})
	if err != nil {
		t.Fatalf("create item %q: %v", name, err)
	}
	return item
}

// record inserts a history row at a fixed time.
func (f *fixture) record(t *testing.T, itemID int64, delta int, cause, price string, at time.Time) {
	t.Helper()
	var p any
	if price != "" {
		p = price
	}
	_, err := f.db.Exec(
		`INSERT INTO stock_history (item_id, house_id, user_id, delta, cause, unit_price, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		itemID, f.house.ID, f.user.ID, delta, cause, p, at.UTC().Format(timeLayout),
	)
	if err != nil {
		t.Fatalf("insert history: %v", err)
	}
}

func day(d, hour int) time.Time {
	return time.Date(2025, 6, d, hour, 0, 0, 0, time.UTC)
}

func TestBuildTotals(t *testing.T) {
	f := setup(t)
	beras := f.item(t, "Beras", 0, 2)
	sabun := f.item(t, "Sabun Mandi", 0, 1)

	f.record(t, beras.ID, 5, model.CausePurchase, "14000", day(10, 9))
	f.record(t, sabun.ID, 3, model.CausePurchase, "4500.50", day(11, 9))
	f.record(t, beras.ID, -2, model.CauseConsumption, "", day(11, 19))
	f.record(t, beras.ID, -1, model.CauseConsumption, "", day(12, 19))
	f.record(t, sabun.ID, 2, model.CausePromo, "", day(12, 10))
	f.record(t, sabun.ID, -1, model.CauseExpiry, "", day(12, 11))
	// outside the range
	f.record(t, beras.ID, 10, model.CausePurchase, "15000", day(1, 9))

	r := Range{Start: day(10, 0), End: day(13, 0)}
	rep, err := New(f.db).Build(f.house.ID, PeriodCustom, r)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if rep.TotalPurchases != 2 {
		t.Errorf("total purchases = %d, want 2", rep.TotalPurchases)
	}
	if rep.UnitsPurchased != 8 {
		t.Errorf("units purchased = %d, want 8", rep.UnitsPurchased)
	}
	if rep.Consumption != 3 {
		t.Errorf("consumption = %d, want 3", rep.Consumption)
	}
	if want := decimal.RequireFromString("83501.5"); !rep.Cost.Equal(want) {
		t.Errorf("cost = %s, want %s", rep.Cost, want)
	}
	if rep.Granularity != "day" || len(rep.Buckets) != 3 {
		t.Fatalf("buckets = %s x %d, want day x 3", rep.Granularity, len(rep.Buckets))
	}
	if b := rep.Buckets[1]; b.Label != "2025-06-11" || b.Purchases != 1 || b.Consumption != 2 {
		t.Errorf("bucket[1] = %+v", b)
	}
	if !rep.Buckets[0].Cost.Equal(decimal.NewFromInt(70000)) {
		t.Errorf("bucket[0] cost = %s, want 70000", rep.Buckets[0].Cost)
	}
}

func TestBuildTopConsumedTrend(t *testing.T) {
	f := setup(t)
	beras := f.item(t, "Beras", 0, 2)
	kopi := f.item(t, "Kopi", 0, 1)
	teh := f.item(t, "Teh", 0, 1)

	// previous week: 10..16, current week: 17..23
	f.record(t, beras.ID, -4, model.CauseConsumption, "", day(12, 8))
	f.record(t, kopi.ID, -5, model.CauseConsumption, "", day(13, 8))
	f.record(t, teh.ID, -2, model.CauseConsumption, "", day(14, 8))

	f.record(t, beras.ID, -6, model.CauseConsumption, "", day(18, 8))
	f.record(t, kopi.ID, -3, model.CauseConsumption, "", day(19, 8))
	f.record(t, teh.ID, -2, model.CauseConsumption, "", day(20, 8))

	r := Range{Start: day(17, 0), End: day(24, 0)}
	rep, err := New(f.db).Build(f.house.ID, PeriodWeekly, r)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(rep.Top) != 3 {
		t.Fatalf("top = %d items, want 3", len(rep.Top))
	}

	want := []struct {
		name     string
		consumed int
		trend    Trend
		change   float64
	}{
		{"Beras", 6, TrendUp, 50},
		{"Kopi", 3, TrendDown, -40},
		{"Teh", 2, TrendFlat, 0},
	}
	for i, w := range want {
		got := rep.Top[i]
		if got.Name != w.name || got.Consumed != w.consumed || got.Trend != w.trend || got.Change != w.change {
			t.Errorf("top[%d] = %+v, want %+v", i, got, w)
		}
	}
}

func TestBuildTopLimitedToFive(t *testing.T) {
	f := setup(t)
	for i, name := range []string{"Beras", "Gula", "Kopi", "Teh", "Susu", "Roti", "Telur"} {
		item := f.item(t, name, 0, 0)
		f.record(t, item.ID, -(i + 1), model.CauseConsumption, "", day(15, 8))
	}

	rep, err := New(f.db).Build(f.house.ID, PeriodMonthly, Range{Start: day(1, 0), End: day(30, 0)})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(rep.Top) != 5 {
		t.Fatalf("top = %d items, want 5", len(rep.Top))
	}
	if rep.Top[0].Name != "Telur" || rep.Top[0].Consumed != 7 {
		t.Errorf("top[0] = %+v, want Telur 7", rep.Top[0])
	}
}

func TestBuildEmpty(t *testing.T) {
	f := setup(t)
	rep, err := New(f.db).Build(f.house.ID, PeriodDaily, Range{Start: day(1, 0), End: day(1, 12)})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if rep.TotalPurchases != 0 || !rep.Cost.IsZero() || len(rep.Top) != 0 {
		t.Errorf("empty report = %+v", rep)
	}
	if len(rep.Buckets) != 1 {
		t.Errorf("buckets = %d, want 1", len(rep.Buckets))
	}
}

func TestBuildScopedToHouse(t *testing.T) {
	f := setup(t)
	other, err := store.NewHouseStore(f.db).Create("Kos B", "", f.user.ID)
	if err != nil {
		t.Fatalf("create house: %v", err)
	}
	item := f.item(t, "Beras", 0, 0)
	f.record(t, item.ID, 4, model.CausePurchase, "1000", day(5, 8))

	rep, err := New(f.db).Build(other.ID, PeriodCustom, Range{Start: day(1, 0), End: day(10, 0)})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if rep.TotalPurchases != 0 {
		t.Errorf("other house saw %d purchases", rep.TotalPurchases)
	}
}

func TestPredictions(t *testing.T) {
	f := setup(t)
	now := day(30, 12)

	beras := f.item(t, "Beras", 8, 2)
	sabun := f.item(t, "Sabun Mandi", 20, 1)
	f.item(t, "Pulpen", 3, 0)

	// 75 beras over 30 days across 12 events => 2.5/day, 3 days left
	for i := 0; i < 12; i++ {
		delta := -6
		if i < 3 {
			delta = -7
		}
		f.record(t, beras.ID, delta, model.CauseConsumption, "", day(2+i*2, 8))
	}
	// 10 sabun over 30 days => 20 days left
	f.record(t, sabun.ID, -10, model.CauseConsumption, "", day(15, 8))
	// too old to count
	f.record(t, sabun.ID, -50, model.CauseConsumption, "", time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC))

	ps, err := New(f.db).Predictions(f.house.ID, 30, now)
	if err != nil {
		t.Fatalf("predictions: %v", err)
	}
	if len(ps) != 3 {
		t.Fatalf("predictions = %d, want 3", len(ps))
	}

	if ps[0].Name != "Beras" || ps[0].Consumed != 75 || ps[0].Events != 12 {
		t.Fatalf("ps[0] = %+v", ps[0])
	}
	if d := ps[0].Forecast.DaysLeft; d == nil || *d != 3 {
		t.Errorf("beras days left = %v, want 3", d)
	}
	if ps[0].Forecast.Urgency != stock.UrgencyHigh || ps[0].Forecast.Confidence != stock.ConfidenceHigh {
		t.Errorf("beras forecast = %+v", ps[0].Forecast)
	}
	if ps[0].Category != "Sembako" {
		t.Errorf("beras category = %q, want Sembako", ps[0].Category)
	}

	if ps[1].Name != "Sabun Mandi" || ps[1].Consumed != 10 {
		t.Errorf("ps[1] = %+v", ps[1])
	}
	if d := ps[1].Forecast.DaysLeft; d == nil || *d != 60 {
		t.Errorf("sabun days left = %v, want 60", d)
	}

	if ps[2].Name != "Pulpen" || ps[2].Forecast.DaysLeft != nil {
		t.Errorf("ps[2] = %+v, want Pulpen with no forecast", ps[2])
	}
}
