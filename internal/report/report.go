// Package report aggregates stock history into period reports and
// per-item consumption forecasts.
package report

import (
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/stockhome/internal/model"
)

const timeLayout = "2006-01-02 15:04:05"

const topItems = 5

type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
	TrendFlat Trend = "flat"
)

// Bucket totals one day or one month of a report.
type Bucket struct {
	Label       string          `json:"label"`
	Purchases   int             `json:"purchases"`
	Units       int             `json:"units"`
	Consumption int             `json:"consumption"`
	Cost        decimal.Decimal `json:"cost"`
}

// TopItem is one of the most consumed items of the period.
type TopItem struct {
	ItemID   int64   `json:"item_id" db:"item_id"`
	Name     string  `json:"name" db:"name"`
	Unit     string  `json:"unit" db:"unit"`
	Consumed int     `json:"consumed" db:"consumed"`
	Previous int     `json:"previous"`
	Trend    Trend   `json:"trend"`
	Change   float64 `json:"change_percent"`
}

type Report struct {
	Period         Period          `json:"period"`
	Range          Range           `json:"range"`
	Granularity    string          `json:"granularity"`
	TotalPurchases int             `json:"total_purchases"`
	UnitsPurchased int             `json:"units_purchased"`
	Consumption    int             `json:"consumption"`
	Cost           decimal.Decimal `json:"cost"`
	Buckets        []Bucket        `json:"buckets"`
	Top            []TopItem       `json:"top"`
}

type Reporter struct {
	db *sqlx.DB
}

// New wraps an open database. The connection pool is shared with the stores.
func New(db *sql.DB) *Reporter {
	return &Reporter{db: sqlx.NewDb(db, "sqlite")}
}

type entryRow struct {
	Delta     int            `db:"delta"`
	Cause     string         `db:"cause"`
	UnitPrice sql.NullString `db:"unit_price"`
	Bucket    string         `db:"bucket"`
}

// Build aggregates a house's stock history over r.
func (rp *Reporter) Build(houseID int64, period Period, r Range) (*Report, error) {
	granularity, bucketFormat, labels := bucketsFor(r)

	rep := &Report{
		Period:      period,
		Range:       r,
		Granularity: granularity,
		Cost:        decimal.Zero,
		Buckets:     make([]Bucket, len(labels)),
		Top:         []TopItem{},
	}
	index := make(map[string]int, len(labels))
	for i, label := range labels {
		rep.Buckets[i] = Bucket{Label: label, Cost: decimal.Zero}
		index[label] = i
	}

	var rows []entryRow
	err := rp.db.Select(&rows,
		`SELECT delta, cause, unit_price, strftime(?, created_at) AS bucket
		 FROM stock_history
		 WHERE house_id = ? AND created_at >= ? AND created_at < ? AND cause IN ('purchase', 'consumption')`,
		bucketFormat, houseID, r.Start.UTC().Format(timeLayout), r.End.UTC().Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("select report entries: %w", err)
	}

	for _, row := range rows {
		b := &Bucket{Cost: decimal.Zero}
		if i, ok := index[row.Bucket]; ok {
			b = &rep.Buckets[i]
		}
		switch row.Cause {
		case model.CausePurchase:
			rep.TotalPurchases++
			rep.UnitsPurchased += row.Delta
			b.Purchases++
			b.Units += row.Delta
			if row.UnitPrice.Valid {
				price, err := decimal.NewFromString(row.UnitPrice.String)
				if err != nil {
					return nil, fmt.Errorf("parse unit price: %w", err)
				}
				cost := price.Mul(decimal.NewFromInt(int64(row.Delta)))
				rep.Cost = rep.Cost.Add(cost)
				b.Cost = b.Cost.Add(cost)
			}
		case model.CauseConsumption:
			rep.Consumption -= row.Delta
			b.Consumption -= row.Delta
		}
	}

	top, err := rp.topConsumed(houseID, r)
	if err != nil {
		return nil, err
	}
	rep.Top = top
	return rep, nil
}

const consumedQuery = `SELECT h.item_id, i.name, i.unit, SUM(-h.delta) AS consumed
	FROM stock_history h JOIN items i ON i.id = h.item_id
	WHERE h.house_id = ? AND h.cause = 'consumption' AND h.created_at >= ? AND h.created_at < ?
	GROUP BY h.item_id, i.name, i.unit`

func (rp *Reporter) topConsumed(houseID int64, r Range) ([]TopItem, error) {
	var current []TopItem
	err := rp.db.Select(&current, consumedQuery+` ORDER BY consumed DESC, i.name LIMIT ?`,
		houseID, r.Start.UTC().Format(timeLayout), r.End.UTC().Format(timeLayout), topItems)
	if err != nil {
		return nil, fmt.Errorf("select top consumed: %w", err)
	}
	if len(current) == 0 {
		return []TopItem{}, nil
	}

	prev := r.Previous()
	var previous []TopItem
	err = rp.db.Select(&previous, consumedQuery,
		houseID, prev.Start.UTC().Format(timeLayout), prev.End.UTC().Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("select previous consumption: %w", err)
	}
	before := make(map[int64]int, len(previous))
	for _, p := range previous {
		before[p.ItemID] = p.Consumed
	}

	for i := range current {
		current[i].Previous = before[current[i].ItemID]
		current[i].Trend, current[i].Change = trend(current[i].Consumed, current[i].Previous)
	}
	return current, nil
}

// trend compares consumption with the previous period. Growth from zero
// counts as a 100% increase.
func trend(cur, prev int) (Trend, float64) {
	switch {
	case cur == prev:
		return TrendFlat, 0
	case prev == 0:
		return TrendUp, 100
	}
	change := math.Round(float64(cur-prev)/float64(prev)*1000) / 10
	if cur > prev {
		return TrendUp, change
	}
	return TrendDown, change
}

// bucketsFor picks day or month buckets and lists every label in r so the
// series has no gaps.
func bucketsFor(r Range) (granularity, sqlFormat string, labels []string) {
	if r.Days() <= maxDayBuckets {
		for d := startOfDay(r.Start); d.Before(r.End); d = d.AddDate(0, 0, 1) {
			labels = append(labels, d.Format(dateLayout))
		}
		return "day", "%Y-%m-%d", labels
	}
	start := r.Start.UTC()
	for m := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC); m.Before(r.End); m = m.AddDate(0, 1, 0) {
		labels = append(labels, m.Format("2006-01"))
	}
	return "month", "%Y-%m", labels
}
