package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/dukerupert/stockhome/internal/stock"
)

// Prediction pairs an item with its consumption forecast.
type Prediction struct {
	ItemID    int64          `json:"item_id" db:"id"`
	Name      string         `json:"name" db:"name"`
	Unit      string         `json:"unit" db:"unit"`
	Category  string         `json:"category" db:"category"`
	Quantity  int            `json:"quantity" db:"quantity"`
	Threshold int            `json:"threshold" db:"threshold"`
	Status    stock.Status   `json:"status" db:"status"`
	Consumed  int            `json:"consumed" db:"consumed"`
	Events    int            `json:"events" db:"events"`
	Forecast  stock.Forecast `json:"forecast" db:"-"`
}

// Predictions forecasts every live item of a house from consumption over
// the last windowDays days.
func (rp *Reporter) Predictions(houseID int64, windowDays int, now time.Time) ([]Prediction, error) {
	if windowDays <= 0 {
		windowDays = stock.DefaultWindowDays
	}
	since := now.UTC().AddDate(0, 0, -windowDays)

	var ps []Prediction
	err := rp.db.Select(&ps,
		`SELECT i.id, i.name, i.unit, COALESCE(c.name, '') AS category, i.quantity, i.threshold, i.status,
		        COALESCE(SUM(-h.delta), 0) AS consumed, COUNT(h.id) AS events
		 FROM items i
		 LEFT JOIN catalog_entries ce ON ce.id = i.catalog_id
		 LEFT JOIN categories c ON c.id = ce.category_id
		 LEFT JOIN stock_history h ON h.item_id = i.id AND h.cause = 'consumption' AND h.created_at >= ?
		 WHERE i.house_id = ? AND i.deleted_at IS NULL
		 GROUP BY i.id, i.name, i.unit, c.name, i.quantity, i.threshold, i.status`,
		since.Format(timeLayout), houseID)
	if err != nil {
		return nil, fmt.Errorf("select predictions: %w", err)
	}

	for i := range ps {
		ps[i].Forecast = stock.Predict(stock.Usage{
			Quantity:   ps[i].Quantity,
			Consumed:   ps[i].Consumed,
			Events:     ps[i].Events,
			WindowDays: windowDays,
		}, now)
	}
	sortPredictions(ps)
	if ps == nil {
		ps = []Prediction{}
	}
	return ps, nil
}

// sortPredictions orders soonest-empty first; items with no forecast go last.
func sortPredictions(ps []Prediction) {
	sort.SliceStable(ps, func(i, j int) bool {
		a, b := ps[i].Forecast.DaysLeft, ps[j].Forecast.DaysLeft
		switch {
		case a != nil && b != nil && *a != *b:
			return *a < *b
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return ps[i].Name < ps[j].Name
	})
}
