package stock

import (
	"math"
	"time"
)

type Urgency string

const (
	UrgencyHigh   Urgency = "high"
	UrgencyMedium Urgency = "medium"
	UrgencyLow    Urgency = "low"
)

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

const (
	highUrgencyDays   = 5
	mediumUrgencyDays = 14

	highConfidenceEvents   = 10
	mediumConfidenceEvents = 4

	// DefaultWindowDays is the consumption look-back used for forecasts.
	DefaultWindowDays = 30
)

// Usage summarises consumption of one item over a look-back window.
type Usage struct {
	Quantity   int
	Consumed   int
	Events     int
	WindowDays int
}

type Forecast struct {
	AvgDaily       float64    `json:"avg_daily"`
	DaysLeft       *int       `json:"days_left"`
	EstimatedEmpty *time.Time `json:"estimated_empty"`
	Urgency        Urgency    `json:"urgency"`
	Confidence     Confidence `json:"confidence"`
}

// Predict estimates when an item runs out at its recent consumption rate.
// DaysLeft is nil when nothing was consumed in the window and the item is
// not already empty.
func Predict(u Usage, now time.Time) Forecast {
	window := u.WindowDays
	if window <= 0 {
		window = DefaultWindowDays
	}
	quantity := clamp(u.Quantity)
	consumed := clamp(u.Consumed)

	f := Forecast{
		Urgency:    UrgencyLow,
		Confidence: confidenceFor(u.Events),
	}
	if consumed > 0 {
		f.AvgDaily = float64(consumed) / float64(window)
	}

	var days int
	switch {
	case quantity == 0:
		days = 0
	case f.AvgDaily == 0:
		return f
	default:
		days = int(math.Floor(float64(quantity) / f.AvgDaily))
	}

	f.DaysLeft = &days
	empty := startOfDay(now).AddDate(0, 0, days)
	f.EstimatedEmpty = &empty
	switch {
	case days <= highUrgencyDays:
		f.Urgency = UrgencyHigh
	case days <= mediumUrgencyDays:
		f.Urgency = UrgencyMedium
	}
	return f
}

func confidenceFor(events int) Confidence {
	switch {
	case events >= highConfidenceEvents:
		return ConfidenceHigh
	case events >= mediumConfidenceEvents:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
