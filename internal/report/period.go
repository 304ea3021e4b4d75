package report

import (
	"time"

	"github.com/dukerupert/stockhome/internal/apperr"
)

type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodYearly  Period = "yearly"
	PeriodCustom  Period = "custom"
)

const dateLayout = "2006-01-02"

// maxDayBuckets is the longest range reported day by day; longer ranges
// are bucketed by month.
const maxDayBuckets = 31

// Range is the half-open interval [Start, End).
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Previous returns the range of equal length ending where r starts.
func (r Range) Previous() Range {
	return Range{Start: r.Start.Add(-r.End.Sub(r.Start)), End: r.Start}
}

// Days is the number of calendar days the range touches.
func (r Range) Days() int {
	if !r.End.After(r.Start) {
		return 0
	}
	first := startOfDay(r.Start)
	last := startOfDay(r.End.Add(-time.Nanosecond))
	return int(last.Sub(first).Hours()/24) + 1
}

// Resolve turns a period name into a range ending at now. Custom periods
// take inclusive start and end dates in YYYY-MM-DD form. An empty period
// means monthly.
func Resolve(period Period, start, end string, now time.Time) (Range, error) {
	now = now.UTC()
	today := startOfDay(now)

	switch period {
	case PeriodDaily:
		return Range{Start: today, End: now}, nil
	case PeriodWeekly:
		return Range{Start: today.AddDate(0, 0, -6), End: now}, nil
	case PeriodMonthly, "":
		return Range{Start: today.AddDate(0, 0, -29), End: now}, nil
	case PeriodYearly:
		firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		return Range{Start: firstOfMonth.AddDate(0, -11, 0), End: now}, nil
	case PeriodCustom:
		if start == "" || end == "" {
			return Range{}, apperr.Validation("custom period needs start and end dates")
		}
		s, err := time.Parse(dateLayout, start)
		if err != nil {
			return Range{}, apperr.Validation("invalid start date %q", start)
		}
		e, err := time.Parse(dateLayout, end)
		if err != nil {
			return Range{}, apperr.Validation("invalid end date %q", end)
		}
		if e.Before(s) {
			return Range{}, apperr.Validation("end date is before start date")
		}
		return Range{Start: s, End: e.AddDate(0, 0, 1)}, nil
	default:
		return Range{}, apperr.Validation("unknown period %q", period)
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
