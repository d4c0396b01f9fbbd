package domain

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidPeriod = errors.New("invalid_period")

// Period is a billing window [Start, End) at UTC midnight boundaries.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// PeriodFor returns the calendar window of the given frequency containing at.
// Quarters start in January, April, July and October; annual windows are
// calendar years.
func PeriodFor(freq PaymentFrequency, at time.Time) Period {
	at = at.UTC()
	switch freq {
	case FrequencyQuarterly:
		startMonth := time.Month((int(at.Month())-1)/3*3 + 1)
		start := time.Date(at.Year(), startMonth, 1, 0, 0, 0, 0, time.UTC)
		return Period{Start: start, End: start.AddDate(0, 3, 0)}
	case FrequencyAnnually:
		start := time.Date(at.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
		return Period{Start: start, End: start.AddDate(1, 0, 0)}
	default:
		start := time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, time.UTC)
		return Period{Start: start, End: start.AddDate(0, 1, 0)}
	}
}

// ParseMonth parses "YYYY-MM" into an instant inside that month.
func ParseMonth(raw string) (time.Time, error) {
	t, err := time.Parse("2006-01", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, raw)
	}
	return t.UTC(), nil
}

// DueDate places dueDay in the first month of the period, clamped to the
// month's length.
func (p Period) DueDate(dueDay int) time.Time {
	start := p.Start.UTC()
	lastDay := time.Date(start.Year(), start.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if dueDay < 1 {
		dueDay = 1
	}
	if dueDay > lastDay {
		dueDay = lastDay
	}
	return time.Date(start.Year(), start.Month(), dueDay, 0, 0, 0, 0, time.UTC)
}

// Contains reports whether t falls inside the window.
func (p Period) Contains(t time.Time) bool {
	d := truncateDay(t)
	return !d.Before(p.Start) && d.Before(p.End)
}

// Label renders the window for invoice descriptions, e.g. "2026-03" or
// "2026-01..2026-03".
func (p Period) Label() string {
	last := p.End.AddDate(0, 0, -1)
	if p.Start.Year() == last.Year() && p.Start.Month() == last.Month() {
		return p.Start.Format("2006-01")
	}
	return p.Start.Format("2006-01") + ".." + last.Format("2006-01")
}
