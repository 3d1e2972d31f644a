// Package interval advances service dates and odometer readings by a
// schedule's configured frequency.
package interval

import (
	"strings"
	"time"

	"github.com/ukydev/fleet-maintenance/internal/models"
)

// ParseUnit normalizes a frequency unit. Singular forms are accepted.
// Anything unrecognized is returned as-is and treated as months by
// CalculateNextDueDate.
func ParseUnit(s string) models.IntervalUnit {
	u := strings.ToLower(strings.TrimSpace(s))
	switch u {
	case "day":
		return models.UnitDays
	case "week":
		return models.UnitWeeks
	case "month":
		return models.UnitMonths
	case "year":
		return models.UnitYears
	}
	return models.IntervalUnit(u)
}

// ValidUnit reports whether u is one of the four calendar units.
func ValidUnit(u models.IntervalUnit) bool {
	switch u {
	case models.UnitDays, models.UnitWeeks, models.UnitMonths, models.UnitYears:
		return true
	}
	return false
}

// CalculateNextDueDate advances base by value units. Month and year steps
// clamp to the last day of the target month, so Jan 31 + 1 month lands on
// the last day of February. Unrecognized units fall back to months.
func CalculateNextDueDate(base time.Time, value int, unit models.IntervalUnit) time.Time {
	switch unit {
	case models.UnitDays:
		return base.AddDate(0, 0, value)
	case models.UnitWeeks:
		return base.AddDate(0, 0, 7*value)
	case models.UnitYears:
		return addMonths(base, 12*value)
	default:
		return addMonths(base, value)
	}
}

// CalculateNextDueMileage returns base + value. Negative intervals are not
// rejected.
func CalculateNextDueMileage(base, value int) int {
	return base + value
}

func addMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	target := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if last := daysIn(target.Year(), target.Month(), t.Location()); d > last {
		d = last
	}
	return time.Date(target.Year(), target.Month(), d,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
