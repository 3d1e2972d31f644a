package interval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCalculateNextDueDate(t *testing.T) {
	tests := []struct {
		name  string
		base  time.Time
		value int
		unit  models.IntervalUnit
		want  time.Time
	}{
		{"one month", date(2024, 1, 15), 1, models.UnitMonths, date(2024, 2, 15)},
		{"thirty days", date(2024, 1, 15), 30, models.UnitDays, date(2024, 2, 14)},
		{"two weeks", date(2024, 1, 15), 2, models.UnitWeeks, date(2024, 1, 29)},
		{"one year", date(2024, 1, 15), 1, models.UnitYears, date(2025, 1, 15)},
		{"six months across year end", date(2024, 9, 1), 6, models.UnitMonths, date(2025, 3, 1)},
		{"month end clamps in leap year", date(2024, 1, 31), 1, models.UnitMonths, date(2024, 2, 29)},
		{"month end clamps in common year", date(2023, 1, 31), 1, models.UnitMonths, date(2023, 2, 28)},
		{"leap day plus one year", date(2024, 2, 29), 1, models.UnitYears, date(2025, 2, 28)},
		{"days cross leap day", date(2024, 2, 28), 2, models.UnitDays, date(2024, 3, 1)},
		{"zero interval", date(2024, 5, 5), 0, models.UnitWeeks, date(2024, 5, 5)},
		{"unknown unit falls back to months", date(2024, 1, 15), 3, "fortnights", date(2024, 4, 15)},
		{"empty unit falls back to months", date(2024, 1, 15), 1, "", date(2024, 2, 15)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateNextDueDate(tt.base, tt.value, tt.unit)
			assert.True(t, tt.want.Equal(got), "got %s, want %s", got, tt.want)
		})
	}
}

func TestCalculateNextDueDate_PreservesClockAndLocation(t *testing.T) {
	loc := time.FixedZone("shop", -5*3600)
	base := time.Date(2024, 3, 10, 14, 30, 0, 0, loc)

	got := CalculateNextDueDate(base, 1, models.UnitMonths)

	assert.Equal(t, time.Date(2024, 4, 10, 14, 30, 0, 0, loc), got)
	assert.Equal(t, loc, got.Location())
}

func TestCalculateNextDueMileage(t *testing.T) {
	assert.Equal(t, 55000, CalculateNextDueMileage(50000, 5000))
	assert.Equal(t, 5000, CalculateNextDueMileage(0, 5000))
	assert.Equal(t, 45000, CalculateNextDueMileage(50000, -5000))
}

func TestParseUnit(t *testing.T) {
	assert.Equal(t, models.UnitDays, ParseUnit("Day"))
	assert.Equal(t, models.UnitWeeks, ParseUnit(" weeks "))
	assert.Equal(t, models.UnitMonths, ParseUnit("month"))
	assert.Equal(t, models.UnitYears, ParseUnit("YEARS"))
	assert.Equal(t, models.IntervalUnit("hours"), ParseUnit("hours"))
}

func TestValidUnit(t *testing.T) {
	assert.True(t, ValidUnit(models.UnitDays))
	assert.True(t, ValidUnit(models.UnitYears))
	assert.False(t, ValidUnit("mileage"))
	assert.False(t, ValidUnit(""))
}
