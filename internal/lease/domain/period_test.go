package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPeriodFor(t *testing.T) {
	at := time.Date(2026, time.May, 17, 13, 45, 0, 0, time.UTC)

	monthly := PeriodFor(FrequencyMonthly, at)
	assert.Equal(t, date(2026, time.May, 1), monthly.Start)
	assert.Equal(t, date(2026, time.June, 1), monthly.End)

	quarterly := PeriodFor(FrequencyQuarterly, at)
	assert.Equal(t, date(2026, time.April, 1), quarterly.Start)
	assert.Equal(t, date(2026, time.July, 1), quarterly.End)
	assert.Equal(t, "2026-04..2026-06", quarterly.Label())

	annual := PeriodFor(FrequencyAnnually, at)
	assert.Equal(t, date(2026, time.January, 1), annual.Start)
	assert.Equal(t, date(2027, time.January, 1), annual.End)

	assert.Equal(t, monthly, PeriodFor("", at))
}

func TestDueDateClampsToMonthLength(t *testing.T) {
	feb := PeriodFor(FrequencyMonthly, date(2026, time.February, 10))
	assert.Equal(t, date(2026, time.February, 28), feb.DueDate(31))
	assert.Equal(t, date(2026, time.February, 5), feb.DueDate(5))
	assert.Equal(t, date(2026, time.February, 1), feb.DueDate(0))
}

func TestParseMonth(t *testing.T) {
	at, err := ParseMonth("2026-03")
	require.NoError(t, err)
	assert.Equal(t, "2026-03", PeriodFor(FrequencyMonthly, at).Label())

	_, err = ParseMonth("March")
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestLeaseCoversAndDueDay(t *testing.T) {
	march := PeriodFor(FrequencyMonthly, date(2026, time.March, 1))
	end := date(2026, time.February, 28)
	day := 40

	assert.True(t, Lease{StartDate: date(2025, time.January, 1)}.Covers(march))
	assert.False(t, Lease{StartDate: date(2026, time.April, 1)}.Covers(march))
	assert.False(t, Lease{StartDate: date(2025, time.January, 1), EndDate: &end}.Covers(march))

	assert.Equal(t, 5, Lease{}.DueDay(5))
	assert.Equal(t, 5, Lease{PaymentDueDay: &day}.DueDay(5))
	assert.True(t, march.Contains(date(2026, time.March, 31)))
	assert.False(t, march.Contains(date(2026, time.April, 1)))
}
