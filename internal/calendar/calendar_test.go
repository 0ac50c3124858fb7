package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestIsWeekend(t *testing.T) {
	t.Parallel()

	assert.True(t, IsWeekend(date(2024, time.March, 16)))  // Saturday
	assert.True(t, IsWeekend(date(2024, time.March, 17)))  // Sunday
	assert.False(t, IsWeekend(date(2024, time.March, 15))) // Friday
	assert.False(t, IsWeekend(date(2024, time.March, 18))) // Monday
}

func TestIsPublicHoliday(t *testing.T) {
	t.Parallel()

	assert.True(t, IsPublicHoliday(date(2024, time.January, 1)))
	assert.True(t, IsPublicHoliday(date(2024, time.March, 21)))
	assert.True(t, IsPublicHoliday(date(2025, time.December, 25)), "fixed dates hold every year")
	assert.False(t, IsPublicHoliday(date(2024, time.March, 15)))
}

func TestIsBusinessDay(t *testing.T) {
	t.Parallel()

	assert.True(t, IsBusinessDay(date(2024, time.March, 15)))   // ordinary Friday
	assert.False(t, IsBusinessDay(date(2024, time.March, 16)))  // Saturday
	assert.False(t, IsBusinessDay(date(2024, time.March, 21)))  // holiday on a Thursday
	assert.False(t, IsBusinessDay(date(2024, time.December, 25)))
}
