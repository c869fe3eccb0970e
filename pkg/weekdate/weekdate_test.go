package weekdate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeekStartNormalizesToMonday(t *testing.T) {
	// 2024-06-05 is a Wednesday.
	wed, err := ParseDate("2024-06-05")
	require.NoError(t, err)

	start := WeekStart(wed)
	assert.Equal(t, "2024-06-03", start.Format(DateLayout))
	assert.Equal(t, Monday, LabelFor(start))
	assert.Equal(t, 0, start.Hour())
}

func TestWeekStartOnSunday(t *testing.T) {
	// Sunday belongs to the week that started the previous Monday.
	sun, err := ParseDate("2024-06-09")
	require.NoError(t, err)
	assert.Equal(t, "2024-06-03", WeekStart(sun).Format(DateLayout))
	assert.Equal(t, Sunday, LabelFor(sun))
	assert.Equal(t, 6, DayIndex(sun))
}

func TestDayBoundaryNearMidnight(t *testing.T) {
	// 17:30 UTC is already the next day in ICT (+7).
	utc := time.Date(2024, 6, 3, 17, 30, 0, 0, time.UTC)
	assert.Equal(t, "2024-06-04", Normalize(utc).Format(DateLayout))
	assert.Equal(t, Tuesday, LabelFor(utc))
}

func TestLabelAt(t *testing.T) {
	for i, want := range []DayLabel{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday} {
		got, err := LabelAt(i)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := LabelAt(7)
	assert.Error(t, err)
	_, err = LabelAt(-1)
	assert.Error(t, err)
}

func TestValidSlot(t *testing.T) {
	assert.True(t, ValidSlot("09:00-09:30"))
	assert.True(t, ValidSlot("23:00-23:59"))
	assert.False(t, ValidSlot("9:00-9:30"))
	assert.False(t, ValidSlot("09:00"))
	assert.False(t, ValidSlot("09:30-09:00"))
	assert.False(t, ValidSlot("09:00-09:00"))
	assert.False(t, ValidSlot("24:00-24:30"))
	assert.False(t, ValidSlot("09:00 - 09:30"))
}

func TestSlotStart(t *testing.T) {
	date, err := ParseDate("2024-06-03")
	require.NoError(t, err)

	start, err := SlotStart(date, "09:00-09:30")
	require.NoError(t, err)
	assert.Equal(t, 9, start.Hour())
	assert.Equal(t, 0, start.Minute())
	assert.Equal(t, "2024-06-03", start.Format(DateLayout))

	_, err = SlotStart(date, "morning")
	assert.Error(t, err)
}

func TestWeekRange(t *testing.T) {
	start, _ := ParseDate("2024-06-03")
	from, to := WeekRange(start)
	assert.Equal(t, "2024-06-03", from.Format(DateLayout))
	assert.Equal(t, "2024-06-10", to.Format(DateLayout))
}

func TestISOWeek(t *testing.T) {
	d, _ := ParseDate("2024-06-03")
	year, week := ISOWeek(d)
	assert.Equal(t, 2024, year)
	assert.Equal(t, 23, week)
}
