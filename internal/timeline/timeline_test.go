package timeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tp(t time.Time) *time.Time { return &t }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

func TestMonthGrid_PadsToWholeWeeks(t *testing.T) {
	// January 2025 starts on a Wednesday.
	grid := MonthGrid(2025, time.January, time.Sunday, nil)

	require.NotEmpty(t, grid)
	assert.Equal(t, 0, len(grid)%7, "grid length must be a multiple of 7, got %d", len(grid))
	assert.Equal(t, time.Sunday, grid[0].Date.Weekday())
	assert.Equal(t, day(2024, time.December, 29), grid[0].Date, "should pad back to the preceding Sunday")
	assert.Equal(t, time.Saturday, grid[len(grid)-1].Date.Weekday())
	assert.False(t, grid[0].InMonth)
}

func TestMonthGrid_ConfigurableWeekStart(t *testing.T) {
	grid := MonthGrid(2025, time.January, time.Monday, nil)
	assert.Equal(t, time.Monday, grid[0].Date.Weekday())
	assert.Equal(t, 0, len(grid)%7)
	assert.Equal(t, day(2024, time.December, 30), grid[0].Date)
}

func TestMonthGrid_MarksIntersectingDays(t *testing.T) {
	items := []Item{
		{ID: "a", Start: tp(day(2025, time.January, 10)), End: tp(day(2025, time.January, 12))},
		{ID: "b", Start: tp(day(2025, time.March, 1))}, // outside visible range
	}
	grid := MonthGrid(2025, time.January, time.Sunday, items)

	marked := map[string]int{}
	for _, d := range grid {
		for _, id := range d.ItemIDs {
			marked[id]++
		}
	}
	assert.Equal(t, 3, marked["a"], "3-day item should appear on 3 days")
	assert.Zero(t, marked["b"])
}

func TestMonthGrid_OmitsItemsWithMissingDates(t *testing.T) {
	items := []Item{
		{ID: "bad"},
		{ID: "zero", Start: tp(time.Time{})},
	}
	grid := MonthGrid(2025, time.January, time.Sunday, items)
	for _, d := range grid {
		assert.Empty(t, d.ItemIDs)
	}
}

func TestGanttRows_OffsetsAndWidths(t *testing.T) {
	const w = 40
	days := MonthDays(2025, time.January)
	items := []Item{
		{ID: "a", Category: "campaign", Start: tp(day(2025, time.January, 5)), End: tp(day(2025, time.January, 7))},
	}
	groups := GanttRows(items, days, w, ModeStatus)

	require.Len(t, groups, 1)
	require.Len(t, groups[0].Rows, 1)
	row := groups[0].Rows[0]
	assert.Equal(t, 4, row.StartIndex, "task starting on the 5th visible day is zero-indexed 4")
	assert.Equal(t, 3, row.SpanDays)
	assert.Equal(t, 4*w, row.Left)
	assert.Equal(t, 3*w, row.Width)
}

func TestGanttRows_SingleDaySpansOneColumn(t *testing.T) {
	const w = 40
	days := MonthDays(2025, time.January)
	start := time.Date(2025, time.January, 10, 9, 30, 0, 0, time.Local)
	end := time.Date(2025, time.January, 10, 9, 30, 0, 0, time.Local)
	items := []Item{{ID: "one", Category: "content", Start: &start, End: &end}}

	groups := GanttRows(items, days, w, ModeStatus)
	require.Len(t, groups, 1)
	row := groups[0].Rows[0]
	assert.Equal(t, 1, row.SpanDays, "single-day item must span one column, not zero")
	assert.Equal(t, w, row.Width)
	assert.Equal(t, 9, row.StartIndex)
}

func TestGanttRows_InvertedIntervalFallsBackToStartDay(t *testing.T) {
	days := MonthDays(2025, time.January)
	start := time.Date(2025, time.January, 15, 12, 0, 0, 0, time.Local)
	end := time.Date(2025, time.January, 14, 12, 0, 0, 0, time.Local)
	items := []Item{{ID: "inv", Category: "design", Start: &start, End: &end}}

	groups := GanttRows(items, days, 10, ModeStatus)
	require.Len(t, groups, 1)
	row := groups[0].Rows[0]
	assert.Equal(t, 14, row.StartIndex)
	assert.Equal(t, 1, row.SpanDays)
	assert.Equal(t, 10, row.Width)
}

func TestGanttRows_ItemsOutsideMonthOmitted(t *testing.T) {
	days := MonthDays(2025, time.January)
	items := []Item{
		{ID: "feb", Category: "campaign", Start: tp(day(2025, time.February, 2)), End: tp(day(2025, time.February, 3))},
		{ID: "nil", Category: "campaign"},
	}
	groups := GanttRows(items, days, 10, ModeStatus)
	assert.Empty(t, groups)
}

func TestGanttRows_GroupsByCategoryFirstSeenOrder(t *testing.T) {
	days := MonthDays(2025, time.January)
	items := []Item{
		{ID: "1", Category: "design", Start: tp(day(2025, time.January, 3))},
		{ID: "2", Category: "campaign", Start: tp(day(2025, time.January, 4))},
		{ID: "3", Category: "design", Start: tp(day(2025, time.January, 5))},
	}
	groups := GanttRows(items, days, 10, ModeStatus)
	require.Len(t, groups, 2)
	assert.Equal(t, "design", groups[0].Category)
	assert.Len(t, groups[0].Rows, 2)
	assert.Equal(t, "campaign", groups[1].Category)
}

func TestColorModeCycle(t *testing.T) {
	assert.Equal(t, ModeCategory, NextMode(ModeStatus))
	assert.Equal(t, ModePriority, NextMode(ModeCategory))
	assert.Equal(t, ModeStatus, NextMode(ModePriority), "mode cycle must wrap")
	assert.Equal(t, ModeStatus, NextMode(ColorMode("bogus")))
}

func TestColorFor_FallbackToDefault(t *testing.T) {
	it := Item{Status: "published", Category: "nonsense", Priority: "high"}
	assert.Equal(t, "#22c55e", ColorFor(ModeStatus, it))
	assert.Equal(t, DefaultColor, ColorFor(ModeCategory, it))
	assert.Equal(t, "#ef4444", ColorFor(ModePriority, it))
	assert.Equal(t, DefaultColor, ColorFor(ColorMode("bogus"), it))
}
