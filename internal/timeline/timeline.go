// Package timeline turns scheduled items (posts and tasks) into the layouts
// the dashboard's month-grid calendar and Gantt views render.
package timeline

import "time"

const dateLayout = "2006-01-02"

// Item is one scheduled thing to place on the calendar. Start/End are
// pointers so rows with bad or missing dates can be carried through the
// pipeline and dropped at render time instead of aborting the whole view.
type Item struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category"`
	Status   string `json:"status"`
	Priority string `json:"priority"`

	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// usable reports whether the item has dates we can place. End may be missing
// (treated as a single instant at Start).
func (it Item) usable() bool {
	return it.Start != nil && !it.Start.IsZero()
}

// span returns the item's [start, end] interval with the single-day
// extension applied: when start and end fall on the same calendar date the
// end boundary is pushed to 23:59:59 so containment tests still resolve to a
// one-day span.
func (it Item) span() (time.Time, time.Time) {
	start := *it.Start
	end := start
	if it.End != nil && !it.End.IsZero() {
		end = *it.End
	}
	if start.Format(dateLayout) == end.Format(dateLayout) {
		y, m, d := end.Date()
		end = time.Date(y, m, d, 23, 59, 59, 0, end.Location())
	}
	return start, end
}

// Day is one cell of the month grid.
type Day struct {
	Date    time.Time `json:"date"`
	InMonth bool      `json:"inMonth"`
	ItemIDs []string  `json:"itemIds,omitempty"`
}

// MonthDays lists the calendar days of a month, first to last.
func MonthDays(year int, month time.Month) []time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.Local)
	days := make([]time.Time, 0, 31)
	for d := first; d.Month() == month; d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// MonthGrid builds the padded day list for a month: backward to the most
// recent weekStart on or before the 1st, forward to the week-end after the
// last day, so the result length is always a multiple of 7. Items whose
// interval intersects a day are marked on that day; items with missing or
// invalid dates are silently omitted.
func MonthGrid(year int, month time.Month, weekStart time.Weekday, items []Item) []Day {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.Local)
	last := first.AddDate(0, 1, -1)

	gridStart := first
	for gridStart.Weekday() != weekStart {
		gridStart = gridStart.AddDate(0, 0, -1)
	}
	gridEnd := last
	weekEnd := (weekStart + 6) % 7
	for gridEnd.Weekday() != weekEnd {
		gridEnd = gridEnd.AddDate(0, 0, 1)
	}

	grid := make([]Day, 0, 42)
	for d := gridStart; !d.After(gridEnd); d = d.AddDate(0, 0, 1) {
		day := Day{Date: d, InMonth: d.Month() == month}
		dayEnd := d.AddDate(0, 0, 1)
		for _, it := range items {
			if !it.usable() {
				continue
			}
			start, end := it.span()
			if start.Before(dayEnd) && !end.Before(d) {
				day.ItemIDs = append(day.ItemIDs, it.ID)
			}
		}
		grid = append(grid, day)
	}
	return grid
}
