package timeline

import "time"

// Row is one bar in the Gantt view. Left and Width are pixel values derived
// from a fixed column width so the renderer does no math of its own.
type Row struct {
	ItemID     string `json:"itemId"`
	Title      string `json:"title"`
	StartIndex int    `json:"startIndex"`
	SpanDays   int    `json:"spanDays"`
	Left       int    `json:"left"`
	Width      int    `json:"width"`
	Color      string `json:"color"`
}

// Group is the rows of one category, in insertion order of first occurrence.
type Group struct {
	Category string `json:"category"`
	Rows     []Row  `json:"rows"`
}

// GanttRows lays items out against the visible day list (normally
// MonthDays for the month being viewed). Items that resolve to no visible
// day are omitted from that month's render; a bar is never narrower than one
// column.
func GanttRows(items []Item, days []time.Time, colWidth int, mode ColorMode) []Group {
	if colWidth <= 0 {
		colWidth = 1
	}

	order := make([]string, 0, 8)
	byCategory := make(map[string][]Row)

	for _, it := range items {
		if !it.usable() {
			continue
		}
		start, end := it.span()

		startIdx := -1
		span := 0
		for i, d := range days {
			dayEnd := d.AddDate(0, 0, 1)
			if start.Before(dayEnd) && !end.Before(d) {
				if startIdx < 0 {
					startIdx = i
				}
				span++
			}
		}
		if startIdx < 0 {
			// Containment found nothing (e.g. an inverted interval): anchor a
			// one-day bar on the day matching the start date exactly.
			startStr := start.Format(dateLayout)
			for i, d := range days {
				if d.Format(dateLayout) == startStr {
					startIdx = i
					span = 1
					break
				}
			}
		}
		if startIdx < 0 {
			continue
		}
		if span < 1 {
			span = 1
		}

		row := Row{
			ItemID:     it.ID,
			Title:      it.Title,
			StartIndex: startIdx,
			SpanDays:   span,
			Left:       startIdx * colWidth,
			Width:      span * colWidth,
			Color:      ColorFor(mode, it),
		}
		if _, seen := byCategory[it.Category]; !seen {
			order = append(order, it.Category)
		}
		byCategory[it.Category] = append(byCategory[it.Category], row)
	}

	groups := make([]Group, 0, len(order))
	for _, cat := range order {
		groups = append(groups, Group{Category: cat, Rows: byCategory[cat]})
	}
	return groups
}
