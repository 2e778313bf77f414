package handlers

import (
	"database/sql"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pagedeck/pagedeck/backend/internal/timeline"
)

// parseMonth accepts "YYYY-MM" and defaults to the current month.
func parseMonth(raw string) (int, time.Month, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		now := time.Now()
		return now.Year(), now.Month(), nil
	}
	t, err := time.ParseInLocation("2006-01", raw, time.Local)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid month %q, want YYYY-MM", raw)
	}
	return t.Year(), t.Month(), nil
}

func parseWeekStart(raw string) (time.Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "sunday", "0":
		return time.Sunday, nil
	case "monday", "1":
		return time.Monday, nil
	case "saturday", "6":
		return time.Saturday, nil
	}
	return time.Sunday, fmt.Errorf("invalid weekStart %q", raw)
}

// loadPostItems maps scheduled posts onto timeline items. Draft posts have no
// date and fall out of the views naturally.
func (h *Handler) loadPostItems() ([]timeline.Item, error) {
	rows, err := h.db.Query(`
		SELECT id, COALESCE(content, ''), status, COALESCE(category, ''), scheduled_time, end_time
		  FROM public.posts
		 WHERE scheduled_time IS NOT NULL
		 ORDER BY scheduled_time ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []timeline.Item{}
	for rows.Next() {
		var it timeline.Item
		var content string
		var start, end sql.NullTime
		if err := rows.Scan(&it.ID, &content, &it.Status, &it.Category, &start, &end); err != nil {
			return nil, err
		}
		it.Title = truncate(content, 60)
		if start.Valid {
			t := start.Time
			it.Start = &t
		}
		if end.Valid {
			t := end.Time
			it.End = &t
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (h *Handler) loadTaskItems(board taskBoard) ([]timeline.Item, error) {
	rows, err := h.db.Query(`
		SELECT id, title, status, category, priority, start_time, end_time
		  FROM ` + board.table + `
		 ORDER BY start_time ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []timeline.Item{}
	for rows.Next() {
		var it timeline.Item
		var start, end sql.NullTime
		if err := rows.Scan(&it.ID, &it.Title, &it.Status, &it.Category, &it.Priority, &start, &end); err != nil {
			return nil, err
		}
		if start.Valid {
			t := start.Time
			it.Start = &t
		}
		if end.Valid {
			t := end.Time
			it.End = &t
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (h *Handler) loadItems(source string) ([]timeline.Item, error) {
	switch source {
	case "posts":
		return h.loadPostItems()
	case "marketing":
		return h.loadTaskItems(marketingBoard)
	case "operation":
		return h.loadTaskItems(operationBoard)
	case "", "all":
		all, err := h.loadPostItems()
		if err != nil {
			return nil, err
		}
		for _, b := range []taskBoard{marketingBoard, operationBoard} {
			items, err := h.loadTaskItems(b)
			if err != nil {
				return nil, err
			}
			all = append(all, items...)
		}
		return all, nil
	}
	return nil, fmt.Errorf("invalid source %q", source)
}

// Calendar returns the padded month grid with item markers.
// GET /api/calendar?month=YYYY-MM&weekStart=sunday&source=all
func (h *Handler) Calendar(w http.ResponseWriter, r *http.Request) {
	year, month, err := parseMonth(r.URL.Query().Get("month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	weekStart, err := parseWeekStart(r.URL.Query().Get("weekStart"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	source := strings.TrimSpace(r.URL.Query().Get("source"))
	items, err := h.loadItems(source)
	if err != nil {
		status := http.StatusInternalServerError
		if strings.HasPrefix(err.Error(), "invalid source") {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}

	grid := timeline.MonthGrid(year, month, weekStart, items)
	writeJSON(w, http.StatusOK, map[string]any{
		"month": fmt.Sprintf("%04d-%02d", year, int(month)),
		"days":  grid,
		"items": items,
	})
}

// Gantt returns category-grouped bar rows for one month.
// GET /api/gantt?month=YYYY-MM&source=marketing&mode=status&colWidth=40
func (h *Handler) Gantt(w http.ResponseWriter, r *http.Request) {
	year, month, err := parseMonth(r.URL.Query().Get("month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	mode := timeline.ColorMode(strings.TrimSpace(r.URL.Query().Get("mode")))
	if mode == "" {
		mode = timeline.ModeStatus
	}
	if !timeline.ValidMode(mode) {
		writeError(w, http.StatusBadRequest, "invalid mode, want status, category or priority")
		return
	}

	colWidth := 40
	if raw := strings.TrimSpace(r.URL.Query().Get("colWidth")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 400 {
			writeError(w, http.StatusBadRequest, "invalid colWidth")
			return
		}
		colWidth = n
	}

	source := strings.TrimSpace(r.URL.Query().Get("source"))
	if source == "" {
		source = "marketing"
	}
	items, err := h.loadItems(source)
	if err != nil {
		status := http.StatusInternalServerError
		if strings.HasPrefix(err.Error(), "invalid source") {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}

	days := timeline.MonthDays(year, month)
	groups := timeline.GanttRows(items, days, colWidth, mode)
	writeJSON(w, http.StatusOK, map[string]any{
		"month":    fmt.Sprintf("%04d-%02d", year, int(month)),
		"mode":     mode,
		"nextMode": timeline.NextMode(mode),
		"colWidth": colWidth,
		"days":     len(days),
		"groups":   groups,
	})
}
