package timeline

// ColorMode picks which field of an item governs its bar color.
type ColorMode string

const (
	ModeStatus   ColorMode = "status"
	ModeCategory ColorMode = "category"
	ModePriority ColorMode = "priority"
)

var modeOrder = []ColorMode{ModeStatus, ModeCategory, ModePriority}

// DefaultColor is used for values with no mapping.
const DefaultColor = "#9ca3af"

var statusColors = map[string]string{
	"draft":          "#9ca3af",
	"scheduled":      "#3b82f6",
	"published":      "#22c55e",
	"publish_failed": "#ef4444",
	"todo":           "#9ca3af",
	"in_progress":    "#3b82f6",
	"review":         "#f59e0b",
	"done":           "#22c55e",
}

var categoryColors = map[string]string{
	"promotion":    "#ec4899",
	"event":        "#8b5cf6",
	"announcement": "#06b6d4",
	"campaign":     "#f97316",
	"content":      "#84cc16",
	"design":       "#a855f7",
	"report":       "#64748b",
	"procurement":  "#0ea5e9",
	"logistics":    "#14b8a6",
	"staffing":     "#eab308",
	"maintenance":  "#78716c",
}

var priorityColors = map[string]string{
	"low":    "#22c55e",
	"normal": "#3b82f6",
	"high":   "#ef4444",
}

// ColorFor resolves the governing field under mode to a color, falling back
// to DefaultColor for unknown modes or unmapped values.
func ColorFor(mode ColorMode, it Item) string {
	var table map[string]string
	var key string
	switch mode {
	case ModeStatus:
		table, key = statusColors, it.Status
	case ModeCategory:
		table, key = categoryColors, it.Category
	case ModePriority:
		table, key = priorityColors, it.Priority
	default:
		return DefaultColor
	}
	if c, ok := table[key]; ok {
		return c
	}
	return DefaultColor
}

// NextMode rotates status -> category -> priority -> status. Unknown input
// resets to the first mode.
func NextMode(m ColorMode) ColorMode {
	for i, mode := range modeOrder {
		if mode == m {
			return modeOrder[(i+1)%len(modeOrder)]
		}
	}
	return modeOrder[0]
}

// ValidMode reports whether m is one of the three supported modes.
func ValidMode(m ColorMode) bool {
	for _, mode := range modeOrder {
		if mode == m {
			return true
		}
	}
	return false
}
