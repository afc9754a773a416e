package components

import (
	"fmt"
	"strings"
)

// formatScore renders a 0..1 quality average, or a dash when the
// metric was never computed for the group.
func formatScore(v *float64) string {
	if v == nil {
		return "–"
	}
	return fmt.Sprintf("%.3f", *v)
}

// formatLatency renders an average latency in a readable unit.
func formatLatency(v *float64) string {
	if v == nil {
		return "–"
	}
	ms := *v
	if ms >= 1000 {
		return fmt.Sprintf("%.2f s", ms/1000)
	}
	return fmt.Sprintf("%.0f ms", ms)
}

// formatCost renders an average cost per execution.
func formatCost(v *float64) string {
	if v == nil {
		return "–"
	}
	return fmt.Sprintf("$%.6f", *v)
}

// formatCountAvg renders an average count with one decimal.
func formatCountAvg(v *float64) string {
	if v == nil {
		return "–"
	}
	return fmt.Sprintf("%.1f", *v)
}

// rankingTitle returns the display name for a ranking category.
func rankingTitle(category string) string {
	if title, ok := rankingTitles[category]; ok {
		return title
	}
	return category
}

// refreshTrigger builds the HTMX trigger for the comparison section:
// steady polling plus immediate refresh on pushed events.
func refreshTrigger(seconds int) string {
	return fmt.Sprintf("load, every %ds, sse:execution.recorded, sse:executions.purged, sse:document.indexed", seconds)
}

// joinRanked renders a ranked technique list as "1. a  2. b  3. c".
func joinRanked(techniques []string) string {
	parts := make([]string, len(techniques))
	for i, t := range techniques {
		parts[i] = fmt.Sprintf("%d. %s", i+1, t)
	}
	return strings.Join(parts, "  ")
}
