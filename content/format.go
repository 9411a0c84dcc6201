package content

import (
	"fmt"
	"strings"
	"time"
)

// FormatDate renders a publication timestamp the way article headers show it.
func FormatDate(t time.Time) string {
	return t.Format("January 2, 2006 15:04")
}

// FormatDuration renders a subscription window as "2d 3h 20m".
// A zero duration reads as permanent.
func FormatDuration(seconds int64) string {
	if seconds <= 0 {
		return "permanent"
	}

	days := seconds / (24 * 3600)
	hours := (seconds % (24 * 3600)) / 3600
	minutes := (seconds % 3600) / 60

	var b strings.Builder
	if days > 0 {
		fmt.Fprintf(&b, "%dd ", days)
	}
	if hours > 0 {
		fmt.Fprintf(&b, "%dh ", hours)
	}
	if minutes > 0 {
		fmt.Fprintf(&b, "%dm", minutes)
	}
	if b.Len() == 0 {
		return "<1m"
	}
	return strings.TrimSpace(b.String())
}

// Truncate shortens body text to maxLen runes for excerpt display,
// appending an ellipsis when anything was cut.
func Truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
