package estimator

import (
	"fmt"
	"time"
)

// estimatingText is the sentinel shown while no valid forecast exists.
const estimatingText = "estimating"

// FormatDuration renders a duration for display: "Hh Mm" when hours are
// present, "Mm Ss" when minutes are, plain "Ss" otherwise. Sub-second parts
// are truncated; negative durations render as "0s".
func FormatDuration(d time.Duration) string {
	total := int64(d / time.Second)
	if total < 0 {
		total = 0
	}
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
