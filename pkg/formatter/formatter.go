package formatter

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// FormatBytes renders a byte count with a binary unit.
// Example: 52428800 -> "50.0 MB"
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return strconv.FormatInt(n, 10) + " B"
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

// FormatClock renders a duration as mm:ss, the way a recording timer shows it.
// Example: 75*time.Second -> "01:15"
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// FormatSeconds renders a duration in seconds with at most one decimal.
// Example: 15*time.Second -> "15s", 2500*time.Millisecond -> "2.5s"
func FormatSeconds(d time.Duration) string {
	s := d.Seconds()
	if s == math.Trunc(s) {
		return strconv.FormatFloat(s, 'f', 0, 64) + "s"
	}
	return strconv.FormatFloat(s, 'f', 1, 64) + "s"
}
