package progress

import (
	"fmt"
	"time"
)

// Size unit step
const (
	bytesPerUnit = 1024
)

var sizeUnits = []string{"B", "KB", "MB", "GB", "TB"}

// FormatBytes renders a byte count as a human-readable size, e.g. "12.40 MB".
func FormatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	value := float64(n)
	unit := 0
	for value >= bytesPerUnit && unit < len(sizeUnits)-1 {
		value /= bytesPerUnit
		unit++
	}
	if unit == 0 {
		return fmt.Sprintf("%d B", n)
	}
	return fmt.Sprintf("%.2f %s", value, sizeUnits[unit])
}

// FormatSpeed renders a bytes-per-second rate, e.g. "1.20 MB/s".
func FormatSpeed(bytesPerSec float64) string {
	if bytesPerSec <= 0 {
		return "0 B/s"
	}
	return FormatBytes(int64(bytesPerSec)) + "/s"
}

// FormatETA renders a duration as mm:ss or hh:mm:ss, or "—" when unknown.
func FormatETA(d time.Duration) string {
	if d <= 0 {
		return "—"
	}
	total := int(d.Round(time.Second).Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
