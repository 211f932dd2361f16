package utils

import "fmt"

// HumanReadableSize renders a byte count for progress and stats payloads.
func HumanReadableSize(size int64) string {
	value := float64(size)
	for _, unit := range []string{"B", "KB", "MB", "GB", "TB"} {
		if value < 1024.0 {
			return fmt.Sprintf("%.2f %s", value, unit)
		}
		value /= 1024.0
	}
	return fmt.Sprintf("%.2f PB", value)
}
