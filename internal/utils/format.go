package utils

import "fmt"

// FormatMegabytes renders a byte count as MiB with two decimals, e.g. "12.50MB".
// This is the human-readable size stored on product records.
func FormatMegabytes(size int64) string {
	return fmt.Sprintf("%.2fMB", float64(size)/1024/1024)
}

// FormatBytes formats bytes into human-readable format
func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
