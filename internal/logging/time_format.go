package logging

import "time"

// logTimestampLayout is the console handler's shape for time-valued
// attributes: local time, second precision, no zone suffix. Record header
// timestamps are rendered separately.
const logTimestampLayout = "2006-01-02 15:04:05"

// formatTimestamp renders ts for console output, or "" for the zero time.
func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.In(time.Local).Format(logTimestampLayout)
}
