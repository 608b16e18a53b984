package logging

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"
)

// attrString renders a value for the console handler's subject fields,
// where strings stay unquoted.
func attrString(v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	default:
		return formatValue(v)
	}
}

// byteUnits are the suffixes FormatBytes steps through in 1024 increments.
var byteUnits = []string{"KB", "MB", "GB", "TB", "PB"}

// FormatBytes returns a human-readable byte size string, with precision
// scaled down as the magnitude grows ("4.10 GB", "42.5 MB", "123 KB").
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit && exp < len(byteUnits)-1; n /= unit {
		div *= unit
		exp++
	}
	value := float64(bytes) / float64(div)
	switch {
	case value >= 100:
		return fmt.Sprintf("%.0f %s", value, byteUnits[exp])
	case value >= 10:
		return fmt.Sprintf("%.1f %s", value, byteUnits[exp])
	default:
		return fmt.Sprintf("%.2f %s", value, byteUnits[exp])
	}
}

// formatDurationHuman renders a duration the way a human reads progress
// output: sub-second in milliseconds, under a minute in seconds, and
// hours/minutes/seconds above that with empty components dropped.
func formatDurationHuman(d time.Duration) string {
	switch {
	case d < 0:
		return d.String()
	case d < time.Second:
		if ms := d.Milliseconds(); ms > 0 {
			return fmt.Sprintf("%dms", ms)
		}
		return d.String()
	case d < time.Minute:
		secs := d.Seconds()
		if secs == float64(int(secs)) {
			return fmt.Sprintf("%ds", int(secs))
		}
		return fmt.Sprintf("%.1fs", secs)
	}

	hours := int(d.Hours())
	mins := int(d.Minutes()) % 60
	secs := int(d.Seconds()) % 60
	if hours > 0 {
		switch {
		case secs > 0:
			return fmt.Sprintf("%dh %dm %ds", hours, mins, secs)
		case mins > 0:
			return fmt.Sprintf("%dh %dm", hours, mins)
		default:
			return fmt.Sprintf("%dh", hours)
		}
	}
	if secs > 0 {
		return fmt.Sprintf("%dm %ds", mins, secs)
	}
	return fmt.Sprintf("%dm", mins)
}

// formatPercent drops the decimal for whole percentages.
func formatPercent(value float64) string {
	if value == float64(int(value)) {
		return fmt.Sprintf("%.0f%%", value)
	}
	return fmt.Sprintf("%.1f%%", value)
}

// formatValue renders a value for key=value console fields, quoting
// strings that would be ambiguous unquoted.
func formatValue(v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return formatTimestamp(v.Time())
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return maybeQuote(err.Error())
		}
		return maybeQuote(fmt.Sprint(v.Any()))
	default:
		return maybeQuote(v.String())
	}
}

func maybeQuote(s string) string {
	if needsQuotes(s) {
		return strconv.Quote(s)
	}
	return s
}

func needsQuotes(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range s {
		if r <= ' ' || r == '=' || r == '"' {
			return true
		}
	}
	return false
}
