package textutil

import "strings"

// SanitizeFileName makes a name safe to use as a single path component.
// Separators, colons, and asterisks become dashes; the remaining reserved
// characters are dropped; leading dots and surrounding whitespace are
// trimmed so the result can't hide as a dotfile.
func SanitizeFileName(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*':
			return '-'
		case '?', '"', '<', '>', '|':
			return -1
		default:
			return r
		}
	}, strings.TrimSpace(name))
	return strings.TrimSpace(strings.TrimLeft(cleaned, "."))
}
