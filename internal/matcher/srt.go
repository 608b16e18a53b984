package matcher

import (
	"regexp"
	"strconv"
	"strings"
)

var adPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)opensubtitles`),
	regexp.MustCompile(`(?i)subtitles? by`),
	regexp.MustCompile(`(?i)synced? and corrected`),
	regexp.MustCompile(`(?i)http(s)?://`),
	regexp.MustCompile(`(?i)\bwww\.`),
	regexp.MustCompile(`(?i)\bsubscene\b`),
}

// cleanSRT strips advertisement cues from raw SRT bytes.
func cleanSRT(raw []byte) []byte {
	normalized := strings.ReplaceAll(string(raw), "\r\n", "\n")
	blocks := splitSRTBlocks(normalized)
	cleaned := make([]string, 0, len(blocks))
	for _, block := range blocks {
		if blockIsAdvertisement(block) {
			continue
		}
		cleaned = append(cleaned, block)
	}
	output := strings.Join(cleaned, "\n\n")
	if output != "" && !strings.HasSuffix(output, "\n") {
		output += "\n"
	}
	return []byte(output)
}

func splitSRTBlocks(content string) []string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\n\n")
}

func blockIsAdvertisement(block string) bool {
	lines := subtitleTextLines(strings.Split(block, "\n"))
	if len(lines) == 0 {
		return false
	}
	payload := strings.ToLower(strings.TrimSpace(strings.Join(lines, " ")))
	if payload == "" {
		return false
	}
	for _, pattern := range adPatterns {
		if pattern.MatchString(payload) {
			return true
		}
	}
	return false
}

// subtitleTextLines strips the leading cue-number and timestamp lines from
// one SRT block, returning the dialogue text.
func subtitleTextLines(lines []string) []string {
	start := 0
	if start < len(lines) && isNumeric(lines[start]) {
		start++
	}
	if start < len(lines) && strings.Contains(lines[start], "-->") {
		start++
	}
	if start >= len(lines) {
		return nil
	}
	text := make([]string, 0, len(lines)-start)
	for _, line := range lines[start:] {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			text = append(text, trimmed)
		}
	}
	return text
}

func isNumeric(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	_, err := strconv.Atoi(value)
	return err == nil
}

var tagPattern = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)

// plainTextFromSRT concatenates the dialogue text of every cue, stripped of
// formatting tags.
func plainTextFromSRT(data []byte) string {
	blocks := splitSRTBlocks(strings.ReplaceAll(string(data), "\r\n", "\n"))
	var lines []string
	for _, block := range blocks {
		for _, line := range subtitleTextLines(strings.Split(block, "\n")) {
			lines = append(lines, tagPattern.ReplaceAllString(line, ""))
		}
	}
	return strings.Join(lines, " ")
}

// cueStartSeconds returns the start timestamp of every cue in the file, used
// to compute file coverage from chunk matches.
func cueStartSeconds(data []byte) []float64 {
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	var starts []float64
	for _, line := range lines {
		if !strings.Contains(line, "-->") {
			continue
		}
		parts := strings.SplitN(line, "-->", 2)
		if len(parts) != 2 {
			continue
		}
		if ts, err := parseSRTTimestamp(strings.TrimSpace(parts[0])); err == nil {
			starts = append(starts, ts)
		}
	}
	return starts
}

func parseSRTTimestamp(value string) (float64, error) {
	value = strings.ReplaceAll(strings.TrimSpace(value), ".", ",")
	parts := strings.Split(value, ",")
	if len(parts) != 2 {
		return 0, strconvErr(value)
	}
	hms := strings.Split(parts[0], ":")
	if len(hms) != 3 {
		return 0, strconvErr(value)
	}
	h, e1 := strconv.Atoi(hms[0])
	m, e2 := strconv.Atoi(hms[1])
	s, e3 := strconv.Atoi(hms[2])
	ms, e4 := strconv.Atoi(parts[1])
	if e1 != nil || e2 != nil || e3 != nil || e4 != nil {
		return 0, strconvErr(value)
	}
	return float64(h*3600+m*60+s) + float64(ms)/1000, nil
}

func strconvErr(value string) error {
	return &strconv.NumError{Func: "parseSRTTimestamp", Num: value, Err: strconv.ErrSyntax}
}
