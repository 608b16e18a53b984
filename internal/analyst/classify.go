package analyst

import (
	"regexp"
	"strconv"
	"strings"

	"engram/internal/textutil"
)

// Thresholds bundles the analyst's tunable knobs.
// Zero-valued fields fall back to Defaults().
type Thresholds struct {
	MovieMinDuration   int     // seconds; a title this long or longer counts toward L
	TVMinDuration      int     // seconds; lower bound of the episode-cluster window
	TVMaxDuration      int     // seconds; upper bound of the episode-cluster window
	TVDurationVariance int     // seconds; max pairwise spread within a cluster
	TVMinClusterSize   int     // minimum cluster membership to call it TV
	MovieDominance     float64 // fraction of total runtime a single long title must own
}

// Defaults returns the stock classification thresholds.
func Defaults() Thresholds {
	return Thresholds{
		MovieMinDuration:   4800,
		TVMinDuration:      1080,
		TVMaxDuration:      4200,
		TVDurationVariance: 120,
		TVMinClusterSize:   3,
		MovieDominance:     0.6,
	}
}

func (t Thresholds) withDefaults() Thresholds {
	d := Defaults()
	if t.MovieMinDuration <= 0 {
		t.MovieMinDuration = d.MovieMinDuration
	}
	if t.TVMinDuration <= 0 {
		t.TVMinDuration = d.TVMinDuration
	}
	if t.TVMaxDuration <= 0 {
		t.TVMaxDuration = d.TVMaxDuration
	}
	if t.TVDurationVariance <= 0 {
		t.TVDurationVariance = d.TVDurationVariance
	}
	if t.TVMinClusterSize <= 0 {
		t.TVMinClusterSize = d.TVMinClusterSize
	}
	if t.MovieDominance <= 0 {
		t.MovieDominance = d.MovieDominance
	}
	return t
}

// TitleInfo is one scanned title.
type TitleInfo struct {
	Index           int
	DurationSeconds int
	SizeBytes       int64
	ChapterCount    int
	Name            string
}

// ContentType mirrors store.ContentType without importing it, so this
// package stays independently testable.
type ContentType string

const (
	ContentUnknown ContentType = "UNKNOWN"
	ContentTV      ContentType = "TV"
	ContentMovie   ContentType = "MOVIE"
)

// Verdict is the analyst's classification result.
// EpisodeTitleIndices carries the members of the winning episode cluster for
// a TV verdict; titles outside it (and not flagged Play-All) are disc
// extras.
type Verdict struct {
	ContentType         ContentType
	Confidence          float64
	DetectedName        string
	DetectedSeason      int
	HasSeason           bool
	DetectedDisc        int
	NeedsReview         bool
	ReviewReason        string
	PlayAllTitleIndices []int
	EpisodeTitleIndices []int
}

var (
	seasonPattern     = regexp.MustCompile(`(?i)season\s*(\d{1,2})`)
	sxxDyyPattern     = regexp.MustCompile(`(?i)\bS(\d{1,2})D(\d{1,2})\b`)
	sxxEyyPattern     = regexp.MustCompile(`(?i)\bS(\d{1,2})E(\d{1,2})\b`)
	sPattern          = regexp.MustCompile(`(?i)\bS(\d{1,2})\b`)
	seasonWordPat     = regexp.MustCompile(`(?i)\bseason\b`)
	discNumberPattern = regexp.MustCompile(`(?i)\b(?:disc|dvd|blu[- ]?ray|bd)\s*([0-9]{1,2}|[ivxlcdm]{1,4})\b`)
	volumeSuffixPat   = regexp.MustCompile(`(?i)\b(?:disc|dvd|blu[- ]?ray|bd\d{0,3})\b`)
	trailingDigitsPat = regexp.MustCompile(`^(.*?)[\s_-]*(\d+)$`)
)

// genericLabels is the fixed set of volume labels treated as carrying no
// usable name: optical-media defaults burned in by authoring tools rather
// than anything disc-specific.
var genericLabels = map[string]bool{
	"logical volume id": true,
	"video ts":          true,
	"bdmv":              true,
	"disc":              true,
	"dvd":               true,
	"bluray":            true,
	"bd":                true,
	"no label":          true,
	"untitled":          true,
	"volume":            true,
	"new volume":        true,
}

// isGenericLabel reports whether value is one of the fixed generic volume
// labels, ignoring case, underscores/dashes, trailing digits, and a
// trailing disc-suffix token.
func isGenericLabel(value string) bool {
	normalized := strings.ToLower(value)
	normalized = strings.ReplaceAll(normalized, "_", " ")
	normalized = strings.ReplaceAll(normalized, "-", " ")
	normalized = strings.Join(strings.Fields(normalized), " ")
	normalized = strings.TrimSpace(trailingDigitsPat.ReplaceAllString(normalized, "$1"))
	if !genericLabels[normalized] {
		for _, suffix := range []string{" disc", " dvd", " bluray", " bd"} {
			if trimmed, ok := strings.CutSuffix(normalized, suffix); ok {
				normalized = trimmed
				break
			}
		}
	}
	return genericLabels[normalized]
}

// cluster is a set of titles whose durations fall in the TV window and
// whose pairwise spread is within TVDurationVariance of each other.
type cluster struct {
	indices  []int
	duration []int
}

func (c cluster) sum() int {
	total := 0
	for _, d := range c.duration {
		total += d
	}
	return total
}

// largestTVCluster finds the biggest group of titles in [tvMin, tvMax]
// whose pairwise spread stays within variance. Titles are sorted by
// duration and walked with a sliding window, since the variance
// constraint is monotonic over a sorted run.
func largestTVCluster(titles []TitleInfo, t Thresholds) cluster {
	type entry struct {
		index    int
		duration int
	}
	var candidates []entry
	for _, title := range titles {
		if title.DurationSeconds >= t.TVMinDuration && title.DurationSeconds <= t.TVMaxDuration {
			candidates = append(candidates, entry{index: title.Index, duration: title.DurationSeconds})
		}
	}
	if len(candidates) == 0 {
		return cluster{}
	}
	// insertion sort is fine here: disc title counts are small (tens, not thousands)
	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0 && candidates[j].duration < candidates[j-1].duration; j-- {
			candidates[j], candidates[j-1] = candidates[j-1], candidates[j]
		}
	}

	var best cluster
	start := 0
	for end := 0; end < len(candidates); end++ {
		for candidates[end].duration-candidates[start].duration > t.TVDurationVariance {
			start++
		}
		if end-start+1 > len(best.indices) {
			best = cluster{}
			for k := start; k <= end; k++ {
				best.indices = append(best.indices, candidates[k].index)
				best.duration = append(best.duration, candidates[k].duration)
			}
		}
	}
	return best
}

func countLongTitles(titles []TitleInfo, minDuration int) []TitleInfo {
	var long []TitleInfo
	for _, title := range titles {
		if title.DurationSeconds >= minDuration {
			long = append(long, title)
		}
	}
	return long
}

func totalDuration(titles []TitleInfo) int {
	total := 0
	for _, title := range titles {
		total += title.DurationSeconds
	}
	return total
}

// Classify applies the duration-clustering heuristic. TMDB corroboration
// is layered on separately in Corroborate.
func Classify(titles []TitleInfo, volumeLabel string, thresholds Thresholds) Verdict {
	if len(titles) == 0 {
		return Verdict{ContentType: ContentUnknown, NeedsReview: true, ReviewReason: "No titles"}
	}
	v := classify(titles, volumeLabel, thresholds)
	if isGenericLabel(volumeLabel) {
		v.DetectedName = ""
		v.DetectedSeason = 0
		v.HasSeason = false
		v.DetectedDisc = 0
		v.NeedsReview = true
		v.ReviewReason = "Generic volume label carries no usable name: " + strings.TrimSpace(volumeLabel)
	}
	return v
}

// normalizeSeparators turns the underscores and dashes volume labels use
// as word separators into plain spaces, so the season/disc
// regexes (written against space-separated tokens) match labels like
// "NAME_SEASON_N" the same way they match "NAME SEASON N".
func normalizeSeparators(value string) string {
	value = strings.ReplaceAll(value, "_", " ")
	value = strings.ReplaceAll(value, "-", " ")
	return value
}

func classify(titles []TitleInfo, volumeLabel string, thresholds Thresholds) Verdict {
	t := thresholds.withDefaults()

	normalized := normalizeSeparators(volumeLabel)
	season, hasSeason := extractSeasonNumber(normalized)
	labelEncodesSeason := hasSeason || seasonWordPat.MatchString(normalized) ||
		sPattern.MatchString(normalized) || sxxDyyPattern.MatchString(normalized) || sxxEyyPattern.MatchString(normalized)

	tvCluster := largestTVCluster(titles, t)
	strongCluster := len(tvCluster.indices) >= t.TVMinClusterSize

	if strongCluster || labelEncodesSeason {
		v := Verdict{
			ContentType:    ContentTV,
			DetectedName:   cleanedLabel(volumeLabel),
			DetectedSeason: season,
			HasSeason:      hasSeason,
		}
		switch {
		case strongCluster && hasSeason:
			v.Confidence = 0.85
			v.NeedsReview = false
		case strongCluster:
			v.Confidence = 0.80
			v.NeedsReview = false
		default:
			v.Confidence = 0.60
			v.NeedsReview = true
			v.ReviewReason = "Season label present but no strong episode cluster"
		}
		v.PlayAllTitleIndices = detectPlayAll(titles, t)
		v.EpisodeTitleIndices = append([]int(nil), tvCluster.indices...)
		return v
	}

	long := countLongTitles(titles, t.MovieMinDuration)
	total := totalDuration(titles)

	if len(long) == 1 && total > 0 && float64(long[0].DurationSeconds)/float64(total) >= t.MovieDominance {
		return Verdict{
			ContentType:    ContentMovie,
			Confidence:     0.85,
			DetectedName:   cleanedLabel(volumeLabel),
			NeedsReview:    false,
			DetectedDisc: discNumber(volumeLabel),
		}
	}

	if len(long) >= 2 {
		return Verdict{
			ContentType:  ContentMovie,
			Confidence:   0.60,
			DetectedName: cleanedLabel(volumeLabel),
			NeedsReview:  true,
			ReviewReason: "Multiple long titles",
			DetectedDisc: discNumber(volumeLabel),
		}
	}

	return Verdict{
		ContentType:  ContentUnknown,
		Confidence:   0.50,
		DetectedName: cleanedLabel(volumeLabel),
		NeedsReview:  true,
		ReviewReason: "No dominant title or episode cluster found",
		DetectedDisc: discNumber(volumeLabel),
	}
}

// detectPlayAll flags a title whose duration falls within [0.8S, 1.2S] of
// S, the summed duration of every other title in the TV episode window,
// and which is itself longer than each of those titles.
func detectPlayAll(titles []TitleInfo, t Thresholds) []int {
	var flagged []int
	for _, candidate := range titles {
		sum, maxMember := 0, 0
		for _, title := range titles {
			if title.Index != candidate.Index && title.DurationSeconds >= t.TVMinDuration && title.DurationSeconds <= t.TVMaxDuration {
				sum += title.DurationSeconds
				maxMember = max(maxMember, title.DurationSeconds)
			}
		}
		lower := int(0.8 * float64(sum))
		upper := int(1.2 * float64(sum))
		if sum > 0 && candidate.DurationSeconds >= lower && candidate.DurationSeconds <= upper && candidate.DurationSeconds > maxMember {
			flagged = append(flagged, candidate.Index)
		}
	}
	return flagged
}

func extractSeasonNumber(value string) (int, bool) {
	if season := findSeason(value); season > 0 {
		return season, true
	}
	return 0, false
}

// trailingSeasonDigitsPat matches a NAME + trailing digits label where the
// digits are a separate token (preceded by whitespace, underscore, or
// dash), distinguishing "SHOW_3" (season 3) from a disc-capacity suffix
// fused onto a word like "BD25".
var trailingSeasonDigitsPat = regexp.MustCompile(`[\s_-](\d{1,4})$`)

func findSeason(value string) int {
	if match := sxxDyyPattern.FindStringSubmatch(value); len(match) == 3 {
		if n, err := strconv.Atoi(match[1]); err == nil {
			return n
		}
	}
	if match := sxxEyyPattern.FindStringSubmatch(value); len(match) == 3 {
		if n, err := strconv.Atoi(match[1]); err == nil {
			return n
		}
	}
	if match := seasonPattern.FindStringSubmatch(value); len(match) == 2 {
		if n, err := strconv.Atoi(match[1]); err == nil {
			return n
		}
	}
	if match := sPattern.FindStringSubmatch(value); len(match) == 2 {
		if n, err := strconv.Atoi(match[1]); err == nil {
			return n
		}
	}
	if match := trailingSeasonDigitsPat.FindStringSubmatch(strings.TrimSpace(value)); len(match) == 2 {
		if n, err := strconv.Atoi(match[1]); err == nil && n >= 1 && n <= 99 {
			return n
		}
		// 100..9999 is a year, not a season: fall through and report "no season".
	}
	return 0
}

func discNumber(value string) int {
	if match := sxxDyyPattern.FindStringSubmatch(value); len(match) == 3 {
		if n, err := strconv.Atoi(match[2]); err == nil && n > 0 {
			return n
		}
	}
	normalized := strings.ReplaceAll(value, "_", " ")
	normalized = strings.ReplaceAll(normalized, "-", " ")
	match := discNumberPattern.FindStringSubmatch(normalized)
	if len(match) != 2 {
		return 1
	}
	token := strings.TrimSpace(match[1])
	if n, err := strconv.Atoi(token); err == nil && n > 0 {
		return n
	}
	if n := romanToInt(token); n > 0 {
		return n
	}
	return 1
}

var romanDigits = map[rune]int{'i': 1, 'v': 5, 'x': 10, 'l': 50, 'c': 100, 'd': 500, 'm': 1000}

func romanToInt(input string) int {
	input = strings.ToLower(strings.TrimSpace(input))
	value, prev := 0, 0
	for i := len(input) - 1; i >= 0; i-- {
		digit := romanDigits[rune(input[i])]
		if digit == 0 {
			return 0
		}
		if digit < prev {
			value -= digit
		} else {
			value += digit
			prev = digit
		}
	}
	return value
}

// cleanedLabel normalizes a volume label into a display name: underscores
// and dashes become spaces, season/disc/volume-suffix tokens are stripped,
// and the remainder is title-cased with the usual small-word exceptions
//.
func cleanedLabel(label string) string {
	label = strings.ReplaceAll(label, "_", " ")
	label = strings.ReplaceAll(label, "-", " ")
	label = strings.ReplaceAll(label, ".", " ")
	label = sxxDyyPattern.ReplaceAllString(label, "")
	label = sxxEyyPattern.ReplaceAllString(label, "")
	label = seasonPattern.ReplaceAllString(label, "")
	label = sPattern.ReplaceAllString(label, "")
	label = discNumberPattern.ReplaceAllString(label, "")
	label = volumeSuffixPat.ReplaceAllString(label, "")
	if match := trailingSeasonDigitsPat.FindStringSubmatch(strings.TrimRight(label, " ")); len(match) == 2 {
		if n, err := strconv.Atoi(match[1]); err == nil && n >= 1 && n <= 99 {
			label = trailingSeasonDigitsPat.ReplaceAllString(strings.TrimRight(label, " "), "")
		}
	}
	label = strings.Join(strings.Fields(label), " ")
	return textutil.TitleCase(label)
}
