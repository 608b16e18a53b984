package organizer

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"engram/internal/textutil"
)

var reservedCharPattern = regexp.MustCompile(`[:?"<>|*\\]`)

// sanitizeName strips the reserved filesystem characters, drops leading
// dots, and collapses runs of whitespace.
func sanitizeName(raw string) string {
	cleaned := reservedCharPattern.ReplaceAllString(raw, "")
	cleaned = strings.TrimLeft(cleaned, ".")
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	return strings.TrimSpace(cleaned)
}

// titleCase applies title casing with the usual small-word exceptions
//; shared with the analyst's volume-label parsing.
func titleCase(raw string) string {
	return textutil.TitleCase(raw)
}

// movieYearPattern recognizes a trailing "(YYYY)" on a detected movie title,
// the convention TMDB search results are usually phrased in.
var movieYearPattern = regexp.MustCompile(`^(.*?)\s*\((\d{4})\)\s*$`)

// splitTitleYear separates an optional trailing year from a detected title.
func splitTitleYear(detected string) (name string, year string) {
	if m := movieYearPattern.FindStringSubmatch(strings.TrimSpace(detected)); m != nil {
		return m[1], m[2]
	}
	return strings.TrimSpace(detected), ""
}

// MoviePath computes the library destination for a movie title.
func MoviePath(moviesRoot, detectedTitle string) string {
	rawName, year := splitTitleYear(detectedTitle)
	name := titleCase(sanitizeName(rawName))
	if year != "" {
		dirName := fmt.Sprintf("%s (%s)", name, year)
		return filepath.Join(moviesRoot, dirName, dirName+".mkv")
	}
	return filepath.Join(moviesRoot, name, name+".mkv")
}

// EpisodePath computes the library destination for a TV episode.
// episodeCode is the canonical "SxxEyy" form.
func EpisodePath(tvRoot, showName string, season int, episodeCode string) string {
	show := titleCase(sanitizeName(showName))
	seasonDir := fmt.Sprintf("Season %02d", season)
	filename := fmt.Sprintf("%s - %s.mkv", show, strings.ToUpper(episodeCode))
	return filepath.Join(tvRoot, show, seasonDir, filename)
}

// ExtraPath computes the library destination for a disc extra attached to a
// TV show.
func ExtraPath(tvRoot, showName string, season, discNumber, extraIndex int) string {
	show := titleCase(sanitizeName(showName))
	seasonDir := fmt.Sprintf("Season %02d", season)
	discDir := fmt.Sprintf("Disc %d", discNumber)
	filename := fmt.Sprintf("extra_%d.mkv", extraIndex)
	return filepath.Join(tvRoot, show, seasonDir, "Extras", discDir, filename)
}

// renamedCandidate appends " (2)", " (3)", ... to a path's filename stem,
// used by the rename conflict resolution policy.
func renamedCandidate(path string, attempt int) string {
	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(filepath.Base(path), ext)
	return filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, attempt, ext))
}

