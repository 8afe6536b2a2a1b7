package release

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// extensionRegex matches a trailing dotted suffix; only known containers are stripped.
	extensionRegex = regexp.MustCompile(`\.([A-Za-z0-9]{2,5})$`)

	qualityRegex = regexp.MustCompile(`(?i)\b(2160p|4k|uhd|1080p|720p|480p|360p)\b`)

	// Matches S01E02, S1E2, S01 E02 and S01.E02 once separators are spaces.
	seasonEpisodeRegex = regexp.MustCompile(`(?i)\bS(\d{1,3}) ?E(\d{1,4})`)

	yearRegex = regexp.MustCompile(`\b(19|20)\d{2}\b`)
)

// Parse extracts metadata from a posted filename. It never fails: names that match none of
// the patterns yield a movie titled after the whole name with QualityUnknown.
func Parse(filename string) *Info {
	info := &Info{}

	name := strings.TrimSpace(filename)
	if m := extensionRegex.FindStringIndex(name); m != nil && isExtension(name[m[0]+1:]) {
		name = name[:m[0]]
	}

	// Separators become spaces one-for-one so match offsets stay valid for both strings.
	spaced := strings.Map(func(r rune) rune {
		if r == '.' || r == '_' {
			return ' '
		}
		return r
	}, name)

	qualityAt := -1
	if m := qualityRegex.FindStringSubmatchIndex(spaced); m != nil {
		info.Quality = ParseQuality(spaced[m[2]:m[3]])
		qualityAt = m[0]
	}

	if m := seasonEpisodeRegex.FindStringSubmatchIndex(spaced); m != nil {
		info.Kind = KindEpisode
		info.Season = atLeastOne(spaced[m[2]:m[3]])
		info.Episode = atLeastOne(spaced[m[4]:m[5]])
		info.Title = NormalizeTitle(spaced[:m[0]])
		info.SearchKey = SearchKey(info.Title)
		return info
	}

	info.Kind = KindMovie
	switch yearAt := findYear(spaced); {
	case yearAt >= 0:
		info.Year = spaced[yearAt : yearAt+4]
		info.Title = NormalizeTitle(spaced[:yearAt])
	case qualityAt >= 0:
		info.Title = NormalizeTitle(spaced[:qualityAt])
	default:
		info.Title = NormalizeTitle(spaced)
	}
	info.SearchKey = SearchKey(info.Title)
	return info
}

// findYear returns the offset of the year token that ends the title, or -1.
// A year at the very start is only used when no later year exists, so "2012.2009.mkv"
// is the movie "2012" from 2009.
func findYear(s string) int {
	matches := yearRegex.FindAllStringIndex(s, -1)
	if len(matches) == 0 {
		return -1
	}
	for _, m := range matches {
		if strings.TrimSpace(s[:m[0]]) != "" {
			return m[0]
		}
	}
	return matches[0][0]
}

// containers are the file extensions stripped before parsing. Any other suffix is part of
// the name, so "The.Matrix" stays "The Matrix".
var containers = map[string]bool{
	"mkv": true, "mp4": true, "m4v": true, "avi": true, "webm": true, "mov": true,
	"wmv": true, "flv": true, "mpg": true, "mpeg": true, "ts": true, "m2ts": true,
	"vob": true, "iso": true, "3gp": true, "ogv": true, "rmvb": true, "divx": true,
}

func isExtension(ext string) bool {
	return containers[strings.ToLower(ext)]
}

func atLeastOne(digits string) int {
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 {
		return 1
	}
	return n
}
