// Package release parses posted media filenames into structured catalog metadata.
package release

import "strings"

// Kind distinguishes standalone movies from series episodes.
type Kind int

const (
	KindMovie Kind = iota
	KindEpisode
)

func (k Kind) String() string {
	switch k {
	case KindEpisode:
		return "episode"
	default:
		return "movie"
	}
}

// Quality is a resolution tier. Higher values rank better; the zero value is unknown.
type Quality int

const (
	QualityUnknown Quality = iota
	Quality360p
	Quality480p
	Quality720p
	Quality1080p
	Quality2160p
)

// unknownStr is the string representation for unknown values.
const unknownStr = "UNKNOWN"

func (q Quality) String() string {
	switch q {
	case Quality360p:
		return "360P"
	case Quality480p:
		return "480P"
	case Quality720p:
		return "720P"
	case Quality1080p:
		return "1080P"
	case Quality2160p:
		return "2160P"
	default:
		return unknownStr
	}
}

// MarshalText encodes the tier by its label so JSON maps keyed by Quality stay readable.
func (q Quality) MarshalText() ([]byte, error) {
	return []byte(q.String()), nil
}

// UnmarshalText decodes a label; unrecognized labels decode to QualityUnknown.
func (q *Quality) UnmarshalText(b []byte) error {
	*q = ParseQuality(string(b))
	return nil
}

// Qualities lists every tier from best to worst.
var Qualities = []Quality{
	Quality2160p,
	Quality1080p,
	Quality720p,
	Quality480p,
	Quality360p,
	QualityUnknown,
}

// ParseQuality maps a label such as "1080p", "1080P" or "4K" to its tier.
// Unrecognized labels map to QualityUnknown.
func ParseQuality(s string) Quality {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "2160p", "4k", "uhd":
		return Quality2160p
	case "1080p":
		return Quality1080p
	case "720p":
		return Quality720p
	case "480p":
		return Quality480p
	case "360p":
		return Quality360p
	default:
		return QualityUnknown
	}
}

// Info contains metadata parsed from a filename.
type Info struct {
	Kind    Kind
	Title   string
	Year    string // four digits, movies only
	Season  int    // episodes only, >= 1
	Episode int    // episodes only, >= 1
	Quality Quality

	// Normalized title for matching
	SearchKey string
}
