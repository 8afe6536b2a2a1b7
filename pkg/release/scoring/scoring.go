// Package scoring ranks quality tiers so callers can pick the best available file
// deterministically.
package scoring

import (
	"fmt"
	"slices"
	"strings"

	"github.com/vmunix/cinedex/pkg/release"
)

// Priority is an ordered list of quality tiers, most preferred first.
// Tiers missing from the list rank after every listed tier, in descending resolution order.
type Priority []release.Quality

// DefaultPriority prefers higher resolutions and puts unknown last.
var DefaultPriority = Priority(release.Qualities)

// ParsePriority builds a Priority from labels such as "1080p" or "4K".
// Unknown labels and duplicates are rejected so misconfiguration surfaces at startup.
func ParsePriority(labels []string) (Priority, error) {
	if len(labels) == 0 {
		return DefaultPriority, nil
	}
	p := make(Priority, 0, len(labels))
	for _, label := range labels {
		q := release.ParseQuality(label)
		if q == release.QualityUnknown && !strings.EqualFold(strings.TrimSpace(label), "unknown") {
			return nil, fmt.Errorf("unknown quality %q", label)
		}
		if slices.Contains(p, q) {
			return nil, fmt.Errorf("duplicate quality %q", label)
		}
		p = append(p, q)
	}
	return p, nil
}

// Rank returns the position of q; lower is better.
func (p Priority) Rank(q release.Quality) int {
	if i := slices.Index(p, q); i >= 0 {
		return i
	}
	// Unlisted tiers keep their natural order after the listed ones.
	return len(p) + int(release.Quality2160p-q)
}

// Sort orders qualities in place from most to least preferred.
func (p Priority) Sort(qs []release.Quality) {
	slices.SortStableFunc(qs, func(a, b release.Quality) int {
		return p.Rank(a) - p.Rank(b)
	})
}

// Best returns the most preferred of the available qualities.
// The boolean is false when available is empty.
func (p Priority) Best(available []release.Quality) (release.Quality, bool) {
	if len(available) == 0 {
		return release.QualityUnknown, false
	}
	best := available[0]
	for _, q := range available[1:] {
		if p.Rank(q) < p.Rank(best) {
			best = q
		}
	}
	return best, true
}

// Labels renders the priority for display and config round-trips.
func (p Priority) Labels() []string {
	out := make([]string, len(p))
	for i, q := range p {
		out[i] = q.String()
	}
	return out
}
