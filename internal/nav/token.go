package nav

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidToken indicates a token that does not decode to a navigation path.
var ErrInvalidToken = errors.New("invalid navigation token")

// Segment tags.
const (
	TagSearch   byte = 'q'
	TagPage     byte = 'p'
	TagMovie    byte = 'm'
	TagSeries   byte = 't'
	TagSeason   byte = 's'
	TagEpisode  byte = 'e'
	TagBulk     byte = 'b'
	TagDispatch byte = 'd'
	TagFile     byte = 'f'
)

const sep = "|"

// BestQuality is the bulk dispatch value selecting each episode's best quality.
const BestQuality = "*"

var (
	escaper   = strings.NewReplacer("%", "%25", sep, "%7C")
	unescaper = strings.NewReplacer("%7C", sep, "%7c", sep, "%25", "%")
)

// Segment is one step of a navigation path.
type Segment struct {
	Tag   byte
	Value string
}

func (s Segment) String() string {
	return string(s.Tag) + escaper.Replace(s.Value)
}

// next lists which tags may follow each tag. The zero tag is the start of a token.
var next = map[byte]string{
	0:           roots,
	TagSearch:   "mt",
	TagMovie:    "f",
	TagSeries:   "s",
	TagSeason:   "eb",
	TagEpisode:  "f",
	TagBulk:     "d",
	TagDispatch: "",
	TagFile:     "",
}

// pageable tags may be followed by a page segment.
const pageable = "qts"

// roots may start a token. A file segment always follows the menu it was listed in.
const roots = "qmt"

// Token is a self-describing navigation path. Each button carries one; the menu it
// leads to is rebuilt from the token and the catalog alone.
type Token []Segment

// ParseToken decodes and validates s.
func ParseToken(s string) (Token, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidToken)
	}
	parts := strings.Split(s, sep)
	tok := make(Token, 0, len(parts))
	owner := byte(0)
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("%w: empty segment in %q", ErrInvalidToken, s)
		}
		seg := Segment{Tag: p[0], Value: unescaper.Replace(p[1:])}
		if err := checkSegment(owner, seg); err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidToken, s, err)
		}
		if seg.Tag == TagPage && len(tok) > 0 && tok[len(tok)-1].Tag == TagPage {
			return nil, fmt.Errorf("%w: %q: repeated page", ErrInvalidToken, s)
		}
		if seg.Tag != TagPage {
			owner = seg.Tag
		}
		tok = append(tok, seg)
	}
	return tok, nil
}

func checkSegment(owner byte, seg Segment) error {
	allowed := next[owner]
	if seg.Tag == TagPage && strings.IndexByte(pageable, owner) < 0 {
		return fmt.Errorf("page after %q", owner)
	}
	if seg.Tag != TagPage && strings.IndexByte(allowed, seg.Tag) < 0 {
		return fmt.Errorf("%q cannot follow %q", seg.Tag, owner)
	}

	switch seg.Tag {
	case TagPage:
		if n, err := strconv.Atoi(seg.Value); err != nil || n < 0 {
			return fmt.Errorf("bad page %q", seg.Value)
		}
	case TagSeason, TagEpisode:
		if n, err := strconv.Atoi(seg.Value); err != nil || n < 1 {
			return fmt.Errorf("bad number %q", seg.Value)
		}
	case TagBulk:
		if seg.Value != "" {
			return fmt.Errorf("unexpected bulk value %q", seg.Value)
		}
	case TagSearch, TagMovie, TagSeries, TagDispatch, TagFile:
		if seg.Value == "" {
			return fmt.Errorf("%q needs a value", seg.Tag)
		}
	}
	return nil
}

// String encodes the token.
func (t Token) String() string {
	parts := make([]string, len(t))
	for i, s := range t {
		parts[i] = s.String()
	}
	return strings.Join(parts, sep)
}

// Push returns a copy of t extended by one segment.
func (t Token) Push(tag byte, value string) Token {
	out := make(Token, len(t), len(t)+1)
	copy(out, t)
	return append(out, Segment{Tag: tag, Value: value})
}

// WithPage returns t showing page n of its menu. Page 0 is encoded by omission.
func (t Token) WithPage(n int) Token {
	base := t
	if len(base) > 0 && base[len(base)-1].Tag == TagPage {
		base = base[:len(base)-1]
	}
	if n <= 0 {
		return append(Token(nil), base...)
	}
	return base.Push(TagPage, strconv.Itoa(n))
}

// Parent returns the token of the menu t was reached from. A trailing page segment is
// dropped with the segment it pages. The root has no parent.
func (t Token) Parent() Token {
	n := len(t)
	if n > 0 && t[n-1].Tag == TagPage {
		n--
	}
	if n > 0 {
		n--
	}
	return t[:n:n]
}

// State reports which menu or action the token resolves to.
func (t Token) State() State {
	for i := len(t) - 1; i >= 0; i-- {
		switch t[i].Tag {
		case TagSearch:
			return SearchResults
		case TagMovie:
			return MovieQualities
		case TagSeries:
			return SeriesSeasons
		case TagSeason:
			return SeasonEpisodes
		case TagEpisode:
			return EpisodeQualities
		case TagBulk:
			return SeasonQualityBulk
		case TagDispatch, TagFile:
			return Dispatch
		}
	}
	return StateNone
}

// Page returns the page index carried by a trailing page segment, or 0.
func (t Token) Page() int {
	if len(t) == 0 || t[len(t)-1].Tag != TagPage {
		return 0
	}
	n, _ := strconv.Atoi(t[len(t)-1].Value)
	return n
}

// Fit drops leading segments until the encoded token is at most maxLen bytes, keeping
// the token rooted at a movie, series or search segment. The result may still exceed
// maxLen when no shorter rooted suffix exists. maxLen <= 0 means unlimited.
func (t Token) Fit(maxLen int) Token {
	if maxLen <= 0 {
		return t
	}
	for len(t.String()) > maxLen {
		cut := -1
		for i := 1; i < len(t); i++ {
			if strings.IndexByte(roots, t[i].Tag) >= 0 {
				cut = i
				break
			}
		}
		if cut < 0 {
			break
		}
		t = t[cut:]
	}
	return t
}
