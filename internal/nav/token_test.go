package nav

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken_EscapesValues(t *testing.T) {
	tok := Token{{Tag: TagSearch, Value: "a|b%c"}, {Tag: TagMovie, Value: "key"}}

	s := tok.String()
	assert.Equal(t, "qa%7Cb%25c|mkey", s)

	got, err := ParseToken(s)
	require.NoError(t, err)
	assert.Equal(t, tok, got)
}

func TestParseToken_Invalid(t *testing.T) {
	tests := []string{
		"",
		"x",
		"p1",
		"q",
		"qa|",
		"qa||mkey",
		"qa|p1|p2",
		"qa|p-1",
		"qa|s1",
		"tk|s0",
		"tk|sx",
		"tk|e1",
		"mk|s1",
		"mk|p1",
		"tk|s1|b1",
		"tk|s1|b|d",
		"tk|s1|e1|f",
		"tk|s1|b|d*|fl",
		"fl|mk",
		"floc",
		"qdark|floc",
	}
	for _, s := range tests {
		t.Run(s, func(t *testing.T) {
			_, err := ParseToken(s)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestParseToken_Valid(t *testing.T) {
	tests := []struct {
		token string
		state State
		page  int
	}{
		{"qdark", SearchResults, 0},
		{"qdark|p2", SearchResults, 2},
		{"qdark|p2|mkey", MovieQualities, 0},
		{"mkey", MovieQualities, 0},
		{"mkey|floc", Dispatch, 0},
		{"qdark|tdark", SeriesSeasons, 0},
		{"tdark|p1", SeriesSeasons, 1},
		{"tdark|p1|s2", SeasonEpisodes, 0},
		{"tdark|s2|p3", SeasonEpisodes, 3},
		{"tdark|s2|e5", EpisodeQualities, 0},
		{"tdark|s2|e5|floc", Dispatch, 0},
		{"tdark|s2|p1|b", SeasonQualityBulk, 0},
		{"tdark|s2|b|d*", Dispatch, 0},
		{"tdark|s2|b|d1080P", Dispatch, 0},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			tok, err := ParseToken(tt.token)
			require.NoError(t, err)
			assert.Equal(t, tt.state, tok.State())
			assert.Equal(t, tt.page, tok.Page())
			assert.Equal(t, tt.token, tok.String())
		})
	}
}

func TestToken_Parent(t *testing.T) {
	tests := []struct {
		token  string
		parent string
	}{
		{"qdark", ""},
		{"qdark|p2", ""},
		{"qdark|p2|mkey", "qdark|p2"},
		{"qdark|tdark|p1|s3|p2", "qdark|tdark|p1"},
		{"tdark|s1|e2|floc", "tdark|s1|e2"},
		{"tdark|s1|b|d*", "tdark|s1|b"},
		{"tdark|s1|b", "tdark|s1"},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			tok, err := ParseToken(tt.token)
			require.NoError(t, err)
			assert.Equal(t, tt.parent, tok.Parent().String())
		})
	}
}

func TestToken_ParentDoesNotAlias(t *testing.T) {
	tok, err := ParseToken("tdark|s1|e2")
	require.NoError(t, err)

	child := tok.Parent().Push(TagEpisode, "9")
	assert.Equal(t, "tdark|s1|e2", tok.String())
	assert.Equal(t, "tdark|s1|e9", child.String())
}

func TestToken_WithPage(t *testing.T) {
	tok, err := ParseToken("tdark|s1|p3")
	require.NoError(t, err)

	assert.Equal(t, "tdark|s1|p4", tok.WithPage(4).String())
	assert.Equal(t, "tdark|s1", tok.WithPage(0).String())
	assert.Equal(t, "tdark|s1|p3", tok.String())
}

func TestToken_Fit(t *testing.T) {
	tok, err := ParseToken("qsomething long|p1|tdark|s1|e2|floc")
	require.NoError(t, err)

	assert.Equal(t, tok, tok.Fit(0))
	assert.Equal(t, "tdark|s1|e2|floc", tok.Fit(20).String())
	assert.Equal(t, "tdark|s1|e2|floc", tok.Fit(10).String(), "file keeps its series context")

	long := Token{{Tag: TagMovie, Value: "key"}, {Tag: TagFile, Value: strings.Repeat("x", 80)}}
	assert.Equal(t, long, long.Fit(64), "no shorter rooted suffix exists")
}
