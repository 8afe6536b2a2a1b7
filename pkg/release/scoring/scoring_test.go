// pkg/release/scoring/scoring_test.go
package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmunix/cinedex/pkg/release"
)

func TestParsePriority(t *testing.T) {
	p, err := ParsePriority([]string{"1080p", "4K", "720P"})
	require.NoError(t, err)
	assert.Equal(t, Priority{release.Quality1080p, release.Quality2160p, release.Quality720p}, p)

	p, err = ParsePriority(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultPriority, p)

	_, err = ParsePriority([]string{"1080p", "8k"})
	assert.Error(t, err, "unknown label should be rejected")

	_, err = ParsePriority([]string{"1080p", "1080P"})
	assert.Error(t, err, "duplicate label should be rejected")

	p, err = ParsePriority([]string{"unknown", "720p"})
	require.NoError(t, err)
	assert.Equal(t, Priority{release.QualityUnknown, release.Quality720p}, p)
}

func TestPriority_Rank_Unlisted(t *testing.T) {
	p := Priority{release.Quality720p}

	assert.Equal(t, 0, p.Rank(release.Quality720p))
	assert.Less(t, p.Rank(release.Quality2160p), p.Rank(release.Quality1080p))
	assert.Less(t, p.Rank(release.Quality360p), p.Rank(release.QualityUnknown))
	assert.Greater(t, p.Rank(release.Quality2160p), p.Rank(release.Quality720p))
}

func TestPriority_Best(t *testing.T) {
	tests := []struct {
		name      string
		priority  Priority
		available []release.Quality
		want      release.Quality
	}{
		{"default prefers 4k", DefaultPriority, []release.Quality{release.Quality720p, release.Quality2160p}, release.Quality2160p},
		{"custom prefers 1080p", Priority{release.Quality1080p, release.Quality2160p}, []release.Quality{release.Quality2160p, release.Quality1080p}, release.Quality1080p},
		{"unknown last", DefaultPriority, []release.Quality{release.QualityUnknown, release.Quality360p}, release.Quality360p},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.priority.Best(tt.available)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := DefaultPriority.Best(nil)
	assert.False(t, ok)
}

func TestPriority_Sort(t *testing.T) {
	qs := []release.Quality{release.Quality480p, release.QualityUnknown, release.Quality1080p}
	DefaultPriority.Sort(qs)
	assert.Equal(t, []release.Quality{release.Quality1080p, release.Quality480p, release.QualityUnknown}, qs)
	assert.Equal(t, []string{"1080P", "480P", "UNKNOWN"}, Priority(qs).Labels())
}
