package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuality(t *testing.T) {
	tests := []struct {
		input    string
		expected Quality
		wantErr  bool
	}{
		{"", QualityBest, false},
		{"best", QualityBest, false},
		{"720P", Quality720p, false},
		{" 360p ", Quality360p, false},
		{"4k", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			q, err := ParseQuality(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, q)
		})
	}
}

func TestPlaylistIDFromURL(t *testing.T) {
	id := PlaylistIDFromURL("https://www.youtube.com/playlist?list=PLabc_123-x")
	assert.Equal(t, "PLabc_123-x", id)

	a := PlaylistIDFromURL("https://www.youtube.com/watch?v=abc")
	b := PlaylistIDFromURL("  https://www.youtube.com/watch?v=abc ")
	assert.Equal(t, a, b, "id must be stable for the same source")
	assert.True(t, strings.HasPrefix(a, "pl-"))
	assert.Len(t, a, 15)
	assert.True(t, IsValidMediaID(a))
}

func TestPlaylist_MergeAppendsAndNeverRemoves(t *testing.T) {
	p := &Playlist{
		ID: "PL1",
		Videos: []Video{
			{ID: "a", Title: "A", Downloaded: true, FilePath: "/m/a.mp4"},
			{ID: "b", Title: "B"},
		},
	}

	added := p.Merge([]Video{
		{ID: "c", Title: "C", Downloaded: true, FilePath: "/bogus"},
		{ID: "a", Title: "A renamed"},
	})

	require.Len(t, added, 1)
	assert.Equal(t, "c", added[0].ID)
	require.Len(t, p.Videos, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{p.Videos[0].ID, p.Videos[1].ID, p.Videos[2].ID})
	assert.Equal(t, "A renamed", p.Videos[0].Title)
	assert.True(t, p.Videos[0].Downloaded, "merge keeps download state")
	assert.False(t, p.Videos[2].Downloaded, "fetched videos start undownloaded")
	assert.Empty(t, p.Videos[2].FilePath)
}

func TestCatalogData_CloneIsDeep(t *testing.T) {
	data := NewCatalogData(Settings{DownloadDir: "/d", ThreadCount: 2})
	data.Playlists["PL1"] = &Playlist{ID: "PL1", Videos: []Video{{ID: "a"}}}

	cp := data.Clone()
	cp.Playlists["PL1"].Videos[0].Downloaded = true
	cp.Playlists["PL2"] = &Playlist{ID: "PL2"}

	assert.False(t, data.Playlists["PL1"].Videos[0].Downloaded)
	assert.Len(t, data.Playlists, 1)
}

func TestCatalogData_IsReferenced(t *testing.T) {
	data := NewCatalogData(Settings{})
	data.Playlists["PL1"] = &Playlist{ID: "PL1", Videos: []Video{{ID: "shared"}, {ID: "only1"}}}
	data.Playlists["PL2"] = &Playlist{ID: "PL2", Videos: []Video{{ID: "shared"}}}

	assert.True(t, data.IsReferenced("shared", "PL1"))
	assert.False(t, data.IsReferenced("only1", "PL1"))
	assert.True(t, data.IsReferenced("only1", ""))
}

func TestClampThreadCount(t *testing.T) {
	assert.Equal(t, 1, ClampThreadCount(0))
	assert.Equal(t, 4, ClampThreadCount(4))
	assert.Equal(t, MaxThreadCount, ClampThreadCount(99))
}
