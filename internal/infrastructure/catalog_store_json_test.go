package infrastructure

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/yt-sync-go/internal/domain"
)

func TestJSONCatalogStore_LoadMissing(t *testing.T) {
	store := NewJSONCatalogStore(filepath.Join(t.TempDir(), "catalog.json"))

	data, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestJSONCatalogStore_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "catalog.json")
	store := NewJSONCatalogStore(path)

	data := domain.NewCatalogData(domain.Settings{DownloadDir: "/media", ThreadCount: 4})
	data.Playlists["PL1"] = &domain.Playlist{
		ID:        "PL1",
		SourceURL: "https://www.youtube.com/playlist?list=PL1",
		Title:     "Mix",
		Videos: []domain.Video{
			{ID: "a", Title: "A", SourceURL: domain.VideoURL("a"), Downloaded: true, FilePath: "/media/a.mp4", Quality: domain.Quality720p},
			{ID: "b", Title: "B", SourceURL: domain.VideoURL("b")},
		},
	}
	require.NoError(t, store.Save(data))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, domain.CatalogSchemaVersion, loaded.SchemaVersion)
	assert.Equal(t, 4, loaded.Settings.ThreadCount)
	require.Contains(t, loaded.Playlists, "PL1")
	assert.Equal(t, []string{"a", "b"}, []string{loaded.Playlists["PL1"].Videos[0].ID, loaded.Playlists["PL1"].Videos[1].ID})
	assert.Equal(t, "/media/a.mp4", loaded.Playlists["PL1"].Videos[0].FilePath)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestJSONCatalogStore_MigratesLegacyLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	legacy := `{
  "playlists": {
    "ab12cd34": {
      "id": "ab12cd34",
      "url": "https://www.youtube.com/playlist?list=PLx",
      "title": "Old",
      "added": 1700000000.5,
      "synced": 1700000100,
      "videos": [
        {"id": "v1", "title": "One", "duration": 61, "downloaded": true, "file_path": "/d/v1.mp4", "quality": "720p"},
        {"id": "v2", "title": "Two", "downloaded": false, "file_path": null}
      ]
    }
  },
  "settings": {"download_dir": "/d", "threads": 5}
}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0644))

	data, err := NewJSONCatalogStore(path).Load()
	require.NoError(t, err)
	require.NotNil(t, data)

	assert.Equal(t, domain.CatalogSchemaVersion, data.SchemaVersion)
	assert.Equal(t, 5, data.Settings.ThreadCount)
	p := data.Playlists["ab12cd34"]
	require.NotNil(t, p)
	assert.Equal(t, int64(1700000000), p.AddedAt.Unix())
	require.Len(t, p.Videos, 2)
	assert.True(t, p.Videos[0].Downloaded)
	assert.Equal(t, domain.Quality720p, p.Videos[0].Quality)
	assert.Equal(t, float64(61), p.Videos[0].DurationSeconds)
	assert.Equal(t, domain.VideoURL("v2"), p.Videos[1].SourceURL)
	assert.False(t, p.Videos[1].Downloaded)
}

func TestJSONCatalogStore_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"schema_version": 99}`), 0644))

	_, err := NewJSONCatalogStore(path).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
}

func TestWriteFileAtomic_Replaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.json")
	require.NoError(t, WriteFileAtomic(path, []byte("one"), 0644))
	require.NoError(t, WriteFileAtomic(path, []byte("two"), 0644))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(got))
}
