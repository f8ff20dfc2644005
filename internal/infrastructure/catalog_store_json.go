package infrastructure

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/yourusername/yt-sync-go/internal/domain"
)

// JSONCatalogStore persists the catalog as a single JSON document
type JSONCatalogStore struct {
	path string
}

// NewJSONCatalogStore creates a store backed by path
func NewJSONCatalogStore(path string) *JSONCatalogStore {
	return &JSONCatalogStore{path: path}
}

// Path returns the backing file path
func (s *JSONCatalogStore) Path() string {
	return s.path
}

// Load reads the catalog. A missing file yields (nil, nil).
func (s *JSONCatalogStore) Load() (*domain.CatalogData, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var probe struct {
		SchemaVersion int `json:"schema_version"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	switch {
	case probe.SchemaVersion == 0:
		return migrateLegacyCatalog(raw)
	case probe.SchemaVersion > domain.CatalogSchemaVersion:
		return nil, fmt.Errorf("catalog schema version %d is newer than supported %d",
			probe.SchemaVersion, domain.CatalogSchemaVersion)
	}

	var data domain.CatalogData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if data.Playlists == nil {
		data.Playlists = make(map[string]*domain.Playlist)
	}
	return &data, nil
}

// Save atomically replaces the catalog file
func (s *JSONCatalogStore) Save(data *domain.CatalogData) error {
	data.SchemaVersion = domain.CatalogSchemaVersion
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal catalog: %w", err)
	}
	if err := WriteFileAtomic(s.path, raw, 0644); err != nil {
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	return nil
}

// legacyCatalog is the unversioned layout: {playlists, settings{download_dir, threads}}
type legacyCatalog struct {
	Playlists map[string]struct {
		ID     string  `json:"id"`
		URL    string  `json:"url"`
		Title  string  `json:"title"`
		Added  float64 `json:"added"`
		Synced float64 `json:"synced"`
		Videos []struct {
			ID         string   `json:"id"`
			Title      string   `json:"title"`
			Uploader   string   `json:"uploader"`
			Duration   *float64 `json:"duration"`
			Thumbnail  string   `json:"thumbnail"`
			URL        string   `json:"url"`
			Downloaded bool     `json:"downloaded"`
			FilePath   *string  `json:"file_path"`
			Quality    string   `json:"quality"`
			AudioOnly  bool     `json:"audio_only"`
		} `json:"videos"`
	} `json:"playlists"`
	Settings struct {
		DownloadDir string `json:"download_dir"`
		Threads     int    `json:"threads"`
	} `json:"settings"`
}

func migrateLegacyCatalog(raw []byte) (*domain.CatalogData, error) {
	var legacy legacyCatalog
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return nil, fmt.Errorf("failed to parse legacy catalog: %w", err)
	}

	data := domain.NewCatalogData(domain.Settings{
		DownloadDir: legacy.Settings.DownloadDir,
		ThreadCount: legacy.Settings.Threads,
	})

	for key, lp := range legacy.Playlists {
		id := lp.ID
		if id == "" {
			id = key
		}
		p := &domain.Playlist{
			ID:           id,
			SourceURL:    lp.URL,
			Title:        lp.Title,
			AddedAt:      unixFloat(lp.Added),
			LastSyncedAt: unixFloat(lp.Synced),
		}
		for _, lv := range lp.Videos {
			v := domain.Video{
				ID:           lv.ID,
				Title:        lv.Title,
				Uploader:     lv.Uploader,
				ThumbnailURL: lv.Thumbnail,
				SourceURL:    lv.URL,
				AudioOnly:    lv.AudioOnly,
			}
			if v.SourceURL == "" {
				v.SourceURL = domain.VideoURL(lv.ID)
			}
			if lv.Duration != nil {
				v.DurationSeconds = *lv.Duration
			}
			if lv.Downloaded && lv.FilePath != nil && *lv.FilePath != "" {
				q, err := domain.ParseQuality(lv.Quality)
				if err != nil {
					q = domain.QualityBest
				}
				v.MarkDownloaded(*lv.FilePath, q, lv.AudioOnly)
			}
			p.Videos = append(p.Videos, v)
		}
		data.Playlists[id] = p
	}

	return data, nil
}

func unixFloat(ts float64) time.Time {
	if ts <= 0 {
		return time.Time{}
	}
	sec := int64(ts)
	return time.Unix(sec, int64((ts-float64(sec))*1e9))
}
