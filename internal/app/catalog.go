package app

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/yourusername/yt-sync-go/internal/domain"
	apperrors "github.com/yourusername/yt-sync-go/pkg/errors"
	"github.com/yourusername/yt-sync-go/pkg/logger"
	"go.uber.org/zap"
)

// DownloadOutcome is what a finished job reports back to the catalog
type DownloadOutcome struct {
	Success   bool
	FilePath  string
	Quality   domain.Quality
	AudioOnly bool
}

// Catalog owns playlists, videos and settings. Every change goes through
// Mutate, which persists the new state before it becomes visible.
type Catalog struct {
	store   domain.CatalogStore
	fetcher domain.PlaylistFetcher
	log     *logger.LoggerAdapter

	mu   sync.Mutex
	data *domain.CatalogData

	saveHook   func(error)
	removeFile func(string) error
}

// NewCatalog loads the catalog from store, creating an empty one with
// defaults when nothing is persisted yet.
func NewCatalog(store domain.CatalogStore, fetcher domain.PlaylistFetcher, defaults domain.Settings, log *logger.LoggerAdapter) (*Catalog, error) {
	if log == nil {
		log = logger.NewNopAdapter()
	}

	data, err := store.Load()
	if err != nil {
		return nil, apperrors.IO("failed to load catalog", err)
	}
	if data == nil {
		data = domain.NewCatalogData(defaults)
	}
	if data.Settings.DownloadDir == "" {
		data.Settings.DownloadDir = defaults.DownloadDir
	}
	if data.Settings.ThreadCount == 0 {
		data.Settings.ThreadCount = defaults.ThreadCount
	}
	data.Settings.ThreadCount = domain.ClampThreadCount(data.Settings.ThreadCount)

	return &Catalog{
		store:      store,
		fetcher:    fetcher,
		log:        log,
		data:       data,
		removeFile: os.Remove,
	}, nil
}

// OnSave registers a callback invoked after every persistence attempt
func (c *Catalog) OnSave(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saveHook = fn
}

// Get returns a deep copy of the whole catalog
func (c *Catalog) Get() *domain.CatalogData {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data.Clone()
}

// Settings returns the current settings
func (c *Catalog) Settings() domain.Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data.Settings
}

// Mutate applies fn to a private copy, persists it, then publishes it.
// On any error the visible state is unchanged.
func (c *Catalog) Mutate(fn func(data *domain.CatalogData) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mutateLocked(fn)
}

func (c *Catalog) mutateLocked(fn func(data *domain.CatalogData) error) error {
	next := c.data.Clone()
	if err := fn(next); err != nil {
		return err
	}

	err := c.store.Save(next)
	if c.saveHook != nil {
		c.saveHook(err)
	}
	if err != nil {
		c.log.LogAppError("Catalog write failed", zap.Error(err))
		return apperrors.IO("failed to persist catalog", err)
	}

	c.data = next
	return nil
}

// Playlists returns summaries ordered by the time they were added
func (c *Catalog) Playlists() []domain.PlaylistSummary {
	c.mu.Lock()
	defer c.mu.Unlock()

	summaries := make([]domain.PlaylistSummary, 0, len(c.data.Playlists))
	for _, p := range c.data.Playlists {
		summaries = append(summaries, p.Summary())
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].AddedAt.Equal(summaries[j].AddedAt) {
			return summaries[i].ID < summaries[j].ID
		}
		return summaries[i].AddedAt.Before(summaries[j].AddedAt)
	})
	return summaries
}

// Playlist returns a copy of one playlist
func (c *Catalog) Playlist(id string) (*domain.Playlist, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.data.Playlists[id]
	if !ok {
		return nil, apperrors.NotFound("playlist %s not found", id)
	}
	return p.Clone(), nil
}

// Video returns a copy of one playlist entry
func (c *Catalog) Video(playlistID, videoID string) (domain.Video, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.data.Playlists[playlistID]
	if !ok {
		return domain.Video{}, apperrors.NotFound("playlist %s not found", playlistID)
	}
	v := p.FindVideo(videoID)
	if v == nil {
		return domain.Video{}, apperrors.NotFound("video %s not found in playlist %s", videoID, playlistID)
	}
	return *v, nil
}

// ResolveMedia returns the file backing a downloaded video
func (c *Catalog) ResolveMedia(playlistID, videoID string) (string, error) {
	v, err := c.Video(playlistID, videoID)
	if err != nil {
		return "", err
	}
	if !v.Downloaded || v.FilePath == "" {
		return "", apperrors.NotFound("video %s is not downloaded", videoID)
	}
	return v.FilePath, nil
}

// AddPlaylist fetches url and registers it. If the playlist already exists
// the existing copy is returned together with a conflict error.
func (c *Catalog) AddPlaylist(ctx context.Context, sourceURL string) (*domain.Playlist, error) {
	sourceURL = strings.TrimSpace(sourceURL)
	if sourceURL == "" {
		return nil, apperrors.BadRequest("url is required")
	}

	id := domain.PlaylistIDFromURL(sourceURL)
	if existing, err := c.Playlist(id); err == nil {
		return existing, apperrors.Conflict("playlist %s already exists", id)
	}

	info, err := c.fetcher.Fetch(ctx, sourceURL)
	if err != nil {
		return nil, err
	}
	if len(info.Videos) == 0 {
		return nil, apperrors.NotFound("no videos found at %s", sourceURL)
	}

	playlist := domain.NewPlaylist(sourceURL, info)

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.data.Playlists[id]; ok {
		return existing.Clone(), apperrors.Conflict("playlist %s already exists", id)
	}

	err = c.mutateLocked(func(data *domain.CatalogData) error {
		p := playlist.Clone()
		adoptDownloadState(data, p.Videos)
		data.Playlists[p.ID] = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.log.General().Info("Playlist added",
		zap.String("playlist_id", id),
		zap.String("title", playlist.Title),
		zap.Int("videos", len(playlist.Videos)))
	return c.data.Playlists[id].Clone(), nil
}

// SyncPlaylist re-fetches a playlist and merges the result. Existing
// videos are updated in place, new ones appended, none removed.
func (c *Catalog) SyncPlaylist(ctx context.Context, id string) (*domain.Playlist, error) {
	current, err := c.Playlist(id)
	if err != nil {
		return nil, err
	}

	info, err := c.fetcher.Fetch(ctx, current.SourceURL)
	if err != nil {
		return nil, err
	}

	var synced *domain.Playlist
	var added []domain.Video
	err = c.Mutate(func(data *domain.CatalogData) error {
		p, ok := data.Playlists[id]
		if !ok {
			return apperrors.NotFound("playlist %s not found", id)
		}
		added = p.Merge(info.Videos)
		adoptDownloadState(data, p.Videos[len(p.Videos)-len(added):])
		if info.Title != "" {
			p.Title = info.Title
		}
		p.LastSyncedAt = time.Now()
		synced = p.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.log.General().Info("Playlist synced",
		zap.String("playlist_id", id),
		zap.Int("added", len(added)),
		zap.Int("videos", len(synced.Videos)))
	return synced, nil
}

// AddVideo fetches url and appends any videos the playlist does not hold yet
func (c *Catalog) AddVideo(ctx context.Context, playlistID, sourceURL string) ([]domain.Video, error) {
	sourceURL = strings.TrimSpace(sourceURL)
	if sourceURL == "" {
		return nil, apperrors.BadRequest("url is required")
	}
	if _, err := c.Playlist(playlistID); err != nil {
		return nil, err
	}

	info, err := c.fetcher.Fetch(ctx, sourceURL)
	if err != nil {
		return nil, err
	}

	var added []domain.Video
	err = c.Mutate(func(data *domain.CatalogData) error {
		p, ok := data.Playlists[playlistID]
		if !ok {
			return apperrors.NotFound("playlist %s not found", playlistID)
		}
		before := len(p.Videos)
		for _, v := range info.Videos {
			if v.ID == "" || p.FindVideo(v.ID) != nil {
				continue
			}
			v.ClearDownload()
			p.Videos = append(p.Videos, v)
		}
		fresh := p.Videos[before:]
		adoptDownloadState(data, fresh)
		added = append([]domain.Video{}, fresh...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// adoptDownloadState copies the download state of videos already present
// in other playlists, keeping state identical across playlists.
func adoptDownloadState(data *domain.CatalogData, videos []domain.Video) {
	for i := range videos {
		v := &videos[i]
		data.EachVideo(v.ID, func(_ *domain.Playlist, other *domain.Video) {
			if other != v && other.Downloaded && !v.Downloaded {
				v.MarkDownloaded(other.FilePath, other.Quality, other.AudioOnly)
			}
		})
	}
}

// RemoveVideo drops a video from a playlist. Its file is deleted after the
// commit unless another playlist still references the video.
func (c *Catalog) RemoveVideo(playlistID, videoID string) error {
	var orphan string
	err := c.Mutate(func(data *domain.CatalogData) error {
		p, ok := data.Playlists[playlistID]
		if !ok {
			return apperrors.NotFound("playlist %s not found", playlistID)
		}
		idx := -1
		for i := range p.Videos {
			if p.Videos[i].ID == videoID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return apperrors.NotFound("video %s not found in playlist %s", videoID, playlistID)
		}
		removed := p.Videos[idx]
		p.Videos = append(p.Videos[:idx], p.Videos[idx+1:]...)
		if removed.Downloaded && !data.IsReferenced(videoID, "") {
			orphan = removed.FilePath
		}
		return nil
	})
	if err != nil {
		return err
	}

	if orphan != "" {
		c.deleteMedia(orphan)
	}
	return nil
}

// DeletePlaylist removes a playlist and the files no other playlist references
func (c *Catalog) DeletePlaylist(id string) error {
	var orphans []string
	err := c.Mutate(func(data *domain.CatalogData) error {
		p, ok := data.Playlists[id]
		if !ok {
			return apperrors.NotFound("playlist %s not found", id)
		}
		delete(data.Playlists, id)
		for _, v := range p.Videos {
			if v.Downloaded && v.FilePath != "" && !data.IsReferenced(v.ID, "") {
				orphans = append(orphans, v.FilePath)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, path := range orphans {
		c.deleteMedia(path)
	}
	c.log.General().Info("Playlist deleted",
		zap.String("playlist_id", id),
		zap.Int("files_removed", len(orphans)))
	return nil
}

// DeleteVideoFile deletes the media of the given videos and clears their
// download state everywhere. It returns how many files were removed.
func (c *Catalog) DeleteVideoFile(playlistID string, videoIDs []string) (int, error) {
	if len(videoIDs) == 0 {
		return 0, apperrors.BadRequest("video_ids is required")
	}

	var files []string
	err := c.Mutate(func(data *domain.CatalogData) error {
		p, ok := data.Playlists[playlistID]
		if !ok {
			return apperrors.NotFound("playlist %s not found", playlistID)
		}
		seen := make(map[string]bool)
		for _, id := range videoIDs {
			v := p.FindVideo(id)
			if v == nil {
				continue
			}
			if v.FilePath != "" && !seen[v.FilePath] {
				seen[v.FilePath] = true
				files = append(files, v.FilePath)
			}
			data.EachVideo(id, func(_ *domain.Playlist, entry *domain.Video) {
				entry.ClearDownload()
			})
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, path := range files {
		if c.deleteMedia(path) {
			deleted++
		}
	}
	return deleted, nil
}

// deleteMedia removes a media file and its info sidecar, reporting whether
// the media file itself was removed
func (c *Catalog) deleteMedia(path string) bool {
	removed := true
	if err := c.removeFile(path); err != nil {
		removed = false
		if !os.IsNotExist(err) {
			c.log.LogAppError("Failed to delete media file", zap.String("path", path), zap.Error(err))
		}
	}
	sidecar := strings.TrimSuffix(path, filepath.Ext(path)) + ".info.json"
	_ = c.removeFile(sidecar)
	return removed
}

// RecordDownloadResult applies a job outcome to every entry of videoID.
// A failure always leaves the video undownloaded. Files the entries pointed
// at before are deleted after the commit. NotFound is returned when no
// playlist holds videoID anymore.
func (c *Catalog) RecordDownloadResult(videoID string, outcome DownloadOutcome) error {
	var superseded []string
	err := c.Mutate(func(data *domain.CatalogData) error {
		superseded = superseded[:0]
		seen := make(map[string]bool)
		touched := 0
		data.EachVideo(videoID, func(_ *domain.Playlist, v *domain.Video) {
			touched++
			if v.FilePath != "" && v.FilePath != outcome.FilePath && !seen[v.FilePath] {
				seen[v.FilePath] = true
				superseded = append(superseded, v.FilePath)
			}
			if outcome.Success {
				v.MarkDownloaded(outcome.FilePath, outcome.Quality, outcome.AudioOnly)
			} else {
				v.ClearDownload()
			}
		})
		if touched == 0 {
			return apperrors.NotFound("video %s is no longer in any playlist", videoID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, path := range superseded {
		c.deleteMedia(path)
	}
	return nil
}

// UpdateSettings applies a partial settings change
func (c *Catalog) UpdateSettings(patch domain.SettingsPatch) (domain.Settings, error) {
	var updated domain.Settings
	err := c.Mutate(func(data *domain.CatalogData) error {
		if patch.DownloadDir != nil {
			dir := strings.TrimSpace(*patch.DownloadDir)
			if dir == "" {
				return apperrors.BadRequest("download_dir cannot be empty")
			}
			data.Settings.DownloadDir = expandPath(dir)
		}
		if patch.ThreadCount != nil {
			data.Settings.ThreadCount = domain.ClampThreadCount(*patch.ThreadCount)
		}
		updated = data.Settings
		return nil
	})
	if err != nil {
		return domain.Settings{}, err
	}
	return updated, nil
}

// Reconcile clears the download state of videos whose file has vanished
// and returns how many entries were reset.
func (c *Catalog) Reconcile() (int, error) {
	reset := 0
	c.mu.Lock()
	defer c.mu.Unlock()

	var stale []string
	for _, p := range c.data.Playlists {
		for _, v := range p.Videos {
			if v.Downloaded && !nonEmptyFile(v.FilePath) {
				stale = append(stale, v.ID)
			}
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	err := c.mutateLocked(func(data *domain.CatalogData) error {
		for _, id := range stale {
			data.EachVideo(id, func(_ *domain.Playlist, v *domain.Video) {
				if v.Downloaded {
					v.ClearDownload()
					reset++
				}
			})
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	c.log.General().Info("Catalog reconciled", zap.Int("reset", reset))
	return reset, nil
}

func nonEmptyFile(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}
