package domain

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// CatalogSchemaVersion is stamped into every persisted catalog
const CatalogSchemaVersion = 1

// DefaultThreadCount is the worker pool size when none is configured
const DefaultThreadCount = 3

// MaxThreadCount bounds the worker pool
const MaxThreadCount = 10

// Quality represents the requested video quality
type Quality string

const (
	QualityBest  Quality = "best"
	Quality1080p Quality = "1080p"
	Quality720p  Quality = "720p"
	Quality480p  Quality = "480p"
	Quality360p  Quality = "360p"
)

// ParseQuality validates a quality string, defaulting empty input to best
func ParseQuality(s string) (Quality, error) {
	switch q := Quality(strings.ToLower(strings.TrimSpace(s))); q {
	case "":
		return QualityBest, nil
	case QualityBest, Quality1080p, Quality720p, Quality480p, Quality360p:
		return q, nil
	default:
		return "", fmt.Errorf("invalid quality: %s", s)
	}
}

// Video represents one entry of a playlist
type Video struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Uploader        string  `json:"uploader,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	ThumbnailURL    string  `json:"thumbnail_url,omitempty"`
	SourceURL       string  `json:"source_url"`
	Downloaded      bool    `json:"downloaded"`
	FilePath        string  `json:"file_path,omitempty"`
	Quality         Quality `json:"quality,omitempty"`
	AudioOnly       bool    `json:"audio_only"`
}

// MarkDownloaded records a completed download
func (v *Video) MarkDownloaded(filePath string, quality Quality, audioOnly bool) {
	v.Downloaded = true
	v.FilePath = filePath
	v.Quality = quality
	v.AudioOnly = audioOnly
}

// ClearDownload resets the download state
func (v *Video) ClearDownload() {
	v.Downloaded = false
	v.FilePath = ""
	v.Quality = ""
	v.AudioOnly = false
}

// MergeMetadata updates descriptive fields from a fresh fetch, keeping download state
func (v *Video) MergeMetadata(fresh Video) {
	if fresh.Title != "" {
		v.Title = fresh.Title
	}
	if fresh.Uploader != "" {
		v.Uploader = fresh.Uploader
	}
	if fresh.DurationSeconds > 0 {
		v.DurationSeconds = fresh.DurationSeconds
	}
	if fresh.ThumbnailURL != "" {
		v.ThumbnailURL = fresh.ThumbnailURL
	}
	if fresh.SourceURL != "" {
		v.SourceURL = fresh.SourceURL
	}
}

// Playlist represents a registered playlist
type Playlist struct {
	ID           string    `json:"id"`
	SourceURL    string    `json:"source_url"`
	Title        string    `json:"title"`
	AddedAt      time.Time `json:"added_at"`
	LastSyncedAt time.Time `json:"last_synced_at"`
	Videos       []Video   `json:"videos"`
}

// NewPlaylist creates a playlist from fetched metadata
func NewPlaylist(sourceURL string, info *PlaylistInfo) *Playlist {
	now := time.Now()
	videos := make([]Video, len(info.Videos))
	copy(videos, info.Videos)
	for i := range videos {
		videos[i].ClearDownload()
	}
	return &Playlist{
		ID:           PlaylistIDFromURL(sourceURL),
		SourceURL:    sourceURL,
		Title:        info.Title,
		AddedAt:      now,
		LastSyncedAt: now,
		Videos:       videos,
	}
}

// FindVideo returns the video with the given id, or nil
func (p *Playlist) FindVideo(videoID string) *Video {
	for i := range p.Videos {
		if p.Videos[i].ID == videoID {
			return &p.Videos[i]
		}
	}
	return nil
}

// Merge applies a fresh fetch: existing ids are updated in place, new ids appended.
// It never removes a video and returns the appended videos.
func (p *Playlist) Merge(fresh []Video) []Video {
	var added []Video
	for _, fv := range fresh {
		if fv.ID == "" {
			continue
		}
		if existing := p.FindVideo(fv.ID); existing != nil {
			existing.MergeMetadata(fv)
			continue
		}
		fv.ClearDownload()
		p.Videos = append(p.Videos, fv)
		added = append(added, fv)
	}
	return added
}

// DownloadedCount returns how many videos are downloaded
func (p *Playlist) DownloadedCount() int {
	n := 0
	for _, v := range p.Videos {
		if v.Downloaded {
			n++
		}
	}
	return n
}

// Clone returns a deep copy
func (p *Playlist) Clone() *Playlist {
	cp := *p
	cp.Videos = make([]Video, len(p.Videos))
	copy(cp.Videos, p.Videos)
	return &cp
}

// PlaylistSummary is the listing view of a playlist
type PlaylistSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	SourceURL    string    `json:"source_url"`
	VideoCount   int       `json:"video_count"`
	Downloaded   int       `json:"downloaded"`
	AddedAt      time.Time `json:"added_at"`
	LastSyncedAt time.Time `json:"last_synced_at"`
}

// Summary returns the listing view
func (p *Playlist) Summary() PlaylistSummary {
	return PlaylistSummary{
		ID:           p.ID,
		Title:        p.Title,
		SourceURL:    p.SourceURL,
		VideoCount:   len(p.Videos),
		Downloaded:   p.DownloadedCount(),
		AddedAt:      p.AddedAt,
		LastSyncedAt: p.LastSyncedAt,
	}
}

// PlaylistInfo is the metadata returned by a playlist fetch
type PlaylistInfo struct {
	Title  string
	Videos []Video
}

// Settings holds process-wide, user-editable settings
type Settings struct {
	DownloadDir string `json:"download_dir"`
	ThreadCount int    `json:"thread_count"`
}

// SettingsPatch is a partial settings update
type SettingsPatch struct {
	DownloadDir *string `json:"download_dir,omitempty"`
	ThreadCount *int    `json:"thread_count,omitempty"`
}

// ClampThreadCount bounds n to 1..MaxThreadCount
func ClampThreadCount(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxThreadCount {
		return MaxThreadCount
	}
	return n
}

// CatalogData is the durable catalog document
type CatalogData struct {
	SchemaVersion int                  `json:"schema_version"`
	Playlists     map[string]*Playlist `json:"playlists"`
	Settings      Settings             `json:"settings"`
}

// NewCatalogData returns an empty catalog
func NewCatalogData(settings Settings) *CatalogData {
	return &CatalogData{
		SchemaVersion: CatalogSchemaVersion,
		Playlists:     make(map[string]*Playlist),
		Settings:      settings,
	}
}

// Clone returns a deep copy
func (c *CatalogData) Clone() *CatalogData {
	cp := &CatalogData{
		SchemaVersion: c.SchemaVersion,
		Playlists:     make(map[string]*Playlist, len(c.Playlists)),
		Settings:      c.Settings,
	}
	for id, p := range c.Playlists {
		cp.Playlists[id] = p.Clone()
	}
	return cp
}

// IsReferenced reports whether any playlist other than except holds videoID
func (c *CatalogData) IsReferenced(videoID string, except string) bool {
	for id, p := range c.Playlists {
		if id == except {
			continue
		}
		if p.FindVideo(videoID) != nil {
			return true
		}
	}
	return false
}

// EachVideo calls fn for every playlist entry of videoID
func (c *CatalogData) EachVideo(videoID string, fn func(p *Playlist, v *Video)) {
	for _, p := range c.Playlists {
		if v := p.FindVideo(videoID); v != nil {
			fn(p, v)
		}
	}
}

var playlistIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// PlaylistIDFromURL derives a stable playlist id from its source URL
func PlaylistIDFromURL(sourceURL string) string {
	trimmed := strings.TrimSpace(sourceURL)
	if u, err := url.Parse(trimmed); err == nil {
		if list := u.Query().Get("list"); list != "" && playlistIDPattern.MatchString(list) {
			return list
		}
	}
	sum := sha1.Sum([]byte(trimmed))
	return "pl-" + hex.EncodeToString(sum[:])[:12]
}

// VideoURL returns the canonical watch URL for a video id
func VideoURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

// IsValidMediaID reports whether id is safe to use as a file name component
func IsValidMediaID(id string) bool {
	return playlistIDPattern.MatchString(id)
}
