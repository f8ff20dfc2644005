package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os/exec"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/yourusername/yt-sync-go/internal/domain"
	apperrors "github.com/yourusername/yt-sync-go/pkg/errors"
	"github.com/ytget/ytdlp/v2"
	"go.uber.org/zap"
)

const defaultPlaylistTitle = "Playlist"

// flatEntry is one entry of `yt-dlp --flat-playlist -J` output
type flatEntry struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Uploader  string   `json:"uploader"`
	Channel   string   `json:"channel"`
	Duration  *float64 `json:"duration"`
	Thumbnail string   `json:"thumbnail"`
	Thumbs    []struct {
		URL string `json:"url"`
	} `json:"thumbnails"`
}

type flatPlaylist struct {
	flatEntry
	WebpageURLBasename string       `json:"webpage_url_basename"`
	Entries            []*flatEntry `json:"entries"`
}

// YTDLPPlaylistFetcher implements domain.PlaylistFetcher
type YTDLPPlaylistFetcher struct {
	config   *domain.ToolsConfig
	logger   *zap.Logger
	client   *http.Client
	lookPath func(string) (string, error)

	// listItems lists a playlist without the yt-dlp binary
	listItems func(ctx context.Context, playlistID string) ([]domain.Video, error)
	// pageTitle scrapes a display title from the source page
	pageTitle func(ctx context.Context, pageURL string) (string, error)
}

// NewYTDLPPlaylistFetcher creates a fetcher
func NewYTDLPPlaylistFetcher(config *domain.ToolsConfig, logger *zap.Logger) *YTDLPPlaylistFetcher {
	f := &YTDLPPlaylistFetcher{
		config:   config,
		logger:   logger.Named("fetcher"),
		client:   &http.Client{Timeout: 15 * time.Second},
		lookPath: exec.LookPath,
	}
	f.listItems = listWithLibrary
	f.pageTitle = f.scrapeTitle
	return f
}

// Fetch resolves url into playlist metadata
func (f *YTDLPPlaylistFetcher) Fetch(ctx context.Context, sourceURL string) (*domain.PlaylistInfo, error) {
	sourceURL = strings.TrimSpace(sourceURL)
	if sourceURL == "" {
		return nil, apperrors.BadRequest("url is required")
	}

	if f.config.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.config.FetchTimeout)
		defer cancel()
	}

	info, err := f.fetchWithTool(ctx, sourceURL)
	if err != nil {
		var acqErr *domain.AcquireError
		listID := listParam(sourceURL)
		if !errors.As(err, &acqErr) || acqErr.Kind != domain.FailureToolNotFound || listID == "" {
			return nil, err
		}
		f.logger.Warn("yt-dlp unavailable, listing playlist with built-in client",
			zap.String("playlist_id", listID))
		videos, libErr := f.listItems(ctx, listID)
		if libErr != nil {
			return nil, apperrors.Wrap(apperrors.ErrorTypeIO, "failed to list playlist", libErr)
		}
		info = &domain.PlaylistInfo{Videos: videos}
	}

	if len(info.Videos) == 0 {
		return nil, apperrors.NotFound("no videos found at %s", sourceURL)
	}

	if info.Title == "" {
		if title, err := f.pageTitle(ctx, sourceURL); err == nil && title != "" {
			info.Title = title
		} else {
			info.Title = defaultPlaylistTitle
		}
	}
	return info, nil
}

func (f *YTDLPPlaylistFetcher) fetchWithTool(ctx context.Context, sourceURL string) (*domain.PlaylistInfo, error) {
	binary, err := f.lookPath(f.config.YTDLPBinary)
	if err != nil {
		return nil, &domain.AcquireError{
			Kind:    domain.FailureToolNotFound,
			Message: fmt.Sprintf("%s not found in PATH", f.config.YTDLPBinary),
			Err:     err,
		}
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, "--flat-playlist", "-J", "--no-warnings", sourceURL)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	f.logger.Debug("fetching playlist metadata", zap.String("cmd", ShellEscapeCommand(binary, cmd.Args[1:]...)))

	if err := cmd.Run(); err != nil {
		lines := strings.Split(strings.TrimSpace(stderr.String()), "\n")
		msg := strings.TrimSpace(lines[len(lines)-1])
		if msg == "" {
			msg = "yt-dlp failed"
		}
		switch ClassifyOutput(lines) {
		case domain.FailureUnsupportedFormat:
			return nil, apperrors.Wrap(apperrors.ErrorTypeBadRequest, msg, err)
		default:
			return nil, apperrors.Wrap(apperrors.ErrorTypeIO, msg, err)
		}
	}

	info, err := ParsePlaylistJSON(stdout.Bytes())
	if err != nil {
		return nil, apperrors.Internal("failed to parse yt-dlp output", err)
	}
	return info, nil
}

// ParsePlaylistJSON converts `yt-dlp -J` output into playlist metadata.
// A single video (no entries) becomes a one-video playlist.
func ParsePlaylistJSON(raw []byte) (*domain.PlaylistInfo, error) {
	var doc flatPlaylist
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}

	entries := doc.Entries
	if entries == nil {
		entries = []*flatEntry{&doc.flatEntry}
	}

	info := &domain.PlaylistInfo{Title: doc.Title}
	if info.Title == "" {
		info.Title = doc.WebpageURLBasename
	}

	for _, e := range entries {
		if e == nil || e.ID == "" {
			continue
		}
		v := domain.Video{
			ID:           e.ID,
			Title:        e.Title,
			Uploader:     e.Uploader,
			ThumbnailURL: e.Thumbnail,
			SourceURL:    domain.VideoURL(e.ID),
		}
		if v.Title == "" {
			v.Title = "Unknown"
		}
		if v.Uploader == "" {
			v.Uploader = e.Channel
		}
		if v.ThumbnailURL == "" && len(e.Thumbs) > 0 {
			v.ThumbnailURL = e.Thumbs[len(e.Thumbs)-1].URL
		}
		if e.Duration != nil {
			v.DurationSeconds = *e.Duration
		}
		info.Videos = append(info.Videos, v)
	}
	return info, nil
}

// listWithLibrary lists playlist items through the pure-Go client
func listWithLibrary(ctx context.Context, playlistID string) ([]domain.Video, error) {
	items, err := ytdlp.New().GetPlaylistItemsAll(ctx, playlistID, 0)
	if err != nil {
		return nil, err
	}
	videos := make([]domain.Video, 0, len(items))
	for _, it := range items {
		if it.VideoID == "" {
			continue
		}
		videos = append(videos, domain.Video{
			ID:        it.VideoID,
			Title:     it.Title,
			SourceURL: domain.VideoURL(it.VideoID),
		})
	}
	return videos, nil
}

// scrapeTitle reads og:title, falling back to <title>
func (f *YTDLPPlaylistFetcher) scrapeTitle(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept-Language", "en-US,en;q=0.8")
	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", err
	}
	return ExtractPageTitle(doc), nil
}

// ExtractPageTitle picks the best display title from a parsed page
func ExtractPageTitle(doc *goquery.Document) string {
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && strings.TrimSpace(og) != "" {
		return strings.TrimSpace(og)
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	return strings.TrimSpace(strings.TrimSuffix(title, "- YouTube"))
}

func listParam(sourceURL string) string {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return ""
	}
	return u.Query().Get("list")
}
