package infrastructure

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/yourusername/yt-sync-go/internal/domain"
	apperrors "github.com/yourusername/yt-sync-go/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// MaxPrefetch caps the ids accepted by one prefetch request
const MaxPrefetch = 50

// maxThumbnailBytes bounds a single upstream image
const maxThumbnailBytes = 2 << 20

// ThumbnailCache serves video thumbnails from a local directory,
// fetching misses from the upstream image host.
type ThumbnailCache struct {
	dir     string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewThumbnailCache creates a cache rooted at dir
func NewThumbnailCache(dir string, cfg *domain.ThumbnailConfig, logger *zap.Logger) *ThumbnailCache {
	ctx, cancel := context.WithCancel(context.Background())
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &ThumbnailCache{
		dir:     dir,
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger.Named("thumbs"),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Path returns the cache file for a video id
func (c *ThumbnailCache) Path(videoID string) string {
	return filepath.Join(c.dir, videoID+".jpg")
}

// Get returns the JPEG bytes for videoID, fetching on a cache miss
func (c *ThumbnailCache) Get(ctx context.Context, videoID string) ([]byte, error) {
	if !domain.IsValidMediaID(videoID) {
		return nil, apperrors.BadRequest("invalid video id %q", videoID)
	}

	if data, err := os.ReadFile(c.Path(videoID)); err == nil {
		return data, nil
	}

	data, err := c.fetch(ctx, videoID)
	if err != nil {
		c.logger.Debug("thumbnail fetch failed", zap.String("video_id", videoID), zap.Error(err))
		return nil, apperrors.NotFound("thumbnail for %s unavailable", videoID)
	}
	return data, nil
}

// Prefetch warms the cache in the background and returns the ids accepted
func (c *ThumbnailCache) Prefetch(videoIDs []string) []string {
	var accepted []string
	for _, id := range videoIDs {
		if len(accepted) == MaxPrefetch {
			break
		}
		if !domain.IsValidMediaID(id) || fileExists(c.Path(id)) {
			continue
		}
		accepted = append(accepted, id)
	}

	for _, id := range accepted {
		c.wg.Add(1)
		go func(id string) {
			defer c.wg.Done()
			if _, err := c.fetch(c.ctx, id); err != nil {
				c.logger.Debug("thumbnail prefetch failed", zap.String("video_id", id), zap.Error(err))
			}
		}(id)
	}
	return accepted
}

// Close cancels outstanding prefetches and waits for them
func (c *ThumbnailCache) Close() {
	c.cancel()
	c.wg.Wait()
}

func (c *ThumbnailCache) fetch(ctx context.Context, videoID string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/%s/mqdefault.jpg", c.baseURL, videoID), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream returned %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxThumbnailBytes))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty thumbnail")
	}

	if err := WriteFileAtomic(c.Path(videoID), data, 0644); err != nil {
		return nil, fmt.Errorf("failed to cache thumbnail: %w", err)
	}
	return data, nil
}
