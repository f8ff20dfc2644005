package app

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/yourusername/yt-sync-go/pkg/errors"
	"github.com/yourusername/yt-sync-go/pkg/logger"
)

var contentTypes = map[string]string{
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
}

// ContentTypeFor maps a media file name to its MIME type
func ContentTypeFor(path string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// MediaResolver maps a playlist entry to its downloaded file
type MediaResolver interface {
	ResolveMedia(playlistID, videoID string) (string, error)
}

// StreamResponse is a resolved media response. Body is nil for 416.
type StreamResponse struct {
	Status        int
	Header        http.Header
	ContentLength int64
	ModTime       time.Time
	Body          io.ReadCloser
}

// StreamEngine serves downloaded media with HTTP Range support
type StreamEngine struct {
	resolver MediaResolver
	log      *logger.LoggerAdapter
}

// NewStreamEngine creates a stream engine
func NewStreamEngine(resolver MediaResolver, log *logger.LoggerAdapter) *StreamEngine {
	if log == nil {
		log = logger.NewNopAdapter()
	}
	return &StreamEngine{resolver: resolver, log: log}
}

type sectionBody struct {
	*io.SectionReader
	file *os.File
}

func (b *sectionBody) Close() error {
	return b.file.Close()
}

// Serve opens the media of a downloaded video. The caller must close Body.
func (s *StreamEngine) Serve(playlistID, videoID, rangeHeader string) (*StreamResponse, error) {
	path, err := s.resolver.ResolveMedia(playlistID, videoID)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NotFound("media for video %s is missing", videoID)
		}
		return nil, apperrors.IO("failed to open media", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, apperrors.IO("failed to stat media", err)
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, apperrors.NotFound("media for video %s is missing", videoID)
	}

	size := info.Size()
	header := http.Header{}
	header.Set("Accept-Ranges", "bytes")
	header.Set("Content-Type", ContentTypeFor(path))

	resp := &StreamResponse{Header: header, ModTime: info.ModTime()}

	if strings.TrimSpace(rangeHeader) == "" {
		resp.Status = http.StatusOK
		resp.ContentLength = size
		resp.Body = &sectionBody{SectionReader: io.NewSectionReader(f, 0, size), file: f}
		header.Set("Content-Length", strconv.FormatInt(size, 10))
		return resp, nil
	}

	r, err := ParseRange(rangeHeader, size)
	if err != nil {
		f.Close()
		s.log.General().Debug("Range rejected",
			zap.String("video_id", videoID),
			zap.String("range", rangeHeader),
			zap.Error(err))
		resp.Status = http.StatusRequestedRangeNotSatisfiable
		header.Set("Content-Range", UnsatisfiedContentRange(size))
		header.Del("Content-Type")
		return resp, nil
	}

	resp.Status = http.StatusPartialContent
	resp.ContentLength = r.Length()
	resp.Body = &sectionBody{SectionReader: io.NewSectionReader(f, r.Start, r.Length()), file: f}
	header.Set("Content-Range", r.ContentRange(size))
	header.Set("Content-Length", strconv.FormatInt(r.Length(), 10))
	return resp, nil
}
