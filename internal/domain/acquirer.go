package domain

import (
	"context"
	"fmt"
)

// AcquireRequest describes one download to perform
type AcquireRequest struct {
	JobID          string
	VideoID        string
	SourceURL      string
	Quality        Quality
	AudioOnly      bool
	DestinationDir string
}

// AcquireResult is the outcome of a successful acquisition
type AcquireResult struct {
	FilePath string
}

// ProgressUpdate is one parsed line of acquisition tool output
type ProgressUpdate struct {
	Line       string
	Phase      JobPhase
	HasPercent bool
	Percent    float64
	Size       string
	Speed      string
	ETA        string
}

// ProgressFunc receives progress updates while a download runs
type ProgressFunc func(ProgressUpdate)

// Acquirer wraps the external download and transcoding tools.
// Implementations must not retry, cache, or touch the catalog.
type Acquirer interface {
	Acquire(ctx context.Context, req AcquireRequest, progress ProgressFunc) (*AcquireResult, error)
}

// FailureKind classifies an acquisition failure
type FailureKind string

const (
	FailureToolNotFound      FailureKind = "tool_not_found"
	FailureNetwork           FailureKind = "network_failure"
	FailureUnsupportedFormat FailureKind = "unsupported_format"
	FailureProcess           FailureKind = "process_error"
)

// AcquireError is a typed acquisition failure
type AcquireError struct {
	Kind     FailureKind
	ExitCode int
	Message  string
	Err      error
}

// Error returns a human-readable message
func (e *AcquireError) Error() string {
	switch e.Kind {
	case FailureProcess:
		return fmt.Sprintf("%s (exit %d): %s", e.Kind, e.ExitCode, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

// Unwrap returns the underlying error
func (e *AcquireError) Unwrap() error {
	return e.Err
}

// PlaylistFetcher resolves a playlist or video URL into metadata
type PlaylistFetcher interface {
	Fetch(ctx context.Context, url string) (*PlaylistInfo, error)
}
