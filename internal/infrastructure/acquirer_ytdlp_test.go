package infrastructure

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/yt-sync-go/internal/domain"
)

func newTestAcquirer(t *testing.T, binary string) *YTDLPAcquirer {
	t.Helper()
	return NewYTDLPAcquirer(&domain.ToolsConfig{YTDLPBinary: binary}, t.TempDir(), nil)
}

// writeFakeTool writes an executable shell script standing in for yt-dlp
func writeFakeTool(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fixtures need a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "yt-dlp")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755))
	return path
}

func TestYTDLPAcquirer_BuildArgs(t *testing.T) {
	a := newTestAcquirer(t, "yt-dlp")

	t.Run("video at quality", func(t *testing.T) {
		args := a.BuildArgs(domain.AcquireRequest{VideoID: "abc", Quality: domain.Quality720p, DestinationDir: "/media/PL1"})

		assert.Equal(t, "--no-playlist", args[0])
		assert.Contains(t, args, "-f")
		assert.Contains(t, args, formatSelectors[domain.Quality720p])
		assert.Contains(t, args, "--merge-output-format")
		assert.NotContains(t, args, "-x")
		assert.Contains(t, args, filepath.Join("/media/PL1", "%(title)s [%(id)s] [720p].%(ext)s"))
		assert.Equal(t, domain.VideoURL("abc"), args[len(args)-1])
	})

	t.Run("audio only", func(t *testing.T) {
		args := a.BuildArgs(domain.AcquireRequest{VideoID: "abc", AudioOnly: true, DestinationDir: "/m"})

		assert.Contains(t, args, "-x")
		assert.Contains(t, args, "mp3")
		assert.NotContains(t, args, "-f")
		assert.Contains(t, args, filepath.Join("/m", "%(title)s [%(id)s] [audio].%(ext)s"))
	})

	t.Run("unknown quality falls back to best", func(t *testing.T) {
		args := a.BuildArgs(domain.AcquireRequest{VideoID: "abc", Quality: "8k", DestinationDir: "/m"})
		assert.Contains(t, args, formatSelectors[domain.QualityBest])
		assert.Contains(t, args, filepath.Join("/m", "%(title)s [%(id)s] [best].%(ext)s"))
	})

	t.Run("ffmpeg location and explicit url", func(t *testing.T) {
		b := NewYTDLPAcquirer(&domain.ToolsConfig{YTDLPBinary: "yt-dlp", FFmpegLocation: "/opt/ffmpeg"}, t.TempDir(), nil)
		args := b.BuildArgs(domain.AcquireRequest{VideoID: "abc", SourceURL: "https://youtu.be/abc", DestinationDir: "/m"})

		assert.Contains(t, args, "--ffmpeg-location")
		assert.Contains(t, args, "/opt/ffmpeg")
		assert.Equal(t, "https://youtu.be/abc", args[len(args)-1])
	})
}

func TestParseProgressLine(t *testing.T) {
	tests := []struct {
		name       string
		line       string
		current    domain.JobPhase
		wantPct    float64
		hasPercent bool
		wantPhase  domain.JobPhase
	}{
		{
			name:       "first percent line",
			line:       "[download]  42.3% of 10.50MiB at 1.20MiB/s ETA 00:05",
			current:    domain.PhaseStarting,
			wantPct:    42.3,
			hasPercent: true,
			wantPhase:  domain.PhaseDownloading,
		},
		{
			name:       "estimated size",
			line:       "[download]   5.0% of ~ 120.00MiB at 3.00MiB/s ETA 01:10",
			current:    domain.PhaseVideo,
			wantPct:    5,
			hasPercent: true,
		},
		{
			name:      "merger",
			line:      `[Merger] Merging formats into "/m/clip.mp4"`,
			current:   domain.PhaseAudio,
			wantPhase: domain.PhaseMerging,
		},
		{
			name:      "extract audio",
			line:      "[ExtractAudio] Destination: /m/clip.mp3",
			current:   domain.PhaseDownloading,
			wantPhase: domain.PhaseConverting,
		},
		{
			name:    "noise",
			line:    "[youtube] abc: Downloading webpage",
			current: domain.PhaseStarting,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := ParseProgressLine(tt.line, tt.current)
			assert.Equal(t, tt.line, u.Line)
			assert.Equal(t, tt.hasPercent, u.HasPercent)
			assert.InDelta(t, tt.wantPct, u.Percent, 0.001)
			assert.Equal(t, tt.wantPhase, u.Phase)
		})
	}

	u := ParseProgressLine("[download]  42.3% of 10.50MiB at 1.20MiB/s ETA 00:05", domain.PhaseStarting)
	assert.Equal(t, "10.50MiB", u.Size)
	assert.Equal(t, "1.20MiB/s", u.Speed)
	assert.Equal(t, "00:05", u.ETA)
}

func TestParseDestination(t *testing.T) {
	assert.Equal(t, "/m/a [abc].f137.mp4", ParseDestination("[download] Destination: /m/a [abc].f137.mp4"))
	assert.Equal(t, "/m/a [abc].mp4", ParseDestination(`[Merger] Merging formats into "/m/a [abc].mp4"`))
	assert.Equal(t, "/m/a [abc].mp4", ParseDestination("[download] /m/a [abc].mp4 has already been downloaded"))
	assert.Empty(t, ParseDestination("[download]  10.0% of 1.00MiB at 1.00MiB/s ETA 00:01"))
}

func TestClassifyOutput(t *testing.T) {
	assert.Equal(t, domain.FailureNetwork, ClassifyOutput([]string{"ERROR: [youtube] abc: Unable to download webpage: <urlopen error timed out>"}))
	assert.Equal(t, domain.FailureUnsupportedFormat, ClassifyOutput([]string{"ERROR: [youtube] abc: Requested format is not available"}))
	assert.Equal(t, domain.FailureProcess, ClassifyOutput([]string{"ERROR: Postprocessing: ffprobe not found"}))
	assert.Equal(t, domain.FailureProcess, ClassifyOutput(nil))
}

func TestYTDLPAcquirer_AcquireSuccess(t *testing.T) {
	tool := writeFakeTool(t, `echo "[youtube] abc: Downloading webpage"
echo "[download] Destination: $FAKE_OUT"
echo "[download]  50.0% of 10.00MiB at 1.00MiB/s ETA 00:05"
printf 'media' > "$FAKE_OUT"
echo "[download] 100% of 10.00MiB at 1.00MiB/s ETA 00:00"
`)
	dest := t.TempDir()
	out := filepath.Join(dest, "Clip [abc].mp4")
	t.Setenv("FAKE_OUT", out)

	a := newTestAcquirer(t, tool)
	require.True(t, a.Available())

	var updates []domain.ProgressUpdate
	res, err := a.Acquire(context.Background(), domain.AcquireRequest{
		JobID: "job-1", VideoID: "abc", Quality: domain.QualityBest, DestinationDir: dest,
	}, func(u domain.ProgressUpdate) { updates = append(updates, u) })

	require.NoError(t, err)
	assert.Equal(t, out, res.FilePath)
	require.Len(t, updates, 4)
	assert.True(t, updates[2].HasPercent)
	assert.InDelta(t, 50.0, updates[2].Percent, 0.001)

	logs, err := filepath.Glob(filepath.Join(a.logsDir, "download-*.log"))
	require.NoError(t, err)
	require.Len(t, logs, 1)
	content, err := os.ReadFile(logs[0])
	require.NoError(t, err)
	assert.Contains(t, string(content), "Job: job-1")
	assert.Contains(t, string(content), "SUCCESS")
}

func TestYTDLPAcquirer_FallsBackToDirectoryScan(t *testing.T) {
	tool := writeFakeTool(t, `printf 'media' > "$FAKE_OUT"
exit 0
`)
	dest := t.TempDir()
	out := filepath.Join(dest, "Some title [xyz] [best].webm")
	t.Setenv("FAKE_OUT", out)

	res, err := newTestAcquirer(t, tool).Acquire(context.Background(),
		domain.AcquireRequest{JobID: "j", VideoID: "xyz", DestinationDir: dest}, nil)
	require.NoError(t, err)
	assert.Equal(t, out, res.FilePath)
}

func TestYTDLPAcquirer_DirectoryScanMatchesVariant(t *testing.T) {
	tool := writeFakeTool(t, `printf 'media' > "$FAKE_OUT"
exit 0
`)
	dest := t.TempDir()
	out := filepath.Join(dest, "Some title [xyz] [720p].mp4")
	t.Setenv("FAKE_OUT", out)

	a := newTestAcquirer(t, tool)
	res, err := a.Acquire(context.Background(),
		domain.AcquireRequest{JobID: "j1", VideoID: "xyz", Quality: domain.Quality720p, DestinationDir: dest}, nil)
	require.NoError(t, err)
	assert.Equal(t, out, res.FilePath)

	// A newer file of another variant is not mistaken for this one.
	other := filepath.Join(dest, "Some title [xyz] [audio].mp3")
	t.Setenv("FAKE_OUT", other)
	res, err = a.Acquire(context.Background(),
		domain.AcquireRequest{JobID: "j2", VideoID: "xyz", AudioOnly: true, DestinationDir: dest}, nil)
	require.NoError(t, err)
	assert.Equal(t, other, res.FilePath)

	files, err := findMediaFiles(dest, "xyz", "720p")
	require.NoError(t, err)
	assert.Equal(t, []string{out}, files)
}

func TestYTDLPAcquirer_AcquireFailures(t *testing.T) {
	t.Run("tool not found", func(t *testing.T) {
		a := newTestAcquirer(t, filepath.Join(t.TempDir(), "missing", "yt-dlp"))
		assert.False(t, a.Available())

		_, err := a.Acquire(context.Background(), domain.AcquireRequest{VideoID: "abc", DestinationDir: t.TempDir()}, nil)
		var acqErr *domain.AcquireError
		require.True(t, errors.As(err, &acqErr))
		assert.Equal(t, domain.FailureToolNotFound, acqErr.Kind)
	})

	t.Run("network failure", func(t *testing.T) {
		tool := writeFakeTool(t, `echo "[youtube] abc: Downloading webpage"
echo "ERROR: [youtube] abc: Unable to download webpage: timed out" >&2
exit 1
`)
		_, err := newTestAcquirer(t, tool).Acquire(context.Background(),
			domain.AcquireRequest{VideoID: "abc", DestinationDir: t.TempDir()}, nil)

		var acqErr *domain.AcquireError
		require.True(t, errors.As(err, &acqErr))
		assert.Equal(t, domain.FailureNetwork, acqErr.Kind)
		assert.Equal(t, 1, acqErr.ExitCode)
		assert.Contains(t, acqErr.Message, "Unable to download webpage")
	})

	t.Run("process error with exit code", func(t *testing.T) {
		tool := writeFakeTool(t, "echo 'ERROR: something odd'\nexit 2\n")
		_, err := newTestAcquirer(t, tool).Acquire(context.Background(),
			domain.AcquireRequest{VideoID: "abc", DestinationDir: t.TempDir()}, nil)

		var acqErr *domain.AcquireError
		require.True(t, errors.As(err, &acqErr))
		assert.Equal(t, domain.FailureProcess, acqErr.Kind)
		assert.Equal(t, 2, acqErr.ExitCode)
	})

	t.Run("success without output", func(t *testing.T) {
		tool := writeFakeTool(t, "exit 0\n")
		_, err := newTestAcquirer(t, tool).Acquire(context.Background(),
			domain.AcquireRequest{VideoID: "abc", DestinationDir: t.TempDir()}, nil)

		var acqErr *domain.AcquireError
		require.True(t, errors.As(err, &acqErr))
		assert.Equal(t, domain.FailureProcess, acqErr.Kind)
		assert.Equal(t, 0, acqErr.ExitCode)
	})

	t.Run("cancelled", func(t *testing.T) {
		tool := writeFakeTool(t, "exec sleep 10\n")
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		start := time.Now()
		_, err := newTestAcquirer(t, tool).Acquire(ctx,
			domain.AcquireRequest{VideoID: "abc", DestinationDir: t.TempDir()}, nil)

		var acqErr *domain.AcquireError
		require.True(t, errors.As(err, &acqErr))
		assert.Equal(t, "download interrupted", acqErr.Message)
		assert.Less(t, time.Since(start), 5*time.Second)
	})
}
