package infrastructure

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/yourusername/yt-sync-go/internal/domain"
	"github.com/yourusername/yt-sync-go/pkg/logger"
	"go.uber.org/zap"
)

// formatSelectors maps a quality to a yt-dlp -f expression
var formatSelectors = map[domain.Quality]string{
	domain.QualityBest:  "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best",
	domain.Quality1080p: "bestvideo[height<=1080][ext=mp4]+bestaudio[ext=m4a]/best[height<=1080]",
	domain.Quality720p:  "bestvideo[height<=720][ext=mp4]+bestaudio[ext=m4a]/best[height<=720]",
	domain.Quality480p:  "bestvideo[height<=480][ext=mp4]+bestaudio[ext=m4a]/best[height<=480]",
	domain.Quality360p:  "bestvideo[height<=360][ext=mp4]+bestaudio[ext=m4a]/best[height<=360]",
}

// mediaExtensions are the output files accepted when the destination line is missing
var mediaExtensions = map[string]bool{
	".mp4": true, ".mp3": true, ".webm": true, ".mkv": true, ".m4a": true,
}

var (
	progressPattern    = regexp.MustCompile(`\[download\]\s+([\d.]+)%\s+of\s+~?\s*([\d.]+\s*\S+)\s+at\s+([\d.]+\s*\S+/s)\s+ETA\s+([\d:]+)`)
	destinationPattern = regexp.MustCompile(`(?:Destination:|Merging formats into)\s+"?([^"\n]+)"?`)
	alreadyHavePattern = regexp.MustCompile(`\[download\]\s+(.+?)\s+has already been downloaded`)
)

var (
	networkMarkers = []string{
		"unable to download webpage",
		"timed out",
		"temporary failure in name resolution",
		"connection reset",
		"network is unreachable",
		"http error 5",
	}
	unsupportedMarkers = []string{
		"requested format is not available",
		"unsupported url",
		"no video formats found",
	}
)

// YTDLPAcquirer implements domain.Acquirer by shelling out to yt-dlp
type YTDLPAcquirer struct {
	config      *domain.ToolsConfig
	logsDir     string
	eventLogger *logger.MultiLogger // For structured events only (LogAppError)
	lookPath    func(string) (string, error)
}

// NewYTDLPAcquirer creates a new yt-dlp acquirer
func NewYTDLPAcquirer(config *domain.ToolsConfig, logsDir string, eventLogger *logger.MultiLogger) *YTDLPAcquirer {
	return &YTDLPAcquirer{
		config:      config,
		logsDir:     logsDir,
		eventLogger: eventLogger,
		lookPath:    exec.LookPath,
	}
}

// Available reports whether the yt-dlp binary can be found
func (a *YTDLPAcquirer) Available() bool {
	_, err := a.lookPath(a.config.YTDLPBinary)
	return err == nil
}

// BuildArgs builds the yt-dlp argument list for a request.
// exec.Command passes args directly to the process, no shell quoting needed.
func (a *YTDLPAcquirer) BuildArgs(req domain.AcquireRequest) []string {
	args := []string{"--no-playlist"}

	if req.AudioOnly {
		args = append(args, "-x", "--audio-format", "mp3", "--audio-quality", "0")
	} else {
		selector, ok := formatSelectors[req.Quality]
		if !ok {
			selector = formatSelectors[domain.QualityBest]
		}
		args = append(args, "-f", selector, "--merge-output-format", "mp4")
	}

	if a.config.FFmpegLocation != "" {
		args = append(args, "--ffmpeg-location", a.config.FFmpegLocation)
	}

	sourceURL := req.SourceURL
	if sourceURL == "" {
		sourceURL = domain.VideoURL(req.VideoID)
	}

	args = append(args,
		"-o", filepath.Join(req.DestinationDir, "%(title)s [%(id)s] ["+outputTag(req)+"].%(ext)s"),
		"--write-info-json",
		"--no-write-playlist-metafiles",
		"--progress",
		"--newline",
		sourceURL,
	)
	return args
}

// outputTag names the variant in the output file so different qualities of
// one video never share a path
func outputTag(req domain.AcquireRequest) string {
	if req.AudioOnly {
		return "audio"
	}
	if _, ok := formatSelectors[req.Quality]; !ok {
		return string(domain.QualityBest)
	}
	return string(req.Quality)
}

// Acquire runs yt-dlp for one video and returns the produced file
func (a *YTDLPAcquirer) Acquire(ctx context.Context, req domain.AcquireRequest, progress domain.ProgressFunc) (*domain.AcquireResult, error) {
	if progress == nil {
		progress = func(domain.ProgressUpdate) {}
	}

	binary, err := a.lookPath(a.config.YTDLPBinary)
	if err != nil {
		return nil, &domain.AcquireError{
			Kind:    domain.FailureToolNotFound,
			Message: fmt.Sprintf("%s not found in PATH", a.config.YTDLPBinary),
			Err:     err,
		}
	}

	if err := os.MkdirAll(req.DestinationDir, 0755); err != nil {
		return nil, &domain.AcquireError{
			Kind:     domain.FailureProcess,
			ExitCode: -1,
			Message:  fmt.Sprintf("failed to create destination directory: %v", err),
			Err:      err,
		}
	}

	args := a.BuildArgs(req)

	downloadLog, err := a.openLogFile()
	if err != nil {
		return nil, &domain.AcquireError{Kind: domain.FailureProcess, ExitCode: -1, Message: err.Error(), Err: err}
	}
	defer downloadLog.Close()

	cmdLine := ShellEscapeCommand(binary, args...)
	a.writeLogHeader(downloadLog, req.JobID, cmdLine)

	// stdout and stderr share one pipe, like cmd 2>&1
	cmd := exec.CommandContext(ctx, binary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		a.writeLogFooter(downloadLog, false, err.Error())
		return nil, &domain.AcquireError{Kind: domain.FailureProcess, ExitCode: -1, Message: err.Error(), Err: err}
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		a.writeLogFooter(downloadLog, false, err.Error())
		return nil, &domain.AcquireError{Kind: domain.FailureProcess, ExitCode: -1, Message: err.Error(), Err: err}
	}

	var (
		phase       = domain.PhaseStarting
		destination string
		tail        []string
	)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		fmt.Fprintln(downloadLog, line)

		update := ParseProgressLine(line, phase)
		if update.Phase != "" {
			phase = update.Phase
		}
		progress(update)

		if dest := ParseDestination(line); dest != "" {
			destination = dest
		}

		if strings.TrimSpace(line) != "" {
			tail = append(tail, line)
			if len(tail) > 20 {
				tail = tail[1:]
			}
		}
	}

	if err := scanner.Err(); err != nil {
		// keep the pipe drained so the process can exit
		_, _ = io.Copy(downloadLog, stdout)
	}

	waitErr := cmd.Wait()

	if waitErr != nil {
		acqErr := a.classifyFailure(ctx, waitErr, tail)
		a.writeLogFooter(downloadLog, false, acqErr.Error())
		return nil, acqErr
	}

	filePath := a.resolveOutputFile(destination, req)
	if filePath == "" {
		acqErr := &domain.AcquireError{
			Kind:     domain.FailureProcess,
			ExitCode: 0,
			Message:  "yt-dlp exited successfully but no output file was found",
		}
		a.writeLogFooter(downloadLog, false, acqErr.Message)
		return nil, acqErr
	}

	a.writeLogFooter(downloadLog, true, fmt.Sprintf("Downloaded: %s", filePath))
	return &domain.AcquireResult{FilePath: filePath}, nil
}

// classifyFailure turns a non-zero exit into a typed failure
func (a *YTDLPAcquirer) classifyFailure(ctx context.Context, waitErr error, tail []string) *domain.AcquireError {
	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		exitCode = exitErr.ExitCode()
	}

	if ctx.Err() != nil {
		return &domain.AcquireError{
			Kind:     domain.FailureProcess,
			ExitCode: exitCode,
			Message:  "download interrupted",
			Err:      ctx.Err(),
		}
	}

	hint := "yt-dlp error"
	for i := len(tail) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(tail[i]); s != "" {
			hint = s
			break
		}
	}

	return &domain.AcquireError{
		Kind:     ClassifyOutput(tail),
		ExitCode: exitCode,
		Message:  hint,
		Err:      waitErr,
	}
}

// resolveOutputFile returns the parsed destination if present, else the newest media file for the video
func (a *YTDLPAcquirer) resolveOutputFile(destination string, req domain.AcquireRequest) string {
	if destination != "" {
		if !filepath.IsAbs(destination) {
			destination = filepath.Join(req.DestinationDir, destination)
		}
		if nonEmptyFile(destination) {
			return destination
		}
	}

	files, err := findMediaFiles(req.DestinationDir, req.VideoID, outputTag(req))
	if err != nil {
		if a.eventLogger != nil {
			a.eventLogger.LogAppError("Failed to scan destination directory",
				zap.String("dir", req.DestinationDir), zap.Error(err))
		}
		return ""
	}
	for _, f := range files {
		if nonEmptyFile(f) {
			return f
		}
	}
	return ""
}

// findMediaFiles lists media files named for videoID and tag, newest first
func findMediaFiles(dir, videoID, tag string) ([]string, error) {
	pattern := "*" + escapeGlob("["+videoID+"] ["+tag+"]") + "*"
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, err
	}

	type candidate struct {
		path    string
		modTime time.Time
	}
	var candidates []candidate
	for _, m := range matches {
		if !mediaExtensions[strings.ToLower(filepath.Ext(m))] {
			continue
		}
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		candidates = append(candidates, candidate{path: m, modTime: info.ModTime()})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].modTime.After(candidates[j].modTime)
	})

	files := make([]string, len(candidates))
	for i, c := range candidates {
		files[i] = c.path
	}
	return files, nil
}

func escapeGlob(s string) string {
	r := strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
	return r.Replace(s)
}

// ParseProgressLine extracts diagnostics from one line of yt-dlp output
func ParseProgressLine(line string, current domain.JobPhase) domain.ProgressUpdate {
	update := domain.ProgressUpdate{Line: line}

	if m := progressPattern.FindStringSubmatch(line); m != nil {
		if pct, err := strconv.ParseFloat(m[1], 64); err == nil {
			update.HasPercent = true
			update.Percent = pct
			update.Size = strings.TrimSpace(m[2])
			update.Speed = strings.TrimSpace(m[3])
			update.ETA = strings.TrimSpace(m[4])
		}
	}

	lower := strings.ToLower(line)
	if strings.Contains(line, "[download]") {
		switch {
		case strings.Contains(lower, "audio"):
			update.Phase = domain.PhaseAudio
		case strings.Contains(lower, "video"):
			update.Phase = domain.PhaseVideo
		case update.HasPercent && (current == domain.PhaseStarting || current == domain.PhaseQueued):
			update.Phase = domain.PhaseDownloading
		}
	}
	if strings.Contains(lower, "[merger]") {
		update.Phase = domain.PhaseMerging
	}
	if strings.Contains(lower, "[extractaudio]") {
		update.Phase = domain.PhaseConverting
	}

	return update
}

// ParseDestination returns the output path announced on a line, if any
func ParseDestination(line string) string {
	if m := destinationPattern.FindStringSubmatch(line); m != nil {
		return strings.Trim(strings.TrimSpace(m[1]), `"'`)
	}
	if m := alreadyHavePattern.FindStringSubmatch(line); m != nil {
		return strings.Trim(strings.TrimSpace(m[1]), `"'`)
	}
	return ""
}

// ClassifyOutput maps the tail of yt-dlp output to a failure kind
func ClassifyOutput(lines []string) domain.FailureKind {
	text := strings.ToLower(strings.Join(lines, "\n"))
	for _, marker := range unsupportedMarkers {
		if strings.Contains(text, marker) {
			return domain.FailureUnsupportedFormat
		}
	}
	for _, marker := range networkMarkers {
		if strings.Contains(text, marker) {
			return domain.FailureNetwork
		}
	}
	return domain.FailureProcess
}

// openLogFile opens the download log file for today.
// All output (stdout and stderr) goes to this single file.
func (a *YTDLPAcquirer) openLogFile() (*os.File, error) {
	if err := os.MkdirAll(a.logsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	dateStr := time.Now().Format("20060102")
	downloadPath := filepath.Join(a.logsDir, "download-"+dateStr+".log")
	return os.OpenFile(downloadPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

// writeLogHeader writes the download start marker
func (a *YTDLPAcquirer) writeLogHeader(file *os.File, jobID, cmdLine string) {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	fmt.Fprintf(file, "\n=== [%s] Job: %s ===\n", timestamp, jobID)
	fmt.Fprintf(file, "$ %s\n", cmdLine)
}

// writeLogFooter writes the download end marker
func (a *YTDLPAcquirer) writeLogFooter(file *os.File, success bool, message string) {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	status := "SUCCESS"
	if !success {
		status = "FAILED"
	}
	fmt.Fprintf(file, "[%s] %s: %s\n", timestamp, status, message)
	file.WriteString("=== END ===\n\n")
}
