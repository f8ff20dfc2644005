package app

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/yourusername/yt-sync-go/internal/domain"
	apperrors "github.com/yourusername/yt-sync-go/pkg/errors"
	"github.com/yourusername/yt-sync-go/pkg/logger"
)

// DefaultLogTailLines is how many output lines a job keeps
const DefaultLogTailLines = 60

// JobObserver receives pool-level signals that are not job transitions
type JobObserver interface {
	JobCoalesced()
	SetWorkerLimit(n int)
}

// JobManager runs download jobs on a bounded, resizable worker pool.
// Jobs start in FIFO order and identical requests share one job.
type JobManager struct {
	catalog  *Catalog
	acquirer domain.Acquirer
	events   JobEventPublisher
	observer JobObserver
	log      *logger.LoggerAdapter
	logTail  int

	// pubMu is taken before mu is released so events leave in the order
	// their transitions happened.
	pubMu      sync.Mutex
	settingsMu sync.Mutex

	mu      sync.Mutex
	jobs    map[string]*domain.Job
	order   []string
	queue   []string
	active  map[domain.JobKey]string
	running int
	limit   int
	started bool
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// JobManagerOptions configures a JobManager
type JobManagerOptions struct {
	Events       JobEventPublisher
	Observer     JobObserver
	Logger       *logger.LoggerAdapter
	LogTailLines int
}

// NewJobManager creates a job manager sized from the catalog settings
func NewJobManager(catalog *Catalog, acquirer domain.Acquirer, opts JobManagerOptions) *JobManager {
	log := opts.Logger
	if log == nil {
		log = logger.NewNopAdapter()
	}
	tail := opts.LogTailLines
	if tail <= 0 {
		tail = DefaultLogTailLines
	}

	m := &JobManager{
		catalog:  catalog,
		acquirer: acquirer,
		events:   opts.Events,
		observer: opts.Observer,
		log:      log,
		logTail:  tail,
		jobs:     make(map[string]*domain.Job),
		active:   make(map[domain.JobKey]string),
		limit:    domain.ClampThreadCount(catalog.Settings().ThreadCount),
	}
	if m.observer != nil {
		m.observer.SetWorkerLimit(m.limit)
	}
	return m
}

// Start begins picking up queued jobs
func (m *JobManager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return fmt.Errorf("job manager already running")
	}
	m.started = true
	m.stopped = false
	m.ctx, m.cancel = context.WithCancel(ctx)
	events := m.scheduleLocked()
	limit := m.limit
	m.log.LogQueueEvent("queue_started", zap.Int("threads", limit))
	m.unlockAndPublish(events)
	return nil
}

// Stop prevents new pickups, cancels running downloads and waits for
// workers until ctx expires
func (m *JobManager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return fmt.Errorf("job manager not running")
	}
	m.started = false
	m.stopped = true
	m.cancel()
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.log.LogQueueEvent("queue_stopped")
		return nil
	case <-ctx.Done():
		m.log.LogQueueEvent("queue_stopped", zap.String("reason", "timeout"))
		return fmt.Errorf("workers did not stop in time: %w", ctx.Err())
	}
}

// IsRunning reports whether the pool is picking up jobs
func (m *JobManager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// Enqueue queues a download and returns its job id. A matching queued or
// running job is reused instead of creating a new one.
func (m *JobManager) Enqueue(playlistID, videoID, quality string, audioOnly bool) (string, error) {
	q, err := domain.ParseQuality(quality)
	if err != nil {
		return "", apperrors.BadRequest("%s", err.Error())
	}
	video, err := m.catalog.Video(playlistID, videoID)
	if err != nil {
		return "", err
	}
	outputDir := filepath.Join(m.catalog.Settings().DownloadDir, playlistID)

	m.mu.Lock()
	id, events := m.enqueueLocked(playlistID, video, q, audioOnly, outputDir)
	m.unlockAndPublish(events)
	return id, nil
}

// EnqueueBatch queues several videos of one playlist. Every id is checked
// before anything is queued.
func (m *JobManager) EnqueueBatch(playlistID string, videoIDs []string, quality string, audioOnly bool) ([]string, error) {
	if len(videoIDs) == 0 {
		return nil, apperrors.BadRequest("video_ids is required")
	}
	q, err := domain.ParseQuality(quality)
	if err != nil {
		return nil, apperrors.BadRequest("%s", err.Error())
	}
	playlist, err := m.catalog.Playlist(playlistID)
	if err != nil {
		return nil, err
	}

	videos := make([]domain.Video, 0, len(videoIDs))
	for _, id := range videoIDs {
		v := playlist.FindVideo(id)
		if v == nil {
			return nil, apperrors.NotFound("video %s not found in playlist %s", id, playlistID)
		}
		videos = append(videos, *v)
	}
	outputDir := filepath.Join(m.catalog.Settings().DownloadDir, playlistID)

	ids := make([]string, 0, len(videos))
	var events []domain.JobEvent
	m.mu.Lock()
	for _, v := range videos {
		id, evs := m.enqueueLocked(playlistID, v, q, audioOnly, outputDir)
		ids = append(ids, id)
		events = append(events, evs...)
	}
	m.unlockAndPublish(events)
	return ids, nil
}

func (m *JobManager) enqueueLocked(playlistID string, video domain.Video, q domain.Quality, audioOnly bool, outputDir string) (string, []domain.JobEvent) {
	key := domain.JobKey{VideoID: video.ID, Quality: q, AudioOnly: audioOnly}
	if id, ok := m.active[key]; ok {
		if m.observer != nil {
			m.observer.JobCoalesced()
		}
		m.log.LogQueueEvent("job_coalesced",
			zap.String("job_id", id),
			zap.String("video_id", video.ID))
		return id, nil
	}

	job := domain.NewJob(playlistID, video.ID, video.Title, q, audioOnly, outputDir)
	m.jobs[job.ID] = job
	m.order = append(m.order, job.ID)
	m.queue = append(m.queue, job.ID)
	m.active[key] = job.ID

	m.log.LogQueueEvent("job_queued",
		zap.String("job_id", job.ID),
		zap.String("playlist_id", playlistID),
		zap.String("video_id", video.ID),
		zap.String("quality", string(q)),
		zap.Bool("audio_only", audioOnly))

	events := []domain.JobEvent{domain.NewJobEvent(domain.EventJobQueued, job.Snapshot())}
	return job.ID, append(events, m.scheduleLocked()...)
}

// scheduleLocked starts queued jobs while there is capacity
func (m *JobManager) scheduleLocked() []domain.JobEvent {
	if !m.started || m.stopped {
		return nil
	}

	var events []domain.JobEvent
	for m.running < m.limit && len(m.queue) > 0 {
		id := m.queue[0]
		m.queue = m.queue[1:]

		job := m.jobs[id]
		if err := job.MarkRunning(); err != nil {
			m.log.LogAppError("Job could not start", zap.String("job_id", id), zap.Error(err))
			continue
		}
		m.running++

		snapshot := job.Snapshot()
		events = append(events, domain.NewJobEvent(domain.EventJobStarted, snapshot))
		m.log.LogQueueEvent("job_started",
			zap.String("job_id", id),
			zap.String("video_id", job.VideoID))

		m.wg.Add(1)
		go m.run(m.ctx, snapshot)
	}
	return events
}

func (m *JobManager) run(ctx context.Context, job domain.Job) {
	defer m.wg.Done()

	// The playlist may have been deleted or the video removed while queued.
	if _, err := m.catalog.Video(job.PlaylistID, job.VideoID); err != nil {
		m.finish(job.ID, "", err)
		return
	}

	result, runErr := m.acquire(ctx, job)

	outcome := DownloadOutcome{Quality: job.Quality, AudioOnly: job.AudioOnly}
	if runErr == nil {
		outcome.Success = true
		outcome.FilePath = result.FilePath
	}

	recErr := m.catalog.RecordDownloadResult(job.VideoID, outcome)
	switch {
	case recErr == nil:
	case runErr == nil:
		if apperrors.IsNotFound(recErr) {
			m.catalog.deleteMedia(outcome.FilePath)
		}
		runErr = recErr
		outcome.FilePath = ""
	case !apperrors.IsNotFound(recErr):
		m.log.LogAppError("Failed to record download failure",
			zap.String("job_id", job.ID),
			zap.String("video_id", job.VideoID),
			zap.Error(recErr))
		runErr = fmt.Errorf("%v; failed to record result: %v", runErr, recErr)
	}

	m.finish(job.ID, outcome.FilePath, runErr)
}

func (m *JobManager) acquire(ctx context.Context, job domain.Job) (result *domain.AcquireResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			m.log.LogAppError("Job panicked",
				zap.String("job_id", job.ID),
				zap.Any("panic", r))
			result = nil
			err = fmt.Errorf("internal error: %v", r)
		}
	}()

	req := domain.AcquireRequest{
		JobID:          job.ID,
		VideoID:        job.VideoID,
		SourceURL:      domain.VideoURL(job.VideoID),
		Quality:        job.Quality,
		AudioOnly:      job.AudioOnly,
		DestinationDir: job.OutputDir,
	}
	result, err = m.acquirer.Acquire(ctx, req, func(u domain.ProgressUpdate) {
		m.onProgress(job.ID, u)
	})
	if err == nil && (result == nil || result.FilePath == "") {
		err = fmt.Errorf("download produced no file")
	}
	return result, err
}

func (m *JobManager) onProgress(id string, u domain.ProgressUpdate) {
	m.mu.Lock()
	job, ok := m.jobs[id]
	if !ok || job.State != domain.JobRunning {
		m.mu.Unlock()
		return
	}
	job.ApplyProgress(u, m.logTail)
	m.unlockAndPublish([]domain.JobEvent{domain.NewJobEvent(domain.EventJobProgress, job.Snapshot())})
}

func (m *JobManager) finish(id, filePath string, runErr error) {
	m.mu.Lock()
	job := m.jobs[id]
	eventType := domain.EventJobDone
	if runErr != nil {
		eventType = domain.EventJobFailed
		_ = job.MarkFailed(runErr)
	} else {
		_ = job.MarkDone(filePath)
	}
	delete(m.active, job.Key())
	m.running--
	events := []domain.JobEvent{domain.NewJobEvent(eventType, job.Snapshot())}
	events = append(events, m.scheduleLocked()...)

	if runErr != nil {
		m.log.LogQueueEvent("job_failed",
			zap.String("job_id", id),
			zap.String("video_id", job.VideoID),
			zap.Error(runErr))
	} else {
		m.log.LogQueueEvent("job_done",
			zap.String("job_id", id),
			zap.String("video_id", job.VideoID),
			zap.String("file_path", filePath))
	}
	m.unlockAndPublish(events)
}

// Cancel removes a job that has not started yet
func (m *JobManager) Cancel(id string) error {
	m.mu.Lock()
	job, ok := m.jobs[id]
	if !ok {
		m.mu.Unlock()
		return apperrors.NotFound("job %s not found", id)
	}
	if job.State != domain.JobQueued {
		m.mu.Unlock()
		return apperrors.Conflict("job %s is %s and cannot be cancelled", id, job.State)
	}

	m.queue = removeID(m.queue, id)
	m.order = removeID(m.order, id)
	delete(m.jobs, id)
	delete(m.active, job.Key())
	m.log.LogQueueEvent("job_cancelled", zap.String("job_id", id))
	m.unlockAndPublish([]domain.JobEvent{domain.NewJobEvent(domain.EventJobCancelled, job.Snapshot())})
	return nil
}

// ClearFinished drops done and failed jobs from the table
func (m *JobManager) ClearFinished() int {
	m.mu.Lock()
	var events []domain.JobEvent
	kept := m.order[:0]
	for _, id := range m.order {
		job := m.jobs[id]
		if job.IsTerminal() {
			events = append(events, domain.NewJobEvent(domain.EventJobsCleared, job.Snapshot()))
			delete(m.jobs, id)
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
	if len(events) > 0 {
		m.log.LogQueueEvent("jobs_cleared", zap.Int("count", len(events)))
	}
	m.unlockAndPublish(events)
	return len(events)
}

// Resize changes the pool size. Running jobs are not interrupted.
func (m *JobManager) Resize(n int) int {
	n = domain.ClampThreadCount(n)

	m.mu.Lock()
	m.limit = n
	events := m.scheduleLocked()
	if m.observer != nil {
		m.observer.SetWorkerLimit(n)
	}
	m.log.LogQueueEvent("pool_resized", zap.Int("threads", n))
	m.unlockAndPublish(events)
	return n
}

// ApplySettings persists a settings patch and resizes the pool to match.
// Concurrent calls are serialized so the pool size follows the last
// persisted thread count.
func (m *JobManager) ApplySettings(patch domain.SettingsPatch) (domain.Settings, error) {
	m.settingsMu.Lock()
	defer m.settingsMu.Unlock()

	settings, err := m.catalog.UpdateSettings(patch)
	if err != nil {
		return settings, err
	}
	if patch.ThreadCount != nil {
		m.Resize(settings.ThreadCount)
	}
	return settings, nil
}

// List returns job snapshots in enqueue order
func (m *JobManager) List() []domain.Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	positions := m.queuePositionsLocked()
	jobs := make([]domain.Job, 0, len(m.order))
	for _, id := range m.order {
		s := m.jobs[id].Snapshot()
		s.QueuePosition = positions[id]
		jobs = append(jobs, s)
	}
	return jobs
}

// Get returns one job snapshot
func (m *JobManager) Get(id string) (domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return domain.Job{}, apperrors.NotFound("job %s not found", id)
	}
	s := job.Snapshot()
	s.QueuePosition = m.queuePositionsLocked()[id]
	return s, nil
}

// Stats returns counts per state and the pool size
func (m *JobManager) Stats() domain.JobStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := domain.JobStats{Total: len(m.jobs), Threads: m.limit}
	for _, job := range m.jobs {
		switch job.State {
		case domain.JobQueued:
			stats.Queued++
		case domain.JobRunning:
			stats.Running++
		case domain.JobDone:
			stats.Done++
		case domain.JobFailed:
			stats.Failed++
		}
	}
	return stats
}

func (m *JobManager) queuePositionsLocked() map[string]int {
	positions := make(map[string]int, len(m.queue))
	for i, id := range m.queue {
		positions[id] = i + 1
	}
	return positions
}

// unlockAndPublish releases mu and publishes events. Holding pubMu across
// the handoff keeps publication in transition order.
func (m *JobManager) unlockAndPublish(events []domain.JobEvent) {
	m.pubMu.Lock()
	m.mu.Unlock()
	defer m.pubMu.Unlock()

	if m.events == nil {
		return
	}
	for _, e := range events {
		m.events.Publish(e)
	}
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
