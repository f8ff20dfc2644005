package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/yt-sync-go/internal/domain"
	apperrors "github.com/yourusername/yt-sync-go/pkg/errors"
)

// fakeAcquirer writes a small file per request. Requests block on release
// until it is closed or the context ends.
type fakeAcquirer struct {
	mu         sync.Mutex
	calls      []string
	running    int
	maxRunning int
	release    chan struct{}
	failures   map[string]error
	panics     map[string]bool
	lines      int
}

func newFakeAcquirer(blocked bool) *fakeAcquirer {
	f := &fakeAcquirer{
		release:  make(chan struct{}),
		failures: make(map[string]error),
		panics:   make(map[string]bool),
	}
	if !blocked {
		close(f.release)
	}
	return f
}

func (f *fakeAcquirer) Acquire(ctx context.Context, req domain.AcquireRequest, progress domain.ProgressFunc) (*domain.AcquireResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req.VideoID)
	f.running++
	if f.running > f.maxRunning {
		f.maxRunning = f.running
	}
	fail := f.failures[req.VideoID]
	shouldPanic := f.panics[req.VideoID]
	lines := f.lines
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.running--
		f.mu.Unlock()
	}()

	for i := 0; i < lines; i++ {
		progress(domain.ProgressUpdate{
			Line:       fmt.Sprintf("[download] %d.0%% of 10.00MiB", i),
			HasPercent: true,
			Percent:    float64(i),
			Phase:      domain.PhaseDownloading,
		})
	}

	select {
	case <-f.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if shouldPanic {
		panic("tool exploded")
	}
	if fail != nil {
		return nil, fail
	}

	if err := os.MkdirAll(req.DestinationDir, 0755); err != nil {
		return nil, err
	}
	path := filepath.Join(req.DestinationDir, req.VideoID+".mp4")
	if err := os.WriteFile(path, []byte("data:"+req.VideoID), 0644); err != nil {
		return nil, err
	}
	return &domain.AcquireResult{FilePath: path}, nil
}

func (f *fakeAcquirer) callOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAcquirer) peak() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxRunning
}

// recordingPublisher captures events synchronously
type recordingPublisher struct {
	mu      sync.Mutex
	events  []domain.JobEvent
	onEvent func(domain.JobEvent)
}

func (p *recordingPublisher) Publish(e domain.JobEvent) {
	if p.onEvent != nil {
		p.onEvent(e)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) types(jobID string) []domain.JobEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	var types []domain.JobEventType
	for _, e := range p.events {
		if e.Job.ID == jobID && e.Type != domain.EventJobProgress {
			types = append(types, e.Type)
		}
	}
	return types
}

// countingObserver implements JobObserver
type countingObserver struct {
	mu        sync.Mutex
	coalesced int
	limit     int
}

func (o *countingObserver) JobCoalesced() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.coalesced++
}

func (o *countingObserver) SetWorkerLimit(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.limit = n
}

type jobFixture struct {
	catalog   *Catalog
	store     *memStore
	fetcher   *fakeFetcher
	acquirer  *fakeAcquirer
	events    *recordingPublisher
	observer  *countingObserver
	manager   *JobManager
	mediaRoot string
}

func newJobFixture(t *testing.T, threads int, blocked bool, videoIDs ...string) *jobFixture {
	t.Helper()
	mediaRoot := t.TempDir()
	fetcher := newFakeFetcher()
	fetcher.set(urlA, "A", videoIDs...)

	store := &memStore{}
	catalog, err := NewCatalog(store, fetcher, domain.Settings{DownloadDir: mediaRoot, ThreadCount: threads}, nil)
	require.NoError(t, err)
	_, err = catalog.AddPlaylist(context.Background(), urlA)
	require.NoError(t, err)

	fx := &jobFixture{
		catalog:   catalog,
		store:     store,
		fetcher:   fetcher,
		acquirer:  newFakeAcquirer(blocked),
		events:    &recordingPublisher{},
		observer:  &countingObserver{},
		mediaRoot: mediaRoot,
	}
	fx.manager = NewJobManager(catalog, fx.acquirer, JobManagerOptions{
		Events:   fx.events,
		Observer: fx.observer,
	})
	require.NoError(t, fx.manager.Start(context.Background()))
	t.Cleanup(func() {
		fx.releaseAll()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = fx.manager.Stop(ctx)
	})
	return fx
}

func (fx *jobFixture) releaseAll() {
	select {
	case <-fx.acquirer.release:
	default:
		close(fx.acquirer.release)
	}
}

func (fx *jobFixture) waitState(t *testing.T, jobID string, state domain.JobState) domain.Job {
	t.Helper()
	var job domain.Job
	require.Eventually(t, func() bool {
		var err error
		job, err = fx.manager.Get(jobID)
		return err == nil && job.State == state
	}, 5*time.Second, 5*time.Millisecond, "job %s never reached %s", jobID, state)
	return job
}

func (fx *jobFixture) waitRunning(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return fx.manager.Stats().Running == n
	}, 5*time.Second, 5*time.Millisecond)
}

func TestJobManager_DownloadsAndCommits(t *testing.T) {
	fx := newJobFixture(t, 2, false, "a")

	id, err := fx.manager.Enqueue("PLaaa", "a", "720p", false)
	require.NoError(t, err)

	job := fx.waitState(t, id, domain.JobDone)
	expected := filepath.Join(fx.mediaRoot, "PLaaa", "a.mp4")
	assert.Equal(t, expected, job.FilePath)
	assert.Equal(t, domain.Quality720p, job.Quality)
	assert.Equal(t, float64(100), job.Progress)
	require.NotNil(t, job.StartedAt)
	require.NotNil(t, job.FinishedAt)

	v, err := fx.catalog.Video("PLaaa", "a")
	require.NoError(t, err)
	assert.True(t, v.Downloaded)
	assert.Equal(t, expected, v.FilePath)
	assert.Equal(t, domain.Quality720p, v.Quality)

	require.Eventually(t, func() bool {
		return len(fx.events.types(id)) == 3
	}, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, []domain.JobEventType{
		domain.EventJobQueued, domain.EventJobStarted, domain.EventJobDone,
	}, fx.events.types(id))
}

func TestJobManager_CatalogCommittedBeforeTerminalState(t *testing.T) {
	fx := newJobFixture(t, 1, false, "ok", "bad")
	fx.acquirer.failures["bad"] = errors.New("network down")

	var mu sync.Mutex
	seen := map[string]bool{}
	fx.events.onEvent = func(e domain.JobEvent) {
		if e.Type != domain.EventJobDone && e.Type != domain.EventJobFailed {
			return
		}
		v, err := fx.catalog.Video("PLaaa", e.Job.VideoID)
		if err != nil {
			return
		}
		mu.Lock()
		seen[e.Job.VideoID] = v.Downloaded
		mu.Unlock()
	}

	okID, err := fx.manager.Enqueue("PLaaa", "ok", "", false)
	require.NoError(t, err)
	badID, err := fx.manager.Enqueue("PLaaa", "bad", "", false)
	require.NoError(t, err)

	fx.waitState(t, okID, domain.JobDone)
	failed := fx.waitState(t, badID, domain.JobFailed)
	assert.Contains(t, failed.Error, "network down")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 2
	}, 5*time.Second, 5*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.True(t, seen["ok"])
	assert.False(t, seen["bad"])
}

func TestJobManager_FailureClearsPriorDownload(t *testing.T) {
	fx := newJobFixture(t, 1, false, "a")

	first, err := fx.manager.Enqueue("PLaaa", "a", "best", false)
	require.NoError(t, err)
	fx.waitState(t, first, domain.JobDone)

	fx.acquirer.mu.Lock()
	fx.acquirer.failures["a"] = &domain.AcquireError{Kind: domain.FailureProcess, ExitCode: 1, Message: "boom"}
	fx.acquirer.mu.Unlock()

	second, err := fx.manager.Enqueue("PLaaa", "a", "480p", false)
	require.NoError(t, err)
	fx.waitState(t, second, domain.JobFailed)

	v, err := fx.catalog.Video("PLaaa", "a")
	require.NoError(t, err)
	assert.False(t, v.Downloaded)
	assert.Empty(t, v.FilePath)
	assert.NoFileExists(t, filepath.Join(fx.mediaRoot, "PLaaa", "a.mp4"))
}

func TestJobManager_FailedCommitKeepsBothErrors(t *testing.T) {
	fx := newJobFixture(t, 1, false, "a")
	fx.acquirer.failures["a"] = errors.New("network down")
	fx.store.setFail(errors.New("disk full"))

	id, err := fx.manager.Enqueue("PLaaa", "a", "", false)
	require.NoError(t, err)

	job := fx.waitState(t, id, domain.JobFailed)
	assert.Contains(t, job.Error, "network down")
	assert.Contains(t, job.Error, "disk full")
}

func TestJobManager_PlaylistDeletedWhileQueued(t *testing.T) {
	fx := newJobFixture(t, 1, true, "a", "b")

	running, err := fx.manager.Enqueue("PLaaa", "a", "", false)
	require.NoError(t, err)
	queued, err := fx.manager.Enqueue("PLaaa", "b", "", false)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(fx.acquirer.callOrder()) == 1
	}, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, fx.catalog.DeletePlaylist("PLaaa"))
	fx.releaseAll()

	job := fx.waitState(t, queued, domain.JobFailed)
	assert.Contains(t, job.Error, "PLaaa")

	job = fx.waitState(t, running, domain.JobFailed)
	assert.Contains(t, job.Error, "no longer in any playlist")
	assert.Empty(t, job.FilePath)

	assert.Equal(t, []string{"a"}, fx.acquirer.callOrder(), "queued job never downloads")
	assert.NoFileExists(t, filepath.Join(fx.mediaRoot, "PLaaa", "a.mp4"))
	assert.NoFileExists(t, filepath.Join(fx.mediaRoot, "PLaaa", "b.mp4"))
}

func TestJobManager_RedownloadElsewhereReplacesFile(t *testing.T) {
	fx := newJobFixture(t, 1, false, "shared")
	fx.fetcher.set(urlB, "B", "shared")
	_, err := fx.catalog.AddPlaylist(context.Background(), urlB)
	require.NoError(t, err)

	first, err := fx.manager.Enqueue("PLaaa", "shared", "720p", false)
	require.NoError(t, err)
	old := fx.waitState(t, first, domain.JobDone).FilePath
	require.FileExists(t, old)

	second, err := fx.manager.Enqueue("PLbbb", "shared", "best", false)
	require.NoError(t, err)
	current := fx.waitState(t, second, domain.JobDone).FilePath

	assert.NotEqual(t, old, current)
	assert.NoFileExists(t, old)
	assert.FileExists(t, current)
	for _, id := range []string{"PLaaa", "PLbbb"} {
		v, err := fx.catalog.Video(id, "shared")
		require.NoError(t, err)
		assert.Equal(t, current, v.FilePath)
	}
}

func TestJobManager_PanicBecomesFailure(t *testing.T) {
	fx := newJobFixture(t, 1, false, "a", "b")
	fx.acquirer.panics["a"] = true

	a, err := fx.manager.Enqueue("PLaaa", "a", "", false)
	require.NoError(t, err)
	b, err := fx.manager.Enqueue("PLaaa", "b", "", false)
	require.NoError(t, err)

	job := fx.waitState(t, a, domain.JobFailed)
	assert.Contains(t, job.Error, "tool exploded")
	fx.waitState(t, b, domain.JobDone)
}

func TestJobManager_Coalesces(t *testing.T) {
	fx := newJobFixture(t, 1, true, "a", "b")

	first, err := fx.manager.Enqueue("PLaaa", "a", "720p", false)
	require.NoError(t, err)
	again, err := fx.manager.Enqueue("PLaaa", "a", "720p", false)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	queued, err := fx.manager.Enqueue("PLaaa", "b", "720p", false)
	require.NoError(t, err)
	queuedAgain, err := fx.manager.Enqueue("PLaaa", "b", "720p", false)
	require.NoError(t, err)
	assert.Equal(t, queued, queuedAgain)

	audio, err := fx.manager.Enqueue("PLaaa", "a", "720p", true)
	require.NoError(t, err)
	assert.NotEqual(t, first, audio)

	assert.Len(t, fx.manager.List(), 3)
	assert.Equal(t, 2, fx.observer.coalesced)

	fx.releaseAll()
	fx.waitState(t, first, domain.JobDone)

	fresh, err := fx.manager.Enqueue("PLaaa", "a", "720p", false)
	require.NoError(t, err)
	assert.NotEqual(t, first, fresh, "finished jobs are not reused")
}

func TestJobManager_ConcurrentEnqueueSharesOneJob(t *testing.T) {
	fx := newJobFixture(t, 1, true, "a")

	const callers = 16
	ids := make([]string, callers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			id, err := fx.manager.Enqueue("PLaaa", "a", "720p", false)
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	close(start)
	wg.Wait()

	for _, id := range ids[1:] {
		assert.Equal(t, ids[0], id)
	}
	assert.Len(t, fx.manager.List(), 1)
	fx.observer.mu.Lock()
	assert.Equal(t, callers-1, fx.observer.coalesced)
	fx.observer.mu.Unlock()
}

func TestJobManager_EventsPublishedInTransitionOrder(t *testing.T) {
	ids := make([]string, 24)
	for i := range ids {
		ids[i] = fmt.Sprintf("v%02d", i)
	}
	fx := newJobFixture(t, 4, false, ids...)
	fx.acquirer.lines = 3
	fx.events.onEvent = func(e domain.JobEvent) {
		if e.Type == domain.EventJobQueued {
			time.Sleep(2 * time.Millisecond)
		}
	}

	jobIDs := make([]string, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			jobID, err := fx.manager.Enqueue("PLaaa", id, "", false)
			assert.NoError(t, err)
			jobIDs[i] = jobID
		}(i, id)
	}
	wg.Wait()

	want := []domain.JobEventType{domain.EventJobQueued, domain.EventJobStarted, domain.EventJobDone}
	for _, id := range jobIDs {
		fx.waitState(t, id, domain.JobDone)
		require.Eventually(t, func() bool {
			return len(fx.events.types(id)) == len(want)
		}, 5*time.Second, 5*time.Millisecond)
		assert.Equal(t, want, fx.events.types(id), "job %s", id)
	}

	fx.events.mu.Lock()
	defer fx.events.mu.Unlock()
	for _, id := range jobIDs {
		var last domain.JobEventType
		for _, e := range fx.events.events {
			if e.Job.ID != id {
				continue
			}
			if e.Type == domain.EventJobProgress {
				assert.Equal(t, domain.EventJobStarted, last, "progress for %s outside running", id)
				continue
			}
			last = e.Type
		}
	}
}

func TestJobManager_ApplySettingsResizesPool(t *testing.T) {
	fx := newJobFixture(t, 1, true, "a")

	dir := t.TempDir()
	n := 4
	settings, err := fx.manager.ApplySettings(domain.SettingsPatch{DownloadDir: &dir, ThreadCount: &n})
	require.NoError(t, err)
	assert.Equal(t, 4, settings.ThreadCount)
	assert.Equal(t, 4, fx.manager.Stats().Threads)

	empty := " "
	_, err = fx.manager.ApplySettings(domain.SettingsPatch{DownloadDir: &empty, ThreadCount: &n})
	assert.True(t, apperrors.IsBadRequest(err))

	var wg sync.WaitGroup
	for i := 1; i <= domain.MaxThreadCount; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := fx.manager.ApplySettings(domain.SettingsPatch{ThreadCount: &n})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, fx.catalog.Settings().ThreadCount, fx.manager.Stats().Threads)
	assert.Equal(t, fx.catalog.Settings().ThreadCount, fx.observer.limit)
}

func TestJobManager_BoundedAndFIFO(t *testing.T) {
	ids := []string{"v1", "v2", "v3", "v4", "v5"}
	fx := newJobFixture(t, 2, true, ids...)

	jobIDs := make([]string, 0, len(ids))
	for _, id := range ids {
		jobID, err := fx.manager.Enqueue("PLaaa", id, "", false)
		require.NoError(t, err)
		jobIDs = append(jobIDs, jobID)
	}

	fx.waitRunning(t, 2)
	stats := fx.manager.Stats()
	assert.Equal(t, 3, stats.Queued)
	assert.Equal(t, 2, stats.Threads)

	jobs := fx.manager.List()
	require.Len(t, jobs, 5)
	assert.Equal(t, 0, jobs[0].QueuePosition)
	assert.Equal(t, 1, jobs[2].QueuePosition)
	assert.Equal(t, 3, jobs[4].QueuePosition)

	fx.releaseAll()
	for _, id := range jobIDs {
		fx.waitState(t, id, domain.JobDone)
	}

	assert.LessOrEqual(t, fx.acquirer.peak(), 2)
	order := fx.acquirer.callOrder()
	require.Len(t, order, 5)
	assert.ElementsMatch(t, ids[:2], order[:2])
	assert.ElementsMatch(t, ids[2:], order[2:])
}

func TestJobManager_StrictFIFOWithOneWorker(t *testing.T) {
	ids := []string{"c", "a", "b"}
	fx := newJobFixture(t, 1, false, ids...)

	var last string
	for _, id := range ids {
		jobID, err := fx.manager.Enqueue("PLaaa", id, "", false)
		require.NoError(t, err)
		last = jobID
	}
	fx.waitState(t, last, domain.JobDone)
	assert.Equal(t, ids, fx.acquirer.callOrder())
	assert.Equal(t, 1, fx.acquirer.peak())
}

func TestJobManager_Resize(t *testing.T) {
	fx := newJobFixture(t, 1, true, "a", "b", "c", "d")
	for _, id := range []string{"a", "b", "c", "d"} {
		_, err := fx.manager.Enqueue("PLaaa", id, "", false)
		require.NoError(t, err)
	}
	fx.waitRunning(t, 1)

	assert.Equal(t, 3, fx.manager.Resize(3))
	fx.waitRunning(t, 3)
	assert.Equal(t, 3, fx.observer.limit)

	assert.Equal(t, 1, fx.manager.Resize(0))
	assert.Equal(t, 3, fx.manager.Stats().Running, "running jobs are not interrupted")
	assert.Equal(t, domain.MaxThreadCount, fx.manager.Resize(99))
}

func TestJobManager_Cancel(t *testing.T) {
	fx := newJobFixture(t, 1, true, "a", "b")

	running, err := fx.manager.Enqueue("PLaaa", "a", "", false)
	require.NoError(t, err)
	queued, err := fx.manager.Enqueue("PLaaa", "b", "", false)
	require.NoError(t, err)
	fx.waitState(t, running, domain.JobRunning)

	require.NoError(t, fx.manager.Cancel(queued))
	_, err = fx.manager.Get(queued)
	assert.True(t, apperrors.IsNotFound(err))
	assert.Equal(t, []domain.JobEventType{domain.EventJobQueued, domain.EventJobCancelled}, fx.events.types(queued))

	err = fx.manager.Cancel(running)
	assert.True(t, apperrors.IsConflict(err))
	assert.True(t, apperrors.IsNotFound(fx.manager.Cancel("nope")))

	requeued, err := fx.manager.Enqueue("PLaaa", "b", "", false)
	require.NoError(t, err)
	assert.NotEqual(t, queued, requeued)
}

func TestJobManager_ClearFinished(t *testing.T) {
	fx := newJobFixture(t, 2, false, "a", "b")
	fx.acquirer.failures["b"] = errors.New("gone")

	a, err := fx.manager.Enqueue("PLaaa", "a", "", false)
	require.NoError(t, err)
	b, err := fx.manager.Enqueue("PLaaa", "b", "", false)
	require.NoError(t, err)
	fx.waitState(t, a, domain.JobDone)
	fx.waitState(t, b, domain.JobFailed)

	assert.Equal(t, 2, fx.manager.ClearFinished())
	assert.Empty(t, fx.manager.List())
	assert.Zero(t, fx.manager.ClearFinished())
}

func TestJobManager_EnqueueValidation(t *testing.T) {
	fx := newJobFixture(t, 1, false, "a")

	_, err := fx.manager.Enqueue("PLaaa", "a", "4k", false)
	assert.True(t, apperrors.IsBadRequest(err))

	_, err = fx.manager.Enqueue("PLaaa", "zzz", "", false)
	assert.True(t, apperrors.IsNotFound(err))

	_, err = fx.manager.Enqueue("nope", "a", "", false)
	assert.True(t, apperrors.IsNotFound(err))

	_, err = fx.manager.EnqueueBatch("PLaaa", []string{"a", "zzz"}, "", false)
	assert.True(t, apperrors.IsNotFound(err))
	assert.Empty(t, fx.manager.List(), "batch is all or nothing")
}

func TestJobManager_EnqueueBatch(t *testing.T) {
	fx := newJobFixture(t, 2, false, "a", "b", "c")

	ids, err := fx.manager.EnqueueBatch("PLaaa", []string{"a", "b", "c", "a"}, "360p", true)
	require.NoError(t, err)
	require.Len(t, ids, 4)
	assert.Equal(t, ids[0], ids[3])

	for _, id := range ids[:3] {
		job := fx.waitState(t, id, domain.JobDone)
		assert.True(t, job.AudioOnly)
	}
}

func TestJobManager_ProgressKeepsLogTail(t *testing.T) {
	fx := newJobFixture(t, 1, false, "a")
	fx.acquirer.lines = DefaultLogTailLines + 15

	id, err := fx.manager.Enqueue("PLaaa", "a", "", false)
	require.NoError(t, err)
	job := fx.waitState(t, id, domain.JobDone)

	require.Len(t, job.Log, DefaultLogTailLines)
	assert.Equal(t, "[download] 15.0% of 10.00MiB", job.Log[0])
}

func TestJobManager_StopCancelsRunning(t *testing.T) {
	fx := newJobFixture(t, 1, true, "a", "b")

	a, err := fx.manager.Enqueue("PLaaa", "a", "", false)
	require.NoError(t, err)
	b, err := fx.manager.Enqueue("PLaaa", "b", "", false)
	require.NoError(t, err)
	fx.waitState(t, a, domain.JobRunning)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, fx.manager.Stop(ctx))
	assert.False(t, fx.manager.IsRunning())

	job, err := fx.manager.Get(a)
	require.NoError(t, err)
	assert.Equal(t, domain.JobFailed, job.State)

	job, err = fx.manager.Get(b)
	require.NoError(t, err)
	assert.Equal(t, domain.JobQueued, job.State, "no pickups after stop")

	assert.Error(t, fx.manager.Stop(ctx))
}

func TestJobManager_StartTwice(t *testing.T) {
	fx := newJobFixture(t, 1, false, "a")
	assert.Error(t, fx.manager.Start(context.Background()))
	assert.True(t, fx.manager.IsRunning())
}

func TestJobEventBus_DeliversInOrderAndSurvivesPanics(t *testing.T) {
	bus := NewJobEventBus(16, nil)

	var mu sync.Mutex
	var got []domain.JobEventType
	bus.Subscribe(JobListenerFunc(func(domain.JobEvent) { panic("bad listener") }))
	bus.Subscribe(JobListenerFunc(func(e domain.JobEvent) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.Type)
	}))

	job := domain.NewJob("p", "v", "t", domain.QualityBest, false, "/tmp")
	bus.Publish(domain.NewJobEvent(domain.EventJobQueued, job.Snapshot()))
	bus.Publish(domain.NewJobEvent(domain.EventJobStarted, job.Snapshot()))
	bus.Publish(domain.NewJobEvent(domain.EventJobDone, job.Snapshot()))
	bus.Close()
	bus.Publish(domain.NewJobEvent(domain.EventJobFailed, job.Snapshot()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []domain.JobEventType{
		domain.EventJobQueued, domain.EventJobStarted, domain.EventJobDone,
	}, got)
}
