package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobState represents the lifecycle state of a download job
type JobState string

const (
	JobQueued  JobState = "queued"
	JobRunning JobState = "running"
	JobDone    JobState = "done"
	JobFailed  JobState = "failed"
)

// JobPhase is a finer-grained, diagnostic view of a job's progress
type JobPhase string

const (
	PhaseQueued      JobPhase = "queued"
	PhaseStarting    JobPhase = "starting"
	PhaseDownloading JobPhase = "downloading"
	PhaseAudio       JobPhase = "audio"
	PhaseVideo       JobPhase = "video"
	PhaseMerging     JobPhase = "merging"
	PhaseConverting  JobPhase = "converting"
	PhaseDone        JobPhase = "done"
	PhaseFailed      JobPhase = "failed"
)

// JobKey identifies the download target used for coalescing
type JobKey struct {
	VideoID   string
	Quality   Quality
	AudioOnly bool
}

// Job represents a single download attempt
type Job struct {
	ID            string     `json:"job_id"`
	PlaylistID    string     `json:"playlist_id"`
	VideoID       string     `json:"video_id"`
	Title         string     `json:"title"`
	Quality       Quality    `json:"quality"`
	AudioOnly     bool       `json:"audio_only"`
	State         JobState   `json:"state"`
	Phase         JobPhase   `json:"phase"`
	Progress      float64    `json:"progress"`
	Size          string     `json:"size,omitempty"`
	Speed         string     `json:"speed,omitempty"`
	ETA           string     `json:"eta,omitempty"`
	Log           []string   `json:"log"`
	QueuePosition int        `json:"queue_position,omitempty"`
	OutputDir     string     `json:"output_dir"`
	FilePath      string     `json:"file_path,omitempty"`
	Error         string     `json:"error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// NewJob creates a queued job
func NewJob(playlistID, videoID, title string, quality Quality, audioOnly bool, outputDir string) *Job {
	return &Job{
		ID:         uuid.New().String(),
		PlaylistID: playlistID,
		VideoID:    videoID,
		Title:      title,
		Quality:    quality,
		AudioOnly:  audioOnly,
		State:      JobQueued,
		Phase:      PhaseQueued,
		Log:        []string{},
		OutputDir:  outputDir,
		CreatedAt:  time.Now(),
	}
}

// Key returns the coalescing key
func (j *Job) Key() JobKey {
	return JobKey{VideoID: j.VideoID, Quality: j.Quality, AudioOnly: j.AudioOnly}
}

// MarkRunning moves a queued job to running
func (j *Job) MarkRunning() error {
	if j.State != JobQueued {
		return fmt.Errorf("cannot start job in state %s", j.State)
	}
	j.State = JobRunning
	j.Phase = PhaseStarting
	j.QueuePosition = 0
	now := time.Now()
	j.StartedAt = &now
	return nil
}

// MarkDone moves a running job to done
func (j *Job) MarkDone(filePath string) error {
	if j.State != JobRunning {
		return fmt.Errorf("cannot complete job in state %s", j.State)
	}
	j.State = JobDone
	j.Phase = PhaseDone
	j.Progress = 100
	j.Speed = ""
	j.ETA = ""
	j.FilePath = filePath
	now := time.Now()
	j.FinishedAt = &now
	return nil
}

// MarkFailed moves a running job to failed
func (j *Job) MarkFailed(err error) error {
	if j.State != JobRunning {
		return fmt.Errorf("cannot fail job in state %s", j.State)
	}
	j.State = JobFailed
	j.Phase = PhaseFailed
	j.Speed = ""
	j.ETA = ""
	if err != nil {
		j.Error = err.Error()
	}
	now := time.Now()
	j.FinishedAt = &now
	return nil
}

// IsTerminal checks if the job is done or failed
func (j *Job) IsTerminal() bool {
	return j.State == JobDone || j.State == JobFailed
}

// IsActive checks if the job is queued or running
func (j *Job) IsActive() bool {
	return j.State == JobQueued || j.State == JobRunning
}

// ApplyProgress folds one line of tool output into the job, keeping at most maxLines of log
func (j *Job) ApplyProgress(u ProgressUpdate, maxLines int) {
	if u.Line != "" {
		j.Log = append(j.Log, u.Line)
		if maxLines > 0 && len(j.Log) > maxLines {
			j.Log = append([]string(nil), j.Log[len(j.Log)-maxLines:]...)
		}
	}
	if u.HasPercent {
		j.Progress = u.Percent
		j.Size = u.Size
		j.Speed = u.Speed
		j.ETA = u.ETA
	}
	if u.Phase != "" {
		j.Phase = u.Phase
		if u.Phase == PhaseMerging || u.Phase == PhaseConverting {
			j.Progress = 99
			j.Speed = ""
			j.ETA = ""
		}
	}
}

// Snapshot returns a copy that shares no mutable state with j
func (j *Job) Snapshot() Job {
	cp := *j
	cp.Log = append([]string(nil), j.Log...)
	if j.StartedAt != nil {
		t := *j.StartedAt
		cp.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		cp.FinishedAt = &t
	}
	return cp
}

// JobStats represents job table statistics
type JobStats struct {
	Total   int `json:"total"`
	Queued  int `json:"queued"`
	Running int `json:"running"`
	Done    int `json:"done"`
	Failed  int `json:"failed"`
	Threads int `json:"threads"`
}
