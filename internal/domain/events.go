package domain

import "time"

// JobEventType names a job lifecycle event
type JobEventType string

const (
	EventJobQueued    JobEventType = "queued"
	EventJobStarted   JobEventType = "started"
	EventJobProgress  JobEventType = "progress"
	EventJobDone      JobEventType = "done"
	EventJobFailed    JobEventType = "failed"
	EventJobCancelled JobEventType = "cancelled"
	EventJobsCleared  JobEventType = "cleared"
)

// JobEvent is emitted on every job transition
type JobEvent struct {
	Type JobEventType `json:"type"`
	Job  Job          `json:"job"`
	At   time.Time    `json:"at"`
}

// NewJobEvent creates an event for a job snapshot
func NewJobEvent(eventType JobEventType, job Job) JobEvent {
	return JobEvent{Type: eventType, Job: job, At: time.Now()}
}

// JobListener receives job events
type JobListener interface {
	OnJobEvent(event JobEvent)
}
