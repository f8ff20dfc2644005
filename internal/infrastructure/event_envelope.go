package infrastructure

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/yourusername/yt-sync-go/internal/domain"
)

// JobEventEnvelope is the wire form of a job event on external buses
type JobEventEnvelope struct {
	ID         string              `json:"id"`
	Type       domain.JobEventType `json:"type"`
	JobID      string              `json:"job_id"`
	PlaylistID string              `json:"playlist_id"`
	VideoID    string              `json:"video_id"`
	State      domain.JobState     `json:"state"`
	OccurredAt time.Time           `json:"occurred_at"`
	Job        domain.Job          `json:"job"`
}

// NewJobEventEnvelope wraps an event with a fresh message id
func NewJobEventEnvelope(event domain.JobEvent) JobEventEnvelope {
	return JobEventEnvelope{
		ID:         uuid.New().String(),
		Type:       event.Type,
		JobID:      event.Job.ID,
		PlaylistID: event.Job.PlaylistID,
		VideoID:    event.Job.VideoID,
		State:      event.Job.State,
		OccurredAt: event.At,
		Job:        event.Job,
	}
}

// Marshal encodes the envelope as JSON
func (e JobEventEnvelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}
