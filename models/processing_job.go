package models

import (
	"time"

	"github.com/google/uuid"
)

// JobType identifies which extractor a job is routed to.
type JobType string

const (
	JobTypeAudio              JobType = "audio"
	JobTypeImage              JobType = "image"
	JobTypeDocument           JobType = "document"
	JobTypeLink               JobType = "link"
	JobTypeTextClassification JobType = "text_classification"
)

// Valid reports whether t is one of the recognized job types.
func (t JobType) Valid() bool {
	switch t {
	case JobTypeAudio, JobTypeImage, JobTypeDocument, JobTypeLink, JobTypeTextClassification:
		return true
	}
	return false
}

// RequiresMedia reports whether a job of this type needs a media reference.
// Link jobs carry the URL in the media reference; text classification works
// off the note's stored content and must not carry one.
func (t JobType) RequiresMedia() bool {
	switch t {
	case JobTypeAudio, JobTypeImage, JobTypeDocument, JobTypeLink:
		return true
	}
	return false
}

// JobStatus is the job state machine: pending -> processing ->
// {completed, failed}, plus pending -> failed via cancellation.
// Terminal states are never left.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Terminal reports whether s admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Active reports whether a job in this state blocks duplicate submissions
// for the same (note, job type) pair.
func (s JobStatus) Active() bool {
	return s == StatusPending || s == StatusProcessing
}

// ProcessingJob represents one unit of asynchronous processing work.
type ProcessingJob struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"owner_id"`
	NoteID       uuid.UUID  `gorm:"type:uuid;not null;index" json:"note_id"`
	MediaRef     *string    `json:"media_ref,omitempty"` // file id or URL, nil for text classification
	JobType      JobType    `gorm:"type:varchar(50);not null;index" json:"job_type"`
	Status       JobStatus  `gorm:"type:varchar(20);not null;index" json:"status"`
	Progress     int        `gorm:"not null;default:0" json:"progress"`
	ErrorMessage *string    `json:"error_message,omitempty"` // non-nil iff status=failed
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (ProcessingJob) TableName() string {
	return "processing_jobs"
}
