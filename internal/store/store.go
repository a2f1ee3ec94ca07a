// Package store persists processing jobs, their results, and the read-only
// note/media projections. Two implementations exist: a gorm-backed sqlite
// store for local deployments and tests, and a Supabase store for the hosted
// deployment.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"paranote/backend/models"
)

// ErrNotFound is returned for lookups of unknown ids.
var ErrNotFound = errors.New("record not found")

// ErrActiveJobExists is returned by CreateJobUnlessActive when a pending or
// processing job already covers the same (note, job type) pair.
var ErrActiveJobExists = errors.New("active job already exists for note and job type")

// ErrStaleTransition is returned by TransitionJob when the stored status no
// longer matches the expected one, meaning another writer got there first.
var ErrStaleTransition = errors.New("job status changed since read")

// JobStore persists ProcessingJob rows.
type JobStore interface {
	// CreateJobUnlessActive inserts the job, failing with ErrActiveJobExists
	// if an active job for the same (note, job type) pair exists. This is
	// the uniqueness primitive the orchestrator builds on.
	CreateJobUnlessActive(ctx context.Context, job *models.ProcessingJob) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.ProcessingJob, error)
	// TransitionJob persists job only if the stored row's status still equals
	// from, returning ErrStaleTransition otherwise. Writers that lose the
	// compare must not retry blindly: a terminal status is final.
	TransitionJob(ctx context.Context, job *models.ProcessingJob, from models.JobStatus) error
	// ListStaleProcessing returns jobs stuck in processing whose started_at
	// precedes the cutoff. Used by the reaper.
	ListStaleProcessing(ctx context.Context, cutoff time.Time) ([]models.ProcessingJob, error)
}

// ResultStore persists job outputs.
type ResultStore interface {
	SaveResult(ctx context.Context, result *models.ProcessedResult) error
	ResultsForNote(ctx context.Context, noteID uuid.UUID) ([]models.ProcessedResult, error)
	// SaveClassification replaces any previous classification for the note.
	SaveClassification(ctx context.Context, classification *models.TextClassification) error
	LatestClassification(ctx context.Context, noteID uuid.UUID) (*models.TextClassification, error)
}

// NoteStore reads note content and media locators owned by the capture
// surface. Strictly read-only from this service's perspective.
type NoteStore interface {
	GetNote(ctx context.Context, id uuid.UUID) (*models.Note, error)
	GetMedia(ctx context.Context, id uuid.UUID) (*models.Media, error)
}

// Store bundles the three interfaces; both backends implement all of them.
type Store interface {
	JobStore
	ResultStore
	NoteStore
}
