// Package orchestrator owns the processing-job state machine: it accepts
// submissions, routes each job to the right extractor, hands the extracted
// text to the content analyzer, and persists the outcome. Every failure is
// contained to the failing job's own row.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"paranote/backend/internal/analyzer"
	"paranote/backend/internal/extractor"
	"paranote/backend/internal/store"
	"paranote/backend/internal/worker"
	"paranote/backend/models"
)

// Progress milestones. Progress is monotonic per job: it only ever moves
// forward, and freezes at its last value when a job fails.
const (
	progressStarted   = 10
	progressExtracted = 50
	progressDone      = 100
)

// reaperSlack is added on top of the stage timeouts before the reaper
// declares a processing job dead (covers queue wait and persistence time).
const reaperSlack = time.Minute

// analyzerService is the slice of the content analyzer the orchestrator
// uses; tests substitute a deterministic fake.
type analyzerService interface {
	Analyze(ctx context.Context, text, contentType string) (*analyzer.Analysis, error)
	Classify(ctx context.Context, text string, userCtx analyzer.Context) (*analyzer.Classification, error)
}

// submitter is the slice of the worker dispatcher the orchestrator uses.
type submitter interface {
	Submit(job worker.Job) error
}

// Options carries the orchestrator's tunables.
type Options struct {
	ExtractionTimeout time.Duration
	AnalysisTimeout   time.Duration
	// UploadDir is where the capture surface stores media files; media
	// locators are resolved relative to it.
	UploadDir string
}

// Orchestrator coordinates extraction and analysis for submitted jobs.
type Orchestrator struct {
	store      store.Store
	extractors map[models.JobType]extractor.Extractor
	analyzer   analyzerService
	pool       submitter
	log        *logrus.Logger
	opts       Options
}

// New wires the orchestrator. extractors must cover every media-backed job
// type the service accepts.
func New(st store.Store, extractors map[models.JobType]extractor.Extractor, az analyzerService, pool submitter, log *logrus.Logger, opts Options) *Orchestrator {
	return &Orchestrator{
		store:      st,
		extractors: extractors,
		analyzer:   az,
		pool:       pool,
		log:        log,
		opts:       opts,
	}
}

// SubmitRequest describes one job submission.
type SubmitRequest struct {
	OwnerID  uuid.UUID
	NoteID   uuid.UUID
	MediaRef *string // media id for file jobs, URL for link jobs, nil for classification
	JobType  models.JobType
	// ClassifyContext carries the caller's existing PARA names for
	// text-classification jobs.
	ClassifyContext analyzer.Context
}

// Submit validates the request, persists a pending job, and schedules its
// run. It returns immediately; the returned job is valid for status polling
// before processing starts.
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (*models.ProcessingJob, error) {
	if !req.JobType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidJobType, req.JobType)
	}
	if req.JobType.RequiresMedia() && (req.MediaRef == nil || *req.MediaRef == "") {
		return nil, ErrMediaRefRequired
	}
	if !req.JobType.RequiresMedia() && req.MediaRef != nil {
		return nil, ErrMediaRefForbidden
	}

	// Ownership gate: the note must exist and belong to the caller.
	note, err := o.store.GetNote(ctx, req.NoteID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoteNotFound
		}
		return nil, fmt.Errorf("look up note: %w", err)
	}
	if note.OwnerID != req.OwnerID {
		return nil, ErrNoteNotFound
	}

	now := time.Now().UTC()
	job := &models.ProcessingJob{
		ID:        uuid.New(),
		OwnerID:   req.OwnerID,
		NoteID:    req.NoteID,
		MediaRef:  req.MediaRef,
		JobType:   req.JobType,
		Status:    models.StatusPending,
		Progress:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := o.store.CreateJobUnlessActive(ctx, job); err != nil {
		if errors.Is(err, store.ErrActiveJobExists) {
			return nil, ErrDuplicateJob
		}
		return nil, fmt.Errorf("create job: %w", err)
	}

	if err := o.pool.Submit(&jobTask{orch: o, jobID: job.ID, classifyCtx: req.ClassifyContext}); err != nil {
		// The row exists but will never run; fail it now rather than
		// leaving a pending job nothing will pick up.
		o.failJob(ctx, job, fmt.Sprintf("could not schedule job: %v", err))
		return nil, fmt.Errorf("schedule job: %w", err)
	}

	o.log.WithFields(logrus.Fields{
		"job_id":   job.ID,
		"note_id":  job.NoteID,
		"job_type": job.JobType,
	}).Info("Job submitted")
	return job, nil
}

// jobTask adapts a job id to the worker pool's Job interface.
type jobTask struct {
	orch        *Orchestrator
	jobID       uuid.UUID
	classifyCtx analyzer.Context
}

func (t *jobTask) ID() string { return t.jobID.String() }

func (t *jobTask) Execute(ctx context.Context) error {
	return t.orch.Run(ctx, t.jobID, t.classifyCtx)
}

// Run executes one job to a terminal state. Every failure path ends in a
// failed job row with a descriptive error message; no error escapes to the
// worker in a way that could touch sibling jobs.
func (o *Orchestrator) Run(ctx context.Context, jobID uuid.UUID, classifyCtx analyzer.Context) error {
	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}
	// A job cancelled while queued reaches here already terminal.
	if job.Status != models.StatusPending {
		o.log.WithFields(logrus.Fields{"job_id": jobID, "status": job.Status}).
			Info("Skipping job no longer pending")
		return nil
	}

	// Claim the job with a conditional write. A cancel landing between the
	// read above and this transition wins: the claim comes back stale and
	// the job stays failed.
	now := time.Now().UTC()
	job.Status = models.StatusProcessing
	job.StartedAt = &now
	job.Progress = progressStarted
	if err := o.store.TransitionJob(ctx, job, models.StatusPending); err != nil {
		if errors.Is(err, store.ErrStaleTransition) {
			o.log.WithField("job_id", jobID).Info("Job claim lost, skipping")
			return nil
		}
		return fmt.Errorf("mark job processing: %w", err)
	}

	text, metadata, err := o.extract(ctx, job)
	if err != nil {
		o.failJob(ctx, job, stageMessage("extraction", err, o.opts.ExtractionTimeout))
		return err
	}

	job.Progress = progressExtracted
	if err := o.store.TransitionJob(ctx, job, models.StatusProcessing); err != nil {
		if errors.Is(err, store.ErrStaleTransition) {
			o.log.WithField("job_id", jobID).Warn("Job no longer processing, abandoning run")
			return nil
		}
		return fmt.Errorf("update job progress: %w", err)
	}

	if err := o.analyzeAndPersist(ctx, job, text, metadata, classifyCtx); err != nil {
		o.failJob(ctx, job, stageMessage("analysis", err, o.opts.AnalysisTimeout))
		return err
	}

	completed := time.Now().UTC()
	job.Status = models.StatusCompleted
	job.Progress = progressDone
	job.CompletedAt = &completed
	if err := o.store.TransitionJob(ctx, job, models.StatusProcessing); err != nil {
		if errors.Is(err, store.ErrStaleTransition) {
			o.log.WithField("job_id", jobID).Warn("Job no longer processing, dropping completion")
			return nil
		}
		return fmt.Errorf("mark job completed: %w", err)
	}

	o.log.WithField("job_id", job.ID).Info("Job completed")
	return nil
}

// extract resolves the job's input and runs the matching extractor under
// the extraction timeout. Classification jobs skip extraction and use the
// note's stored content directly.
func (o *Orchestrator) extract(ctx context.Context, job *models.ProcessingJob) (string, map[string]any, error) {
	if job.JobType == models.JobTypeTextClassification {
		note, err := o.store.GetNote(ctx, job.NoteID)
		if err != nil {
			return "", nil, fmt.Errorf("load note content: %w", err)
		}
		if note.Content == nil {
			return "", nil, analyzer.ErrEmptyInput
		}
		return *note.Content, map[string]any{}, nil
	}

	ext, ok := o.extractors[job.JobType]
	if !ok {
		return "", nil, fmt.Errorf("%w: no extractor for %q", ErrInvalidJobType, job.JobType)
	}

	ref, err := o.resolveMediaRef(ctx, job)
	if err != nil {
		return "", nil, err
	}

	extractCtx, cancel := context.WithTimeout(ctx, o.opts.ExtractionTimeout)
	defer cancel()

	result, err := ext.Extract(extractCtx, ref)
	if err != nil {
		if extractCtx.Err() != nil && ctx.Err() == nil {
			return "", nil, context.DeadlineExceeded
		}
		return "", nil, err
	}
	return result.Text, result.Metadata, nil
}

// resolveMediaRef turns the stored reference into what the extractor
// consumes: link jobs carry the URL directly, file jobs carry a media id
// resolved to a path under the upload directory.
func (o *Orchestrator) resolveMediaRef(ctx context.Context, job *models.ProcessingJob) (string, error) {
	if job.MediaRef == nil {
		return "", ErrMediaRefRequired
	}
	if job.JobType == models.JobTypeLink {
		return *job.MediaRef, nil
	}

	mediaID, err := uuid.Parse(*job.MediaRef)
	if err != nil {
		return "", fmt.Errorf("%w: bad media id %q", ErrMediaNotFound, *job.MediaRef)
	}
	media, err := o.store.GetMedia(ctx, mediaID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrMediaNotFound
		}
		return "", fmt.Errorf("look up media: %w", err)
	}
	return filepath.Join(o.opts.UploadDir, media.FilePath), nil
}

// analyzeAndPersist runs the analyzer stage and writes the job's output:
// a TextClassification for classification jobs, a ProcessedResult for
// everything else.
func (o *Orchestrator) analyzeAndPersist(ctx context.Context, job *models.ProcessingJob, text string, metadata map[string]any, classifyCtx analyzer.Context) error {
	analysisCtx, cancel := context.WithTimeout(ctx, o.opts.AnalysisTimeout)
	defer cancel()

	if job.JobType == models.JobTypeTextClassification {
		classification, err := o.analyzer.Classify(analysisCtx, text, classifyCtx)
		if err != nil {
			return timeoutOr(analysisCtx, ctx, err)
		}
		now := time.Now().UTC()
		record := &models.TextClassification{
			ID:               uuid.New(),
			NoteID:           job.NoteID,
			Type:             classification.Type,
			Confidence:       classification.Confidence,
			SuggestedArea:    classification.SuggestedArea,
			SuggestedProject: classification.SuggestedProject,
			IsActionable:     classification.IsActionable,
			Priority:         classification.Priority,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := o.store.SaveClassification(ctx, record); err != nil {
			return fmt.Errorf("save classification: %w", err)
		}
		return nil
	}

	analysis, err := o.analyzer.Analyze(analysisCtx, text, string(models.ContentTypeForJob(job.JobType)))
	if err != nil {
		return timeoutOr(analysisCtx, ctx, err)
	}

	if metadata == nil {
		metadata = map[string]any{}
	}
	// Advisory PARA placement rides along in metadata, mirroring where the
	// capture surface reads it from.
	if analysis.SuggestedArea != nil {
		metadata["suggested_area"] = *analysis.SuggestedArea
	}
	if analysis.SuggestedProject != nil {
		metadata["suggested_project"] = *analysis.SuggestedProject
	}
	metadata["is_actionable"] = analysis.IsActionable
	if analysis.Priority != nil {
		metadata["priority"] = string(*analysis.Priority)
	}

	result := &models.ProcessedResult{
		ID:              uuid.New(),
		JobID:           job.ID,
		NoteID:          job.NoteID,
		ContentType:     models.ContentTypeForJob(job.JobType),
		RawText:         &text,
		Summary:         analysis.Summary,
		KeyPoints:       analysis.KeyPoints,
		ExtractedTasks:  analysis.ExtractedTasks,
		Metadata:        metadata,
		ConfidenceScore: analysis.Confidence,
		CreatedAt:       time.Now().UTC(),
	}
	if err := o.store.SaveResult(ctx, result); err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	return nil
}

// Status returns the job for polling. Cross-owner lookups are
// indistinguishable from unknown ids.
func (o *Orchestrator) Status(ctx context.Context, ownerID, jobID uuid.UUID) (*models.ProcessingJob, error) {
	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	if job.OwnerID != ownerID {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// ResultsForNote lists the note's processed results in creation order.
func (o *Orchestrator) ResultsForNote(ctx context.Context, ownerID, noteID uuid.UUID) ([]models.ProcessedResult, error) {
	if err := o.checkNoteOwner(ctx, ownerID, noteID); err != nil {
		return nil, err
	}
	return o.store.ResultsForNote(ctx, noteID)
}

// LatestClassification returns the note's classification, or nil if the
// note has never been classified.
func (o *Orchestrator) LatestClassification(ctx context.Context, ownerID, noteID uuid.UUID) (*models.TextClassification, error) {
	if err := o.checkNoteOwner(ctx, ownerID, noteID); err != nil {
		return nil, err
	}
	classification, err := o.store.LatestClassification(ctx, noteID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return classification, err
}

// Cancel is a best-effort pre-start guard: it only applies to pending
// jobs, transitioning them straight to failed. In-flight extraction and
// LLM calls are never preempted.
func (o *Orchestrator) Cancel(ctx context.Context, ownerID, jobID uuid.UUID) error {
	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrJobNotFound
		}
		return err
	}
	if job.OwnerID != ownerID {
		return ErrJobNotFound
	}
	if job.Status != models.StatusPending {
		return fmt.Errorf("%w: cannot cancel job with status %q", ErrInvalidState, job.Status)
	}

	// The conditional write settles the race with a worker picking the job
	// up: whoever transitions the pending row first wins.
	if err := o.failJob(ctx, job, "cancelled by user"); err != nil {
		return fmt.Errorf("%w: job already started", ErrInvalidState)
	}
	o.log.WithField("job_id", job.ID).Info("Job cancelled")
	return nil
}

// ReapStale fails processing jobs that blew past every stage deadline,
// typically because the process died mid-run. Keeps the guarantee that no
// job is observed "processing" forever.
func (o *Orchestrator) ReapStale(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-(o.opts.ExtractionTimeout + o.opts.AnalysisTimeout + reaperSlack))
	stale, err := o.store.ListStaleProcessing(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("list stale jobs: %w", err)
	}
	for i := range stale {
		job := stale[i]
		if err := o.failJob(ctx, &job, "job exceeded its processing deadline"); err != nil {
			continue // finished between the list and the write
		}
		o.log.WithField("job_id", job.ID).Warn("Reaped stale job")
	}
	return nil
}

func (o *Orchestrator) checkNoteOwner(ctx context.Context, ownerID, noteID uuid.UUID) error {
	note, err := o.store.GetNote(ctx, noteID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNoteNotFound
		}
		return err
	}
	if note.OwnerID != ownerID {
		return ErrNoteNotFound
	}
	return nil
}

// failJob drives a job to the failed terminal state, conditional on the
// job still holding the status the caller saw. Progress freezes at its
// last value; the only write is to the job's own row. Returns
// store.ErrStaleTransition when another writer moved the job first;
// other store errors are logged and swallowed.
func (o *Orchestrator) failJob(ctx context.Context, job *models.ProcessingJob, message string) error {
	from := job.Status
	now := time.Now().UTC()
	job.Status = models.StatusFailed
	job.ErrorMessage = &message
	job.CompletedAt = &now
	err := o.store.TransitionJob(ctx, job, from)
	if errors.Is(err, store.ErrStaleTransition) {
		return err
	}
	if err != nil {
		o.log.WithFields(logrus.Fields{"job_id": job.ID, "error": err.Error()}).
			Error("Could not record job failure")
	}
	return nil
}

// stageMessage labels a failure with the stage it occurred in, naming the
// timeout explicitly so operators can tell a degraded media engine from a
// degraded LLM backend.
func stageMessage(stage string, err error, timeout time.Duration) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("%s timed out after %s", stage, timeout)
	}
	return fmt.Sprintf("%s failed: %v", stage, err)
}

// timeoutOr converts a stage-context deadline into DeadlineExceeded while
// leaving caller cancellation and real errors untouched.
func timeoutOr(stageCtx, parent context.Context, err error) error {
	if stageCtx.Err() != nil && parent.Err() == nil {
		return context.DeadlineExceeded
	}
	return err
}
