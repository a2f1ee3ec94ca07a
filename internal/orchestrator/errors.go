package orchestrator

import "errors"

var (
	// ErrDuplicateJob rejects a submission while an active job covers the
	// same (note, job type) pair. Duplicates would double-bill LLM calls
	// and produce duplicate results, so this is a hard invariant.
	ErrDuplicateJob = errors.New("an active job already exists for this note and job type")

	// ErrJobNotFound covers unknown job ids and cross-owner lookups alike;
	// callers cannot distinguish the two.
	ErrJobNotFound = errors.New("job not found")

	// ErrNoteNotFound covers unknown note ids and cross-owner lookups.
	ErrNoteNotFound = errors.New("note not found")

	// ErrMediaNotFound is returned when a media reference cannot be resolved.
	ErrMediaNotFound = errors.New("media not found")

	// ErrInvalidState rejects an illegal state transition attempt, such as
	// cancelling a job that is already running or terminal.
	ErrInvalidState = errors.New("operation not permitted in the job's current state")

	// ErrInvalidJobType rejects unrecognized job types at submission.
	ErrInvalidJobType = errors.New("unrecognized job type")

	// ErrMediaRefRequired and ErrMediaRefForbidden reject bad job_type /
	// media_ref combinations at submission.
	ErrMediaRefRequired  = errors.New("media reference is required for this job type")
	ErrMediaRefForbidden = errors.New("media reference is not allowed for text classification")
)
