package orchestrator

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paranote/backend/internal/analyzer"
	"paranote/backend/internal/extractor"
	"paranote/backend/internal/llm"
	"paranote/backend/internal/store"
	"paranote/backend/internal/worker"
	"paranote/backend/models"
)

// memStore is an in-memory store.Store for exercising the state machine
// without a database.
type memStore struct {
	mu              sync.Mutex
	jobs            map[uuid.UUID]models.ProcessingJob
	results         map[uuid.UUID][]models.ProcessedResult
	classifications map[uuid.UUID]models.TextClassification
	notes           map[uuid.UUID]models.Note
	media           map[uuid.UUID]models.Media
	// afterGetJob, when set, fires once after the next GetJob returns.
	// Lets a test interleave a writer between a read and its transition.
	afterGetJob func()
}

func newMemStore() *memStore {
	return &memStore{
		jobs:            map[uuid.UUID]models.ProcessingJob{},
		results:         map[uuid.UUID][]models.ProcessedResult{},
		classifications: map[uuid.UUID]models.TextClassification{},
		notes:           map[uuid.UUID]models.Note{},
		media:           map[uuid.UUID]models.Media{},
	}
}

func (s *memStore) CreateJobUnlessActive(ctx context.Context, job *models.ProcessingJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.jobs {
		if existing.NoteID == job.NoteID && existing.JobType == job.JobType && existing.Status.Active() {
			return store.ErrActiveJobExists
		}
	}
	s.jobs[job.ID] = *job
	return nil
}

func (s *memStore) GetJob(ctx context.Context, id uuid.UUID) (*models.ProcessingJob, error) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	hook := s.afterGetJob
	s.afterGetJob = nil
	s.mu.Unlock()
	if !ok {
		return nil, store.ErrNotFound
	}
	if hook != nil {
		hook()
	}
	return &job, nil
}

func (s *memStore) TransitionJob(ctx context.Context, job *models.ProcessingJob, from models.JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.jobs[job.ID]
	if !ok || current.Status != from {
		return store.ErrStaleTransition
	}
	s.jobs[job.ID] = *job
	return nil
}

func (s *memStore) ListStaleProcessing(ctx context.Context, cutoff time.Time) ([]models.ProcessingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ProcessingJob
	for _, job := range s.jobs {
		if job.Status == models.StatusProcessing && job.StartedAt != nil && job.StartedAt.Before(cutoff) {
			out = append(out, job)
		}
	}
	return out, nil
}

func (s *memStore) SaveResult(ctx context.Context, result *models.ProcessedResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[result.NoteID] = append(s.results[result.NoteID], *result)
	return nil
}

func (s *memStore) ResultsForNote(ctx context.Context, noteID uuid.UUID) ([]models.ProcessedResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ProcessedResult{}, s.results[noteID]...), nil
}

func (s *memStore) SaveClassification(ctx context.Context, classification *models.TextClassification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classifications[classification.NoteID] = *classification
	return nil
}

func (s *memStore) LatestClassification(ctx context.Context, noteID uuid.UUID) (*models.TextClassification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	classification, ok := s.classifications[noteID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &classification, nil
}

func (s *memStore) GetNote(ctx context.Context, id uuid.UUID) (*models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	note, ok := s.notes[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &note, nil
}

func (s *memStore) GetMedia(ctx context.Context, id uuid.UUID) (*models.Media, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	media, ok := s.media[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &media, nil
}

// inlineSubmitter runs each job synchronously, making every Submit
// deterministic for assertions.
type inlineSubmitter struct{}

func (inlineSubmitter) Submit(job worker.Job) error {
	_ = job.Execute(context.Background())
	return nil
}

// heldSubmitter accepts jobs without running them, modelling a queued job
// no worker has picked up yet.
type heldSubmitter struct {
	jobs []worker.Job
}

func (s *heldSubmitter) Submit(job worker.Job) error {
	s.jobs = append(s.jobs, job)
	return nil
}

type rejectingSubmitter struct{}

func (rejectingSubmitter) Submit(worker.Job) error { return worker.ErrQueueFull }

type fakeAnalyzer struct {
	analyze  func(ctx context.Context, text, contentType string) (*analyzer.Analysis, error)
	classify func(ctx context.Context, text string, userCtx analyzer.Context) (*analyzer.Classification, error)
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, text, contentType string) (*analyzer.Analysis, error) {
	return f.analyze(ctx, text, contentType)
}

func (f *fakeAnalyzer) Classify(ctx context.Context, text string, userCtx analyzer.Context) (*analyzer.Classification, error) {
	return f.classify(ctx, text, userCtx)
}

type fakeExtractor struct {
	extract func(ctx context.Context, ref string) (*extractor.Result, error)
}

func (f *fakeExtractor) Extract(ctx context.Context, ref string) (*extractor.Result, error) {
	return f.extract(ctx, ref)
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func okAnalysis() *analyzer.Analysis {
	area := "Work"
	return &analyzer.Analysis{
		Summary:        "a summary",
		KeyPoints:      []string{"point"},
		ExtractedTasks: []string{},
		SuggestedArea:  &area,
		IsActionable:   false,
		Confidence:     80,
	}
}

type fixture struct {
	store *memStore
	orch  *Orchestrator
	owner uuid.UUID
	note  uuid.UUID
	media uuid.UUID
}

func newFixture(t *testing.T, az analyzerService, pool submitter, extractors map[models.JobType]extractor.Extractor) *fixture {
	t.Helper()
	st := newMemStore()
	owner := uuid.New()
	noteID := uuid.New()
	mediaID := uuid.New()
	content := "Call the dentist tomorrow at 3pm"
	st.notes[noteID] = models.Note{ID: noteID, OwnerID: owner, Content: &content, NoteType: "text"}
	st.media[mediaID] = models.Media{ID: mediaID, NoteID: noteID, FilePath: "docs/report.pdf", FileType: "pdf"}

	orch := New(st, extractors, az, pool, testLogger(), Options{
		ExtractionTimeout: time.Second,
		AnalysisTimeout:   time.Second,
		UploadDir:         "/uploads",
	})
	return &fixture{store: st, orch: orch, owner: owner, note: noteID, media: mediaID}
}

func mediaRef(f *fixture) *string {
	ref := f.media.String()
	return &ref
}

func TestSubmitCompletesDocumentJob(t *testing.T) {
	var extractedRef string
	ext := &fakeExtractor{extract: func(ctx context.Context, ref string) (*extractor.Result, error) {
		extractedRef = ref
		return &extractor.Result{Text: "document body", Metadata: map[string]any{"format": "pdf"}}, nil
	}}
	az := &fakeAnalyzer{analyze: func(ctx context.Context, text, contentType string) (*analyzer.Analysis, error) {
		assert.Equal(t, "document body", text)
		assert.Equal(t, "document_text", contentType)
		return okAnalysis(), nil
	}}
	f := newFixture(t, az, inlineSubmitter{}, map[models.JobType]extractor.Extractor{models.JobTypeDocument: ext})

	job, err := f.orch.Submit(context.Background(), SubmitRequest{
		OwnerID:  f.owner,
		NoteID:   f.note,
		MediaRef: mediaRef(f),
		JobType:  models.JobTypeDocument,
	})
	require.NoError(t, err)
	assert.Equal(t, "/uploads/docs/report.pdf", extractedRef)

	final, err := f.orch.Status(context.Background(), f.owner, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, final.Status)
	assert.Equal(t, 100, final.Progress)
	require.NotNil(t, final.StartedAt)
	require.NotNil(t, final.CompletedAt)
	assert.Nil(t, final.ErrorMessage)

	results, err := f.orch.ResultsForNote(context.Background(), f.owner, f.note)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, models.ContentTypeDocumentText, results[0].ContentType)
	assert.Equal(t, "a summary", results[0].Summary)
	assert.Equal(t, "Work", results[0].Metadata["suggested_area"])
	assert.Equal(t, "pdf", results[0].Metadata["format"])
	require.NotNil(t, results[0].RawText)
	assert.Equal(t, "document body", *results[0].RawText)
}

func TestSubmitRejectsInvalidRequests(t *testing.T) {
	f := newFixture(t, &fakeAnalyzer{}, inlineSubmitter{}, nil)
	ctx := context.Background()

	_, err := f.orch.Submit(ctx, SubmitRequest{OwnerID: f.owner, NoteID: f.note, JobType: "spreadsheet"})
	assert.ErrorIs(t, err, ErrInvalidJobType)

	_, err = f.orch.Submit(ctx, SubmitRequest{OwnerID: f.owner, NoteID: f.note, JobType: models.JobTypeAudio})
	assert.ErrorIs(t, err, ErrMediaRefRequired)

	ref := "extra"
	_, err = f.orch.Submit(ctx, SubmitRequest{OwnerID: f.owner, NoteID: f.note, MediaRef: &ref, JobType: models.JobTypeTextClassification})
	assert.ErrorIs(t, err, ErrMediaRefForbidden)
}

func TestSubmitUnknownOrForeignNote(t *testing.T) {
	f := newFixture(t, &fakeAnalyzer{}, inlineSubmitter{}, nil)
	ctx := context.Background()

	_, err := f.orch.Submit(ctx, SubmitRequest{OwnerID: f.owner, NoteID: uuid.New(), JobType: models.JobTypeTextClassification})
	assert.ErrorIs(t, err, ErrNoteNotFound)

	_, err = f.orch.Submit(ctx, SubmitRequest{OwnerID: uuid.New(), NoteID: f.note, JobType: models.JobTypeTextClassification})
	assert.ErrorIs(t, err, ErrNoteNotFound)
}

func TestSubmitDuplicateActiveJob(t *testing.T) {
	held := &heldSubmitter{}
	f := newFixture(t, &fakeAnalyzer{}, held, nil)
	ctx := context.Background()

	_, err := f.orch.Submit(ctx, SubmitRequest{OwnerID: f.owner, NoteID: f.note, JobType: models.JobTypeTextClassification})
	require.NoError(t, err)

	_, err = f.orch.Submit(ctx, SubmitRequest{OwnerID: f.owner, NoteID: f.note, JobType: models.JobTypeTextClassification})
	assert.ErrorIs(t, err, ErrDuplicateJob)
}

func TestSubmitQueueFullFailsJob(t *testing.T) {
	f := newFixture(t, &fakeAnalyzer{}, rejectingSubmitter{}, nil)

	_, err := f.orch.Submit(context.Background(), SubmitRequest{OwnerID: f.owner, NoteID: f.note, JobType: models.JobTypeTextClassification})
	require.Error(t, err)

	// The rejected job must not linger as pending.
	for _, job := range f.store.jobs {
		assert.Equal(t, models.StatusFailed, job.Status)
		require.NotNil(t, job.ErrorMessage)
		assert.Contains(t, *job.ErrorMessage, "could not schedule")
	}
}

func TestExtractionFailureIsContained(t *testing.T) {
	ext := &fakeExtractor{extract: func(ctx context.Context, ref string) (*extractor.Result, error) {
		return nil, errors.New("corrupt file")
	}}
	f := newFixture(t, &fakeAnalyzer{}, inlineSubmitter{}, map[models.JobType]extractor.Extractor{models.JobTypeDocument: ext})

	job, err := f.orch.Submit(context.Background(), SubmitRequest{
		OwnerID:  f.owner,
		NoteID:   f.note,
		MediaRef: mediaRef(f),
		JobType:  models.JobTypeDocument,
	})
	require.NoError(t, err, "submission succeeds; the job fails later")

	final, err := f.orch.Status(context.Background(), f.owner, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, final.Status)
	assert.Equal(t, 10, final.Progress, "progress freezes at its last milestone")
	require.NotNil(t, final.ErrorMessage)
	assert.Contains(t, *final.ErrorMessage, "extraction failed")
	assert.Contains(t, *final.ErrorMessage, "corrupt file")

	results, err := f.orch.ResultsForNote(context.Background(), f.owner, f.note)
	require.NoError(t, err)
	assert.Empty(t, results, "failed jobs leave no partial results")
}

func TestExtractionFailureDoesNotTouchSiblingJobs(t *testing.T) {
	badExt := &fakeExtractor{extract: func(ctx context.Context, ref string) (*extractor.Result, error) {
		return nil, errors.New("corrupt image")
	}}
	goodExt := &fakeExtractor{extract: func(ctx context.Context, ref string) (*extractor.Result, error) {
		return &extractor.Result{Text: "document body", Metadata: map[string]any{}}, nil
	}}
	az := &fakeAnalyzer{analyze: func(ctx context.Context, text, contentType string) (*analyzer.Analysis, error) {
		return okAnalysis(), nil
	}}
	f := newFixture(t, az, inlineSubmitter{}, map[models.JobType]extractor.Extractor{
		models.JobTypeImage:    badExt,
		models.JobTypeDocument: goodExt,
	})
	ctx := context.Background()

	imageMedia := uuid.New()
	f.store.media[imageMedia] = models.Media{ID: imageMedia, NoteID: f.note, FilePath: "shots/broken.png", FileType: "png"}
	imageRef := imageMedia.String()

	failing, err := f.orch.Submit(ctx, SubmitRequest{OwnerID: f.owner, NoteID: f.note, MediaRef: &imageRef, JobType: models.JobTypeImage})
	require.NoError(t, err)
	succeeding, err := f.orch.Submit(ctx, SubmitRequest{OwnerID: f.owner, NoteID: f.note, MediaRef: mediaRef(f), JobType: models.JobTypeDocument})
	require.NoError(t, err)

	failed, err := f.orch.Status(ctx, f.owner, failing.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, failed.Status)

	completed, err := f.orch.Status(ctx, f.owner, succeeding.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, completed.Status)
	assert.Equal(t, 100, completed.Progress)
}

// scriptedProvider is an llm.Provider that either always fails or returns
// a fixed reply, for exercising gateway fallback inside a full job run.
type scriptedProvider struct {
	name string
	fail bool
	text string
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if p.fail {
		return nil, errors.New("provider unavailable")
	}
	return &llm.Response{Text: p.text, Provider: p.name, Model: "test"}, nil
}

func TestJobCompletesThroughProviderFallback(t *testing.T) {
	gateway, err := llm.NewGateway([]llm.Provider{
		&scriptedProvider{name: "primary", fail: true},
		&scriptedProvider{name: "secondary", text: `{"summary": "fallback summary", "confidence": 0.8}`},
	}, testLogger())
	require.NoError(t, err)

	ext := &fakeExtractor{extract: func(ctx context.Context, ref string) (*extractor.Result, error) {
		return &extractor.Result{Text: "document body", Metadata: map[string]any{}}, nil
	}}
	f := newFixture(t, analyzer.New(gateway), inlineSubmitter{}, map[models.JobType]extractor.Extractor{models.JobTypeDocument: ext})

	job, err := f.orch.Submit(context.Background(), SubmitRequest{
		OwnerID:  f.owner,
		NoteID:   f.note,
		MediaRef: mediaRef(f),
		JobType:  models.JobTypeDocument,
	})
	require.NoError(t, err)

	final, err := f.orch.Status(context.Background(), f.owner, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, final.Status)

	results, err := f.orch.ResultsForNote(context.Background(), f.owner, f.note)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "fallback summary", results[0].Summary)
	assert.Equal(t, 80, results[0].ConfidenceScore)
}

func TestExtractionTimeoutMessage(t *testing.T) {
	ext := &fakeExtractor{extract: func(ctx context.Context, ref string) (*extractor.Result, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	f := newFixture(t, &fakeAnalyzer{}, inlineSubmitter{}, map[models.JobType]extractor.Extractor{models.JobTypeDocument: ext})
	f.orch.opts.ExtractionTimeout = 20 * time.Millisecond

	job, err := f.orch.Submit(context.Background(), SubmitRequest{
		OwnerID:  f.owner,
		NoteID:   f.note,
		MediaRef: mediaRef(f),
		JobType:  models.JobTypeDocument,
	})
	require.NoError(t, err)

	final, err := f.orch.Status(context.Background(), f.owner, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, final.Status)
	require.NotNil(t, final.ErrorMessage)
	assert.Contains(t, *final.ErrorMessage, "extraction timed out after 20ms")
}

func TestAnalysisTimeoutMessage(t *testing.T) {
	ext := &fakeExtractor{extract: func(ctx context.Context, ref string) (*extractor.Result, error) {
		return &extractor.Result{Text: "text", Metadata: map[string]any{}}, nil
	}}
	az := &fakeAnalyzer{analyze: func(ctx context.Context, text, contentType string) (*analyzer.Analysis, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	f := newFixture(t, az, inlineSubmitter{}, map[models.JobType]extractor.Extractor{models.JobTypeDocument: ext})
	f.orch.opts.AnalysisTimeout = 20 * time.Millisecond

	job, err := f.orch.Submit(context.Background(), SubmitRequest{
		OwnerID:  f.owner,
		NoteID:   f.note,
		MediaRef: mediaRef(f),
		JobType:  models.JobTypeDocument,
	})
	require.NoError(t, err)

	final, err := f.orch.Status(context.Background(), f.owner, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, final.Status)
	assert.Equal(t, 50, final.Progress)
	require.NotNil(t, final.ErrorMessage)
	assert.Contains(t, *final.ErrorMessage, "analysis timed out after 20ms")
}

func TestClassificationRoundTrip(t *testing.T) {
	priority := models.PriorityMedium
	az := &fakeAnalyzer{classify: func(ctx context.Context, text string, userCtx analyzer.Context) (*analyzer.Classification, error) {
		assert.Equal(t, "Call the dentist tomorrow at 3pm", text)
		assert.Equal(t, []string{"Health"}, userCtx.Areas)
		area := "Health"
		return &analyzer.Classification{
			Type:          models.ClassificationTask,
			Confidence:    92,
			SuggestedArea: &area,
			IsActionable:  true,
			Priority:      &priority,
		}, nil
	}}
	f := newFixture(t, az, inlineSubmitter{}, nil)

	job, err := f.orch.Submit(context.Background(), SubmitRequest{
		OwnerID:         f.owner,
		NoteID:          f.note,
		JobType:         models.JobTypeTextClassification,
		ClassifyContext: analyzer.Context{Areas: []string{"Health"}},
	})
	require.NoError(t, err)

	final, err := f.orch.Status(context.Background(), f.owner, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, final.Status)

	classification, err := f.orch.LatestClassification(context.Background(), f.owner, f.note)
	require.NoError(t, err)
	require.NotNil(t, classification)
	assert.Equal(t, models.ClassificationTask, classification.Type)
	assert.True(t, classification.IsActionable)
	require.NotNil(t, classification.Priority)
	assert.Equal(t, models.PriorityMedium, *classification.Priority)
	assert.Equal(t, 92, classification.Confidence)
}

func TestLatestClassificationNilWhenAbsent(t *testing.T) {
	f := newFixture(t, &fakeAnalyzer{}, inlineSubmitter{}, nil)

	classification, err := f.orch.LatestClassification(context.Background(), f.owner, f.note)
	require.NoError(t, err)
	assert.Nil(t, classification)
}

func TestCancelPendingJob(t *testing.T) {
	held := &heldSubmitter{}
	f := newFixture(t, &fakeAnalyzer{}, held, nil)
	ctx := context.Background()

	job, err := f.orch.Submit(ctx, SubmitRequest{OwnerID: f.owner, NoteID: f.note, JobType: models.JobTypeTextClassification})
	require.NoError(t, err)

	require.NoError(t, f.orch.Cancel(ctx, f.owner, job.ID))

	final, err := f.orch.Status(ctx, f.owner, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, final.Status)
	require.NotNil(t, final.ErrorMessage)
	assert.Equal(t, "cancelled by user", *final.ErrorMessage)

	// The queued task is a no-op once the job left pending.
	require.Len(t, held.jobs, 1)
	require.NoError(t, held.jobs[0].Execute(ctx))
	final, err = f.orch.Status(ctx, f.owner, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, final.Status)
}

func TestCancelRacingRunStaysFailed(t *testing.T) {
	held := &heldSubmitter{}
	f := newFixture(t, &fakeAnalyzer{classify: func(ctx context.Context, text string, userCtx analyzer.Context) (*analyzer.Classification, error) {
		return &analyzer.Classification{Type: models.ClassificationThought, Confidence: 50}, nil
	}}, held, nil)
	ctx := context.Background()

	job, err := f.orch.Submit(ctx, SubmitRequest{OwnerID: f.owner, NoteID: f.note, JobType: models.JobTypeTextClassification})
	require.NoError(t, err)

	// Land the cancel between the worker's read of the pending row and its
	// claim. The claim must lose and the cancellation must stick.
	f.store.afterGetJob = func() {
		require.NoError(t, f.orch.Cancel(ctx, f.owner, job.ID))
	}
	require.Len(t, held.jobs, 1)
	require.NoError(t, held.jobs[0].Execute(ctx))

	final, err := f.orch.Status(ctx, f.owner, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, final.Status)
	require.NotNil(t, final.ErrorMessage)
	assert.Equal(t, "cancelled by user", *final.ErrorMessage)
	assert.Equal(t, 0, final.Progress)
}

func TestCancelLosingClaimRaceReportsInvalidState(t *testing.T) {
	st := newMemStore()
	job := &models.ProcessingJob{ID: uuid.New(), OwnerID: uuid.New(), NoteID: uuid.New(), JobType: models.JobTypeAudio, Status: models.StatusPending}
	st.jobs[job.ID] = *job

	orch := New(st, nil, &fakeAnalyzer{}, &heldSubmitter{}, testLogger(), Options{})
	ctx := context.Background()

	// A worker claims the job right after Cancel reads it as pending.
	st.afterGetJob = func() {
		claimed := *job
		claimed.Status = models.StatusProcessing
		require.NoError(t, st.TransitionJob(ctx, &claimed, models.StatusPending))
	}
	err := orch.Cancel(ctx, job.OwnerID, job.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	current, getErr := st.GetJob(ctx, job.ID)
	require.NoError(t, getErr)
	assert.Equal(t, models.StatusProcessing, current.Status)
}

func TestCancelRejectsNonPending(t *testing.T) {
	az := &fakeAnalyzer{classify: func(ctx context.Context, text string, userCtx analyzer.Context) (*analyzer.Classification, error) {
		return &analyzer.Classification{Type: models.ClassificationThought, Confidence: 50}, nil
	}}
	f := newFixture(t, az, inlineSubmitter{}, nil)
	ctx := context.Background()

	job, err := f.orch.Submit(ctx, SubmitRequest{OwnerID: f.owner, NoteID: f.note, JobType: models.JobTypeTextClassification})
	require.NoError(t, err)

	err = f.orch.Cancel(ctx, f.owner, job.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestStatusHidesForeignJobs(t *testing.T) {
	held := &heldSubmitter{}
	f := newFixture(t, &fakeAnalyzer{}, held, nil)
	ctx := context.Background()

	job, err := f.orch.Submit(ctx, SubmitRequest{OwnerID: f.owner, NoteID: f.note, JobType: models.JobTypeTextClassification})
	require.NoError(t, err)

	_, err = f.orch.Status(ctx, uuid.New(), job.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)

	err = f.orch.Cancel(ctx, uuid.New(), job.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestReapStaleFailsOrphanedJobs(t *testing.T) {
	f := newFixture(t, &fakeAnalyzer{}, inlineSubmitter{}, nil)
	ctx := context.Background()

	started := time.Now().UTC().Add(-time.Hour)
	orphan := models.ProcessingJob{
		ID:        uuid.New(),
		OwnerID:   f.owner,
		NoteID:    f.note,
		JobType:   models.JobTypeAudio,
		Status:    models.StatusProcessing,
		Progress:  10,
		StartedAt: &started,
	}
	f.store.jobs[orphan.ID] = orphan

	require.NoError(t, f.orch.ReapStale(ctx))

	final, err := f.orch.Status(ctx, f.owner, orphan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, final.Status)
	require.NotNil(t, final.ErrorMessage)
	assert.Contains(t, *final.ErrorMessage, "deadline")
}
