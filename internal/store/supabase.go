package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"

	"paranote/backend/models"
)

// SupabaseStore implements Store against the hosted Postgres through
// PostgREST. Unlike the gorm store it cannot wrap the duplicate-active-job
// check and the insert in one transaction; the read-then-insert race is
// accepted for hosted mode (see DESIGN.md).
type SupabaseStore struct {
	client *supa.Client
}

// NewSupabaseStore builds a store from explicit credentials; no global
// client, so tests and multi-tenant setups can construct their own.
func NewSupabaseStore(url, key string) (*SupabaseStore, error) {
	client, err := supa.NewClient(url, key, nil)
	if err != nil {
		return nil, fmt.Errorf("init supabase client: %w", err)
	}
	return &SupabaseStore{client: client}, nil
}

func (s *SupabaseStore) CreateJobUnlessActive(ctx context.Context, job *models.ProcessingJob) error {
	var active []models.ProcessingJob
	body, _, err := s.client.From("processing_jobs").
		Select("id", "", false).
		Eq("note_id", job.NoteID.String()).
		Eq("job_type", string(job.JobType)).
		In("status", []string{string(models.StatusPending), string(models.StatusProcessing)}).
		Execute()
	if err != nil {
		return fmt.Errorf("check active jobs: %w", err)
	}
	if err := json.Unmarshal(body, &active); err != nil {
		return fmt.Errorf("decode active jobs: %w", err)
	}
	if len(active) > 0 {
		return ErrActiveJobExists
	}

	_, _, err = s.client.From("processing_jobs").
		Insert(job, false, "", "representation", "").
		Execute()
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (s *SupabaseStore) GetJob(ctx context.Context, id uuid.UUID) (*models.ProcessingJob, error) {
	var jobs []models.ProcessingJob
	body, _, err := s.client.From("processing_jobs").
		Select("*", "", false).
		Eq("id", id.String()).
		Limit(1, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("fetch job: %w", err)
	}
	if err := json.Unmarshal(body, &jobs); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	if len(jobs) == 0 {
		return nil, ErrNotFound
	}
	return &jobs[0], nil
}

func (s *SupabaseStore) TransitionJob(ctx context.Context, job *models.ProcessingJob, from models.JobStatus) error {
	job.UpdatedAt = time.Now().UTC()
	// The status filter makes the update conditional; an empty representation
	// body means the stored status moved on and nothing matched.
	body, _, err := s.client.From("processing_jobs").
		Update(job, "representation", "").
		Eq("id", job.ID.String()).
		Eq("status", string(from)).
		Execute()
	if err != nil {
		return fmt.Errorf("transition job: %w", err)
	}
	var updated []models.ProcessingJob
	if err := json.Unmarshal(body, &updated); err != nil {
		return fmt.Errorf("decode transitioned job: %w", err)
	}
	if len(updated) == 0 {
		return ErrStaleTransition
	}
	return nil
}

func (s *SupabaseStore) ListStaleProcessing(ctx context.Context, cutoff time.Time) ([]models.ProcessingJob, error) {
	var jobs []models.ProcessingJob
	body, _, err := s.client.From("processing_jobs").
		Select("*", "", false).
		Eq("status", string(models.StatusProcessing)).
		Lt("started_at", cutoff.UTC().Format(time.RFC3339)).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("list stale jobs: %w", err)
	}
	if err := json.Unmarshal(body, &jobs); err != nil {
		return nil, fmt.Errorf("decode stale jobs: %w", err)
	}
	return jobs, nil
}

func (s *SupabaseStore) SaveResult(ctx context.Context, result *models.ProcessedResult) error {
	_, _, err := s.client.From("processed_results").
		Insert(result, false, "", "representation", "").
		Execute()
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

func (s *SupabaseStore) ResultsForNote(ctx context.Context, noteID uuid.UUID) ([]models.ProcessedResult, error) {
	results := []models.ProcessedResult{}
	body, _, err := s.client.From("processed_results").
		Select("*", "", false).
		Eq("note_id", noteID.String()).
		Order("created_at", &postgrest.OrderOpts{Ascending: true}).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("fetch results: %w", err)
	}
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}
	return results, nil
}

func (s *SupabaseStore) SaveClassification(ctx context.Context, classification *models.TextClassification) error {
	// Upsert on note_id keeps the one-classification-per-note invariant.
	_, _, err := s.client.From("text_classifications").
		Insert(classification, true, "note_id", "representation", "").
		Execute()
	if err != nil {
		return fmt.Errorf("upsert classification: %w", err)
	}
	return nil
}

func (s *SupabaseStore) LatestClassification(ctx context.Context, noteID uuid.UUID) (*models.TextClassification, error) {
	var classifications []models.TextClassification
	body, _, err := s.client.From("text_classifications").
		Select("*", "", false).
		Eq("note_id", noteID.String()).
		Limit(1, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("fetch classification: %w", err)
	}
	if err := json.Unmarshal(body, &classifications); err != nil {
		return nil, fmt.Errorf("decode classification: %w", err)
	}
	if len(classifications) == 0 {
		return nil, ErrNotFound
	}
	return &classifications[0], nil
}

func (s *SupabaseStore) GetNote(ctx context.Context, id uuid.UUID) (*models.Note, error) {
	var notes []models.Note
	body, _, err := s.client.From("notes").
		Select("*", "", false).
		Eq("id", id.String()).
		Limit(1, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("fetch note: %w", err)
	}
	if err := json.Unmarshal(body, &notes); err != nil {
		return nil, fmt.Errorf("decode note: %w", err)
	}
	if len(notes) == 0 {
		return nil, ErrNotFound
	}
	return &notes[0], nil
}

func (s *SupabaseStore) GetMedia(ctx context.Context, id uuid.UUID) (*models.Media, error) {
	var media []models.Media
	body, _, err := s.client.From("media").
		Select("*", "", false).
		Eq("id", id.String()).
		Limit(1, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("fetch media: %w", err)
	}
	if err := json.Unmarshal(body, &media); err != nil {
		return nil, fmt.Errorf("decode media: %w", err)
	}
	if len(media) == 0 {
		return nil, ErrNotFound
	}
	return &media[0], nil
}
