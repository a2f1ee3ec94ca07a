package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"paranote/backend/models"
)

// GormStore implements Store on a gorm database. sqlite is the default
// backend; the schema is migrated on open.
type GormStore struct {
	db *gorm.DB
}

// OpenSQLite opens (or creates) the sqlite database at path and migrates
// the schema. Use ":memory:" in tests.
func OpenSQLite(path string) (*GormStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return NewGormStore(db)
}

// NewGormStore wraps an existing gorm handle and migrates the schema.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	err := db.AutoMigrate(
		&models.Note{},
		&models.Media{},
		&models.ProcessingJob{},
		&models.ProcessedResult{},
		&models.TextClassification{},
	)
	if err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &GormStore{db: db}, nil
}

// DB exposes the underlying handle for test seeding.
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

func (s *GormStore) CreateJobUnlessActive(ctx context.Context, job *models.ProcessingJob) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var active int64
		err := tx.Model(&models.ProcessingJob{}).
			Where("note_id = ? AND job_type = ? AND status IN ?",
				job.NoteID, job.JobType,
				[]models.JobStatus{models.StatusPending, models.StatusProcessing}).
			Count(&active).Error
		if err != nil {
			return err
		}
		if active > 0 {
			return ErrActiveJobExists
		}
		return tx.Create(job).Error
	})
}

func (s *GormStore) GetJob(ctx context.Context, id uuid.UUID) (*models.ProcessingJob, error) {
	var job models.ProcessingJob
	err := s.db.WithContext(ctx).First(&job, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *GormStore) TransitionJob(ctx context.Context, job *models.ProcessingJob, from models.JobStatus) error {
	job.UpdatedAt = time.Now().UTC()
	res := s.db.WithContext(ctx).
		Model(&models.ProcessingJob{}).
		Where("id = ? AND status = ?", job.ID, from).
		Updates(map[string]any{
			"status":        job.Status,
			"progress":      job.Progress,
			"error_message": job.ErrorMessage,
			"started_at":    job.StartedAt,
			"completed_at":  job.CompletedAt,
			"updated_at":    job.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleTransition
	}
	return nil
}

func (s *GormStore) ListStaleProcessing(ctx context.Context, cutoff time.Time) ([]models.ProcessingJob, error) {
	var jobs []models.ProcessingJob
	err := s.db.WithContext(ctx).
		Where("status = ? AND started_at < ?", models.StatusProcessing, cutoff).
		Find(&jobs).Error
	return jobs, err
}

func (s *GormStore) SaveResult(ctx context.Context, result *models.ProcessedResult) error {
	return s.db.WithContext(ctx).Create(result).Error
}

func (s *GormStore) ResultsForNote(ctx context.Context, noteID uuid.UUID) ([]models.ProcessedResult, error) {
	results := []models.ProcessedResult{}
	err := s.db.WithContext(ctx).
		Where("note_id = ?", noteID).
		Order("created_at").
		Find(&results).Error
	return results, err
}

func (s *GormStore) SaveClassification(ctx context.Context, classification *models.TextClassification) error {
	// Replace-not-append: one classification per note.
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "note_id"}},
		UpdateAll: true,
	}).Create(classification).Error
}

func (s *GormStore) LatestClassification(ctx context.Context, noteID uuid.UUID) (*models.TextClassification, error) {
	var classification models.TextClassification
	err := s.db.WithContext(ctx).First(&classification, "note_id = ?", noteID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &classification, nil
}

func (s *GormStore) GetNote(ctx context.Context, id uuid.UUID) (*models.Note, error) {
	var note models.Note
	err := s.db.WithContext(ctx).First(&note, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &note, nil
}

func (s *GormStore) GetMedia(ctx context.Context, id uuid.UUID) (*models.Media, error) {
	var media models.Media
	err := s.db.WithContext(ctx).First(&media, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &media, nil
}
