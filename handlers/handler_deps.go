package handlers

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"paranote/backend/internal/orchestrator"
	"paranote/backend/internal/store"
	"paranote/backend/models"
)

// ProcessingService defines the operations handlers expect from the job
// orchestrator. This allows for decoupling and easier testing.
type ProcessingService interface {
	Submit(ctx context.Context, req orchestrator.SubmitRequest) (*models.ProcessingJob, error)
	Status(ctx context.Context, ownerID, jobID uuid.UUID) (*models.ProcessingJob, error)
	ResultsForNote(ctx context.Context, ownerID, noteID uuid.UUID) ([]models.ProcessedResult, error)
	LatestClassification(ctx context.Context, ownerID, noteID uuid.UUID) (*models.TextClassification, error)
	Cancel(ctx context.Context, ownerID, jobID uuid.UUID) error
}

// ApplicationHandler holds shared dependencies for handlers.
type ApplicationHandler struct {
	Processing ProcessingService
	Notes      store.NoteStore
	Logger     *logrus.Logger
	Validate   *validator.Validate
}

// NewApplicationHandler creates a new ApplicationHandler with the given dependencies.
func NewApplicationHandler(processing ProcessingService, notes store.NoteStore, logger *logrus.Logger) *ApplicationHandler {
	return &ApplicationHandler{
		Processing: processing,
		Notes:      notes,
		Logger:     logger,
		Validate:   validator.New(),
	}
}
