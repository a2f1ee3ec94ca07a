package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"paranote/backend/internal/analyzer"
	"paranote/backend/internal/orchestrator"
	"paranote/backend/internal/store"
	"paranote/backend/models"
	"paranote/backend/utils"
)

// ownerHeader identifies the caller. Authentication happens upstream; by the
// time a request reaches this service the gateway has already verified the
// user and stamped their id here.
const ownerHeader = "X-User-ID"

func ownerID(c *fiber.Ctx) (uuid.UUID, error) {
	raw := c.Get(ownerHeader)
	if raw == "" {
		return uuid.Nil, errors.New("missing " + ownerHeader + " header")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errors.New("invalid " + ownerHeader + " header")
	}
	return id, nil
}

// StartProcessingRequest is the body for POST /processing/start/:mediaId.
type StartProcessingRequest struct {
	NoteID string `json:"note_id" validate:"required,uuid4"`
}

// ClassifyRequest is the optional body for POST /processing/classify/:noteId.
// Areas and projects give the classifier the caller's existing PARA names so
// its suggestions can reference them.
type ClassifyRequest struct {
	Areas    []string `json:"areas" validate:"omitempty,max=100,dive,max=200"`
	Projects []string `json:"projects" validate:"omitempty,max=100,dive,max=200"`
}

// StartProcessing kicks off extraction for an uploaded media file. The job
// type is derived from the file's extension; unsupported extensions are
// rejected before a job row exists.
func (h *ApplicationHandler) StartProcessing(c *fiber.Ctx) error {
	owner, err := ownerID(c)
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusUnauthorized, err.Error())
	}

	mediaID, err := uuid.Parse(c.Params("mediaId"))
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Invalid media ID format")
	}

	var req StartProcessingRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := h.Validate.Struct(req); err != nil {
		h.Logger.WithField("errors", utils.FormatValidationErrors(err)).Warn("Start processing validation failed")
		return utils.RespondWithError(c, fiber.StatusBadRequest, strings.Join(utils.FormatValidationErrors(err), "; "))
	}
	noteID, err := uuid.Parse(req.NoteID)
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Invalid note ID format")
	}

	media, err := h.Notes.GetMedia(c.Context(), mediaID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return utils.RespondWithError(c, fiber.StatusNotFound, "Media not found")
		}
		h.Logger.WithField("error", err.Error()).Error("Failed to look up media")
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Failed to look up media")
	}
	if media.NoteID != noteID {
		return utils.RespondWithError(c, fiber.StatusNotFound, "Media not found")
	}

	jobType, ok := models.JobTypeForExtension(strings.ToLower(media.FileType))
	if !ok {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Unsupported file type: "+media.FileType)
	}

	ref := mediaID.String()
	job, err := h.Processing.Submit(c.Context(), orchestrator.SubmitRequest{
		OwnerID:  owner,
		NoteID:   noteID,
		MediaRef: &ref,
		JobType:  jobType,
	})
	if err != nil {
		return h.respondSubmitError(c, err)
	}
	return utils.RespondWithJSON(c, fiber.StatusAccepted, job)
}

// StartLinkRequest is the body for POST /processing/link.
type StartLinkRequest struct {
	NoteID string `json:"note_id" validate:"required,uuid4"`
	URL    string `json:"url" validate:"required,url,max=2000"`
}

// StartLink queues article extraction for a web URL.
func (h *ApplicationHandler) StartLink(c *fiber.Ctx) error {
	owner, err := ownerID(c)
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusUnauthorized, err.Error())
	}

	var req StartLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := h.Validate.Struct(req); err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, strings.Join(utils.FormatValidationErrors(err), "; "))
	}
	noteID, err := uuid.Parse(req.NoteID)
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Invalid note ID format")
	}

	job, err := h.Processing.Submit(c.Context(), orchestrator.SubmitRequest{
		OwnerID:  owner,
		NoteID:   noteID,
		MediaRef: &req.URL,
		JobType:  models.JobTypeLink,
	})
	if err != nil {
		return h.respondSubmitError(c, err)
	}
	return utils.RespondWithJSON(c, fiber.StatusAccepted, job)
}

// ClassifyNote queues PARA classification of the note's text content.
func (h *ApplicationHandler) ClassifyNote(c *fiber.Ctx) error {
	owner, err := ownerID(c)
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusUnauthorized, err.Error())
	}

	noteID, err := uuid.Parse(c.Params("noteId"))
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Invalid note ID format")
	}

	// The body is optional: an empty body classifies without PARA context.
	var req ClassifyRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return utils.RespondWithError(c, fiber.StatusBadRequest, "Invalid request body")
		}
		if err := h.Validate.Struct(req); err != nil {
			return utils.RespondWithError(c, fiber.StatusBadRequest, strings.Join(utils.FormatValidationErrors(err), "; "))
		}
	}

	job, err := h.Processing.Submit(c.Context(), orchestrator.SubmitRequest{
		OwnerID: owner,
		NoteID:  noteID,
		JobType: models.JobTypeTextClassification,
		ClassifyContext: analyzer.Context{
			Areas:    req.Areas,
			Projects: req.Projects,
		},
	})
	if err != nil {
		return h.respondSubmitError(c, err)
	}
	return utils.RespondWithJSON(c, fiber.StatusAccepted, job)
}

// JobStatus returns one job for polling.
func (h *ApplicationHandler) JobStatus(c *fiber.Ctx) error {
	owner, err := ownerID(c)
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusUnauthorized, err.Error())
	}
	jobID, err := uuid.Parse(c.Params("jobId"))
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Invalid job ID format")
	}

	job, err := h.Processing.Status(c.Context(), owner, jobID)
	if err != nil {
		if errors.Is(err, orchestrator.ErrJobNotFound) {
			return utils.RespondWithError(c, fiber.StatusNotFound, "Job not found")
		}
		h.Logger.WithField("error", err.Error()).Error("Failed to fetch job status")
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Failed to fetch job status")
	}
	return utils.RespondWithJSON(c, fiber.StatusOK, job)
}

// NoteResults lists every processed result attached to a note.
func (h *ApplicationHandler) NoteResults(c *fiber.Ctx) error {
	owner, err := ownerID(c)
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusUnauthorized, err.Error())
	}
	noteID, err := uuid.Parse(c.Params("noteId"))
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Invalid note ID format")
	}

	results, err := h.Processing.ResultsForNote(c.Context(), owner, noteID)
	if err != nil {
		if errors.Is(err, orchestrator.ErrNoteNotFound) {
			return utils.RespondWithError(c, fiber.StatusNotFound, "Note not found")
		}
		h.Logger.WithField("error", err.Error()).Error("Failed to fetch results")
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Failed to fetch results")
	}
	if results == nil {
		results = []models.ProcessedResult{}
	}
	return utils.RespondWithJSON(c, fiber.StatusOK, results)
}

// NoteClassification returns the note's classification, or a null payload
// when the note has never been classified.
func (h *ApplicationHandler) NoteClassification(c *fiber.Ctx) error {
	owner, err := ownerID(c)
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusUnauthorized, err.Error())
	}
	noteID, err := uuid.Parse(c.Params("noteId"))
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Invalid note ID format")
	}

	classification, err := h.Processing.LatestClassification(c.Context(), owner, noteID)
	if err != nil {
		if errors.Is(err, orchestrator.ErrNoteNotFound) {
			return utils.RespondWithError(c, fiber.StatusNotFound, "Note not found")
		}
		h.Logger.WithField("error", err.Error()).Error("Failed to fetch classification")
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Failed to fetch classification")
	}
	return utils.RespondWithJSON(c, fiber.StatusOK, classification)
}

// CancelJob cancels a pending job. Jobs already picked up by a worker run to
// completion; cancelling them is a conflict, not a no-op.
func (h *ApplicationHandler) CancelJob(c *fiber.Ctx) error {
	owner, err := ownerID(c)
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusUnauthorized, err.Error())
	}
	jobID, err := uuid.Parse(c.Params("jobId"))
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Invalid job ID format")
	}

	if err := h.Processing.Cancel(c.Context(), owner, jobID); err != nil {
		switch {
		case errors.Is(err, orchestrator.ErrJobNotFound):
			return utils.RespondWithError(c, fiber.StatusNotFound, "Job not found")
		case errors.Is(err, orchestrator.ErrInvalidState):
			return utils.RespondWithError(c, fiber.StatusConflict, err.Error())
		default:
			h.Logger.WithField("error", err.Error()).Error("Failed to cancel job")
			return utils.RespondWithError(c, fiber.StatusInternalServerError, "Failed to cancel job")
		}
	}
	return utils.RespondWithJSON(c, fiber.StatusOK, fiber.Map{"cancelled": true})
}

func (h *ApplicationHandler) respondSubmitError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, orchestrator.ErrDuplicateJob):
		return utils.RespondWithError(c, fiber.StatusConflict, "A job of this type is already active for this note")
	case errors.Is(err, orchestrator.ErrNoteNotFound):
		return utils.RespondWithError(c, fiber.StatusNotFound, "Note not found")
	case errors.Is(err, orchestrator.ErrMediaNotFound):
		return utils.RespondWithError(c, fiber.StatusNotFound, "Media not found")
	case errors.Is(err, orchestrator.ErrInvalidJobType),
		errors.Is(err, orchestrator.ErrMediaRefRequired),
		errors.Is(err, orchestrator.ErrMediaRefForbidden):
		return utils.RespondWithError(c, fiber.StatusBadRequest, err.Error())
	default:
		h.Logger.WithFields(logrus.Fields{"error": err.Error()}).Error("Failed to submit job")
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Failed to submit job")
	}
}
