package models

import (
	"time"

	"github.com/google/uuid"
)

// ContentType describes what kind of text a processed result carries.
type ContentType string

const (
	ContentTypeTranscription  ContentType = "transcription"
	ContentTypeOCR            ContentType = "ocr"
	ContentTypeDocumentText   ContentType = "document_text"
	ContentTypeSummary        ContentType = "summary"
	ContentTypeClassification ContentType = "classification"
)

// ContentTypeForJob maps a job type to the content type of its result.
func ContentTypeForJob(t JobType) ContentType {
	switch t {
	case JobTypeAudio:
		return ContentTypeTranscription
	case JobTypeImage:
		return ContentTypeOCR
	case JobTypeDocument, JobTypeLink:
		return ContentTypeDocumentText
	case JobTypeTextClassification:
		return ContentTypeClassification
	}
	return ContentTypeSummary
}

// ProcessedResult is the output of a successfully completed job. Created
// atomically with the job's completed transition and never mutated after.
type ProcessedResult struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	JobID           uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"job_id"`
	NoteID          uuid.UUID      `gorm:"type:uuid;not null;index" json:"note_id"`
	ContentType     ContentType    `gorm:"type:varchar(50);not null" json:"content_type"`
	RawText         *string        `json:"raw_text,omitempty"` // nil for pure-classification jobs
	Summary         string         `json:"summary"`
	KeyPoints       []string       `gorm:"serializer:json" json:"key_points"`
	ExtractedTasks  []string       `gorm:"serializer:json" json:"extracted_tasks"`
	Metadata        map[string]any `gorm:"serializer:json" json:"metadata"`
	ConfidenceScore int            `gorm:"not null;default:0" json:"confidence_score"` // 0-100
	CreatedAt       time.Time      `json:"created_at"`
}

func (ProcessedResult) TableName() string {
	return "processed_results"
}
