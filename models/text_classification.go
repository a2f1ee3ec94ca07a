package models

import (
	"time"

	"github.com/google/uuid"
)

// ClassificationType buckets a pure-text note.
type ClassificationType string

const (
	ClassificationTask        ClassificationType = "task"
	ClassificationLogEntry    ClassificationType = "log_entry"
	ClassificationThought     ClassificationType = "thought"
	ClassificationMeetingNote ClassificationType = "meeting_note"
	ClassificationInvoice     ClassificationType = "invoice"
	ClassificationEmail       ClassificationType = "email"
	ClassificationReference   ClassificationType = "reference"
	ClassificationOther       ClassificationType = "other"
)

// ParseClassificationType maps free-form model output onto the enum,
// falling back to "other" for anything unrecognized.
func ParseClassificationType(s string) ClassificationType {
	switch ClassificationType(s) {
	case ClassificationTask, ClassificationLogEntry, ClassificationThought,
		ClassificationMeetingNote, ClassificationInvoice, ClassificationEmail,
		ClassificationReference:
		return ClassificationType(s)
	}
	return ClassificationOther
}

// Priority grades actionable classifications.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ParsePriority returns nil for empty, "null" or unrecognized input.
func ParsePriority(s string) *Priority {
	switch p := Priority(s); p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return &p
	}
	return nil
}

// TextClassification is the lighter-weight result of classifying a
// pure-text note. At most one row per note; re-running replaces it.
// Area and project suggestions are advisory labels, never entity ids.
type TextClassification struct {
	ID               uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	NoteID           uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex" json:"note_id"`
	Type             ClassificationType `gorm:"type:varchar(50);not null" json:"classification_type"`
	Confidence       int                `gorm:"not null;default:0" json:"confidence"` // 0-100
	SuggestedArea    *string            `json:"suggested_area,omitempty"`
	SuggestedProject *string            `json:"suggested_project,omitempty"`
	IsActionable     bool               `gorm:"not null;default:false" json:"is_actionable"`
	Priority         *Priority          `gorm:"type:varchar(20)" json:"priority,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

func (TextClassification) TableName() string {
	return "text_classifications"
}
