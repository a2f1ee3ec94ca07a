package models

import (
	"time"

	"github.com/google/uuid"
)

// Note is the read-only projection of a captured note. The capture and
// editing surface owns these rows; this service only reads content for
// classification and backfills nothing.
type Note struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID   uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_id"`
	Title     *string   `json:"title,omitempty"`
	Content   *string   `json:"content,omitempty"`
	NoteType  string    `gorm:"type:varchar(50);not null;default:'text'" json:"note_type"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Note) TableName() string {
	return "notes"
}

// Media is the read-only projection of an uploaded file attached to a note.
type Media struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	NoteID    uuid.UUID `gorm:"type:uuid;not null;index" json:"note_id"`
	FilePath  string    `gorm:"type:varchar(1000);not null" json:"file_path"`
	FileType  string    `gorm:"type:varchar(100);not null" json:"file_type"` // lowercase extension
	MimeType  *string   `json:"mime_type,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (Media) TableName() string {
	return "media"
}

// JobTypeForExtension derives the job type for a media file extension the
// way the capture surface records it (no leading dot, lowercase). The
// second return is false for unsupported extensions.
func JobTypeForExtension(ext string) (JobType, bool) {
	switch ext {
	case "mp3", "wav", "m4a", "aac", "ogg", "flac", "wma":
		return JobTypeAudio, true
	case "jpg", "jpeg", "png", "gif", "bmp", "webp", "tiff":
		return JobTypeImage, true
	case "pdf", "docx", "doc", "txt", "md":
		return JobTypeDocument, true
	}
	return "", false
}
