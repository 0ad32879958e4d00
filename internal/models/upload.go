package models

import "time"

// PendingUpload is a file submission captured while offline, queued until the
// reconciler pushes it. The row is deleted only after the server acknowledges
// receipt.
type PendingUpload struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	UserEmail        string    `gorm:"size:255;not null;index:idx_upload_user" json:"user_email"`
	AssessmentID     uint      `gorm:"not null;index:idx_upload_user" json:"assessment_id"`
	FilePath         string    `gorm:"size:512;not null" json:"file_path"`
	OriginalFilename string    `gorm:"size:255;not null" json:"original_filename"`
	SubmittedAt      time.Time `gorm:"not null" json:"submitted_at"`
	UploadAttempts   int       `json:"upload_attempts"`
	LastError        string    `gorm:"size:512" json:"last_error,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
