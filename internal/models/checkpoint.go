package models

import "time"

// Freshness categories tracked per user.
const (
	CategoryCourses          = "courses"
	CategoryAssessmentDetail = "assessment_detail"
	CategoryQuestionSets     = "question_sets"
)

// SyncCheckpoint records when a cached data category was last refreshed from
// the server. A zero LastSyncedAtMs means never synced and always stale.
type SyncCheckpoint struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserEmail      string    `gorm:"size:255;not null;uniqueIndex:idx_checkpoint_user" json:"user_email"`
	Category       string    `gorm:"size:64;not null;uniqueIndex:idx_checkpoint_user" json:"category"`
	LastSyncedAtMs int64     `json:"last_synced_at_ms"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
