package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

const (
	// AttemptStateInProgress means the student is still working.
	AttemptStateInProgress = "in_progress"
	// AttemptStatePendingSync means the attempt finalized without server
	// acknowledgement and waits in the local queue.
	AttemptStatePendingSync = "completed_pending_sync"
	// AttemptStateSynced means the server accepted the attempt.
	AttemptStateSynced = "synced"
)

// Finalize reason tags recorded on auto-submitted attempts.
const (
	FinalizeReasonManual       = "manual"
	FinalizeReasonTimeUp       = "time_up"
	FinalizeReasonManipulation = "time_manipulation"
	FinalizeReasonUnavailable  = "assessment_unavailable"
	FinalizeReasonNoServerTime = "no_server_time"
	FinalizeReasonTimerError   = "timer_error"
)

// Answer is the current response to one question.
type Answer struct {
	SelectedOptionIDs []uint `json:"selected_option_ids,omitempty"`
	Text              string `json:"text,omitempty"`
	Dirty             bool   `json:"dirty"`
}

// AttemptRecord is one student work session on one assessment. At most one
// unsynced record may exist per (assessment, user).
type AttemptRecord struct {
	ID             string         `gorm:"primaryKey;size:36" json:"id"`
	UserEmail      string         `gorm:"size:255;not null;index:idx_attempt_user" json:"user_email"`
	AssessmentID   uint           `gorm:"not null;index:idx_attempt_user" json:"assessment_id"`
	State          string         `gorm:"size:32;not null" json:"state"`
	StartedAt      time.Time      `gorm:"not null" json:"started_at"`
	FinalizedAt    *time.Time     `json:"finalized_at,omitempty"`
	FinalizeReason string         `gorm:"size:32" json:"finalize_reason,omitempty"`
	Answers        datatypes.JSON `json:"answers"`
	Score          *float64       `json:"score,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// IsUnsynced reports whether the record still needs server acknowledgement.
func (r AttemptRecord) IsUnsynced() bool {
	return r.State == AttemptStateInProgress || r.State == AttemptStatePendingSync
}

// DecodeAnswers unmarshals the answer map keyed by question id.
func (r AttemptRecord) DecodeAnswers() (map[string]Answer, error) {
	answers := make(map[string]Answer)
	if len(r.Answers) == 0 {
		return answers, nil
	}
	if err := json.Unmarshal(r.Answers, &answers); err != nil {
		return nil, err
	}
	return answers, nil
}

// EncodeAnswers marshals the answer map into the JSON column.
func (r *AttemptRecord) EncodeAnswers(answers map[string]Answer) error {
	raw, err := json.Marshal(answers)
	if err != nil {
		return err
	}
	r.Answers = raw
	return nil
}
