package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

const (
	// StatusKindAttempt tags a quiz/exam attempt summary payload.
	StatusKindAttempt = "attempt_status"
	// StatusKindSubmission tags a file-submission summary payload.
	StatusKindSubmission = "submission_status"
)

// AssessmentStatus is the server-authoritative derived summary attached to an
// assessment. The payload is a tagged variant: the Kind column selects which
// typed payload the JSON column holds, and the repository validates the JSON
// against the matching schema before every write.
type AssessmentStatus struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	UserEmail    string         `gorm:"size:255;not null;uniqueIndex:idx_status_user" json:"user_email"`
	AssessmentID uint           `gorm:"not null;uniqueIndex:idx_status_user" json:"assessment_id"`
	Kind         string         `gorm:"size:32;not null" json:"kind"`
	Payload      datatypes.JSON `json:"payload"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// AttemptStatusPayload summarises quiz attempt history.
type AttemptStatusPayload struct {
	AttemptCount  int        `json:"attempt_count"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	BestScore     *float64   `json:"best_score,omitempty"`
}

// SubmissionStatusPayload summarises the latest file submission.
type SubmissionStatusPayload struct {
	HasFile     bool       `json:"has_file"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	Status      string     `json:"status"`
}

// AttemptStatus decodes the payload of an attempt-status row.
func (s AssessmentStatus) AttemptStatus() (AttemptStatusPayload, error) {
	if s.Kind != StatusKindAttempt {
		return AttemptStatusPayload{}, fmt.Errorf("status kind is %q, not %q", s.Kind, StatusKindAttempt)
	}

	var payload AttemptStatusPayload
	if err := json.Unmarshal(s.Payload, &payload); err != nil {
		return AttemptStatusPayload{}, err
	}
	return payload, nil
}

// SubmissionStatus decodes the payload of a submission-status row.
func (s AssessmentStatus) SubmissionStatus() (SubmissionStatusPayload, error) {
	if s.Kind != StatusKindSubmission {
		return SubmissionStatusPayload{}, fmt.Errorf("status kind is %q, not %q", s.Kind, StatusKindSubmission)
	}

	var payload SubmissionStatusPayload
	if err := json.Unmarshal(s.Payload, &payload); err != nil {
		return SubmissionStatusPayload{}, err
	}
	return payload, nil
}

// NewAttemptStatus builds an attempt-status row from a typed payload.
func NewAttemptStatus(userEmail string, assessmentID uint, payload AttemptStatusPayload) (AssessmentStatus, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return AssessmentStatus{}, err
	}

	return AssessmentStatus{
		UserEmail:    userEmail,
		AssessmentID: assessmentID,
		Kind:         StatusKindAttempt,
		Payload:      raw,
	}, nil
}

// NewSubmissionStatus builds a submission-status row from a typed payload.
func NewSubmissionStatus(userEmail string, assessmentID uint, payload SubmissionStatusPayload) (AssessmentStatus, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return AssessmentStatus{}, err
	}

	return AssessmentStatus{
		UserEmail:    userEmail,
		AssessmentID: assessmentID,
		Kind:         StatusKindSubmission,
		Payload:      raw,
	}, nil
}
