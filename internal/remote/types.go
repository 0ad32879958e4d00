package remote

import (
	"encoding/json"
	"fmt"
	"time"
)

// envelope is the response wrapper used by every upstream endpoint.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message"`
	Code    string          `json:"code,omitempty"`
}

// APIError describes a non-success response from the upstream API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
}

// IsDuplicate reports whether the server rejected the call because the same
// submission identity was already accepted. The reconciler treats this as
// success so a crash between server-accept and local-delete heals itself.
func (e *APIError) IsDuplicate() bool {
	return e.Status == 409 && e.Code == "duplicate_submission"
}

// LoginResult carries the issued session token.
type LoginResult struct {
	Token string `json:"token"`
}

// VerificationStatus is the account verification flag.
type VerificationStatus struct {
	IsVerified bool `json:"is_verified"`
}

// CourseSummary is one row of the enrolled-course listing.
type CourseSummary struct {
	ID         uint       `json:"id"`
	Name       string     `json:"name"`
	Code       string     `json:"code"`
	Teacher    string     `json:"teacher"`
	EnrolledAt *time.Time `json:"enrolled_at,omitempty"`
}

// CourseDetail is the full course payload including nested content.
type CourseDetail struct {
	ID          uint             `json:"id"`
	Name        string           `json:"name"`
	Payload     json.RawMessage  `json:"payload"`
	Materials   []MaterialInfo   `json:"materials"`
	Assessments []AssessmentInfo `json:"assessments"`
}

// MaterialInfo is a course resource reference.
type MaterialInfo struct {
	ID       uint   `json:"id"`
	Title    string `json:"title"`
	FileURL  string `json:"file_url"`
	MimeType string `json:"mime_type"`
}

// AssessmentInfo is the server assessment snapshot.
type AssessmentInfo struct {
	ID              uint            `json:"id"`
	CourseID        uint            `json:"course_id"`
	Title           string          `json:"title"`
	Kind            string          `json:"kind"`
	DurationMinutes int             `json:"duration_minutes"`
	AvailableAt     *time.Time      `json:"available_at,omitempty"`
	UnavailableAt   *time.Time      `json:"unavailable_at,omitempty"`
	MaxPoints       float64         `json:"max_points"`
	MaxAttempts     int             `json:"max_attempts"`
	Questions       json.RawMessage `json:"questions,omitempty"`
}

// AnswerPayload is the best-effort online per-question save body.
type AnswerPayload struct {
	SelectedOptionIDs []uint `json:"selected_option_ids,omitempty"`
	Text              string `json:"text,omitempty"`
}

// QuestionResultPayload is one graded answer inside a finalize or sync body.
type QuestionResultPayload struct {
	QuestionID        uint     `json:"question_id"`
	SelectedOptionIDs []uint   `json:"selected_option_ids,omitempty"`
	Text              string   `json:"text,omitempty"`
	Score             *float64 `json:"score,omitempty"`
	Correct           *bool    `json:"correct,omitempty"`
}

// FinalizePayload is the authoritative online finalize body.
type FinalizePayload struct {
	Answers     []QuestionResultPayload `json:"answers"`
	StartedAt   time.Time               `json:"started_at"`
	FinalizedAt time.Time               `json:"finalized_at"`
	Reason      string                  `json:"reason"`
}

// QuizSyncPayload is the offline-reconciliation body for a completed quiz
// attempt, keyed upstream by (assessment, user, finalized_at).
type QuizSyncPayload struct {
	AssessmentID uint                    `json:"assessment_id"`
	Answers      []QuestionResultPayload `json:"answers"`
	StartedAt    time.Time               `json:"started_at"`
	FinalizedAt  time.Time               `json:"finalized_at"`
	Reason       string                  `json:"reason"`
}

// FileSubmissionMeta describes a queued offline file submission.
type FileSubmissionMeta struct {
	AssessmentID     uint
	FilePath         string
	OriginalFilename string
	SubmittedAt      time.Time
}

// SubmittedAssessmentInfo is the server's graded view of the latest submitted
// attempt: the recorded answers with their per-question correctness and score.
type SubmittedAssessmentInfo struct {
	AssessmentID uint                    `json:"assessment_id"`
	StartedAt    time.Time               `json:"started_at"`
	FinalizedAt  *time.Time              `json:"finalized_at,omitempty"`
	Score        *float64                `json:"score,omitempty"`
	Answers      []QuestionResultPayload `json:"answers"`
}

// AttemptStatusInfo is the server-derived quiz attempt summary.
type AttemptStatusInfo struct {
	AttemptCount  int        `json:"attempt_count"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	BestScore     *float64   `json:"best_score,omitempty"`
}

// SubmissionStatusInfo is the server-derived latest-submission summary.
type SubmissionStatusInfo struct {
	HasFile     bool       `json:"has_file"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	Status      string     `json:"status"`
}

// ServerTimeInfo is the authoritative time endpoint payload.
type ServerTimeInfo struct {
	ServerTime time.Time `json:"server_time"`
}
