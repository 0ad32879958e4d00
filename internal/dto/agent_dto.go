package dto

import (
	"encoding/json"
	"time"

	"github.com/lumenlms/pocketsync/internal/models"
	"github.com/lumenlms/pocketsync/internal/remote"
	"github.com/lumenlms/pocketsync/internal/service"
)

// AttemptStartRequest begins (or resumes) an attempt.
type AttemptStartRequest struct {
	UserEmail    string `json:"user_email" validate:"required,email"`
	AssessmentID uint   `json:"assessment_id" validate:"required"`
	Online       bool   `json:"online"`
}

// AnswerSaveRequest records the current response to one question.
type AnswerSaveRequest struct {
	SelectedOptionIDs []uint `json:"selected_option_ids"`
	Text              string `json:"text"`
}

// FileSubmitRequest captures a file-based submission.
type FileSubmitRequest struct {
	UserEmail        string `json:"user_email" validate:"required,email"`
	AssessmentID     uint   `json:"assessment_id" validate:"required"`
	FilePath         string `json:"file_path" validate:"required"`
	OriginalFilename string `json:"original_filename" validate:"required"`
	Online           bool   `json:"online"`
}

// SyncRequest triggers a manual reconciliation cycle.
type SyncRequest struct {
	UserEmail string `json:"user_email" validate:"required,email"`
}

// LoginRequest authenticates against the campus backend and caches the
// issued session token.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LogoutRequest ends the session and wipes the user's clock baseline.
type LogoutRequest struct {
	UserEmail string `json:"user_email" validate:"required,email"`
}

// SessionStatusResponse reports whether the cached token has lapsed.
type SessionStatusResponse struct {
	Expired bool `json:"expired"`
}

// VerifiedResponse is the account verification flag.
type VerifiedResponse struct {
	IsVerified bool `json:"is_verified"`
}

// PendingWorkResponse describes the unsynced item blocking a new attempt.
type PendingWorkResponse struct {
	AttemptID        string     `json:"attempt_id,omitempty"`
	UploadID         uint       `json:"upload_id,omitempty"`
	AssessmentID     uint       `json:"assessment_id"`
	State            string     `json:"state,omitempty"`
	OriginalFilename string     `json:"original_filename,omitempty"`
	SubmittedAt      *time.Time `json:"submitted_at,omitempty"`
}

// NewPendingWorkResponse converts a conflict error into its wire shape.
func NewPendingWorkResponse(err *service.PendingWorkError) PendingWorkResponse {
	if err.Attempt != nil {
		return PendingWorkResponse{
			AttemptID:    err.Attempt.ID,
			AssessmentID: err.Attempt.AssessmentID,
			State:        err.Attempt.State,
		}
	}

	resp := PendingWorkResponse{}
	if err.Upload != nil {
		resp.UploadID = err.Upload.ID
		resp.AssessmentID = err.Upload.AssessmentID
		resp.OriginalFilename = err.Upload.OriginalFilename
		submittedAt := err.Upload.SubmittedAt
		resp.SubmittedAt = &submittedAt
	}
	return resp
}

// CountdownResponse is the remaining-time view for the UI.
type CountdownResponse struct {
	RemainingSeconds int64  `json:"remaining_seconds"`
	Display          string `json:"display"`
	Unavailable      bool   `json:"unavailable"`
}

// NewCountdownResponse renders a countdown.
func NewCountdownResponse(c service.Countdown) CountdownResponse {
	return CountdownResponse{
		RemainingSeconds: int64(c.Remaining.Seconds()),
		Display:          c.DisplayMinutes(),
		Unavailable:      c.Unavailable,
	}
}

// QuestionResultResponse is one locally-graded answer.
type QuestionResultResponse struct {
	QuestionID uint     `json:"question_id"`
	Score      *float64 `json:"score"`
	Correct    *bool    `json:"correct"`
}

// FinalizeResponse reports a finalize outcome.
type FinalizeResponse struct {
	AttemptID       string                   `json:"attempt_id,omitempty"`
	State           string                   `json:"state,omitempty"`
	Score           float64                  `json:"score"`
	Results         []QuestionResultResponse `json:"results,omitempty"`
	Synced          bool                     `json:"synced"`
	RestartRequired bool                     `json:"restart_required"`
}

// NewFinalizeResponse renders a finalize result.
func NewFinalizeResponse(result service.FinalizeResult) FinalizeResponse {
	resp := FinalizeResponse{
		AttemptID:       result.Attempt.ID,
		State:           result.Attempt.State,
		Score:           result.Score,
		Synced:          result.Synced,
		RestartRequired: result.RestartRequired,
	}
	for _, r := range result.Results {
		resp.Results = append(resp.Results, QuestionResultResponse{
			QuestionID: r.QuestionID,
			Score:      r.Score,
			Correct:    r.Correct,
		})
	}
	return resp
}

// CourseResponse is one cached course row.
type CourseResponse struct {
	CourseID   uint       `json:"course_id"`
	Name       string     `json:"name"`
	Code       string     `json:"code"`
	Teacher    string     `json:"teacher"`
	EnrolledAt *time.Time `json:"enrolled_at,omitempty"`
}

// NewCourseResponseSlice converts cached course rows.
func NewCourseResponseSlice(courses []models.Course) []CourseResponse {
	responses := make([]CourseResponse, len(courses))
	for i, course := range courses {
		responses[i] = CourseResponse{
			CourseID:   course.CourseID,
			Name:       course.Name,
			Code:       course.Code,
			Teacher:    course.Teacher,
			EnrolledAt: course.EnrolledAt,
		}
	}
	return responses
}

// AssessmentResponse is the cached assessment snapshot for the UI.
type AssessmentResponse struct {
	AssessmentID    uint       `json:"assessment_id"`
	CourseID        uint       `json:"course_id"`
	Title           string     `json:"title"`
	Kind            string     `json:"kind"`
	DurationMinutes int        `json:"duration_minutes"`
	AvailableAt     *time.Time `json:"available_at,omitempty"`
	UnavailableAt   *time.Time `json:"unavailable_at,omitempty"`
	MaxPoints       float64    `json:"max_points"`
	MaxAttempts     int        `json:"max_attempts"`
	HasQuestionSet  bool       `json:"has_question_set"`
}

// NewAssessmentResponse converts a cached assessment row.
func NewAssessmentResponse(a models.Assessment) AssessmentResponse {
	return AssessmentResponse{
		AssessmentID:    a.AssessmentID,
		CourseID:        a.CourseID,
		Title:           a.Title,
		Kind:            a.Kind,
		DurationMinutes: a.DurationMinutes,
		AvailableAt:     a.AvailableAt,
		UnavailableAt:   a.UnavailableAt,
		MaxPoints:       a.MaxPoints,
		MaxAttempts:     a.MaxAttempts,
		HasQuestionSet:  a.HasQuestionSet(),
	}
}

// NewAssessmentResponseSlice converts cached assessment rows.
func NewAssessmentResponseSlice(assessments []models.Assessment) []AssessmentResponse {
	responses := make([]AssessmentResponse, len(assessments))
	for i, a := range assessments {
		responses[i] = NewAssessmentResponse(a)
	}
	return responses
}

// ReviewAnswerResponse is one server-graded answer inside a review.
type ReviewAnswerResponse struct {
	QuestionID        uint     `json:"question_id"`
	SelectedOptionIDs []uint   `json:"selected_option_ids,omitempty"`
	Text              string   `json:"text,omitempty"`
	Score             *float64 `json:"score"`
	Correct           *bool    `json:"correct"`
}

// ReviewResponse is the server's graded view of the latest submitted attempt.
type ReviewResponse struct {
	AssessmentID uint                   `json:"assessment_id"`
	StartedAt    time.Time              `json:"started_at"`
	FinalizedAt  *time.Time             `json:"finalized_at,omitempty"`
	Score        *float64               `json:"score"`
	Answers      []ReviewAnswerResponse `json:"answers"`
}

// NewReviewResponse converts the upstream graded payload.
func NewReviewResponse(info remote.SubmittedAssessmentInfo) ReviewResponse {
	resp := ReviewResponse{
		AssessmentID: info.AssessmentID,
		StartedAt:    info.StartedAt,
		FinalizedAt:  info.FinalizedAt,
		Score:        info.Score,
		Answers:      make([]ReviewAnswerResponse, len(info.Answers)),
	}
	for i, a := range info.Answers {
		resp.Answers[i] = ReviewAnswerResponse{
			QuestionID:        a.QuestionID,
			SelectedOptionIDs: a.SelectedOptionIDs,
			Text:              a.Text,
			Score:             a.Score,
			Correct:           a.Correct,
		}
	}
	return resp
}

// MaterialResponse is one cached course material.
type MaterialResponse struct {
	Title    string `json:"title"`
	FileURL  string `json:"file_url"`
	MimeType string `json:"mime_type"`
}

// CourseDetailResponse wraps the cached raw detail blob plus its materials.
type CourseDetailResponse struct {
	CourseID  uint               `json:"course_id"`
	Payload   json.RawMessage    `json:"payload"`
	Materials []MaterialResponse `json:"materials"`
}

// NewCourseDetailResponse converts a cached detail row.
func NewCourseDetailResponse(detail models.CourseDetail, materials []models.Material) CourseDetailResponse {
	resp := CourseDetailResponse{
		CourseID:  detail.CourseID,
		Payload:   json.RawMessage(detail.Payload),
		Materials: make([]MaterialResponse, len(materials)),
	}
	for i, m := range materials {
		resp.Materials[i] = MaterialResponse{
			Title:    m.Title,
			FileURL:  m.FileURL,
			MimeType: m.MimeType,
		}
	}
	return resp
}

// SyncReportResponse summarises a reconciliation cycle for the UI.
type SyncReportResponse struct {
	Outcome        string    `json:"outcome"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	SyncedAttempts int       `json:"synced_attempts"`
	SyncedUploads  int       `json:"synced_uploads"`
	Refreshed      []string  `json:"refreshed,omitempty"`
	Errors         []string  `json:"errors,omitempty"`
}

// NewSyncReportResponse renders a cycle report.
func NewSyncReportResponse(report service.SyncReport) SyncReportResponse {
	return SyncReportResponse{
		Outcome:        string(report.Outcome()),
		StartedAt:      report.StartedAt,
		FinishedAt:     report.FinishedAt,
		SyncedAttempts: report.SyncedAttempts,
		SyncedUploads:  report.SyncedUploads,
		Refreshed:      report.Refreshed,
		Errors:         report.Errors,
	}
}
