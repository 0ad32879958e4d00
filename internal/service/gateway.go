package service

import (
	"context"
	"time"

	"github.com/lumenlms/pocketsync/internal/remote"
)

// Gateway is the slice of the upstream API the services depend on. The
// remote.Client satisfies it; tests substitute fakes.
type Gateway interface {
	Login(ctx context.Context, email, password string) (remote.LoginResult, error)
	Logout(ctx context.Context) error
	UserVerified(ctx context.Context) (bool, error)
	ServerTime(ctx context.Context) (time.Time, error)
	SaveQuestionAnswer(ctx context.Context, questionID uint, payload remote.AnswerPayload) error
	FinalizeQuiz(ctx context.Context, assessmentID uint, payload remote.FinalizePayload) error
	SyncQuizAttempt(ctx context.Context, payload remote.QuizSyncPayload) error
	SyncFileSubmission(ctx context.Context, meta remote.FileSubmissionMeta) error
	AttemptStatus(ctx context.Context, assessmentID uint) (remote.AttemptStatusInfo, error)
	LatestAssignmentSubmission(ctx context.Context, assessmentID uint) (remote.SubmissionStatusInfo, error)
	SubmittedAssessment(ctx context.Context, assessmentID uint) (remote.SubmittedAssessmentInfo, error)
	MyCourses(ctx context.Context) ([]remote.CourseSummary, error)
	CourseDetail(ctx context.Context, courseID uint) (remote.CourseDetail, error)
	SessionExpired(now time.Time) bool
}
