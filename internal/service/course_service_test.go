package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lumenlms/pocketsync/internal/connectivity"
	"github.com/lumenlms/pocketsync/internal/models"
	"github.com/lumenlms/pocketsync/internal/remote"
)

type courseFixture struct {
	svc         CourseService
	courses     *memoryCourseRepo
	assessments *memoryAssessmentRepo
	fresh       *freshnessService
	gateway     *fakeGateway
	watcher     *connectivity.ManualWatcher
}

func newCourseFixture(t *testing.T, online bool) *courseFixture {
	t.Helper()

	courses := newMemoryCourseRepo()
	assessments := newMemoryAssessmentRepo()
	checkpoints := newMemoryCheckpointRepo()
	gateway := &fakeGateway{}
	watcher := connectivity.NewManualWatcher(online)

	budgets := FreshnessBudgets{
		Courses:          10 * time.Minute,
		AssessmentDetail: 5 * time.Minute,
		QuestionSets:     10 * time.Minute,
	}
	fresh := NewFreshnessService(checkpoints, budgets, testLogger()).(*freshnessService)

	svc := NewCourseService(courses, assessments, gateway, fresh, watcher, testLogger())
	return &courseFixture{
		svc:         svc,
		courses:     courses,
		assessments: assessments,
		fresh:       fresh,
		gateway:     gateway,
		watcher:     watcher,
	}
}

func TestCourseListRefreshesWhenStaleAndOnline(t *testing.T) {
	f := newCourseFixture(t, true)
	f.gateway.courses = []remote.CourseSummary{{ID: 1, Name: "Databases", Code: "CS301"}}

	listed, err := f.svc.List(context.Background(), testUser)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, "CS301", listed[0].Code)
	require.Equal(t, 1, f.gateway.coursesCalls)

	// Inside the budget the cache answers without traffic.
	listed, err = f.svc.List(context.Background(), testUser)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, 1, f.gateway.coursesCalls)
}

func TestCourseListServesCacheWhenOffline(t *testing.T) {
	f := newCourseFixture(t, false)
	require.NoError(t, f.courses.ReplaceAll(context.Background(), testUser, []models.Course{
		{UserEmail: testUser, CourseID: 1, Code: "CS301"},
	}))

	// Stale (never stamped) but unreachable: no network attempt.
	listed, err := f.svc.List(context.Background(), testUser)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, 0, f.gateway.coursesCalls)
}

func TestCourseListFallsBackToCacheOnRefreshFailure(t *testing.T) {
	f := newCourseFixture(t, true)
	f.gateway.coursesErr = errors.New("bad gateway")
	require.NoError(t, f.courses.ReplaceAll(context.Background(), testUser, []models.Course{
		{UserEmail: testUser, CourseID: 1, Code: "CS301"},
	}))

	listed, err := f.svc.List(context.Background(), testUser)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, 1, f.gateway.coursesCalls)
}

func TestGetAssessmentMissingFromCache(t *testing.T) {
	f := newCourseFixture(t, true)

	_, err := f.svc.GetAssessment(context.Background(), testUser, 42)
	require.ErrorIs(t, err, ErrAssessmentNotFound)
}

func TestCourseDetailMissingFromCache(t *testing.T) {
	f := newCourseFixture(t, true)

	_, _, err := f.svc.Detail(context.Background(), testUser, 1)
	require.ErrorIs(t, err, ErrCourseNotFound)
}

func TestCourseAssessmentsListsCachedRows(t *testing.T) {
	f := newCourseFixture(t, false)
	require.NoError(t, f.assessments.Upsert(context.Background(), ptr(quizAssessment(testUser, 42, 20))))
	require.NoError(t, f.assessments.Upsert(context.Background(), ptr(fileAssessment(testUser, 43))))

	listed, err := f.svc.Assessments(context.Background(), testUser, 1)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	require.Equal(t, 0, f.gateway.networkCalls())
}

func TestReviewRequiresConnectivity(t *testing.T) {
	f := newCourseFixture(t, false)
	require.NoError(t, f.assessments.Upsert(context.Background(), ptr(quizAssessment(testUser, 42, 20))))

	_, err := f.svc.Review(context.Background(), testUser, 42)
	require.ErrorIs(t, err, ErrReviewUnavailableOffline)
	require.Equal(t, 0, f.gateway.networkCalls())
}

func TestReviewUnknownAssessment(t *testing.T) {
	f := newCourseFixture(t, true)

	_, err := f.svc.Review(context.Background(), testUser, 99)
	require.ErrorIs(t, err, ErrAssessmentNotFound)
	require.Equal(t, 0, f.gateway.submittedCalls)
}

func TestReviewFetchesGradedView(t *testing.T) {
	f := newCourseFixture(t, true)
	require.NoError(t, f.assessments.Upsert(context.Background(), ptr(quizAssessment(testUser, 42, 20))))
	score := 20.0
	correct := true
	f.gateway.submitted = remote.SubmittedAssessmentInfo{
		AssessmentID: 42,
		Score:        &score,
		Answers: []remote.QuestionResultPayload{
			{QuestionID: 1, SelectedOptionIDs: []uint{7}, Correct: &correct},
		},
	}

	info, err := f.svc.Review(context.Background(), testUser, 42)
	require.NoError(t, err)
	require.Equal(t, uint(42), info.AssessmentID)
	require.Equal(t, 20.0, *info.Score)
	require.Len(t, info.Answers, 1)
	require.Equal(t, 1, f.gateway.submittedCalls)
}
