package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lumenlms/pocketsync/internal/models"
	"github.com/lumenlms/pocketsync/internal/remote"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

type memoryClockRepo struct {
	mu     sync.Mutex
	states map[string]models.UserClockState
}

func newMemoryClockRepo() *memoryClockRepo {
	return &memoryClockRepo{states: make(map[string]models.UserClockState)}
}

func (m *memoryClockRepo) Get(ctx context.Context, userEmail string) (models.UserClockState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.states[userEmail]
	if !ok {
		return models.UserClockState{}, gorm.ErrRecordNotFound
	}
	return state, nil
}

func (m *memoryClockRepo) Save(ctx context.Context, state *models.UserClockState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[state.UserEmail] = *state
	return nil
}

func (m *memoryClockRepo) Delete(ctx context.Context, userEmail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, userEmail)
	return nil
}

type memoryAttemptRepo struct {
	mu      sync.Mutex
	records map[string]models.AttemptRecord
}

func newMemoryAttemptRepo() *memoryAttemptRepo {
	return &memoryAttemptRepo{records: make(map[string]models.AttemptRecord)}
}

func (m *memoryAttemptRepo) Get(ctx context.Context, id string) (models.AttemptRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[id]
	if !ok {
		return models.AttemptRecord{}, gorm.ErrRecordNotFound
	}
	return record, nil
}

func (m *memoryAttemptRepo) FindUnsynced(ctx context.Context, userEmail string, assessmentID uint) (models.AttemptRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, record := range m.records {
		if record.UserEmail == userEmail && record.AssessmentID == assessmentID && record.IsUnsynced() {
			return record, nil
		}
	}
	return models.AttemptRecord{}, gorm.ErrRecordNotFound
}

func (m *memoryAttemptRepo) ListByState(ctx context.Context, userEmail, state string) ([]models.AttemptRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var results []models.AttemptRecord
	for _, record := range m.records {
		if record.UserEmail == userEmail && record.State == state {
			results = append(results, record)
		}
	}
	return results, nil
}

func (m *memoryAttemptRepo) Create(ctx context.Context, record *models.AttemptRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record.CreatedAt = time.Now()
	record.UpdatedAt = time.Now()
	m.records[record.ID] = *record
	return nil
}

func (m *memoryAttemptRepo) Save(ctx context.Context, record *models.AttemptRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record.UpdatedAt = time.Now()
	m.records[record.ID] = *record
	return nil
}

func (m *memoryAttemptRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.records, id)
	return nil
}

type memoryUploadRepo struct {
	mu      sync.Mutex
	uploads map[uint]models.PendingUpload
	nextID  uint
}

func newMemoryUploadRepo() *memoryUploadRepo {
	return &memoryUploadRepo{uploads: make(map[uint]models.PendingUpload), nextID: 1}
}

func (m *memoryUploadRepo) Enqueue(ctx context.Context, upload *models.PendingUpload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	upload.ID = m.nextID
	m.uploads[m.nextID] = *upload
	m.nextID++
	return nil
}

func (m *memoryUploadRepo) List(ctx context.Context, userEmail string) ([]models.PendingUpload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var results []models.PendingUpload
	for _, upload := range m.uploads {
		if upload.UserEmail == userEmail {
			results = append(results, upload)
		}
	}
	return results, nil
}

func (m *memoryUploadRepo) FindByAssessment(ctx context.Context, userEmail string, assessmentID uint) (models.PendingUpload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, upload := range m.uploads {
		if upload.UserEmail == userEmail && upload.AssessmentID == assessmentID {
			return upload, nil
		}
	}
	return models.PendingUpload{}, gorm.ErrRecordNotFound
}

func (m *memoryUploadRepo) Save(ctx context.Context, upload *models.PendingUpload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads[upload.ID] = *upload
	return nil
}

func (m *memoryUploadRepo) Delete(ctx context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.uploads[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.uploads, id)
	return nil
}

type memoryAssessmentRepo struct {
	mu          sync.Mutex
	assessments map[string]map[uint]models.Assessment
}

func newMemoryAssessmentRepo() *memoryAssessmentRepo {
	return &memoryAssessmentRepo{assessments: make(map[string]map[uint]models.Assessment)}
}

func (m *memoryAssessmentRepo) Get(ctx context.Context, userEmail string, assessmentID uint) (models.Assessment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	assessment, ok := m.assessments[userEmail][assessmentID]
	if !ok {
		return models.Assessment{}, gorm.ErrRecordNotFound
	}
	return assessment, nil
}

func (m *memoryAssessmentRepo) ListByCourse(ctx context.Context, userEmail string, courseID uint) ([]models.Assessment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var results []models.Assessment
	for _, assessment := range m.assessments[userEmail] {
		if assessment.CourseID == courseID {
			results = append(results, assessment)
		}
	}
	return results, nil
}

func (m *memoryAssessmentRepo) Upsert(ctx context.Context, assessment *models.Assessment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.assessments[assessment.UserEmail] == nil {
		m.assessments[assessment.UserEmail] = make(map[uint]models.Assessment)
	}
	m.assessments[assessment.UserEmail][assessment.AssessmentID] = *assessment
	return nil
}

type memoryStatusRepo struct {
	mu       sync.Mutex
	statuses map[string]map[uint]models.AssessmentStatus
}

func newMemoryStatusRepo() *memoryStatusRepo {
	return &memoryStatusRepo{statuses: make(map[string]map[uint]models.AssessmentStatus)}
}

func (m *memoryStatusRepo) Get(ctx context.Context, userEmail string, assessmentID uint) (models.AssessmentStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	status, ok := m.statuses[userEmail][assessmentID]
	if !ok {
		return models.AssessmentStatus{}, gorm.ErrRecordNotFound
	}
	return status, nil
}

func (m *memoryStatusRepo) Put(ctx context.Context, status *models.AssessmentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statuses[status.UserEmail] == nil {
		m.statuses[status.UserEmail] = make(map[uint]models.AssessmentStatus)
	}
	m.statuses[status.UserEmail][status.AssessmentID] = *status
	return nil
}

type memoryCourseRepo struct {
	mu      sync.Mutex
	courses map[string][]models.Course
	details map[string]map[uint]models.CourseDetail
}

func newMemoryCourseRepo() *memoryCourseRepo {
	return &memoryCourseRepo{
		courses: make(map[string][]models.Course),
		details: make(map[string]map[uint]models.CourseDetail),
	}
}

func (m *memoryCourseRepo) List(ctx context.Context, userEmail string) ([]models.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Course(nil), m.courses[userEmail]...), nil
}

func (m *memoryCourseRepo) ReplaceAll(ctx context.Context, userEmail string, courses []models.Course) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.courses[userEmail] = append([]models.Course(nil), courses...)
	return nil
}

func (m *memoryCourseRepo) GetDetail(ctx context.Context, userEmail string, courseID uint) (models.CourseDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	detail, ok := m.details[userEmail][courseID]
	if !ok {
		return models.CourseDetail{}, gorm.ErrRecordNotFound
	}
	return detail, nil
}

func (m *memoryCourseRepo) SaveDetail(ctx context.Context, detail *models.CourseDetail, materials []models.Material) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.details[detail.UserEmail] == nil {
		m.details[detail.UserEmail] = make(map[uint]models.CourseDetail)
	}
	m.details[detail.UserEmail][detail.CourseID] = *detail
	return nil
}

func (m *memoryCourseRepo) ListMaterials(ctx context.Context, userEmail string, courseID uint) ([]models.Material, error) {
	return nil, nil
}

type memoryCheckpointRepo struct {
	mu     sync.Mutex
	stamps map[string]time.Time
}

func newMemoryCheckpointRepo() *memoryCheckpointRepo {
	return &memoryCheckpointRepo{stamps: make(map[string]time.Time)}
}

func (m *memoryCheckpointRepo) key(userEmail, category string) string {
	return userEmail + "|" + category
}

func (m *memoryCheckpointRepo) LastSynced(ctx context.Context, userEmail, category string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stamps[m.key(userEmail, category)], nil
}

func (m *memoryCheckpointRepo) Stamp(ctx context.Context, userEmail, category string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stamps[m.key(userEmail, category)] = at
	return nil
}

func (m *memoryCheckpointRepo) Clear(ctx context.Context, userEmail, category string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stamps, m.key(userEmail, category))
	return nil
}

// fakeGateway counts calls and returns configured errors, so tests can
// assert exactly which network operations a code path performed.
type fakeGateway struct {
	mu sync.Mutex

	serverTime    time.Time
	serverTimeErr error

	saveAnswerErr   error
	finalizeErr     error
	syncQuizErr     error
	syncFileErr     error
	attemptStatus   remote.AttemptStatusInfo
	submissionInfo  remote.SubmissionStatusInfo
	courses         []remote.CourseSummary
	coursesErr      error
	courseDetail    remote.CourseDetail
	courseDetailErr error
	submitted       remote.SubmittedAssessmentInfo
	submittedErr    error
	sessionExpired  bool
	loginResult     remote.LoginResult
	loginErr        error
	logoutErr       error
	verified        bool
	verifiedErr     error

	serverTimeCalls int
	saveAnswerCalls int
	finalizeCalls   int
	syncQuizCalls   int
	syncFileCalls   int
	statusCalls     int
	submissionCalls int
	coursesCalls    int
	detailCalls     int
	submittedCalls  int
	loginCalls      int
	logoutCalls     int
	verifiedCalls   int
}

func (g *fakeGateway) Login(ctx context.Context, email, password string) (remote.LoginResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.loginCalls++
	if g.loginErr != nil {
		return remote.LoginResult{}, g.loginErr
	}
	return g.loginResult, nil
}

func (g *fakeGateway) Logout(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.logoutCalls++
	return g.logoutErr
}

func (g *fakeGateway) UserVerified(ctx context.Context) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifiedCalls++
	if g.verifiedErr != nil {
		return false, g.verifiedErr
	}
	return g.verified, nil
}

func (g *fakeGateway) ServerTime(ctx context.Context) (time.Time, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.serverTimeCalls++
	if g.serverTimeErr != nil {
		return time.Time{}, g.serverTimeErr
	}
	if g.serverTime.IsZero() {
		return time.Now(), nil
	}
	return g.serverTime, nil
}

func (g *fakeGateway) SaveQuestionAnswer(ctx context.Context, questionID uint, payload remote.AnswerPayload) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.saveAnswerCalls++
	return g.saveAnswerErr
}

func (g *fakeGateway) FinalizeQuiz(ctx context.Context, assessmentID uint, payload remote.FinalizePayload) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.finalizeCalls++
	return g.finalizeErr
}

func (g *fakeGateway) SyncQuizAttempt(ctx context.Context, payload remote.QuizSyncPayload) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.syncQuizCalls++
	return g.syncQuizErr
}

func (g *fakeGateway) SyncFileSubmission(ctx context.Context, meta remote.FileSubmissionMeta) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.syncFileCalls++
	return g.syncFileErr
}

func (g *fakeGateway) AttemptStatus(ctx context.Context, assessmentID uint) (remote.AttemptStatusInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statusCalls++
	return g.attemptStatus, nil
}

func (g *fakeGateway) LatestAssignmentSubmission(ctx context.Context, assessmentID uint) (remote.SubmissionStatusInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.submissionCalls++
	return g.submissionInfo, nil
}

func (g *fakeGateway) MyCourses(ctx context.Context) ([]remote.CourseSummary, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.coursesCalls++
	if g.coursesErr != nil {
		return nil, g.coursesErr
	}
	return g.courses, nil
}

func (g *fakeGateway) CourseDetail(ctx context.Context, courseID uint) (remote.CourseDetail, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.detailCalls++
	if g.courseDetailErr != nil {
		return remote.CourseDetail{}, g.courseDetailErr
	}
	return g.courseDetail, nil
}

func (g *fakeGateway) SubmittedAssessment(ctx context.Context, assessmentID uint) (remote.SubmittedAssessmentInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.submittedCalls++
	if g.submittedErr != nil {
		return remote.SubmittedAssessmentInfo{}, g.submittedErr
	}
	return g.submitted, nil
}

func (g *fakeGateway) SessionExpired(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sessionExpired
}

func (g *fakeGateway) networkCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.serverTimeCalls + g.saveAnswerCalls + g.finalizeCalls + g.syncQuizCalls +
		g.syncFileCalls + g.statusCalls + g.submissionCalls + g.coursesCalls + g.detailCalls +
		g.submittedCalls
}

// seedClockBaseline installs a committed clock watermark for the user.
func seedClockBaseline(t *testing.T, repo *memoryClockRepo, userEmail string) {
	t.Helper()
	require.NoError(t, repo.Save(context.Background(), &models.UserClockState{
		UserEmail:               userEmail,
		LastCheckedDeviceTimeMs: time.Now().UnixMilli(),
		CheckSequence:           1,
	}))
}

// fileAssessment builds a cached file-based assessment snapshot.
func fileAssessment(userEmail string, assessmentID uint) models.Assessment {
	return models.Assessment{
		UserEmail:    userEmail,
		AssessmentID: assessmentID,
		CourseID:     1,
		Title:        "Term Paper",
		Kind:         models.AssessmentKindAssignment,
		MaxPoints:    100,
	}
}

// quizAssessment builds a cached quiz with a three-question set covering the
// auto-gradable kinds.
func quizAssessment(userEmail string, assessmentID uint, durationMinutes int) models.Assessment {
	assessment := models.Assessment{
		UserEmail:       userEmail,
		AssessmentID:    assessmentID,
		CourseID:        1,
		Title:           "Unit Quiz",
		Kind:            models.AssessmentKindQuiz,
		DurationMinutes: durationMinutes,
		MaxPoints:       30,
	}
	questions := []models.Question{
		{
			ID: 1, Text: "Pick one", Kind: models.QuestionKindMultipleChoice, Points: 10,
			Options: []models.Option{
				{ID: 7, Text: "right", Correct: true},
				{ID: 8, Text: "wrong"},
				{ID: 9, Text: "also wrong"},
			},
		},
		{
			ID: 2, Text: "True?", Kind: models.QuestionKindTrueFalse, Points: 10,
			Options: []models.Option{
				{ID: 11, Text: "true", Correct: true},
				{ID: 12, Text: "false"},
			},
		},
		{
			ID: 3, Text: "Capital of France", Kind: models.QuestionKindIdentification, Points: 10,
			Options: []models.Option{
				{ID: 21, Text: "Paris", Correct: true},
			},
		},
	}
	if err := assessment.EncodeQuestions(questions); err != nil {
		panic(err)
	}
	return assessment
}
