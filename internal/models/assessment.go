package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

const (
	// AssessmentKindQuiz is a timed, auto-gradable question set.
	AssessmentKindQuiz = "quiz"
	// AssessmentKindExam behaves like a quiz with stricter availability.
	AssessmentKindExam = "exam"
	// AssessmentKindAssignment is a file-based submission.
	AssessmentKindAssignment = "assignment"
	// AssessmentKindProject is a file-based submission.
	AssessmentKindProject = "project"
	// AssessmentKindActivity is a file-based submission.
	AssessmentKindActivity = "activity"
)

const (
	// QuestionKindMultipleChoice grades by exact selected-set match.
	QuestionKindMultipleChoice = "multiple_choice"
	// QuestionKindTrueFalse grades by exact selected-set match.
	QuestionKindTrueFalse = "true_false"
	// QuestionKindIdentification grades by case-insensitive trimmed equality.
	QuestionKindIdentification = "identification"
	// QuestionKindEssay is graded manually server-side.
	QuestionKindEssay = "essay"
)

// Assessment is a cached snapshot of server assessment metadata plus, for
// quiz kinds, the downloaded question set.
type Assessment struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	UserEmail       string         `gorm:"size:255;not null;uniqueIndex:idx_assessment_user" json:"user_email"`
	AssessmentID    uint           `gorm:"not null;uniqueIndex:idx_assessment_user" json:"assessment_id"`
	CourseID        uint           `gorm:"index" json:"course_id"`
	Title           string         `gorm:"size:255;not null" json:"title"`
	Kind            string         `gorm:"size:32;not null" json:"kind"`
	DurationMinutes int            `json:"duration_minutes"`
	AvailableAt     *time.Time     `json:"available_at"`
	UnavailableAt   *time.Time     `json:"unavailable_at"`
	MaxPoints       float64        `json:"max_points"`
	MaxAttempts     int            `json:"max_attempts"`
	Questions       datatypes.JSON `json:"questions"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Option is one selectable choice of a question. For identification
// questions the single option's text is the expected answer.
type Option struct {
	ID      uint   `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question is one entry of a quiz question set.
type Question struct {
	ID      uint     `json:"id"`
	Text    string   `json:"text"`
	Kind    string   `json:"kind"`
	Points  float64  `json:"points"`
	Options []Option `json:"options,omitempty"`
}

// CorrectOptionIDs returns the ids of every option flagged correct.
func (q Question) CorrectOptionIDs() []uint {
	var ids []uint
	for _, opt := range q.Options {
		if opt.Correct {
			ids = append(ids, opt.ID)
		}
	}
	return ids
}

// IsChoiceKind reports whether answers are option selections rather than text.
func (q Question) IsChoiceKind() bool {
	return q.Kind == QuestionKindMultipleChoice || q.Kind == QuestionKindTrueFalse
}

// IsFileKind reports whether the assessment is submitted as a file rather
// than as a question set.
func (a Assessment) IsFileKind() bool {
	switch a.Kind {
	case AssessmentKindAssignment, AssessmentKindProject, AssessmentKindActivity:
		return true
	default:
		return false
	}
}

// HasQuestionSet reports whether the question payload has been downloaded.
func (a Assessment) HasQuestionSet() bool {
	return len(a.Questions) > 0
}

// DecodeQuestions unmarshals the cached question payload.
func (a Assessment) DecodeQuestions() ([]Question, error) {
	if len(a.Questions) == 0 {
		return nil, nil
	}

	var questions []Question
	if err := json.Unmarshal(a.Questions, &questions); err != nil {
		return nil, err
	}
	return questions, nil
}

// EncodeQuestions marshals a question set into the cached payload column.
func (a *Assessment) EncodeQuestions(questions []Question) error {
	raw, err := json.Marshal(questions)
	if err != nil {
		return err
	}
	a.Questions = raw
	return nil
}
