package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lumenlms/pocketsync/internal/models"
)

func TestAssessmentRepositoryUpsertRefreshesSnapshot(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAssessmentRepository(db)
	ctx := context.Background()

	quiz := models.Assessment{
		UserEmail:       "student@example.com",
		AssessmentID:    42,
		CourseID:        1,
		Title:           "Unit Quiz",
		Kind:            models.AssessmentKindQuiz,
		DurationMinutes: 20,
	}
	require.NoError(t, quiz.EncodeQuestions([]models.Question{
		{ID: 1, Text: "Pick one", Kind: models.QuestionKindMultipleChoice, Points: 10,
			Options: []models.Option{{ID: 7, Text: "right", Correct: true}}},
	}))
	require.NoError(t, repo.Upsert(ctx, &quiz))

	// The teacher extended the time limit and replaced the question set.
	updated := quiz
	updated.ID = 0
	updated.DurationMinutes = 30
	require.NoError(t, updated.EncodeQuestions([]models.Question{
		{ID: 2, Text: "True?", Kind: models.QuestionKindTrueFalse, Points: 5,
			Options: []models.Option{{ID: 11, Text: "true", Correct: true}}},
	}))
	require.NoError(t, repo.Upsert(ctx, &updated))

	loaded, err := repo.Get(ctx, "student@example.com", 42)
	require.NoError(t, err)
	require.Equal(t, 30, loaded.DurationMinutes)

	questions, err := loaded.DecodeQuestions()
	require.NoError(t, err)
	require.Len(t, questions, 1)
	require.Equal(t, uint(2), questions[0].ID)

	var count int64
	require.NoError(t, db.Model(&models.Assessment{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestAssessmentRepositoryListByCourse(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAssessmentRepository(db)
	ctx := context.Background()

	for i, assessmentID := range []uint{10, 11, 12} {
		courseID := uint(1)
		if i == 2 {
			courseID = 2
		}
		assessment := models.Assessment{
			UserEmail:    "student@example.com",
			AssessmentID: assessmentID,
			CourseID:     courseID,
			Title:        "Assessment",
			Kind:         models.AssessmentKindQuiz,
		}
		require.NoError(t, repo.Upsert(ctx, &assessment))
	}

	listed, err := repo.ListByCourse(ctx, "student@example.com", 1)
	require.NoError(t, err)
	require.Len(t, listed, 2)
}

func TestAssessmentRepositoryGetMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAssessmentRepository(db)

	_, err := repo.Get(context.Background(), "student@example.com", 99)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
