package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumenlms/pocketsync/internal/models"
)

func choiceQuestion(id uint, points float64, correct ...uint) models.Question {
	q := models.Question{ID: id, Kind: models.QuestionKindMultipleChoice, Points: points}
	isCorrect := make(map[uint]bool, len(correct))
	for _, c := range correct {
		isCorrect[c] = true
	}
	for _, optID := range []uint{7, 8, 9} {
		q.Options = append(q.Options, models.Option{ID: optID, Correct: isCorrect[optID]})
	}
	return q
}

func answerFor(id uint, answer models.Answer) map[string]models.Answer {
	return map[string]models.Answer{questionKey(id): answer}
}

func TestGradeChoiceExactMatchScoresFull(t *testing.T) {
	questions := []models.Question{choiceQuestion(1, 10, 7)}
	answers := answerFor(1, models.Answer{SelectedOptionIDs: []uint{7}})

	results, total := GradeAttempt(questions, answers)
	require.Len(t, results, 1)
	require.NotNil(t, results[0].Correct)
	require.True(t, *results[0].Correct)
	require.Equal(t, 10.0, total)
}

func TestGradeChoiceExtraSelectionScoresZero(t *testing.T) {
	questions := []models.Question{choiceQuestion(1, 10, 7)}
	answers := answerFor(1, models.Answer{SelectedOptionIDs: []uint{7, 9}})

	results, total := GradeAttempt(questions, answers)
	require.False(t, *results[0].Correct)
	require.Equal(t, 0.0, total)
}

func TestGradeChoiceEmptySelectionScoresZero(t *testing.T) {
	questions := []models.Question{choiceQuestion(1, 10, 7)}
	answers := answerFor(1, models.Answer{})

	results, total := GradeAttempt(questions, answers)
	require.False(t, *results[0].Correct)
	require.Equal(t, 0.0, total)
}

func TestGradeChoiceOrderDoesNotMatter(t *testing.T) {
	questions := []models.Question{choiceQuestion(1, 10, 7, 9)}
	answers := answerFor(1, models.Answer{SelectedOptionIDs: []uint{9, 7}})

	results, total := GradeAttempt(questions, answers)
	require.True(t, *results[0].Correct)
	require.Equal(t, 10.0, total)
}

func TestGradeChoiceWithNoCorrectOptionsNeverPasses(t *testing.T) {
	// A malformed question with an empty correct set must not award points
	// for an empty selection.
	questions := []models.Question{choiceQuestion(1, 10)}
	answers := answerFor(1, models.Answer{})

	results, total := GradeAttempt(questions, answers)
	require.False(t, *results[0].Correct)
	require.Equal(t, 0.0, total)
}

func TestGradeIdentificationIgnoresCaseAndWhitespace(t *testing.T) {
	questions := []models.Question{{
		ID: 3, Kind: models.QuestionKindIdentification, Points: 10,
		Options: []models.Option{{ID: 21, Text: "Paris", Correct: true}},
	}}

	results, total := GradeAttempt(questions, answerFor(3, models.Answer{Text: "  paris "}))
	require.True(t, *results[0].Correct)
	require.Equal(t, 10.0, total)

	results, total = GradeAttempt(questions, answerFor(3, models.Answer{Text: "Pariss"}))
	require.False(t, *results[0].Correct)
	require.Equal(t, 0.0, total)
}

func TestGradeEssayStaysUngraded(t *testing.T) {
	questions := []models.Question{{ID: 4, Kind: models.QuestionKindEssay, Points: 20}}

	results, total := GradeAttempt(questions, answerFor(4, models.Answer{Text: "a long reflection"}))
	require.Len(t, results, 1)
	require.Nil(t, results[0].Score)
	require.Nil(t, results[0].Correct)
	require.Equal(t, 0.0, total)
}

func TestGradeMixedAttemptTotalsAutoGradableOnly(t *testing.T) {
	questions := []models.Question{
		choiceQuestion(1, 10, 7),
		{
			ID: 3, Kind: models.QuestionKindIdentification, Points: 10,
			Options: []models.Option{{ID: 21, Text: "Paris", Correct: true}},
		},
		{ID: 4, Kind: models.QuestionKindEssay, Points: 30},
	}
	answers := map[string]models.Answer{
		questionKey(1): {SelectedOptionIDs: []uint{7}},
		questionKey(3): {Text: "paris"},
		questionKey(4): {Text: "essay body"},
	}

	results, total := GradeAttempt(questions, answers)
	require.Len(t, results, 3)
	require.Equal(t, 20.0, total)
}
