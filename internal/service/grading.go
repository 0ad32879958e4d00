package service

import (
	"strconv"
	"strings"

	"github.com/lumenlms/pocketsync/internal/models"
)

// questionKey is the answer-map key for a question id. JSON object keys are
// strings, so the id is rendered in decimal.
func questionKey(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// QuestionResult is the locally-computed grade for one answered question.
// Essay questions carry nil score and correctness until graded server-side.
type QuestionResult struct {
	QuestionID        uint
	SelectedOptionIDs []uint
	Text              string
	Score             *float64
	Correct           *bool
}

// GradeAttempt scores every auto-gradable question for immediate feedback.
// The returned total counts only auto-gradable questions; essays contribute
// nothing until manual grading.
func GradeAttempt(questions []models.Question, answers map[string]models.Answer) ([]QuestionResult, float64) {
	results := make([]QuestionResult, 0, len(questions))
	var total float64

	for _, question := range questions {
		answer := answers[questionKey(question.ID)]
		result := QuestionResult{
			QuestionID:        question.ID,
			SelectedOptionIDs: answer.SelectedOptionIDs,
			Text:              answer.Text,
		}

		switch question.Kind {
		case models.QuestionKindMultipleChoice, models.QuestionKindTrueFalse:
			correct := sameOptionSet(answer.SelectedOptionIDs, question.CorrectOptionIDs())
			result.Correct = &correct
			result.Score = scoreFor(correct, question.Points)
		case models.QuestionKindIdentification:
			correct := matchesIdentification(answer.Text, question)
			result.Correct = &correct
			result.Score = scoreFor(correct, question.Points)
		default:
			// Essay kinds stay ungraded locally.
		}

		if result.Score != nil {
			total += *result.Score
		}
		results = append(results, result)
	}

	return results, total
}

func scoreFor(correct bool, points float64) *float64 {
	score := 0.0
	if correct {
		score = points
	}
	return &score
}

// sameOptionSet compares selections as sets: order does not matter, but any
// extra or missing id fails the question.
func sameOptionSet(selected, correct []uint) bool {
	if len(selected) != len(correct) || len(correct) == 0 {
		return false
	}

	seen := make(map[uint]bool, len(correct))
	for _, id := range correct {
		seen[id] = true
	}
	for _, id := range selected {
		if !seen[id] {
			return false
		}
		delete(seen, id)
	}
	return len(seen) == 0
}

// matchesIdentification compares free text against the single correct option,
// ignoring case and surrounding whitespace.
func matchesIdentification(text string, question models.Question) bool {
	var expected string
	for _, opt := range question.Options {
		if opt.Correct {
			expected = opt.Text
			break
		}
	}
	if expected == "" {
		return false
	}

	return strings.EqualFold(strings.TrimSpace(text), strings.TrimSpace(expected))
}
