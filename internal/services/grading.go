package services

import (
	"strings"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/validator"
)

// GradeAnswer scores one answer against its question. It never touches storage.
func GradeAnswer(q *models.Question, answer validator.AnswerRequest) models.AnswerRecord {
	record := models.AnswerRecord{
		QuestionID: q.ID,
	}

	switch q.Type {
	case models.MultipleChoice:
		record.SelectedOptions = answer.SelectedOptions
		record.IsCorrect = sameIndexSet(answer.SelectedOptions, q.CorrectOptionIndexes())
	case models.TrueFalse:
		record.SelectedOptions = answer.SelectedOptions
		record.IsCorrect = len(answer.SelectedOptions) == 1 && optionIsCorrect(q, answer.SelectedOptions[0])
	case models.FillInBlank:
		record.TextAnswer = answer.TextAnswer
		record.IsCorrect = q.CorrectAnswer != nil && normalizeText(answer.TextAnswer) == normalizeText(*q.CorrectAnswer)
	case models.Essay:
		// Essays need a human grader
		record.TextAnswer = answer.TextAnswer
		record.IsCorrect = false
	default:
		record.IsCorrect = false
	}

	if record.IsCorrect {
		record.PointsEarned = q.Points
	}
	return record
}

// GradeSubmission grades every answer that refers to a question of the test.
// Unknown questions are dropped and only the first answer per question counts.
func GradeSubmission(test *models.Test, answers []validator.AnswerRequest) ([]models.AnswerRecord, int) {
	records := make([]models.AnswerRecord, 0, len(answers))
	seen := make(map[uint]bool, len(answers))
	score := 0

	for _, answer := range answers {
		q, ok := test.QuestionByID(answer.QuestionID)
		if !ok || seen[answer.QuestionID] {
			continue
		}
		seen[answer.QuestionID] = true

		record := GradeAnswer(q, answer)
		score += record.PointsEarned
		records = append(records, record)
	}
	return records, score
}

func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func optionIsCorrect(q *models.Question, index int) bool {
	return index >= 0 && index < len(q.Options) && q.Options[index].IsCorrect
}

// sameIndexSet requires the same size and the same members, in any order.
// A repeated index never matches.
func sameIndexSet(selected, correct []int) bool {
	if len(selected) != len(correct) {
		return false
	}
	want := make(map[int]bool, len(correct))
	for _, i := range correct {
		want[i] = true
	}
	got := make(map[int]bool, len(selected))
	for _, i := range selected {
		if !want[i] || got[i] {
			return false
		}
		got[i] = true
	}
	return true
}
