package services

import (
	"math"

	"github.com/SAP-F-2025/exam-service/internal/models"
)

// Percentage is round(score / maxScore * 100), 0 when maxScore is 0
func Percentage(score, maxScore int) int {
	if maxScore <= 0 {
		return 0
	}
	return int(math.Round(float64(score) / float64(maxScore) * 100))
}

// ComputeStatistics recomputes the test rollups from the full attempt collection.
// In-progress attempts count toward TotalAttempts only.
func ComputeStatistics(attempts []*models.TestAttempt) models.TestStatistics {
	stats := models.TestStatistics{TotalAttempts: len(attempts)}

	var completed, passed, scoreSum, maxSum, timeSum int
	for _, a := range attempts {
		if !a.IsCompleted() {
			continue
		}
		completed++
		if a.Passed {
			passed++
		}
		scoreSum += a.Score
		maxSum += a.MaxScore
		timeSum += a.TimeSpent
	}

	if completed == 0 {
		return stats
	}

	stats.PassRate = int(math.Round(float64(passed) / float64(completed) * 100))
	stats.AverageScore = Percentage(scoreSum, maxSum)
	stats.AverageTime = int(math.Round(float64(timeSum) / float64(completed)))
	return stats
}

// BestAttempt picks the completed attempt with the highest percentage.
// Attempts must be in storage order; the earliest wins a tie.
func BestAttempt(attempts []*models.TestAttempt) *models.TestAttempt {
	var best *models.TestAttempt
	for _, a := range attempts {
		if !a.IsCompleted() {
			continue
		}
		if best == nil || a.Percentage > best.Percentage {
			best = a
		}
	}
	return best
}

// QuestionAnalytics is the per-question accuracy over completed attempts
type QuestionAnalytics struct {
	QuestionID     uint                `json:"question_id"`
	Text           string              `json:"text"`
	Type           models.QuestionType `json:"type"`
	TotalAttempts  int                 `json:"total_attempts"`
	CorrectAnswers int                 `json:"correct_answers"`
	Accuracy       int                 `json:"accuracy"`
}

// ComputeQuestionAnalytics counts, for each question, the completed attempts that answered it
func ComputeQuestionAnalytics(questions []models.Question, attempts []*models.TestAttempt) []QuestionAnalytics {
	index := make(map[uint]int, len(questions))
	out := make([]QuestionAnalytics, len(questions))
	for i, q := range questions {
		index[q.ID] = i
		out[i] = QuestionAnalytics{QuestionID: q.ID, Text: q.Text, Type: q.Type}
	}

	for _, a := range attempts {
		if !a.IsCompleted() {
			continue
		}
		for _, ans := range a.Answers {
			i, ok := index[ans.QuestionID]
			if !ok {
				continue
			}
			out[i].TotalAttempts++
			if ans.IsCorrect {
				out[i].CorrectAnswers++
			}
		}
	}

	for i := range out {
		out[i].Accuracy = Percentage(out[i].CorrectAnswers, out[i].TotalAttempts)
	}
	return out
}
