package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/SAP-F-2025/exam-service/internal/models"
)

func completedAttempt(id uint, score, maxScore int, passed bool, timeSpent int) *models.TestAttempt {
	done := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	return &models.TestAttempt{
		ID:          id,
		Score:       score,
		MaxScore:    maxScore,
		Percentage:  Percentage(score, maxScore),
		Passed:      passed,
		TimeSpent:   timeSpent,
		CompletedAt: &done,
	}
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		score, max, want int
	}{
		{0, 10, 0},
		{10, 10, 100},
		{1, 2, 50},
		{2, 3, 67},
		{1, 3, 33},
		{1, 8, 13},
		{5, 0, 0},
		{0, 0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Percentage(tt.score, tt.max), "%d/%d", tt.score, tt.max)
	}
}

func TestComputeStatistics(t *testing.T) {
	t.Run("no attempts", func(t *testing.T) {
		assert.Equal(t, models.TestStatistics{}, ComputeStatistics(nil))
	})

	t.Run("only in progress", func(t *testing.T) {
		stats := ComputeStatistics([]*models.TestAttempt{{ID: 1}, {ID: 2}})
		assert.Equal(t, models.TestStatistics{TotalAttempts: 2}, stats)
	})

	t.Run("pooled average over completed attempts", func(t *testing.T) {
		stats := ComputeStatistics([]*models.TestAttempt{
			completedAttempt(1, 8, 10, true, 10),
			completedAttempt(2, 3, 10, false, 21),
			{ID: 3},
		})
		assert.Equal(t, 3, stats.TotalAttempts)
		assert.Equal(t, 55, stats.AverageScore)
		assert.Equal(t, 50, stats.PassRate)
		assert.Equal(t, 16, stats.AverageTime)
	})

	t.Run("zero max score", func(t *testing.T) {
		stats := ComputeStatistics([]*models.TestAttempt{completedAttempt(1, 0, 0, true, 0)})
		assert.Equal(t, 0, stats.AverageScore)
		assert.Equal(t, 100, stats.PassRate)
	})
}

func TestBestAttempt(t *testing.T) {
	assert.Nil(t, BestAttempt(nil))
	assert.Nil(t, BestAttempt([]*models.TestAttempt{{ID: 1}}))

	first := completedAttempt(1, 7, 10, true, 5)
	tie := completedAttempt(2, 7, 10, true, 5)
	lower := completedAttempt(3, 2, 10, false, 5)
	inProgress := &models.TestAttempt{ID: 4, Percentage: 100}

	best := BestAttempt([]*models.TestAttempt{first, tie, lower, inProgress})
	require.NotNil(t, best)
	assert.Equal(t, uint(1), best.ID)

	higher := completedAttempt(5, 9, 10, true, 5)
	best = BestAttempt([]*models.TestAttempt{first, higher})
	assert.Equal(t, uint(5), best.ID)
}

func TestComputeQuestionAnalytics(t *testing.T) {
	questions := []models.Question{
		{ID: 10, Text: "q1", Type: models.TrueFalse},
		{ID: 11, Text: "q2", Type: models.Essay},
	}
	a1 := completedAttempt(1, 1, 2, true, 1)
	a1.Answers = datatypes.NewJSONSlice([]models.AnswerRecord{
		{QuestionID: 10, IsCorrect: true},
		{QuestionID: 11},
	})
	a2 := completedAttempt(2, 0, 2, false, 1)
	a2.Answers = datatypes.NewJSONSlice([]models.AnswerRecord{
		{QuestionID: 10},
		{QuestionID: 42, IsCorrect: true},
	})
	running := &models.TestAttempt{ID: 3, Answers: datatypes.NewJSONSlice([]models.AnswerRecord{{QuestionID: 10, IsCorrect: true}})}

	got := ComputeQuestionAnalytics(questions, []*models.TestAttempt{a1, a2, running})
	require.Len(t, got, 2)
	assert.Equal(t, QuestionAnalytics{QuestionID: 10, Text: "q1", Type: models.TrueFalse, TotalAttempts: 2, CorrectAnswers: 1, Accuracy: 50}, got[0])
	assert.Equal(t, QuestionAnalytics{QuestionID: 11, Text: "q2", Type: models.Essay, TotalAttempts: 1, CorrectAnswers: 0, Accuracy: 0}, got[1])
}
