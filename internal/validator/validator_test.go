package validator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/exam-service/internal/models"
)

func ptr[T any](v T) *T { return &v }

func validCreateRequest() CreateTestRequest {
	return CreateTestRequest{
		CourseID:    1,
		Title:       "Midterm exam",
		Description: "Covers chapters one to four",
		Questions: []QuestionRequest{
			{Text: "2+2?", Type: models.MultipleChoice, Points: 1, Options: []OptionRequest{{Text: "3"}, {Text: "4", IsCorrect: true}}},
		},
	}
}

func TestValidator_CreateTestRequest(t *testing.T) {
	v := New()

	tests := []struct {
		name      string
		mutate    func(r *CreateTestRequest)
		wantField string
		wantRule  string
	}{
		{"valid", func(r *CreateTestRequest) {}, "", ""},
		{"short title", func(r *CreateTestRequest) { r.Title = "abc" }, "title", "test_title"},
		{"short description", func(r *CreateTestRequest) { r.Description = "short" }, "description", "test_description"},
		{"no questions", func(r *CreateTestRequest) { r.Questions = nil }, "questions", "required"},
		{"bad question type", func(r *CreateTestRequest) { r.Questions[0].Type = "matching" }, "questions[0].type", "question_type"},
		{"zero points", func(r *CreateTestRequest) { r.Questions[0].Points = 0 }, "questions[0].points", "required"},
		{"passing score too high", func(r *CreateTestRequest) { r.Settings.PassingScore = ptr(101) }, "settings.passing_score", "passing_score"},
		{"passing score zero allowed", func(r *CreateTestRequest) { r.Settings.PassingScore = ptr(0) }, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreateRequest()
			tt.mutate(&req)

			errs := v.Validate(&req)
			if tt.wantField == "" {
				assert.Empty(t, errs)
				return
			}
			require.NotEmpty(t, errs)
			assert.Equal(t, tt.wantField, errs[0].Field)
			assert.Equal(t, tt.wantRule, errs[0].Rule)
		})
	}
}

func TestValidateQuestion(t *testing.T) {
	answer := "Paris"
	blank := "  "

	tests := []struct {
		name     string
		question models.Question
		valid    bool
	}{
		{"multiple choice with no correct option", models.Question{Type: models.MultipleChoice, Points: 1, Options: []models.QuestionOption{{Text: "a"}, {Text: "b"}}}, true},
		{"multiple choice with one option", models.Question{Type: models.MultipleChoice, Points: 1, Options: []models.QuestionOption{{Text: "a", IsCorrect: true}}}, false},
		{"true-false with one correct", models.Question{Type: models.TrueFalse, Points: 1, Options: []models.QuestionOption{{Text: "True", IsCorrect: true}, {Text: "False"}}}, true},
		{"true-false with two correct", models.Question{Type: models.TrueFalse, Points: 1, Options: []models.QuestionOption{{Text: "True", IsCorrect: true}, {Text: "False", IsCorrect: true}}}, false},
		{"true-false with none correct", models.Question{Type: models.TrueFalse, Points: 1, Options: []models.QuestionOption{{Text: "True"}, {Text: "False"}}}, false},
		{"fill-in-blank with answer", models.Question{Type: models.FillInBlank, Points: 2, CorrectAnswer: &answer}, true},
		{"fill-in-blank blank answer", models.Question{Type: models.FillInBlank, Points: 2, CorrectAnswer: &blank}, false},
		{"fill-in-blank missing answer", models.Question{Type: models.FillInBlank, Points: 2}, false},
		{"essay", models.Question{Type: models.Essay, Points: 5}, true},
		{"zero points", models.Question{Type: models.Essay, Points: 0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateQuestion(&tt.question, 0)
			if tt.valid {
				assert.Empty(t, errs)
			} else {
				assert.NotEmpty(t, errs)
			}
		})
	}
}

func TestValidateSettings_Password(t *testing.T) {
	base := models.TestSettings{TimeLimit: 30, PassingScore: 50, MaxAttempts: 1}

	s := base
	assert.Empty(t, ValidateSettings(s))

	s.RequirePassword = true
	errs := ValidateSettings(s)
	require.Len(t, errs, 1)
	assert.Equal(t, "settings.password", errs[0].Field)

	s.Password = "secret"
	assert.Empty(t, ValidateSettings(s))

	s.RequirePassword = false
	assert.Len(t, ValidateSettings(s), 1)
}

func TestValidateTest_EndDate(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)
	test := &models.Test{
		StartDate: start,
		EndDate:   &end,
		Settings:  models.TestSettings{TimeLimit: 30, PassingScore: 50, MaxAttempts: 1},
		Questions: []models.Question{{Type: models.Essay, Points: 1}},
	}

	errs := ValidateTest(test)
	require.Len(t, errs, 1)
	assert.Equal(t, "end_date", errs[0].Field)
}

func TestValidateStatusTransition(t *testing.T) {
	assert.Empty(t, ValidateStatusTransition(models.TestDraft, models.TestPublished, 3))
	assert.NotEmpty(t, ValidateStatusTransition(models.TestDraft, models.TestPublished, 0))
	assert.Empty(t, ValidateStatusTransition(models.TestPublished, models.TestArchived, 3))
	assert.NotEmpty(t, ValidateStatusTransition(models.TestArchived, models.TestPublished, 3))
	assert.NotEmpty(t, ValidateStatusTransition(models.TestPublished, models.TestDraft, 3))
}
