package validator

import (
	"time"

	"github.com/SAP-F-2025/exam-service/internal/models"
)

// OptionRequest is one choice of a multiple-choice or true-false question
type OptionRequest struct {
	Text      string `json:"text" yaml:"text" validate:"required,max=500"`
	IsCorrect bool   `json:"is_correct" yaml:"is_correct"`
}

type QuestionRequest struct {
	Text          string                 `json:"text" yaml:"text" validate:"required,min=1,max=2000"`
	Type          models.QuestionType    `json:"type" yaml:"type" validate:"required,question_type"`
	Options       []OptionRequest        `json:"options" yaml:"options" validate:"omitempty,max=10,dive"`
	CorrectAnswer *string                `json:"correct_answer" yaml:"correct_answer" validate:"omitempty,max=500"`
	Points        int                    `json:"points" yaml:"points" validate:"required,points_range"`
	Explanation   *string                `json:"explanation" yaml:"explanation" validate:"omitempty,max=1000"`
	Difficulty    models.DifficultyLevel `json:"difficulty" yaml:"difficulty" validate:"omitempty,difficulty_level"`
	Tags          []string               `json:"tags" yaml:"tags" validate:"omitempty,max=10,dive,max=50"`
}

// SettingsRequest leaves every field optional; missing values take the defaults
type SettingsRequest struct {
	TimeLimit        *int    `json:"time_limit" yaml:"time_limit" validate:"omitempty,time_limit"`
	PassingScore     *int    `json:"passing_score" yaml:"passing_score" validate:"omitempty,passing_score"`
	MaxAttempts      *int    `json:"max_attempts" yaml:"max_attempts" validate:"omitempty,max_attempts"`
	ShuffleQuestions *bool   `json:"shuffle_questions" yaml:"shuffle_questions"`
	ShowResults      *bool   `json:"show_results" yaml:"show_results"`
	AllowReview      *bool   `json:"allow_review" yaml:"allow_review"`
	RequirePassword  *bool   `json:"require_password" yaml:"require_password"`
	Password         *string `json:"password" yaml:"password" validate:"omitempty,max=255"`
}

type CreateTestRequest struct {
	CourseID    uint              `json:"course_id" yaml:"course_id" validate:"required"`
	Title       string            `json:"title" yaml:"title" validate:"required,test_title"`
	Description string            `json:"description" yaml:"description" validate:"required,test_description"`
	IsActive    *bool             `json:"is_active" yaml:"is_active"`
	StartDate   *time.Time        `json:"start_date" yaml:"start_date"`
	EndDate     *time.Time        `json:"end_date" yaml:"end_date"`
	Settings    SettingsRequest   `json:"settings" yaml:"settings"`
	Questions   []QuestionRequest `json:"questions" yaml:"questions" validate:"required,min=1,max=200,dive"`
}

// UpdateTestRequest is a partial update; nil fields are left unchanged
type UpdateTestRequest struct {
	Title       *string           `json:"title" validate:"omitempty,test_title"`
	Description *string           `json:"description" validate:"omitempty,test_description"`
	IsActive    *bool             `json:"is_active"`
	StartDate   *time.Time        `json:"start_date"`
	EndDate     *time.Time        `json:"end_date"`
	Settings    *SettingsRequest  `json:"settings"`
	Questions   []QuestionRequest `json:"questions" validate:"omitempty,min=1,max=200,dive"`
}

type StartAttemptRequest struct {
	Password string `json:"password" validate:"max=255"`
}

type AnswerRequest struct {
	QuestionID      uint   `json:"question_id" validate:"required"`
	SelectedOptions []int  `json:"selected_options" validate:"omitempty,max=20,dive,min=0"`
	TextAnswer      string `json:"text_answer" validate:"max=5000"`
}

type SubmitAttemptRequest struct {
	Answers   []AnswerRequest `json:"answers" validate:"omitempty,max=500,dive"`
	TimeSpent int             `json:"time_spent" validate:"min=0"`
}

type CreateCourseRequest struct {
	Title    string `json:"title" validate:"required,min=3,max=200"`
	Category string `json:"category" validate:"max=100"`
}
