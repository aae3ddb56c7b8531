package models

import (
	"time"

	"gorm.io/datatypes"
)

// AnswerRecord is a graded answer stored inside its attempt row.
// SelectedOptions is used by choice questions, TextAnswer by fill-in-blank and essay.
type AnswerRecord struct {
	QuestionID      uint   `json:"question_id"`
	SelectedOptions []int  `json:"selected_options,omitempty"`
	TextAnswer      string `json:"text_answer,omitempty"`
	IsCorrect       bool   `json:"is_correct"`
	PointsEarned    int    `json:"points_earned"`
}

type TestAttempt struct {
	ID            uint   `json:"id" gorm:"primaryKey"`
	TestID        uint   `json:"test_id" gorm:"not null;index:idx_attempt_test_student"`
	StudentID     string `json:"student_id" gorm:"not null;size:255;index:idx_attempt_test_student"`
	AttemptNumber int    `json:"attempt_number" gorm:"not null"`

	StartedAt   time.Time  `json:"started_at" gorm:"not null"`
	CompletedAt *time.Time `json:"completed_at"`

	Answers    datatypes.JSONSlice[AnswerRecord] `json:"answers" gorm:"type:jsonb"`
	Score      int                               `json:"score" gorm:"not null;default:0"`
	MaxScore   int                               `json:"max_score" gorm:"not null;default:0"`
	Percentage int                               `json:"percentage" gorm:"not null;default:0"`
	Passed     bool                              `json:"passed" gorm:"not null;default:false"`
	TimeSpent  int                               `json:"time_spent" gorm:"not null;default:0"` // minutes

	IPAddress string `json:"ip_address,omitempty" gorm:"size:45"`
	UserAgent string `json:"user_agent,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (TestAttempt) TableName() string {
	return "test_attempts"
}

func (a *TestAttempt) IsCompleted() bool {
	return a.CompletedAt != nil
}

func (a *TestAttempt) InProgress() bool {
	return a.CompletedAt == nil
}
