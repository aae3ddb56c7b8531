package models

import (
	"time"

	"gorm.io/datatypes"
)

type QuestionType string

const (
	MultipleChoice QuestionType = "multiple-choice"
	TrueFalse      QuestionType = "true-false"
	FillInBlank    QuestionType = "fill-in-blank"
	Essay          QuestionType = "essay"
)

// QuestionTypes lists every supported question type.
var QuestionTypes = []QuestionType{MultipleChoice, TrueFalse, FillInBlank, Essay}

func (t QuestionType) IsValid() bool {
	switch t {
	case MultipleChoice, TrueFalse, FillInBlank, Essay:
		return true
	}
	return false
}

// UsesOptions reports whether answers to this type are option indices.
func (t QuestionType) UsesOptions() bool {
	return t == MultipleChoice || t == TrueFalse
}

type DifficultyLevel string

const (
	DifficultyEasy   DifficultyLevel = "easy"
	DifficultyMedium DifficultyLevel = "medium"
	DifficultyHard   DifficultyLevel = "hard"
)

func (d DifficultyLevel) IsValid() bool {
	return d == DifficultyEasy || d == DifficultyMedium || d == DifficultyHard
}

type QuestionOption struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

// Question belongs to exactly one test. Position keeps the authored order.
type Question struct {
	ID       uint         `json:"id" gorm:"primaryKey"`
	TestID   uint         `json:"test_id" gorm:"not null;index"`
	Position int          `json:"position" gorm:"not null"`
	Text     string       `json:"text" gorm:"type:text;not null"`
	Type     QuestionType `json:"type" gorm:"not null;size:20;index"`

	Options       datatypes.JSONSlice[QuestionOption] `json:"options" gorm:"type:jsonb"`
	CorrectAnswer *string                             `json:"correct_answer,omitempty" gorm:"type:text"`
	Points        int                                 `json:"points" gorm:"not null;default:1"`

	Explanation *string                     `json:"explanation,omitempty" gorm:"type:text"`
	Difficulty  DifficultyLevel             `json:"difficulty" gorm:"default:medium;size:10"`
	Tags        datatypes.JSONSlice[string] `json:"tags" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Question) TableName() string {
	return "test_questions"
}

// CorrectOptionIndexes returns the indices of options flagged correct.
func (q *Question) CorrectOptionIndexes() []int {
	var idx []int
	for i, opt := range q.Options {
		if opt.IsCorrect {
			idx = append(idx, i)
		}
	}
	return idx
}

// SanitizedOption is an option without its correctness flag.
type SanitizedOption struct {
	Text string `json:"text"`
}

// SanitizedQuestion is what a student sees while an attempt is running.
type SanitizedQuestion struct {
	ID         uint              `json:"id"`
	Text       string            `json:"text"`
	Type       QuestionType      `json:"type"`
	Options    []SanitizedOption `json:"options"`
	Points     int               `json:"points"`
	Difficulty DifficultyLevel   `json:"difficulty"`
	Tags       []string          `json:"tags"`
}
