package models

import (
	"time"

	"gorm.io/gorm"
)

type TestStatus string

const (
	TestDraft     TestStatus = "draft"
	TestPublished TestStatus = "published"
	TestArchived  TestStatus = "archived"
)

func (s TestStatus) IsValid() bool {
	return s == TestDraft || s == TestPublished || s == TestArchived
}

// TestSettings is stored inline on the tests row with a settings_ prefix.
type TestSettings struct {
	TimeLimit        int  `json:"time_limit" gorm:"not null"` // minutes
	PassingScore     int  `json:"passing_score" gorm:"not null"`
	MaxAttempts      int  `json:"max_attempts" gorm:"not null"`
	ShuffleQuestions bool `json:"shuffle_questions" gorm:"not null"`
	ShowResults      bool `json:"show_results" gorm:"not null"`
	AllowReview      bool `json:"allow_review" gorm:"not null"`
	RequirePassword  bool `json:"require_password" gorm:"not null"`
	// Password is stored and compared in plaintext. Never render a Test directly to students.
	Password string `json:"password,omitempty" gorm:"size:255"`
}

// TestStatistics are derived from the attempt rows and rewritten on every attempt change.
type TestStatistics struct {
	TotalAttempts int `json:"total_attempts" gorm:"not null;default:0"`
	AverageScore  int `json:"average_score" gorm:"not null;default:0"`
	PassRate      int `json:"pass_rate" gorm:"not null;default:0"`
	AverageTime   int `json:"average_time" gorm:"not null;default:0"` // minutes
}

type Test struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	Title        string     `json:"title" gorm:"not null;size:100;index"`
	Description  string     `json:"description" gorm:"type:text;not null"`
	CourseID     uint       `json:"course_id" gorm:"not null;index:idx_tests_course_status"`
	InstructorID string     `json:"instructor_id" gorm:"not null;index;size:255"`
	Status       TestStatus `json:"status" gorm:"default:draft;size:20;index:idx_tests_course_status"`
	IsActive     bool       `json:"is_active" gorm:"not null"`
	StartDate    time.Time  `json:"start_date" gorm:"not null;index:idx_tests_window"`
	EndDate      *time.Time `json:"end_date" gorm:"index:idx_tests_window"`

	Settings   TestSettings   `json:"settings" gorm:"embedded;embeddedPrefix:settings_"`
	Statistics TestStatistics `json:"statistics" gorm:"embedded;embeddedPrefix:stats_"`

	// Version guards the attempt/statistics read-modify-write cycle.
	Version int `json:"version" gorm:"not null;default:1"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Questions []Question `json:"questions,omitempty" gorm:"foreignKey:TestID;constraint:OnDelete:CASCADE"`
	Course    *Course    `json:"course,omitempty" gorm:"foreignKey:CourseID"`
}

func (Test) TableName() string {
	return "tests"
}

func (t *Test) TotalQuestions() int {
	return len(t.Questions)
}

func (t *Test) TotalPoints() int {
	total := 0
	for _, q := range t.Questions {
		total += q.Points
	}
	return total
}

// IsExpired reports whether the end date has passed.
func (t *Test) IsExpired(now time.Time) bool {
	return t.EndDate != nil && now.After(*t.EndDate)
}

// IsCurrentlyActive is true for an active, published test inside its availability window.
func (t *Test) IsCurrentlyActive(now time.Time) bool {
	return t.IsActive &&
		t.Status == TestPublished &&
		!now.Before(t.StartDate) &&
		(t.EndDate == nil || !now.After(*t.EndDate))
}

// QuestionByID looks a question up by id.
func (t *Test) QuestionByID(id uint) (*Question, bool) {
	for i := range t.Questions {
		if t.Questions[i].ID == id {
			return &t.Questions[i], true
		}
	}
	return nil, false
}
