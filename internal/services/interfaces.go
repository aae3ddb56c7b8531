package services

import (
	"context"
	"io"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"github.com/SAP-F-2025/exam-service/internal/validator"
)

// ===== SERVICE INTERFACES =====

type AttemptService interface {
	Start(ctx context.Context, testID uint, studentID string, req *validator.StartAttemptRequest, client ClientContext) (*StartAttemptResponse, error)
	Submit(ctx context.Context, testID uint, studentID string, req *validator.SubmitAttemptRequest) (*AttemptResult, error)
	GetBestAttempt(ctx context.Context, testID uint, studentID string) (*models.TestAttempt, error)
	GetResults(ctx context.Context, testID uint, studentID string) (*ResultsResponse, error)
}

type TestService interface {
	Create(ctx context.Context, req *validator.CreateTestRequest, user *models.User) (*TestDetailResponse, error)
	Update(ctx context.Context, id uint, req *validator.UpdateTestRequest, user *models.User) (*TestDetailResponse, error)
	Publish(ctx context.Context, id uint, user *models.User) error
	Archive(ctx context.Context, id uint, user *models.User) error
	Delete(ctx context.Context, id uint, user *models.User) error

	GetByID(ctx context.Context, id uint, user *models.User) (*TestDetailResponse, error)
	ListActive(ctx context.Context, filters repositories.TestFilters) (*TestListResponse, error)
	ListByInstructor(ctx context.Context, user *models.User, filters repositories.TestFilters) (*TestListResponse, error)
	ListByCourse(ctx context.Context, courseID uint, filters repositories.TestFilters) (*TestListResponse, error)

	GetAnalytics(ctx context.Context, id uint, user *models.User) (*TestAnalytics, error)
}

type CourseService interface {
	Create(ctx context.Context, req *validator.CreateCourseRequest, user *models.User) (*models.Course, error)
	Enroll(ctx context.Context, courseID uint, studentID string) error
	IsEnrolled(ctx context.Context, courseID uint, studentID string) (bool, error)
}

type ReportService interface {
	// Generate builds the XLSX report; URL is set when the file was uploaded to object storage
	Generate(ctx context.Context, testID uint, user *models.User) (*Report, error)
}

// ReportStorage uploads a report and returns a download link
type ReportStorage interface {
	Upload(ctx context.Context, objectName, contentType string, body io.Reader, size int64) (string, error)
}

// ===== REQUEST CONTEXT =====

// ClientContext is captured from the HTTP request that started an attempt
type ClientContext struct {
	IPAddress string
	UserAgent string
}

// ===== RESPONSE DTOs =====

type StartAttemptResponse struct {
	AttemptID      uint                       `json:"attempt_id"`
	TestID         uint                       `json:"test_id"`
	Title          string                     `json:"title"`
	TimeLimit      int                        `json:"time_limit"`
	AttemptNumber  int                        `json:"attempt_number"`
	StartedAt      time.Time                  `json:"started_at"`
	Questions      []models.SanitizedQuestion `json:"questions"`
	TotalQuestions int                        `json:"total_questions"`
	TotalPoints    int                        `json:"total_points"`
}

type AnswerResult struct {
	models.AnswerRecord
	Explanation *string `json:"explanation,omitempty"`
}

type AttemptResult struct {
	AttemptID   uint           `json:"attempt_id"`
	Score       int            `json:"score"`
	MaxScore    int            `json:"max_score"`
	Percentage  int            `json:"percentage"`
	Passed      bool           `json:"passed"`
	TimeSpent   int            `json:"time_spent"`
	CompletedAt time.Time      `json:"completed_at"`
	Answers     []AnswerResult `json:"answers,omitempty"`
}

type ResultsResponse struct {
	Attempts       []*models.TestAttempt `json:"attempts"`
	BestAttempt    *models.TestAttempt   `json:"best_attempt"`
	TestStatistics models.TestStatistics `json:"test_statistics"`
}

// SettingsView is TestSettings without the password
type SettingsView struct {
	TimeLimit        int  `json:"time_limit"`
	PassingScore     int  `json:"passing_score"`
	MaxAttempts      int  `json:"max_attempts"`
	ShuffleQuestions bool `json:"shuffle_questions"`
	ShowResults      bool `json:"show_results"`
	AllowReview      bool `json:"allow_review"`
	RequirePassword  bool `json:"require_password"`
}

type TestSummary struct {
	ID                uint                  `json:"id"`
	Title             string                `json:"title"`
	Description       string                `json:"description"`
	CourseID          uint                  `json:"course_id"`
	InstructorID      string                `json:"instructor_id"`
	Status            models.TestStatus     `json:"status"`
	IsActive          bool                  `json:"is_active"`
	StartDate         time.Time             `json:"start_date"`
	EndDate           *time.Time            `json:"end_date"`
	Settings          SettingsView          `json:"settings"`
	Statistics        models.TestStatistics `json:"statistics"`
	TotalQuestions    int                   `json:"total_questions"`
	TotalPoints       int                   `json:"total_points"`
	IsExpired         bool                  `json:"is_expired"`
	IsCurrentlyActive bool                  `json:"is_currently_active"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
}

type TestDetailResponse struct {
	TestSummary
	Questions []models.SanitizedQuestion `json:"questions"`
	// AuthoringQuestions carries answers and is only filled for the owner or an admin
	AuthoringQuestions []models.Question     `json:"authoring_questions,omitempty"`
	IsEnrolled         bool                  `json:"is_enrolled"`
	UserAttempts       []*models.TestAttempt `json:"user_attempts"`
}

type TestListResponse struct {
	Tests []TestSummary `json:"tests"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Size  int           `json:"size"`
}

type TestAnalytics struct {
	TestID            uint                  `json:"test_id"`
	Title             string                `json:"title"`
	Statistics        models.TestStatistics `json:"statistics"`
	TotalQuestions    int                   `json:"total_questions"`
	TotalPoints       int                   `json:"total_points"`
	CompletedAttempts int                   `json:"completed_attempts"`
	Questions         []QuestionAnalytics   `json:"questions"`
}

type Report struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Content     []byte `json:"-"`
	URL         string `json:"url,omitempty"`
}

// ===== CONVERSIONS =====

func NewTestSummary(t *models.Test, now time.Time) TestSummary {
	return TestSummary{
		ID:           t.ID,
		Title:        t.Title,
		Description:  t.Description,
		CourseID:     t.CourseID,
		InstructorID: t.InstructorID,
		Status:       t.Status,
		IsActive:     t.IsActive,
		StartDate:    t.StartDate,
		EndDate:      t.EndDate,
		Settings: SettingsView{
			TimeLimit:        t.Settings.TimeLimit,
			PassingScore:     t.Settings.PassingScore,
			MaxAttempts:      t.Settings.MaxAttempts,
			ShuffleQuestions: t.Settings.ShuffleQuestions,
			ShowResults:      t.Settings.ShowResults,
			AllowReview:      t.Settings.AllowReview,
			RequirePassword:  t.Settings.RequirePassword,
		},
		Statistics:        t.Statistics,
		TotalQuestions:    t.TotalQuestions(),
		TotalPoints:       t.TotalPoints(),
		IsExpired:         t.IsExpired(now),
		IsCurrentlyActive: t.IsCurrentlyActive(now),
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
}
