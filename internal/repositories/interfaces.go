package repositories

import (
	"context"

	"github.com/SAP-F-2025/exam-service/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type TestFilters struct {
	CourseID     *uint              `json:"course_id"`
	InstructorID *string            `json:"instructor_id"`
	Status       *models.TestStatus `json:"status"`
	Search       string             `json:"search"`
	Limit        int                `json:"limit"`
	Offset       int                `json:"offset"`
	SortBy       string             `json:"sort_by"`    // "created_at", "title", "start_date"
	SortOrder    string             `json:"sort_order"` // "asc", "desc"
}

type AttemptFilters struct {
	StudentID *string `json:"student_id"`
	Completed *bool   `json:"completed"`
	Limit     int     `json:"limit"`
	Offset    int     `json:"offset"`
}

// ===== REPOSITORY INTERFACES =====

type TestRepository interface {
	Create(ctx context.Context, test *models.Test) error
	GetByID(ctx context.Context, id uint) (*models.Test, error)
	// GetByIDWithQuestions loads the test with questions in authored order.
	GetByIDWithQuestions(ctx context.Context, id uint) (*models.Test, error)
	Update(ctx context.Context, test *models.Test) error
	UpdateStatus(ctx context.Context, id uint, status models.TestStatus) error
	Delete(ctx context.Context, id uint) error

	List(ctx context.Context, filters TestFilters) ([]*models.Test, int64, error)
	ListPublishedActive(ctx context.Context, filters TestFilters) ([]*models.Test, int64, error)

	// UpdateStatistics writes stats and bumps the version only when the stored
	// version still equals expectedVersion. Otherwise ErrVersionConflict.
	UpdateStatistics(ctx context.Context, id uint, expectedVersion int, stats models.TestStatistics) error

	IsOwner(ctx context.Context, testID uint, instructorID string) (bool, error)
	HasAttempts(ctx context.Context, id uint) (bool, error)
}

type QuestionRepository interface {
	GetByTest(ctx context.Context, testID uint) ([]models.Question, error)
	// ReplaceForTest deletes the test's questions and inserts the given ones in order.
	ReplaceForTest(ctx context.Context, testID uint, questions []models.Question) error
	CountByTest(ctx context.Context, testID uint) (int64, error)
}

type AttemptRepository interface {
	Create(ctx context.Context, attempt *models.TestAttempt) error
	GetByID(ctx context.Context, id uint) (*models.TestAttempt, error)
	Update(ctx context.Context, attempt *models.TestAttempt) error

	// ListByTest returns attempts ordered by id ascending.
	ListByTest(ctx context.Context, testID uint, filters AttemptFilters) ([]*models.TestAttempt, error)
	ListByTestAndStudent(ctx context.Context, testID uint, studentID string) ([]*models.TestAttempt, error)
	GetInProgress(ctx context.Context, testID uint, studentID string) (*models.TestAttempt, error)
	CountByTestAndStudent(ctx context.Context, testID uint, studentID string) (int64, error)
}

type CourseRepository interface {
	Create(ctx context.Context, course *models.Course) error
	GetByID(ctx context.Context, id uint) (*models.Course, error)
	Enroll(ctx context.Context, enrollment *models.CourseEnrollment) error
	IsEnrolled(ctx context.Context, courseID uint, studentID string) (bool, error)
}
