package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
)

type AttemptPostgreSQL struct {
	db *gorm.DB
}

func NewAttemptPostgreSQL(db *gorm.DB) repositories.AttemptRepository {
	return &AttemptPostgreSQL{db: db}
}

func (a *AttemptPostgreSQL) Create(ctx context.Context, attempt *models.TestAttempt) error {
	if err := a.db.WithContext(ctx).Create(attempt).Error; err != nil {
		return fmt.Errorf("failed to create attempt: %w", err)
	}
	return nil
}

func (a *AttemptPostgreSQL) GetByID(ctx context.Context, id uint) (*models.TestAttempt, error) {
	var attempt models.TestAttempt
	if err := a.db.WithContext(ctx).First(&attempt, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) Update(ctx context.Context, attempt *models.TestAttempt) error {
	if err := a.db.WithContext(ctx).Save(attempt).Error; err != nil {
		return fmt.Errorf("failed to update attempt: %w", err)
	}
	return nil
}

func (a *AttemptPostgreSQL) ListByTest(ctx context.Context, testID uint, filters repositories.AttemptFilters) ([]*models.TestAttempt, error) {
	query := a.db.WithContext(ctx).Where("test_id = ?", testID)
	if filters.StudentID != nil {
		query = query.Where("student_id = ?", *filters.StudentID)
	}
	if filters.Completed != nil {
		if *filters.Completed {
			query = query.Where("completed_at IS NOT NULL")
		} else {
			query = query.Where("completed_at IS NULL")
		}
	}
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit).Offset(max(filters.Offset, 0))
	}

	var attempts []*models.TestAttempt
	if err := query.Order("id ASC").Find(&attempts).Error; err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	return attempts, nil
}

func (a *AttemptPostgreSQL) ListByTestAndStudent(ctx context.Context, testID uint, studentID string) ([]*models.TestAttempt, error) {
	return a.ListByTest(ctx, testID, repositories.AttemptFilters{StudentID: &studentID})
}

// GetInProgress returns (nil, nil) when the student has no open attempt
func (a *AttemptPostgreSQL) GetInProgress(ctx context.Context, testID uint, studentID string) (*models.TestAttempt, error) {
	var attempt models.TestAttempt
	err := a.db.WithContext(ctx).
		Where("test_id = ? AND student_id = ? AND completed_at IS NULL", testID, studentID).
		Order("id DESC").
		First(&attempt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get in-progress attempt: %w", err)
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) CountByTestAndStudent(ctx context.Context, testID uint, studentID string) (int64, error) {
	var count int64
	err := a.db.WithContext(ctx).Model(&models.TestAttempt{}).
		Where("test_id = ? AND student_id = ?", testID, studentID).
		Count(&count).Error
	return count, err
}
