package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
)

type QuestionPostgreSQL struct {
	db *gorm.DB
}

func NewQuestionPostgreSQL(db *gorm.DB) repositories.QuestionRepository {
	return &QuestionPostgreSQL{db: db}
}

func (r *QuestionPostgreSQL) GetByTest(ctx context.Context, testID uint) ([]models.Question, error) {
	var questions []models.Question
	err := r.db.WithContext(ctx).
		Where("test_id = ?", testID).
		Order("position ASC, id ASC").
		Find(&questions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}
	return questions, nil
}

// ReplaceForTest should run inside a transaction so the delete and insert land together
func (r *QuestionPostgreSQL) ReplaceForTest(ctx context.Context, testID uint, questions []models.Question) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("test_id = ?", testID).Delete(&models.Question{}).Error; err != nil {
		return fmt.Errorf("failed to delete questions: %w", err)
	}
	if len(questions) == 0 {
		return nil
	}

	for i := range questions {
		questions[i].ID = 0
		questions[i].TestID = testID
		questions[i].Position = i
	}
	if err := db.CreateInBatches(questions, 100).Error; err != nil {
		return fmt.Errorf("failed to insert questions: %w", err)
	}
	return nil
}

func (r *QuestionPostgreSQL) CountByTest(ctx context.Context, testID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Question{}).
		Where("test_id = ?", testID).
		Count(&count).Error
	return count, err
}
