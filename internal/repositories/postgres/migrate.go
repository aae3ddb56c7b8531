package postgres

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/exam-service/internal/models"
)

// AutoMigrate creates or updates the exam tables
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Course{},
		&models.CourseEnrollment{},
		&models.Test{},
		&models.Question{},
		&models.TestAttempt{},
	); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}
