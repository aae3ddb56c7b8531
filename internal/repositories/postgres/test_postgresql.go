package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/exam-service/internal/cache"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
)

type TestPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
	// readCache is off inside transactions so version checks see the row, not a cached copy
	readCache bool
	changed   func(ctx context.Context, testID uint)
	now       func() time.Time
}

func NewTestPostgreSQL(db *gorm.DB, cm *cache.CacheManager, readCache bool, changed func(context.Context, uint)) repositories.TestRepository {
	return &TestPostgreSQL{
		db:           db,
		cacheManager: cm,
		readCache:    readCache,
		changed:      changed,
		now:          time.Now,
	}
}

func (r *TestPostgreSQL) Create(ctx context.Context, test *models.Test) error {
	if err := r.db.WithContext(ctx).Create(test).Error; err != nil {
		return fmt.Errorf("failed to create test: %w", err)
	}
	r.changed(ctx, test.ID)
	return nil
}

func (r *TestPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Test, error) {
	var test models.Test
	if err := r.db.WithContext(ctx).First(&test, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get test: %w", err)
	}
	return &test, nil
}

// GetByIDWithQuestions is cached outside transactions
func (r *TestPostgreSQL) GetByIDWithQuestions(ctx context.Context, id uint) (*models.Test, error) {
	load := func() (interface{}, error) {
		var test models.Test
		err := r.db.WithContext(ctx).
			Preload("Questions", func(db *gorm.DB) *gorm.DB {
				return db.Order("position ASC, id ASC")
			}).
			First(&test, id).Error
		if err != nil {
			return nil, fmt.Errorf("failed to get test with questions: %w", err)
		}
		return &test, nil
	}

	if !r.readCache {
		v, err := load()
		if err != nil {
			return nil, err
		}
		return v.(*models.Test), nil
	}

	var test models.Test
	err := r.cacheManager.Test.CacheOrExecute(ctx, cache.TestKey(id), &test, cache.TestCacheConfig.TTL, load)
	if err != nil {
		return nil, err
	}
	return &test, nil
}

// Update writes the authoring fields and bumps the version. Statistics are left alone.
func (r *TestPostgreSQL) Update(ctx context.Context, test *models.Test) error {
	result := r.db.WithContext(ctx).Model(&models.Test{}).
		Where("id = ? AND version = ?", test.ID, test.Version).
		Updates(map[string]interface{}{
			"title":                      test.Title,
			"description":                test.Description,
			"is_active":                  test.IsActive,
			"start_date":                 test.StartDate,
			"end_date":                   test.EndDate,
			"settings_time_limit":        test.Settings.TimeLimit,
			"settings_passing_score":     test.Settings.PassingScore,
			"settings_max_attempts":      test.Settings.MaxAttempts,
			"settings_shuffle_questions": test.Settings.ShuffleQuestions,
			"settings_show_results":      test.Settings.ShowResults,
			"settings_allow_review":      test.Settings.AllowReview,
			"settings_require_password":  test.Settings.RequirePassword,
			"settings_password":          test.Settings.Password,
			"version":                    gorm.Expr("version + 1"),
			"updated_at":                 r.now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update test: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repositories.ErrVersionConflict
	}

	test.Version++
	r.changed(ctx, test.ID)
	return nil
}

func (r *TestPostgreSQL) UpdateStatus(ctx context.Context, id uint, status models.TestStatus) error {
	result := r.db.WithContext(ctx).Model(&models.Test{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"version":    gorm.Expr("version + 1"),
			"updated_at": r.now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update test status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("test %d: %w", id, repositories.ErrNotFound)
	}
	r.changed(ctx, id)
	return nil
}

// Delete soft deletes the test; questions and attempts are kept
func (r *TestPostgreSQL) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Test{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete test: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("test %d: %w", id, repositories.ErrNotFound)
	}
	r.changed(ctx, id)
	return nil
}

func (r *TestPostgreSQL) List(ctx context.Context, filters repositories.TestFilters) ([]*models.Test, int64, error) {
	query := ApplyTestFilters(r.db.WithContext(ctx).Model(&models.Test{}), filters)
	return r.page(query, filters)
}

// ListPublishedActive returns published, active tests whose window contains now
func (r *TestPostgreSQL) ListPublishedActive(ctx context.Context, filters repositories.TestFilters) ([]*models.Test, int64, error) {
	now := r.now()
	query := ApplyTestFilters(r.db.WithContext(ctx).Model(&models.Test{}), filters).
		Where("status = ? AND is_active = ?", models.TestPublished, true).
		Where("start_date <= ?", now).
		Where("end_date IS NULL OR end_date >= ?", now)
	return r.page(query, filters)
}

func (r *TestPostgreSQL) page(query *gorm.DB, filters repositories.TestFilters) ([]*models.Test, int64, error) {
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count tests: %w", err)
	}

	var tests []*models.Test
	err := ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, id ASC")
		}).
		Find(&tests).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tests: %w", err)
	}
	return tests, total, nil
}

// UpdateStatistics is the guarded write of the attempt read-modify-write cycle
func (r *TestPostgreSQL) UpdateStatistics(ctx context.Context, id uint, expectedVersion int, stats models.TestStatistics) error {
	result := r.db.WithContext(ctx).Model(&models.Test{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(map[string]interface{}{
			"stats_total_attempts": stats.TotalAttempts,
			"stats_average_score":  stats.AverageScore,
			"stats_pass_rate":      stats.PassRate,
			"stats_average_time":   stats.AverageTime,
			"version":              gorm.Expr("version + 1"),
			"updated_at":           r.now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update test statistics: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repositories.ErrVersionConflict
	}
	r.changed(ctx, id)
	return nil
}

func (r *TestPostgreSQL) IsOwner(ctx context.Context, testID uint, instructorID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Test{}).
		Where("id = ? AND instructor_id = ?", testID, instructorID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check test owner: %w", err)
	}
	return count > 0, nil
}

func (r *TestPostgreSQL) HasAttempts(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.TestAttempt{}).
		Where("test_id = ?", id).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check test attempts: %w", err)
	}
	return count > 0, nil
}
