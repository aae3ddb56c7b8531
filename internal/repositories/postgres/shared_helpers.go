package postgres

import (
	"strings"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/exam-service/internal/repositories"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ApplyTestFilters applies common filters to test queries
func ApplyTestFilters(query *gorm.DB, filters repositories.TestFilters) *gorm.DB {
	if filters.CourseID != nil {
		query = query.Where("course_id = ?", *filters.CourseID)
	}
	if filters.InstructorID != nil {
		query = query.Where("instructor_id = ?", *filters.InstructorID)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if s := strings.TrimSpace(filters.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}
	return query
}

// ApplyPaginationAndSort applies pagination and sorting with SQL injection protection
func ApplyPaginationAndSort(query *gorm.DB, sortBy, sortOrder string, limit, offset int) *gorm.DB {
	allowedSortColumns := map[string]bool{
		"created_at": true,
		"updated_at": true,
		"id":         true,
		"title":      true,
		"status":     true,
		"start_date": true,
		"end_date":   true,
	}
	if !allowedSortColumns[sortBy] {
		sortBy = "created_at"
	}

	if strings.EqualFold(sortOrder, "asc") {
		sortOrder = "ASC"
	} else {
		sortOrder = "DESC"
	}

	query = query.Order(sortBy + " " + sortOrder)
	return query.Limit(NormalizeLimit(limit)).Offset(max(offset, 0))
}

func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultPageSize
	}
	return min(limit, maxPageSize)
}
