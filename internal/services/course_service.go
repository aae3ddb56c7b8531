package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"github.com/SAP-F-2025/exam-service/internal/validator"
)

type courseService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	now       func() time.Time
}

func NewCourseService(repo repositories.Repository, logger *slog.Logger, v *validator.Validator) CourseService {
	return &courseService{
		repo:      repo,
		logger:    logger,
		validator: v,
		now:       time.Now,
	}
}

func (s *courseService) Create(ctx context.Context, req *validator.CreateCourseRequest, user *models.User) (*models.Course, error) {
	if errs := s.validator.Validate(req); errs != nil {
		return nil, errs
	}
	if !user.CanAuthor() {
		return nil, NewPermissionError(user.ID, 0, "course", "create", "only teachers can create courses")
	}

	course := &models.Course{
		Title:        strings.TrimSpace(req.Title),
		Category:     strings.TrimSpace(req.Category),
		InstructorID: user.ID,
	}
	if err := s.repo.Course().Create(ctx, course); err != nil {
		return nil, fmt.Errorf("failed to create course: %w", err)
	}

	s.logger.Info("Course created", "course_id", course.ID, "instructor_id", user.ID)
	return course, nil
}

// Enroll is idempotent; enrolling twice is not an error
func (s *courseService) Enroll(ctx context.Context, courseID uint, studentID string) error {
	if _, err := s.repo.Course().GetByID(ctx, courseID); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrCourseNotFound
		}
		return fmt.Errorf("failed to get course: %w", err)
	}

	err := s.repo.Course().Enroll(ctx, &models.CourseEnrollment{
		CourseID:   courseID,
		StudentID:  studentID,
		EnrolledAt: s.now(),
	})
	if err != nil {
		return fmt.Errorf("failed to enroll: %w", err)
	}

	s.logger.Info("Student enrolled", "course_id", courseID, "student_id", studentID)
	return nil
}

func (s *courseService) IsEnrolled(ctx context.Context, courseID uint, studentID string) (bool, error) {
	return s.repo.Course().IsEnrolled(ctx, courseID, studentID)
}
