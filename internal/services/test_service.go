package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/SAP-F-2025/exam-service/internal/cache"
	"github.com/SAP-F-2025/exam-service/internal/events"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"github.com/SAP-F-2025/exam-service/internal/validator"
)

// Settings applied when a create request leaves them out
const (
	DefaultTimeLimit    = 60
	DefaultPassingScore = 70
	DefaultMaxAttempts  = 3
)

type testService struct {
	repo      repositories.Repository
	cache     *cache.CacheManager
	logger    *slog.Logger
	validator *validator.Validator
	publisher events.EventPublisher
	now       func() time.Time
}

func NewTestService(repo repositories.Repository, cm *cache.CacheManager, logger *slog.Logger, v *validator.Validator, publisher events.EventPublisher) TestService {
	if cm == nil {
		cm = cache.NewCacheManager(nil)
	}
	return &testService{
		repo:      repo,
		cache:     cm,
		logger:    logger,
		validator: v,
		publisher: publisher,
		now:       time.Now,
	}
}

// ===== AUTHORING =====

func (s *testService) Create(ctx context.Context, req *validator.CreateTestRequest, user *models.User) (*TestDetailResponse, error) {
	s.logger.Info("Creating test",
		"course_id", req.CourseID,
		"title", req.Title,
		"instructor_id", user.ID)

	if errs := s.validator.Validate(req); errs != nil {
		return nil, errs
	}
	if !user.CanAuthor() {
		return nil, NewPermissionError(user.ID, req.CourseID, "course", "create test in", "only teachers can author tests")
	}

	course, err := s.repo.Course().GetByID(ctx, req.CourseID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrCourseNotFound
		}
		return nil, fmt.Errorf("failed to get course: %w", err)
	}
	if course.InstructorID != user.ID && !user.IsAdmin() {
		return nil, NewPermissionError(user.ID, course.ID, "course", "create test in", "not the course instructor")
	}

	test := &models.Test{
		Title:        strings.TrimSpace(req.Title),
		Description:  strings.TrimSpace(req.Description),
		CourseID:     req.CourseID,
		InstructorID: user.ID,
		Status:       models.TestDraft,
		IsActive:     valueOr(req.IsActive, true),
		StartDate:    s.now(),
		EndDate:      req.EndDate,
		Settings:     applySettings(defaultSettings(), &req.Settings),
		Questions:    BuildQuestions(req.Questions),
		Version:      1,
	}
	if req.StartDate != nil {
		test.StartDate = *req.StartDate
	}

	if errs := validator.ValidateTest(test); len(errs) > 0 {
		return nil, errs
	}

	if err := s.repo.Test().Create(ctx, test); err != nil {
		return nil, fmt.Errorf("failed to create test: %w", err)
	}

	s.logger.Info("Test created",
		"test_id", test.ID,
		"questions", len(test.Questions))

	return s.detail(ctx, test, user)
}

func (s *testService) Update(ctx context.Context, id uint, req *validator.UpdateTestRequest, user *models.User) (*TestDetailResponse, error) {
	s.logger.Info("Updating test", "test_id", id, "user_id", user.ID)

	if errs := s.validator.Validate(req); errs != nil {
		return nil, errs
	}

	var test *models.Test
	err := s.repo.WithTransaction(ctx, func(repo repositories.Repository) error {
		var err error
		test, err = s.loadOwned(ctx, repo, id, user, "update")
		if err != nil {
			return err
		}

		if req.Title != nil {
			test.Title = strings.TrimSpace(*req.Title)
		}
		if req.Description != nil {
			test.Description = strings.TrimSpace(*req.Description)
		}
		if req.IsActive != nil {
			test.IsActive = *req.IsActive
		}
		if req.StartDate != nil {
			test.StartDate = *req.StartDate
		}
		if req.EndDate != nil {
			test.EndDate = req.EndDate
		}
		test.Settings = applySettings(test.Settings, req.Settings)

		replaceQuestions := req.Questions != nil
		if replaceQuestions {
			hasAttempts, err := repo.Test().HasAttempts(ctx, id)
			if err != nil {
				return err
			}
			if hasAttempts {
				return NewBusinessRuleError("questions_locked", "questions cannot be replaced after students have attempted the test")
			}
			test.Questions = BuildQuestions(req.Questions)
		}

		if errs := validator.ValidateTest(test); len(errs) > 0 {
			return errs
		}

		if err := repo.Test().Update(ctx, test); err != nil {
			return err
		}
		if replaceQuestions {
			if err := repo.Question().ReplaceForTest(ctx, id, test.Questions); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repositories.ErrVersionConflict) {
			return nil, ErrConcurrencyConflict
		}
		return nil, err
	}

	s.logger.Info("Test updated", "test_id", id, "version", test.Version)
	return s.detail(ctx, test, user)
}

func (s *testService) Publish(ctx context.Context, id uint, user *models.User) error {
	return s.transition(ctx, id, user, models.TestPublished, events.TestPublished)
}

func (s *testService) Archive(ctx context.Context, id uint, user *models.User) error {
	return s.transition(ctx, id, user, models.TestArchived, events.TestArchived)
}

func (s *testService) transition(ctx context.Context, id uint, user *models.User, next models.TestStatus, eventType events.EventType) error {
	test, err := s.loadOwned(ctx, s.repo, id, user, string(eventType))
	if err != nil {
		return err
	}

	questions, err := s.repo.Question().CountByTest(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to count questions: %w", err)
	}
	if errs := validator.ValidateStatusTransition(test.Status, next, int(questions)); len(errs) > 0 {
		return NewBusinessRuleError("status_transition", errs[0].Message)
	}

	if err := s.repo.Test().UpdateStatus(ctx, id, next); err != nil {
		return fmt.Errorf("failed to update test status: %w", err)
	}

	s.logger.Info("Test status changed",
		"test_id", id,
		"from", test.Status,
		"to", next)

	s.publish(ctx, events.NewEvent(eventType, events.TestStatusData{
		TestID:       test.ID,
		CourseID:     test.CourseID,
		InstructorID: test.InstructorID,
		Title:        test.Title,
	}))
	return nil
}

// Delete soft deletes a test that nobody has attempted
func (s *testService) Delete(ctx context.Context, id uint, user *models.User) error {
	if _, err := s.loadOwned(ctx, s.repo, id, user, "delete"); err != nil {
		return err
	}

	hasAttempts, err := s.repo.Test().HasAttempts(ctx, id)
	if err != nil {
		return err
	}
	if hasAttempts {
		return NewBusinessRuleError("has_attempts", "tests with attempts cannot be deleted, archive the test instead")
	}

	if err := s.repo.Test().Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete test: %w", err)
	}

	s.logger.Info("Test deleted", "test_id", id, "user_id", user.ID)
	return nil
}

// ===== QUERIES =====

func (s *testService) GetByID(ctx context.Context, id uint, user *models.User) (*TestDetailResponse, error) {
	test, err := s.load(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}

	// Drafts are invisible to everyone but their authors
	if test.Status == models.TestDraft && !canManage(test, user) {
		return nil, ErrTestNotFound
	}
	return s.detail(ctx, test, user)
}

func (s *testService) ListActive(ctx context.Context, filters repositories.TestFilters) (*TestListResponse, error) {
	tests, total, err := s.repo.Test().ListPublishedActive(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list active tests: %w", err)
	}
	return s.list(tests, total, filters), nil
}

// ListByInstructor shows the caller's tests; admins may pass another instructor id
func (s *testService) ListByInstructor(ctx context.Context, user *models.User, filters repositories.TestFilters) (*TestListResponse, error) {
	if !user.IsAdmin() || filters.InstructorID == nil {
		filters.InstructorID = &user.ID
	}

	tests, total, err := s.repo.Test().List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list instructor tests: %w", err)
	}
	return s.list(tests, total, filters), nil
}

// ListByCourse returns the published tests of a course
func (s *testService) ListByCourse(ctx context.Context, courseID uint, filters repositories.TestFilters) (*TestListResponse, error) {
	if _, err := s.repo.Course().GetByID(ctx, courseID); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrCourseNotFound
		}
		return nil, fmt.Errorf("failed to get course: %w", err)
	}

	published := models.TestPublished
	filters.CourseID = &courseID
	filters.Status = &published

	tests, total, err := s.repo.Test().List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list course tests: %w", err)
	}
	return s.list(tests, total, filters), nil
}

func (s *testService) GetAnalytics(ctx context.Context, id uint, user *models.User) (*TestAnalytics, error) {
	test, err := s.loadOwned(ctx, s.repo, id, user, "view analytics of")
	if err != nil {
		return nil, err
	}

	var analytics TestAnalytics
	err = s.cache.Stats.CacheOrExecute(ctx, cache.AnalyticsKey(id), &analytics, cache.StatsCacheConfig.TTL, func() (interface{}, error) {
		attempts, err := s.repo.Attempt().ListByTest(ctx, id, repositories.AttemptFilters{})
		if err != nil {
			return nil, fmt.Errorf("failed to list attempts: %w", err)
		}
		return BuildAnalytics(test, attempts), nil
	})
	if err != nil {
		return nil, err
	}
	return &analytics, nil
}

// BuildAnalytics assembles the analytics view from a test and all of its attempts
func BuildAnalytics(test *models.Test, attempts []*models.TestAttempt) *TestAnalytics {
	completed := 0
	for _, a := range attempts {
		if a.IsCompleted() {
			completed++
		}
	}
	return &TestAnalytics{
		TestID:            test.ID,
		Title:             test.Title,
		Statistics:        ComputeStatistics(attempts),
		TotalQuestions:    test.TotalQuestions(),
		TotalPoints:       test.TotalPoints(),
		CompletedAttempts: completed,
		Questions:         ComputeQuestionAnalytics(test.Questions, attempts),
	}
}

// ===== HELPERS =====

func (s *testService) load(ctx context.Context, repo repositories.Repository, id uint) (*models.Test, error) {
	test, err := repo.Test().GetByIDWithQuestions(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("failed to get test: %w", err)
	}
	return test, nil
}

func (s *testService) loadOwned(ctx context.Context, repo repositories.Repository, id uint, user *models.User, action string) (*models.Test, error) {
	test, err := s.load(ctx, repo, id)
	if err != nil {
		return nil, err
	}
	if !canManage(test, user) {
		return nil, NewPermissionError(user.ID, id, "test", action, "not the test instructor")
	}
	return test, nil
}

func (s *testService) detail(ctx context.Context, test *models.Test, user *models.User) (*TestDetailResponse, error) {
	resp := &TestDetailResponse{
		TestSummary:  NewTestSummary(test, s.now()),
		Questions:    SanitizeQuestions(test.Questions, false, nil),
		UserAttempts: []*models.TestAttempt{},
	}
	if canManage(test, user) {
		resp.AuthoringQuestions = test.Questions
	}
	if user == nil {
		return resp, nil
	}

	enrolled, err := s.repo.Course().IsEnrolled(ctx, test.CourseID, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check enrollment: %w", err)
	}
	resp.IsEnrolled = enrolled

	attempts, err := s.repo.Attempt().ListByTestAndStudent(ctx, test.ID, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get attempts: %w", err)
	}
	if attempts != nil {
		resp.UserAttempts = attempts
	}
	return resp, nil
}

func (s *testService) list(tests []*models.Test, total int64, filters repositories.TestFilters) *TestListResponse {
	now := s.now()
	items := make([]TestSummary, 0, len(tests))
	for _, t := range tests {
		items = append(items, NewTestSummary(t, now))
	}

	size := filters.Limit
	if size <= 0 {
		size = 20
	}
	return &TestListResponse{
		Tests: items,
		Total: total,
		Page:  filters.Offset/size + 1,
		Size:  size,
	}
}

func (s *testService) publish(ctx context.Context, event *events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish event", "type", event.Type, "error", err)
	}
}

func canManage(test *models.Test, user *models.User) bool {
	if user == nil {
		return false
	}
	return user.IsAdmin() || (user.Role == models.RoleTeacher && test.InstructorID == user.ID)
}

func defaultSettings() models.TestSettings {
	return models.TestSettings{
		TimeLimit:        DefaultTimeLimit,
		PassingScore:     DefaultPassingScore,
		MaxAttempts:      DefaultMaxAttempts,
		ShuffleQuestions: true,
		ShowResults:      true,
		AllowReview:      true,
	}
}

// applySettings overlays the non-nil request fields on base
func applySettings(base models.TestSettings, req *validator.SettingsRequest) models.TestSettings {
	if req == nil {
		return base
	}
	base.TimeLimit = valueOr(req.TimeLimit, base.TimeLimit)
	base.PassingScore = valueOr(req.PassingScore, base.PassingScore)
	base.MaxAttempts = valueOr(req.MaxAttempts, base.MaxAttempts)
	base.ShuffleQuestions = valueOr(req.ShuffleQuestions, base.ShuffleQuestions)
	base.ShowResults = valueOr(req.ShowResults, base.ShowResults)
	base.AllowReview = valueOr(req.AllowReview, base.AllowReview)
	base.RequirePassword = valueOr(req.RequirePassword, base.RequirePassword)
	base.Password = valueOr(req.Password, base.Password)
	if !base.RequirePassword && req.RequirePassword != nil && req.Password == nil {
		base.Password = ""
	}
	return base
}

// BuildQuestions converts request questions into models in authored order
func BuildQuestions(reqs []validator.QuestionRequest) []models.Question {
	questions := make([]models.Question, 0, len(reqs))
	for i, r := range reqs {
		options := make([]models.QuestionOption, 0, len(r.Options))
		for _, o := range r.Options {
			options = append(options, models.QuestionOption{Text: strings.TrimSpace(o.Text), IsCorrect: o.IsCorrect})
		}

		difficulty := r.Difficulty
		if difficulty == "" {
			difficulty = models.DifficultyMedium
		}
		tags := r.Tags
		if tags == nil {
			tags = []string{}
		}

		questions = append(questions, models.Question{
			Position:      i,
			Text:          strings.TrimSpace(r.Text),
			Type:          r.Type,
			Options:       datatypes.NewJSONSlice(options),
			CorrectAnswer: r.CorrectAnswer,
			Points:        r.Points,
			Explanation:   r.Explanation,
			Difficulty:    difficulty,
			Tags:          datatypes.NewJSONSlice(tags),
		})
	}
	return questions
}

func valueOr[T any](p *T, fallback T) T {
	if p == nil {
		return fallback
	}
	return *p
}
