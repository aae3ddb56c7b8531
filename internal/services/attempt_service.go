package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"

	"github.com/SAP-F-2025/exam-service/internal/events"
	"github.com/SAP-F-2025/exam-service/internal/metrics"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"github.com/SAP-F-2025/exam-service/internal/tracing"
	"github.com/SAP-F-2025/exam-service/internal/validator"
)

type attemptService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	publisher events.EventPublisher
	metrics   *metrics.Metrics

	shuffler   Shuffler
	now        func() time.Time
	maxRetries int
}

type AttemptServiceOption func(*attemptService)

// WithShuffler replaces the randomness source used for question order
func WithShuffler(s Shuffler) AttemptServiceOption {
	return func(a *attemptService) { a.shuffler = s }
}

func WithClock(now func() time.Time) AttemptServiceOption {
	return func(a *attemptService) { a.now = now }
}

// WithMaxRetries bounds the optimistic write retries, minimum 1
func WithMaxRetries(n int) AttemptServiceOption {
	return func(a *attemptService) { a.maxRetries = max(n, 1) }
}

func WithMetrics(m *metrics.Metrics) AttemptServiceOption {
	return func(a *attemptService) { a.metrics = m }
}

func NewAttemptService(repo repositories.Repository, logger *slog.Logger, v *validator.Validator, publisher events.EventPublisher, opts ...AttemptServiceOption) AttemptService {
	s := &attemptService{
		repo:       repo,
		logger:     logger,
		validator:  v,
		publisher:  publisher,
		shuffler:   DefaultShuffler,
		now:        time.Now,
		maxRetries: 3,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ===== CORE ATTEMPT OPERATIONS =====

func (s *attemptService) Start(ctx context.Context, testID uint, studentID string, req *validator.StartAttemptRequest, client ClientContext) (*StartAttemptResponse, error) {
	ctx, span := tracing.Start(ctx, "AttemptService.Start", attribute.Int("test_id", int(testID)))
	defer span.End()

	s.logger.Info("Starting test attempt",
		"test_id", testID,
		"student_id", studentID)

	if req == nil {
		req = &validator.StartAttemptRequest{}
	}
	if errs := s.validator.Validate(req); errs != nil {
		return nil, errs
	}

	var (
		test    *models.Test
		attempt *models.TestAttempt
	)
	err := s.withOptimisticRetry(ctx, func(repo repositories.Repository) error {
		var err error
		test, err = s.loadTest(ctx, repo, testID)
		if err != nil {
			return err
		}

		now := s.now()
		if !test.IsCurrentlyActive(now) {
			return ErrTestNotActive
		}

		enrolled, err := repo.Course().IsEnrolled(ctx, test.CourseID, studentID)
		if err != nil {
			return fmt.Errorf("failed to check enrollment: %w", err)
		}
		if !enrolled {
			return ErrNotEnrolled
		}

		prior, err := repo.Attempt().CountByTestAndStudent(ctx, testID, studentID)
		if err != nil {
			return fmt.Errorf("failed to count attempts: %w", err)
		}
		if prior >= int64(test.Settings.MaxAttempts) {
			return ErrMaxAttemptsExceeded
		}
		open, err := repo.Attempt().GetInProgress(ctx, testID, studentID)
		if err != nil {
			return fmt.Errorf("failed to get in-progress attempt: %w", err)
		}
		if open != nil {
			return ErrAttemptInProgress
		}

		if test.Settings.RequirePassword && req.Password != test.Settings.Password {
			return ErrInvalidPassword
		}

		attempt = &models.TestAttempt{
			TestID:        testID,
			StudentID:     studentID,
			AttemptNumber: int(prior) + 1,
			StartedAt:     now,
			Answers:       datatypes.NewJSONSlice([]models.AnswerRecord{}),
			MaxScore:      test.TotalPoints(),
			IPAddress:     client.IPAddress,
			UserAgent:     client.UserAgent,
		}
		if err := repo.Attempt().Create(ctx, attempt); err != nil {
			return err
		}

		return s.recomputeStatistics(ctx, repo, test)
	})
	if err != nil {
		s.logger.Warn("Failed to start test attempt",
			"test_id", testID,
			"student_id", studentID,
			"error", err)
		return nil, err
	}

	s.metrics.AttemptStarted()
	s.publish(ctx, events.NewEvent(events.AttemptStarted, events.AttemptStartedData{
		TestID:        testID,
		AttemptID:     attempt.ID,
		StudentID:     studentID,
		AttemptNumber: attempt.AttemptNumber,
		StartedAt:     attempt.StartedAt,
	}))

	s.logger.Info("Test attempt started",
		"attempt_id", attempt.ID,
		"test_id", testID,
		"student_id", studentID,
		"attempt_number", attempt.AttemptNumber)

	return &StartAttemptResponse{
		AttemptID:      attempt.ID,
		TestID:         test.ID,
		Title:          test.Title,
		TimeLimit:      test.Settings.TimeLimit,
		AttemptNumber:  attempt.AttemptNumber,
		StartedAt:      attempt.StartedAt,
		Questions:      SanitizeQuestions(test.Questions, test.Settings.ShuffleQuestions, s.shuffler),
		TotalQuestions: test.TotalQuestions(),
		TotalPoints:    test.TotalPoints(),
	}, nil
}

func (s *attemptService) Submit(ctx context.Context, testID uint, studentID string, req *validator.SubmitAttemptRequest) (*AttemptResult, error) {
	ctx, span := tracing.Start(ctx, "AttemptService.Submit", attribute.Int("test_id", int(testID)))
	defer span.End()

	if req == nil {
		req = &validator.SubmitAttemptRequest{}
	}

	s.logger.Info("Submitting test attempt",
		"test_id", testID,
		"student_id", studentID,
		"answers", len(req.Answers))

	if errs := s.validator.Validate(req); errs != nil {
		return nil, errs
	}

	var (
		test    *models.Test
		attempt *models.TestAttempt
	)
	err := s.withOptimisticRetry(ctx, func(repo repositories.Repository) error {
		var err error
		test, err = s.loadTest(ctx, repo, testID)
		if err != nil {
			return err
		}

		attempt, err = repo.Attempt().GetInProgress(ctx, testID, studentID)
		if err != nil {
			return fmt.Errorf("failed to get in-progress attempt: %w", err)
		}
		if attempt == nil {
			return ErrNoActiveAttempt
		}

		records, score := GradeSubmission(test, req.Answers)
		completedAt := s.now()

		attempt.Answers = datatypes.NewJSONSlice(records)
		attempt.Score = score
		attempt.MaxScore = test.TotalPoints()
		attempt.Percentage = Percentage(score, attempt.MaxScore)
		attempt.Passed = attempt.Percentage >= test.Settings.PassingScore
		attempt.CompletedAt = &completedAt
		attempt.TimeSpent = req.TimeSpent

		if err := repo.Attempt().Update(ctx, attempt); err != nil {
			return err
		}

		return s.recomputeStatistics(ctx, repo, test)
	})
	if err != nil {
		s.logger.Warn("Failed to submit test attempt",
			"test_id", testID,
			"student_id", studentID,
			"error", err)
		return nil, err
	}

	s.metrics.AttemptSubmitted(attempt.Passed, attempt.Percentage)
	s.publish(ctx, events.NewEvent(events.AttemptSubmitted, events.AttemptSubmittedData{
		TestID:     testID,
		AttemptID:  attempt.ID,
		StudentID:  studentID,
		Score:      attempt.Score,
		MaxScore:   attempt.MaxScore,
		Percentage: attempt.Percentage,
		Passed:     attempt.Passed,
		TimeSpent:  attempt.TimeSpent,
	}))

	s.logger.Info("Test attempt submitted",
		"attempt_id", attempt.ID,
		"test_id", testID,
		"student_id", studentID,
		"score", attempt.Score,
		"percentage", attempt.Percentage,
		"passed", attempt.Passed)

	result := &AttemptResult{
		AttemptID:   attempt.ID,
		Score:       attempt.Score,
		MaxScore:    attempt.MaxScore,
		Percentage:  attempt.Percentage,
		Passed:      attempt.Passed,
		TimeSpent:   attempt.TimeSpent,
		CompletedAt: *attempt.CompletedAt,
	}
	if test.Settings.ShowResults {
		result.Answers = answerResults(test, attempt.Answers)
	}
	return result, nil
}

// ===== QUERIES =====

// GetBestAttempt returns nil without error when no attempt is completed yet
func (s *attemptService) GetBestAttempt(ctx context.Context, testID uint, studentID string) (*models.TestAttempt, error) {
	if _, err := s.loadTest(ctx, s.repo, testID); err != nil {
		return nil, err
	}

	attempts, err := s.repo.Attempt().ListByTestAndStudent(ctx, testID, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get attempts: %w", err)
	}
	return BestAttempt(attempts), nil
}

func (s *attemptService) GetResults(ctx context.Context, testID uint, studentID string) (*ResultsResponse, error) {
	test, err := s.loadTest(ctx, s.repo, testID)
	if err != nil {
		return nil, err
	}

	attempts, err := s.repo.Attempt().ListByTestAndStudent(ctx, testID, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get attempts: %w", err)
	}
	if len(attempts) == 0 {
		return nil, ErrNoAttemptsFound
	}

	if !test.Settings.ShowResults {
		for _, a := range attempts {
			a.Answers = datatypes.NewJSONSlice([]models.AnswerRecord{})
		}
	}

	return &ResultsResponse{
		Attempts:       attempts,
		BestAttempt:    BestAttempt(attempts),
		TestStatistics: test.Statistics,
	}, nil
}

// ===== HELPERS =====

func (s *attemptService) loadTest(ctx context.Context, repo repositories.Repository, testID uint) (*models.Test, error) {
	test, err := repo.Test().GetByIDWithQuestions(ctx, testID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("failed to get test: %w", err)
	}
	return test, nil
}

// recomputeStatistics rebuilds the rollups from every attempt and writes them
// guarded by the version read together with the test
func (s *attemptService) recomputeStatistics(ctx context.Context, repo repositories.Repository, test *models.Test) error {
	attempts, err := repo.Attempt().ListByTest(ctx, test.ID, repositories.AttemptFilters{})
	if err != nil {
		return fmt.Errorf("failed to list attempts: %w", err)
	}

	stats := ComputeStatistics(attempts)
	if err := repo.Test().UpdateStatistics(ctx, test.ID, test.Version, stats); err != nil {
		return err
	}
	test.Statistics = stats
	test.Version++
	return nil
}

// withOptimisticRetry reruns the whole read-modify-write while the version guard fails
func (s *attemptService) withOptimisticRetry(ctx context.Context, fn func(repositories.Repository) error) error {
	for i := 0; i < s.maxRetries; i++ {
		err := s.repo.WithTransaction(ctx, fn)
		if !errors.Is(err, repositories.ErrVersionConflict) {
			return err
		}
		s.metrics.VersionConflict()
		s.logger.Warn("Concurrent attempt write detected, retrying", "retry", i+1)

		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return ErrConcurrencyConflict
}

func (s *attemptService) publish(ctx context.Context, event *events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish event", "type", event.Type, "error", err)
	}
}

func answerResults(test *models.Test, records []models.AnswerRecord) []AnswerResult {
	out := make([]AnswerResult, 0, len(records))
	for _, r := range records {
		ar := AnswerResult{AnswerRecord: r}
		if test.Settings.AllowReview {
			if q, ok := test.QuestionByID(r.QuestionID); ok {
				ar.Explanation = q.Explanation
			}
		}
		out = append(out, ar)
	}
	return out
}
