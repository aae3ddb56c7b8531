package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/SAP-F-2025/exam-service/internal/events"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"github.com/SAP-F-2025/exam-service/internal/validator"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type attemptFixture struct {
	store     *memStore
	publisher *events.MockEventPublisher
	service   AttemptService
	test      *models.Test
}

// newAttemptFixture seeds a published test worth 10 points with one enrolled student
func newAttemptFixture(t *testing.T, mutate func(*models.Test), opts ...AttemptServiceOption) *attemptFixture {
	t.Helper()
	ctx := context.Background()
	store := newMemStore()

	course := &models.Course{Title: "Geography", InstructorID: "teacher-1"}
	require.NoError(t, store.Course().Create(ctx, course))

	tf := choiceQuestion(0, models.TrueFalse, 1, true, false)
	tf.Explanation = strPtr("It is true")
	test := &models.Test{
		Title:        "Capitals quiz",
		Description:  "European capitals",
		CourseID:     course.ID,
		InstructorID: "teacher-1",
		Status:       models.TestPublished,
		IsActive:     true,
		StartDate:    fixedNow.Add(-time.Hour),
		Settings: models.TestSettings{
			TimeLimit:    30,
			PassingScore: 50,
			MaxAttempts:  2,
			ShowResults:  true,
			AllowReview:  true,
		},
		Questions: []models.Question{
			choiceQuestion(0, models.MultipleChoice, 2, true, false, true),
			tf,
			{Type: models.FillInBlank, Points: 2, CorrectAnswer: strPtr("Paris")},
			{Type: models.Essay, Points: 5},
		},
	}
	if mutate != nil {
		mutate(test)
	}
	require.NoError(t, store.Test().Create(ctx, test))
	require.NoError(t, store.Course().Enroll(ctx, &models.CourseEnrollment{CourseID: course.ID, StudentID: "student-1"}))

	publisher := events.NewMockEventPublisher(discardLogger())
	opts = append([]AttemptServiceOption{WithClock(func() time.Time { return fixedNow })}, opts...)
	service := NewAttemptService(store, discardLogger(), validator.New(), publisher, opts...)

	return &attemptFixture{store: store, publisher: publisher, service: service, test: test}
}

// halfRightAnswers scores 5 of 10: every auto-graded question right, essay left to a human
func (f *attemptFixture) halfRightAnswers() *validator.SubmitAttemptRequest {
	q := f.test.Questions
	return &validator.SubmitAttemptRequest{
		TimeSpent: 12,
		Answers: []validator.AnswerRequest{
			{QuestionID: q[0].ID, SelectedOptions: []int{2, 0}},
			{QuestionID: q[1].ID, SelectedOptions: []int{0}},
			{QuestionID: q[2].ID, TextAnswer: " paris "},
			{QuestionID: q[3].ID, TextAnswer: "essay"},
		},
	}
}

func (f *attemptFixture) storedTest(t *testing.T) *models.Test {
	t.Helper()
	test, err := f.store.Test().GetByIDWithQuestions(context.Background(), f.test.ID)
	require.NoError(t, err)
	return test
}

func TestAttemptService_StartAndSubmit(t *testing.T) {
	f := newAttemptFixture(t, nil)
	ctx := context.Background()

	started, err := f.service.Start(ctx, f.test.ID, "student-1", nil, ClientContext{IPAddress: "10.0.0.1", UserAgent: "go-test"})
	require.NoError(t, err)
	assert.Equal(t, 1, started.AttemptNumber)
	assert.Equal(t, fixedNow, started.StartedAt)
	assert.Equal(t, 4, started.TotalQuestions)
	assert.Equal(t, 10, started.TotalPoints)
	assert.Equal(t, 30, started.TimeLimit)
	require.Len(t, started.Questions, 4)
	assert.Equal(t, f.test.Questions[0].ID, started.Questions[0].ID, "no shuffle keeps authored order")

	stored := f.storedTest(t)
	assert.Equal(t, 1, stored.Statistics.TotalAttempts)
	assert.Equal(t, 2, stored.Version)

	attempt, err := f.store.Attempt().GetByID(ctx, started.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", attempt.IPAddress)
	assert.Equal(t, 10, attempt.MaxScore)
	assert.True(t, attempt.InProgress())

	result, err := f.service.Submit(ctx, f.test.ID, "student-1", f.halfRightAnswers())
	require.NoError(t, err)
	assert.Equal(t, started.AttemptID, result.AttemptID)
	assert.Equal(t, 5, result.Score)
	assert.Equal(t, 10, result.MaxScore)
	assert.Equal(t, 50, result.Percentage)
	assert.True(t, result.Passed, "percentage equal to the passing score passes")
	assert.Equal(t, 12, result.TimeSpent)
	assert.Equal(t, fixedNow, result.CompletedAt)
	require.Len(t, result.Answers, 4)
	require.NotNil(t, result.Answers[1].Explanation)
	assert.Equal(t, "It is true", *result.Answers[1].Explanation)

	stored = f.storedTest(t)
	assert.Equal(t, models.TestStatistics{TotalAttempts: 1, AverageScore: 50, PassRate: 100, AverageTime: 12}, stored.Statistics)
	assert.Equal(t, 3, stored.Version)

	require.Len(t, f.publisher.EventsOfType(events.AttemptStarted), 1)
	submitted := f.publisher.EventsOfType(events.AttemptSubmitted)
	require.Len(t, submitted, 1)
	data, ok := submitted[0].Data.(events.AttemptSubmittedData)
	require.True(t, ok)
	assert.Equal(t, 5, data.Score)
	assert.True(t, data.Passed)
}

func TestAttemptService_StartRejections(t *testing.T) {
	future := fixedNow.Add(time.Hour)
	past := fixedNow.Add(-time.Minute)

	tests := []struct {
		name      string
		mutate    func(*models.Test)
		studentID string
		password  string
		wantErr   error
		wantClass error
	}{
		{name: "draft", mutate: func(t *models.Test) { t.Status = models.TestDraft }, studentID: "student-1", wantErr: ErrTestNotActive},
		{name: "archived", mutate: func(t *models.Test) { t.Status = models.TestArchived }, studentID: "student-1", wantErr: ErrTestNotActive},
		{name: "inactive", mutate: func(t *models.Test) { t.IsActive = false }, studentID: "student-1", wantErr: ErrTestNotActive},
		{name: "not started yet", mutate: func(t *models.Test) { t.StartDate = future }, studentID: "student-1", wantErr: ErrTestNotActive},
		{name: "ended", mutate: func(t *models.Test) { t.EndDate = &past }, studentID: "student-1", wantErr: ErrTestNotActive},
		{name: "not enrolled", studentID: "stranger", wantErr: ErrNotEnrolled, wantClass: ErrForbidden},
		{
			name: "wrong password",
			mutate: func(t *models.Test) {
				t.Settings.RequirePassword = true
				t.Settings.Password = "secret"
			},
			studentID: "student-1",
			password:  "guess",
			wantErr:   ErrInvalidPassword,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAttemptFixture(t, tt.mutate)
			_, err := f.service.Start(context.Background(), f.test.ID, tt.studentID, &validator.StartAttemptRequest{Password: tt.password}, ClientContext{})
			require.ErrorIs(t, err, tt.wantErr)
			if tt.wantClass != nil {
				assert.ErrorIs(t, err, tt.wantClass)
			}

			assert.Equal(t, 0, f.storedTest(t).Statistics.TotalAttempts)
			assert.Empty(t, f.publisher.GetPublishedEvents())
		})
	}
}

func TestAttemptService_StartWithPassword(t *testing.T) {
	f := newAttemptFixture(t, func(t *models.Test) {
		t.Settings.RequirePassword = true
		t.Settings.Password = "secret"
	})
	_, err := f.service.Start(context.Background(), f.test.ID, "student-1", &validator.StartAttemptRequest{Password: "secret"}, ClientContext{})
	assert.NoError(t, err)
}

func TestAttemptService_StartUnknownTest(t *testing.T) {
	f := newAttemptFixture(t, nil)
	_, err := f.service.Start(context.Background(), 9999, "student-1", nil, ClientContext{})
	assert.ErrorIs(t, err, ErrTestNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAttemptService_SecondStartWhileInProgress(t *testing.T) {
	f := newAttemptFixture(t, nil)
	ctx := context.Background()

	_, err := f.service.Start(ctx, f.test.ID, "student-1", nil, ClientContext{})
	require.NoError(t, err)

	_, err = f.service.Start(ctx, f.test.ID, "student-1", nil, ClientContext{})
	assert.ErrorIs(t, err, ErrAttemptInProgress)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 1, f.storedTest(t).Statistics.TotalAttempts)
}

func TestAttemptService_MaxAttempts(t *testing.T) {
	f := newAttemptFixture(t, nil)
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		started, err := f.service.Start(ctx, f.test.ID, "student-1", nil, ClientContext{})
		require.NoError(t, err)
		assert.Equal(t, i, started.AttemptNumber)
		_, err = f.service.Submit(ctx, f.test.ID, "student-1", f.halfRightAnswers())
		require.NoError(t, err)
	}

	_, err := f.service.Start(ctx, f.test.ID, "student-1", nil, ClientContext{})
	assert.ErrorIs(t, err, ErrMaxAttemptsExceeded)

	attempts, err := f.store.Attempt().ListByTestAndStudent(ctx, f.test.ID, "student-1")
	require.NoError(t, err)
	assert.Len(t, attempts, 2)
}

func TestAttemptService_SubmitWithoutAttempt(t *testing.T) {
	f := newAttemptFixture(t, nil)
	_, err := f.service.Submit(context.Background(), f.test.ID, "student-1", f.halfRightAnswers())
	assert.ErrorIs(t, err, ErrNoActiveAttempt)
}

func TestAttemptService_SubmitTwice(t *testing.T) {
	f := newAttemptFixture(t, nil)
	ctx := context.Background()

	_, err := f.service.Start(ctx, f.test.ID, "student-1", nil, ClientContext{})
	require.NoError(t, err)
	_, err = f.service.Submit(ctx, f.test.ID, "student-1", f.halfRightAnswers())
	require.NoError(t, err)

	_, err = f.service.Submit(ctx, f.test.ID, "student-1", f.halfRightAnswers())
	assert.ErrorIs(t, err, ErrNoActiveAttempt)
}

func TestAttemptService_SubmitNilRequest(t *testing.T) {
	f := newAttemptFixture(t, nil)
	ctx := context.Background()

	_, err := f.service.Submit(ctx, f.test.ID, "student-1", nil)
	assert.ErrorIs(t, err, ErrNoActiveAttempt)

	_, err = f.service.Start(ctx, f.test.ID, "student-1", nil, ClientContext{})
	require.NoError(t, err)
	result, err := f.service.Submit(ctx, f.test.ID, "student-1", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Score)
	assert.Equal(t, 10, result.MaxScore)
	assert.False(t, result.Passed)
}

func TestAttemptService_HiddenResults(t *testing.T) {
	f := newAttemptFixture(t, func(t *models.Test) {
		t.Settings.ShowResults = false
	})
	ctx := context.Background()

	_, err := f.service.Start(ctx, f.test.ID, "student-1", nil, ClientContext{})
	require.NoError(t, err)
	result, err := f.service.Submit(ctx, f.test.ID, "student-1", f.halfRightAnswers())
	require.NoError(t, err)
	assert.Equal(t, 5, result.Score)
	assert.Nil(t, result.Answers)

	results, err := f.service.GetResults(ctx, f.test.ID, "student-1")
	require.NoError(t, err)
	require.Len(t, results.Attempts, 1)
	assert.Empty(t, results.Attempts[0].Answers)

	// grading is still stored for the instructor
	stored, err := f.store.Attempt().GetByID(ctx, result.AttemptID)
	require.NoError(t, err)
	assert.Len(t, stored.Answers, 4)
}

func TestAttemptService_ReviewDisabledHidesExplanations(t *testing.T) {
	f := newAttemptFixture(t, func(t *models.Test) {
		t.Settings.AllowReview = false
	})
	ctx := context.Background()

	_, err := f.service.Start(ctx, f.test.ID, "student-1", nil, ClientContext{})
	require.NoError(t, err)
	result, err := f.service.Submit(ctx, f.test.ID, "student-1", f.halfRightAnswers())
	require.NoError(t, err)
	require.Len(t, result.Answers, 4)
	for _, a := range result.Answers {
		assert.Nil(t, a.Explanation)
	}
}

func TestAttemptService_ShuffleUsesInjectedSource(t *testing.T) {
	f := newAttemptFixture(t, func(t *models.Test) {
		t.Settings.ShuffleQuestions = true
	}, WithShuffler(reverseShuffler{}))

	started, err := f.service.Start(context.Background(), f.test.ID, "student-1", nil, ClientContext{})
	require.NoError(t, err)
	require.Len(t, started.Questions, 4)
	assert.Equal(t, f.test.Questions[3].ID, started.Questions[0].ID)
	assert.Equal(t, f.test.Questions[0].ID, f.storedTest(t).Questions[0].ID, "stored order is untouched")
}

func TestAttemptService_BestAttemptAndResults(t *testing.T) {
	f := newAttemptFixture(t, nil)
	ctx := context.Background()

	best, err := f.service.GetBestAttempt(ctx, f.test.ID, "student-1")
	require.NoError(t, err)
	assert.Nil(t, best)

	_, err = f.service.GetResults(ctx, f.test.ID, "student-1")
	assert.ErrorIs(t, err, ErrNoAttemptsFound)

	q := f.test.Questions
	_, err = f.service.Start(ctx, f.test.ID, "student-1", nil, ClientContext{})
	require.NoError(t, err)
	first, err := f.service.Submit(ctx, f.test.ID, "student-1", &validator.SubmitAttemptRequest{
		TimeSpent: 4,
		Answers:   []validator.AnswerRequest{{QuestionID: q[1].ID, SelectedOptions: []int{0}}},
	})
	require.NoError(t, err)
	assert.Equal(t, 10, first.Percentage)
	assert.False(t, first.Passed)

	_, err = f.service.Start(ctx, f.test.ID, "student-1", nil, ClientContext{})
	require.NoError(t, err)
	second, err := f.service.Submit(ctx, f.test.ID, "student-1", f.halfRightAnswers())
	require.NoError(t, err)

	best, err = f.service.GetBestAttempt(ctx, f.test.ID, "student-1")
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, second.AttemptID, best.ID)

	results, err := f.service.GetResults(ctx, f.test.ID, "student-1")
	require.NoError(t, err)
	assert.Len(t, results.Attempts, 2)
	assert.Equal(t, second.AttemptID, results.BestAttempt.ID)
	assert.Equal(t, models.TestStatistics{TotalAttempts: 2, AverageScore: 30, PassRate: 50, AverageTime: 8}, results.TestStatistics)
}

func TestAttemptService_RetriesVersionConflicts(t *testing.T) {
	f := newAttemptFixture(t, nil, WithMaxRetries(3))
	f.store.statsConflicts = 2

	started, err := f.service.Start(context.Background(), f.test.ID, "student-1", nil, ClientContext{})
	require.NoError(t, err)
	assert.Equal(t, 1, started.AttemptNumber)
	assert.Equal(t, 3, f.store.statsCalls)

	attempts, err := f.store.Attempt().ListByTest(context.Background(), f.test.ID, repositories.AttemptFilters{})
	require.NoError(t, err)
	assert.Len(t, attempts, 1, "rolled back attempts must not survive")
	assert.Len(t, f.publisher.EventsOfType(events.AttemptStarted), 1)
}

func TestAttemptService_RetriesExhausted(t *testing.T) {
	f := newAttemptFixture(t, nil, WithMaxRetries(3))
	f.store.statsConflicts = 10

	_, err := f.service.Start(context.Background(), f.test.ID, "student-1", nil, ClientContext{})
	require.ErrorIs(t, err, ErrConcurrencyConflict)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 3, f.store.statsCalls)

	attempts, err := f.store.Attempt().ListByTest(context.Background(), f.test.ID, repositories.AttemptFilters{})
	require.NoError(t, err)
	assert.Empty(t, attempts)
	assert.Empty(t, f.publisher.GetPublishedEvents())
	assert.Equal(t, 1, f.storedTest(t).Version)
}

func TestAttemptService_PublishFailureDoesNotFailTheAttempt(t *testing.T) {
	f := newAttemptFixture(t, nil)
	f.publisher.Err = errors.New("broker down")

	_, err := f.service.Start(context.Background(), f.test.ID, "student-1", nil, ClientContext{})
	assert.NoError(t, err)
}

func startConcurrently(f *attemptFixture, students []string) []error {
	ctx := context.Background()
	errs := make([]error, len(students))
	var wg sync.WaitGroup
	for i, id := range students {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.service.Start(ctx, f.test.ID, id, nil, ClientContext{})
		}()
	}
	wg.Wait()
	return errs
}

func enrollStudents(t *testing.T, f *attemptFixture, n int) []string {
	t.Helper()
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("s-%d", i)
		require.NoError(t, f.store.Course().Enroll(context.Background(), &models.CourseEnrollment{CourseID: f.test.CourseID, StudentID: ids[i]}))
	}
	return ids
}

func TestAttemptService_ConcurrentStarts(t *testing.T) {
	const students = 4
	// every start reads the same version, so all but one statistics write collide
	f := newAttemptFixture(t, nil, WithMaxRetries(students+1))
	ids := enrollStudents(t, f, students)
	f.store.raceCommits(students)

	for _, err := range startConcurrently(f, ids) {
		assert.NoError(t, err)
	}

	assert.GreaterOrEqual(t, f.store.commitConflicts, students-1)
	stored := f.storedTest(t)
	assert.Equal(t, students, stored.Statistics.TotalAttempts)
	assert.Equal(t, 1+students, stored.Version)

	attempts, err := f.store.Attempt().ListByTest(context.Background(), f.test.ID, repositories.AttemptFilters{})
	require.NoError(t, err)
	assert.Len(t, attempts, students)
}

func TestAttemptService_ConcurrentStartsExhaustRetries(t *testing.T) {
	f := newAttemptFixture(t, nil, WithMaxRetries(1))
	ids := enrollStudents(t, f, 2)
	f.store.raceCommits(2)

	errs := startConcurrently(f, ids)

	var won, lost int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrConcurrencyConflict):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, 1, lost)

	stored := f.storedTest(t)
	assert.Equal(t, 1, stored.Statistics.TotalAttempts)
	attempts, err := f.store.Attempt().ListByTest(context.Background(), f.test.ID, repositories.AttemptFilters{})
	require.NoError(t, err)
	assert.Len(t, attempts, 1, "the rejected transaction leaves no attempt behind")
}

func TestAttemptService_StoredAnswersAreGraded(t *testing.T) {
	f := newAttemptFixture(t, nil)
	ctx := context.Background()

	_, err := f.service.Start(ctx, f.test.ID, "student-1", nil, ClientContext{})
	require.NoError(t, err)
	result, err := f.service.Submit(ctx, f.test.ID, "student-1", f.halfRightAnswers())
	require.NoError(t, err)

	stored, err := f.store.Attempt().GetByID(ctx, result.AttemptID)
	require.NoError(t, err)
	want := datatypes.NewJSONSlice([]models.AnswerRecord{
		{QuestionID: f.test.Questions[0].ID, SelectedOptions: []int{2, 0}, IsCorrect: true, PointsEarned: 2},
		{QuestionID: f.test.Questions[1].ID, SelectedOptions: []int{0}, IsCorrect: true, PointsEarned: 1},
		{QuestionID: f.test.Questions[2].ID, TextAnswer: " paris ", IsCorrect: true, PointsEarned: 2},
		{QuestionID: f.test.Questions[3].ID, TextAnswer: "essay"},
	})
	assert.Equal(t, want, stored.Answers)
	assert.True(t, stored.IsCompleted())
}
