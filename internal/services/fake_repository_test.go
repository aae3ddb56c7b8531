package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
)

// memStore is an in-memory Repository. By default transactions are serialized
// and roll back to a snapshot when fn fails. With optimistic set, every
// transaction works on its own copy and commit fails with ErrVersionConflict
// when a test it wrote was bumped by another commit in the meantime.
type memStore struct {
	mu   sync.Mutex
	txMu sync.Mutex

	optimistic bool
	// commitBarrier holds the first n commits until all n have arrived
	commitBarrier *sync.WaitGroup
	barrierSize   int64
	commits       atomic.Int64
	// commitConflicts counts commits rejected by the version check
	commitConflicts int

	// set on transaction copies only
	parent       *memStore
	baseVersions map[uint]int
	dirtyTests   map[uint]bool
	dirtyAttempt map[uint]bool

	tests       map[uint]models.Test
	attempts    []models.TestAttempt
	courses     map[uint]models.Course
	enrollments map[string]bool
	users       map[string]*models.User
	nextID      uint

	// statsConflicts makes the next n UpdateStatistics calls fail with a version conflict
	statsConflicts int
	statsCalls     int
}

func newMemStore() *memStore {
	return &memStore{
		tests:       map[uint]models.Test{},
		courses:     map[uint]models.Course{},
		enrollments: map[string]bool{},
		users:       map[string]*models.User{},
	}
}

// id is called with s.mu held. Copies draw ids from the committed store.
func (s *memStore) id() uint {
	if s.parent != nil {
		s.parent.mu.Lock()
		defer s.parent.mu.Unlock()
		return s.parent.id()
	}
	s.nextID++
	return s.nextID
}

func (s *memStore) touchTest(id uint) {
	if s.dirtyTests != nil {
		s.dirtyTests[id] = true
	}
}

func (s *memStore) touchAttempt(id uint) {
	if s.dirtyAttempt != nil {
		s.dirtyAttempt[id] = true
	}
}

// raceCommits makes the next n commits wait for each other, so transactions
// that read the same version all reach commit before any of them lands
func (s *memStore) raceCommits(n int) {
	s.optimistic = true
	s.commitBarrier = &sync.WaitGroup{}
	s.commitBarrier.Add(n)
	s.barrierSize = int64(n)
}

func (s *memStore) begin() *memStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &memStore{
		parent:       s,
		tests:        maps.Clone(s.tests),
		attempts:     slices.Clone(s.attempts),
		courses:      maps.Clone(s.courses),
		enrollments:  maps.Clone(s.enrollments),
		users:        s.users,
		baseVersions: make(map[uint]int, len(s.tests)),
		dirtyTests:   map[uint]bool{},
		dirtyAttempt: map[uint]bool{},
	}
	for id, t := range s.tests {
		tx.baseVersions[id] = t.Version
	}
	return tx
}

func (s *memStore) commit(tx *memStore) error {
	if s.commitBarrier != nil && s.commits.Add(1) <= s.barrierSize {
		s.commitBarrier.Done()
		s.commitBarrier.Wait()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range tx.dirtyTests {
		if base, ok := tx.baseVersions[id]; ok && s.tests[id].Version != base {
			s.commitConflicts++
			return repositories.ErrVersionConflict
		}
	}

	for id := range tx.dirtyTests {
		if t, ok := tx.tests[id]; ok {
			s.tests[id] = t
		} else {
			delete(s.tests, id)
		}
	}
	for _, a := range tx.attempts {
		if !tx.dirtyAttempt[a.ID] {
			continue
		}
		if i := slices.IndexFunc(s.attempts, func(b models.TestAttempt) bool { return b.ID == a.ID }); i >= 0 {
			s.attempts[i] = a
		} else {
			s.attempts = append(s.attempts, a)
		}
	}
	maps.Copy(s.courses, tx.courses)
	maps.Copy(s.enrollments, tx.enrollments)
	return nil
}

func enrollmentKey(courseID uint, studentID string) string {
	return fmt.Sprintf("%d:%s", courseID, studentID)
}

func cloneTest(t models.Test) *models.Test {
	t.Questions = slices.Clone(t.Questions)
	if t.EndDate != nil {
		end := *t.EndDate
		t.EndDate = &end
	}
	return &t
}

func cloneAttempt(a models.TestAttempt) *models.TestAttempt {
	if a.CompletedAt != nil {
		c := *a.CompletedAt
		a.CompletedAt = &c
	}
	a.Answers = slices.Clone(a.Answers)
	return &a
}

func (s *memStore) Test() repositories.TestRepository         { return memTests{s} }
func (s *memStore) Question() repositories.QuestionRepository { return memQuestions{s} }
func (s *memStore) Attempt() repositories.AttemptRepository   { return memAttempts{s} }
func (s *memStore) Course() repositories.CourseRepository     { return memCourses{s} }
func (s *memStore) User() repositories.UserRepository         { return memUsers{s} }

func (s *memStore) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	if s.optimistic {
		tx := s.begin()
		if err := fn(tx); err != nil {
			return err
		}
		return s.commit(tx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	tests := maps.Clone(s.tests)
	attempts := slices.Clone(s.attempts)
	courses := maps.Clone(s.courses)
	enrollments := maps.Clone(s.enrollments)
	nextID := s.nextID
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.tests, s.attempts, s.courses, s.enrollments, s.nextID = tests, attempts, courses, enrollments, nextID
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *memStore) Ping(ctx context.Context) error { return nil }
func (s *memStore) Close() error                   { return nil }

// ===== tests =====

type memTests struct{ s *memStore }

func (r memTests) Create(ctx context.Context, test *models.Test) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	test.ID = r.s.id()
	for i := range test.Questions {
		test.Questions[i].ID = r.s.id()
		test.Questions[i].TestID = test.ID
	}
	if test.Version == 0 {
		test.Version = 1
	}
	r.s.tests[test.ID] = *cloneTest(*test)
	r.s.touchTest(test.ID)
	return nil
}

func (r memTests) GetByID(ctx context.Context, id uint) (*models.Test, error) {
	t, err := r.GetByIDWithQuestions(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Questions = nil
	return t, nil
}

func (r memTests) GetByIDWithQuestions(ctx context.Context, id uint) (*models.Test, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tests[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return cloneTest(t), nil
}

func (r memTests) Update(ctx context.Context, test *models.Test) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.tests[test.ID]
	if !ok || stored.Version != test.Version {
		return repositories.ErrVersionConflict
	}
	test.Version++
	updated := *cloneTest(*test)
	updated.Questions = stored.Questions
	updated.Statistics = stored.Statistics
	updated.Status = stored.Status
	r.s.tests[test.ID] = updated
	r.s.touchTest(test.ID)
	return nil
}

func (r memTests) UpdateStatus(ctx context.Context, id uint, status models.TestStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tests[id]
	if !ok {
		return repositories.ErrNotFound
	}
	t.Status = status
	t.Version++
	r.s.tests[id] = t
	r.s.touchTest(id)
	return nil
}

func (r memTests) Delete(ctx context.Context, id uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tests[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.s.tests, id)
	r.s.touchTest(id)
	return nil
}

func (r memTests) List(ctx context.Context, filters repositories.TestFilters) ([]*models.Test, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Test
	for _, id := range slices.Sorted(maps.Keys(r.s.tests)) {
		t := r.s.tests[id]
		if filters.CourseID != nil && t.CourseID != *filters.CourseID {
			continue
		}
		if filters.InstructorID != nil && t.InstructorID != *filters.InstructorID {
			continue
		}
		if filters.Status != nil && t.Status != *filters.Status {
			continue
		}
		out = append(out, cloneTest(t))
	}
	return out, int64(len(out)), nil
}

func (r memTests) ListPublishedActive(ctx context.Context, filters repositories.TestFilters) ([]*models.Test, int64, error) {
	published := models.TestPublished
	filters.Status = &published
	all, _, err := r.List(ctx, filters)
	if err != nil {
		return nil, 0, err
	}
	var out []*models.Test
	for _, t := range all {
		if t.IsActive {
			out = append(out, t)
		}
	}
	return out, int64(len(out)), nil
}

func (r memTests) UpdateStatistics(ctx context.Context, id uint, expectedVersion int, stats models.TestStatistics) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.statsCalls++
	if r.s.statsConflicts > 0 {
		r.s.statsConflicts--
		return repositories.ErrVersionConflict
	}
	t, ok := r.s.tests[id]
	if !ok || t.Version != expectedVersion {
		return repositories.ErrVersionConflict
	}
	t.Statistics = stats
	t.Version++
	r.s.tests[id] = t
	r.s.touchTest(id)
	return nil
}

func (r memTests) IsOwner(ctx context.Context, testID uint, instructorID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tests[testID]
	return ok && t.InstructorID == instructorID, nil
}

func (r memTests) HasAttempts(ctx context.Context, id uint) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.attempts {
		if a.TestID == id {
			return true, nil
		}
	}
	return false, nil
}

// ===== questions =====

type memQuestions struct{ s *memStore }

func (r memQuestions) GetByTest(ctx context.Context, testID uint) ([]models.Question, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return slices.Clone(r.s.tests[testID].Questions), nil
}

func (r memQuestions) ReplaceForTest(ctx context.Context, testID uint, questions []models.Question) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tests[testID]
	if !ok {
		return repositories.ErrNotFound
	}
	for i := range questions {
		questions[i].ID = r.s.id()
		questions[i].TestID = testID
	}
	t.Questions = slices.Clone(questions)
	r.s.tests[testID] = t
	r.s.touchTest(testID)
	return nil
}

func (r memQuestions) CountByTest(ctx context.Context, testID uint) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.s.tests[testID].Questions)), nil
}

// ===== attempts =====

type memAttempts struct{ s *memStore }

func (r memAttempts) Create(ctx context.Context, attempt *models.TestAttempt) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	attempt.ID = r.s.id()
	r.s.attempts = append(r.s.attempts, *cloneAttempt(*attempt))
	r.s.touchAttempt(attempt.ID)
	return nil
}

func (r memAttempts) GetByID(ctx context.Context, id uint) (*models.TestAttempt, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.attempts {
		if a.ID == id {
			return cloneAttempt(a), nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r memAttempts) Update(ctx context.Context, attempt *models.TestAttempt) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, a := range r.s.attempts {
		if a.ID == attempt.ID {
			r.s.attempts[i] = *cloneAttempt(*attempt)
			r.s.touchAttempt(attempt.ID)
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (r memAttempts) ListByTest(ctx context.Context, testID uint, filters repositories.AttemptFilters) ([]*models.TestAttempt, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.TestAttempt
	for _, a := range r.s.attempts {
		if a.TestID != testID {
			continue
		}
		if filters.StudentID != nil && a.StudentID != *filters.StudentID {
			continue
		}
		out = append(out, cloneAttempt(a))
	}
	return out, nil
}

func (r memAttempts) ListByTestAndStudent(ctx context.Context, testID uint, studentID string) ([]*models.TestAttempt, error) {
	return r.ListByTest(ctx, testID, repositories.AttemptFilters{StudentID: &studentID})
}

func (r memAttempts) GetInProgress(ctx context.Context, testID uint, studentID string) (*models.TestAttempt, error) {
	attempts, _ := r.ListByTestAndStudent(ctx, testID, studentID)
	for _, a := range attempts {
		if a.InProgress() {
			return a, nil
		}
	}
	return nil, nil
}

func (r memAttempts) CountByTestAndStudent(ctx context.Context, testID uint, studentID string) (int64, error) {
	attempts, _ := r.ListByTestAndStudent(ctx, testID, studentID)
	return int64(len(attempts)), nil
}

// ===== courses =====

type memCourses struct{ s *memStore }

func (r memCourses) Create(ctx context.Context, course *models.Course) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	course.ID = r.s.id()
	r.s.courses[course.ID] = *course
	return nil
}

func (r memCourses) GetByID(ctx context.Context, id uint) (*models.Course, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.courses[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &c, nil
}

func (r memCourses) Enroll(ctx context.Context, enrollment *models.CourseEnrollment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.enrollments[enrollmentKey(enrollment.CourseID, enrollment.StudentID)] = true
	return nil
}

func (r memCourses) IsEnrolled(ctx context.Context, courseID uint, studentID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.enrollments[enrollmentKey(courseID, studentID)], nil
}

// ===== users =====

type memUsers struct{ s *memStore }

func (r memUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return u, nil
}

func (r memUsers) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	var out []*models.User
	for _, id := range ids {
		if u, err := r.GetByID(ctx, id); err == nil {
			out = append(out, u)
		}
	}
	return out, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
