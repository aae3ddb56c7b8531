package repositories

import "context"

// Repository aggregates every repository the exam service uses
type Repository interface {
	Test() TestRepository
	Question() QuestionRepository
	Attempt() AttemptRepository
	Course() CourseRepository

	// User domain (read-only, backed by Casdoor)
	User() UserRepository

	// WithTransaction runs fn against repositories bound to a single transaction.
	// Returning an error from fn rolls everything back.
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	Ping(ctx context.Context) error
	Close() error
}

// RepositoryManager interface for managing repository lifecycle
type RepositoryManager interface {
	Initialize() error
	GetRepository() Repository
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
