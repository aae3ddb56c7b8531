package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/cache"
	"github.com/SAP-F-2025/exam-service/internal/events"
	"github.com/SAP-F-2025/exam-service/internal/metrics"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"github.com/SAP-F-2025/exam-service/internal/validator"
)

// ServiceManager owns the lifecycle of every service
type ServiceManager interface {
	Initialize(ctx context.Context) error
	Attempt() AttemptService
	Test() TestService
	Course() CourseService
	Report() ReportService
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// ServiceManagerConfig holds configuration for the service manager
type ServiceManagerConfig struct {
	DefaultTimeout time.Duration
	// MaxRetries bounds optimistic-lock retries of attempt writes
	MaxRetries int
}

func DefaultServiceManagerConfig() ServiceManagerConfig {
	return ServiceManagerConfig{
		DefaultTimeout: 30 * time.Second,
		MaxRetries:     3,
	}
}

func (c ServiceManagerConfig) Validate() error {
	if c.DefaultTimeout <= 0 {
		return fmt.Errorf("default timeout must be positive")
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max retries must be at least 1")
	}
	return nil
}

// Dependencies are the collaborators shared by the services. Cache, Storage and Metrics are optional.
type Dependencies struct {
	Repo      repositories.Repository
	Cache     *cache.CacheManager
	Publisher events.EventPublisher
	Storage   ReportStorage
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	Validator *validator.Validator
}

type serviceManager struct {
	deps   Dependencies
	config ServiceManagerConfig

	attemptService AttemptService
	testService    TestService
	courseService  CourseService
	reportService  ReportService

	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

func NewServiceManager(deps Dependencies, config ServiceManagerConfig) ServiceManager {
	return &serviceManager{deps: deps, config: config}
}

// Initialize sets up all services and their dependencies
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}
	if err := sm.config.Validate(); err != nil {
		return fmt.Errorf("invalid service manager config: %w", err)
	}
	if sm.deps.Repo == nil || sm.deps.Publisher == nil {
		return fmt.Errorf("repository and event publisher are required")
	}

	sm.deps.Logger.Info("Initializing service manager")

	sm.attemptService = NewAttemptService(sm.deps.Repo, sm.deps.Logger, sm.deps.Validator, sm.deps.Publisher,
		WithMaxRetries(sm.config.MaxRetries),
		WithMetrics(sm.deps.Metrics),
	)
	sm.testService = NewTestService(sm.deps.Repo, sm.deps.Cache, sm.deps.Logger, sm.deps.Validator, sm.deps.Publisher)
	sm.courseService = NewCourseService(sm.deps.Repo, sm.deps.Logger, sm.deps.Validator)
	sm.reportService = NewReportService(sm.deps.Repo, sm.deps.Storage, sm.deps.Logger)

	sm.initialized = true
	sm.deps.Logger.Info("Service manager initialized successfully",
		"max_retries", sm.config.MaxRetries,
		"report_storage", sm.deps.Storage != nil)
	return nil
}

func (sm *serviceManager) Attempt() AttemptService {
	sm.mustBeInitialized()
	return sm.attemptService
}

func (sm *serviceManager) Test() TestService {
	sm.mustBeInitialized()
	return sm.testService
}

func (sm *serviceManager) Course() CourseService {
	sm.mustBeInitialized()
	return sm.courseService
}

func (sm *serviceManager) Report() ReportService {
	sm.mustBeInitialized()
	return sm.reportService
}

func (sm *serviceManager) mustBeInitialized() {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if !sm.initialized {
		panic("service manager not initialized")
	}
}

func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}
	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}

	ctx, cancel := context.WithTimeout(ctx, sm.config.DefaultTimeout)
	defer cancel()

	if err := sm.deps.Repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}
	if sm.deps.Cache != nil && sm.deps.Cache.Enabled() {
		if err := sm.deps.Cache.HealthCheck(ctx); err != nil {
			return fmt.Errorf("cache health check failed: %w", err)
		}
	}
	return nil
}

// Shutdown closes the event publisher; the repository is owned by the caller
func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.deps.Logger.Info("Shutting down service manager")
	if err := sm.deps.Publisher.Close(); err != nil {
		sm.deps.Logger.Error("Failed to close event publisher", "error", err)
	}

	sm.shutdown = true
	sm.deps.Logger.Info("Service manager shut down completed")
	return nil
}
