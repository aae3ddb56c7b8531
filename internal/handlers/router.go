package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/exam-service/internal/metrics"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"github.com/SAP-F-2025/exam-service/internal/services"
	"github.com/SAP-F-2025/exam-service/internal/utils"
)

const healthCheckTimeout = 5 * time.Second

type HandlerManager struct {
	testHandler    *TestHandler
	attemptHandler *AttemptHandler
	courseHandler  *CourseHandler
	userHandler    *UserHandler
	authMiddleware *CasdoorAuthMiddleware
	rateLimiter    *RateLimiter
	serviceManager services.ServiceManager
	metrics        *metrics.Metrics
}

// NewHandlerManager wires handlers to an initialized service manager.
// limiter and m may be nil.
func NewHandlerManager(
	serviceManager services.ServiceManager,
	authMiddleware *CasdoorAuthMiddleware,
	userRepo repositories.UserRepository,
	limiter *RateLimiter,
	m *metrics.Metrics,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		testHandler:    NewTestHandler(serviceManager.Test(), serviceManager.Report(), logger),
		attemptHandler: NewAttemptHandler(serviceManager.Attempt(), logger),
		courseHandler:  NewCourseHandler(serviceManager.Course(), serviceManager.Test(), logger),
		userHandler:    NewUserHandler(userRepo, logger),
		authMiddleware: authMiddleware,
		rateLimiter:    limiter,
		serviceManager: serviceManager,
		metrics:        m,
	}
}

func (hm *HandlerManager) limited() gin.HandlerFunc {
	if hm.rateLimiter == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return hm.rateLimiter.Middleware()
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", hm.health)
	if hm.metrics != nil {
		router.GET("/metrics", hm.metrics.Handler())
	}

	authoring := hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin)

	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		tests := v1.Group("/tests")
		{
			tests.GET("", hm.testHandler.ListActiveTests)
			tests.GET("/instructor", authoring, hm.testHandler.ListInstructorTests)
			tests.POST("", authoring, hm.testHandler.CreateTest)
			tests.POST("/import", authoring, hm.testHandler.ImportTest)

			tests.GET("/:id", hm.testHandler.GetTest)
			tests.PUT("/:id", authoring, hm.testHandler.UpdateTest)
			tests.DELETE("/:id", authoring, hm.testHandler.DeleteTest)
			tests.POST("/:id/publish", authoring, hm.testHandler.PublishTest)
			tests.POST("/:id/archive", authoring, hm.testHandler.ArchiveTest)
			tests.GET("/:id/analytics", authoring, hm.testHandler.GetAnalytics)
			tests.GET("/:id/report", authoring, hm.testHandler.GetReport)

			tests.POST("/:id/start", hm.limited(), hm.attemptHandler.StartAttempt)
			tests.POST("/:id/submit", hm.limited(), hm.attemptHandler.SubmitAttempt)
			tests.GET("/:id/results", hm.limited(), hm.attemptHandler.GetResults)
			tests.GET("/:id/results/best", hm.limited(), hm.attemptHandler.GetBestAttempt)
		}

		courses := v1.Group("/courses")
		{
			courses.POST("", authoring, hm.courseHandler.CreateCourse)
			courses.POST("/:id/enroll", hm.courseHandler.Enroll)
			courses.GET("/:id/tests", hm.courseHandler.ListCourseTests)
		}

		users := v1.Group("/users")
		{
			users.GET("/me", hm.userHandler.GetMe)
			users.GET("/:id", authoring, hm.userHandler.GetUser)
		}
	}
}

func (hm *HandlerManager) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	if err := hm.serviceManager.HealthCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
