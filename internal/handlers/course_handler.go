package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/exam-service/internal/services"
	"github.com/SAP-F-2025/exam-service/internal/utils"
	"github.com/SAP-F-2025/exam-service/internal/validator"
)

type CourseHandler struct {
	BaseHandler
	courseService services.CourseService
	testService   services.TestService
}

func NewCourseHandler(courseService services.CourseService, testService services.TestService, logger utils.Logger) *CourseHandler {
	return &CourseHandler{
		BaseHandler:   NewBaseHandler(logger),
		courseService: courseService,
		testService:   testService,
	}
}

func (h *CourseHandler) CreateCourse(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	var req validator.CreateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	h.LogRequest(c, "Creating course", "title", req.Title)

	course, err := h.courseService.Create(c.Request.Context(), &req, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, course)
}

// Enroll enrolls the caller in the course
func (h *CourseHandler) Enroll(c *gin.Context) {
	courseID := h.parseIDParam(c, "id")
	if courseID == 0 {
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Enrolling in course", "course_id", courseID)

	if err := h.courseService.Enroll(c.Request.Context(), courseID, user.ID); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"course_id": courseID, "enrolled": true})
}

// ListCourseTests lists the published tests of a course
func (h *CourseHandler) ListCourseTests(c *gin.Context) {
	courseID := h.parseIDParam(c, "id")
	if courseID == 0 {
		return
	}

	resp, err := h.testService.ListByCourse(c.Request.Context(), courseID, h.parseTestFilters(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
