package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/exam-service/internal/importer"
	"github.com/SAP-F-2025/exam-service/internal/services"
	"github.com/SAP-F-2025/exam-service/internal/utils"
	"github.com/SAP-F-2025/exam-service/internal/validator"
)

type TestHandler struct {
	BaseHandler
	testService   services.TestService
	reportService services.ReportService
}

func NewTestHandler(testService services.TestService, reportService services.ReportService, logger utils.Logger) *TestHandler {
	return &TestHandler{
		BaseHandler:   NewBaseHandler(logger),
		testService:   testService,
		reportService: reportService,
	}
}

// CreateTest creates a draft test with its questions
// @Summary Create test
// @Tags tests
// @Accept json
// @Produce json
// @Param test body validator.CreateTestRequest true "Test definition"
// @Success 201 {object} services.TestDetailResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /tests [post]
func (h *TestHandler) CreateTest(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	var req validator.CreateTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	h.LogRequest(c, "Creating test", "course_id", req.CourseID)

	test, err := h.testService.Create(c.Request.Context(), &req, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, test)
}

// ImportTest creates a draft test from a YAML document in the request body.
// The course_id query parameter overrides the document's course.
// @Summary Import test from YAML
// @Tags tests
// @Accept application/x-yaml
// @Produce json
// @Param course_id query uint false "Course ID"
// @Success 201 {object} services.TestDetailResponse
// @Failure 400 {object} ErrorResponse
// @Router /tests/import [post]
func (h *TestHandler) ImportTest(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	var courseID uint
	if v := c.Query("course_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			h.RespondWithError(c, http.StatusBadRequest, "Invalid course_id", err)
			return
		}
		courseID = uint(id)
	}

	req, err := importer.Parse(c.Request.Body, courseID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.LogRequest(c, "Importing test", "course_id", req.CourseID, "questions", len(req.Questions))

	test, err := h.testService.Create(c.Request.Context(), req, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, test)
}

func (h *TestHandler) UpdateTest(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	var req validator.UpdateTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	h.LogRequest(c, "Updating test", "test_id", id)

	test, err := h.testService.Update(c.Request.Context(), id, &req, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, test)
}

func (h *TestHandler) DeleteTest(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Deleting test", "test_id", id)

	if err := h.testService.Delete(c.Request.Context(), id, user); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *TestHandler) PublishTest(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Publishing test", "test_id", id)

	if err := h.testService.Publish(c.Request.Context(), id, user); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Test published"})
}

func (h *TestHandler) ArchiveTest(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Archiving test", "test_id", id)

	if err := h.testService.Archive(c.Request.Context(), id, user); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Test archived"})
}

// GetTest returns the student view, plus answers for the owner
func (h *TestHandler) GetTest(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	test, err := h.testService.GetByID(c.Request.Context(), id, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, test)
}

// ListActiveTests lists published tests open right now
// @Summary List active tests
// @Tags tests
// @Produce json
// @Param page query int false "Page number (default: 1)"
// @Param size query int false "Page size (default: 20, max: 100)"
// @Param course_id query uint false "Course filter"
// @Param q query string false "Title search"
// @Success 200 {object} services.TestListResponse
// @Router /tests [get]
func (h *TestHandler) ListActiveTests(c *gin.Context) {
	resp, err := h.testService.ListActive(c.Request.Context(), h.parseTestFilters(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *TestHandler) ListInstructorTests(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	resp, err := h.testService.ListByInstructor(c.Request.Context(), user, h.parseTestFilters(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *TestHandler) GetAnalytics(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	analytics, err := h.testService.GetAnalytics(c.Request.Context(), id, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, analytics)
}

// GetReport returns a link when the report was uploaded, otherwise the workbook itself
func (h *TestHandler) GetReport(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Generating report", "test_id", id)

	report, err := h.reportService.Generate(c.Request.Context(), id, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	if report.URL != "" && c.Query("download") != "true" {
		c.JSON(http.StatusOK, report)
		return
	}

	c.DataFromReader(http.StatusOK, int64(len(report.Content)), report.ContentType, bytes.NewReader(report.Content), map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="%s"`, report.FileName),
	})
}
