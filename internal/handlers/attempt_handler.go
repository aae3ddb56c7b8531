package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/exam-service/internal/services"
	"github.com/SAP-F-2025/exam-service/internal/utils"
	"github.com/SAP-F-2025/exam-service/internal/validator"
)

type AttemptHandler struct {
	BaseHandler
	attemptService services.AttemptService
}

func NewAttemptHandler(attemptService services.AttemptService, logger utils.Logger) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:    NewBaseHandler(logger),
		attemptService: attemptService,
	}
}

// StartAttempt starts a new attempt for the caller
// @Summary Start test attempt
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Test ID"
// @Param attempt body validator.StartAttemptRequest false "Password for protected tests"
// @Success 201 {object} services.StartAttemptResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /tests/{id}/start [post]
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	testID := h.parseIDParam(c, "id")
	if testID == 0 {
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Starting test attempt", "test_id", testID)

	// The body is optional, only password-protected tests need one
	var req validator.StartAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	client := services.ClientContext{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
	resp, err := h.attemptService.Start(c.Request.Context(), testID, user.ID, &req, client)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// SubmitAttempt grades the caller's in-progress attempt
// @Summary Submit test attempt
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Test ID"
// @Param attempt body validator.SubmitAttemptRequest true "Answers"
// @Success 200 {object} services.AttemptResult
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /tests/{id}/submit [post]
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	testID := h.parseIDParam(c, "id")
	if testID == 0 {
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	var req validator.SubmitAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	h.LogRequest(c, "Submitting test attempt", "test_id", testID, "answers", len(req.Answers))

	result, err := h.attemptService.Submit(c.Request.Context(), testID, user.ID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetResults lists the caller's attempts with the best one and the test statistics
func (h *AttemptHandler) GetResults(c *gin.Context) {
	testID := h.parseIDParam(c, "id")
	if testID == 0 {
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	results, err := h.attemptService.GetResults(c.Request.Context(), testID, user.ID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, results)
}

func (h *AttemptHandler) GetBestAttempt(c *gin.Context) {
	testID := h.parseIDParam(c, "id")
	if testID == 0 {
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	best, err := h.attemptService.GetBestAttempt(c.Request.Context(), testID, user.ID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	if best == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "No completed attempt yet"})
		return
	}

	c.JSON(http.StatusOK, best)
}
