package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/exam-service/internal/importer"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"github.com/SAP-F-2025/exam-service/internal/services"
	"github.com/SAP-F-2025/exam-service/internal/utils"
	"github.com/SAP-F-2025/exam-service/internal/validator"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

func (h *BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	args = append(args,
		"method", c.Request.Method,
		"path", c.FullPath(),
		"user_id", c.GetString("user_id"),
		"request_id", c.GetString("request_id"))
	h.logger.Info(msg, args...)
}

func (h *BaseHandler) LogError(c *gin.Context, err error, msg string, args ...any) {
	args = append(args,
		"error", err,
		"path", c.FullPath(),
		"user_id", c.GetString("user_id"),
		"request_id", c.GetString("request_id"))
	h.logger.Error(msg, args...)
}

func (h *BaseHandler) RespondWithError(c *gin.Context, status int, msg string, err error) {
	resp := ErrorResponse{Message: msg}
	if err != nil {
		resp.Details = err.Error()
	}
	c.JSON(status, resp)
}

// currentUser writes 401 and returns false when the auth middleware did not run
func (h *BaseHandler) currentUser(c *gin.Context) (*models.User, bool) {
	user, err := GetUserFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return nil, false
	}
	return user, true
}

// parseIDParam writes 400 and returns 0 for a missing or malformed id
func (h *BaseHandler) parseIDParam(c *gin.Context, param string) uint {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Param(param)), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: "must be a positive integer",
		})
		return 0
	}
	return uint(id)
}

func (h *BaseHandler) parseIntQuery(c *gin.Context, param string, defaultValue int) int {
	value, err := strconv.Atoi(c.Query(param))
	if err != nil {
		return defaultValue
	}
	return value
}

// parseTestFilters reads page/size plus the optional list filters
func (h *BaseHandler) parseTestFilters(c *gin.Context) repositories.TestFilters {
	page := max(h.parseIntQuery(c, "page", 1), 1)
	size := h.parseIntQuery(c, "size", 20)
	if size < 1 || size > 100 {
		size = 20
	}

	filters := repositories.TestFilters{
		Search:    strings.TrimSpace(c.Query("q")),
		Limit:     size,
		Offset:    (page - 1) * size,
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if v := c.Query("course_id"); v != "" {
		if id, err := strconv.ParseUint(v, 10, 32); err == nil {
			courseID := uint(id)
			filters.CourseID = &courseID
		}
	}
	if v := c.Query("instructor_id"); v != "" {
		filters.InstructorID = &v
	}
	if v := models.TestStatus(c.Query("status")); v.IsValid() {
		filters.Status = &v
	}
	return filters
}

// handleServiceError maps service errors onto HTTP statuses by class
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
		})
		return
	}

	var businessRuleError *services.BusinessRuleError
	if errors.As(err, &businessRuleError) {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: businessRuleError.Message,
			Details: map[string]interface{}{"rule": businessRuleError.Rule},
		})
		return
	}

	var permissionError *services.PermissionError
	if errors.As(err, &permissionError) {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Access denied",
			Details: map[string]interface{}{
				"resource": permissionError.ResourceType,
				"action":   permissionError.Action,
				"reason":   permissionError.Reason,
			},
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: capitalize(err.Error())})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{Message: "Access denied", Details: err.Error()})
	case errors.Is(err, services.ErrConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Conflict", Details: err.Error()})
	case errors.Is(err, services.ErrTestNotActive),
		errors.Is(err, services.ErrInvalidPassword),
		errors.Is(err, services.ErrNoActiveAttempt),
		errors.Is(err, importer.ErrInvalidDocument):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: capitalize(err.Error())})
	default:
		h.LogError(c, err, "Unhandled service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "Internal server error"})
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
