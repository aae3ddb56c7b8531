package services

import (
	"errors"
	"fmt"
)

// Base classes. Specific errors wrap one of these so handlers can map by class.
var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
	ErrConflict  = errors.New("conflict")
)

var (
	ErrTestNotFound    = fmt.Errorf("test %w", ErrNotFound)
	ErrCourseNotFound  = fmt.Errorf("course %w", ErrNotFound)
	ErrNoAttemptsFound = fmt.Errorf("attempts %w", ErrNotFound)

	ErrNotEnrolled = fmt.Errorf("%w: student is not enrolled in this course", ErrForbidden)

	ErrMaxAttemptsExceeded = fmt.Errorf("%w: maximum attempts exceeded", ErrConflict)
	ErrAttemptInProgress   = fmt.Errorf("%w: an attempt is already in progress", ErrConflict)
	ErrConcurrencyConflict = fmt.Errorf("%w: test was modified concurrently, please retry", ErrConflict)

	ErrTestNotActive   = errors.New("test is not currently active")
	ErrInvalidPassword = errors.New("invalid test password")
	ErrNoActiveAttempt = errors.New("no active attempt found")
)

// PermissionError describes a denied action on a resource
type PermissionError struct {
	UserID       string
	ResourceID   uint
	ResourceType string
	Action       string
	Reason       string
}

func NewPermissionError(userID string, resourceID uint, resourceType, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:       userID,
		ResourceID:   resourceID,
		ResourceType: resourceType,
		Action:       action,
		Reason:       reason,
	}
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %s cannot %s %s %d: %s", e.UserID, e.Action, e.ResourceType, e.ResourceID, e.Reason)
}

func (e *PermissionError) Unwrap() error {
	return ErrForbidden
}

// BusinessRuleError is a request that is well formed but not allowed in the current state
type BusinessRuleError struct {
	Rule    string
	Message string
}

func NewBusinessRuleError(rule, message string) *BusinessRuleError {
	return &BusinessRuleError{Rule: rule, Message: message}
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule %s violated: %s", e.Rule, e.Message)
}
