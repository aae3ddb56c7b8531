package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/SAP-F-2025/exam-service/internal/models"
)

// ValidationError represents a single field validation failure
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
	Rule    string      `json:"rule,omitempty"`
}

type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	if len(ve) == 1 {
		return fmt.Sprintf("validation failed: %s %s", ve[0].Field, ve[0].Message)
	}
	return fmt.Sprintf("validation failed: %d field errors", len(ve))
}

// Validator wraps go-playground/validator with the exam rules registered
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	validate := validator.New(validator.WithRequiredStructEnabled())

	// Report json names so errors match the request body
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	v := &Validator{validate: validate}
	v.registerRules()
	return v
}

// Validate runs struct tags and returns nil when the value is valid
func (v *Validator) Validate(s interface{}) ValidationErrors {
	if err := v.validate.Struct(s); err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

// ToValidationErrors converts validator errors into ValidationErrors
func ToValidationErrors(err error) ValidationErrors {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return ValidationErrors{{Field: "request", Message: err.Error(), Rule: "invalid"}}
	}

	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{
			Field:   trimNamespace(fe.Namespace()),
			Message: errorMessage(fe),
			Value:   fe.Value(),
			Rule:    fe.Tag(),
		})
	}
	return out
}

// trimNamespace drops the top-level struct name, "CreateTestRequest.questions[0].text" -> "questions[0].text"
func trimNamespace(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func (v *Validator) registerRules() {
	intRange := func(lo, hi int64) validator.Func {
		return func(fl validator.FieldLevel) bool {
			n := fl.Field().Int()
			return n >= lo && n <= hi
		}
	}
	lenRange := func(lo, hi int) validator.Func {
		return func(fl validator.FieldLevel) bool {
			n := len([]rune(strings.TrimSpace(fl.Field().String())))
			return n >= lo && n <= hi
		}
	}

	v.validate.RegisterValidation("passing_score", intRange(0, 100))
	v.validate.RegisterValidation("max_attempts", intRange(1, 10))
	v.validate.RegisterValidation("points_range", intRange(1, 100))
	v.validate.RegisterValidation("time_limit", intRange(1, 600))
	v.validate.RegisterValidation("test_title", lenRange(5, 100))
	v.validate.RegisterValidation("test_description", lenRange(10, 500))

	v.validate.RegisterValidation("question_type", func(fl validator.FieldLevel) bool {
		return models.QuestionType(fl.Field().String()).IsValid()
	})
	v.validate.RegisterValidation("difficulty_level", func(fl validator.FieldLevel) bool {
		return models.DifficultyLevel(fl.Field().String()).IsValid()
	})
}

// errorMessage returns user-friendly error messages
func errorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gtfield":
		return fmt.Sprintf("must be after %s", fe.Param())
	case "passing_score":
		return "must be between 0 and 100"
	case "max_attempts":
		return "must be between 1 and 10"
	case "points_range":
		return "must be between 1 and 100"
	case "time_limit":
		return "must be between 1 and 600 minutes"
	case "test_title":
		return "must be between 5 and 100 characters"
	case "test_description":
		return "must be between 10 and 500 characters"
	case "question_type":
		return "must be one of multiple-choice, true-false, fill-in-blank, essay"
	case "difficulty_level":
		return "must be easy, medium, or hard"
	default:
		return fmt.Sprintf("validation failed for rule '%s'", fe.Tag())
	}
}
