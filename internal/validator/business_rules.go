package validator

import (
	"fmt"
	"strings"

	"github.com/SAP-F-2025/exam-service/internal/models"
)

// ValidateQuestion checks the per-type shape of a question
func ValidateQuestion(q *models.Question, index int) ValidationErrors {
	var errs ValidationErrors
	field := func(name string) string {
		return fmt.Sprintf("questions[%d].%s", index, name)
	}

	if q.Points < 1 {
		errs = append(errs, ValidationError{Field: field("points"), Message: "must be at least 1", Value: q.Points, Rule: "min"})
	}

	switch q.Type {
	case models.MultipleChoice, models.TrueFalse:
		if len(q.Options) < 2 {
			errs = append(errs, ValidationError{Field: field("options"), Message: "choice questions need at least 2 options", Value: len(q.Options), Rule: "question_shape"})
		}
		for i, opt := range q.Options {
			if strings.TrimSpace(opt.Text) == "" {
				errs = append(errs, ValidationError{Field: field(fmt.Sprintf("options[%d].text", i)), Message: "is required", Rule: "required"})
			}
		}
		if q.Type == models.TrueFalse {
			if n := len(q.CorrectOptionIndexes()); n != 1 {
				errs = append(errs, ValidationError{Field: field("options"), Message: "true-false questions need exactly one correct option", Value: n, Rule: "question_shape"})
			}
		}
	case models.FillInBlank:
		if q.CorrectAnswer == nil || strings.TrimSpace(*q.CorrectAnswer) == "" {
			errs = append(errs, ValidationError{Field: field("correct_answer"), Message: "is required for fill-in-blank questions", Rule: "question_shape"})
		}
		if len(q.Options) > 0 {
			errs = append(errs, ValidationError{Field: field("options"), Message: "only choice questions have options", Rule: "question_shape"})
		}
	case models.Essay:
		if len(q.Options) > 0 {
			errs = append(errs, ValidationError{Field: field("options"), Message: "only choice questions have options", Rule: "question_shape"})
		}
	default:
		errs = append(errs, ValidationError{Field: field("type"), Message: "must be one of multiple-choice, true-false, fill-in-blank, essay", Value: q.Type, Rule: "question_type"})
	}

	return errs
}

// ValidateSettings enforces the cross-field settings rules
func ValidateSettings(s models.TestSettings) ValidationErrors {
	var errs ValidationErrors

	if s.TimeLimit < 1 {
		errs = append(errs, ValidationError{Field: "settings.time_limit", Message: "must be at least 1", Value: s.TimeLimit, Rule: "min"})
	}
	if s.PassingScore < 0 || s.PassingScore > 100 {
		errs = append(errs, ValidationError{Field: "settings.passing_score", Message: "must be between 0 and 100", Value: s.PassingScore, Rule: "passing_score"})
	}
	if s.MaxAttempts < 1 {
		errs = append(errs, ValidationError{Field: "settings.max_attempts", Message: "must be at least 1", Value: s.MaxAttempts, Rule: "min"})
	}

	hasPassword := strings.TrimSpace(s.Password) != ""
	if s.RequirePassword && !hasPassword {
		errs = append(errs, ValidationError{Field: "settings.password", Message: "is required when require_password is set", Rule: "password"})
	}
	if !s.RequirePassword && hasPassword {
		errs = append(errs, ValidationError{Field: "settings.password", Message: "must be empty when require_password is not set", Rule: "password"})
	}

	return errs
}

// ValidateTest runs every model-level rule on a fully assembled test
func ValidateTest(t *models.Test) ValidationErrors {
	var errs ValidationErrors

	if len(t.Questions) == 0 {
		errs = append(errs, ValidationError{Field: "questions", Message: "at least one question is required", Rule: "min"})
	}
	for i := range t.Questions {
		errs = append(errs, ValidateQuestion(&t.Questions[i], i)...)
	}
	errs = append(errs, ValidateSettings(t.Settings)...)

	if t.EndDate != nil && !t.EndDate.After(t.StartDate) {
		errs = append(errs, ValidationError{Field: "end_date", Message: "must be after start_date", Value: t.EndDate, Rule: "gtfield"})
	}

	return errs
}

// ValidateStatusTransition allows draft->published and draft|published->archived
func ValidateStatusTransition(current, next models.TestStatus, questionCount int) ValidationErrors {
	allowed := map[models.TestStatus][]models.TestStatus{
		models.TestDraft:     {models.TestPublished, models.TestArchived},
		models.TestPublished: {models.TestArchived},
		models.TestArchived:  {},
	}

	var errs ValidationErrors
	ok := false
	for _, s := range allowed[current] {
		if s == next {
			ok = true
			break
		}
	}
	if !ok {
		errs = append(errs, ValidationError{
			Field:   "status",
			Message: fmt.Sprintf("cannot transition from %s to %s", current, next),
			Value:   next,
			Rule:    "status_transition",
		})
	}

	if next == models.TestPublished && questionCount == 0 {
		errs = append(errs, ValidationError{
			Field:   "questions",
			Message: "test must have at least one question before publishing",
			Value:   questionCount,
			Rule:    "business_logic",
		})
	}
	return errs
}
