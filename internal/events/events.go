package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	AttemptStarted   EventType = "attempt.started"
	AttemptSubmitted EventType = "attempt.submitted"
	TestPublished    EventType = "test.published"
	TestArchived     EventType = "test.archived"
)

const (
	eventSource  = "exam-service"
	eventVersion = "1.0"
)

// Event is the envelope published for every domain change
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

func NewEvent(eventType EventType, data interface{}) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    eventSource,
		Version:   eventVersion,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// EventPublisher delivers events to the message bus. Publishing is best effort for callers.
type EventPublisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

// ===== PAYLOADS =====

type AttemptStartedData struct {
	TestID        uint      `json:"test_id"`
	AttemptID     uint      `json:"attempt_id"`
	StudentID     string    `json:"student_id"`
	AttemptNumber int       `json:"attempt_number"`
	StartedAt     time.Time `json:"started_at"`
}

type AttemptSubmittedData struct {
	TestID     uint   `json:"test_id"`
	AttemptID  uint   `json:"attempt_id"`
	StudentID  string `json:"student_id"`
	Score      int    `json:"score"`
	MaxScore   int    `json:"max_score"`
	Percentage int    `json:"percentage"`
	Passed     bool   `json:"passed"`
	TimeSpent  int    `json:"time_spent"`
}

type TestStatusData struct {
	TestID       uint   `json:"test_id"`
	CourseID     uint   `json:"course_id"`
	InstructorID string `json:"instructor_id"`
	Title        string `json:"title"`
}
