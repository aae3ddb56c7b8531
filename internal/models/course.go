package models

import (
	"time"

	"gorm.io/gorm"
)

type Course struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	Title        string         `json:"title" gorm:"not null;size:200"`
	Category     string         `json:"category" gorm:"size:100"`
	InstructorID string         `json:"instructor_id" gorm:"not null;index;size:255"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Course) TableName() string {
	return "courses"
}

type CourseEnrollment struct {
	CourseID   uint      `json:"course_id" gorm:"primaryKey"`
	StudentID  string    `json:"student_id" gorm:"primaryKey;size:255"`
	EnrolledAt time.Time `json:"enrolled_at" gorm:"not null"`
}

func (CourseEnrollment) TableName() string {
	return "course_enrollments"
}
