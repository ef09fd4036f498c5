package domain

import (
	"context"
	"errors"
	"time"
)

type Service interface {
	Create(ctx context.Context, req CreateCourseRequest) (*CourseResponse, error)
	List(ctx context.Context) ([]CourseResponse, error)
	Get(ctx context.Context, id string) (*CourseResponse, error)
	ListSessions(ctx context.Context, courseID string) ([]SessionResponse, error)
	Delete(ctx context.Context, id string) (*DeleteResult, error)
}

// CreateCourseRequest is the accepted request body. Any org id in the body
// is ignored; the tenant comes from the request context.
type CreateCourseRequest struct {
	Title             string `json:"title" binding:"required,max=200"`
	Type              string `json:"type" binding:"max=100"`
	TeacherID         string `json:"teacher_id" binding:"max=200"`
	Description       string `json:"description" binding:"max=2000"`
	StartDate         string `json:"start_date" binding:"max=64"`
	DurationWeeks     int    `json:"duration_weeks" binding:"lte=520"`
	MeetingDaysOfWeek []int  `json:"meeting_days_of_week" binding:"max=14"`
	SessionsPerWeek   int    `json:"sessions_per_week" binding:"lte=50"`
}

type CourseResponse struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Type            string    `json:"type,omitempty"`
	TeacherID       string    `json:"teacher_id,omitempty"`
	Description     string    `json:"description,omitempty"`
	StartDate       time.Time `json:"start_date"`
	DurationWeeks   int       `json:"duration_weeks"`
	MeetingDays     []int     `json:"meeting_days_of_week,omitempty"`
	SessionsPerWeek int       `json:"sessions_per_week"`
	SessionCount    int       `json:"session_count,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type SessionResponse struct {
	ID          string    `json:"id"`
	CourseID    string    `json:"course_id"`
	TeacherID   string    `json:"teacher_id,omitempty"`
	Title       string    `json:"title"`
	StartsAt    time.Time `json:"starts_at"`
	ClassName   string    `json:"class_name"`
	Description string    `json:"description,omitempty"`
}

type DeleteResult struct {
	ID              string `json:"id"`
	SessionsDeleted int64  `json:"sessions_deleted"`
}

var (
	ErrInvalidTitle  = errors.New("invalid_title")
	ErrInvalidCourse = errors.New("invalid_course")
	ErrNotFound      = errors.New("course_not_found")
)
