// Package domain contains persistence models and contracts for courses and
// their scheduled sessions.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Course is a recurring class owned by one organization.
type Course struct {
	ID              snowflake.ID             `gorm:"primaryKey" json:"id"`
	OrgID           snowflake.ID             `gorm:"not null;index:ix_courses_org_created,priority:1" json:"org_id"`
	Title           string                   `gorm:"type:text;not null" json:"title"`
	Type            string                   `gorm:"type:text" json:"type"`
	TeacherID       string                   `gorm:"type:text" json:"teacher_id"`
	Description     string                   `gorm:"type:text" json:"description"`
	StartDate       time.Time                `gorm:"not null" json:"start_date"`
	DurationWeeks   int                      `gorm:"not null" json:"duration_weeks"`
	MeetingDays     datatypes.JSONSlice[int] `gorm:"type:jsonb" json:"meeting_days"`
	SessionsPerWeek int                      `gorm:"not null" json:"sessions_per_week"`
	CreatedAt       time.Time                `gorm:"not null;index:ix_courses_org_created,priority:2" json:"created_at"`
}

// TableName sets the database table name.
func (Course) TableName() string { return "courses" }

// Session is one scheduled meeting of a course.
type Session struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID `gorm:"not null;index" json:"org_id"`
	CourseID    snowflake.ID `gorm:"not null;index:ix_sessions_course_starts,priority:1" json:"course_id"`
	TeacherID   string       `gorm:"type:text" json:"teacher_id"`
	Title       string       `gorm:"type:text;not null" json:"title"`
	StartsAt    time.Time    `gorm:"not null;index:ix_sessions_course_starts,priority:2" json:"starts_at"`
	ClassName   string       `gorm:"type:text" json:"class_name"`
	Description string       `gorm:"type:text" json:"description"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (Session) TableName() string { return "sessions" }
