package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository methods take the org id explicitly; it is never read from rows
// supplied by callers.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateCourse(ctx context.Context, course *Course) error
	InsertSessions(ctx context.Context, sessions []Session) error
	ListCourses(ctx context.Context, orgID snowflake.ID) ([]Course, error)
	GetCourse(ctx context.Context, orgID, courseID snowflake.ID) (*Course, error)
	ListSessions(ctx context.Context, orgID, courseID snowflake.ID) ([]Session, error)
	DeleteCourse(ctx context.Context, orgID, courseID snowflake.ID) (int64, error)
}
