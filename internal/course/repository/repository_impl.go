package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rollcall/internal/course/domain"
	"github.com/smallbiznis/rollcall/internal/storeerr"
	"gorm.io/gorm"
)

const sessionBatchSize = 100

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) CreateCourse(ctx context.Context, course *domain.Course) error {
	return storeerr.Wrap(r.db.WithContext(ctx).Create(course).Error)
}

func (r *repository) InsertSessions(ctx context.Context, sessions []domain.Session) error {
	if len(sessions) == 0 {
		return nil
	}
	return storeerr.Wrap(r.db.WithContext(ctx).CreateInBatches(sessions, sessionBatchSize).Error)
}

func (r *repository) ListCourses(ctx context.Context, orgID snowflake.ID) ([]domain.Course, error) {
	var courses []domain.Course
	err := r.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&courses).Error
	if err != nil {
		return nil, storeerr.Wrap(err)
	}
	return courses, nil
}

func (r *repository) GetCourse(ctx context.Context, orgID, courseID snowflake.ID) (*domain.Course, error) {
	var course domain.Course
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, courseID).
		First(&course).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, storeerr.Wrap(err)
	}
	return &course, nil
}

func (r *repository) ListSessions(ctx context.Context, orgID, courseID snowflake.ID) ([]domain.Session, error) {
	var sessions []domain.Session
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND course_id = ?", orgID, courseID).
		Order("starts_at ASC").
		Order("id ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, storeerr.Wrap(err)
	}
	return sessions, nil
}

// DeleteCourse removes the course and its sessions and reports how many
// sessions went with it. A course outside orgID reads as ErrNotFound.
func (r *repository) DeleteCourse(ctx context.Context, orgID, courseID snowflake.ID) (int64, error) {
	sessions := r.db.WithContext(ctx).
		Where("org_id = ? AND course_id = ?", orgID, courseID).
		Delete(&domain.Session{})
	if sessions.Error != nil {
		return 0, storeerr.Wrap(sessions.Error)
	}

	courses := r.db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, courseID).
		Delete(&domain.Course{})
	if courses.Error != nil {
		return 0, storeerr.Wrap(courses.Error)
	}
	if courses.RowsAffected == 0 {
		return 0, domain.ErrNotFound
	}
	return sessions.RowsAffected, nil
}
