package repository

import (
	"context"
	"strings"

	"github.com/smallbiznis/rollcall/internal/audit/domain"
	"github.com/smallbiznis/rollcall/internal/storeerr"
	"gorm.io/gorm"
)

// repo takes the handle per call so inserts can join the caller's
// transaction.
type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.AuditLog) error {
	if entry == nil {
		return nil
	}
	return storeerr.Wrap(db.WithContext(ctx).Create(entry).Error)
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.AuditLog, error) {
	var logs []*domain.AuditLog
	err := db.WithContext(ctx).
		Model(&domain.AuditLog{}).
		Where("org_id = ?", filter.OrgID).
		Scopes(
			equalIfSet("action", filter.Action),
			equalIfSet("target_type", filter.TargetType),
			equalIfSet("target_id", filter.TargetID),
			before(filter.Cursor),
			limitPlusOne(filter.Limit),
		).
		Order("created_at DESC").
		Order("id DESC").
		Find(&logs).Error
	if err != nil {
		return nil, storeerr.Wrap(err)
	}
	return logs, nil
}

func equalIfSet(column, value string) func(*gorm.DB) *gorm.DB {
	value = strings.TrimSpace(value)
	return func(tx *gorm.DB) *gorm.DB {
		if value == "" {
			return tx
		}
		return tx.Where(column+" = ?", value)
	}
}

// before keeps rows strictly after cursor in (created_at DESC, id DESC) order.
func before(cursor *domain.AuditCursor) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		if cursor == nil {
			return tx
		}
		return tx.Where("created_at < ? OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
}

// limitPlusOne fetches one extra row so the caller can tell whether another
// page exists.
func limitPlusOne(limit int) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return tx
		}
		return tx.Limit(limit + 1)
	}
}
