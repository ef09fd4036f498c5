package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rollcall/internal/organization/domain"
	"github.com/smallbiznis/rollcall/internal/storeerr"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) CreateOrganization(ctx context.Context, org domain.Organization) error {
	err := r.db.WithContext(ctx).Exec(
		`INSERT INTO organizations (id, name, slug, owner_user_id, billing_customer_ref, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		org.ID,
		org.Name,
		org.Slug,
		org.OwnerUserID,
		org.BillingCustomerRef,
		org.CreatedAt,
		org.UpdatedAt,
	).Error
	return storeerr.Wrap(err)
}

func (r *repository) AddMember(ctx context.Context, member domain.OrganizationMember) error {
	err := r.db.WithContext(ctx).Exec(
		`INSERT INTO organization_members (id, org_id, user_id, role, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		member.ID,
		member.OrgID,
		member.UserID,
		member.Role,
		member.CreatedAt,
	).Error
	return storeerr.Wrap(err)
}

func (r *repository) GetByID(ctx context.Context, id snowflake.ID) (*domain.Organization, error) {
	var org domain.Organization
	err := r.db.WithContext(ctx).First(&org, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, storeerr.Wrap(err)
	}
	return &org, nil
}

func (r *repository) FirstOwnedBy(ctx context.Context, userID string) (*domain.Organization, error) {
	var orgs []domain.Organization
	err := r.db.WithContext(ctx).
		Where("owner_user_id = ?", userID).
		Order("created_at ASC").
		Order("id ASC").
		Limit(1).
		Find(&orgs).Error
	if err != nil {
		return nil, storeerr.Wrap(err)
	}
	if len(orgs) == 0 {
		return nil, nil
	}
	return &orgs[0], nil
}

func (r *repository) FirstMembership(ctx context.Context, userID string) (*domain.Organization, error) {
	var orgs []domain.Organization
	err := r.db.WithContext(ctx).Raw(
		`SELECT o.*
		 FROM organization_members m
		 JOIN organizations o ON o.id = m.org_id
		 WHERE m.user_id = ?
		 ORDER BY m.created_at ASC, m.id ASC
		 LIMIT 1`,
		userID,
	).Scan(&orgs).Error
	if err != nil {
		return nil, storeerr.Wrap(err)
	}
	if len(orgs) == 0 {
		return nil, nil
	}
	return &orgs[0], nil
}

func (r *repository) IsMemberOrOwner(ctx context.Context, orgID snowflake.ID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(
		`SELECT COUNT(1)
		 FROM organizations o
		 WHERE o.id = ?
		   AND (o.owner_user_id = ?
		        OR EXISTS (SELECT 1 FROM organization_members m WHERE m.org_id = o.id AND m.user_id = ?))`,
		orgID,
		userID,
		userID,
	).Scan(&count).Error
	if err != nil {
		return false, storeerr.Wrap(err)
	}
	return count > 0, nil
}

func (r *repository) ListOrganizationsByUser(ctx context.Context, userID string) ([]domain.OrganizationListItem, error) {
	var items []domain.OrganizationListItem
	err := r.db.WithContext(ctx).Raw(
		`SELECT o.id, o.name, o.slug,
		        CASE WHEN o.owner_user_id = ? THEN 'OWNER' ELSE COALESCE(m.role, 'MEMBER') END AS role,
		        o.created_at
		 FROM organizations o
		 LEFT JOIN organization_members m ON m.org_id = o.id AND m.user_id = ?
		 WHERE o.owner_user_id = ? OR m.user_id IS NOT NULL
		 ORDER BY o.created_at ASC, o.id ASC`,
		userID,
		userID,
		userID,
	).Scan(&items).Error
	if err != nil {
		return nil, storeerr.Wrap(err)
	}

	return items, nil
}

// RoleFor returns "" when userID neither owns nor belongs to the org.
func (r *repository) RoleFor(ctx context.Context, orgID snowflake.ID, userID string) (string, error) {
	var rows []struct {
		Role string `gorm:"column:role"`
	}
	err := r.db.WithContext(ctx).Raw(
		`SELECT CASE WHEN o.owner_user_id = ? THEN 'OWNER' ELSE m.role END AS role
		 FROM organizations o
		 LEFT JOIN organization_members m ON m.org_id = o.id AND m.user_id = ?
		 WHERE o.id = ? AND (o.owner_user_id = ? OR m.user_id IS NOT NULL)
		 LIMIT 1`,
		userID,
		userID,
		orgID,
		userID,
	).Scan(&rows).Error
	if err != nil {
		return "", storeerr.Wrap(err)
	}
	if len(rows) == 0 {
		return "", nil
	}
	return rows[0].Role, nil
}
