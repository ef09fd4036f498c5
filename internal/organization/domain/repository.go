package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type OrganizationListItem struct {
	ID        snowflake.ID
	Name      string
	Slug      string
	Role      string
	CreatedAt time.Time
}

// Repository lookups that return *Organization report "no row" as
// (nil, nil); only GetByID uses ErrNotFound.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrganization(ctx context.Context, org Organization) error
	AddMember(ctx context.Context, member OrganizationMember) error
	GetByID(ctx context.Context, id snowflake.ID) (*Organization, error)
	FirstOwnedBy(ctx context.Context, userID string) (*Organization, error)
	FirstMembership(ctx context.Context, userID string) (*Organization, error)
	IsMemberOrOwner(ctx context.Context, orgID snowflake.ID, userID string) (bool, error)
	ListOrganizationsByUser(ctx context.Context, userID string) ([]OrganizationListItem, error)
	RoleFor(ctx context.Context, orgID snowflake.ID, userID string) (string, error)
}
