package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/smallbiznis/rollcall/internal/clock"
	"github.com/smallbiznis/rollcall/internal/organization/domain"
	"github.com/smallbiznis/rollcall/internal/organization/repository"
	"github.com/smallbiznis/rollcall/internal/storeerr"
	"github.com/smallbiznis/rollcall/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (domain.Service, domain.Repository, *clock.FakeClock) {
	t.Helper()

	db := testutil.OpenDB(t)
	repo := repository.NewRepository(db)
	clk := clock.NewFakeClock(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	return NewService(db, repo, testutil.Node(t), clk, zap.NewNop()), repo, clk
}

func TestCreateMakesCallerOwner(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	org, err := svc.Create(ctx, "user-1", domain.CreateOrganizationRequest{Name: "  Riverside Dojo "})
	require.NoError(t, err)
	assert.Equal(t, "Riverside Dojo", org.Name)
	assert.True(t, strings.HasPrefix(org.Slug, "riverside-dojo-"), org.Slug)

	owned, err := repo.FirstOwnedBy(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, owned)
	assert.Equal(t, org.ID, owned.ID.String())

	role, err := repo.RoleFor(ctx, owned.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleOwner, role)
}

func TestCreateRejectsBadInput(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "", domain.CreateOrganizationRequest{Name: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidUser)

	_, err = svc.Create(ctx, "user-1", domain.CreateOrganizationRequest{Name: "   "})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = svc.Create(ctx, "user-1", domain.CreateOrganizationRequest{Name: strings.Repeat("a", maxNameLength+1)})
	assert.ErrorIs(t, err, domain.ErrInvalidName)
}

func TestFirstOwnedByReturnsOldest(t *testing.T) {
	svc, repo, clk := newTestService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, "user-1", domain.CreateOrganizationRequest{Name: "First"})
	require.NoError(t, err)
	clk.Advance(time.Hour)
	_, err = svc.Create(ctx, "user-1", domain.CreateOrganizationRequest{Name: "Second"})
	require.NoError(t, err)

	owned, err := repo.FirstOwnedBy(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, owned)
	assert.Equal(t, first.ID, owned.ID.String())

	none, err := repo.FirstOwnedBy(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestMembershipLookups(t *testing.T) {
	svc, repo, clk := newTestService(t)
	ctx := context.Background()

	org, err := svc.Create(ctx, "owner", domain.CreateOrganizationRequest{Name: "Studio"})
	require.NoError(t, err)
	stored, err := repo.FirstOwnedBy(ctx, "owner")
	require.NoError(t, err)

	require.NoError(t, repo.AddMember(ctx, domain.OrganizationMember{
		ID:        testutil.Node(t).Generate(),
		OrgID:     stored.ID,
		UserID:    "student",
		Role:      domain.RoleMember,
		CreatedAt: clk.Now(),
	}))

	member, err := repo.FirstMembership(ctx, "student")
	require.NoError(t, err)
	require.NotNil(t, member)
	assert.Equal(t, org.ID, member.ID.String())

	ok, err := repo.IsMemberOrOwner(ctx, stored.ID, "student")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.IsMemberOrOwner(ctx, stored.ID, "stranger")
	require.NoError(t, err)
	assert.False(t, ok)

	role, err := repo.RoleFor(ctx, stored.ID, "stranger")
	require.NoError(t, err)
	assert.Empty(t, role)

	items, err := svc.ListOrganizationsByUser(ctx, "student")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, domain.RoleMember, items[0].Role)
}

func TestAddMemberTwiceIsUniqueViolation(t *testing.T) {
	svc, repo, clk := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "owner", domain.CreateOrganizationRequest{Name: "Studio"})
	require.NoError(t, err)
	stored, err := repo.FirstOwnedBy(ctx, "owner")
	require.NoError(t, err)

	err = repo.AddMember(ctx, domain.OrganizationMember{
		ID:        testutil.Node(t).Generate(),
		OrgID:     stored.ID,
		UserID:    "owner",
		Role:      domain.RoleAdmin,
		CreatedAt: clk.Now(),
	})
	require.Error(t, err)
	assert.True(t, storeerr.Is(err, storeerr.UniqueViolation), "got %v", err)
}

func TestGetByID(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "owner", domain.CreateOrganizationRequest{Name: "Studio"})
	require.NoError(t, err)

	got, err := svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Slug, got.Slug)

	_, err = svc.GetByID(ctx, "not-an-id")
	assert.ErrorIs(t, err, domain.ErrInvalidOrganization)

	_, err = svc.GetByID(ctx, "12345")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
