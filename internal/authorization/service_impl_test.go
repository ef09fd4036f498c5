package authorization

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/rollcall/internal/audit/domain"
	orgdomain "github.com/smallbiznis/rollcall/internal/organization/domain"
	"github.com/smallbiznis/rollcall/internal/organization/repository"
	"github.com/smallbiznis/rollcall/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSink struct {
	entries []auditdomain.Entry
}

func (s *recordingSink) Record(_ context.Context, entry auditdomain.Entry) error {
	s.entries = append(s.entries, entry)
	return nil
}

func setup(t *testing.T) (Service, orgdomain.Repository, snowflake.ID, *recordingSink) {
	t.Helper()

	db := testutil.OpenDB(t)
	repo := repository.NewRepository(db)
	node := testutil.Node(t)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	orgID := node.Generate()
	require.NoError(t, repo.CreateOrganization(context.Background(), orgdomain.Organization{
		ID:          orgID,
		Name:        "Studio",
		Slug:        "studio",
		OwnerUserID: "owner",
		CreatedAt:   now,
		UpdatedAt:   now,
	}))
	for i, m := range []struct{ user, role string }{
		{"teacher", orgdomain.RoleTeacher},
		{"student", orgdomain.RoleMember},
	} {
		require.NoError(t, repo.AddMember(context.Background(), orgdomain.OrganizationMember{
			ID:        node.Generate(),
			OrgID:     orgID,
			UserID:    m.user,
			Role:      m.role,
			CreatedAt: now.Add(time.Duration(i) * time.Minute),
		}))
	}

	enforcer, err := NewMemoryEnforcer()
	require.NoError(t, err)
	sink := &recordingSink{}
	svc := NewService(Params{Log: zap.NewNop(), Enforcer: enforcer, OrgRepo: repo, Audit: sink})
	return svc, repo, orgID, sink
}

func TestAuthorizeByRole(t *testing.T) {
	svc, _, orgID, sink := setup(t)
	ctx := context.Background()

	cases := []struct {
		user   string
		object string
		action string
		want   error
	}{
		{"owner", ObjectCourse, ActionCourseCreate, nil},
		{"owner", ObjectAuditLog, ActionAuditLogView, nil},
		{"teacher", ObjectCourse, ActionCourseDelete, nil},
		{"teacher", ObjectAuditLog, ActionAuditLogView, ErrForbidden},
		{"student", ObjectCourse, ActionCourseView, nil},
		{"student", ObjectCourse, ActionCourseCreate, ErrForbidden},
		{"stranger", ObjectCourse, ActionCourseView, ErrForbidden},
	}

	for _, tc := range cases {
		err := svc.Authorize(ctx, tc.user, orgID, tc.object, tc.action)
		if tc.want == nil {
			assert.NoError(t, err, "%s %s", tc.user, tc.action)
		} else {
			assert.ErrorIs(t, err, tc.want, "%s %s", tc.user, tc.action)
		}
	}
	assert.Len(t, sink.entries, 3)
	assert.Equal(t, "authorization.denied", sink.entries[0].Action)
}

func TestAuthorizeFollowsRoleChanges(t *testing.T) {
	svc, _, orgID, _ := setup(t)
	ctx := context.Background()
	impl := svc.(*ServiceImpl)

	require.ErrorIs(t, svc.Authorize(ctx, "student", orgID, ObjectCourse, ActionCourseCreate), ErrForbidden)

	// promote
	require.NoError(t, impl.ensureGrouping("user:student", "role:admin", "org:"+orgID.String()))
	links, err := impl.enforcer.GetFilteredGroupingPolicy(0, "user:student")
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "role:admin", links[0][1])

	// the membership table still says MEMBER, so the next check reverts the link
	require.ErrorIs(t, svc.Authorize(ctx, "student", orgID, ObjectCourse, ActionCourseCreate), ErrForbidden)
}

func TestAuthorizeValidatesArguments(t *testing.T) {
	svc, _, orgID, _ := setup(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Authorize(ctx, "", orgID, ObjectCourse, ActionCourseView), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, "owner", 0, ObjectCourse, ActionCourseView), ErrInvalidOrganization)
	assert.ErrorIs(t, svc.Authorize(ctx, "owner", orgID, "", ActionCourseView), ErrInvalidObject)
	assert.ErrorIs(t, svc.Authorize(ctx, "owner", orgID, ObjectCourse, " "), ErrInvalidAction)
}

func TestNewEnforcerPersistsSeedPolicies(t *testing.T) {
	db := testutil.OpenDB(t)

	enforcer, err := NewEnforcer(db)
	require.NoError(t, err)
	has, err := enforcer.HasPolicy("role:owner", ObjectCourse, ActionCourseCreate)
	require.NoError(t, err)
	assert.True(t, has)

	again, err := NewEnforcer(db)
	require.NoError(t, err)
	policies, err := again.GetPolicy()
	require.NoError(t, err)
	first, err := enforcer.GetPolicy()
	require.NoError(t, err)
	assert.Len(t, policies, len(first))
}
