package tenantcontext

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/rollcall/internal/auth/domain"
	orgdomain "github.com/smallbiznis/rollcall/internal/organization/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubProvider struct {
	principal authdomain.Principal
	err       error
}

func (p stubProvider) Principal(_ context.Context, token string) (authdomain.Principal, error) {
	if token == "" {
		return authdomain.Principal{}, authdomain.ErrUnauthenticated
	}
	return p.principal, p.err
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetByID(ctx context.Context, id snowflake.ID) (*orgdomain.Organization, error) {
	args := m.Called(ctx, id)
	org, _ := args.Get(0).(*orgdomain.Organization)
	return org, args.Error(1)
}

func (m *mockStore) FirstOwnedBy(ctx context.Context, userID string) (*orgdomain.Organization, error) {
	args := m.Called(ctx, userID)
	org, _ := args.Get(0).(*orgdomain.Organization)
	return org, args.Error(1)
}

func (m *mockStore) FirstMembership(ctx context.Context, userID string) (*orgdomain.Organization, error) {
	args := m.Called(ctx, userID)
	org, _ := args.Get(0).(*orgdomain.Organization)
	return org, args.Error(1)
}

func (m *mockStore) IsMemberOrOwner(ctx context.Context, orgID snowflake.ID, userID string) (bool, error) {
	args := m.Called(ctx, orgID, userID)
	return args.Bool(0), args.Error(1)
}

type countingRecorder struct {
	sources []string
}

func (c *countingRecorder) RecordTenantResolution(_ context.Context, source string) {
	c.sources = append(c.sources, source)
}

var (
	ownedOrg  = &orgdomain.Organization{ID: 1001, Name: "Owned"}
	memberOrg = &orgdomain.Organization{ID: 2002, Name: "Member"}
)

func principal() authdomain.Principal {
	return authdomain.Principal{
		UserID:    "user-1",
		SessionID: "sess-1",
		IssuedAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func newResolver(p authdomain.Principal, store Store) (*Resolver, *countingRecorder) {
	rec := &countingRecorder{}
	return NewResolver(stubProvider{principal: p}, store, rec, zap.NewNop()), rec
}

func TestResolveRequiresPrincipal(t *testing.T) {
	store := &mockStore{}
	r, _ := newResolver(principal(), store)

	_, err := r.Resolve(context.Background(), "", NewMemoryCache())
	assert.ErrorIs(t, err, authdomain.ErrUnauthenticated)
	store.AssertExpectations(t)
}

func TestResolvePrefersAppMetadata(t *testing.T) {
	p := principal()
	p.AppMetadata = map[string]any{"org_id": json.Number("42")}
	p.UserMetadata = map[string]any{"org_id": "77"}
	store := &mockStore{}
	r, rec := newResolver(p, store)
	cache := NewMemoryCache()
	cache.Set(p, Entry{OrgID: 99})

	got, err := r.Resolve(context.Background(), "token", cache)
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(42), got.OrgID)
	assert.Equal(t, SourceAppMetadata, got.Source)
	assert.Equal(t, []string{"app_metadata"}, rec.sources)
	store.AssertNotCalled(t, "FirstOwnedBy", mock.Anything, mock.Anything)
}

func TestResolveUserMetadataBeatsCache(t *testing.T) {
	p := principal()
	p.UserMetadata = map[string]any{"orgId": "77"}
	store := &mockStore{}
	store.On("IsMemberOrOwner", mock.Anything, snowflake.ID(77), "user-1").Return(true, nil)
	r, _ := newResolver(p, store)
	cache := NewMemoryCache()
	cache.Set(p, Entry{OrgID: 99})

	got, err := r.Resolve(context.Background(), "token", cache)
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(77), got.OrgID)
	assert.Equal(t, SourceUserMetadata, got.Source)
}

func TestResolveSkipsUserMetadataWithoutMembership(t *testing.T) {
	p := principal()
	p.UserMetadata = map[string]any{"org_id": "77"}
	store := &mockStore{}
	store.On("IsMemberOrOwner", mock.Anything, snowflake.ID(77), "user-1").Return(false, nil)
	store.On("FirstOwnedBy", mock.Anything, "user-1").Return(ownedOrg, nil)
	r, _ := newResolver(p, store)

	got, err := r.Resolve(context.Background(), "token", NewMemoryCache())
	require.NoError(t, err)
	assert.Equal(t, ownedOrg.ID, got.OrgID)
	assert.Equal(t, SourceOwner, got.Source)
}

func TestResolveCacheBeatsOwner(t *testing.T) {
	p := principal()
	store := &mockStore{}
	store.On("IsMemberOrOwner", mock.Anything, snowflake.ID(99), "user-1").Return(true, nil)
	r, _ := newResolver(p, store)
	cache := NewMemoryCache()
	cache.Set(p, Entry{OrgID: 99, OrgName: "Cached"})

	got, err := r.Resolve(context.Background(), "token", cache)
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(99), got.OrgID)
	assert.Equal(t, "Cached", got.OrgName)
	assert.Equal(t, SourceCache, got.Source)
	store.AssertNotCalled(t, "FirstOwnedBy", mock.Anything, mock.Anything)
}

func TestResolveOwnerBeforeMembership(t *testing.T) {
	p := principal()
	store := &mockStore{}
	store.On("FirstOwnedBy", mock.Anything, "user-1").Return(ownedOrg, nil)
	store.On("FirstMembership", mock.Anything, "user-1").Return(memberOrg, nil)
	r, _ := newResolver(p, store)
	cache := NewMemoryCache()

	got, err := r.Resolve(context.Background(), "token", cache)
	require.NoError(t, err)
	assert.Equal(t, ownedOrg.ID, got.OrgID)
	assert.Equal(t, SourceOwner, got.Source)
	store.AssertNotCalled(t, "FirstMembership", mock.Anything, mock.Anything)

	entry, ok := cache.Get(p)
	require.True(t, ok)
	assert.Equal(t, Entry{OrgID: ownedOrg.ID, OrgName: "Owned"}, entry)
}

func TestResolveMembershipWritesCache(t *testing.T) {
	p := principal()
	store := &mockStore{}
	store.On("FirstOwnedBy", mock.Anything, "user-1").Return(nil, nil)
	store.On("FirstMembership", mock.Anything, "user-1").Return(memberOrg, nil)
	r, _ := newResolver(p, store)
	cache := NewMemoryCache()

	got, err := r.Resolve(context.Background(), "token", cache)
	require.NoError(t, err)
	assert.Equal(t, SourceMembership, got.Source)

	entry, ok := cache.Get(p)
	require.True(t, ok)
	assert.Equal(t, memberOrg.ID, entry.OrgID)
}

func TestResolveMetadataDoesNotWriteCache(t *testing.T) {
	p := principal()
	p.AppMetadata = map[string]any{"default_org_id": "42"}
	r, _ := newResolver(p, &mockStore{})
	cache := NewMemoryCache()

	_, err := r.Resolve(context.Background(), "token", cache)
	require.NoError(t, err)

	_, ok := cache.Get(p)
	assert.False(t, ok)
}

func TestResolveNotResolved(t *testing.T) {
	store := &mockStore{}
	store.On("FirstOwnedBy", mock.Anything, "user-1").Return(nil, nil)
	store.On("FirstMembership", mock.Anything, "user-1").Return(nil, nil)
	r, rec := newResolver(principal(), store)

	_, err := r.Resolve(context.Background(), "token", NewMemoryCache())
	assert.ErrorIs(t, err, ErrTenantNotResolved)
	assert.Empty(t, rec.sources)
}

func TestResolvePropagatesStoreErrors(t *testing.T) {
	boom := errors.New("connection refused")

	store := &mockStore{}
	store.On("FirstOwnedBy", mock.Anything, "user-1").Return(nil, boom)
	r, _ := newResolver(principal(), store)
	_, err := r.Resolve(context.Background(), "token", NewMemoryCache())
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrTenantNotResolved)

	store = &mockStore{}
	store.On("FirstOwnedBy", mock.Anything, "user-1").Return(nil, nil)
	store.On("FirstMembership", mock.Anything, "user-1").Return(nil, boom)
	r, _ = newResolver(principal(), store)
	_, err = r.Resolve(context.Background(), "token", NewMemoryCache())
	assert.ErrorIs(t, err, boom)
}

func TestResolveUnverifiableHintsFallThrough(t *testing.T) {
	boom := errors.New("connection reset")
	p := principal()
	p.UserMetadata = map[string]any{"org_id": "77"}
	store := &mockStore{}
	store.On("IsMemberOrOwner", mock.Anything, snowflake.ID(77), "user-1").Return(false, boom)
	store.On("IsMemberOrOwner", mock.Anything, snowflake.ID(99), "user-1").Return(false, boom)
	store.On("FirstOwnedBy", mock.Anything, "user-1").Return(ownedOrg, nil)
	r, _ := newResolver(p, store)
	cache := NewMemoryCache()
	cache.Set(p, Entry{OrgID: 99})

	got, err := r.Resolve(context.Background(), "token", cache)
	require.NoError(t, err)
	assert.Equal(t, ownedOrg.ID, got.OrgID)
	assert.Equal(t, SourceOwner, got.Source)
	entry, _ := cache.Get(p)
	assert.Equal(t, ownedOrg.ID, entry.OrgID)
}

func TestResolveRejectedCacheWritesNoCookies(t *testing.T) {
	p := principal()
	store := &mockStore{}
	store.On("IsMemberOrOwner", mock.Anything, snowflake.ID(42), "user-1").Return(false, nil)
	store.On("FirstOwnedBy", mock.Anything, "user-1").Return(nil, nil)
	store.On("FirstMembership", mock.Anything, "user-1").Return(nil, nil)
	r, _ := newResolver(p, store)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieOrgID, Value: "42." + Fingerprint(p)})
	rec := httptest.NewRecorder()

	_, err := r.Resolve(context.Background(), "token", NewCookieCache(rec, req, CookieOptions{}))
	assert.ErrorIs(t, err, ErrTenantNotResolved)
	assert.Empty(t, rec.Header().Values("Set-Cookie"))
}

func TestSwitch(t *testing.T) {
	p := principal()
	store := &mockStore{}
	store.On("IsMemberOrOwner", mock.Anything, memberOrg.ID, "user-1").Return(true, nil)
	store.On("GetByID", mock.Anything, memberOrg.ID).Return(memberOrg, nil)
	store.On("IsMemberOrOwner", mock.Anything, snowflake.ID(3003), "user-1").Return(false, nil)
	r, _ := newResolver(p, store)
	cache := NewMemoryCache()
	cache.Set(p, Entry{OrgID: ownedOrg.ID})

	got, err := r.Switch(context.Background(), p, memberOrg.ID, cache)
	require.NoError(t, err)
	assert.Equal(t, memberOrg.ID, got.OrgID)
	entry, _ := cache.Get(p)
	assert.Equal(t, memberOrg.ID, entry.OrgID)

	_, err = r.Switch(context.Background(), p, 3003, cache)
	assert.ErrorIs(t, err, ErrForbiddenTenant)
	entry, _ = cache.Get(p)
	assert.Equal(t, memberOrg.ID, entry.OrgID)
}

func TestCookieCacheRoundTrip(t *testing.T) {
	p := principal()
	rec := httptest.NewRecorder()
	cache := NewCookieCache(rec, httptest.NewRequest(http.MethodGet, "/", nil), CookieOptions{Secure: true, MaxAge: 30 * 24 * time.Hour})

	cache.Set(p, Entry{OrgID: 42, OrgName: "Riverside Dojo"})

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)
	for _, c := range cookies {
		assert.Equal(t, "/", c.Path)
		assert.True(t, c.HttpOnly)
		assert.True(t, c.Secure)
		assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
		assert.Equal(t, 30*24*60*60, c.MaxAge)
	}

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		next.AddCookie(c)
	}
	entry, ok := NewCookieCache(httptest.NewRecorder(), next, CookieOptions{}).Get(p)
	require.True(t, ok)
	assert.Equal(t, Entry{OrgID: 42, OrgName: "Riverside Dojo"}, entry)
}

func TestCookieCacheIgnoresOtherSession(t *testing.T) {
	p := principal()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieOrgID, Value: "42." + Fingerprint(p)})

	other := p
	other.SessionID = "sess-2"
	_, ok := NewCookieCache(httptest.NewRecorder(), req, CookieOptions{}).Get(other)
	assert.False(t, ok)

	_, ok = NewCookieCache(httptest.NewRecorder(), req, CookieOptions{}).Get(p)
	assert.True(t, ok)
}

func TestCookieCacheClear(t *testing.T) {
	p := principal()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieOrgID, Value: "42." + Fingerprint(p)})
	rec := httptest.NewRecorder()
	cache := NewCookieCache(rec, req, CookieOptions{})

	cache.Clear()

	_, ok := cache.Get(p)
	assert.False(t, ok)
	for _, c := range rec.Result().Cookies() {
		assert.Equal(t, -1, c.MaxAge, c.Name)
	}
}

func TestParseOrgID(t *testing.T) {
	cases := []struct {
		raw  any
		want snowflake.ID
		ok   bool
	}{
		{"42", 42, true},
		{" 42 ", 42, true},
		{json.Number("1774439784344592384"), 1774439784344592384, true},
		{float64(7), 7, true},
		{float64(7.5), 0, false},
		{int64(9), 9, true},
		{"", 0, false},
		{"abc", 0, false},
		{"-1", 0, false},
		{true, 0, false},
	}
	for _, tc := range cases {
		got, ok := parseOrgID(tc.raw)
		assert.Equal(t, tc.ok, ok, "%v", tc.raw)
		assert.Equal(t, tc.want, got, "%v", tc.raw)
	}
}
