// Package tenantcontext decides which organization a request acts on.
package tenantcontext

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/rollcall/internal/auth/domain"
	orgdomain "github.com/smallbiznis/rollcall/internal/organization/domain"
	"go.uber.org/zap"
)

type Source string

const (
	SourceAppMetadata  Source = "app_metadata"
	SourceUserMetadata Source = "user_metadata"
	SourceCache        Source = "cache"
	SourceOwner        Source = "owner"
	SourceMembership   Source = "membership"
	SourceSwitch       Source = "switch"
)

var (
	ErrTenantNotResolved = errors.New("tenant not resolved")
	ErrForbiddenTenant   = errors.New("tenant not accessible")
)

var metadataKeys = []string{"org_id", "orgId", "default_org_id"}

// Context is the outcome of a successful resolution.
type Context struct {
	Principal authdomain.Principal
	OrgID     snowflake.ID
	OrgName   string
	Source    Source
}

// Store is the subset of the organization repository the resolver reads.
type Store interface {
	GetByID(ctx context.Context, id snowflake.ID) (*orgdomain.Organization, error)
	FirstOwnedBy(ctx context.Context, userID string) (*orgdomain.Organization, error)
	FirstMembership(ctx context.Context, userID string) (*orgdomain.Organization, error)
	IsMemberOrOwner(ctx context.Context, orgID snowflake.ID, userID string) (bool, error)
}

// Recorder observes which tier resolved a request.
type Recorder interface {
	RecordTenantResolution(ctx context.Context, source string)
}

type Resolver struct {
	provider authdomain.Provider
	store    Store
	recorder Recorder
	log      *zap.Logger
}

func NewResolver(provider authdomain.Provider, store Store, recorder Recorder, log *zap.Logger) *Resolver {
	return &Resolver{
		provider: provider,
		store:    store,
		recorder: recorder,
		log:      log.Named("tenantcontext"),
	}
}

// Resolve authenticates token and picks the active org. Tiers are tried in
// order: app metadata, user metadata, cache, owned org, membership. Only the
// last two write the cache. Values a client can edit (user metadata and the
// cache) are checked against membership and skipped when they fail it.
func (r *Resolver) Resolve(ctx context.Context, token string, cache Cache) (Context, error) {
	principal, err := r.provider.Principal(ctx, token)
	if err != nil {
		return Context{}, err
	}
	out := Context{Principal: principal}

	if orgID, ok := metadataOrgID(principal.AppMetadata); ok {
		out.OrgID, out.OrgName, out.Source = orgID, metadataString(principal.AppMetadata, "org_name"), SourceAppMetadata
		return r.done(ctx, out), nil
	}

	if orgID, ok := metadataOrgID(principal.UserMetadata); ok && r.verified(ctx, orgID, principal.UserID, SourceUserMetadata) {
		out.OrgID, out.OrgName, out.Source = orgID, metadataString(principal.UserMetadata, "org_name"), SourceUserMetadata
		return r.done(ctx, out), nil
	}

	// A rejected cache entry is left alone here: steps 3 and 4 overwrite it
	// when they find an org, and only they write the cache.
	if cache != nil {
		if entry, ok := cache.Get(principal); ok && r.verified(ctx, entry.OrgID, principal.UserID, SourceCache) {
			out.OrgID, out.OrgName, out.Source = entry.OrgID, entry.OrgName, SourceCache
			return r.done(ctx, out), nil
		}
	}

	owned, err := r.store.FirstOwnedBy(ctx, principal.UserID)
	if err != nil {
		return Context{}, fmt.Errorf("lookup owned organization: %w", err)
	}
	if owned != nil {
		return r.done(ctx, r.remember(out, owned, SourceOwner, cache)), nil
	}

	member, err := r.store.FirstMembership(ctx, principal.UserID)
	if err != nil {
		return Context{}, fmt.Errorf("lookup organization membership: %w", err)
	}
	if member != nil {
		return r.done(ctx, r.remember(out, member, SourceMembership, cache)), nil
	}

	return Context{}, ErrTenantNotResolved
}

// Switch makes orgID the cached tenant for the principal's session. A
// metadata org still takes precedence on the next Resolve.
func (r *Resolver) Switch(ctx context.Context, principal authdomain.Principal, orgID snowflake.ID, cache Cache) (Context, error) {
	if orgID <= 0 {
		return Context{}, ErrForbiddenTenant
	}
	allowed, err := r.store.IsMemberOrOwner(ctx, orgID, principal.UserID)
	if err != nil {
		return Context{}, fmt.Errorf("verify organization access: %w", err)
	}
	if !allowed {
		return Context{}, ErrForbiddenTenant
	}

	org, err := r.store.GetByID(ctx, orgID)
	if errors.Is(err, orgdomain.ErrNotFound) {
		return Context{}, ErrForbiddenTenant
	}
	if err != nil {
		return Context{}, err
	}

	// Set replaces both cookies, so the old entry needs no separate Clear.
	out := r.remember(Context{Principal: principal}, org, SourceSwitch, cache)
	r.log.Info("tenant switched",
		zap.String("user_id", principal.UserID),
		zap.String("org_id", orgID.String()),
	)
	return out, nil
}

// verified reports whether a client-supplied org id belongs to the user.
// A store failure skips the tier rather than failing the request; the owner
// and membership lookups surface store errors.
func (r *Resolver) verified(ctx context.Context, orgID snowflake.ID, userID string, tier Source) bool {
	allowed, err := r.store.IsMemberOrOwner(ctx, orgID, userID)
	if err != nil {
		r.log.Warn("skipping unverifiable organization hint",
			zap.String("tier", string(tier)),
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return false
	}
	if !allowed {
		r.log.Debug("ignoring organization hint without membership",
			zap.String("tier", string(tier)),
			zap.String("user_id", userID),
		)
	}
	return allowed
}

func (r *Resolver) remember(out Context, org *orgdomain.Organization, source Source, cache Cache) Context {
	out.OrgID, out.OrgName, out.Source = org.ID, org.Name, source
	if cache != nil {
		cache.Set(out.Principal, Entry{OrgID: org.ID, OrgName: org.Name})
	}
	return out
}

func (r *Resolver) done(ctx context.Context, out Context) Context {
	if r.recorder != nil {
		r.recorder.RecordTenantResolution(ctx, string(out.Source))
	}
	return out
}

func metadataOrgID(metadata map[string]any) (snowflake.ID, bool) {
	for _, key := range metadataKeys {
		raw, ok := metadata[key]
		if !ok {
			continue
		}
		if id, ok := parseOrgID(raw); ok {
			return id, true
		}
	}
	return 0, false
}

func parseOrgID(raw any) (snowflake.ID, bool) {
	switch v := raw.(type) {
	case string:
		id, err := snowflake.ParseString(strings.TrimSpace(v))
		if err != nil || id <= 0 {
			return 0, false
		}
		return id, true
	case json.Number:
		n, err := v.Int64()
		if err != nil || n <= 0 {
			return 0, false
		}
		return snowflake.ID(n), true
	case float64:
		if v <= 0 || v != math.Trunc(v) || v > 1<<53 {
			return 0, false
		}
		return snowflake.ID(int64(v)), true
	case int64:
		if v <= 0 {
			return 0, false
		}
		return snowflake.ID(v), true
	case int:
		if v <= 0 {
			return 0, false
		}
		return snowflake.ID(v), true
	default:
		return 0, false
	}
}

func metadataString(metadata map[string]any, key string) string {
	v, _ := metadata[key].(string)
	return strings.TrimSpace(v)
}
