package server

import (
	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/rollcall/internal/auth/domain"
	"github.com/smallbiznis/rollcall/internal/orgcontext"
	"github.com/smallbiznis/rollcall/internal/tenantcontext"
)

const (
	contextPrincipalKey = "principal"
	contextTenantKey    = "tenant"

	actorTypeUser = "user"
)

// AuthRequired authenticates the token without resolving a tenant.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := s.sessions.ReadToken(c)
		if !ok {
			AbortWithError(c, authdomain.ErrUnauthenticated)
			return
		}

		principal, err := s.provider.Principal(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextPrincipalKey, principal)
		ctx := orgcontext.WithActor(c.Request.Context(), actorTypeUser, principal.UserID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// TenantRequired authenticates the token and resolves the active org. The
// org id only ever comes from the resolver.
func (s *Server) TenantRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := s.sessions.ReadToken(c)
		if !ok {
			AbortWithError(c, authdomain.ErrUnauthenticated)
			return
		}

		tenant, err := s.resolver.Resolve(c.Request.Context(), token, s.tenantCache(c))
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextPrincipalKey, tenant.Principal)
		c.Set(contextTenantKey, tenant)
		ctx := orgcontext.WithActor(c.Request.Context(), actorTypeUser, tenant.Principal.UserID)
		ctx = orgcontext.WithOrgID(ctx, tenant.OrgID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (s *Server) tenantCache(c *gin.Context) *tenantcontext.CookieCache {
	return tenantcontext.NewCookieCache(c.Writer, c.Request, s.cookieOpts)
}

func principalFromContext(c *gin.Context) (authdomain.Principal, bool) {
	v, ok := c.Get(contextPrincipalKey)
	if !ok {
		return authdomain.Principal{}, false
	}
	p, ok := v.(authdomain.Principal)
	return p, ok
}

func tenantFromContext(c *gin.Context) (tenantcontext.Context, bool) {
	v, ok := c.Get(contextTenantKey)
	if !ok {
		return tenantcontext.Context{}, false
	}
	t, ok := v.(tenantcontext.Context)
	return t, ok
}
