package server

import (
	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/rollcall/internal/auth/domain"
	"github.com/smallbiznis/rollcall/internal/orgcontext"
)

// authorizeOrgAction checks the caller's role in the resolved org. It must
// run after TenantRequired.
func (s *Server) authorizeOrgAction(object, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := principalFromContext(c)
		if !ok {
			AbortWithError(c, authdomain.ErrUnauthenticated)
			return
		}
		orgID, ok := orgcontext.OrgIDFromContext(c.Request.Context())
		if !ok {
			AbortWithError(c, orgcontext.ErrOrgRequired)
			return
		}

		if err := s.authzSvc.Authorize(c.Request.Context(), principal.UserID, orgID, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}
