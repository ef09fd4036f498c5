package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/rollcall/internal/apierror"
	auditdomain "github.com/smallbiznis/rollcall/internal/audit/domain"
	authdomain "github.com/smallbiznis/rollcall/internal/auth/domain"
	"github.com/smallbiznis/rollcall/internal/observability/logger"
	orgdomain "github.com/smallbiznis/rollcall/internal/organization/domain"
	"github.com/smallbiznis/rollcall/internal/orgcontext"
	"github.com/smallbiznis/rollcall/internal/tenantcontext"
	"go.uber.org/zap"
)

type createOrgRequest struct {
	Name string `json:"name" binding:"required,max=120"`
}

type meResponse struct {
	UserID       string     `json:"user_id"`
	Email        string     `json:"email,omitempty"`
	Organization *activeOrg `json:"organization"`
}

type activeOrg struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Source string `json:"source"`
}

// Me reports the principal and, when one resolves, the active org. A user
// without any org still gets a 200 with a null organization.
func (s *Server) Me(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		AbortWithError(c, authdomain.ErrUnauthenticated)
		return
	}

	resp := meResponse{UserID: principal.UserID, Email: principal.Email}

	token, _ := s.sessions.ReadToken(c)
	tenant, err := s.resolver.Resolve(c.Request.Context(), token, s.tenantCache(c))
	switch {
	case err == nil:
		resp.Organization = &activeOrg{
			ID:     tenant.OrgID.String(),
			Name:   tenant.OrgName,
			Source: string(tenant.Source),
		}
	case errors.Is(err, tenantcontext.ErrTenantNotResolved):
	default:
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) ListOrgs(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		AbortWithError(c, authdomain.ErrUnauthenticated)
		return
	}

	orgs, err := s.orgSvc.ListOrganizationsByUser(c.Request.Context(), principal.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": orgs})
}

// CreateOrg makes the caller owner of a new org and selects it for the
// session.
func (s *Server) CreateOrg(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		AbortWithError(c, authdomain.ErrUnauthenticated)
		return
	}

	var req createOrgRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, apierror.FromBinding(err))
		return
	}

	org, err := s.orgSvc.Create(c.Request.Context(), principal.UserID, orgdomain.CreateOrganizationRequest{Name: req.Name})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	orgID, err := snowflake.ParseString(org.ID)
	if err == nil {
		// The org exists either way; a failed switch leaves the old selection.
		if _, err := s.resolver.Switch(c.Request.Context(), principal, orgID, s.tenantCache(c)); err != nil {
			logger.FromContext(c.Request.Context()).Warn("select new organization failed",
				zap.String("org_id", org.ID),
				zap.Error(err),
			)
		}
		ctx := orgcontext.WithOrgID(c.Request.Context(), orgID)
		s.recordAudit(ctx, "organization.create", "organization", org.ID, map[string]any{
			"name": org.Name,
		})
	}

	c.JSON(http.StatusCreated, org)
}

// UseOrg switches the session's cached tenant.
func (s *Server) UseOrg(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		AbortWithError(c, authdomain.ErrUnauthenticated)
		return
	}

	orgID, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil || orgID == 0 {
		AbortWithError(c, apierror.NewValidationError("id", "snowflake", "is not a valid organization id"))
		return
	}

	tenant, err := s.resolver.Switch(c.Request.Context(), principal, orgID, s.tenantCache(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, activeOrg{
		ID:     tenant.OrgID.String(),
		Name:   tenant.OrgName,
		Source: string(tenant.Source),
	})
}

// Logout forgets the tenant cache and the session cookie. It succeeds
// without a session.
func (s *Server) Logout(c *gin.Context) {
	s.tenantCache(c).Clear()
	s.sessions.Clear(c)
	c.Status(http.StatusNoContent)
}

func (s *Server) recordAudit(ctx context.Context, action, targetType, targetID string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	err := s.auditSvc.Record(ctx, auditdomain.Entry{
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Metadata:   metadata,
	})
	if err != nil {
		logger.FromContext(ctx).Warn("audit record failed",
			zap.String("action", action),
			zap.Error(err),
		)
	}
}
