package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/rollcall/internal/apierror"
	auditdomain "github.com/smallbiznis/rollcall/internal/audit/domain"
	"github.com/smallbiznis/rollcall/pkg/db/pagination"
)

type auditLogQuery struct {
	pagination.Pagination
	Action     string `form:"action" binding:"max=100"`
	TargetType string `form:"target_type" binding:"max=100"`
	TargetID   string `form:"target_id" binding:"max=100"`
}

// ListAuditLogs returns the active org's audit trail, newest first.
func (s *Server) ListAuditLogs(c *gin.Context) {
	var q auditLogQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		AbortWithError(c, apierror.FromBinding(err))
		return
	}

	resp, err := s.auditSvc.List(c.Request.Context(), auditdomain.ListAuditLogRequest{
		Pagination: q.Pagination,
		Action:     strings.TrimSpace(q.Action),
		TargetType: strings.TrimSpace(q.TargetType),
		TargetID:   strings.TrimSpace(q.TargetID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.AuditLogs, "page_info": resp.PageInfo})
}
