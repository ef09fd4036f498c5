package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	auditdomain "github.com/smallbiznis/rollcall/internal/audit/domain"
	orgdomain "github.com/smallbiznis/rollcall/internal/organization/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectOrganization = "organization"
	ObjectCourse       = "course"
	ObjectSession      = "session"
	ObjectAuditLog     = "audit_log"
)

const (
	ActionOrganizationView = "organization.view"

	ActionCourseView   = "course.view"
	ActionCourseCreate = "course.create"
	ActionCourseDelete = "course.delete"

	ActionSessionView = "session.view"

	ActionAuditLogView = "audit_log.view"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	OrgRepo  orgdomain.Repository
	Audit    auditdomain.Sink `optional:"true"`
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	orgRepo  orgdomain.Repository
	audit    auditdomain.Sink
}

// NewEnforcer loads persisted policies through the gorm adapter and seeds
// the built-in role grants.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

// NewMemoryEnforcer builds an enforcer with no persistence.
func NewMemoryEnforcer() (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		orgRepo:  p.OrgRepo,
		audit:    p.Audit,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, userID string, orgID snowflake.ID, object string, action string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrInvalidActor
	}
	if orgID == 0 {
		return ErrInvalidOrganization
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	role, err := s.orgRepo.RoleFor(ctx, orgID, userID)
	if err != nil {
		return err
	}
	role = strings.TrimSpace(role)
	if role == "" {
		s.auditDenied(ctx, userID, object, action)
		return ErrForbidden
	}

	subject := "user:" + userID
	domain := fmt.Sprintf("org:%s", orgID.String())
	roleName := fmt.Sprintf("role:%s", strings.ToLower(role))
	if err := s.ensureGrouping(subject, roleName, domain); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, domain, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.auditDenied(ctx, userID, object, action)
		return ErrForbidden
	}
	return nil
}

// ensureGrouping keeps exactly one role link per subject and org so a role
// change in the membership table takes effect on the next check.
func (s *ServiceImpl) ensureGrouping(subject string, roleName string, domain string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject, "", domain)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 || rule[1] == roleName {
			continue
		}
		params := make([]interface{}, 0, len(rule))
		for _, value := range rule {
			params = append(params, value)
		}
		if _, err := s.enforcer.RemoveGroupingPolicy(params...); err != nil {
			return err
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName, domain)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName, domain)
	return err
}

func (s *ServiceImpl) auditDenied(ctx context.Context, userID string, object string, action string) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, auditdomain.Entry{
		Action:     "authorization.denied",
		TargetType: "authorization",
		TargetID:   "capability",
		Metadata: map[string]any{
			"object":  object,
			"action":  action,
			"subject": "user:" + userID,
		},
	})
	if err != nil {
		s.log.Warn("failed to audit denied authorization", zap.String("action", action), zap.Error(err))
	}
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	readOnly := [][]string{
		{ObjectOrganization, ActionOrganizationView},
		{ObjectCourse, ActionCourseView},
		{ObjectSession, ActionSessionView},
	}
	writes := [][]string{
		{ObjectCourse, ActionCourseCreate},
		{ObjectCourse, ActionCourseDelete},
	}

	var policies [][]string
	for _, role := range []string{"role:member", "role:teacher", "role:admin", "role:owner"} {
		for _, p := range readOnly {
			policies = append(policies, []string{role, p[0], p[1]})
		}
	}
	for _, role := range []string{"role:teacher", "role:admin", "role:owner"} {
		for _, p := range writes {
			policies = append(policies, []string{role, p[0], p[1]})
		}
	}
	policies = append(policies,
		[]string{"role:admin", ObjectAuditLog, ActionAuditLogView},
		[]string{"role:owner", ObjectAuditLog, ActionAuditLogView},
	)

	for _, policy := range policies {
		has, err := enforcer.HasPolicy(policy)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
