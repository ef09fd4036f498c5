package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/rollcall/internal/apierror"
	"github.com/smallbiznis/rollcall/internal/audit"
	auditdomain "github.com/smallbiznis/rollcall/internal/audit/domain"
	"github.com/smallbiznis/rollcall/internal/auth"
	authdomain "github.com/smallbiznis/rollcall/internal/auth/domain"
	"github.com/smallbiznis/rollcall/internal/auth/session"
	"github.com/smallbiznis/rollcall/internal/authorization"
	"github.com/smallbiznis/rollcall/internal/clock"
	"github.com/smallbiznis/rollcall/internal/config"
	"github.com/smallbiznis/rollcall/internal/course"
	coursedomain "github.com/smallbiznis/rollcall/internal/course/domain"
	"github.com/smallbiznis/rollcall/internal/observability"
	obslogger "github.com/smallbiznis/rollcall/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/rollcall/internal/observability/metrics"
	obstracing "github.com/smallbiznis/rollcall/internal/observability/tracing"
	"github.com/smallbiznis/rollcall/internal/organization"
	orgdomain "github.com/smallbiznis/rollcall/internal/organization/domain"
	"github.com/smallbiznis/rollcall/internal/providers/pdf"
	"github.com/smallbiznis/rollcall/internal/ratelimit"
	"github.com/smallbiznis/rollcall/internal/tenantcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	auth.Module,
	organization.Module,
	tenantcontext.Module,
	authorization.Module,
	audit.Module,
	course.Module,
	pdf.Module,
	ratelimit.Module,
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

// Route limits, requests per window per client IP.
const (
	limitCreateOrg    = 5
	limitUseOrg       = 20
	limitCreateCourse = 30
	limitDeleteCourse = 30
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(jsonFieldName)
	}
}

func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

// NewEngine builds the gin engine with the shared middleware stack. Only
// cfg.TrustedProxies may set the client IP through forwarding headers, so
// per-IP rate limits cannot be dodged by rotating X-Forwarded-For.
func NewEngine(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics, gatherer prometheus.Gatherer) (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:     obsCfg.Debug(),
		ErrorCode: errorCodeForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.Middleware())
	r.Use(Recovery())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(obsmetrics.Handler(gatherer)))

	return r, nil
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, _ *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine      *gin.Engine
	log         *zap.Logger
	clock       clock.Clock
	provider    authdomain.Provider
	sessions    *session.Manager
	resolver    *tenantcontext.Resolver
	cookieOpts  tenantcontext.CookieOptions
	limiter     ratelimit.Limiter
	httpMetrics *obsmetrics.HTTPMetrics
	authzSvc    authorization.Service
	auditSvc    auditdomain.Service
	orgSvc      orgdomain.Service
	courseSvc   coursedomain.Service
	pdf         pdf.Provider
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Log         *zap.Logger
	Clock       clock.Clock
	Provider    authdomain.Provider
	Sessions    *session.Manager
	Resolver    *tenantcontext.Resolver
	CookieOpts  tenantcontext.CookieOptions
	Limiter     ratelimit.Limiter
	HTTPMetrics *obsmetrics.HTTPMetrics `optional:"true"`
	AuthzSvc    authorization.Service
	AuditSvc    auditdomain.Service
	OrgSvc      orgdomain.Service
	CourseSvc   coursedomain.Service
	PDF         pdf.Provider
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:      p.Gin,
		log:         p.Log.Named("http"),
		clock:       p.Clock,
		provider:    p.Provider,
		sessions:    p.Sessions,
		resolver:    p.Resolver,
		cookieOpts:  p.CookieOpts,
		limiter:     p.Limiter,
		httpMetrics: p.HTTPMetrics,
		authzSvc:    p.AuthzSvc,
		auditSvc:    p.AuditSvc,
		orgSvc:      p.OrgSvc,
		courseSvc:   p.CourseSvc,
		pdf:         p.PDF,
	}
	s.registerAPIRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.GET("/me", s.AuthRequired(), s.Me)
	api.POST("/logout", s.Logout)

	// -------- Organizations --------
	api.GET("/orgs", s.AuthRequired(), s.ListOrgs)
	api.POST("/orgs", s.RateLimit("orgs.create", limitCreateOrg), s.AuthRequired(), s.CreateOrg)
	api.POST("/orgs/:id/use", s.RateLimit("orgs.use", limitUseOrg), s.AuthRequired(), s.UseOrg)

	// -------- Courses --------
	// Rate limits run ahead of authentication so anonymous floods are throttled.
	tenant := s.TenantRequired()
	courses := api.Group("/courses")
	{
		courses.GET("", tenant, s.authorizeOrgAction(authorization.ObjectCourse, authorization.ActionCourseView), s.ListCourses)
		courses.POST("",
			s.RateLimit("courses.create", limitCreateCourse),
			tenant,
			s.authorizeOrgAction(authorization.ObjectCourse, authorization.ActionCourseCreate),
			s.CreateCourse,
		)
		courses.GET("/:id", tenant, s.authorizeOrgAction(authorization.ObjectCourse, authorization.ActionCourseView), s.GetCourse)
		courses.GET("/:id/sessions", tenant, s.authorizeOrgAction(authorization.ObjectSession, authorization.ActionSessionView), s.ListCourseSessions)
		courses.GET("/:id/schedule.pdf", tenant, s.authorizeOrgAction(authorization.ObjectSession, authorization.ActionSessionView), s.CourseSchedulePDF)
		courses.DELETE("/:id",
			s.RateLimit("courses.delete", limitDeleteCourse),
			tenant,
			s.authorizeOrgAction(authorization.ObjectCourse, authorization.ActionCourseDelete),
			s.DeleteCourse,
		)
	}

	// -------- Audit --------
	api.GET("/audit-logs", tenant, s.authorizeOrgAction(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.ListAuditLogs)
}

func errorCodeForLog(err error) string {
	_, body := apierror.Translate(err)
	return body.Code
}
