package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rollcall/internal/clock"
	"github.com/smallbiznis/rollcall/internal/course/domain"
	"github.com/smallbiznis/rollcall/internal/orgcontext"
	"github.com/smallbiznis/rollcall/internal/schedule"
	"github.com/smallbiznis/rollcall/pkg/rls"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository

	Metrics Recorder `optional:"true"`
}

// Recorder receives course creation counts.
type Recorder interface {
	RecordCourseCreated(ctx context.Context, mode string)
	RecordSessionsGenerated(ctx context.Context, mode string, count int)
}

type service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository

	metrics Recorder
}

func NewService(p Params) domain.Service {
	return &service{
		db:    p.DB,
		log:   p.Log.Named("course.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,

		metrics: p.Metrics,
	}
}

// Create stores the course and every generated session in one transaction.
func (s *service) Create(ctx context.Context, req domain.CreateCourseRequest) (*domain.CourseResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, orgcontext.ErrOrgRequired
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, domain.ErrInvalidTitle
	}

	teacherID := strings.TrimSpace(req.TeacherID)
	if teacherID == "" {
		if actor, ok := orgcontext.ActorFromContext(ctx); ok {
			teacherID = actor.ID
		}
	}

	now := s.clock.Now().UTC()
	courseID := s.genID.Generate()
	def := schedule.CourseDefinition{
		OrgID:             orgID,
		CourseID:          courseID,
		TeacherID:         teacherID,
		Title:             title,
		Type:              strings.TrimSpace(req.Type),
		Description:       strings.TrimSpace(req.Description),
		StartDate:         req.StartDate,
		DurationWeeks:     req.DurationWeeks,
		MeetingDaysOfWeek: req.MeetingDaysOfWeek,
		SessionsPerWeek:   req.SessionsPerWeek,
	}
	descriptors := schedule.Generate(def, now)

	meetingDays := make([]int, 0, len(req.MeetingDaysOfWeek))
	for _, d := range schedule.NormalizeMeetingDays(req.MeetingDaysOfWeek) {
		meetingDays = append(meetingDays, int(d))
	}

	course := domain.Course{
		ID:              courseID,
		OrgID:           orgID,
		Title:           title,
		Type:            def.Type,
		TeacherID:       teacherID,
		Description:     def.Description,
		StartDate:       schedule.ParseStartDate(req.StartDate, now),
		DurationWeeks:   atLeastOne(req.DurationWeeks),
		MeetingDays:     datatypes.JSONSlice[int](meetingDays),
		SessionsPerWeek: atLeastOne(req.SessionsPerWeek),
		CreatedAt:       now,
	}

	sessions := make([]domain.Session, 0, len(descriptors))
	for _, d := range descriptors {
		sessions = append(sessions, domain.Session{
			ID:          s.genID.Generate(),
			OrgID:       d.OrgID,
			CourseID:    d.CourseID,
			TeacherID:   d.TeacherID,
			Title:       d.Title,
			StartsAt:    d.StartsAt,
			ClassName:   d.ClassName,
			Description: d.Description,
			CreatedAt:   now,
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, orgID); err != nil {
			return err
		}
		repo := s.repo.WithTx(tx)
		if err := repo.CreateCourse(ctx, &course); err != nil {
			return err
		}
		return repo.InsertSessions(ctx, sessions)
	})
	if err != nil {
		return nil, err
	}

	mode := "interval"
	if len(meetingDays) > 0 {
		mode = "weekly"
	}
	if s.metrics != nil {
		s.metrics.RecordCourseCreated(ctx, mode)
		s.metrics.RecordSessionsGenerated(ctx, mode, len(sessions))
	}

	s.log.Info("course created",
		zap.String("org_id", orgID.String()),
		zap.String("course_id", courseID.String()),
		zap.String("mode", mode),
		zap.Int("sessions", len(sessions)),
	)

	resp := toCourseResponse(course)
	resp.SessionCount = len(sessions)
	return &resp, nil
}

func (s *service) List(ctx context.Context) ([]domain.CourseResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, orgcontext.ErrOrgRequired
	}

	courses, err := s.repo.ListCourses(ctx, orgID)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.CourseResponse, 0, len(courses))
	for _, c := range courses {
		resp = append(resp, toCourseResponse(c))
	}
	return resp, nil
}

func (s *service) Get(ctx context.Context, id string) (*domain.CourseResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, orgcontext.ErrOrgRequired
	}
	courseID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	course, err := s.repo.GetCourse(ctx, orgID, courseID)
	if err != nil {
		return nil, err
	}
	resp := toCourseResponse(*course)
	return &resp, nil
}

func (s *service) ListSessions(ctx context.Context, id string) ([]domain.SessionResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, orgcontext.ErrOrgRequired
	}
	courseID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.GetCourse(ctx, orgID, courseID); err != nil {
		return nil, err
	}

	sessions, err := s.repo.ListSessions(ctx, orgID, courseID)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.SessionResponse, 0, len(sessions))
	for _, session := range sessions {
		resp = append(resp, domain.SessionResponse{
			ID:          session.ID.String(),
			CourseID:    session.CourseID.String(),
			TeacherID:   session.TeacherID,
			Title:       session.Title,
			StartsAt:    session.StartsAt,
			ClassName:   session.ClassName,
			Description: session.Description,
		})
	}
	return resp, nil
}

func (s *service) Delete(ctx context.Context, id string) (*domain.DeleteResult, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, orgcontext.ErrOrgRequired
	}
	courseID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var deleted int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, orgID); err != nil {
			return err
		}
		n, err := s.repo.WithTx(tx).DeleteCourse(ctx, orgID, courseID)
		if err != nil {
			return err
		}
		deleted = n
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &domain.DeleteResult{ID: courseID.String(), SessionsDeleted: deleted}, nil
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, domain.ErrNotFound
	}
	return id, nil
}

func toCourseResponse(c domain.Course) domain.CourseResponse {
	return domain.CourseResponse{
		ID:              c.ID.String(),
		Title:           c.Title,
		Type:            c.Type,
		TeacherID:       c.TeacherID,
		Description:     c.Description,
		StartDate:       c.StartDate,
		DurationWeeks:   c.DurationWeeks,
		MeetingDays:     []int(c.MeetingDays),
		SessionsPerWeek: c.SessionsPerWeek,
		CreatedAt:       c.CreatedAt,
	}
}

func atLeastOne(v int) int {
	if v < 1 {
		return 1
	}
	return v
}
