package server

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/rollcall/internal/apierror"
	coursedomain "github.com/smallbiznis/rollcall/internal/course/domain"
	"github.com/smallbiznis/rollcall/internal/providers/pdf"
)

func (s *Server) ListCourses(c *gin.Context) {
	courses, err := s.courseSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": courses})
}

// CreateCourse stores the course with its generated sessions. The org comes
// from the resolved tenant; an org id in the body has no effect.
func (s *Server) CreateCourse(c *gin.Context) {
	var req coursedomain.CreateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, apierror.FromBinding(err))
		return
	}

	course, err := s.courseSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c.Request.Context(), "course.create", "course", course.ID, map[string]any{
		"title":    course.Title,
		"sessions": course.SessionCount,
	})
	c.JSON(http.StatusCreated, course)
}

func (s *Server) GetCourse(c *gin.Context) {
	course, err := s.courseSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, course)
}

func (s *Server) ListCourseSessions(c *gin.Context) {
	sessions, err := s.courseSvc.ListSessions(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sessions})
}

func (s *Server) DeleteCourse(c *gin.Context) {
	result, err := s.courseSvc.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c.Request.Context(), "course.delete", "course", result.ID, map[string]any{
		"sessions_deleted": result.SessionsDeleted,
	})
	c.JSON(http.StatusOK, result)
}

// CourseSchedulePDF renders the session list as a printable document.
func (s *Server) CourseSchedulePDF(c *gin.Context) {
	ctx := c.Request.Context()
	course, err := s.courseSvc.Get(ctx, c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	sessions, err := s.courseSvc.ListSessions(ctx, course.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	data := pdf.ScheduleData{
		CourseTitle: course.Title,
		CourseType:  course.Type,
		TeacherID:   course.TeacherID,
		StartDate:   course.StartDate,
		GeneratedAt: s.clock.Now(),
		Sessions:    make([]pdf.ScheduleSession, 0, len(sessions)),
	}
	if tenant, ok := tenantFromContext(c); ok {
		data.OrgName = tenant.OrgName
	}
	for _, session := range sessions {
		data.Sessions = append(data.Sessions, pdf.ScheduleSession{
			Title:     session.Title,
			StartsAt:  session.StartsAt,
			ClassName: session.ClassName,
		})
	}

	doc, err := s.pdf.GenerateSchedule(ctx, data)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	body, err := io.ReadAll(doc)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `inline; filename="`+scheduleFilename(course.Title)+`"`)
	c.Header("Content-Length", strconv.Itoa(len(body)))
	c.Data(http.StatusOK, "application/pdf", body)
}

func scheduleFilename(title string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ':
			return '-'
		default:
			return -1
		}
	}, strings.TrimSpace(title))
	if name == "" {
		name = "schedule"
	}
	return name + ".pdf"
}
