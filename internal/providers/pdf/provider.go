package pdf

import (
	"context"
	"io"
	"time"

	"go.uber.org/fx"
)

var Module = fx.Module("providers.pdf",
	fx.Provide(func() Provider { return NewPDFProvider() }),
)

// Provider renders printable documents for a course.
type Provider interface {
	GenerateSchedule(ctx context.Context, data ScheduleData) (io.Reader, error)
}

// ScheduleData is the printable view of a course and its sessions.
type ScheduleData struct {
	OrgName     string
	CourseTitle string
	CourseType  string
	TeacherID   string
	StartDate   time.Time
	GeneratedAt time.Time
	Sessions    []ScheduleSession
}

type ScheduleSession struct {
	Title     string
	StartsAt  time.Time
	ClassName string
}

type PDFProvider struct{}

func NewPDFProvider() *PDFProvider {
	return &PDFProvider{}
}
