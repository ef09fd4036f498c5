package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

const (
	dateLayout = "Mon, 02 Jan 2006"
	timeLayout = "15:04 UTC"
)

// GenerateSchedule renders one row per session in start order.
func (p *PDFProvider) GenerateSchedule(ctx context.Context, data ScheduleData) (io.Reader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(20,
		text.NewCol(8, data.CourseTitle, props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, data.OrgName, props.Text{
			Size:  10,
			Align: align.Right,
		}),
	)

	meta := col.New(12).Add(
		text.New("Starts: "+data.StartDate.UTC().Format(dateLayout), props.Text{Size: 9}),
		text.New(fmt.Sprintf("Sessions: %d", len(data.Sessions)), props.Text{Size: 9, Top: 4}),
	)
	if data.CourseType != "" {
		meta.Add(text.New("Type: "+data.CourseType, props.Text{Size: 9, Top: 8}))
	}
	if data.TeacherID != "" {
		meta.Add(text.New("Teacher: "+data.TeacherID, props.Text{Size: 9, Top: 12}))
	}
	m.AddRow(20, meta)
	m.AddRow(4, line.NewCol(12))

	m.AddRow(8,
		text.NewCol(1, "#", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(5, "Session", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(3, "Date", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(3, "Time", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	for i, s := range data.Sessions {
		m.AddRow(7,
			text.NewCol(1, fmt.Sprintf("%d", i+1), props.Text{Size: 9}),
			text.NewCol(5, s.Title, props.Text{Size: 9}),
			text.NewCol(3, s.StartsAt.UTC().Format(dateLayout), props.Text{Size: 9}),
			text.NewCol(3, s.StartsAt.UTC().Format(timeLayout), props.Text{Size: 9, Align: align.Right}),
		)
	}

	if !data.GeneratedAt.IsZero() {
		m.AddRow(10,
			text.NewCol(12, "Generated "+data.GeneratedAt.UTC().Format("2006-01-02 15:04 UTC"), props.Text{
				Size: 7,
				Top:  4,
			}),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(doc.GetBytes()), nil
}
