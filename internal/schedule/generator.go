// Package schedule expands a course definition into concrete session rows.
// It performs no I/O and never fails: malformed input is normalized.
package schedule

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// MaxSessions bounds the number of sessions a single course can produce.
const MaxSessions = 200

const week = 7 * 24 * time.Hour

var startDateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// CourseDefinition is the tenant-scoped input to Generate.
type CourseDefinition struct {
	OrgID       snowflake.ID
	CourseID    snowflake.ID
	TeacherID   string
	Title       string
	Type        string
	Description string

	StartDate         string
	DurationWeeks     int
	MeetingDaysOfWeek []int
	SessionsPerWeek   int
}

// SessionDescriptor is one generated session, ready to persist.
type SessionDescriptor struct {
	OrgID       snowflake.ID
	CourseID    snowflake.ID
	TeacherID   string
	Title       string
	StartsAt    time.Time
	ClassName   string
	Description string
}

// Generate lays out the sessions of def. now is only consulted when
// StartDate is missing or cannot be parsed.
func Generate(def CourseDefinition, now time.Time) []SessionDescriptor {
	start := ParseStartDate(def.StartDate, now)
	weeks := atLeastOne(def.DurationWeeks)

	var times []time.Time
	if days := NormalizeMeetingDays(def.MeetingDaysOfWeek); len(days) > 0 {
		times = weekdayTimes(start, weeks, days)
	} else {
		times = intervalTimes(start, weeks, atLeastOne(def.SessionsPerWeek))
	}

	className := strings.TrimSpace(def.Type)
	if className == "" {
		className = def.Title
	}

	out := make([]SessionDescriptor, 0, len(times))
	for i, startsAt := range times {
		out = append(out, SessionDescriptor{
			OrgID:       def.OrgID,
			CourseID:    def.CourseID,
			TeacherID:   def.TeacherID,
			Title:       sessionTitle(def.Title, i+1, len(times)),
			StartsAt:    startsAt,
			ClassName:   className,
			Description: def.Description,
		})
	}
	return out
}

// ParseStartDate accepts RFC 3339 timestamps, local date-times without a
// zone (read as UTC) and bare dates (midnight UTC).
func ParseStartDate(raw string, now time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now
	}
	for _, layout := range startDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return now
}

// NormalizeMeetingDays sorts and de-duplicates weekday ordinals
// (0 = Sunday) and drops anything outside 0..6.
func NormalizeMeetingDays(days []int) []time.Weekday {
	seen := make(map[int]struct{}, len(days))
	out := make([]time.Weekday, 0, len(days))
	for _, d := range days {
		if d < 0 || d > 6 {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, time.Weekday(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func weekdayTimes(start time.Time, weeks int, days []time.Weekday) []time.Time {
	// Sessions are numbered week by week, walking the sorted weekday set, so
	// weeks past the cap can never contribute.
	if maxWeeks := (MaxSessions + len(days) - 1) / len(days); weeks > maxWeeks {
		weeks = maxWeeks
	}

	times := make([]time.Time, 0, weeks*len(days))
	for w := 0; w < weeks; w++ {
		for _, day := range days {
			ahead := (int(day) - int(start.Weekday()) + 7) % 7
			times = append(times, start.AddDate(0, 0, ahead+w*7))
		}
	}

	if len(times) > MaxSessions {
		times = times[:MaxSessions]
	}
	return times
}

func intervalTimes(start time.Time, weeks, perWeek int) []time.Time {
	total := MaxSessions
	if weeks <= MaxSessions/perWeek {
		total = weeks * perWeek
		if total > MaxSessions {
			total = MaxSessions
		}
	}

	interval := week / time.Duration(perWeek)
	times := make([]time.Time, 0, total)
	for i := 0; i < total; i++ {
		times = append(times, start.Add(time.Duration(i)*interval))
	}
	return times
}

func sessionTitle(title string, n, total int) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Sprintf("Session %d", n)
	}
	if total == 1 {
		return title
	}
	return fmt.Sprintf("%s • Session %d", title, n)
}

func atLeastOne(v int) int {
	if v < 1 {
		return 1
	}
	return v
}
