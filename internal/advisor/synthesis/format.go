package synthesis

import (
	"fmt"
	"strings"

	"academic-advisor/internal/models"
)

// FormatStructured renders a structured capability payload as plain text.
// ok is false for payload types it does not know.
func FormatStructured(payload interface{}) (string, bool) {
	switch p := payload.(type) {
	case *models.ProgressSummary:
		return formatProgress(p), true
	case *models.GraphResult:
		return formatGraph(p), true
	case *models.GpaProjection:
		return formatProjection(p), true
	default:
		return "", false
	}
}

func formatProgress(p *models.ProgressSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your current GPA is %.2f on a %.1f scale. ", p.CurrentGPA, p.GPAScale)
	fmt.Fprintf(&b, "You have completed %d credit hours and have %d hours remaining", p.CompletedHours, p.RemainingHours)
	fmt.Fprintf(&b, " (%d courses left in the study plan).", p.RemainingCoursesCount)
	if len(p.RegisterableNextSemester) > 0 {
		fmt.Fprintf(&b, " Courses you can register for next semester: %s.", strings.Join(p.RegisterableNextSemester, ", "))
	} else {
		b.WriteString(" No further courses are open for registration next semester.")
	}
	return b.String()
}

func formatGraph(g *models.GraphResult) string {
	switch {
	case g.Params.CourseCode != "" && len(g.Relations) > 0:
		r := g.Relations[0]
		var b strings.Builder
		b.WriteString(courseLabel(r))
		if r.Specialization != "" {
			fmt.Fprintf(&b, " belongs to the %s specialization", r.Specialization)
		}
		if len(r.Skills) > 0 {
			if r.Specialization != "" {
				b.WriteString(" and")
			}
			fmt.Fprintf(&b, " teaches: %s.", strings.Join(r.Skills, ", "))
		} else {
			b.WriteString(" has no skills recorded.")
		}
		return b.String()
	case g.Params.Skill != "":
		return fmt.Sprintf("Courses that teach %s: %s.", g.Params.Skill, courseList(g.Relations))
	default:
		return fmt.Sprintf("Courses in the %s specialization: %s.", g.Params.Specialization, courseList(g.Relations))
	}
}

func formatProjection(p *models.GpaProjection) string {
	parts := make([]string, 0, len(p.Breakdown))
	for _, c := range p.Breakdown {
		parts = append(parts, fmt.Sprintf("%s (%s, %dh)", c.CourseCode, c.Grade, c.Hours))
	}

	var b strings.Builder
	if p.CurrentHours > 0 {
		fmt.Fprintf(&b, "Starting from a GPA of %.2f over %d hours, ", p.CurrentGPA, p.CurrentHours)
	} else {
		b.WriteString("With no completed hours on record, ")
	}
	fmt.Fprintf(&b, "adding %s gives a projected GPA of %.2f over %d hours.", strings.Join(parts, ", "), p.ProjectedGPA, p.TotalHoursAfter)
	if p.DataSource == "records" {
		b.WriteString(" Your current standing was taken from your academic record.")
	}
	return b.String()
}

func courseLabel(r models.GraphRelation) string {
	if r.CourseName == "" {
		return r.CourseCode
	}
	return fmt.Sprintf("%s (%s)", r.CourseCode, r.CourseName)
}

func courseList(rs []models.GraphRelation) string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, courseLabel(r))
	}
	return strings.Join(out, ", ")
}
