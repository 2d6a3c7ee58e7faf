package capability

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"
	"strings"

	"academic-advisor/internal/models"

	"github.com/lib/pq"
)

type PlanCourse struct {
	Code          string
	Name          string
	Hours         int
	Prerequisites []string
}

type AcademicSettings struct {
	GPAScale       float64
	TotalPlanHours int
	GradePoints    map[string]float64
}

// ProgressStore computes academic standing from Postgres. It reads the study
// plan from courses and the student's record from student_grades.
type ProgressStore struct {
	db       *sql.DB
	settings AcademicSettings
	points   map[string]float64
}

func NewProgressStore(db *sql.DB, settings AcademicSettings) *ProgressStore {
	if settings.GPAScale == 0 {
		settings.GPAScale = 4.0
	}
	if settings.TotalPlanHours == 0 {
		settings.TotalPlanHours = 130
	}
	return &ProgressStore{db: db, settings: settings, points: upperKeys(settings.GradePoints)}
}

const (
	queryStudyPlan     = `SELECT code, name, hours, prerequisites FROM courses ORDER BY code`
	queryStudentGrades = `SELECT course_code, grade FROM student_grades WHERE user_id = $1`
)

func (s *ProgressStore) loadPlan(ctx context.Context) (map[string]PlanCourse, error) {
	rows, err := s.db.QueryContext(ctx, queryStudyPlan)
	if err != nil {
		return nil, unavailable("postgres", err)
	}
	defer rows.Close()

	plan := make(map[string]PlanCourse)
	for rows.Next() {
		var c PlanCourse
		if err := rows.Scan(&c.Code, &c.Name, &c.Hours, pq.Array(&c.Prerequisites)); err != nil {
			return nil, unavailable("postgres", fmt.Errorf("scan course: %w", err))
		}
		c.Code = normalizeCourseCode(c.Code)
		plan[c.Code] = c
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("postgres", err)
	}
	return plan, nil
}

// CourseHours returns credit hours per plan course.
func (s *ProgressStore) CourseHours(ctx context.Context) (map[string]int, error) {
	plan, err := s.loadPlan(ctx)
	if err != nil {
		return nil, err
	}
	hours := make(map[string]int, len(plan))
	for code, c := range plan {
		hours[code] = c.Hours
	}
	return hours, nil
}

func (s *ProgressStore) GetProgressAnalysis(ctx context.Context, userID string) (*models.ProgressSummary, error) {
	plan, err := s.loadPlan(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, queryStudentGrades, userID)
	if err != nil {
		return nil, unavailable("postgres", err)
	}
	defer rows.Close()

	grades := make(map[string]string)
	for rows.Next() {
		var code, grade string
		if err := rows.Scan(&code, &grade); err != nil {
			return nil, unavailable("postgres", fmt.Errorf("scan grade: %w", err))
		}
		grades[normalizeCourseCode(code)] = strings.ToUpper(strings.TrimSpace(grade))
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("postgres", err)
	}
	if len(grades) == 0 {
		return nil, ErrNoResult
	}

	var points float64
	var hours int
	completed := make([]string, 0, len(grades))
	for code, grade := range grades {
		completed = append(completed, code)
		course, inPlan := plan[code]
		gp, graded := s.points[grade]
		if !inPlan || !graded {
			continue
		}
		points += gp * float64(course.Hours)
		hours += course.Hours
	}
	sort.Strings(completed)

	var registerable []string
	remainingCourses := 0
	for code, course := range plan {
		if _, done := grades[code]; done {
			continue
		}
		remainingCourses++
		if prerequisitesMet(course.Prerequisites, grades) {
			registerable = append(registerable, code)
		}
	}
	sort.Strings(registerable)

	gpa := 0.0
	if hours > 0 {
		gpa = round2(points / float64(hours))
	}
	remaining := s.settings.TotalPlanHours - hours
	if remaining < 0 {
		remaining = 0
	}

	return &models.ProgressSummary{
		UserID:                   userID,
		CurrentGPA:               gpa,
		GPAScale:                 s.settings.GPAScale,
		CompletedHours:           hours,
		RemainingHours:           remaining,
		RemainingCoursesCount:    remainingCourses,
		CompletedCourses:         completed,
		RegisterableNextSemester: registerable,
	}, nil
}

func prerequisitesMet(prereqs []string, done map[string]string) bool {
	for _, p := range prereqs {
		if _, ok := done[normalizeCourseCode(p)]; !ok {
			return false
		}
	}
	return true
}

// ProgressAdapter answers analyze_progress.
type ProgressAdapter struct {
	analyzer ProgressAnalyzer
	label    string
}

func NewProgressAdapter(a ProgressAnalyzer, label string) *ProgressAdapter {
	return &ProgressAdapter{analyzer: a, label: label}
}

func (a *ProgressAdapter) Name() string { return "progress" }
func (a *ProgressAdapter) SourceLabel() string { return a.label }

func (a *ProgressAdapter) Execute(ctx context.Context, req Request) (*models.CapabilityResult, error) {
	summary, err := a.analyzer.GetProgressAnalysis(ctx, req.Query.UserID)
	if err != nil {
		return nil, err
	}
	return &models.CapabilityResult{Payload: summary, SourceLabel: a.label}, nil
}

func normalizeCourseCode(code string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(code), " ", ""))
}

func upperKeys(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[strings.ToUpper(strings.TrimSpace(k))] = v
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
