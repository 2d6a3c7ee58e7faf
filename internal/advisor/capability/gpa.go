package capability

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"academic-advisor/internal/models"
)

const (
	DataSourceQuestion = "question"
	DataSourceRecords  = "records"
	DataSourceNone     = "none"
)

// Simulator projects a cumulative GPA. It is pure and safe for concurrent use.
type Simulator struct {
	points map[string]float64
	scale  float64
}

func NewSimulator(gradePoints map[string]float64, scale float64) *Simulator {
	if scale == 0 {
		scale = 4.0
	}
	return &Simulator{points: upperKeys(gradePoints), scale: scale}
}

// GradePoints returns the points for a letter grade.
func (s *Simulator) GradePoints(grade string) (float64, bool) {
	p, ok := s.points[strings.ToUpper(strings.TrimSpace(grade))]
	return p, ok
}

func (s *Simulator) SimulateGPA(ctx context.Context, currentGPA float64, currentHours int, planned []models.PlannedCourse) (*models.GpaProjection, error) {
	if len(planned) == 0 {
		return nil, ErrNoResult
	}
	if currentGPA < 0 || currentGPA > s.scale {
		return nil, fmt.Errorf("current gpa %.2f outside 0..%.2f", currentGPA, s.scale)
	}
	if currentHours < 0 {
		currentHours = 0
	}

	points := currentGPA * float64(currentHours)
	added := 0
	breakdown := make([]models.PlannedCourse, 0, len(planned))
	for _, pc := range planned {
		gp, ok := s.GradePoints(pc.Grade)
		if !ok {
			return nil, fmt.Errorf("unknown grade %q for %s", pc.Grade, pc.CourseCode)
		}
		if pc.Hours <= 0 {
			return nil, fmt.Errorf("course %s has no credit hours", pc.CourseCode)
		}
		pc.Points = gp
		points += gp * float64(pc.Hours)
		added += pc.Hours
		breakdown = append(breakdown, pc)
	}

	total := currentHours + added
	projected := 0.0
	if total > 0 {
		projected = round2(points / float64(total))
	}

	return &models.GpaProjection{
		CurrentGPA:      round2(currentGPA),
		CurrentHours:    currentHours,
		ProjectedGPA:    projected,
		HoursAdded:      added,
		TotalHoursAfter: total,
		Breakdown:       breakdown,
	}, nil
}

var (
	gradeThenCourse   = regexp.MustCompile(`(?:^|[\s,(])([ABCDF][+-]?)\s+(?:in|for|on|في)\s+([A-Z]{2,4}\s?\d{3})`)
	courseThenGrade   = regexp.MustCompile(`([A-Z]{2,4}\s?\d{3})\s*(?:[:=]|->)\s*([ABCDF][+-]?)(?:$|[\s,.;)])`)
	explicitGPA       = regexp.MustCompile(`(?i)(?:gpa|معدلي|معدل)\s*(?:is|of|=|:|هو)?\s*(\d(?:\.\d{1,2})?)\b`)
	explicitHours     = regexp.MustCompile(`(?i)\b(\d{1,3})\s*(?:completed\s+|credit\s+)?(?:hours|ساعة|ساعات)`)
	errNoPlannedGrade = errors.New("no planned grades in question")
)

// ParsePlannedCourses extracts grade/course pairs such as "A in CS201" or
// "CS201: B+". Later mentions of the same course win.
func ParsePlannedCourses(question string) []models.PlannedCourse {
	found := make(map[string]string)
	var order []string
	add := func(code, grade string) {
		code = normalizeCourseCode(code)
		if _, seen := found[code]; !seen {
			order = append(order, code)
		}
		found[code] = grade
	}
	for _, m := range gradeThenCourse.FindAllStringSubmatch(question, -1) {
		add(m[2], m[1])
	}
	for _, m := range courseThenGrade.FindAllStringSubmatch(question, -1) {
		add(m[1], m[2])
	}

	out := make([]models.PlannedCourse, 0, len(order))
	for _, code := range order {
		out = append(out, models.PlannedCourse{CourseCode: code, Grade: found[code]})
	}
	return out
}

// GPAAdapter answers simulate_gpa. The standing comes from the question when
// stated, otherwise from the student's record, otherwise zero.
type GPAAdapter struct {
	simulator    GpaSimulator
	progress     ProgressAnalyzer
	catalog      CourseCatalog
	defaultHours int
	label        string
	logger       Logger
}

func NewGPAAdapter(sim GpaSimulator, progress ProgressAnalyzer, catalog CourseCatalog, defaultHours int, label string, log Logger) *GPAAdapter {
	if defaultHours <= 0 {
		defaultHours = 3
	}
	return &GPAAdapter{
		simulator:    sim,
		progress:     progress,
		catalog:      catalog,
		defaultHours: defaultHours,
		label:        label,
		logger:       log,
	}
}

func (a *GPAAdapter) Name() string { return "gpa" }
func (a *GPAAdapter) SourceLabel() string { return a.label }

func (a *GPAAdapter) Execute(ctx context.Context, req Request) (*models.CapabilityResult, error) {
	planned := ParsePlannedCourses(req.Query.Question)
	if len(planned) == 0 {
		a.logger.Info("gpa simulation skipped", map[string]interface{}{"reason": errNoPlannedGrade.Error()})
		return nil, ErrNoResult
	}

	hours := a.courseHours(ctx)
	for i := range planned {
		if h, ok := hours[planned[i].CourseCode]; ok && h > 0 {
			planned[i].Hours = h
		} else {
			planned[i].Hours = a.defaultHours
		}
	}

	gpa, credit, source := a.standing(ctx, req.Query)
	projection, err := a.simulator.SimulateGPA(ctx, gpa, credit, planned)
	if err != nil {
		if errors.Is(err, ErrNoResult) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrNoResult, err)
	}
	projection.DataSource = source

	return &models.CapabilityResult{Payload: projection, SourceLabel: a.label}, nil
}

func (a *GPAAdapter) courseHours(ctx context.Context) map[string]int {
	if a.catalog == nil {
		return nil
	}
	hours, err := a.catalog.CourseHours(ctx)
	if err != nil {
		a.logger.Warn("study plan unavailable, using default hours", map[string]interface{}{"error": err.Error()})
		return nil
	}
	return hours
}

func (a *GPAAdapter) standing(ctx context.Context, q models.Query) (float64, int, string) {
	gpa, hasGPA := parseExplicitGPA(q.Question)
	credit, hasHours := parseExplicitHours(q.Question)
	if hasGPA && hasHours {
		return gpa, credit, DataSourceQuestion
	}

	if a.progress != nil && q.UserID != "" {
		summary, err := a.progress.GetProgressAnalysis(ctx, q.UserID)
		switch {
		case err == nil:
			if !hasGPA {
				gpa = summary.CurrentGPA
			}
			if !hasHours {
				credit = summary.CompletedHours
			}
			return gpa, credit, DataSourceRecords
		case !errors.Is(err, ErrNoResult):
			a.logger.Warn("progress lookup failed during gpa simulation", map[string]interface{}{
				"userId": q.UserID,
				"error":  err.Error(),
			})
		}
	}

	if hasGPA || hasHours {
		return gpa, credit, DataSourceQuestion
	}
	return 0, 0, DataSourceNone
}

// HasExplicitStanding reports whether the question states both a current GPA
// and completed hours, enough to simulate without the student's records.
func HasExplicitStanding(question string) bool {
	_, hasGPA := parseExplicitGPA(question)
	_, hasHours := parseExplicitHours(question)
	return hasGPA && hasHours
}

func parseExplicitGPA(question string) (float64, bool) {
	m := explicitGPA.FindStringSubmatch(question)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseExplicitHours(question string) (int, bool) {
	m := explicitHours.FindStringSubmatch(question)
	if m == nil {
		return 0, false
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return v, true
}
