package capability

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"academic-advisor/internal/models"
)

const DefaultGraphLabel = "Course Graph"

// GraphStore answers course, skill and specialization relations from the
// course_skills and course_specializations tables.
type GraphStore struct {
	db *sql.DB
}

func NewGraphStore(db *sql.DB) *GraphStore {
	return &GraphStore{db: db}
}

const (
	queryCourse = `SELECT c.name, COALESCE(sp.specialization, '')
		FROM courses c LEFT JOIN course_specializations sp ON sp.course_code = c.code
		WHERE c.code = $1`
	queryCourseSkills = `SELECT skill FROM course_skills WHERE course_code = $1 ORDER BY skill`
	querySkillCourses = `SELECT cs.course_code, c.name
		FROM course_skills cs JOIN courses c ON c.code = cs.course_code
		WHERE LOWER(cs.skill) = LOWER($1) ORDER BY cs.course_code`
	querySpecializationCourses = `SELECT sp.course_code, c.name
		FROM course_specializations sp JOIN courses c ON c.code = sp.course_code
		WHERE LOWER(sp.specialization) = LOWER($1) ORDER BY sp.course_code`
)

// RunGraphQuery looks up by course code first, then skill, then specialization.
func (g *GraphStore) RunGraphQuery(ctx context.Context, params models.GraphParams) (*models.GraphResult, error) {
	var (
		relations []models.GraphRelation
		err       error
	)
	switch {
	case params.CourseCode != "":
		relations, err = g.course(ctx, params.CourseCode)
	case params.Skill != "":
		relations, err = g.courses(ctx, querySkillCourses, params.Skill, func(r *models.GraphRelation) {
			r.Skills = []string{params.Skill}
		})
	case params.Specialization != "":
		relations, err = g.courses(ctx, querySpecializationCourses, params.Specialization, func(r *models.GraphRelation) {
			r.Specialization = params.Specialization
		})
	default:
		return nil, ErrNoResult
	}
	if err != nil {
		return nil, err
	}
	if len(relations) == 0 {
		return nil, ErrNoResult
	}
	return &models.GraphResult{Params: params, Relations: relations}, nil
}

func (g *GraphStore) course(ctx context.Context, code string) ([]models.GraphRelation, error) {
	code = normalizeCourseCode(code)
	rel := models.GraphRelation{CourseCode: code}

	err := g.db.QueryRowContext(ctx, queryCourse, code).Scan(&rel.CourseName, &rel.Specialization)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("postgres", err)
	}

	rows, err := g.db.QueryContext(ctx, queryCourseSkills, code)
	if err != nil {
		return nil, unavailable("postgres", err)
	}
	defer rows.Close()
	for rows.Next() {
		var skill string
		if err := rows.Scan(&skill); err != nil {
			return nil, unavailable("postgres", fmt.Errorf("scan skill: %w", err))
		}
		rel.Skills = append(rel.Skills, skill)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("postgres", err)
	}
	return []models.GraphRelation{rel}, nil
}

func (g *GraphStore) courses(ctx context.Context, query, arg string, decorate func(*models.GraphRelation)) ([]models.GraphRelation, error) {
	rows, err := g.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, unavailable("postgres", err)
	}
	defer rows.Close()

	var out []models.GraphRelation
	for rows.Next() {
		var rel models.GraphRelation
		if err := rows.Scan(&rel.CourseCode, &rel.CourseName); err != nil {
			return nil, unavailable("postgres", fmt.Errorf("scan course: %w", err))
		}
		decorate(&rel)
		out = append(out, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("postgres", err)
	}
	return out, nil
}

var (
	courseCodePattern     = regexp.MustCompile(`\b([A-Z]{2,4})\s?(\d{3})\b`)
	skillPattern          = regexp.MustCompile(`(?i)(?:courses?\s+(?:that\s+|which\s+)?(?:teach(?:es)?|cover(?:s)?)|learn|skill(?:\s+of)?)\s+([\p{L}][\p{L}\s&+#-]*)`)
	specializationPattern = regexp.MustCompile(`(?i)(?:specialization|track|major)\s+(?:in\s+|of\s+)?([\p{L}][\p{L}\s&-]*)`)
	specializationBefore  = regexp.MustCompile(`(?i)([\p{L}][\p{L}&-]*(?:\s+[\p{L}&-]+){0,3})\s+(?:specialization|track)`)
	arabicSkillPattern    = regexp.MustCompile(`مهارة\s+([\p{L}\s]+)`)
	arabicSpecPattern     = regexp.MustCompile(`تخصص\s+([\p{L}\s]+)`)
)

var stopTails = []string{" courses", " course", " skills", " skill", " specialization", " track", " please"}

// ExtractGraphParams pulls a course code, skill or specialization out of a
// question.
func ExtractGraphParams(question string) models.GraphParams {
	var p models.GraphParams
	if m := courseCodePattern.FindStringSubmatch(question); m != nil {
		p.CourseCode = m[1] + m[2]
		return p
	}
	if m := specializationPattern.FindStringSubmatch(question); m != nil {
		p.Specialization = cleanPhrase(m[1])
	} else if m := specializationBefore.FindStringSubmatch(question); m != nil {
		p.Specialization = cleanPhrase(trimLeadingWords(m[1]))
	} else if m := arabicSpecPattern.FindStringSubmatch(question); m != nil {
		p.Specialization = cleanPhrase(m[1])
	}
	if p.Specialization != "" {
		return p
	}
	if m := skillPattern.FindStringSubmatch(question); m != nil {
		p.Skill = cleanPhrase(m[1])
	} else if m := arabicSkillPattern.FindStringSubmatch(question); m != nil {
		p.Skill = cleanPhrase(m[1])
	}
	return p
}

var leadingWords = map[string]bool{
	"the": true, "a": true, "an": true, "in": true, "of": true, "for": true,
	"which": true, "what": true, "courses": true, "are": true, "is": true,
	"tell": true, "me": true, "about": true, "show": true, "list": true,
}

func trimLeadingWords(s string) string {
	words := strings.Fields(s)
	for len(words) > 1 && leadingWords[strings.ToLower(words[0])] {
		words = words[1:]
	}
	return strings.Join(words, " ")
}

func cleanPhrase(s string) string {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	for _, tail := range stopTails {
		if strings.HasSuffix(lower, tail) {
			s = strings.TrimSpace(s[:len(s)-len(tail)])
			lower = strings.ToLower(s)
		}
	}
	return s
}

// GraphAdapter answers graph_query.
type GraphAdapter struct {
	querier GraphQuerier
	label   string
}

func NewGraphAdapter(q GraphQuerier, label string) *GraphAdapter {
	if label == "" {
		label = DefaultGraphLabel
	}
	return &GraphAdapter{querier: q, label: label}
}

func (a *GraphAdapter) Name() string { return "graph" }
func (a *GraphAdapter) SourceLabel() string { return a.label }

func (a *GraphAdapter) Execute(ctx context.Context, req Request) (*models.CapabilityResult, error) {
	params := ExtractGraphParams(req.Query.Question)
	if params.Empty() {
		return nil, ErrNoResult
	}
	result, err := a.querier.RunGraphQuery(ctx, params)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(result.Relations))
	for _, r := range result.Relations {
		ids = append(ids, r.CourseCode)
	}
	return &models.CapabilityResult{Payload: result, SourceLabel: a.label, SourceIDs: ids}, nil
}
