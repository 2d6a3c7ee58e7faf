package models

// Chunk is one retrieved passage.
type Chunk struct {
	Text     string  `json:"text"`
	SourceID string  `json:"source_id"`
	Score    float64 `json:"score"`
}

// ProgressSummary is the academic standing of one student against the study plan.
type ProgressSummary struct {
	UserID                   string   `json:"user_id"`
	CurrentGPA               float64  `json:"current_gpa"`
	GPAScale                 float64  `json:"gpa_scale"`
	CompletedHours           int      `json:"completed_hours"`
	RemainingHours           int      `json:"remaining_hours"`
	RemainingCoursesCount    int      `json:"remaining_courses_count"`
	CompletedCourses         []string `json:"completed_courses"`
	RegisterableNextSemester []string `json:"registerable_next_semester"`
}

// GraphParams are extracted from the question before a graph lookup.
type GraphParams struct {
	CourseCode     string `json:"course_code,omitempty"`
	Skill          string `json:"skill,omitempty"`
	Specialization string `json:"specialization,omitempty"`
}

func (p GraphParams) Empty() bool {
	return p.CourseCode == "" && p.Skill == "" && p.Specialization == ""
}

// GraphRelation is one course with the skills it teaches.
type GraphRelation struct {
	CourseCode     string   `json:"course_code"`
	CourseName     string   `json:"course_name,omitempty"`
	Specialization string   `json:"specialization,omitempty"`
	Skills         []string `json:"skills,omitempty"`
}

type GraphResult struct {
	Params    GraphParams     `json:"params"`
	Relations []GraphRelation `json:"relations"`
}

type PlannedCourse struct {
	CourseCode string  `json:"course_code"`
	Grade      string  `json:"grade"`
	Hours      int     `json:"hours"`
	Points     float64 `json:"points"`
}

// GpaProjection is the outcome of a GPA simulation.
type GpaProjection struct {
	CurrentGPA      float64         `json:"current_gpa"`
	CurrentHours    int             `json:"current_hours"`
	ProjectedGPA    float64         `json:"projected_gpa"`
	HoursAdded      int             `json:"hours_added"`
	TotalHoursAfter int             `json:"total_hours_after"`
	Breakdown       []PlannedCourse `json:"breakdown"`
	DataSource      string          `json:"data_source"`
}

// CapabilityResult is produced by one adapter and consumed once by the
// synthesizer. Payload holds one of []Chunk, *ProgressSummary, *GraphResult
// or *GpaProjection. A nil Payload means the capability found nothing.
type CapabilityResult struct {
	Payload     interface{} `json:"payload"`
	SourceLabel string      `json:"source_label"`
	SourceIDs   []string    `json:"source_ids,omitempty"`
	Confidence  *float64    `json:"confidence,omitempty"`
}

// Response is the answer returned to the caller.
type Response struct {
	Answer     string   `json:"answer"`
	Intent     Intent   `json:"intent"`
	Source     string   `json:"source"`
	Confidence float64  `json:"confidence"`
	Citations  []string `json:"citations"`
	RequestID  string   `json:"requestId,omitempty"`

	// FixedConfidence marks a Confidence set by the capability rather than
	// the classifier. Cached answers keep it; others take the confidence of
	// the request that reads them.
	FixedConfidence bool `json:"fixedConfidence,omitempty"`

	// Degraded responses come from a failure path and are never cached.
	Degraded bool `json:"-"`
}

// Clone copies the response so cached values are never shared mutably.
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	out := *r
	out.Citations = append([]string(nil), r.Citations...)
	if out.Citations == nil {
		out.Citations = []string{}
	}
	return &out
}
