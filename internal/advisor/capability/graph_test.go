package capability

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"academic-advisor/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractGraphParams(t *testing.T) {
	tests := []struct {
		question string
		want     models.GraphParams
	}{
		{"Which skills does CS 301 teach?", models.GraphParams{CourseCode: "CS301"}},
		{"What will I learn in NLP401?", models.GraphParams{CourseCode: "NLP401"}},
		{"Which courses teach Machine Learning?", models.GraphParams{Skill: "Machine Learning"}},
		{"What courses are in the AI specialization?", models.GraphParams{Specialization: "AI"}},
		{"Tell me about the Software Engineering track", models.GraphParams{Specialization: "Software Engineering"}},
		{"specialization in Information Security", models.GraphParams{Specialization: "Information Security"}},
		{"hello there", models.GraphParams{}},
	}

	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractGraphParams(tt.question))
		})
	}
}

func TestGraphStore_Course(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewGraphStore(db)

	mock.ExpectQuery(regexp.QuoteMeta(queryCourse)).
		WithArgs("AI300").
		WillReturnRows(sqlmock.NewRows([]string{"name", "specialization"}).AddRow("Intro to AI", "AI_DS"))
	mock.ExpectQuery(regexp.QuoteMeta(queryCourseSkills)).
		WithArgs("AI300").
		WillReturnRows(sqlmock.NewRows([]string{"skill"}).AddRow("Logic").AddRow("Machine Learning"))

	res, err := store.RunGraphQuery(context.Background(), models.GraphParams{CourseCode: "ai300"})
	require.NoError(t, err)
	require.Len(t, res.Relations, 1)
	assert.Equal(t, "Intro to AI", res.Relations[0].CourseName)
	assert.Equal(t, "AI_DS", res.Relations[0].Specialization)
	assert.Equal(t, []string{"Logic", "Machine Learning"}, res.Relations[0].Skills)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGraphStore_UnknownCourseIsNoResult(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewGraphStore(db)

	mock.ExpectQuery(regexp.QuoteMeta(queryCourse)).
		WithArgs("XX999").
		WillReturnRows(sqlmock.NewRows([]string{"name", "specialization"}))

	_, err := store.RunGraphQuery(context.Background(), models.GraphParams{CourseCode: "XX999"})
	assert.ErrorIs(t, err, ErrNoResult)
}

func TestGraphStore_SkillAndSpecialization(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewGraphStore(db)

	mock.ExpectQuery(regexp.QuoteMeta(querySkillCourses)).
		WithArgs("Statistics").
		WillReturnRows(sqlmock.NewRows([]string{"course_code", "name"}).AddRow("DS310", "Data Science"))
	mock.ExpectQuery(regexp.QuoteMeta(querySpecializationCourses)).
		WithArgs("AI_DS").
		WillReturnRows(sqlmock.NewRows([]string{"course_code", "name"}).
			AddRow("AI300", "Intro to AI").
			AddRow("DS310", "Data Science"))

	res, err := store.RunGraphQuery(context.Background(), models.GraphParams{Skill: "Statistics"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Statistics"}, res.Relations[0].Skills)

	res, err = store.RunGraphQuery(context.Background(), models.GraphParams{Specialization: "AI_DS"})
	require.NoError(t, err)
	assert.Len(t, res.Relations, 2)
	assert.Equal(t, "AI_DS", res.Relations[1].Specialization)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGraphStore_DatabaseError(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewGraphStore(db)

	mock.ExpectQuery(regexp.QuoteMeta(querySkillCourses)).
		WithArgs("Python").
		WillReturnError(errors.New("timeout"))

	_, err := store.RunGraphQuery(context.Background(), models.GraphParams{Skill: "Python"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

type fakeGraph struct {
	got models.GraphParams
	res *models.GraphResult
	err error
}

func (f *fakeGraph) RunGraphQuery(ctx context.Context, p models.GraphParams) (*models.GraphResult, error) {
	f.got = p
	return f.res, f.err
}

func TestGraphAdapter_Execute(t *testing.T) {
	fg := &fakeGraph{res: &models.GraphResult{Relations: []models.GraphRelation{{CourseCode: "CS201"}}}}
	a := NewGraphAdapter(fg, "")

	res, err := a.Execute(context.Background(), Request{Query: models.Query{Question: "What does CS201 teach?"}})
	require.NoError(t, err)
	assert.Equal(t, "CS201", fg.got.CourseCode)
	assert.Equal(t, []string{"CS201"}, res.SourceIDs)
	assert.Equal(t, DefaultGraphLabel, res.SourceLabel)

	_, err = a.Execute(context.Background(), Request{Query: models.Query{Question: "how are you"}})
	assert.ErrorIs(t, err, ErrNoResult)
}
