package intent

import (
	"testing"

	"academic-advisor/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestKeywordMatcher_Match(t *testing.T) {
	km := NewKeywordMatcher()

	tests := []struct {
		name     string
		question string
		want     models.Intent
		ok       bool
	}{
		{"gpa question", "What is my GPA?", models.IntentAnalyzeProgress, true},
		{"arabic progress", "كم عدد الساعات المتبقية لي؟", models.IntentAnalyzeProgress, true},
		{"expected gpa is a simulation", "What would my expected GPA be?", models.IntentSimulateGPA, true},
		{"arabic simulation", "احسب معدلي إذا حصلت على A", models.IntentSimulateGPA, true},
		{"skills", "Which skills does CS301 teach?", models.IntentGraphQuery, true},
		{"regulations", "What are the attendance regulations?", models.IntentQueryRAG, true},
		{"arabic regulation", "ما هي لائحة الحضور؟", models.IntentQueryRAG, true},
		{"greeting", "Hello!", models.IntentGeneralChat, true},
		{"word boundary", "This is a high priority thing", "", false},
		{"no keywords", "Tell me about the cafeteria", "", false},
		{"tie goes to llm", "hello, which skills do I need?", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := km.Match(tt.question)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestKeywordMatcher_CountsDistinctKeywords(t *testing.T) {
	km := NewKeywordMatcher()

	counts := km.Counts("gpa gpa remaining")
	assert.Equal(t, 2, counts[models.IntentAnalyzeProgress])

	counts = km.Counts("expected gpa")
	assert.Equal(t, 1, counts[models.IntentSimulateGPA])
	assert.Equal(t, 0, counts[models.IntentAnalyzeProgress])
}
