package classifyacademicintent

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"academic-advisor/internal/advisor/intent"
	apperrors "academic-advisor/internal/common/errors"
	"academic-advisor/internal/common/llm"
	"academic-advisor/internal/common/logger"
	"academic-advisor/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testLogger struct {
	logger.Logger
}

func (l testLogger) With(fields map[string]interface{}) Logger {
	return testLogger{l.Logger.With(fields)}
}

type stubCompleter struct {
	reply string
}

func (s stubCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	return s.reply, nil
}

type stubClassifier struct {
	prediction models.Prediction
}

func (s stubClassifier) Classify(ctx context.Context, question string, history []models.Message) models.Prediction {
	return s.prediction
}

func createTestConfig() *Config {
	return &Config{Timeout: 5 * time.Second, ConfidenceThreshold: 0.5}
}

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               TaskType,
		ProcessInstanceKey: key * 10,
		ElementId:          "Activity_ClassifyAcademicIntent",
		CustomHeaders:      "{}",
		Retries:            3,
		Variables:          string(variablesJSON),
	}}
}

func TestHandler_Execute(t *testing.T) {
	tests := []struct {
		name       string
		prediction models.Prediction
		wantRouted string
	}{
		{
			name:       "confident prediction is kept",
			prediction: models.Prediction{Intent: models.IntentGraphQuery, Confidence: 0.8, Method: models.MethodLLM},
			wantRouted: "graph_query",
		},
		{
			name:       "low confidence routes to documents",
			prediction: models.Prediction{Intent: models.IntentSimulateGPA, Confidence: 0.2, Method: models.MethodLLM},
			wantRouted: "query_rag",
		},
		{
			name:       "failed classification stays general chat",
			prediction: models.Prediction{Intent: models.IntentGeneralChat, Method: models.MethodFailed, Failed: true},
			wantRouted: "general_chat",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(createTestConfig(), stubClassifier{tt.prediction}, testLogger{logger.NewTestLogger(t)})

			out := h.Execute(context.Background(), &Input{Question: "anything"})
			assert.Equal(t, tt.prediction.Intent.String(), out.Intent)
			assert.Equal(t, tt.prediction.Confidence, out.Confidence)
			assert.Equal(t, tt.wantRouted, out.RoutedIntent)
		})
	}
}

func TestHandler_Execute_WithClassifier(t *testing.T) {
	log := logger.NewTestLogger(t)
	classifier := intent.NewClassifier(intent.DefaultConfig(), stubCompleter{reply: `{"intent":"graph_query","confidence":0.85}`}, log)
	h := NewHandler(createTestConfig(), classifier, testLogger{log})

	out := h.Execute(context.Background(), &Input{Question: "Which courses prepare me for a career in data science?"})
	assert.Equal(t, "graph_query", out.Intent)
	assert.Equal(t, models.MethodLLM, out.Method)
}

func TestHandler_ParseInput(t *testing.T) {
	h := NewHandler(createTestConfig(), stubClassifier{}, testLogger{logger.NewTestLogger(t)})

	input, err := h.parseInput(createMockJob(1, map[string]interface{}{
		"question":     "what is my gpa",
		"chat_history": []interface{}{map[string]interface{}{"role": "assistant", "content": "Hello"}},
	}))
	require.NoError(t, err)
	assert.Equal(t, "what is my gpa", input.Question)
	require.Len(t, input.ChatHistory, 1)

	_, err = h.parseInput(createMockJob(2, map[string]interface{}{"chat_history": []interface{}{}}))
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}
