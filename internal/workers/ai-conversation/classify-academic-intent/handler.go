package classifyacademicintent

import (
	"context"
	"encoding/json"
	"time"

	apperrors "academic-advisor/internal/common/errors"
	"academic-advisor/internal/common/metrics"
	"academic-advisor/internal/common/validation"
	"academic-advisor/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "classify-academic-intent"

type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

// Classifier is satisfied by *intent.Classifier.
type Classifier interface {
	Classify(ctx context.Context, question string, history []models.Message) models.Prediction
}

type Handler struct {
	config       *Config
	classifier   Classifier
	errorHandler *apperrors.ErrorHandler
	logger       Logger
}

func NewHandler(config *Config, classifier Classifier, log Logger) *Handler {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	l := log.With(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		classifier:   classifier,
		errorHandler: apperrors.NewErrorHandler(l),
		logger:       l,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := h.parseInput(job)
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.ErrCodeValidation)).Inc()
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	output := h.Execute(ctx, input)

	cmd, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, apperrors.NewValidationError("variables", err.Error())
	}
	result, err := validation.ValidateInput(variables, validation.ClassifySchema)
	if err != nil {
		return nil, apperrors.NewValidationError("variables", err.Error())
	}
	if !result.Valid {
		return nil, apperrors.NewValidationError(result.Errors[0].Field, result.Errors[0].Message)
	}

	var input Input
	if err := json.Unmarshal([]byte(job.GetVariables()), &input); err != nil {
		return nil, apperrors.NewValidationError("variables", err.Error())
	}
	if err := validation.ValidateQuery(models.Query{Question: input.Question, ChatHistory: input.ChatHistory}); err != nil {
		return nil, err
	}
	return &input, nil
}

// Execute classifies the question. Classification never fails; a failed
// prediction reads general_chat with confidence 0.
func (h *Handler) Execute(ctx context.Context, input *Input) *Output {
	p := h.classifier.Classify(ctx, input.Question, input.ChatHistory)

	routed := p.Intent
	if !p.Failed && p.Confidence < h.config.ConfidenceThreshold {
		routed = models.IntentQueryRAG
	}

	h.logger.Info("intent classified", map[string]interface{}{
		"intent":     p.Intent.String(),
		"routed":     routed.String(),
		"confidence": p.Confidence,
		"method":     p.Method,
	})

	return &Output{
		Intent:       p.Intent.String(),
		Confidence:   p.Confidence,
		Method:       p.Method,
		RoutedIntent: routed.String(),
	}
}
