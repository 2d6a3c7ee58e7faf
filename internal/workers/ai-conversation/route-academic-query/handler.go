package routeacademicquery

import (
	"context"
	"time"

	apperrors "academic-advisor/internal/common/errors"
	"academic-advisor/internal/common/metrics"
	"academic-advisor/internal/common/validation"
	"academic-advisor/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "route-academic-query"

type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

// Router is satisfied by *orchestrator.Router.
type Router interface {
	Route(ctx context.Context, q models.Query) (*models.Response, error)
}

type Handler struct {
	config       *Config
	router       Router
	errorHandler *apperrors.ErrorHandler
	logger       Logger
}

func NewHandler(config *Config, router Router, log Logger) *Handler {
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	l := log.With(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		router:       router,
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

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	variables, err := job.GetVariablesAsMap()
	if err != nil {
		h.failJob(ctx, client, job, apperrors.NewValidationError("variables", err.Error()))
		return
	}

	output, err := h.Execute(ctx, variables)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

// Execute validates the job variables and routes the question.
func (h *Handler) Execute(ctx context.Context, variables map[string]interface{}) (*Output, error) {
	q, err := validation.ValidateRequest(variables, validation.QuerySchema)
	if err != nil {
		return nil, err
	}

	resp, err := h.router.Route(ctx, q)
	if err != nil {
		return nil, err
	}
	return outputFromResponse(resp), nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.GetKey()).
		VariablesFromObject(output)
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

	h.logger.Info("job completed", map[string]interface{}{
		"jobKey":    job.GetKey(),
		"intent":    output.Intent,
		"requestId": output.RequestID,
	})
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := apperrors.Normalize(err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, stdErr)
}
