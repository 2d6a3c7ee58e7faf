package invalidateadvisorcache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"academic-advisor/internal/advisor/cache"
	apperrors "academic-advisor/internal/common/errors"
	"academic-advisor/internal/common/metrics"
	"academic-advisor/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "invalidate-advisor-cache"

type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

// Invalidator is satisfied by *cache.ResponseCache.
type Invalidator interface {
	Invalidate(ctx context.Context, key string) int
	InvalidatePrefix(ctx context.Context, prefix string) (int, error)
}

type Handler struct {
	config       *Config
	cache        Invalidator
	errorHandler *apperrors.ErrorHandler
	logger       Logger
}

func NewHandler(config *Config, c Invalidator, log Logger) *Handler {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	l := log.With(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		cache:        c,
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

	var input Input
	if err := json.Unmarshal([]byte(job.GetVariables()), &input); err != nil {
		h.fail(ctx, client, job, apperrors.NewValidationError("variables", err.Error()))
		return
	}

	output, err := h.Execute(ctx, &input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

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

// Execute removes the requested entries. A user id clears every
// personalized answer of that student.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	userID := strings.TrimSpace(input.UserID)
	key := strings.TrimSpace(input.Key)
	if userID == "" && key == "" {
		return nil, apperrors.NewValidationError("user_id", "user_id or key is required")
	}

	total := 0
	if key != "" {
		total += h.cache.Invalidate(ctx, key)
	}
	if userID != "" {
		for _, in := range models.AllIntents {
			if !in.Personalized() {
				continue
			}
			n, err := h.cache.InvalidatePrefix(ctx, cache.UserPrefix(in, userID))
			total += n
			if err != nil {
				return nil, apperrors.NewCacheFailureError(err)
			}
		}
	}

	metrics.CacheInvalidations.Add(float64(total))
	h.logger.Info("advisor cache invalidated", map[string]interface{}{
		"userId":      userID,
		"key":         key,
		"invalidated": total,
	})
	return &Output{Invalidated: total}, nil
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.Normalize(err).Code)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}
