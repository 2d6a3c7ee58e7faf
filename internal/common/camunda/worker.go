// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"sync"
	"time"

	"academic-advisor/internal/common/config"
	"academic-advisor/internal/common/observability"

	"go.opentelemetry.io/otel/attribute"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// JobHandler matches the handler signature expected by the Zeebe client.
// Handlers complete or fail the job themselves.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

// WorkerOpener is the part of zbc.Client the manager needs.
type WorkerOpener interface {
	NewJobWorker() worker.JobWorkerBuilderStep1
}

// Manager opens one job worker per task type and closes them together.
type Manager struct {
	client    WorkerOpener
	telemetry *observability.Observability
	logger    Logger
	mu        sync.Mutex
	workers   map[string]worker.JobWorker
}

// NewManager creates a manager. telemetry may be nil.
func NewManager(client WorkerOpener, telemetry *observability.Observability, log Logger) *Manager {
	return &Manager{
		client:    client,
		telemetry: telemetry,
		logger:    log,
		workers:   map[string]worker.JobWorker{},
	}
}

// NewManagerFromClient uses the connected gateway client.
func NewManagerFromClient(c *Client, telemetry *observability.Observability, log Logger) *Manager {
	return NewManager(c.GetClient(), telemetry, log)
}

// Register opens a worker for taskType unless it is disabled in config.
// It reports whether a worker was started.
func (m *Manager) Register(taskType string, wcfg config.WorkerConfig, handler JobHandler) bool {
	if !wcfg.Enabled {
		m.logger.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.workers[taskType]; exists {
		m.logger.Warn("worker already registered", map[string]interface{}{"taskType": taskType})
		return false
	}

	jw := m.client.NewJobWorker().
		JobType(taskType).
		Handler(m.instrument(taskType, handler)).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(time.Duration(wcfg.Timeout) * time.Millisecond).
		Open()
	m.workers[taskType] = jw

	m.logger.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": wcfg.MaxJobsActive,
		"timeoutMs":     wcfg.Timeout,
	})
	return true
}

// instrument records a span and job metrics around every activation.
func (m *Manager) instrument(taskType string, handler JobHandler) worker.JobHandler {
	return func(client worker.JobClient, job entities.Job) {
		start := time.Now()
		ctx, span := m.telemetry.StartSpan(context.Background(), "zeebe.job",
			attribute.String("zeebe.task_type", taskType),
			attribute.Int64("zeebe.job_key", job.GetKey()),
		)
		defer span.End()

		handler.Handle(client, job)

		m.telemetry.RecordJobProcessed(ctx, taskType)
		m.telemetry.RecordJobDuration(ctx, time.Since(start), taskType)
	}
}

// TaskTypes lists the running workers.
func (m *Manager) TaskTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.workers))
	for t := range m.workers {
		out = append(out, t)
	}
	return out
}

// Stop closes every worker and waits for in-flight jobs to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for taskType, jw := range m.workers {
		m.logger.Info("stopping worker", map[string]interface{}{"taskType": taskType})
		jw.Close()
		jw.AwaitClose()
	}
	m.workers = map[string]worker.JobWorker{}
}
