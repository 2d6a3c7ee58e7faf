package camunda

import (
	"errors"
	"testing"
	"time"

	"academic-advisor/internal/common/config"
	apperrors "academic-advisor/internal/common/errors"
	"academic-advisor/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRetryableZeebeError(t *testing.T) {
	tests := []struct {
		err  string
		want bool
	}{
		{"rpc error: code = Unavailable desc = connection refused", true},
		{"context deadline exceeded", true},
		{"write: broken pipe", true},
		{"rpc error: code = PermissionDenied", false},
		{"rpc error: code = NotFound desc = no such job", false},
	}
	for _, tt := range tests {
		t.Run(tt.err, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryableZeebeError(errors.New(tt.err)))
		})
	}
}

func TestMapZeebeError(t *testing.T) {
	assert.NoError(t, mapZeebeError(nil, "topology"))

	err := mapZeebeError(errors.New("context deadline exceeded"), "topology")
	stdErr, ok := apperrors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeTimeout, stdErr.Code)
	assert.Contains(t, stdErr.Details, "topology")

	err = mapZeebeError(errors.New("connection refused"), "connect")
	stdErr, ok = apperrors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeExternalService, stdErr.Code)
	assert.True(t, stdErr.Retryable)
}

func TestBackoff(t *testing.T) {
	rc := &RetryConfig{BaseDelay: time.Second, MaxDelay: 5 * time.Second}
	assert.Equal(t, time.Second, backoff(rc, 0))
	assert.Equal(t, 4*time.Second, backoff(rc, 2))
	assert.Equal(t, 5*time.Second, backoff(rc, 3))
	assert.Equal(t, 5*time.Second, backoff(rc, 70))
}

func TestConfigFromMillis(t *testing.T) {
	c := ConfigFromMillis("localhost:26500", 10000, 30000)
	assert.Equal(t, 10*time.Second, c.ConnectionTimeout)
	assert.Equal(t, 30*time.Second, c.RequestTimeout)
	assert.True(t, c.UsePlaintextConnection)
}

func TestManager_DisabledWorkerIsSkipped(t *testing.T) {
	m := NewManager(nil, nil, logger.NewTestLogger(t))

	started := m.Register("route-academic-query", config.WorkerConfig{Enabled: false}, nil)
	assert.False(t, started)
	assert.Empty(t, m.TaskTypes())
	m.Stop()
}

type recordingHandler struct {
	calls int
}

func (h *recordingHandler) Handle(client worker.JobClient, job entities.Job) {
	h.calls++
}

func TestManager_InstrumentCallsHandler(t *testing.T) {
	m := NewManager(nil, nil, logger.NewTestLogger(t))
	h := &recordingHandler{}

	m.instrument("route-academic-query", h)(nil, entities.Job{ActivatedJob: &pb.ActivatedJob{Key: 7}})
	assert.Equal(t, 1, h.calls)
}
