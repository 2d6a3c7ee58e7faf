package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartSpan_RecordsAttributes(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	obs := New("academic-advisor-test", WithSpanProcessor(recorder))
	defer obs.Shutdown()

	_, span := obs.StartSpan(context.Background(), "advisor.route", attribute.String("intent", "query_rag"))
	span.SetAttributes(attribute.Bool("cache.hit", true))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "advisor.route", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.String("intent", "query_rag"))
	assert.Contains(t, spans[0].Attributes(), attribute.Bool("cache.hit", true))
}

func TestNilObservabilityIsSafe(t *testing.T) {
	var obs *Observability
	ctx, span := obs.StartSpan(context.Background(), "noop")
	span.End()
	obs.RecordRoute(ctx, "general_chat", false, false)
	obs.RecordJobProcessed(ctx, "route-academic-query")
	obs.Shutdown()
}
