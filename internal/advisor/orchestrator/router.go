// Package orchestrator routes a student question through classification,
// capability dispatch, caching and answer synthesis.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"academic-advisor/internal/advisor/cache"
	"academic-advisor/internal/advisor/capability"
	"academic-advisor/internal/advisor/synthesis"
	apperrors "academic-advisor/internal/common/errors"
	"academic-advisor/internal/common/metrics"
	"academic-advisor/internal/common/observability"
	"academic-advisor/internal/common/validation"
	"academic-advisor/internal/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	outcomeAnswered  = "answered"
	outcomeDegraded  = "degraded"
	outcomeDemo      = "demo"
	outcomeFAQ       = "faq"
	outcomeCancelled = "cancelled"
)

type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

type Classifier interface {
	Classify(ctx context.Context, question string, history []models.Message) models.Prediction
}

type Synthesizer interface {
	Synthesize(ctx context.Context, q models.Query, intent models.Intent, result *models.CapabilityResult, confidence float64) *models.Response
}

type Cache interface {
	GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute cache.ComputeFunc) (*models.Response, bool, error)
}

// Alerter is satisfied by *aws.SNSClient.
type Alerter interface {
	Alert(ctx context.Context, subject, message string) error
}

// Deps are the collaborators of a Router. Alerter and Telemetry are optional.
type Deps struct {
	Classifier  Classifier
	Adapters    map[models.Intent]capability.Adapter
	Synthesizer Synthesizer
	Cache       Cache
	Alerter     Alerter
	Telemetry   *observability.Observability
}

type Router struct {
	config Config
	deps   Deps
	logger Logger
	alerts sync.WaitGroup
}

func NewRouter(config Config, deps Deps, log Logger) *Router {
	return &Router{config: config.withDefaults(), deps: deps, logger: log}
}

// Route answers q. The only error returned is a VALIDATION_ERROR
// StandardError; every downstream failure becomes a degraded Response.
func (r *Router) Route(ctx context.Context, q models.Query) (*models.Response, error) {
	if err := validation.ValidateQuery(q); err != nil {
		return nil, err
	}

	start := time.Now()
	requestID := uuid.NewString()

	ctx, span := r.deps.Telemetry.StartSpan(ctx, "advisor.route",
		attribute.String("advisor.request_id", requestID),
		attribute.Bool("advisor.demo", q.IsDemo),
	)
	defer span.End()

	if answer, ok := r.config.FAQ[cache.Normalize(q.Question)]; ok {
		resp := synthesis.FAQAnswer(answer)
		resp.RequestID = requestID
		span.SetAttributes(attribute.String("advisor.intent", resp.Intent.String()))
		r.logger.Info("question answered from FAQ", map[string]interface{}{"requestId": requestID})
		r.finish(ctx, resp.Intent, outcomeFAQ, false, start)
		return resp, nil
	}

	prediction := r.deps.Classifier.Classify(ctx, q.Question, q.ChatHistory)
	metrics.RouterClassifications.WithLabelValues(prediction.Method).Inc()

	intent, confidence, overridden := r.effectiveIntent(prediction)
	span.SetAttributes(
		attribute.String("advisor.intent", intent.String()),
		attribute.String("advisor.predicted_intent", prediction.Intent.String()),
		attribute.Float64("advisor.confidence", confidence),
		attribute.String("advisor.method", prediction.Method),
		attribute.Bool("advisor.fallback", overridden),
	)

	if r.blockedInDemo(intent, q) {
		r.logger.Info("personalized question refused in demo mode", map[string]interface{}{
			"requestId": requestID,
			"intent":    intent.String(),
		})
		resp := synthesis.DemoNotice(intent)
		resp.RequestID = requestID
		r.finish(ctx, intent, outcomeDemo, false, start)
		return resp, nil
	}

	key := cache.BuildKey(intent, q)
	resp, hit, err := r.deps.Cache.GetOrCompute(ctx, key, r.config.ttl(intent), r.compute(q, intent, confidence, requestID))
	if err != nil {
		// The shared computation keeps running for other waiters; this
		// caller gave up or the cache failed.
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Warn("routing abandoned", map[string]interface{}{
			"requestId": requestID,
			"intent":    intent.String(),
			"error":     err.Error(),
		})
		resp = synthesis.Degraded(intent)
		resp.RequestID = requestID
		r.finish(ctx, intent, outcomeCancelled, false, start)
		return resp, nil
	}

	metrics.RouterCacheLookups.WithLabelValues(intent.String(), cacheLabel(hit)).Inc()
	span.SetAttributes(
		attribute.Bool("advisor.cache_hit", hit),
		attribute.String("advisor.answer_intent", resp.Intent.String()),
	)

	outcome := outcomeAnswered
	if resp.Degraded {
		outcome = outcomeDegraded
	}
	// The key does not carry the confidence; a stored answer takes this
	// request's unless a capability fixed it.
	if hit && !resp.FixedConfidence {
		resp.Confidence = confidence
	}
	if overridden && !resp.Degraded {
		resp.Source += synthesis.FallbackMarker
	}
	resp.RequestID = requestID
	r.finish(ctx, intent, outcome, hit, start)

	r.logger.Info("question routed", map[string]interface{}{
		"requestId":  requestID,
		"intent":     resp.Intent.String(),
		"predicted":  prediction.Intent.String(),
		"method":     prediction.Method,
		"confidence": resp.Confidence,
		"cacheHit":   hit,
		"durationMs": time.Since(start).Milliseconds(),
	})
	return resp, nil
}

// Wait blocks until outstanding alerts have been sent.
func (r *Router) Wait() {
	r.alerts.Wait()
}

// effectiveIntent applies the confidence threshold and reports whether it
// overrode the prediction. A failed classification already reads
// general_chat/0 and is not rerouted.
func (r *Router) effectiveIntent(p models.Prediction) (models.Intent, float64, bool) {
	if p.Failed {
		return models.IntentGeneralChat, 0, false
	}
	if p.Confidence < r.config.ConfidenceThreshold && p.Intent != models.IntentQueryRAG {
		metrics.RouterThresholdOverrides.WithLabelValues(p.Intent.String()).Inc()
		return models.IntentQueryRAG, p.Confidence, true
	}
	return p.Intent, p.Confidence, false
}

// blockedInDemo keeps personal records out of demo and anonymous sessions. A
// GPA simulation that states its own GPA and hours needs no records.
func (r *Router) blockedInDemo(intent models.Intent, q models.Query) bool {
	if !intent.Personalized() {
		return false
	}
	if !q.IsDemo && strings.TrimSpace(q.UserID) != "" {
		return false
	}
	return !(intent == models.IntentSimulateGPA && capability.HasExplicitStanding(q.Question))
}

func (r *Router) compute(q models.Query, intent models.Intent, confidence float64, requestID string) cache.ComputeFunc {
	return func(ctx context.Context) (*models.Response, error) {
		resp := r.dispatch(ctx, q, intent, confidence)
		if resp.Degraded {
			metrics.RouterDegraded.WithLabelValues(intent.String()).Inc()
			r.alert(requestID, intent, q)
		}
		return resp, nil
	}
}

func (r *Router) dispatch(ctx context.Context, q models.Query, intent models.Intent, confidence float64) *models.Response {
	if intent == models.IntentGeneralChat {
		return r.deps.Synthesizer.Synthesize(ctx, q, intent, nil, confidence)
	}

	result, label, err := r.execute(ctx, intent, q)
	if capability.IsUnavailable(err) && intent != models.IntentQueryRAG {
		metrics.RouterFallbacks.WithLabelValues(intent.String()).Inc()
		r.logger.Warn("capability unavailable, falling back to documents", unavailableFields(intent, err))
		intent = models.IntentQueryRAG
		result, label, err = r.execute(ctx, intent, q)
	}

	switch {
	case err == nil:
		return r.deps.Synthesizer.Synthesize(ctx, q, intent, result, confidence)
	case errors.Is(err, capability.ErrNoResult):
		r.logger.Info("capability found nothing", map[string]interface{}{
			"intent":    intent.String(),
			"errorCode": string(apperrors.ErrCodeNoResult),
			"source":    label,
		})
		return synthesis.NoResult(intent, label)
	default:
		r.logger.Error("no capability could answer", unavailableFields(intent, err))
		return synthesis.Degraded(models.IntentQueryRAG)
	}
}

func unavailableFields(intent models.Intent, err error) map[string]interface{} {
	stdErr := apperrors.NewCapabilityUnavailableError(intent.String(), err)
	fields := map[string]interface{}{
		"intent":        intent.String(),
		"errorCode":     string(stdErr.Code),
		"errorCategory": apperrors.GetErrorCategory(stdErr.Code),
		"error":         err.Error(),
	}
	if cause, ok := apperrors.AsStandardError(err); ok {
		fields["cause"] = string(cause.Code)
	}
	return fields
}

func (r *Router) execute(ctx context.Context, intent models.Intent, q models.Query) (*models.CapabilityResult, string, error) {
	adapter, ok := r.deps.Adapters[intent]
	if !ok || adapter == nil {
		return nil, "", fmt.Errorf("%w: no adapter for %s", capability.ErrUnavailable, intent)
	}

	timeout := r.config.StructuredTimeout
	if intent == models.IntentQueryRAG {
		timeout = r.config.RetrievalTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ctx, span := r.deps.Telemetry.StartSpan(callCtx, "advisor.capability",
		attribute.String("advisor.capability", adapter.Name()),
	)
	defer span.End()

	result, err := adapter.Execute(ctx, capability.Request{Query: q, TopK: r.config.TopK})
	if err != nil && !errors.Is(err, capability.ErrNoResult) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		// A backend that ran out of time or failed without classifying its
		// error is treated as unavailable.
		if !errors.Is(err, capability.ErrUnavailable) {
			err = fmt.Errorf("%w: %s: %v", capability.ErrUnavailable, adapter.Name(), err)
		}
	}
	return result, adapter.SourceLabel(), err
}

func (r *Router) alert(requestID string, intent models.Intent, q models.Query) {
	if r.deps.Alerter == nil {
		return
	}
	r.alerts.Add(1)
	go func() {
		defer r.alerts.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.config.AlertTimeout)
		defer cancel()

		subject := fmt.Sprintf("%s: degraded response (%s)", r.config.ServiceName, intent)
		message := fmt.Sprintf("request %s for intent %s was answered in degraded mode.\nuser: %s\nquestion length: %d",
			requestID, intent, q.UserID, len(q.Question))
		if err := r.deps.Alerter.Alert(ctx, subject, message); err != nil {
			r.logger.Warn("degraded alert not sent", map[string]interface{}{
				"requestId": requestID,
				"error":     err.Error(),
			})
		}
	}()
}

func (r *Router) finish(ctx context.Context, intent models.Intent, outcome string, hit bool, start time.Time) {
	metrics.RouterRequests.WithLabelValues(intent.String(), outcome).Inc()
	metrics.RouterLatency.WithLabelValues(intent.String(), cacheLabel(hit)).Observe(time.Since(start).Seconds())
	r.deps.Telemetry.RecordRoute(ctx, intent.String(), hit, outcome == outcomeDegraded || outcome == outcomeCancelled)
}

func cacheLabel(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}
