// Package synthesis turns capability results into the answer returned to the
// student.
package synthesis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "academic-advisor/internal/common/errors"
	"academic-advisor/internal/common/llm"
	"academic-advisor/internal/models"
)

const (
	UnavailableAnswer = "The assistant is temporarily unavailable. Please try again in a moment."
	NoResultAnswer    = "I couldn't find information to answer that question. Try rephrasing it or ask about a specific course or regulation."
	DemoAnswer        = "Demo mode cannot access personal academic records. Please sign in with your student account to use this feature."

	NoResultConfidence = 0.1

	SourceUnavailable = "Unavailable"
	SourceDemo        = "Demo Mode"
	SourceFAQ         = "FAQ Database"
	DefaultChatLabel  = "General Chat"

	// FallbackMarker is appended to the source of answers whose intent was
	// overridden for low classifier confidence.
	FallbackMarker = " (Fallback)"
)

type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Completer is satisfied by *llm.Chain.
type Completer interface {
	CompleteNamed(ctx context.Context, req llm.Request) (string, string, error)
}

type Config struct {
	Timeout          time.Duration
	MaxTokens        int
	Temperature      float64
	HistoryTurns     int
	PhraseStructured bool
	ChatLabel        string
}

type Synthesizer struct {
	config Config
	llm    Completer
	logger Logger
}

func New(config Config, completer Completer, log Logger) *Synthesizer {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.HistoryTurns <= 0 {
		config.HistoryTurns = 6
	}
	if config.ChatLabel == "" {
		config.ChatLabel = DefaultChatLabel
	}
	return &Synthesizer{config: config, llm: completer, logger: log}
}

// Synthesize builds the Response for a capability result. confidence is used
// unless the result carries its own. Failures come back as degraded
// responses, never as errors.
func (s *Synthesizer) Synthesize(ctx context.Context, q models.Query, intent models.Intent, result *models.CapabilityResult, confidence float64) *models.Response {
	fixed := result != nil && result.Confidence != nil
	if fixed {
		confidence = *result.Confidence
	}

	var resp *models.Response
	switch intent {
	case models.IntentQueryRAG, models.IntentGeneralChat:
		resp = s.synthesizeLLM(ctx, q, intent, result, confidence)
	default:
		resp = s.synthesizeStructured(ctx, q, intent, result, confidence)
	}
	if fixed {
		resp.FixedConfidence = true
	}
	return resp
}

func (s *Synthesizer) synthesizeLLM(ctx context.Context, q models.Query, intent models.Intent, result *models.CapabilityResult, confidence float64) *models.Response {
	label := s.config.ChatLabel
	req := llm.Request{
		System:      chatSystemPrompt,
		History:     q.RecentHistory(s.config.HistoryTurns),
		Prompt:      q.Question,
		MaxTokens:   s.config.MaxTokens,
		Temperature: s.config.Temperature,
	}

	var citations []string
	if result != nil {
		label = result.SourceLabel
		citations = result.SourceIDs
		if chunks, ok := result.Payload.([]models.Chunk); ok && len(chunks) > 0 {
			req.System = ragSystemPrompt
			req.Prompt = buildRAGPrompt(q.Question, chunks)
		}
	}

	text, provider, err := s.complete(ctx, req)
	if err != nil {
		s.logFailure(intent, err)
		return Degraded(intent)
	}

	return &models.Response{
		Answer:     text,
		Intent:     intent,
		Source:     label + " + " + provider,
		Confidence: confidence,
		Citations:  nonNil(citations),
	}
}

func (s *Synthesizer) synthesizeStructured(ctx context.Context, q models.Query, intent models.Intent, result *models.CapabilityResult, confidence float64) *models.Response {
	if result == nil || result.Payload == nil {
		return NoResult(intent, "")
	}

	text, ok := FormatStructured(result.Payload)
	if !ok {
		s.logger.Warn("unexpected capability payload", map[string]interface{}{
			"intent":  intent.String(),
			"payload": fmt.Sprintf("%T", result.Payload),
		})
		return NoResult(intent, result.SourceLabel)
	}

	citations := result.SourceIDs
	if len(citations) == 0 && result.SourceLabel != "" {
		citations = []string{result.SourceLabel}
	}
	resp := &models.Response{
		Answer:     text,
		Intent:     intent,
		Source:     result.SourceLabel,
		Confidence: confidence,
		Citations:  nonNil(citations),
	}

	if s.config.PhraseStructured {
		phrased, provider, err := s.complete(ctx, llm.Request{
			System:      phraseSystemPrompt,
			History:     q.RecentHistory(s.config.HistoryTurns),
			Prompt:      fmt.Sprintf("Question: %s\n\nFacts:\n%s", q.Question, text),
			MaxTokens:   s.config.MaxTokens,
			Temperature: s.config.Temperature,
		})
		if err != nil {
			s.logger.Warn("phrasing failed, using formatted answer", map[string]interface{}{
				"intent": intent.String(),
				"error":  err.Error(),
			})
			return resp
		}
		resp.Answer = phrased
		resp.Source = result.SourceLabel + " + " + provider
	}
	return resp
}

// complete runs one call and retries once on a transient failure.
func (s *Synthesizer) complete(ctx context.Context, req llm.Request) (string, string, error) {
	if s.llm == nil {
		return "", "", llm.ErrNotConfigured
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
		text, provider, err := s.llm.CompleteNamed(callCtx, req)
		cancel()

		if err == nil {
			text = strings.TrimSpace(text)
			if text == "" {
				return "", provider, llm.ErrEmptyCompletion
			}
			return text, provider, nil
		}
		lastErr = err
		if ctx.Err() != nil || !llm.IsTransient(err) {
			break
		}
		s.logger.Warn("llm call failed, retrying", map[string]interface{}{
			"attempt":  attempt + 1,
			"provider": provider,
			"error":    err.Error(),
		})
	}
	return "", "", lastErr
}

func (s *Synthesizer) logFailure(intent models.Intent, err error) {
	stdErr := apperrors.NewLLMSynthesisFailedError(err)
	if errors.Is(err, context.DeadlineExceeded) {
		stdErr = apperrors.NewSynthesisTimeoutError()
	}
	s.logger.Error("synthesis failed", map[string]interface{}{
		"intent":    intent.String(),
		"errorCode": string(stdErr.Code),
		"error":     err.Error(),
	})
}

// Degraded is the answer given when no capability could serve the request.
func Degraded(intent models.Intent) *models.Response {
	return &models.Response{
		Answer:     UnavailableAnswer,
		Intent:     intent,
		Source:     SourceUnavailable,
		Confidence: 0,
		Citations:  []string{},
		Degraded:   true,
	}
}

func NoResult(intent models.Intent, label string) *models.Response {
	if label == "" {
		label = intent.String()
	}
	return &models.Response{
		Answer:     NoResultAnswer,
		Intent:     intent,
		Source:          label,
		Confidence:      NoResultConfidence,
		Citations:       []string{},
		FixedConfidence: true,
	}
}

// FAQAnswer wraps a configured FAQ answer.
func FAQAnswer(answer string) *models.Response {
	return &models.Response{
		Answer:     answer,
		Intent:     models.IntentQueryRAG,
		Source:     SourceFAQ,
		Confidence: 1,
		Citations:  []string{},
	}
}

// DemoNotice answers personalized questions from demo or anonymous sessions.
func DemoNotice(intent models.Intent) *models.Response {
	return &models.Response{
		Answer:     DemoAnswer,
		Intent:     intent,
		Source:     SourceDemo,
		Confidence: 1,
		Citations:  []string{},
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return append([]string(nil), s...)
}
