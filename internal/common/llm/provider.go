// Package llm holds the chat-completion providers used for intent
// classification and answer synthesis.
package llm

import (
	"context"
	"errors"
	"net"
	"strings"

	"academic-advisor/internal/models"
)

var (
	ErrEmptyCompletion = errors.New("LLM_EMPTY_COMPLETION")
	ErrNotConfigured   = errors.New("LLM_NOT_CONFIGURED")
)

type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Request is a single chat completion. History is replayed before Prompt.
type Request struct {
	System      string
	History     []models.Message
	Prompt      string
	MaxTokens   int
	Temperature float64
}

type Provider interface {
	// Name is "<provider>/<model>", used to stamp response sources.
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

// ProviderError carries the HTTP status of a failed provider call so callers
// can decide on retries without knowing the SDK.
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	return e.Provider + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsTransient reports whether a failed call is worth one retry: timeouts,
// network errors, 429 and 5xx.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var pe *ProviderError
	if errors.As(err, &pe) && pe.StatusCode != 0 {
		return pe.StatusCode == 429 || pe.StatusCode >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, phrase := range []string{"connection refused", "connection reset", "eof", "timeout", "unavailable"} {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}
