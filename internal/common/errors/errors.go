// Package errors provides the error taxonomy of the advisor router and its
// translation to BPMN errors for the Zeebe workers.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Request errors
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"

	// Routing pipeline errors. All but validation are recovered inside the
	// router; the codes exist for logs, metrics and job failures.
	ErrCodeClassificationFailed  ErrorCode = "CLASSIFICATION_FAILED"
	ErrCodeCapabilityUnavailable ErrorCode = "CAPABILITY_UNAVAILABLE"
	ErrCodeNoResult              ErrorCode = "NO_RESULT"
	ErrCodeSynthesisTimeout      ErrorCode = "SYNTHESIS_TIMEOUT"
	ErrCodeLLMSynthesisFailed    ErrorCode = "LLM_SYNTHESIS_FAILED"

	// Infrastructure
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeSearchQueryFailed        ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeCacheFailure             ErrorCode = "CACHE_FAILURE"
	ErrCodeExternalService          ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout                  ErrorCode = "TIMEOUT"
	ErrCodeInternal                 ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// AsStandardError unwraps err to a *StandardError when one is in the chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// IsValidation reports whether err is a caller-input error.
func IsValidation(err error) bool {
	stdErr, ok := AsStandardError(err)
	return ok && stdErr.Code == ErrCodeValidation
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationError creates a non-retryable input error. field names the
// offending request field.
func NewValidationError(field, details string) *StandardError {
	e := newError(ErrCodeValidation, "Invalid request", details, false)
	if field != "" {
		e.Metadata = map[string]interface{}{"field": field}
	}
	return e
}

func NewClassificationFailedError(err error) *StandardError {
	return newError(ErrCodeClassificationFailed, "Intent classification failed", err.Error(), true)
}

func NewCapabilityUnavailableError(capability string, err error) *StandardError {
	e := newError(ErrCodeCapabilityUnavailable, "Capability unavailable", err.Error(), true)
	e.Metadata = map[string]interface{}{"capability": capability}
	return e
}

func NewSynthesisTimeoutError() *StandardError {
	return newError(ErrCodeSynthesisTimeout, "Answer synthesis timed out", "", true)
}

func NewLLMSynthesisFailedError(err error) *StandardError {
	return newError(ErrCodeLLMSynthesisFailed, "Answer synthesis failed", err.Error(), true)
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err.Error(), true)
}

func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, "Database query execution error",
		fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()), true)
}

func NewSearchQueryFailedError(index string, err error) *StandardError {
	return newError(ErrCodeSearchQueryFailed, "Search query failed",
		fmt.Sprintf("index: %s, error: %s", index, err.Error()), true)
}

func NewCacheFailureError(err error) *StandardError {
	return newError(ErrCodeCacheFailure, "Cache operation failed", err.Error(), false)
}

func NewExternalServiceError(service string, err error) *StandardError {
	return newError(ErrCodeExternalService, fmt.Sprintf("%s service error", service), err.Error(), true)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError(ErrCodeTimeout, fmt.Sprintf("%s timed out", service), err.Error(), true)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the job retry budget for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeExternalService:
		return 3

	case ErrCodeTimeout,
		ErrCodeCapabilityUnavailable,
		ErrCodeClassificationFailed:
		return 2

	case ErrCodeSynthesisTimeout,
		ErrCodeLLMSynthesisFailed:
		return 1

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
// BPMN codes equal the internal codes.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// GetErrorCategory groups codes for log aggregation.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	case strings.Contains(codeStr, "CLASSIFICATION") || strings.Contains(codeStr, "SYNTHESIS") || strings.Contains(codeStr, "LLM"):
		return "AI"
	case strings.Contains(codeStr, "CAPABILITY") || strings.Contains(codeStr, "NO_RESULT"):
		return "CAPABILITY"
	case strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "CACHE"):
		return "CACHE"
	default:
		return "OTHER"
	}
}
