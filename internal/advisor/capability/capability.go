// Package capability holds the adapters that answer one intent each:
// document retrieval, progress analysis, graph lookups and GPA simulation.
// Adapters own their backend client and nothing else.
package capability

import (
	"context"
	"errors"
	"fmt"
	"net"

	apperrors "academic-advisor/internal/common/errors"
	"academic-advisor/internal/models"
)

var (
	// ErrUnavailable marks a backend that could not be reached or failed.
	ErrUnavailable = errors.New("CAPABILITY_UNAVAILABLE")
	// ErrNoResult means the backend answered but nothing matched.
	ErrNoResult = errors.New("NO_RESULT")
)

type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

type Request struct {
	Query models.Query
	TopK  int
}

type Adapter interface {
	Name() string
	// SourceLabel names the backing store in Response.source.
	SourceLabel() string
	Execute(ctx context.Context, req Request) (*models.CapabilityResult, error)
}

type Retriever interface {
	RetrieveContext(ctx context.Context, query string, topK int) ([]models.Chunk, error)
}

type ProgressAnalyzer interface {
	GetProgressAnalysis(ctx context.Context, userID string) (*models.ProgressSummary, error)
}

type GraphQuerier interface {
	RunGraphQuery(ctx context.Context, params models.GraphParams) (*models.GraphResult, error)
}

type GpaSimulator interface {
	SimulateGPA(ctx context.Context, currentGPA float64, currentHours int, planned []models.PlannedCourse) (*models.GpaProjection, error)
}

// CourseCatalog resolves credit hours of study-plan courses.
type CourseCatalog interface {
	CourseHours(ctx context.Context) (map[string]int, error)
}

// unavailable wraps both ErrUnavailable and a StandardError describing the
// backend failure.
func unavailable(backend string, err error) error {
	var cause *apperrors.StandardError
	var opErr *net.OpError
	switch {
	case errors.As(err, &opErr):
		cause = apperrors.NewDatabaseConnectionFailedError(fmt.Errorf("%s: %w", backend, err))
	case backend == "elasticsearch" || backend == "weaviate":
		cause = apperrors.NewSearchQueryFailedError(backend, err)
	default:
		cause = apperrors.NewQueryExecutionFailedError(backend, err)
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, cause)
}

// IsUnavailable reports whether err should trigger the fallback path.
func IsUnavailable(err error) bool {
	return err != nil && !errors.Is(err, ErrNoResult)
}
