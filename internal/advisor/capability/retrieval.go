package capability

import (
	"context"

	"academic-advisor/internal/models"
)

const DefaultDocumentsLabel = "Academic Documents"

// RetrievalAdapter answers query_rag with chunks from a Retriever.
type RetrievalAdapter struct {
	retriever Retriever
	topK      int
	label     string
}

func NewRetrievalAdapter(r Retriever, topK int, label string) *RetrievalAdapter {
	if topK <= 0 {
		topK = 5
	}
	if label == "" {
		label = DefaultDocumentsLabel
	}
	return &RetrievalAdapter{retriever: r, topK: topK, label: label}
}

func (a *RetrievalAdapter) Name() string { return "retrieval" }
func (a *RetrievalAdapter) SourceLabel() string { return a.label }

func (a *RetrievalAdapter) Execute(ctx context.Context, req Request) (*models.CapabilityResult, error) {
	topK := req.TopK
	if topK <= 0 {
		topK = a.topK
	}

	chunks, err := a.retriever.RetrieveContext(ctx, req.Query.Question, topK)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, ErrNoResult
	}

	ids := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if c.SourceID != "" {
			ids = append(ids, c.SourceID)
		}
	}
	return &models.CapabilityResult{Payload: chunks, SourceLabel: a.label, SourceIDs: ids}, nil
}
