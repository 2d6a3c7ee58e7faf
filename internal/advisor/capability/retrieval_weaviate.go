package capability

import (
	"context"
	"fmt"

	"academic-advisor/internal/models"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
)

// WeaviateRetriever runs a nearText vector search.
type WeaviateRetriever struct {
	client    *weaviate.Client
	className string
}

func NewWeaviateRetriever(client *weaviate.Client, className string) *WeaviateRetriever {
	return &WeaviateRetriever{client: client, className: className}
}

func (r *WeaviateRetriever) RetrieveContext(ctx context.Context, query string, topK int) ([]models.Chunk, error) {
	nearText := r.client.GraphQL().NearTextArgBuilder().
		WithConcepts([]string{query})

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "sourceId"},
		{Name: "_additional { id certainty }"},
	}

	result, err := r.client.GraphQL().Get().
		WithClassName(r.className).
		WithFields(fields...).
		WithNearText(nearText).
		WithLimit(topK).
		Do(ctx)
	if err != nil {
		return nil, unavailable("weaviate", err)
	}
	if len(result.Errors) > 0 {
		return nil, unavailable("weaviate", fmt.Errorf("graphql: %s", result.Errors[0].Message))
	}

	get, ok := result.Data["Get"].(map[string]interface{})
	if !ok {
		return nil, nil
	}
	objects, _ := get[r.className].([]interface{})

	chunks := make([]models.Chunk, 0, len(objects))
	for _, obj := range objects {
		m, ok := obj.(map[string]interface{})
		if !ok {
			continue
		}
		text, _ := m["content"].(string)
		if text == "" {
			continue
		}
		chunk := models.Chunk{Text: text}
		chunk.SourceID, _ = m["sourceId"].(string)
		if additional, ok := m["_additional"].(map[string]interface{}); ok {
			chunk.Score, _ = additional["certainty"].(float64)
			if chunk.SourceID == "" {
				chunk.SourceID, _ = additional["id"].(string)
			}
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}
