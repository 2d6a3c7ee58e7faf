package capability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"academic-advisor/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// ElasticRetriever runs a lexical multi_match search over the documents index.
type ElasticRetriever struct {
	client *elasticsearch.Client
	index  string
}

func NewElasticRetriever(client *elasticsearch.Client, index string) *ElasticRetriever {
	return &ElasticRetriever{client: client, index: index}
}

type esSearchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string  `json:"_id"`
			Score  float64 `json:"_score"`
			Source struct {
				Content  string `json:"content"`
				Title    string `json:"title"`
				SourceID string `json:"source_id"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (r *ElasticRetriever) RetrieveContext(ctx context.Context, query string, topK int) ([]models.Chunk, error) {
	body := map[string]interface{}{
		"size": topK,
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"content", "title^2"},
			},
		},
		"_source": []string{"content", "title", "source_id"},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("encode search body: %w", err)
	}

	req := esapi.SearchRequest{
		Index: []string{r.index},
		Body:  &buf,
	}
	res, err := req.Do(ctx, r.client)
	if err != nil {
		return nil, unavailable("elasticsearch", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, unavailable("elasticsearch", fmt.Errorf("search failed: %s", res.Status()))
	}

	var parsed esSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, unavailable("elasticsearch", fmt.Errorf("decode response: %w", err))
	}

	chunks := make([]models.Chunk, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		text := strings.TrimSpace(h.Source.Content)
		if text == "" {
			continue
		}
		id := h.Source.SourceID
		if id == "" {
			id = h.ID
		}
		chunks = append(chunks, models.Chunk{Text: text, SourceID: id, Score: h.Score})
	}
	return chunks, nil
}
