// internal/common/database/weaviate.go
package database

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"academic-advisor/internal/common/config"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
)

// WeaviateClient wraps the client for vector retrieval.
type WeaviateClient struct {
	Client    *weaviate.Client
	ClassName string
}

func NewWeaviate(cfg config.WeaviateConfig) (*WeaviateClient, error) {
	parsed, err := url.Parse(cfg.URL)
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("invalid weaviate url %q", cfg.URL)
	}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:   parsed.Host,
		Scheme: parsed.Scheme,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}
	return &WeaviateClient{Client: client, ClassName: cfg.ClassName}, nil
}

func (c *WeaviateClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	ready, err := c.Client.Misc().ReadyChecker().Do(ctx)
	if err != nil {
		return fmt.Errorf("weaviate ready check failed: %w", err)
	}
	if !ready {
		return fmt.Errorf("weaviate is not ready")
	}
	return nil
}
