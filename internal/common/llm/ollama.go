package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"academic-advisor/internal/models"

	commonhttp "academic-advisor/internal/common/http"
)

type ollamaChatRequest struct {
	Model    string                 `json:"model"`
	Messages []models.Message       `json:"messages"`
	Stream   bool                   `json:"stream"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message models.Message `json:"message"`
	Done    bool           `json:"done"`
}

// OllamaProvider talks to a local Ollama server over /api/chat.
type OllamaProvider struct {
	client  *commonhttp.Client
	baseURL string
	model   string
}

func NewOllamaProvider(baseURL, model string, timeout time.Duration) (*OllamaProvider, error) {
	if baseURL == "" {
		return nil, ErrNotConfigured
	}
	return &OllamaProvider{
		client:  commonhttp.NewClient(timeout),
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
	}, nil
}

func (p *OllamaProvider) Name() string { return "ollama/" + p.model }

func (p *OllamaProvider) Complete(ctx context.Context, req Request) (string, error) {
	messages := make([]models.Message, 0, len(req.History)+2)
	if req.System != "" {
		messages = append(messages, models.Message{Role: "system", Content: req.System})
	}
	messages = append(messages, req.History...)
	messages = append(messages, models.Message{Role: models.RoleUser, Content: req.Prompt})

	body := ollamaChatRequest{
		Model:    p.model,
		Messages: messages,
		Stream:   false,
		Options: map[string]interface{}{
			"temperature": req.Temperature,
		},
	}
	if req.MaxTokens > 0 {
		body.Options["num_predict"] = req.MaxTokens
	}

	var out ollamaChatResponse
	if err := p.client.PostJSON(ctx, p.baseURL+"/api/chat", body, &out); err != nil {
		status := 0
		var se *commonhttp.StatusError
		if errors.As(err, &se) {
			status = se.StatusCode
		}
		return "", &ProviderError{Provider: "ollama", StatusCode: status, Err: err}
	}

	if strings.TrimSpace(out.Message.Content) == "" {
		return "", ErrEmptyCompletion
	}
	return out.Message.Content, nil
}
