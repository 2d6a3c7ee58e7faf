// Package intent classifies advising questions into one of the five router
// intents. Classification never fails outward: every error path yields a
// general_chat prediction marked as failed.
package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"academic-advisor/internal/advisor/cache"
	apperrors "academic-advisor/internal/common/errors"
	"academic-advisor/internal/common/llm"
	"academic-advisor/internal/models"

	"golang.org/x/sync/singleflight"
)

var ErrUnparseable = errors.New("CLASSIFICATION_UNPARSEABLE")

type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Completer is the slice of the LLM chain the classifier needs.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

type Config struct {
	Timeout      time.Duration
	TieMargin    float64
	HistoryTurns int
	CacheSize    int
	CacheTTL     time.Duration
	MaxTokens    int
}

func DefaultConfig() Config {
	return Config{
		Timeout:      5 * time.Second,
		TieMargin:    0.1,
		HistoryTurns: 6,
		CacheSize:    1000,
		CacheTTL:     5 * time.Minute,
		MaxTokens:    150,
	}
}

type Classifier struct {
	config   Config
	llm      Completer
	keywords *KeywordMatcher
	cache    *cache.LRU[models.Prediction]
	group    singleflight.Group
	logger   Logger
}

func NewClassifier(config Config, completer Completer, log Logger) *Classifier {
	if config.HistoryTurns <= 0 {
		config.HistoryTurns = 6
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	return &Classifier{
		config:   config,
		llm:      completer,
		keywords: NewKeywordMatcher(),
		cache:    cache.NewLRU[models.Prediction](config.CacheSize, config.CacheTTL),
		logger:   log,
	}
}

// Classify maps question and history to an intent.
func (c *Classifier) Classify(ctx context.Context, question string, history []models.Message) models.Prediction {
	if in, ok := c.keywords.Match(question); ok {
		return models.Prediction{Intent: in, Confidence: KeywordConfidence, Method: models.MethodKeyword}
	}

	recent := history
	if len(recent) > c.config.HistoryTurns {
		recent = recent[len(recent)-c.config.HistoryTurns:]
	}

	key := cache.Normalize(question) + "|" + cache.HistoryDigest(recent)
	if p, ok := c.cache.Get(key); ok {
		return p
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		llmCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.config.Timeout)
		defer cancel()

		p, err := c.classifyLLM(llmCtx, question, recent)
		if err != nil {
			return nil, err
		}
		c.cache.Set(key, p, 0)
		return p, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			c.logFailure("intent classification failed", res.Err)
			return failed()
		}
		return res.Val.(models.Prediction)
	case <-ctx.Done():
		c.logFailure("intent classification abandoned", ctx.Err())
		return failed()
	}
}

func (c *Classifier) logFailure(msg string, err error) {
	stdErr := apperrors.NewClassificationFailedError(err)
	c.logger.Warn(msg, map[string]interface{}{
		"errorCode": string(stdErr.Code),
		"error":     err.Error(),
	})
}

func failed() models.Prediction {
	return models.Prediction{Intent: models.IntentGeneralChat, Confidence: 0, Method: models.MethodFailed, Failed: true}
}

type llmVerdict struct {
	Intent       string             `json:"intent"`
	Confidence   *float64           `json:"confidence"`
	Alternatives map[string]float64 `json:"alternatives"`
}

func (c *Classifier) classifyLLM(ctx context.Context, question string, history []models.Message) (models.Prediction, error) {
	if c.llm == nil {
		return models.Prediction{}, llm.ErrNotConfigured
	}

	raw, err := c.llm.Complete(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      buildPrompt(question, history),
		MaxTokens:   c.config.MaxTokens,
		Temperature: 0,
	})
	if err != nil {
		return models.Prediction{}, err
	}

	block := firstJSONObject(raw)
	if block == "" {
		return models.Prediction{}, fmt.Errorf("%w: no json object in %q", ErrUnparseable, truncate(raw, 80))
	}
	var v llmVerdict
	if err := json.Unmarshal([]byte(block), &v); err != nil {
		return models.Prediction{}, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}

	label, ok := models.ParseIntent(v.Intent)
	if !ok {
		c.logger.Info("classifier returned unknown label", map[string]interface{}{"label": v.Intent})
		return models.Prediction{Intent: models.IntentGeneralChat, Confidence: 0, Method: models.MethodLLM}, nil
	}

	confidence := 0.6
	if v.Confidence != nil {
		confidence = clamp(*v.Confidence)
	}

	if label != models.IntentQueryRAG && c.closeRunnerUp(label, confidence, v.Alternatives) {
		label = models.IntentQueryRAG
	}

	return models.Prediction{Intent: label, Confidence: confidence, Method: models.MethodLLM}, nil
}

// closeRunnerUp reports whether another valid label scored within the tie
// margin of the winner.
func (c *Classifier) closeRunnerUp(top models.Intent, topScore float64, alternatives map[string]float64) bool {
	for raw, score := range alternatives {
		alt, ok := models.ParseIntent(raw)
		if !ok || alt == top {
			continue
		}
		if topScore-clamp(score) <= c.config.TieMargin {
			return true
		}
	}
	return false
}

const systemPrompt = "You route questions for a university academic advisor. Reply with JSON only."

func buildPrompt(question string, history []models.Message) string {
	var b strings.Builder
	b.WriteString("Choose the single best intent for the student's question.\n\n")
	b.WriteString("- query_rag: regulations, study plans, course descriptions, anything in official documents\n")
	b.WriteString("- analyze_progress: the student's own record, GPA, remaining or registerable courses\n")
	b.WriteString("- simulate_gpa: projecting a GPA from hypothetical grades\n")
	b.WriteString("- graph_query: skills, specializations, relations between courses\n")
	b.WriteString("- general_chat: greetings and anything else\n\n")

	if len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, m := range history {
			role := "Student"
			if m.Role == models.RoleAssistant {
				role = "Advisor"
			}
			fmt.Fprintf(&b, "%s: %s\n", role, m.Content)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Question: %q\n\n", question)
	b.WriteString(`Answer as {"intent": "<label>", "confidence": 0.0-1.0, "alternatives": {"<label>": 0.0-1.0}}`)
	return b.String()
}

// firstJSONObject extracts the first balanced {...} block, skipping braces
// inside string literals.
func firstJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth, inString, escaped := 0, false, false
	for i := start; i < len(s); i++ {
		ch := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && ch == '\\':
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
