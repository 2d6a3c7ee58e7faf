package orchestrator

import (
	"strings"
	"time"

	"academic-advisor/internal/advisor/cache"
	"academic-advisor/internal/common/config"
	"academic-advisor/internal/models"
)

// Config is immutable once the router is built: NewRouter copies its maps.
type Config struct {
	ServiceName         string
	ConfidenceThreshold float64
	StructuredTimeout   time.Duration
	RetrievalTimeout    time.Duration
	// TTLs per intent; intents not listed use DefaultTTL. Zero disables
	// storage but keeps deduplication.
	TTLs         map[models.Intent]time.Duration
	DefaultTTL   time.Duration
	TopK         int
	AlertTimeout time.Duration
	// FAQ maps questions to fixed answers served without classification.
	// Questions match after case and whitespace normalization.
	FAQ map[string]string
}

func DefaultConfig() Config {
	return Config{
		ServiceName:         "academic-advisor",
		ConfidenceThreshold: 0.5,
		StructuredTimeout:   10 * time.Second,
		RetrievalTimeout:    20 * time.Second,
		TTLs: map[models.Intent]time.Duration{
			models.IntentGeneralChat:     5 * time.Minute,
			models.IntentQueryRAG:        5 * time.Minute,
			models.IntentGraphQuery:      10 * time.Minute,
			models.IntentAnalyzeProgress: 30 * time.Second,
			models.IntentSimulateGPA:     0,
		},
		DefaultTTL:   5 * time.Minute,
		TopK:         5,
		AlertTimeout: 5 * time.Second,
	}
}

// ConfigFromSettings builds the router configuration from the loaded
// application config. Unknown intent names in router.ttls are ignored.
func ConfigFromSettings(cfg *config.Config) Config {
	c := DefaultConfig()
	c.ServiceName = cfg.App.Name
	c.ConfidenceThreshold = cfg.Router.ConfidenceThreshold
	c.StructuredTimeout = config.GetDuration(cfg.Router.StructuredTimeout)
	c.RetrievalTimeout = config.GetDuration(cfg.Router.RetrievalTimeout)
	c.DefaultTTL = config.GetDuration(cfg.Router.Cache.TTL)
	c.TopK = cfg.Retrieval.TopK

	for name, ttl := range cfg.Router.IntentTTLs() {
		if intent, ok := models.ParseIntent(name); ok {
			c.TTLs[intent] = ttl
		}
	}
	if len(cfg.Router.FAQ) > 0 {
		c.FAQ = make(map[string]string, len(cfg.Router.FAQ))
		for _, entry := range cfg.Router.FAQ {
			c.FAQ[entry.Question] = entry.Answer
		}
	}
	return c
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ServiceName == "" {
		c.ServiceName = d.ServiceName
	}
	if c.StructuredTimeout <= 0 {
		c.StructuredTimeout = d.StructuredTimeout
	}
	if c.RetrievalTimeout <= 0 {
		c.RetrievalTimeout = d.RetrievalTimeout
	}
	if c.AlertTimeout <= 0 {
		c.AlertTimeout = d.AlertTimeout
	}
	if c.TopK <= 0 {
		c.TopK = d.TopK
	}
	if c.TTLs == nil {
		c.TTLs = d.TTLs
	} else {
		ttls := make(map[models.Intent]time.Duration, len(c.TTLs))
		for intent, ttl := range c.TTLs {
			ttls[intent] = ttl
		}
		c.TTLs = ttls
	}

	faq := make(map[string]string, len(c.FAQ))
	for question, answer := range c.FAQ {
		key := cache.Normalize(question)
		if key == "" || strings.TrimSpace(answer) == "" {
			continue
		}
		faq[key] = answer
	}
	c.FAQ = faq
	return c
}

func (c Config) ttl(intent models.Intent) time.Duration {
	if ttl, ok := c.TTLs[intent]; ok {
		return ttl
	}
	return c.DefaultTTL
}
