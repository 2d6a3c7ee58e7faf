// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, overlays configs/config.<APP_ENVIRONMENT>.yaml
// and environment variables, then applies defaults and validates.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional overlay

	return finish(v)
}

// LoadFromFile reads a single YAML file. Used by tests and tooling.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideFromEnv(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	paths := []string{".env", "../.env", "../../.env", "../../../.env"}
	if root := findProjectRoot(); root != "" {
		paths = append(paths, filepath.Join(root, ".env"))
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// expandEnvVars resolves ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			if expanded := os.ExpandEnv(strVal); expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// Secrets are commonly supplied as plain env vars rather than through the YAML.
func overrideFromEnv(cfg *Config) {
	envOverrides := []struct {
		target *string
		key    string
	}{
		{&cfg.LLM.OpenAI.APIKey, "OPENAI_API_KEY"},
		{&cfg.LLM.Anthropic.APIKey, "ANTHROPIC_API_KEY"},
		{&cfg.LLM.Ollama.BaseURL, "OLLAMA_BASE_URL"},
		{&cfg.Database.Postgres.User, "DB_USER"},
		{&cfg.Database.Postgres.Password, "DB_PASSWORD"},
		{&cfg.Database.Redis.Password, "REDIS_PASSWORD"},
	}
	for _, o := range envOverrides {
		if *o.target != "" {
			continue
		}
		if val := os.Getenv(o.key); val != "" {
			*o.target = val
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "academic-advisor"
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.Index == "" {
		cfg.Database.Elasticsearch.Index = "academic_documents"
	}
	if cfg.Database.Weaviate.ClassName == "" {
		cfg.Database.Weaviate.ClassName = "AcademicDocument"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = ":8080"
	}

	for key, w := range cfg.Workers {
		if w.MaxJobsActive == 0 {
			w.MaxJobsActive = 5
		}
		if w.Timeout == 0 {
			w.Timeout = 60000
		}
		if w.MaxRetries == 0 {
			w.MaxRetries = 3
		}
		cfg.Workers[key] = w
	}

	applyLLMDefaults(&cfg.LLM)
	applyRouterDefaults(&cfg.Router)

	if cfg.Retrieval.Backend == "" {
		cfg.Retrieval.Backend = "elasticsearch"
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}

	if cfg.Academic.GPAScale == 0 {
		cfg.Academic.GPAScale = 4.0
	}
	if cfg.Academic.TotalPlanHours == 0 {
		cfg.Academic.TotalPlanHours = 130
	}
	if cfg.Academic.DefaultHours == 0 {
		cfg.Academic.DefaultHours = 3
	}
	if cfg.Academic.SourceLabel == "" {
		cfg.Academic.SourceLabel = "Academic Records"
	}
	if len(cfg.Academic.GradePoints) == 0 {
		cfg.Academic.GradePoints = map[string]float64{
			"a+": 4.0, "a": 4.0, "a-": 3.7,
			"b+": 3.3, "b": 3.0, "b-": 2.7,
			"c+": 2.3, "c": 2.0, "c-": 1.7,
			"d+": 1.3, "d": 1.0, "f": 0,
		}
	}
}

func applyLLMDefaults(l *LLMConfig) {
	if l.Primary == "" {
		l.Primary = "openai"
	}
	if l.RequestTimeout == 0 {
		l.RequestTimeout = 30000
	}
	if l.MaxTokens == 0 {
		l.MaxTokens = 800
	}
	if l.Temperature == 0 {
		l.Temperature = 0.2
	}
	if l.OpenAI.Model == "" {
		l.OpenAI.Model = "gpt-4o-mini"
	}
	if l.Anthropic.Model == "" {
		l.Anthropic.Model = "claude-3-5-haiku-latest"
	}
	if l.Ollama.BaseURL == "" {
		l.Ollama.BaseURL = "http://localhost:11434"
	}
	if l.Ollama.Model == "" {
		l.Ollama.Model = "llama3:8b"
	}
}

func applyRouterDefaults(r *RouterConfig) {
	if r.ConfidenceThreshold == 0 {
		r.ConfidenceThreshold = 0.5
	}
	if r.TieMargin == 0 {
		r.TieMargin = 0.1
	}
	if r.ClassifierTimeout == 0 {
		r.ClassifierTimeout = 5000
	}
	if r.StructuredTimeout == 0 {
		r.StructuredTimeout = 10000
	}
	if r.RetrievalTimeout == 0 {
		r.RetrievalTimeout = 20000
	}
	if r.ComputeTimeout == 0 {
		r.ComputeTimeout = 90000
	}
	if r.Cache.MaxEntries == 0 {
		r.Cache.MaxEntries = 1000
	}
	if r.Cache.TTL == 0 {
		r.Cache.TTL = 300000
	}
	if r.Classification.MaxEntries == 0 {
		r.Classification.MaxEntries = 1000
	}
	if r.Classification.TTL == 0 {
		r.Classification.TTL = 300000
	}
	if r.TTLs == nil {
		r.TTLs = map[string]int{}
	}
	defaults := map[string]int{
		"general_chat":     300000,
		"query_rag":        300000,
		"graph_query":      600000,
		"analyze_progress": 30000,
		"simulate_gpa":     0,
	}
	for intent, ms := range defaults {
		if _, ok := r.TTLs[intent]; !ok {
			r.TTLs[intent] = ms
		}
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required")
	}

	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}

	switch cfg.Retrieval.Backend {
	case "elasticsearch":
		if len(cfg.Database.Elasticsearch.Addresses) == 0 {
			return fmt.Errorf("database.elasticsearch.addresses is required for elasticsearch retrieval")
		}
	case "weaviate":
		if cfg.Database.Weaviate.URL == "" {
			return fmt.Errorf("database.weaviate.url is required for weaviate retrieval")
		}
	default:
		return fmt.Errorf("retrieval.backend %q is not supported", cfg.Retrieval.Backend)
	}

	if cfg.Database.Redis.Enabled && cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required when redis is enabled")
	}

	if cfg.Router.ConfidenceThreshold < 0 || cfg.Router.ConfidenceThreshold > 1 {
		return fmt.Errorf("router.confidence_threshold must be within [0,1]")
	}

	for _, name := range []string{cfg.LLM.Primary, cfg.LLM.Fallback} {
		switch name {
		case "", "openai", "anthropic", "ollama":
		default:
			return fmt.Errorf("llm provider %q is not supported", name)
		}
	}

	return nil
}

func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if w, exists := cfg.Workers[workerName]; exists {
		return w
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       60000,
		MaxRetries:    3,
	}
}

// IntentTTLs converts the millisecond TTL table to durations.
func (r RouterConfig) IntentTTLs() map[string]time.Duration {
	out := make(map[string]time.Duration, len(r.TTLs))
	for intent, ms := range r.TTLs {
		out[intent] = GetDuration(ms)
	}
	return out
}
