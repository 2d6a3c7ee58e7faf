// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App          AppConfig               `mapstructure:"app"`
	Camunda      CamundaConfig           `mapstructure:"camunda"`
	Database     DatabaseConfig          `mapstructure:"database"`
	Workers      map[string]WorkerConfig `mapstructure:"workers"`
	LLM          LLMConfig               `mapstructure:"llm"`
	Router       RouterConfig            `mapstructure:"router"`
	Retrieval    RetrievalConfig         `mapstructure:"retrieval"`
	Academic     AcademicConfig          `mapstructure:"academic"`
	Integrations IntegrationConfig       `mapstructure:"integrations"`
	Logging      LoggingConfig           `mapstructure:"logging"`
	Metrics      MetricsConfig           `mapstructure:"metrics"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Weaviate      WeaviateConfig      `mapstructure:"weaviate"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type WeaviateConfig struct {
	URL       string `mapstructure:"url"`
	ClassName string `mapstructure:"class_name"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

// LLMConfig selects the completion providers. Fallback may be empty.
type LLMConfig struct {
	Primary        string         `mapstructure:"primary"`
	Fallback       string         `mapstructure:"fallback"`
	RequestTimeout int            `mapstructure:"request_timeout"` // milliseconds
	MaxTokens      int            `mapstructure:"max_tokens"`
	Temperature    float64        `mapstructure:"temperature"`
	OpenAI         ProviderConfig `mapstructure:"openai"`
	Anthropic      ProviderConfig `mapstructure:"anthropic"`
	Ollama         ProviderConfig `mapstructure:"ollama"`
}

type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

// RouterConfig carries the knobs the router core consumes. Durations are
// milliseconds.
type RouterConfig struct {
	ConfidenceThreshold float64        `mapstructure:"confidence_threshold"`
	TieMargin           float64        `mapstructure:"tie_margin"`
	ClassifierTimeout   int            `mapstructure:"classifier_timeout"`
	StructuredTimeout   int            `mapstructure:"structured_timeout"`
	RetrievalTimeout    int            `mapstructure:"retrieval_timeout"`
	ComputeTimeout      int            `mapstructure:"compute_timeout"`
	PhraseStructured    bool           `mapstructure:"phrase_structured"`
	Cache               CacheConfig    `mapstructure:"cache"`
	Classification      CacheConfig    `mapstructure:"classification_cache"`
	TTLs                map[string]int `mapstructure:"ttls"`
	FAQ                 []FAQEntry     `mapstructure:"faq"`
}

// FAQEntry is a question answered verbatim, before classification.
type FAQEntry struct {
	Question string `mapstructure:"question"`
	Answer   string `mapstructure:"answer"`
}

type CacheConfig struct {
	MaxEntries int `mapstructure:"max_entries"`
	TTL        int `mapstructure:"ttl"` // milliseconds, default for unlisted intents
}

type RetrievalConfig struct {
	Backend string `mapstructure:"backend"` // elasticsearch | weaviate
	TopK    int    `mapstructure:"top_k"`
}

// AcademicConfig describes the study plan used by progress analysis and GPA
// simulation.
type AcademicConfig struct {
	GPAScale       float64            `mapstructure:"gpa_scale"`
	TotalPlanHours int                `mapstructure:"total_plan_hours"`
	GradePoints    map[string]float64 `mapstructure:"grade_points"` // keys are case-folded by viper
	DefaultHours   int                `mapstructure:"default_course_hours"`
	SourceLabel    string             `mapstructure:"source_label"`
}

type IntegrationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
		SNS    struct {
			Enabled  bool   `mapstructure:"enabled"`
			TopicARN string `mapstructure:"topic_arn"`
		} `mapstructure:"sns"`
	} `mapstructure:"aws"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Address string `mapstructure:"address"`
}
