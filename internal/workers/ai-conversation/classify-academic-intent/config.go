package classifyacademicintent

import (
	"time"

	"academic-advisor/internal/common/config"
)

type Config struct {
	Timeout time.Duration
	// ConfidenceThreshold marks predictions the router would reroute to
	// document retrieval.
	ConfidenceThreshold float64
}

func LoadConfig(cfg *config.Config) *Config {
	wcfg := config.GetWorkerConfig(cfg, TaskType)
	return &Config{
		Timeout:             config.GetDuration(wcfg.Timeout),
		ConfidenceThreshold: cfg.Router.ConfidenceThreshold,
	}
}
