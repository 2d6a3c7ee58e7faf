package routeacademicquery

import (
	"time"

	"academic-advisor/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

// LoadConfig sizes the job deadline from the worker settings. The router
// keeps its own per-call timeouts inside this budget.
func LoadConfig(cfg *config.Config) *Config {
	wcfg := config.GetWorkerConfig(cfg, TaskType)
	return &Config{Timeout: config.GetDuration(wcfg.Timeout)}
}
