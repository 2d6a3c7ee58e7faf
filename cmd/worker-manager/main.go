// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"academic-advisor/internal/advisor/cache"
	"academic-advisor/internal/advisor/capability"
	"academic-advisor/internal/advisor/intent"
	"academic-advisor/internal/advisor/orchestrator"
	"academic-advisor/internal/advisor/synthesis"
	"academic-advisor/internal/common/aws"
	"academic-advisor/internal/common/camunda"
	"academic-advisor/internal/common/config"
	"academic-advisor/internal/common/database"
	"academic-advisor/internal/common/llm"
	"academic-advisor/internal/common/logger"
	"academic-advisor/internal/common/observability"
	"academic-advisor/internal/models"

	cai "academic-advisor/internal/workers/ai-conversation/classify-academic-intent"
	iac "academic-advisor/internal/workers/ai-conversation/invalidate-advisor-cache"
	raq "academic-advisor/internal/workers/ai-conversation/route-academic-query"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format).With(zap.String("service", cfg.App.Name))
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("starting worker manager", zap.String("environment", cfg.App.Environment))

	obs := observability.New(cfg.App.Name, observability.WithGlobal())
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Zeebe ---
	zeebe, err := camunda.NewClientWithConfig(ctx,
		camunda.ConfigFromMillis(cfg.Camunda.BrokerAddress, cfg.Camunda.Timeout, cfg.Camunda.RequestTimeout),
		log.With(map[string]interface{}{"component": "camunda"}),
	)
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}

	// --- PostgreSQL ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		if err := pg.Ping(ctx); err != nil {
			return err
		}
		return pg.CheckSchema(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Retrieval backend ---
	retriever, err := newRetriever(ctx, cfg, zapLog)
	if err != nil {
		zapLog.Fatal("retrieval backend failed", zap.Error(err))
	}

	// --- Redis (optional second cache tier) ---
	var rdb *redis.Client
	if cfg.Database.Redis.Enabled {
		var rc *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			rc, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return rc.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rc.Close()
		rdb = rc.Client
		zapLog.Info("Redis connected successfully")
	}

	// --- LLM providers ---
	chain, err := llm.NewFromConfig(cfg.LLM, log.With(map[string]interface{}{"component": "llm"}))
	if err != nil {
		zapLog.Fatal("llm provider setup failed", zap.Error(err))
	}
	zapLog.Info("LLM chain ready", zap.String("primary", chain.Name()))

	// --- Degraded-response alerts ---
	var alerter orchestrator.Alerter
	if cfg.Integrations.AWS.SNS.Enabled {
		sns, err := aws.NewSNSClient(ctx, cfg.Integrations.AWS.Region, cfg.Integrations.AWS.SNS.TopicARN)
		if err != nil {
			zapLog.Fatal("sns client failed", zap.Error(err))
		}
		alerter = sns
	}

	// --- Router core ---
	responseCache := cache.New(cache.Config{
		MaxEntries:     cfg.Router.Cache.MaxEntries,
		ComputeTimeout: config.GetDuration(cfg.Router.ComputeTimeout),
	}, rdb, log.With(map[string]interface{}{"component": "cache"}))

	classifierCfg := intent.DefaultConfig()
	classifierCfg.Timeout = config.GetDuration(cfg.Router.ClassifierTimeout)
	classifierCfg.TieMargin = cfg.Router.TieMargin
	classifierCfg.CacheSize = cfg.Router.Classification.MaxEntries
	classifierCfg.CacheTTL = config.GetDuration(cfg.Router.Classification.TTL)
	classifier := intent.NewClassifier(classifierCfg, chain, log.With(map[string]interface{}{"component": "classifier"}))

	synthesizer := synthesis.New(synthesis.Config{
		Timeout:          config.GetDuration(cfg.LLM.RequestTimeout),
		MaxTokens:        cfg.LLM.MaxTokens,
		Temperature:      cfg.LLM.Temperature,
		PhraseStructured: cfg.Router.PhraseStructured,
	}, chain, log.With(map[string]interface{}{"component": "synthesis"}))

	router := orchestrator.NewRouter(orchestrator.ConfigFromSettings(cfg), orchestrator.Deps{
		Classifier:  classifier,
		Adapters:    newAdapters(cfg, pg, retriever, log),
		Synthesizer: synthesizer,
		Cache:       responseCache,
		Alerter:     alerter,
		Telemetry:   obs,
	}, log.With(map[string]interface{}{"component": "router"}))

	// --- Workers ---
	manager := camunda.NewManagerFromClient(zeebe, obs, log)

	manager.Register(raq.TaskType, config.GetWorkerConfig(cfg, raq.TaskType),
		raq.NewHandler(raq.LoadConfig(cfg), router, &routeLoggerAdapter{log}))
	manager.Register(cai.TaskType, config.GetWorkerConfig(cfg, cai.TaskType),
		cai.NewHandler(cai.LoadConfig(cfg), classifier, &classifyLoggerAdapter{log}))
	manager.Register(iac.TaskType, config.GetWorkerConfig(cfg, iac.TaskType),
		iac.NewHandler(iac.LoadConfig(cfg), responseCache, &invalidateLoggerAdapter{log}))

	zapLog.Info("workers registered", zap.Strings("taskTypes", manager.TaskTypes()))

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy")
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := zeebe.HealthCheck(r.Context()); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		if err := pg.Ping(r.Context()); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeStatus(w, http.StatusOK, "ready")
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: cfg.Metrics.Address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		zapLog.Info("health/metrics server listening", zap.String("address", cfg.Metrics.Address))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("health/metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	manager.Stop()
	router.Wait()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("error stopping health server", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("worker manager stopped gracefully")
}

func newRetriever(ctx context.Context, cfg *config.Config, zapLog *zap.Logger) (capability.Retriever, error) {
	switch cfg.Retrieval.Backend {
	case "weaviate":
		var wv *database.WeaviateClient
		err := retryWithBackoff(func() error {
			var err error
			wv, err = database.NewWeaviate(cfg.Database.Weaviate)
			if err != nil {
				return err
			}
			return wv.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Weaviate connection")
		if err != nil {
			return nil, err
		}
		zapLog.Info("Weaviate connected successfully")
		return capability.NewWeaviateRetriever(wv.Client, wv.ClassName), nil
	default:
		var es *database.ElasticsearchClient
		err := retryWithBackoff(func() error {
			var err error
			es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return es.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			return nil, err
		}
		zapLog.Info("Elasticsearch connected successfully")
		return capability.NewElasticRetriever(es.Client, es.Index), nil
	}
}

func newAdapters(cfg *config.Config, pg *database.PostgresClient, retriever capability.Retriever, log logger.Logger) map[models.Intent]capability.Adapter {
	progress := capability.NewProgressStore(pg.DB, capability.AcademicSettings{
		GPAScale:       cfg.Academic.GPAScale,
		TotalPlanHours: cfg.Academic.TotalPlanHours,
		GradePoints:    cfg.Academic.GradePoints,
	})
	simulator := capability.NewSimulator(cfg.Academic.GradePoints, cfg.Academic.GPAScale)
	label := cfg.Academic.SourceLabel

	return map[models.Intent]capability.Adapter{
		models.IntentQueryRAG:        capability.NewRetrievalAdapter(retriever, cfg.Retrieval.TopK, ""),
		models.IntentAnalyzeProgress: capability.NewProgressAdapter(progress, label),
		models.IntentGraphQuery:      capability.NewGraphAdapter(capability.NewGraphStore(pg.DB), ""),
		models.IntentSimulateGPA: capability.NewGPAAdapter(simulator, progress, progress, cfg.Academic.DefaultHours, label,
			log.With(map[string]interface{}{"component": "gpa"})),
	}
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	})
}

// Logger adapters for workers that declare their own Logger interfaces
type routeLoggerAdapter struct {
	logger.Logger
}

func (a *routeLoggerAdapter) With(fields map[string]interface{}) raq.Logger {
	return &routeLoggerAdapter{a.Logger.With(fields)}
}

type classifyLoggerAdapter struct {
	logger.Logger
}

func (a *classifyLoggerAdapter) With(fields map[string]interface{}) cai.Logger {
	return &classifyLoggerAdapter{a.Logger.With(fields)}
}

type invalidateLoggerAdapter struct {
	logger.Logger
}

func (a *invalidateLoggerAdapter) With(fields map[string]interface{}) iac.Logger {
	return &invalidateLoggerAdapter{a.Logger.With(fields)}
}
