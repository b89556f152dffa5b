// cmd/worker-manager/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.uber.org/zap"

	"landreg-workers/internal/common/aws"
	"landreg-workers/internal/common/camunda"
	"landreg-workers/internal/common/config"
	"landreg-workers/internal/common/database"
	"landreg-workers/internal/common/logger"
	"landreg-workers/internal/common/observability"
	"landreg-workers/internal/enrichment"
	"landreg-workers/internal/ingest"
	"landreg-workers/internal/matcher"
	"landreg-workers/internal/notify"
	"landreg-workers/internal/promotion"
	"landreg-workers/internal/repository"
	"landreg-workers/pkg/recordschema"

	er "landreg-workers/internal/workers/staging/enrich-record"
	ib "landreg-workers/internal/workers/staging/ingest-batch"
	lr "landreg-workers/internal/workers/staging/list-records"
	pr "landreg-workers/internal/workers/staging/promote-record"
	rr "landreg-workers/internal/workers/staging/reject-record"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err,
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog, err := logger.Build(logger.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog).WithFields(map[string]interface{}{
		"service": cfg.App.Name,
		"version": cfg.App.Version,
	})

	log.Info("Starting worker manager...", map[string]interface{}{"environment": cfg.App.Environment})

	obs, err := observability.New(cfg.App.Name, nil)
	if err != nil {
		log.Warn("otel exporter unavailable, job meters disabled", map[string]interface{}{"error": err})
	}
	defer obs.Shutdown()

	ctx := context.Background()

	// --- PostgreSQL ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, log, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	log.Info("PostgreSQL connected successfully", nil)

	if cfg.Database.Postgres.AutoMigrate {
		version, err := database.Migrate(pg.DB)
		if err != nil {
			zapLog.Fatal("schema migration failed", zap.Error(err))
		}
		log.Info("schema migrated", map[string]interface{}{"version": version})
	}

	// --- Redis (ingest replay cache) ---
	var replay ingest.ReplayCache = ingest.NoopReplayCache{}
	var redisClient *database.RedisClient
	if cfg.Database.Redis.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			redisClient, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return redisClient.Ping(ctx)
		}, 10, 2*time.Second, log, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redisClient.Close()
		replay = ingest.NewRedisReplayCache(redisClient.Client, time.Duration(cfg.Staging.IngestReplayTTL)*time.Millisecond)
		log.Info("Redis connected successfully", nil)
	}

	// --- SNS notifications ---
	var publisher notify.Publisher = notify.NoopPublisher{}
	if cfg.Notifications.SNS.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Notifications.SNS.Region, cfg.Notifications.SNS.TopicARN)
		if err != nil {
			zapLog.Fatal("sns client init failed", zap.Error(err))
		}
		publisher = notify.NewSNSPublisher(snsClient, log)
		log.Info("SNS notifications enabled", map[string]interface{}{"topicArn": cfg.Notifications.SNS.TopicARN})
	}

	// --- Record schemas ---
	registry := recordschema.Default()
	if path := cfg.Staging.SchemaRegistryPath; path != "" {
		registry, err = recordschema.LoadRegistry(path)
		if err != nil {
			zapLog.Fatal("schema registry load failed", zap.Error(err), zap.String("path", path))
		}
	}
	schemas, err := recordschema.NewValidator(registry)
	if err != nil {
		zapLog.Fatal("schema registry invalid", zap.Error(err))
	}
	log.Info("record schemas loaded", map[string]interface{}{"version": registry.Version})

	// --- Pipeline components ---
	staging := repository.NewStagingRepository(pg.DB)
	production := repository.NewProductionRepository(pg.DB)
	match := matcher.New(production, log)

	ingestService := ingest.NewService(ingest.Dependencies{
		Store:     staging,
		Matcher:   match,
		Schemas:   schemas,
		Replay:    replay,
		Publisher: publisher,
		Logger:    log,
	}, ingest.Config{MaxRecordsPerBatch: cfg.Staging.MaxRecordsPerBatch})

	executor := promotion.NewExecutor(promotion.Dependencies{
		Store:     staging,
		Matcher:   match,
		Publisher: publisher,
		Logger:    log,
	}, promotion.Config{IdentityNumberDigits: cfg.Staging.IdentityNumberDigits})

	readModel := enrichment.NewReadModel(staging, match, log)

	// --- Zeebe ---
	zeebeClient, err := camunda.Connect(ctx, cfg.Camunda, camunda.DefaultRetryConfig, log)
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	log.Info("Zeebe client connected successfully", nil)

	workers := startWorkers(cfg, zeebeClient, workerHandlers{
		ingest:  ib.NewHandler(&ib.Config{Timeout: workerTimeout(ib.LoadConfig().Timeout, cfg.Workers[ib.TaskType])}, ingestService, log),
		promote: pr.NewHandler(&pr.Config{Timeout: workerTimeout(pr.LoadConfig().Timeout, cfg.Workers[pr.TaskType])}, executor, log),
		reject:  rr.NewHandler(&rr.Config{Timeout: workerTimeout(rr.LoadConfig().Timeout, cfg.Workers[rr.TaskType])}, executor, log),
		enrich:  er.NewHandler(&er.Config{Timeout: workerTimeout(er.LoadConfig().Timeout, cfg.Workers[er.TaskType])}, readModel, log),
		list:    lr.NewHandler(&lr.Config{Timeout: workerTimeout(lr.LoadConfig().Timeout, cfg.Workers[lr.TaskType])}, readModel, log),
	}, obs, log)

	// --- HTTP ---
	checks := []readinessCheck{
		{name: "postgres", check: pg.Ping},
		{name: "zeebe", check: func(ctx context.Context) error { return camunda.HealthCheck(ctx, zeebeClient) }},
	}
	if redisClient != nil {
		checks = append(checks, readinessCheck{name: "redis", check: redisClient.Ping})
	}
	server := &http.Server{
		Addr: cfg.HTTP.Address,
		Handler: newRouter(routerDeps{
			ingest:    ingestService,
			readModel: readModel,
			checks:    checks,
			logger:    log,
		}),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Millisecond,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Millisecond,
	}
	go func() {
		log.Info("http server listening", map[string]interface{}{"address": cfg.HTTP.Address})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", map[string]interface{}{"error": err})
		}
	}()

	// --- Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutdown signal received, stopping workers...", nil)
	for _, w := range workers {
		w.Close()
	}
	for _, w := range workers {
		w.AwaitClose()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", map[string]interface{}{"error": err})
	}
	if err := zeebeClient.Close(); err != nil {
		log.Error("zeebe client close failed", map[string]interface{}{"error": err})
	}
	log.Info("Worker manager stopped", nil)
}

type workerHandlers struct {
	ingest  camunda.JobHandler
	promote camunda.JobHandler
	reject  camunda.JobHandler
	enrich  camunda.JobHandler
	list    camunda.JobHandler
}

func startWorkers(cfg *config.Config, client zbc.Client, h workerHandlers, obs *observability.Observability, log logger.Logger) []worker.JobWorker {
	byType := []struct {
		taskType string
		handler  camunda.JobHandler
	}{
		{ib.TaskType, h.ingest},
		{pr.TaskType, h.promote},
		{rr.TaskType, h.reject},
		{er.TaskType, h.enrich},
		{lr.TaskType, h.list},
	}

	var started []worker.JobWorker
	for _, w := range byType {
		if jw := camunda.StartWorker(client, w.taskType, cfg.Workers[w.taskType], w.handler, obs, log); jw != nil {
			started = append(started, jw)
		}
	}
	return started
}

// workerTimeout prefers the configured timeout over the worker default.
func workerTimeout(def time.Duration, wcfg config.WorkerConfig) time.Duration {
	if wcfg.Timeout > 0 {
		return time.Duration(wcfg.Timeout) * time.Millisecond
	}
	return def
}
