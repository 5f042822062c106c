// cmd/origin-server/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"applyflow/internal/ai"
	"applyflow/internal/applications"
	"applyflow/internal/common/config"
	"applyflow/internal/common/database"
	"applyflow/internal/common/logger"
	"applyflow/internal/jobs"
	"applyflow/internal/notify"
	"applyflow/internal/queue"
	"applyflow/internal/scheduler"
	"applyflow/internal/server"
	"applyflow/internal/users"
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
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New("info", "console")
		fallback.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting origin server...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis ---
	// The queue service degrades gracefully when the broker is down, so a
	// failed ping here is logged, not fatal.
	redisClient, err := database.NewRedis(cfg.Database.Redis)
	if err != nil {
		zapLog.Fatal("redis client init failed", zap.Error(err))
	}
	defer redisClient.Close()
	if err := redisClient.Ping(ctx); err != nil {
		zapLog.Warn("redis unreachable at startup, queue will degrade until it returns", zap.Error(err))
	} else {
		zapLog.Info("Redis connected successfully")
	}

	// --- Init Elasticsearch ---
	// Search is an optional enrichment; the catalog works without it.
	var searchIndex *jobs.SearchIndex
	esClient, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
	if err != nil || esClient.Ping() != nil {
		zapLog.Warn("elasticsearch unavailable, job search disabled", zap.Error(err))
	} else {
		searchIndex = jobs.NewSearchIndex(esClient.Client, cfg.Database.Elasticsearch.JobsIndex, log)
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Wire services ---
	userStore := users.NewStore(pg.DB)

	queueStore := queue.NewStore(redisClient.Client, cfg.Queue, log)
	queueService := queue.NewService(queueStore, cfg.Queue, log)

	notifier, err := notify.New(ctx, cfg.Notifications, userStore, log)
	if err != nil {
		zapLog.Fatal("notifier init failed", zap.Error(err))
	}

	appService := applications.NewService(applications.NewStore(pg.DB), queueService, notifierOrNil(notifier), log)

	matcher := ai.NewGenAIMatcher(cfg.APIs, log)
	jobService := jobs.NewService(jobs.NewStore(pg.DB), searchIndex, matcher, userStore, log)

	scheduleStore := scheduler.NewStore(pg.DB)
	autoApply := scheduler.New(scheduleStore, jobService, appService, userStore, cfg.Automation, log)
	if err := autoApply.Start(); err != nil {
		zapLog.Fatal("scheduler start failed", zap.Error(err))
	}
	defer autoApply.Stop()

	srv := server.New(cfg.Server, cfg.Queue, queueService, appService, jobService, scheduleStore, log)

	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address()))
		if err := srv.Start(); err != nil {
			zapLog.Error("HTTP server stopped", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("server shutdown failed", zap.Error(err))
	}

	zapLog.Info("Origin server stopped gracefully")
}

// notifierOrNil keeps the optional notifier out of the service when both
// channels are disabled; a typed nil would dodge the service's nil check.
func notifierOrNil(n *notify.Notifier) applications.Notifier {
	if n == nil {
		return nil
	}
	return n
}
