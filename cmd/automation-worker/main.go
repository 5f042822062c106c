// cmd/automation-worker/main.go
package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"applyflow/internal/common/config"
	"applyflow/internal/common/logger"
	"applyflow/internal/worker"
	"applyflow/internal/worker/platforms"
)

func main() {
	cfg := config.LoadWorker()

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting automation worker...",
		zap.String("origin", cfg.Worker.OriginBaseURL),
		zap.Int("pollIntervalMs", cfg.Worker.PollInterval),
	)

	client := worker.NewOriginClient(
		cfg.Worker.OriginBaseURL,
		config.GetDuration(cfg.Worker.RequestTimeout),
		log,
	)
	w := worker.New(cfg.Worker, client, platforms.DefaultRegistry(), log)

	// --- Health & Metrics Server ---
	go func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(rw http.ResponseWriter, r *http.Request) {
			rw.Header().Set("Content-Type", "application/json")
			status := "healthy"
			if w.Session().Stopped() {
				status = "stopped"
			}
			processed, succeeded, failed := w.Session().Totals()
			json.NewEncoder(rw).Encode(map[string]interface{}{
				"status":    status,
				"processed": processed,
				"succeeded": succeeded,
				"failed":    failed,
				"time":      time.Now().Format(time.RFC3339),
			})
		})
		mux.Handle("/metrics", promhttp.Handler())

		addr := fmt.Sprintf(":%d", cfg.Server.MetricsPort)
		zapLog.Info("Health/Metrics server listening", zap.String("address", addr))
		if err := http.ListenAndServe(addr, mux); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	w.Start()

	// --- Graceful Shutdown ---
	// The worker also stops itself on its circuit breakers; Stop is
	// idempotent so both paths can race safely.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping worker...")
	w.Stop()
	zapLog.Info("Automation worker stopped gracefully")
}
