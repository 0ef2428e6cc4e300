// cmd/dispatch-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"dispatch-engine/internal/common/aws"
	"dispatch-engine/internal/common/config"
	"dispatch-engine/internal/common/database"
	"dispatch-engine/internal/common/logger"
	"dispatch-engine/internal/common/observability"
	"dispatch-engine/internal/dispatch/audit"
	"dispatch-engine/internal/dispatch/coordinator"
	"dispatch-engine/internal/dispatch/ledger"
	"dispatch-engine/internal/dispatch/notify"
	"dispatch-engine/internal/dispatch/replenish"
	"dispatch-engine/internal/dispatch/scoring"
	"dispatch-engine/internal/dispatch/selector"
	"dispatch-engine/internal/dispatch/store"

	aj "dispatch-engine/internal/workers/dispatch/accept-job"
	dj "dispatch-engine/internal/workers/dispatch/dispatch-job"
	ro "dispatch-engine/internal/workers/dispatch/reject-offer"
	rp "dispatch-engine/internal/workers/dispatch/replenish-offers"
	us "dispatch-engine/internal/workers/dispatch/update-job-status"
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
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting dispatch manager...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("dispatch-manager")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Zeebe Client with retry ---
	var zeebeClient zbc.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebeClient, err = zbc.NewClient(&zbc.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")

	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

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

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init Notification Backends ---
	notifyTimeout := config.GetDuration(cfg.Notifications.Timeout)

	var gateway notify.Gateway = notify.NoopGateway{}
	if cfg.Notifications.AWS.SNS.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("sns client init failed", zap.Error(err))
		}
		gateway = notify.NewSNSGateway(snsClient, cfg.Notifications.AWS.SNS.TopicARN, notifyTimeout, log)
		zapLog.Info("SNS gateway initialized")
	} else {
		zapLog.Warn("SNS disabled, worker push notifications are no-ops")
	}

	var mailer *notify.CustomerMailer
	if cfg.Notifications.AWS.SES.Enabled {
		sesClient, err := aws.NewSESClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("ses client init failed", zap.Error(err))
		}
		mailer = notify.NewCustomerMailer(sesClient, cfg.Notifications.AWS.SES.FromEmail, notifyTimeout, log)
		zapLog.Info("SES mailer initialized")
	}

	// --- Build Dispatch Pipeline ---
	auditor := audit.NewIndexer(esClient.Client, cfg.Database.Elasticsearch.AuditIndex, log)

	provider := &scoring.FileProvider{
		MetadataPath: cfg.Model.MetadataPath,
		InferenceURL: cfg.Model.InferenceURL,
		Timeout:      config.GetDuration(cfg.Model.Timeout),
	}
	scorer := scoring.NewScorer(provider, cfg.Dispatch.Scoring, time.Duration(cfg.Model.LoadBackoff)*time.Second, log)

	jobs := store.NewJobStore(pg.DB, log)
	workers := store.NewWorkerStore(pg.DB, redis.Client, time.Duration(cfg.Dispatch.WorkerCacheTTL)*time.Second, log)
	offers := ledger.NewStore(pg.DB, log)
	coord := coordinator.New(pg.DB, log)
	sel := selector.New(workers, scorer, log)

	replenisher := replenish.New(
		cfg.Dispatch.TargetPoolSize,
		time.Duration(cfg.Dispatch.ThrottleTTL)*time.Second,
		jobs, offers, sel, gateway, auditor, obs, redis.Client, log,
	)

	sweeper := replenish.NewSweeper(
		time.Duration(cfg.Dispatch.OfferTTL)*time.Second,
		offers, jobs, workers, replenisher, log,
	)
	if err := sweeper.Start(cfg.Dispatch.SweepSchedule); err != nil {
		zapLog.Fatal("sweep scheduling failed", zap.Error(err))
	}
	defer sweeper.Stop()

	// --- Register Task Workers ---
	if cfg.Workers[dj.TaskType].Enabled {
		handler := dj.NewHandler(
			&dj.Config{
				Timeout: config.GetDuration(cfg.Workers[dj.TaskType].Timeout),
			},
			jobs, replenisher, log,
		)
		startWorker(zeebeClient, dj.TaskType, cfg.Workers[dj.TaskType], handler.Handle, zapLog)
	}

	if cfg.Workers[aj.TaskType].Enabled {
		handler := aj.NewHandler(
			&aj.Config{
				Timeout: config.GetDuration(cfg.Workers[aj.TaskType].Timeout),
			},
			coord, gateway, mailer, auditor, obs, log,
		)
		startWorker(zeebeClient, aj.TaskType, cfg.Workers[aj.TaskType], handler.Handle, zapLog)
	}

	if cfg.Workers[ro.TaskType].Enabled {
		handler := ro.NewHandler(
			&ro.Config{
				Timeout: config.GetDuration(cfg.Workers[ro.TaskType].Timeout),
			},
			offers, replenisher, auditor, log,
		)
		startWorker(zeebeClient, ro.TaskType, cfg.Workers[ro.TaskType], handler.Handle, zapLog)
	}

	if cfg.Workers[us.TaskType].Enabled {
		handler := us.NewHandler(
			&us.Config{
				Timeout: config.GetDuration(cfg.Workers[us.TaskType].Timeout),
			},
			coord, gateway, log,
		)
		startWorker(zeebeClient, us.TaskType, cfg.Workers[us.TaskType], handler.Handle, zapLog)
	}

	if cfg.Workers[rp.TaskType].Enabled {
		handler := rp.NewHandler(
			&rp.Config{
				Timeout: config.GetDuration(cfg.Workers[rp.TaskType].Timeout),
			},
			replenisher, log,
		)
		startWorker(zeebeClient, rp.TaskType, cfg.Workers[rp.TaskType], handler.Handle, zapLog)
	}
	zapLog.Info("All dispatch workers registered successfully")

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			probeCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			status := "ready"
			code := http.StatusOK
			if err := pg.Ping(probeCtx); err != nil {
				status, code = "postgres unreachable", http.StatusServiceUnavailable
			} else if err := redis.Ping(probeCtx); err != nil {
				status, code = "redis unreachable", http.StatusServiceUnavailable
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(code)
			json.NewEncoder(w).Encode(map[string]string{
				"status": status,
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		addr := fmt.Sprintf(":%d", cfg.App.MetricsPort)
		zapLog.Info("Health/Metrics server listening", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")

	if err := zeebeClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Dispatch manager stopped gracefully")
}

func startWorker(client zbc.Client, taskType string, wcfg config.WorkerConfig, handlerFunc func(worker.JobClient, entities.Job), log *zap.Logger) {
	if !wcfg.Enabled {
		log.Info("worker disabled", zap.String("taskType", taskType))
		return
	}

	client.NewJobWorker().
		JobType(taskType).
		Handler(handlerFunc).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(time.Duration(wcfg.Timeout) * time.Millisecond).
		Open()

	log.Info("worker started",
		zap.String("taskType", taskType),
		zap.Int("maxJobsActive", wcfg.MaxJobsActive),
		zap.Int("timeout_ms", wcfg.Timeout),
	)
}
