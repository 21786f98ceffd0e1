// cmd/intake-server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"tax-intake/internal/analytics"
	"tax-intake/internal/bridge"
	"tax-intake/internal/common/aws"
	"tax-intake/internal/common/camunda"
	"tax-intake/internal/common/config"
	"tax-intake/internal/common/database"
	"tax-intake/internal/common/logger"
	"tax-intake/internal/common/observability"
	"tax-intake/internal/common/zoho"
	"tax-intake/internal/intake"
	"tax-intake/internal/orders"
	"tax-intake/internal/session"
	classifytier "tax-intake/internal/workers/questionnaire/classify-tier"
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
		bootLog := logger.New("info", "console")
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting intake server...",
		zap.String("environment", cfg.App.Environment),
		zap.String("intakeBackend", cfg.Intake.Backend),
		zap.Int("filingYear", cfg.Questionnaire.FilingYear),
	)

	obs := observability.New(observability.Options{
		ServiceName:    cfg.App.Name,
		JaegerEndpoint: cfg.Tracing.JaegerEndpoint,
		Logger:         log,
	})

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

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

	orderStarter, err := orders.NewPostgresStarter(pg.DB, cfg.Orders.CheckoutBaseURL, log)
	if err != nil {
		zapLog.Fatal("order starter misconfigured", zap.Error(err))
	}
	if err := orderStarter.Migrate(ctx); err != nil {
		zapLog.Fatal("orders migration failed", zap.Error(err))
	}

	// --- Init Redis with retry ---
	redis := database.NewRedis(cfg.Database.Redis)
	err = retryWithBackoff(func() error {
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		// Dedupe degrades to pass-through; keep serving.
		zapLog.Warn("redis unavailable, inquiry de-duplication degraded", zap.Error(err))
	} else {
		zapLog.Info("Redis connected successfully")
	}
	defer redis.Close()

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	if cfg.Database.Elasticsearch.Enabled {
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
		if err := esClient.EnsureIndex(ctx, cfg.Analytics.ElasticsearchIndex, database.EventIndexMapping); err != nil {
			zapLog.Fatal("analytics index setup failed", zap.Error(err))
		}
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Init Zeebe Client with retry ---
	var zeebe *camunda.Client
	if cfg.Camunda.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
				GatewayAddress:         cfg.Camunda.BrokerAddress,
				UsePlaintextConnection: true,
				ConnectionTimeout:      10 * time.Second,
				RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
			})
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		zapLog.Info("Zeebe client connected successfully")
	}

	// --- Inquiry intake ---
	var inquiries bridge.InquiryIntake
	switch cfg.Intake.Backend {
	case config.IntakeBackendCamunda:
		inquiries = intake.NewCamundaIntake(zeebe, cfg.Camunda.InquiryProcessID, log)
	default:
		crm := zoho.NewCRMClient(
			cfg.Integrations.Zoho.APIKey,
			cfg.Integrations.Zoho.AuthToken,
			cfg.Integrations.Zoho.BaseURL,
		)
		inquiries = intake.NewZohoIntake(crm, log)
	}

	if cfg.Integrations.AWS.SES.Enabled {
		ses, err := aws.NewSESClient(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			zapLog.Fatal("ses client failed", zap.Error(err))
		}
		inquiries = intake.NewNotifying(inquiries, ses,
			cfg.Integrations.AWS.SES.FromEmail,
			cfg.Integrations.AWS.SES.OfficeEmail,
			log,
		)
	}
	inquiries = intake.NewDeduplicating(inquiries, redis.Client, config.GetDuration(cfg.Intake.DedupeTTL), log)

	// --- Analytics ---
	sinks := analytics.Multi{analytics.PrometheusSink{}}
	if cfg.Integrations.AWS.SNS.Enabled {
		sns, err := aws.NewSNSClient(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			zapLog.Fatal("sns client failed", zap.Error(err))
		}
		sinks = append(sinks, analytics.NewSNSSink(sns, cfg.Integrations.AWS.SNS.TopicARN))
	}
	if esClient != nil {
		sinks = append(sinks, analytics.NewElasticsearchSink(esClient.Client, cfg.Analytics.ElasticsearchIndex))
	}
	dispatcher := analytics.NewDispatcher(sinks, analytics.DispatcherOptions{
		QueueSize: cfg.Analytics.QueueSize,
		Timeout:   config.GetDuration(cfg.Analytics.Timeout),
		Logger:    log,
	})
	zapLog.Info("Analytics sinks initialized", zap.String("sinks", sinks.Name()))

	// --- Sessions ---
	submissions := bridge.New(bridge.Options{
		Intake:        inquiries,
		Orders:        orderStarter,
		FilingYear:    cfg.Questionnaire.FilingYear,
		Logger:        log,
		Observability: obs,
	})

	registry := session.NewRegistry(session.RegistryOptions{
		TTL:              config.GetDuration(cfg.Server.SessionTTL),
		AutoAdvanceDelay: config.GetDuration(cfg.Questionnaire.AutoAdvanceDelay),
		Events:           dispatcher,
		Logger:           log,
	})
	go registry.Run(ctx, time.Minute)

	api := session.NewAPI(registry, submissions, log)

	// --- Classify-tier worker ---
	var classifyWorker *camunda.CamundaWorker
	if zeebe != nil {
		handler := classifytier.NewHandler(&classifytier.Config{
			Timeout: config.GetDuration(cfg.Camunda.Timeout),
		}, log, obs)
		classifyWorker = camunda.NewWorker(zeebe.GetClient(), camunda.WorkerOptions{
			TaskType:      classifytier.TaskType,
			Name:          cfg.App.Name,
			MaxJobsActive: cfg.Camunda.MaxJobsActive,
			Timeout:       config.GetDuration(cfg.Camunda.Timeout),
			Handler:       handler,
		}, log)
	}

	// --- Session API Server ---
	server := &fasthttp.Server{
		Handler:            api.Handler,
		Name:               cfg.App.Name,
		MaxRequestBodySize: cfg.Server.MaxBodyBytes,
		ReadTimeout:        10 * time.Second,
		WriteTimeout:       10 * time.Second,
		IdleTimeout:        60 * time.Second,
	}
	go func() {
		zapLog.Info("Session API listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(cfg.Server.Address); err != nil {
			zapLog.Fatal("session API failed", zap.Error(err))
		}
	}()

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]interface{}{"status": "healthy"})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := map[string]string{"postgres": "ok", "redis": "ok"}
		status := http.StatusOK
		if err := pg.Ping(checkCtx); err != nil {
			checks["postgres"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		if err := redis.Ping(checkCtx); err != nil {
			checks["redis"] = err.Error()
		}
		if zeebe != nil {
			checks["zeebe"] = "ok"
			if err := zeebe.HealthCheck(checkCtx); err != nil {
				checks["zeebe"] = err.Error()
				status = http.StatusServiceUnavailable
			}
		}
		writeStatus(w, status, map[string]interface{}{
			"status":   http.StatusText(status),
			"checks":   checks,
			"sessions": registry.Len(),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())

	ops := &http.Server{Addr: cfg.Server.OpsAddress, Handler: mux}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Server.OpsAddress))
		if err := ops.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.ShutdownWithContext(shutdownCtx); err != nil {
		zapLog.Error("Error stopping session API", zap.Error(err))
	}
	if err := ops.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if classifyWorker != nil {
		classifyWorker.Stop(shutdownCtx)
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		zapLog.Error("Error draining analytics", zap.Error(err))
	}
	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error flushing telemetry", zap.Error(err))
	}

	zapLog.Info("Intake server stopped")
}

func writeStatus(w http.ResponseWriter, status int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
