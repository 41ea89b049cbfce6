package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kendallhq/kendall/internal/assistant_service/adapters/agentplatform"
	"github.com/kendallhq/kendall/internal/assistant_service/adapters/googleauth"
	"github.com/kendallhq/kendall/internal/assistant_service/adapters/notifier"
	"github.com/kendallhq/kendall/internal/assistant_service/adapters/telephony"
	"github.com/kendallhq/kendall/internal/assistant_service/app"
	"github.com/kendallhq/kendall/internal/assistant_service/enrichment"
	"github.com/kendallhq/kendall/internal/assistant_service/middleware"
	"github.com/kendallhq/kendall/internal/assistant_service/phone"
	repoPostgres "github.com/kendallhq/kendall/internal/assistant_service/repository/postgres"
	httptransport "github.com/kendallhq/kendall/internal/assistant_service/transport/http"
	"github.com/kendallhq/kendall/internal/assistant_service/voice"
	"github.com/kendallhq/kendall/internal/platform/config"
	"github.com/kendallhq/kendall/internal/platform/database"
	"github.com/kendallhq/kendall/internal/platform/logger"
	"github.com/kendallhq/kendall/internal/platform/messagebroker"
)

const serviceName = "assistant_service"

const chatTokenTTL = 30 * 24 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "service", serviceName, "error", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel)
	appLogger.Info("Assistant service starting...", "port", cfg.ServerPort)

	dbPool, err := database.NewDBPool(context.Background(), cfg.PostgresDSN)
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	appLogger.Info("Connected to PostgreSQL database")

	// The broker is optional: provisioning must not depend on it.
	var events app.EventPublisher
	natsClient, err := messagebroker.NewNATSClient(cfg.NATSUrl, serviceName, appLogger)
	if err != nil {
		appLogger.Warn("NATS unavailable, lifecycle events disabled", "error", err)
	} else {
		defer natsClient.Close()
		events = natsClient
		appLogger.Info("Connected to NATS")
	}

	// Repositories.
	recordRepo := repoPostgres.NewPgRecordRepository(dbPool, appLogger)
	messageRepo := repoPostgres.NewPgMessageRepository(dbPool, appLogger)
	contactRepo := repoPostgres.NewPgContactRepository(dbPool, appLogger)
	memoryRepo := repoPostgres.NewPgMemoryRepository(dbPool, appLogger)

	// External collaborators.
	agentClient := agentplatform.NewClient(appLogger, cfg.AgentPlatformBaseURL, cfg.AgentPlatformAPIKey, cfg.AgentWebhookURL, nil)
	telephonyClient := telephony.NewClient(appLogger, cfg.TelephonyBaseURL, cfg.TelephonyAccountSID, cfg.TelephonyAuthToken, cfg.TelephonySMSFrom, nil)
	voiceValidator := voice.NewHTTPValidator(appLogger, cfg.AgentPlatformBaseURL, cfg.AgentPlatformAPIKey, nil)
	emailNotifier := notifier.NewEmailNotifier(appLogger, cfg.MailAPIEndpoint, cfg.MailAPIKey, cfg.MailFromAddress, nil)
	googleRefresher := googleauth.NewTokenRefresher(appLogger, cfg.GoogleClientID, cfg.GoogleClientSecret)

	phoneProvisioner := phone.NewProvisioner(telephonyClient, agentClient, appLogger)
	enrichmentPoller := enrichment.NewPoller(recordRepo, appLogger, cfg.EnrichmentPollAttempts, cfg.EnrichmentPollInterval)

	// Application services.
	provisioningService := app.NewProvisioningAppService(
		recordRepo, voiceValidator, agentClient, phoneProvisioner, enrichmentPoller,
		emailNotifier, telephonyClient, events, appLogger, cfg.AppBaseURL,
	)
	chatService := app.NewChatAppService(recordRepo, messageRepo, contactRepo, memoryRepo, appLogger)

	chatTokens := middleware.NewChatTokenService(cfg.ChatTokenSecret, chatTokenTTL)
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitWindow, cfg.RateLimitMaxRequests)

	provisionHandler := httptransport.NewProvisionHandler(provisioningService, chatTokens, appLogger)
	chatHandler := httptransport.NewChatHandler(chatService, chatTokens, appLogger)
	integrationsHandler := httptransport.NewIntegrationsHandler(agentClient, googleRefresher, appLogger)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(httptransport.PrometheusMetricsMiddleware)
	// Provisioning blocks on phone verification and enrichment polling, so the
	// request timeout has to cover the full worst-case poll budget.
	r.Use(chimiddleware.Timeout(3 * time.Minute))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "Assistant service is healthy"})
	})
	r.Handle("/metrics", promhttp.Handler())

	// The provisioning endpoint is the only rate-limited surface.
	r.Group(func(limited chi.Router) {
		limited.Use(rateLimiter.Middleware)
		provisionHandler.RegisterRoutes(limited)
	})
	chatHandler.RegisterRoutes(r)
	integrationsHandler.RegisterRoutes(r)

	httpServer := &http.Server{Addr: fmt.Sprintf(":%d", cfg.ServerPort), Handler: r}
	appLogger.Info(fmt.Sprintf("Assistant service listening on port %d", cfg.ServerPort))
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("HTTP server failed to serve", "error", err)
		}
	}()

	quitChan := make(chan os.Signal, 1)
	signal.Notify(quitChan, syscall.SIGINT, syscall.SIGTERM)
	<-quitChan
	appLogger.Info("Shutdown signal received, shutting down HTTP server...")
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(ctxShutdown); err != nil {
		appLogger.Error("HTTP server shutdown failed", "error", err)
	} else {
		appLogger.Info("HTTP server shut down gracefully.")
	}
	appLogger.Info("Assistant service shut down.")
}
