package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voiceops/crmbot/cmd/mainconfig"
	"github.com/voiceops/crmbot/internal/ai"
	"github.com/voiceops/crmbot/internal/analytics"
	"github.com/voiceops/crmbot/internal/api/router"
	"github.com/voiceops/crmbot/internal/bot"
	"github.com/voiceops/crmbot/internal/cache"
	appconfig "github.com/voiceops/crmbot/internal/config"
	"github.com/voiceops/crmbot/internal/crm"
	"github.com/voiceops/crmbot/internal/observability/metrics"
	"github.com/voiceops/crmbot/internal/pipeline"
	"github.com/voiceops/crmbot/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting crmbot API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	registry := prometheus.NewRegistry()
	pipelineMetrics := metrics.NewPipelineMetrics(registry)

	// Optional classification cache.
	redisClient := cache.BuildClient(context.Background(), cache.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		TLS:      cfg.RedisTLS,
	}, logger, true)
	clsCache := cache.New(redisClient, cfg.CacheTTL)

	// Optional AI classification path.
	var aiClassifier pipeline.AIClassifier
	if cfg.AIEnabled {
		llm := buildLLMClient(context.Background(), cfg, logger)
		if llm != nil {
			aiClassifier = ai.NewClassifier(llm, ai.ClassifierConfig{
				Model:      cfg.BedrockModelID,
				Timeout:    cfg.AITimeout,
				MaxRetries: cfg.AIMaxRetries,
				Logger:     logger.Logger,
			})
			logger.Info("ai classification enabled", "provider", cfg.AIProvider)
		} else {
			logger.Warn("ai enabled but no provider configured, using rules only")
		}
	}

	crmClient := crm.New(crm.Config{
		BaseURL:    cfg.CRMBaseURL,
		Timeout:    cfg.DispatchTimeout,
		MaxRetries: cfg.DispatchMaxRetries,
		Backoff:    cfg.DispatchBackoffBase,
		BackoffCap: cfg.DispatchBackoffCap,
		Logger:     logger.Logger,
	})

	var sink *analytics.Sink
	if cfg.AnalyticsLogPath != "" {
		var err error
		sink, err = analytics.NewSink(cfg.AnalyticsLogPath, logger.Logger)
		if err != nil {
			logger.Error("failed to open analytics log", "error", err)
			os.Exit(1)
		}
		defer sink.Close()
	}

	pipelineCfg := pipeline.Config{
		AI:          aiClassifier,
		AIThreshold: cfg.AIConfidenceThreshold,
		Dispatcher:  crmClient,
		Metrics:     pipelineMetrics,
		Analytics:   sink,
		Deadline:    cfg.RequestDeadline,
		Logger:      logger.Logger,
	}
	if clsCache != nil {
		pipelineCfg.Cache = clsCache
	}
	orchestrator := pipeline.NewOrchestrator(pipelineCfg)

	botHandler := bot.NewHandler(orchestrator, sink, cfg.MaxTranscriptLength, logger)

	r := router.New(&router.Config{
		Logger:         logger,
		BotHandler:     botHandler,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// buildLLMClient assembles the provider stack for the configured
// AI_PROVIDER: bedrock, gemini, or auto (bedrock with gemini fallback).
func buildLLMClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) ai.LLMClient {
	var bedrock ai.LLMClient
	if cfg.AIProvider == "bedrock" || cfg.AIProvider == "auto" {
		if cfg.BedrockModelID != "" {
			awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
			if err != nil {
				logger.Error("failed to load AWS config", "error", err)
			} else {
				bedrock = ai.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg))
			}
		}
	}

	var gemini ai.LLMClient
	if cfg.AIProvider == "gemini" || cfg.AIProvider == "auto" {
		if cfg.GeminiAPIKey != "" {
			client, err := ai.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
			if err != nil {
				logger.Error("failed to create gemini client", "error", err)
			} else {
				gemini = client
			}
		}
	}

	switch {
	case bedrock != nil && gemini != nil:
		return ai.NewFallbackLLMClient(bedrock, gemini, logger.Logger)
	case bedrock != nil:
		return bedrock
	case gemini != nil:
		return gemini
	}
	return nil
}
