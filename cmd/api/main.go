// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/ace-assistant/internal/config"
	"github.com/capitalize-ai/ace-assistant/internal/handler"
	"github.com/capitalize-ai/ace-assistant/internal/llm"
	natsclient "github.com/capitalize-ai/ace-assistant/internal/nats"
	"github.com/capitalize-ai/ace-assistant/internal/service"
	"github.com/capitalize-ai/ace-assistant/internal/session"
	"github.com/capitalize-ai/ace-assistant/internal/settings"
	"github.com/capitalize-ai/ace-assistant/internal/store"
	"github.com/capitalize-ai/ace-assistant/internal/voice"
	"github.com/capitalize-ai/ace-assistant/pkg/logger"
	"github.com/capitalize-ai/ace-assistant/pkg/tracing"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewWithOptions(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, tracing.Config{
			ServiceName: "ace-assistant",
			Endpoint:    cfg.TracingEndpoint,
			Insecure:    cfg.TracingInsecure,
		})
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(context.Background(), tp)
		}
	}

	// Conversation store
	gateway, err := store.Open(ctx, store.Config{
		Driver:      store.Driver(cfg.StoreDriver),
		DatabaseURL: cfg.DatabaseURL,
		SQLitePath:  cfg.SQLitePath,
	})
	if err != nil {
		log.Fatal("failed to open conversation store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer gateway.Close()

	// Settings store
	settingsStore, err := settings.Open(ctx, settings.Config{
		Backend:  settings.Backend(cfg.SettingsBackend),
		BoltPath: cfg.BoltPath,
		RedisURL: cfg.RedisURL,
	})
	if err != nil {
		log.Fatal("failed to open settings store", zap.String("backend", cfg.SettingsBackend), zap.Error(err))
	}
	defer settingsStore.Close()

	// Decision journal
	var natsClient *natsclient.Client
	var journal service.Journal
	if cfg.NATSURL != "" {
		natsClient, err = natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Fatal("failed to connect to NATS", zap.Error(err))
		}
		defer natsClient.Close()

		streamManager := natsclient.NewStreamManager(natsClient, log)
		if err := streamManager.EnsureStream(ctx); err != nil {
			log.Fatal("failed to ensure stream", zap.Error(err))
		}
		go refreshStreamMetrics(ctx, streamManager, log)
		journal = streamManager
	} else {
		log.Info("NATS_URL not set, decision journal disabled")
	}

	// Model provider. A missing key is not fatal: the health endpoint and
	// every exchange report what to configure.
	providerStatus := handler.ProviderStatus{Name: cfg.LLMProvider}
	var llmClient llm.Client
	provider, err := llm.ParseProvider(cfg.LLMProvider)
	if err == nil {
		providerStatus.Name = string(provider)
		llmClient, err = newLLMClient(provider, cfg)
	}
	if err != nil {
		providerStatus.Missing = llm.SetupHint(providerStatus.Name, err)
		log.Warn("model provider not configured", zap.String("provider", cfg.LLMProvider), zap.Error(err))
	}

	coordOpts := []session.Option{
		session.WithMaxTokens(cfg.LLMMaxTokens),
		session.WithMaxSteps(cfg.LLMMaxSteps),
		session.WithMissingProviderHint(providerStatus.Missing),
		session.WithLogger(log),
	}
	if cfg.LLMModel != "" {
		coordOpts = append(coordOpts, session.WithModel(cfg.LLMModel))
	}
	coordinator := session.NewCoordinator(llmClient, coordOpts...)

	// Speech goes through OpenAI whichever provider answers.
	var synth voice.Synthesizer
	var transcriber voice.Transcriber
	if speech, err := llm.NewOpenAIClientWithConfig(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL); err == nil {
		synth, transcriber = speech, speech
	} else {
		log.Info("speech disabled", zap.Error(err))
	}

	// Services
	conversationSvc := service.NewConversationService(gateway, log)
	assistantSvc := service.NewAssistantService(service.AssistantDeps{
		Coordinator:   coordinator,
		Conversations: conversationSvc,
		Settings:      settingsStore,
		Journal:       journal,
		Synthesizer:   synth,
		Transcriber:   transcriber,
	}, service.AssistantConfig{SessionTTL: cfg.SessionTTL}, log)

	// Handlers
	router := handler.NewRouter(
		handler.RouterConfig{
			AllowedOrigins:    cfg.AllowedOrigins,
			RateLimitRequests: cfg.RateLimitRequests,
			RateLimitWindow:   cfg.RateLimitWindow,
			MessageRateLimit:  cfg.MessageRateLimit,
		},
		handler.NewHealthHandler(providerStatus, conversationSvc, natsClient),
		handler.NewConversationHandler(conversationSvc, log),
		handler.NewSessionHandler(assistantSvc, log),
		log,
	)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

func newLLMClient(provider llm.Provider, cfg *config.Config) (llm.Client, error) {
	switch provider {
	case llm.ProviderAnthropic:
		return llm.NewClient(provider, cfg.AnthropicAPIKey)
	case llm.ProviderOpenAI:
		c, err := llm.NewOpenAIClientWithConfig(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("%w: %q", llm.ErrUnknownProvider, string(provider))
	}
}

func refreshStreamMetrics(ctx context.Context, m *natsclient.StreamManager, log *logger.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.UpdateMetrics(ctx); err != nil {
				log.Debug("failed to refresh stream metrics", zap.Error(err))
			}
		}
	}
}
