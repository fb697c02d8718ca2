package main

import (
	"log"
	"net/http"
	"os"

	"go.uber.org/zap"

	"health-companion/internal/config"
	"health-companion/internal/core"
	"health-companion/internal/directory"
	"health-companion/internal/fetch"
	"health-companion/internal/fhir"
	"health-companion/internal/guard"
	httpserver "health-companion/internal/http"
	"health-companion/internal/llm"
	"health-companion/internal/logging"
	"health-companion/internal/session"
	"health-companion/internal/tools"
)

func main() {
	cfg, err := config.Load(os.Getenv("HEALTHCOMPANION_CONFIG"))
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Production)
	if err != nil {
		log.Fatalf("failed to construct logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck // stderr sync failure at exit is uninteresting

	apiKey := cfg.LLM.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		logger.Fatal("OPENAI_API_KEY must be set")
	}

	llmClient := llm.NewOpenAIClient(llm.Options{
		APIKey:         apiKey,
		Model:          cfg.LLM.Model,
		Temperature:    cfg.LLM.Temperature,
		RequestTimeout: cfg.LLM.RequestTimeout,
		MaxRetries:     cfg.LLM.MaxRetries,
		InitialBackoff: cfg.LLM.InitialBackoff,
		MaxBackoff:     cfg.LLM.MaxBackoff,
	}, logger.Named("llm"))

	registry := tools.NewRegistry()
	if cfg.Upstream.ProviderSearchURL != "" {
		providerTool := tools.NewProviderSearch(
			cfg.Upstream.ProviderSearchURL,
			cfg.Upstream.FHIRUsername,
			cfg.Upstream.FHIRPassword,
			logger.Named("provider_search"),
		)
		if err := registry.Register(providerTool); err != nil {
			logger.Fatal("tool registration failed", zap.Error(err))
		}
	} else {
		logger.Warn("provider search tool not configured, skipping")
	}
	if cfg.Upstream.TrialSearchURL != "" {
		trialTool := tools.NewTrialSearch(
			cfg.Upstream.TrialSearchURL,
			cfg.Upstream.FHIRUsername,
			cfg.Upstream.FHIRPassword,
			logger.Named("trial_search"),
		)
		if err := registry.Register(trialTool); err != nil {
			logger.Fatal("tool registration failed", zap.Error(err))
		}
	} else {
		logger.Warn("clinical trial search tool not configured, skipping")
	}

	store := session.NewStore(session.StoreOptions{
		TTL: cfg.Session.TTL,
		Reducer: fhir.Options{
			CeilingBytes: cfg.Reducer.CeilingBytes,
			Priority:     cfg.Reducer.Priority,
		},
		MaxTurns: cfg.History.MaxTurns,
		MaxChars: cfg.History.MaxChars,
	})

	orchestrator := core.New(llmClient, registry, guard.New(cfg.Guard.Phrases), core.Options{
		MaxToolRounds: cfg.Tools.MaxRounds,
		ToolTimeout:   cfg.Tools.InvokeTimeout,
		Disclaimers:   cfg.Disclaimers,
	}, logger.Named("orchestrator"))

	var dir *directory.Directory
	var fetcher *fetch.Client
	if cfg.Upstream.PatientCSVPath != "" {
		dir, err = directory.LoadCSV(cfg.Upstream.PatientCSVPath)
		if err != nil {
			logger.Fatal("failed to load patient directory", zap.Error(err))
		}
		fetcher = fetch.New(cfg.Upstream.FHIRUsername, cfg.Upstream.FHIRPassword, cfg.LLM.RequestTimeout)
		logger.Info("patient directory loaded", zap.Int("patients", dir.Len()))
	}

	srv := httpserver.NewServer(store, orchestrator, dir, fetcher, logger.Named("http"))

	logger.Info("listening", zap.String("addr", cfg.ListenAddr), zap.Int("tools", registry.Len()))
	if err := http.ListenAndServe(cfg.ListenAddr, srv); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
