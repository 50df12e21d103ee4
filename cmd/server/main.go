// Package main provides the entry point for the citation graph service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/theke/citation-graph-service/internal/config"
	"github.com/theke/citation-graph-service/internal/database"
	"github.com/theke/citation-graph-service/internal/events"
	"github.com/theke/citation-graph-service/internal/jobs"
	"github.com/theke/citation-graph-service/internal/llm"
	"github.com/theke/citation-graph-service/internal/observability"
	"github.com/theke/citation-graph-service/internal/refsources"
	"github.com/theke/citation-graph-service/internal/refsources/arxiv"
	"github.com/theke/citation-graph-service/internal/refsources/crossref"
	"github.com/theke/citation-graph-service/internal/refsources/openalex"
	"github.com/theke/citation-graph-service/internal/refsources/pdftext"
	"github.com/theke/citation-graph-service/internal/refsources/pubmed"
	"github.com/theke/citation-graph-service/internal/refsources/semanticscholar"
	"github.com/theke/citation-graph-service/internal/repository"
	"github.com/theke/citation-graph-service/internal/resolver"
	httpserver "github.com/theke/citation-graph-service/internal/server/http"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "server").Logger()
	logger.Info().Msg("citation-graph-service starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info().Msg("database connection established")

	if cfg.Database.MigrationAutoRun {
		migrator, err := database.NewMigrator(db, cfg.Database.MigrationPath, logger)
		if err != nil {
			return fmt.Errorf("create migrator: %w", err)
		}
		defer func() {
			if closeErr := migrator.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close migrator")
			}
		}()

		if err := migrator.Up(); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics("citegraph")
	}

	paperRepo := repository.NewPgPaperRepository(db)
	citationRepo := repository.NewPgCitationRepository(db)
	jobRepo := repository.NewPgJobRepository(db)

	registry := buildSourceRegistry(cfg)
	for _, source := range registry.EnabledSources() {
		logger.Info().Str("source", source.Name()).Msg("reference source enabled")
	}

	res := resolver.New(paperRepo, resolver.Config{
		TitleSimilarity: cfg.Resolver.TitleSimilarity,
		YearTolerance:   cfg.Resolver.YearTolerance,
		SuggestionFloor: cfg.Resolver.SuggestionFloor,
	}, logger, metrics)

	extractor := resolver.NewExtractor(registry, res, paperRepo, citationRepo,
		cfg.Sources.FetchTimeout, logger, metrics)

	emitter := events.NewEmitter(events.Config{
		Enabled: cfg.Kafka.Enabled,
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
	}, logger)
	defer func() {
		if err := emitter.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close event emitter")
		}
	}()

	manager := jobs.NewManager(jobRepo, db, emitter, jobs.Config{
		Workers:         cfg.Jobs.Workers,
		QueueSize:       cfg.Jobs.QueueSize,
		Retention:       cfg.Jobs.Retention,
		CleanupInterval: cfg.Jobs.CleanupInterval,
	}, logger, metrics)

	manager.RegisterAction(jobs.NewExtractionAction(extractor, emitter))

	summarizer, err := llm.NewSummarizer(llm.FactoryConfig{
		Provider:    cfg.LLM.Provider,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
		MaxRetries:  cfg.LLM.MaxRetries,
		OpenAI: llm.OpenAIConfig{
			APIKey:  cfg.LLM.OpenAI.APIKey,
			Model:   cfg.LLM.OpenAI.Model,
			BaseURL: cfg.LLM.OpenAI.BaseURL,
		},
		Anthropic: llm.AnthropicConfig{
			APIKey:  cfg.LLM.Anthropic.APIKey,
			Model:   cfg.LLM.Anthropic.Model,
			BaseURL: cfg.LLM.Anthropic.BaseURL,
		},
	})
	switch {
	case err == nil:
		manager.RegisterAction(jobs.NewSummaryAction(paperRepo, summarizer, metrics))
		logger.Info().
			Str("provider", summarizer.Provider()).
			Str("model", summarizer.Model()).
			Msg("LLM summarizer configured")
	case errors.Is(err, llm.ErrDisabled):
		logger.Warn().Msg("LLM provider not configured, summary jobs disabled")
	default:
		return fmt.Errorf("create summarizer: %w", err)
	}

	manager.Start(ctx)
	defer manager.Stop()

	httpCfg := httpserver.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}
	httpSrv := httpserver.NewServer(httpCfg, paperRepo, citationRepo, manager, extractor, db, logger)

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress(),
			Handler:      metricsMux,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
	}

	errCh := make(chan error, 2)

	go func() {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	if metricsServer != nil {
		go func() {
			logger.Info().Str("address", metricsServer.Addr).Msg("metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	readyLog := logger.Info().Str("http_address", httpCfg.Address)
	if metricsServer != nil {
		readyLog = readyLog.Str("metrics_address", metricsServer.Addr)
	}
	readyLog.Msg("citation-graph-service is ready")

	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	logger.Info().Msg("shutting down citation-graph-service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown error")
		}
	}

	return nil
}

// buildSourceRegistry wires every configured reference source into the
// fan-out registry. Disabled sources are still registered; the registry
// skips them at fetch time.
func buildSourceRegistry(cfg *config.Config) *refsources.Registry {
	registry := refsources.NewRegistry()
	src := cfg.Sources

	registry.Register(crossref.New(crossref.Config{
		BaseURL:    src.Crossref.BaseURL,
		MailTo:     src.MailTo,
		Timeout:    src.Crossref.Timeout,
		RateLimit:  src.Crossref.RateLimit,
		MaxResults: src.Crossref.MaxResults,
		Enabled:    src.Crossref.Enabled,
	}))
	registry.Register(openalex.New(openalex.Config{
		BaseURL:    src.OpenAlex.BaseURL,
		MailTo:     src.MailTo,
		Timeout:    src.OpenAlex.Timeout,
		RateLimit:  src.OpenAlex.RateLimit,
		MaxResults: src.OpenAlex.MaxResults,
		Enabled:    src.OpenAlex.Enabled,
	}))
	registry.Register(semanticscholar.NewClient(semanticscholar.Config{
		BaseURL:    src.SemanticScholar.BaseURL,
		APIKey:     src.SemanticScholar.APIKey,
		Timeout:    src.SemanticScholar.Timeout,
		RateLimit:  src.SemanticScholar.RateLimit,
		MaxResults: src.SemanticScholar.MaxResults,
		Enabled:    src.SemanticScholar.Enabled,
	}, nil))
	registry.Register(pubmed.New(pubmed.Config{
		BaseURL:    src.PubMed.BaseURL,
		APIKey:     src.PubMed.APIKey,
		Timeout:    src.PubMed.Timeout,
		RateLimit:  src.PubMed.RateLimit,
		MaxResults: src.PubMed.MaxResults,
		Enabled:    src.PubMed.Enabled,
	}))
	registry.Register(arxiv.New(arxiv.Config{
		BaseURL:     src.ArXiv.BaseURL,
		GraphAPIKey: src.SemanticScholar.APIKey,
		Timeout:     src.ArXiv.Timeout,
		RateLimit:   src.ArXiv.RateLimit,
		MaxResults:  src.ArXiv.MaxResults,
		Enabled:     src.ArXiv.Enabled,
	}))
	registry.Register(pdftext.New(pdftext.Config{
		MaxPages:      src.PDFText.MaxPages,
		MinConfidence: src.PDFText.MinConfidence,
		Enabled:       src.PDFText.Enabled,
	}))

	return registry
}
