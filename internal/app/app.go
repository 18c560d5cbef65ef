// Package app assembles the adapters and services into a running
// application. The CLI and MCP server both start from an App.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/custodia-labs/ragline/internal/adapters/driven/ai"
	ristrettocache "github.com/custodia-labs/ragline/internal/adapters/driven/cache/ristretto"
	"github.com/custodia-labs/ragline/internal/adapters/driven/config/file"
	"github.com/custodia-labs/ragline/internal/adapters/driven/credentials"
	"github.com/custodia-labs/ragline/internal/adapters/driven/events"
	"github.com/custodia-labs/ragline/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
	"github.com/custodia-labs/ragline/internal/core/ports/driving"
	"github.com/custodia-labs/ragline/internal/core/services"
	"github.com/custodia-labs/ragline/internal/extractors"
	"github.com/custodia-labs/ragline/internal/logger"
)

// generationTimeout bounds a single chat completion.
const generationTimeout = 2 * time.Minute

// historyBuffer is the number of progress events queued for persistence.
const historyBuffer = 256

// Options configure New.
type Options struct {
	// Dir is the application home. Empty uses file.DefaultDir().
	Dir string

	// OllamaURL overrides the default Ollama endpoint.
	OllamaURL string

	// Maintenance starts the periodic maintenance scheduler.
	Maintenance bool
}

// App holds the wired services.
type App struct {
	Dir      string
	Settings *domain.AppSettings

	SettingsService driving.SettingsService
	KnowledgeBases  driving.KnowledgeBaseService
	Ingestion       driving.IngestionService
	Query           driving.QueryService
	Jobs            driving.JobService
	History         driven.JobStore
	Sync            driving.VectorSyncService
	Validator       driven.ProviderValidator
	Events          *events.Broadcaster
	Prompts         *file.PromptStore
	Maintenance     *services.Maintenance

	store    *sqlite.Store
	index    driven.VectorIndex
	cache    *ristrettocache.Cache
	history  *events.HistorySink
	tracker  *services.JobTracker
	pipeline *services.EmbeddingPipeline
}

// New opens storage under opts.Dir and wires every service.
//
//nolint:funlen // Linear wiring reads better in one place
func New(ctx context.Context, opts Options) (*App, error) {
	dir := opts.Dir
	if dir == "" {
		d, err := file.DefaultDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		dir = d
	}

	configStore, err := file.NewConfigStore(dir)
	if err != nil {
		return nil, fmt.Errorf("opening config: %w", err)
	}
	settingsService := services.NewSettingsService(configStore)
	settings, err := settingsService.Get()
	if err != nil {
		return nil, err
	}
	logger.Debug("settings loaded from %s", configStore.Path())

	store, err := sqlite.NewStore(filepath.Join(dir, "data"))
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	a := &App{
		Dir:             dir,
		Settings:        settings,
		SettingsService: settingsService,
		store:           store,
	}
	ok := false
	defer func() {
		if !ok {
			a.Close(context.Background()) //nolint:errcheck // already failing
		}
	}()

	index, err := ai.NewVectorIndex(ctx, settings.Vector, filepath.Join(dir, "data"))
	if err != nil {
		return nil, err
	}
	a.index = index

	cache, err := ristrettocache.New(ristrettocache.Config{TTL: settings.QueryCacheTTL})
	if err != nil {
		return nil, fmt.Errorf("creating query cache: %w", err)
	}
	a.cache = cache

	providers := ai.NewProviders(ai.ProviderOptions{
		OllamaURL:    opts.OllamaURL,
		RateLimitRPS: settings.Pipeline.RateLimitRPS,
		Timeout:      generationTimeout,
	})
	registry := services.NewProviderRegistry()
	for _, p := range providers.Embedding {
		registry.RegisterEmbedding(p)
	}
	for _, p := range providers.Generation {
		registry.RegisterGeneration(p)
	}

	providerStore := store.ProviderConfigStore()
	resolver := services.NewProviderResolver(credentials.NewChain(providerStore, credentials.NewEnvStore()), registry)
	embedder := services.NewEmbedder(resolver, registry, cache)

	a.Events = events.NewBroadcaster()
	a.history = events.NewHistorySink(store.JobStore(), historyBuffer)
	a.tracker = services.NewJobTracker(
		events.Multi{a.Events, events.LogSink{}, a.history},
		services.WithMaxConcurrent(settings.Jobs.MaxConcurrent),
		services.WithRetention(settings.Jobs.Retain),
	)

	a.pipeline, err = services.NewEmbeddingPipeline(embedder, index, store.ChunkStore(),
		services.WithBatchSize(settings.Pipeline.BatchSize),
		services.WithBatchDelay(settings.Pipeline.BatchDelay),
	)
	if err != nil {
		return nil, err
	}

	kbStore := store.KnowledgeBaseStore()
	a.KnowledgeBases = services.NewKnowledgeBaseService(
		kbStore, store.BotStore(), store.DocumentStore(), store.ChunkStore(),
		providerStore, index, a.tracker, *settings,
	)
	fetcher := extractors.NewFetcher(extractors.FetcherConfig{PerHostRPS: extractors.DefaultHostRateLimit})
	a.Ingestion = services.NewIngestionService(
		kbStore, store.DocumentStore(), store.ChunkStore(), index, a.pipeline, a.tracker,
		extractors.DefaultRegistry(), fetcher, extractors.NewCrawler(fetcher),
	)

	rag := services.NewRAGEngine(kbStore, store.BotStore(), embedder, index, resolver, registry)
	a.Prompts, err = file.NewPromptStore(filepath.Join(dir, "prompts"))
	if err != nil {
		return nil, err
	}
	rag.SetPromptStore(a.Prompts)
	a.Query = rag

	a.Jobs = a.tracker
	a.History = store.JobStore()
	syncer := services.NewVectorSync(kbStore, store.ChunkStore(), index, a.pipeline)
	a.Sync = syncer
	a.Validator = ai.NewConfigValidator(providers)

	if opts.Maintenance {
		a.Maintenance = services.NewMaintenance(settings.MaintenanceSchedule, kbStore, a.tracker, syncer)
		if err := a.Maintenance.Start(ctx); err != nil {
			return nil, fmt.Errorf("starting maintenance: %w", err)
		}
	}

	ok = true
	return a, nil
}

// Close stops background work, waiting for running jobs until ctx ends,
// then releases storage.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Maintenance != nil {
		a.Maintenance.Stop()
	}
	if a.Ingestion != nil {
		errs = append(errs, a.Ingestion.Shutdown(ctx))
	} else if a.tracker != nil {
		errs = append(errs, a.tracker.Shutdown(ctx))
	}
	if a.pipeline != nil {
		a.pipeline.Close()
	}
	if a.history != nil {
		a.history.Close()
	}
	if a.Events != nil {
		a.Events.Close()
	}
	if a.cache != nil {
		a.cache.Close()
	}
	if a.index != nil {
		errs = append(errs, a.index.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}
