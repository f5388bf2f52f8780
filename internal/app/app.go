package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"

	"Vid2News/internal/clustering"
	"Vid2News/internal/config"
	"Vid2News/internal/domain"
	"Vid2News/internal/infrastructure/artifacts"
	"Vid2News/internal/infrastructure/cache"
	"Vid2News/internal/infrastructure/facebook"
	"Vid2News/internal/infrastructure/grist"
	"Vid2News/internal/infrastructure/httpclient"
	"Vid2News/internal/infrastructure/llm"
	"Vid2News/internal/infrastructure/localfs"
	"Vid2News/internal/infrastructure/metrics"
	"Vid2News/internal/infrastructure/scheduler"
	"Vid2News/internal/infrastructure/sources"
	"Vid2News/internal/infrastructure/storage"
	"Vid2News/internal/infrastructure/telegram"
	"Vid2News/internal/infrastructure/youtube"
	"Vid2News/internal/logging"
	"Vid2News/internal/ports"
	"Vid2News/internal/scanner"
	"Vid2News/internal/server"
	"Vid2News/internal/usecase"
	"Vid2News/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	desks    []*usecase.Desk
	closers  []func() error
}

// shared holds the adapters every desk reuses.
type shared struct {
	source    ports.TranscriptSource
	extractor ports.NewsExtractor
	engine    *clustering.Engine
	writer    ports.PostWriter
	analyzer  ports.PostAnalyzer
	recorder  *metrics.Recorder
	gristHTTP *httpclient.Client
	db        *sql.DB
}

// New builds every desk of cfg. Connections opened here are released by Close.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}
	a := &Application{cfg: cfg, logger: baseLogger, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	deps, err := a.buildShared(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	for _, deskCfg := range cfg.Desks {
		desk, err := a.buildDesk(deskCfg, deps)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("desk %s: %w", deskCfg.Name, err)
		}
		a.desks = append(a.desks, desk)
	}
	return a, nil
}

func (a *Application) buildShared(ctx context.Context) (shared, error) {
	cfg := a.cfg
	log := a.logger

	registry := scanner.NewRegistry()
	registry.Register(youtube.NewScanner(youtube.Options{
		Client:            &http.Client{Timeout: cfg.Fetch.Timeout},
		Languages:         cfg.Fetch.Languages,
		DefaultCount:      cfg.Fetch.Videos,
		ScanLimit:         cfg.Fetch.ScanLimit,
		RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
		UserAgent:         cfg.Fetch.UserAgent,
		Logger:            log.With("component", "scanner.youtube"),
	}))
	registry.Register(localfs.NewScanner(cfg.Fetch.Videos, log.With("component", "scanner.localfs")))

	retry := httpclient.DefaultRetryConfig()
	retry.MaxRetries = cfg.OpenAI.MaxRetries
	client := llm.NewClient(llm.Options{
		BaseURL: cfg.OpenAI.BaseURL,
		APIKey:  cfg.OpenAI.APIKey,
		Timeout: cfg.OpenAI.Timeout,
		Retry:   retry,
		Logger:  log.With("component", "llm"),
	})

	var embedder ports.Embedder = llm.NewEmbedder(client, cfg.OpenAI.EmbeddingModel)
	if rc := cfg.Cache.Redis; rc.Addr != "" {
		rdb := goredis.NewClient(&goredis.Options{Addr: rc.Addr, Password: rc.Password, DB: rc.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("embedding cache disabled", "addr", rc.Addr, "error", err)
			_ = rdb.Close()
		} else {
			a.closers = append(a.closers, rdb.Close)
			embedder = cache.NewEmbeddingCache(rdb, embedder, cfg.OpenAI.EmbeddingModel, rc.Prefix, rc.TTL, log.With("component", "cache"))
		}
	}

	engine, err := a.buildEngine(embedder)
	if err != nil {
		return shared{}, err
	}

	deps := shared{
		source:    sources.NewStrategySource(registry, log.With("component", "source")),
		extractor: llm.NewExtractor(client, cfg.OpenAI.ExtractionModel, cfg.Extraction.Temperature, log.With("component", "extractor")),
		engine:    engine,
		writer:    llm.NewSynthesizer(client, cfg.OpenAI.SynthesisModel, cfg.Synthesis.Temperature, cfg.Synthesis.Language, log.With("component", "synthesizer")),
		analyzer:  llm.NewAnalyzer(client, cfg.OpenAI.AnalysisModel, cfg.Analysis.Temperature),
		recorder:  metrics.New(a.registry),
	}

	switch cfg.Store.Backend {
	case "postgres":
		db, err := storage.Open(ctx, cfg.Store.Postgres.DSN)
		if err != nil {
			return shared{}, err
		}
		a.closers = append(a.closers, db.Close)
		deps.db = db
	default:
		deps.gristHTTP = httpclient.New(&http.Client{Timeout: 30 * time.Second}, httpclient.DefaultRetryConfig())
	}
	return deps, nil
}

func (a *Application) buildEngine(embedder ports.Embedder) (*clustering.Engine, error) {
	cc := a.cfg.Clustering
	metric, err := clustering.ParseMetric(cc.Metric)
	if err != nil {
		return nil, err
	}
	selection, err := clustering.ParseSelection(cc.Selection)
	if err != nil {
		return nil, err
	}

	umap := clustering.DefaultUMAPConfig()
	if cc.Neighbors > 0 {
		umap.Neighbors = cc.Neighbors
	}
	if cc.Components > 0 {
		umap.Components = cc.Components
	}
	if cc.Epochs > 0 {
		umap.Epochs = cc.Epochs
	}
	umap.MinDist = cc.MinDist
	umap.Seed = cc.Seed

	return clustering.NewEngine(embedder, clustering.Config{
		UMAP: umap,
		HDBSCAN: clustering.HDBSCANConfig{
			MinClusterSize: cc.MinClusterSize,
			MinSamples:     cc.MinSamples,
			Metric:         metric,
			Selection:      selection,
		},
		OutlierDistance: cc.OutlierDistance,
	}, a.logger.With("component", "clustering")), nil
}

func (a *Application) buildDesk(dc config.DeskConfig, deps shared) (*usecase.Desk, error) {
	log := a.logger.With("desk", dc.Name)
	labels := domain.StatusLabels{
		PendingReview: a.cfg.Store.Status.PendingReview,
		Approved:      a.cfg.Store.Status.Approved,
		Rejected:      a.cfg.Store.Status.Rejected,
		Published:     a.cfg.Store.Status.Published,
	}

	var store ports.PostStore
	if deps.db != nil {
		store = storage.NewPostgresStore(deps.db, dc.Name)
	} else {
		gs, err := grist.NewStore(grist.Options{
			BaseURL:  a.cfg.Store.Grist.BaseURL,
			APIKey:   a.cfg.Store.Grist.APIKey,
			Document: dc.Table.Document,
			Table:    dc.Table.Name,
			Client:   deps.gristHTTP,
			Logger:   log.With("component", "grist"),
		})
		if err != nil {
			return nil, err
		}
		store = gs
	}

	publisher, err := newPublisher(dc.Sink)
	if err != nil {
		return nil, err
	}

	units := make([]domain.SourceUnit, 0, len(dc.Sources))
	for _, src := range dc.Sources {
		kind := src.Scanner
		if kind == "" {
			kind = "youtube"
		}
		units = append(units, domain.SourceUnit{Name: src.Name, Scanner: kind, URL: src.URL, Options: src.Options})
	}

	var writer ports.ArtifactWriter
	if a.cfg.Artifacts.Dir != "" {
		writer = artifacts.NewWriter(a.cfg.Artifacts.Dir, dc.Name)
	}

	desk := &usecase.Desk{
		Name:     dc.Name,
		Store:    store,
		Labels:   labels,
		Recorder: deps.recorder,
		Generate: usecase.NewGenerationJob(usecase.GenerationDeps{
			Desk:    dc.Name,
			Sources: units,
			Window:  a.cfg.Fetch.Window,
			Count:   dc.Videos,
			Extraction: usecase.NewExtractionCoordinator(usecase.ExtractionDeps{
				Source:    deps.source,
				Extractor: deps.extractor,
				Workers:   a.cfg.Extraction.Workers,
				Logger:    log.With("component", "extraction"),
			}),
			Clusterer: deps.engine,
			Synthesis: usecase.NewSynthesisStage(deps.writer, log.With("component", "synthesis")),
			Store:     store,
			Labels:    labels,
			Artifacts: writer,
			Recorder:  deps.recorder,
			Logger:    log.With("component", "generate"),
		}),
		Analyze: usecase.NewAnalysisJob(usecase.AnalysisDeps{
			Store:    store,
			Analyzer: deps.analyzer,
			Labels:   labels,
			Logger:   log.With("component", "analyze"),
		}),
	}
	if publisher != nil {
		desk.Publish = usecase.NewPublishingJob(usecase.PublishingDeps{
			Store:     store,
			Publisher: publisher,
			Labels:    labels,
			Logger:    log.With("component", "publish"),
		})
	}
	return desk, nil
}

func newPublisher(sink config.SinkConfig) (ports.Publisher, error) {
	switch sink.Type {
	case "":
		return nil, nil
	case "facebook":
		return facebook.NewPublisher(sink.TokenEnv, sink.TargetEnv, sink.BaseURL), nil
	case "telegram":
		return telegram.NewPublisher(sink.TokenEnv, sink.TargetEnv, sink.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown sink type %q", sink.Type)
	}
}

// Desks returns every desk, or only the named one.
func (a *Application) Desks(name string) ([]*usecase.Desk, error) {
	if name == "" {
		return a.desks, nil
	}
	for _, d := range a.desks {
		if d.Name == name {
			return []*usecase.Desk{d}, nil
		}
	}
	return nil, fmt.Errorf("unknown desk %q", name)
}

// RunJob runs job once for the selected desks. One desk failing does not stop the others.
func (a *Application) RunJob(ctx context.Context, job, deskName string) error {
	desks, err := a.Desks(deskName)
	if err != nil {
		return err
	}
	var errs []error
	for _, d := range desks {
		a.logger.Info("job started", "desk", d.Name, "job", job)
		if err := d.RunJob(ctx, job); err != nil {
			a.logger.Error("job failed", "desk", d.Name, "job", job, "error", err)
			errs = append(errs, fmt.Errorf("desk %s: %w", d.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Serve runs the cron schedules and the ops server until ctx is done.
func (a *Application) Serve(ctx context.Context) error {
	sched := usecase.NewScheduler(a.logger.With("component", "scheduler"))
	specs := []struct{ job, spec string }{
		{usecase.JobGenerate, a.cfg.Scheduler.Generate},
		{usecase.JobAnalyze, a.cfg.Scheduler.Analyze},
		{usecase.JobPublish, a.cfg.Scheduler.Publish},
	}
	for _, d := range a.desks {
		for _, s := range specs {
			if s.spec == "" {
				continue
			}
			if s.job == usecase.JobPublish && d.Publish == nil {
				continue
			}
			driver, err := scheduler.NewCronScheduler(s.spec, a.cfg.Scheduler.Location())
			if err != nil {
				return fmt.Errorf("desk %s %s schedule: %w", d.Name, s.job, err)
			}
			sched.Add(driver, d, s.job)
		}
	}
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("scheduler started", "jobs", sched.Len(), "timezone", a.cfg.Scheduler.Location().String())

	srv := server.New(server.Options{
		Address:   a.cfg.Server.Address,
		JWTSecret: []byte(a.cfg.Server.JWTSecret),
		Desks:     a.desks,
		Gatherer:  a.registry,
		Logger:    a.logger.With("component", "server"),
		ErrorLog:  logger.New(a.logger, "http", slog.LevelWarn),
	})
	if a.cfg.Server.JWTSecret == "" {
		a.logger.Warn("job triggers disabled, no jwt secret configured")
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Start() }()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serveErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return errors.Join(runErr, srv.Shutdown(shutdownCtx), sched.Stop(shutdownCtx))
}

// Close releases database and cache connections.
func (a *Application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
