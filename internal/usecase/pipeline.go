package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"Vid2News/internal/clustering"
	"Vid2News/internal/domain"
	"Vid2News/internal/ports"
)

// Clusterer groups extracted items. clustering.Engine satisfies it.
type Clusterer interface {
	Cluster(ctx context.Context, items []domain.NewsItem) (clustering.Result, error)
}

// GenerationDeps wires every stage of a desk's generation run.
type GenerationDeps struct {
	Desk       string
	Sources    []domain.SourceUnit
	Window     time.Duration
	Count      int
	Extraction *ExtractionCoordinator
	Clusterer  Clusterer
	Synthesis  *SynthesisStage
	Store      ports.PostStore
	Labels     domain.StatusLabels
	Artifacts  ports.ArtifactWriter
	Recorder   ports.StageRecorder
	Logger     *slog.Logger
}

// GenerationJob runs fetch -> extract -> cluster -> synthesize -> store for one desk.
type GenerationJob struct {
	desk       string
	sources    []domain.SourceUnit
	window     time.Duration
	count      int
	extraction *ExtractionCoordinator
	clusterer  Clusterer
	synthesis  *SynthesisStage
	store      ports.PostStore
	labels     domain.StatusLabels
	artifacts  ports.ArtifactWriter
	recorder   ports.StageRecorder
	logger     *slog.Logger
	now        func() time.Time
	newRunID   func() string
}

// NewGenerationJob constructs the generation workflow.
func NewGenerationJob(deps GenerationDeps) *GenerationJob {
	return &GenerationJob{
		desk:       deps.Desk,
		sources:    deps.Sources,
		window:     deps.Window,
		count:      deps.Count,
		extraction: deps.Extraction,
		clusterer:  deps.Clusterer,
		synthesis:  deps.Synthesis,
		store:      deps.Store,
		labels:     deps.Labels,
		artifacts:  deps.Artifacts,
		recorder:   deps.Recorder,
		logger:     deps.Logger,
		now:        time.Now,
		newRunID:   func() string { return uuid.NewString() },
	}
}

// Run executes one generation pass. Per-source, per-transcript and
// per-cluster failures are contained; embedding failures and store failures
// abort the run.
func (g *GenerationJob) Run(ctx context.Context) (report domain.RunReport, err error) {
	started := g.now()
	report = domain.RunReport{RunID: g.newRunID(), Desk: g.desk, StartedAt: started}
	defer func() {
		report.FinishedAt = g.now()
		for _, stage := range report.Stages {
			g.recordStage(stage)
		}
		if g.recorder != nil {
			g.recorder.RecordRun(g.desk, JobGenerate, started, err)
		}
	}()

	if g.extraction == nil || g.clusterer == nil || g.synthesis == nil || g.store == nil {
		return report, fmt.Errorf("generation job for desk %s is not configured", g.desk)
	}

	extracted, err := g.extraction.Run(ctx, g.unitsFor(started))
	report.Stages = append(report.Stages, extracted.Fetch, extracted.Extract)
	if err != nil {
		return report, fmt.Errorf("extract news: %w", err)
	}
	report.Items = len(extracted.Items)
	if len(extracted.Items) == 0 {
		g.info("no news extracted", "run", report.RunID)
		return report, nil
	}

	clustered, err := g.clusterer.Cluster(ctx, extracted.Items)
	clusterStage := domain.StageReport{Stage: domain.StageCluster, Attempted: len(extracted.Items)}
	if err != nil {
		clusterStage.Failed = len(extracted.Items)
		report.Stages = append(report.Stages, clusterStage)
		return report, fmt.Errorf("cluster news: %w", err)
	}
	clusterStage.Skipped = len(clustered.Noise.Items)
	clusterStage.Succeeded = len(extracted.Items) - clusterStage.Skipped
	report.Stages = append(report.Stages, clusterStage)
	report.Clusters = len(clustered.Clusters)

	if g.artifacts != nil {
		snapshot := append(append([]domain.Cluster(nil), clustered.Clusters...), clustered.Noise)
		path, aErr := g.artifacts.WriteClusters(ctx, report.RunID, snapshot)
		if aErr != nil {
			g.warn("cluster artifact not written", "run", report.RunID, "error", aErr)
		} else {
			report.Artifact = path
		}
	}

	posts, synthesisStage := g.synthesis.Run(ctx, clustered.Clusters)
	report.Stages = append(report.Stages, synthesisStage)
	report.Posts = len(posts)
	if len(posts) == 0 {
		g.info("no posts written", "run", report.RunID, "clusters", report.Clusters)
		return report, nil
	}

	storeStage := domain.StageReport{Stage: domain.StageStore, Attempted: len(posts)}
	ids, err := g.store.Create(ctx, posts, g.labels.Label(domain.StatusPendingReview))
	if err != nil {
		storeStage.Failed = len(posts)
		report.Stages = append(report.Stages, storeStage)
		return report, fmt.Errorf("store posts: %w", err)
	}
	storeStage.Succeeded = len(ids)
	report.Stages = append(report.Stages, storeStage)

	g.info("generation finished",
		"run", report.RunID,
		"items", report.Items,
		"clusters", report.Clusters,
		"posts", report.Posts,
		"noise", len(clustered.Noise.Items))
	return report, nil
}

// unitsFor stamps the run's fetch window onto every configured source.
func (g *GenerationJob) unitsFor(now time.Time) []domain.SourceUnit {
	limit := domain.FetchLimit{Count: g.count}
	if g.window > 0 {
		limit.Since = now.Add(-g.window)
	}
	units := make([]domain.SourceUnit, len(g.sources))
	for i, src := range g.sources {
		src.Limit = limit
		units[i] = src
	}
	return units
}

func (g *GenerationJob) recordStage(stage domain.StageReport) {
	if g.recorder != nil {
		g.recorder.RecordStage(g.desk, stage)
	}
}

func (g *GenerationJob) info(msg string, args ...interface{}) {
	if g.logger != nil {
		g.logger.Info(msg, args...)
	}
}

func (g *GenerationJob) warn(msg string, args ...interface{}) {
	if g.logger != nil {
		g.logger.Warn(msg, args...)
	}
}
