package ports

import (
	"context"
	"time"

	"Vid2News/internal/domain"
)

// TranscriptSource pulls recent transcripts for one configured source.
type TranscriptSource interface {
	Fetch(ctx context.Context, source domain.SourceUnit) ([]domain.Transcript, error)
}

// ChatCompleter sends a system/user prompt pair and returns the raw JSON answer.
type ChatCompleter interface {
	CompleteJSON(ctx context.Context, req ChatRequest) (string, error)
}

// ChatRequest is a single-turn completion call.
type ChatRequest struct {
	Model       string
	System      string
	User        string
	Temperature float64
}

// Embedder turns texts into vectors, one per text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// NewsExtractor distills news items from a transcript.
type NewsExtractor interface {
	Extract(ctx context.Context, transcript domain.Transcript) ([]domain.NewsItem, error)
}

// PostWriter writes one editorial post for a cluster of related items.
type PostWriter interface {
	Write(ctx context.Context, cluster domain.Cluster) (domain.GeneratedPost, error)
}

// PostAnalyzer scores a pending post and decides whether it should be approved.
type PostAnalyzer interface {
	Review(ctx context.Context, post domain.PostRecord) (domain.PostReview, error)
}

// PostStore is the review gateway: whole-row create, read and patch.
type PostStore interface {
	Create(ctx context.Context, posts []domain.GeneratedPost, status string) ([]int64, error)
	Read(ctx context.Context, filter domain.PostFilter) ([]domain.PostRecord, error)
	Patch(ctx context.Context, patches []domain.PostPatch) error
}

// Publisher delivers a post body to an external audience.
type Publisher interface {
	Name() string
	CheckCredentials() error
	Publish(ctx context.Context, body string) (string, error)
}

// ArtifactWriter persists diagnostic snapshots of a run.
type ArtifactWriter interface {
	WriteClusters(ctx context.Context, runID string, clusters []domain.Cluster) (string, error)
}

// StageRecorder observes stage outcomes (metrics, tracing).
type StageRecorder interface {
	RecordStage(desk string, report domain.StageReport)
	RecordRun(desk, job string, started time.Time, err error)
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
