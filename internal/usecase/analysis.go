package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"Vid2News/internal/domain"
	"Vid2News/internal/ports"
)

// AnalysisDeps wires the review store and the model reviewer.
type AnalysisDeps struct {
	Store    ports.PostStore
	Analyzer ports.PostAnalyzer
	Labels   domain.StatusLabels
	Logger   *slog.Logger
}

// AnalysisJob scores pending posts and approves or rejects them.
type AnalysisJob struct {
	store    ports.PostStore
	analyzer ports.PostAnalyzer
	labels   domain.StatusLabels
	logger   *slog.Logger
}

// NewAnalysisJob constructs the job.
func NewAnalysisJob(deps AnalysisDeps) *AnalysisJob {
	return &AnalysisJob{
		store:    deps.Store,
		analyzer: deps.Analyzer,
		labels:   deps.Labels,
		logger:   deps.Logger,
	}
}

// Run reviews every pending row. A failed review leaves its row pending.
func (j *AnalysisJob) Run(ctx context.Context) (domain.StageReport, error) {
	report := domain.StageReport{Stage: domain.StageAnalysis}
	if j.store == nil || j.analyzer == nil {
		return report, fmt.Errorf("analysis job is not configured")
	}

	rows, err := j.store.Read(ctx, domain.PostFilter{Status: j.labels.Label(domain.StatusPendingReview)})
	if err != nil {
		return report, fmt.Errorf("read pending posts: %w", err)
	}

	var patches []domain.PostPatch
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Attempted++
		review, err := j.analyzer.Review(ctx, row)
		if err != nil {
			report.Failed++
			j.warn("review failed", "row", row.ID, "error", err)
			continue
		}

		status := j.labels.Label(domain.StatusRejected)
		if review.Approved {
			status = j.labels.Label(domain.StatusApproved)
		}
		score := review.Score
		patches = append(patches, domain.PostPatch{ID: row.ID, Status: &status, Score: &score})
		report.Succeeded++
	}

	if len(patches) > 0 {
		if err := j.store.Patch(ctx, patches); err != nil {
			return report, fmt.Errorf("store reviews: %w", err)
		}
	}
	if j.logger != nil {
		j.logger.Info("analysis finished", "pending", len(rows), "reviewed", report.Succeeded, "failed", report.Failed)
	}
	return report, nil
}

func (j *AnalysisJob) warn(msg string, args ...interface{}) {
	if j.logger != nil {
		j.logger.Warn(msg, args...)
	}
}
