package usecase

import (
	"context"
	"log/slog"
	"sort"

	"Vid2News/internal/domain"
	"Vid2News/internal/ports"
)

// SynthesisStage turns clusters into posts, one writer call per cluster.
type SynthesisStage struct {
	writer ports.PostWriter
	logger *slog.Logger
}

// NewSynthesisStage wires the post writer.
func NewSynthesisStage(writer ports.PostWriter, logger *slog.Logger) *SynthesisStage {
	return &SynthesisStage{writer: writer, logger: logger}
}

// Run writes a post for every non-noise, non-empty cluster in ascending id
// order. A failed cluster is logged and produces no post.
func (s *SynthesisStage) Run(ctx context.Context, clusters []domain.Cluster) ([]domain.GeneratedPost, domain.StageReport) {
	report := domain.StageReport{Stage: domain.StageSynthesis}

	ordered := make([]domain.Cluster, len(clusters))
	copy(ordered, clusters)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	var posts []domain.GeneratedPost
	for _, cluster := range ordered {
		if cluster.IsNoise() || len(cluster.Items) == 0 {
			report.Skipped++
			continue
		}
		if ctx.Err() != nil {
			report.Skipped++
			continue
		}
		report.Attempted++

		post, err := s.writer.Write(ctx, cluster)
		if err != nil {
			report.Failed++
			if s.logger != nil {
				s.logger.Warn("synthesis failed", "cluster", cluster.ID, "items", len(cluster.Items), "error", err)
			}
			continue
		}
		report.Succeeded++
		posts = append(posts, post)
	}

	if s.logger != nil {
		s.logger.Info("synthesis finished", "clusters", report.Attempted, "posts", len(posts), "failed", report.Failed)
	}
	return posts, report
}
