package usecase

import (
	"context"
	"errors"
	"testing"

	"Vid2News/internal/domain"
)

type scriptedAnalyzer struct {
	verdicts map[int64]domain.PostReview
}

func (s scriptedAnalyzer) Review(_ context.Context, post domain.PostRecord) (domain.PostReview, error) {
	v, ok := s.verdicts[post.ID]
	if !ok {
		return domain.PostReview{}, errors.New("model unavailable")
	}
	return v, nil
}

func TestAnalysisApprovesAndRejects(t *testing.T) {
	t.Parallel()

	store := &fakeStore{rows: []domain.PostRecord{
		{ID: 1, Content: "a", Status: "pending-review"},
		{ID: 2, Content: "b", Status: "pending-review"},
		{ID: 3, Content: "c", Status: "pending-review"},
		{ID: 4, Content: "d", Status: "published"},
	}}
	job := NewAnalysisJob(AnalysisDeps{
		Store: store,
		Analyzer: scriptedAnalyzer{verdicts: map[int64]domain.PostReview{
			1: {Approved: true, Score: 8},
			2: {Approved: false, Score: 2},
			4: {Approved: true, Score: 10},
		}},
		Labels: domain.DefaultStatusLabels(),
	})

	report, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if report.Attempted != 3 || report.Succeeded != 2 || report.Failed != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if store.status(1) != "approved" || store.status(2) != "rejected" || store.status(3) != "pending-review" || store.status(4) != "published" {
		t.Fatalf("unexpected statuses: %+v", store.rows)
	}
	if store.rows[0].Score == nil || *store.rows[0].Score != 8 {
		t.Fatalf("score not stored: %+v", store.rows[0])
	}
}

func TestAnalysisPropagatesStoreErrors(t *testing.T) {
	t.Parallel()

	store := &fakeStore{readErr: errors.New("grist down")}
	if _, err := NewAnalysisJob(AnalysisDeps{Store: store, Analyzer: scriptedAnalyzer{}}).Run(context.Background()); err == nil {
		t.Fatalf("expected read error")
	}
}
