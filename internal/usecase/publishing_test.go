package usecase

import (
	"context"
	"errors"
	"testing"

	"Vid2News/internal/domain"
)

func approvedRows(scores ...*float64) []domain.PostRecord {
	rows := make([]domain.PostRecord, len(scores))
	for i, s := range scores {
		rows[i] = domain.PostRecord{
			ID:      int64(i + 1),
			Title:   "post",
			Content: "body " + string(rune('a'+i)),
			Status:  "approved",
			Score:   s,
		}
	}
	return rows
}

func newPublishingJob(store *fakeStore, pub *fakePublisher) *PublishingJob {
	return NewPublishingJob(PublishingDeps{Store: store, Publisher: pub, Labels: domain.DefaultStatusLabels()})
}

func TestSelectBest(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		rows []domain.PostRecord
		want int64
	}{
		"highest wins":       {approvedRows(score(7), nil, score(9), score(3)), 3},
		"all missing":        {approvedRows(nil, nil, nil), 1},
		"tie keeps order":    {approvedRows(score(5), score(8), score(8)), 2},
		"missing sorts last": {approvedRows(nil, score(1)), 2},
		"negative beats nil": {approvedRows(nil, score(-2)), 2},
	}
	for name, tc := range cases {
		if got := SelectBest(tc.rows).ID; got != tc.want {
			t.Fatalf("%s: picked row %d, want %d", name, got, tc.want)
		}
	}
}

func TestPublishPicksHighestScore(t *testing.T) {
	t.Parallel()

	store := &fakeStore{rows: approvedRows(score(7), nil, score(9), score(3))}
	store.rows = append(store.rows, domain.PostRecord{ID: 10, Content: "pending", Status: "pending-review", Score: score(10)})
	pub := &fakePublisher{}

	outcome, err := newPublishingJob(store, pub).Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if outcome == nil || outcome.RowID != 3 || outcome.RemoteID != "remote-1" || outcome.Sink != "fake" {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if len(pub.bodies) != 1 || pub.bodies[0] != "body c" {
		t.Fatalf("unexpected published bodies %v", pub.bodies)
	}
	if store.status(3) != "published" {
		t.Fatalf("row 3 status = %q, want published", store.status(3))
	}
	if store.status(1) != "approved" || store.status(10) != "pending-review" {
		t.Fatalf("other rows must stay untouched")
	}
}

func TestPublishWithNothingApproved(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{}
	outcome, err := newPublishingJob(&fakeStore{}, pub).Run(context.Background())
	if err != nil || outcome != nil {
		t.Fatalf("expected nil outcome and nil error, got %+v, %v", outcome, err)
	}
	if len(pub.bodies) != 0 {
		t.Fatalf("nothing should be published")
	}
}

func TestPublishGuardsFailBeforeNetwork(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		rows []domain.PostRecord
		pub  *fakePublisher
	}{
		"empty content": {
			rows: []domain.PostRecord{{ID: 1, Content: "  ", Status: "approved", Score: score(9)}},
			pub:  &fakePublisher{},
		},
		"missing credentials": {
			rows: approvedRows(score(9)),
			pub:  &fakePublisher{credErr: errors.New("FB_PAGE_TOKEN is not set")},
		},
		"missing row id": {
			rows: []domain.PostRecord{{ID: 0, Content: "body", Status: "approved", Score: score(9)}},
			pub:  &fakePublisher{},
		},
	}
	for name, tc := range cases {
		store := &fakeStore{rows: tc.rows}
		_, err := newPublishingJob(store, tc.pub).Run(context.Background())
		if !errors.Is(err, domain.ErrPublishing) {
			t.Fatalf("%s: expected ErrPublishing, got %v", name, err)
		}
		if len(tc.pub.bodies) != 0 {
			t.Fatalf("%s: sink must not be called", name)
		}
		if len(store.patches) != 0 {
			t.Fatalf("%s: status must not change", name)
		}
	}
}

func TestPublishFailureLeavesStatus(t *testing.T) {
	t.Parallel()

	store := &fakeStore{rows: approvedRows(score(4))}
	pub := &fakePublisher{err: errSink}

	_, err := newPublishingJob(store, pub).Run(context.Background())
	if !errors.Is(err, domain.ErrPublishing) || !errors.Is(err, errSink) {
		t.Fatalf("expected wrapped sink error, got %v", err)
	}
	if store.status(1) != "approved" || len(store.patches) != 0 {
		t.Fatalf("failed publish must leave the row approved")
	}
}

func TestPublishUsesConfiguredLabels(t *testing.T) {
	t.Parallel()

	labels := domain.StatusLabels{Approved: "OK", Published: "LIVE"}
	store := &fakeStore{rows: []domain.PostRecord{{ID: 5, Content: "body", Status: "OK"}}}
	job := NewPublishingJob(PublishingDeps{Store: store, Publisher: &fakePublisher{}, Labels: labels})

	if _, err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if store.status(5) != "LIVE" {
		t.Fatalf("status = %q, want LIVE", store.status(5))
	}
}
