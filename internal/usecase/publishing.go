package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"Vid2News/internal/domain"
	"Vid2News/internal/ports"
)

// PublishingDeps wires the review store and the sink.
type PublishingDeps struct {
	Store     ports.PostStore
	Publisher ports.Publisher
	Labels    domain.StatusLabels
	Logger    *slog.Logger
}

// PublishOutcome describes the post that went out.
type PublishOutcome struct {
	RowID    int64    `json:"row_id"`
	Title    string   `json:"title"`
	Score    *float64 `json:"score"`
	Sink     string   `json:"sink"`
	RemoteID string   `json:"remote_id"`
}

// PublishingJob moves the best approved post to published.
type PublishingJob struct {
	store     ports.PostStore
	publisher ports.Publisher
	labels    domain.StatusLabels
	logger    *slog.Logger
}

// NewPublishingJob constructs the job. Empty labels use the canonical spelling.
func NewPublishingJob(deps PublishingDeps) *PublishingJob {
	return &PublishingJob{
		store:     deps.Store,
		publisher: deps.Publisher,
		labels:    deps.Labels,
		logger:    deps.Logger,
	}
}

// Run publishes at most one post: the approved row with the highest score.
// It returns nil, nil when nothing is approved. Any failure leaves the row's
// status untouched.
func (j *PublishingJob) Run(ctx context.Context) (*PublishOutcome, error) {
	if j.store == nil || j.publisher == nil {
		return nil, fmt.Errorf("%w: publishing job is not configured", domain.ErrPublishing)
	}

	rows, err := j.store.Read(ctx, domain.PostFilter{Status: j.labels.Label(domain.StatusApproved)})
	if err != nil {
		return nil, fmt.Errorf("read approved posts: %w", err)
	}
	if len(rows) == 0 {
		j.info("no approved posts to publish")
		return nil, nil
	}

	best := SelectBest(rows)
	if strings.TrimSpace(best.Content) == "" {
		return nil, fmt.Errorf("%w: post %d has no content", domain.ErrPublishing, best.ID)
	}
	if err := j.publisher.CheckCredentials(); err != nil {
		return nil, fmt.Errorf("%w: %s credentials: %w", domain.ErrPublishing, j.publisher.Name(), err)
	}
	if best.ID <= 0 {
		return nil, fmt.Errorf("%w: post has no row id", domain.ErrPublishing)
	}

	remoteID, err := j.publisher.Publish(ctx, best.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: post %d to %s: %w", domain.ErrPublishing, best.ID, j.publisher.Name(), err)
	}

	published := j.labels.Label(domain.StatusPublished)
	if err := j.store.Patch(ctx, []domain.PostPatch{{ID: best.ID, Status: &published}}); err != nil {
		return nil, fmt.Errorf("mark post %d published: %w", best.ID, err)
	}

	j.info("post published", "row", best.ID, "sink", j.publisher.Name(), "remote_id", remoteID)
	return &PublishOutcome{
		RowID:    best.ID,
		Title:    best.Title,
		Score:    best.Score,
		Sink:     j.publisher.Name(),
		RemoteID: remoteID,
	}, nil
}

// SelectBest returns the row with the highest score. Rows without a score
// rank below every scored row; ties keep store order.
func SelectBest(rows []domain.PostRecord) domain.PostRecord {
	ordered := make([]domain.PostRecord, len(rows))
	copy(ordered, rows)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i].Score, ordered[j].Score
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a > *b
		}
	})
	return ordered[0]
}

func (j *PublishingJob) info(msg string, args ...interface{}) {
	if j.logger != nil {
		j.logger.Info(msg, args...)
	}
}
