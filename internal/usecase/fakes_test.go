package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"Vid2News/internal/domain"
)

// fakeSource serves canned transcripts per source name.
type fakeSource struct {
	mu          sync.Mutex
	transcripts map[string][]domain.Transcript
	fail        map[string]bool
	units       []domain.SourceUnit
}

func (f *fakeSource) Fetch(_ context.Context, src domain.SourceUnit) ([]domain.Transcript, error) {
	f.mu.Lock()
	f.units = append(f.units, src)
	f.mu.Unlock()
	if f.fail[src.Name] {
		return nil, fmt.Errorf("%w: %s unreachable", domain.ErrFetch, src.Name)
	}
	return f.transcripts[src.Name], nil
}

// fakeExtractor emits two items per transcript after a random pause.
type fakeExtractor struct {
	mu     sync.Mutex
	seen   []string
	fail   map[string]bool
	panics map[string]bool
	jitter bool
}

func (f *fakeExtractor) Extract(_ context.Context, t domain.Transcript) ([]domain.NewsItem, error) {
	f.mu.Lock()
	f.seen = append(f.seen, t.VideoID)
	f.mu.Unlock()

	if f.jitter {
		time.Sleep(time.Duration(rand.Intn(3)) * time.Millisecond)
	}
	if f.panics[t.VideoID] {
		panic("unit exploded")
	}
	if f.fail[t.VideoID] {
		return nil, fmt.Errorf("%w: malformed answer for %s", domain.ErrExtraction, t.VideoID)
	}
	return []domain.NewsItem{
		{Title: t.VideoID + "-1", Content: "c", SourceID: t.VideoID, SourceURL: t.URL, SourceLabel: t.Channel},
		{Title: t.VideoID + "-2", Content: "c", SourceID: t.VideoID, SourceURL: t.URL, SourceLabel: t.Channel},
	}, nil
}

func (f *fakeExtractor) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.seen...)
}

// fakeStore is an in-memory review gateway.
type fakeStore struct {
	rows     []domain.PostRecord
	nextID   int64
	readErr  error
	patchErr error
	patches  [][]domain.PostPatch
	created  []string
}

func (f *fakeStore) Create(_ context.Context, posts []domain.GeneratedPost, status string) ([]int64, error) {
	ids := make([]int64, 0, len(posts))
	for _, p := range posts {
		f.nextID++
		f.rows = append(f.rows, domain.PostRecord{
			ID:           f.nextID,
			Title:        p.Title,
			Content:      p.Content,
			SourceURLs:   p.SourceURLs,
			SourceLabels: p.SourceLabels,
			Status:       status,
		})
		f.created = append(f.created, status)
		ids = append(ids, f.nextID)
	}
	return ids, nil
}

func (f *fakeStore) Read(_ context.Context, filter domain.PostFilter) ([]domain.PostRecord, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	var out []domain.PostRecord
	for _, r := range f.rows {
		if filter.Status == "" || r.Status == filter.Status {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) Patch(_ context.Context, patches []domain.PostPatch) error {
	if f.patchErr != nil {
		return f.patchErr
	}
	f.patches = append(f.patches, patches)
	for _, p := range patches {
		for i := range f.rows {
			if f.rows[i].ID != p.ID {
				continue
			}
			if p.Status != nil {
				f.rows[i].Status = *p.Status
			}
			if p.Score != nil {
				score := *p.Score
				f.rows[i].Score = &score
			}
		}
	}
	return nil
}

func (f *fakeStore) status(id int64) string {
	for _, r := range f.rows {
		if r.ID == id {
			return r.Status
		}
	}
	return ""
}

// fakePublisher records what it was asked to post. With entered set, Publish
// signals it and waits for release.
type fakePublisher struct {
	credErr error
	err     error
	entered chan struct{}
	release chan struct{}

	mu     sync.Mutex
	bodies []string
}

func (f *fakePublisher) Name() string { return "fake" }

func (f *fakePublisher) CheckCredentials() error { return f.credErr }

func (f *fakePublisher) Publish(_ context.Context, body string) (string, error) {
	f.mu.Lock()
	f.bodies = append(f.bodies, body)
	n := len(f.bodies)
	f.mu.Unlock()

	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("remote-%d", n), nil
}

func (f *fakePublisher) published() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.bodies)
}

// fakeRecorder captures stage and run observations.
type fakeRecorder struct {
	mu     sync.Mutex
	stages []domain.StageReport
	runs   []string
	errs   []error
}

func (f *fakeRecorder) RecordStage(_ string, report domain.StageReport) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stages = append(f.stages, report)
}

func (f *fakeRecorder) RecordRun(_, job string, _ time.Time, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, job)
	f.errs = append(f.errs, err)
}

var errSink = errors.New("sink rejected the post")

func score(v float64) *float64 { return &v }
