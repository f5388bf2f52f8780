package usecase

import (
	"context"
	"reflect"
	"testing"

	"Vid2News/internal/domain"
)

func extractionSources() ([]domain.SourceUnit, *fakeSource) {
	src := &fakeSource{transcripts: map[string][]domain.Transcript{
		"markets": {
			{VideoID: "m1", Text: "one", Channel: "markets", URL: "u/m1"},
			{VideoID: "m2", Text: "two", Channel: "markets", URL: "u/m2"},
			{VideoID: "m3", Text: "  ", Channel: "markets", URL: "u/m3"},
		},
		"tech": {
			{VideoID: "t1", Text: "three", Channel: "tech", URL: "u/t1"},
			{VideoID: "t2", Text: "four", Channel: "tech", URL: "u/t2"},
		},
		"world": {
			{VideoID: "w1", Text: "five", Channel: "world", URL: "u/w1"},
		},
	}}
	units := []domain.SourceUnit{{Name: "markets"}, {Name: "tech"}, {Name: "world"}}
	return units, src
}

func titles(items []domain.NewsItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Title
	}
	return out
}

func TestExtractionOutputIndependentOfWorkers(t *testing.T) {
	t.Parallel()

	units, src := extractionSources()
	want := []string{"m1-1", "m1-2", "m2-1", "m2-2", "t1-1", "t1-2", "t2-1", "t2-2", "w1-1", "w1-2"}

	for _, workers := range []int{1, 2, 3, 16} {
		coord := NewExtractionCoordinator(ExtractionDeps{
			Source:    src,
			Extractor: &fakeExtractor{jitter: true},
			Workers:   workers,
		})
		res, err := coord.Run(context.Background(), units)
		if err != nil {
			t.Fatalf("workers=%d: Run error: %v", workers, err)
		}
		if got := titles(res.Items); !reflect.DeepEqual(got, want) {
			t.Fatalf("workers=%d: items = %v, want %v", workers, got, want)
		}
	}
}

func TestExtractionContainsUnitFailures(t *testing.T) {
	t.Parallel()

	units, src := extractionSources()
	ex := &fakeExtractor{
		fail:   map[string]bool{"m2": true, "w1": true},
		panics: map[string]bool{"t1": true},
	}
	coord := NewExtractionCoordinator(ExtractionDeps{Source: src, Extractor: ex, Workers: 2})

	res, err := coord.Run(context.Background(), units)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if got := titles(res.Items); !reflect.DeepEqual(got, []string{"m1-1", "m1-2", "t2-1", "t2-2"}) {
		t.Fatalf("unexpected items %v", got)
	}
	want := domain.StageReport{Stage: domain.StageExtract, Attempted: 5, Succeeded: 2, Failed: 3, Skipped: 1}
	if res.Extract != want {
		t.Fatalf("extract report = %+v, want %+v", res.Extract, want)
	}
	for _, item := range res.Items {
		if item.SourceID == "m2" || item.SourceID == "w1" || item.SourceID == "t1" {
			t.Fatalf("item from a failed unit leaked: %+v", item)
		}
	}
}

func TestExtractionSkipsFailedSourcesAndEmptyTranscripts(t *testing.T) {
	t.Parallel()

	units, src := extractionSources()
	src.fail = map[string]bool{"tech": true}
	ex := &fakeExtractor{}
	coord := NewExtractionCoordinator(ExtractionDeps{Source: src, Extractor: ex, Workers: 4})

	res, err := coord.Run(context.Background(), units)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res.Fetch.Attempted != 3 || res.Fetch.Succeeded != 2 || res.Fetch.Failed != 1 {
		t.Fatalf("unexpected fetch report %+v", res.Fetch)
	}
	for _, id := range ex.calls() {
		if id == "m3" {
			t.Fatalf("empty transcript must not reach the extractor")
		}
		if id == "t1" || id == "t2" {
			t.Fatalf("failed source must contribute nothing, saw %s", id)
		}
	}
	if len(res.Items) != 6 {
		t.Fatalf("expected 6 items, got %d", len(res.Items))
	}
}

func TestExtractionRespectsCancelledContext(t *testing.T) {
	t.Parallel()

	units, src := extractionSources()
	ex := &fakeExtractor{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewExtractionCoordinator(ExtractionDeps{Source: src, Extractor: ex}).Run(ctx, units); err == nil {
		t.Fatalf("expected context error")
	}
	if len(ex.calls()) != 0 {
		t.Fatalf("no unit may run after cancellation")
	}
}
