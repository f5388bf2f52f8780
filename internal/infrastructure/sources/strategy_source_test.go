package sources

import (
	"context"
	"errors"
	"testing"
	"time"

	"Vid2News/internal/domain"
	"Vid2News/internal/scanner"
)

type stubScanner struct {
	name string
	got  scanner.Request
	out  []domain.Transcript
	err  error
}

func (s *stubScanner) Name() string { return s.name }

func (s *stubScanner) Scan(_ context.Context, req scanner.Request) ([]domain.Transcript, error) {
	s.got = req
	return s.out, s.err
}

func TestFetchResolvesScannerAndFillsChannel(t *testing.T) {
	t.Parallel()

	stub := &stubScanner{
		name: "youtube",
		out: []domain.Transcript{
			{VideoID: "a", Text: "one"},
			{VideoID: "b", Text: "two", Channel: "Original"},
		},
	}
	reg := scanner.NewRegistry()
	reg.Register(stub)

	since := time.Date(2025, time.November, 8, 0, 0, 0, 0, time.UTC)
	src := NewStrategySource(reg, nil)
	got, err := src.Fetch(context.Background(), domain.SourceUnit{
		Name:    "Markets",
		Scanner: "youtube",
		URL:     "https://www.youtube.com/@markets",
		Options: map[string]string{"languages": "en,pl"},
		Limit:   domain.FetchLimit{Count: 3, Since: since},
	})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}

	if stub.got.SourceName != "Markets" || stub.got.URL != "https://www.youtube.com/@markets" {
		t.Fatalf("unexpected request: %+v", stub.got)
	}
	if stub.got.Limit.Count != 3 || !stub.got.Limit.Since.Equal(since) {
		t.Fatalf("limit not forwarded: %+v", stub.got.Limit)
	}
	if stub.got.Options["languages"] != "en,pl" {
		t.Fatalf("options not forwarded: %+v", stub.got.Options)
	}
	if got[0].Channel != "Markets" || got[1].Channel != "Original" {
		t.Fatalf("unexpected channels: %q, %q", got[0].Channel, got[1].Channel)
	}
}

func TestFetchWrapsFailuresAsFetchErrors(t *testing.T) {
	t.Parallel()

	reg := scanner.NewRegistry()
	reg.Register(&stubScanner{name: "youtube", err: errors.New("boom")})
	src := NewStrategySource(reg, nil)

	_, err := src.Fetch(context.Background(), domain.SourceUnit{Name: "Markets", Scanner: "youtube"})
	if !errors.Is(err, domain.ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}

	_, err = src.Fetch(context.Background(), domain.SourceUnit{Name: "Markets", Scanner: "rss"})
	if !errors.Is(err, domain.ErrFetch) {
		t.Fatalf("expected ErrFetch for unknown scanner, got %v", err)
	}

	_, err = NewStrategySource(nil, nil).Fetch(context.Background(), domain.SourceUnit{Name: "Markets"})
	if !errors.Is(err, domain.ErrFetch) {
		t.Fatalf("expected ErrFetch without registry, got %v", err)
	}
}
