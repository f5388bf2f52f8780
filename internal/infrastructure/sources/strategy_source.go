package sources

import (
	"context"
	"fmt"
	"log/slog"

	"Vid2News/internal/domain"
	"Vid2News/internal/ports"
	"Vid2News/internal/scanner"
)

// StrategySource implements TranscriptSource via registered scanner strategies.
type StrategySource struct {
	registry *scanner.Registry
	logger   *slog.Logger
}

var _ ports.TranscriptSource = (*StrategySource)(nil)

// NewStrategySource wires the scanner registry.
func NewStrategySource(reg *scanner.Registry, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		logger:   log,
	}
}

// Fetch resolves the source's scanner and runs it. Every failure is a domain.ErrFetch.
func (s *StrategySource) Fetch(ctx context.Context, source domain.SourceUnit) ([]domain.Transcript, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("%w: scanner registry is not configured", domain.ErrFetch)
	}

	strategy, err := s.registry.Resolve(source.Scanner)
	if err != nil {
		return nil, fmt.Errorf("%w: source %s: %w", domain.ErrFetch, source.Name, err)
	}

	s.debug("scan source", "source", source.Name, "scanner", source.Scanner, "count", source.Limit.Count, "since", source.Limit.Since)
	transcripts, err := strategy.Scan(ctx, scanner.Request{
		SourceName: source.Name,
		URL:        source.URL,
		Options:    source.Options,
		Limit:      source.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: scan source %s: %w", domain.ErrFetch, source.Name, err)
	}

	for i := range transcripts {
		if transcripts[i].Channel == "" {
			transcripts[i].Channel = source.Name
		}
	}
	s.debug("source produced transcripts", "source", source.Name, "count", len(transcripts))
	return transcripts, nil
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
