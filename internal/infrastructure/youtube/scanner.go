package youtube

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"Vid2News/internal/domain"
	"Vid2News/internal/scanner"
)

const (
	defaultBaseURL   = "https://www.youtube.com"
	defaultCount     = 5
	defaultScanLimit = 100
	maxPageBytes     = 8 << 20
)

// Options configures the YouTube strategy.
type Options struct {
	Client            *http.Client
	BaseURL           string
	Languages         []string
	DefaultCount      int
	ScanLimit         int
	RequestsPerSecond float64
	UserAgent         string
	Logger            *slog.Logger
}

// Scanner lists a channel's newest videos and downloads their captions.
type Scanner struct {
	client       *http.Client
	limiter      *rate.Limiter
	baseURL      string
	languages    []string
	defaultCount int
	scanLimit    int
	userAgent    string
	now          func() time.Time
	logger       *slog.Logger
}

var _ scanner.Scanner = (*Scanner)(nil)

// NewScanner wires an HTTP client and a shared request limiter.
func NewScanner(opts Options) *Scanner {
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 20 * time.Second}
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if len(opts.Languages) == 0 {
		opts.Languages = []string{"en"}
	}
	if opts.DefaultCount <= 0 {
		opts.DefaultCount = defaultCount
	}
	if opts.ScanLimit <= 0 {
		opts.ScanLimit = defaultScanLimit
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	return &Scanner{
		client:       opts.Client,
		limiter:      rate.NewLimiter(limit, 1),
		baseURL:      strings.TrimSuffix(opts.BaseURL, "/"),
		languages:    opts.Languages,
		defaultCount: opts.DefaultCount,
		scanLimit:    opts.ScanLimit,
		userAgent:    opts.UserAgent,
		now:          time.Now,
		logger:       opts.Logger,
	}
}

// Name identifies the strategy inside the registry.
func (s *Scanner) Name() string {
	return "youtube"
}

// Scan walks the channel newest first. It stops at the first video older than
// req.Limit.Since, or once req.Limit.Count transcripts were collected. Videos
// without a usable transcript are skipped.
func (s *Scanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Transcript, error) {
	count, since := req.Limit.Count, req.Limit.Since
	if count <= 0 && since.IsZero() {
		count = s.defaultCount
	}
	scanLimit := s.scanLimit
	if count > 0 {
		scanLimit = count
	}

	videos, err := s.listVideos(ctx, req.URL, scanLimit)
	if err != nil {
		return nil, fmt.Errorf("list videos of %s: %w", req.URL, err)
	}
	s.debug("listed channel videos", "source", req.SourceName, "videos", len(videos))

	languages := s.languages
	if v := req.Options["languages"]; v != "" {
		languages = strings.Split(v, ",")
	}

	var (
		out    []domain.Transcript
		failed int
	)
	for _, v := range videos {
		if !since.IsZero() && v.PublishedAt != nil && v.PublishedAt.Before(since) {
			break
		}

		text, err := s.fetchTranscript(ctx, v.ID, languages)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failed++
			s.warn("transcript unavailable", "video_id", v.ID, "error", err)
			continue
		}

		out = append(out, domain.Transcript{
			VideoID:     v.ID,
			Title:       v.Title,
			Text:        text,
			Channel:     req.SourceName,
			URL:         WatchURL(v.ID),
			PublishedAt: v.PublishedAt,
		})
		if count > 0 && len(out) >= count {
			break
		}
	}

	if s.logger != nil {
		s.logger.Info("fetched transcripts", "source", req.SourceName, "transcripts", len(out), "failed", failed)
	}
	return out, nil
}

// WatchURL is the canonical link to a video.
func WatchURL(videoID string) string {
	return defaultBaseURL + "/watch?v=" + videoID
}

func (s *Scanner) get(ctx context.Context, target string) ([]byte, error) {
	return s.do(ctx, http.MethodGet, target, nil, "")
}

func (s *Scanner) do(ctx context.Context, method, target string, body io.Reader, contentType string) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("youtube returned %s", resp.Status)
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return payload, nil
}

func (s *Scanner) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *Scanner) warn(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
