package grist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"Vid2News/internal/domain"
	"Vid2News/internal/infrastructure/httpclient"
	"Vid2News/internal/ports"
)

// Column names of the review table.
const (
	colTitle   = "title"
	colContent = "content"
	colURLs    = "source_video_urls"
	colLabels  = "source_channels"
	colStatus  = "status"
	colScore   = "score"
)

// Options locates one Grist table.
type Options struct {
	BaseURL  string
	APIKey   string
	Document string
	Table    string
	Client   *httpclient.Client
	Logger   *slog.Logger
}

// Store is a review store backed by a Grist table. Every call is one HTTP
// request over whole rows.
type Store struct {
	http     *httpclient.Client
	endpoint string
	apiKey   string
	logger   *slog.Logger
}

var _ ports.PostStore = (*Store)(nil)

// NewStore builds the records endpoint for the document and table.
func NewStore(opts Options) (*Store, error) {
	if opts.BaseURL == "" || opts.Document == "" || opts.Table == "" {
		return nil, fmt.Errorf("grist store needs base url, document and table")
	}
	if opts.Client == nil {
		opts.Client = httpclient.New(nil, httpclient.DefaultRetryConfig())
	}
	endpoint := fmt.Sprintf("%s/docs/%s/tables/%s/records",
		strings.TrimSuffix(opts.BaseURL, "/"), url.PathEscape(opts.Document), url.PathEscape(opts.Table))
	return &Store{
		http:     opts.Client,
		endpoint: endpoint,
		apiKey:   opts.APIKey,
		logger:   opts.Logger,
	}, nil
}

type record struct {
	ID     int64          `json:"id,omitempty"`
	Fields map[string]any `json:"fields"`
}

type records struct {
	Records []record `json:"records"`
}

// Create appends one row per post with the given status and returns row ids
// in post order. The POST is sent once: a retry after a lost response would
// duplicate rows.
func (s *Store) Create(ctx context.Context, posts []domain.GeneratedPost, status string) ([]int64, error) {
	if len(posts) == 0 {
		return nil, nil
	}

	payload := records{Records: make([]record, 0, len(posts))}
	for _, p := range posts {
		urls, err := json.Marshal(nonNil(p.SourceURLs))
		if err != nil {
			return nil, fmt.Errorf("encode source urls: %w", err)
		}
		labels, err := json.Marshal(nonNil(p.SourceLabels))
		if err != nil {
			return nil, fmt.Errorf("encode source labels: %w", err)
		}
		payload.Records = append(payload.Records, record{Fields: map[string]any{
			colTitle:   p.Title,
			colContent: p.Content,
			colURLs:    string(urls),
			colLabels:  string(labels),
			colStatus:  status,
		}})
	}

	var resp records
	if err := s.send(ctx, http.MethodPost, s.endpoint, payload, &resp, false); err != nil {
		return nil, fmt.Errorf("create grist records: %w", err)
	}
	if len(resp.Records) != len(posts) {
		return nil, fmt.Errorf("create grist records: expected %d ids, got %d", len(posts), len(resp.Records))
	}

	ids := make([]int64, len(resp.Records))
	for i, r := range resp.Records {
		ids[i] = r.ID
	}
	s.info("created grist records", "count", len(ids))
	return ids, nil
}

// Read returns rows whose status matches the filter exactly, in table order.
// The status filter runs on the Grist side so matching rows are found however
// large the table grows; Limit caps the result only when set.
func (s *Store) Read(ctx context.Context, filter domain.PostFilter) ([]domain.PostRecord, error) {
	query := url.Values{}
	if filter.Status != "" {
		expr, err := json.Marshal(map[string][]string{colStatus: {filter.Status}})
		if err != nil {
			return nil, fmt.Errorf("encode status filter: %w", err)
		}
		query.Set("filter", string(expr))
	}
	if filter.Limit > 0 {
		query.Set("limit", strconv.Itoa(filter.Limit))
	}
	target := s.endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var resp records
	if err := s.send(ctx, http.MethodGet, target, nil, &resp, true); err != nil {
		return nil, fmt.Errorf("read grist records: %w", err)
	}

	out := make([]domain.PostRecord, 0, len(resp.Records))
	for _, r := range resp.Records {
		post := toRecord(r)
		if filter.Status != "" && post.Status != filter.Status {
			continue
		}
		out = append(out, post)
	}
	s.debug("read grist records", "fetched", len(resp.Records), "matched", len(out), "status", filter.Status)
	return out, nil
}

// Patch updates status and score of existing rows in one request.
func (s *Store) Patch(ctx context.Context, patches []domain.PostPatch) error {
	if len(patches) == 0 {
		return nil
	}

	payload := records{Records: make([]record, 0, len(patches))}
	for _, p := range patches {
		if p.ID <= 0 {
			return fmt.Errorf("patch grist records: invalid row id %d", p.ID)
		}
		fields := map[string]any{}
		if p.Status != nil {
			fields[colStatus] = *p.Status
		}
		if p.Score != nil {
			fields[colScore] = *p.Score
		}
		if len(fields) == 0 {
			continue
		}
		payload.Records = append(payload.Records, record{ID: p.ID, Fields: fields})
	}
	if len(payload.Records) == 0 {
		return nil
	}

	if err := s.send(ctx, http.MethodPatch, s.endpoint, payload, nil, true); err != nil {
		return fmt.Errorf("patch grist records: %w", err)
	}
	s.info("patched grist records", "count", len(payload.Records))
	return nil
}

// send issues one request; retry selects the failsafe path for calls that are
// safe to repeat.
func (s *Store) send(ctx context.Context, method, target string, payload any, v any, retry bool) error {
	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
	}

	do := s.http.Do
	if !retry {
		do = s.http.Once
	}
	raw, err := do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return req, nil
	})
	if err != nil {
		return err
	}
	if v == nil {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func toRecord(r record) domain.PostRecord {
	return domain.PostRecord{
		ID:           r.ID,
		Title:        stringField(r.Fields[colTitle]),
		Content:      stringField(r.Fields[colContent]),
		SourceURLs:   listField(r.Fields[colURLs]),
		SourceLabels: listField(r.Fields[colLabels]),
		Status:       stringField(r.Fields[colStatus]),
		Score:        scoreField(r.Fields[colScore]),
	}
}

func stringField(v any) string {
	s, _ := v.(string)
	return s
}

// scoreField coerces numbers and numeric strings; anything else is missing.
func scoreField(v any) *float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// listField reads lists stored as JSON text, Python-style repr text or a
// native Grist list cell (["L", ...]).
func listField(v any) []string {
	switch x := v.(type) {
	case []any:
		out := []string{}
		for i, item := range x {
			s, ok := item.(string)
			if !ok || (i == 0 && s == "L") {
				continue
			}
			out = append(out, s)
		}
		return out
	case string:
		x = strings.TrimSpace(x)
		if x == "" {
			return []string{}
		}
		var out []string
		if err := json.Unmarshal([]byte(x), &out); err == nil {
			return out
		}
		if err := json.Unmarshal([]byte(strings.ReplaceAll(x, "'", `"`)), &out); err == nil {
			return out
		}
		return []string{x}
	default:
		return []string{}
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func (s *Store) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *Store) info(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}
