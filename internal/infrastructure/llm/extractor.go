package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"Vid2News/internal/domain"
	"Vid2News/internal/ports"
)

// Extractor turns one transcript into structured news items with a chat model.
type Extractor struct {
	chat        ports.ChatCompleter
	model       string
	temperature float64
	now         func() time.Time
	logger      *slog.Logger
}

var _ ports.NewsExtractor = (*Extractor)(nil)

// NewExtractor wires the chat completer and model settings.
func NewExtractor(chat ports.ChatCompleter, model string, temperature float64, log *slog.Logger) *Extractor {
	return &Extractor{
		chat:        chat,
		model:       model,
		temperature: temperature,
		now:         time.Now,
		logger:      log,
	}
}

type extractionOutput struct {
	NewsItems *[]extractedItem `json:"news_items"`
}

// Pointer fields tell an omitted or null member apart from an empty one.
type extractedItem struct {
	Title    string    `json:"title"`
	Summary  string    `json:"summary"`
	Content  string    `json:"content"`
	Keywords *[]string `json:"keywords"`
	Category *string   `json:"category"`
	Entities *[]string `json:"entities"`
}

// Extract returns the transcript's news items stamped with source provenance.
// A malformed answer fails the whole transcript with domain.ErrExtraction.
func (e *Extractor) Extract(ctx context.Context, transcript domain.Transcript) ([]domain.NewsItem, error) {
	if strings.TrimSpace(transcript.Text) == "" {
		return nil, fmt.Errorf("%w: transcript %s is empty", domain.ErrExtraction, transcript.VideoID)
	}

	raw, err := e.chat.CompleteJSON(ctx, ports.ChatRequest{
		Model:       e.model,
		System:      extractionPrompt,
		User:        "Transcript:\n" + transcript.Text,
		Temperature: e.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: transcript %s: %w", domain.ErrExtraction, transcript.VideoID, err)
	}

	parsed, err := parseExtraction(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: transcript %s: %w", domain.ErrExtraction, transcript.VideoID, err)
	}

	extractedAt := e.now().UTC()
	items := make([]domain.NewsItem, 0, len(parsed))
	for _, p := range parsed {
		items = append(items, domain.NewsItem{
			Title:       p.Title,
			Summary:     p.Summary,
			Content:     p.Content,
			Keywords:    nonNil(*p.Keywords),
			Category:    strings.TrimSpace(*p.Category),
			Entities:    nonNil(*p.Entities),
			SourceID:    transcript.VideoID,
			SourceTitle: transcript.Title,
			SourceURL:   transcript.URL,
			SourceLabel: transcript.Channel,
			ExtractedAt: extractedAt,
		})
	}

	if e.logger != nil {
		e.logger.Debug("extracted news items", "video_id", transcript.VideoID, "items", len(items))
	}
	return items, nil
}

func parseExtraction(raw string) ([]extractedItem, error) {
	var out extractionOutput
	if err := json.Unmarshal([]byte(stripFences(raw)), &out); err != nil {
		return nil, fmt.Errorf("decode news items: %w", err)
	}
	if out.NewsItems == nil {
		return nil, fmt.Errorf("answer has no news_items field")
	}

	items := *out.NewsItems
	for i := range items {
		items[i].Title = strings.TrimSpace(items[i].Title)
		items[i].Summary = strings.TrimSpace(items[i].Summary)
		items[i].Content = strings.TrimSpace(items[i].Content)
		switch {
		case items[i].Title == "":
			return nil, fmt.Errorf("news item %d has no title", i)
		case items[i].Summary == "":
			return nil, fmt.Errorf("news item %d has no summary", i)
		case items[i].Content == "":
			return nil, fmt.Errorf("news item %d has no content", i)
		case items[i].Category == nil:
			return nil, fmt.Errorf("news item %d has no category", i)
		case items[i].Keywords == nil:
			return nil, fmt.Errorf("news item %d has no keywords list", i)
		case items[i].Entities == nil:
			return nil, fmt.Errorf("news item %d has no entities list", i)
		}
	}
	return items, nil
}

// stripFences removes a markdown code fence some models wrap JSON in.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
