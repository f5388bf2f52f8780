package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"Vid2News/internal/domain"
	"Vid2News/internal/ports"
)

// Analyzer asks a chat model whether a post is fit for publication.
type Analyzer struct {
	chat        ports.ChatCompleter
	model       string
	temperature float64
}

var _ ports.PostAnalyzer = (*Analyzer)(nil)

// NewAnalyzer wires the chat completer and model settings.
func NewAnalyzer(chat ports.ChatCompleter, model string, temperature float64) *Analyzer {
	return &Analyzer{chat: chat, model: model, temperature: temperature}
}

type analysisOutput struct {
	Approved *bool    `json:"approved"`
	Score    *float64 `json:"score"`
}

// Review returns the approval decision and a score clamped to 1..10.
func (a *Analyzer) Review(ctx context.Context, post domain.PostRecord) (domain.PostReview, error) {
	raw, err := a.chat.CompleteJSON(ctx, ports.ChatRequest{
		Model:       a.model,
		System:      analysisPrompt,
		User:        fmt.Sprintf("TITLE: %s\nCONTENT: %s", post.Title, post.Content),
		Temperature: a.temperature,
	})
	if err != nil {
		return domain.PostReview{}, fmt.Errorf("review post %d: %w", post.ID, err)
	}

	var out analysisOutput
	if err := json.Unmarshal([]byte(stripFences(raw)), &out); err != nil {
		return domain.PostReview{}, fmt.Errorf("review post %d: decode answer: %w", post.ID, err)
	}
	if out.Approved == nil || out.Score == nil {
		return domain.PostReview{}, fmt.Errorf("review post %d: answer lacks approved or score", post.ID)
	}

	score := math.Max(1, math.Min(10, *out.Score))
	return domain.PostReview{Approved: *out.Approved, Score: score}, nil
}
