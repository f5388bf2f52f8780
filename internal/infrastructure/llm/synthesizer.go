package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"Vid2News/internal/domain"
	"Vid2News/internal/ports"
)

// Synthesizer writes one post per cluster.
type Synthesizer struct {
	chat        ports.ChatCompleter
	model       string
	temperature float64
	language    string
	logger      *slog.Logger
}

var _ ports.PostWriter = (*Synthesizer)(nil)

// NewSynthesizer wires the chat completer; language names the output language.
func NewSynthesizer(chat ports.ChatCompleter, model string, temperature float64, language string, log *slog.Logger) *Synthesizer {
	if language == "" {
		language = "Polish"
	}
	return &Synthesizer{
		chat:        chat,
		model:       model,
		temperature: temperature,
		language:    language,
		logger:      log,
	}
}

type synthesisOutput struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Write asks the model for a post and attaches the cluster's provenance.
func (s *Synthesizer) Write(ctx context.Context, cluster domain.Cluster) (domain.GeneratedPost, error) {
	if cluster.IsNoise() {
		return domain.GeneratedPost{}, fmt.Errorf("%w: noise items are never synthesized", domain.ErrSynthesis)
	}
	if len(cluster.Items) == 0 {
		return domain.GeneratedPost{}, fmt.Errorf("%w: cluster %d is empty", domain.ErrSynthesis, cluster.ID)
	}

	raw, err := s.chat.CompleteJSON(ctx, ports.ChatRequest{
		Model:       s.model,
		System:      fmt.Sprintf(synthesisPromptTemplate, s.language),
		User:        clusterPrompt(cluster),
		Temperature: s.temperature,
	})
	if err != nil {
		return domain.GeneratedPost{}, fmt.Errorf("%w: cluster %d: %w", domain.ErrSynthesis, cluster.ID, err)
	}

	var out synthesisOutput
	if err := json.Unmarshal([]byte(stripFences(raw)), &out); err != nil {
		return domain.GeneratedPost{}, fmt.Errorf("%w: cluster %d: decode post: %w", domain.ErrSynthesis, cluster.ID, err)
	}
	out.Title = strings.TrimSpace(out.Title)
	out.Content = strings.TrimSpace(out.Content)
	if out.Title == "" || out.Content == "" {
		return domain.GeneratedPost{}, fmt.Errorf("%w: cluster %d: post has no title or content", domain.ErrSynthesis, cluster.ID)
	}

	post := domain.GeneratedPost{
		Title:        out.Title,
		Content:      out.Content,
		SourceURLs:   collect(cluster.Items, func(it domain.NewsItem) string { return it.SourceURL }),
		SourceLabels: collect(cluster.Items, func(it domain.NewsItem) string { return it.SourceLabel }),
		ClusterID:    cluster.ID,
	}
	if s.logger != nil {
		s.logger.Debug("synthesized post", "cluster", cluster.ID, "items", len(cluster.Items), "title", post.Title)
	}
	return post, nil
}

func clusterPrompt(cluster domain.Cluster) string {
	var b strings.Builder
	b.WriteString("### NEWS CLUSTER\n")
	fmt.Fprintf(&b, "keywords: %s\n", strings.Join(cluster.Keywords(), ", "))
	fmt.Fprintf(&b, "category: %s\n", strings.Join(cluster.Categories(), ", "))
	for _, item := range cluster.Items {
		fmt.Fprintf(&b, "\n- NEWS\n%s\n%s\n", item.Title, item.Content)
	}
	return b.String()
}

// collect takes one value per item in presentation order, duplicates kept.
func collect(items []domain.NewsItem, field func(domain.NewsItem) string) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = field(item)
	}
	return out
}
