package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"Vid2News/internal/infrastructure/httpclient"
	"Vid2News/internal/ports"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Options configures the OpenAI-compatible client.
type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	Retry      httpclient.RetryConfig
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to an OpenAI-compatible API for chat completions and embeddings.
type Client struct {
	baseURL string
	apiKey  string
	http    *httpclient.Client
	logger  *slog.Logger
}

var _ ports.ChatCompleter = (*Client)(nil)

// NewClient builds a client from options.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.HTTPClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 90 * time.Second
		}
		opts.HTTPClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL: strings.TrimSuffix(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		http:    httpclient.New(opts.HTTPClient, opts.Retry),
		logger:  opts.Logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// CompleteJSON requests a JSON object answer and returns the raw message content.
func (c *Client) CompleteJSON(ctx context.Context, req ports.ChatRequest) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("openai client misconfigured: api key is empty")
	}
	if req.Model == "" {
		return "", fmt.Errorf("openai client misconfigured: model is empty")
	}

	messages := make([]chatMessage, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.User})

	var resp chatResponse
	if err := c.post(ctx, "/chat/completions", map[string]any{
		"model":           req.Model,
		"messages":        messages,
		"temperature":     req.Temperature,
		"response_format": map[string]string{"type": "json_object"},
	}, &resp); err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("chat completion returned empty content")
	}
	c.debug("chat completion", "model", req.Model, "chars", len(content))
	return content, nil
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// embed sends one batch request and returns vectors in input order.
func (c *Client) embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("openai client misconfigured: api key is empty")
	}

	var resp embeddingResponse
	if err := c.post(ctx, "/embeddings", map[string]any{
		"model": model,
		"input": texts,
	}, &resp); err != nil {
		return nil, fmt.Errorf("embeddings: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings: expected %d vectors, got %d", len(texts), len(resp.Data))
	}
	sort.SliceStable(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })

	out := make([][]float32, len(texts))
	for i, d := range resp.Data {
		if d.Index != i {
			return nil, fmt.Errorf("embeddings: missing vector for input %d", i)
		}
		out[i] = d.Embedding
	}
	c.debug("embedded texts", "model", model, "count", len(out))
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	raw, err := c.http.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) debug(msg string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
