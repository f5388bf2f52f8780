package llm

import (
	"context"

	"Vid2News/internal/ports"
)

// Embedder binds the client to one embedding model.
type Embedder struct {
	client *Client
	model  string
}

var _ ports.Embedder = (*Embedder)(nil)

// NewEmbedder returns an Embedder using model.
func NewEmbedder(client *Client, model string) *Embedder {
	if model == "" {
		model = "text-embedding-3-small"
	}
	return &Embedder{client: client, model: model}
}

// Model names the embedding model, used to namespace cached vectors.
func (e *Embedder) Model() string {
	return e.model
}

// Embed returns one vector per text in a single batch request.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return e.client.embed(ctx, e.model, texts)
}
