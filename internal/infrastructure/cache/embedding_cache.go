package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"Vid2News/internal/ports"
)

const (
	defaultPrefix = "vid2news:emb"
	defaultTTL    = 7 * 24 * time.Hour
)

// EmbeddingCache keeps vectors in Redis keyed by model and text hash, so
// reruns over the same transcripts skip the embeddings API. Redis failures
// never fail a run; the wrapped embedder is called instead.
type EmbeddingCache struct {
	client goredis.UniversalClient
	next   ports.Embedder
	model  string
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

var _ ports.Embedder = (*EmbeddingCache)(nil)

// NewEmbeddingCache decorates next with a Redis lookup.
func NewEmbeddingCache(client goredis.UniversalClient, next ports.Embedder, model, prefix string, ttl time.Duration, log *slog.Logger) *EmbeddingCache {
	if prefix == "" {
		prefix = defaultPrefix
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &EmbeddingCache{
		client: client,
		next:   next,
		model:  model,
		prefix: prefix,
		ttl:    ttl,
		logger: log,
	}
}

// Embed returns cached vectors and embeds the misses in one batch, keeping
// input order.
func (c *EmbeddingCache) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	keys := make([]string, len(texts))
	for i, text := range texts {
		keys[i] = c.key(text)
	}

	out := make([][]float32, len(texts))
	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		c.warn("embedding cache lookup failed", "error", err)
		vals = nil
	}
	for i, val := range vals {
		s, ok := val.(string)
		if !ok {
			continue
		}
		var vec []float32
		if err := json.Unmarshal([]byte(s), &vec); err != nil || len(vec) == 0 {
			continue
		}
		out[i] = vec
	}

	var (
		missIdx   []int
		missTexts []string
	)
	for i := range texts {
		if out[i] == nil {
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, texts[i])
		}
	}
	c.debug("embedding cache", "hits", len(texts)-len(missIdx), "misses", len(missIdx))
	if len(missIdx) == 0 {
		return out, nil
	}

	fresh, err := c.next.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missTexts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(fresh), len(missTexts))
	}

	pipe := c.client.Pipeline()
	for j, i := range missIdx {
		out[i] = fresh[j]
		payload, err := json.Marshal(fresh[j])
		if err != nil {
			continue
		}
		pipe.Set(ctx, keys[i], payload, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.warn("embedding cache store failed", "error", err)
	}
	return out, nil
}

func (c *EmbeddingCache) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%s:%s:%s", c.prefix, c.model, hex.EncodeToString(sum[:]))
}

func (c *EmbeddingCache) debug(msg string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func (c *EmbeddingCache) warn(msg string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
