package clustering

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"Vid2News/internal/domain"
	"Vid2News/internal/ports"
)

// DefaultOutlierDistance is the raw cosine distance beyond which an item with
// no closer neighbour is labelled noise before projection.
const DefaultOutlierDistance = 0.6

// Config gathers the projection and density parameters of the engine.
// OutlierDistance <= 0 disables the outlier guard.
type Config struct {
	UMAP            UMAPConfig
	HDBSCAN         HDBSCANConfig
	OutlierDistance float64
}

// Result holds labelled items and their grouping. Clusters are ordered by
// ascending id and never include the noise group.
type Result struct {
	Items    []domain.NewsItem
	Clusters []domain.Cluster
	Noise    domain.Cluster
}

// Engine groups semantically related news items.
type Engine struct {
	embedder        ports.Embedder
	reducer         Reducer
	clusterer       *HDBSCAN
	outlierDistance float64
	logger          *slog.Logger
}

// NewEngine builds the default embed -> UMAP -> HDBSCAN chain.
func NewEngine(embedder ports.Embedder, cfg Config, logger *slog.Logger) *Engine {
	e := NewEngineWithReducer(embedder, NewUMAP(cfg.UMAP), NewHDBSCAN(cfg.HDBSCAN), logger)
	e.outlierDistance = cfg.OutlierDistance
	return e
}

// NewEngineWithReducer allows swapping the projection step.
func NewEngineWithReducer(embedder ports.Embedder, reducer Reducer, clusterer *HDBSCAN, logger *slog.Logger) *Engine {
	return &Engine{
		embedder:  embedder,
		reducer:   reducer,
		clusterer: clusterer,
		logger:    logger,
	}
}

// Cluster labels a copy of items and groups them. Embedding failures abort
// the whole call with domain.ErrEmbedding.
func (e *Engine) Cluster(ctx context.Context, items []domain.NewsItem) (Result, error) {
	result := Result{Noise: domain.Cluster{ID: domain.NoiseCluster}}
	if len(items) == 0 {
		return result, nil
	}
	if e.embedder == nil {
		return Result{}, fmt.Errorf("%w: embedder is not configured", domain.ErrEmbedding)
	}

	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = ComposeText(item)
	}

	raw, err := e.embedder.Embed(ctx, texts)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", domain.ErrEmbedding, err)
	}
	vectors, err := toFloat64(raw, len(texts))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", domain.ErrEmbedding, err)
	}
	e.debug("embedded items", "count", len(vectors), "dim", len(vectors[0]))

	inliers := e.inliers(vectors)
	labels := make([]int, len(vectors))
	for i := range labels {
		labels[i] = domain.NoiseCluster
	}
	if len(inliers) > 0 {
		subset := make([][]float64, len(inliers))
		for j, i := range inliers {
			subset[j] = vectors[i]
		}
		reduced, err := e.reducer.Reduce(subset)
		if err != nil {
			return Result{}, fmt.Errorf("reduce embeddings: %w", err)
		}
		for j, label := range e.clusterer.Fit(reduced) {
			labels[inliers[j]] = label
		}
	}

	result.Items = make([]domain.NewsItem, len(items))
	groups := map[int]int{}
	for i, item := range items {
		label := labels[i]
		item.ClusterID = &label
		result.Items[i] = item

		if label == domain.NoiseCluster {
			result.Noise.Items = append(result.Noise.Items, item)
			continue
		}
		idx, ok := groups[label]
		if !ok {
			idx = len(result.Clusters)
			groups[label] = idx
			result.Clusters = append(result.Clusters, domain.Cluster{ID: label})
		}
		result.Clusters[idx].Items = append(result.Clusters[idx].Items, item)
	}
	sortClusters(result.Clusters)

	e.debug("clustered items", "clusters", len(result.Clusters), "noise", len(result.Noise.Items))
	return result, nil
}

// inliers returns the indices of vectors whose nearest other vector lies
// within the outlier distance. The projection's local connectivity would
// otherwise attach isolated items to the closest group.
func (e *Engine) inliers(vectors [][]float64) []int {
	keep := make([]int, 0, len(vectors))
	if e.outlierDistance <= 0 || len(vectors) < 2 {
		for i := range vectors {
			keep = append(keep, i)
		}
		return keep
	}

	for i := range vectors {
		nearest := math.Inf(1)
		for j := range vectors {
			if j == i {
				continue
			}
			if d := cosineDistance(vectors[i], vectors[j]); d < nearest {
				nearest = d
			}
		}
		if nearest <= e.outlierDistance {
			keep = append(keep, i)
		}
	}
	if dropped := len(vectors) - len(keep); dropped > 0 {
		e.debug("isolated items marked as noise", "count", dropped, "distance", e.outlierDistance)
	}
	return keep
}

func toFloat64(raw [][]float32, want int) ([][]float64, error) {
	if len(raw) != want {
		return nil, fmt.Errorf("got %d embeddings for %d texts", len(raw), want)
	}
	dim := len(raw[0])
	if dim == 0 {
		return nil, fmt.Errorf("empty embedding vector")
	}
	out := make([][]float64, len(raw))
	for i, v := range raw {
		if len(v) != dim {
			return nil, fmt.Errorf("embedding %d has dimension %d, want %d", i, len(v), dim)
		}
		out[i] = make([]float64, dim)
		for j, x := range v {
			out[i][j] = float64(x)
		}
	}
	return out, nil
}

func sortClusters(clusters []domain.Cluster) {
	sort.Slice(clusters, func(i, j int) bool {
		return clusters[i].ID < clusters[j].ID
	})
}

func (e *Engine) debug(msg string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}
