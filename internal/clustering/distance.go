package clustering

import (
	"fmt"
	"math"
	"strings"
)

// Metric names a distance function over dense vectors.
type Metric string

const (
	MetricEuclidean Metric = "euclidean"
	MetricManhattan Metric = "manhattan"
	MetricCosine    Metric = "cosine"
)

// ParseMetric resolves a configured metric name; empty means euclidean.
func ParseMetric(name string) (Metric, error) {
	switch Metric(strings.ToLower(strings.TrimSpace(name))) {
	case "", MetricEuclidean:
		return MetricEuclidean, nil
	case MetricManhattan:
		return MetricManhattan, nil
	case MetricCosine:
		return MetricCosine, nil
	default:
		return "", fmt.Errorf("unknown metric %q", name)
	}
}

func (m Metric) distance(a, b []float64) float64 {
	switch m {
	case MetricManhattan:
		return manhattan(a, b)
	case MetricCosine:
		return cosineDistance(a, b)
	default:
		return euclidean(a, b)
	}
}

func euclidean(a, b []float64) float64 {
	return math.Sqrt(squaredEuclidean(a, b))
}

func squaredEuclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func manhattan(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += math.Abs(a[i] - b[i])
	}
	return sum
}

// cosineDistance is 1 - cos(a, b), clamped to [0, 2]. A zero vector has no
// direction and counts as orthogonal to everything (distance 1).
func cosineDistance(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 1
	}
	d := 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
	return math.Min(math.Max(d, 0), 2)
}

func normalize(v []float64) []float64 {
	out := make([]float64, len(v))
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	if norm == 0 {
		copy(out, v)
		return out
	}
	norm = math.Sqrt(norm)
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

func pairwise(points [][]float64, metric Metric) [][]float64 {
	n := len(points)
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := metric.distance(points[i], points[j])
			dist[i][j] = d
			dist[j][i] = d
		}
	}
	return dist
}
