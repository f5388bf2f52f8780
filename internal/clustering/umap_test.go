package clustering

import (
	"math"
	"math/rand"
	"testing"
)

func groupedVectors(perGroup, dim int) [][]float64 {
	rng := rand.New(rand.NewSource(7))
	var out [][]float64
	for g := 0; g < 2; g++ {
		for i := 0; i < perGroup; i++ {
			v := make([]float64, dim)
			v[g] = 1
			for d := range v {
				v[d] += rng.Float64() * 0.05
			}
			out = append(out, v)
		}
	}
	return out
}

func nearest(points [][]float64, i int) int {
	best, bestDist := -1, math.Inf(1)
	for j := range points {
		if j == i {
			continue
		}
		if d := squaredEuclidean(points[i], points[j]); d < bestDist {
			best, bestDist = j, d
		}
	}
	return best
}

func TestUMAPKeepsGroupsApart(t *testing.T) {
	t.Parallel()

	vectors := groupedVectors(8, 20)
	reduced, err := NewUMAP(UMAPConfig{Neighbors: 5, Components: 3, Seed: 42}).Reduce(vectors)
	if err != nil {
		t.Fatalf("Reduce returned error: %v", err)
	}
	if len(reduced) != len(vectors) || len(reduced[0]) != 3 {
		t.Fatalf("unexpected shape %dx%d", len(reduced), len(reduced[0]))
	}

	for i := range reduced {
		j := nearest(reduced, i)
		if i/8 != j/8 {
			t.Fatalf("point %d nearest to %d from the other group", i, j)
		}
	}
}

func TestUMAPIsDeterministic(t *testing.T) {
	t.Parallel()

	vectors := groupedVectors(8, 12)
	cfg := UMAPConfig{Neighbors: 5, Components: 4, Seed: 42, Epochs: 100}

	first, err := NewUMAP(cfg).Reduce(vectors)
	if err != nil {
		t.Fatalf("first Reduce: %v", err)
	}
	second, err := NewUMAP(cfg).Reduce(vectors)
	if err != nil {
		t.Fatalf("second Reduce: %v", err)
	}
	for i := range first {
		for d := range first[i] {
			if first[i][d] != second[i][d] {
				t.Fatalf("coordinate %d/%d differs: %v vs %v", i, d, first[i][d], second[i][d])
			}
		}
	}
}

func TestUMAPSkipsProjectionForSmallInputs(t *testing.T) {
	t.Parallel()

	vectors := [][]float64{{3, 4}, {0, 2}, {1, 0}}
	reduced, err := NewUMAP(DefaultUMAPConfig()).Reduce(vectors)
	if err != nil {
		t.Fatalf("Reduce returned error: %v", err)
	}
	if reduced[0][0] != 0.6 || reduced[0][1] != 0.8 {
		t.Fatalf("expected normalized vector, got %v", reduced[0])
	}
	if reduced[1][1] != 1 {
		t.Fatalf("expected normalized vector, got %v", reduced[1])
	}
}

func TestUMAPRejectsRaggedInput(t *testing.T) {
	t.Parallel()

	if _, err := NewUMAP(DefaultUMAPConfig()).Reduce([][]float64{{1, 2}, {1}}); err == nil {
		t.Fatalf("expected dimension mismatch error")
	}
}

func TestFitCurveMatchesZeroMinDist(t *testing.T) {
	t.Parallel()

	a, b := fitCurve(1, 0)
	if math.Abs(a-1.93) > 0.1 || math.Abs(b-0.79) > 0.05 {
		t.Fatalf("fitCurve(1, 0) = %.3f, %.3f", a, b)
	}
}
