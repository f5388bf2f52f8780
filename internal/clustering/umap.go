package clustering

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"
)

const (
	smoothKIterations = 64
	smoothKTolerance  = 1e-5
	minKDistScale     = 1e-3
	gradientClip      = 4.0
)

// Reducer projects high-dimensional vectors into a lower-dimensional space.
type Reducer interface {
	Reduce(vectors [][]float64) ([][]float64, error)
}

// UMAPConfig holds the projection parameters.
type UMAPConfig struct {
	Neighbors          int
	Components         int
	MinDist            float64
	Spread             float64
	Epochs             int
	NegativeSampleRate int
	LearningRate       float64
	Seed               int64
}

// DefaultUMAPConfig mirrors the parameters the news desks run with.
func DefaultUMAPConfig() UMAPConfig {
	return UMAPConfig{
		Neighbors:          5,
		Components:         10,
		MinDist:            0,
		Spread:             1,
		NegativeSampleRate: 5,
		LearningRate:       1,
		Seed:               42,
	}
}

// UMAP is a deterministic, single-threaded manifold projection over cosine distances.
type UMAP struct {
	cfg  UMAPConfig
	a, b float64
}

var _ Reducer = (*UMAP)(nil)

// NewUMAP fills unset parameters with defaults and fits the output curve.
func NewUMAP(cfg UMAPConfig) *UMAP {
	def := DefaultUMAPConfig()
	if cfg.Neighbors < 2 {
		cfg.Neighbors = def.Neighbors
	}
	if cfg.Components < 1 {
		cfg.Components = def.Components
	}
	if cfg.Spread <= 0 {
		cfg.Spread = def.Spread
	}
	if cfg.NegativeSampleRate < 1 {
		cfg.NegativeSampleRate = def.NegativeSampleRate
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = def.LearningRate
	}
	a, b := fitCurve(cfg.Spread, cfg.MinDist)
	return &UMAP{cfg: cfg, a: a, b: b}
}

// Reduce embeds vectors into cfg.Components dimensions. When there are too few
// points for a meaningful projection the L2-normalised inputs are returned.
func (u *UMAP) Reduce(vectors [][]float64) ([][]float64, error) {
	n := len(vectors)
	if n == 0 {
		return nil, nil
	}
	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), dim)
		}
	}

	if n <= u.cfg.Components+1 {
		out := make([][]float64, n)
		for i, v := range vectors {
			out[i] = normalize(v)
		}
		return out, nil
	}

	k := u.cfg.Neighbors
	if k > n-1 {
		k = n - 1
	}

	indices, dists := nearestNeighbors(vectors, k)
	sigmas, rhos := smoothKNNDist(dists, k)
	graph := fuzzySimplicialSet(indices, dists, sigmas, rhos)

	epochs := u.cfg.Epochs
	if epochs <= 0 {
		epochs = 500
		if n > 10000 {
			epochs = 200
		}
	}
	pruneWeakEdges(graph, epochs)

	rng := rand.New(rand.NewSource(u.cfg.Seed))
	embedding, ok := spectralLayout(graph, u.cfg.Components, rng)
	if !ok {
		embedding = randomLayout(n, u.cfg.Components, rng)
	}
	rescale(embedding)

	u.optimize(embedding, graph, epochs, rng)
	return embedding, nil
}

// nearestNeighbors returns, for every point, the k closest points by cosine
// distance with the point itself first.
func nearestNeighbors(vectors [][]float64, k int) ([][]int, [][]float64) {
	n := len(vectors)
	indices := make([][]int, n)
	dists := make([][]float64, n)
	order := make([]int, n)
	row := make([]float64, n)

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			order[j] = j
			if j == i {
				row[j] = 0
				continue
			}
			row[j] = cosineDistance(vectors[i], vectors[j])
		}
		sort.SliceStable(order, func(x, y int) bool {
			a, b := order[x], order[y]
			if row[a] != row[b] {
				return row[a] < row[b]
			}
			if a == i || b == i {
				return a == i
			}
			return a < b
		})
		indices[i] = make([]int, k)
		dists[i] = make([]float64, k)
		for j := 0; j < k; j++ {
			indices[i][j] = order[j]
			dists[i][j] = row[order[j]]
		}
	}
	return indices, dists
}

// smoothKNNDist finds per-point bandwidths so that membership strengths sum to log2(k).
func smoothKNNDist(dists [][]float64, k int) ([]float64, []float64) {
	n := len(dists)
	target := math.Log2(float64(k))
	sigmas := make([]float64, n)
	rhos := make([]float64, n)

	var meanAll float64
	for _, row := range dists {
		for _, d := range row {
			meanAll += d
		}
	}
	meanAll /= float64(n * k)

	for i, row := range dists {
		for _, d := range row {
			if d > 0 {
				rhos[i] = d
				break
			}
		}

		lo, hi, mid := 0.0, math.Inf(1), 1.0
		for iter := 0; iter < smoothKIterations; iter++ {
			var psum float64
			for j := 1; j < len(row); j++ {
				d := row[j] - rhos[i]
				if d > 0 {
					psum += math.Exp(-d / mid)
				} else {
					psum++
				}
			}
			if math.Abs(psum-target) < smoothKTolerance {
				break
			}
			if psum > target {
				hi = mid
				mid = (lo + hi) / 2
			} else {
				lo = mid
				if math.IsInf(hi, 1) {
					mid *= 2
				} else {
					mid = (lo + hi) / 2
				}
			}
		}
		sigmas[i] = mid

		var meanRow float64
		for _, d := range row {
			meanRow += d
		}
		meanRow /= float64(len(row))
		floor := minKDistScale * meanAll
		if rhos[i] > 0 {
			floor = minKDistScale * meanRow
		}
		if sigmas[i] < floor {
			sigmas[i] = floor
		}
	}
	return sigmas, rhos
}

// fuzzySimplicialSet builds the symmetric membership graph as a dense matrix.
func fuzzySimplicialSet(indices [][]int, dists [][]float64, sigmas, rhos []float64) [][]float64 {
	n := len(indices)
	directed := make([][]float64, n)
	for i := range directed {
		directed[i] = make([]float64, n)
	}
	for i := range indices {
		for j, nb := range indices[i] {
			if nb == i {
				continue
			}
			var w float64
			d := dists[i][j] - rhos[i]
			if d <= 0 || sigmas[i] == 0 {
				w = 1
			} else {
				w = math.Exp(-d / sigmas[i])
			}
			directed[i][nb] = w
		}
	}

	graph := make([][]float64, n)
	for i := range graph {
		graph[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			a, b := directed[i][j], directed[j][i]
			graph[i][j] = a + b - a*b
		}
	}
	return graph
}

func pruneWeakEdges(graph [][]float64, epochs int) {
	var maxW float64
	for _, row := range graph {
		for _, w := range row {
			maxW = math.Max(maxW, w)
		}
	}
	threshold := maxW / float64(epochs)
	for _, row := range graph {
		for j, w := range row {
			if w < threshold {
				row[j] = 0
			}
		}
	}
}

// spectralLayout embeds a connected graph with the eigenvectors of its
// normalised Laplacian. It reports false for disconnected graphs or when the
// eigendecomposition fails.
func spectralLayout(graph [][]float64, dim int, rng *rand.Rand) ([][]float64, bool) {
	n := len(graph)
	if dim+1 >= n || !connected(graph) {
		return nil, false
	}

	degree := make([]float64, n)
	for i, row := range graph {
		for _, w := range row {
			degree[i] += w
		}
		if degree[i] == 0 {
			return nil, false
		}
	}

	laplacian := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := -graph[i][j] / math.Sqrt(degree[i]*degree[j])
			if i == j {
				v += 1
			}
			laplacian.SetSym(i, j, v)
		}
	}

	var eig mat.EigenSym
	if !eig.Factorize(laplacian, true) {
		return nil, false
	}
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	var maxAbs float64
	for i := 0; i < n; i++ {
		for d := 1; d <= dim; d++ {
			maxAbs = math.Max(maxAbs, math.Abs(vectors.At(i, d)))
		}
	}
	if maxAbs == 0 {
		return nil, false
	}

	expansion := 10 / maxAbs
	layout := make([][]float64, n)
	for i := range layout {
		layout[i] = make([]float64, dim)
		for d := 0; d < dim; d++ {
			layout[i][d] = vectors.At(i, d+1)*expansion + rng.NormFloat64()*0.0001
		}
	}
	return layout, true
}

func randomLayout(n, dim int, rng *rand.Rand) [][]float64 {
	layout := make([][]float64, n)
	for i := range layout {
		layout[i] = make([]float64, dim)
		for d := range layout[i] {
			layout[i][d] = rng.Float64()*20 - 10
		}
	}
	return layout
}

func connected(graph [][]float64) bool {
	n := len(graph)
	seen := make([]bool, n)
	stack := []int{0}
	seen[0] = true
	count := 1
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for j, w := range graph[i] {
			if w > 0 && !seen[j] {
				seen[j] = true
				count++
				stack = append(stack, j)
			}
		}
	}
	return count == n
}

// rescale maps every output dimension onto [0, 10].
func rescale(layout [][]float64) {
	if len(layout) == 0 {
		return
	}
	for d := range layout[0] {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, p := range layout {
			lo = math.Min(lo, p[d])
			hi = math.Max(hi, p[d])
		}
		span := hi - lo
		for _, p := range layout {
			if span == 0 {
				p[d] = 0
				continue
			}
			p[d] = 10 * (p[d] - lo) / span
		}
	}
}

type edge struct {
	head, tail int
	weight     float64
}

// optimize runs the attractive/repulsive SGD layout over the graph edges.
func (u *UMAP) optimize(embedding [][]float64, graph [][]float64, epochs int, rng *rand.Rand) {
	n := len(graph)
	var edges []edge
	var maxW float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if graph[i][j] > 0 {
				edges = append(edges, edge{head: i, tail: j, weight: graph[i][j]})
				maxW = math.Max(maxW, graph[i][j])
			}
		}
	}
	if len(edges) == 0 {
		return
	}

	negRate := float64(u.cfg.NegativeSampleRate)
	epochsPerSample := make([]float64, len(edges))
	nextSample := make([]float64, len(edges))
	epochsPerNegative := make([]float64, len(edges))
	nextNegative := make([]float64, len(edges))
	for i, e := range edges {
		epochsPerSample[i] = maxW / e.weight
		nextSample[i] = epochsPerSample[i]
		epochsPerNegative[i] = epochsPerSample[i] / negRate
		nextNegative[i] = epochsPerNegative[i]
	}

	a, b := u.a, u.b
	alpha := u.cfg.LearningRate
	for epoch := 0; epoch < epochs; epoch++ {
		fe := float64(epoch)
		for i, e := range edges {
			if nextSample[i] > fe {
				continue
			}
			current := embedding[e.head]
			other := embedding[e.tail]

			d2 := squaredEuclidean(current, other)
			var coeff float64
			if d2 > 0 {
				coeff = -2 * a * b * math.Pow(d2, b-1) / (a*math.Pow(d2, b) + 1)
			}
			for d := range current {
				g := clip(coeff * (current[d] - other[d]))
				current[d] += g * alpha
				other[d] -= g * alpha
			}
			nextSample[i] += epochsPerSample[i]

			negatives := int((fe - nextNegative[i]) / epochsPerNegative[i])
			for p := 0; p < negatives; p++ {
				k := rng.Intn(n)
				if k == e.head {
					continue
				}
				other := embedding[k]
				d2 := squaredEuclidean(current, other)
				if d2 <= 0 {
					continue
				}
				coeff := 2 * b / ((0.001 + d2) * (a*math.Pow(d2, b) + 1))
				for d := range current {
					current[d] += clip(coeff*(current[d]-other[d])) * alpha
				}
			}
			nextNegative[i] += float64(negatives) * epochsPerNegative[i]
		}
		alpha = u.cfg.LearningRate * (1 - float64(epoch+1)/float64(epochs))
	}
}

func clip(v float64) float64 {
	if v > gradientClip {
		return gradientClip
	}
	if v < -gradientClip {
		return -gradientClip
	}
	return v
}

// fitCurve finds a, b such that 1/(1+a*x^(2b)) approximates the target
// membership curve defined by spread and minDist. A coarse grid is refined
// around the best candidate, which keeps the fit deterministic.
func fitCurve(spread, minDist float64) (float64, float64) {
	const samples = 300
	xs := make([]float64, samples)
	ys := make([]float64, samples)
	for i := range xs {
		x := 3 * spread * float64(i) / float64(samples-1)
		xs[i] = x
		if x < minDist {
			ys[i] = 1
		} else {
			ys[i] = math.Exp(-(x - minDist) / spread)
		}
	}

	loss := func(a, b float64) float64 {
		var sum float64
		for i, x := range xs {
			d := 1/(1+a*math.Pow(x, 2*b)) - ys[i]
			sum += d * d
		}
		return sum
	}

	bestA, bestB := 1.0, 1.0
	aLo, aHi := 0.01, 10.0
	bLo, bHi := 0.1, 3.0
	for round := 0; round < 8; round++ {
		const steps = 40
		best := math.Inf(1)
		for i := 0; i <= steps; i++ {
			a := aLo + (aHi-aLo)*float64(i)/steps
			for j := 0; j <= steps; j++ {
				b := bLo + (bHi-bLo)*float64(j)/steps
				if l := loss(a, b); l < best {
					best, bestA, bestB = l, a, b
				}
			}
		}
		aStep := (aHi - aLo) / steps
		bStep := (bHi - bLo) / steps
		aLo, aHi = math.Max(bestA-2*aStep, 1e-4), bestA+2*aStep
		bLo, bHi = math.Max(bestB-2*bStep, 1e-4), bestB+2*bStep
	}
	return bestA, bestB
}
