package clustering

import (
	"fmt"
	"math"
	"sort"

	"Vid2News/internal/domain"
)

// Selection picks which condensed-tree clusters become output labels.
type Selection string

const (
	SelectionEOM  Selection = "eom"
	SelectionLeaf Selection = "leaf"
)

// ParseSelection resolves a configured selection method; empty means eom.
func ParseSelection(name string) (Selection, error) {
	switch Selection(name) {
	case "", SelectionEOM:
		return SelectionEOM, nil
	case SelectionLeaf:
		return SelectionLeaf, nil
	default:
		return "", fmt.Errorf("unknown cluster selection method %q", name)
	}
}

// HDBSCANConfig holds density clustering parameters.
type HDBSCANConfig struct {
	MinClusterSize int
	MinSamples     int
	Metric         Metric
	Selection      Selection
}

// HDBSCAN is a hierarchical density clusterer over dense points.
type HDBSCAN struct {
	cfg HDBSCANConfig
}

// NewHDBSCAN applies defaults: min cluster size 2, min samples equal to it,
// euclidean metric and excess-of-mass selection.
func NewHDBSCAN(cfg HDBSCANConfig) *HDBSCAN {
	if cfg.MinClusterSize < 2 {
		cfg.MinClusterSize = 2
	}
	if cfg.MinSamples < 1 {
		cfg.MinSamples = cfg.MinClusterSize
	}
	if cfg.Metric == "" {
		cfg.Metric = MetricEuclidean
	}
	if cfg.Selection == "" {
		cfg.Selection = SelectionEOM
	}
	return &HDBSCAN{cfg: cfg}
}

// Fit labels every point with a cluster id starting at 0, or domain.NoiseCluster.
func (h *HDBSCAN) Fit(points [][]float64) []int {
	n := len(points)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = domain.NoiseCluster
	}
	if n < h.cfg.MinClusterSize || n < 2 {
		return labels
	}

	dist := pairwise(points, h.cfg.Metric)
	core := coreDistances(dist, h.cfg.MinSamples)
	mst := primMST(dist, core)
	hierarchy := singleLinkage(mst, n)
	tree := condense(hierarchy, n, h.cfg.MinClusterSize)
	stability := tree.stability()

	selected := h.selectClusters(tree, stability)
	single := false
	if len(selected) == 0 {
		selected = []int{tree.root}
		single = true
	}
	return tree.label(selected, single)
}

func coreDistances(dist [][]float64, minSamples int) []float64 {
	n := len(dist)
	k := minSamples
	if k > n-1 {
		k = n - 1
	}
	core := make([]float64, n)
	row := make([]float64, 0, n-1)
	for i := range dist {
		row = row[:0]
		for j, d := range dist[i] {
			if j != i {
				row = append(row, d)
			}
		}
		sort.Float64s(row)
		core[i] = row[k-1]
	}
	return core
}

type mstEdge struct {
	a, b   int
	weight float64
}

// primMST builds the minimum spanning tree of the mutual reachability graph.
func primMST(dist [][]float64, core []float64) []mstEdge {
	n := len(dist)
	inTree := make([]bool, n)
	best := make([]float64, n)
	from := make([]int, n)
	for i := range best {
		best[i] = math.Inf(1)
	}

	edges := make([]mstEdge, 0, n-1)
	current := 0
	inTree[current] = true
	for len(edges) < n-1 {
		next := -1
		for j := 0; j < n; j++ {
			if inTree[j] {
				continue
			}
			reach := math.Max(dist[current][j], math.Max(core[current], core[j]))
			if reach < best[j] {
				best[j] = reach
				from[j] = current
			}
			if next == -1 || best[j] < best[next] {
				next = j
			}
		}
		inTree[next] = true
		edges = append(edges, mstEdge{a: from[next], b: next, weight: best[next]})
		current = next
	}

	sort.SliceStable(edges, func(i, j int) bool {
		return edges[i].weight < edges[j].weight
	})
	return edges
}

type linkage struct {
	left, right int
	distance    float64
	size        int
}

// singleLinkage turns sorted MST edges into a merge hierarchy. Leaves are
// 0..n-1 and merge i creates node n+i.
func singleLinkage(edges []mstEdge, n int) []linkage {
	parent := make([]int, 2*n-1)
	size := make([]int, 2*n-1)
	for i := range parent {
		parent[i] = i
		if i < n {
			size[i] = 1
		}
	}
	find := func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}

	hierarchy := make([]linkage, 0, n-1)
	next := n
	for _, e := range edges {
		ra, rb := find(e.a), find(e.b)
		hierarchy = append(hierarchy, linkage{left: ra, right: rb, distance: e.weight, size: size[ra] + size[rb]})
		parent[ra] = next
		parent[rb] = next
		size[next] = size[ra] + size[rb]
		next++
	}
	return hierarchy
}

type condensedRow struct {
	parent, child int
	lambda        float64
	size          int
}

type condensedTree struct {
	rows   []condensedRow
	points int
	root   int
}

func lambdaOf(distance float64) float64 {
	return 1 / math.Max(distance, 1e-12)
}

func bfsHierarchy(hierarchy []linkage, n, start int) []int {
	var out []int
	queue := []int{start}
	for len(queue) > 0 {
		out = append(out, queue...)
		var next []int
		for _, node := range queue {
			if node >= n {
				h := hierarchy[node-n]
				next = append(next, h.left, h.right)
			}
		}
		queue = next
	}
	return out
}

// condense collapses the hierarchy so that only splits into two parts of at
// least minSize points create new clusters. Cluster ids start at n.
func condense(hierarchy []linkage, n, minSize int) condensedTree {
	root := 2*n - 2
	relabel := make([]int, 2*n-1)
	relabel[root] = n
	nextLabel := n + 1
	ignore := make([]bool, 2*n-1)
	tree := condensedTree{points: n, root: n}

	sizeOf := func(node int) int {
		if node < n {
			return 1
		}
		return hierarchy[node-n].size
	}
	dropPoints := func(parent, node int, lambda float64) {
		for _, sub := range bfsHierarchy(hierarchy, n, node) {
			if sub < n {
				tree.rows = append(tree.rows, condensedRow{parent: parent, child: sub, lambda: lambda, size: 1})
			}
			ignore[sub] = true
		}
	}

	for _, node := range bfsHierarchy(hierarchy, n, root) {
		if ignore[node] || node < n {
			continue
		}
		h := hierarchy[node-n]
		lambda := lambdaOf(h.distance)
		leftCount, rightCount := sizeOf(h.left), sizeOf(h.right)
		parent := relabel[node]

		switch {
		case leftCount >= minSize && rightCount >= minSize:
			relabel[h.left] = nextLabel
			nextLabel++
			tree.rows = append(tree.rows, condensedRow{parent: parent, child: relabel[h.left], lambda: lambda, size: leftCount})
			relabel[h.right] = nextLabel
			nextLabel++
			tree.rows = append(tree.rows, condensedRow{parent: parent, child: relabel[h.right], lambda: lambda, size: rightCount})
		case leftCount < minSize && rightCount < minSize:
			dropPoints(parent, h.left, lambda)
			dropPoints(parent, h.right, lambda)
		case leftCount < minSize:
			relabel[h.right] = parent
			dropPoints(parent, h.left, lambda)
		default:
			relabel[h.left] = parent
			dropPoints(parent, h.right, lambda)
		}
	}
	return tree
}

// stability computes the excess of mass of every cluster in the tree.
func (t condensedTree) stability() map[int]float64 {
	births := map[int]float64{t.root: 0}
	for _, r := range t.rows {
		births[r.child] = r.lambda
	}
	result := map[int]float64{t.root: 0}
	for _, r := range t.rows {
		result[r.parent] += (r.lambda - births[r.parent]) * float64(r.size)
	}
	return result
}

func (t condensedTree) clusterChildren(node int) []int {
	var out []int
	for _, r := range t.rows {
		if r.parent == node && r.size > 1 {
			out = append(out, r.child)
		}
	}
	return out
}

func (t condensedTree) descendants(node int) []int {
	var out []int
	queue := t.clusterChildren(node)
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		out = append(out, c)
		queue = append(queue, t.clusterChildren(c)...)
	}
	return out
}

// selectClusters returns the chosen non-root clusters in ascending id order.
func (h *HDBSCAN) selectClusters(t condensedTree, stability map[int]float64) []int {
	nodes := make([]int, 0, len(stability))
	for id := range stability {
		if id != t.root {
			nodes = append(nodes, id)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(nodes)))

	isCluster := make(map[int]bool, len(nodes))
	switch h.cfg.Selection {
	case SelectionLeaf:
		for _, id := range nodes {
			isCluster[id] = len(t.clusterChildren(id)) == 0
		}
	default:
		for _, id := range nodes {
			isCluster[id] = true
		}
		for _, id := range nodes {
			var subtree float64
			for _, child := range t.clusterChildren(id) {
				subtree += stability[child]
			}
			if subtree > stability[id] {
				isCluster[id] = false
				stability[id] = subtree
				continue
			}
			for _, sub := range t.descendants(id) {
				isCluster[sub] = false
			}
		}
	}

	var selected []int
	for _, id := range nodes {
		if isCluster[id] {
			selected = append(selected, id)
		}
	}
	sort.Ints(selected)
	return selected
}

// label assigns points to selected clusters. With single set, the root is
// the only cluster and keeps just the points that persist to its last split.
func (t condensedTree) label(selected []int, single bool) []int {
	chosen := make(map[int]int, len(selected))
	for i, id := range selected {
		chosen[id] = i
	}

	maxID := t.root
	for _, r := range t.rows {
		if r.parent > maxID {
			maxID = r.parent
		}
		if r.child > maxID {
			maxID = r.child
		}
	}
	parent := make([]int, maxID+1)
	for i := range parent {
		parent[i] = i
	}
	find := func(x int) int {
		for parent[x] != x {
			x = parent[x]
		}
		return x
	}
	for _, r := range t.rows {
		if _, ok := chosen[r.child]; ok {
			continue
		}
		parent[find(r.child)] = find(r.parent)
	}

	var rootMax float64
	pointLambda := make([]float64, t.points)
	for _, r := range t.rows {
		if r.parent == t.root && r.lambda > rootMax {
			rootMax = r.lambda
		}
		if r.child < t.points {
			pointLambda[r.child] = r.lambda
		}
	}

	labels := make([]int, t.points)
	for p := 0; p < t.points; p++ {
		c := find(p)
		switch {
		case c == t.root && single:
			if pointLambda[p] >= rootMax {
				labels[p] = chosen[c]
			} else {
				labels[p] = domain.NoiseCluster
			}
		case c == t.root:
			labels[p] = domain.NoiseCluster
		default:
			id, ok := chosen[c]
			if !ok {
				id = domain.NoiseCluster
			}
			labels[p] = id
		}
	}
	return labels
}
