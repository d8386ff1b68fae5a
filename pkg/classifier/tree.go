package classifier

import (
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Node of a CART tree. Nodes are stored in a flat slice; Left and Right are indexes.
type Node struct {
	// split feature, or -1 for a leaf.
	Feature int

	// rows with value <= Threshold go Left.
	Threshold float64

	Left  int
	Right int

	// majority class of training rows reaching the node
	Class int
}

type Tree struct {
	Nodes []Node
}

func (t *Tree) predictRow(row []float64) int {
	at := 0
	for {
		n := t.Nodes[at]
		if n.Feature < 0 {
			return n.Class
		}
		if row[n.Feature] <= n.Threshold {
			at = n.Left
		} else {
			at = n.Right
		}
	}
}

func (t *Tree) Predict(X mat.Matrix) []int {
	rows := rowsOf(X)
	out := make([]int, len(rows))
	for i, row := range rows {
		out[i] = t.predictRow(row)
	}
	return out
}

type treeParams struct {
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int
}

type treeBuilder struct {
	treeParams
	X        [][]float64
	y        []int
	nClasses int
	rnd      *rand.Rand
	nodes    []Node
}

// growTree fits a tree on rows at idx (may repeat, for bootstrap samples).
func growTree(X [][]float64, y []int, nClasses int, idx []int, params treeParams, rnd *rand.Rand) Tree {
	b := &treeBuilder{
		treeParams: params,
		X:          X, y: y, nClasses: nClasses,
		rnd: rnd,
	}
	b.build(idx, 0)
	return Tree{Nodes: b.nodes}
}

func (b *treeBuilder) counts(idx []int) []int {
	counts := make([]int, b.nClasses)
	for _, i := range idx {
		counts[b.y[i]] += 1
	}
	return counts
}

func (b *treeBuilder) build(idx []int, depth int) int {
	counts := b.counts(idx)
	at := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: -1, Class: argmax(counts)})

	if isPure(counts) ||
		len(idx) < b.minSamplesSplit ||
		(0 < b.maxDepth && b.maxDepth <= depth) {
		return at
	}

	feature, threshold, ok := b.bestSplit(idx, counts)
	if !ok {
		return at
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if b.X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.nodes[at].Feature = feature
	b.nodes[at].Threshold = threshold
	b.nodes[at].Left = l
	b.nodes[at].Right = r
	return at
}

func (b *treeBuilder) bestSplit(idx []int, counts []int) (feature int, threshold float64, ok bool) {
	p := len(b.X[0])
	features := b.rnd.Perm(p)
	if 0 < b.maxFeatures && b.maxFeatures < p {
		features = features[:b.maxFeatures]
	}

	n := float64(len(idx))
	parent := gini(counts, len(idx))
	bestGain := 1e-12

	sorted := make([]int, len(idx))
	left := make([]int, b.nClasses)
	right := make([]int, b.nClasses)
	for _, f := range features {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(i, j int) bool {
			return b.X[sorted[i]][f] < b.X[sorted[j]][f]
		})
		for c := range left {
			left[c] = 0
		}
		copy(right, counts)

		for i := 0; i < len(sorted)-1; i++ {
			c := b.y[sorted[i]]
			left[c] += 1
			right[c] -= 1

			v, next := b.X[sorted[i]][f], b.X[sorted[i+1]][f]
			if v == next {
				continue
			}
			nl := i + 1
			nr := len(sorted) - nl
			if nl < b.minSamplesLeaf || nr < b.minSamplesLeaf {
				continue
			}
			gain := parent -
				(float64(nl)/n)*gini(left, nl) -
				(float64(nr)/n)*gini(right, nr)
			if bestGain < gain {
				bestGain = gain
				feature = f
				threshold = (v + next) / 2
				ok = true
			}
		}
	}
	return feature, threshold, ok
}

func gini(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range counts {
		p := float64(c) / float64(n)
		sum += p * p
	}
	return 1 - sum
}

func isPure(counts []int) bool {
	nonzero := 0
	for _, c := range counts {
		if 0 < c {
			nonzero += 1
		}
	}
	return nonzero <= 1
}

// argmax returns the first index of the maximum.
func argmax(counts []int) int {
	best := 0
	for i, c := range counts {
		if counts[best] < c {
			best = i
		}
	}
	return best
}
