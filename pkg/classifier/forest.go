package classifier

import (
	"fmt"
	"math"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// Forest is a random forest classifier voting with its trees.
type Forest struct {
	Trees    []Tree
	NClasses int
}

var _ Model = &Forest{}

// Predict returns the majority vote of trees. Ties go to the smallest class.
func (f *Forest) Predict(X mat.Matrix) []int {
	rows := rowsOf(X)
	out := make([]int, len(rows))
	votes := make([]int, f.NClasses)
	for i, row := range rows {
		for c := range votes {
			votes[c] = 0
		}
		for t := range f.Trees {
			votes[f.Trees[t].predictRow(row)] += 1
		}
		out[i] = argmax(votes)
	}
	return out
}

type ForestConfig struct {
	// number of trees
	Trees int

	// 0 means unlimited
	MaxDepth int

	MinSamplesSplit int
	MinSamplesLeaf  int

	// number of features tried at each split.
	//
	// 0 means sqrt(number of features), negative means all.
	MaxFeatures int

	// draw bootstrap samples for each tree
	Bootstrap bool

	Seed int64
}

func DefaultForestConfig() ForestConfig {
	return ForestConfig{
		Trees:           100,
		MaxDepth:        0,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		MaxFeatures:     0,
		Bootstrap:       true,
		Seed:            42,
	}
}

// ForestLearner fits Forests. Fitting is deterministic for a fixed Seed.
type ForestLearner struct {
	config ForestConfig
}

var _ Learner = &ForestLearner{}

func NewForestLearner(config ForestConfig) *ForestLearner {
	return &ForestLearner{config: config}
}

func (l *ForestLearner) Fit(X mat.Matrix, y []int) (Model, error) {
	r, p := X.Dims()
	if r == 0 || p == 0 {
		return nil, fmt.Errorf("%w: empty feature matrix", ErrInvalidInput)
	}
	if len(y) != r {
		return nil, fmt.Errorf("%w: %d rows for %d labels", ErrInvalidInput, r, len(y))
	}
	nClasses := 0
	for _, c := range y {
		if c < 0 {
			return nil, fmt.Errorf("%w: negative class label %d", ErrInvalidInput, c)
		}
		if nClasses <= c {
			nClasses = c + 1
		}
	}

	conf := l.config
	if conf.Trees <= 0 {
		conf.Trees = 1
	}
	params := treeParams{
		maxDepth:        conf.MaxDepth,
		minSamplesSplit: max(conf.MinSamplesSplit, 2),
		minSamplesLeaf:  max(conf.MinSamplesLeaf, 1),
		maxFeatures:     conf.MaxFeatures,
	}
	if params.maxFeatures == 0 {
		params.maxFeatures = max(int(math.Sqrt(float64(p))), 1)
	}

	rows := rowsOf(X)
	forest := &Forest{Trees: make([]Tree, conf.Trees), NClasses: nClasses}

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for t := 0; t < conf.Trees; t++ {
		g.Go(func() error {
			rnd := rand.New(rand.NewSource(conf.Seed + int64(t)))
			idx := make([]int, r)
			for i := range idx {
				if conf.Bootstrap {
					idx[i] = rnd.Intn(r)
				} else {
					idx[i] = i
				}
			}
			forest.Trees[t] = growTree(rows, y, nClasses, idx, params, rnd)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return forest, nil
}
