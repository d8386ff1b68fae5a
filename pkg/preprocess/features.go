// Package preprocess fits feature transformers and target encoders on training tables,
// and applies the fitted (frozen) state to other tables.
package preprocess

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/opst/backorder/pkg/stats"
	"github.com/opst/backorder/pkg/table"
	"gonum.org/v1/gonum/mat"
	"k8s.io/apimachinery/pkg/util/sets"
)

var (
	ErrNoFeature     = errors.New("no feature columns")
	ErrMissingColumn = errors.New("column not found")
	ErrKindMismatch  = errors.New("column kind mismatch")
	ErrNoRows        = errors.New("no rows")
)

// code of categorical labels not seen at fit time
const UnknownCategory = -1

// FeatureSpec names the columns to be fitted.
type FeatureSpec struct {
	Numeric     []string
	Categorical []string
}

// InferFeatureSpec takes every column of t except excluded ones,
// as Numeric or Categorical after its kind.
func InferFeatureSpec(t *table.Table, exclude ...string) FeatureSpec {
	ex := map[string]struct{}{}
	for _, e := range exclude {
		ex[e] = struct{}{}
	}
	spec := FeatureSpec{}
	for _, c := range t.Columns() {
		if _, ok := ex[c.Name]; ok {
			continue
		}
		if c.Kind == table.Numeric {
			spec.Numeric = append(spec.Numeric, c.Name)
		} else {
			spec.Categorical = append(spec.Categorical, c.Name)
		}
	}
	return spec
}

func (s FeatureSpec) Empty() bool {
	return len(s.Numeric) == 0 && len(s.Categorical) == 0
}

// NumericScaler imputes missing values with Mean, then scales into [0, 1] with Min and Max.
type NumericScaler struct {
	Column string
	Mean   float64
	Min    float64
	Max    float64
}

func (s NumericScaler) apply(v float64) float64 {
	if math.IsNaN(v) {
		v = s.Mean
	}
	if s.Max <= s.Min {
		return 0
	}
	return (v - s.Min) / (s.Max - s.Min)
}

// OrdinalEncoder codes labels by their position in sorted Categories.
type OrdinalEncoder struct {
	Column     string
	Categories []string
}

func (o OrdinalEncoder) apply(label string) float64 {
	i := sort.SearchStrings(o.Categories, label)
	if i < len(o.Categories) && o.Categories[i] == label {
		return float64(i)
	}
	return UnknownCategory
}

// FittedFeatures is the frozen state of a feature transformer.
//
// Transformed matrices have Numeric columns first, then Categorical ones.
type FittedFeatures struct {
	Numeric     []NumericScaler
	Categorical []OrdinalEncoder

	// input columns known at fit time which are not features,
	// like the target, identifiers and columns dropped before fitting. Sorted.
	Known []string
}

// Fit learns imputation, scaling and encoding from train.
func (s FeatureSpec) Fit(train *table.Table) (*FittedFeatures, error) {
	if s.Empty() {
		return nil, ErrNoFeature
	}
	if train.NumRows() == 0 {
		return nil, ErrNoRows
	}

	fitted := &FittedFeatures{}
	for _, name := range s.Numeric {
		c, err := column(train, name, table.Numeric)
		if err != nil {
			return nil, err
		}
		mean, ok := stats.Mean(c.Numbers)
		if !ok {
			mean = 0
		}
		lo, hi := mean, mean
		for _, v := range c.Numbers {
			if math.IsNaN(v) {
				v = mean
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		fitted.Numeric = append(fitted.Numeric, NumericScaler{Column: name, Mean: mean, Min: lo, Max: hi})
	}

	for _, name := range s.Categorical {
		c, err := column(train, name, table.Categorical)
		if err != nil {
			return nil, err
		}
		seen := map[string]struct{}{}
		cats := []string{}
		for _, l := range c.Labels {
			if _, ok := seen[l]; ok {
				continue
			}
			seen[l] = struct{}{}
			cats = append(cats, l)
		}
		sort.Strings(cats)
		fitted.Categorical = append(fitted.Categorical, OrdinalEncoder{Column: name, Categories: cats})
	}
	return fitted.Know(train.Names()...), nil
}

// Know records names as input columns known at fit time. Features are not recorded twice.
func (f *FittedFeatures) Know(names ...string) *FittedFeatures {
	known := sets.New(f.Known...).Insert(names...).Delete(f.Columns()...)
	f.Known = sets.List(known)
	return f
}

// Unseen returns names which are neither features nor known columns, in the given order.
func (f *FittedFeatures) Unseen(names ...string) []string {
	seen := sets.New(f.Known...).Insert(f.Columns()...)
	out := []string{}
	for _, n := range names {
		if !seen.Has(n) {
			out = append(out, n)
		}
	}
	return out
}

// Columns fitted, in the order of transformed matrix columns.
func (f *FittedFeatures) Columns() []string {
	names := make([]string, 0, len(f.Numeric)+len(f.Categorical))
	for _, n := range f.Numeric {
		names = append(names, n.Column)
	}
	for _, c := range f.Categorical {
		names = append(names, c.Column)
	}
	return names
}

// Kinds of fitted columns.
func (f *FittedFeatures) Kinds() map[string]table.Kind {
	kinds := make(map[string]table.Kind, len(f.Numeric)+len(f.Categorical))
	for _, n := range f.Numeric {
		kinds[n.Column] = table.Numeric
	}
	for _, c := range f.Categorical {
		kinds[c.Column] = table.Categorical
	}
	return kinds
}

// Transform encodes fitted columns of t. Other columns of t are ignored.
//
// It does not modify f; transforming the same table twice gives the same matrix.
func (f *FittedFeatures) Transform(t *table.Table) (*mat.Dense, error) {
	if t.NumRows() == 0 {
		return nil, ErrNoRows
	}
	p := len(f.Numeric) + len(f.Categorical)
	if p == 0 {
		return nil, ErrNoFeature
	}

	out := mat.NewDense(t.NumRows(), p, nil)
	j := 0
	for _, n := range f.Numeric {
		c, err := column(t, n.Column, table.Numeric)
		if err != nil {
			return nil, err
		}
		for i, v := range c.Numbers {
			out.Set(i, j, n.apply(v))
		}
		j += 1
	}
	for _, o := range f.Categorical {
		c, err := column(t, o.Column, table.Categorical)
		if err != nil {
			return nil, err
		}
		for i, l := range c.Labels {
			out.Set(i, j, o.apply(l))
		}
		j += 1
	}
	return out, nil
}

func column(t *table.Table, name string, kind table.Kind) (table.Column, error) {
	c, ok := t.Column(name)
	if !ok {
		return table.Column{}, fmt.Errorf("%w: %s", ErrMissingColumn, name)
	}
	if c.Kind != kind {
		return table.Column{}, fmt.Errorf(
			"%w: %s is %s, expected %s", ErrKindMismatch, name, c.Kind, kind,
		)
	}
	return c, nil
}
