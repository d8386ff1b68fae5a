// Package prediction predicts back-orders with the latest model in the registry.
//
// The latest version is resolved for each call, so a newly promoted version
// is used from the next call on.
package prediction

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/opst/backorder/pkg/bundle"
	"github.com/opst/backorder/pkg/domain"
	"github.com/opst/backorder/pkg/registry"
	"github.com/opst/backorder/pkg/table"
)

// column name of predicted labels
const Column = "prediction"

// Record is a row to be predicted, keyed by column name.
//
// Values are numbers, strings or nil for missing values.
type Record map[string]any

type Predictor struct {
	registry    *registry.Registry
	target      string
	dropColumns []string
	clock       func() time.Time
}

type Option func(*Predictor) *Predictor

// WithClock replaces the clock naming batch prediction files.
func WithClock(clock func() time.Time) Option {
	return func(p *Predictor) *Predictor {
		p.clock = clock
		return p
	}
}

// New creates a Predictor.
//
// Columns named in dropColumns and the target column are ignored in inputs.
func New(reg *registry.Registry, target string, dropColumns []string, options ...Option) *Predictor {
	p := &Predictor{
		registry:    reg,
		target:      target,
		dropColumns: dropColumns,
		clock:       time.Now,
	}
	for _, opt := range options {
		p = opt(p)
	}
	return p
}

// Prediction is a result of batch prediction.
type Prediction struct {
	// input rows with the Column of predicted labels
	Table *table.Table

	// registry version used
	Version int
}

// PredictBatch predicts every row of t with the latest version.
//
// # Args
//
// - ctx: context.Context
//
// - t *table.Table: rows to be predicted.
// It should have every feature column of the model, and no column unknown to the model.
//
// # Returns
//
// - Prediction: t with the column of predicted labels, and the version used.
//
// - error: domain.ErrModelUnavailable when the registry is empty.
// domain.ErrEmptyDataset when t has no rows.
// domain.ErrFeatureSchemaMismatch when t lacks a feature or has an unseen column.
func (p *Predictor) PredictBatch(ctx context.Context, t *table.Table) (Prediction, error) {
	b, version, err := p.registry.LoadLatest()
	if err != nil {
		return Prediction{}, err
	}
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}
	if t.NumRows() == 0 {
		return Prediction{}, fmt.Errorf("%w: no rows to predict", domain.ErrEmptyDataset)
	}

	features, err := conform(t.Drop(append([]string{p.target}, p.dropColumns...)...), b)
	if err != nil {
		return Prediction{}, err
	}
	labels, err := b.Predict(features)
	if err != nil {
		return Prediction{}, err
	}
	out, err := t.With(table.CategoricalColumn(Column, labels...))
	if err != nil {
		return Prediction{}, err
	}
	return Prediction{Table: out, Version: version}, nil
}

// PredictSingle predicts a record with the latest version.
//
// It returns a copy of rec with the predicted label in Column, and the version used.
func (p *Predictor) PredictSingle(ctx context.Context, rec Record) (Record, int, error) {
	b, version, err := p.registry.LoadLatest()
	if err != nil {
		return nil, 0, err
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	t, err := recordToTable(rec, b)
	if err != nil {
		return nil, 0, err
	}
	features, err := conform(t.Drop(append([]string{p.target}, p.dropColumns...)...), b)
	if err != nil {
		return nil, 0, err
	}
	labels, err := b.Predict(features)
	if err != nil {
		return nil, 0, err
	}

	out := make(Record, len(rec)+1)
	for k, v := range rec {
		out[k] = v
	}
	out[Column] = labels[0]
	return out, version, nil
}

// PredictFile predicts rows of the input table file,
// and writes them with predictions into a new CSV file in outDir.
//
// It returns the path of the written file.
func (p *Predictor) PredictFile(ctx context.Context, input string, outDir string) (string, Prediction, error) {
	t, err := table.Read(input)
	if err != nil {
		return "", Prediction{}, fmt.Errorf("%w: %w", domain.ErrDataUnavailable, err)
	}
	pred, err := p.PredictBatch(ctx, t)
	if err != nil {
		return "", Prediction{}, err
	}
	out := filepath.Join(outDir, p.clock().UTC().Format("20060102T150405.000000Z")+".csv")
	if err := table.Write(pred.Table, out); err != nil {
		return "", Prediction{}, err
	}
	return out, pred, nil
}

// conform converts columns of t into the kinds of features of b, where it is possible.
//
// Numeric values are formatted for categorical features, and
// labels are parsed as numbers for numeric features.
func conform(t *table.Table, b bundle.Bundle) (*table.Table, error) {
	kinds := b.Features.Kinds()
	for _, c := range t.Columns() {
		want, ok := kinds[c.Name]
		if !ok || want == c.Kind {
			continue
		}
		converted, err := convert(c, want)
		if err != nil {
			return nil, err
		}
		if t, err = t.With(converted); err != nil {
			return nil, err
		}
	}
	if err := b.CheckSchema(t.Columns()); err != nil {
		return nil, err
	}
	return t, nil
}

func convert(c table.Column, kind table.Kind) (table.Column, error) {
	switch kind {
	case table.Categorical:
		labels := make([]string, c.Len())
		for i, v := range c.Numbers {
			if !math.IsNaN(v) {
				labels[i] = strconv.FormatFloat(v, 'g', -1, 64)
			}
		}
		return table.CategoricalColumn(c.Name, labels...), nil
	default:
		numbers := make([]float64, c.Len())
		for i, l := range c.Labels {
			if l == "" {
				numbers[i] = math.NaN()
				continue
			}
			v, err := strconv.ParseFloat(l, 64)
			if err != nil {
				return table.Column{}, fmt.Errorf(
					"%w: %s should be numeric, but has %q", domain.ErrFeatureSchemaMismatch, c.Name, l,
				)
			}
			numbers[i] = v
		}
		return table.NumericColumn(c.Name, numbers...), nil
	}
}

func recordToTable(rec Record, b bundle.Bundle) (*table.Table, error) {
	kinds := b.Features.Kinds()
	names := make([]string, 0, len(rec))
	for k := range rec {
		names = append(names, k)
	}
	sort.Strings(names)

	columns := make([]table.Column, 0, len(names))
	for _, name := range names {
		c, err := cellToColumn(name, rec[name], kinds)
		if err != nil {
			return nil, err
		}
		columns = append(columns, c)
	}
	return table.New(columns...)
}

func cellToColumn(name string, value any, kinds map[string]table.Kind) (table.Column, error) {
	var number float64
	switch v := value.(type) {
	case nil:
		if kinds[name] == table.Categorical {
			return table.CategoricalColumn(name, ""), nil
		}
		return table.NumericColumn(name, math.NaN()), nil
	case string:
		return table.CategoricalColumn(name, v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return table.Column{}, fmt.Errorf("%w: %s: %w", domain.ErrFeatureSchemaMismatch, name, err)
		}
		number = f
	case float64:
		number = v
	case float32:
		number = float64(v)
	case int:
		number = float64(v)
	case int64:
		number = float64(v)
	case int32:
		number = float64(v)
	case bool:
		return table.CategoricalColumn(name, strconv.FormatBool(v)), nil
	default:
		return table.Column{}, fmt.Errorf(
			"%w: %s has unsupported value %v (%T)", domain.ErrFeatureSchemaMismatch, name, value, value,
		)
	}
	return table.NumericColumn(name, number), nil
}
