package bundle_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/opst/backorder/pkg/bundle"
	"github.com/opst/backorder/pkg/classifier"
	"github.com/opst/backorder/pkg/domain"
	"github.com/opst/backorder/pkg/preprocess"
	"github.com/opst/backorder/pkg/table"
	"github.com/opst/backorder/pkg/utils/cmp"
	"github.com/opst/backorder/pkg/utils/try"
	"gonum.org/v1/gonum/mat"
)

func TestBundle_SaveLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "0")
	X := mat.NewDense(4, 1, []float64{0, 1, 2, 3})
	model := try.To(classifier.NewForestLearner(classifier.DefaultForestConfig()).Fit(X, []int{0, 0, 1, 1})).OrFatal(t)

	b := bundle.Bundle{
		Model: model,
		Features: &preprocess.FittedFeatures{
			Numeric:     []preprocess.NumericScaler{{Column: "x", Mean: 1.5, Min: 0, Max: 3}},
			Categorical: []preprocess.OrdinalEncoder{{Column: "c", Categories: []string{"a", "b"}}},
			Known:       []string{"sku", "y"},
		},
		Target: &preprocess.LabelEncoder{Classes: []string{"No", "Yes"}},
	}
	if err := b.Save(dir); err != nil {
		t.Fatal(err)
	}

	for _, f := range bundle.Files() {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			t.Errorf("%s is not written: %v", f, err)
		}
	}

	loaded := try.To(bundle.LoadBundle(dir)).OrFatal(t)
	if !cmp.SliceEq(loaded.Model.Predict(X), model.Predict(X)) {
		t.Error("loaded model predicts differently")
	}
	if !cmp.SliceEq(loaded.Features.Columns(), []string{"x", "c"}) {
		t.Errorf("unexpected features: %v", loaded.Features.Columns())
	}
	if !cmp.SliceEq(loaded.Features.Known, []string{"sku", "y"}) {
		t.Errorf("unexpected known columns: %v", loaded.Features.Known)
	}
	if !cmp.SliceEq(loaded.Target.Classes, []string{"No", "Yes"}) {
		t.Errorf("unexpected classes: %v", loaded.Target.Classes)
	}

	if err := b.Save(dir); !errors.Is(err, os.ErrExist) {
		t.Errorf("bundle is overwritten: %v", err)
	}
}

func TestBundle_CheckSchema(t *testing.T) {
	b := bundle.Bundle{
		Features: &preprocess.FittedFeatures{
			Numeric:     []preprocess.NumericScaler{{Column: "x", Mean: 1.5, Min: 0, Max: 3}},
			Categorical: []preprocess.OrdinalEncoder{{Column: "c", Categories: []string{"a", "b"}}},
			Known:       []string{"sku", "y"},
		},
	}

	for name, testcase := range map[string]struct {
		when []table.Column
		then error
	}{
		"features only": {
			when: []table.Column{table.NumericColumn("x", 1), table.CategoricalColumn("c", "a")},
		},
		"features and known columns": {
			when: []table.Column{
				table.CategoricalColumn("sku", "1"),
				table.NumericColumn("x", 1),
				table.CategoricalColumn("c", "a"),
				table.CategoricalColumn("y", "No"),
			},
		},
		"a feature is missing": {
			when: []table.Column{table.NumericColumn("x", 1)},
			then: domain.ErrFeatureSchemaMismatch,
		},
		"a feature is in another kind": {
			when: []table.Column{table.NumericColumn("x", 1), table.NumericColumn("c", 0)},
			then: domain.ErrFeatureSchemaMismatch,
		},
		"a column is unseen at fit time": {
			when: []table.Column{
				table.NumericColumn("x", 1),
				table.CategoricalColumn("c", "a"),
				table.NumericColumn("lead_time", 8),
			},
			then: domain.ErrFeatureSchemaMismatch,
		},
	} {
		t.Run(name, func(t *testing.T) {
			if err := b.CheckSchema(testcase.when); !errors.Is(err, testcase.then) {
				t.Errorf("error: (actual, expected) = (%v, %v)", err, testcase.then)
			}
		})
	}
}

func TestMatrix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transformed", "train.mat")
	m := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	if err := bundle.DumpMatrix(path, m); err != nil {
		t.Fatal(err)
	}
	got := try.To(bundle.LoadMatrix(path)).OrFatal(t)
	if !mat.Equal(got, m) {
		t.Errorf("unexpected matrix:\n%v", mat.Formatted(got))
	}
}

func TestLoadModel_NotFound(t *testing.T) {
	if _, err := bundle.LoadModel(filepath.Join(t.TempDir(), bundle.ModelFile)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("unexpected error: %v", err)
	}
}
