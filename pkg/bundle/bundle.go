// Package bundle persists fitted objects: classifiers, feature transformers,
// target encoders and encoded matrices.
package bundle

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/opst/backorder/pkg/classifier"
	"github.com/opst/backorder/pkg/domain"
	xe "github.com/opst/backorder/pkg/errors"
	"github.com/opst/backorder/pkg/preprocess"
	"github.com/opst/backorder/pkg/table"
	"gonum.org/v1/gonum/mat"
	"k8s.io/apimachinery/pkg/util/sets"
)

const (
	ModelFile         = "model.gob"
	TransformerFile   = "transformer.gob"
	TargetEncoderFile = "target_encoder.gob"
)

// Files of a bundle directory.
func Files() []string {
	return []string{ModelFile, TransformerFile, TargetEncoderFile}
}

func init() {
	RegisterModel(&classifier.Forest{})
}

// RegisterModel makes a concrete Model type dumpable.
func RegisterModel(m classifier.Model) {
	gob.Register(m)
}

// Bundle is a fitted model with the transformer and the target encoder fitted with it.
type Bundle struct {
	Model    classifier.Model
	Features *preprocess.FittedFeatures
	Target   *preprocess.LabelEncoder
}

// Predict predicts target labels for rows of t.
//
// Known columns which are not features are ignored.
// When t lacks a feature, has it in another kind or has a column unseen at fit time,
// it returns domain.ErrFeatureSchemaMismatch.
func (b Bundle) Predict(t *table.Table) ([]string, error) {
	if err := b.CheckSchema(t.Columns()); err != nil {
		return nil, err
	}
	X, err := b.Features.Transform(t)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	labels, err := b.Target.Decode(b.Model.Predict(X))
	if err != nil {
		return nil, xe.Wrap(err)
	}
	return labels, nil
}

// CheckSchema tells whether columns satisfy features of b.
//
// Every feature should be given in its fitted kind,
// and no column should be unseen at fit time.
func (b Bundle) CheckSchema(columns []table.Column) error {
	kinds := b.Features.Kinds()
	given := sets.New[string]()
	names := make([]string, 0, len(columns))
	for _, c := range columns {
		given.Insert(c.Name)
		names = append(names, c.Name)
		if k, ok := kinds[c.Name]; ok && k != c.Kind {
			return fmt.Errorf(
				"%w: %s should be %s, but %s", domain.ErrFeatureSchemaMismatch, c.Name, k, c.Kind,
			)
		}
	}
	if missing := sets.New(b.Features.Columns()...).Difference(given); missing.Len() != 0 {
		return fmt.Errorf("%w: missing columns %v", domain.ErrFeatureSchemaMismatch, sets.List(missing))
	}
	if unseen := b.Features.Unseen(names...); len(unseen) != 0 {
		return fmt.Errorf("%w: columns unseen at fit time %v", domain.ErrFeatureSchemaMismatch, unseen)
	}
	return nil
}

// Save writes files of b into dir. dir is created when needed.
func (b Bundle) Save(dir string) error {
	if err := os.MkdirAll(dir, os.FileMode(0o755)); err != nil {
		return xe.Wrap(err)
	}
	if err := DumpModel(filepath.Join(dir, ModelFile), b.Model); err != nil {
		return err
	}
	if err := Dump(filepath.Join(dir, TransformerFile), b.Features); err != nil {
		return err
	}
	return Dump(filepath.Join(dir, TargetEncoderFile), b.Target)
}

func LoadBundle(dir string) (Bundle, error) {
	return LoadFiles(
		filepath.Join(dir, ModelFile),
		filepath.Join(dir, TransformerFile),
		filepath.Join(dir, TargetEncoderFile),
	)
}

// LoadFiles loads a bundle from files which are not in a bundle directory.
func LoadFiles(modelPath, transformerPath, targetEncoderPath string) (Bundle, error) {
	model, err := LoadModel(modelPath)
	if err != nil {
		return Bundle{}, err
	}
	features := new(preprocess.FittedFeatures)
	if err := Load(transformerPath, features); err != nil {
		return Bundle{}, err
	}
	target := new(preprocess.LabelEncoder)
	if err := Load(targetEncoderPath, target); err != nil {
		return Bundle{}, err
	}
	return Bundle{Model: model, Features: features, Target: target}, nil
}

type modelHolder struct {
	Model classifier.Model
}

func DumpModel(path string, m classifier.Model) error {
	if m == nil {
		return xe.New("bundle: nil model")
	}
	return Dump(path, modelHolder{Model: m})
}

func LoadModel(path string) (classifier.Model, error) {
	h := modelHolder{}
	if err := Load(path, &h); err != nil {
		return nil, err
	}
	if h.Model == nil {
		return nil, fmt.Errorf("bundle: no model in %s", path)
	}
	return h.Model, nil
}

// Dump writes v into a new file at path with gob. Existing file is not overwritten.
func Dump(path string, v any) error {
	return create(path, func(f *os.File) error {
		return gob.NewEncoder(f).Encode(v)
	})
}

// Load reads a file written by Dump into v.
func Load(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return xe.Wrap(err)
	}
	defer f.Close()
	if err := gob.NewDecoder(f).Decode(v); err != nil {
		return xe.WrapWithNote(path, err)
	}
	return nil
}

func DumpMatrix(path string, m *mat.Dense) error {
	return create(path, func(f *os.File) error {
		_, err := m.MarshalBinaryTo(f)
		return err
	})
}

func LoadMatrix(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer f.Close()
	m := new(mat.Dense)
	if _, err := m.UnmarshalBinaryFrom(f); err != nil {
		return nil, xe.WrapWithNote(path, err)
	}
	return m, nil
}

func create(path string, write func(*os.File) error) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), os.FileMode(0o755)); err != nil {
		return xe.Wrap(err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, os.FileMode(0o644))
	if err != nil {
		return xe.Wrap(err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = xe.Wrap(cerr)
		}
		if err != nil {
			err = errors.Join(err, os.Remove(path))
		}
	}()
	if err := write(f); err != nil {
		return xe.WrapWithNote(path, err)
	}
	return nil
}
