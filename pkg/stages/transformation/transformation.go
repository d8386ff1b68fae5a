// Package transformation fits the feature transformer and the target encoder on train,
// and encodes train and test into matrices.
package transformation

import (
	"context"
	"fmt"
	"log"

	"github.com/opst/backorder/pkg/bundle"
	"github.com/opst/backorder/pkg/domain"
	xe "github.com/opst/backorder/pkg/errors"
	"github.com/opst/backorder/pkg/preprocess"
	"github.com/opst/backorder/pkg/table"
	"gonum.org/v1/gonum/mat"
)

type Config struct {
	TargetColumn string

	// feature columns. When both are empty, they are inferred from train.
	NumericColumns     []string
	CategoricalColumns []string

	// input columns which are not in train but are known at fit time,
	// like identifiers and columns dropped by validation.
	KnownColumns []string

	TrainPath string
	TestPath  string

	TransformerPath   string
	TargetEncoderPath string
	TrainArrayPath    string
	TestArrayPath     string
}

// Fitted is a fitted transformer and target encoder, with encoded train and test.
//
// Train and Test have the encoded target as the last column.
type Fitted struct {
	Features *preprocess.FittedFeatures
	Target   *preprocess.LabelEncoder

	Train *mat.Dense
	Test  *mat.Dense
}

func Run(ctx context.Context, conf Config, logger *log.Logger) (domain.TransformationArtifact, error) {
	train, err := table.Read(conf.TrainPath)
	if err != nil {
		return domain.TransformationArtifact{}, xe.Wrap(err)
	}
	test, err := table.Read(conf.TestPath)
	if err != nil {
		return domain.TransformationArtifact{}, xe.Wrap(err)
	}

	spec := preprocess.FeatureSpec{
		Numeric:     conf.NumericColumns,
		Categorical: conf.CategoricalColumns,
	}
	if spec.Empty() {
		spec = preprocess.InferFeatureSpec(train, conf.TargetColumn)
		logger.Printf("features inferred: numeric=%v categorical=%v", spec.Numeric, spec.Categorical)
	}

	fitted, err := Fit(spec, conf.TargetColumn, train, test)
	if err != nil {
		return domain.TransformationArtifact{}, err
	}
	fitted.Features.Know(conf.KnownColumns...)
	if err := ctx.Err(); err != nil {
		return domain.TransformationArtifact{}, err
	}

	if err := bundle.Dump(conf.TransformerPath, fitted.Features); err != nil {
		return domain.TransformationArtifact{}, err
	}
	if err := bundle.Dump(conf.TargetEncoderPath, fitted.Target); err != nil {
		return domain.TransformationArtifact{}, err
	}
	if err := bundle.DumpMatrix(conf.TrainArrayPath, fitted.Train); err != nil {
		return domain.TransformationArtifact{}, err
	}
	if err := bundle.DumpMatrix(conf.TestArrayPath, fitted.Test); err != nil {
		return domain.TransformationArtifact{}, err
	}

	_, p := fitted.Train.Dims()
	logger.Printf("encoded %d features into %d classes %v", p-1, len(fitted.Target.Classes), fitted.Target.Classes)

	return domain.TransformationArtifact{
		TransformerPath:   conf.TransformerPath,
		TargetEncoderPath: conf.TargetEncoderPath,
		TrainArrayPath:    conf.TrainArrayPath,
		TestArrayPath:     conf.TestArrayPath,
	}, nil
}

// Fit fits spec and the target encoder on train, then encodes train and test.
//
// Any failure is reported as domain.ErrTransformFit.
func Fit(spec preprocess.FeatureSpec, target string, train, test *table.Table) (Fitted, error) {
	fail := func(err error) (Fitted, error) {
		return Fitted{}, fmt.Errorf("%w: %w", domain.ErrTransformFit, err)
	}

	trainTarget, ok := train.Column(target)
	if !ok {
		return fail(fmt.Errorf("%w: %s in train", preprocess.ErrMissingColumn, target))
	}
	testTarget, ok := test.Column(target)
	if !ok {
		return fail(fmt.Errorf("%w: %s in test", preprocess.ErrMissingColumn, target))
	}

	features, err := spec.Fit(train)
	if err != nil {
		return fail(err)
	}
	labels, err := preprocess.FitLabels(trainTarget)
	if err != nil {
		return fail(err)
	}

	encode := func(t *table.Table, target table.Column) (*mat.Dense, error) {
		X, err := features.Transform(t)
		if err != nil {
			return nil, err
		}
		y, err := labels.Encode(target)
		if err != nil {
			return nil, err
		}
		return preprocess.Stack(X, y)
	}

	trainM, err := encode(train, trainTarget)
	if err != nil {
		return fail(fmt.Errorf("train: %w", err))
	}
	testM, err := encode(test, testTarget)
	if err != nil {
		return fail(fmt.Errorf("test: %w", err))
	}

	return Fitted{Features: features, Target: labels, Train: trainM, Test: testM}, nil
}
