// Package training fits a classifier on the encoded train matrix,
// and keeps it only when it passes quality gates.
package training

import (
	"context"
	"fmt"
	"log"
	"math"

	"github.com/opst/backorder/pkg/bundle"
	"github.com/opst/backorder/pkg/classifier"
	"github.com/opst/backorder/pkg/domain"
	xe "github.com/opst/backorder/pkg/errors"
	"github.com/opst/backorder/pkg/preprocess"
	"gonum.org/v1/gonum/mat"
)

type Config struct {
	// least accuracy on test
	ExpectedScore float64

	// largest gap allowed between train and test accuracy
	OverfittingThreshold float64

	TrainArrayPath string
	TestArrayPath  string

	ModelPath string
}

func Run(ctx context.Context, conf Config, learner classifier.Learner, logger *log.Logger) (domain.TrainingArtifact, error) {
	trainM, err := bundle.LoadMatrix(conf.TrainArrayPath)
	if err != nil {
		return domain.TrainingArtifact{}, err
	}
	testM, err := bundle.LoadMatrix(conf.TestArrayPath)
	if err != nil {
		return domain.TrainingArtifact{}, err
	}
	Xtrain, ytrain, err := preprocess.Unstack(trainM)
	if err != nil {
		return domain.TrainingArtifact{}, xe.WrapWithNote(conf.TrainArrayPath, err)
	}
	Xtest, ytest, err := preprocess.Unstack(testM)
	if err != nil {
		return domain.TrainingArtifact{}, xe.WrapWithNote(conf.TestArrayPath, err)
	}

	r, p := Xtrain.Dims()
	logger.Printf("fitting on %d rows x %d features", r, p)
	model, err := learner.Fit(Xtrain, ytrain)
	if err != nil {
		return domain.TrainingArtifact{}, xe.Wrap(err)
	}
	if err := ctx.Err(); err != nil {
		return domain.TrainingArtifact{}, err
	}

	trainScore, err := Score(model, Xtrain, ytrain)
	if err != nil {
		return domain.TrainingArtifact{}, err
	}
	testScore, err := Score(model, Xtest, ytest)
	if err != nil {
		return domain.TrainingArtifact{}, err
	}
	logger.Printf("accuracy: train=%.4f test=%.4f", trainScore, testScore)

	if err := Assess(trainScore, testScore, conf.ExpectedScore, conf.OverfittingThreshold); err != nil {
		return domain.TrainingArtifact{}, err
	}

	if err := bundle.DumpModel(conf.ModelPath, model); err != nil {
		return domain.TrainingArtifact{}, err
	}
	return domain.TrainingArtifact{
		ModelPath:  conf.ModelPath,
		TrainScore: trainScore,
		TestScore:  testScore,
	}, nil
}

// Score is the accuracy of model on X against class codes y.
func Score(model classifier.Model, X mat.Matrix, y []int) (float64, error) {
	acc, err := classifier.Accuracy(y, model.Predict(X))
	if err != nil {
		return 0, xe.Wrap(err)
	}
	return acc, nil
}

// Assess applies quality gates: underfitting is checked first, then overfitting.
func Assess(trainScore, testScore, expectedScore, overfittingThreshold float64) error {
	if testScore < expectedScore {
		return fmt.Errorf(
			"%w: test accuracy %.4f is less than expected %.4f",
			domain.ErrUnderfitModel, testScore, expectedScore,
		)
	}
	if gap := math.Abs(trainScore - testScore); overfittingThreshold < gap {
		return fmt.Errorf(
			"%w: gap of train and test accuracy %.4f exceeds %.4f",
			domain.ErrOverfitModel, gap, overfittingThreshold,
		)
	}
	return nil
}
