package domain

import (
	"errors"
	"fmt"
)

var (
	// source table can not be read, has an unsupported format or is too large.
	ErrDataUnavailable = errors.New("data unavailable")

	// fewer than 2 rows are left after cleaning.
	ErrEmptyDataset = errors.New("empty dataset")

	// a dataset has no columns left after dropping columns with too many missing values.
	ErrMissingDataset = errors.New("missing dataset")

	// feature transformer or target encoder can not be fit or applied.
	ErrTransformFit = errors.New("transform fit error")

	// test accuracy is below the expected score.
	ErrUnderfitModel = errors.New("underfit model")

	// gap between train and test accuracy exceeds the overfitting threshold.
	ErrOverfitModel = errors.New("overfit model")

	// newly trained model does not outperform the deployed one.
	//
	// This is a designed outcome of the evaluation gate, not a fault.
	ErrModelNotImproved = errors.New("model not improved")

	// registry has no version to predict with.
	ErrModelUnavailable = errors.New("model unavailable")

	// prediction input columns do not match columns seen at fit time.
	ErrFeatureSchemaMismatch = errors.New("feature schema mismatch")
)

// StageError tags an error with the pipeline stage where it happened.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %s", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// FailedStage returns the stage tagged in err.
//
// If err is not caused by a stage, it returns ("", false).
func FailedStage(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}

// IsRejection tells err is the evaluation gate rejecting a model.
//
// Rejections leave the registry unchanged and should not be reported as failures.
func IsRejection(err error) bool {
	return errors.Is(err, ErrModelNotImproved)
}
