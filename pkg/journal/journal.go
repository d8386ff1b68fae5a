// Package journal keeps the history of pipeline runs.
package journal

import (
	"context"
	"errors"
	"time"

	"github.com/opst/backorder/pkg/domain"
)

// ErrRunConflict is returned when a run has been recorded already.
var ErrRunConflict = errors.New("journal: run is recorded already")

// RunRecord is a summary of a pipeline run.
type RunRecord struct {
	RunId  string           `yaml:"run_id"`
	Source string           `yaml:"source"`
	Status domain.RunStatus `yaml:"status"`

	// stage which has stopped the run. Empty for succeeded runs.
	FailedStage domain.Stage `yaml:"failed_stage,omitempty"`
	Message     string       `yaml:"message,omitempty"`

	StartedAt  time.Time `yaml:"started_at"`
	FinishedAt time.Time `yaml:"finished_at"`

	TrainScore *float64 `yaml:"train_score,omitempty"`
	TestScore  *float64 `yaml:"test_score,omitempty"`
	ScoreDelta *float64 `yaml:"score_delta,omitempty"`

	// promoted version
	Version *int `yaml:"version,omitempty"`
}

// RecordOf summarizes a run from its result and error.
func RecordOf(source string, result domain.RunResult, err error) RunRecord {
	rec := RunRecord{
		RunId:      result.RunId,
		Source:     source,
		Status:     domain.StatusOf(err),
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
	}
	if err != nil {
		rec.Message = err.Error()
		if s, ok := domain.FailedStage(err); ok {
			rec.FailedStage = s
		}
	}
	if t := result.Training; t != nil {
		rec.TrainScore = &t.TrainScore
		rec.TestScore = &t.TestScore
	}
	if e := result.Evaluation; e != nil {
		rec.ScoreDelta = &e.ScoreDelta
	}
	if p := result.Promotion; p != nil {
		rec.Version = &p.Version
	}
	return rec
}

type Journal interface {
	// Record saves a run record.
	//
	// If the run is recorded already, it returns ErrRunConflict.
	Record(ctx context.Context, rec RunRecord) error

	// List returns records in the order of StartedAt.
	List(ctx context.Context) ([]RunRecord, error)
}
