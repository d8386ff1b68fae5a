package train_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"testing"

	"github.com/opst/backorder/cmd/backorder/subcommands/common"
	"github.com/opst/backorder/cmd/backorder/subcommands/internal/commandline"
	"github.com/opst/backorder/cmd/backorder/subcommands/train"
	apiruns "github.com/opst/backorder/pkg/api/types/runs"
	configs "github.com/opst/backorder/pkg/configs/pipeline"
	"github.com/opst/backorder/pkg/domain"
	"github.com/opst/backorder/pkg/logger"
	"github.com/opst/backorder/pkg/pipeline"
)

type fakeTrainer struct {
	observer pipeline.Observer
	stages   []domain.Stage
	result   domain.RunResult
	err      error

	sources []string
}

func (f *fakeTrainer) Run(_ context.Context, source string) (domain.RunResult, error) {
	f.sources = append(f.sources, source)
	for i, s := range f.stages {
		f.observer.StageStarted(f.result.RunId, s)
		var err error
		if i == len(f.stages)-1 {
			err = f.err
		}
		f.observer.StageFinished(f.result.RunId, s, err)
	}
	return f.result, f.err
}

func TestTrainCommand(t *testing.T) {
	version := 0
	succeeded := domain.RunResult{
		RunId:      "20240501T120000.000000Z",
		Source:     "data/backorder.csv",
		Training:   &domain.TrainingArtifact{TrainScore: 0.9, TestScore: 0.8},
		Evaluation: &domain.EvaluationArtifact{Accepted: true},
		Promotion:  &domain.PromotionArtifact{Version: version},
	}
	rejected := domain.RunResult{
		RunId:      "20240501T130000.000000Z",
		Source:     "data/backorder.csv",
		Training:   &domain.TrainingArtifact{TrainScore: 0.9, TestScore: 0.8},
		Evaluation: &domain.EvaluationArtifact{Accepted: false, ScoreDelta: -0.05},
	}
	errNotImproved := &domain.StageError{
		Stage: domain.Evaluation, Err: fmt.Errorf("%w: fake", domain.ErrModelNotImproved),
	}
	errUnderfit := &domain.StageError{
		Stage: domain.Training, Err: fmt.Errorf("%w: fake", domain.ErrUnderfitModel),
	}
	errNoRun := errors.New("permission denied")

	type when struct {
		args    []string
		flags   train.Flags
		stages  []domain.Stage
		result  domain.RunResult
		err     error
		factory error
	}
	type then struct {
		err    error
		source string

		// status in stdout. empty if nothing is written.
		status domain.RunStatus
	}

	theory := func(when when, then then) func(*testing.T) {
		return func(t *testing.T) {
			trainer := &fakeTrainer{stages: when.stages, result: when.result, err: when.err}
			testee := train.Task(func(
				_ context.Context, _ *log.Logger, _ configs.Config, observer pipeline.Observer,
			) (train.Trainer, func(), error) {
				if when.factory != nil {
					return nil, nil, when.factory
				}
				trainer.observer = observer
				return trainer, func() {}, nil
			})

			cl := commandline.New("backorder train", when.flags, map[string][]string{train.ARG_SOURCE: when.args})
			stdout := cl.Out
			err := testee(
				context.Background(),
				logger.Null(),
				common.CommonFlags{},
				configs.Default(),
				cl,
				[]any{},
			)

			if !errors.Is(err, then.err) {
				t.Errorf("error: (actual, expected) = (%v, %v)", err, then.err)
			}
			if when.factory == nil && (len(trainer.sources) != 1 || trainer.sources[0] != then.source) {
				t.Errorf("trainer is called with %v", trainer.sources)
			}

			if then.status == "" {
				if stdout.Len() != 0 {
					t.Errorf("unexpected stdout: %s", stdout.String())
				}
				return
			}
			summary := apiruns.Summary{}
			if err := json.Unmarshal([]byte(stdout.String()), &summary); err != nil {
				t.Fatalf("stdout is not a summary: %s (%s)", err, stdout.String())
			}
			if summary.RunId != when.result.RunId || summary.Status != string(then.status) {
				t.Errorf("unexpected summary: %+v", summary)
			}
		}
	}

	t.Run("when the run succeeds, it writes the summary", theory(
		when{args: []string{"data/other.csv"}, stages: domain.Stages(), result: succeeded},
		then{source: "data/other.csv", status: domain.Succeeded},
	))
	t.Run("when SOURCE is omitted, it trains with the configured source", theory(
		when{flags: train.Flags{Quiet: true}, stages: domain.Stages(), result: succeeded},
		then{source: "", status: domain.Succeeded},
	))
	t.Run("when the model is rejected, it is not an error", theory(
		when{stages: domain.Stages()[:5], result: rejected, err: errNotImproved},
		then{status: domain.Rejected},
	))
	t.Run("when a stage fails, it writes the summary and returns the error", theory(
		when{stages: domain.Stages()[:4], result: domain.RunResult{RunId: "20240501T140000.000000Z"}, err: errUnderfit},
		then{err: domain.ErrUnderfitModel, status: domain.Failed},
	))
	t.Run("when no run is started, it returns the error", theory(
		when{result: domain.RunResult{}, err: errNoRun},
		then{err: errNoRun},
	))
	t.Run("when the trainer can not be built, it returns the error", theory(
		when{factory: errNoRun},
		then{err: errNoRun},
	))
}
