package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/opst/backorder/internal/testutils/dataset"
	"github.com/opst/backorder/internal/testutils/fakemodel"
	configs "github.com/opst/backorder/pkg/configs/pipeline"
	"github.com/opst/backorder/pkg/domain"
	"github.com/opst/backorder/pkg/logger"
	"github.com/opst/backorder/pkg/pipeline"
	"github.com/opst/backorder/pkg/utils/cmp"
	"github.com/opst/backorder/pkg/utils/try"
)

func config(t *testing.T) configs.Config {
	dir := t.TempDir()
	conf := configs.Default()
	conf.ArtifactRoot = filepath.Join(dir, "artifacts")
	conf.RegistryRoot = filepath.Join(dir, "saved_models")
	conf.PredictionRoot = filepath.Join(dir, "prediction")
	conf.Source = dataset.Write(t, dataset.Backorder(400, 1), "backorder.csv")
	conf.Training.Forest.Trees = 10
	return conf
}

type event struct {
	stage    domain.Stage
	finished bool
	failed   bool
}

type recorder struct {
	mu     sync.Mutex
	events []event
}

func (r *recorder) StageStarted(_ string, stage domain.Stage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{stage: stage})
}

func (r *recorder) StageFinished(_ string, stage domain.Stage, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{stage: stage, finished: true, failed: err != nil})
}

func exists(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s: %v", p, err)
		}
	}
}

func TestOrchestrator(t *testing.T) {
	ctx := context.Background()

	t.Run("the first run promotes version 0, and the same data is rejected next", func(t *testing.T) {
		conf := config(t)
		rec := &recorder{}
		testee := pipeline.New(conf, pipeline.WithLogger(logger.Null()), pipeline.WithObserver(rec))

		result, err := testee.Run(ctx, "")
		if err != nil {
			t.Fatal(err)
		}
		if result.Promotion == nil || result.Promotion.Version != 0 {
			t.Fatalf("unexpected promotion: %+v", result.Promotion)
		}
		if !result.Evaluation.Accepted || result.Evaluation.ScoreDelta != 0 {
			t.Errorf("unexpected verdict: %+v", result.Evaluation)
		}
		if result.Ingestion.TrainRows+result.Ingestion.TestRows < result.Ingestion.CleanedRows {
			t.Errorf("rows are lost: %+v", result.Ingestion)
		}
		exists(
			t,
			result.Ingestion.FeatureStorePath, result.Ingestion.TrainPath, result.Ingestion.TestPath,
			result.Validation.ReportPath, result.Validation.TrainPath, result.Validation.TestPath,
			result.Transformation.TransformerPath, result.Transformation.TargetEncoderPath,
			result.Transformation.TrainArrayPath, result.Transformation.TestArrayPath,
			result.Training.ModelPath, result.Evaluation.VerdictPath,
			result.Promotion.ModelPath, result.Promotion.TransformerPath, result.Promotion.TargetEncoderPath,
			filepath.Join(result.RunDir, "run.yaml"), filepath.Join(result.RunDir, "metrics.prom"),
		)

		deployed, _ := try.To2(testee.Registry().LoadLatest()).OrFatal(t)
		if unseen := deployed.Features.Unseen(dataset.Backorder(1, 1).Names()...); len(unseen) != 0 {
			t.Errorf("columns of the feed are unseen by the model: %v", unseen)
		}

		stages := []domain.Stage{}
		for _, e := range rec.events {
			if e.finished {
				if e.failed {
					t.Errorf("%s failed", e.stage)
				}
				stages = append(stages, e.stage)
			}
		}
		if !cmp.SliceEq(stages, domain.Stages()) {
			t.Errorf("unexpected stages: %v", stages)
		}

		second, err := testee.Run(ctx, "")
		if !errors.Is(err, domain.ErrModelNotImproved) {
			t.Fatalf("unexpected error: %v", err)
		}
		if stage, ok := domain.FailedStage(err); !ok || stage != domain.Evaluation {
			t.Errorf("unexpected stage: %v", stage)
		}
		if second.RunId == result.RunId {
			t.Error("run directory is reused")
		}
		if second.Evaluation == nil || second.Evaluation.Accepted || second.Promotion != nil {
			t.Errorf("unexpected result: %+v", second)
		}
		latest, ok := try.To2(testee.Registry().Latest()).OrFatal(t)
		if !ok || latest != 0 {
			t.Errorf("latest: %d (%v)", latest, ok)
		}

		records := try.To(testee.Journal().List(ctx)).OrFatal(t)
		if len(records) != 2 {
			t.Fatalf("unexpected records: %+v", records)
		}
		if records[0].Status != domain.Succeeded || *records[0].Version != 0 {
			t.Errorf("unexpected record: %+v", records[0])
		}
		if records[1].Status != domain.Rejected || records[1].FailedStage != domain.Evaluation {
			t.Errorf("unexpected record: %+v", records[1])
		}
	})

	t.Run("a failing stage stops the run and is tagged", func(t *testing.T) {
		conf := config(t)
		rec := &recorder{}
		// predicts "Yes" for every row
		learner := fakemodel.Learner{Model: &fakemodel.Scripted{Default: 1}}
		testee := pipeline.New(
			conf,
			pipeline.WithLogger(logger.Null()),
			pipeline.WithObserver(rec),
			pipeline.WithLearner(learner),
		)

		result, err := testee.Run(ctx, "")
		if !errors.Is(err, domain.ErrUnderfitModel) {
			t.Fatalf("unexpected error: %v", err)
		}
		se := new(domain.StageError)
		if !errors.As(err, &se) || se.Stage != domain.Training {
			t.Errorf("unexpected stage: %v", err)
		}
		if result.Transformation == nil || result.Training != nil || result.Evaluation != nil {
			t.Errorf("unexpected result: %+v", result)
		}
		last := rec.events[len(rec.events)-1]
		if last.stage != domain.Training || !last.failed {
			t.Errorf("unexpected last event: %+v", last)
		}
		// artifacts are kept
		exists(t, result.Transformation.TrainArrayPath, filepath.Join(result.RunDir, "run.yaml"))

		if versions := try.To(testee.Registry().Versions()).OrFatal(t); len(versions) != 0 {
			t.Errorf("unexpected versions: %v", versions)
		}
		records := try.To(testee.Journal().List(ctx)).OrFatal(t)
		if len(records) != 1 || records[0].Status != domain.Failed || records[0].FailedStage != domain.Training {
			t.Errorf("unexpected records: %+v", records)
		}
	})

	t.Run("an unreadable source fails ingestion", func(t *testing.T) {
		conf := config(t)
		testee := pipeline.New(conf, pipeline.WithLogger(logger.Null()))

		result, err := testee.Run(ctx, filepath.Join(t.TempDir(), "missing.csv"))
		if !errors.Is(err, domain.ErrDataUnavailable) {
			t.Fatalf("unexpected error: %v", err)
		}
		if stage, _ := domain.FailedStage(err); stage != domain.Ingestion {
			t.Errorf("unexpected stage: %s", stage)
		}
		if result.RunDir == "" || result.Ingestion != nil {
			t.Errorf("unexpected result: %+v", result)
		}
		exists(t, result.RunDir)
	})

	t.Run("a canceled run does not start stages", func(t *testing.T) {
		conf := config(t)
		rec := &recorder{}
		testee := pipeline.New(conf, pipeline.WithLogger(logger.Null()), pipeline.WithObserver(rec))

		canceled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := testee.Run(canceled, "")
		if !errors.Is(err, context.Canceled) {
			t.Errorf("unexpected error: %v", err)
		}
		if len(rec.events) != 0 {
			t.Errorf("stages are started: %+v", rec.events)
		}
	})
}
