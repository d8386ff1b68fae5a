// Package pipeline runs the training pipeline:
// ingestion, validation, transformation, training, evaluation and promotion.
package pipeline

import (
	"context"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/opst/backorder/pkg/artifacts"
	"github.com/opst/backorder/pkg/classifier"
	configs "github.com/opst/backorder/pkg/configs/pipeline"
	"github.com/opst/backorder/pkg/domain"
	"github.com/opst/backorder/pkg/journal"
	"github.com/opst/backorder/pkg/journal/file"
	"github.com/opst/backorder/pkg/logger"
	"github.com/opst/backorder/pkg/metrics"
	"github.com/opst/backorder/pkg/registry"
	"github.com/opst/backorder/pkg/stages/evaluation"
	"github.com/opst/backorder/pkg/stages/ingestion"
	"github.com/opst/backorder/pkg/stages/promotion"
	"github.com/opst/backorder/pkg/stages/training"
	"github.com/opst/backorder/pkg/stages/transformation"
	"github.com/opst/backorder/pkg/stages/validation"
)

// Observer is notified when each stage starts and finishes.
type Observer interface {
	StageStarted(runId string, stage domain.Stage)

	// err is nil when the stage has succeeded.
	StageFinished(runId string, stage domain.Stage, err error)
}

type nopObserver struct{}

func (nopObserver) StageStarted(string, domain.Stage)         {}
func (nopObserver) StageFinished(string, domain.Stage, error) {}

type Orchestrator struct {
	// one run at a time
	mu sync.Mutex

	conf     configs.Config
	store    *artifacts.Store
	registry *registry.Registry
	learner  classifier.Learner
	journal  journal.Journal
	observer Observer
	logger   *log.Logger
	clock    func() time.Time
}

type Option func(*Orchestrator) *Orchestrator

func WithStore(s *artifacts.Store) Option {
	return func(o *Orchestrator) *Orchestrator {
		o.store = s
		return o
	}
}

func WithRegistry(r *registry.Registry) Option {
	return func(o *Orchestrator) *Orchestrator {
		o.registry = r
		return o
	}
}

func WithLearner(l classifier.Learner) Option {
	return func(o *Orchestrator) *Orchestrator {
		o.learner = l
		return o
	}
}

func WithJournal(j journal.Journal) Option {
	return func(o *Orchestrator) *Orchestrator {
		o.journal = j
		return o
	}
}

func WithObserver(ob Observer) Option {
	return func(o *Orchestrator) *Orchestrator {
		o.observer = ob
		return o
	}
}

func WithLogger(l *log.Logger) Option {
	return func(o *Orchestrator) *Orchestrator {
		o.logger = l
		return o
	}
}

// New creates an Orchestrator.
//
// By default, runs are stored under conf.ArtifactRoot and recorded in their run directories,
// models are published to conf.RegistryRoot, and random forests are trained.
func New(conf configs.Config, options ...Option) *Orchestrator {
	o := &Orchestrator{
		conf:     conf,
		observer: nopObserver{},
		logger:   logger.Default(),
		clock:    time.Now,
	}
	for _, opt := range options {
		o = opt(o)
	}
	if o.store == nil {
		o.store = artifacts.NewStore(conf.ArtifactRoot)
	}
	if o.registry == nil {
		o.registry = registry.New(conf.RegistryRoot)
	}
	if o.learner == nil {
		o.learner = classifier.NewForestLearner(ForestConfig(conf.Training.Forest))
	}
	if o.journal == nil {
		o.journal = file.New(o.store)
	}
	return o
}

func ForestConfig(f configs.Forest) classifier.ForestConfig {
	return classifier.ForestConfig{
		Trees:           f.Trees,
		MaxDepth:        f.MaxDepth,
		MinSamplesSplit: f.MinSamplesSplit,
		MinSamplesLeaf:  f.MinSamplesLeaf,
		MaxFeatures:     f.MaxFeatures,
		Bootstrap:       f.Bootstrap,
		Seed:            f.Seed,
	}
}

func (o *Orchestrator) Registry() *registry.Registry {
	return o.registry
}

func (o *Orchestrator) Journal() journal.Journal {
	return o.journal
}

// Run runs every stage in order with a new run directory.
//
// When a stage fails, the run stops there.
// Artifacts made until then are kept.
//
// # Args
//
// - ctx: context.Context. When it is done, the next stage fails with ctx.Err().
//
// - sourceOverride string: path to the source CSV.
// When it is empty, the configured source is used.
//
// # Returns
//
// - domain.RunResult: id and directory of the run, with artifacts of stages which have succeeded.
//
// - error: *domain.StageError telling the failed stage,
// or error caused when it fails to create the run directory.
// A rejected model fails Evaluation, and domain.IsRejection tells it.
func (o *Orchestrator) Run(ctx context.Context, sourceOverride string) (domain.RunResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	source := o.conf.Source
	if sourceOverride != "" {
		source = sourceOverride
	}
	base := o.conf.BaseData
	if base == "" {
		base = source
	}

	run, err := o.store.Create(ctx)
	if err != nil {
		return domain.RunResult{}, err
	}
	result := domain.RunResult{RunId: run.Id, RunDir: run.Dir, Source: source, StartedAt: o.clock()}
	o.logger.Printf("run %s: training with %s", run.Id, source)

	err = o.stages(ctx, run, source, base, &result)

	result.FinishedAt = o.clock()
	o.finish(ctx, run, source, result, err)
	return result, err
}

func (o *Orchestrator) stages(ctx context.Context, run artifacts.Run, source, base string, result *domain.RunResult) error {
	conf := o.conf
	l := run.Layout

	step := func(stage domain.Stage, f func(*log.Logger) error) error {
		if err := ctx.Err(); err != nil {
			return &domain.StageError{Stage: stage, Err: err}
		}
		o.observer.StageStarted(run.Id, stage)
		logger := logger.Named(o.logger, stage.String())
		logger.Printf(">>>>> %s started (run %s)", stage, run.Id)
		err := f(logger)
		o.observer.StageFinished(run.Id, stage, err)
		if err != nil {
			logger.Printf("<<<<< %s failed: %s", stage, err)
			return &domain.StageError{Stage: stage, Err: err}
		}
		logger.Printf("<<<<< %s completed", stage)
		return nil
	}

	if err := step(domain.Ingestion, func(logger *log.Logger) error {
		art, err := ingestion.Run(ctx, ingestion.Config{
			Source:           source,
			DropColumns:      conf.Ingestion.DropColumns,
			DropTrailingRows: conf.Ingestion.DropTrailingRows,
			TargetColumn:     conf.TargetColumn,
			TestFraction:     conf.Ingestion.TestFraction,
			Upsample:         conf.Ingestion.Upsample,
			Seed:             conf.Ingestion.Seed,
			MaxSourceBytes:   conf.Ingestion.MaxSourceBytes,
			FeatureStorePath: l.FeatureStore,
			TrainPath:        l.Train,
			TestPath:         l.Test,
		}, logger)
		if err == nil {
			result.Ingestion = &art
		}
		return err
	}); err != nil {
		return err
	}

	if err := step(domain.Validation, func(logger *log.Logger) error {
		art, err := validation.Run(ctx, validation.Config{
			BaseData:         base,
			DropColumns:      conf.Ingestion.DropColumns,
			DropTrailingRows: conf.Ingestion.DropTrailingRows,
			MaxSourceBytes:   conf.Ingestion.MaxSourceBytes,
			MissingThreshold: conf.Validation.MissingThreshold,
			Significance:     conf.Validation.Significance,
			TrainPath:        result.Ingestion.TrainPath,
			TestPath:         result.Ingestion.TestPath,
			ReportPath:       l.ValidationReport,
			ValidTrainPath:   l.ValidatedTrain,
			ValidTestPath:    l.ValidatedTest,
		}, logger)
		if err == nil {
			result.Validation = &art
		}
		return err
	}); err != nil {
		return err
	}

	if err := step(domain.Transformation, func(logger *log.Logger) error {
		art, err := transformation.Run(ctx, transformation.Config{
			TargetColumn:       conf.TargetColumn,
			NumericColumns:     conf.Transformation.NumericColumns,
			CategoricalColumns: conf.Transformation.CategoricalColumns,
			KnownColumns:       append(slices.Clone(conf.Ingestion.DropColumns), result.Validation.DroppedColumns...),
			TrainPath:          result.Validation.TrainPath,
			TestPath:           result.Validation.TestPath,
			TransformerPath:    l.Transformer,
			TargetEncoderPath:  l.TargetEncoder,
			TrainArrayPath:     l.TransformedTrain,
			TestArrayPath:      l.TransformedTest,
		}, logger)
		if err == nil {
			result.Transformation = &art
		}
		return err
	}); err != nil {
		return err
	}

	if err := step(domain.Training, func(logger *log.Logger) error {
		art, err := training.Run(ctx, training.Config{
			ExpectedScore:        conf.Training.ExpectedScore,
			OverfittingThreshold: conf.Training.OverfittingThreshold,
			TrainArrayPath:       result.Transformation.TrainArrayPath,
			TestArrayPath:        result.Transformation.TestArrayPath,
			ModelPath:            l.Model,
		}, o.learner, logger)
		if err == nil {
			result.Training = &art
		}
		return err
	}); err != nil {
		return err
	}

	if err := step(domain.Evaluation, func(logger *log.Logger) error {
		art, err := evaluation.Run(ctx, evaluation.Config{
			TargetColumn:      conf.TargetColumn,
			MinImprovement:    conf.Evaluation.MinImprovement,
			TestPath:          result.Ingestion.TestPath,
			ModelPath:         result.Training.ModelPath,
			TransformerPath:   result.Transformation.TransformerPath,
			TargetEncoderPath: result.Transformation.TargetEncoderPath,
			VerdictPath:       l.Verdict,
		}, o.registry, logger)
		if art.VerdictPath != "" {
			result.Evaluation = &art
		}
		return err
	}); err != nil {
		return err
	}

	return step(domain.Promotion, func(logger *log.Logger) error {
		art, err := promotion.Run(ctx, promotion.Config{
			ModelPath:         result.Training.ModelPath,
			TransformerPath:   result.Transformation.TransformerPath,
			TargetEncoderPath: result.Transformation.TargetEncoderPath,
			PromotionDir:      l.Promotion,
		}, o.registry, logger)
		if err == nil {
			result.Promotion = &art
		}
		return err
	})
}

// finish records the run in the journal and writes its metrics.
// Failures here are logged and do not change the result of the run.
func (o *Orchestrator) finish(ctx context.Context, run artifacts.Run, source string, result domain.RunResult, err error) {
	rec := journal.RecordOf(source, result, err)
	switch rec.Status {
	case domain.Succeeded:
		o.logger.Printf("run %s: succeeded. version %d is published", run.Id, result.Promotion.Version)
	case domain.Rejected:
		o.logger.Printf("run %s: rejected: %s", run.Id, err)
	default:
		o.logger.Printf("run %s: failed: %s", run.Id, err)
	}

	ctx = context.WithoutCancel(ctx)
	if jerr := o.journal.Record(ctx, rec); jerr != nil {
		o.logger.Printf("run %s: can not be recorded in the journal: %s", run.Id, jerr)
	}
	if merr := metrics.WriteFile(run.Layout.Metrics, metrics.ForRun(rec)); merr != nil {
		o.logger.Printf("run %s: metrics can not be written: %s", run.Id, merr)
	}
}
