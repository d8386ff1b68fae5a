package common

import (
	"context"
	"log"
	"path/filepath"

	"github.com/opst/backorder/pkg/artifacts"
	configs "github.com/opst/backorder/pkg/configs/pipeline"
	kpg "github.com/opst/backorder/pkg/db/postgres"
	"github.com/opst/backorder/pkg/journal"
	"github.com/opst/backorder/pkg/journal/file"
	pgjournal "github.com/opst/backorder/pkg/journal/postgres"
	"github.com/opst/backorder/pkg/pipeline"
	"github.com/opst/backorder/pkg/prediction"
	"github.com/opst/backorder/pkg/registry"
	"github.com/opst/backorder/pkg/registry/pglock"
)

// Deps are the stores shared by subcommands.
type Deps struct {
	conf   configs.Config
	logger *log.Logger

	Store    *artifacts.Store
	Registry *registry.Registry
	Journal  journal.Journal

	close func()
}

// Open prepares stores for conf.
//
// When a database is configured, runs are recorded in it and promotions are locked with it.
// Otherwise, runs are recorded in their run directories.
func Open(ctx context.Context, conf configs.Config, logger *log.Logger) (*Deps, error) {
	store := artifacts.NewStore(conf.ArtifactRoot)
	d := &Deps{
		conf:     conf,
		logger:   logger,
		Store:    store,
		Registry: registry.New(conf.RegistryRoot),
		Journal:  file.New(store),
		close:    func() {},
	}
	if conf.Journal.Database == "" {
		return d, nil
	}

	pool, err := kpg.Connect(ctx, conf.Journal.Database, kpg.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	j := pgjournal.New(pool)
	if err := j.Init(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	root := conf.RegistryRoot
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	d.Registry = registry.New(
		conf.RegistryRoot,
		registry.WithLocker(pglock.New(pool, pglock.KeyOf(root))),
	)
	d.Journal = j
	d.close = pool.Close
	return d, nil
}

func (d *Deps) Orchestrator(options ...pipeline.Option) *pipeline.Orchestrator {
	return pipeline.New(
		d.conf,
		append(
			[]pipeline.Option{
				pipeline.WithStore(d.Store),
				pipeline.WithRegistry(d.Registry),
				pipeline.WithJournal(d.Journal),
				pipeline.WithLogger(d.logger),
			},
			options...,
		)...,
	)
}

func (d *Deps) Predictor(options ...prediction.Option) *prediction.Predictor {
	return prediction.New(d.Registry, d.conf.TargetColumn, d.conf.Ingestion.DropColumns, options...)
}

func (d *Deps) Close() {
	d.close()
}
