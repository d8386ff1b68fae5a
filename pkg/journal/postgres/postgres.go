// Package postgres is a journal on a PostgreSQL table "pipeline_run".
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	kpool "github.com/opst/backorder/pkg/db/postgres/pool"
	"github.com/opst/backorder/pkg/domain"
	xe "github.com/opst/backorder/pkg/errors"
	"github.com/opst/backorder/pkg/journal"
)

const schema = `
CREATE TABLE IF NOT EXISTS "pipeline_run" (
	"run_id" varchar PRIMARY KEY,
	"source" varchar NOT NULL,
	"status" varchar NOT NULL,
	"failed_stage" varchar NOT NULL DEFAULT '',
	"message" text NOT NULL DEFAULT '',
	"started_at" timestamp with time zone NOT NULL,
	"finished_at" timestamp with time zone NOT NULL,
	"train_score" double precision,
	"test_score" double precision,
	"score_delta" double precision,
	"version" integer
)`

type pgJournal struct {
	pool kpool.Pool
}

func New(pool kpool.Pool) *pgJournal {
	return &pgJournal{pool: pool}
}

var _ journal.Journal = &pgJournal{}

// Init creates the table when it does not exist.
func (j *pgJournal) Init(ctx context.Context) error {
	if _, err := j.pool.Exec(ctx, schema); err != nil {
		return xe.Wrap(err)
	}
	return nil
}

func (j *pgJournal) Record(ctx context.Context, rec journal.RunRecord) error {
	_, err := j.pool.Exec(
		ctx,
		`
		INSERT INTO "pipeline_run" (
			"run_id", "source", "status", "failed_stage", "message",
			"started_at", "finished_at",
			"train_score", "test_score", "score_delta", "version"
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`,
		rec.RunId, rec.Source, string(rec.Status), string(rec.FailedStage), rec.Message,
		rec.StartedAt, rec.FinishedAt,
		rec.TrainScore, rec.TestScore, rec.ScoreDelta, rec.Version,
	)
	if pgerr := new(pgconn.PgError); errors.As(err, &pgerr) && pgerr.Code == pgerrcode.UniqueViolation {
		return fmt.Errorf("%w: %s", journal.ErrRunConflict, rec.RunId)
	} else if err != nil {
		return xe.Wrap(err)
	}
	return nil
}

func (j *pgJournal) List(ctx context.Context) ([]journal.RunRecord, error) {
	rows, err := j.pool.Query(
		ctx,
		`
		SELECT
			"run_id", "source", "status", "failed_stage", "message",
			"started_at", "finished_at",
			"train_score", "test_score", "score_delta", "version"
		FROM "pipeline_run"
		ORDER BY "started_at", "run_id"
		`,
	)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer rows.Close()

	records := []journal.RunRecord{}
	for rows.Next() {
		rec := journal.RunRecord{}
		var status, stage string
		if err := rows.Scan(
			&rec.RunId, &rec.Source, &status, &stage, &rec.Message,
			&rec.StartedAt, &rec.FinishedAt,
			&rec.TrainScore, &rec.TestScore, &rec.ScoreDelta, &rec.Version,
		); err != nil {
			return nil, xe.Wrap(err)
		}
		rec.Status = domain.RunStatus(status)
		rec.FailedStage = domain.Stage(stage)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, xe.Wrap(err)
	}
	return records, nil
}
