// Package file is a journal keeping each run record in its run directory.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/opst/backorder/pkg/artifacts"
	xe "github.com/opst/backorder/pkg/errors"
	"github.com/opst/backorder/pkg/journal"
	"gopkg.in/yaml.v3"
)

type fileJournal struct {
	store *artifacts.Store
}

func New(store *artifacts.Store) journal.Journal {
	return &fileJournal{store: store}
}

func (j *fileJournal) Record(ctx context.Context, rec journal.RunRecord) error {
	run, err := j.store.Open(rec.RunId)
	if err != nil {
		return err
	}
	content, err := yaml.Marshal(rec)
	if err != nil {
		return xe.Wrap(err)
	}

	f, err := os.OpenFile(run.Layout.Journal, os.O_WRONLY|os.O_CREATE|os.O_EXCL, os.FileMode(0o644))
	if errors.Is(err, os.ErrExist) {
		return fmt.Errorf("%w: %s", journal.ErrRunConflict, rec.RunId)
	} else if err != nil {
		return xe.Wrap(err)
	}
	defer f.Close()
	if _, err := f.Write(content); err != nil {
		return xe.Wrap(err)
	}
	return nil
}

// List reads records of runs in the store. Runs without a record are skipped.
func (j *fileJournal) List(ctx context.Context) ([]journal.RunRecord, error) {
	runs, err := j.store.List()
	if err != nil {
		return nil, err
	}
	records := []journal.RunRecord{}
	for _, r := range runs {
		content, err := os.ReadFile(r.Layout.Journal)
		if errors.Is(err, os.ErrNotExist) {
			continue
		} else if err != nil {
			return nil, xe.Wrap(err)
		}
		rec := journal.RunRecord{}
		if err := yaml.Unmarshal(content, &rec); err != nil {
			return nil, xe.WrapWithNote(r.Layout.Journal, err)
		}
		records = append(records, rec)
	}
	return records, nil
}
