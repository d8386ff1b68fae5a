// Package ingestion loads the raw table, cleans it and splits it into train and test.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"sort"
	"strconv"

	"github.com/opst/backorder/pkg/domain"
	"github.com/opst/backorder/pkg/table"
	"k8s.io/apimachinery/pkg/api/resource"
)

type Config struct {
	Source string

	// identifier columns to be dropped. Columns not in the source are ignored.
	DropColumns []string

	// incomplete rows at the tail of the source
	DropTrailingRows int

	TargetColumn string
	TestFraction float64
	Upsample     bool
	Seed         int64

	MaxSourceBytes int64

	FeatureStorePath string
	TrainPath        string
	TestPath         string
}

func Run(ctx context.Context, conf Config, logger *log.Logger) (domain.IngestionArtifact, error) {
	logger.Printf("loading %s", conf.Source)
	raw, err := Load(conf.Source, conf.MaxSourceBytes)
	if err != nil {
		return domain.IngestionArtifact{}, err
	}
	if !raw.Has(conf.TargetColumn) {
		return domain.IngestionArtifact{}, fmt.Errorf(
			"%w: target column %s is not in %s", domain.ErrDataUnavailable, conf.TargetColumn, conf.Source,
		)
	}

	cleaned := Clean(raw, conf.DropColumns, conf.DropTrailingRows)
	if cleaned.NumRows() < 2 {
		return domain.IngestionArtifact{}, fmt.Errorf(
			"%w: %d rows left after cleaning %s", domain.ErrEmptyDataset, cleaned.NumRows(), conf.Source,
		)
	}
	if err := ctx.Err(); err != nil {
		return domain.IngestionArtifact{}, err
	}

	train, test := Split(cleaned, conf.TestFraction, conf.Seed)
	if conf.Upsample {
		before := train.NumRows()
		if train, err = Upsample(train, conf.TargetColumn, conf.Seed); err != nil {
			return domain.IngestionArtifact{}, err
		}
		logger.Printf("upsampled train split: %d -> %d rows", before, train.NumRows())
	}

	for path, t := range map[string]*table.Table{
		conf.FeatureStorePath: cleaned,
		conf.TrainPath:        train,
		conf.TestPath:         test,
	} {
		if err := table.Write(t, path); err != nil {
			return domain.IngestionArtifact{}, err
		}
	}
	logger.Printf(
		"cleaned %d rows into train (%d rows) and test (%d rows)",
		cleaned.NumRows(), train.NumRows(), test.NumRows(),
	)

	return domain.IngestionArtifact{
		FeatureStorePath: conf.FeatureStorePath,
		TrainPath:        conf.TrainPath,
		TestPath:         conf.TestPath,
		CleanedRows:      cleaned.NumRows(),
		TrainRows:        train.NumRows(),
		TestRows:         test.NumRows(),
	}, nil
}

// Load reads a source table. Any failure is reported as domain.ErrDataUnavailable.
func Load(source string, maxBytes int64) (*table.Table, error) {
	st, err := os.Stat(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrDataUnavailable, err)
	}
	if st.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", domain.ErrDataUnavailable, source)
	}
	if 0 < maxBytes && maxBytes < st.Size() {
		return nil, fmt.Errorf(
			"%w: %s is too large (%s > %s)", domain.ErrDataUnavailable, source,
			resource.NewQuantity(st.Size(), resource.BinarySI),
			resource.NewQuantity(maxBytes, resource.BinarySI),
		)
	}
	t, err := table.Read(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrDataUnavailable, err)
	}
	return t, nil
}

// Clean drops trailing rows and identifier columns.
func Clean(t *table.Table, dropColumns []string, dropTrailingRows int) *table.Table {
	return t.Head(t.NumRows() - dropTrailingRows).Drop(dropColumns...)
}

// Split partitions rows of t into disjoint train and test tables with a seeded permutation.
//
// t should have 2 or more rows. Both splits get at least 1 row.
func Split(t *table.Table, testFraction float64, seed int64) (train *table.Table, test *table.Table) {
	n := t.NumRows()
	nTest := int(math.Ceil(float64(n) * testFraction))
	nTest = max(1, min(nTest, n-1))

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	return t.Take(perm[nTest:]), t.Take(perm[:nTest])
}

var ErrNoTarget = errors.New("target column not found")

// Upsample resamples rows of minority classes with replacement
// until every class has as many rows as the majority class.
func Upsample(t *table.Table, target string, seed int64) (*table.Table, error) {
	col, ok := t.Column(target)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoTarget, target)
	}

	byClass := map[string][]int{}
	for i := 0; i < col.Len(); i++ {
		key := ""
		if !col.IsMissing(i) {
			switch col.Kind {
			case table.Numeric:
				key = strconv.FormatFloat(col.Numbers[i], 'g', -1, 64)
			default:
				key = col.Labels[i]
			}
		}
		byClass[key] = append(byClass[key], i)
	}

	classes := make([]string, 0, len(byClass))
	majority := 0
	for c, rows := range byClass {
		classes = append(classes, c)
		majority = max(majority, len(rows))
	}
	sort.Strings(classes)

	rnd := rand.New(rand.NewSource(seed))
	rows := make([]int, 0, majority*len(classes))
	for i := 0; i < t.NumRows(); i++ {
		rows = append(rows, i)
	}
	for _, c := range classes {
		members := byClass[c]
		for k := len(members); k < majority; k++ {
			rows = append(rows, members[rnd.Intn(len(members))])
		}
	}
	return t.Take(rows), nil
}
