// Package validation checks train/test tables against a base table:
// columns with too many missing values, columns lost from the base, and data drift.
package validation

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/opst/backorder/pkg/domain"
	xe "github.com/opst/backorder/pkg/errors"
	"github.com/opst/backorder/pkg/stages/ingestion"
	"github.com/opst/backorder/pkg/stats"
	"github.com/opst/backorder/pkg/table"
	"github.com/opst/backorder/pkg/utils/yamler"
	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/util/sets"
)

type Config struct {
	// reference table. It is cleaned in the same way as ingestion does.
	BaseData         string
	DropColumns      []string
	DropTrailingRows int
	MaxSourceBytes   int64

	// columns whose missing fraction is greater than this are dropped
	MissingThreshold float64

	// drift is detected when p-value is not greater than this
	Significance float64

	TrainPath string
	TestPath  string

	ReportPath     string
	ValidTrainPath string
	ValidTestPath  string
}

// Drift is the result of a drift test of a column.
type Drift struct {
	Column           string
	PValue           float64
	SameDistribution bool
}

// SplitReport is the validation result of train or test.
type SplitReport struct {
	// columns dropped for missing values
	MissingValues []string

	// columns of the base table not found in the split
	MissingColumns []string

	// drift tests per base column. Empty when MissingColumns is not empty.
	Drift []Drift
}

// Drifted returns names of columns which does not share distribution with base.
func (s SplitReport) Drifted() []string {
	out := []string{}
	for _, d := range s.Drift {
		if !d.SameDistribution {
			out = append(out, d.Column)
		}
	}
	return out
}

type Report struct {
	// columns of base dropped for missing values
	BaseMissingValues []string

	Train SplitReport
	Test  SplitReport
}

func (r Report) MarshalYAML() (any, error) {
	drift := func(ds []Drift) *yaml.Node {
		entries := make([]yamler.MapEntry, 0, len(ds))
		for _, d := range ds {
			entries = append(entries, yamler.Entry(
				d.Column,
				yamler.Map(
					yamler.Entry("pvalue", yamler.Float(d.PValue)),
					yamler.Entry("same_distribution", yamler.Bool(d.SameDistribution)),
				),
			))
		}
		return yamler.Map(entries...)
	}

	return yamler.Map(
		yamler.Entry("missing_values_within_base_dataset", yamler.Texts(r.BaseMissingValues...)),
		yamler.Entry("missing_values_within_train_dataset", yamler.Texts(r.Train.MissingValues...)),
		yamler.Entry("missing_values_within_test_dataset", yamler.Texts(r.Test.MissingValues...)),
		yamler.Entry("missing_cols_within_train_dataset", yamler.Texts(r.Train.MissingColumns...)),
		yamler.Entry("missing_cols_within_test_dataset", yamler.Texts(r.Test.MissingColumns...)),
		yamler.Entry("data_drift_within_train_dataset", drift(r.Train.Drift)),
		yamler.Entry("data_drift_within_test_dataset", drift(r.Test.Drift)),
	), nil
}

func Run(ctx context.Context, conf Config, logger *log.Logger) (domain.ValidationArtifact, error) {
	base, err := ingestion.Load(conf.BaseData, conf.MaxSourceBytes)
	if err != nil {
		return domain.ValidationArtifact{}, err
	}
	base = ingestion.Clean(base, conf.DropColumns, conf.DropTrailingRows)

	train, err := table.Read(conf.TrainPath)
	if err != nil {
		return domain.ValidationArtifact{}, xe.Wrap(err)
	}
	test, err := table.Read(conf.TestPath)
	if err != nil {
		return domain.ValidationArtifact{}, xe.Wrap(err)
	}
	if err := ctx.Err(); err != nil {
		return domain.ValidationArtifact{}, err
	}

	report, vtrain, vtest, err := Validate(base, train, test, conf.MissingThreshold, conf.Significance)
	if err != nil {
		return domain.ValidationArtifact{}, err
	}
	for name, s := range map[string]SplitReport{"train": report.Train, "test": report.Test} {
		if len(s.MissingColumns) != 0 {
			logger.Printf("%s: columns missing, drift detection skipped: %v", name, s.MissingColumns)
			continue
		}
		if d := s.Drifted(); len(d) != 0 {
			logger.Printf("%s: drift detected: %v", name, d)
		}
	}

	if err := WriteReport(conf.ReportPath, report); err != nil {
		return domain.ValidationArtifact{}, err
	}
	if err := table.Write(vtrain, conf.ValidTrainPath); err != nil {
		return domain.ValidationArtifact{}, xe.Wrap(err)
	}
	if err := table.Write(vtest, conf.ValidTestPath); err != nil {
		return domain.ValidationArtifact{}, xe.Wrap(err)
	}

	dropped := sets.New(report.Train.MissingValues...).Insert(report.Test.MissingValues...)
	return domain.ValidationArtifact{
		ReportPath:     conf.ReportPath,
		TrainPath:      conf.ValidTrainPath,
		TestPath:       conf.ValidTestPath,
		DroppedColumns: sets.List(dropped),
	}, nil
}

// Validate builds a report of train and test against base,
// and returns train and test without columns which have too many missing values.
func Validate(base, train, test *table.Table, missingThreshold, significance float64) (Report, *table.Table, *table.Table, error) {
	report := Report{}

	base, report.BaseMissingValues = DropMissing(base, missingThreshold)
	train, report.Train.MissingValues = DropMissing(train, missingThreshold)
	test, report.Test.MissingValues = DropMissing(test, missingThreshold)

	for name, t := range map[string]*table.Table{"base": base, "train": train, "test": test} {
		if t.NumColumns() == 0 {
			return Report{}, nil, nil, fmt.Errorf(
				"%w: no columns are left in %s dataset", domain.ErrMissingDataset, name,
			)
		}
	}

	report.Train = compare(base, train, significance, report.Train)
	report.Test = compare(base, test, significance, report.Test)

	return report, train, test, nil
}

// DropMissing drops columns whose missing fraction is strictly greater than threshold.
func DropMissing(t *table.Table, threshold float64) (*table.Table, []string) {
	dropped := []string{}
	for _, c := range t.Columns() {
		if threshold < c.MissingFraction() {
			dropped = append(dropped, c.Name)
		}
	}
	return t.Drop(dropped...), dropped
}

func compare(base, split *table.Table, significance float64, report SplitReport) SplitReport {
	missing := sets.New(base.Names()...).Difference(sets.New(split.Names()...))
	report.MissingColumns = []string{}
	report.Drift = []Drift{}
	if missing.Len() != 0 {
		// in the order of base columns
		for _, n := range base.Names() {
			if missing.Has(n) {
				report.MissingColumns = append(report.MissingColumns, n)
			}
		}
		return report
	}

	for _, b := range base.Columns() {
		s, _ := split.Column(b.Name)
		p := PValue(b, s)
		report.Drift = append(report.Drift, Drift{
			Column:           b.Name,
			PValue:           p,
			SameDistribution: significance < p,
		})
	}
	return report
}

// PValue of two-sample Kolmogorov-Smirnov test of columns.
//
// Unless both are numeric, columns are compared on ranks of the sorted union of their labels.
// It is 1 when either has no observation.
func PValue(a, b table.Column) float64 {
	var x, y []float64
	if a.Kind == table.Numeric && b.Kind == table.Numeric {
		x, y = a.Numbers, b.Numbers
	} else {
		x, y = ranks(a, b)
	}
	r, err := stats.KolmogorovSmirnov(x, y)
	if err != nil {
		return 1
	}
	return r.PValue
}

func labels(c table.Column) []string {
	out := make([]string, c.Len())
	for i := range out {
		switch {
		case c.IsMissing(i):
		case c.Kind == table.Numeric:
			out[i] = strconv.FormatFloat(c.Numbers[i], 'g', -1, 64)
		default:
			out[i] = c.Labels[i]
		}
	}
	return out
}

func ranks(a, b table.Column) ([]float64, []float64) {
	la, lb := labels(a), labels(b)
	union := sets.New(la...).Union(sets.New(lb...))
	union.Delete("")
	sorted := sets.List(union)

	rank := func(ls []string) []float64 {
		out := make([]float64, len(ls))
		for i, l := range ls {
			if l == "" {
				out[i] = math.NaN()
				continue
			}
			out[i] = float64(sort.SearchStrings(sorted, l))
		}
		return out
	}
	return rank(la), rank(lb)
}

// WriteReport writes a report as YAML into a new file.
func WriteReport(path string, report Report) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), os.FileMode(0o755)); err != nil {
		return xe.Wrap(err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, os.FileMode(0o644))
	if err != nil {
		return xe.Wrap(err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = xe.Wrap(cerr)
		}
	}()

	enc := yaml.NewEncoder(f)
	if err := enc.Encode(report); err != nil {
		return xe.Wrap(err)
	}
	if err := enc.Close(); err != nil {
		return xe.Wrap(err)
	}
	return nil
}
