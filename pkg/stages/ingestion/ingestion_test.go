package ingestion_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/opst/backorder/internal/testutils/dataset"
	"github.com/opst/backorder/pkg/domain"
	"github.com/opst/backorder/pkg/logger"
	"github.com/opst/backorder/pkg/stages/ingestion"
	"github.com/opst/backorder/pkg/table"
	"github.com/opst/backorder/pkg/utils/cmp"
	"github.com/opst/backorder/pkg/utils/try"
)

func config(t *testing.T, source string) ingestion.Config {
	dir := t.TempDir()
	return ingestion.Config{
		Source:           source,
		DropColumns:      []string{"sku"},
		DropTrailingRows: 1,
		TargetColumn:     dataset.Target,
		TestFraction:     0.2,
		Upsample:         false,
		Seed:             42,
		MaxSourceBytes:   1 << 30,
		FeatureStorePath: filepath.Join(dir, "feature_store", "cleaned.parquet"),
		TrainPath:        filepath.Join(dir, "dataset", "train.parquet"),
		TestPath:         filepath.Join(dir, "dataset", "test.parquet"),
	}
}

func TestRun(t *testing.T) {
	t.Run("it cleans and splits the source into disjoint train and test", func(t *testing.T) {
		src := dataset.Write(t, dataset.Backorder(100, 1), "feed.csv")
		conf := config(t, src)

		art := try.To(ingestion.Run(context.Background(), conf, logger.Null())).OrFatal(t)

		if art.CleanedRows != 100 || art.TrainRows != 80 || art.TestRows != 20 {
			t.Errorf("unexpected rows: %+v", art)
		}
		if art.TrainRows+art.TestRows != art.CleanedRows {
			t.Errorf("rows are not conserved: %+v", art)
		}

		train := try.To(table.Read(art.TrainPath)).OrFatal(t)
		test := try.To(table.Read(art.TestPath)).OrFatal(t)
		if train.Has("sku") || test.Has("sku") {
			t.Error("identifier column is not dropped")
		}

		// rows are identified by national_inv, which is unique in the generated feed
		seen := map[float64]struct{}{}
		inv, _ := train.Column("national_inv")
		for _, v := range inv.Numbers {
			seen[v] = struct{}{}
		}
		inv, _ = test.Column("national_inv")
		for _, v := range inv.Numbers {
			if _, ok := seen[v]; ok {
				t.Errorf("row %v is in both of train and test", v)
			}
		}

		cleaned := try.To(table.Read(art.FeatureStorePath)).OrFatal(t)
		if cleaned.NumRows() != 100 {
			t.Errorf("unexpected feature store: %d rows", cleaned.NumRows())
		}
	})

	t.Run("it upsamples the minority class of train split", func(t *testing.T) {
		src := dataset.Write(t, dataset.Backorder(200, 2), "feed.parquet")
		conf := config(t, src)
		conf.Upsample = true

		art := try.To(ingestion.Run(context.Background(), conf, logger.Null())).OrFatal(t)

		train := try.To(table.Read(art.TrainPath)).OrFatal(t)
		target, _ := train.Column(dataset.Target)
		counts := map[string]int{}
		for _, l := range target.Labels {
			counts[l] += 1
		}
		if counts["Yes"] != counts["No"] || counts["Yes"] == 0 {
			t.Errorf("classes are not balanced: %v", counts)
		}
		if art.TestRows != 40 {
			t.Errorf("test split is changed by upsampling: %d", art.TestRows)
		}
	})

	for name, testcase := range map[string]struct {
		source   func(t *testing.T) string
		modify   func(*ingestion.Config)
		expected error
	}{
		"source is missing": {
			source:   func(t *testing.T) string { return filepath.Join(t.TempDir(), "none.csv") },
			expected: domain.ErrDataUnavailable,
		},
		"source has unsupported format": {
			source: func(t *testing.T) string {
				p := filepath.Join(t.TempDir(), "feed.xlsx")
				if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
					t.Fatal(err)
				}
				return p
			},
			expected: domain.ErrDataUnavailable,
		},
		"source is too large": {
			source:   func(t *testing.T) string { return dataset.Write(t, dataset.Backorder(50, 3), "feed.csv") },
			modify:   func(c *ingestion.Config) { c.MaxSourceBytes = 16 },
			expected: domain.ErrDataUnavailable,
		},
		"target column is missing": {
			source: func(t *testing.T) string {
				return dataset.Write(t, dataset.Backorder(50, 3).Drop(dataset.Target), "feed.csv")
			},
			expected: domain.ErrDataUnavailable,
		},
		"only one row is left": {
			source:   func(t *testing.T) string { return dataset.Write(t, dataset.Backorder(1, 3), "feed.csv") },
			expected: domain.ErrEmptyDataset,
		},
		"no rows are left": {
			source: func(t *testing.T) string {
				return dataset.Write(t, dataset.Backorder(0, 3, dataset.WithoutTrailer()), "feed.csv")
			},
			expected: domain.ErrEmptyDataset,
		},
	} {
		t.Run("it fails when "+name, func(t *testing.T) {
			conf := config(t, testcase.source(t))
			if testcase.modify != nil {
				testcase.modify(&conf)
			}
			_, err := ingestion.Run(context.Background(), conf, logger.Null())
			if !errors.Is(err, testcase.expected) {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestSplit(t *testing.T) {
	for name, testcase := range map[string]struct {
		rows      int
		fraction  float64
		wantTrain int
		wantTest  int
	}{
		"default fraction": {rows: 10, fraction: 0.2, wantTrain: 8, wantTest: 2},
		"rounded up":       {rows: 11, fraction: 0.2, wantTrain: 8, wantTest: 3},
		"two rows":         {rows: 2, fraction: 0.2, wantTrain: 1, wantTest: 1},
		"large fraction":   {rows: 3, fraction: 0.99, wantTrain: 1, wantTest: 2},
	} {
		t.Run(name, func(t *testing.T) {
			tbl := dataset.Backorder(testcase.rows, 5, dataset.WithoutTrailer())
			train, test := ingestion.Split(tbl, testcase.fraction, 1)
			if train.NumRows() != testcase.wantTrain || test.NumRows() != testcase.wantTest {
				t.Errorf(
					"(train, test) = (%d, %d), expected (%d, %d)",
					train.NumRows(), test.NumRows(), testcase.wantTrain, testcase.wantTest,
				)
			}
		})
	}

	t.Run("it is deterministic for a seed", func(t *testing.T) {
		tbl := dataset.Backorder(30, 5, dataset.WithoutTrailer())
		a, _ := ingestion.Split(tbl, 0.2, 7)
		b, _ := ingestion.Split(tbl, 0.2, 7)
		ca, _ := a.Column("sku")
		cb, _ := b.Column("sku")
		if !cmp.SliceEq(ca.Labels, cb.Labels) {
			t.Error("splits differ for the same seed")
		}
	})
}

func TestUpsample(t *testing.T) {
	tbl := try.To(table.New(
		table.NumericColumn("x", 1, 2, 3, 4, 5, 6),
		table.CategoricalColumn("y", "a", "a", "a", "a", "b", "c"),
	)).OrFatal(t)

	up := try.To(ingestion.Upsample(tbl, "y", 1)).OrFatal(t)

	y, _ := up.Column("y")
	counts := map[string]int{}
	for _, l := range y.Labels {
		counts[l] += 1
	}
	if !cmp.MapEq(counts, map[string]int{"a": 4, "b": 4, "c": 4}) {
		t.Errorf("unexpected counts: %v", counts)
	}

	x, _ := up.Column("x")
	for i, l := range y.Labels {
		if l == "b" && x.Numbers[i] != 5 {
			t.Errorf("resampled row is broken: x=%v, y=%s", x.Numbers[i], l)
		}
	}

	if _, err := ingestion.Upsample(tbl, "z", 1); !errors.Is(err, ingestion.ErrNoTarget) {
		t.Errorf("unexpected error: %v", err)
	}
}
