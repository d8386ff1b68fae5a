// Package dataset generates synthetic back-order feeds for tests.
package dataset

import (
	"math"
	"math/rand"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/opst/backorder/pkg/table"
)

const Target = "went_on_backorder"

type options struct {
	shift    float64
	trailing bool
	missing  float64
}

type Option func(*options) *options

// WithShift shifts national_inv, to make drifted data.
func WithShift(shift float64) Option {
	return func(o *options) *options {
		o.shift = shift
		return o
	}
}

// WithoutTrailer omits the trailing summary row.
func WithoutTrailer() Option {
	return func(o *options) *options {
		o.trailing = false
		return o
	}
}

// WithMissingLeadTime sets fraction of missing lead_time values.
func WithMissingLeadTime(fraction float64) Option {
	return func(o *options) *options {
		o.missing = fraction
		return o
	}
}

// Backorder generates n rows of a back-order feed, followed by a summary row
// which has sku only.
//
// An item goes on back-order when its inventory is short against its forecast.
func Backorder(n int, seed int64, opts ...Option) *table.Table {
	o := &options{trailing: true, missing: 0.05}
	for _, opt := range opts {
		o = opt(o)
	}

	rnd := rand.New(rand.NewSource(seed))
	rows := n
	if o.trailing {
		rows += 1
	}
	sku := make([]string, rows)
	inv := make([]float64, rows)
	lead := make([]float64, rows)
	forecast := make([]float64, rows)
	sales := make([]float64, rows)
	deck := make([]string, rows)
	target := make([]string, rows)

	for i := 0; i < n; i++ {
		sku[i] = strconv.Itoa(1000000 + i)
		inv[i] = rnd.Float64()*100 + o.shift
		forecast[i] = rnd.Float64() * 100
		sales[i] = rnd.Float64() * 50
		lead[i] = float64(2 + rnd.Intn(11))
		if rnd.Float64() < o.missing {
			lead[i] = math.NaN()
		}
		deck[i] = "No"
		if rnd.Float64() < 0.2 {
			deck[i] = "Yes"
		}
		target[i] = "No"
		if inv[i] < 0.35*forecast[i] {
			target[i] = "Yes"
		}
	}
	if o.trailing {
		sku[n] = "(" + strconv.Itoa(n) + " rows)"
		inv[n], lead[n], forecast[n], sales[n] = math.NaN(), math.NaN(), math.NaN(), math.NaN()
	}

	t, err := table.New(
		table.CategoricalColumn("sku", sku...),
		table.NumericColumn("national_inv", inv...),
		table.NumericColumn("lead_time", lead...),
		table.NumericColumn("forecast_3_month", forecast...),
		table.NumericColumn("sales_1_month", sales...),
		table.CategoricalColumn("deck_risk", deck...),
		table.CategoricalColumn(Target, target...),
	)
	if err != nil {
		panic(err)
	}
	return t
}

// Write writes t into a new file named name in a temporary directory of tb.
func Write(tb testing.TB, t *table.Table, name string) string {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), name)
	if err := table.Write(t, path); err != nil {
		tb.Fatal(err)
	}
	return path
}
