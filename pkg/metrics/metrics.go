// Package metrics renders pipeline runs and the registry in Prometheus text format.
package metrics

import (
	"io"
	"os"
	"sort"

	"github.com/opst/backorder/pkg/domain"
	xe "github.com/opst/backorder/pkg/errors"
	"github.com/opst/backorder/pkg/journal"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"
)

const namespace = "backorder_"

// ContentType of Prometheus text format written by Write.
const ContentType = "text/plain; version=0.0.4; charset=utf-8"

func gauge(name, help string, value float64, labels ...*dto.LabelPair) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: proto.String(namespace + name),
		Help: proto.String(help),
		Type: dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{
			{Label: labels, Gauge: &dto.Gauge{Value: proto.Float64(value)}},
		},
	}
}

func label(name, value string) *dto.LabelPair {
	return &dto.LabelPair{Name: proto.String(name), Value: proto.String(value)}
}

// ForRun builds metric families of a run. Families of stages not reached are omitted.
func ForRun(rec journal.RunRecord) []*dto.MetricFamily {
	run := label("run_id", rec.RunId)

	succeeded := 0.0
	if rec.Status == domain.Succeeded {
		succeeded = 1
	}
	families := []*dto.MetricFamily{
		gauge("run_success", "1 if the run has promoted a model, otherwise 0.", succeeded, run),
		gauge(
			"run_status", "status of the run, as label.", 1,
			run, label("status", string(rec.Status)), label("failed_stage", string(rec.FailedStage)),
		),
		gauge(
			"run_duration_seconds", "wall clock time of the run.",
			rec.FinishedAt.Sub(rec.StartedAt).Seconds(), run,
		),
		gauge(
			"run_finished_timestamp_seconds", "unix time when the run has finished.",
			float64(rec.FinishedAt.UnixNano())/1e9, run,
		),
	}
	if rec.TrainScore != nil {
		families = append(families, gauge("train_accuracy", "accuracy of the new model on train.", *rec.TrainScore, run))
	}
	if rec.TestScore != nil {
		families = append(families, gauge("test_accuracy", "accuracy of the new model on test.", *rec.TestScore, run))
	}
	if rec.ScoreDelta != nil {
		families = append(families, gauge(
			"score_delta", "accuracy of the new model minus the deployed model.", *rec.ScoreDelta, run,
		))
	}
	if rec.Version != nil {
		families = append(families, gauge(
			"promoted_version", "registry version promoted by the run.", float64(*rec.Version), run,
		))
	}
	return families
}

// ForRegistry builds metric families of registry versions.
func ForRegistry(versions []int) []*dto.MetricFamily {
	latest := -1
	for _, v := range versions {
		latest = max(latest, v)
	}
	return []*dto.MetricFamily{
		gauge("registry_versions", "number of published model versions.", float64(len(versions))),
		gauge("registry_latest_version", "latest model version. -1 if none.", float64(latest)),
	}
}

// ForJournal counts recorded runs per status.
func ForJournal(records []journal.RunRecord) []*dto.MetricFamily {
	counts := map[domain.RunStatus]int{
		domain.Succeeded: 0, domain.Rejected: 0, domain.Failed: 0,
	}
	for _, r := range records {
		counts[r.Status] += 1
	}
	statuses := make([]string, 0, len(counts))
	for s := range counts {
		statuses = append(statuses, string(s))
	}
	sort.Strings(statuses)

	family := &dto.MetricFamily{
		Name: proto.String(namespace + "runs"),
		Help: proto.String("number of recorded runs per status."),
		Type: dto.MetricType_GAUGE.Enum(),
	}
	for _, s := range statuses {
		family.Metric = append(family.Metric, &dto.Metric{
			Label: []*dto.LabelPair{label("status", s)},
			Gauge: &dto.Gauge{Value: proto.Float64(float64(counts[domain.RunStatus(s)]))},
		})
	}
	return []*dto.MetricFamily{family}
}

// Write encodes families in Prometheus text format.
func Write(w io.Writer, families []*dto.MetricFamily) error {
	for _, f := range families {
		if _, err := expfmt.MetricFamilyToText(w, f); err != nil {
			return xe.Wrap(err)
		}
	}
	return nil
}

// WriteFile writes families into path, which node exporter's textfile collector can read.
func WriteFile(path string, families []*dto.MetricFamily) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(0o644))
	if err != nil {
		return xe.Wrap(err)
	}
	defer f.Close()
	return Write(f, families)
}
